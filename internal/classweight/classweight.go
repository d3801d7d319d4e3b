// Package classweight computes density-based per-class loss weights from a
// label histogram. The scene store and the whole-scene tiler share it.
package classweight

import (
	"errors"
	"fmt"
	"math"
)

// ErrLabelOutOfRange is returned when a label falls outside [0, numClasses).
var ErrLabelOutOfRange = errors.New("label out of range")

// Histogram counts label occurrences. Index i holds the count for label i.
type Histogram []int64

// NewHistogram returns an empty histogram over numClasses labels.
func NewHistogram(numClasses int) Histogram {
	return make(Histogram, numClasses)
}

// Add counts every label in labels. Nothing is counted if any label is out
// of range.
func (h Histogram) Add(labels []int) error {
	for i, l := range labels {
		if l < 0 || l >= len(h) {
			return fmt.Errorf("%w: label %d at row %d (classes=%d)", ErrLabelOutOfRange, l, i, len(h))
		}
	}
	for _, l := range labels {
		h[l]++
	}
	return nil
}

// Merge adds the counts of other into h. Both must cover the same classes.
func (h Histogram) Merge(other Histogram) {
	for i := range h {
		if i < len(other) {
			h[i] += other[i]
		}
	}
}

// Total returns the number of counted labels.
func (h Histogram) Total() int64 {
	var total int64
	for _, c := range h {
		total += c
	}
	return total
}

// Argmax returns the most frequent label; ties resolve to the lower label.
func (h Histogram) Argmax() int {
	best := 0
	for i, c := range h {
		if c > h[best] {
			best = i
		}
	}
	return best
}

// Weights holds one positive weight per label.
type Weights []float64

// Compute derives weights as (maxCount / count[c])^(1/3).
//
// Classes never observed are treated as observed once so every weight stays
// finite. The most frequent class always weighs exactly 1.
func Compute(h Histogram) Weights {
	w := make(Weights, len(h))
	if len(h) == 0 {
		return w
	}
	maxCount := float64(clampCount(h[h.Argmax()]))
	for i, c := range h {
		if i == h.Argmax() {
			w[i] = 1
			continue
		}
		w[i] = math.Cbrt(maxCount / float64(clampCount(c)))
	}
	return w
}

// Lookup maps labels to their weights. Out of range labels weigh zero.
func (w Weights) Lookup(labels []int, dst []float64) []float64 {
	if cap(dst) < len(labels) {
		dst = make([]float64, len(labels))
	}
	dst = dst[:len(labels)]
	for i, l := range labels {
		if l >= 0 && l < len(w) {
			dst[i] = w[l]
		} else {
			dst[i] = 0
		}
	}
	return dst
}

func clampCount(c int64) int64 {
	if c < 1 {
		return 1
	}
	return c
}
