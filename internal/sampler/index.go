package sampler

import "math"

// SampleIndex maps flat sample numbers to scene indices. Scenes contribute
// in proportion to their point counts:
//
//	numIter = floor(total * sampleRate / numPoint)
//	entries(s) = roundHalfEven(count[s] / total * numIter)
//
// Entries for a scene are consecutive and follow scene order.
func SampleIndex(counts []int, sampleRate float64, numPoint int) []int {
	total := 0
	for _, c := range counts {
		total += c
	}
	if total == 0 || numPoint <= 0 {
		return nil
	}
	numIter := math.Floor(float64(total) * sampleRate / float64(numPoint))

	var idx []int
	for s, c := range counts {
		prob := float64(c) / float64(total)
		n := int(math.RoundToEven(prob * numIter))
		for k := 0; k < n; k++ {
			idx = append(idx, s)
		}
	}
	return idx
}
