// Package sampler draws fixed-size training blocks from randomly chosen,
// sufficiently dense square neighbourhoods of the loaded scenes.
package sampler

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/KeyueZhu/XenomatiX/internal/scene"
)

// Channels is the width of a block row:
// x-cx, y-cy, z, intensity, x/maxX, y/maxY, z/maxZ.
const Channels = 7

const (
	DefaultNumPoint    = 4096
	DefaultBlockSize   = 1.0
	DefaultSampleRate  = 1.0
	DefaultMaxAttempts = 1000
)

var (
	// ErrDensityUnattainable is returned when no neighbourhood dense enough
	// was found within MaxAttempts draws.
	ErrDensityUnattainable = errors.New("no neighbourhood reached the density floor")
	// ErrInvalidOptions is returned by New for unusable options.
	ErrInvalidOptions = errors.New("invalid sampler options")
)

// Transform post-processes a block (augmentation). It may modify its
// arguments in place and must return the block to use.
type Transform func(data *mat.Dense, labels []int) (*mat.Dense, []int)

// Options configures a Sampler.
type Options struct {
	// NumPoint is the number of points in every block.
	NumPoint int
	// BlockSize is the side length of the square xy neighbourhood.
	BlockSize float64
	// SampleRate scales the number of blocks drawn per pass over the data.
	SampleRate float64
	// DensityFloor is the point count a neighbourhood must exceed to be
	// accepted. Zero selects NumPoint; a negative floor accepts any
	// neighbourhood.
	DensityFloor int
	// MaxAttempts bounds the rejection loop. Zero selects DefaultMaxAttempts.
	MaxAttempts int
	// Transform is applied to every block last, if set.
	Transform Transform
}

// DefaultOptions returns the options used by the training pipeline.
func DefaultOptions() Options {
	return Options{
		NumPoint:   DefaultNumPoint,
		BlockSize:  DefaultBlockSize,
		SampleRate: DefaultSampleRate,
	}
}

func (o Options) withDefaults() Options {
	if o.DensityFloor == 0 {
		o.DensityFloor = o.NumPoint
	}
	if o.MaxAttempts == 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	return o
}

func (o Options) validate() error {
	switch {
	case o.NumPoint <= 0:
		return fmt.Errorf("%w: num_point must be positive, got %d", ErrInvalidOptions, o.NumPoint)
	case !(o.BlockSize > 0) || math.IsInf(o.BlockSize, 0):
		return fmt.Errorf("%w: block_size must be positive, got %v", ErrInvalidOptions, o.BlockSize)
	case !(o.SampleRate > 0) || math.IsInf(o.SampleRate, 0):
		return fmt.Errorf("%w: sample_rate must be positive, got %v", ErrInvalidOptions, o.SampleRate)
	case o.MaxAttempts < 0:
		return fmt.Errorf("%w: max_attempts must be non-negative, got %d", ErrInvalidOptions, o.MaxAttempts)
	}
	return nil
}

// Scenes is the read-only view of a scene store the sampler needs.
type Scenes interface {
	Len() int
	Scene(i int) *scene.Scene
	PointCounts() []int
}

// Block is one training example.
type Block struct {
	// Data holds NumPoint rows of Channels values.
	Data *mat.Dense
	// Labels holds one label per row of Data.
	Labels []int
	// Indices are the scene point indices each row was drawn from.
	Indices []int
	// Scene is the index of the source scene in the store.
	Scene int
	// Center is the point the neighbourhood was centred on.
	Center scene.Point
	// Attempts is the number of centres drawn before one was accepted.
	Attempts int
}

// Sampler produces random training blocks. It holds no mutable state;
// every random draw comes from the generator passed to Sample.
type Sampler struct {
	scenes Scenes
	opts   Options
	index  []int
}

// New validates opts and builds the sample index for store.
func New(store Scenes, opts Options) (*Sampler, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()
	if store == nil || store.Len() == 0 {
		return nil, fmt.Errorf("%w: empty scene store", ErrInvalidOptions)
	}
	idx := SampleIndex(store.PointCounts(), opts.SampleRate, opts.NumPoint)
	diagf("sample index: %d entries over %d scenes (num_point=%d rate=%v floor=%d)",
		len(idx), store.Len(), opts.NumPoint, opts.SampleRate, opts.DensityFloor)
	if len(idx) == 0 {
		opsf("sample index is empty: too few points for num_point=%d at rate %v", opts.NumPoint, opts.SampleRate)
	}
	return &Sampler{scenes: store, opts: opts, index: idx}, nil
}

// Len returns the number of samples per pass.
func (s *Sampler) Len() int { return len(s.index) }

// Index returns a copy of the sample index.
func (s *Sampler) Index() []int {
	out := make([]int, len(s.index))
	copy(out, s.index)
	return out
}

// Options returns the effective options, defaults applied.
func (s *Sampler) Options() Options { return s.opts }

// Sample draws block i. The scene is fixed by the sample index; the
// neighbourhood and the points within it are drawn from rng.
func (s *Sampler) Sample(rng *rand.Rand, i int) (*Block, error) {
	if i < 0 || i >= len(s.index) {
		return nil, fmt.Errorf("sample %d out of range [0, %d)", i, len(s.index))
	}
	si := s.index[i]
	sc := s.scenes.Scene(si)

	center, neighbours, attempts, err := s.findNeighbourhood(rng, sc)
	if err != nil {
		return nil, fmt.Errorf("sample %d (scene %s): %w", i, sc.Name, err)
	}

	chosen := choose(rng, neighbours, s.opts.NumPoint)
	blk := &Block{
		Data:     mat.NewDense(s.opts.NumPoint, Channels, nil),
		Labels:   make([]int, s.opts.NumPoint),
		Indices:  chosen,
		Scene:    si,
		Center:   center,
		Attempts: attempts,
	}
	divX, divY, divZ := sc.Bounds.Divisor(0), sc.Bounds.Divisor(1), sc.Bounds.Divisor(2)
	for r, pi := range chosen {
		p := sc.Points[pi]
		row := blk.Data.RawRowView(r)
		row[0] = p.X - center.X
		row[1] = p.Y - center.Y
		row[2] = p.Z
		row[3] = p.Intensity
		row[4] = p.X / divX
		row[5] = p.Y / divY
		row[6] = p.Z / divZ
		blk.Labels[r] = sc.Labels[pi]
	}

	if s.opts.Transform != nil {
		blk.Data, blk.Labels = s.opts.Transform(blk.Data, blk.Labels)
	}
	return blk, nil
}

// findNeighbourhood runs the rejection loop: pick a random scene point as
// centre and accept when the xy square around it holds more than
// DensityFloor points. z is unbounded.
func (s *Sampler) findNeighbourhood(rng *rand.Rand, sc *scene.Scene) (scene.Point, []int, int, error) {
	half := s.opts.BlockSize / 2
	var buf []int
	for attempt := 1; attempt <= s.opts.MaxAttempts; attempt++ {
		c := sc.Points[rng.IntN(len(sc.Points))]
		minX, maxX := c.X-half, c.X+half
		minY, maxY := c.Y-half, c.Y+half

		buf = buf[:0]
		for pi, p := range sc.Points {
			if p.X >= minX && p.X <= maxX && p.Y >= minY && p.Y <= maxY {
				buf = append(buf, pi)
			}
		}
		if len(buf) > s.opts.DensityFloor {
			tracef("%s: accepted centre (%.3f, %.3f) with %d points after %d attempts",
				sc.Name, c.X, c.Y, len(buf), attempt)
			return c, buf, attempt, nil
		}
		tracef("%s: rejected centre (%.3f, %.3f) with %d points", sc.Name, c.X, c.Y, len(buf))
	}
	opsf("%s: gave up after %d attempts (floor=%d block=%v)", sc.Name, s.opts.MaxAttempts, s.opts.DensityFloor, s.opts.BlockSize)
	return scene.Point{}, nil, s.opts.MaxAttempts,
		fmt.Errorf("%w: %d attempts, floor %d", ErrDensityUnattainable, s.opts.MaxAttempts, s.opts.DensityFloor)
}

// choose draws n entries of pool: without replacement when the pool is
// large enough, with replacement otherwise. pool may be reordered.
func choose(rng *rand.Rand, pool []int, n int) []int {
	out := make([]int, n)
	if len(pool) >= n {
		for i := 0; i < n; i++ {
			j := i + rng.IntN(len(pool)-i)
			pool[i], pool[j] = pool[j], pool[i]
		}
		copy(out, pool[:n])
		return out
	}
	for i := range out {
		out[i] = pool[rng.IntN(len(pool))]
	}
	return out
}
