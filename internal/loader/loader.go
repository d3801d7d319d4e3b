// Package loader iterates a block dataset in shuffled mini-batches, building
// batches on a pool of workers that each own a seeded generator, so a run is
// reproducible for a given seed and worker count.
package loader

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/KeyueZhu/XenomatiX/internal/sampler"
)

// ErrInvalidOptions is returned by New for unusable options.
var ErrInvalidOptions = errors.New("invalid loader options")

// DefaultPrefetch is the number of finished batches each worker may hold
// before the consumer takes them.
const DefaultPrefetch = 2

// Dataset is an indexable source of blocks.
type Dataset interface {
	Len() int
	Sample(rng *rand.Rand, i int) (*sampler.Block, error)
}

// Options configures a Loader.
type Options struct {
	BatchSize int
	// Workers is the number of concurrent batch builders. Zero builds
	// batches on the calling goroutine.
	Workers  int
	Shuffle  bool
	DropLast bool
	Seed     uint64
	// Prefetch bounds finished batches buffered per worker. Zero selects
	// DefaultPrefetch.
	Prefetch int
}

// Batch is one mini-batch of blocks.
type Batch struct {
	// Number is the position of the batch within the epoch.
	Number int
	// Samples are the dataset indices the blocks were drawn for.
	Samples []int
	Blocks  []*sampler.Block
}

// Data stacks the block rows into a (len(Blocks)*NumPoint, Channels) matrix.
func (b Batch) Data() *mat.Dense {
	if len(b.Blocks) == 0 {
		return nil
	}
	rows, cols := b.Blocks[0].Data.Dims()
	out := mat.NewDense(rows*len(b.Blocks), cols, nil)
	for i, blk := range b.Blocks {
		out.Slice(i*rows, (i+1)*rows, 0, cols).(*mat.Dense).Copy(blk.Data)
	}
	return out
}

// Labels concatenates the block labels in batch order.
func (b Batch) Labels() []int {
	var out []int
	for _, blk := range b.Blocks {
		out = append(out, blk.Labels...)
	}
	return out
}

// Loader splits a dataset into batches, one epoch at a time.
type Loader struct {
	ds   Dataset
	opts Options
}

// New validates opts and returns a Loader over ds.
func New(ds Dataset, opts Options) (*Loader, error) {
	if ds == nil {
		return nil, fmt.Errorf("%w: nil dataset", ErrInvalidOptions)
	}
	if opts.BatchSize <= 0 {
		return nil, fmt.Errorf("%w: batch_size must be positive, got %d", ErrInvalidOptions, opts.BatchSize)
	}
	if opts.Workers < 0 {
		return nil, fmt.Errorf("%w: workers must be non-negative, got %d", ErrInvalidOptions, opts.Workers)
	}
	if opts.Prefetch <= 0 {
		opts.Prefetch = DefaultPrefetch
	}
	return &Loader{ds: ds, opts: opts}, nil
}

// NumBatches returns the number of batches per epoch.
func (l *Loader) NumBatches() int {
	n, bs := l.ds.Len(), l.opts.BatchSize
	if l.opts.DropLast {
		return n / bs
	}
	return (n + bs - 1) / bs
}

// plan returns the sample indices of every batch of the epoch.
func (l *Loader) plan(epoch int) [][]int {
	n := l.ds.Len()
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	if l.opts.Shuffle {
		rng := SeededRand(l.opts.Seed, uint64(epoch)<<1)
		rng.Shuffle(n, func(i, j int) { order[i], order[j] = order[j], order[i] })
	}

	nb := l.NumBatches()
	batches := make([][]int, nb)
	for k := range batches {
		end := min((k+1)*l.opts.BatchSize, n)
		batches[k] = order[k*l.opts.BatchSize : end]
	}
	return batches
}

// SeededRand returns a PCG generator for seed on the given stream.
func SeededRand(seed, stream uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, stream))
}

// workerRand returns the generator owned by worker id for epoch.
func (l *Loader) workerRand(id, epoch int) *rand.Rand {
	return SeededRand(l.opts.Seed+uint64(id), uint64(epoch)<<1|1)
}

func (l *Loader) build(rng *rand.Rand, k int, samples []int) (Batch, error) {
	b := Batch{Number: k, Samples: samples, Blocks: make([]*sampler.Block, len(samples))}
	for i, si := range samples {
		blk, err := l.ds.Sample(rng, si)
		if err != nil {
			return Batch{}, fmt.Errorf("batch %d: %w", k, err)
		}
		b.Blocks[i] = blk
	}
	return b, nil
}

// Epoch builds every batch of the given epoch and passes them to fn in
// batch order. Batch k is built by worker k mod Workers. The first error
// from a worker or from fn stops the epoch and is returned.
func (l *Loader) Epoch(ctx context.Context, epoch int, fn func(Batch) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	batches := l.plan(epoch)
	diagf("epoch %d: %d samples in %d batches (workers=%d shuffle=%v)",
		epoch, l.ds.Len(), len(batches), l.opts.Workers, l.opts.Shuffle)

	if l.opts.Workers == 0 {
		rng := l.workerRand(0, epoch)
		for k, samples := range batches {
			if err := ctx.Err(); err != nil {
				return err
			}
			b, err := l.build(rng, k, samples)
			if err != nil {
				return err
			}
			if err := fn(b); err != nil {
				return err
			}
		}
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	workers := l.opts.Workers
	outs := make([]chan Batch, workers)
	for w := 0; w < workers; w++ {
		out := make(chan Batch, l.opts.Prefetch)
		outs[w] = out
		g.Go(func() error {
			defer close(out)
			rng := l.workerRand(w, epoch)
			for k := w; k < len(batches); k += workers {
				b, err := l.build(rng, k, batches[k])
				if err != nil {
					opsf("worker %d: %v", w, err)
					return err
				}
				tracef("worker %d built batch %d", w, k)
				select {
				case out <- b:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			return nil
		})
	}

	var consumeErr error
	for k := range batches {
		b, ok := <-outs[k%workers]
		if !ok {
			break
		}
		if err := fn(b); err != nil {
			consumeErr = err
			break
		}
	}
	cancel()
	werr := g.Wait()
	if consumeErr != nil {
		return consumeErr
	}
	return werr
}
