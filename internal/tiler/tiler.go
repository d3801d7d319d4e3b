// Package tiler covers whole scenes with a deterministic grid of square
// tiles and packs every point into fixed-size batches for inference. Each
// batch row keeps the index of the scene point it came from so per-point
// predictions can be scattered back.
package tiler

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/KeyueZhu/XenomatiX/internal/classweight"
	"github.com/KeyueZhu/XenomatiX/internal/scene"
)

// Channels is the width of a tile row:
// x-cx, y-cy, z, intensity, x/maxX, y/maxY, z/maxZ.
const Channels = 7

const (
	DefaultBlockPoints = 4096
	DefaultBlockSize   = 1.0
	DefaultStride      = 0.5
	DefaultPadding     = 0.001
)

var (
	// ErrEmptyTileGrid is returned when no tile of a scene holds any point.
	ErrEmptyTileGrid = errors.New("scene produced no tiles")
	// ErrInvalidOptions is returned by New for unusable options.
	ErrInvalidOptions = errors.New("invalid tiler options")
)

// Options configures a Tiler.
type Options struct {
	BlockPoints int
	BlockSize   float64
	Stride      float64
	Padding     float64
}

// DefaultOptions returns the options used for whole-scene inference.
func DefaultOptions() Options {
	return Options{
		BlockPoints: DefaultBlockPoints,
		BlockSize:   DefaultBlockSize,
		Stride:      DefaultStride,
		Padding:     DefaultPadding,
	}
}

func (o Options) validate() error {
	switch {
	case o.BlockPoints <= 0:
		return fmt.Errorf("%w: block_points must be positive, got %d", ErrInvalidOptions, o.BlockPoints)
	case !(o.BlockSize > 0) || math.IsInf(o.BlockSize, 0):
		return fmt.Errorf("%w: block_size must be positive, got %v", ErrInvalidOptions, o.BlockSize)
	case !(o.Stride > 0) || math.IsInf(o.Stride, 0):
		return fmt.Errorf("%w: stride must be positive, got %v", ErrInvalidOptions, o.Stride)
	case !(o.Padding >= 0):
		return fmt.Errorf("%w: padding must be non-negative, got %v", ErrInvalidOptions, o.Padding)
	}
	return nil
}

// Scenes is the read-only view of a scene store the tiler needs.
type Scenes interface {
	Len() int
	Scene(i int) *scene.Scene
	Weights() classweight.Weights
}

// SceneTiles holds every batch produced for one scene. Entry t of each
// slice describes batch t; all batches share one backing buffer per field.
type SceneTiles struct {
	Scene   string
	Data    []*mat.Dense
	Labels  [][]int
	Weights [][]float64
	Index   [][]int
	Cells   []Cell

	blockPoints int
	data        []float64
	labels      []int
	weights     []float64
	index       []int
}

// NumTiles returns the number of batches.
func (st *SceneTiles) NumTiles() int { return len(st.Data) }

// BlockPoints returns the number of rows per batch.
func (st *SceneTiles) BlockPoints() int { return st.blockPoints }

// Tiler produces whole-scene batches. It holds no mutable state.
type Tiler struct {
	scenes  Scenes
	weights classweight.Weights
	opts    Options
}

// New validates opts and returns a Tiler over store.
func New(store Scenes, opts Options) (*Tiler, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if store == nil {
		return nil, fmt.Errorf("%w: nil scene store", ErrInvalidOptions)
	}
	return &Tiler{scenes: store, weights: store.Weights(), opts: opts}, nil
}

// Len returns the number of scenes available for tiling.
func (t *Tiler) Len() int { return t.scenes.Len() }

// Options returns the tiler options.
func (t *Tiler) Options() Options { return t.opts }

// cellPick is the padded, shuffled point list of one non-empty cell.
type cellPick struct {
	cell Cell
	idx  []int
}

// TileScene tiles scene sceneIdx. The grid is fixed by the scene bounds;
// only padding draws and the shuffle within a cell use rng.
func (t *Tiler) TileScene(rng *rand.Rand, sceneIdx int) (*SceneTiles, error) {
	if sceneIdx < 0 || sceneIdx >= t.scenes.Len() {
		return nil, fmt.Errorf("scene %d out of range [0, %d)", sceneIdx, t.scenes.Len())
	}
	sc := t.scenes.Scene(sceneIdx)
	bounds := scene.ComputeBounds(sc.Points)
	bp := t.opts.BlockPoints

	var picks []cellPick
	total := 0
	for _, cell := range Grid(bounds, t.opts) {
		var idx []int
		for pi, p := range sc.Points {
			if cell.Contains(p.X, p.Y, t.opts.Padding) {
				idx = append(idx, pi)
			}
		}
		if len(idx) == 0 {
			continue
		}
		idx = padToMultiple(rng, idx, bp)
		rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
		tracef("%s: cell (%d,%d) -> %d rows", sc.Name, cell.IX, cell.IY, len(idx))
		picks = append(picks, cellPick{cell: cell, idx: idx})
		total += len(idx)
	}
	if total == 0 {
		return nil, fmt.Errorf("scene %s: %w", sc.Name, ErrEmptyTileGrid)
	}

	numTiles := total / bp
	out := &SceneTiles{
		Scene:       sc.Name,
		Data:        make([]*mat.Dense, 0, numTiles),
		Labels:      make([][]int, 0, numTiles),
		Weights:     make([][]float64, 0, numTiles),
		Index:       make([][]int, 0, numTiles),
		Cells:       make([]Cell, 0, numTiles),
		blockPoints: bp,
	}
	data := make([]float64, total*Channels)
	labels := make([]int, total)
	weights := make([]float64, total)
	index := make([]int, total)

	out.data, out.labels, out.weights, out.index = data, labels, weights, index

	divX, divY, divZ := bounds.Divisor(0), bounds.Divisor(1), bounds.Divisor(2)
	row := 0
	for _, pk := range picks {
		cx, cy := pk.cell.Center()
		for _, pi := range pk.idx {
			p := sc.Points[pi]
			r := data[row*Channels : (row+1)*Channels]
			r[0] = p.X - cx
			r[1] = p.Y - cy
			r[2] = p.Z
			r[3] = p.Intensity
			r[4] = p.X / divX
			r[5] = p.Y / divY
			r[6] = p.Z / divZ
			labels[row] = sc.Labels[pi]
			weights[row] = t.weights[sc.Labels[pi]]
			index[row] = pi
			row++
		}
		for start := row - len(pk.idx); start < row; start += bp {
			end := start + bp
			out.Data = append(out.Data, mat.NewDense(bp, Channels, data[start*Channels:end*Channels]))
			out.Labels = append(out.Labels, labels[start:end:end])
			out.Weights = append(out.Weights, weights[start:end:end])
			out.Index = append(out.Index, index[start:end:end])
			out.Cells = append(out.Cells, pk.cell)
		}
	}

	diagf("%s: %d points -> %d tiles of %d (%d cells)", sc.Name, sc.Len(), out.NumTiles(), bp, len(picks))
	return out, nil
}

// padToMultiple extends idx to the next multiple of bp with extra draws
// from idx itself: without replacement when the shortfall fits in idx,
// with replacement otherwise.
func padToMultiple(rng *rand.Rand, idx []int, bp int) []int {
	n := len(idx)
	size := (n + bp - 1) / bp * bp
	short := size - n
	if short == 0 {
		return idx
	}
	out := make([]int, n, size)
	copy(out, idx)
	if short <= n {
		pool := append([]int(nil), idx...)
		for i := 0; i < short; i++ {
			j := i + rng.IntN(n-i)
			pool[i], pool[j] = pool[j], pool[i]
		}
		return append(out, pool[:short]...)
	}
	for i := 0; i < short; i++ {
		out = append(out, idx[rng.IntN(n)])
	}
	return out
}
