package scene

import (
	"context"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/KeyueZhu/XenomatiX/internal/classweight"
)

// LoadOptions controls which scenes are loaded and how labels are checked.
type LoadOptions struct {
	// Partition selects scenes by name. Nil loads every scene file.
	Partition Partition
	// NumClasses bounds the label space; labels must lie in [0, NumClasses).
	NumClasses int
}

// Store holds the scenes of one split together with the label histogram and
// class weights derived from them. A Store is immutable after Load and safe
// for concurrent readers.
type Store struct {
	scenes     []*Scene
	counts     []int
	total      int
	numClasses int
	hist       classweight.Histogram
	weights    classweight.Weights
}

// Load reads every scene in src accepted by opts.Partition, in sorted name
// order, and computes the aggregate histogram and class weights.
func Load(ctx context.Context, src Source, opts LoadOptions) (*Store, error) {
	if opts.NumClasses <= 0 {
		return nil, fmt.Errorf("num classes must be positive, got %d", opts.NumClasses)
	}
	keep := opts.Partition
	if keep == nil {
		keep = SceneFiles()
	}

	all, err := src.SceneNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("list scenes: %w", err)
	}
	names := make([]string, 0, len(all))
	for _, n := range all {
		if keep(n) {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	if len(names) == 0 {
		return nil, fmt.Errorf("%w (%d candidates)", ErrNotFound, len(all))
	}

	st := &Store{
		scenes:     make([]*Scene, 0, len(names)),
		counts:     make([]int, 0, len(names)),
		numClasses: opts.NumClasses,
		hist:       classweight.NewHistogram(opts.NumClasses),
	}
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rows, err := src.ReadScene(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("read scene %s: %w", name, err)
		}
		sc, err := FromRows(name, rows, opts.NumClasses)
		if err != nil {
			return nil, err
		}
		if err := st.hist.Add(sc.Labels); err != nil {
			return nil, fmt.Errorf("scene %s: %w", name, err)
		}
		st.scenes = append(st.scenes, sc)
		st.counts = append(st.counts, sc.Len())
		st.total += sc.Len()
		diagf("loaded %s: %d points, bounds min=%v max=%v", name, sc.Len(), sc.Bounds.Min, sc.Bounds.Max)
	}
	st.weights = classweight.Compute(st.hist)

	diagf("loaded %d scenes, %d points, histogram=%v weights=%v", len(st.scenes), st.total, st.hist, st.weights)
	return st, nil
}

// FromRows converts a persisted (N, >=5) array into a Scene.
func FromRows(name string, rows mat.Matrix, numClasses int) (*Scene, error) {
	if rows == nil {
		return nil, fmt.Errorf("scene %s: %w", name, ErrEmptyScene)
	}
	r, c := rows.Dims()
	if c < MinColumns {
		return nil, fmt.Errorf("scene %s: %w: %d columns", name, ErrBadShape, c)
	}
	if r == 0 {
		return nil, fmt.Errorf("scene %s: %w", name, ErrEmptyScene)
	}

	sc := &Scene{
		Name:   name,
		Points: make([]Point, r),
		Labels: make([]int, r),
	}
	for i := 0; i < r; i++ {
		sc.Points[i] = Point{
			X:         rows.At(i, ColX),
			Y:         rows.At(i, ColY),
			Z:         rows.At(i, ColZ),
			Intensity: rows.At(i, ColIntensity),
		}
		v := rows.At(i, ColLabel)
		if v != math.Trunc(v) || v < 0 || v >= float64(numClasses) {
			return nil, fmt.Errorf("scene %s: %w: value %v at row %d (classes=%d)",
				name, ErrLabelOutOfRange, v, i, numClasses)
		}
		sc.Labels[i] = int(v)
	}
	sc.Bounds = ComputeBounds(sc.Points)
	return sc, nil
}

// Len returns the number of scenes.
func (s *Store) Len() int { return len(s.scenes) }

// Scene returns scene i.
func (s *Store) Scene(i int) *Scene { return s.scenes[i] }

// Scenes returns all scenes in load order. The slice must not be modified.
func (s *Store) Scenes() []*Scene { return s.scenes }

// Names returns the scene names in load order.
func (s *Store) Names() []string {
	names := make([]string, len(s.scenes))
	for i, sc := range s.scenes {
		names[i] = sc.Name
	}
	return names
}

// PointCounts returns the number of points per scene, in load order.
func (s *Store) PointCounts() []int {
	out := make([]int, len(s.counts))
	copy(out, s.counts)
	return out
}

// TotalPoints returns the number of points across all scenes.
func (s *Store) TotalPoints() int { return s.total }

// NumClasses returns the size of the label space.
func (s *Store) NumClasses() int { return s.numClasses }

// Histogram returns a copy of the aggregate label histogram.
func (s *Store) Histogram() classweight.Histogram {
	out := make(classweight.Histogram, len(s.hist))
	copy(out, s.hist)
	return out
}

// Weights returns a copy of the class weight vector.
func (s *Store) Weights() classweight.Weights {
	out := make(classweight.Weights, len(s.weights))
	copy(out, s.weights)
	return out
}

// Weight returns the weight of a single label.
func (s *Store) Weight(label int) float64 { return s.weights[label] }
