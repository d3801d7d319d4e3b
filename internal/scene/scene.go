// Package scene loads labelled point-cloud scenes into an immutable,
// read-only store shared by the block sampler and the scene tiler.
//
// A persisted scene is an (N, >=5) float array: columns 0-2 hold x, y, z,
// column 3 intensity and column 4 the integer semantic label. Any further
// columns are ignored.
package scene

import (
	"errors"
	"math"

	"github.com/KeyueZhu/XenomatiX/internal/classweight"
)

// Column layout of a persisted scene array.
const (
	ColX = iota
	ColY
	ColZ
	ColIntensity
	ColLabel

	// MinColumns is the narrowest array accepted as a scene.
	MinColumns = ColLabel + 1
)

var (
	// ErrNotFound is returned when no scene matches the partition.
	ErrNotFound = errors.New("no scenes match partition")
	// ErrEmptyScene is returned for a scene with zero points.
	ErrEmptyScene = errors.New("scene has no points")
	// ErrBadShape is returned for arrays with fewer than MinColumns columns.
	ErrBadShape = errors.New("scene array has too few columns")
	// ErrLabelOutOfRange is returned for non-integral labels or labels
	// outside [0, NumClasses).
	ErrLabelOutOfRange = classweight.ErrLabelOutOfRange
)

// Point is a single LiDAR return.
type Point struct {
	X, Y, Z   float64
	Intensity float64
}

// BoundingBox is the axis-aligned extent of a scene over x, y, z.
type BoundingBox struct {
	Min [3]float64
	Max [3]float64
}

// ComputeBounds returns the bounding box of points. It panics on an empty
// slice; scenes are never empty.
func ComputeBounds(points []Point) BoundingBox {
	b := BoundingBox{
		Min: [3]float64{points[0].X, points[0].Y, points[0].Z},
		Max: [3]float64{points[0].X, points[0].Y, points[0].Z},
	}
	for _, p := range points[1:] {
		for axis, v := range [3]float64{p.X, p.Y, p.Z} {
			b.Min[axis] = math.Min(b.Min[axis], v)
			b.Max[axis] = math.Max(b.Max[axis], v)
		}
	}
	return b
}

// Extent returns Max-Min along axis.
func (b BoundingBox) Extent(axis int) float64 {
	return b.Max[axis] - b.Min[axis]
}

// Divisor returns the normalisation divisor for axis: the box maximum, or 1
// when the maximum is exactly zero.
func (b BoundingBox) Divisor(axis int) float64 {
	if b.Max[axis] == 0 {
		return 1
	}
	return b.Max[axis]
}

// Scene is one labelled point cloud. It is immutable once loaded.
type Scene struct {
	Name   string
	Points []Point
	Labels []int
	Bounds BoundingBox
}

// Len returns the number of points in the scene.
func (s *Scene) Len() int { return len(s.Points) }
