package tiler

import (
	"math"

	"github.com/KeyueZhu/XenomatiX/internal/scene"
)

// Cell is one square tile of the xy grid laid over a scene.
type Cell struct {
	IX, IY     int
	MinX, MinY float64
	MaxX, MaxY float64
	Size       float64
}

// Center returns the xy centre of the cell.
func (c Cell) Center() (x, y float64) {
	return c.MinX + c.Size/2, c.MinY + c.Size/2
}

// Contains reports whether (x, y) lies within the cell grown by pad.
func (c Cell) Contains(x, y, pad float64) bool {
	return x >= c.MinX-pad && x <= c.MaxX+pad && y >= c.MinY-pad && y <= c.MaxY+pad
}

// gridDim returns ceil((extent-blockSize)/stride)+1, at least 1.
func gridDim(extent, blockSize, stride float64) int {
	n := int(math.Ceil((extent-blockSize)/stride)) + 1
	if n < 1 {
		return 1
	}
	return n
}

// Grid lays tiles of side BlockSize over bounds with step Stride, row-major
// with y outer. A tile that would run past the scene maximum is shifted
// back so it ends on the maximum; every tile is exactly BlockSize wide.
func Grid(bounds scene.BoundingBox, opts Options) []Cell {
	bs, stride := opts.BlockSize, opts.Stride
	nx := gridDim(bounds.Extent(0), bs, stride)
	ny := gridDim(bounds.Extent(1), bs, stride)

	cells := make([]Cell, 0, nx*ny)
	for iy := 0; iy < ny; iy++ {
		for ix := 0; ix < nx; ix++ {
			eX := math.Min(bounds.Min[0]+float64(ix)*stride+bs, bounds.Max[0])
			eY := math.Min(bounds.Min[1]+float64(iy)*stride+bs, bounds.Max[1])
			cells = append(cells, Cell{
				IX: ix, IY: iy,
				MinX: eX - bs, MinY: eY - bs,
				MaxX: eX, MaxY: eY,
				Size: bs,
			})
		}
	}
	return cells
}
