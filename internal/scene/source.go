package scene

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/sbinet/npyio"
	"gonum.org/v1/gonum/mat"

	"github.com/KeyueZhu/XenomatiX/internal/fsutil"
)

// Source enumerates and reads persisted scene arrays.
type Source interface {
	// SceneNames lists every scene the source holds, in any order.
	SceneNames(ctx context.Context) ([]string, error)
	// ReadScene returns the full (N, >=5) array for name.
	ReadScene(ctx context.Context, name string) (*mat.Dense, error)
}

// DirSource reads one .npy file per scene from a directory.
type DirSource struct {
	FS  fsutil.FileSystem
	Dir string
}

// NewDirSource returns a DirSource over dir on the host filesystem.
func NewDirSource(dir string) *DirSource {
	return &DirSource{FS: fsutil.OSFileSystem{}, Dir: dir}
}

// SceneNames lists the .npy files in the directory.
func (d *DirSource) SceneNames(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	files, err := d.FS.ReadDir(d.Dir)
	if err != nil {
		return nil, fmt.Errorf("list scene directory %s: %w", d.Dir, err)
	}
	names := files[:0]
	for _, f := range files {
		if strings.HasSuffix(f, ".npy") {
			names = append(names, f)
		}
	}
	return names, nil
}

// ReadScene decodes the named .npy file.
func (d *DirSource) ReadScene(ctx context.Context, name string) (*mat.Dense, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := filepath.Join(d.Dir, name)
	f, err := d.FS.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open scene %s: %w", path, err)
	}
	defer f.Close()

	m, err := DecodeNPY(f)
	if err != nil {
		return nil, fmt.Errorf("decode scene %s: %w", path, err)
	}
	tracef("read %s: %d rows", name, rowsOf(m))
	return m, nil
}

// DecodeNPY reads a 2-D float32 or float64 .npy array into a dense matrix.
// Fortran-ordered arrays are transposed into row-major order.
func DecodeNPY(r io.Reader) (*mat.Dense, error) {
	nr, err := npyio.NewReader(r)
	if err != nil {
		return nil, err
	}
	shape := nr.Header.Descr.Shape
	if len(shape) != 2 {
		return nil, fmt.Errorf("%w: want 2 dimensions, got shape %v", ErrBadShape, shape)
	}
	rows, cols := shape[0], shape[1]

	var data []float64
	switch nr.Header.Descr.Type {
	case "<f8", "f8", "float64":
		data = make([]float64, rows*cols)
		if err := nr.Read(&data); err != nil {
			return nil, err
		}
	case "<f4", "f4", "float32":
		raw := make([]float32, rows*cols)
		if err := nr.Read(&raw); err != nil {
			return nil, err
		}
		data = make([]float64, len(raw))
		for i, v := range raw {
			data[i] = float64(v)
		}
	default:
		return nil, fmt.Errorf("unsupported dtype %q", nr.Header.Descr.Type)
	}

	if rows == 0 || cols == 0 {
		// gonum refuses zero-sized matrices; report the shape instead.
		if cols < MinColumns {
			return nil, fmt.Errorf("%w: %d columns", ErrBadShape, cols)
		}
		return nil, ErrEmptyScene
	}

	if nr.Header.Descr.Fortran {
		m := mat.NewDense(cols, rows, data)
		return mat.DenseCopyOf(m.T()), nil
	}
	return mat.NewDense(rows, cols, data), nil
}

func rowsOf(m *mat.Dense) int {
	r, _ := m.Dims()
	return r
}
