package tiler

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/sbinet/npyio"
	"gonum.org/v1/gonum/mat"

	"github.com/KeyueZhu/XenomatiX/internal/fsutil"
)

// Export suffixes of the four arrays written per scene.
const (
	DataSuffix   = "_data.npy"
	LabelSuffix  = "_label.npy"
	WeightSuffix = "_weight.npy"
	IndexSuffix  = "_index.npy"
)

// Export writes tiles as four .npy files under dir:
//
//	<name>_data.npy    (T*B, 7) float64
//	<name>_label.npy   (T*B,)   int64
//	<name>_weight.npy  (T, B)   float64
//	<name>_index.npy   (T*B,)   int64
//
// Labels and indices are flattened batch-major; reshape to (T, B) on read.
func Export(fsys fsutil.FileSystem, dir, name string, tiles *SceneTiles) error {
	if tiles == nil || tiles.NumTiles() == 0 {
		return fmt.Errorf("export %s: %w", name, ErrEmptyTileGrid)
	}
	if err := fsys.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}

	t, b := tiles.NumTiles(), tiles.BlockPoints()
	arrays := []struct {
		suffix string
		value  interface{}
	}{
		{DataSuffix, mat.NewDense(t*b, Channels, tiles.data)},
		{LabelSuffix, toInt64(tiles.labels)},
		{WeightSuffix, mat.NewDense(t, b, tiles.weights)},
		{IndexSuffix, toInt64(tiles.index)},
	}
	for _, a := range arrays {
		path := filepath.Join(dir, name+a.suffix)
		if err := writeNPY(fsys, path, a.value); err != nil {
			return fmt.Errorf("export %s: %w", path, err)
		}
	}
	diagf("exported %s: %d tiles of %d to %s", name, t, b, dir)
	return nil
}

func writeNPY(fsys fsutil.FileSystem, path string, v interface{}) (err error) {
	w, err := fsys.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := w.Close(); err == nil {
			err = cerr
		}
	}()
	return npyio.Write(w, v)
}

// ReadExportedData reads a <name>_data.npy array back into a dense matrix.
func ReadExportedData(r io.Reader) (*mat.Dense, error) {
	var m mat.Dense
	if err := npyio.Read(r, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func toInt64(v []int) []int64 {
	out := make([]int64, len(v))
	for i, x := range v {
		out[i] = int64(x)
	}
	return out
}
