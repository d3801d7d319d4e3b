package tiler

import (
	"errors"
	"testing"

	"github.com/sbinet/npyio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/KeyueZhu/XenomatiX/internal/fsutil"
	"github.com/KeyueZhu/XenomatiX/internal/testutil"
)

func TestExport(t *testing.T) {
	st := loadStore(t, testutil.MapSource{"Scene_1.npy": latticeRows(20)}, 2)
	tl, err := New(st, Options{BlockPoints: 128, BlockSize: 10, Stride: 10})
	require.NoError(t, err)
	tiles, err := tl.TileScene(testutil.NewRand(1), 0)
	require.NoError(t, err)

	fsys := fsutil.NewMemoryFileSystem()
	require.NoError(t, Export(fsys, "/out", "Scene_1", tiles))

	for _, suffix := range []string{DataSuffix, LabelSuffix, WeightSuffix, IndexSuffix} {
		assert.True(t, fsys.Exists("/out/Scene_1"+suffix), "missing %s", suffix)
	}

	f, err := fsys.Open("/out/Scene_1" + DataSuffix)
	require.NoError(t, err)
	data, err := ReadExportedData(f)
	f.Close()
	require.NoError(t, err)
	r, c := data.Dims()
	assert.Equal(t, 4*128, r)
	assert.Equal(t, Channels, c)
	assert.True(t, mat.Equal(data.Slice(128, 256, 0, Channels), tiles.Data[1]))

	f, err = fsys.Open("/out/Scene_1" + WeightSuffix)
	require.NoError(t, err)
	var w mat.Dense
	require.NoError(t, npyio.Read(f, &w))
	f.Close()
	wr, wc := w.Dims()
	assert.Equal(t, 4, wr)
	assert.Equal(t, 128, wc)

	f, err = fsys.Open("/out/Scene_1" + IndexSuffix)
	require.NoError(t, err)
	idx := make([]int64, 4*128)
	require.NoError(t, npyio.Read(f, &idx))
	f.Close()
	require.Len(t, idx, 4*128)
	assert.Equal(t, int64(tiles.Index[3][5]), idx[3*128+5])
}

func TestExport_Empty(t *testing.T) {
	err := Export(fsutil.NewMemoryFileSystem(), "/out", "none", &SceneTiles{})
	assert.True(t, errors.Is(err, ErrEmptyTileGrid))
}
