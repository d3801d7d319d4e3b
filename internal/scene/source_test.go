package scene

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/sbinet/npyio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KeyueZhu/XenomatiX/internal/fsutil"
	"github.com/KeyueZhu/XenomatiX/internal/testutil"
)

func TestDirSource_RoundTrip(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	rows := testutil.Rows(
		[]float64{1, 2, 3, 0.5, 1},
		[]float64{4, 5, 6, 0.25, 0},
	)
	testutil.WriteNPY(t, fsys, "/scenes/Scene_1_frame_1.npy", rows)
	fsys.WriteFile("/scenes/notes.txt", []byte("ignored"))

	src := &DirSource{FS: fsys, Dir: "/scenes"}
	names, err := src.SceneNames(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Scene_1_frame_1.npy"}, names)

	got, err := src.ReadScene(context.Background(), names[0])
	require.NoError(t, err)
	if diff := cmp.Diff(rows.RawMatrix().Data, got.RawMatrix().Data); diff != "" {
		t.Errorf("decoded rows mismatch (-want +got):\n%s", diff)
	}
}

func TestDirSource_OSFileSystem(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteNPY(t, fsutil.OSFileSystem{}, dir+"/Scene_3_frame_1.npy", testutil.GridRows(2, 2))

	src := NewDirSource(dir)
	got, err := src.ReadScene(context.Background(), "Scene_3_frame_1.npy")
	require.NoError(t, err)
	r, c := got.Dims()
	assert.Equal(t, 4, r)
	assert.Equal(t, 5, c)
}

func TestDirSource_Errors(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	src := &DirSource{FS: fsys, Dir: "/missing"}

	_, err := src.SceneNames(context.Background())
	assert.Error(t, err)

	_, err = src.ReadScene(context.Background(), "Scene_1.npy")
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = src.ReadScene(ctx, "Scene_1.npy")
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestDecodeNPY_RejectsOneDimensional(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	w, err := fsys.Create("/v.npy")
	require.NoError(t, err)
	require.NoError(t, npyio.Write(w, []float64{1, 2, 3}))
	require.NoError(t, w.Close())

	f, err := fsys.Open("/v.npy")
	require.NoError(t, err)
	defer f.Close()

	_, err = DecodeNPY(f)
	assert.True(t, errors.Is(err, ErrBadShape), "got %v", err)
}
