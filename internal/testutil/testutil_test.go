package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KeyueZhu/XenomatiX/internal/fsutil"
)

func TestAssertNoError(t *testing.T) {
	t.Parallel()

	// Verify nil error doesn't cause issues
	AssertNoError(t, nil)
}

func TestUniformRows(t *testing.T) {
	t.Parallel()

	m := UniformRows(NewRand(1), 500, 100, 50, 4)
	r, c := m.Dims()
	require.Equal(t, 500, r)
	require.Equal(t, 5, c)
	for i := 0; i < r; i++ {
		x, y := m.At(i, 0), m.At(i, 1)
		if x < 0 || x > 100 || y < 0 || y > 50 {
			t.Fatalf("row %d out of extent: (%v, %v)", i, x, y)
		}
		assert.Equal(t, float64(i%4), m.At(i, 4))
	}
}

func TestUniformRows_Deterministic(t *testing.T) {
	t.Parallel()

	a := UniformRows(NewRand(7), 10, 1, 1, 2)
	b := UniformRows(NewRand(7), 10, 1, 1, 2)
	assert.Equal(t, a.RawMatrix().Data, b.RawMatrix().Data)
}

func TestGridRows(t *testing.T) {
	t.Parallel()

	m := GridRows(3, 2)
	r, _ := m.Dims()
	require.Equal(t, 6, r)
	assert.Equal(t, []float64{0.5, 0.5, 1, 0.5, 0}, m.RawRowView(0))
	assert.Equal(t, []float64{2.5, 1.5, 1, 0.5, 0}, m.RawRowView(5))
}

func TestWriteNPY(t *testing.T) {
	t.Parallel()

	fsys := fsutil.NewMemoryFileSystem()
	WriteNPY(t, fsys, "/scenes/Scene_1_frame_1.npy", GridRows(2, 2))

	data, err := fsys.ReadFile("/scenes/Scene_1_frame_1.npy")
	require.NoError(t, err)
	assert.Equal(t, "\x93NUMPY", string(data[:6]))
}

func TestMapSource(t *testing.T) {
	t.Parallel()

	src := MapSource{"b": GridRows(1, 1), "a": GridRows(1, 1)}
	names, err := src.SceneNames(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, names)

	_, err = src.ReadScene(context.Background(), "missing")
	AssertError(t, err)
}
