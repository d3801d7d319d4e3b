package tiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KeyueZhu/XenomatiX/internal/testutil"
)

func TestVoteAccumulator_Labels(t *testing.T) {
	v := NewVoteAccumulator(4, 3)
	require.NoError(t, v.Add([]int{0, 0, 1, 1, 2}, []int{2, 2, 1, 0, 1}))
	require.NoError(t, v.Add([]int{0, 1}, []int{1, 1}))

	// point 1 has votes {0:1, 1:2}; point 3 has none
	assert.Equal(t, []int{2, 1, 1, -1}, v.Labels())
	assert.Equal(t, 0.75, v.Coverage())
}

func TestVoteAccumulator_TiesGoToLowerClass(t *testing.T) {
	v := NewVoteAccumulator(1, 3)
	require.NoError(t, v.Add([]int{0, 0}, []int{2, 1}))
	assert.Equal(t, []int{1}, v.Labels())
}

func TestVoteAccumulator_Errors(t *testing.T) {
	v := NewVoteAccumulator(2, 2)
	assert.Error(t, v.Add([]int{0}, []int{0, 1}))
	assert.Error(t, v.Add([]int{2}, []int{0}))
	assert.Error(t, v.Add([]int{0}, []int{2}))
}

func TestVoteAccumulator_RecoversGroundTruth(t *testing.T) {
	st := loadStore(t, testutil.MapSource{"Scene_1.npy": latticeRows(20)}, 2)
	tl, err := New(st, Options{BlockPoints: 64, BlockSize: 6, Stride: 4, Padding: 0.001})
	require.NoError(t, err)
	tiles, err := tl.TileScene(testutil.NewRand(6), 0)
	require.NoError(t, err)

	// A perfect model predicts the ground-truth label for every row.
	v := NewVoteAccumulator(st.Scene(0).Len(), 2)
	require.NoError(t, v.AddTiles(tiles, tiles.Labels))

	assert.Equal(t, 1.0, v.Coverage())
	assert.Equal(t, st.Scene(0).Labels, v.Labels())

	assert.Error(t, v.AddTiles(tiles, tiles.Labels[:1]))
}
