package scene

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/KeyueZhu/XenomatiX/internal/testutil"
)

func TestLoad_SortsAndFilters(t *testing.T) {
	rng := testutil.NewRand(3)
	src := testutil.MapSource{
		"Scene_2_frame_1.npy":  testutil.UniformRows(rng, 40, 10, 10, 3),
		"Scene_1_frame_2.npy":  testutil.UniformRows(rng, 30, 10, 10, 3),
		"Scene_1_frame_1.npy":  testutil.UniformRows(rng, 20, 10, 10, 3),
		"Scene_10_frame_1.npy": testutil.UniformRows(rng, 10, 10, 10, 3),
	}

	st, err := Load(context.Background(), src, LoadOptions{Partition: HeldOut(1, SplitTest), NumClasses: 3})
	require.NoError(t, err)

	assert.Equal(t, []string{"Scene_1_frame_1.npy", "Scene_1_frame_2.npy"}, st.Names())
	assert.Equal(t, []int{20, 30}, st.PointCounts())
	assert.Equal(t, 50, st.TotalPoints())
	assert.Equal(t, 2, st.Len())
	assert.Equal(t, 3, st.NumClasses())
	assert.Equal(t, "Scene_1_frame_2.npy", st.Scene(1).Name)
	assert.Len(t, st.Scenes(), 2)
}

func TestLoad_HistogramAndWeights(t *testing.T) {
	src := testutil.MapSource{
		"Scene_1.npy": testutil.Rows(
			[]float64{0, 0, 0, 0, 0},
			[]float64{1, 0, 0, 0, 0},
			[]float64{2, 0, 0, 0, 0},
			[]float64{3, 0, 0, 0, 0},
			[]float64{4, 0, 0, 0, 0},
			[]float64{5, 0, 0, 0, 0},
			[]float64{6, 0, 0, 0, 0},
			[]float64{7, 0, 0, 0, 0},
			[]float64{8, 1, 0, 0, 1},
		),
	}
	st, err := Load(context.Background(), src, LoadOptions{NumClasses: 3})
	require.NoError(t, err)

	hist := st.Histogram()
	assert.Equal(t, int64(st.TotalPoints()), hist.Total())
	assert.Equal(t, []int64{8, 1, 0}, []int64(hist))

	w := st.Weights()
	assert.Equal(t, 1.0, w[hist.Argmax()])
	assert.InDelta(t, 2.0, w[1], 1e-12)
	assert.InDelta(t, 2.0, w[2], 1e-12)
	assert.Equal(t, w[1], st.Weight(1))
	for i, v := range w {
		if math.IsInf(v, 0) || math.IsNaN(v) {
			t.Errorf("weight[%d] not finite: %v", i, v)
		}
	}

	sc := st.Scene(0)
	assert.Equal(t, [3]float64{0, 0, 0}, sc.Bounds.Min)
	assert.Equal(t, [3]float64{8, 1, 0}, sc.Bounds.Max)
}

func TestLoad_AccessorsReturnCopies(t *testing.T) {
	src := testutil.MapSource{"Scene_1.npy": testutil.GridRows(2, 2)}
	st, err := Load(context.Background(), src, LoadOptions{NumClasses: 2})
	require.NoError(t, err)

	st.Histogram()[0] = 99
	st.Weights()[0] = 99
	st.PointCounts()[0] = 99
	assert.Equal(t, int64(4), st.Histogram()[0])
	assert.Equal(t, 1.0, st.Weights()[0])
	assert.Equal(t, 4, st.PointCounts()[0])
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		src     testutil.MapSource
		opts    LoadOptions
		wantErr error
	}{
		{
			name:    "no matching scenes",
			src:     testutil.MapSource{"Scene_2.npy": testutil.GridRows(1, 1)},
			opts:    LoadOptions{Partition: HeldOut(1, SplitTest), NumClasses: 2},
			wantErr: ErrNotFound,
		},
		{
			name:    "too few columns",
			src:     testutil.MapSource{"Scene_1.npy": mat.NewDense(2, 4, nil)},
			opts:    LoadOptions{NumClasses: 2},
			wantErr: ErrBadShape,
		},
		{
			name:    "label out of range",
			src:     testutil.MapSource{"Scene_1.npy": testutil.Rows([]float64{0, 0, 0, 0, 5})},
			opts:    LoadOptions{NumClasses: 5},
			wantErr: ErrLabelOutOfRange,
		},
		{
			name:    "negative label",
			src:     testutil.MapSource{"Scene_1.npy": testutil.Rows([]float64{0, 0, 0, 0, -1})},
			opts:    LoadOptions{NumClasses: 5},
			wantErr: ErrLabelOutOfRange,
		},
		{
			name:    "fractional label",
			src:     testutil.MapSource{"Scene_1.npy": testutil.Rows([]float64{0, 0, 0, 0, 1.5})},
			opts:    LoadOptions{NumClasses: 5},
			wantErr: ErrLabelOutOfRange,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(context.Background(), tt.src, tt.opts)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestLoad_InvalidNumClasses(t *testing.T) {
	_, err := Load(context.Background(), testutil.MapSource{}, LoadOptions{})
	assert.Error(t, err)
}

func TestFromRows_Empty(t *testing.T) {
	_, err := FromRows("Scene_1.npy", nil, 3)
	assert.True(t, errors.Is(err, ErrEmptyScene))
}

func TestFromRows_ExtraColumnsIgnored(t *testing.T) {
	sc, err := FromRows("Scene_1.npy", testutil.Rows([]float64{1, 2, 3, 4, 1, 42, 43}), 2)
	require.NoError(t, err)
	assert.Equal(t, Point{X: 1, Y: 2, Z: 3, Intensity: 4}, sc.Points[0])
	assert.Equal(t, []int{1}, sc.Labels)
}
