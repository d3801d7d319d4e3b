package report

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KeyueZhu/XenomatiX/internal/classweight"
	"github.com/KeyueZhu/XenomatiX/internal/scene"
	"github.com/KeyueZhu/XenomatiX/internal/testutil"
	"github.com/KeyueZhu/XenomatiX/internal/tiler"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

func TestWriteClassDistribution(t *testing.T) {
	hist := classweight.Histogram{800, 100, 0, 50}
	var buf bytes.Buffer
	require.NoError(t, WriteClassDistribution(&buf, hist, classweight.Compute(hist)))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), pngMagic), "expected PNG output")
}

func TestWriteClassDistribution_Mismatch(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, WriteClassDistribution(&buf, classweight.Histogram{1, 2}, classweight.Weights{1}))
	assert.Error(t, WriteClassDistribution(&buf, nil, nil))
}

func TestPlotClassDistribution_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "classes.png")
	hist := classweight.Histogram{10, 20}
	require.NoError(t, PlotClassDistribution(hist, classweight.Compute(hist), path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, pngMagic))
}

func TestRenderClassWeights(t *testing.T) {
	hist := classweight.Histogram{8, 1}
	var buf bytes.Buffer
	require.NoError(t, RenderClassWeights(&buf, hist, classweight.Compute(hist)))

	html := buf.String()
	assert.Contains(t, html, "Label histogram")
	assert.Contains(t, html, "Class weights")

	assert.Error(t, RenderClassWeights(&buf, hist, classweight.Weights{1}))
}

func TestRenderTileGrid(t *testing.T) {
	rng := testutil.NewRand(4)
	st, err := scene.Load(context.Background(), testutil.MapSource{
		"Scene_1.npy": testutil.UniformRows(rng, 600, 20, 20, 2),
	}, scene.LoadOptions{NumClasses: 2})
	require.NoError(t, err)
	tl, err := tiler.New(st, tiler.Options{BlockPoints: 64, BlockSize: 10, Stride: 10})
	require.NoError(t, err)
	tiles, err := tl.TileScene(testutil.NewRand(1), 0)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, RenderTileGrid(&buf, "Scene_1", tiles))
	html := buf.String()
	assert.Contains(t, html, "Scene_1")
	assert.True(t, strings.Contains(html, "cells=4"), "expected four cells in subtitle")
}
