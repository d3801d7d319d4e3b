// Package report renders dataset summaries: class distribution plots as
// PNG and interactive tile and class weight charts as HTML.
package report

import (
	"fmt"
	"image/color"
	"io"
	"os"
	"strconv"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/KeyueZhu/XenomatiX/internal/classweight"
)

var (
	countColor  = color.RGBA{R: 49, G: 104, B: 142, A: 255}
	weightColor = color.RGBA{R: 53, G: 183, B: 121, A: 255}
)

// PlotClassDistribution writes a PNG at path with the label histogram and
// the class weights side by side.
func PlotClassDistribution(hist classweight.Histogram, weights classweight.Weights, path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return WriteClassDistribution(f, hist, weights)
}

// WriteClassDistribution renders the class distribution PNG to w.
func WriteClassDistribution(w io.Writer, hist classweight.Histogram, weights classweight.Weights) error {
	if len(hist) == 0 || len(hist) != len(weights) {
		return fmt.Errorf("histogram has %d classes, weights %d", len(hist), len(weights))
	}
	names := classNames(len(hist))

	counts := make(plotter.Values, len(hist))
	for i, c := range hist {
		counts[i] = float64(c)
	}
	pCounts, err := barPlot("Label histogram", "Points", names, counts, countColor)
	if err != nil {
		return err
	}
	pWeights, err := barPlot("Class weights", "Weight", names, plotter.Values(weights), weightColor)
	if err != nil {
		return err
	}

	img := vgimg.New(14*vg.Inch, 6*vg.Inch)
	dc := draw.New(img)
	tiles := draw.Tiles{Rows: 1, Cols: 2, PadX: vg.Millimeter * 6, PadTop: vg.Millimeter * 2, PadBottom: vg.Millimeter * 2}
	plots := [][]*plot.Plot{{pCounts, pWeights}}
	canvases := plot.Align(plots, tiles, dc)
	for j, p := range plots[0] {
		p.Draw(canvases[0][j])
	}

	png := vgimg.PngCanvas{Canvas: img}
	if _, err := png.WriteTo(w); err != nil {
		return fmt.Errorf("write png: %w", err)
	}
	return nil
}

func barPlot(title, yLabel string, names []string, vs plotter.Values, c color.Color) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Class"
	p.Y.Label.Text = yLabel

	bars, err := plotter.NewBarChart(vs, vg.Points(20))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", title, err)
	}
	bars.Color = c
	bars.LineStyle.Width = vg.Length(0)
	p.Add(bars)
	p.NominalX(names...)
	return p, nil
}

func classNames(n int) []string {
	names := make([]string, n)
	for i := range names {
		names[i] = strconv.Itoa(i)
	}
	return names
}
