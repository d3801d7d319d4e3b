package report

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/KeyueZhu/XenomatiX/internal/classweight"
	"github.com/KeyueZhu/XenomatiX/internal/tiler"
)

var viridis = []string{"#440154", "#482777", "#3e4989", "#31688e", "#26828e", "#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725"}

// RenderTileGrid writes an HTML scatter of the tile centres of one scene,
// coloured by the number of batches each tile produced.
func RenderTileGrid(w io.Writer, name string, tiles *tiler.SceneTiles) error {
	type cellKey struct{ ix, iy int }
	perCell := map[cellKey]int{}
	var order []tiler.Cell
	for _, c := range tiles.Cells {
		k := cellKey{c.IX, c.IY}
		if perCell[k] == 0 {
			order = append(order, c)
		}
		perCell[k]++
	}

	data := make([]opts.ScatterData, 0, len(order))
	maxBatches := 0
	for _, c := range order {
		n := perCell[cellKey{c.IX, c.IY}]
		maxBatches = max(maxBatches, n)
		x, y := c.Center()
		data = append(data, opts.ScatterData{Value: []interface{}{x, y, n}})
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Scene tiles", Width: "900px", Height: "900px"}),
		charts.WithTitleOpts(opts.Title{Title: name, Subtitle: fmt.Sprintf("tiles=%d cells=%d block_points=%d", tiles.NumTiles(), len(order), tiles.BlockPoints())}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "X (m)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Y (m)", NameLocation: "middle", NameGap: 30}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        float32(maxBatches),
			Dimension:  "2",
			InRange:    &opts.VisualMapInRange{Color: viridis},
		}),
	)
	scatter.AddSeries("tiles", data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 8}))

	page := components.NewPage()
	page.AddCharts(scatter)
	return page.Render(w)
}

// RenderClassWeights writes an HTML page with bar charts of the label
// histogram and the derived class weights.
func RenderClassWeights(w io.Writer, hist classweight.Histogram, weights classweight.Weights) error {
	if len(hist) != len(weights) {
		return fmt.Errorf("histogram has %d classes, weights %d", len(hist), len(weights))
	}
	names := classNames(len(hist))

	counts := make([]opts.BarData, len(hist))
	for i, c := range hist {
		counts[i] = opts.BarData{Value: c}
	}
	ws := make([]opts.BarData, len(weights))
	for i, v := range weights {
		ws[i] = opts.BarData{Value: v}
	}

	countBar := charts.NewBar()
	countBar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "480px"}),
		charts.WithTitleOpts(opts.Title{Title: "Label histogram", Subtitle: fmt.Sprintf("points=%d", hist.Total())}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	countBar.SetXAxis(names).
		AddSeries("points", counts,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)

	weightBar := charts.NewBar()
	weightBar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "480px"}),
		charts.WithTitleOpts(opts.Title{Title: "Class weights", Subtitle: "(max/count)^(1/3)"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	weightBar.SetXAxis(names).
		AddSeries("weight", ws,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)

	page := components.NewPage()
	page.AddCharts(countBar, weightBar)
	return page.Render(w)
}
