// Package plot renders the current clustering state as self-contained
// HTML charts: a scatter of points grouped by centroid and a bar chart of
// cluster sizes.
package plot

import (
	"fmt"
	"io"
	"strconv"

	"github.com/AvraamMavridis/randomcolor"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"web/kmeanslab/kmeans"
)

// ScatterOptions tunes the scatter chart.
type ScatterOptions struct {
	// MembershipLines draws a thin grey segment from each assigned point
	// to its centroid.
	MembershipLines bool
}

// RenderScatter writes a scatter chart of the engine state to w: one
// series per cluster in a distinct color, centroids as a black series,
// optional membership lines underneath.
func RenderScatter(w io.Writer, e *kmeans.Engine, xName, yName string, options ScatterOptions) error {
	es := charts.NewScatter()
	es.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Stepwise k-means - Scatter Plot"}),
		charts.WithLegendOpts(
			opts.Legend{
				Show: true,
				Top:  "5%",
			},
		),
		charts.WithToolboxOpts(opts.Toolbox{
			Show: true,
			Feature: &opts.ToolBoxFeature{
				SaveAsImage: &opts.ToolBoxFeatureSaveAsImage{
					Show:  true,
					Type:  "png",
					Title: "k-means_scatter",
				},
			},
		}),
		charts.WithDataZoomOpts(
			opts.DataZoom{
				Type:       "inside",
				XAxisIndex: 0,
			},
			opts.DataZoom{
				Type:       "inside",
				YAxisIndex: 0,
			},
		),
		charts.WithTooltipOpts(opts.Tooltip{
			Show:      true,
			Formatter: "{a}: {c}",
		}),
		charts.WithXAxisOpts(opts.XAxis{Name: xName, Scale: true}),
		charts.WithYAxisOpts(opts.YAxis{Name: yName, Scale: true}),
	)

	color := ""
	for i, group := range e.GroupedPoints() {
		data := make([]opts.ScatterData, 0, len(group))
		for _, p := range group {
			data = append(data, opts.ScatterData{Value: []float64{p.X, p.Y}})
		}

		name := fmt.Sprintf("Cluster %d", i+1)
		color = getNewColor(color)
		es.AddSeries(name, data, charts.WithItemStyleOpts(opts.ItemStyle{Color: color}))
	}

	var dataCentroids []opts.ScatterData
	for _, c := range e.Centroids() {
		dataCentroids = append(dataCentroids, opts.ScatterData{
			Value:      []float64{c.X, c.Y},
			Symbol:     "diamond",
			SymbolSize: 20,
		})
	}
	es.AddSeries("Centroids", dataCentroids, charts.WithItemStyleOpts(opts.ItemStyle{Color: "black"}))

	if options.MembershipLines {
		es.Overlap(membershipLines(e))
	}

	return es.Render(w)
}

// membershipLines builds one two-point line series per assigned point. The
// series share a name so the legend shows a single toggle for all of them.
func membershipLines(e *kmeans.Engine) *charts.Line {
	line := charts.NewLine()
	centroids := e.Centroids()
	for ci, group := range e.GroupedPoints() {
		c := centroids[ci]
		for _, p := range group {
			line.AddSeries("Membership lines",
				[]opts.LineData{
					{Value: []float64{p.X, p.Y}},
					{Value: []float64{c.X, c.Y}},
				},
				charts.WithLineChartOpts(opts.LineChart{ShowSymbol: false}),
				charts.WithLineStyleOpts(opts.LineStyle{Color: "#999", Width: 1, Opacity: 0.4}),
			)
		}
	}
	return line
}

// RenderSizes writes a bar chart of points per cluster to w.
func RenderSizes(w io.Writer, e *kmeans.Engine) error {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Stepwise k-means - Cluster Sizes"}),
		charts.WithToolboxOpts(opts.Toolbox{
			Show:  true,
			Right: "20%",
			Feature: &opts.ToolBoxFeature{
				SaveAsImage: &opts.ToolBoxFeatureSaveAsImage{
					Show:  true,
					Type:  "png",
					Title: "k-means_bar",
				},
				DataView: &opts.ToolBoxFeatureDataView{
					Show:  true,
					Title: "Data",
					Lang:  []string{"View", "Close", "Refresh"},
				},
			}},
		),
	)

	var items []opts.BarData
	var xAxis []string
	for i, group := range e.GroupedPoints() {
		xAxis = append(xAxis, "C"+strconv.Itoa(i+1))
		items = append(items, opts.BarData{
			Name:  "C" + strconv.Itoa(i+1),
			Value: len(group),
		})
	}

	bar.SetXAxis(xAxis).AddSeries("", items).SetSeriesOptions(
		charts.WithLabelOpts(opts.Label{
			Show:     true,
			Position: "top",
		}),
	)

	return bar.Render(w)
}

// getNewColor draws a random hex color different from the previous one.
func getNewColor(color string) string {
	res := randomcolor.GetRandomColorInHex()
	for res == color {
		res = randomcolor.GetRandomColorInHex()
	}
	return res
}
