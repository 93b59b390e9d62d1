package plotting

import (
	"fmt"
	"io"
	"math"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/banshee-data/lego-robot/internal/robot/motion"
)

// Report writes an HTML page with a trajectory scatter and, when
// cylinders is non-empty, a scatter of every scan's detections in the
// scanner frame. The third value of each cylinder point is its scan index.
func Report(w io.Writer, title string, poses []motion.Pose, cylinders [][]r2.Vec) error {
	page := components.NewPage()
	page.PageTitle = title

	if len(poses) > 0 {
		page.AddCharts(trajectoryChart(poses))
	}
	if countPoints(cylinders) > 0 {
		page.AddCharts(cylinderChart(cylinders))
	}

	if err := page.Render(w); err != nil {
		return fmt.Errorf("render error: %w", err)
	}
	return nil
}

func trajectoryChart(poses []motion.Pose) *charts.Scatter {
	xs := make([]float64, len(poses))
	ys := make([]float64, len(poses))
	data := make([]opts.ScatterData, len(poses))
	for i, p := range poses {
		xs[i], ys[i] = p.X, p.Y
		data[i] = opts.ScatterData{Value: []interface{}{p.X, p.Y, i}}
	}
	xMin, xMax, yMin, yMax := bounds(xs, ys)

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "900px", Height: "900px"}),
		charts.WithTitleOpts(opts.Title{Title: "Trajectory", Subtitle: fmt.Sprintf("poses=%d", len(poses))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: xMin, Max: xMax, Name: "X (mm)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: yMin, Max: yMax, Name: "Y (mm)", NameLocation: "middle", NameGap: 40}),
	)
	scatter.AddSeries("poses", data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 4}))
	return scatter
}

func cylinderChart(cylinders [][]r2.Vec) *charts.Scatter {
	n := countPoints(cylinders)
	xs := make([]float64, 0, n)
	ys := make([]float64, 0, n)
	data := make([]opts.ScatterData, 0, n)
	for scanIdx, points := range cylinders {
		for _, p := range points {
			xs = append(xs, p.X)
			ys = append(ys, p.Y)
			data = append(data, opts.ScatterData{Value: []interface{}{p.X, p.Y, scanIdx}})
		}
	}
	// Scanner frame: keep the origin in view and use a square extent.
	pad := math.Max(math.Max(floats.Max(absAll(xs)), floats.Max(absAll(ys)))*1.1, 1)

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "900px", Height: "900px"}),
		charts.WithTitleOpts(opts.Title{Title: "Detected cylinders", Subtitle: fmt.Sprintf("scans=%d cylinders=%d", len(cylinders), n)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: -pad, Max: pad, Name: "X (mm)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: -pad, Max: pad, Name: "Y (mm)", NameLocation: "middle", NameGap: 40}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Dimension:  "2",
			Min:        0,
			Max:        float32(max(len(cylinders)-1, 1)),
			InRange:    &opts.VisualMapInRange{Color: []string{"#440154", "#3e4989", "#26828e", "#35b779", "#fde725"}},
		}),
	)
	scatter.AddSeries("cylinders", data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 6}))
	return scatter
}

// bounds returns a padded bounding box of the points. Degenerate extents
// are widened so the axis never collapses.
func bounds(xs, ys []float64) (xMin, xMax, yMin, yMax float64) {
	xMin, xMax = floats.Min(xs), floats.Max(xs)
	yMin, yMax = floats.Min(ys), floats.Max(ys)
	padX := math.Max((xMax-xMin)*0.05, 1)
	padY := math.Max((yMax-yMin)*0.05, 1)
	return math.Floor(xMin - padX), math.Ceil(xMax + padX), math.Floor(yMin - padY), math.Ceil(yMax + padY)
}

func absAll(v []float64) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = math.Abs(x)
	}
	return out
}

func countPoints(scans [][]r2.Vec) int {
	n := 0
	for _, s := range scans {
		n += len(s)
	}
	return n
}
