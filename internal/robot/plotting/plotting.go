// Package plotting renders odometry and scan data as PNG figures
// (gonum/plot) and as an interactive HTML report (go-echarts).
package plotting

import (
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/banshee-data/lego-robot/internal/fsutil"
	"github.com/banshee-data/lego-robot/internal/monitoring"
	"github.com/banshee-data/lego-robot/internal/robot/logfile"
	"github.com/banshee-data/lego-robot/internal/robot/motion"
	"github.com/banshee-data/lego-robot/internal/robot/scan"
)

var logf = monitoring.Component("plotting")

// Default figure size for wide scan and tick plots.
const (
	DefaultWidth  = 14 * vg.Inch
	DefaultHeight = 6 * vg.Inch
)

var (
	poseColor      = color.RGBA{B: 255, A: 255}
	referenceColor = color.RGBA{R: 200, G: 120, A: 255}
	cylinderColor  = color.RGBA{R: 220, A: 255}
)

// Trajectory plots filtered poses as blue dots. Reference positions, when
// given, are drawn as crosses.
func Trajectory(poses []motion.Pose, reference []logfile.ReferencePosition) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = "Trajectory"
	p.X.Label.Text = "X (mm)"
	p.Y.Label.Text = "Y (mm)"

	if len(poses) > 0 {
		pts := make(plotter.XYs, len(poses))
		for i, pose := range poses {
			pts[i] = plotter.XY{X: pose.X, Y: pose.Y}
		}
		sc, err := plotter.NewScatter(pts)
		if err != nil {
			return nil, fmt.Errorf("trajectory: %w", err)
		}
		sc.GlyphStyle.Color = poseColor
		sc.GlyphStyle.Shape = draw.CircleGlyph{}
		sc.GlyphStyle.Radius = vg.Points(1.5)
		p.Add(sc)
		p.Legend.Add("filtered", sc)
	}

	if len(reference) > 0 {
		pts := make(plotter.XYs, len(reference))
		for i, r := range reference {
			pts[i] = plotter.XY{X: float64(r.X), Y: float64(r.Y)}
		}
		sc, err := plotter.NewScatter(pts)
		if err != nil {
			return nil, fmt.Errorf("reference: %w", err)
		}
		sc.GlyphStyle.Color = referenceColor
		sc.GlyphStyle.Shape = draw.CrossGlyph{}
		p.Add(sc)
		p.Legend.Add("reference", sc)
	}

	p.Add(plotter.NewGrid())
	topRightLegend(p)
	return p, nil
}

// Scan plots one range scan against beam index, its derivative, and the
// cylinders found in it.
func Scan(s scan.Scan, d scan.Derivative, cylinders []scan.Cylinder) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Scan (%d beams, %d cylinders)", len(s), len(cylinders))
	p.X.Label.Text = "Beam"
	p.Y.Label.Text = "Range (mm)"

	if len(s) > 0 {
		if err := plotutil.AddLines(p,
			"scan", indexed(s),
			"derivative", indexed(d),
		); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
	}

	if len(cylinders) > 0 {
		pts := make(plotter.XYs, len(cylinders))
		for i, c := range cylinders {
			pts[i] = plotter.XY{X: c.Ray, Y: c.Depth}
		}
		sc, err := plotter.NewScatter(pts)
		if err != nil {
			return nil, fmt.Errorf("cylinders: %w", err)
		}
		sc.GlyphStyle.Color = cylinderColor
		sc.GlyphStyle.Shape = draw.CircleGlyph{}
		sc.GlyphStyle.Radius = vg.Points(4)
		p.Add(sc)
		p.Legend.Add("cylinders", sc)
	}

	topRightLegend(p)
	return p, nil
}

// Increments plots per-step left and right tick increments.
func Increments(ticks []motion.Ticks) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = "Motor increments"
	p.X.Label.Text = "Step"
	p.Y.Label.Text = "Ticks"

	if err := addTickLines(p, nil, ticks); err != nil {
		return nil, fmt.Errorf("increments: %w", err)
	}
	topRightLegend(p)
	return p, nil
}

// MotorTicks plots the absolute left and right odometer counters: start,
// then start advanced by each increment in turn.
func MotorTicks(start motion.Ticks, ticks []motion.Ticks) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = "Motor ticks"
	p.X.Label.Text = "Step"
	p.Y.Label.Text = "Ticks"

	if err := addTickLines(p, &start, ticks); err != nil {
		return nil, fmt.Errorf("motor ticks: %w", err)
	}
	topRightLegend(p)
	return p, nil
}

// SavePNG renders p as PNG into name on fsys.
func SavePNG(fsys fsutil.FileSystem, name string, p *plot.Plot, w, h vg.Length) error {
	wt, err := p.WriterTo(w, h, "png")
	if err != nil {
		return fmt.Errorf("failed to render %s: %w", name, err)
	}

	f, err := fsutil.CreateAll(fsys, name)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", name, err)
	}
	if _, err := wt.WriteTo(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", name, err)
	}

	logf("wrote %s", name)
	return nil
}

// addTickLines draws ticks as increments, or as counters from *start when
// start is set.
func addTickLines(p *plot.Plot, start *motion.Ticks, ticks []motion.Ticks) error {
	if len(ticks) == 0 && start == nil {
		return nil
	}
	var left, right plotter.XYs
	add := func(t motion.Ticks) {
		left = append(left, plotter.XY{X: float64(len(left)), Y: float64(t.Left)})
		right = append(right, plotter.XY{X: float64(len(right)), Y: float64(t.Right)})
	}
	if start == nil {
		for _, t := range ticks {
			add(t)
		}
	} else {
		c := *start
		add(c)
		for _, t := range ticks {
			c.Left += t.Left
			c.Right += t.Right
			add(c)
		}
	}
	return plotutil.AddLines(p, "left", left, "right", right)
}

func indexed(values []float64) plotter.XYs {
	pts := make(plotter.XYs, len(values))
	for i, v := range values {
		pts[i] = plotter.XY{X: float64(i), Y: v}
	}
	return pts
}

func topRightLegend(p *plot.Plot) {
	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10
}
