package scan

import (
	"context"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/spatial/r2"
)

// Extractor bundles the settings needed to turn one scan into landmark
// candidates.
type Extractor struct {
	Params   Params
	Geometry Geometry
	// CylinderOffset is added to each depth before projection (mm).
	CylinderOffset float64
}

// DefaultExtractor returns an Extractor with the Lego robot's settings.
func DefaultExtractor() Extractor {
	return Extractor{
		Params:         DefaultParams(),
		Geometry:       DefaultGeometry(),
		CylinderOffset: 90.0,
	}
}

// Result is everything extracted from a single scan.
type Result struct {
	Derivative Derivative
	Cylinders  []Cylinder
	// Points are the cylinders in the scanner's Cartesian frame, in the
	// same order as Cylinders.
	Points []r2.Vec
}

// Extract runs derivative, segmentation and projection on s.
func (e Extractor) Extract(s Scan) Result {
	d := ComputeDerivative(s, e.Params.MinDist)
	cylinders := FindCylinders(s, d, e.Params)
	return Result{
		Derivative: d,
		Cylinders:  cylinders,
		Points:     ToCartesian(cylinders, e.Geometry, e.CylinderOffset),
	}
}

// ExtractAll runs Extract over every scan using up to workers goroutines.
// Results are returned in scan order. The only error is ctx's.
func (e Extractor) ExtractAll(ctx context.Context, scans [][]int, workers int) ([]Result, error) {
	if workers < 1 {
		workers = 1
	}
	results := make([]Result, len(scans))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range scans {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = e.Extract(FromInts(scans[i]))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}
