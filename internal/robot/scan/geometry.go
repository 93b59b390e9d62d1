package scan

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// Geometry maps beam numbers to angles in the scanner frame.
type Geometry struct {
	// BeamCount is the number of beams per scan. Beam BeamCount/2 faces
	// forward.
	BeamCount int
	// AngularResolution is the angle between adjacent beams, in radians.
	AngularResolution float64
	// MountingAngle corrects for the scanner's yaw on its mount, in radians.
	MountingAngle float64
}

// DefaultGeometry returns the mapping for the Lego robot's 660-beam scanner.
func DefaultGeometry() Geometry {
	return Geometry{
		BeamCount:         660,
		AngularResolution: 0.006135923151543,
		MountingAngle:     -0.06981317007977318,
	}
}

// BeamIndexToAngle converts a beam number to an angle in radians.
func (g Geometry) BeamIndexToAngle(i int) float64 {
	centre := float64(g.BeamCount / 2)
	return (float64(i)-centre)*g.AngularResolution + g.MountingAngle
}

// ToCartesian projects each cylinder into the scanner frame. offset is added
// to every depth because the scanner sees the near surface of a cylinder,
// not its axis. A fractional average ray is truncated to its beam before
// projection, so detections line up with the recorded reference logs.
func ToCartesian(cylinders []Cylinder, g Geometry, offset float64) []r2.Vec {
	points := make([]r2.Vec, 0, len(cylinders))
	for _, c := range cylinders {
		angle := g.BeamIndexToAngle(int(c.Ray))
		r := c.Depth + offset
		points = append(points, r2.Vec{X: r * math.Cos(angle), Y: r * math.Sin(angle)})
	}
	return points
}
