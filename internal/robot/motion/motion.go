package motion

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// TwoPi is the heading period. Headings produced by Step lie in [0, TwoPi).
const TwoPi = 2 * math.Pi

// Pose is a planar robot pose. X and Y are in millimetres, Theta in radians.
type Pose struct {
	X, Y  float64
	Theta float64
}

// Position returns the pose's position as a vector.
func (p Pose) Position() r2.Vec {
	return r2.Vec{X: p.X, Y: p.Y}
}

// Ticks holds the signed encoder increments accumulated since the previous
// sample. They carry no physical unit without a Calibration.
type Ticks struct {
	Left, Right int
}

// Straight reports whether both wheels moved by the same amount.
func (t Ticks) Straight() bool {
	return t.Left == t.Right
}

// Calibration holds the robot constants the motion model needs.
type Calibration struct {
	// TicksToMM converts one encoder tick to millimetres of wheel travel.
	TicksToMM float64
	// RobotWidth is the wheel gauge in millimetres.
	RobotWidth float64
	// ScannerDisplacement is the distance from the rotation centre to the
	// range sensor along the heading. Zero gives the plain body-centre model.
	ScannerDisplacement float64
}

// DefaultCalibration returns the constants measured for the Lego robot.
func DefaultCalibration() Calibration {
	return Calibration{
		TicksToMM:           0.349,
		RobotWidth:          150.0,
		ScannerDisplacement: 30.0,
	}
}

// NormalizeAngle maps a into [0, 2π). Unlike math.Mod it never returns a
// negative value for a negative argument.
func NormalizeAngle(a float64) float64 {
	r := math.Mod(a, TwoPi)
	if r < 0 {
		r += TwoPi
	}
	// r+2π can round up to exactly 2π for tiny negative r.
	if r >= TwoPi {
		r = 0
	}
	return r
}

// Step returns the pose reached from old after the wheels moved by t.
//
// When cal.ScannerDisplacement is non-zero, old and the result are sensor
// poses: the displacement is removed before the arc is computed and
// re-applied along the new heading afterwards.
func Step(old Pose, t Ticks, cal Calibration) Pose {
	if t.Straight() {
		// No turn. Just drive straight.
		dist := float64(t.Left) * cal.TicksToMM
		theta := NormalizeAngle(old.Theta)
		return Pose{
			X:     old.X + dist*math.Cos(theta),
			Y:     old.Y + dist*math.Sin(theta),
			Theta: theta,
		}
	}

	centre, radius, alpha := turn(old, t, cal)

	theta := NormalizeAngle(old.Theta + alpha)
	x := centre.X + radius*math.Sin(theta)
	y := centre.Y - radius*math.Cos(theta)

	x = x + cal.ScannerDisplacement*math.Cos(theta)
	y = y + cal.ScannerDisplacement*math.Sin(theta)

	return Pose{X: x, Y: y, Theta: theta}
}

// TurnCentre returns the centre of rotation and the effective turn radius
// (left-wheel radius plus half the gauge) for a turning update. ok is false
// for straight motion, where no finite centre exists.
func TurnCentre(old Pose, t Ticks, cal Calibration) (centre r2.Vec, radius float64, ok bool) {
	if t.Straight() {
		return r2.Vec{}, 0, false
	}
	centre, radius, _ = turn(old, t, cal)
	return centre, radius, true
}

// turn computes the arc parameters for a turning update. It must not be
// called with equal tick counts.
func turn(old Pose, t Ticks, cal Calibration) (centre r2.Vec, radius, alpha float64) {
	theta := old.Theta

	// The old pose may be the sensor's pose; step back to the body centre.
	x := old.X - cal.ScannerDisplacement*math.Cos(theta)
	y := old.Y - cal.ScannerDisplacement*math.Sin(theta)

	alpha = float64(t.Right-t.Left) * cal.TicksToMM / cal.RobotWidth
	r := float64(t.Left) * cal.TicksToMM / alpha
	radius = r + cal.RobotWidth/2

	centre = r2.Vec{
		X: x - radius*math.Sin(theta),
		Y: y + radius*math.Cos(theta),
	}
	return centre, radius, alpha
}

// Filter threads start through ticks in order and returns one pose per
// tick pair. The start pose itself is not included.
func Filter(start Pose, ticks []Ticks, cal Calibration) []Pose {
	poses := make([]Pose, 0, len(ticks))
	pose := start
	for _, t := range ticks {
		pose = Step(pose, t, cal)
		poses = append(poses, pose)
	}
	return poses
}
