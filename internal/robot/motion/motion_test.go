package motion

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"
)

const tol = 1e-9

func plainCalibration() Calibration {
	return Calibration{TicksToMM: 0.349, RobotWidth: 150.0}
}

// referencePlainStep is the body-centre update written without any sensor
// offset terms, used to check that a zero displacement changes nothing.
func referencePlainStep(old Pose, t Ticks, ticksToMM, width float64) Pose {
	if t.Left == t.Right {
		theta := NormalizeAngle(old.Theta)
		return Pose{
			X:     old.X + float64(t.Left)*ticksToMM*math.Cos(theta),
			Y:     old.Y + float64(t.Left)*ticksToMM*math.Sin(theta),
			Theta: theta,
		}
	}
	alpha := float64(t.Right-t.Left) * ticksToMM / width
	r := float64(t.Left) * ticksToMM / alpha
	xc := old.X - (r+width/2)*math.Sin(old.Theta)
	yc := old.Y + (r+width/2)*math.Cos(old.Theta)
	theta := NormalizeAngle(old.Theta + alpha)
	return Pose{
		X:     xc + (r+width/2)*math.Sin(theta),
		Y:     yc - (r+width/2)*math.Cos(theta),
		Theta: theta,
	}
}

// =============================================================================
// Tests: NormalizeAngle
// =============================================================================

func TestNormalizeAngle(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want float64
	}{
		{"zero", 0, 0},
		{"inside", 1.5, 1.5},
		{"full turn", TwoPi, 0},
		{"past full turn", TwoPi + 0.25, 0.25},
		{"small negative", -0.25, TwoPi - 0.25},
		{"negative full turn", -TwoPi, 0},
		{"several negative turns", -3*TwoPi - 1, TwoPi - 1},
		{"several positive turns", 5*TwoPi + 2, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeAngle(tt.in)
			assert.InDelta(t, tt.want, got, 1e-9)
			assert.GreaterOrEqual(t, got, 0.0)
			assert.Less(t, got, TwoPi)
		})
	}
}

func TestNormalizeAngle_TinyNegative(t *testing.T) {
	got := NormalizeAngle(-1e-18)
	assert.GreaterOrEqual(t, got, 0.0)
	assert.Less(t, got, TwoPi)
}

// =============================================================================
// Tests: Step
// =============================================================================

func TestStep_StraightLineInvariance(t *testing.T) {
	cal := plainCalibration()
	headings := []float64{0, 0.3, math.Pi / 2, math.Pi, 4.0, TwoPi - 1e-6}
	for _, k := range []int{-250, -7, -1, 0, 1, 13, 400} {
		for _, h := range headings {
			old := Pose{X: 120, Y: -40, Theta: h}
			got := Step(old, Ticks{Left: k, Right: k}, cal)

			assert.Equal(t, h, got.Theta, "heading changed for k=%d", k)
			dist := float64(k) * cal.TicksToMM
			assert.InDelta(t, old.X+dist*math.Cos(h), got.X, tol)
			assert.InDelta(t, old.Y+dist*math.Sin(h), got.Y, tol)

			moved := r2.Norm(r2.Sub(got.Position(), old.Position()))
			assert.InDelta(t, math.Abs(dist), moved, tol)
		}
	}
}

func TestStep_StraightWithDisplacement(t *testing.T) {
	cal := DefaultCalibration()
	old := Pose{X: 1850, Y: 1897, Theta: 213.0 / 180.0 * math.Pi}
	got := Step(old, Ticks{Left: 10, Right: 10}, cal)

	assert.Equal(t, old.Theta, got.Theta)
	assert.InDelta(t, old.X+3.49*math.Cos(old.Theta), got.X, tol)
	assert.InDelta(t, old.Y+3.49*math.Sin(old.Theta), got.Y, tol)
}

func TestStep_HeadingNormalization(t *testing.T) {
	cals := []Calibration{plainCalibration(), DefaultCalibration()}
	headings := []float64{0, 0.01, 1, math.Pi, 5, TwoPi - 1e-9}
	ticks := []Ticks{
		{0, 0}, {5, 5}, {-5, -5},
		{0, 400}, {400, 0}, {-400, 0}, {0, -400},
		{-300, 300}, {300, -300}, {17, 19}, {-1000, 2000},
	}
	for _, cal := range cals {
		for _, h := range headings {
			for _, tk := range ticks {
				got := Step(Pose{Theta: h}, tk, cal)
				assert.GreaterOrEqual(t, got.Theta, 0.0, "heading %v ticks %v", h, tk)
				assert.Less(t, got.Theta, TwoPi, "heading %v ticks %v", h, tk)
			}
		}
	}
}

func TestStep_NegativeTurnWraps(t *testing.T) {
	cal := plainCalibration()
	// Turning right from heading 0 must land just below 2π, not below 0.
	got := Step(Pose{}, Ticks{Left: 100, Right: 0}, cal)
	alpha := -100 * cal.TicksToMM / cal.RobotWidth
	assert.InDelta(t, TwoPi+alpha, got.Theta, tol)
}

func TestStep_ArcConsistency(t *testing.T) {
	for _, cal := range []Calibration{plainCalibration(), DefaultCalibration()} {
		cases := []struct {
			old Pose
			tk  Ticks
		}{
			{Pose{X: 0, Y: 0, Theta: 0}, Ticks{Left: 10, Right: 40}},
			{Pose{X: 500, Y: -200, Theta: 2.5}, Ticks{Left: -30, Right: 12}},
			{Pose{X: -1, Y: 3, Theta: 6}, Ticks{Left: 200, Right: -80}},
			{Pose{X: 1850, Y: 1897, Theta: 3.7}, Ticks{Left: 0, Right: 25}},
		}
		for _, c := range cases {
			centre, radius, ok := TurnCentre(c.old, c.tk, cal)
			require.True(t, ok)

			got := Step(c.old, c.tk, cal)

			// Distances are measured from the body centre, so remove the
			// sensor offset from both poses first.
			bodyOld := r2.Vec{
				X: c.old.X - cal.ScannerDisplacement*math.Cos(c.old.Theta),
				Y: c.old.Y - cal.ScannerDisplacement*math.Sin(c.old.Theta),
			}
			bodyNew := r2.Vec{
				X: got.X - cal.ScannerDisplacement*math.Cos(got.Theta),
				Y: got.Y - cal.ScannerDisplacement*math.Sin(got.Theta),
			}
			before := r2.Norm(r2.Sub(bodyOld, centre))
			after := r2.Norm(r2.Sub(bodyNew, centre))
			assert.InDelta(t, math.Abs(radius), before, 1e-6)
			assert.InDelta(t, before, after, 1e-6)
		}
	}
}

func TestTurnCentre_Straight(t *testing.T) {
	_, _, ok := TurnCentre(Pose{}, Ticks{Left: 3, Right: 3}, plainCalibration())
	assert.False(t, ok)
}

func TestStep_ZeroDisplacementIsBitIdentical(t *testing.T) {
	cal := plainCalibration()
	cal.ScannerDisplacement = 0

	poses := []Pose{
		{0, 0, 0},
		{1850, 1897, 213.0 / 180.0 * math.Pi},
		{-12.5, 44.25, 6.2},
		{3, 3, 1e-12},
	}
	ticks := []Ticks{{Left: 0, Right: 0}, {Left: 7, Right: 7}, {Left: -7, Right: -7}, {Left: 1, Right: 2}, {Left: 2, Right: 1}, {Left: -50, Right: 80}, {Left: 300, Right: -20}, {Left: 0, Right: 9}, {Left: 9, Right: 0}}
	for _, p := range poses {
		for _, tk := range ticks {
			want := referencePlainStep(p, tk, cal.TicksToMM, cal.RobotWidth)
			got := Step(p, tk, cal)
			assert.Equal(t, math.Float64bits(want.X), math.Float64bits(got.X), "x for %v %v", p, tk)
			assert.Equal(t, math.Float64bits(want.Y), math.Float64bits(got.Y), "y for %v %v", p, tk)
			assert.Equal(t, math.Float64bits(want.Theta), math.Float64bits(got.Theta), "theta for %v %v", p, tk)
		}
	}
}

func TestStep_QuarterTurnOnLeftWheel(t *testing.T) {
	// Left wheel stationary: the robot pivots about the left wheel, which
	// sits half a gauge to the left of the centre.
	cal := Calibration{TicksToMM: 1, RobotWidth: 100}
	quarter := int(math.Round(100 * math.Pi / 2))
	got := Step(Pose{}, Ticks{Left: 0, Right: quarter}, cal)

	alpha := float64(quarter) / 100
	assert.InDelta(t, alpha, got.Theta, tol)
	assert.InDelta(t, 50*math.Sin(alpha), got.X, tol)
	assert.InDelta(t, 50-50*math.Cos(alpha), got.Y, tol)
}

func TestStep_DisplacementRoundTrip(t *testing.T) {
	// A displaced update equals a plain update of the body centre with the
	// offset re-applied along the new heading.
	cal := DefaultCalibration()
	plain := cal
	plain.ScannerDisplacement = 0

	sensor := Pose{X: 1850, Y: 1897, Theta: 3.7}
	tk := Ticks{Left: 14, Right: 31}

	body := Pose{
		X:     sensor.X - cal.ScannerDisplacement*math.Cos(sensor.Theta),
		Y:     sensor.Y - cal.ScannerDisplacement*math.Sin(sensor.Theta),
		Theta: sensor.Theta,
	}
	nextBody := Step(body, tk, plain)
	got := Step(sensor, tk, cal)

	assert.InDelta(t, nextBody.Theta, got.Theta, tol)
	assert.InDelta(t, nextBody.X+cal.ScannerDisplacement*math.Cos(nextBody.Theta), got.X, 1e-6)
	assert.InDelta(t, nextBody.Y+cal.ScannerDisplacement*math.Sin(nextBody.Theta), got.Y, 1e-6)
}

// =============================================================================
// Tests: Filter
// =============================================================================

func TestFilter_ThreadsPoses(t *testing.T) {
	cal := DefaultCalibration()
	start := Pose{X: 1850, Y: 1897, Theta: 213.0 / 180.0 * math.Pi}
	ticks := []Ticks{{Left: 10, Right: 10}, {Left: 5, Right: 20}, {Left: -3, Right: 7}, {Left: 0, Right: 0}, {Left: 40, Right: 2}}

	poses := Filter(start, ticks, cal)
	require.Len(t, poses, len(ticks))

	pose := start
	for i, tk := range ticks {
		pose = Step(pose, tk, cal)
		assert.Equal(t, pose, poses[i], "pose %d", i)
	}
}

func TestFilter_Empty(t *testing.T) {
	poses := Filter(Pose{X: 1}, nil, plainCalibration())
	assert.Empty(t, poses)
	assert.NotNil(t, poses)
}

func TestFilter_ClosedSquareReturnsHome(t *testing.T) {
	// Four straight legs joined by in-place quarter turns. With this scale
	// 100 ticks of opposite wheel travel turn the robot by exactly π/2.
	cal := Calibration{TicksToMM: math.Pi / 4, RobotWidth: 100}

	var ticks []Ticks
	for i := 0; i < 4; i++ {
		ticks = append(ticks, Ticks{Left: 500, Right: 500}, Ticks{Left: -100, Right: 100})
	}
	poses := Filter(Pose{}, ticks, cal)
	require.Len(t, poses, 8)

	assert.InDelta(t, 500*math.Pi/4, poses[0].X, 1e-9)
	assert.InDelta(t, math.Pi/2, poses[1].Theta, 1e-12)

	last := poses[len(poses)-1]
	assert.InDelta(t, 0, last.X, 1e-6)
	assert.InDelta(t, 0, last.Y, 1e-6)
	assert.InDelta(t, 0, math.Min(last.Theta, TwoPi-last.Theta), 1e-9)
}
