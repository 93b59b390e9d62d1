package scan

import (
	"fmt"
	"strings"
)

// SegmentPolicy selects how beams between a falling and a rising edge are
// accumulated into a cylinder.
type SegmentPolicy int

const (
	// PolicySimple averages every valid beam between the edges. A falling
	// edge always restarts the segment.
	PolicySimple SegmentPolicy = iota
	// PolicyRetrigger restarts the segment only on a falling edge deeper
	// than the last one seen, and stops accumulating beams whose derivative
	// reaches Params.Ceiling.
	PolicyRetrigger
)

// DefaultRetriggerCeiling is the derivative value at or above which the
// re-triggering policy stops accumulating beams into a segment.
const DefaultRetriggerCeiling = 100.0

// String returns the policy name used in configuration files and flags.
func (p SegmentPolicy) String() string {
	switch p {
	case PolicySimple:
		return "simple"
	case PolicyRetrigger:
		return "retrigger"
	default:
		return fmt.Sprintf("SegmentPolicy(%d)", int(p))
	}
}

// ParsePolicy parses a policy name as produced by String.
func ParsePolicy(s string) (SegmentPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "simple", "":
		return PolicySimple, nil
	case "retrigger", "re-trigger", "retriggering":
		return PolicyRetrigger, nil
	}
	return PolicySimple, fmt.Errorf("unknown segment policy %q", s)
}

// Cylinder is an averaged polar observation. Ray is the mean beam number
// and Depth the mean range over the segment.
type Cylinder struct {
	Ray   float64
	Depth float64
}

// Params controls segmentation.
type Params struct {
	// Jump is the derivative magnitude that marks an edge.
	Jump float64
	// MinDist is the smallest valid range reading.
	MinDist float64
	Policy  SegmentPolicy
	// Ceiling is only used by PolicyRetrigger. Zero means
	// DefaultRetriggerCeiling.
	Ceiling float64
}

// DefaultParams returns the values tuned for the Lego robot's scanner.
func DefaultParams() Params {
	return Params{
		Jump:    100.0,
		MinDist: 20.0,
		Policy:  PolicySimple,
		Ceiling: DefaultRetriggerCeiling,
	}
}

// segment accumulates the running sums of one candidate region.
type segment struct {
	open     bool
	sumRay   float64
	sumDepth float64
	rays     int
	lastJump float64
}

func (sg *segment) start(ray, depth, jump float64) {
	sg.open = true
	sg.sumRay = ray
	sg.sumDepth = depth
	sg.rays = 1
	sg.lastJump = jump
}

func (sg *segment) add(ray, depth float64) {
	sg.sumRay += ray
	sg.sumDepth += depth
	sg.rays++
}

func (sg *segment) mean() Cylinder {
	n := float64(sg.rays)
	return Cylinder{Ray: sg.sumRay / n, Depth: sg.sumDepth / n}
}

// FindCylinders walks the derivative and returns one Cylinder for every
// region opened by a derivative <= -Jump and closed by a derivative >= Jump.
// A region still open at the end of the scan is dropped. The opening beam
// is numbered i+1.
func FindCylinders(s Scan, d Derivative, p Params) []Cylinder {
	n := len(d)
	if len(s) < n {
		n = len(s)
	}
	switch p.Policy {
	case PolicyRetrigger:
		return findRetrigger(s[:n], d[:n], p)
	default:
		return findSimple(s[:n], d[:n], p)
	}
}

// findSimple accumulates beam numbers as i, not i+1, after the opening
// beam. Results downstream were calibrated against that numbering.
func findSimple(s Scan, d Derivative, p Params) []Cylinder {
	cylinders := []Cylinder{}
	var sg segment
	for i := range d {
		switch {
		case d[i] <= -p.Jump:
			sg.start(float64(i+1), s[i], d[i])
		case d[i] >= p.Jump:
			if sg.open && sg.rays > 0 {
				cylinders = append(cylinders, sg.mean())
			}
			sg.open = false
		case s[i] > p.MinDist:
			// Sums collected while closed are discarded by the next start.
			sg.add(float64(i), s[i])
		}
	}
	return cylinders
}

func findRetrigger(s Scan, d Derivative, p Params) []Cylinder {
	ceiling := p.Ceiling
	if ceiling == 0 {
		ceiling = DefaultRetriggerCeiling
	}

	cylinders := []Cylinder{}
	var sg segment
	for i := range d {
		switch {
		case !sg.open && d[i] <= -p.Jump:
			sg.start(float64(i+1), s[i], d[i])
		case sg.open && d[i] < sg.lastJump:
			// A deeper falling edge: a nearer object occludes this one.
			sg.start(float64(i+1), s[i], d[i])
		case sg.open && d[i] < ceiling:
			sg.add(float64(i+1), s[i])
		case sg.open && d[i] >= p.Jump:
			if sg.rays > 0 {
				cylinders = append(cylinders, sg.mean())
			}
			sg.open = false
		}
	}
	return cylinders
}
