package config

import (
	"flag"
	"fmt"
)

// Load returns the tuning config at path, or DefaultTuningConfig when path
// is empty.
func Load(path string) (*TuningConfig, error) {
	if path == "" {
		return DefaultTuningConfig(), nil
	}
	return LoadTuningConfig(path)
}

// Overrides holds command-line flags that take precedence over the values
// read from a tuning file. Only flags given explicitly are applied.
type Overrides struct {
	fs *flag.FlagSet

	ticksToMM           float64
	robotWidth          float64
	scannerDisplacement float64
	minDist             float64
	depthJump           float64
	cylinderOffset      float64
	policy              string
	retriggerCeiling    float64
	scanHasCount        bool
	workers             int
}

// RegisterOverrides defines the override flags on fs.
func RegisterOverrides(fs *flag.FlagSet) *Overrides {
	o := &Overrides{fs: fs}
	fs.Float64Var(&o.ticksToMM, "ticks-to-mm", 0, "override ticks_to_mm (mm per encoder tick)")
	fs.Float64Var(&o.robotWidth, "robot-width", 0, "override robot_width (mm)")
	fs.Float64Var(&o.scannerDisplacement, "scanner-displacement", 0, "override scanner_displacement (mm); 0 tracks the axle centre")
	fs.Float64Var(&o.minDist, "min-dist", 0, "override minimum_valid_distance (mm)")
	fs.Float64Var(&o.depthJump, "depth-jump", 0, "override depth_jump (mm)")
	fs.Float64Var(&o.cylinderOffset, "cylinder-offset", 0, "override cylinder_offset (mm)")
	fs.StringVar(&o.policy, "policy", "", "override segment_policy: simple or retrigger")
	fs.Float64Var(&o.retriggerCeiling, "retrigger-ceiling", 0, "override retrigger_ceiling")
	fs.BoolVar(&o.scanHasCount, "scan-has-count", true, "override scan_record_has_count")
	fs.IntVar(&o.workers, "workers", 0, "override workers for scan extraction (0 runs sequentially)")
	return o
}

// Apply copies every explicitly set flag into c and re-validates it.
func (o *Overrides) Apply(c *TuningConfig) error {
	o.fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "ticks-to-mm":
			c.TicksToMM = ptrFloat64(o.ticksToMM)
		case "robot-width":
			c.RobotWidth = ptrFloat64(o.robotWidth)
		case "scanner-displacement":
			c.ScannerDisplacement = ptrFloat64(o.scannerDisplacement)
		case "min-dist":
			c.MinimumValidDistance = ptrFloat64(o.minDist)
		case "depth-jump":
			c.DepthJump = ptrFloat64(o.depthJump)
		case "cylinder-offset":
			c.CylinderOffset = ptrFloat64(o.cylinderOffset)
		case "policy":
			c.SegmentPolicy = ptrString(o.policy)
		case "retrigger-ceiling":
			c.RetriggerCeiling = ptrFloat64(o.retriggerCeiling)
		case "scan-has-count":
			c.ScanRecordHasCount = ptrBool(o.scanHasCount)
		case "workers":
			c.Workers = ptrInt(o.workers)
		}
	})
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid flag override: %w", err)
	}
	return nil
}
