package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/banshee-data/lego-robot/internal/robot/logfile"
	"github.com/banshee-data/lego-robot/internal/robot/motion"
	"github.com/banshee-data/lego-robot/internal/robot/scan"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// StartPose is the initial robot pose. The heading is given in degrees
// because that is how it is measured on the arena floor.
type StartPose struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	ThetaDeg float64 `json:"theta_deg"`
}

// TuningConfig holds the robot's calibration constants and the scan
// feature extractor's thresholds. Every field is optional; the Get*
// methods supply the defaults for omitted fields.
type TuningConfig struct {
	// Odometry
	TicksToMM           *float64   `json:"ticks_to_mm,omitempty"`
	RobotWidth          *float64   `json:"robot_width,omitempty"`
	ScannerDisplacement *float64   `json:"scanner_displacement,omitempty"`
	StartPose           *StartPose `json:"start_pose,omitempty"`

	// Scan feature extraction
	MinimumValidDistance *float64 `json:"minimum_valid_distance,omitempty"`
	DepthJump            *float64 `json:"depth_jump,omitempty"`
	CylinderOffset       *float64 `json:"cylinder_offset,omitempty"`
	SegmentPolicy        *string  `json:"segment_policy,omitempty"` // "simple" or "retrigger"
	RetriggerCeiling     *float64 `json:"retrigger_ceiling,omitempty"`

	// Beam geometry
	BeamCount         *int     `json:"beam_count,omitempty"`
	AngularResolution *float64 `json:"angular_resolution,omitempty"`
	MountingAngle     *float64 `json:"mounting_angle,omitempty"`

	// Log format and execution
	ScanRecordHasCount *bool `json:"scan_record_has_count,omitempty"`
	Workers            *int  `json:"workers,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// DefaultTuningConfig returns a TuningConfig with every field set to the
// values measured for the Lego robot.
func DefaultTuningConfig() *TuningConfig {
	cal := motion.DefaultCalibration()
	ex := scan.DefaultExtractor()
	return &TuningConfig{
		TicksToMM:            ptrFloat64(cal.TicksToMM),
		RobotWidth:           ptrFloat64(cal.RobotWidth),
		ScannerDisplacement:  ptrFloat64(cal.ScannerDisplacement),
		StartPose:            &StartPose{X: 1850.0, Y: 1897.0, ThetaDeg: 213.0},
		MinimumValidDistance: ptrFloat64(ex.Params.MinDist),
		DepthJump:            ptrFloat64(ex.Params.Jump),
		CylinderOffset:       ptrFloat64(ex.CylinderOffset),
		SegmentPolicy:        ptrString(ex.Params.Policy.String()),
		RetriggerCeiling:     ptrFloat64(ex.Params.Ceiling),
		BeamCount:            ptrInt(ex.Geometry.BeamCount),
		AngularResolution:    ptrFloat64(ex.Geometry.AngularResolution),
		MountingAngle:        ptrFloat64(ex.Geometry.MountingAngle),
		ScanRecordHasCount:   ptrBool(true),
		Workers:              ptrInt(4),
	}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
// Fields omitted from the JSON file retain their default values, so
// partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,          // from cmd/<tool>/
		"../../" + DefaultConfigPath,       // from internal/config/
		"../../../" + DefaultConfigPath,    // from internal/robot/<pkg>/
		"../../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	positive := []struct {
		name string
		v    *float64
	}{
		{"ticks_to_mm", c.TicksToMM},
		{"robot_width", c.RobotWidth},
		{"depth_jump", c.DepthJump},
		{"angular_resolution", c.AngularResolution},
	}
	for _, p := range positive {
		if p.v != nil && !(*p.v > 0) {
			return fmt.Errorf("%s must be positive, got %f", p.name, *p.v)
		}
	}

	nonNegative := []struct {
		name string
		v    *float64
	}{
		{"scanner_displacement", c.ScannerDisplacement},
		{"minimum_valid_distance", c.MinimumValidDistance},
		{"cylinder_offset", c.CylinderOffset},
		{"retrigger_ceiling", c.RetriggerCeiling},
	}
	for _, p := range nonNegative {
		if p.v != nil && !(*p.v >= 0) {
			return fmt.Errorf("%s must be non-negative, got %f", p.name, *p.v)
		}
	}

	if c.MountingAngle != nil && math.IsNaN(*c.MountingAngle) {
		return fmt.Errorf("mounting_angle must be a number")
	}

	if c.SegmentPolicy != nil {
		if _, err := scan.ParsePolicy(*c.SegmentPolicy); err != nil {
			return err
		}
	}

	if c.BeamCount != nil && *c.BeamCount <= 0 {
		return fmt.Errorf("beam_count must be positive, got %d", *c.BeamCount)
	}

	if c.Workers != nil && *c.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", *c.Workers)
	}

	return nil
}

func getFloat(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

// GetTicksToMM returns the ticks_to_mm value or the default.
func (c *TuningConfig) GetTicksToMM() float64 {
	return getFloat(c.TicksToMM, motion.DefaultCalibration().TicksToMM)
}

// GetRobotWidth returns the robot_width value or the default.
func (c *TuningConfig) GetRobotWidth() float64 {
	return getFloat(c.RobotWidth, motion.DefaultCalibration().RobotWidth)
}

// GetScannerDisplacement returns the scanner_displacement value or the default.
func (c *TuningConfig) GetScannerDisplacement() float64 {
	return getFloat(c.ScannerDisplacement, motion.DefaultCalibration().ScannerDisplacement)
}

// GetStartPose returns the start pose with its heading converted to radians.
// The default is the origin, looking along the x axis.
func (c *TuningConfig) GetStartPose() motion.Pose {
	if c.StartPose == nil {
		return motion.Pose{}
	}
	return motion.Pose{
		X:     c.StartPose.X,
		Y:     c.StartPose.Y,
		Theta: c.StartPose.ThetaDeg / 180.0 * math.Pi,
	}
}

// GetMinimumValidDistance returns the minimum_valid_distance value or the default.
func (c *TuningConfig) GetMinimumValidDistance() float64 {
	return getFloat(c.MinimumValidDistance, scan.DefaultParams().MinDist)
}

// GetDepthJump returns the depth_jump value or the default.
func (c *TuningConfig) GetDepthJump() float64 {
	return getFloat(c.DepthJump, scan.DefaultParams().Jump)
}

// GetCylinderOffset returns the cylinder_offset value or the default.
func (c *TuningConfig) GetCylinderOffset() float64 {
	return getFloat(c.CylinderOffset, scan.DefaultExtractor().CylinderOffset)
}

// GetSegmentPolicy returns the parsed segment_policy, falling back to the
// simple policy when unset or unparsable.
func (c *TuningConfig) GetSegmentPolicy() scan.SegmentPolicy {
	if c.SegmentPolicy == nil {
		return scan.PolicySimple
	}
	p, err := scan.ParsePolicy(*c.SegmentPolicy)
	if err != nil {
		return scan.PolicySimple // default on parse error
	}
	return p
}

// GetRetriggerCeiling returns the retrigger_ceiling value or the default.
func (c *TuningConfig) GetRetriggerCeiling() float64 {
	return getFloat(c.RetriggerCeiling, scan.DefaultRetriggerCeiling)
}

// GetBeamCount returns the beam_count value or the default.
func (c *TuningConfig) GetBeamCount() int {
	if c.BeamCount == nil {
		return scan.DefaultGeometry().BeamCount
	}
	return *c.BeamCount
}

// GetAngularResolution returns the angular_resolution value or the default.
func (c *TuningConfig) GetAngularResolution() float64 {
	return getFloat(c.AngularResolution, scan.DefaultGeometry().AngularResolution)
}

// GetMountingAngle returns the mounting_angle value or the default.
func (c *TuningConfig) GetMountingAngle() float64 {
	return getFloat(c.MountingAngle, scan.DefaultGeometry().MountingAngle)
}

// GetScanRecordHasCount returns the scan_record_has_count value or the default.
func (c *TuningConfig) GetScanRecordHasCount() bool {
	if c.ScanRecordHasCount == nil {
		return true // default
	}
	return *c.ScanRecordHasCount
}

// GetWorkers returns the workers value or the default.
func (c *TuningConfig) GetWorkers() int {
	if c.Workers == nil {
		return 4 // default
	}
	return *c.Workers
}

// Calibration builds the motion model constants.
func (c *TuningConfig) Calibration() motion.Calibration {
	return motion.Calibration{
		TicksToMM:           c.GetTicksToMM(),
		RobotWidth:          c.GetRobotWidth(),
		ScannerDisplacement: c.GetScannerDisplacement(),
	}
}

// Extractor builds the scan feature extractor settings.
func (c *TuningConfig) Extractor() scan.Extractor {
	return scan.Extractor{
		Params: scan.Params{
			Jump:    c.GetDepthJump(),
			MinDist: c.GetMinimumValidDistance(),
			Policy:  c.GetSegmentPolicy(),
			Ceiling: c.GetRetriggerCeiling(),
		},
		Geometry: scan.Geometry{
			BeamCount:         c.GetBeamCount(),
			AngularResolution: c.GetAngularResolution(),
			MountingAngle:     c.GetMountingAngle(),
		},
		CylinderOffset: c.GetCylinderOffset(),
	}
}

// LogOptions builds the log reader options.
func (c *TuningConfig) LogOptions() logfile.Options {
	return logfile.Options{ScanRecordHasCount: c.GetScanRecordHasCount()}
}
