// Package motion owns the odometry layer of the robot data model.
//
// Responsibilities: converting wheel-encoder tick increments into poses
// with a differential-drive circular-arc model, optionally corrected for
// a range sensor mounted ahead of the rotation centre.
// Key types: Pose, Ticks, Calibration.
//
// Dependency rule: motion depends on nothing else in internal/robot.
// No I/O is allowed in this package.
package motion
