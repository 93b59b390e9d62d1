// Package scan owns the range-scan feature layer of the robot data model.
//
// Responsibilities: edge detection on a single range scan, reduction of
// each bounded region to an averaged polar cylinder observation, and
// projection of those observations into the scanner's Cartesian frame.
// Key types: Scan, Derivative, Cylinder, Params, Geometry, Extractor.
//
// Dependency rule: scan depends on nothing else in internal/robot.
// Every function here is pure; scans may be processed in any order.
package scan
