package store

import (
	"database/sql"
	"fmt"

	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/lego-robot/internal/robot/motion"
	"github.com/banshee-data/lego-robot/internal/robot/scan"
)

// CylinderRecord is one stored detection.
type CylinderRecord struct {
	ScanIndex int
	Seq       int
	Cylinder  scan.Cylinder
	Point     r2.Vec
}

// Summary aggregates a run's contents.
type Summary struct {
	Run           Run
	PoseCount     int
	PathLength    float64
	// ScanCount counts scans with at least one cylinder.
	ScanCount     int
	CylinderCount int
	// MeanDepth is zero when the run holds no cylinders.
	MeanDepth     float64
}

// RecordPoses appends poses to the run's trajectory.
func (s *Store) RecordPoses(runID string, poses []motion.Pose) error {
	tx, err := s.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var next int
	if err := tx.QueryRow(
		`SELECT COALESCE(MAX(seq) + 1, 0) FROM poses WHERE run_id = ?`, runID,
	).Scan(&next); err != nil {
		return fmt.Errorf("failed to query pose sequence: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO poses (run_id, seq, x, y, theta) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare pose insert: %w", err)
	}
	defer stmt.Close()

	for i, p := range poses {
		if _, err := stmt.Exec(runID, next+i, p.X, p.Y, p.Theta); err != nil {
			return fmt.Errorf("failed to insert pose %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit poses: %w", err)
	}
	logf("run %s: stored %d poses", runID, len(poses))
	return nil
}

// RecordScanCylinders stores the detections of one scan. cyls and points
// are parallel slices.
func (s *Store) RecordScanCylinders(runID string, scanIndex int, cyls []scan.Cylinder, points []r2.Vec) error {
	if len(cyls) != len(points) {
		return fmt.Errorf("scan %d: %d cylinders but %d points", scanIndex, len(cyls), len(points))
	}

	tx, err := s.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertCylinders(tx, runID, scanIndex, cyls, points); err != nil {
		return err
	}
	return tx.Commit()
}

// RecordResults stores the cylinders of every scan in one transaction.
// Result i is stored as scan index i.
func (s *Store) RecordResults(runID string, results []scan.Result) error {
	tx, err := s.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	total := 0
	for i, r := range results {
		if len(r.Cylinders) != len(r.Points) {
			return fmt.Errorf("scan %d: %d cylinders but %d points", i, len(r.Cylinders), len(r.Points))
		}
		if err := insertCylinders(tx, runID, i, r.Cylinders, r.Points); err != nil {
			return err
		}
		total += len(r.Cylinders)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit cylinders: %w", err)
	}
	logf("run %s: stored %d cylinders over %d scans", runID, total, len(results))
	return nil
}

func insertCylinders(tx *sql.Tx, runID string, scanIndex int, cyls []scan.Cylinder, points []r2.Vec) error {
	stmt, err := tx.Prepare(
		`INSERT INTO cylinders (run_id, scan_index, seq, ray, depth, x, y) VALUES (?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("failed to prepare cylinder insert: %w", err)
	}
	defer stmt.Close()

	for i, c := range cyls {
		p := points[i]
		if _, err := stmt.Exec(runID, scanIndex, i, c.Ray, c.Depth, p.X, p.Y); err != nil {
			return fmt.Errorf("failed to insert cylinder %d of scan %d: %w", i, scanIndex, err)
		}
	}
	return nil
}

// Poses returns a run's trajectory in recording order.
func (s *Store) Poses(runID string) ([]motion.Pose, error) {
	rows, err := s.Query(`SELECT x, y, theta FROM poses WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query poses: %w", err)
	}
	defer rows.Close()

	var poses []motion.Pose
	for rows.Next() {
		var p motion.Pose
		if err := rows.Scan(&p.X, &p.Y, &p.Theta); err != nil {
			return nil, fmt.Errorf("failed to scan pose: %w", err)
		}
		poses = append(poses, p)
	}
	return poses, rows.Err()
}

// Cylinders returns a run's detections ordered by scan then position in
// the scan.
func (s *Store) Cylinders(runID string) ([]CylinderRecord, error) {
	rows, err := s.Query(
		`SELECT scan_index, seq, ray, depth, x, y FROM cylinders WHERE run_id = ? ORDER BY scan_index, seq`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query cylinders: %w", err)
	}
	defer rows.Close()

	var out []CylinderRecord
	for rows.Next() {
		var c CylinderRecord
		if err := rows.Scan(&c.ScanIndex, &c.Seq, &c.Cylinder.Ray, &c.Cylinder.Depth, &c.Point.X, &c.Point.Y); err != nil {
			return nil, fmt.Errorf("failed to scan cylinder: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// PointsByScan groups records into one point slice per scan. The result
// has max(scans, highest scan index + 1) entries.
func PointsByScan(records []CylinderRecord, scans int) [][]r2.Vec {
	for _, r := range records {
		scans = max(scans, r.ScanIndex+1)
	}
	out := make([][]r2.Vec, scans)
	for _, r := range records {
		out[r.ScanIndex] = append(out[r.ScanIndex], r.Point)
	}
	return out
}

// RunSummary counts what a run holds.
func (s *Store) RunSummary(runID string) (Summary, error) {
	run, err := s.GetRun(runID)
	if err != nil {
		return Summary{}, err
	}
	sum := Summary{Run: run}

	poses, err := s.Poses(runID)
	if err != nil {
		return Summary{}, err
	}
	sum.PoseCount = len(poses)
	for i := 1; i < len(poses); i++ {
		sum.PathLength += r2.Norm(r2.Sub(poses[i].Position(), poses[i-1].Position()))
	}

	cyls, err := s.Cylinders(runID)
	if err != nil {
		return Summary{}, err
	}
	sum.CylinderCount = len(cyls)
	if len(cyls) > 0 {
		depths := make([]float64, len(cyls))
		for i, c := range cyls {
			depths[i] = c.Cylinder.Depth
		}
		sum.MeanDepth = stat.Mean(depths, nil)
	}

	if err := s.QueryRow(
		`SELECT COUNT(DISTINCT scan_index) FROM cylinders WHERE run_id = ?`, runID,
	).Scan(&sum.ScanCount); err != nil {
		return Summary{}, fmt.Errorf("failed to count scans: %w", err)
	}
	return sum, nil
}
