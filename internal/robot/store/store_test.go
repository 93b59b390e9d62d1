package store

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/banshee-data/lego-robot/internal/monitoring"
	"github.com/banshee-data/lego-robot/internal/robot/motion"
	"github.com/banshee-data/lego-robot/internal/robot/scan"
	"github.com/banshee-data/lego-robot/internal/timeutil"
)

func init() {
	monitoring.SetLogger(nil)
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// =============================================================================
// Tests: migrations
// =============================================================================

func TestOpen_AppliesAllMigrations(t *testing.T) {
	s := openTestStore(t)

	version, dirty, err := s.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(3), version)
	assert.False(t, dirty)

	for _, table := range []string{"runs", "poses", "cylinders"} {
		var name string
		err := s.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		require.NoError(t, err, "table %s", table)
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")

	s, err := Open(path)
	require.NoError(t, err)
	runID, err := s.CreateRun(RunKindPoses, "robot4_motors.txt", nil)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	run, err := s.GetRun(runID)
	require.NoError(t, err)
	assert.Equal(t, "robot4_motors.txt", run.Source)
}

// =============================================================================
// Tests: runs
// =============================================================================

func TestCreateRun(t *testing.T) {
	s := openTestStore(t)

	params := scan.DefaultParams()
	runID, err := s.CreateRun(RunKindCylinders, "robot4_scan.txt", params)
	require.NoError(t, err)
	assert.Len(t, runID, 36)

	run, err := s.GetRun(runID)
	require.NoError(t, err)
	assert.Equal(t, RunKindCylinders, run.Kind)
	assert.False(t, run.CreatedAt.IsZero())

	var got scan.Params
	require.NoError(t, json.Unmarshal([]byte(run.ParamsJSON), &got))
	assert.Equal(t, params, got)
}

func TestCreateRun_NilParams(t *testing.T) {
	s := openTestStore(t)
	runID, err := s.CreateRun(RunKindPoses, "", nil)
	require.NoError(t, err)

	run, err := s.GetRun(runID)
	require.NoError(t, err)
	assert.Equal(t, "{}", run.ParamsJSON)
}

func TestCreateRun_UnencodableParams(t *testing.T) {
	s := openTestStore(t)
	_, err := s.CreateRun(RunKindPoses, "", map[string]any{"f": func() {}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "encode run params")
}

func TestGetRun_NotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.GetRun("nope")
	assert.True(t, errors.Is(err, ErrRunNotFound))
}

func TestListRuns(t *testing.T) {
	s := openTestStore(t)
	clock := timeutil.NewMockClock(time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC))
	s.Clock = clock

	runs, err := s.ListRuns()
	require.NoError(t, err)
	assert.Empty(t, runs)

	a, err := s.CreateRun(RunKindPoses, "a.txt", nil)
	require.NoError(t, err)
	clock.Advance(time.Minute)
	b, err := s.CreateRun(RunKindCylinders, "b.txt", nil)
	require.NoError(t, err)

	runs, err = s.ListRuns()
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, b, runs[0].ID, "newest first")
	assert.Equal(t, a, runs[1].ID)
	assert.True(t, runs[0].CreatedAt.Equal(clock.Now()))
}

func TestDeleteRun(t *testing.T) {
	s := openTestStore(t)
	runID, err := s.CreateRun(RunKindPoses, "", nil)
	require.NoError(t, err)
	require.NoError(t, s.RecordPoses(runID, []motion.Pose{{X: 1}, {X: 2}}))
	require.NoError(t, s.RecordScanCylinders(runID, 0,
		[]scan.Cylinder{{Ray: 1, Depth: 2}}, []r2.Vec{{X: 3, Y: 4}}))

	require.NoError(t, s.DeleteRun(runID))

	poses, err := s.Poses(runID)
	require.NoError(t, err)
	assert.Empty(t, poses)
	cyls, err := s.Cylinders(runID)
	require.NoError(t, err)
	assert.Empty(t, cyls)

	assert.ErrorIs(t, s.DeleteRun(runID), ErrRunNotFound)
}

// =============================================================================
// Tests: poses and cylinders
// =============================================================================

func TestRecordPoses_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	runID, err := s.CreateRun(RunKindPoses, "", nil)
	require.NoError(t, err)

	poses := motion.Filter(motion.Pose{X: 1850, Y: 1897, Theta: 3.7},
		[]motion.Ticks{{Left: 10, Right: 12}, {Left: 4, Right: 4}, {Left: -3, Right: 8}}, motion.DefaultCalibration())
	require.NoError(t, s.RecordPoses(runID, poses))

	got, err := s.Poses(runID)
	require.NoError(t, err)
	if diff := cmp.Diff(poses, got); diff != "" {
		t.Errorf("poses mismatch (-want +got):\n%s", diff)
	}
}

func TestRecordPoses_Appends(t *testing.T) {
	s := openTestStore(t)
	runID, err := s.CreateRun(RunKindPoses, "", nil)
	require.NoError(t, err)

	require.NoError(t, s.RecordPoses(runID, []motion.Pose{{X: 1}, {X: 2}}))
	require.NoError(t, s.RecordPoses(runID, []motion.Pose{{X: 3}}))

	got, err := s.Poses(runID)
	require.NoError(t, err)
	assert.Equal(t, []motion.Pose{{X: 1}, {X: 2}, {X: 3}}, got)
}

func TestRecordScanCylinders_LengthMismatch(t *testing.T) {
	s := openTestStore(t)
	runID, err := s.CreateRun(RunKindCylinders, "", nil)
	require.NoError(t, err)

	err = s.RecordScanCylinders(runID, 0, []scan.Cylinder{{Ray: 1, Depth: 2}}, nil)
	require.Error(t, err)

	cyls, err := s.Cylinders(runID)
	require.NoError(t, err)
	assert.Empty(t, cyls)
}

func TestRecordResults_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	runID, err := s.CreateRun(RunKindCylinders, "", nil)
	require.NoError(t, err)

	results := []scan.Result{
		{
			Cylinders: []scan.Cylinder{{Ray: 5, Depth: 25}, {Ray: 300, Depth: 1000}},
			Points:    []r2.Vec{{X: 10, Y: 1}, {X: 20, Y: 2}},
		},
		{},
		{
			Cylinders: []scan.Cylinder{{Ray: 42.5, Depth: 70}},
			Points:    []r2.Vec{{X: -5, Y: 7}},
		},
	}
	require.NoError(t, s.RecordResults(runID, results))

	got, err := s.Cylinders(runID)
	require.NoError(t, err)
	want := []CylinderRecord{
		{ScanIndex: 0, Seq: 0, Cylinder: scan.Cylinder{Ray: 5, Depth: 25}, Point: r2.Vec{X: 10, Y: 1}},
		{ScanIndex: 0, Seq: 1, Cylinder: scan.Cylinder{Ray: 300, Depth: 1000}, Point: r2.Vec{X: 20, Y: 2}},
		{ScanIndex: 2, Seq: 0, Cylinder: scan.Cylinder{Ray: 42.5, Depth: 70}, Point: r2.Vec{X: -5, Y: 7}},
	}
	if diff := cmp.Diff(want, got, cmpopts.EquateApprox(0, 1e-12)); diff != "" {
		t.Errorf("cylinders mismatch (-want +got):\n%s", diff)
	}

	grouped := PointsByScan(got, len(results))
	require.Len(t, grouped, 3)
	assert.Len(t, grouped[0], 2)
	assert.Empty(t, grouped[1])
	assert.Equal(t, []r2.Vec{{X: -5, Y: 7}}, grouped[2])
}

func TestRecordResults_RollsBackOnMismatch(t *testing.T) {
	s := openTestStore(t)
	runID, err := s.CreateRun(RunKindCylinders, "", nil)
	require.NoError(t, err)

	results := []scan.Result{
		{Cylinders: []scan.Cylinder{{Ray: 1, Depth: 1}}, Points: []r2.Vec{{X: 1}}},
		{Cylinders: []scan.Cylinder{{Ray: 2, Depth: 2}}},
	}
	require.Error(t, s.RecordResults(runID, results))

	got, err := s.Cylinders(runID)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestPointsByScan_ExtendsPastScanCount(t *testing.T) {
	grouped := PointsByScan([]CylinderRecord{{ScanIndex: 3, Point: r2.Vec{X: 1}}}, 1)
	assert.Len(t, grouped, 4)
	assert.Equal(t, []r2.Vec{{X: 1}}, grouped[3])
}

// =============================================================================
// Tests: summaries
// =============================================================================

func TestRunSummary(t *testing.T) {
	s := openTestStore(t)
	runID, err := s.CreateRun(RunKindCylinders, "mixed", nil)
	require.NoError(t, err)

	require.NoError(t, s.RecordPoses(runID, []motion.Pose{
		{X: 0, Y: 0}, {X: 3, Y: 4}, {X: 3, Y: 10},
	}))
	require.NoError(t, s.RecordScanCylinders(runID, 0,
		[]scan.Cylinder{{Ray: 1, Depth: 100}, {Ray: 2, Depth: 200}},
		[]r2.Vec{{}, {}}))
	require.NoError(t, s.RecordScanCylinders(runID, 4,
		[]scan.Cylinder{{Ray: 3, Depth: 600}},
		[]r2.Vec{{}}))

	sum, err := s.RunSummary(runID)
	require.NoError(t, err)
	assert.Equal(t, runID, sum.Run.ID)
	assert.Equal(t, 3, sum.PoseCount)
	assert.InDelta(t, 11.0, sum.PathLength, 1e-12)
	assert.Equal(t, 2, sum.ScanCount)
	assert.Equal(t, 3, sum.CylinderCount)
	assert.InDelta(t, 300.0, sum.MeanDepth, 1e-12)
}

func TestRunSummary_Empty(t *testing.T) {
	s := openTestStore(t)
	runID, err := s.CreateRun(RunKindPoses, "", nil)
	require.NoError(t, err)

	sum, err := s.RunSummary(runID)
	require.NoError(t, err)
	assert.Zero(t, sum.PoseCount)
	assert.Zero(t, sum.PathLength)
	assert.Zero(t, sum.MeanDepth)

	_, err = s.RunSummary("missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
}
