// Command runs lists and summarises the runs recorded by filter-motor and
// find-cylinders.
//
//	runs -db runs.db
//	runs -db runs.db -run <id> -poses
//	runs -db runs.db -delete <id>
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"text/tabwriter"

	"github.com/banshee-data/lego-robot/internal/robot/logfile"
	"github.com/banshee-data/lego-robot/internal/robot/store"
	"github.com/banshee-data/lego-robot/internal/version"
)

type options struct {
	dbPath    string
	runID     string
	poses     bool
	cylinders bool
	deleteID  string
}

func main() {
	var o options
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.StringVar(&o.dbPath, "db", "runs.db", "path to sqlite run store")
	flag.StringVar(&o.runID, "run", "", "summarise a single run")
	flag.BoolVar(&o.poses, "poses", false, "with -run, dump the run's poses as F records")
	flag.BoolVar(&o.cylinders, "cylinders", false, "with -run, dump the run's detections as D records")
	flag.StringVar(&o.deleteID, "delete", "", "delete a run")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String("runs"))
		return
	}

	if err := run(o, os.Stdout); err != nil {
		log.Fatalf("runs: %v", err)
	}
}

func run(o options, stdout io.Writer) error {
	st, err := store.Open(o.dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	switch {
	case o.deleteID != "":
		if err := st.DeleteRun(o.deleteID); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "deleted run %s\n", o.deleteID)
		return nil
	case o.runID != "":
		return showRun(st, o, stdout)
	}

	v, dirty, err := st.MigrateVersion()
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "schema version %d (dirty=%t)\n", v, dirty)

	runs, err := st.ListRuns()
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tKIND\tSOURCE\tCREATED\tPOSES\tCYLINDERS")
	for _, r := range runs {
		sum, err := st.RunSummary(r.ID)
		if err != nil {
			return err
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\n",
			r.ID, r.Kind, r.Source, r.CreatedAt.Format("2006-01-02 15:04:05"), sum.PoseCount, sum.CylinderCount)
	}
	return tw.Flush()
}

func showRun(st *store.Store, o options, stdout io.Writer) error {
	sum, err := st.RunSummary(o.runID)
	if err != nil {
		return err
	}

	if !o.poses && !o.cylinders {
		fmt.Fprintf(stdout, "run:        %s\n", sum.Run.ID)
		fmt.Fprintf(stdout, "kind:       %s\n", sum.Run.Kind)
		fmt.Fprintf(stdout, "source:     %s\n", sum.Run.Source)
		fmt.Fprintf(stdout, "params:     %s\n", sum.Run.ParamsJSON)
		fmt.Fprintf(stdout, "poses:      %d (path %.1f mm)\n", sum.PoseCount, sum.PathLength)
		fmt.Fprintf(stdout, "cylinders:  %d in %d scans (mean depth %.1f mm)\n", sum.CylinderCount, sum.ScanCount, sum.MeanDepth)
		return nil
	}

	if o.poses {
		poses, err := st.Poses(o.runID)
		if err != nil {
			return err
		}
		if err := logfile.WritePoses(stdout, poses); err != nil {
			return err
		}
	}
	if o.cylinders {
		records, err := st.Cylinders(o.runID)
		if err != nil {
			return err
		}
		scans, err := scanCount(sum.Run.ParamsJSON)
		if err != nil {
			return err
		}
		if err := logfile.WriteCylinders(stdout, store.PointsByScan(records, scans)); err != nil {
			return err
		}
	}
	return nil
}

// scanCount reads the number of scans find-cylinders stores with a run.
// Runs without one report only up to their last detection.
func scanCount(paramsJSON string) (int, error) {
	var p struct {
		Scans int `json:"scans"`
	}
	if err := json.Unmarshal([]byte(paramsJSON), &p); err != nil {
		return 0, fmt.Errorf("failed to decode run params: %w", err)
	}
	return p.Scans, nil
}
