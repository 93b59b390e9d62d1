// Command filter-motor turns recorded motor ticks into a pose trajectory.
//
//	filter-motor -log robot4_motors.txt -out poses_from_ticks.txt -png trajectory.png
//
// By default poses track the scanner, displaced forward from the axle
// centre, starting at the configured start pose. -plain tracks the axle
// centre instead and -origin starts at (0, 0, 0).
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/banshee-data/lego-robot/internal/config"
	"github.com/banshee-data/lego-robot/internal/fsutil"
	"github.com/banshee-data/lego-robot/internal/robot/logfile"
	"github.com/banshee-data/lego-robot/internal/robot/motion"
	"github.com/banshee-data/lego-robot/internal/robot/plotting"
	"github.com/banshee-data/lego-robot/internal/robot/store"
	"github.com/banshee-data/lego-robot/internal/version"
)

type options struct {
	configPath string
	logPath    string
	reference  string
	outPath    string
	pngPath    string
	htmlPath   string
	dbPath     string
	plain      bool
	origin     bool
	overrides  *config.Overrides
}

// runParams is stored with each run so it can be reproduced.
type runParams struct {
	Calibration motion.Calibration `json:"calibration"`
	Start       motion.Pose        `json:"start"`
}

func main() {
	var o options
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.StringVar(&o.configPath, "config", "", "path to tuning JSON (built-in defaults when empty)")
	flag.StringVar(&o.logPath, "log", "robot4_motors.txt", "log file with M records")
	flag.StringVar(&o.reference, "reference", "", "optional log file with P reference positions")
	flag.StringVar(&o.outPath, "out", "poses_from_ticks.txt", "output file for F records")
	flag.StringVar(&o.pngPath, "png", "", "optional trajectory PNG")
	flag.StringVar(&o.htmlPath, "html", "", "optional trajectory HTML report")
	flag.StringVar(&o.dbPath, "db", "", "optional sqlite run store")
	flag.BoolVar(&o.plain, "plain", false, "track the axle centre (ignore scanner_displacement)")
	flag.BoolVar(&o.origin, "origin", false, "start at (0, 0, 0) instead of the configured start pose")
	o.overrides = config.RegisterOverrides(flag.CommandLine)
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String("filter-motor"))
		return
	}

	if err := run(o, fsutil.OSFileSystem{}, os.Stdout); err != nil {
		log.Fatalf("filter-motor: %v", err)
	}
}

func run(o options, fsys fsutil.FileSystem, stdout io.Writer) error {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}
	if o.overrides != nil {
		if err := o.overrides.Apply(cfg); err != nil {
			return err
		}
	}

	cal := cfg.Calibration()
	if o.plain {
		cal.ScannerDisplacement = 0
	}
	start := cfg.GetStartPose()
	if o.origin {
		start = motion.Pose{}
	}

	lf := logfile.New(cfg.LogOptions())
	if err := lf.ReadFile(fsys, o.logPath); err != nil {
		return err
	}
	if o.reference != "" {
		if err := lf.ReadFile(fsys, o.reference); err != nil {
			return err
		}
	}
	if len(lf.MotorTicks) == 0 {
		return fmt.Errorf("%s: no motor tick increments", o.logPath)
	}

	poses := motion.Filter(start, lf.MotorTicks, cal)

	if err := logfile.WriteFile(fsys, o.outPath, func(w io.Writer) error {
		return logfile.WritePoses(w, poses)
	}); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "wrote %d poses to %s\n", len(poses), o.outPath)

	if o.pngPath != "" {
		p, err := plotting.Trajectory(poses, lf.ReferencePositions)
		if err != nil {
			return err
		}
		if err := plotting.SavePNG(fsys, o.pngPath, p, plotting.DefaultHeight, plotting.DefaultHeight); err != nil {
			return err
		}
	}

	if o.htmlPath != "" {
		if err := logfile.WriteFile(fsys, o.htmlPath, func(w io.Writer) error {
			return plotting.Report(w, "filter-motor: "+o.logPath, poses, nil)
		}); err != nil {
			return err
		}
	}

	if o.dbPath != "" {
		st, err := store.Open(o.dbPath)
		if err != nil {
			return err
		}
		defer st.Close()

		runID, err := st.CreateRun(store.RunKindPoses, o.logPath, runParams{Calibration: cal, Start: start})
		if err != nil {
			return err
		}
		if err := st.RecordPoses(runID, poses); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "stored run %s in %s\n", runID, o.dbPath)
	}
	return nil
}
