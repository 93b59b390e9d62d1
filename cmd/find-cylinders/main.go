// Command find-cylinders extracts cylinder landmarks from every scan in a
// log and writes them as D records in the scanner's Cartesian frame.
//
//	find-cylinders -log robot4_scan.txt -out cylinders.txt -policy retrigger
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/banshee-data/lego-robot/internal/config"
	"github.com/banshee-data/lego-robot/internal/fsutil"
	"github.com/banshee-data/lego-robot/internal/robot/logfile"
	"github.com/banshee-data/lego-robot/internal/robot/plotting"
	"github.com/banshee-data/lego-robot/internal/robot/scan"
	"github.com/banshee-data/lego-robot/internal/robot/store"
	"github.com/banshee-data/lego-robot/internal/version"
)

type options struct {
	configPath string
	logPath    string
	outPath    string
	plotScan   int
	pngPath    string
	htmlPath   string
	dbPath     string
	verbose    bool
	overrides  *config.Overrides
}

// runParams is stored with each run so it can be reproduced. Scans lets
// readers restore trailing scans that had no detections.
type runParams struct {
	Jump              float64 `json:"depth_jump"`
	MinDist           float64 `json:"minimum_valid_distance"`
	Policy            string  `json:"segment_policy"`
	Ceiling           float64 `json:"retrigger_ceiling"`
	CylinderOffset    float64 `json:"cylinder_offset"`
	BeamCount         int     `json:"beam_count"`
	AngularResolution float64 `json:"angular_resolution"`
	MountingAngle     float64 `json:"mounting_angle"`
	Scans             int     `json:"scans"`
}

func main() {
	var o options
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.StringVar(&o.configPath, "config", "", "path to tuning JSON (built-in defaults when empty)")
	flag.StringVar(&o.logPath, "log", "robot4_scan.txt", "log file with S records")
	flag.StringVar(&o.outPath, "out", "cylinders.txt", "output file for D records")
	flag.IntVar(&o.plotScan, "plot-scan", 0, "scan index drawn into -png")
	flag.StringVar(&o.pngPath, "png", "", "optional PNG of one scan, its derivative and cylinders")
	flag.StringVar(&o.htmlPath, "html", "", "optional HTML report of all detections")
	flag.StringVar(&o.dbPath, "db", "", "optional sqlite run store")
	flag.BoolVar(&o.verbose, "v", false, "print every cylinder")
	o.overrides = config.RegisterOverrides(flag.CommandLine)
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String("find-cylinders"))
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, o, fsutil.OSFileSystem{}, os.Stdout); err != nil {
		log.Fatalf("find-cylinders: %v", err)
	}
}

func run(ctx context.Context, o options, fsys fsutil.FileSystem, stdout io.Writer) error {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}
	if o.overrides != nil {
		if err := o.overrides.Apply(cfg); err != nil {
			return err
		}
	}
	ex := cfg.Extractor()

	lf := logfile.New(cfg.LogOptions())
	if err := lf.ReadFile(fsys, o.logPath); err != nil {
		return err
	}
	if len(lf.ScanData) == 0 {
		return fmt.Errorf("%s: no scans", o.logPath)
	}

	results, err := ex.ExtractAll(ctx, lf.ScanData, cfg.GetWorkers())
	if err != nil {
		return err
	}

	points := make([][]r2.Vec, len(results))
	total := 0
	for i, r := range results {
		points[i] = r.Points
		total += len(r.Cylinders)
		if o.verbose {
			for j, c := range r.Cylinders {
				fmt.Fprintf(stdout, "scan %d: ray %.2f depth %.2f -> (%.1f, %.1f)\n",
					i, c.Ray, c.Depth, r.Points[j].X, r.Points[j].Y)
			}
		}
	}

	if err := logfile.WriteFile(fsys, o.outPath, func(w io.Writer) error {
		return logfile.WriteCylinders(w, points)
	}); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "found %d cylinders in %d scans (%s policy), wrote %s\n",
		total, len(results), ex.Params.Policy, o.outPath)

	if o.pngPath != "" {
		if o.plotScan < 0 || o.plotScan >= len(results) {
			return fmt.Errorf("plot-scan %d out of range [0, %d)", o.plotScan, len(results))
		}
		s := scan.FromInts(lf.ScanData[o.plotScan])
		r := results[o.plotScan]
		p, err := plotting.Scan(s, r.Derivative, r.Cylinders)
		if err != nil {
			return err
		}
		if err := plotting.SavePNG(fsys, o.pngPath, p, plotting.DefaultWidth, plotting.DefaultHeight); err != nil {
			return err
		}
	}

	if o.htmlPath != "" {
		if err := logfile.WriteFile(fsys, o.htmlPath, func(w io.Writer) error {
			return plotting.Report(w, "find-cylinders: "+o.logPath, nil, points)
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

		params := runParams{
			Jump:              ex.Params.Jump,
			MinDist:           ex.Params.MinDist,
			Policy:            ex.Params.Policy.String(),
			Ceiling:           ex.Params.Ceiling,
			CylinderOffset:    ex.CylinderOffset,
			BeamCount:         ex.Geometry.BeamCount,
			AngularResolution: ex.Geometry.AngularResolution,
			MountingAngle:     ex.Geometry.MountingAngle,
			Scans:             len(results),
		}
		runID, err := st.CreateRun(store.RunKindCylinders, o.logPath, params)
		if err != nil {
			return err
		}
		if err := st.RecordResults(runID, results); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "stored run %s in %s\n", runID, o.dbPath)
	}
	return nil
}
