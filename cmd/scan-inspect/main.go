// Command scan-inspect prints and plots the raw contents of robot logs.
//
//	scan-inspect -log robot4_motors.txt -increments 20
//	scan-inspect -log robot4_scan.txt -scan 8 -scan-png scan8.png
//	scan-inspect -log robot4_motors.txt -log robot4_scan.txt -info
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/banshee-data/lego-robot/internal/config"
	"github.com/banshee-data/lego-robot/internal/fsutil"
	"github.com/banshee-data/lego-robot/internal/robot/logfile"
	"github.com/banshee-data/lego-robot/internal/robot/plotting"
	"github.com/banshee-data/lego-robot/internal/robot/scan"
	"github.com/banshee-data/lego-robot/internal/version"
)

// logList collects repeated -log flags.
type logList []string

func (l *logList) String() string     { return strings.Join(*l, ",") }
func (l *logList) Set(v string) error { *l = append(*l, v); return nil }

type options struct {
	configPath    string
	logs          logList
	increments    int
	info          bool
	scanIndex     int
	scanPNG       string
	ticksPNG      string
	incrementsPNG string
}

func main() {
	var o options
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.StringVar(&o.configPath, "config", "", "path to tuning JSON (built-in defaults when empty)")
	flag.Var(&o.logs, "log", "log file to read (repeatable)")
	flag.IntVar(&o.increments, "increments", 0, "print the first N motor increments")
	flag.BoolVar(&o.info, "info", false, "print a one-line summary per record index")
	flag.IntVar(&o.scanIndex, "scan", 0, "scan index for -scan-png")
	flag.StringVar(&o.scanPNG, "scan-png", "", "PNG of one scan and its derivative")
	flag.StringVar(&o.ticksPNG, "ticks-png", "", "PNG of cumulative motor ticks")
	flag.StringVar(&o.incrementsPNG, "increments-png", "", "PNG of motor increments")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String("scan-inspect"))
		return
	}
	if len(o.logs) == 0 {
		log.Fatalf("scan-inspect: at least one -log is required")
	}

	if err := run(o, fsutil.OSFileSystem{}, os.Stdout); err != nil {
		log.Fatalf("scan-inspect: %v", err)
	}
}

func run(o options, fsys fsutil.FileSystem, stdout io.Writer) error {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}

	lf := logfile.New(cfg.LogOptions())
	for _, name := range o.logs {
		if err := lf.ReadFile(fsys, name); err != nil {
			return err
		}
	}

	if o.increments > 0 {
		if err := logfile.WriteIncrements(stdout, lf.MotorTicks, o.increments); err != nil {
			return err
		}
	}

	if o.info {
		for i := 0; i < lf.Size(); i++ {
			fmt.Fprintf(stdout, "%d%s\n", i, lf.Info(i))
		}
	}

	if o.scanPNG != "" {
		if o.scanIndex < 0 || o.scanIndex >= len(lf.ScanData) {
			return fmt.Errorf("scan %d out of range [0, %d)", o.scanIndex, len(lf.ScanData))
		}
		ex := cfg.Extractor()
		s := scan.FromInts(lf.ScanData[o.scanIndex])
		d := scan.ComputeDerivative(s, ex.Params.MinDist)
		p, err := plotting.Scan(s, d, nil)
		if err != nil {
			return err
		}
		if err := plotting.SavePNG(fsys, o.scanPNG, p, plotting.DefaultWidth, plotting.DefaultHeight); err != nil {
			return err
		}
	}

	if o.ticksPNG != "" || o.incrementsPNG != "" {
		if len(lf.MotorTicks) == 0 {
			return fmt.Errorf("no motor records to plot")
		}
	}
	if o.ticksPNG != "" {
		p, err := plotting.MotorTicks(lf.MotorStart, lf.MotorTicks)
		if err != nil {
			return err
		}
		if err := plotting.SavePNG(fsys, o.ticksPNG, p, plotting.DefaultWidth, plotting.DefaultHeight); err != nil {
			return err
		}
	}
	if o.incrementsPNG != "" {
		p, err := plotting.Increments(lf.MotorTicks)
		if err != nil {
			return err
		}
		if err := plotting.SavePNG(fsys, o.incrementsPNG, p, plotting.DefaultWidth, plotting.DefaultHeight); err != nil {
			return err
		}
	}
	return nil
}
