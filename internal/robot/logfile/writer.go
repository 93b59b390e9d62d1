package logfile

import (
	"bufio"
	"fmt"
	"io"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/banshee-data/lego-robot/internal/fsutil"
	"github.com/banshee-data/lego-robot/internal/robot/motion"
)

// WritePoses writes one "F x y theta" record per pose.
func WritePoses(w io.Writer, poses []motion.Pose) error {
	bw := bufio.NewWriter(w)
	for _, p := range poses {
		if _, err := fmt.Fprintf(bw, "F %.12f %.12f %.12f\n", p.X, p.Y, p.Theta); err != nil {
			return fmt.Errorf("failed to write pose: %w", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to flush poses: %w", err)
	}
	return nil
}

// WriteCylinders writes one "D C x0 y0 x1 y1 ..." record per scan. A scan
// without detections still produces a "D C" line so that line numbers stay
// aligned with scans.
func WriteCylinders(w io.Writer, scans [][]r2.Vec) error {
	bw := bufio.NewWriter(w)
	for _, points := range scans {
		if _, err := bw.WriteString("D C"); err != nil {
			return fmt.Errorf("failed to write cylinders: %w", err)
		}
		for _, p := range points {
			if _, err := fmt.Fprintf(bw, " %.6f %.6f", p.X, p.Y); err != nil {
				return fmt.Errorf("failed to write cylinders: %w", err)
			}
		}
		if err := bw.WriteByte('\n'); err != nil {
			return fmt.Errorf("failed to write cylinders: %w", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to flush cylinders: %w", err)
	}
	return nil
}

// WriteIncrements writes the first n tick increments as "left, right"
// lines. n <= 0 writes all of them.
func WriteIncrements(w io.Writer, ticks []motion.Ticks, n int) error {
	if n <= 0 || n > len(ticks) {
		n = len(ticks)
	}
	bw := bufio.NewWriter(w)
	for _, t := range ticks[:n] {
		if _, err := fmt.Fprintf(bw, "%d, %d\n", t.Left, t.Right); err != nil {
			return fmt.Errorf("failed to write increments: %w", err)
		}
	}
	return bw.Flush()
}

// WriteFile creates name on fsys and hands it to write.
func WriteFile(fsys fsutil.FileSystem, name string, write func(io.Writer) error) error {
	f, err := fsutil.CreateAll(fsys, name)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", name, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", name, err)
	}
	return nil
}
