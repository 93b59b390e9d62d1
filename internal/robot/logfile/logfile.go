// Package logfile reads and writes the Lego robot's text log format.
//
// Each line is one record. The first character of the first token is the
// record type:
//
//	P  reference position of the robot
//	S  scan data
//	I  indices of poles in the scan data
//	M  motor (odometer tick) data
//	F  filtered data: robot position, optionally with heading
//	L  reference landmark
//	D  detected landmarks, in the scanner's coordinate system
//
// Reading several files into one Logfile merges them per record type: the
// first record of a type in a file replaces whatever that type held before.
package logfile

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/banshee-data/lego-robot/internal/fsutil"
	"github.com/banshee-data/lego-robot/internal/monitoring"
	"github.com/banshee-data/lego-robot/internal/robot/motion"
)

var logf = monitoring.Component("logfile")

// maxLineBytes bounds a single record. A full scan is a few kilobytes.
const maxLineBytes = 1 << 20

// ErrShortRecord is returned when a record has fewer fields than its type
// requires.
var ErrShortRecord = errors.New("record has too few fields")

// ErrOddCoordinates is returned when a D record does not hold x/y pairs.
var ErrOddCoordinates = errors.New("detected landmark record has an odd number of coordinates")

// ParseError describes a malformed record.
type ParseError struct {
	Line   int
	Record byte
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %c record: %v", e.Line, e.Record, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Options selects between record layout variants.
type Options struct {
	// ScanRecordHasCount is set for logs whose S records carry the number
	// of scan points before the readings.
	ScanRecordHasCount bool
}

// DefaultOptions matches the robot4 logs.
func DefaultOptions() Options {
	return Options{ScanRecordHasCount: true}
}

// ReferencePosition is a P record.
type ReferencePosition struct {
	X, Y int
}

// FilteredPosition is an F record. Heading is only meaningful when
// HasHeading is set.
type FilteredPosition struct {
	X, Y       float64
	Heading    float64
	HasHeading bool
}

// Landmark is an L record.
type Landmark struct {
	Type     byte
	X, Y     float64
	Diameter float64
}

// Logfile holds everything read from one or more robot logs.
type Logfile struct {
	Options Options

	ReferencePositions []ReferencePosition
	ScanData           [][]int
	PoleIndices        [][]int
	// MotorTicks holds per-sample increments. The first M record of a read
	// only sets the baseline, which MotorStart keeps as absolute counters.
	MotorTicks        []motion.Ticks
	MotorStart        motion.Ticks
	FilteredPositions []FilteredPosition
	Landmarks         []Landmark
	DetectedCylinders [][]r2.Vec

	lastLeft, lastRight int
	haveLastTicks       bool
}

// New returns an empty Logfile using opts.
func New(opts Options) *Logfile {
	return &Logfile{Options: opts}
}

// ReadFile reads the named log from fsys into l.
func (l *Logfile) ReadFile(fsys fsutil.FileSystem, name string) error {
	f, err := fsys.Open(name)
	if err != nil {
		return fmt.Errorf("failed to open log %s: %w", name, err)
	}
	defer f.Close()

	if err := l.Read(f); err != nil {
		return fmt.Errorf("failed to read log %s: %w", name, err)
	}
	return nil
}

// Read parses records from r into l. Reading stops at the first empty line.
// A malformed record aborts the read with a *ParseError; records before it
// are kept.
func (l *Logfile) Read(r io.Reader) error {
	seen := make(map[byte]bool)
	first := func(kind byte) bool {
		if seen[kind] {
			return false
		}
		seen[kind] = true
		return true
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	lineNo := 0
	for sc.Scan() {
		lineNo++
		tokens := strings.Fields(sc.Text())
		if len(tokens) == 0 {
			break
		}

		kind := tokens[0][0]
		if err := l.parseRecord(kind, tokens, first); err != nil {
			return &ParseError{Line: lineNo, Record: kind, Err: err}
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("scan failed after line %d: %w", lineNo, err)
	}

	logf("read %d lines: %d scans, %d motor increments, %d reference positions",
		lineNo, len(l.ScanData), len(l.MotorTicks), len(l.ReferencePositions))
	return nil
}

func (l *Logfile) parseRecord(kind byte, tokens []string, first func(byte) bool) error {
	switch kind {
	case 'P':
		if len(tokens) < 4 {
			return ErrShortRecord
		}
		x, err := strconv.Atoi(tokens[2])
		if err != nil {
			return err
		}
		y, err := strconv.Atoi(tokens[3])
		if err != nil {
			return err
		}
		if first('P') {
			l.ReferencePositions = nil
		}
		l.ReferencePositions = append(l.ReferencePositions, ReferencePosition{X: x, Y: y})

	case 'S':
		start := 2
		if l.Options.ScanRecordHasCount {
			start = 3
		}
		if len(tokens) < start {
			return ErrShortRecord
		}
		scan, err := atoiAll(tokens[start:])
		if err != nil {
			return err
		}
		if first('S') {
			l.ScanData = nil
		}
		l.ScanData = append(l.ScanData, scan)

	case 'I':
		if len(tokens) < 2 {
			return ErrShortRecord
		}
		indices, err := atoiAll(tokens[2:])
		if err != nil {
			return err
		}
		if first('I') {
			l.PoleIndices = nil
		}
		l.PoleIndices = append(l.PoleIndices, indices)

	case 'M':
		if len(tokens) < 7 {
			return ErrShortRecord
		}
		left, err := strconv.Atoi(tokens[2])
		if err != nil {
			return err
		}
		right, err := strconv.Atoi(tokens[6])
		if err != nil {
			return err
		}
		if first('M') {
			l.MotorTicks = nil
			l.MotorStart = motion.Ticks{Left: left, Right: right}
			l.haveLastTicks = false
		}
		if l.haveLastTicks {
			l.MotorTicks = append(l.MotorTicks, motion.Ticks{
				Left:  left - l.lastLeft,
				Right: right - l.lastRight,
			})
		}
		l.lastLeft, l.lastRight, l.haveLastTicks = left, right, true

	case 'F':
		if len(tokens) < 3 {
			return ErrShortRecord
		}
		vals, err := parseFloats(tokens[1:])
		if err != nil {
			return err
		}
		fp := FilteredPosition{X: vals[0], Y: vals[1]}
		if len(vals) > 2 {
			fp.Heading, fp.HasHeading = vals[2], true
		}
		if first('F') {
			l.FilteredPositions = nil
		}
		l.FilteredPositions = append(l.FilteredPositions, fp)

	case 'L':
		if len(tokens) < 5 {
			return ErrShortRecord
		}
		vals, err := parseFloats(tokens[2:5])
		if err != nil {
			return err
		}
		if first('L') {
			l.Landmarks = nil
		}
		l.Landmarks = append(l.Landmarks, Landmark{
			Type: tokens[1][0], X: vals[0], Y: vals[1], Diameter: vals[2],
		})

	case 'D':
		if len(tokens) < 2 {
			return ErrShortRecord
		}
		coords := tokens[2:]
		if len(coords)%2 != 0 {
			return ErrOddCoordinates
		}
		vals, err := parseFloats(coords)
		if err != nil {
			return err
		}
		cylinders := make([]r2.Vec, 0, len(vals)/2)
		for i := 0; i < len(vals); i += 2 {
			cylinders = append(cylinders, r2.Vec{X: vals[i], Y: vals[i+1]})
		}
		if first('D') {
			l.DetectedCylinders = nil
		}
		l.DetectedCylinders = append(l.DetectedCylinders, cylinders)
	}
	return nil
}

func atoiAll(tokens []string) ([]int, error) {
	out := make([]int, 0, len(tokens))
	for _, tok := range tokens {
		v, err := strconv.Atoi(tok)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func parseFloats(tokens []string) ([]float64, error) {
	out := make([]float64, 0, len(tokens))
	for _, tok := range tokens {
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Size returns the number of entries in the longest record list.
func (l *Logfile) Size() int {
	return max(
		len(l.ReferencePositions),
		len(l.ScanData),
		len(l.PoleIndices),
		len(l.MotorTicks),
		len(l.FilteredPositions),
		len(l.DetectedCylinders),
	)
}

// Info summarises entry i: reference position, number of scan points, pole
// indices, motor ticks and filtered position, as far as they exist.
func (l *Logfile) Info(i int) string {
	var b strings.Builder
	if i < len(l.ReferencePositions) {
		p := l.ReferencePositions[i]
		fmt.Fprintf(&b, " | ref-pos: %d %d", p.X, p.Y)
	}
	if i < len(l.ScanData) {
		fmt.Fprintf(&b, " | scan-points: %d", len(l.ScanData[i]))
	}
	if i < len(l.PoleIndices) {
		b.WriteString(" | pole-indices:")
		for _, idx := range l.PoleIndices[i] {
			fmt.Fprintf(&b, " %d", idx)
		}
	}
	if i < len(l.MotorTicks) {
		t := l.MotorTicks[i]
		fmt.Fprintf(&b, " | motor: %d %d", t.Left, t.Right)
	}
	if i < len(l.FilteredPositions) {
		f := l.FilteredPositions[i]
		fmt.Fprintf(&b, " | filtered-pos: %f %f", f.X, f.Y)
		if f.HasHeading {
			fmt.Fprintf(&b, " %f", f.Heading)
		}
	}
	return b.String()
}
