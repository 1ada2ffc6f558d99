// Package telemetry collects per-rotation records of a restrained-ensemble
// run and appends them to a CSV file, one row per window rotation per
// replica. The records carry enough to follow convergence offline: summary
// statistics of the raw samples and the Jensen-Shannon divergence between
// the rotated window and the experimental reference.
package telemetry

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Rotation is one completed window rotation as seen by one replica.
type Rotation struct {
	Session    string  `csv:"session"`
	Replica    int     `csv:"replica"`
	Window     int     `csv:"window"`
	Time       float64 `csv:"time"`
	SampleMean float64 `csv:"sample_mean"`
	SampleStd  float64 `csv:"sample_std"`
	JS         float64 `csv:"js_divergence"`
	HistMin    float64 `csv:"hist_min"`
	HistMax    float64 `csv:"hist_max"`
}

// NewRotation builds a record from the raw samples the rotation consumed,
// the ensemble-averaged window it produced and the experimental reference
// it is chasing. samples and window must be non-empty.
func NewRotation(session string, replica, window int, t float64, samples, win, ref []float64) (Rotation, error) {
	r := Rotation{Session: session, Replica: replica, Window: window, Time: t}
	if len(samples) == 0 || len(win) == 0 {
		return r, fmt.Errorf("telemetry.NewRotation: empty samples or window")
	}
	r.SampleMean = stat.Mean(samples, nil)
	r.SampleStd = stat.StdDev(samples, nil)
	r.JS = Divergence(win, ref)
	r.HistMin = floats.Min(win)
	r.HistMax = floats.Max(win)
	return r, nil
}

// LogValue lets a Rotation go straight into slog calls as a structured
// group.
func (r Rotation) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("session", r.Session),
		slog.Int("replica", r.Replica),
		slog.Int("window", r.Window),
		slog.Float64("time", r.Time),
		slog.Float64("sample_mean", r.SampleMean),
		slog.Float64("js", r.JS),
	)
}

// Divergence returns the Jensen-Shannon divergence between two histograms
// over the same grid, after normalizing each to a probability vector. It is
// symmetric, and bounded by ln 2 for disjoint distributions. If either
// histogram has no mass (or the lengths differ) there is no meaningful
// divergence and NaN is returned.
func Divergence(win, ref []float64) float64 {
	if len(win) != len(ref) || len(win) == 0 {
		return math.NaN()
	}
	wm := floats.Sum(win)
	rm := floats.Sum(ref)
	if wm <= 0 || rm <= 0 {
		return math.NaN()
	}
	p := make([]float64, len(win))
	q := make([]float64, len(ref))
	floats.AddScaled(p, 1/wm, win)
	floats.AddScaled(q, 1/rm, ref)
	return stat.JensenShannon(p, q)
}

// Writer appends Rotation records to rotations.csv inside dir, creating the
// directory if needed. The CSV header goes out with the first record only,
// so a Writer can be reopened on an existing run directory without
// corrupting the file. A nil Writer discards everything, which lets callers
// leave telemetry off without guarding every call.
type Writer struct {
	f             *os.File
	headerWritten bool
}

// NewWriter opens (or creates) dir/rotations.csv for appending. An empty
// dir disables telemetry: the returned Writer is nil, and nil Writers
// swallow writes silently.
func NewWriter(dir string) (*Writer, error) {
	if dir == "" {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("telemetry: creating output directory: %w", err)
	}
	path := filepath.Join(dir, "rotations.csv")
	fi, err := os.Stat(path)
	f, err2 := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err2 != nil {
		return nil, fmt.Errorf("telemetry: opening %s: %w", path, err2)
	}
	w := &Writer{f: f}
	//an existing non-empty file already has its header
	if err == nil && fi.Size() > 0 {
		w.headerWritten = true
	}
	return w, nil
}

// Write appends one record.
func (w *Writer) Write(r Rotation) error {
	if w == nil {
		return nil
	}
	records := []Rotation{r}
	if !w.headerWritten {
		if err := gocsv.Marshal(records, w.f); err != nil {
			return fmt.Errorf("telemetry: writing record: %w", err)
		}
		w.headerWritten = true
		return nil
	}
	if err := gocsv.MarshalWithoutHeaders(records, w.f); err != nil {
		return fmt.Errorf("telemetry: writing record: %w", err)
	}
	return nil
}

// Close closes the underlying file.
func (w *Writer) Close() error {
	if w == nil {
		return nil
	}
	return w.f.Close()
}

// Read loads every record from a rotations.csv written by a Writer.
func Read(path string) ([]Rotation, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var records []Rotation
	if err := gocsv.Unmarshal(f, &records); err != nil {
		return nil, fmt.Errorf("telemetry: reading %s: %w", path, err)
	}
	return records, nil
}
