/*
 * session.go, part of ensrest.
 *
 * Copyright 2026 The ensrest developers
 *
 * This program is free software; you can redistribute it and/or modify
 * it under the terms of the GNU Lesser General Public License as
 * published by the Free Software Foundation; either version 2.1 of the
 * License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU Lesser General
 * Public License along with this program.  If not, see
 * <http://www.gnu.org/licenses/>.
 *
 */

//Package session runs whole restrained ensembles in one process, one
//goroutine per replica. Each replica advances a Brownian toy model of the
//restrained pair distance under the bias force, driving the potential's
//update callback every step exactly like a host engine would on its
//designated rank. All replicas share one in-process reduction, so their
//window rotations couple the same way MPI ranks of a real ensemble do.
//
//The toy dynamics is overdamped diffusion on a line:
//
//	x += (D/kT)*F*dt + sqrt(2*D*dt)*xi
//
//with xi a standard normal deviate per step. It is a driver for exercising
//and demonstrating the restraint runtime, not an MD engine.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/spatial/r3"

	"ensrest"
	"ensrest/ensemble"
	"ensrest/ensplot"
	"ensrest/storage"
	"ensrest/telemetry"
	"ensrest/trace"
)

// Options holds the runner's knobs. Zero values are not usable; start from
// DefaultOptions and override.
type Options struct {
	Replicas  int
	Steps     int
	Dt        float64 //integration timestep, ps
	Seed      int64   //each replica gets Seed+rank
	StartDist float64 //initial pair distance, nm
	Diffusion float64 //diffusion coefficient of the toy pair, nm^2/ps
	KT        float64 //thermal energy, kJ/mol

	Label       string
	CSVDir      string //per-rotation telemetry CSV, empty disables
	TracePath   string //rotation-history file, empty disables
	PlotDir     string //final-state plots, empty disables
	ArchivePath string //sqlite run archive, empty disables
	ParamsYAML  string //parameter file text to store with the archive entry

	Logger *slog.Logger //nil means slog.Default()
}

// DefaultOptions returns options for a small smoke-test run with every
// output sink disabled.
func DefaultOptions() *Options {
	return &Options{
		Replicas:  4,
		Steps:     10000,
		Dt:        0.02,
		Seed:      42,
		StartDist: 3.0,
		Diffusion: 0.05,
		KT:        2.494,
		Label:     "demo",
	}
}

//replicaReport is what one replica hands back at the end of its run.
type replicaReport struct {
	rotations  int
	finalDist  float64
	histogram  []float64
	divergence float64
	timing     ensrest.TimingStats
	pot        *ensrest.EnsemblePotential //kept for the final plots
}

// Summary is the result of a completed run.
type Summary struct {
	ID       string
	Label    string
	Replicas int
	Steps    int
	Elapsed  time.Duration

	Rotations     []int     //completed window rotations, per replica
	FinalDistance []float64 //final pair distance, per replica
	Divergence    []float64 //JS divergence of the newest window to the reference, per replica

	Histogram []float64          //rank 0's final bias-driving histogram
	Timing    ensrest.TimingStats //rank 0's reduction timing
}

// Session is one configured ensemble run. Build it with New, run it once
// with Run.
type Session struct {
	conf  ensrest.Config
	sites []int
	o     Options
	id    string

	mu      sync.Mutex //serializes the output sinks across replicas
	csv     *telemetry.Writer
	history *trace.Writer
	store   *storage.Store
}

// New validates the configuration and the options and returns a Session
// with a fresh unique ID. The options are copied; changing o afterwards
// does not affect the session.
func New(conf *ensrest.Config, sites []int, o *Options) (*Session, error) {
	if conf == nil || o == nil {
		return nil, fmt.Errorf("session: nil configuration or options")
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	if len(sites) != 2 {
		return nil, fmt.Errorf("session: a pair restraint needs exactly 2 sites, got %d", len(sites))
	}
	if o.Replicas < 1 || o.Steps < 1 {
		return nil, fmt.Errorf("session: need at least 1 replica and 1 step")
	}
	if o.Dt <= 0 || o.Diffusion <= 0 || o.KT <= 0 {
		return nil, fmt.Errorf("session: dt, diffusion and kt must all be positive")
	}
	if o.StartDist <= 0 {
		return nil, fmt.Errorf("session: the starting distance must be positive")
	}
	if float64(o.Steps)*o.Dt < float64(conf.NSamples)*conf.SamplePeriod {
		return nil, fmt.Errorf("session: %d steps of %v never reach the first window update at %v",
			o.Steps, o.Dt, float64(conf.NSamples)*conf.SamplePeriod)
	}
	s := &Session{
		conf:  *conf,
		sites: append([]int{}, sites...),
		o:     *o,
		id:    uuid.NewString(),
	}
	s.conf.Experimental = append([]float64{}, conf.Experimental...)
	if s.o.Logger == nil {
		s.o.Logger = slog.Default()
	}
	return s, nil
}

// ID returns the session's unique identifier, used to tag telemetry and
// archive rows.
func (s *Session) ID() string { return s.id }

// Run drives the whole ensemble to completion and returns its Summary. The
// first replica error (or a canceled ctx) aborts the run: the in-process
// ensembles are closed so no replica stays blocked in a half-filled
// reduction round, and the error comes back to the caller. Run can only be
// called once per Session.
func (s *Session) Run(ctx context.Context) (*Summary, error) {
	log := s.o.Logger
	start := time.Now()
	if err := s.openSinks(ctx); err != nil {
		return nil, err
	}
	defer s.closeSinks()

	ens, err := ensemble.New(s.o.Replicas)
	if err != nil {
		return nil, err
	}
	timing, err := ensemble.New(s.o.Replicas)
	if err != nil {
		ens.Close()
		return nil, err
	}
	defer ens.Close()
	defer timing.Close()

	log.Info("ensemble run starting", "session", s.id, "label", s.o.Label,
		"replicas", s.o.Replicas, "steps", s.o.Steps)

	reports := make([]replicaReport, s.o.Replicas)
	errc := make(chan error, s.o.Replicas)
	for rank := 0; rank < s.o.Replicas; rank++ {
		go func(rank int) {
			errc <- s.replica(ctx, rank, ens, timing, &reports[rank])
		}(rank)
	}
	var first error
	for i := 0; i < s.o.Replicas; i++ {
		if err := <-errc; err != nil && first == nil {
			first = err
			//release anyone blocked in a reduction round
			ens.Close()
			timing.Close()
		}
	}
	if first != nil {
		log.Error("ensemble run failed", "session", s.id, "error", first)
		return nil, first
	}

	sum := &Summary{
		ID:            s.id,
		Label:         s.o.Label,
		Replicas:      s.o.Replicas,
		Steps:         s.o.Steps,
		Elapsed:       time.Since(start),
		Rotations:     make([]int, s.o.Replicas),
		FinalDistance: make([]float64, s.o.Replicas),
		Divergence:    make([]float64, s.o.Replicas),
		Histogram:     reports[0].histogram,
		Timing:        reports[0].timing,
	}
	for i, r := range reports {
		sum.Rotations[i] = r.rotations
		sum.FinalDistance[i] = r.finalDist
		sum.Divergence[i] = r.divergence
	}
	log.Info("ensemble run finished", "session", s.id, "elapsed", sum.Elapsed,
		"rotations", sum.Rotations[0], "divergence", sum.Divergence[0])
	if err := s.plots(&reports[0]); err != nil {
		return nil, err
	}
	return sum, nil
}

//replica runs one member of the ensemble to completion.
func (s *Session) replica(ctx context.Context, rank int, ens, timing *ensemble.Ensemble, rep *replicaReport) error {
	pot, err := ensrest.New(s.conf)
	if err != nil {
		return err
	}
	member, err := ens.Member(rank)
	if err != nil {
		return err
	}
	rest, err := ensrest.NewRestraint(s.sites, pot, member)
	if err != nil {
		return err
	}
	timer := ensrest.NewTimingPotential()
	tmember, err := timing.Member(rank)
	if err != nil {
		return err
	}
	trest, err := ensrest.NewRestraint(s.sites, timer, tmember)
	if err != nil {
		return err
	}
	rng := rand.New(rand.NewSource(s.o.Seed + int64(rank)))
	x := s.o.StartDist
	v0 := r3.Vec{}
	mobility := s.o.Diffusion / s.o.KT
	noise := math.Sqrt(2 * s.o.Diffusion * s.o.Dt)
	for step := 1; step <= s.o.Steps; step++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		t := float64(step) * s.o.Dt
		v := r3.Vec{X: x}
		before := pot.WindowCount()
		if err := rest.Update(v, v0, t); err != nil {
			return err
		}
		if pot.WindowCount() != before {
			if err := s.recordRotation(ctx, rank, t, pot); err != nil {
				return err
			}
			//time the bare reduction right after the real one, so both
			//stay in lockstep across replicas
			if err := trest.Update(v, v0, t); err != nil {
				return err
			}
		}
		f := rest.Evaluate(v, v0, t).Force.X
		x += mobility*f*s.o.Dt + noise*rng.NormFloat64()
		if x < 1e-3 { //a pair distance can't go through zero
			x = 1e-3
		}
	}
	rep.rotations = pot.WindowCount()
	rep.finalDist = x
	rep.histogram = pot.Histogram()
	rep.timing = timer.Stats()
	rep.pot = pot
	if wins := pot.Windows(); len(wins) > 0 {
		rep.divergence = telemetry.Divergence(wins[len(wins)-1], s.conf.Experimental)
	} else {
		rep.divergence = math.NaN()
	}
	return nil
}

//recordRotation pushes one completed rotation into whichever sinks are
//enabled. Sink access is serialized across replicas.
func (s *Session) recordRotation(ctx context.Context, rank int, t float64, pot *ensrest.EnsemblePotential) error {
	if s.csv == nil && s.history == nil && s.store == nil {
		return nil
	}
	wins := pot.Windows()
	win := wins[len(wins)-1]
	rec, err := telemetry.NewRotation(s.id, rank, pot.WindowCount(), t,
		pot.LastSamples(), win, s.conf.Experimental)
	if err != nil {
		return err
	}
	s.o.Logger.Debug("window rotated", "rotation", rec)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.csv.Write(rec); err != nil {
		return err
	}
	if s.history != nil {
		info := trace.FrameInfo{Window: rec.Window, Replica: rank, Time: t}
		if err := s.history.WNext(win, info); err != nil {
			return err
		}
	}
	if s.store != nil {
		err := s.store.AddRotation(ctx, storage.Rotation{
			SessionID: s.id,
			Replica:   rank,
			Window:    rec.Window,
			Time:      t,
			Mean:      rec.SampleMean,
			Std:       rec.SampleStd,
			JS:        rec.JS,
			Histogram: win,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) openSinks(ctx context.Context) error {
	var err error
	s.csv, err = telemetry.NewWriter(s.o.CSVDir)
	if err != nil {
		return err
	}
	if s.o.TracePath != "" {
		meta := map[string]string{"session": s.id, "label": s.o.Label}
		s.history, err = trace.NewWriter(s.o.TracePath, s.conf.NBins,
			s.conf.BinWidth, s.conf.Sigma, meta)
		if err != nil {
			return err
		}
	}
	if s.o.ArchivePath != "" {
		s.store, err = storage.Open(ctx, s.o.ArchivePath)
		if err != nil {
			return err
		}
		err = s.store.SaveSession(ctx, storage.Session{
			ID:        s.id,
			Label:     s.o.Label,
			CreatedAt: time.Now(),
			Replicas:  s.o.Replicas,
			Steps:     s.o.Steps,
			Params:    s.o.ParamsYAML,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) closeSinks() {
	s.csv.Close()
	if s.history != nil {
		s.history.Close()
	}
	if s.store != nil {
		s.store.Close()
	}
}

//plots renders the final-state diagnostics of rank 0, if a plot directory
//was given: the bias-driving deviation histogram and the force profile the
//run ended with.
func (s *Session) plots(rep *replicaReport) error {
	if s.o.PlotDir == "" {
		return nil
	}
	if err := os.MkdirAll(s.o.PlotDir, 0755); err != nil {
		return err
	}
	err := ensplot.Histogram(filepath.Join(s.o.PlotDir, "bias.png"),
		rep.histogram, s.conf.BinWidth, "bias histogram (deviation from reference)")
	if err != nil {
		return err
	}
	return ensplot.ForceProfile(filepath.Join(s.o.PlotDir, "force.png"),
		rep.pot, s.conf, 200)
}
