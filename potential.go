/*
 * potential.go, part of ensrest.
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

package ensrest

import (
	"fmt"
	"math"
	"sync/atomic"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"ensrest/histo"
)

// EnsemblePotential is the restrained-ensemble bias: a flat-bottomed pair
// restraint whose force inside the flat region is driven by the mean
// deviation of the recently sampled, ensemble-averaged distance distribution
// from an experimental reference.
//
// One instance belongs to one replica. Callback owns every mutation;
// Calculate only reads the published histogram, so the two can run
// concurrently (see the Potential interface for the exact host contract).
type EnsemblePotential struct {
	//construction-time parameters, immutable afterwards
	nBins        int
	binWidth     float64
	minDist      float64
	maxDist      float64
	experimental []float64
	nSamples     int
	samplePeriod float64
	k            float64
	sigma        float64

	blur *histo.Blur
	ring *histo.Ring

	//sampling state, touched only by Callback
	samples       []float64
	currentSample int
	lastSamples   []float64
	currentWindow int

	windowStartTime      float64
	nextSampleTime       float64
	nextWindowUpdateTime float64

	//hist is the bias-driving histogram. A rotation builds a fresh slice
	//and stores it here; Calculate loads whatever is current. The published
	//slice is never written again.
	hist atomic.Pointer[[]float64]
}

// New builds an EnsemblePotential from conf, validating every parameter
// range first. The first window update is scheduled for
// NSamples*SamplePeriod, the first sample for SamplePeriod.
func New(conf Config) (*EnsemblePotential, error) {
	if err := conf.Validate(); err != nil {
		return nil, errDecorate(err, "New")
	}
	blur, err := histo.NewBlur(0, conf.BinWidth, conf.Sigma)
	if err != nil {
		return nil, fmt.Errorf("ensrest.New: %w", err)
	}
	ring, err := histo.NewRing(conf.NWindows, conf.NBins)
	if err != nil {
		return nil, fmt.Errorf("ensrest.New: %w", err)
	}
	p := &EnsemblePotential{
		nBins:        conf.NBins,
		binWidth:     conf.BinWidth,
		minDist:      conf.MinDist,
		maxDist:      conf.MaxDist,
		experimental: append([]float64{}, conf.Experimental...),
		nSamples:     conf.NSamples,
		samplePeriod: conf.SamplePeriod,
		k:            conf.K,
		sigma:        conf.Sigma,
		blur:         blur,
		ring:         ring,
		samples:      make([]float64, conf.NSamples),
	}
	hist := make([]float64, conf.NBins)
	p.hist.Store(&hist)
	p.nextSampleTime = conf.SamplePeriod
	p.nextWindowUpdateTime = float64(conf.NSamples) * conf.SamplePeriod
	return p, nil
}

// Calculate returns the bias force for sites at v and v0 at time t. It is a
// pure function of its arguments and the current histogram and never blocks.
// Outside the flat-bottom bounds the force is linear-restoring; inside, it
// is the Gaussian-weighted pull of the histogram deviation. When v and v0
// coincide the direction is ill-defined and the force is zero. The Energy
// field of the result is left at zero.
func (p *EnsemblePotential) Calculate(v, v0 r3.Vec, t float64) PointData {
	var ret PointData
	rdiff := r3.Sub(v, v0)
	R := r3.Norm(rdiff)
	if R == 0 {
		return ret
	}
	var f float64
	switch {
	case R > p.maxDist:
		f = p.k * (p.maxDist - R)
	case R < p.minDist:
		f = p.k * (p.minDist - R)
	default:
		hist := *p.hist.Load()
		for n, h := range hist {
			x := float64(n)*p.binWidth - R
			f += h * math.Exp(-0.5*x*x/(p.sigma*p.sigma)) * x
		}
		f = -1 * p.k * f / (math.Sqrt(2*math.Pi) * p.sigma * p.sigma * p.sigma)
	}
	ret.Force = r3.Scale(f/R, rdiff)
	return ret
}

// Callback advances the sampling/rotation state machine. If t has reached
// the next sample time, the current site distance is recorded. If t has
// additionally reached the next window update time (both can happen in the
// same call), the in-progress window is rotated: blurred onto the grid,
// averaged across the ensemble through res, pushed onto the window ring,
// and the bias histogram is recomputed. Rotation blocks until every replica
// has contributed its window.
//
// A failed rotation (reduction failure, partial sample buffer) leaves the
// ring, the histogram and the schedule untouched and returns the error for
// the host to act on.
func (p *EnsemblePotential) Callback(v, v0 r3.Vec, t float64, res Resources) error {
	R := r3.Norm(r3.Sub(v, v0))
	if t >= p.nextSampleTime && p.currentSample < p.nSamples {
		p.samples[p.currentSample] = R
		p.currentSample++
		p.nextSampleTime = float64(p.currentSample+1)*p.samplePeriod + p.windowStartTime
	}
	if t >= p.nextWindowUpdateTime {
		if err := p.rotate(t, res); err != nil {
			return err
		}
	}
	return nil
}

//rotate finalizes the in-progress window. The rotation only commits (push +
//histogram recompute + schedule reset) once the blur and the reduction have
//both succeeded.
func (p *EnsemblePotential) rotate(t float64, res Resources) error {
	if p.currentSample != p.nSamples {
		return faultError{message: PartialBuffer, deco: []string{"EnsemblePotential.Callback"}}
	}
	if res == nil {
		return faultError{message: NoReducer, deco: []string{"EnsemblePotential.Callback"}}
	}
	local := make([]float64, p.nBins)
	if err := p.blur.Grid(p.samples, local); err != nil {
		return errDecorate(err, "EnsemblePotential.Callback")
	}
	red, err := res.Reducer()
	if err != nil {
		//handle acquisition is owned by the host; its error goes up as-is
		return err
	}
	if red == nil {
		return faultError{message: NoReducer, deco: []string{"EnsemblePotential.Callback"}}
	}
	sum := mat.NewDense(1, p.nBins, nil)
	if err := red.Reduce(mat.NewDense(1, p.nBins, local), sum); err != nil {
		//reduction failures propagate unmodified, with no retry: the host
		//decides whether the run survives
		return err
	}
	size := red.Size()
	if size < 1 {
		return faultError{message: ShortReduction, deco: []string{"EnsemblePotential.Callback"}}
	}
	//the ring keeps the ensemble mean, so a single-replica ensemble
	//reproduces the plain local behavior
	window := make([]float64, p.nBins)
	copy(window, sum.RawRowView(0))
	floats.Scale(1/float64(size), window)
	if err := p.ring.Push(window); err != nil {
		return errDecorate(err, "EnsemblePotential.Callback")
	}
	hist := make([]float64, p.nBins)
	if err := p.ring.MeanDeviation(p.experimental, hist); err != nil {
		return errDecorate(err, "EnsemblePotential.Callback")
	}
	p.hist.Store(&hist)
	p.lastSamples = append(p.lastSamples[:0], p.samples...)
	p.windowStartTime = t
	p.nextWindowUpdateTime = float64(p.nSamples)*p.samplePeriod + p.windowStartTime
	p.currentWindow++
	p.currentSample = 0
	p.nextSampleTime = t + p.samplePeriod
	return nil
}

// Histogram returns a copy of the current bias-driving histogram: the mean
// over the retained windows of the per-bin deviation from the experimental
// reference. It is all zeros until the first rotation.
func (p *EnsemblePotential) Histogram() []float64 {
	return append([]float64{}, *p.hist.Load()...)
}

// WindowCount returns how many window rotations have completed so far.
func (p *EnsemblePotential) WindowCount() int { return p.currentWindow }

// SampleCount returns how many distance samples the in-progress window has
// accumulated.
func (p *EnsemblePotential) SampleCount() int { return p.currentSample }

// LastSamples returns a copy of the raw distance samples consumed by the
// most recent rotation, or nil if no rotation has happened. Diagnostic.
func (p *EnsemblePotential) LastSamples() []float64 {
	if p.lastSamples == nil {
		return nil
	}
	return append([]float64{}, p.lastSamples...)
}

// Windows returns copies of the retained windows, oldest to newest. Each is
// the ensemble-averaged density of one completed sampling period.
func (p *EnsemblePotential) Windows() [][]float64 {
	ret := make([][]float64, 0, p.ring.Len())
	for i := 0; i < p.ring.Len(); i++ {
		ret = append(ret, append([]float64{}, p.ring.Window(i)...))
	}
	return ret
}
