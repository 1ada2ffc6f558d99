/*
 * timer.go, part of ensrest.
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
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat"
)

// TimingPotential is a do-nothing Potential for profiling the ensemble
// reduction: every Callback round-trips a 1x1 matrix through the reducer and
// records the wall-clock cost, while Calculate always returns a zero force.
// Bind it next to a real potential to measure what the cross-replica
// synchronization alone costs on a given setup.
type TimingPotential struct {
	costs []float64 //seconds per reduction round-trip
}

// NewTimingPotential returns a TimingPotential ready to bind.
func NewTimingPotential() *TimingPotential {
	return &TimingPotential{}
}

// Calculate returns a zero force and zero energy, always.
func (tp *TimingPotential) Calculate(v, v0 r3.Vec, t float64) PointData {
	return PointData{}
}

// Callback reduces a 1x1 matrix carrying t across the ensemble and records
// how long the round trip took. The reduced value itself is discarded.
func (tp *TimingPotential) Callback(v, v0 r3.Vec, t float64, res Resources) error {
	if res == nil {
		return faultError{message: NoReducer, deco: []string{"TimingPotential.Callback"}}
	}
	red, err := res.Reducer()
	if err != nil {
		return err
	}
	if red == nil {
		return faultError{message: NoReducer, deco: []string{"TimingPotential.Callback"}}
	}
	local := mat.NewDense(1, 1, []float64{t})
	sum := mat.NewDense(1, 1, nil)
	start := time.Now()
	if err := red.Reduce(local, sum); err != nil {
		return err
	}
	tp.costs = append(tp.costs, time.Since(start).Seconds())
	return nil
}

// TimingStats summarizes the recorded reduction round-trips. All times in
// seconds.
type TimingStats struct {
	Calls int
	Total float64
	Min   float64
	Max   float64
	Mean  float64
}

// Stats returns the reduction timing collected so far. With no calls
// recorded yet, everything is zero.
func (tp *TimingPotential) Stats() TimingStats {
	var s TimingStats
	s.Calls = len(tp.costs)
	if s.Calls == 0 {
		return s
	}
	s.Total = floats.Sum(tp.costs)
	s.Min = floats.Min(tp.costs)
	s.Max = floats.Max(tp.costs)
	s.Mean = stat.Mean(tp.costs, nil)
	return s
}

func (s TimingStats) String() string {
	if s.Calls == 0 {
		return "no reductions timed"
	}
	return fmt.Sprintf("%d reductions, total %.3gs, mean %.3gs, min %.3gs, max %.3gs",
		s.Calls, s.Total, s.Mean, s.Min, s.Max)
}
