/*
 * session_test.go, part of ensrest.
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

package session

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"ensrest"
	"ensrest/telemetry"
	"ensrest/trace"
)

func testConfig() ensrest.Config {
	return ensrest.Config{
		NBins:        12,
		BinWidth:     0.5,
		MinDist:      0.5,
		MaxDist:      5.0,
		Experimental: make([]float64, 12),
		NSamples:     5,
		SamplePeriod: 0.1,
		NWindows:     2,
		K:            10.0,
		Sigma:        0.5,
	}
}

func testOptions() *Options {
	o := DefaultOptions()
	o.Replicas = 3
	o.Steps = 200
	o.Dt = 0.02
	o.StartDist = 2.0
	o.Label = "smoke"
	return o
}

func TestRunSmoke(Te *testing.T) {
	conf := testConfig()
	o := testOptions()
	dir := Te.TempDir()
	o.CSVDir = dir
	o.TracePath = filepath.Join(dir, "history.zerh")
	s, err := New(&conf, []int{0, 1}, o)
	if err != nil {
		Te.Fatal(err)
	}
	sum, err := s.Run(context.Background())
	if err != nil {
		Te.Fatal(err)
	}
	fmt.Printf("session %s: rotations %v, final distances %v, %s\n",
		sum.ID, sum.Rotations, sum.FinalDistance, sum.Timing)
	//identical configuration keeps every replica's rotations in lockstep
	want := sum.Rotations[0]
	if want == 0 {
		Te.Fatal("the run never rotated a window")
	}
	for i, r := range sum.Rotations {
		if r != want {
			Te.Errorf("replica %d rotated %d times, replica 0 %d", i, r, want)
		}
	}
	//total simulation time 4.0, a window every 0.5
	if want != 8 {
		Te.Errorf("expected 8 rotations in 4.0 time units, got %d", want)
	}
	if len(sum.Histogram) != conf.NBins {
		Te.Errorf("final histogram has %d bins, want %d", len(sum.Histogram), conf.NBins)
	}
	if sum.Timing.Calls != want {
		Te.Errorf("timing potential saw %d reductions, expected one per rotation (%d)", sum.Timing.Calls, want)
	}
	//one CSV row per rotation per replica
	rows, err := telemetry.Read(filepath.Join(dir, "rotations.csv"))
	if err != nil {
		Te.Fatal(err)
	}
	if len(rows) != want*o.Replicas {
		Te.Errorf("CSV has %d rows, want %d", len(rows), want*o.Replicas)
	}
	for _, row := range rows {
		if row.Session != sum.ID {
			Te.Errorf("CSV row tagged %q, session is %q", row.Session, sum.ID)
		}
	}
	//and one trace frame per rotation per replica
	r, meta, err := trace.New(o.TracePath)
	if err != nil {
		Te.Fatal(err)
	}
	if meta["session"] != sum.ID {
		Te.Errorf("trace metadata lost the session id: %v", meta)
	}
	frames := 0
	for {
		if _, err := r.Next(nil); err != nil {
			break
		}
		frames++
	}
	if frames != want*o.Replicas {
		Te.Errorf("trace has %d frames, want %d", frames, want*o.Replicas)
	}
}

func TestRunCanceled(Te *testing.T) {
	conf := testConfig()
	s, err := New(&conf, []int{0, 1}, testOptions())
	if err != nil {
		Te.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Run(ctx); err == nil {
		Te.Error("a canceled context should abort the run")
	}
}

func TestNewErrors(Te *testing.T) {
	conf := testConfig()
	o := testOptions()
	if _, err := New(nil, []int{0, 1}, o); err == nil {
		Te.Error("nil config should be rejected")
	}
	if _, err := New(&conf, []int{0}, o); err == nil {
		Te.Error("a single site should be rejected")
	}
	bad := *o
	bad.Steps = 10 //10 steps of 0.02 never reach the first window at 0.5
	if _, err := New(&conf, []int{0, 1}, &bad); err == nil {
		Te.Error("a run too short to ever rotate should be rejected")
	}
	badc := conf
	badc.Sigma = -1
	if _, err := New(&badc, []int{0, 1}, o); err == nil {
		Te.Error("an invalid restraint configuration should be rejected")
	}
}
