/*
 * ensemble.go, part of ensrest.
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

//Package ensemble implements the cross-replica reduction for ensembles
//whose replicas run as goroutines of one process. A coordinator goroutine
//collects one contribution per member, sums them elementwise and hands the
//sum back to every contributor, which is the same all-replica sum an
//MPI-backed host performs over ranks. One Ensemble carries one logical
//reduction stream: a host running several reducing potentials side by side
//gives each its own Ensemble.
package ensemble

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"ensrest"
)

//contribution is one member's half of a reduction round: its flattened
//local matrix and the channel its result comes back on.
type contribution struct {
	rank int
	data []float64
	back chan result
}

type result struct {
	sum []float64
	err error
}

// Ensemble coordinates the reductions of n cooperating replicas. Members
// block in Reduce until the whole round has contributed, so a round costs
// what the slowest replica costs, like the real transport.
type Ensemble struct {
	n       int
	contrib chan contribution
	done    chan struct{}
}

// New returns an Ensemble of n members, with its coordinator running. The
// caller must Close it when the run ends, or members blocked in a
// half-filled round will wait forever.
func New(n int) (*Ensemble, error) {
	if n < 1 {
		return nil, Error{message: BadSize}
	}
	e := &Ensemble{
		n:       n,
		contrib: make(chan contribution),
		done:    make(chan struct{}),
	}
	go e.coordinate()
	return e, nil
}

// Size returns the number of cooperating members.
func (e *Ensemble) Size() int { return e.n }

// Member returns the handle replica rank uses as its ensemble resources.
// Ranks go from 0 to Size()-1.
func (e *Ensemble) Member(rank int) (*Member, error) {
	if rank < 0 || rank >= e.n {
		return nil, Error{message: BadRank}
	}
	return &Member{rank: rank, e: e}, nil
}

// Close stops the coordinator. Members blocked in a round, and any Reduce
// call after, get an error instead of a sum. Closing twice is harmless.
func (e *Ensemble) Close() {
	select {
	case <-e.done:
	default:
		close(e.done)
	}
}

//coordinate runs reduction rounds until Close. A round collects exactly n
//contributions, which must agree on length and come from n distinct ranks;
//replies only go out once the round is complete. Closing releases whoever
//is already waiting.
func (e *Ensemble) coordinate() {
	seen := make([]bool, e.n)
	for {
		var waiting []contribution
		var sum []float64
		var roundErr error
		for i := range seen {
			seen[i] = false
		}
		for len(waiting) < e.n {
			select {
			case c := <-e.contrib:
				if seen[c.rank] && roundErr == nil {
					roundErr = Error{message: DoubleRank}
				}
				seen[c.rank] = true
				if sum == nil {
					sum = make([]float64, len(c.data))
				}
				if len(c.data) != len(sum) {
					if roundErr == nil {
						roundErr = Error{message: Mismatched}
					}
				} else {
					floats.Add(sum, c.data)
				}
				waiting = append(waiting, c)
			case <-e.done:
				for _, c := range waiting {
					c.back <- result{err: Error{message: Closed}}
				}
				return
			}
		}
		for _, c := range waiting {
			if roundErr != nil {
				c.back <- result{err: roundErr}
				continue
			}
			c.back <- result{sum: sum}
		}
	}
}

// Member is one replica's handle on its Ensemble. It implements both the
// Resources and the Reducer interfaces of the parent package, the way a
// host's per-replica session resources do.
type Member struct {
	rank int
	e    *Ensemble
}

// Rank returns the member's rank within the ensemble.
func (m *Member) Rank() int { return m.rank }

// Reducer returns the member itself; handle acquisition cannot diverge in
// an in-process ensemble.
func (m *Member) Reducer() (ensrest.Reducer, error) { return m, nil }

// Size returns the number of cooperating replicas.
func (m *Member) Size() int { return m.e.n }

// Reduce sends local to the coordinator and blocks until every member of
// the round has contributed, then writes the elementwise all-member sum
// into sum, which must be pre-sized to local's dimensions. The error cases
// (mismatched dimensions within the round, a member contributing twice, the
// ensemble closing) fail the whole round for every participant.
func (m *Member) Reduce(local, sum *mat.Dense) error {
	if local == nil || sum == nil {
		return Error{message: NilMatrix}
	}
	r, c := local.Dims()
	if ro, co := sum.Dims(); ro != r || co != c {
		return Error{message: NotPresized}
	}
	data := make([]float64, 0, r*c)
	for i := 0; i < r; i++ {
		data = append(data, local.RawRowView(i)...)
	}
	back := make(chan result, 1)
	select {
	case m.e.contrib <- contribution{rank: m.rank, data: data, back: back}:
	case <-m.e.done:
		return Error{message: Closed}
	}
	res := <-back
	if res.err != nil {
		return res.err
	}
	for i := 0; i < r; i++ {
		sum.SetRow(i, res.sum[i*c:(i+1)*c])
	}
	return nil
}

// Local is the degenerate single-replica ensemble: Reduce copies local into
// sum, Size is 1, and there is no coordinator to close. It lets a potential
// run outside any ensemble, and keeps tests light. Like Member, it
// implements both Resources and Reducer.
type Local struct{}

// Reducer returns the Local itself.
func (Local) Reducer() (ensrest.Reducer, error) { return Local{}, nil }

// Size returns 1.
func (Local) Size() int { return 1 }

// Reduce copies local into sum, which must be pre-sized to local's
// dimensions. A sum over one replica is the replica's own value.
func (Local) Reduce(local, sum *mat.Dense) error {
	if local == nil || sum == nil {
		return Error{message: NilMatrix}
	}
	r, c := local.Dims()
	if ro, co := sum.Dims(); ro != r || co != c {
		return Error{message: NotPresized}
	}
	sum.Copy(local)
	return nil
}

//Errors

//Error is the general error type of the package. It also fulfills the Error
//interface of the parent package.
type Error struct {
	message string
	deco    []string
}

func (err Error) Error() string {
	return fmt.Sprintf("ensemble reduction error: %s", err.message)
}

//Decorate adds new information to the error
func (err Error) Decorate(deco string) []string {
	//Even though this method does not use a pointer as a receiver, and tries to alter the receiver,
	//it should work, since err.deco is a slice, and hence a pointer itself.
	if deco != "" {
		err.deco = append(err.deco, deco)
	}
	return err.deco
}

//Messages for the errors raised in this package.
const (
	BadSize     = "an ensemble needs at least 1 member"
	BadRank     = "member rank out of range"
	NilMatrix   = "nil matrix given to Reduce"
	NotPresized = "the sum matrix must be pre-sized to match the local one"
	Mismatched  = "contributions to a reduction round must share dimensions"
	DoubleRank  = "a member contributed twice to the same round"
	Closed      = "ensemble closed"
)
