/*
 * restraint.go, part of ensrest.
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
	"sync"

	"gonum.org/v1/gonum/spatial/r3"
)

// Restraint binds a Potential to a pair of site indices and to the ensemble
// resources of its replica, exposing the surface a host engine drives: which
// sites to feed it, a force evaluation, and the per-step update. Any
// Potential can be bound; the composition is plain injection, one Restraint
// per potential per replica.
type Restraint struct {
	sites []int
	pot   Potential
	res   Resources
	mu    sync.Mutex
}

// NewRestraint binds pot to a pair of simulation site indices and the
// replica's resources. Exactly two distinct, non-negative sites are
// accepted; the slice is copied.
func NewRestraint(sites []int, pot Potential, res Resources) (*Restraint, error) {
	if pot == nil {
		return nil, configError{message: NilPotential, param: "potential"}
	}
	if res == nil {
		return nil, configError{message: NilResources, param: "resources"}
	}
	if len(sites) != 2 || sites[0] < 0 || sites[1] < 0 || sites[0] == sites[1] {
		return nil, configError{message: BadSites, param: "sites"}
	}
	r := &Restraint{
		sites: append([]int{}, sites...),
		pot:   pot,
		res:   res,
	}
	return r, nil
}

// Sites returns a copy of the bound site indices, in binding order. The
// force from Evaluate applies to the first site; the host applies the
// opposite force to the second.
func (r *Restraint) Sites() []int {
	return append([]int{}, r.sites...)
}

// Evaluate returns the current bias force for site positions r1 and r2 at
// time t. It takes no lock: the bound potential's Calculate must already be
// safe for concurrent use, and serializing it here would stall the host's
// force loop.
func (r *Restraint) Evaluate(r1, r2 r3.Vec, t float64) PointData {
	return r.pot.Calculate(r1, r2, t)
}

// Update runs the bound potential's periodic callback with the replica's
// resources. Calls are serialized with a mutex; the host contract is one
// designated rank per step, but nothing breaks if a host dispatches updates
// from more than one thread.
func (r *Restraint) Update(v, v0 r3.Vec, t float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pot.Callback(v, v0, t, r.res)
}
