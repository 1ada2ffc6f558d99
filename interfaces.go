/*
 * interfaces.go, part of ensrest.
 *
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
 *
 */

package ensrest

import (
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

/*The host engine and the cross-replica transport stay behind interfaces: a restraint only ever sees
 * two site positions and a time on the hot path, and a reduction handle during rotations. Anything
 * that satisfies these can drive a potential, whether it is a real MD engine or the in-process
 * session runner.*/

// PointData is the result of one force evaluation: the force on the first
// bound site (the second site gets the opposite force) and, when a potential
// computes it, the energy contribution. The potentials here leave Energy at
// zero.
type PointData struct {
	Force  r3.Vec
	Energy float64
}

// Potential is the interface for bias potentials that can be bound to a
// Restraint.
type Potential interface {

	//Calculate returns the force produced by the current state of the
	//potential for sites at v and v0 at simulation time t. It must be free
	//of side effects: the host may call it from several threads at once,
	//any number of times per step, in no particular order with respect to
	//Callback.
	Calculate(v, v0 r3.Vec, t float64) PointData

	//Callback advances the internal state of the potential. The host calls
	//it once per step on exactly one rank per replica. It may block on the
	//ensemble reduction.
	Callback(v, v0 r3.Vec, t float64, res Resources) error
}

// Reducer performs the ensemble-wide reduction: an elementwise sum of local
// across every cooperating replica. All replicas must call Reduce at a
// logically equivalent point, exactly once per window rotation.
type Reducer interface {

	//Reduce writes the elementwise all-replica sum of local into sum,
	//which must be pre-sized to the same dimensions as local. The call
	//blocks until every replica has contributed.
	Reduce(local, sum *mat.Dense) error

	//Size returns the number of cooperating replicas.
	Size() int
}

// Resources gives a callback access to the facilities the host provides
// during a step. Handle acquisition may block or fail if the replicas have
// diverged; that is owned by the host, not handled here.
type Resources interface {
	Reducer() (Reducer, error)
}

//Errors

// Error is the interface for errors that all packages in this library implement. The Decorate method allows to add and retrieve info from the
// error, without changing it's type or wrapping it around something else.
type Error interface {
	Error() string
	Decorate(string) []string //Adds information when the error is passed up. Each call returns the "decoration" slice of strings resulting from the current call. If passed an empty string, it should just return the current value, not add the empty string to the slice.
	//The decorate slice should contain a list of functions in the calling stack, plus, for each function any relevant information, or nothing. If information is to be added to an element of the slice, it should be in this format: "FunctionName: Extra info"
}

// ConfigurationError is the interface for invalid construction parameters.
// These are raised synchronously when a potential or a collaborator is
// built, never deferred to run time.
type ConfigurationError interface {
	Error
	Configuration() bool
}

// ConsistencyError is the interface for violated internal invariants, like a
// window rotation arriving before the sample buffer is full. These are
// programmer or scheduling errors, not user errors: the statistical meaning
// of the histogram would be corrupted if they were tolerated, so the
// offending callback fails instead.
type ConsistencyError interface {
	Error
	Consistency() bool
}

// HistoryError is the interface for errors in rotation-history files.
type HistoryError interface {
	Error
	Critical() bool
	FileName() string
	Format() string
}

// LastRecordError has a useless function to distinguish the harmless errors (i.e. end of the history) so they can be
// filtered in a typeswitch that looks for this interface.
type LastRecordError interface {
	HistoryError
	NormalLastRecordTermination() //does nothing, just to separate this interface from other HistoryError's

}
