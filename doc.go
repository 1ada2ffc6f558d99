/*
 * doc.go, part of ensrest.
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

/*Package ensrest implements a restrained-ensemble bias potential for
molecular-dynamics simulations: a pair-distance restraint whose target is an
experimental distance distribution and whose sampled distribution is averaged
over a whole ensemble of concurrently running replicas.


	**Capabilities**


    Per-step, side-effect-free evaluation of a flat-bottomed biasing force
	driven by a smoothed histogram of recent pair-distance samples.

    Periodic window rotation: raw distance samples are rendered into a
	density estimate by a Gaussian kernel blur, averaged across all replicas
	of the ensemble through a reduction handle, and kept in a fixed-depth
	ring of historical windows whose mean deviation from the experimental
	reference drives the force.

    A restraint wrapper exposing the sites/evaluate/update surface a host
	engine drives, plus a profiling potential for timing the ensemble
	reduction alone.

The subpackages supply the collaborators a host engine normally provides:
ensemble implements the cross-replica reduction for goroutine-per-replica
runs, session drives whole in-process ensembles, params reads and writes
parameter files, while histo, trace, telemetry, ensplot and storage cover
the grid math, the rotation-history format, per-rotation records, plotting
and the run archive.

The force law and the update cycle follow the restrained-ensemble formalism
of Roux and Weare (J. Chem. Phys. 138, 084107, 2013).

Times are in the simulation's own time unit (normally ps), distances in nm.
*/
package ensrest
