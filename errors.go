/*
 * errors.go, part of ensrest.
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

import "fmt"

//errDecorate asserts that the error implements Error and decorates it with
//the caller's name before returning it. Used with an error that doesn't
//implement Error, it will cause a panic.
func errDecorate(err error, caller string) error {
	err2 := err.(Error)
	err2.Decorate(caller)
	return err2
}

//configError is the concrete type behind ConfigurationError. It records the
//offending parameter so the message points at what to fix.
type configError struct {
	message string
	param   string
	deco    []string
}

func (err configError) Error() string {
	if err.param == "" {
		return fmt.Sprintf("ensrest: bad configuration: %s", err.message)
	}
	return fmt.Sprintf("ensrest: bad configuration: %s: %s", err.param, err.message)
}

//Decorate adds new information to the error
func (err configError) Decorate(deco string) []string {
	//Even though this method does not use a pointer as a receiver, and tries to alter the receiver,
	//it should work, since err.deco is a slice, and hence a pointer itself.
	if deco != "" {
		err.deco = append(err.deco, deco)
	}
	return err.deco
}

//Configuration always returns true
func (err configError) Configuration() bool { return true }

//Param returns the name of the offending configuration parameter, or an
//empty string if the problem is not tied to one parameter.
func (err configError) Param() string { return err.param }

//faultError is the concrete type behind ConsistencyError.
type faultError struct {
	message string
	deco    []string
}

func (err faultError) Error() string {
	return fmt.Sprintf("ensrest: consistency fault: %s", err.message)
}

//Decorate adds new information to the error
func (err faultError) Decorate(deco string) []string {
	if deco != "" {
		err.deco = append(err.deco, deco)
	}
	return err.deco
}

//Consistency always returns true
func (err faultError) Consistency() bool { return true }

//Messages for the errors raised in this package.
const (
	BadNBins        = "nbins must be at least 1"
	BadBinWidth     = "binwidth must be positive"
	BadSigma        = "sigma must be positive"
	BadBounds       = "mindist must be non-negative and smaller than maxdist"
	BadExperimental = "experimental histogram length must equal nbins"
	BadNSamples     = "nsamples must be at least 1"
	BadSamplePeriod = "sampleperiod must be positive"
	BadNWindows     = "nwindows must be at least 1"
	NilPotential    = "nil potential"
	NilResources    = "nil resources"
	BadSites        = "a pair restraint needs exactly 2 distinct, non-negative site indices"
	PartialBuffer   = "window rotation triggered before the sample buffer was full"
	ShortReduction  = "reduction returned a mismatched or empty window"
	NoReducer       = "resources provided no ensemble reducer"
)
