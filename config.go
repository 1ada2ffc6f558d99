/*
 * config.go, part of ensrest.
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

// Config holds the construction-time parameters of an EnsemblePotential.
// Every field is required; the core assumes no defaults (the params package
// supplies file-level defaults for the demo driver). The potential copies
// what it needs at construction, so a Config can be reused or discarded
// freely afterwards.
type Config struct {
	NBins        int       //number of histogram bins
	BinWidth     float64   //width of each bin, nm
	MinDist      float64   //lower flat-bottom bound, nm
	MaxDist      float64   //upper flat-bottom bound, nm
	Experimental []float64 //reference distribution, one value per bin
	NSamples     int       //distance samples collected per window
	SamplePeriod float64   //time between samples
	NWindows     int       //how many windows the ring retains
	K            float64   //spring constant, kJ/(mol nm^2)
	Sigma        float64   //Gaussian kernel width, nm
}

// Validate checks the range constraints on every parameter and returns a
// ConfigurationError on the first violation, nil if the configuration is
// usable. New calls it, so hosts building a potential directly don't need
// to.
func (c Config) Validate() error {
	if c.NBins < 1 {
		return configError{message: BadNBins, param: "nbins"}
	}
	if c.BinWidth <= 0 {
		return configError{message: BadBinWidth, param: "binwidth"}
	}
	if c.Sigma <= 0 {
		return configError{message: BadSigma, param: "sigma"}
	}
	if c.MinDist < 0 || c.MinDist >= c.MaxDist {
		return configError{message: BadBounds, param: "mindist/maxdist"}
	}
	if len(c.Experimental) != c.NBins {
		return configError{message: BadExperimental, param: "experimental"}
	}
	if c.NSamples < 1 {
		return configError{message: BadNSamples, param: "nsamples"}
	}
	if c.SamplePeriod <= 0 {
		return configError{message: BadSamplePeriod, param: "sampleperiod"}
	}
	if c.NWindows < 1 {
		return configError{message: BadNWindows, param: "nwindows"}
	}
	return nil
}
