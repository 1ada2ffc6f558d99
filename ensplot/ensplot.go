// Package ensplot renders run diagnostics to image files: histogram bar
// plots of windows or of the bias-driving deviation, and force profiles of
// a potential over its distance range.
package ensplot

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"ensrest"
)

// Histogram saves a bar render of hist, with bin centers on the horizontal
// axis in distance units. The output format follows the file extension,
// anything plot.Save understands (png, svg, pdf...).
func Histogram(path string, hist []float64, binWidth float64, title string) error {
	if len(hist) == 0 {
		return fmt.Errorf("ensplot: nothing to plot")
	}
	if binWidth <= 0 {
		return fmt.Errorf("ensplot: bin width must be positive")
	}
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "distance (nm)"
	p.Y.Label.Text = "density"
	bars, err := plotter.NewBarChart(plotter.Values(hist), vg.Points(4))
	if err != nil {
		return err
	}
	bars.LineStyle.Width = 0
	p.Add(bars)
	//sparse distance labels so a fine grid stays readable
	labels := make([]string, len(hist))
	stride := len(hist)/8 + 1
	for i := range labels {
		if i%stride == 0 {
			labels[i] = fmt.Sprintf("%.2g", float64(i)*binWidth)
		}
	}
	p.NominalX(labels...)
	return p.Save(6*vg.Inch, 4*vg.Inch, path)
}

// ForceProfile samples pot.Calculate at n evenly spaced distances over
// (0, 1.2*MaxDist] and saves the signed force magnitude as a line plot.
// Positive values push the pair apart, negative pull it together. Sampling
// relies on Calculate being a pure function; the potential is left exactly
// as it was.
func ForceProfile(path string, pot ensrest.Potential, conf ensrest.Config, n int) error {
	if err := conf.Validate(); err != nil {
		return err
	}
	if pot == nil {
		return fmt.Errorf("ensplot: nil potential")
	}
	if n < 2 {
		return fmt.Errorf("ensplot: need at least 2 sample points")
	}
	top := 1.2 * conf.MaxDist
	pts := make(plotter.XYs, n)
	v0 := r3.Vec{}
	for i := 0; i < n; i++ {
		R := top * float64(i+1) / float64(n)
		//along x, so the force magnitude is just the x component
		res := pot.Calculate(r3.Vec{X: R}, v0, 0)
		pts[i].X = R
		pts[i].Y = res.Force.X
	}
	p := plot.New()
	p.Title.Text = "bias force profile"
	p.X.Label.Text = "pair distance (nm)"
	p.Y.Label.Text = "force (kJ/(mol nm))"
	line, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	p.Add(line, plotter.NewGrid())
	return p.Save(6*vg.Inch, 4*vg.Inch, path)
}
