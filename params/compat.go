package params

import (
	"fmt"
	"math"

	"github.com/skelterjohn/go.matrix"
)

/*Bridges from the legacy go.matrix containers. Analysis pipelines built on
 * gochem-era tooling hand experimental distributions and site selections
 * around as DenseMatrix values; these helpers take either a row or a column
 * vector and feed the parameter file, so such pipelines don't need porting
 * just to drive a restraint.*/

//asVector returns the elements of a 1×n or n×1 matrix in order.
func asVector(m *matrix.DenseMatrix) ([]float64, error) {
	if m == nil {
		return nil, fmt.Errorf("params: nil matrix")
	}
	r, c := m.Rows(), m.Cols()
	if r != 1 && c != 1 {
		return nil, fmt.Errorf("params: expected a row or column vector, got %dx%d", r, c)
	}
	out := make([]float64, 0, r*c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out = append(out, m.Get(i, j))
		}
	}
	return out, nil
}

// ExperimentalFromDense sets the experimental reference histogram from a
// legacy go.matrix vector, and nbins to match it.
func (f *File) ExperimentalFromDense(m *matrix.DenseMatrix) error {
	v, err := asVector(m)
	if err != nil {
		return err
	}
	f.Restraint.Experimental = v
	f.Restraint.NBins = len(v)
	return nil
}

// SitePairFromDense sets the bound site pair from a legacy go.matrix vector
// of two indices. The values must be whole numbers.
func (f *File) SitePairFromDense(m *matrix.DenseMatrix) error {
	v, err := asVector(m)
	if err != nil {
		return err
	}
	if len(v) != 2 {
		return fmt.Errorf("params: a site pair needs exactly 2 indices, got %d", len(v))
	}
	sites := make([]int, 2)
	for i, x := range v {
		if x != math.Trunc(x) {
			return fmt.Errorf("params: site index %v is not an integer", x)
		}
		sites[i] = int(x)
	}
	f.Sites = sites
	return nil
}
