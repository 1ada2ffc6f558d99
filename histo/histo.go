package histo

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

//Blur rasterizes scalar samples onto a fixed grid by Gaussian kernel
//density estimation. The grid geometry (low edge, bin width) and the kernel
//width are set at construction; the object itself is stateless after that,
//so one Blur can serve any number of calls, from one goroutine at a time or
//many.
type Blur struct {
	low      float64
	binWidth float64
	sigma    float64
}

//NewBlur returns a Blur for a grid starting at low with bins of binWidth,
//smoothing with a Gaussian kernel of width sigma. binWidth and sigma must
//be positive.
func NewBlur(low, binWidth, sigma float64) (*Blur, error) {
	if binWidth <= 0 {
		return nil, Error{message: BadWidth}
	}
	if sigma <= 0 {
		return nil, Error{message: BadSigma}
	}
	return &Blur{low: low, binWidth: binWidth, sigma: sigma}, nil
}

//Grid overwrites grid with the kernel density estimate of samples:
//
//	grid[i] = (1/(n*sqrt(2*pi*sigma^2))) * sum_s exp(-(x_i-s)^2/(2*sigma^2))
//
//with x_i the center coordinate low+i*binWidth and n the number of samples.
//The estimate integrates to about 1 when multiplied by the bin width, for a
//grid that covers the samples well. Every sample contributes to every bin,
//with no kernel truncation, so the cost is len(grid)*len(samples)
//evaluations; a trade of speed for simplicity that is fine at the sizes
//restraints use. The caller must provide at least one sample (the
//normalization divides by n) and a non-empty grid.
func (b *Blur) Grid(samples, grid []float64) error {
	if len(samples) == 0 {
		return Error{message: NoSamples}
	}
	if len(grid) == 0 {
		return Error{message: EmptyGrid}
	}
	norm := 1 / (float64(len(samples)) * math.Sqrt(2*math.Pi*b.sigma*b.sigma))
	for i := range grid {
		x := b.low + float64(i)*b.binWidth
		var acc float64
		for _, s := range samples {
			d := x - s
			acc += math.Exp(-d * d / (2 * b.sigma * b.sigma))
		}
		grid[i] = norm * acc
	}
	return nil
}

//Ring is a fixed-capacity FIFO of grid-shaped windows, each one sampling
//period's worth of blurred density. When a push arrives at capacity the
//oldest window is discarded first. Iteration runs oldest to newest.
type Ring struct {
	nbins int
	cap   int
	wins  [][]float64
}

//NewRing returns an empty Ring holding up to capacity windows of nbins bins
//each. Both must be at least 1.
func NewRing(capacity, nbins int) (*Ring, error) {
	if capacity < 1 {
		return nil, Error{message: BadCapacity}
	}
	if nbins < 1 {
		return nil, Error{message: BadBins}
	}
	return &Ring{nbins: nbins, cap: capacity, wins: make([][]float64, 0, capacity)}, nil
}

//Push appends w as the newest window, discarding the oldest first if the
//ring is at capacity. Eviction and append happen together: a caller that
//never gets to Push leaves the ring exactly as it was. The ring keeps w
//itself, not a copy, so the caller must not write to it afterwards.
func (r *Ring) Push(w []float64) error {
	if len(w) != r.nbins {
		return Error{message: WrongBins}
	}
	if len(r.wins) == r.cap {
		copy(r.wins, r.wins[1:])
		r.wins[len(r.wins)-1] = w
		return nil
	}
	r.wins = append(r.wins, w)
	return nil
}

//Len returns how many windows the ring currently retains.
func (r *Ring) Len() int { return len(r.wins) }

//Cap returns the ring's capacity.
func (r *Ring) Cap() int { return r.cap }

//Bins returns the number of bins per window.
func (r *Ring) Bins() int { return r.nbins }

//Window returns a view of the i-th retained window, 0 being the oldest.
//It panics if i is out of range.
func (r *Ring) Window(i int) []float64 {
	if i < 0 || i >= len(r.wins) {
		panic("ensrest/histo.Ring.Window: window index out of range")
	}
	return r.wins[i]
}

//Copy copies the i-th retained window, 0 being the oldest. If dest is given
//and long enough it is used as the destination, otherwise a new slice is
//allocated. It panics if i is out of range.
func (r *Ring) Copy(i int, dest ...[]float64) []float64 {
	if i < 0 || i >= len(r.wins) {
		panic("ensrest/histo.Ring.Copy: window index out of range")
	}
	d := getCopySlice(r.nbins, dest...)
	return floats.ScaleTo(d, 1, r.wins[i])
}

//MeanDeviation writes into dst the per-bin mean, over every retained
//window, of the deviation from ref:
//
//	dst[i] = (1/len) * sum_w (w[i] - ref[i])
//
//ref and dst must both have the ring's bin count, and at least one window
//must be retained.
func (r *Ring) MeanDeviation(ref, dst []float64) error {
	if len(r.wins) == 0 {
		return Error{message: EmptyRing}
	}
	if len(ref) != r.nbins || len(dst) != r.nbins {
		return Error{message: WrongBins}
	}
	for i := range dst {
		dst[i] = 0
	}
	for _, w := range r.wins {
		floats.Add(dst, w)
	}
	floats.AddScaled(dst, -float64(len(r.wins)), ref)
	floats.Scale(1/float64(len(r.wins)), dst)
	return nil
}

func (r *Ring) String() string {
	return fmt.Sprintf("%d/%d windows of %d bins", len(r.wins), r.cap, r.nbins)
}

//getCopySlice returns dest[0] trimmed to N if one is given and large
//enough, or a fresh slice of N otherwise.
func getCopySlice(N int, dest ...[]float64) []float64 {
	var d []float64
	if len(dest) > 0 && len(dest[0]) >= N {
		d = dest[0]
		if len(dest[0]) > N {
			d = dest[0][:N] //floats.ScaleTo wants both slices to _match_
		}
	} else {
		d = make([]float64, N)
	}
	return d

}

//Errors

//Error is the general error type of the package. It also fulfills the Error
//interface of the parent package.
type Error struct {
	message string
	deco    []string
}

func (err Error) Error() string {
	return fmt.Sprintf("histogram grid error: %s", err.message)
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
	NoSamples   = "no samples to blur"
	EmptyGrid   = "grid has no bins"
	BadWidth    = "bin width must be positive"
	BadSigma    = "sigma must be positive"
	BadCapacity = "ring capacity must be at least 1"
	BadBins     = "windows must have at least 1 bin"
	WrongBins   = "window length doesn't match the ring's bins"
	EmptyRing   = "no windows retained yet"
)
