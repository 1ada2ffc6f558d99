package ensplot

import (
	"os"
	"path/filepath"
	"testing"

	"ensrest"
)

func testConfig() ensrest.Config {
	return ensrest.Config{
		NBins:        10,
		BinWidth:     1.0,
		MinDist:      1.0,
		MaxDist:      8.0,
		Experimental: make([]float64, 10),
		NSamples:     2,
		SamplePeriod: 1.0,
		NWindows:     1,
		K:            10.0,
		Sigma:        1.0,
	}
}

func TestHistogram(Te *testing.T) {
	path := filepath.Join(Te.TempDir(), "hist.png")
	hist := []float64{0.0, 0.1, 0.3, 0.4, 0.3, 0.1, 0.0, 0.0, 0.0, 0.0}
	if err := Histogram(path, hist, 1.0, "test window"); err != nil {
		Te.Fatal(err)
	}
	fi, err := os.Stat(path)
	if err != nil || fi.Size() == 0 {
		Te.Errorf("no plot written: %v", err)
	}
	if err := Histogram(path, nil, 1.0, "empty"); err == nil {
		Te.Error("an empty histogram should be rejected")
	}
	if err := Histogram(path, hist, 0, "bad width"); err == nil {
		Te.Error("a zero bin width should be rejected")
	}
}

func TestForceProfile(Te *testing.T) {
	conf := testConfig()
	pot, err := ensrest.New(conf)
	if err != nil {
		Te.Fatal(err)
	}
	path := filepath.Join(Te.TempDir(), "force.png")
	if err := ForceProfile(path, pot, conf, 100); err != nil {
		Te.Fatal(err)
	}
	fi, err := os.Stat(path)
	if err != nil || fi.Size() == 0 {
		Te.Errorf("no plot written: %v", err)
	}
	if err := ForceProfile(path, nil, conf, 100); err == nil {
		Te.Error("a nil potential should be rejected")
	}
	if err := ForceProfile(path, pot, conf, 1); err == nil {
		Te.Error("a single sample point should be rejected")
	}
}
