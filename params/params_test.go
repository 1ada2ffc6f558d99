package params

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/skelterjohn/go.matrix"
)

func TestDefaultValidates(Te *testing.T) {
	f := Default()
	conf, err := f.Config()
	if err != nil {
		Te.Fatal(err)
	}
	fmt.Printf("default: %d bins of %v nm, %d replicas\n", conf.NBins, conf.BinWidth, f.Run.Replicas)
	if len(conf.Experimental) != conf.NBins {
		Te.Errorf("default experimental has %d values for %d bins", len(conf.Experimental), conf.NBins)
	}
}

func TestRoundTrip(Te *testing.T) {
	path := filepath.Join(Te.TempDir(), "params.yaml")
	f := Default()
	f.Run.Label = "roundtrip"
	f.Restraint.K = 75.0
	if err := f.Save(path); err != nil {
		Te.Fatal(err)
	}
	g, err := Load(path)
	if err != nil {
		Te.Fatal(err)
	}
	if g.Run.Label != "roundtrip" || g.Restraint.K != 75.0 {
		Te.Errorf("file didn't survive the round trip: %+v", g)
	}
	if len(g.Restraint.Experimental) != f.Restraint.NBins {
		Te.Errorf("experimental lost values: %d", len(g.Restraint.Experimental))
	}
	if _, err := g.Config(); err != nil {
		Te.Error(err)
	}
}

func TestSetGet(Te *testing.T) {
	f := Default()
	for _, c := range []struct{ key, value string }{
		{"k", "75"},
		{"nbins", "3"},
		{"experimental", "0.1,0.8,0.1"},
		{"sites", "4, 9"},
		{"run.replicas", "2"},
		{"run.seed", "7"},
		{"run.label", "patched"},
	} {
		if err := f.Set(c.key, c.value); err != nil {
			Te.Error(err)
		}
	}
	if f.Restraint.K != 75 || f.Restraint.NBins != 3 || f.Run.Replicas != 2 || f.Run.Seed != 7 {
		Te.Errorf("Set didn't land: %+v", f)
	}
	if len(f.Restraint.Experimental) != 3 || f.Sites[1] != 9 {
		Te.Errorf("list Set didn't land: %v %v", f.Restraint.Experimental, f.Sites)
	}
	if got, err := f.Get("k"); err != nil || got != "75" {
		Te.Errorf("Get(k) = %q, %v", got, err)
	}
	if got, err := f.Get("sites"); err != nil || got != "4,9" {
		Te.Errorf("Get(sites) = %q, %v", got, err)
	}
	//patched nbins and experimental must still validate together
	if _, err := f.Config(); err != nil {
		Te.Error(err)
	}
}

func TestSetErrors(Te *testing.T) {
	f := Default()
	before := f.Restraint.NBins
	if err := f.Set("nbinz", "10"); err == nil {
		Te.Error("an unknown key should be rejected")
	}
	if err := f.Set("nbins", "ten"); err == nil {
		Te.Error("a mistyped value should be rejected")
	}
	if err := f.Set("experimental", "0.1,zebra"); err == nil {
		Te.Error("a malformed list should be rejected")
	}
	if f.Restraint.NBins != before {
		Te.Error("a failed Set must not patch anything")
	}
	if _, err := f.Get("nbinz"); err == nil {
		Te.Error("Get of an unknown key should be rejected")
	}
}

func TestLegacyBridges(Te *testing.T) {
	f := Default()
	exp := matrix.MakeDenseMatrix([]float64{0.25, 0.5, 0.25}, 1, 3)
	if err := f.ExperimentalFromDense(exp); err != nil {
		Te.Fatal(err)
	}
	if f.Restraint.NBins != 3 || f.Restraint.Experimental[1] != 0.5 {
		Te.Errorf("experimental bridge failed: %d %v", f.Restraint.NBins, f.Restraint.Experimental)
	}
	sites := matrix.MakeDenseMatrix([]float64{3, 8}, 2, 1) //column vectors work too
	if err := f.SitePairFromDense(sites); err != nil {
		Te.Fatal(err)
	}
	if f.Sites[0] != 3 || f.Sites[1] != 8 {
		Te.Errorf("site bridge failed: %v", f.Sites)
	}
	if err := f.SitePairFromDense(matrix.MakeDenseMatrix([]float64{1.5, 2}, 1, 2)); err == nil {
		Te.Error("fractional site indices should be rejected")
	}
	if err := f.ExperimentalFromDense(matrix.Zeros(2, 3)); err == nil {
		Te.Error("a non-vector matrix should be rejected")
	}
}
