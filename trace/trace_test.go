package trace

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"gonum.org/v1/gonum/floats"

	"ensrest"
)

//writes a small history in each codec and reads it back, checking values,
//frame info and metadata survive the round trip, and that the reader ends
//with a LastRecordError rather than a real failure.
func TestRoundTrip(Te *testing.T) {
	frames := [][]float64{
		{0.0, 0.25, 0.5},
		{0.1, 0.35, 0.05},
		{0.0, 0.0, 1.0},
	}
	infos := []FrameInfo{
		{Window: 1, Replica: 0, Time: 4.0},
		{Window: 1, Replica: 1, Time: 4.0},
		{Window: 2, Replica: 0, Time: 8.0},
	}
	meta := map[string]string{"session": "roundtrip", "k": "50"}
	dir := Te.TempDir()
	for _, suffix := range []string{".erh", ".zerh", ".gerh", ".lerh"} {
		name := filepath.Join(dir, "history"+suffix)
		w, err := NewWriter(name, 3, 0.1, 0.2, meta)
		if err != nil {
			Te.Fatal(err)
		}
		for i, f := range frames {
			if err := w.WNext(f, infos[i]); err != nil {
				Te.Error(err)
			}
		}
		w.Close()
		r, m, err := New(name)
		if err != nil {
			Te.Fatal(err)
		}
		if r.Bins() != 3 || r.BinWidth() != 0.1 || r.Sigma() != 0.2 {
			Te.Errorf("%s: geometry didn't survive: %d %v %v", suffix, r.Bins(), r.BinWidth(), r.Sigma())
		}
		if m["session"] != "roundtrip" || m["k"] != "50" {
			Te.Errorf("%s: metadata didn't survive: %v", suffix, m)
		}
		got := make([]float64, 3)
		for i := 0; ; i++ {
			info, err := r.Next(got)
			if err != nil {
				if _, ok := err.(ensrest.LastRecordError); ok {
					if i != len(frames) {
						Te.Errorf("%s: history ended after %d frames, expected %d", suffix, i, len(frames))
					}
					break
				}
				Te.Fatal(err)
			}
			if !floats.EqualApprox(got, frames[i], 1e-12) {
				Te.Errorf("%s frame %d: got %v want %v", suffix, i, got, frames[i])
			}
			if *info != infos[i] {
				Te.Errorf("%s frame %d: info %v want %v", suffix, i, *info, infos[i])
			}
		}
		fi, _ := os.Stat(name)
		fmt.Printf("%s: %d frames in %d bytes\n", suffix, len(frames), fi.Size())
	}
}

func TestSkipFrames(Te *testing.T) {
	name := filepath.Join(Te.TempDir(), "skip.zerh")
	w, err := NewWriter(name, 2, 0.5, 1.0, nil)
	if err != nil {
		Te.Fatal(err)
	}
	w.WNext([]float64{1, 2}, FrameInfo{Window: 1})
	w.WNext([]float64{3, 4}, FrameInfo{Window: 2})
	w.Close()
	r, m, err := New(name)
	if err != nil {
		Te.Fatal(err)
	}
	if m != nil {
		Te.Errorf("expected nil metadata, got %v", m)
	}
	//a nil destination skips the frame but still validates it
	info, err := r.Next(nil)
	if err != nil {
		Te.Error(err)
	}
	got := make([]float64, 2)
	info, err = r.Next(got)
	if err != nil {
		Te.Error(err)
	}
	if info.Window != 2 || got[0] != 3 || got[1] != 4 {
		Te.Errorf("skipping the first frame broke the second: %v %v", info, got)
	}
	r.Close()
}

func TestWriterErrors(Te *testing.T) {
	dir := Te.TempDir()
	if _, err := NewWriter(filepath.Join(dir, "x.erh"), 0, 0.1, 0.1, nil); err == nil {
		Te.Error("a zero-bin history should be rejected")
	}
	if _, err := NewWriter(filepath.Join(dir, "x.erh"), 3, -1, 0.1, nil); err == nil {
		Te.Error("negative bin width should be rejected")
	}
	if _, err := NewWriter(filepath.Join(dir, "x.erh"), 3, 0.1, 0.1, map[string]string{"a=b": "c"}); err == nil {
		Te.Error("metadata with '=' in the key should be rejected")
	}
	w, err := NewWriter(filepath.Join(dir, "y.erh"), 3, 0.1, 0.1, nil)
	if err != nil {
		Te.Fatal(err)
	}
	if err := w.WNext([]float64{1, 2}, FrameInfo{}); err == nil {
		Te.Error("a frame of the wrong shape should be rejected")
	}
	w.Close()
	if err := w.WNext([]float64{1, 2, 3}, FrameInfo{}); err == nil {
		Te.Error("writing after Close should fail")
	}
}
