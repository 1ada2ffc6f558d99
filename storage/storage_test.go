package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func TestRoundTrip(Te *testing.T) {
	ctx := context.Background()
	path := filepath.Join(Te.TempDir(), "runs.db")
	s, err := Open(ctx, path)
	if err != nil {
		Te.Fatal(err)
	}
	defer s.Close()
	sess := Session{
		ID:        "11111111-2222-3333-4444-555555555555",
		Label:     "roundtrip",
		CreatedAt: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		Replicas:  4,
		Steps:     1000,
		Params:    "restraint:\n  nbins: 3\n",
	}
	if err := s.SaveSession(ctx, sess); err != nil {
		Te.Fatal(err)
	}
	//re-saving the same ID must update, not duplicate
	sess.Label = "roundtrip-2"
	if err := s.SaveSession(ctx, sess); err != nil {
		Te.Fatal(err)
	}
	for w := 1; w <= 2; w++ {
		for rep := 0; rep < 2; rep++ {
			err := s.AddRotation(ctx, Rotation{
				SessionID: sess.ID,
				Replica:   rep,
				Window:    w,
				Time:      float64(w) * 4.0,
				Mean:      2.5,
				Std:       0.5,
				JS:        0.01,
				Histogram: []float64{0.2, 0.6, 0.2},
			})
			if err != nil {
				Te.Fatal(err)
			}
		}
	}
	got, err := s.Sessions(ctx)
	if err != nil {
		Te.Fatal(err)
	}
	if len(got) != 1 {
		Te.Fatalf("saved 1 session (twice), listed %d", len(got))
	}
	if got[0].Label != "roundtrip-2" || got[0].Replicas != 4 {
		Te.Errorf("session didn't survive: %+v", got[0])
	}
	if !got[0].CreatedAt.Equal(sess.CreatedAt) {
		Te.Errorf("timestamp didn't survive: %v vs %v", got[0].CreatedAt, sess.CreatedAt)
	}
	rots, err := s.Rotations(ctx, sess.ID)
	if err != nil {
		Te.Fatal(err)
	}
	if len(rots) != 4 {
		Te.Fatalf("saved 4 rotations, fetched %d", len(rots))
	}
	if rots[3].Window != 2 || rots[3].Replica != 1 {
		Te.Errorf("rotation order broke: %+v", rots[3])
	}
	if len(rots[0].Histogram) != 3 || rots[0].Histogram[1] != 0.6 {
		Te.Errorf("histogram didn't survive: %v", rots[0].Histogram)
	}
	//an unknown session has no rotations, not an error
	none, err := s.Rotations(ctx, "nope")
	if err != nil || len(none) != 0 {
		Te.Errorf("unknown session: %v, %v", none, err)
	}
}

func TestOpenErrors(Te *testing.T) {
	if _, err := Open(context.Background(), ""); err == nil {
		Te.Error("an empty path should be rejected")
	}
}
