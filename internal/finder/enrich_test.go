package finder

import (
	"context"
	"errors"
	"testing"

	"github.com/givescan/givescan/internal/places"
)

func TestEnrich_SkipsLowRated(t *testing.T) {
	details := &fakeDetails{}
	f := New(Config{Details: details})

	in := []Place{
		{PlaceID: "low", Rating: rating(2.9)},
		{PlaceID: "edge", Rating: rating(3.0)},
		{PlaceID: "none"}, // missing rating counts as 0
	}

	got, err := f.Enrich(context.Background(), in, 3, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got[0].DetailFetched {
		t.Errorf("rating 2.9 must skip the detail fetch")
	}
	if len(got[0].Reviews) != 0 {
		t.Errorf("skipped place must have no reviews")
	}
	if !got[1].DetailFetched {
		t.Errorf("rating 3.0 must trigger a detail fetch")
	}
	if got[2].DetailFetched {
		t.Errorf("missing rating must skip the detail fetch")
	}

	if len(details.calls) != 1 || details.calls[0] != "edge" {
		t.Errorf("detail calls = %v, want only 'edge'", details.calls)
	}
}

func TestEnrich_IncludeAllFetchesLowRated(t *testing.T) {
	details := &fakeDetails{}
	f := New(Config{Details: details})

	got, err := f.Enrich(context.Background(), []Place{{PlaceID: "low", Rating: rating(1.5)}}, 3, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got[0].DetailFetched {
		t.Errorf("includeAll must fetch regardless of rating")
	}
}

func TestEnrich_SkipsMissingID(t *testing.T) {
	details := &fakeDetails{}
	f := New(Config{Details: details})

	got, err := f.Enrich(context.Background(), []Place{{Name: "No ID", Rating: rating(4.5)}}, 3, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got[0].DetailFetched || len(details.calls) != 0 {
		t.Errorf("place without an ID must be skipped")
	}
}

func TestEnrich_DetailErrorDegradesToSkip(t *testing.T) {
	details := &fakeDetails{
		errID: map[string]error{"broken": errors.New("remote 500")},
	}
	f := New(Config{Details: details})

	in := []Place{
		{PlaceID: "broken", Rating: rating(4.0)},
		{PlaceID: "fine", Rating: rating(4.0)},
	}
	got, err := f.Enrich(context.Background(), in, 3, false)
	if err != nil {
		t.Fatalf("a per-place failure must not abort the batch: %v", err)
	}

	if got[0].DetailFetched {
		t.Errorf("failed detail fetch must leave DetailFetched false")
	}
	if !got[1].DetailFetched {
		t.Errorf("subsequent places must still be enriched")
	}
}

func TestEnrich_MergesDetailFields(t *testing.T) {
	details := &fakeDetails{byID: map[string]*places.Details{
		"p1": {
			ID:             "p1",
			Phone:          "+1 206-555-0100",
			Website:        "https://shelter.org",
			Email:          "info@shelter.org",
			OpeningHours:   []string{"Monday: 9AM-5PM"},
			Reviews:        []places.Review{{Author: "Sam", Rating: 5, Text: "great"}},
			BusinessStatus: "OPERATIONAL",
			PhotoCount:     4,
			Rating:         rating(4.6),
		},
	}}
	f := New(Config{Details: details})

	in := []Place{{PlaceID: "p1", Name: "Shelter", Address: "1 Main St", Rating: rating(4.5)}}
	got, err := f.Enrich(context.Background(), in, 3, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	e := got[0]
	if !e.DetailFetched {
		t.Fatalf("expected DetailFetched true")
	}
	if e.Phone != "+1 206-555-0100" || e.Website != "https://shelter.org" || e.Email != "info@shelter.org" {
		t.Errorf("contact fields not merged: %+v", e)
	}
	if len(e.OpeningHours) != 1 || len(e.Reviews) != 1 || e.PhotoCount != 4 {
		t.Errorf("detail fields not merged: %+v", e)
	}
	// Enrichment must not downgrade known fields.
	if e.Name != "Shelter" || e.Address != "1 Main St" {
		t.Errorf("base fields lost during merge: %+v", e)
	}
	if e.Rating == nil || *e.Rating != 4.6 {
		t.Errorf("fresher rating should be applied, got %v", e.Rating)
	}
}

func TestEnrich_PreservesOrderAndLength(t *testing.T) {
	details := &fakeDetails{}
	f := New(Config{Details: details})

	in := []Place{
		{PlaceID: "c", Rating: rating(4)},
		{PlaceID: "a", Rating: rating(1)},
		{PlaceID: "b", Rating: rating(5)},
	}
	got, err := f.Enrich(context.Background(), in, 3, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(got) != len(in) {
		t.Fatalf("enrichment must not drop places: %d != %d", len(got), len(in))
	}
	for i := range in {
		if got[i].PlaceID != in[i].PlaceID {
			t.Errorf("order changed at %d: %q != %q", i, got[i].PlaceID, in[i].PlaceID)
		}
	}
}
