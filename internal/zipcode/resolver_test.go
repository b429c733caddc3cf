package zipcode

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/givescan/givescan/pkg/geo"
)

const sampleTable = `{
	"98101": {"lat": 47.6101, "lng": -122.3344, "city": "Seattle", "state": "WA"},
	"97201": {"lat": 45.5051, "lng": -122.6870, "city": "Portland", "state": "OR"}
}`

func writeTable(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "zip_coordinates.json")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write table: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	r, err := Load(writeTable(t, sampleTable), nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if r.Len() != 2 {
		t.Errorf("expected 2 entries, got %d", r.Len())
	}

	e, ok := r.Resolve("98101")
	if !ok {
		t.Fatal("98101 should resolve")
	}
	if e.Coordinate.Lat != 47.6101 || e.Coordinate.Lng != -122.3344 {
		t.Errorf("coordinate = %+v", e.Coordinate)
	}
	if e.City != "Seattle" || e.State != "WA" {
		t.Errorf("city/state = %s/%s", e.City, e.State)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"), nil)
	if err == nil {
		t.Fatal("expected error for missing table file")
	}
}

func TestLoad_MalformedJSON(t *testing.T) {
	_, err := Load(writeTable(t, `{"98101": `), nil)
	if err == nil {
		t.Fatal("expected error for malformed table")
	}
}

func TestResolve_UnknownZip(t *testing.T) {
	r, err := Load(writeTable(t, sampleTable), nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if _, ok := r.Resolve("00000"); ok {
		t.Error("00000 should not resolve")
	}
}

func TestNewResolver_CopiesTable(t *testing.T) {
	entries := map[string]Entry{
		"98101": {Coordinate: geo.Coordinate{Lat: 47.61, Lng: -122.33}},
	}
	r := NewResolver(entries, nil)

	delete(entries, "98101")
	if _, ok := r.Resolve("98101"); !ok {
		t.Error("resolver should hold its own copy of the table")
	}
}

func TestVariants(t *testing.T) {
	got := Variants("98101", []string{"food bank"}, 0)
	want := []string{
		"food bank in 98101",
		"food bank near 98101",
		"food bank 98101",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("variants = %v, want %v", got, want)
	}
}

func TestVariants_Capped(t *testing.T) {
	keywords := []string{"food bank", "homeless shelter", "charity"}
	got := Variants("98101", keywords, 0)
	if len(got) != DefaultVariantLimit {
		t.Fatalf("expected %d variants, got %d", DefaultVariantLimit, len(got))
	}
	// The cap keeps whole keywords in order: all of the first, then the second.
	if got[0] != "food bank in 98101" || got[3] != "homeless shelter in 98101" {
		t.Errorf("unexpected ordering: %v", got)
	}

	got = Variants("98101", keywords, 4)
	if len(got) != 4 {
		t.Errorf("explicit cap: expected 4 variants, got %d", len(got))
	}
}
