// Package zipcode maps US ZIP codes to coordinates from a pre-built JSON
// table, with keyword-variant support for codes missing from the table.
package zipcode

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/givescan/givescan/pkg/geo"
)

// DefaultVariantLimit caps the keyword variants generated for a ZIP code
// without coordinates, to bound API usage in fallback searches.
const DefaultVariantLimit = 6

// Entry is one resolved ZIP code.
type Entry struct {
	Coordinate geo.Coordinate
	City       string
	State      string
}

type tableRow struct {
	Lat   float64 `json:"lat"`
	Lng   float64 `json:"lng"`
	City  string  `json:"city"`
	State string  `json:"state"`
}

// Resolver looks up ZIP codes against a loaded coordinate table.
type Resolver struct {
	entries map[string]Entry
	logger  *slog.Logger
}

// Load reads a ZIP coordinate table from a JSON file. A table that is named
// but unreadable or malformed is a configuration error, not a soft miss.
func Load(path string, logger *slog.Logger) (*Resolver, error) {
	if logger == nil {
		logger = slog.Default()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("zipcode: read table %s: %w", path, err)
	}

	var rows map[string]tableRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("zipcode: parse table %s: %w", path, err)
	}

	entries := make(map[string]Entry, len(rows))
	for zip, row := range rows {
		entries[zip] = Entry{
			Coordinate: geo.Coordinate{Lat: row.Lat, Lng: row.Lng},
			City:       row.City,
			State:      row.State,
		}
	}

	logger.Info("Loaded ZIP coordinate table", "path", path, "entries", len(entries))

	return &Resolver{entries: entries, logger: logger}, nil
}

// NewResolver builds a resolver from an in-memory table.
func NewResolver(entries map[string]Entry, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	copied := make(map[string]Entry, len(entries))
	for zip, e := range entries {
		copied[zip] = e
	}
	return &Resolver{entries: copied, logger: logger}
}

// Resolve returns the entry for a ZIP code, or false if the table has no
// coordinates for it.
func (r *Resolver) Resolve(zip string) (Entry, bool) {
	e, ok := r.entries[zip]
	if !ok {
		r.logger.Warn("No coordinates for ZIP code", "zip", zip)
	}
	return e, ok
}

// Len reports the number of ZIP codes in the table.
func (r *Resolver) Len() int {
	return len(r.entries)
}

// Variants expands keywords into ZIP-scoped text queries for codes the table
// cannot resolve: "food bank in 98101", "food bank near 98101",
// "food bank 98101". The result is capped at max entries; max <= 0 falls
// back to DefaultVariantLimit.
func Variants(zip string, keywords []string, max int) []string {
	if max <= 0 {
		max = DefaultVariantLimit
	}

	var out []string
	for _, kw := range keywords {
		for _, v := range []string{
			fmt.Sprintf("%s in %s", kw, zip),
			fmt.Sprintf("%s near %s", kw, zip),
			fmt.Sprintf("%s %s", kw, zip),
		} {
			if len(out) == max {
				return out
			}
			out = append(out, v)
		}
	}
	return out
}
