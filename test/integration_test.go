//go:build integration

package test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/givescan/givescan/internal/finder"
	"github.com/givescan/givescan/internal/fingerprint"
	"github.com/givescan/givescan/internal/places"
	"github.com/givescan/givescan/internal/report"
	"github.com/givescan/givescan/internal/scrape"
	"github.com/givescan/givescan/internal/storage"
	"github.com/givescan/givescan/internal/storage/jsonbackend"
	"github.com/givescan/givescan/pkg/geo"
	"github.com/givescan/givescan/pkg/ratelimit"
)

// fastIntervals keeps the end-to-end run quick while still exercising the
// limiter between calls.
func fastIntervals() map[ratelimit.Class]time.Duration {
	return map[ratelimit.Class]time.Duration{
		ratelimit.ClassSearch: 5 * time.Millisecond,
		ratelimit.ClassDetail: 5 * time.Millisecond,
	}
}

func TestIntegration_ScanPipeline(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	// 1. A charity website with a contact email for the scraper to find.
	charitySite := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body>
			<h1>Hope Food Bank</h1>
			<p>Reach us at <a href="mailto:donate@hopefoodbank.org">donate@hopefoodbank.org</a></p>
		</body></html>`)
	}))
	defer charitySite.Close()

	// 2. A fake places API: one searchText endpoint, one detail endpoint.
	mux := http.NewServeMux()
	mux.HandleFunc("/places:searchText", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req struct {
			TextQuery string `json:"textQuery"`
		}
		if err := json.Unmarshal(body, &req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		// Both keywords return the same place; aggregation must dedup it.
		resp := map[string]any{
			"places": []map[string]any{
				{
					"id":               "hope-1",
					"displayName":      map[string]any{"text": "Hope Food Bank"},
					"formattedAddress": "100 Giving Way, Seattle",
					"location":         map[string]any{"latitude": 47.6100, "longitude": -122.3330},
					"rating":           4.6,
					"userRatingCount":  120,
					"businessStatus":   "OPERATIONAL",
				},
				{
					"id":               "closed-2",
					"displayName":      map[string]any{"text": "Closed Charity"},
					"formattedAddress": "200 Gone St, Seattle",
					"location":         map[string]any{"latitude": 47.6080, "longitude": -122.3340},
					"businessStatus":   "PERMANENTLY_CLOSED",
				},
			},
		}
		json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc("/places/hope-1", func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{
			"id":                       "hope-1",
			"displayName":              map[string]any{"text": "Hope Food Bank"},
			"formattedAddress":         "100 Giving Way, Seattle",
			"location":                 map[string]any{"latitude": 47.6100, "longitude": -122.3330},
			"rating":                   4.6,
			"userRatingCount":          120,
			"businessStatus":           "OPERATIONAL",
			"internationalPhoneNumber": "+1 206-555-0100",
			"websiteUri":               charitySite.URL,
			"reviews": []map[string]any{
				{
					"rating":                         5,
					"text":                           map[string]any{"text": "They do wonderful work"},
					"authorAttribution":              map[string]any{"displayName": "Sam"},
					"relativePublishTimeDescription": "a month ago",
				},
			},
		}
		json.NewEncoder(w).Encode(resp)
	})
	apiServer := httptest.NewServer(mux)
	defer apiServer.Close()

	// 3. Wire the pipeline the way the scan command does.
	scraper, err := scrape.New(scrape.Config{
		Timeout:     5 * time.Second,
		Fingerprint: fingerprint.ProfileGo,
		Logger:      logger,
	})
	if err != nil {
		t.Fatalf("building scraper: %v", err)
	}

	client, err := places.New(places.Config{
		APIKey:      "test-key",
		BaseURL:     apiServer.URL,
		Limiter:     ratelimit.NewLimiter(fastIntervals(), logger),
		Emails:      scraper,
		ScrapeDelay: time.Millisecond,
		Logger:      logger,
	})
	if err != nil {
		t.Fatalf("building client: %v", err)
	}

	fd := finder.New(finder.Config{Search: client, Details: client, Logger: logger})

	ctx := context.Background()
	found, err := fd.Aggregate(ctx, finder.Query{
		Origin:         geo.Coordinate{Lat: 47.6062, Lng: -122.3321},
		RadiusMeters:   5000,
		Keywords:       []string{"food bank", "charity"},
		SortByDistance: true,
	})
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}
	if len(found) != 1 {
		t.Fatalf("expected 1 deduplicated open place, got %d", len(found))
	}
	if found[0].PlaceID != "hope-1" {
		t.Fatalf("unexpected place: %s", found[0].PlaceID)
	}
	if found[0].DistanceMeters == nil {
		t.Fatal("distance not computed")
	}

	enriched, err := fd.Enrich(ctx, found, 3, false)
	if err != nil {
		t.Fatalf("Enrich failed: %v", err)
	}
	if len(enriched) != 1 {
		t.Fatalf("expected 1 enriched place, got %d", len(enriched))
	}

	e := enriched[0]
	if !e.DetailFetched {
		t.Error("detail fetch should have succeeded")
	}
	if e.Phone != "+1 206-555-0100" {
		t.Errorf("phone = %q", e.Phone)
	}
	if e.Email != "donate@hopefoodbank.org" {
		t.Errorf("scraped email = %q", e.Email)
	}
	if len(e.Reviews) != 1 || e.Reviews[0].Author != "Sam" {
		t.Errorf("reviews = %+v", e.Reviews)
	}

	// 4. Store the run and render a report from what was stored.
	backend, err := jsonbackend.New(filepath.Join(t.TempDir(), "results.jsonl"))
	if err != nil {
		t.Fatalf("opening backend: %v", err)
	}
	defer backend.Close()

	runID := uuid.NewString()
	for i := range enriched {
		rec := &storage.Record{
			ID:        uuid.NewString(),
			RunID:     runID,
			CreatedAt: time.Now().UTC(),
			Place:     enriched[i],
		}
		if err := backend.Save(ctx, rec); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}

	records, err := backend.Query(ctx, storage.Filter{RunID: runID})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}

	summary := report.GenerateSummary(records)
	if summary.TotalPlaces != 1 || summary.WithEmail != 1 {
		t.Errorf("summary totals = %d places / %d with email", summary.TotalPlaces, summary.WithEmail)
	}

	var buf bytes.Buffer
	if err := report.WriteText(&buf, summary); err != nil {
		t.Fatalf("WriteText failed: %v", err)
	}
	for _, want := range []string{"Hope Food Bank", "donate@hopefoodbank.org"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("report missing %q", want)
		}
	}
}
