package finder

import (
	"context"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/givescan/givescan/internal/metrics"
	"github.com/givescan/givescan/internal/places"
	"github.com/givescan/givescan/pkg/geo"
)

// minDetailRating is the rating below which detail fetches are skipped
// unless the caller asks for all places.
const minDetailRating = 3.0

// SearchClient issues one rate-limited text search per keyword.
type SearchClient interface {
	Search(ctx context.Context, origin geo.Coordinate, radiusM int, keyword string, minRating float64) ([]places.Candidate, error)
}

// DetailClient fetches the extended record for one place.
type DetailClient interface {
	Details(ctx context.Context, placeID string, maxReviews int) (*places.Details, error)
}

// Config configures a Finder.
type Config struct {
	Search  SearchClient
	Details DetailClient
	Logger  *slog.Logger
	// Concurrency caps parallel keyword searches. The shared rate limiter
	// keeps per-class spacing intact either way; 0 or 1 means sequential.
	Concurrency int
}

// Finder aggregates search results across keywords and enriches places with
// detail fetches. Per-keyword and per-place failures degrade to empty
// results and never abort a run.
type Finder struct {
	search      SearchClient
	details     DetailClient
	logger      *slog.Logger
	concurrency int
}

// Query describes one aggregation run.
type Query struct {
	Origin         geo.Coordinate
	RadiusMeters   int
	Keywords       []string
	MinRating      float64
	SortByDistance bool
}

// New creates a Finder.
func New(cfg Config) *Finder {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return &Finder{
		search:      cfg.Search,
		details:     cfg.Details,
		logger:      cfg.Logger,
		concurrency: cfg.Concurrency,
	}
}

// Aggregate searches every keyword, merges the hits, deduplicates them by
// place ID (first occurrence in keyword-then-API order wins; hits with no ID
// are always kept), drops permanently closed places, and optionally
// stable-sorts ascending by distance with unknown distances last. The only
// returned error is context cancellation; keyword failures produce zero
// results for that keyword.
func (f *Finder) Aggregate(ctx context.Context, q Query) ([]Place, error) {
	keywords := q.Keywords
	if len(keywords) == 0 {
		keywords = DefaultKeywords
	}

	// Results land in per-keyword slots and are merged in keyword order, so
	// the deduplication winner is deterministic even when searches run
	// concurrently.
	perKeyword := make([][]places.Candidate, len(keywords))

	if f.concurrency > 1 {
		g, gCtx := errgroup.WithContext(ctx)
		g.SetLimit(f.concurrency)
		for i, keyword := range keywords {
			i, keyword := i, keyword
			g.Go(func() error {
				perKeyword[i] = f.searchKeyword(gCtx, q, keyword)
				return gCtx.Err()
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	} else {
		for i, keyword := range keywords {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			perKeyword[i] = f.searchKeyword(ctx, q, keyword)
		}
	}

	seen := make(map[string]struct{})
	var out []Place
	for _, hits := range perKeyword {
		for _, hit := range hits {
			if hit.ID != "" {
				if _, dup := seen[hit.ID]; dup {
					continue
				}
				seen[hit.ID] = struct{}{}
			}

			p := newPlace(q.Origin, hit)
			if p.PermanentlyClosed {
				continue
			}
			out = append(out, p)
		}
	}

	if q.SortByDistance {
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].distanceOrInf() < out[j].distanceOrInf()
		})
	}

	metrics.PlacesAggregated.Add(float64(len(out)))
	f.logger.Info("aggregation complete", "keywords", len(keywords), "places", len(out))
	return out, nil
}

func (f *Finder) searchKeyword(ctx context.Context, q Query, keyword string) []places.Candidate {
	hits, err := f.search.Search(ctx, q.Origin, q.RadiusMeters, keyword, q.MinRating)
	if err != nil {
		f.logger.Warn("search failed, treating as zero results", "keyword", keyword, "err", err)
		return nil
	}
	f.logger.Debug("keyword searched", "keyword", keyword, "hits", len(hits))
	return hits
}

// Enrich fetches details for the given places, in order, one fetch in flight
// at a time. A place is skipped, with DetailFetched false and empty detail
// fields, when it is rated below 3.0 (missing rating counts as 0) and
// includeAll is false, when it has no place ID to look up, or when the
// detail fetch fails. Output order and length always match the input.
func (f *Finder) Enrich(ctx context.Context, in []Place, maxReviews int, includeAll bool) ([]EnrichedPlace, error) {
	out := make([]EnrichedPlace, 0, len(in))

	for _, p := range in {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		enriched := EnrichedPlace{Place: p}

		if !includeAll && p.ratingOrZero() < minDetailRating {
			f.logger.Debug("skipping detail fetch for low-rated place", "name", p.Name, "rating", p.ratingOrZero())
			out = append(out, enriched)
			continue
		}

		if p.PlaceID == "" {
			f.logger.Debug("skipping detail fetch, no place id", "name", p.Name)
			out = append(out, enriched)
			continue
		}

		d, err := f.details.Details(ctx, p.PlaceID, maxReviews)
		if err != nil {
			f.logger.Warn("detail fetch failed, keeping place unenriched", "place_id", p.PlaceID, "err", err)
			out = append(out, enriched)
			continue
		}

		enriched.Phone = d.Phone
		enriched.Website = d.Website
		enriched.Email = d.Email
		enriched.OpeningHours = d.OpeningHours
		enriched.Reviews = d.Reviews
		enriched.PhotoCount = d.PhotoCount
		enriched.Summary = d.Summary
		if d.BusinessStatus != "" {
			enriched.BusinessStatus = normalizeStatus(d.BusinessStatus)
			enriched.PermanentlyClosed = isPermanentlyClosed(d.BusinessStatus)
		}
		if d.Rating != nil {
			enriched.Rating = d.Rating
		}
		if d.UserRatingCount > 0 {
			enriched.UserRatingCount = d.UserRatingCount
		}
		enriched.DetailFetched = true

		out = append(out, enriched)
	}

	return out, nil
}
