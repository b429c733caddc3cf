// Package pipeline orchestrates a full finder run: keyword aggregation,
// detail enrichment, and persistence, with ZIP-code resolution on the way in.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/givescan/givescan/internal/finder"
	"github.com/givescan/givescan/internal/storage"
	"github.com/givescan/givescan/internal/zipcode"
	"github.com/givescan/givescan/pkg/geo"
)

// Config wires the pipeline's stages together.
type Config struct {
	Finder   *finder.Finder
	Backend  storage.Backend
	Resolver *zipcode.Resolver // required for ZIP runs only
	Fallback *geo.Coordinate   // origin for ZIPs missing from the table
	Logger   *slog.Logger
}

// Options parameterizes one run.
type Options struct {
	Query       finder.Query
	MaxResults  int
	MaxReviews  int
	IncludeAll  bool
	SkipDetails bool
}

// Result summarizes one stored run.
type Result struct {
	RunID     string
	Stored    int
	WithEmail int
}

type Pipeline struct {
	cfg Config
}

// New creates a Pipeline.
func New(cfg Config) (*Pipeline, error) {
	if cfg.Finder == nil {
		return nil, errors.New("pipeline: finder is required")
	}
	if cfg.Backend == nil {
		return nil, errors.New("pipeline: storage backend is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Pipeline{cfg: cfg}, nil
}

// Run aggregates, enriches, and stores one query under a fresh run ID.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*Result, error) {
	found, err := p.cfg.Finder.Aggregate(ctx, opts.Query)
	if err != nil {
		return nil, fmt.Errorf("pipeline: aggregate: %w", err)
	}
	if opts.MaxResults > 0 && len(found) > opts.MaxResults {
		found = found[:opts.MaxResults]
	}

	var enriched []finder.EnrichedPlace
	if opts.SkipDetails {
		for _, pl := range found {
			enriched = append(enriched, finder.EnrichedPlace{Place: pl})
		}
	} else {
		enriched, err = p.cfg.Finder.Enrich(ctx, found, opts.MaxReviews, opts.IncludeAll)
		if err != nil {
			return nil, fmt.Errorf("pipeline: enrich: %w", err)
		}
	}

	res := &Result{RunID: uuid.NewString()}
	for i := range enriched {
		rec := &storage.Record{
			ID:        uuid.NewString(),
			RunID:     res.RunID,
			CreatedAt: time.Now().UTC(),
			Place:     enriched[i],
		}
		if err := p.cfg.Backend.Save(ctx, rec); err != nil {
			return nil, fmt.Errorf("pipeline: save %s: %w", enriched[i].Name, err)
		}
		res.Stored++
		if enriched[i].Email != "" {
			res.WithEmail++
		}
	}

	p.cfg.Logger.Info("Run stored",
		"run_id", res.RunID, "records", res.Stored, "with_email", res.WithEmail)
	return res, nil
}

// RunZip resolves a ZIP code to an origin and runs. A ZIP missing from the
// table falls back to the configured fallback origin with ZIP-scoped keyword
// variants, a doubled radius, and distance sorting off.
func (p *Pipeline) RunZip(ctx context.Context, zip string, opts Options) (*Result, error) {
	if p.cfg.Resolver == nil {
		return nil, errors.New("pipeline: no ZIP resolver configured")
	}

	if entry, ok := p.cfg.Resolver.Resolve(zip); ok {
		opts.Query.Origin = entry.Coordinate
		p.cfg.Logger.Info("Resolved ZIP code",
			"zip", zip, "city", entry.City, "state", entry.State,
			"lat", entry.Coordinate.Lat, "lng", entry.Coordinate.Lng)
	} else {
		if p.cfg.Fallback == nil {
			return nil, fmt.Errorf("pipeline: no coordinates for ZIP %s and no fallback origin", zip)
		}
		keywords := opts.Query.Keywords
		if len(keywords) == 0 {
			keywords = finder.DefaultKeywords
		}
		opts.Query.Origin = *p.cfg.Fallback
		opts.Query.Keywords = zipcode.Variants(zip, keywords, zipcode.DefaultVariantLimit)
		opts.Query.RadiusMeters *= 2
		opts.Query.SortByDistance = false
		p.cfg.Logger.Warn("ZIP not in table, using fallback origin with ZIP-scoped keywords",
			"zip", zip, "radius", opts.Query.RadiusMeters)
	}

	return p.Run(ctx, opts)
}

// RunZipBatch processes each ZIP in order. A failing ZIP is logged and
// skipped; the batch only aborts when the context is done.
func (p *Pipeline) RunZipBatch(ctx context.Context, zips []string, opts Options) (map[string]*Result, error) {
	out := make(map[string]*Result, len(zips))
	for _, zip := range zips {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		res, err := p.RunZip(ctx, zip, opts)
		if err != nil {
			p.cfg.Logger.Warn("ZIP run failed", "zip", zip, "error", err)
			continue
		}
		out[zip] = res
	}
	return out, nil
}
