package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/givescan/givescan/internal/finder"
	"github.com/givescan/givescan/internal/fingerprint"
	"github.com/givescan/givescan/internal/metrics"
	"github.com/givescan/givescan/internal/pipeline"
	"github.com/givescan/givescan/internal/places"
	"github.com/givescan/givescan/internal/report"
	"github.com/givescan/givescan/internal/scrape"
	"github.com/givescan/givescan/internal/storage"
	"github.com/givescan/givescan/internal/zipcode"
	"github.com/givescan/givescan/pkg/geo"
	"github.com/givescan/givescan/pkg/proxy"
	"github.com/givescan/givescan/pkg/ratelimit"
)

var scanOpts struct {
	lat, lng                 float64
	zips                     []string
	zipTable                 string
	fallbackLat, fallbackLng float64
	radius                   int
	keywords                 []string
	minRating                float64
	maxResults               int
	reviews                  int
	includeAll               bool
	skipDetails              bool
	concurrency              int
	store, storePath         string
	reportFormat, reportOut  string
	scrapeTimeout            time.Duration
	respectRobots            bool
	fpProfile                string
	proxyURL                 string
	proxyFile                string
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Search for donation opportunities around a location",
	Example: `  givescan scan --lat 47.6062 --lng -122.3321 --radius 5000
  givescan scan --zip 98101 --zip 98052 --zip-table zip_coordinates.json
  givescan scan --lat 47.6062 --lng -122.3321 --store sqlite --store-path results.db --report html`,
	RunE: runScan,
}

func init() {
	f := scanCmd.Flags()
	f.Float64Var(&scanOpts.lat, "lat", 0, "origin latitude")
	f.Float64Var(&scanOpts.lng, "lng", 0, "origin longitude")
	f.StringSliceVar(&scanOpts.zips, "zip", nil, "origin ZIP code instead of --lat/--lng (repeatable for a batch run)")
	f.StringVar(&scanOpts.zipTable, "zip-table", "zip_coordinates.json", "ZIP coordinate table for --zip")
	f.Float64Var(&scanOpts.fallbackLat, "fallback-lat", 0, "fallback latitude for ZIP codes missing from the table")
	f.Float64Var(&scanOpts.fallbackLng, "fallback-lng", 0, "fallback longitude for ZIP codes missing from the table")
	f.IntVar(&scanOpts.radius, "radius", 5000, "search radius in meters")
	f.StringSliceVar(&scanOpts.keywords, "keyword", nil, "search keyword (repeatable; defaults to the built-in list)")
	f.Float64Var(&scanOpts.minRating, "min-rating", 0, "drop places rated below this")
	f.IntVar(&scanOpts.maxResults, "max-results", 0, "cap the aggregated result list (0 = no cap)")
	f.IntVar(&scanOpts.reviews, "reviews", 3, "reviews to keep per enriched place")
	f.BoolVar(&scanOpts.includeAll, "include-all", false, "fetch details for low-rated places too")
	f.BoolVar(&scanOpts.skipDetails, "skip-details", false, "skip the detail/enrichment phase entirely")
	f.IntVar(&scanOpts.concurrency, "concurrency", 1, "parallel keyword searches")
	f.StringVar(&scanOpts.store, "store", "json", "storage backend: json, csv, sqlite, postgres")
	f.StringVar(&scanOpts.storePath, "store-path", "results.jsonl", "backend file path, or DSN for postgres")
	f.StringVar(&scanOpts.reportFormat, "report", "text", "report format: text, json, html, none")
	f.StringVar(&scanOpts.reportOut, "report-out", "", "report output file (default stdout)")
	f.DurationVar(&scanOpts.scrapeTimeout, "scrape-timeout", 5*time.Second, "per-site email scrape timeout")
	f.BoolVar(&scanOpts.respectRobots, "respect-robots", false, "honor robots.txt when scraping for emails")
	f.StringVar(&scanOpts.fpProfile, "fingerprint", "chrome", "TLS fingerprint for scraping: chrome, firefox, safari, go")
	f.StringVar(&scanOpts.proxyURL, "proxy", "", "forward proxy URL for scrape traffic")
	f.StringVar(&scanOpts.proxyFile, "proxy-file", "", "file of proxy URLs to rotate through when scraping")

	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := newLogger()

	key := apiKey()
	if key == "" {
		return fmt.Errorf("an API key is required: set --api-key, GIVESCAN_API_KEY, or GOOGLE_MAPS_API_KEY")
	}

	if port := viper.GetInt("metrics-port"); port > 0 {
		srv := metrics.Start(port)
		defer srv.Stop(context.Background())
	}

	limiter := ratelimit.NewLimiter(ratelimit.DefaultIntervals(), logger)

	var proxies *proxy.Pool
	if scanOpts.proxyFile != "" {
		proxies = proxy.NewPool(proxy.Config{})
		if err := proxies.LoadFile(scanOpts.proxyFile); err != nil {
			return err
		}
		logger.Info("Loaded scrape proxies", "count", proxies.Len())
	}

	scraper, err := scrape.New(scrape.Config{
		Timeout:       scanOpts.scrapeTimeout,
		Fingerprint:   fingerprint.Profile(scanOpts.fpProfile),
		ProxyURL:      scanOpts.proxyURL,
		Proxies:       proxies,
		RespectRobots: scanOpts.respectRobots,
		Logger:        logger,
	})
	if err != nil {
		return fmt.Errorf("building email scraper: %w", err)
	}

	client, err := places.New(places.Config{
		APIKey:  key,
		Limiter: limiter,
		Emails:  scraper,
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("building places client: %w", err)
	}

	backend, err := openBackend(ctx, scanOpts.store, scanOpts.storePath)
	if err != nil {
		return err
	}
	defer backend.Close()

	cfg := pipeline.Config{
		Finder: finder.New(finder.Config{
			Search:      client,
			Details:     client,
			Logger:      logger,
			Concurrency: scanOpts.concurrency,
		}),
		Backend: backend,
		Logger:  logger,
	}

	if len(scanOpts.zips) > 0 {
		cfg.Resolver, err = zipcode.Load(scanOpts.zipTable, logger)
		if err != nil {
			return err
		}
		if scanOpts.fallbackLat != 0 || scanOpts.fallbackLng != 0 {
			cfg.Fallback = &geo.Coordinate{Lat: scanOpts.fallbackLat, Lng: scanOpts.fallbackLng}
		}
	}

	p, err := pipeline.New(cfg)
	if err != nil {
		return err
	}

	opts := pipeline.Options{
		Query: finder.Query{
			Origin:         geo.Coordinate{Lat: scanOpts.lat, Lng: scanOpts.lng},
			RadiusMeters:   scanOpts.radius,
			Keywords:       scanOpts.keywords,
			MinRating:      scanOpts.minRating,
			SortByDistance: true,
		},
		MaxResults:  scanOpts.maxResults,
		MaxReviews:  scanOpts.reviews,
		IncludeAll:  scanOpts.includeAll,
		SkipDetails: scanOpts.skipDetails,
	}

	var runIDs []string
	switch len(scanOpts.zips) {
	case 0:
		if !opts.Query.Origin.Valid() {
			return fmt.Errorf("origin %.4f,%.4f is not a valid coordinate", scanOpts.lat, scanOpts.lng)
		}
		res, err := p.Run(ctx, opts)
		if err != nil {
			return err
		}
		runIDs = append(runIDs, res.RunID)
	case 1:
		res, err := p.RunZip(ctx, scanOpts.zips[0], opts)
		if err != nil {
			return err
		}
		runIDs = append(runIDs, res.RunID)
	default:
		results, err := p.RunZipBatch(ctx, scanOpts.zips, opts)
		if err != nil {
			return err
		}
		if len(results) == 0 {
			return fmt.Errorf("no ZIP in the batch produced a run")
		}
		for _, zip := range scanOpts.zips {
			if res, ok := results[zip]; ok {
				runIDs = append(runIDs, res.RunID)
			}
		}
	}
	logger.Info("Scan complete", "runs", len(runIDs), "api_calls", limiter.Calls(), "backend", scanOpts.store)

	if scanOpts.reportFormat == "none" {
		return nil
	}

	var records []*storage.Record
	for _, runID := range runIDs {
		recs, err := backend.Query(ctx, storage.Filter{RunID: runID})
		if err != nil {
			return fmt.Errorf("reading back run %s: %w", runID, err)
		}
		records = append(records, recs...)
	}
	return renderReport(report.GenerateSummary(records), scanOpts.reportFormat, scanOpts.reportOut)
}

func renderReport(summary report.Summary, format, outPath string) error {
	var out io.Writer = os.Stdout
	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("creating report file: %w", err)
		}
		defer f.Close()
		out = f
	}

	switch format {
	case "text":
		return report.WriteText(out, summary)
	case "json":
		return report.WriteJSON(out, summary)
	case "html":
		return report.WriteHTML(out, summary)
	default:
		return fmt.Errorf("unknown report format %q (want text, json, html, or none)", format)
	}
}
