package places

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/givescan/givescan/internal/metrics"
	"github.com/givescan/givescan/pkg/geo"
	"github.com/givescan/givescan/pkg/httpclient"
	"github.com/givescan/givescan/pkg/ratelimit"
)

const (
	defaultBaseURL = "https://places.googleapis.com/v1"

	// maxResultCount is the server-side cap per search query.
	maxResultCount = 20

	// defaultScrapeDelay is the politeness pause after scraping a website,
	// applied regardless of scrape outcome.
	defaultScrapeDelay = 600 * time.Millisecond

	searchFieldMask = "places.id,places.displayName,places.formattedAddress,places.location," +
		"places.rating,places.businessStatus,places.types,places.priceLevel,places.userRatingCount"

	detailFieldMask = "id,displayName,formattedAddress,rating,userRatingCount,reviews,photos," +
		"regularOpeningHours,internationalPhoneNumber,websiteUri,businessStatus,editorialSummary"
)

var (
	ErrMissingAPIKey = errors.New("places: API key is required")
	ErrUnauthorized  = errors.New("places: unauthorized")
)

// EmailExtractor extracts a contact email from a website. An empty string
// means "no email found"; extraction never fails.
type EmailExtractor interface {
	Extract(ctx context.Context, url string) string
}

// Config configures a places API Client.
type Config struct {
	APIKey      string
	BaseURL     string // override for tests
	Timeout     time.Duration
	Limiter     *ratelimit.Limiter
	Emails      EmailExtractor // optional; enables email scraping on detail fetches
	ScrapeDelay time.Duration
	Logger      *slog.Logger
}

// Client issues text-search and per-place detail queries against the places
// API. Each outbound call waits on the shared rate limiter first.
type Client struct {
	base        string
	hc          *httpclient.Client
	key         string
	limiter     *ratelimit.Limiter
	emails      EmailExtractor
	scrapeDelay time.Duration
	logger      *slog.Logger
}

// New creates a Client. A missing API key is a construction-time failure;
// nothing else is.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.Limiter == nil {
		cfg.Limiter = ratelimit.NewLimiter(ratelimit.DefaultIntervals(), cfg.Logger)
	}
	if cfg.ScrapeDelay == 0 {
		cfg.ScrapeDelay = defaultScrapeDelay
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	hc, err := httpclient.New(httpclient.Config{Timeout: cfg.Timeout, MaxRedirects: 3})
	if err != nil {
		return nil, err
	}

	return &Client{
		base:        strings.TrimRight(cfg.BaseURL, "/"),
		hc:          hc,
		key:         cfg.APIKey,
		limiter:     cfg.Limiter,
		emails:      cfg.Emails,
		scrapeDelay: cfg.ScrapeDelay,
		logger:      cfg.Logger,
	}, nil
}

// Search issues one text query biased to a circle around origin and returns
// candidates re-filtered client-side: hits farther than radiusM from origin
// are dropped (the server treats the circle as a bias, not a hard filter),
// as are hits rated below minRating. Hits with an unknown rating pass only
// when minRating is zero.
func (c *Client) Search(ctx context.Context, origin geo.Coordinate, radiusM int, keyword string, minRating float64) ([]Candidate, error) {
	if err := c.limiter.Wait(ctx, ratelimit.ClassSearch); err != nil {
		return nil, err
	}

	reqBody := searchRequest{
		TextQuery: keyword,
		LocationBias: locationBias{
			Circle: circle{
				Center: latLng{Latitude: origin.Lat, Longitude: origin.Lng},
				Radius: float64(radiusM),
			},
		},
		MaxResultCount: maxResultCount,
	}

	var resp searchResponse
	if err := c.do(ctx, http.MethodPost, c.base+"/places:searchText", searchFieldMask, &reqBody, &resp, "search"); err != nil {
		return nil, err
	}

	candidates := make([]Candidate, 0, len(resp.Places))
	for _, rec := range resp.Places {
		cand := rec.candidate()

		if cand.Location != nil {
			if geo.Distance(origin, *cand.Location) > float64(radiusM) {
				continue
			}
		}

		rating := 0.0
		if cand.Rating != nil {
			rating = *cand.Rating
		}
		if rating < minRating {
			continue
		}

		candidates = append(candidates, cand)
	}

	c.logger.Debug("search complete", "keyword", keyword, "hits", len(resp.Places), "kept", len(candidates))
	return candidates, nil
}

// Details fetches the extended record for a place, truncating reviews to
// maxReviews in API order. When the place lists a website and an email
// extractor is configured, the website is scraped synchronously, followed by
// the politeness delay regardless of outcome.
func (c *Client) Details(ctx context.Context, placeID string, maxReviews int) (*Details, error) {
	if err := c.limiter.Wait(ctx, ratelimit.ClassDetail); err != nil {
		return nil, err
	}

	var rec placeRecord
	detailURL := c.base + "/places/" + url.PathEscape(placeID)
	if err := c.do(ctx, http.MethodGet, detailURL, detailFieldMask, nil, &rec, "detail"); err != nil {
		return nil, err
	}

	d := &Details{
		ID:              rec.ID,
		Address:         rec.FormattedAddress,
		Rating:          rec.Rating,
		UserRatingCount: rec.UserRatingCount,
		Phone:           rec.InternationalPhoneNumber,
		Website:         rec.WebsiteURI,
		BusinessStatus:  rec.BusinessStatus,
		PhotoCount:      len(rec.Photos),
	}
	if d.ID == "" {
		d.ID = placeID
	}
	if rec.DisplayName != nil {
		d.Name = rec.DisplayName.Text
	}
	if rec.EditorialSummary != nil {
		d.Summary = rec.EditorialSummary.Text
	}
	if rec.RegularOpeningHours != nil {
		d.OpeningHours = rec.RegularOpeningHours.WeekdayDescriptions
	}

	reviews := rec.Reviews
	if maxReviews >= 0 && len(reviews) > maxReviews {
		reviews = reviews[:maxReviews]
	}
	for _, rv := range reviews {
		review := Review{
			Rating:       rv.Rating,
			RelativeTime: rv.RelativePublishTimeDescription,
			PublishTime:  rv.PublishTime,
		}
		if rv.Text != nil {
			review.Text = rv.Text.Text
		}
		if rv.AuthorAttribution != nil {
			review.Author = rv.AuthorAttribution.DisplayName
			review.AuthorPhoto = rv.AuthorAttribution.PhotoURI
		} else {
			review.Author = "Anonymous"
		}
		d.Reviews = append(d.Reviews, review)
	}

	if d.Website != "" && c.emails != nil {
		d.Email = c.emails.Extract(ctx, d.Website)
		if err := ratelimit.Sleep(ctx, c.scrapeDelay); err != nil {
			return d, nil // context gone; details are already in hand
		}
	}

	return d, nil
}

// do executes one API call, decoding the JSON response into out and
// recording request metrics.
func (c *Client) do(ctx context.Context, method, reqURL, fieldMask string, in, out any, class string) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("places: encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return fmt.Errorf("places: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-Api-Key", c.key)
	req.Header.Set("X-Goog-FieldMask", fieldMask)

	start := time.Now()
	resp, err := c.hc.Do(ctx, req)
	if err != nil {
		metrics.RecordAPIRequest(class, "error", time.Since(start))
		return fmt.Errorf("places: request failed: %w", err)
	}
	defer resp.Body.Close()

	metrics.RecordAPIRequest(class, strconv.Itoa(resp.StatusCode), time.Since(start))

	switch {
	case resp.StatusCode == http.StatusOK:
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("places: decode response: %w", err)
		}
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ErrUnauthorized
	default:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("places: bad status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
}
