package scrape

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/givescan/givescan/internal/fingerprint"
	"github.com/givescan/givescan/internal/metrics"
	"github.com/givescan/givescan/pkg/httpclient"
	"github.com/givescan/givescan/pkg/proxy"
	"github.com/givescan/givescan/pkg/useragent"
)

type contextKey string

// proxyKey carries the per-request proxy through the request context so the
// shared transport can rotate proxies without being rebuilt.
const proxyKey contextKey = "scrape_proxy"

// defaultTimeout bounds a single page fetch. Scraping is supplementary, so
// slow sites are abandoned quickly.
const defaultTimeout = 5 * time.Second

// maxBodyBytes caps how much of a page is read for scanning.
const maxBodyBytes = 2 << 20

// detectBodyBytes caps how much of a block page is read for classification.
const detectBodyBytes = 64 << 10

var (
	emailPattern  = regexp.MustCompile(`[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}`)
	mailtoPattern = regexp.MustCompile(`^mailto:([a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,})`)
)

// excludedPrefixes filters out generic and unattended addresses.
var excludedPrefixes = []string{
	"noreply@",
	"no-reply@",
	"donotreply@",
	"support@google",
	"webmaster@",
	"admin@",
	"postmaster@",
}

// Config configures an EmailScraper.
type Config struct {
	Timeout       time.Duration
	Fingerprint   fingerprint.Profile
	UAPool        *useragent.Pool
	ProxyURL      string      // optional single forward proxy for scrape traffic
	Proxies       *proxy.Pool // optional rotating pool; takes precedence over ProxyURL
	RespectRobots bool
	Logger        *slog.Logger
}

// EmailScraper fetches a web page and extracts a contact email address.
// Every failure mode degrades to "no email found"; scraping never surfaces
// an error to callers.
type EmailScraper struct {
	client  *httpclient.Client
	uas     *useragent.Pool
	proxies *proxy.Pool
	robots  *robotsCache
	logger  *slog.Logger
}

// New creates an EmailScraper. The only construction failure is an invalid
// fingerprint profile or proxy URL.
func New(cfg Config) (*EmailScraper, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.UAPool == nil {
		cfg.UAPool = useragent.NewPool(nil)
	}
	if string(cfg.Fingerprint) == "" {
		cfg.Fingerprint = fingerprint.ProfileChrome
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	var staticProxy *url.URL
	if cfg.ProxyURL != "" {
		u, err := url.Parse(cfg.ProxyURL)
		if err != nil {
			return nil, err
		}
		staticProxy = u
	}

	// The transport is built once; per-request rotation happens through the
	// proxy value planted in the request context.
	var proxyFunc func(*http.Request) (*url.URL, error)
	if cfg.Proxies != nil || staticProxy != nil {
		proxyFunc = func(req *http.Request) (*url.URL, error) {
			if val := req.Context().Value(proxyKey); val != nil {
				if u, ok := val.(*url.URL); ok {
					return u, nil
				}
			}
			return staticProxy, nil
		}
	}

	transport, err := fingerprint.Transport(cfg.Fingerprint, proxyFunc)
	if err != nil {
		return nil, err
	}

	client, err := httpclient.New(httpclient.Config{
		Timeout:      cfg.Timeout,
		MaxRedirects: 5,
		Transport:    transport,
	})
	if err != nil {
		return nil, err
	}

	s := &EmailScraper{
		client:  client,
		uas:     cfg.UAPool,
		proxies: cfg.Proxies,
		logger:  cfg.Logger,
	}
	if cfg.RespectRobots {
		s.robots = newRobotsCache(client, cfg.Logger)
	}
	return s, nil
}

// Extract fetches rawURL and returns the first qualifying email address found
// in the page, or "" if none is found or anything goes wrong. Non-http(s)
// URLs return "" immediately.
func (s *EmailScraper) Extract(ctx context.Context, rawURL string) string {
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return ""
	}

	if s.robots != nil && !s.robots.allowed(ctx, rawURL, s.uas.GetSequential()) {
		s.logger.Debug("scrape blocked by robots.txt", "url", rawURL)
		metrics.RecordScrape("blocked")
		return ""
	}

	var activeProxy *url.URL
	if s.proxies != nil {
		if activeProxy = s.proxies.Next(); activeProxy != nil {
			ctx = context.WithValue(ctx, proxyKey, activeProxy)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return ""
	}
	req.Header.Set("User-Agent", s.uas.GetSequential())
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := s.client.Do(ctx, req)
	if err != nil {
		if activeProxy != nil {
			_ = s.proxies.MarkFailure(activeProxy)
		}
		metrics.RecordScrape("error")
		return ""
	}
	defer resp.Body.Close()

	if activeProxy != nil {
		_ = s.proxies.MarkSuccess(activeProxy)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		chunk, _ := io.ReadAll(io.LimitReader(resp.Body, detectBodyBytes))
		if src, ok := blockSource(resp.StatusCode, resp.Header, chunk); ok {
			s.logger.Debug("scrape blocked by bot defense", "url", rawURL, "source", src)
			metrics.RecordScrape("blocked")
			return ""
		}
		metrics.RecordScrape("bad_status")
		return ""
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil || len(body) == 0 {
		metrics.RecordScrape("error")
		return ""
	}

	if email := findEmail(body); email != "" {
		metrics.RecordScrape("found")
		return email
	}
	metrics.RecordScrape("none")
	return ""
}

// findEmail scans page content for a contact address: mailto anchors first,
// then bare email-pattern matches. Matching is case-insensitive and the
// first address not on the exclusion list wins.
func findEmail(body []byte) string {
	lower := bytes.ToLower(body)

	if doc, err := goquery.NewDocumentFromReader(bytes.NewReader(lower)); err == nil {
		var found string
		doc.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
			href, ok := sel.Attr("href")
			if !ok {
				return true
			}
			m := mailtoPattern.FindStringSubmatch(strings.TrimSpace(href))
			if m == nil {
				return true
			}
			if excluded(m[1]) {
				return true
			}
			found = m[1]
			return false
		})
		if found != "" {
			return found
		}
	}

	for _, m := range emailPattern.FindAll(lower, -1) {
		email := string(m)
		if !excluded(email) {
			return email
		}
	}
	return ""
}

func excluded(email string) bool {
	for _, prefix := range excludedPrefixes {
		if strings.Contains(email, prefix) {
			return true
		}
	}
	return false
}
