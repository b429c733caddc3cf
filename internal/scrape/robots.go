package scrape

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"

	"github.com/temoto/robotstxt"

	"github.com/givescan/givescan/pkg/httpclient"
)

// robotsCache fetches and caches robots.txt per host. Lookups fail open:
// a robots.txt that cannot be fetched or parsed never blocks a scrape.
type robotsCache struct {
	client *httpclient.Client
	logger *slog.Logger

	mu    sync.RWMutex
	cache map[string]*robotstxt.RobotsData
}

func newRobotsCache(client *httpclient.Client, logger *slog.Logger) *robotsCache {
	return &robotsCache{
		client: client,
		logger: logger,
		cache:  make(map[string]*robotstxt.RobotsData),
	}
}

// allowed reports whether the given URL may be fetched under the host's
// robots.txt for the provided User-Agent.
func (r *robotsCache) allowed(ctx context.Context, targetURL, userAgent string) bool {
	u, err := url.Parse(targetURL)
	if err != nil {
		return false
	}

	data := r.getOrFetch(ctx, u.Scheme+"://"+u.Host)
	if data == nil {
		return true
	}

	return data.FindGroup(userAgent).Test(u.Path)
}

func (r *robotsCache) getOrFetch(ctx context.Context, host string) *robotstxt.RobotsData {
	r.mu.RLock()
	data, exists := r.cache[host]
	r.mu.RUnlock()

	if exists {
		return data
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if data, exists = r.cache[host]; exists {
		return data
	}

	data = r.fetch(ctx, host+"/robots.txt")
	r.cache[host] = data
	return data
}

func (r *robotsCache) fetch(ctx context.Context, robotsURL string) *robotstxt.RobotsData {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil
	}

	resp, err := r.client.Do(ctx, req)
	if err != nil {
		r.logger.Debug("robots.txt fetch failed, defaulting to allow", "url", robotsURL, "err", err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil
	}

	parsed, err := robotstxt.FromBytes(body)
	if err != nil {
		r.logger.Debug("robots.txt parse failed, defaulting to allow", "url", robotsURL, "err", err)
		return nil
	}
	return parsed
}
