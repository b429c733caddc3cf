// Package proxy manages a rotating pool of forward proxies for scrape
// traffic, with per-proxy failure tracking and cooldown.
package proxy

import (
	"bufio"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"
)

// Proxy is a single endpoint with health tracking.
type Proxy struct {
	URL           *url.URL
	Failures      int
	Successes     int
	LastUsed      time.Time
	Disabled      bool
	DisabledUntil time.Time
}

// Pool hands out proxies round-robin, skipping endpoints that are cooling
// down after repeated failures.
type Pool struct {
	mu          sync.Mutex
	proxies     []*Proxy
	nextIndex   int
	maxFailures int
	cooldown    time.Duration
}

// Config defines settings for the pool.
type Config struct {
	// MaxFailures before disabling a proxy temporarily.
	MaxFailures int
	// Cooldown is how long a proxy stays disabled after hitting MaxFailures.
	Cooldown time.Duration
}

// NewPool creates an empty pool. Zero config values get defaults.
func NewPool(cfg Config) *Pool {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 3
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 5 * time.Minute
	}
	return &Pool{
		maxFailures: cfg.MaxFailures,
		cooldown:    cfg.Cooldown,
	}
}

// LoadFile reads proxies from a file, one URL per line. Empty lines and
// lines starting with '#' are skipped.
func (p *Pool) LoadFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("proxy: open %s: %w", path, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	var urls []string
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("proxy: read %s: %w", path, err)
	}

	return p.Add(urls...)
}

// Add parses raw URL strings and adds them to the pool. A missing scheme
// defaults to http.
func (p *Pool) Add(rawURLs ...string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, raw := range rawURLs {
		if !strings.Contains(raw, "://") {
			raw = "http://" + raw
		}
		u, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("proxy: parse %q: %w", raw, err)
		}
		p.proxies = append(p.proxies, &Proxy{URL: u})
	}
	return nil
}

// Len reports the number of proxies in the pool, healthy or not.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.proxies)
}

// Next returns the next healthy proxy URL, or nil if the pool is empty or
// every proxy is cooling down.
func (p *Pool) Next() *url.URL {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.proxies) == 0 {
		return nil
	}

	now := time.Now()
	start := p.nextIndex

	for {
		prx := p.proxies[p.nextIndex]
		p.nextIndex = (p.nextIndex + 1) % len(p.proxies)

		if prx.Disabled && now.After(prx.DisabledUntil) {
			prx.Disabled = false
			prx.Failures = 0
		}

		if !prx.Disabled {
			prx.LastUsed = now
			return prx.URL
		}

		if p.nextIndex == start {
			return nil
		}
	}
}

// MarkSuccess records a successful request through the given proxy.
func (p *Pool) MarkSuccess(proxyURL *url.URL) error {
	if proxyURL == nil {
		return errors.New("proxy: nil proxy URL")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	prx := p.find(proxyURL)
	if prx == nil {
		return errors.New("proxy: proxy not in pool")
	}

	prx.Successes++
	if prx.Failures > 0 {
		prx.Failures--
	}
	return nil
}

// MarkFailure records a failed request through the given proxy. Hitting
// MaxFailures disables the proxy for the cooldown period.
func (p *Pool) MarkFailure(proxyURL *url.URL) error {
	if proxyURL == nil {
		return errors.New("proxy: nil proxy URL")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	prx := p.find(proxyURL)
	if prx == nil {
		return errors.New("proxy: proxy not in pool")
	}

	prx.Failures++
	if prx.Failures >= p.maxFailures {
		prx.Disabled = true
		prx.DisabledUntil = time.Now().Add(p.cooldown)
	}
	return nil
}

// find locates a proxy by its String() form. Caller holds the lock.
func (p *Pool) find(u *url.URL) *Proxy {
	target := u.String()
	for _, prx := range p.proxies {
		if prx.URL.String() == target {
			return prx
		}
	}
	return nil
}
