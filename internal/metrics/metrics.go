package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "givescan_api_requests_total",
			Help: "Total number of places API requests executed",
		},
		[]string{"class", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "givescan_api_request_duration_seconds",
			Help:    "Duration of places API requests in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"class"},
	)

	ScrapesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "givescan_email_scrapes_total",
			Help: "Total number of contact-email scrape attempts by outcome",
		},
		[]string{"outcome"},
	)

	PlacesAggregated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "givescan_places_aggregated_total",
			Help: "Total number of places surviving aggregation",
		},
	)
)

// RecordAPIRequest updates request metrics for one places API call.
func RecordAPIRequest(class string, status string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(class, status).Inc()
	APIRequestDuration.WithLabelValues(class).Observe(duration.Seconds())
}

// RecordScrape counts one email-scrape attempt. Outcome is one of
// "found", "none", "bad_status", "blocked", "error".
func RecordScrape(outcome string) {
	ScrapesTotal.WithLabelValues(outcome).Inc()
}

// Server encapsulates an HTTP server for Prometheus metrics.
type Server struct {
	srv *http.Server
}

// Start begins listening on the specified port and exposes /metrics.
func Start(port int) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Printf("metrics server failed: %v\n", err)
		}
	}()

	return &Server{srv: srv}
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
