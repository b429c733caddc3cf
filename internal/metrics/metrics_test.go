package metrics

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestMetricsServer(t *testing.T) {
	srv := Start(8891)
	// Give it a tiny bit of time to start up
	time.Sleep(100 * time.Millisecond)

	defer srv.Stop(context.Background())

	RecordAPIRequest("search", "200", 300*time.Millisecond)
	RecordScrape("found")

	resp, err := http.Get("http://localhost:8891/metrics")
	if err != nil {
		t.Fatalf("failed to fetch metrics: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}

	output := string(body)

	if !strings.Contains(output, "givescan_api_requests_total") {
		t.Errorf("expected givescan_api_requests_total metric")
	}

	if !strings.Contains(output, "givescan_api_request_duration_seconds_bucket") {
		t.Errorf("expected givescan_api_request_duration_seconds metric")
	}

	if !strings.Contains(output, `givescan_email_scrapes_total{outcome="found"}`) {
		t.Errorf("expected givescan_email_scrapes_total metric for outcome found")
	}
}
