package metrics_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/netplane-oss/gwlbtun/internal/flowtrack"
	"github.com/netplane-oss/gwlbtun/internal/metrics"
)

func TestHTTPServerHealthz(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	srv := metrics.NewHTTPServer(":0", reg, nil)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	srv.Handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
}

func TestHTTPServerFlowsEmpty(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	tracker := flowtrack.New(nil, flowtrack.Config{Timeout: time.Hour})
	t.Cleanup(tracker.Close)

	srv := metrics.NewHTTPServer(":0", reg, tracker)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/flows", nil)
	srv.Handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}

	var flows []flowtrack.FlowSnapshot
	if err := json.Unmarshal(rr.Body.Bytes(), &flows); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(flows) != 0 {
		t.Fatalf("flows = %v, want empty", flows)
	}
}

func TestHTTPServerMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := metrics.NewCollector(reg)
	c.IncPacketsReceived()

	srv := metrics.NewHTTPServer(":0", reg, nil)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	srv.Handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	if len(rr.Body.Bytes()) == 0 {
		t.Fatal("empty /metrics response")
	}
}
