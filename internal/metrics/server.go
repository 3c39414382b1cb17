package metrics

import (
	"encoding/json"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/netplane-oss/gwlbtun/internal/flowtrack"
)

// NewHTTPServer builds the operational HTTP server: Prometheus metrics
// at /metrics, a JSON flow-table dump at /flows, and a liveness probe at
// /healthz. This is separate from the TCP health responder on
// HEALTH_CHECK_PORT, which speaks the balancer's fixed-body protocol
// rather than JSON.
func NewHTTPServer(addr string, reg prometheus.Gatherer, tracker *flowtrack.Tracker) *http.Server {
	mux := http.NewServeMux()

	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})

	mux.HandleFunc("/flows", func(w http.ResponseWriter, r *http.Request) {
		var snapshot []flowtrack.FlowSnapshot
		if tracker != nil {
			snapshot = tracker.Snapshot()
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(snapshot)
	})

	return &http.Server{
		Addr:    addr,
		Handler: mux,
	}
}
