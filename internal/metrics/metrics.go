package metrics

import (
	"encoding/json"
	"net/http"

	"github.com/nexusmsg/campaign-engine/internal/health"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Dispatch metrics

	DispatchDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "campaign",
		Name:      "dispatch_duration_seconds",
		Help:      "Duration of one campaign dispatch run.",
		Buckets:   []float64{.5, 1, 5, 15, 60, 300, 900, 3600},
	}, []string{"outcome"})

	MessagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "campaign",
		Name:      "messages_total",
		Help:      "Per-target dispatch attempts, by result.",
	}, []string{"result"})

	RunsInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "campaign",
		Name:      "runs_in_flight",
		Help:      "Number of campaigns currently dispatching.",
	})

	TimersArmed = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "campaign",
		Name:      "timers_armed",
		Help:      "Live timer slots held by the scheduler.",
	})

	// Gateway metrics

	GatewayRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "campaign",
		Name:      "gateway_request_duration_seconds",
		Help:      "Latency of gateway RPCs.",
		Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
	}, []string{"op", "result"})

	GatewayRecoveriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "campaign",
		Name:      "gateway_recoveries_total",
		Help:      "Supervisor recovery attempts, by result.",
	}, []string{"result"})

	// HTTP metrics

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "campaign",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "campaign",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests.",
	}, []string{"method", "path", "status"})
)

func Register() {
	prometheus.MustRegister(
		DispatchDuration,
		MessagesTotal,
		RunsInFlight,
		TimersArmed,
		GatewayRequestDuration,
		GatewayRecoveriesTotal,
		HTTPRequestDuration,
		HTTPRequestsTotal,
	)
}

// NewServer serves /metrics plus the liveness/readiness probes on the
// internal port.
func NewServer(addr string, checker *health.Checker) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeHealth(w, checker.Liveness(r.Context()))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		writeHealth(w, checker.Readiness(r.Context()))
	})
	return &http.Server{Addr: addr, Handler: mux}
}

func writeHealth(w http.ResponseWriter, result health.HealthResult) {
	code := http.StatusOK
	if result.Status != "up" {
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(result)
}
