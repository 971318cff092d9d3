// Package metrics exposes prometheus instrumentation for the request
// cycle and the delegated speech capability.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"reviewgate/pkg/logx"
)

//nolint:gochecknoglobals // prometheus collectors are process-wide by design
var (
	// RequestsTotal counts popup activations per tool.
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reviewgate_requests_total",
		Help: "Popup trigger emissions, by tool.",
	}, []string{"tool"})

	// ResponsesTotal counts fulfilled user responses per tool.
	ResponsesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reviewgate_responses_total",
		Help: "User responses delivered to callers, by tool.",
	}, []string{"tool"})

	// TimeoutsTotal counts waits that elapsed, by stage (ack|response).
	TimeoutsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reviewgate_timeouts_total",
		Help: "Ack and response waits that timed out, by stage.",
	}, []string{"stage"})

	// SpeechRequestsTotal counts delegated transcription requests by
	// outcome (ok|error|invalid).
	SpeechRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reviewgate_speech_requests_total",
		Help: "Delegated speech-to-text requests, by outcome.",
	}, []string{"status"})
)

// Serve exposes /metrics on addr in a background goroutine. A listen
// failure is logged, never fatal: metrics are an observer, not a
// dependency of the protocol.
func Serve(addr string, logger *logx.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("📊 Metrics endpoint listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Warn("⚠️ Metrics endpoint failed: %v", err)
		}
	}()
}
