// Package metrics collects and exposes Prometheus metrics.
//
// The rest of the codebase records through the Recorder interface, never the
// concrete Collector — services and middleware stay testable with a no-op or
// counting fake, and none of them import prometheus directly.
package metrics

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sakif/postforge/internal/service"
	"github.com/sakif/postforge/internal/webhook"
)

// Recorder is the metrics surface the application records against.
type Recorder interface {
	RecordLogin()
	RecordAuthRejection()
	RecordWebhookCall(action, outcome string)
	RecordHTTPStatus(statusCode int)
}

// Collector is the Prometheus-backed Recorder implementation.
type Collector struct {
	logins         prometheus.Counter
	authRejections prometheus.Counter
	webhookCalls   *prometheus.CounterVec
	httpStatus     *prometheus.CounterVec
}

// NewCollector creates a Collector and registers its metrics on the given
// registry. Registering twice on the same registry panics, so the server
// constructs exactly one.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		logins: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "postforge_logins_total",
			Help: "Successful LinkedIn logins.",
		}),
		authRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "postforge_auth_rejections_total",
			Help: "Logins rejected by the allow-list.",
		}),
		webhookCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "postforge_webhook_calls_total",
			Help: "Automation webhook calls by action and outcome.",
		}, []string{"action", "outcome"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "postforge_http_responses_total",
			Help: "HTTP responses by status code.",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.logins,
		c.authRejections,
		c.webhookCalls,
		c.httpStatus,
	)

	return c
}

// RecordLogin counts a successful login.
func (c *Collector) RecordLogin() {
	c.logins.Inc()
}

// RecordAuthRejection counts a login denied by the allow-list.
func (c *Collector) RecordAuthRejection() {
	c.authRejections.Inc()
}

// RecordWebhookCall counts one webhook call; outcome is "success" or "failure".
func (c *Collector) RecordWebhookCall(action, outcome string) {
	c.webhookCalls.WithLabelValues(action, outcome).Inc()
}

// RecordHTTPStatus counts one HTTP response by status code.
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler returns the HTTP handler for Prometheus scrapes.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// HTTPMiddleware records the status code of every response.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

// HTTPMiddleware wraps a handler chain and records every response's status
// code. Sits outermost so it sees the final status even when an inner
// middleware short-circuits.
func HTTPMiddleware(rec Recorder) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			wrapped := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(wrapped, r)
			rec.RecordHTTPStatus(wrapped.status)
		})
	}
}

// InstrumentedForwarder decorates a service.Forwarder with per-call counters.
// The webhook client itself stays metrics-free; the decorator is installed
// only in server wiring.
type InstrumentedForwarder struct {
	next service.Forwarder
	rec  Recorder
}

// InstrumentForwarder wraps the given Forwarder.
func InstrumentForwarder(next service.Forwarder, rec Recorder) *InstrumentedForwarder {
	return &InstrumentedForwarder{next: next, rec: rec}
}

func (f *InstrumentedForwarder) Generate(ctx context.Context, req webhook.GenerateRequest) (string, error) {
	text, err := f.next.Generate(ctx, req)
	f.rec.RecordWebhookCall("generate", outcome(err))
	return text, err
}

func (f *InstrumentedForwarder) Publish(ctx context.Context, req webhook.PublishRequest) (json.RawMessage, error) {
	raw, err := f.next.Publish(ctx, req)
	f.rec.RecordWebhookCall("publish", outcome(err))
	return raw, err
}

func outcome(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}
