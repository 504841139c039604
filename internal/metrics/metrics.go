// Package metrics records decryption and transform outcomes.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder receives outcome events. Labels are taxonomy kinds, never
// values.
type Recorder interface {
	// DecryptOutcome counts one envelope decryption by error kind.
	DecryptOutcome(kind string)
	// TransformDone records one finished transform.
	TransformDone(transform, result string, elapsed time.Duration)
	// KeyImported counts a key import, cached when the handle was reused.
	KeyImported(cached bool)
	// HTTPRequest records one served agent API request.
	HTTPRequest(route string, status int, elapsed time.Duration)
	// RateLimited counts a request rejected by the rate limiter.
	RateLimited()
	// PayloadHandled counts one inbox payload by outcome.
	PayloadHandled(kind, outcome string)
}

// Noop discards every event.
type Noop struct{}

func (Noop) DecryptOutcome(string)                       {}
func (Noop) TransformDone(string, string, time.Duration) {}
func (Noop) KeyImported(bool)                            {}
func (Noop) HTTPRequest(string, int, time.Duration)      {}
func (Noop) RateLimited()                                {}
func (Noop) PayloadHandled(string, string)               {}

// Prometheus implements Recorder on its own registry.
type Prometheus struct {
	registry   *prometheus.Registry
	decrypts   *prometheus.CounterVec
	transforms *prometheus.HistogramVec
	imports    *prometheus.CounterVec
	requests   *prometheus.HistogramVec
	limited    prometheus.Counter
	payloads   *prometheus.CounterVec
}

// NewPrometheus creates the collectors and registers them on a fresh
// registry.
func NewPrometheus() *Prometheus {
	p := &Prometheus{
		registry: prometheus.NewRegistry(),
		decrypts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cifra_envelope_decrypts_total",
				Help: "Envelope decryptions by outcome kind",
			},
			[]string{"kind"},
		),
		transforms: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cifra_transform_duration_seconds",
				Help:    "Transform latency by transform and result",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"transform", "result"},
		),
		imports: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cifra_key_imports_total",
				Help: "Key imports, labelled by whether the handle came from the cache",
			},
			[]string{"cached"},
		),
	}
	p.requests = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cifra_http_request_duration_seconds",
			Help:    "Agent API latency by route and status code",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "code"},
	)
	p.limited = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cifra_http_rate_limited_total",
		Help: "Requests rejected by the rate limiter",
	})
	p.payloads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cifra_inbox_payloads_total",
			Help: "Inbox payloads by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)
	p.registry.MustRegister(p.decrypts, p.transforms, p.imports, p.requests, p.limited, p.payloads)
	return p
}

func (p *Prometheus) DecryptOutcome(kind string) {
	p.decrypts.WithLabelValues(kind).Inc()
}

func (p *Prometheus) TransformDone(transform, result string, elapsed time.Duration) {
	p.transforms.WithLabelValues(transform, result).Observe(elapsed.Seconds())
}

func (p *Prometheus) KeyImported(cached bool) {
	label := "false"
	if cached {
		label = "true"
	}
	p.imports.WithLabelValues(label).Inc()
}

func (p *Prometheus) HTTPRequest(route string, status int, elapsed time.Duration) {
	p.requests.WithLabelValues(route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}

func (p *Prometheus) RateLimited() { p.limited.Inc() }

func (p *Prometheus) PayloadHandled(kind, outcome string) {
	p.payloads.WithLabelValues(kind, outcome).Inc()
}

// Registry exposes the underlying registry.
func (p *Prometheus) Registry() *prometheus.Registry { return p.registry }

// Handler serves the registry in the Prometheus exposition format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// OrNoop returns r, or Noop when r is nil.
func OrNoop(r Recorder) Recorder {
	if r == nil {
		return Noop{}
	}
	return r
}
