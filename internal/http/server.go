// Package http serves the local agent API: a companion process holds the
// session key and decrypts raw payloads on behalf of local clients.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"cifra/internal/calendar"
	"cifra/internal/log"
	"cifra/internal/metrics"
	"cifra/internal/middleware/ratelimit"
	"cifra/internal/middleware/security"
	"cifra/internal/middleware/trace"
	"cifra/internal/session"
)

const (
	defaultMaxBodyBytes = 8 << 20
	maxKeyBodyBytes     = 1 << 10
)

// Options configures a Server.
type Options struct {
	Addr   string
	Engine *session.Engine
	// MetricsHandler is mounted on /metrics when set.
	MetricsHandler http.Handler
	Metrics        metrics.Recorder
	// RateLimit is the per-client budget of /v1 requests per minute.
	RateLimit    int
	MaxBodyBytes int64
	// Calendar lays out weekly views and defaults the period; UTC when nil.
	Calendar *calendar.Context
	Logger   *log.Logger
}

type Server struct {
	http.Server
	engine       *session.Engine
	limiter      *ratelimit.Limiter
	tracer       *trace.Middleware
	clientIP     *security.ClientIP
	cal          *calendar.Context
	logger       *log.Logger
	maxBodyBytes int64
	started      time.Time
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// server.
func NewServer(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = log.Discard()
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBodyBytes
	}
	if opts.Calendar == nil {
		opts.Calendar = calendar.New()
	}
	logger := opts.Logger.WithComponent(log.ComponentHTTP)
	recorder := metrics.OrNoop(opts.Metrics)

	s := &Server{
		engine:       opts.Engine,
		clientIP:     security.NewClientIP(),
		cal:          opts.Calendar,
		logger:       logger,
		maxBodyBytes: opts.MaxBodyBytes,
		started:      time.Now(),
	}
	s.limiter = ratelimit.NewLimiter(ratelimit.Config{
		RequestsPerMinute: opts.RateLimit,
		Metrics:           recorder,
	})
	s.tracer = trace.NewMiddleware(s.clientIP.Extract, logger, recorder)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	if opts.MetricsHandler != nil {
		mux.Handle("GET /metrics", opts.MetricsHandler)
	}

	mux.Handle("PUT /v1/session/key", s.api(s.handleSetKey))
	mux.Handle("DELETE /v1/session/key", s.api(s.handleClearKey))
	mux.Handle("GET /v1/session/state", s.api(s.handleState))
	mux.Handle("POST /v1/snapshots/decrypt", s.api(s.handleDecryptSnapshot))
	mux.Handle("POST /v1/transactions/decrypt", s.api(s.handleDecryptTransactions))
	mux.Handle("POST /v1/accounting/decrypt", s.api(s.handleDecryptAccounting))

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	var handler http.Handler = mux
	handler = log.RequestIDMiddleware(trace.RequestIDFromRequest)(handler)
	handler = log.Middleware(logger)(handler)
	handler = headers.Middleware(handler)
	handler = s.tracer.Middleware(handler)

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// api applies the per-client rate limit to a /v1 handler.
func (s *Server) api(h http.HandlerFunc) http.Handler {
	onLimit := func(w http.ResponseWriter, r *http.Request) {
		NewJSONResponse().Status(http.StatusTooManyRequests).Body(statusBody{Status: "rate_limited"}).Write(w)
	}
	return s.limiter.Middleware(s.clientIP.Extract, onLimit)(h)
}

// Shutdown stops the rate limiter and gracefully shuts the server down.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}
