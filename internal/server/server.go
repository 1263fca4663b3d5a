// Package server exposes the hr document over a JSON HTTP API.
//
// Sessions are HS256 JWTs whose subject is the account email. They are read
// from the hrdesk_session cookie or an "Authorization: Bearer" header.
package server

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/maruel/hrdesk/internal/auth"
	"github.com/maruel/hrdesk/internal/hr"
	"github.com/maruel/hrdesk/internal/metrics"
)

// maxRequestBodyBytes bounds every request body.
const maxRequestBodyBytes = 1 << 20

// Options configures a Server.
type Options struct {
	HR   *hr.Service
	Auth *auth.Service

	// Metrics counts served requests when set.
	Metrics *metrics.Collector
	// Gatherer is served at /metrics when set.
	Gatherer prometheus.Gatherer

	JWTSecret  []byte
	SessionTTL time.Duration
	// LoginRate is the sustained login attempts per minute per client IP. 0
	// disables the limit.
	LoginRate  float64
	LoginBurst int

	Version string
	// Now defaults to time.Now.
	Now func() time.Time
}

// Server serves the API.
type Server struct {
	hr       *hr.Service
	auth     *auth.Service
	metrics  *metrics.Collector
	gatherer prometheus.Gatherer
	sessions *sessions
	logins   *limiter
	version  string
}

// New returns a Server.
func New(opts *Options) *Server {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	ttl := opts.SessionTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Server{
		hr:       opts.HR,
		auth:     opts.Auth,
		metrics:  opts.Metrics,
		gatherer: opts.Gatherer,
		sessions: &sessions{secret: opts.JWTSecret, ttl: ttl, now: now},
		logins:   newLimiter(opts.LoginRate, opts.LoginBurst, now),
		version:  opts.Version,
	}
}

// Handler returns the API's root handler.
func (s *Server) Handler() http.Handler {
	return s.instrument(s.routes())
}
