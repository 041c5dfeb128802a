// Package corehttp is the root package of the general-purpose HTTP server
// core: it ties the protocol layers (internal/h2conn, internal/h1,
// internal/router), the cross-cutting services (internal/cache,
// internal/compress, internal/ratelimit, internal/scheduler,
// internal/sse, internal/ws) and the ambient stack (internal/logging,
// internal/metrics, internal/config) into one Server.
//
// Grounded on dgrr-http2's server.go top-level Server/ListenAndServe
// shape, generalized from "always speak HTTP/2" to the three-protocol
// dispatch spec §4.6 requires.
package corehttp

import (
	"context"
	"net"

	"go.uber.org/zap"

	"github.com/domsolutions/corehttp/internal/cache"
	"github.com/domsolutions/corehttp/internal/config"
	"github.com/domsolutions/corehttp/internal/metrics"
	"github.com/domsolutions/corehttp/internal/ratelimit"
	"github.com/domsolutions/corehttp/internal/scheduler"
	"github.com/domsolutions/corehttp/internal/sse"
)

// Handler processes one request, re-expressing the source's dynamic
// dispatch as a blocking function of (Request, ResponseWriter) per spec
// §9.
type Handler func(ctx context.Context, req *Request, w ResponseWriter)

// Request is the protocol-agnostic view handlers see, whether the
// underlying transport was HTTP/1.x or HTTP/2.
type Request struct {
	Method  string
	Path    string
	Query   string
	Host    string
	Headers map[string][]string
	Body    []byte

	RemoteAddr string
	TLS        bool
}

// ResponseWriter lets a Handler set status/headers and stream a body.
type ResponseWriter interface {
	SetStatus(code int)
	SetHeader(key, value string)
	Write(p []byte) (int, error)
}

// WSHandler is the capability set for a WebSocket endpoint, re-expressing
// the source's listener interface as a tagged record of callables per
// spec §9.
type WSHandler struct {
	OnOpen   func(ctx context.Context, conn WSConn)
	OnText   func(ctx context.Context, conn WSConn, msg string)
	OnBinary func(ctx context.Context, conn WSConn, msg []byte)
	OnClose  func(ctx context.Context, conn WSConn, code int, reason string)
	OnError  func(ctx context.Context, conn WSConn, err error)
}

// WSConn is the handle a WSHandler uses to write back to its peer.
type WSConn interface {
	WriteText(s string) error
	WriteBinary(b []byte) error
	Close(code int, reason string) error
}

// Server bundles every cross-cutting subsystem behind the spec's
// component boundaries; protocol layers are constructed per connection
// by Accept/handleConn.
type Server struct {
	Config config.Config
	Logger *zap.Logger

	ETagCache        *cache.ETagCache
	CompressionCache *cache.CompressionCache
	RateLimiter      *ratelimit.Limiter
	Scheduler        *scheduler.Scheduler
	SSE              *sse.Broker
	Metrics          *metrics.Collector

	Handler   Handler
	WSRoutes  map[string]WSHandler

	AuthConfig *AuthConfig

	listener net.Listener
}

// New constructs a Server with every subsystem wired from cfg, matching
// the teacher's style of building the whole dependency graph in one
// constructor rather than lazily.
func New(cfg config.Config, logger *zap.Logger, handler Handler) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		Config:           cfg,
		Logger:           logger,
		ETagCache:        cache.NewETagCache(cfg.ETagCacheEntries),
		CompressionCache: cache.NewCompressionCache(cfg.CompressionCacheEntries, cfg.CompressionMaxCacheFileBytes),
		RateLimiter:      ratelimit.New(cfg.RateLimitBurst, cfg.RateLimitPerSecond, cfg.RateLimitMaxBuckets),
		SSE:              sse.New(cfg.SSEMaxConnectionsPerTopic),
		Metrics:          metrics.New(),
		Handler:          handler,
		WSRoutes:         make(map[string]WSHandler),
	}

	workers := cfg.ThreadPoolSize
	if workers <= 0 {
		workers = 32
	}
	s.Scheduler = scheduler.New(cfg.RequestQueueLimit, workers, cfg.RequestTimeout, func(task *scheduler.Task) {
		s.Metrics.QueueRejectedTotal.Inc()
	})

	return s
}

// Shutdown closes the listener, if any, and stops the scheduler, waiting
// for in-flight tasks; tasks still queued are not run.
func (s *Server) Shutdown() {
	if s.listener != nil {
		s.listener.Close()
	}
	s.Scheduler.Shutdown()
}
