// File: server/server.go
// Package server provides the serial Fibonacci request server: one
// listening socket, one connection serviced at a time, each connection
// drained until the peer closes it before the next one is accepted.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/momentics/hioload-fib/adapters"
	"github.com/momentics/hioload-fib/api"
	"github.com/momentics/hioload-fib/control"
	"github.com/momentics/hioload-fib/internal/transport"
)

var _ api.GracefulShutdown = (*Server)(nil)

// Server is the facade encapsulating listener, handler chain, metrics and control.
type Server struct {
	cfg        *Config
	log        *zap.Logger
	registry   *prometheus.Registry
	metrics    *control.Metrics
	journal    *control.Journal
	control    api.Control
	base       api.Handler
	middleware []api.Middleware
	handler    api.Handler

	mu      sync.Mutex
	ln      net.Listener
	conn    net.Conn      // connection being serviced, nil between connections
	current *api.ConnInfo // guarded by mu
	closed  bool
	done    chan struct{}
	serving chan struct{} // closed when Serve returns; nil if Serve never ran

	startedAt time.Time // guarded by mu
	accepted  atomic.Int64
	requests  atomic.Int64
	failed    atomic.Int64
	inBytes   atomic.Uint64
	outBytes  atomic.Uint64
}

// NewServer constructs a Server with the given Config and options.
// A nil cfg means DefaultConfig.
func NewServer(cfg *Config, opts ...ServerOption) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Server{
		cfg:  cfg,
		log:  zap.NewNop(),
		done: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.registry == nil {
		s.registry = prometheus.NewRegistry()
	}
	if s.base == nil {
		s.base = adapters.FibonacciHandler(cfg.MaxIndex)
	}

	s.metrics = control.NewMetrics(s.registry)
	s.journal = control.NewJournal(cfg.JournalSize)
	s.control = adapters.NewControlAdapter(s.journal)
	s.control.RegisterDebugProbe("server.stats", func() any { return s.Stats() })
	s.control.RegisterDebugProbe("transport.features", func() any { return transport.DetectFeatures() })

	chain := []api.Middleware{
		adapters.LoggingMiddleware(s.log),
		adapters.MetricsMiddleware(s.metrics),
		adapters.JournalMiddleware(s.journal),
		adapters.RecoveryMiddleware,
	}
	s.handler = adapters.NewHandlerChain(s.base, append(chain, s.middleware...)...)
	return s, nil
}

// Addr returns the bound address, or "" before Listen.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// Control exposes debug probes and the request journal.
func (s *Server) Control() api.Control {
	return s.control
}

// Gatherer returns the registry holding the server's collectors.
func (s *Server) Gatherer() prometheus.Gatherer {
	return s.registry
}

// Stats returns a snapshot of the accept loop counters.
func (s *Server) Stats() api.ServerStats {
	st := api.ServerStats{
		Accepted:      s.accepted.Load(),
		Requests:      s.requests.Load(),
		Failed:        s.failed.Load(),
		InboundBytes:  s.inBytes.Load(),
		OutboundBytes: s.outBytes.Load(),
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	st.StartedAt = s.startedAt
	if s.ln != nil {
		st.Addr = s.ln.Addr().String()
	}
	if s.current != nil {
		c := *s.current
		st.Current = &c
	}
	return st
}
