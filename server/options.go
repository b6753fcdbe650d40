// File: server/options.go
// Package server defines functional options for the Server facade.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/momentics/hioload-fib/api"
)

// ServerOption customizes server initialization.
type ServerOption func(*Server)

// WithLogger sets the server logger. The default discards everything;
// a nil logger keeps the default.
func WithLogger(log *zap.Logger) ServerOption {
	return func(s *Server) {
		if log != nil {
			s.log = log
		}
	}
}

// WithMiddleware attaches middleware inside the built-in chain, in FIFO order.
func WithMiddleware(mw ...api.Middleware) ServerOption {
	return func(s *Server) {
		s.middleware = append(s.middleware, mw...)
	}
}

// WithRegisterer sets the registry the server's collectors are registered
// with and gathered from.
func WithRegisterer(reg *prometheus.Registry) ServerOption {
	return func(s *Server) {
		s.registry = reg
	}
}

// WithHandler replaces the Fibonacci handler.
func WithHandler(h api.Handler) ServerOption {
	return func(s *Server) {
		s.base = h
	}
}
