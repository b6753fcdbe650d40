// File: adapters/handler_adapter.go
// Package adapters
// Author: momentics <momentics@gmail.com>
//
// Fibonacci request handler and the middleware wrapped around it.

package adapters

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/momentics/hioload-fib/api"
	"github.com/momentics/hioload-fib/control"
	"github.com/momentics/hioload-fib/core/fib"
	"github.com/momentics/hioload-fib/protocol"
)

// FibonacciHandler parses a request chunk as an index, computes its
// Fibonacci value and encodes the response line.
// maxIndex caps accepted indices; values above fib.MaxIndex are clamped.
func FibonacciHandler(maxIndex uint64) api.Handler {
	if maxIndex == 0 || maxIndex > fib.MaxIndex {
		maxIndex = fib.MaxIndex
	}
	return api.HandlerFunc(func(_ context.Context, req []byte) ([]byte, error) {
		n, err := protocol.ParseIndex(req, maxIndex)
		if err != nil {
			return nil, err
		}
		return protocol.AppendResponse(make([]byte, 0, 24), fib.Fibonacci(n)), nil
	})
}

// NewHandlerChain applies middleware in order: first in slice is outermost.
func NewHandlerChain(base api.Handler, mw ...api.Middleware) api.Handler {
	h := base
	for i := len(mw) - 1; i >= 0; i-- {
		h = mw[i](h)
	}
	return h
}

// LoggingMiddleware logs each request at debug level and failures at warn.
func LoggingMiddleware(log *zap.Logger) api.Middleware {
	return func(next api.Handler) api.Handler {
		return api.HandlerFunc(func(ctx context.Context, req []byte) ([]byte, error) {
			start := time.Now()
			resp, err := next.Handle(ctx, req)
			fields := []zap.Field{
				zap.String("peer", PeerFromContext(ctx)),
				zap.ByteString("request", req),
				zap.Duration("elapsed", time.Since(start)),
			}
			if err != nil {
				log.Warn("request failed", append(fields, zap.Error(err))...)
				return resp, err
			}
			log.Debug("request served", append(fields, zap.ByteString("response", resp))...)
			return resp, nil
		})
	}
}

// RecoveryMiddleware turns a handler panic into a *PanicError.
func RecoveryMiddleware(next api.Handler) api.Handler {
	return api.HandlerFunc(func(ctx context.Context, req []byte) (resp []byte, err error) {
		defer func() {
			if r := recover(); r != nil {
				resp, err = nil, newPanicError(r)
			}
		}()
		return next.Handle(ctx, req)
	})
}

// MetricsMiddleware counts requests by outcome and times successful ones.
func MetricsMiddleware(m *control.Metrics) api.Middleware {
	return func(next api.Handler) api.Handler {
		return api.HandlerFunc(func(ctx context.Context, req []byte) ([]byte, error) {
			start := time.Now()
			resp, err := next.Handle(ctx, req)
			m.ObserveRequest(Outcome(err), time.Since(start))
			return resp, err
		})
	}
}

// JournalMiddleware records every request in j.
func JournalMiddleware(j *control.Journal) api.Middleware {
	return func(next api.Handler) api.Handler {
		return api.HandlerFunc(func(ctx context.Context, req []byte) ([]byte, error) {
			start := time.Now()
			resp, err := next.Handle(ctx, req)
			rec := control.RequestRecord{
				Peer:     PeerFromContext(ctx),
				Request:  string(req),
				Response: string(resp),
				Duration: time.Since(start),
				At:       start,
			}
			if err != nil {
				rec.Error = err.Error()
			}
			j.Record(rec)
			return resp, err
		})
	}
}

// Outcome maps a handler error to its metrics label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return control.OutcomeOK
	case errors.Is(err, api.ErrMalformedRequest):
		return control.OutcomeMalformed
	case errors.Is(err, api.ErrIndexOutOfRange):
		return control.OutcomeOutOfRange
	default:
		return control.OutcomeError
	}
}
