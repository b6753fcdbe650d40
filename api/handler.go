// File: api/handler.go
// Package api defines Handler interface.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

import "context"

// Handler turns one request chunk into one response.
// A non-nil error ends the connection the request arrived on.
type Handler interface {
	Handle(ctx context.Context, req []byte) ([]byte, error)
}

// HandlerFunc converts a function into a Handler.
type HandlerFunc func(ctx context.Context, req []byte) ([]byte, error)

// Handle calls the underlying function.
func (f HandlerFunc) Handle(ctx context.Context, req []byte) ([]byte, error) {
	return f(ctx, req)
}

// Middleware augments a Handler.
type Middleware func(Handler) Handler
