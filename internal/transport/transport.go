// Package transport
// Author: momentics <momentics@gmail.com>
//
// Platform-independent facade for opening the server's listening socket.

package transport

import (
	"context"
	"fmt"
	"net"
)

// DefaultBacklog is the pending-connection queue length used when none is set.
const DefaultBacklog = 5

// ListenConfig describes the listening socket.
type ListenConfig struct {
	Addr      string // TCP address to bind, e.g. ":25000"
	Backlog   int    // listen(2) backlog; <= 0 means DefaultBacklog
	ReuseAddr bool   // set SO_REUSEADDR before bind
}

// Listen binds and listens according to cfg.
// Errors carry the address and are meant to be fatal to the caller.
func Listen(ctx context.Context, cfg ListenConfig) (net.Listener, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if cfg.Backlog <= 0 {
		cfg.Backlog = DefaultBacklog
	}
	ln, err := listen(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", cfg.Addr, err)
	}
	return ln, nil
}
