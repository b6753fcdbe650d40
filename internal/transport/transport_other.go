//go:build !linux
// +build !linux

// internal/transport/transport_other.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package transport

import (
	"context"
	"net"
)

// listen uses the runtime's listener. The Go runtime already sets
// SO_REUSEADDR on Unix listeners; the backlog is the OS default.
func listen(ctx context.Context, cfg ListenConfig) (net.Listener, error) {
	var lc net.ListenConfig
	return lc.Listen(ctx, "tcp", cfg.Addr)
}
