// File: adapters/contextual_adapter.go
// Package adapters provides glue between api and internal implementations.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package adapters

import "context"

type peerKey struct{}

// WithPeer returns a context carrying the remote address of the connection
// a request arrived on.
func WithPeer(ctx context.Context, peer string) context.Context {
	return context.WithValue(ctx, peerKey{}, peer)
}

// PeerFromContext returns the peer stored by WithPeer, or "".
func PeerFromContext(ctx context.Context) string {
	p, _ := ctx.Value(peerKey{}).(string)
	return p
}
