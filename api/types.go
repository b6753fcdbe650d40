// File: api/types.go
// Author: momentics <momentics@gmail.com>
//
// Shared API-level type declarations, DTOs, and constants.

package api

import "time"

// ConnInfo describes the connection currently being serviced.
type ConnInfo struct {
	Peer       string
	AcceptedAt time.Time
	Requests   int64
}

// ServerStats is a point-in-time view of the accept loop.
type ServerStats struct {
	Addr          string
	StartedAt     time.Time
	Accepted      int64
	Requests      int64
	Failed        int64
	InboundBytes  uint64
	OutboundBytes uint64
	Current       *ConnInfo // nil between connections
}
