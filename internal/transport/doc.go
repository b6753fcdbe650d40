// File: internal/transport/doc.go
// Package transport
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Listening-socket setup for hioload-fib. The Linux build creates the
// socket by hand so SO_REUSEADDR and the listen backlog are applied
// exactly as configured; other platforms go through net.ListenConfig.

package transport
