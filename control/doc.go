// Package control
// Author: momentics <momentics@gmail.com>
//
// Runtime metrics, request journal, and debug introspection layer for the
// Fibonacci server.
//
// Provides concurrent-safe state handling primitives including:
//   - Prometheus collectors for connections, requests and compute time
//   - A bounded journal of the most recent requests
//   - Debug probe registration and state export
//   - An HTTP exporter for all of the above
package control
