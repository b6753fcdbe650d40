// File: api/control.go
// Package api defines Control interface.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

// Control exposes runtime statistics and debug probes.
type Control interface {
	Stats() map[string]any
	RegisterDebugProbe(name string, fn func() any)
}
