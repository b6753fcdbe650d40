// File: adapters/panic.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package adapters

import (
	"fmt"
	"runtime"
)

// PanicError wraps a value recovered from a handler panic together with
// the goroutine stack captured at that point.
type PanicError struct {
	Value any
	Stack string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("handler panic: %v", e.Value)
}

func newPanicError(v any) *PanicError {
	buf := make([]byte, 8192)
	n := runtime.Stack(buf, false)
	return &PanicError{Value: v, Stack: string(buf[:n])}
}
