// Package protocol
// Author: momentics <momentics@gmail.com>
//
// Request/response encoding for the Fibonacci line protocol.
//
// A request is whatever a single read of at most MaxRequestSize bytes
// returned, holding one ASCII decimal index. A response is the decimal
// value followed by a single LF.

package protocol

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/momentics/hioload-fib/api"
)

// MaxRequestSize bounds one read from the connection.
const MaxRequestSize = 100

// ParseIndex decodes a request chunk into an index.
// Surrounding ASCII whitespace is ignored so line-oriented clients work.
// max == 0 disables the range check.
func ParseIndex(chunk []byte, max uint64) (uint64, error) {
	s := bytes.TrimSpace(chunk)
	if len(s) == 0 {
		return 0, api.NewError(api.ErrCodeMalformedRequest, "empty request")
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, api.NewError(api.ErrCodeMalformedRequest, "request is not a decimal index").
				WithContext("request", truncate(s))
		}
	}
	n, err := strconv.ParseUint(string(s), 10, 64)
	if err != nil {
		return 0, api.NewError(api.ErrCodeOutOfRange, fmt.Sprintf("index does not fit in 64 bits: %v", err)).
			WithContext("request", truncate(s))
	}
	if max > 0 && n > max {
		return 0, api.NewError(api.ErrCodeOutOfRange, "index above limit").
			WithContext("index", n).
			WithContext("max", max)
	}
	return n, nil
}

// AppendResponse appends the decimal form of v and a newline to dst.
func AppendResponse(dst []byte, v uint64) []byte {
	dst = strconv.AppendUint(dst, v, 10)
	return append(dst, '\n')
}

func truncate(b []byte) string {
	const limit = 32
	if len(b) > limit {
		return string(b[:limit]) + "..."
	}
	return string(b)
}
