// File: core/fib/fibonacci.go
// Package fib provides the server's compute workload.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package fib

// MaxIndex is the largest n whose Fibonacci value fits in a uint64.
const MaxIndex = 93

// Fibonacci returns F(n) by plain double recursion.
// The exponential cost is the point: it is the load the server generates.
// Callers must keep n <= MaxIndex or the result wraps.
func Fibonacci(n uint64) uint64 {
	if n <= 1 {
		return n
	}
	return Fibonacci(n-1) + Fibonacci(n-2)
}
