// File: cmd/fibclient/main.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Sends each index argument to a Fibonacci server over one connection.

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/momentics/hioload-fib/client"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:25000", "server address")
	timeout := flag.Duration("timeout", 0, "per-request timeout (0 = none)")
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Fprintf(os.Stderr, "Usage: %s [-addr host:port] <index>...\n", os.Args[0])
		os.Exit(2)
	}

	ctx := context.Background()
	c, err := client.Dial(ctx, *addr, client.WithDialTimeout(5*time.Second), client.WithIOTimeout(*timeout))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer c.Close()

	for _, arg := range flag.Args() {
		n, err := strconv.ParseUint(arg, 10, 64)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%q is not an index\n", arg)
			os.Exit(2)
		}
		v, err := c.Fibonacci(ctx, n)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Printf("%d -> %d\n", n, v)
	}
}
