// File: client/client.go
// Package client provides a blocking client for the Fibonacci line protocol.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// One request is in flight at a time: the client waits for the response
// line before the next request is written, so two requests never reach
// the server inside the same read chunk.

package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/momentics/hioload-fib/api"
	"github.com/momentics/hioload-fib/protocol"
)

// ClientConfig holds dial and I/O parameters.
type ClientConfig struct {
	DialTimeout time.Duration // bound on connect when ctx has no deadline
	IOTimeout   time.Duration // per request when ctx has no deadline (0 = none)
}

// ClientOption customizes a Client.
type ClientOption func(*ClientConfig)

// WithDialTimeout bounds the connect.
func WithDialTimeout(d time.Duration) ClientOption {
	return func(c *ClientConfig) { c.DialTimeout = d }
}

// WithIOTimeout bounds each request round trip.
func WithIOTimeout(d time.Duration) ClientOption {
	return func(c *ClientConfig) { c.IOTimeout = d }
}

// Client is a connection to a Fibonacci server.
type Client struct {
	cfg  ClientConfig
	mu   sync.Mutex
	conn net.Conn
	br   *bufio.Reader
}

// Dial connects to addr.
func Dial(ctx context.Context, addr string, opts ...ClientOption) (*Client, error) {
	cfg := ClientConfig{DialTimeout: 5 * time.Second}
	for _, o := range opts {
		o(&cfg)
	}
	d := net.Dialer{Timeout: cfg.DialTimeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return &Client{cfg: cfg, conn: conn, br: bufio.NewReader(conn)}, nil
}

// Fibonacci asks the server for F(n).
func (c *Client) Fibonacci(ctx context.Context, n uint64) (uint64, error) {
	line, err := c.Do(ctx, []byte(strconv.FormatUint(n, 10)))
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(line, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bad response %q: %w", line, err)
	}
	return v, nil
}

// Do writes a raw request and returns the response line without its newline.
// If the server ends the connection instead of answering, the read error
// is returned and the Client should be closed.
func (c *Client) Do(ctx context.Context, req []byte) (string, error) {
	if len(req) == 0 || len(req) > protocol.MaxRequestSize {
		return "", api.NewError(api.ErrCodeInvalidArgument, "request size out of range").
			WithContext("size", len(req))
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	deadline, ok := ctx.Deadline()
	if !ok && c.cfg.IOTimeout > 0 {
		deadline = time.Now().Add(c.cfg.IOTimeout)
	}
	if err := c.conn.SetDeadline(deadline); err != nil {
		return "", err
	}
	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetDeadline(time.Unix(1, 0))
	})
	defer stop()

	if _, err := c.conn.Write(req); err != nil {
		return "", fmt.Errorf("write request: %w", ctxErr(ctx, err))
	}
	line, err := c.br.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("read response: %w", ctxErr(ctx, err))
	}
	return strings.TrimSuffix(line, "\n"), nil
}

// ctxErr reports a context expiry in place of the deadline error it caused.
func ctxErr(ctx context.Context, err error) error {
	if cerr := ctx.Err(); cerr != nil {
		return cerr
	}
	if errors.Is(err, os.ErrDeadlineExceeded) {
		if dl, ok := ctx.Deadline(); ok && !time.Now().Before(dl) {
			return context.DeadlineExceeded
		}
	}
	return err
}

// CloseWrite half-closes the connection; the server sees end of stream.
func (c *Client) CloseWrite() error {
	if tc, ok := c.conn.(*net.TCPConn); ok {
		return tc.CloseWrite()
	}
	return c.conn.Close()
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
