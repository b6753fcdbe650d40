// File: server/run.go
// Package server implements the listener startup, the serial accept loop,
// the per-connection handler loop and shutdown.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/momentics/hioload-fib/adapters"
	"github.com/momentics/hioload-fib/api"
	"github.com/momentics/hioload-fib/control"
	"github.com/momentics/hioload-fib/internal/transport"
)

// Listen binds the listening socket with the configured backlog and
// SO_REUSEADDR setting. A bind failure is a startup error.
func (s *Server) Listen(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return api.ErrServerClosed
	}
	if s.ln != nil {
		return api.ErrAlreadyRunning
	}
	ln, err := transport.Listen(ctx, transport.ListenConfig{
		Addr:      s.cfg.ListenAddr,
		Backlog:   s.cfg.Backlog,
		ReuseAddr: s.cfg.ReuseAddr,
	})
	if err != nil {
		return err
	}
	s.ln = ln
	s.startedAt = time.Now()
	s.log.Info("server is running",
		zap.String("addr", ln.Addr().String()),
		zap.Int("backlog", s.cfg.Backlog),
		zap.Any("features", transport.DetectFeatures()))
	return nil
}

// ListenAndServe binds and then serves until Shutdown or ctx is done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if err := s.Listen(ctx); err != nil {
		return err
	}
	return s.Serve(ctx)
}

// Serve runs the accept loop: accept one connection, service it to
// completion, then accept the next. Connections never overlap.
// It returns api.ErrServerClosed after Shutdown or when ctx is done.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	switch {
	case s.closed:
		s.mu.Unlock()
		return api.ErrServerClosed
	case s.ln == nil:
		s.mu.Unlock()
		return api.NewError(api.ErrCodeInvalidArgument, "serve called before listen")
	case s.serving != nil:
		s.mu.Unlock()
		return api.ErrAlreadyRunning
	}
	ln := s.ln
	serving := make(chan struct{})
	s.serving = serving
	s.mu.Unlock()
	defer close(serving)

	stop := context.AfterFunc(ctx, s.close)
	defer stop()

	var backoff time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.isClosed() {
				return api.ErrServerClosed
			}
			if isTemporary(err) {
				backoff = nextBackoff(backoff)
				s.log.Warn("accept failed, retrying", zap.Error(err), zap.Duration("backoff", backoff))
				time.Sleep(backoff)
				continue
			}
			return fmt.Errorf("accept: %w", err)
		}
		backoff = 0
		s.serveConn(ctx, conn)
	}
}

// isTemporary reports accept errors worth retrying: timeouts and
// transient resource exhaustion such as EMFILE or ENFILE.
func isTemporary(err error) bool {
	if errors.Is(err, syscall.EMFILE) || errors.Is(err, syscall.ENFILE) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	var te interface{ Temporary() bool }
	return errors.As(err, &te) && te.Temporary()
}

func nextBackoff(d time.Duration) time.Duration {
	if d == 0 {
		return 5 * time.Millisecond
	}
	if d *= 2; d > time.Second {
		d = time.Second
	}
	return d
}

// serveConn owns conn for its whole life and always closes it.
func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	peer := conn.RemoteAddr().String()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		conn.Close()
		return
	}
	s.conn = conn
	s.current = &api.ConnInfo{Peer: peer, AcceptedAt: time.Now()}
	s.mu.Unlock()

	s.accepted.Add(1)
	s.metrics.ConnectionAccepted()
	s.log.Info("connection", zap.String("peer", peer))

	reason := control.CloseError
	defer func() {
		conn.Close()
		s.mu.Lock()
		s.conn = nil
		s.current = nil
		s.mu.Unlock()
		s.metrics.ConnectionClosed(reason)
		s.log.Info("connection closed", zap.String("peer", peer), zap.String("reason", reason))
	}()

	reason = s.handle(adapters.WithPeer(ctx, peer), conn)
}

// handle is the read-compute-write loop. It returns why the loop ended.
// A handler error ends this connection only; nothing is written for it.
func (s *Server) handle(ctx context.Context, conn net.Conn) string {
	buf := make([]byte, s.cfg.ReadChunk)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			s.inBytes.Add(uint64(n))
			s.requests.Add(1)
			resp, herr := s.handler.Handle(ctx, buf[:n])
			if herr != nil {
				s.failed.Add(1)
				return control.CloseRejected
			}
			if _, werr := conn.Write(resp); werr != nil {
				if s.isClosed() {
					return control.CloseShutdown
				}
				s.log.Debug("write failed", zap.Error(werr))
				return control.CloseError
			}
			s.outBytes.Add(uint64(len(resp)))
			s.mu.Lock()
			if s.current != nil {
				s.current.Requests++
			}
			s.mu.Unlock()
		}
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				return control.ClosePeer
			case s.isClosed():
				return control.CloseShutdown
			default:
				s.log.Debug("read failed", zap.Error(err))
				return control.CloseError
			}
		}
	}
}

// Shutdown stops accepting, closes the active connection and waits for
// Serve to return or ctx to expire. A computation already running is not
// interrupted; its response write fails once it finishes.
func (s *Server) Shutdown(ctx context.Context) error {
	s.close()

	s.mu.Lock()
	serving := s.serving
	s.mu.Unlock()
	if serving == nil {
		return nil
	}
	select {
	case <-serving:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// close is idempotent and never blocks on the handler.
func (s *Server) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.done)
	if s.ln != nil {
		if err := s.ln.Close(); err != nil {
			s.log.Debug("listener close", zap.Error(err))
		}
	}
	if s.conn != nil {
		s.conn.Close()
	}
	s.log.Info("server shutting down")
}

func (s *Server) isClosed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}
