package server

import (
	"context"
	"errors"
	"net"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/momentics/hioload-fib/api"
	"github.com/momentics/hioload-fib/client"
	"github.com/momentics/hioload-fib/control"
)

type running struct {
	srv  *Server
	errc chan error
}

func startServer(opts ...ServerOption) *running {
	return startServerWith(DefaultConfig(), opts...)
}

func startServerWith(cfg *Config, opts ...ServerOption) *running {
	cfg.ListenAddr = "127.0.0.1:0"
	srv, err := NewServer(cfg, opts...)
	Expect(err).NotTo(HaveOccurred())
	Expect(srv.Listen(context.Background())).To(Succeed())

	r := &running{srv: srv, errc: make(chan error, 1)}
	go func() { r.errc <- srv.Serve(context.Background()) }()
	DeferCleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		Expect(srv.Shutdown(ctx)).To(Succeed())
	})
	return r
}

// failOnceListener fails its first Accept with EMFILE.
type failOnceListener struct {
	net.Listener
	failed atomic.Bool
}

func (l *failOnceListener) Accept() (net.Conn, error) {
	if l.failed.CompareAndSwap(false, true) {
		return nil, &net.OpError{Op: "accept", Net: "tcp", Addr: l.Addr(),
			Err: os.NewSyscallError("accept", syscall.EMFILE)}
	}
	return l.Listener.Accept()
}

type result struct {
	line string
	err  error
}

func askAsync(c *client.Client, req string) <-chan result {
	out := make(chan result, 1)
	go func() {
		line, err := c.Do(context.Background(), []byte(req))
		out <- result{line, err}
	}()
	return out
}

func dial(addr string) *client.Client {
	c, err := client.Dial(context.Background(), addr, client.WithIOTimeout(5*time.Second))
	Expect(err).NotTo(HaveOccurred())
	DeferCleanup(func() { _ = c.Close() })
	return c
}

func ask(c *client.Client, req string) string {
	line, err := c.Do(context.Background(), []byte(req))
	Expect(err).NotTo(HaveOccurred())
	return line
}

var _ = Describe("Server", func() {
	var r *running

	Context("serving Fibonacci requests", func() {
		BeforeEach(func() {
			r = startServer()
		})

		It("answers indices 0 through 20 on one connection", func() {
			want := []string{"0", "1", "1", "2", "3", "5", "8", "13", "21", "34", "55",
				"89", "144", "233", "377", "610", "987", "1597", "2584", "4181", "6765"}
			c := dial(r.srv.Addr())
			for n, v := range want {
				Expect(ask(c, strconv.Itoa(n))).To(Equal(v))
			}
		})

		It("answers requests on one connection in order", func() {
			c := dial(r.srv.Addr())
			Expect(ask(c, "5")).To(Equal("5"))
			Expect(ask(c, "7")).To(Equal("13"))
		})

		It("serves the next connection after a client disconnects", func() {
			c := dial(r.srv.Addr())
			Expect(ask(c, "10")).To(Equal("55"))
			Expect(ask(c, "0")).To(Equal("0"))
			Expect(c.Close()).To(Succeed())

			c2 := dial(r.srv.Addr())
			Expect(ask(c2, "1")).To(Equal("1"))
		})

		It("serves the next connection after a client that sent nothing", func() {
			idle := dial(r.srv.Addr())
			Expect(idle.Close()).To(Succeed())

			c := dial(r.srv.Addr())
			Expect(ask(c, "12")).To(Equal("144"))
		})

		It("closes the connection after a half-close from the peer", func() {
			c := dial(r.srv.Addr())
			Expect(ask(c, "6")).To(Equal("8"))
			Expect(c.CloseWrite()).To(Succeed())

			next := dial(r.srv.Addr())
			Expect(ask(next, "3")).To(Equal("2"))
		})

		It("accepts a trailing newline", func() {
			c := dial(r.srv.Addr())
			Expect(ask(c, "9\n")).To(Equal("34"))
		})

		It("terminates only the offending connection on malformed input", func() {
			bad := dial(r.srv.Addr())
			_, err := bad.Do(context.Background(), []byte("abc"))
			Expect(err).To(HaveOccurred())

			good := dial(r.srv.Addr())
			Expect(ask(good, "10")).To(Equal("55"))
			Expect(r.srv.Stats().Failed).To(Equal(int64(1)))
		})

		It("terminates the connection when the index does not fit in 64 bits", func() {
			c := dial(r.srv.Addr())
			_, err := c.Do(context.Background(), []byte("94"))
			Expect(err).To(HaveOccurred())

			Expect(ask(dial(r.srv.Addr()), "8")).To(Equal("21"))
		})

		It("does not service a second client while the first is connected", func() {
			first := dial(r.srv.Addr())
			Expect(ask(first, "1")).To(Equal("1"))

			second := dial(r.srv.Addr())
			answers := make(chan string, 1)
			go func() {
				defer GinkgoRecover()
				line, err := second.Do(context.Background(), []byte("10"))
				Expect(err).NotTo(HaveOccurred())
				answers <- line
			}()

			Consistently(answers, 300*time.Millisecond).ShouldNot(Receive())
			Expect(r.srv.Stats().Accepted).To(Equal(int64(1)))

			Expect(first.Close()).To(Succeed())
			Eventually(answers, 5*time.Second).Should(Receive(Equal("55")))
		})

		It("does not service a second client while the first is computing", func() {
			first := dial(r.srv.Addr())
			firstAnswer := askAsync(first, "36")
			Eventually(func() int64 { return r.srv.Stats().Requests }).Should(Equal(int64(1)))

			second := dial(r.srv.Addr())
			secondAnswer := askAsync(second, "10")
			Consistently(secondAnswer, 200*time.Millisecond).ShouldNot(Receive())

			Eventually(firstAnswer, 10*time.Second).Should(Receive(Equal(result{line: "14930352"})))
			Consistently(secondAnswer, 200*time.Millisecond).ShouldNot(Receive())
			Expect(r.srv.Stats().Accepted).To(Equal(int64(1)))

			Expect(first.Close()).To(Succeed())
			Eventually(secondAnswer, 5*time.Second).Should(Receive(Equal(result{line: "55"})))
		})

		It("exposes listener features as a debug probe", func() {
			Expect(r.srv.Control().Stats()).To(HaveKey("debug.transport.features"))
		})

		It("reports stats and metrics", func() {
			c := dial(r.srv.Addr())
			Expect(ask(c, "4")).To(Equal("3"))
			Eventually(func() int64 {
				if cur := r.srv.Stats().Current; cur != nil {
					return cur.Requests
				}
				return -1
			}).Should(Equal(int64(1)))

			Expect(c.Close()).To(Succeed())
			Eventually(func() *api.ConnInfo { return r.srv.Stats().Current }).Should(BeNil())

			st := r.srv.Stats()
			Expect(st.Addr).To(Equal(r.srv.Addr()))
			Expect(st.StartedAt).NotTo(BeZero())
			Expect(st.Accepted).To(Equal(int64(1)))
			Expect(st.Requests).To(Equal(int64(1)))
			Expect(st.InboundBytes).To(Equal(uint64(1)))
			Expect(st.OutboundBytes).To(Equal(uint64(2)))

			n, err := testutil.GatherAndCount(r.srv.Gatherer(), "fibserve_requests_total")
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(1))

			stats := r.srv.Control().Stats()
			Expect(stats).To(HaveKey("debug.server.stats"))
			recent, ok := stats["journal.recent"].([]control.RequestRecord)
			Expect(ok).To(BeTrue())
			Expect(recent).To(HaveLen(1))
			Expect(recent[0].Response).To(Equal("3\n"))
		})
	})

	Context("with a lowered index limit", func() {
		BeforeEach(func() {
			cfg := DefaultConfig()
			cfg.MaxIndex = 25
			r = startServerWith(cfg)
		})

		It("terminates the connection above the limit and serves up to it", func() {
			c := dial(r.srv.Addr())
			_, err := c.Do(context.Background(), []byte("26"))
			Expect(err).To(HaveOccurred())

			Expect(ask(dial(r.srv.Addr()), "25")).To(Equal("75025"))
		})
	})

	Context("with a panicking handler", func() {
		BeforeEach(func() {
			calls := 0
			r = startServer(WithHandler(api.HandlerFunc(func(context.Context, []byte) ([]byte, error) {
				calls++
				if calls == 1 {
					panic("first request explodes")
				}
				return []byte("ok\n"), nil
			})))
		})

		It("drops the connection and keeps serving", func() {
			_, err := dial(r.srv.Addr()).Do(context.Background(), []byte("1"))
			Expect(err).To(HaveOccurred())

			Expect(ask(dial(r.srv.Addr()), "1")).To(Equal("ok"))
		})
	})

	Context("with user middleware", func() {
		var calls atomic.Int32

		BeforeEach(func() {
			calls.Store(0)
			r = startServer(WithMiddleware(func(next api.Handler) api.Handler {
				return api.HandlerFunc(func(ctx context.Context, req []byte) ([]byte, error) {
					if calls.Add(1) == 1 {
						panic("middleware explodes")
					}
					return next.Handle(ctx, req)
				})
			}))
		})

		It("recovers a panic raised in the middleware and keeps serving", func() {
			_, err := dial(r.srv.Addr()).Do(context.Background(), []byte("3"))
			Expect(err).To(HaveOccurred())

			Expect(ask(dial(r.srv.Addr()), "10")).To(Equal("55"))
			Expect(calls.Load()).To(Equal(int32(2)))
			Expect(r.srv.Stats().Failed).To(Equal(int64(1)))
		})
	})

	Context("with a caller-supplied registry", func() {
		It("registers and gathers collectors on that registry", func() {
			reg := prometheus.NewRegistry()
			r = startServer(WithRegisterer(reg))
			Expect(r.srv.Gatherer()).To(BeIdenticalTo(reg))

			Expect(ask(dial(r.srv.Addr()), "4")).To(Equal("3"))
			n, err := testutil.GatherAndCount(reg, "fibserve_requests_total")
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(1))
		})
	})

	Context("with a nil logger", func() {
		It("keeps the default logger", func() {
			r = startServer(WithLogger(nil))
			Expect(ask(dial(r.srv.Addr()), "7")).To(Equal("13"))
		})
	})

	Context("when accept fails temporarily", func() {
		It("logs, backs off and keeps accepting", func() {
			cfg := DefaultConfig()
			cfg.ListenAddr = "127.0.0.1:0"
			srv, err := NewServer(cfg)
			Expect(err).NotTo(HaveOccurred())
			Expect(srv.Listen(context.Background())).To(Succeed())

			fl := &failOnceListener{Listener: srv.ln}
			srv.mu.Lock()
			srv.ln = fl
			srv.mu.Unlock()

			errc := make(chan error, 1)
			go func() { errc <- srv.Serve(context.Background()) }()
			DeferCleanup(func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				Expect(srv.Shutdown(ctx)).To(Succeed())
			})

			Expect(ask(dial(srv.Addr()), "10")).To(Equal("55"))
			Expect(fl.failed.Load()).To(BeTrue())
			Expect(errc).NotTo(Receive())
		})
	})

	Context("lifecycle", func() {
		It("returns ErrServerClosed from Serve after Shutdown", func() {
			r = startServer()
			c := dial(r.srv.Addr())
			Expect(ask(c, "2")).To(Equal("1"))

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			Expect(r.srv.Shutdown(ctx)).To(Succeed())

			var err error
			Eventually(r.errc).Should(Receive(&err))
			Expect(errors.Is(err, api.ErrServerClosed)).To(BeTrue())

			_, err = c.Do(context.Background(), []byte("2"))
			Expect(err).To(HaveOccurred())
			Expect(r.srv.Shutdown(ctx)).To(Succeed())
		})

		It("lets a running computation finish and drops its response on Shutdown", func() {
			r = startServer()
			c := dial(r.srv.Addr())
			answer := askAsync(c, "40")
			Eventually(func() int64 { return r.srv.Stats().Requests }).Should(Equal(int64(1)))

			ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
			defer cancel()
			Expect(r.srv.Shutdown(ctx)).To(Succeed())

			var err error
			Eventually(r.errc).Should(Receive(&err))
			Expect(errors.Is(err, api.ErrServerClosed)).To(BeTrue())

			var res result
			Eventually(answer, 5*time.Second).Should(Receive(&res))
			Expect(res.err).To(HaveOccurred())
			Expect(res.line).To(BeEmpty())

			Expect(testutil.GatherAndCompare(r.srv.Gatherer(), strings.NewReader(`
# HELP fibserve_connections_closed_total Total number of closed client connections by reason
# TYPE fibserve_connections_closed_total counter
fibserve_connections_closed_total{reason="shutdown"} 1
`), "fibserve_connections_closed_total")).To(Succeed())
		})

		It("stops when the serve context is canceled", func() {
			cfg := DefaultConfig()
			cfg.ListenAddr = "127.0.0.1:0"
			srv, err := NewServer(cfg)
			Expect(err).NotTo(HaveOccurred())

			ctx, cancel := context.WithCancel(context.Background())
			errc := make(chan error, 1)
			go func() { errc <- srv.ListenAndServe(ctx) }()
			Eventually(srv.Addr).ShouldNot(BeEmpty())

			cancel()
			Eventually(errc, 5*time.Second).Should(Receive(MatchError(api.ErrServerClosed)))
		})

		It("rejects a second Listen", func() {
			r = startServer()
			Expect(r.srv.Listen(context.Background())).To(MatchError(api.ErrAlreadyRunning))
		})

		It("rejects a second Serve", func() {
			r = startServer()
			c := dial(r.srv.Addr())
			Expect(ask(c, "1")).To(Equal("1"))
			Expect(r.srv.Serve(context.Background())).To(MatchError(api.ErrAlreadyRunning))
		})

		It("fails to start on an address in use", func() {
			r = startServer()
			cfg := DefaultConfig()
			cfg.ListenAddr = r.srv.Addr()
			other, err := NewServer(cfg)
			Expect(err).NotTo(HaveOccurred())
			Expect(other.Listen(context.Background())).To(HaveOccurred())
		})

		It("refuses Serve before Listen", func() {
			srv, err := NewServer(nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(errors.Is(srv.Serve(context.Background()), api.ErrInvalidArgument)).To(BeTrue())
		})

		It("refuses to restart after Shutdown", func() {
			srv, err := NewServer(nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(srv.Shutdown(context.Background())).To(Succeed())
			Expect(srv.Listen(context.Background())).To(MatchError(api.ErrServerClosed))
		})
	})
})
