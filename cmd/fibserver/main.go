// File: cmd/fibserver/main.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Serial Fibonacci server. Answers one connection at a time on :25000
// unless configured otherwise.

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/momentics/hioload-fib/api"
	"github.com/momentics/hioload-fib/control"
	"github.com/momentics/hioload-fib/internal/logger"
	"github.com/momentics/hioload-fib/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fibserver: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "YAML config file")
	addr := flag.String("addr", "", "TCP listen address (overrides config)")
	backlog := flag.Int("backlog", 0, "listen backlog (overrides config)")
	maxIndex := flag.Uint64("max-index", 0, "largest accepted index (overrides config)")
	metricsAddr := flag.String("metrics-addr", "", "metrics/debug HTTP address (overrides config)")
	flag.Parse()

	cfg := server.DefaultConfig()
	if *configPath != "" {
		loaded, err := server.LoadConfig(*configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if *addr != "" {
		cfg.ListenAddr = *addr
	}
	if *backlog > 0 {
		cfg.Backlog = *backlog
	}
	if *maxIndex > 0 {
		cfg.MaxIndex = *maxIndex
	}
	if *metricsAddr != "" {
		cfg.MetricsAddr = *metricsAddr
	}

	log := logger.InitLogger()
	defer logger.SyncLogger()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	srv, err := server.NewServer(cfg, server.WithLogger(log), server.WithRegisterer(reg))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Listen(ctx); err != nil {
		return err
	}

	go func() {
		if err := control.ServeMetrics(ctx, cfg.MetricsAddr, reg, srv.Control(), log); err != nil {
			log.Error("metrics exporter stopped", zap.Error(err))
		}
	}()

	err = srv.Serve(ctx)
	if errors.Is(err, api.ErrServerClosed) {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if serr := srv.Shutdown(shutdownCtx); serr != nil {
			log.Warn("shutdown incomplete", zap.Error(serr))
		}
		log.Info("server stopped")
		return nil
	}
	return err
}
