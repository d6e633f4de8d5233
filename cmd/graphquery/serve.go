package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dd0wney/cluso-graphquery/pkg/config"
	"github.com/dd0wney/cluso-graphquery/pkg/health"
	"github.com/dd0wney/cluso-graphquery/pkg/logging"
	"github.com/dd0wney/cluso-graphquery/pkg/metrics"
	"github.com/dd0wney/cluso-graphquery/pkg/query"
	"github.com/dd0wney/cluso-graphquery/pkg/storage"
	"github.com/dd0wney/cluso-graphquery/pkg/transport"
	"github.com/dd0wney/cluso-graphquery/pkg/wire"
)

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadServeConfig(cmd)
	if err != nil {
		return err
	}

	logger := logging.NewJSONLogger(os.Stderr, cfg.LogLevel())
	logging.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return serve(ctx, cfg, logger)
}

func loadServeConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg := config.Default()
	if path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return nil, err
		}
	}

	if v, _ := cmd.Flags().GetString("tcp-addr"); v != "" {
		cfg.Server.TCPAddr = v
	}
	if v, _ := cmd.Flags().GetString("nng-addr"); v != "" {
		cfg.Server.NNGAddr = v
	}
	if v, _ := cmd.Flags().GetString("metrics-addr"); v != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Addr = v
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// serve runs every configured server until ctx is cancelled
func serve(ctx context.Context, cfg *config.Config, logger logging.Logger) error {
	reg := metrics.DefaultRegistry()
	store := storage.NewGraphStorage()
	defer store.Close()

	engine := query.NewEngine(store, query.EngineConfig{
		DefaultLimit: cfg.Query.DefaultLimit,
		MaxLimit:     cfg.Query.MaxLimit,
		Logger:       logger,
		Metrics:      reg,
	})
	framer := wire.NewFramer(cfg.Server.MaxFrameBytes, cfg.Server.Compression)

	checker := health.NewHealthChecker()
	checker.RegisterCheck("store", health.StoreCheck(store))
	checker.RegisterCheck("memory", health.MemoryCheck(0))
	checker.RegisterReadinessCheck("store", health.StoreCheck(store))

	tcp := &transport.TCPServer{
		Addr:         cfg.Server.TCPAddr,
		Engine:       engine,
		Framer:       framer,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		Logger:       logger,
		Metrics:      reg,
	}
	if err := tcp.Listen(); err != nil {
		return err
	}
	checker.RegisterReadinessCheck("tcp", health.ListenerCheck("tcp", tcp.Listening))

	var nng *transport.NNGServer
	if cfg.Server.NNGAddr != "" {
		nng = &transport.NNGServer{
			Addr:    cfg.Server.NNGAddr,
			Workers: cfg.Server.NNGWorkers,
			Engine:  engine,
			Framer:  framer,
			Logger:  logger,
			Metrics: reg,
		}
		if err := nng.Listen(); err != nil {
			return err
		}
		checker.RegisterReadinessCheck("nng", health.ListenerCheck("nng", nng.Listening))
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	var wg sync.WaitGroup
	errs := make(chan error, 3)
	start := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil && !errors.Is(err, transport.ErrServerClosed) {
				errs <- fmt.Errorf("%s: %w", name, err)
				cancel()
			}
		}()
	}

	start("tcp", tcp.Serve)
	if nng != nil {
		start("nng", nng.Serve)
	}
	if cfg.Metrics.Enabled {
		start("http", func(ctx context.Context) error {
			return serveHTTP(ctx, cfg.Metrics.Addr, reg, checker, logger)
		})
	}

	logger.Info("graphquery started",
		logging.String("version", version),
		logging.Addr(cfg.Server.TCPAddr),
		logging.String("nng_addr", cfg.Server.NNGAddr))

	<-ctx.Done()
	logger.Info("shutting down")
	wg.Wait()
	close(errs)
	return <-errs
}

func serveHTTP(ctx context.Context, addr string, reg *metrics.Registry, checker *health.HealthChecker, logger logging.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", reg.Handler())
	mux.Handle("/health", checker.HTTPHandler())
	mux.Handle("/ready", checker.ReadinessHandler())

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	stop := context.AfterFunc(ctx, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http shutdown failed", logging.Error(err))
		}
	})
	defer stop()

	logger.Info("http server listening", logging.Addr(addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
