package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ceejiggy/shinycounter/internal/adapters/catalog"
	"github.com/ceejiggy/shinycounter/internal/adapters/http/api"
	"github.com/ceejiggy/shinycounter/internal/adapters/http/swagger"
	app "github.com/ceejiggy/shinycounter/internal/app"
	"github.com/ceejiggy/shinycounter/internal/config"
	"github.com/ceejiggy/shinycounter/pkg/logger"
	"github.com/ceejiggy/shinycounter/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout            = 10 * time.Second
	writeTimeout           = 10 * time.Second
	idleTimeout            = 60 * time.Second
	readHeaderTimeout      = 5 * time.Second
	shutdownTimeout        = 30 * time.Second
	serviceMetricsInterval = 5 * time.Second
)

func newServeCmd(c *cli) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API with persistence and OBS mirroring",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr != "" {
				c.cfg.Addr = addr
			}
			return serve(cmd.Context(), c.cfg)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default: addr from config)")
	return cmd
}

// serviceOptions maps configuration onto the service.
func serviceOptions(cfg *config.Config, log logger.Logger) []app.Option {
	opts := []app.Option{
		app.WithLogger(log),
		app.WithStoragePath(cfg.Storage.Path),
		app.WithBusyTimeout(config.Millis(cfg.Storage.BusyTimeoutMS)),
		app.WithQueueSize(cfg.Persist.QueueSize),
		app.WithWorkerCount(cfg.Persist.Workers),
		app.WithLookupTimeout(config.Millis(cfg.Catalog.TimeoutMS)),
		app.WithCatalog(catalog.NewClient(
			catalog.WithAPIBase(cfg.Catalog.APIBase),
			catalog.WithSpriteBase(cfg.Catalog.SpriteBase),
			catalog.WithHTTPClient(&http.Client{Timeout: config.Millis(cfg.Catalog.TimeoutMS)}),
			catalog.WithEmbedImages(cfg.Catalog.EmbedImages),
			catalog.WithLogger(log.Named("catalog")),
		)),
	}
	if cfg.OBS.Enabled {
		opts = append(opts,
			app.WithOBS(cfg.OBS.URL, cfg.OBS.Password, true),
			app.WithOBSTimeouts(config.Millis(cfg.OBS.DialTimeoutMS), config.Millis(cfg.OBS.RequestTimeoutMS)),
		)
	}
	return opts
}

func serve(parent context.Context, cfg *config.Config) error {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logger.Get()

	svc := app.New(serviceOptions(cfg, log)...)
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}
	defer svc.Stop()

	mux := http.NewServeMux()
	swagger.Register(mux)
	api.NewServer(svc.APIDependencies()).Register(mux)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info(gctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info(context.WithoutCancel(gctx), "shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		runServiceMetricsUpdater(gctx, svc)
		return nil
	})

	err := g.Wait()
	log.Info(context.WithoutCancel(ctx), "server stopped")
	return err
}

// runServiceMetricsUpdater refreshes the gauges derived from service stats.
func runServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(svc)
		}
	}
}

func updateServiceMetrics(svc *app.Service) {
	stats := svc.GetStats()
	queueLen, okLen := stats["queueLength"].(int)
	queueSize, okSize := stats["queueSize"].(int)
	if okLen && okSize {
		metrics.UpdateQueue(queueLen, queueSize)
	}
	counters, okCounters := stats["counters"].(int)
	home, okHome := stats["homeCounters"].(int)
	if okCounters && okHome {
		metrics.UpdateCounters(counters, home)
	}
}
