package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/StoneBodini/Covid-19-Live-Analysis/internal/adapters/feed"
	"github.com/StoneBodini/Covid-19-Live-Analysis/internal/adapters/http/api"
	"github.com/StoneBodini/Covid-19-Live-Analysis/internal/adapters/http/site"
	"github.com/StoneBodini/Covid-19-Live-Analysis/internal/adapters/http/swagger"
	"github.com/StoneBodini/Covid-19-Live-Analysis/internal/adapters/mail"
	"github.com/StoneBodini/Covid-19-Live-Analysis/internal/adapters/render"
	"github.com/StoneBodini/Covid-19-Live-Analysis/internal/adapters/repository"
	app "github.com/StoneBodini/Covid-19-Live-Analysis/internal/app"
	"github.com/StoneBodini/Covid-19-Live-Analysis/internal/config"
	"github.com/StoneBodini/Covid-19-Live-Analysis/internal/domain/geo"
	"github.com/StoneBodini/Covid-19-Live-Analysis/pkg/logger"
	"github.com/StoneBodini/Covid-19-Live-Analysis/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 10 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	log := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> .env -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	if err := run(ctx, cfg, log, nil); err != nil {
		log.Fatal(ctx, "service failed", logger.Error(err))
	}
}

// run builds the snapshot, starts the service and serves HTTP until ctx is
// done. onListen, when set, receives the bound address.
func run(ctx context.Context, cfg *config.Config, log logger.Logger, onListen func(net.Addr)) error {
	metrics.Init(
		metrics.WithNamespace(cfg.MetricsNamespace),
		metrics.WithMetricsEnabled(cfg.MetricsEnabled),
		metrics.WithRefreshInterval(cfg.MetricsRefresh),
		metrics.WithConstLabels(cfg.MetricsLabels),
	)

	boundaries, err := geo.LoadFile(cfg.BoundariesPath)
	if err != nil {
		return fmt.Errorf("boundaries: %w", err)
	}

	snap, err := app.Build(ctx, app.BuildConfig{
		Loader: feed.NewLoader(cfg.FeedURL,
			feed.WithTimeout(cfg.FeedTimeout),
			feed.WithLogger(log.Named("feed")),
		),
		Boundaries:      boundaries,
		TrendPNGPath:    cfg.TrendPNGPath,
		LeaderboardSize: cfg.LeaderboardSize,
		MapOptions:      render.DefaultMapOptions(),
		Logger:          log.Named("pipeline"),
	})
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}

	svc := app.New(
		app.WithLogger(log),
		app.WithSnapshot(snap),
		app.WithStore(store),
		app.WithMailer(newMailer(cfg, log)),
		app.WithWorkerCount(cfg.MailWorkers),
		app.WithQueueSize(cfg.OutboxSize),
		app.WithDedupeSize(cfg.DedupeSize),
	)
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		svc.Stop(stopCtx)
	}()

	if cfg.DigestEnabled {
		digest := app.NewDigest(svc, cfg.DigestCron, log.Named("digest"))
		if err := digest.Start(); err != nil {
			return err
		}
		defer digest.Stop()
	}

	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, svc)

	srv := &http.Server{
		Handler:           newMux(ctx, svc, cfg, log),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Addr, err)
	}
	if onListen != nil {
		onListen(ln.Addr())
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	log.Info(ctx, "server stopped")
	return nil
}

// newMux registers docs, the JSON API and the pages on one mux.
func newMux(ctx context.Context, svc *app.Service, cfg *config.Config, log logger.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	swagger.Register(ctx, mux)

	apiServer := api.NewServer(svc, svc,
		api.WithMaxLimit(cfg.LeaderboardSize),
		api.WithLogger(log.Named("http")),
	)
	apiServer.Register(ctx, mux)

	site.Register(ctx, mux, svc,
		site.WithLogger(log.Named("http")),
		site.WithTableSize(cfg.LeaderboardSize),
	)
	return mux
}

func openStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	if cfg.StoreDriver == config.StoreMySQL {
		return repository.OpenSQLStore(ctx, cfg.MySQLDSN)
	}
	return repository.NewMemoryStore(ctx), nil
}

func newMailer(cfg *config.Config, log logger.Logger) mail.Mailer {
	if !cfg.MailEnabled {
		return mail.NewLogMailer(log.Named("mail"))
	}
	return mail.NewSMTPMailer(mail.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
	})
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(metrics.RefreshInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater starts a background goroutine that updates service metrics.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(metrics.RefreshInterval())
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

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}

// updateServiceMetrics refreshes gauges that GetStats does not already set.
func updateServiceMetrics(svc *app.Service) {
	stats := svc.GetStats()

	if outboxLen, ok := stats["outboxLength"].(int); ok {
		metrics.UpdateOutboxSize(outboxLen)
	}
	if workerCount, ok := stats["workerCount"].(int); ok {
		metrics.UpdateWorkerActiveCount(workerCount)
	}
}
