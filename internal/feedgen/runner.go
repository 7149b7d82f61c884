package feedgen

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"

	"github.com/StoneBodini/Covid-19-Live-Analysis/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0o750
	filePermission      = 0o600
)

// Output file names written by Run.
const (
	FeedFile       = "feed.csv"
	BoundariesFile = "counties.json"
)

// Run generates a data set, writes it to cfg.OutDir and serves it on
// cfg.Addr until ctx is done. onListen, when set, receives the bound address.
func Run(ctx context.Context, cfg Config, lg logger.Logger, onListen func(net.Addr)) error {
	cfg = cfg.withDefaults()
	ds, err := Generate(cfg)
	if err != nil {
		return err
	}
	lg.Info(ctx, "generated data set",
		logger.Int("counties", len(ds.Counties)),
		logger.Int("rows", len(ds.Rows)),
		logger.String("end", cfg.End.Format("2006-01-02")))

	if cfg.OutDir != "" {
		if err := write(ds, cfg.OutDir); err != nil {
			return err
		}
		lg.Info(ctx, "wrote data set", logger.String("dir", cfg.OutDir))
	}
	if cfg.Addr == "" {
		return nil
	}

	h, err := NewHandler(ds, lg)
	if err != nil {
		return err
	}
	mux := http.NewServeMux()
	h.Register(mux)
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: cfg.Timeout}

	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Addr, err)
	}
	if onListen != nil {
		onListen(ln.Addr())
	}
	lg.Info(ctx, "serving data set",
		logger.String("feed", "http://"+ln.Addr().String()+FeedPath),
		logger.String("boundaries", "http://"+ln.Addr().String()+BoundariesPath))

	serveErr := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func write(ds *Dataset, dir string) error {
	if err := os.MkdirAll(dir, directoryPermission); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	feed, err := ds.CSV()
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, FeedFile), feed, filePermission); err != nil {
		return fmt.Errorf("write feed: %w", err)
	}
	b, err := ds.GeoJSON()
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, BoundariesFile), b, filePermission); err != nil {
		return fmt.Errorf("write boundaries: %w", err)
	}
	return nil
}
