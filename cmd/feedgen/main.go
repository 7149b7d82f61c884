package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/StoneBodini/Covid-19-Live-Analysis/internal/feedgen"
	"github.com/StoneBodini/Covid-19-Live-Analysis/pkg/logger"
)

func main() {
	var (
		counties = flag.Int("counties", feedgen.DefaultCounties, "Number of counties to generate")
		days     = flag.Int("days", feedgen.DefaultDays, "Days of history per county")
		end      = flag.String("end", "", "Date of the newest rows, YYYY-MM-DD (default: yesterday)")
		seed     = flag.Int64("seed", 1, "Seed for the value generator")
		missing  = flag.Float64("missing", 0.02, "Share of current-day rows with a blank cases cell")
		out      = flag.String("out", "", "Directory to write feed.csv and counties.json into")
		addr     = flag.String("serve", "", "Serve the data set on this address, e.g. :9090")
		level    = flag.String("log-level", "info", "Log level")
	)
	flag.Parse()

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("Failed to initialize logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	log := logger.Get().Named("feedgen")
	if err := logger.SetLevelString(*level); err != nil {
		log.Warn(context.Background(), "invalid -log-level; using info", logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	cfg := feedgen.Config{
		Counties:    *counties,
		Days:        *days,
		Seed:        *seed,
		MissingRate: *missing,
		OutDir:      *out,
		Addr:        *addr,
	}
	if *end != "" {
		t, err := time.Parse("2006-01-02", *end)
		if err != nil {
			log.Fatal(context.Background(), "invalid -end date", logger.Error(err))
		}
		cfg.End = t
	}
	if cfg.OutDir == "" && cfg.Addr == "" {
		os.Stderr.WriteString("nothing to do: set -out, -serve or both\n")
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := feedgen.Run(ctx, cfg, log, nil); err != nil {
		log.Fatal(ctx, "feed generator failed", logger.Error(err))
	}
}
