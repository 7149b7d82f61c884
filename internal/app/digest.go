package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/StoneBodini/Covid-19-Live-Analysis/pkg/logger"
)

// digestTimeout bounds one digest run.
const digestTimeout = 5 * time.Minute

// DigestSender is the part of Service the digest job drives.
type DigestSender interface {
	SendDigest(ctx context.Context) (int, error)
}

// Digest sends every subscriber their county update on a cron schedule.
type Digest struct {
	scheduler *gocron.Scheduler
	sender    DigestSender
	cronExpr  string
	logger    logger.Logger

	mu      sync.Mutex
	running bool
}

// NewDigest creates a digest job for a standard five-field cron expression,
// evaluated in UTC.
func NewDigest(sender DigestSender, cronExpr string, l logger.Logger) *Digest {
	if l == nil {
		l = logger.Nop()
	}
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	return &Digest{
		scheduler: s,
		sender:    sender,
		cronExpr:  cronExpr,
		logger:    l,
	}
}

// Start schedules the job and starts the scheduler in the background.
func (d *Digest) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		return nil
	}
	if _, err := d.scheduler.Cron(d.cronExpr).Do(d.run); err != nil {
		return fmt.Errorf("schedule digest %q: %w", d.cronExpr, err)
	}
	d.scheduler.StartAsync()
	d.running = true
	d.logger.Info(context.Background(), "digest scheduled", logger.String("cron", d.cronExpr))
	return nil
}

// Stop cancels future runs.
func (d *Digest) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.running {
		return
	}
	d.scheduler.Stop()
	d.running = false
}

// NextRun is the next scheduled time, zero before Start.
func (d *Digest) NextRun() time.Time {
	_, t := d.scheduler.NextRun()
	return t
}

// RunOnce sends one digest immediately.
func (d *Digest) RunOnce(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, digestTimeout)
	defer cancel()

	n, err := d.sender.SendDigest(ctx)
	if err != nil {
		d.logger.Error(ctx, "digest failed", logger.Int("queued", n), logger.Error(err))
		return n, err
	}
	d.logger.Info(ctx, "digest queued", logger.Int("queued", n))
	return n, nil
}

func (d *Digest) run() {
	_, _ = d.RunOnce(context.Background())
}
