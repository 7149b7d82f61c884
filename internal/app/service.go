// Package service holds the current snapshot and the subscription workflow
// behind the HTTP handlers.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/go-playground/validator/v10"
	"github.com/jonboulle/clockwork"

	"github.com/StoneBodini/Covid-19-Live-Analysis/internal/adapters/mail"
	outbox "github.com/StoneBodini/Covid-19-Live-Analysis/internal/adapters/mq/queue"
	workerpool "github.com/StoneBodini/Covid-19-Live-Analysis/internal/adapters/mq/worker"
	"github.com/StoneBodini/Covid-19-Live-Analysis/internal/adapters/repository"
	"github.com/StoneBodini/Covid-19-Live-Analysis/internal/domain/dedupe"
	"github.com/StoneBodini/Covid-19-Live-Analysis/internal/domain/model"
	"github.com/StoneBodini/Covid-19-Live-Analysis/pkg/logger"
	"github.com/StoneBodini/Covid-19-Live-Analysis/pkg/metrics"
)

// SubscribeRequest is the subscription form.
type SubscribeRequest struct {
	FirstName string `json:"first_name" validate:"required"`
	LastName  string `json:"last_name" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
	County    string `json:"county" validate:"required"`
	State     string `json:"state" validate:"required"`
}

// UpdateResult reports what happened to an update request.
type UpdateResult struct {
	Email     string `json:"email"`
	Date      string `json:"date"`
	Rows      int    `json:"rows"`
	Queued    bool   `json:"queued"`
	Duplicate bool   `json:"duplicate"`
}

// Service implements the API dependencies for maps and subscriptions.
type Service struct {
	mu sync.RWMutex

	snapshot atomic.Pointer[Snapshot]

	// Core components
	store    repository.Store
	mailer   mail.Mailer
	deduper  dedupe.Deduper
	outbox   outbox.Queue
	pool     *workerpool.Pool
	validate *validator.Validate
	clock    clockwork.Clock

	// Configuration
	workerCount int
	queueSize   int
	dedupeSize  int

	started bool
	logger  logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of mail workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the outbox capacity.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many update requests are remembered.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithStore sets the subscriber store. Defaults to a MemoryStore.
func WithStore(st repository.Store) Option {
	return func(s *Service) {
		if st != nil {
			s.store = st
		}
	}
}

// WithMailer sets how emails leave the process. Defaults to logging them.
func WithMailer(m mail.Mailer) Option {
	return func(s *Service) {
		if m != nil {
			s.mailer = m
		}
	}
}

// WithClock sets the clock used for email dates.
func WithClock(c clockwork.Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithSnapshot installs an initial snapshot.
func WithSnapshot(snap *Snapshot) Option {
	return func(s *Service) {
		if snap != nil {
			s.snapshot.Store(snap)
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount: 2,
		queueSize:   1000,
		dedupeSize:  10000,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		clock:       clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start initializes and starts the outbox and its workers.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}
	if s.store == nil {
		s.store = repository.NewMemoryStore(ctx)
	}
	if s.mailer == nil {
		s.mailer = mail.NewLogMailer(s.logger.Named("mail"))
	}

	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.outbox = outbox.NewInMemoryQueue(outbox.WithCapacity(s.queueSize))
	s.pool = workerpool.NewPool(s.workerCount, s.outbox, s.mailer,
		workerpool.WithLogger(s.logger.Named("outbox")),
		workerpool.WithFailureHandler(s.forgetFailedUpdate),
	)
	s.pool.Start(ctx)

	s.started = true
	metrics.UpdateSubscriberCount(s.store.Count(ctx))
	s.logger.Info(ctx, "subscription service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
	)
	return nil
}

// Stop drains the outbox and closes the store.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	s.logger.Info(ctx, "stopping subscription service...")

	if s.pool != nil {
		if err := s.pool.Shutdown(ctx); err != nil {
			s.logger.Warn(ctx, "outbox not fully drained", logger.Error(err))
		}
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Error(ctx, "closing subscriber store", logger.Error(err))
		}
	}

	s.started = false
	s.logger.Info(ctx, "subscription service stopped")
}

// SetSnapshot replaces the current snapshot.
func (s *Service) SetSnapshot(snap *Snapshot) {
	s.snapshot.Store(snap)
}

// Snapshot returns the current snapshot.
func (s *Service) Snapshot() (*Snapshot, error) {
	snap := s.snapshot.Load()
	if snap == nil {
		return nil, ErrNoSnapshot
	}
	return snap, nil
}

// Subscribe validates the form against the current snapshot, stores the
// subscriber and queues a confirmation email.
func (s *Service) Subscribe(ctx context.Context, req SubscribeRequest) (repository.Subscriber, error) {
	if !s.isStarted() {
		return repository.Subscriber{}, ErrNotStarted
	}
	req = normalize(req)
	if err := s.validate.StructCtx(ctx, req); err != nil {
		return repository.Subscriber{}, formError(err)
	}

	state, ok := CanonicalState(req.State)
	if !ok {
		return repository.Subscriber{}, &ValidationError{Field: "state", Message: MsgUnknownState}
	}
	snap, err := s.Snapshot()
	if err != nil {
		return repository.Subscriber{}, err
	}
	county, ok := snap.CanonicalCounty(req.County)
	if !ok {
		return repository.Subscriber{}, &ValidationError{Field: "county", Message: MsgUnknownCounty}
	}

	sub, err := s.store.Create(ctx, repository.Subscriber{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		County:    county,
		State:     state,
	})
	if errors.Is(err, repository.ErrDuplicateEmail) {
		return repository.Subscriber{}, &ValidationError{Field: "email", Message: MsgEmailInUse, Err: err}
	}
	if err != nil {
		return repository.Subscriber{}, fmt.Errorf("store subscriber: %w", err)
	}

	if err := s.enqueue(ctx, mail.Confirmation(sub.Email, s.clock.Now())); err != nil {
		// Undo so the whole subscription can be retried.
		if delErr := s.store.DeleteByEmail(ctx, sub.Email); delErr != nil {
			s.logger.Error(ctx, "rolling back subscriber", logger.Error(delErr))
		}
		return repository.Subscriber{}, err
	}

	metrics.UpdateSubscriberCount(s.store.Count(ctx))
	s.logger.Info(ctx, "subscriber added",
		logger.String("id", sub.PublicID),
		logger.String("county", sub.County),
		logger.String("state", sub.State),
	)
	return sub, nil
}

// RequestUpdate queues an email with the subscriber's county rows. A repeat
// request for the same snapshot date is acknowledged without sending again.
func (s *Service) RequestUpdate(ctx context.Context, email string) (UpdateResult, error) {
	return s.sendUpdate(ctx, normalizeEmail(email), mail.KindUpdate)
}

// Unsubscribe removes a subscriber by email.
func (s *Service) Unsubscribe(ctx context.Context, email string) error {
	if !s.isStarted() {
		return ErrNotStarted
	}
	if err := s.store.DeleteByEmail(ctx, normalizeEmail(email)); err != nil {
		return err
	}
	metrics.UpdateSubscriberCount(s.store.Count(ctx))
	return nil
}

// Subscribers lists every subscriber, oldest first.
func (s *Service) Subscribers(ctx context.Context) ([]repository.Subscriber, error) {
	if !s.isStarted() {
		return nil, ErrNotStarted
	}
	return s.store.List(ctx)
}

// SendDigest queues an update for every subscriber. It returns how many
// emails were queued; subscribers already served for this date are skipped.
// A failed subscriber does not stop the run: every failure is joined into the
// returned error.
func (s *Service) SendDigest(ctx context.Context) (int, error) {
	subs, err := s.Subscribers(ctx)
	if err != nil {
		return 0, err
	}
	queued := 0
	var errs []error
	for _, sub := range subs {
		res, err := s.sendUpdate(ctx, sub.Email, mail.KindDigest)
		if err != nil {
			errs = append(errs, fmt.Errorf("digest for %s: %w", sub.PublicID, err))
			continue
		}
		if res.Queued {
			queued++
		}
	}
	return queued, errors.Join(errs...)
}

func (s *Service) sendUpdate(ctx context.Context, email string, kind mail.Kind) (UpdateResult, error) {
	if !s.isStarted() {
		return UpdateResult{}, ErrNotStarted
	}
	snap, err := s.Snapshot()
	if err != nil {
		return UpdateResult{}, err
	}
	sub, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		return UpdateResult{}, err
	}

	date := snap.Date().Format(model.DateLayout)
	rows := snap.RowsFor(sub.County, sub.State)
	res := UpdateResult{Email: sub.Email, Date: date, Rows: len(rows)}

	key := dedupe.Key(string(kind), sub.Email, date)
	if s.deduper.SeenAndRecord(ctx, key) {
		metrics.RecordMailDuplicate()
		res.Duplicate = true
		return res, nil
	}

	msg, err := mail.Update(kind, mail.Recipient{FirstName: sub.FirstName, LastName: sub.LastName, Email: sub.Email}, rows, s.clock.Now())
	if err != nil {
		s.deduper.Unrecord(ctx, key)
		return UpdateResult{}, err
	}
	if err := s.enqueue(ctx, msg); err != nil {
		s.deduper.Unrecord(ctx, key)
		return UpdateResult{}, err
	}
	res.Queued = true
	return res, nil
}

func (s *Service) enqueue(ctx context.Context, m mail.Message) error {
	err := s.outbox.Enqueue(ctx, m)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, outbox.ErrQueueFull), errors.Is(err, outbox.ErrQueueClosed):
		s.logger.Warn(ctx, "outbox rejected message",
			logger.String("kind", string(m.Kind)),
			logger.Error(err),
		)
		return fmt.Errorf("%w: %v", ErrBackpressure, err)
	default:
		return err
	}
}

// forgetFailedUpdate lets a failed update be requested again.
func (s *Service) forgetFailedUpdate(ctx context.Context, m mail.Message, _ error) {
	if m.Kind == mail.KindConfirmation {
		return
	}
	snap := s.snapshot.Load()
	if snap == nil {
		return
	}
	s.deduper.Unrecord(ctx, dedupe.Key(string(m.Kind), m.To, snap.Date().Format(model.DateLayout)))
}

func (s *Service) isStarted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"dedupeSize":  s.dedupeSize,
	}

	if snap := s.snapshot.Load(); snap != nil {
		stats["snapshotDate"] = snap.Date().Format(model.DateLayout)
		stats["snapshotBuiltAt"] = snap.BuiltAt()
		stats["feedRows"] = snap.FeedRows()
		stats["derivedRows"] = len(snap.rows)
		stats["droppedRows"] = snap.Dropped()
		misses := make(map[string]int, len(model.Metrics))
		for _, m := range model.Metrics {
			misses[string(m)] = snap.JoinMisses(m)
		}
		stats["joinMisses"] = misses
	}

	if s.started {
		subscribers := s.store.Count(ctx)
		stats["subscribers"] = subscribers
		stats["outboxLength"] = s.outbox.Len(ctx)
		stats["mailSent"] = s.pool.Sent()
		stats["mailFailed"] = s.pool.Failed()
		stats["dedupeEntries"] = s.deduper.Size()
		if st, ok := s.mailer.(interface{ State() string }); ok {
			stats["smtpCircuit"] = st.State()
		}
		metrics.UpdateSubscriberCount(subscribers)
	}
	return stats
}

func normalize(req SubscribeRequest) SubscribeRequest {
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	req.Email = normalizeEmail(req.Email)
	req.County = strings.TrimSpace(req.County)
	req.State = strings.TrimSpace(req.State)
	return req
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func formError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		if fe.Tag() == "email" {
			return &ValidationError{Field: "email", Message: MsgInvalidEmail, Err: err}
		}
		return &ValidationError{Field: strings.ToLower(fe.Field()), Message: MsgMissingFields, Err: err}
	}
	return &ValidationError{Message: MsgMissingFields, Err: err}
}
