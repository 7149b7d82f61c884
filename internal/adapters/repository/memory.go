package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/StoneBodini/Covid-19-Live-Analysis/pkg/metrics"
)

// MemoryStore keeps subscribers in process memory. Records are lost on exit.
type MemoryStore struct {
	mu      sync.RWMutex
	byEmail map[string]Subscriber
	nextID  int64
	clock   clockwork.Clock

	metricsUpdateInterval time.Duration
	wg                    sync.WaitGroup
	stopChan              chan struct{}
	closeOnce             sync.Once
}

// NewMemoryStore constructs an empty store and starts its metrics updater.
func NewMemoryStore(ctx context.Context, opts ...Option) *MemoryStore {
	s := &MemoryStore{
		byEmail:               make(map[string]Subscriber),
		clock:                 clockwork.NewRealClock(),
		metricsUpdateInterval: 5 * time.Second,
		stopChan:              make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.startMetricsUpdater(ctx)
	return s
}

func (s *MemoryStore) Create(_ context.Context, sub Subscriber) (Subscriber, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byEmail[sub.Email]; exists {
		return Subscriber{}, ErrDuplicateEmail
	}
	s.nextID++
	sub.ID = s.nextID
	if sub.PublicID == "" {
		sub.PublicID = uuid.NewString()
	}
	sub.CreatedAt = s.clock.Now().UTC()
	s.byEmail[sub.Email] = sub
	return sub, nil
}

func (s *MemoryStore) GetByEmail(_ context.Context, email string) (Subscriber, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sub, ok := s.byEmail[email]
	if !ok {
		return Subscriber{}, ErrNotFound
	}
	return sub, nil
}

func (s *MemoryStore) DeleteByEmail(_ context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byEmail[email]; !ok {
		return ErrNotFound
	}
	delete(s.byEmail, email)
	return nil
}

// List orders by insertion, which is also CreatedAt order.
func (s *MemoryStore) List(_ context.Context) ([]Subscriber, error) {
	s.mu.RLock()
	out := make([]Subscriber, 0, len(s.byEmail))
	for _, sub := range s.byEmail {
		out = append(out, sub)
	}
	s.mu.RUnlock()

	sortByID(out)
	return out, nil
}

func (s *MemoryStore) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byEmail)
}

// Close stops the metrics updater.
func (s *MemoryStore) Close() error {
	s.closeOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()
	return nil
}

func (s *MemoryStore) startMetricsUpdater(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.metricsUpdateInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				metrics.UpdateSubscriberCount(s.Count(ctx))
			}
		}
	}()
}

func sortByID(subs []Subscriber) {
	sort.Slice(subs, func(i, j int) bool { return subs[i].ID < subs[j].ID })
}
