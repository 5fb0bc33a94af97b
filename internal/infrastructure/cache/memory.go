package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Memory tier defaults
const (
	DefaultMemoryTTL       = 5 * time.Minute
	DefaultMemoryMaxKeys   = 10000
	defaultCleanupInterval = time.Minute
)

// Store is one cache tier
type Store interface {
	Get(ctx context.Context, key string) (*Entry, bool, error)
	Set(ctx context.Context, key string, e *Entry) error
	Delete(ctx context.Context, key string) error
	DeletePrefix(ctx context.Context, prefix string) (int, error)
}

// MemoryStore is a process-local Store bounded by a key count.
// When full it evicts the entry that expires first.
type MemoryStore struct {
	mu              sync.RWMutex
	entries         map[string]*Entry
	maxKeys         int
	cleanupInterval time.Duration
	logger          *zap.Logger
	now             func() time.Time
	stopCh          chan struct{}
	wg              sync.WaitGroup
	closeOnce       sync.Once
}

// MemoryStoreOption configures a MemoryStore
type MemoryStoreOption func(*MemoryStore)

// WithMaxKeys bounds the number of entries held in memory
func WithMaxKeys(n int) MemoryStoreOption {
	return func(s *MemoryStore) {
		if n > 0 {
			s.maxKeys = n
		}
	}
}

// WithCleanupInterval sets how often expired entries are swept
func WithCleanupInterval(d time.Duration) MemoryStoreOption {
	return func(s *MemoryStore) {
		if d > 0 {
			s.cleanupInterval = d
		}
	}
}

// WithMemoryLogger sets the logger for the memory store
func WithMemoryLogger(logger *zap.Logger) MemoryStoreOption {
	return func(s *MemoryStore) {
		s.logger = logger
	}
}

func withMemoryClock(now func() time.Time) MemoryStoreOption {
	return func(s *MemoryStore) {
		s.now = now
	}
}

// NewMemoryStore creates a memory store and starts its cleanup loop
func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	s := &MemoryStore{
		entries:         make(map[string]*Entry),
		maxKeys:         DefaultMemoryMaxKeys,
		cleanupInterval: defaultCleanupInterval,
		logger:          zap.NewNop(),
		now:             time.Now,
		stopCh:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.wg.Add(1)
	go s.cleanupLoop()

	return s
}

// Get returns a usable entry for key
func (s *MemoryStore) Get(_ context.Context, key string) (*Entry, bool, error) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok || !e.IsUsable(s.now()) {
		return nil, false, nil
	}
	return e, true, nil
}

// Set stores an entry, evicting the soonest-expiring entry when full
func (s *MemoryStore) Set(_ context.Context, key string, e *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[key]; !exists && len(s.entries) >= s.maxKeys {
		s.evictLocked()
	}
	s.entries[key] = e
	return nil
}

// evictLocked drops expired entries, or the soonest-expiring one if none are expired
func (s *MemoryStore) evictLocked() {
	now := s.now()
	var (
		victim   string
		earliest time.Time
	)
	for k, e := range s.entries {
		if !e.IsUsable(now) {
			delete(s.entries, k)
			continue
		}
		if victim == "" || e.StaleUntil.Before(earliest) {
			victim, earliest = k, e.StaleUntil
		}
	}
	if len(s.entries) >= s.maxKeys && victim != "" {
		delete(s.entries, victim)
	}
}

// Delete removes one key
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	return nil
}

// DeletePrefix removes every key starting with prefix
func (s *MemoryStore) DeletePrefix(_ context.Context, prefix string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for k := range s.entries {
		if strings.HasPrefix(k, prefix) {
			delete(s.entries, k)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of entries held
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Close stops the cleanup loop. Safe to call multiple times.
func (s *MemoryStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopCh)
		s.wg.Wait()
	})
	return nil
}

func (s *MemoryStore) cleanupLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			func() {
				defer func() {
					if r := recover(); r != nil {
						s.logger.Error("Panic in cache cleanup", zap.Any("panic", r))
					}
				}()
				if n := s.cleanup(); n > 0 {
					s.logger.Debug("Cache cleanup completed", zap.Int("removed", n))
				}
			}()
		}
	}
}

func (s *MemoryStore) cleanup() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for k, e := range s.entries {
		if !e.IsUsable(now) {
			delete(s.entries, k)
			removed++
		}
	}
	return removed
}

var _ Store = (*MemoryStore)(nil)
