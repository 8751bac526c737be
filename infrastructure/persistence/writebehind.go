package persistence

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"careflow-backend/application/ports"
	"careflow-backend/pkg/metrics"
)

// DefaultWriteDebounce is the window writes are coalesced over
const DefaultWriteDebounce = 300 * time.Millisecond

// tombstone marks a buffered Remove
var tombstone = []byte(nil)

// WriteBehindStore wraps a KeyValueStore with a debounced write buffer.
// Sets and Removes land in the buffer and are flushed together once writes
// go quiet for the debounce window, so a burst of canvas mutations costs
// one store round-trip per key instead of one per event. Reads see the
// buffer first, which keeps the store read-your-writes consistent.
//
// Close flushes everything still pending; shutdown never drops writes.
type WriteBehindStore struct {
	inner    ports.KeyValueStore
	debounce time.Duration
	metrics  *metrics.Metrics
	logger   *zap.Logger

	mu      sync.Mutex
	pending map[string][]byte
	removed map[string]bool
	timer   *time.Timer
	closed  bool
}

// NewWriteBehindStore wraps inner with the debounced buffer
func NewWriteBehindStore(inner ports.KeyValueStore, debounce time.Duration, m *metrics.Metrics, logger *zap.Logger) *WriteBehindStore {
	if debounce <= 0 {
		debounce = DefaultWriteDebounce
	}
	return &WriteBehindStore{
		inner:    inner,
		debounce: debounce,
		metrics:  m,
		logger:   logger,
		pending:  make(map[string][]byte),
		removed:  make(map[string]bool),
	}
}

// Get implements ports.KeyValueStore. Buffered writes win over the store.
func (s *WriteBehindStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	if s.removed[key] {
		s.mu.Unlock()
		return nil, false, nil
	}
	if value, ok := s.pending[key]; ok {
		out := make([]byte, len(value))
		copy(out, value)
		s.mu.Unlock()
		return out, true, nil
	}
	s.mu.Unlock()

	return s.inner.Get(ctx, key)
}

// Set implements ports.KeyValueStore. The write is buffered and the flush
// timer reset; a second Set on the same key inside the window replaces the
// buffered value.
func (s *WriteBehindStore) Set(ctx context.Context, key string, value []byte) error {
	stored := make([]byte, len(value))
	copy(stored, value)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return s.inner.Set(ctx, key, stored)
	}

	if _, already := s.pending[key]; already {
		s.metrics.StoreWriteCoalesced.Inc()
	}
	s.pending[key] = stored
	delete(s.removed, key)
	s.scheduleLocked()
	return nil
}

// Remove implements ports.KeyValueStore. Removes are buffered like writes.
func (s *WriteBehindStore) Remove(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return s.inner.Remove(ctx, key)
	}

	delete(s.pending, key)
	s.removed[key] = true
	s.scheduleLocked()
	return nil
}

// Flush writes everything pending to the inner store immediately
func (s *WriteBehindStore) Flush(ctx context.Context) error {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	pending := s.pending
	removed := s.removed
	s.pending = make(map[string][]byte)
	s.removed = make(map[string]bool)
	s.mu.Unlock()

	var firstErr error
	for key, value := range pending {
		if err := s.inner.Set(ctx, key, value); err != nil {
			s.metrics.StoreWrites.WithLabelValues("error").Inc()
			s.logger.Error("flush write failed", zap.String("key", key), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		s.metrics.StoreWrites.WithLabelValues("ok").Inc()
	}
	for key := range removed {
		if err := s.inner.Remove(ctx, key); err != nil {
			s.metrics.StoreWrites.WithLabelValues("error").Inc()
			s.logger.Error("flush remove failed", zap.String("key", key), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		s.metrics.StoreWrites.WithLabelValues("ok").Inc()
	}
	return firstErr
}

// Close flushes pending writes and puts the store into pass-through mode
func (s *WriteBehindStore) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return s.Flush(ctx)
}

// scheduleLocked resets the trailing-edge flush timer. Caller holds s.mu.
func (s *WriteBehindStore) scheduleLocked() {
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.debounce, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.Flush(ctx); err != nil {
			s.logger.Error("debounced flush failed", zap.Error(err))
		}
	})
}
