// Package store keeps recent compaction inputs and outputs in memory.
//
// DESIGN: Dual TTL, keyed by content ID (hash of the raw input):
//   - Original text: short TTL - only needed while a client may ask for the
//     full output behind a compacted result
//   - Compacted result: long TTL - identical terminal dumps are compacted once
//
// Only MemoryStore is implemented. For multi-instance deployments,
// implement Store with Redis or similar.
package store

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/compresr/squeeze/internal/compactor"
)

// Default TTL values.
const (
	DefaultOriginalTTL  = 5 * time.Minute
	DefaultCompactedTTL = 24 * time.Hour

	cleanupInterval = 5 * time.Minute
	idPrefix        = "sq_"
)

// ContentID derives the store key for a raw input.
func ContentID(text string) string {
	sum := sha256.Sum256([]byte(text))
	return idPrefix + hex.EncodeToString(sum[:8])
}

// Compaction is a cached result together with what the pipeline reported
// about it, so a cache hit describes the output exactly as the first run did.
type Compaction struct {
	compactor.Result
	Fallback  bool // tail window was used
	KeptLines int  // lines in the output
}

// Store holds originals and compacted results.
type Store interface {
	// Set stores original text with the short TTL.
	Set(key, value string) error

	// Get retrieves original text by key.
	Get(key string) (string, bool)

	// Delete removes the original and the compacted result for key.
	Delete(key string) error

	// SetCompacted stores a compacted result with the long TTL.
	SetCompacted(key string, c Compaction) error

	// GetCompacted retrieves a cached compacted result.
	GetCompacted(key string) (Compaction, bool)

	// Len returns the number of live originals and compacted results.
	Len() (originals, compacted int)

	// Close cleans up resources.
	Close() error
}

// MemoryStore is an in-memory Store with periodic expiry.
type MemoryStore struct {
	data         map[string]entry
	compacted    map[string]resultEntry
	mu           sync.RWMutex
	originalTTL  time.Duration
	compactedTTL time.Duration
	stopChan     chan struct{}
	stopped      bool
	now          func() time.Time
}

type entry struct {
	value     string
	expiresAt time.Time
}

type resultEntry struct {
	result    Compaction
	expiresAt time.Time
}

// NewMemoryStore creates a store using ttl for both originals and results.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return NewMemoryStoreWithDualTTL(ttl, ttl)
}

// NewMemoryStoreWithDualTTL creates a store with separate TTLs.
// Zero TTLs fall back to the defaults.
func NewMemoryStoreWithDualTTL(originalTTL, compactedTTL time.Duration) *MemoryStore {
	if originalTTL <= 0 {
		originalTTL = DefaultOriginalTTL
	}
	if compactedTTL <= 0 {
		compactedTTL = DefaultCompactedTTL
	}
	s := &MemoryStore{
		data:         make(map[string]entry),
		compacted:    make(map[string]resultEntry),
		originalTTL:  originalTTL,
		compactedTTL: compactedTTL,
		stopChan:     make(chan struct{}),
		now:          time.Now,
	}

	go s.cleanup()

	return s
}

// Set stores original text.
func (s *MemoryStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return nil
	}

	s.data[key] = entry{value: value, expiresAt: s.now().Add(s.originalTTL)}
	return nil
}

// Get retrieves original text if present and not expired.
func (s *MemoryStore) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, exists := s.data[key]
	if !exists || s.now().After(e.expiresAt) {
		return "", false
	}
	return e.value, true
}

// Delete removes both entries for key.
func (s *MemoryStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, key)
	delete(s.compacted, key)
	return nil
}

// SetCompacted stores a compacted result.
func (s *MemoryStore) SetCompacted(key string, c Compaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return nil
	}

	s.compacted[key] = resultEntry{result: c, expiresAt: s.now().Add(s.compactedTTL)}
	return nil
}

// GetCompacted retrieves a cached result.
func (s *MemoryStore) GetCompacted(key string) (Compaction, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, exists := s.compacted[key]
	if !exists || s.now().After(e.expiresAt) {
		return Compaction{}, false
	}
	return e.result, true
}

// Len counts live entries.
func (s *MemoryStore) Len() (originals, compacted int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now()
	for _, e := range s.data {
		if !now.After(e.expiresAt) {
			originals++
		}
	}
	for _, e := range s.compacted {
		if !now.After(e.expiresAt) {
			compacted++
		}
	}
	return originals, compacted
}

// Close stops the cleanup goroutine and clears data.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.stopped {
		s.stopped = true
		close(s.stopChan)
		s.data = nil
		s.compacted = nil
	}
	return nil
}

func (s *MemoryStore) cleanup() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.evictExpired()
		}
	}
}

func (s *MemoryStore) evictExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	now := s.now()
	for key, e := range s.data {
		if now.After(e.expiresAt) {
			delete(s.data, key)
		}
	}
	for key, e := range s.compacted {
		if now.After(e.expiresAt) {
			delete(s.compacted, key)
		}
	}
}

var _ Store = (*MemoryStore)(nil)
