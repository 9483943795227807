package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"

	"github.com/hupe1980/botmesh/core"
)

// MemoryStorage is a volatile Storage implementation keeping items in a
// process local map. It is safe for concurrent access and best suited for
// tests or ephemeral demo servers. Items are deep-copied through a JSON
// round-trip on both read and write, so callers can never mutate stored
// content in place.
type MemoryStorage struct {
	mu    sync.RWMutex
	items map[string]core.StoreItem
	etag  uint64
}

// NewMemoryStorage constructs an empty in-memory storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{items: make(map[string]core.StoreItem)}
}

// Read returns copies of the requested items. Missing keys are simply
// absent from the result.
func (s *MemoryStorage) Read(_ context.Context, keys []string) (map[string]core.StoreItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make(map[string]core.StoreItem, len(keys))
	for _, key := range keys {
		item, ok := s.items[key]
		if !ok {
			continue
		}
		copied, err := cloneItem(item)
		if err != nil {
			return nil, fmt.Errorf("storage read %q: %w", key, err)
		}
		result[key] = copied
	}
	return result, nil
}

// Write stores copies of the given items, enforcing optimistic
// concurrency: an item whose eTag is neither absent, the wildcard, nor the
// currently stored value is rejected.
func (s *MemoryStorage) Write(_ context.Context, changes map[string]core.StoreItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, item := range changes {
		if err := s.checkETagLocked(key, item); err != nil {
			return err
		}
		copied, err := cloneItem(item)
		if err != nil {
			return fmt.Errorf("storage write %q: %w", key, err)
		}
		s.etag++
		copied[core.ETagKey] = strconv.FormatUint(s.etag, 10)
		s.items[key] = copied
	}
	return nil
}

// Delete removes the given keys. Deleting a missing key is not an error.
func (s *MemoryStorage) Delete(_ context.Context, keys []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.items, key)
	}
	return nil
}

func (s *MemoryStorage) checkETagLocked(key string, item core.StoreItem) error {
	tag, ok := item[core.ETagKey].(string)
	if !ok || tag == core.ETagWildcard {
		return nil
	}
	existing, exists := s.items[key]
	if !exists {
		return nil
	}
	if stored, _ := existing[core.ETagKey].(string); stored != tag {
		return &ETagConflictError{Key: key, Expected: tag, Actual: stored}
	}
	return nil
}

// ETagConflictError reports an optimistic concurrency failure on Write.
type ETagConflictError struct {
	Key      string
	Expected string
	Actual   string
}

func (e *ETagConflictError) Error() string {
	return fmt.Sprintf("storage write %q: eTag conflict, expected %q got %q", e.Key, e.Expected, e.Actual)
}

func cloneItem(item core.StoreItem) (core.StoreItem, error) {
	encoded, err := json.Marshal(item)
	if err != nil {
		return nil, err
	}
	var copied core.StoreItem
	if err := json.Unmarshal(encoded, &copied); err != nil {
		return nil, err
	}
	return copied, nil
}
