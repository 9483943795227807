package state

import (
	"fmt"

	"github.com/hupe1980/botmesh/core"
)

// cachedState is what a scope parks in turn state between Load and Save:
// the live object plus the content hash observed at load time.
type cachedState struct {
	state core.StoreItem
	hash  string
}

// Scope manages one persisted state object keyed off the current turn. It
// reads the object into the turn's scoped cache on Load and writes it back
// on Save only when the content actually changed.
//
// Contract:
//   - Load is idempotent within a turn unless force is set.
//   - Save writes if and only if the live hash differs from the load-time
//     hash, or force is set. Every write stamps the eTag wildcard.
//   - Clear replaces the cached object with an empty one and resets the
//     load-time hash, so the following Save always writes.
//   - Delete drops both the cached object and the stored one.
type Scope struct {
	storage    core.Storage
	keyFactory core.StorageKeyFactory
	cacheKey   *core.TurnStateKey
	name       string
}

// NewScope creates a scope over storage. The key factory derives the
// storage key from the turn; the name labels the scope's private cache
// slot for diagnostics.
func NewScope(storage core.Storage, name string, keyFactory core.StorageKeyFactory) *Scope {
	return &Scope{
		storage:    storage,
		keyFactory: keyFactory,
		cacheKey:   core.NewTurnStateKey(name),
		name:       name,
	}
}

// Name returns the scope's diagnostic label.
func (s *Scope) Name() string { return s.name }

// Load reads the scope's object from storage into the turn cache. A
// repeated Load in the same turn is a no-op unless force is set. Missing
// objects materialize as empty ones.
func (s *Scope) Load(tc *core.TurnContext, force bool) (core.StoreItem, error) {
	if cached, ok := tc.TurnState().Get(s.cacheKey).(*cachedState); ok && !force {
		return cached.state, nil
	}
	key, err := s.keyFactory(tc)
	if err != nil {
		return nil, fmt.Errorf("load %s state: %w", s.name, err)
	}
	items, err := s.storage.Read(tc.Context, []string{key})
	if err != nil {
		return nil, fmt.Errorf("load %s state: %w", s.name, err)
	}
	item := items[key]
	if item == nil {
		item = core.StoreItem{}
	}
	cached := &cachedState{state: item, hash: core.CalculateChangeHash(item)}
	tc.TurnState().Set(s.cacheKey, cached)
	return cached.state, nil
}

// Save writes the cached object back to storage when it changed since
// Load, or unconditionally when force is set. A Save without a prior Load
// only does work when forced, in which case it persists an empty object.
func (s *Scope) Save(tc *core.TurnContext, force bool) error {
	cached, _ := tc.TurnState().Get(s.cacheKey).(*cachedState)
	if cached == nil && !force {
		return nil
	}
	if cached == nil {
		cached = &cachedState{state: core.StoreItem{}}
		tc.TurnState().Set(s.cacheKey, cached)
	}
	if !force && cached.hash == core.CalculateChangeHash(cached.state) {
		return nil
	}
	key, err := s.keyFactory(tc)
	if err != nil {
		return fmt.Errorf("save %s state: %w", s.name, err)
	}
	cached.state[core.ETagKey] = core.ETagWildcard
	if err := s.storage.Write(tc.Context, map[string]core.StoreItem{key: cached.state}); err != nil {
		return fmt.Errorf("save %s state: %w", s.name, err)
	}
	cached.hash = core.CalculateChangeHash(cached.state)
	return nil
}

// Clear resets the cached object to empty without touching storage. The
// empty load-time hash guarantees the next Save performs a write even when
// the stored object was already empty.
func (s *Scope) Clear(tc *core.TurnContext) {
	tc.TurnState().Set(s.cacheKey, &cachedState{state: core.StoreItem{}, hash: ""})
}

// Delete removes the scope's object from both the turn cache and storage.
func (s *Scope) Delete(tc *core.TurnContext) error {
	if tc.TurnState().Has(s.cacheKey) {
		tc.TurnState().Delete(s.cacheKey)
	}
	key, err := s.keyFactory(tc)
	if err != nil {
		return fmt.Errorf("delete %s state: %w", s.name, err)
	}
	if err := s.storage.Delete(tc.Context, []string{key}); err != nil {
		return fmt.Errorf("delete %s state: %w", s.name, err)
	}
	return nil
}

// Get returns the cached object without loading, or nil when the scope has
// not been loaded this turn.
func (s *Scope) Get(tc *core.TurnContext) core.StoreItem {
	if cached, ok := tc.TurnState().Get(s.cacheKey).(*cachedState); ok {
		return cached.state
	}
	return nil
}
