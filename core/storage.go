package core

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// ETagWildcard requests last-writer-wins optimistic concurrency. Every
// state scope save stamps it onto the stored object.
const ETagWildcard = "*"

// ETagKey is the reserved field carrying the optimistic concurrency tag
// inside a stored object.
const ETagKey = "eTag"

// StoreItem is one named JSON blob as the storage contract sees it. The
// optional eTag field rides inside the object itself.
type StoreItem = map[string]any

// Storage is the minimal read/write/delete contract the state layer
// depends on. A key absent from Read's result map is simply missing, not
// an error. Implementations that support optimistic concurrency reject a
// Write whose item eTag is neither absent, the wildcard, nor the stored
// value.
type Storage interface {
	Read(ctx context.Context, keys []string) (map[string]StoreItem, error)
	Write(ctx context.Context, changes map[string]StoreItem) error
	Delete(ctx context.Context, keys []string) error
}

// StorageKeyFactory derives the storage key for a scope from the current
// turn, e.g. "{channelId}/conversations/{conversationId}".
type StorageKeyFactory func(tc *TurnContext) (string, error)

// CalculateChangeHash computes a stable content hash for a store item,
// ignoring its eTag field. Scopes compare the load-time hash against the
// live hash to decide whether a save needs a storage write.
func CalculateChangeHash(item StoreItem) string {
	if item == nil {
		return ""
	}
	stripped := make(map[string]any, len(item))
	for k, v := range item {
		if k == ETagKey {
			continue
		}
		stripped[k] = v
	}
	// json.Marshal sorts map keys, making the encoding deterministic.
	encoded, err := json.Marshal(stripped)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(encoded)
	return hex.EncodeToString(sum[:])
}
