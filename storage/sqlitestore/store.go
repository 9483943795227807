// Package sqlitestore persists store items in a SQLite database through
// GORM. One row holds one item as a JSON document plus its eTag; writes
// honor the same optimistic concurrency rules as the in-memory backend.
package sqlitestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/hupe1980/botmesh/core"
)

type itemRow struct {
	Key       string `gorm:"primaryKey;size:512"`
	Document  string
	ETag      string
	UpdatedAt time.Time
}

func (itemRow) TableName() string { return "store_items" }

// Store is a Storage implementation backed by a SQLite file (or ":memory:").
type Store struct {
	db *gorm.DB
}

// New opens or creates the database at dsn and migrates the schema.
func New(dsn string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	store := &Store{db: db}
	if err := db.AutoMigrate(&itemRow{}); err != nil {
		return nil, fmt.Errorf("migrate sqlite store: %w", err)
	}
	return store, nil
}

// Read returns the stored items for the given keys. Missing keys are
// absent from the result. The stored eTag is surfaced inside each item.
func (s *Store) Read(ctx context.Context, keys []string) (map[string]core.StoreItem, error) {
	var rows []itemRow
	if err := s.db.WithContext(ctx).Where("key IN ?", keys).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("sqlite read: %w", err)
	}
	result := make(map[string]core.StoreItem, len(rows))
	for _, row := range rows {
		var item core.StoreItem
		if err := json.Unmarshal([]byte(row.Document), &item); err != nil {
			return nil, fmt.Errorf("sqlite read %q: %w", row.Key, err)
		}
		item[core.ETagKey] = row.ETag
		result[row.Key] = item
	}
	return result, nil
}

// Write upserts the given items inside one transaction. An item whose eTag
// is neither absent, the wildcard, nor the stored value fails the whole
// batch.
func (s *Store) Write(ctx context.Context, changes map[string]core.StoreItem) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for key, item := range changes {
			var current itemRow
			err := tx.Where("key = ?", key).Take(&current).Error
			exists := err == nil
			if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("sqlite write %q: %w", key, err)
			}

			if tag, ok := item[core.ETagKey].(string); ok && tag != core.ETagWildcard && exists && current.ETag != tag {
				return &ConflictError{Key: key, Expected: tag, Actual: current.ETag}
			}

			document := make(core.StoreItem, len(item))
			for k, v := range item {
				if k == core.ETagKey {
					continue
				}
				document[k] = v
			}
			encoded, err := json.Marshal(document)
			if err != nil {
				return fmt.Errorf("sqlite write %q: %w", key, err)
			}

			row := itemRow{
				Key:       key,
				Document:  string(encoded),
				ETag:      nextETag(current.ETag),
				UpdatedAt: time.Now().UTC(),
			}
			if err := tx.Save(&row).Error; err != nil {
				return fmt.Errorf("sqlite write %q: %w", key, err)
			}
		}
		return nil
	})
}

// Delete removes the given keys. Missing keys are ignored.
func (s *Store) Delete(ctx context.Context, keys []string) error {
	if err := s.db.WithContext(ctx).Where("key IN ?", keys).Delete(&itemRow{}).Error; err != nil {
		return fmt.Errorf("sqlite delete: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	return sqlDB.Close()
}

func nextETag(current string) string {
	n, _ := strconv.ParseUint(current, 10, 64)
	return strconv.FormatUint(n+1, 10)
}

// ConflictError reports an optimistic concurrency failure on Write.
type ConflictError struct {
	Key      string
	Expected string
	Actual   string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("sqlite write %q: eTag conflict, expected %q got %q", e.Key, e.Expected, e.Actual)
}
