package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// ErrSnapshotNotFound is returned when nothing was ever cached for a source
var ErrSnapshotNotFound = errors.New("snapshot not cached")

// SnapshotCache stores the last successfully fetched payload per source
type SnapshotCache struct {
	db *gorm.DB
}

// NewSnapshotCache creates a cache on db. The table must already exist.
func NewSnapshotCache(db *gorm.DB) *SnapshotCache {
	return &SnapshotCache{db: db}
}

// Save replaces the cached payload of source
func (c *SnapshotCache) Save(ctx context.Context, source string, payload []byte, records int, fetchedAt time.Time) error {
	entry := SnapshotEntry{
		Source:    source,
		Payload:   string(payload),
		Records:   records,
		FetchedAt: fetchedAt,
	}
	if err := c.db.WithContext(ctx).Save(&entry).Error; err != nil {
		return fmt.Errorf("failed to cache snapshot %s: %w", source, err)
	}
	return nil
}

// Load returns the cached entry of source
func (c *SnapshotCache) Load(ctx context.Context, source string) (*SnapshotEntry, error) {
	var entry SnapshotEntry
	err := c.db.WithContext(ctx).Where("source = ?", source).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot %s: %w", source, err)
	}
	return &entry, nil
}
