// Package snapshot exposes the read-only business records the alert engine
// evaluates. Each Source can fetch the current rows from the backend or
// return the last copy it fetched; callers choose which, explicitly.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Acontraveta/Vanspace-Workshop-sub001/internal/database"
	"github.com/Acontraveta/Vanspace-Workshop-sub001/internal/logger"
)

// Backend table names
const (
	TableLeads     = "leads"
	TableQuotes    = "presupuestos"
	TableProjects  = "produccion_proyectos"
	TableTasks     = "produccion_tareas"
	TablePurchases = "compras"
	TableStock     = "stock"
)

// Cache keeps the last good payload per table
type Cache interface {
	Save(ctx context.Context, source string, payload []byte, records int, fetchedAt time.Time) error
	Load(ctx context.Context, source string) (*database.SnapshotEntry, error)
}

// Source is one backend table decoded into T
type Source[T any] struct {
	table   string
	fetcher Fetcher
	cache   Cache
	now     func() time.Time
}

// NewSource creates a source for table. cache may be nil.
func NewSource[T any](table string, fetcher Fetcher, cache Cache) *Source[T] {
	return &Source[T]{table: table, fetcher: fetcher, cache: cache, now: time.Now}
}

// Table returns the backend table name
func (s *Source[T]) Table() string {
	return s.table
}

// Fetch downloads and decodes the current rows. A successful fetch
// replaces the cached copy.
func (s *Source[T]) Fetch(ctx context.Context) ([]T, error) {
	body, err := s.fetcher.FetchTable(ctx, s.table)
	if err != nil {
		return nil, err
	}
	rows, err := s.decode(body)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Save(ctx, s.table, body, len(rows), s.now()); err != nil {
			logger.Warn("failed to cache snapshot", zap.String("table", s.table), zap.Error(err))
		}
	}
	return rows, nil
}

// decode splits the payload into rows and decodes each one on its own.
// Rows that do not fit T are skipped so one bad record cannot hide the
// rest of the table. Only a payload that is not a JSON array fails.
func (s *Source[T]) decode(body []byte) ([]T, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.table, err)
	}
	rows := make([]T, 0, len(raw))
	skipped := 0
	for i, item := range raw {
		var row T
		if err := json.Unmarshal(item, &row); err != nil {
			skipped++
			logger.Debug("skipping malformed record",
				zap.String("table", s.table),
				zap.Int("index", i),
				zap.Error(err))
			continue
		}
		rows = append(rows, row)
	}
	if skipped > 0 {
		logger.Warn("skipped malformed records",
			zap.String("table", s.table),
			zap.Int("skipped", skipped),
			zap.Int("decoded", len(rows)))
	}
	return rows, nil
}

// CachedOrDefault returns the last fetched rows, or nil when none are usable
func (s *Source[T]) CachedOrDefault(ctx context.Context) []T {
	if s.cache == nil {
		return nil
	}
	entry, err := s.cache.Load(ctx, s.table)
	if err != nil {
		if !errors.Is(err, database.ErrSnapshotNotFound) {
			logger.Warn("failed to read cached snapshot", zap.String("table", s.table), zap.Error(err))
		}
		return nil
	}
	rows, err := s.decode([]byte(entry.Payload))
	if err != nil {
		logger.Warn("discarding unreadable cached snapshot", zap.String("table", s.table), zap.Error(err))
		return nil
	}
	logger.Debug("using cached snapshot",
		zap.String("table", s.table),
		zap.Int("records", len(rows)),
		zap.Time("fetched_at", entry.FetchedAt))
	return rows
}

// Load prefers fresh rows and falls back to the cached copy. The boolean
// reports whether the rows are fresh.
func Load[T any](ctx context.Context, s *Source[T]) ([]T, bool) {
	rows, err := s.Fetch(ctx)
	if err == nil {
		return rows, true
	}
	logger.Warn("snapshot fetch failed, using cached copy", zap.String("table", s.table), zap.Error(err))
	return s.CachedOrDefault(ctx), false
}

// Sources groups the tables the alert engine reads
type Sources struct {
	Leads     *Source[database.Lead]
	Quotes    *Source[database.Quote]
	Projects  *Source[database.ProductionProject]
	Tasks     *Source[database.ProductionTask]
	Purchases *Source[database.PurchaseItem]
	Stock     *Source[database.StockItem]
}

// NewSources wires every table to the same fetcher and cache
func NewSources(fetcher Fetcher, cache Cache) *Sources {
	return &Sources{
		Leads:     NewSource[database.Lead](TableLeads, fetcher, cache),
		Quotes:    NewSource[database.Quote](TableQuotes, fetcher, cache),
		Projects:  NewSource[database.ProductionProject](TableProjects, fetcher, cache),
		Tasks:     NewSource[database.ProductionTask](TableTasks, fetcher, cache),
		Purchases: NewSource[database.PurchaseItem](TablePurchases, fetcher, cache),
		Stock:     NewSource[database.StockItem](TableStock, fetcher, cache),
	}
}
