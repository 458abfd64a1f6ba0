// Package postgres persists coverage documents in PostgreSQL, one
// JSONB document per figure.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/zimaxnet/orb-image-harvester/internal/harvest"
)

// pool is the subset of pgxpool.Pool the store needs; pgxmock
// satisfies it in tests.
type pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// CoverageStore implements harvest.CoverageStore on PostgreSQL.
// Documents are wholesale-replaced on conflict, never patched.
type CoverageStore struct {
	db     pool
	logger *zap.Logger
}

// NewCoverageStore connects a pool and verifies the connection.
func NewCoverageStore(ctx context.Context, dsn string, logger *zap.Logger) (*CoverageStore, error) {
	db, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &CoverageStore{db: db, logger: logger}, nil
}

// NewCoverageStoreWithPool wires an existing pool, used by tests.
func NewCoverageStoreWithPool(db pool, logger *zap.Logger) *CoverageStore {
	return &CoverageStore{db: db, logger: logger}
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS figure_coverage (
	figure_name    TEXT        NOT NULL,
	category       TEXT        NOT NULL,
	epoch          TEXT        NOT NULL,
	doc            JSONB       NOT NULL,
	total_items    INT         NOT NULL,
	fallback_items INT         NOT NULL,
	updated_at     TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (figure_name, category, epoch)
)`

// EnsureSchema creates the coverage table if it is missing.
func (s *CoverageStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

const upsertSQL = `
INSERT INTO figure_coverage (figure_name, category, epoch, doc, total_items, fallback_items, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (figure_name, category, epoch)
DO UPDATE SET doc = EXCLUDED.doc,
              total_items = EXCLUDED.total_items,
              fallback_items = EXCLUDED.fallback_items,
              updated_at = EXCLUDED.updated_at`

// Upsert replaces the figure's document in a single statement.
func (s *CoverageStore) Upsert(ctx context.Context, doc harvest.CoverageDocument) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal coverage doc: %w", err)
	}
	key := doc.FigureName + "/" + doc.Category + "/" + doc.Epoch
	if _, err := s.db.Exec(ctx, upsertSQL,
		doc.FigureName, doc.Category, doc.Epoch,
		payload, doc.TotalItems, fallbackCount(doc), doc.LastUpdated,
	); err != nil {
		return &harvest.StoreWriteError{FigureKey: key, Err: err}
	}
	return nil
}

// Get loads one figure's document.
func (s *CoverageStore) Get(ctx context.Context, name, category, epoch string) (harvest.CoverageDocument, error) {
	var payload []byte
	err := s.db.QueryRow(ctx,
		`SELECT doc FROM figure_coverage WHERE figure_name = $1 AND category = $2 AND epoch = $3`,
		name, category, epoch,
	).Scan(&payload)
	if err != nil {
		return harvest.CoverageDocument{}, fmt.Errorf("load coverage doc: %w", err)
	}
	var doc harvest.CoverageDocument
	if err := json.Unmarshal(payload, &doc); err != nil {
		return harvest.CoverageDocument{}, fmt.Errorf("decode coverage doc: %w", err)
	}
	return doc, nil
}

// Report aggregates coverage across every stored figure.
func (s *CoverageStore) Report(ctx context.Context) (harvest.CoverageReport, error) {
	report := harvest.CoverageReport{PerSlot: make(map[harvest.Slot]int)}

	err := s.db.QueryRow(ctx,
		`SELECT COUNT(*), COALESCE(SUM(total_items), 0), COALESCE(SUM(fallback_items), 0) FROM figure_coverage`,
	).Scan(&report.Figures, &report.TotalItems, &report.Fallbacks)
	if err != nil {
		return harvest.CoverageReport{}, fmt.Errorf("aggregate coverage: %w", err)
	}

	rows, err := s.db.Query(ctx, `
SELECT counts.key, COALESCE(SUM(counts.value::int), 0)
FROM figure_coverage, jsonb_each_text(doc->'coverageCounts') AS counts
GROUP BY counts.key`)
	if err != nil {
		return harvest.CoverageReport{}, fmt.Errorf("aggregate slots: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			slot  string
			count int
		)
		if err := rows.Scan(&slot, &count); err != nil {
			return harvest.CoverageReport{}, fmt.Errorf("scan slot count: %w", err)
		}
		report.PerSlot[harvest.Slot(slot)] = count
	}
	if err := rows.Err(); err != nil {
		return harvest.CoverageReport{}, fmt.Errorf("iterate slot counts: %w", err)
	}
	return report, nil
}

// Ping verifies connectivity for health checks.
func (s *CoverageStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close releases the pool.
func (s *CoverageStore) Close() {
	s.db.Close()
}

func fallbackCount(doc harvest.CoverageDocument) int {
	var n int
	for _, items := range doc.Slots {
		for _, item := range items {
			if item.Priority == harvest.PlaceholderPriority {
				n++
			}
		}
	}
	return n
}
