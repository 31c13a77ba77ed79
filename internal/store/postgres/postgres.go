// Package postgres implements store.Store on PostgreSQL via pgx.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gyaneshwarpardhi/funnelquery/internal/compile"
	"github.com/gyaneshwarpardhi/funnelquery/internal/funnel"
	"github.com/gyaneshwarpardhi/funnelquery/internal/store"
)

// PGStore persists funnels and compilation passes in PostgreSQL.
type PGStore struct {
	db *pgxpool.Pool
}

// New creates a PGStore backed by the given pgx connection pool.
func New(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS funnels (
    id         TEXT PRIMARY KEY,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS funnel_nodes (
    funnel_id TEXT NOT NULL REFERENCES funnels(id) ON DELETE CASCADE,
    id        TEXT NOT NULL,
    label     TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (funnel_id, id)
);

CREATE TABLE IF NOT EXISTS funnel_edges (
    funnel_id TEXT NOT NULL REFERENCES funnels(id) ON DELETE CASCADE,
    id        TEXT NOT NULL,
    from_node TEXT NOT NULL,
    to_node   TEXT NOT NULL,
    params    JSONB NOT NULL DEFAULT '[]',
    PRIMARY KEY (funnel_id, id)
);

CREATE TABLE IF NOT EXISTS compile_passes (
    id         TEXT PRIMARY KEY,
    funnel_id  TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS compiled_queries (
    pass_id  TEXT NOT NULL REFERENCES compile_passes(id) ON DELETE CASCADE,
    edge_id  TEXT NOT NULL,
    slot     TEXT NOT NULL,
    query    TEXT NOT NULL,
    terms    JSONB NOT NULL DEFAULT '[]',
    rewrite  TEXT NOT NULL DEFAULT '',
    degraded BOOLEAN NOT NULL DEFAULT FALSE,
    PRIMARY KEY (pass_id, edge_id, slot)
);

CREATE INDEX IF NOT EXISTS idx_compile_passes_funnel ON compile_passes(funnel_id, created_at DESC);
`

// CreateSchema creates all tables if they don't exist.
func (s *PGStore) CreateSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, schemaSQL)
	return err
}

// SaveFunnel upserts the snapshot: nodes and edges are replaced wholesale
// in one transaction.
func (s *PGStore) SaveFunnel(ctx context.Context, g *funnel.Graph) error {
	id := g.ID()
	if id == "" {
		return fmt.Errorf("store: funnel has no id")
	}
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`INSERT INTO funnels (id, updated_at) VALUES ($1, NOW())
		 ON CONFLICT (id) DO UPDATE SET updated_at = NOW()`, id); err != nil {
		return fmt.Errorf("store: upsert funnel: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM funnel_nodes WHERE funnel_id = $1`, id); err != nil {
		return fmt.Errorf("store: clear nodes: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM funnel_edges WHERE funnel_id = $1`, id); err != nil {
		return fmt.Errorf("store: clear edges: %w", err)
	}
	for _, n := range g.Nodes() {
		if _, err := tx.Exec(ctx,
			`INSERT INTO funnel_nodes (funnel_id, id, label) VALUES ($1, $2, $3)`,
			id, n.ID, n.Label); err != nil {
			return fmt.Errorf("store: insert node %s: %w", n.ID, err)
		}
	}
	for _, e := range g.Edges() {
		params, err := json.Marshal(e.Params)
		if err != nil {
			return fmt.Errorf("store: marshal params for edge %s: %w", e.ID, err)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO funnel_edges (funnel_id, id, from_node, to_node, params) VALUES ($1, $2, $3, $4, $5)`,
			id, e.ID, e.From, e.To, params); err != nil {
			return fmt.Errorf("store: insert edge %s: %w", e.ID, err)
		}
	}
	return tx.Commit(ctx)
}

// SavePass records one batch report and its per-slot compiled queries.
func (s *PGStore) SavePass(ctx context.Context, report *compile.BatchReport) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`INSERT INTO compile_passes (id, funnel_id) VALUES ($1, $2)`,
		report.PassID, report.FunnelID); err != nil {
		return fmt.Errorf("store: insert pass: %w", err)
	}
	for _, sr := range report.Compiled {
		terms, err := json.Marshal(sr.Terms)
		if err != nil {
			return fmt.Errorf("store: marshal terms for %s/%s: %w", sr.EdgeID, sr.Slot, err)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO compiled_queries (pass_id, edge_id, slot, query, terms, rewrite, degraded)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			report.PassID, sr.EdgeID, sr.Slot, sr.Query, terms, sr.Rewrite, sr.Degraded); err != nil {
			return fmt.Errorf("store: insert query %s/%s: %w", sr.EdgeID, sr.Slot, err)
		}
	}
	return tx.Commit(ctx)
}

// ListCompiledQueries returns the compiled queries of the most recent
// pass for a funnel. Returns store.ErrNotFound when no pass exists.
func (s *PGStore) ListCompiledQueries(ctx context.Context, funnelID string) ([]compile.SlotResult, error) {
	var passID string
	err := s.db.QueryRow(ctx,
		`SELECT id FROM compile_passes WHERE funnel_id = $1 ORDER BY created_at DESC LIMIT 1`,
		funnelID,
	).Scan(&passID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("store: latest pass: %w", err)
	}

	rows, err := s.db.Query(ctx,
		`SELECT edge_id, slot, query, terms, rewrite, degraded
		 FROM compiled_queries WHERE pass_id = $1 ORDER BY edge_id, slot`, passID)
	if err != nil {
		return nil, fmt.Errorf("store: list queries: %w", err)
	}
	defer rows.Close()

	out := []compile.SlotResult{}
	for rows.Next() {
		var sr compile.SlotResult
		var terms []byte
		if err := rows.Scan(&sr.EdgeID, &sr.Slot, &sr.Query, &terms, &sr.Rewrite, &sr.Degraded); err != nil {
			return nil, fmt.Errorf("store: scan query: %w", err)
		}
		if err := json.Unmarshal(terms, &sr.Terms); err != nil {
			return nil, fmt.Errorf("store: unmarshal terms: %w", err)
		}
		out = append(out, sr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: rows: %w", err)
	}
	return out, nil
}
