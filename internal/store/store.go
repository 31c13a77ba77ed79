// Package store persists funnel snapshots and compilation passes. The
// compiler never reads from here during a pass; persistence is strictly a
// consumer of batch reports.
package store

import (
	"context"
	"errors"

	"github.com/gyaneshwarpardhi/funnelquery/internal/compile"
	"github.com/gyaneshwarpardhi/funnelquery/internal/funnel"
)

var (
	// ErrNotFound is returned when a funnel or pass does not exist.
	ErrNotFound = errors.New("store: not found")
)

// Store is the contract for persisting funnels and compiled queries.
type Store interface {
	// Schema
	CreateSchema(ctx context.Context) error

	// Funnels
	SaveFunnel(ctx context.Context, g *funnel.Graph) error

	// Compilation passes
	SavePass(ctx context.Context, report *compile.BatchReport) error
	ListCompiledQueries(ctx context.Context, funnelID string) ([]compile.SlotResult, error)
}
