// Package store persists replication state, flattened invoice rows and sync
// run history. Engine and API code depend on the small interfaces below, never
// on a concrete backend, so they can be tested without a running database.
package store

import (
	"context"
	"time"

	domain "github.com/donaldgifford/tap-paypal/pkg/types"
)

// StateStore keeps the replication bookmark of each stream.
type StateStore interface {
	// GetBookmark returns the persisted bookmark for stream, or nil when the
	// stream has never been synced.
	GetBookmark(ctx context.Context, stream string) (*domain.Bookmark, error)
	SaveBookmark(ctx context.Context, stream, replicationKey, value string) error
}

// RowStore writes flattened invoice rows idempotently by primary key.
type RowStore interface {
	UpsertInvoiceRows(ctx context.Context, rows []domain.FlatRow) error
}

// RowReader queries stored invoice rows.
type RowReader interface {
	ListInvoiceRows(ctx context.Context, q *RowQuery) ([]domain.FlatRow, int, error)
}

// RunStore records sync run history.
type RunStore interface {
	InsertSyncRun(ctx context.Context, run *domain.SyncRun) error
	CompleteSyncRun(ctx context.Context, run *domain.SyncRun) error
	ListSyncRuns(ctx context.Context, limit int) ([]domain.SyncRun, error)
	RecoverStaleSyncRuns(ctx context.Context, olderThan time.Duration) (int, error)
}

// Locker serializes syncs across service replicas sharing one database.
type Locker interface {
	AcquireSyncLock(ctx context.Context, holder string, ttl time.Duration) (bool, error)
	ReleaseSyncLock(ctx context.Context, holder string) error
}

// RowQuery defines optional filters for invoice row queries.
type RowQuery struct {
	InvoiceID    *string
	Status       *string
	Kind         *string
	UpdatedSince *time.Time
	Limit        int // default 100
	Offset       int
}
