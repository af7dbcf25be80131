package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/donaldgifford/tap-paypal/internal/bookmark"
	domain "github.com/donaldgifford/tap-paypal/pkg/types"
)

// PostgresStore implements StateStore, RowStore, RowReader, RunStore and
// Locker using pgxpool (connection-pooled PostgreSQL).
//
// Its methods require live Postgres and are covered by integration tests.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore. Pool sizing comes from the
// pool_max_conns connection string parameter.
func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// Close gracefully shuts down the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping verifies the database connection is alive.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Migrate applies pending SQL schema migrations.
func (s *PostgresStore) Migrate(ctx context.Context) ([]string, error) {
	return RunMigrations(ctx, s.pool)
}

// GetBookmark implements StateStore.
func (s *PostgresStore) GetBookmark(ctx context.Context, stream string) (*domain.Bookmark, error) {
	b := &domain.Bookmark{}
	err := s.pool.QueryRow(ctx, queryGetBookmark, stream).Scan(
		&b.Stream, &b.ReplicationKey, &b.Value, &b.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting bookmark: %w", err)
	}
	return b, nil
}

// SaveBookmark implements StateStore.
func (s *PostgresStore) SaveBookmark(ctx context.Context, stream, replicationKey, value string) error {
	args := pgx.NamedArgs{
		"stream":          stream,
		"replication_key": replicationKey,
		"value":           value,
	}
	if _, err := s.pool.Exec(ctx, querySaveBookmark, args); err != nil {
		return fmt.Errorf("saving bookmark: %w", err)
	}
	return nil
}

// UpsertInvoiceRows inserts or updates rows by (invoice_id, item_name) in a
// single batch. Re-emitted rows overwrite the stored copy.
func (s *PostgresStore) UpsertInvoiceRows(ctx context.Context, rows []domain.FlatRow) error {
	if len(rows) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for i := range rows {
		batch.Queue(queryUpsertInvoiceRow, rowArgs(&rows[i]))
	}

	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("upserting %d invoice rows: %w", len(rows), err)
	}
	return nil
}

// ListInvoiceRows returns stored rows matching q and the total match count.
func (s *PostgresStore) ListInvoiceRows(
	ctx context.Context,
	q *RowQuery,
) ([]domain.FlatRow, int, error) {
	if q == nil {
		q = &RowQuery{}
	}
	dataSQL, countSQL, args := q.ToSQL()

	var total int
	if err := s.pool.QueryRow(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting invoice rows: %w", err)
	}

	rows, err := s.pool.Query(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("querying invoice rows: %w", err)
	}
	defer rows.Close()

	var out []domain.FlatRow
	for rows.Next() {
		var (
			r    domain.FlatRow
			kind string
		)
		if err := rows.Scan(
			&r.InvoiceID, &r.ItemName, &kind, &r.Status,
			&r.InvoiceNumber, &r.InvoiceDate, &r.LastUpdateTime, &r.CurrencyCode,
			&r.Note, &r.Email, &r.RecipientName,
			&r.TotalInvoice, &r.RefundAmount, &r.ItemQty, &r.ItemUnitPrice, &r.ItemTotal,
		); err != nil {
			return nil, 0, fmt.Errorf("scanning invoice row: %w", err)
		}
		r.Kind = domain.RowKind(kind)
		out = append(out, r)
	}

	return out, total, rows.Err()
}

// InsertSyncRun records the start of a sync run. run.ID must be set.
func (s *PostgresStore) InsertSyncRun(ctx context.Context, run *domain.SyncRun) error {
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	if run.Status == "" {
		run.Status = domain.RunStatusRunning
	}

	args := pgx.NamedArgs{
		"id":         run.ID,
		"started_at": run.StartedAt,
		"status":     run.Status,
		"start_date": run.StartDate,
		"end_date":   run.EndDate,
	}
	if _, err := s.pool.Exec(ctx, queryInsertSyncRun, args); err != nil {
		return fmt.Errorf("inserting sync run: %w", err)
	}
	return nil
}

// CompleteSyncRun stores the outcome of a sync run and sets CompletedAt.
func (s *PostgresStore) CompleteSyncRun(ctx context.Context, run *domain.SyncRun) error {
	args := pgx.NamedArgs{
		"id":               run.ID,
		"status":           run.Status,
		"error_text":       run.ErrorText,
		"rows_emitted":     run.RowsEmitted,
		"invoices_skipped": run.Skipped,
		"bookmark":         run.BookmarkTime,
	}

	var completedAt time.Time
	if err := s.pool.QueryRow(ctx, queryCompleteSyncRun, args).Scan(&completedAt); err != nil {
		return fmt.Errorf("completing sync run %s: %w", run.ID, err)
	}
	run.CompletedAt = &completedAt
	return nil
}

// ListSyncRuns returns the most recent sync runs, newest first.
func (s *PostgresStore) ListSyncRuns(ctx context.Context, limit int) ([]domain.SyncRun, error) {
	rows, err := s.pool.Query(ctx, queryListSyncRuns, limit)
	if err != nil {
		return nil, fmt.Errorf("querying sync runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.SyncRun
	for rows.Next() {
		var r domain.SyncRun
		if err := rows.Scan(
			&r.ID, &r.StartedAt, &r.CompletedAt, &r.Status, &r.ErrorText,
			&r.StartDate, &r.EndDate, &r.RowsEmitted, &r.Skipped, &r.BookmarkTime,
		); err != nil {
			return nil, fmt.Errorf("scanning sync run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// RecoverStaleSyncRuns marks any 'running' rows older than olderThan as
// 'crashed', then prunes rows older than 90 days. Returns the number of rows
// marked as crashed.
func (s *PostgresStore) RecoverStaleSyncRuns(
	ctx context.Context,
	olderThan time.Duration,
) (int, error) {
	cutoff := time.Now().Add(-olderThan)

	tag, err := s.pool.Exec(ctx, queryMarkStaleSyncRunsCrashed, cutoff)
	if err != nil {
		return 0, fmt.Errorf("marking stale sync runs crashed: %w", err)
	}
	affected := int(tag.RowsAffected())

	if _, err := s.pool.Exec(ctx, queryDeleteOldSyncRuns); err != nil {
		return affected, fmt.Errorf("deleting old sync runs: %w", err)
	}

	return affected, nil
}

// AcquireSyncLock takes the sync lease for holder. It returns false when
// another holder owns an unexpired lease.
func (s *PostgresStore) AcquireSyncLock(
	ctx context.Context,
	holder string,
	ttl time.Duration,
) (bool, error) {
	expiresAt := time.Now().Add(ttl)

	var name string
	err := s.pool.QueryRow(ctx, queryAcquireSyncLock, syncLockName, holder, expiresAt).Scan(&name)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("acquiring sync lock: %w", err)
	}
	return true, nil
}

// ReleaseSyncLock drops the lease if holder owns it.
func (s *PostgresStore) ReleaseSyncLock(ctx context.Context, holder string) error {
	if _, err := s.pool.Exec(ctx, queryReleaseSyncLock, syncLockName, holder); err != nil {
		return fmt.Errorf("releasing sync lock: %w", err)
	}
	return nil
}

func rowArgs(r *domain.FlatRow) pgx.NamedArgs {
	// last_update_at is the parsed form of the raw API value, for range filters.
	var lastUpdateAt *time.Time
	if t, err := bookmark.ParseTimestamp(r.LastUpdateTime); err == nil {
		lastUpdateAt = &t
	}

	kind := r.Kind
	if kind == "" {
		kind = inferKind(r)
	}

	return pgx.NamedArgs{
		"invoice_id":       r.InvoiceID,
		"item_name":        r.ItemName,
		"kind":             string(kind),
		"status":           r.Status,
		"invoice_number":   r.InvoiceNumber,
		"invoice_date":     r.InvoiceDate,
		"last_update_time": r.LastUpdateTime,
		"last_update_at":   lastUpdateAt,
		"currency_code":    r.CurrencyCode,
		"note":             r.Note,
		"email":            r.Email,
		"recipient_name":   r.RecipientName,
		"total_invoice":    r.TotalInvoice,
		"refund_amount":    r.RefundAmount,
		"item_qty":         r.ItemQty,
		"item_unit_price":  r.ItemUnitPrice,
		"item_total":       r.ItemTotal,
	}
}

func inferKind(r *domain.FlatRow) domain.RowKind {
	switch r.ItemName {
	case domain.HeaderItemName:
		return domain.RowHeader
	case domain.RefundItemName:
		return domain.RowRefund
	default:
		return domain.RowItem
	}
}
