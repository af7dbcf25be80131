package store

// SQL query constants organized by entity.
// All SQL lives here; PostgresStore methods reference these constants.

// Invoice row queries.
const (
	queryUpsertInvoiceRow = `
		INSERT INTO invoice_rows (
			invoice_id, item_name, kind, status, invoice_number, invoice_date,
			last_update_time, last_update_at, currency_code, note, email, recipient_name,
			total_invoice, refund_amount, item_qty, item_unit_price, item_total, synced_at
		) VALUES (
			@invoice_id, @item_name, @kind, @status, @invoice_number, @invoice_date,
			@last_update_time, @last_update_at, @currency_code, @note, @email, @recipient_name,
			@total_invoice, @refund_amount, @item_qty, @item_unit_price, @item_total, now()
		)
		ON CONFLICT (invoice_id, item_name) DO UPDATE SET
			kind             = EXCLUDED.kind,
			status           = EXCLUDED.status,
			invoice_number   = EXCLUDED.invoice_number,
			invoice_date     = EXCLUDED.invoice_date,
			last_update_time = EXCLUDED.last_update_time,
			last_update_at   = EXCLUDED.last_update_at,
			currency_code    = EXCLUDED.currency_code,
			note             = EXCLUDED.note,
			email            = EXCLUDED.email,
			recipient_name   = EXCLUDED.recipient_name,
			total_invoice    = EXCLUDED.total_invoice,
			refund_amount    = EXCLUDED.refund_amount,
			item_qty         = EXCLUDED.item_qty,
			item_unit_price  = EXCLUDED.item_unit_price,
			item_total       = EXCLUDED.item_total,
			synced_at        = now()`

	baseInvoiceRowsSelect = `SELECT invoice_id, item_name, kind, status,
	invoice_number, invoice_date, last_update_time, currency_code, note, email, recipient_name,
	total_invoice, refund_amount, item_qty, item_unit_price, item_total
FROM invoice_rows`

	countInvoiceRowsSelect = "SELECT COUNT(*) FROM invoice_rows"
)

// Sync state queries.
const (
	queryGetBookmark = `
		SELECT stream, replication_key, replication_key_value, updated_at
		FROM sync_state
		WHERE stream = $1`

	querySaveBookmark = `
		INSERT INTO sync_state (stream, replication_key, replication_key_value, updated_at)
		VALUES (@stream, @replication_key, @value, now())
		ON CONFLICT (stream) DO UPDATE SET
			replication_key       = EXCLUDED.replication_key,
			replication_key_value = EXCLUDED.replication_key_value,
			updated_at            = now()`
)

// Sync run queries.
const (
	queryInsertSyncRun = `
		INSERT INTO sync_runs (id, started_at, status, start_date, end_date)
		VALUES (@id, @started_at, @status, @start_date, @end_date)`

	queryCompleteSyncRun = `
		UPDATE sync_runs SET
			completed_at     = now(),
			status           = @status,
			error_text       = NULLIF(@error_text, ''),
			rows_emitted     = @rows_emitted,
			invoices_skipped = @invoices_skipped,
			bookmark         = NULLIF(@bookmark, '')
		WHERE id = @id
		RETURNING completed_at`

	queryListSyncRuns = `
		SELECT id, started_at, completed_at, status, COALESCE(error_text, ''),
			start_date, end_date, rows_emitted, invoices_skipped, COALESCE(bookmark, '')
		FROM sync_runs
		ORDER BY started_at DESC
		LIMIT $1`

	queryMarkStaleSyncRunsCrashed = `
		UPDATE sync_runs SET
			status       = 'crashed',
			completed_at = now()
		WHERE status = 'running' AND started_at < $1`

	queryDeleteOldSyncRuns = `
		DELETE FROM sync_runs WHERE started_at < now() - interval '90 days'`
)

// Sync lock queries.
const (
	syncLockName = "invoices"

	queryAcquireSyncLock = `
		INSERT INTO sync_locks (name, lock_holder, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (name) DO UPDATE
			SET locked_at   = now(),
				lock_holder = EXCLUDED.lock_holder,
				expires_at  = EXCLUDED.expires_at
			WHERE sync_locks.expires_at < now()
				OR sync_locks.lock_holder = EXCLUDED.lock_holder
		RETURNING name`

	queryReleaseSyncLock = `
		DELETE FROM sync_locks WHERE name = $1 AND lock_holder = $2`
)
