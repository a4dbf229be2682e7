package store

import (
	"database/sql"
	"fmt"
	"time"
)

// EnqueueOutbox appends a pending entry for the phone relay to deliver.
func (db *DB) EnqueueOutbox(phoneNumber, content string) (int64, error) {
	res, err := db.Exec(`
		INSERT INTO outbox (phone_number, content, created_at, status)
		VALUES (?, ?, ?, 'pending')`,
		phoneNumber, content, time.Now().UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// PendingOutbox returns up to limit pending entries, oldest-created-first.
// Pure read: entries are not reserved or leased, so two quick polls may see
// overlapping sets. AcknowledgeOutbox is the idempotency backstop.
func (db *DB) PendingOutbox(limit int) ([]OutboxEntry, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := db.Query(`
		SELECT id, phone_number, content, created_at, status, sent_at
		FROM outbox
		WHERE status = 'pending'
		ORDER BY created_at ASC, id ASC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var entries []OutboxEntry
	for rows.Next() {
		var e OutboxEntry
		var sentAt sql.NullInt64
		if err := rows.Scan(&e.ID, &e.PhoneNumber, &e.Content, &e.CreatedAt, &e.Status, &sentAt); err != nil {
			return nil, err
		}
		e.SentAt = sentAt.Int64
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// AcknowledgeOutbox resolves a pending entry to sent or failed. The update
// only applies while the entry is still pending, so re-acknowledging a
// resolved or unknown id is a no-op returning false, never an error.
func (db *DB) AcknowledgeOutbox(id int64, status string) (bool, error) {
	if status != StatusSent && status != StatusFailed {
		return false, fmt.Errorf("invalid acknowledge status %q", status)
	}
	var sentAt any
	if status == StatusSent {
		sentAt = time.Now().UnixMilli()
	}
	res, err := db.Exec(`
		UPDATE outbox SET status = ?, sent_at = ?
		WHERE id = ? AND status = 'pending'`,
		status, sentAt, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// PendingOutboxCount returns the number of unresolved entries, for health reporting.
func (db *DB) PendingOutboxCount() (int, error) {
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM outbox WHERE status = 'pending'`).Scan(&n)
	return n, err
}

// CleanupOutbox deletes resolved entries older than the retention window and
// returns how many were removed. Pending entries are never touched.
func (db *DB) CleanupOutbox(days int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -days).UnixMilli()
	res, err := db.Exec(`
		DELETE FROM outbox
		WHERE status IN ('sent', 'failed') AND created_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
