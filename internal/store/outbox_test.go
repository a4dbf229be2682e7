package store

import (
	"testing"
	"time"
)

func TestEnqueueAndPendingOrder(t *testing.T) {
	db := testDB(t)

	id1, err := db.EnqueueOutbox("+15551234567", "first")
	if err != nil {
		t.Fatal(err)
	}
	id2, err := db.EnqueueOutbox("+15551234567", "second")
	if err != nil {
		t.Fatal(err)
	}

	pending, err := db.PendingOutbox(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 2 {
		t.Fatalf("got %d pending, want 2", len(pending))
	}
	if pending[0].ID != id1 || pending[1].ID != id2 {
		t.Errorf("order = [%d %d], want [%d %d]", pending[0].ID, pending[1].ID, id1, id2)
	}
	if pending[0].Status != StatusPending {
		t.Errorf("status = %q, want pending", pending[0].Status)
	}
	if pending[0].SentAt != 0 {
		t.Errorf("sent_at = %d, want 0 while pending", pending[0].SentAt)
	}
}

func TestPendingRespectsLimit(t *testing.T) {
	db := testDB(t)

	for i := 0; i < 5; i++ {
		if _, err := db.EnqueueOutbox("+15551234567", "msg"); err != nil {
			t.Fatal(err)
		}
	}

	pending, err := db.PendingOutbox(3)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 3 {
		t.Errorf("got %d pending, want 3", len(pending))
	}
}

func TestAcknowledgeIdempotent(t *testing.T) {
	db := testDB(t)

	id, err := db.EnqueueOutbox("+15551234567", "hello")
	if err != nil {
		t.Fatal(err)
	}

	applied, err := db.AcknowledgeOutbox(id, StatusSent)
	if err != nil {
		t.Fatal(err)
	}
	if !applied {
		t.Fatal("first acknowledge not applied")
	}

	var status string
	var sentAt int64
	if err := db.QueryRow(`SELECT status, sent_at FROM outbox WHERE id = ?`, id).Scan(&status, &sentAt); err != nil {
		t.Fatal(err)
	}
	if status != StatusSent {
		t.Errorf("status = %q, want sent", status)
	}
	if sentAt == 0 {
		t.Error("sent_at not set on sent")
	}

	// Second acknowledge is a no-op, whatever terminal status it carries.
	applied, err = db.AcknowledgeOutbox(id, StatusFailed)
	if err != nil {
		t.Fatal(err)
	}
	if applied {
		t.Error("re-acknowledge applied, want no-op")
	}

	var status2 string
	var sentAt2 int64
	if err := db.QueryRow(`SELECT status, sent_at FROM outbox WHERE id = ?`, id).Scan(&status2, &sentAt2); err != nil {
		t.Fatal(err)
	}
	if status2 != StatusSent || sentAt2 != sentAt {
		t.Errorf("re-acknowledge mutated row: status=%q sent_at=%d", status2, sentAt2)
	}
}

func TestAcknowledgeUnknownID(t *testing.T) {
	db := testDB(t)

	applied, err := db.AcknowledgeOutbox(9999, StatusSent)
	if err != nil {
		t.Fatal(err)
	}
	if applied {
		t.Error("acknowledge of unknown id applied, want false")
	}
}

func TestAcknowledgeFailedLeavesSentAtNull(t *testing.T) {
	db := testDB(t)

	id, err := db.EnqueueOutbox("+15551234567", "hello")
	if err != nil {
		t.Fatal(err)
	}
	applied, err := db.AcknowledgeOutbox(id, StatusFailed)
	if err != nil {
		t.Fatal(err)
	}
	if !applied {
		t.Fatal("acknowledge not applied")
	}

	var sentAt any
	if err := db.QueryRow(`SELECT sent_at FROM outbox WHERE id = ?`, id).Scan(&sentAt); err != nil {
		t.Fatal(err)
	}
	if sentAt != nil {
		t.Errorf("sent_at = %v on failed, want NULL", sentAt)
	}
}

func TestAcknowledgeRejectsBadStatus(t *testing.T) {
	db := testDB(t)

	if _, err := db.AcknowledgeOutbox(1, "delivered"); err == nil {
		t.Error("expected error for invalid status")
	}
}

func TestPendingOutboxCount(t *testing.T) {
	db := testDB(t)

	if _, err := db.EnqueueOutbox("+15551234567", "a"); err != nil {
		t.Fatal(err)
	}
	id, err := db.EnqueueOutbox("+15551234567", "b")
	if err != nil {
		t.Fatal(err)
	}

	n, err := db.PendingOutboxCount()
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("count = %d, want 2", n)
	}

	if _, err := db.AcknowledgeOutbox(id, StatusSent); err != nil {
		t.Fatal(err)
	}
	n, err = db.PendingOutboxCount()
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("count = %d, want 1", n)
	}
}

func TestCleanupOutbox(t *testing.T) {
	db := testDB(t)

	oldTs := time.Now().AddDate(0, 0, -30).UnixMilli()

	// Resolved and old: eligible.
	if _, err := db.Exec(`INSERT INTO outbox (phone_number, content, created_at, status) VALUES (?, ?, ?, 'sent')`,
		"+15551234567", "old sent", oldTs); err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec(`INSERT INTO outbox (phone_number, content, created_at, status) VALUES (?, ?, ?, 'failed')`,
		"+15551234567", "old failed", oldTs); err != nil {
		t.Fatal(err)
	}
	// Pending and old: retained regardless of age.
	if _, err := db.Exec(`INSERT INTO outbox (phone_number, content, created_at, status) VALUES (?, ?, ?, 'pending')`,
		"+15551234567", "old pending", oldTs); err != nil {
		t.Fatal(err)
	}
	// Resolved but recent: retained.
	id, err := db.EnqueueOutbox("+15551234567", "recent")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.AcknowledgeOutbox(id, StatusSent); err != nil {
		t.Fatal(err)
	}

	deleted, err := db.CleanupOutbox(7)
	if err != nil {
		t.Fatal(err)
	}
	if deleted != 2 {
		t.Errorf("deleted = %d, want 2", deleted)
	}

	var remaining int
	if err := db.QueryRow(`SELECT COUNT(*) FROM outbox`).Scan(&remaining); err != nil {
		t.Fatal(err)
	}
	if remaining != 2 {
		t.Errorf("remaining = %d, want 2", remaining)
	}
}
