package janitor

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/matheus3301/smsd/internal/store"
	"go.uber.org/zap"
)

func testDB(t *testing.T) *store.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := store.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestJanitorSweepsResolvedEntries(t *testing.T) {
	db := testDB(t)

	oldTs := time.Now().AddDate(0, 0, -30).UnixMilli()
	if _, err := db.Exec(`INSERT INTO outbox (phone_number, content, created_at, status) VALUES (?, ?, ?, 'sent')`,
		"+15551234567", "old", oldTs); err != nil {
		t.Fatal(err)
	}
	// Pending survives regardless of age.
	if _, err := db.Exec(`INSERT INTO outbox (phone_number, content, created_at, status) VALUES (?, ?, ?, 'pending')`,
		"+15551234567", "still pending", oldTs); err != nil {
		t.Fatal(err)
	}

	j := New(db, time.Hour, 7, zap.NewNop())
	j.Start(context.Background())
	defer j.Stop()

	// The first sweep runs immediately on Start.
	deadline := time.Now().Add(2 * time.Second)
	for {
		var count int
		if err := db.QueryRow(`SELECT COUNT(*) FROM outbox`).Scan(&count); err != nil {
			t.Fatal(err)
		}
		if count == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("outbox rows = %d after sweep, want 1", count)
		}
		time.Sleep(10 * time.Millisecond)
	}

	n, err := db.PendingOutboxCount()
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("pending count = %d, want 1 (janitor must not touch pending)", n)
	}
}

func TestJanitorStopIsIdempotent(t *testing.T) {
	db := testDB(t)
	j := New(db, time.Hour, 7, zap.NewNop())
	j.Start(context.Background())
	j.Stop()
	j.Stop()
}
