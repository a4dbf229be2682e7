package store

import (
	"fmt"
	"path/filepath"
	"sync"
	"testing"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestMigrateIdempotent(t *testing.T) {
	db := testDB(t)

	// testDB already ran Migrate; a second run must be a no-op.
	result, err := db.Migrate()
	if err != nil {
		t.Fatal(err)
	}
	if result.Changed {
		t.Error("second Migrate() should report Changed=false")
	}
	if result.Version != 1 {
		t.Errorf("version = %d, want 1", result.Version)
	}
}

func TestFindConversationMissing(t *testing.T) {
	db := testDB(t)

	c, err := db.FindConversation("+15551234567")
	if err != nil {
		t.Fatal(err)
	}
	if c != nil {
		t.Errorf("expected nil for missing conversation, got %+v", c)
	}
}

func TestFindOrCreateConversation(t *testing.T) {
	db := testDB(t)

	c1, err := db.FindOrCreateConversation("+15551234567")
	if err != nil {
		t.Fatal(err)
	}
	if c1.PhoneNumber != "+15551234567" {
		t.Errorf("phone = %q, want +15551234567", c1.PhoneNumber)
	}
	if c1.CreatedAt == 0 || c1.UpdatedAt == 0 {
		t.Error("timestamps not assigned")
	}

	c2, err := db.FindOrCreateConversation("+15551234567")
	if err != nil {
		t.Fatal(err)
	}
	if c2.ID != c1.ID {
		t.Errorf("second call returned id %d, want %d", c2.ID, c1.ID)
	}
}

// Concurrent find-or-create for the same number must resolve to exactly one
// row via the unique constraint, not a check-then-insert race.
func TestFindOrCreateConversationRace(t *testing.T) {
	db := testDB(t)

	const n = 10
	ids := make([]int64, n)
	errs := make([]error, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			c, err := db.FindOrCreateConversation("+15551234567")
			if err != nil {
				errs[i] = err
				return
			}
			ids[i] = c.ID
		}()
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d: %v", i, errs[i])
		}
		if ids[i] != ids[0] {
			t.Errorf("caller %d got id %d, want %d", i, ids[i], ids[0])
		}
	}

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM conversations`).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("conversation rows = %d, want 1", count)
	}
}

func TestListConversations(t *testing.T) {
	db := testDB(t)

	a, err := db.FindOrCreateConversation("+15550000001")
	if err != nil {
		t.Fatal(err)
	}
	b, err := db.FindOrCreateConversation("+15550000002")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := db.CreateMessage(a.ID, RoleUser, "hi from a", StatusReceived); err != nil {
		t.Fatal(err)
	}
	if _, err := db.CreateMessage(b.ID, RoleUser, "hi from b", StatusReceived); err != nil {
		t.Fatal(err)
	}

	// Touch b with a later timestamp so it sorts first.
	if _, err := db.Exec(`UPDATE conversations SET updated_at = updated_at + 1000 WHERE id = ?`, b.ID); err != nil {
		t.Fatal(err)
	}

	summaries, total, err := db.ListConversations(10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if total != 2 {
		t.Errorf("total = %d, want 2", total)
	}
	if len(summaries) != 2 {
		t.Fatalf("got %d summaries, want 2", len(summaries))
	}
	if summaries[0].PhoneNumber != "+15550000002" {
		t.Errorf("first summary = %q, want most recently updated", summaries[0].PhoneNumber)
	}
	if summaries[0].LastMessage != "hi from b" {
		t.Errorf("preview = %q, want 'hi from b'", summaries[0].LastMessage)
	}
	if summaries[0].LastMessageRole != RoleUser {
		t.Errorf("preview role = %q, want user", summaries[0].LastMessageRole)
	}
}

func TestDeleteConversationCascades(t *testing.T) {
	db := testDB(t)

	c, err := db.FindOrCreateConversation("+15551234567")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.CreateMessage(c.ID, RoleUser, "hello", StatusReceived); err != nil {
		t.Fatal(err)
	}

	existed, err := db.DeleteConversation("+15551234567")
	if err != nil {
		t.Fatal(err)
	}
	if !existed {
		t.Error("existed = false, want true")
	}

	var msgCount int
	if err := db.QueryRow(`SELECT COUNT(*) FROM messages`).Scan(&msgCount); err != nil {
		t.Fatal(err)
	}
	if msgCount != 0 {
		t.Errorf("messages after cascade delete = %d, want 0", msgCount)
	}

	// Deleting again reports not-existed.
	existed, err = db.DeleteConversation("+15551234567")
	if err != nil {
		t.Fatal(err)
	}
	if existed {
		t.Error("existed = true for already-deleted conversation")
	}
}

func TestHistoryReturnsLatestAscending(t *testing.T) {
	db := testDB(t)

	c, err := db.FindOrCreateConversation("+15551234567")
	if err != nil {
		t.Fatal(err)
	}

	for i := 1; i <= 5; i++ {
		if _, err := db.CreateMessage(c.ID, RoleUser, fmt.Sprintf("msg %d", i), StatusReceived); err != nil {
			t.Fatal(err)
		}
	}

	// More messages than the limit: expect the latest 3, oldest-first.
	msgs, err := db.History(c.ID, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 3 {
		t.Fatalf("got %d messages, want 3", len(msgs))
	}
	for i, want := range []string{"msg 3", "msg 4", "msg 5"} {
		if msgs[i].Content != want {
			t.Errorf("msgs[%d] = %q, want %q", i, msgs[i].Content, want)
		}
	}

	// Fewer messages than the limit: all of them, still ascending.
	msgs, err = db.History(c.ID, 20)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 5 {
		t.Fatalf("got %d messages, want 5", len(msgs))
	}
	if msgs[0].Content != "msg 1" || msgs[4].Content != "msg 5" {
		t.Errorf("history not ascending: first=%q last=%q", msgs[0].Content, msgs[4].Content)
	}
}

func TestAllMessages(t *testing.T) {
	db := testDB(t)

	c, err := db.FindOrCreateConversation("+15551234567")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.CreateMessage(c.ID, RoleUser, "hi", StatusReceived); err != nil {
		t.Fatal(err)
	}
	if _, err := db.CreateMessage(c.ID, RoleAssistant, "hello", StatusPending); err != nil {
		t.Fatal(err)
	}

	msgs, err := db.AllMessages(c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if msgs[0].Role != RoleUser || msgs[1].Role != RoleAssistant {
		t.Errorf("order = [%s %s], want [user assistant]", msgs[0].Role, msgs[1].Role)
	}
}

func TestUpdateMessageStatus(t *testing.T) {
	db := testDB(t)

	c, err := db.FindOrCreateConversation("+15551234567")
	if err != nil {
		t.Fatal(err)
	}
	m, err := db.CreateMessage(c.ID, RoleAssistant, "hello", StatusPending)
	if err != nil {
		t.Fatal(err)
	}

	if err := db.UpdateMessageStatus(m.ID, StatusSent); err != nil {
		t.Fatal(err)
	}

	msgs, err := db.AllMessages(c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if msgs[0].Status != StatusSent {
		t.Errorf("status = %q, want sent", msgs[0].Status)
	}
}
