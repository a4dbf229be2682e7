package store

import (
	"database/sql"
	"fmt"
	"time"
)

// FindConversation returns the conversation for a phone number, or nil if absent.
func (db *DB) FindConversation(phoneNumber string) (*Conversation, error) {
	var c Conversation
	err := db.QueryRow(`
		SELECT id, phone_number, created_at, updated_at
		FROM conversations WHERE phone_number = ?`, phoneNumber).
		Scan(&c.ID, &c.PhoneNumber, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// FindOrCreateConversation returns the existing conversation or inserts one.
// The insert tolerates the unique constraint, so concurrent calls for the
// same number all resolve to the single existing row.
func (db *DB) FindOrCreateConversation(phoneNumber string) (*Conversation, error) {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO conversations (phone_number, created_at, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(phone_number) DO NOTHING`,
		phoneNumber, now, now)
	if err != nil {
		return nil, err
	}

	c, err := db.FindConversation(phoneNumber)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("conversation for %s missing after insert", phoneNumber)
	}
	return c, nil
}

// TouchConversation bumps updated_at so recency-ordered listings stay current.
func (db *DB) TouchConversation(id int64) error {
	_, err := db.Exec(`UPDATE conversations SET updated_at = ? WHERE id = ?`,
		time.Now().UnixMilli(), id)
	return err
}

// ListConversations returns conversations ordered by recency descending, each
// with its most recent message as a preview, plus the total conversation count.
func (db *DB) ListConversations(limit, offset int) ([]ConversationSummary, int, error) {
	if limit <= 0 {
		limit = 50
	}

	var total int
	if err := db.QueryRow(`SELECT COUNT(*) FROM conversations`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := db.Query(`
		SELECT c.id, c.phone_number, c.updated_at,
			m.content, m.role, m.timestamp
		FROM conversations c
		LEFT JOIN messages m ON m.id = (
			SELECT id FROM messages
			WHERE conversation_id = c.id
			ORDER BY timestamp DESC, id DESC LIMIT 1
		)
		ORDER BY c.updated_at DESC
		LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = rows.Close() }()

	var summaries []ConversationSummary
	for rows.Next() {
		var s ConversationSummary
		var content, role sql.NullString
		var ts sql.NullInt64
		if err := rows.Scan(&s.ID, &s.PhoneNumber, &s.UpdatedAt, &content, &role, &ts); err != nil {
			return nil, 0, err
		}
		s.LastMessage = content.String
		s.LastMessageRole = role.String
		s.LastMessageAt = ts.Int64
		summaries = append(summaries, s)
	}
	return summaries, total, rows.Err()
}

// DeleteConversation removes a conversation and, via the cascade, all of its
// messages. Returns whether the conversation existed.
func (db *DB) DeleteConversation(phoneNumber string) (bool, error) {
	res, err := db.Exec(`DELETE FROM conversations WHERE phone_number = ?`, phoneNumber)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
