package store

import (
	"database/sql"
	"time"
)

// CreateMessage appends a message to a conversation. The timestamp is
// assigned here, not by the caller.
func (db *DB) CreateMessage(conversationID int64, role, content, status string) (*Message, error) {
	now := time.Now().UnixMilli()
	res, err := db.Exec(`
		INSERT INTO messages (conversation_id, role, content, timestamp, status)
		VALUES (?, ?, ?, ?, ?)`,
		conversationID, role, content, now, status)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &Message{
		ID:             id,
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		Timestamp:      now,
		Status:         status,
	}, nil
}

// History returns at most limit of the *most recent* messages, oldest-first.
// The query selects the latest N descending, then the slice is flipped, so a
// long conversation contributes its tail rather than its first N messages.
func (db *DB) History(conversationID int64, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.Query(`
		SELECT id, conversation_id, role, content, timestamp, status
		FROM messages
		WHERE conversation_id = ?
		ORDER BY timestamp DESC, id DESC
		LIMIT ?`, conversationID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	msgs, err := scanMessages(rows)
	if err != nil {
		return nil, err
	}
	// Flip to ascending for the model context.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// AllMessages returns the full conversation ordered oldest-first.
func (db *DB) AllMessages(conversationID int64) ([]Message, error) {
	rows, err := db.Query(`
		SELECT id, conversation_id, role, content, timestamp, status
		FROM messages
		WHERE conversation_id = ?
		ORDER BY timestamp ASC, id ASC`, conversationID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	return scanMessages(rows)
}

// UpdateMessageStatus sets a message's delivery status.
func (db *DB) UpdateMessageStatus(id int64, status string) error {
	_, err := db.Exec(`UPDATE messages SET status = ? WHERE id = ?`, status, id)
	return err
}

func scanMessages(rows *sql.Rows) ([]Message, error) {
	var msgs []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.Timestamp, &m.Status); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
