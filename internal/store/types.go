package store

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message and outbox delivery statuses. A user message is created as
// "received"; an assistant message is created as "pending" and mirrored
// into the outbox. Outbox entries only ever move pending -> sent|failed.
const (
	StatusReceived = "received"
	StatusPending  = "pending"
	StatusSent     = "sent"
	StatusFailed   = "failed"
)

// Conversation is the durable per-phone-number thread.
type Conversation struct {
	ID          int64
	PhoneNumber string
	CreatedAt   int64
	UpdatedAt   int64
}

// ConversationSummary is a conversation with its most recent message preview.
type ConversationSummary struct {
	ID              int64
	PhoneNumber     string
	LastMessage     string
	LastMessageRole string
	LastMessageAt   int64
	UpdatedAt       int64
}

// Message is a single turn inside a conversation.
type Message struct {
	ID             int64
	ConversationID int64
	Role           string
	Content        string
	Timestamp      int64
	Status         string
}

// OutboxEntry is a reply queued for the phone relay to deliver.
// It carries no reference back to the message row it mirrors.
type OutboxEntry struct {
	ID          int64
	PhoneNumber string
	Content     string
	CreatedAt   int64
	Status      string
	SentAt      int64 // zero unless status is "sent"
}
