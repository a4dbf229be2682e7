// Package processor orchestrates the inbound message pipeline: authorize,
// record, fetch context, generate a reply, queue it for delivery. It is the
// only writer of conversation, message and outbox state on the inbound path.
package processor

import (
	"context"
	"fmt"

	"github.com/matheus3301/smsd/internal/ai"
	"github.com/matheus3301/smsd/internal/auth"
	"github.com/matheus3301/smsd/internal/store"
	"go.uber.org/zap"
)

// Outcome distinguishes the three ways an inbound message can finish.
// Unauthorized and Failed are both negative but mean different things:
// the first is policy, the second is a contained infrastructure error.
type Outcome int

const (
	Processed Outcome = iota
	Unauthorized
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Processed:
		return "processed"
	case Unauthorized:
		return "unauthorized"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Result is the outcome of one inbound message. Err is set only for Failed
// and is already logged; it is carried for callers and tests that need the
// cause.
type Result struct {
	Outcome Outcome
	Err     error
}

// Processor runs the inbound pipeline and fronts the outbox for the
// delivery-side poller.
type Processor struct {
	db           *store.DB
	gate         *auth.Gate
	responder    ai.Responder
	systemPrompt string
	maxContext   int
	logger       *zap.Logger
}

// New wires the processor. maxContext bounds how much history is sent to
// the model per reply; it defaults to 20 turns.
func New(db *store.DB, gate *auth.Gate, responder ai.Responder, systemPrompt string, maxContext int, logger *zap.Logger) *Processor {
	if maxContext <= 0 {
		maxContext = 20
	}
	return &Processor{
		db:           db,
		gate:         gate,
		responder:    responder,
		systemPrompt: systemPrompt,
		maxContext:   maxContext,
		logger:       logger,
	}
}

// ProcessIncoming runs the full pipeline for one inbound message. The steps
// run strictly in order and none is skipped:
//
//	authorize -> store user message -> fetch context -> generate ->
//	store assistant message -> enqueue -> touch conversation
//
// Unauthorized senders short-circuit before anything is written. Any store
// error afterwards is logged and folded into a Failed result; no error or
// panic escapes to the caller. The assistant-message insert and the outbox
// enqueue are separate statements, so a crash between them can leave a
// stored reply that was never queued (at-least-once, accepted).
func (p *Processor) ProcessIncoming(ctx context.Context, phoneNumber, content string) Result {
	if !p.gate.Authorized(phoneNumber) {
		return Result{Outcome: Unauthorized}
	}

	conv, err := p.db.FindOrCreateConversation(phoneNumber)
	if err != nil {
		return p.fail(phoneNumber, fmt.Errorf("find or create conversation: %w", err))
	}
	p.logger.Info("processing inbound message",
		zap.String("from", phoneNumber),
		zap.Int64("conversation_id", conv.ID))

	if _, err := p.db.CreateMessage(conv.ID, store.RoleUser, content, store.StatusReceived); err != nil {
		return p.fail(phoneNumber, fmt.Errorf("store user message: %w", err))
	}

	history, err := p.db.History(conv.ID, p.maxContext)
	if err != nil {
		return p.fail(phoneNumber, fmt.Errorf("load history: %w", err))
	}

	turns := make([]ai.Turn, len(history))
	for i, m := range history {
		turns[i] = ai.Turn{Role: m.Role, Content: m.Content}
	}

	p.logger.Info("generating reply",
		zap.Int64("conversation_id", conv.ID),
		zap.String("provider", p.responder.Name()),
		zap.Int("context_turns", len(turns)))
	reply := p.responder.GenerateResponse(ctx, turns, p.systemPrompt)

	if _, err := p.db.CreateMessage(conv.ID, store.RoleAssistant, reply, store.StatusPending); err != nil {
		return p.fail(phoneNumber, fmt.Errorf("store assistant message: %w", err))
	}

	if _, err := p.db.EnqueueOutbox(phoneNumber, reply); err != nil {
		return p.fail(phoneNumber, fmt.Errorf("enqueue reply: %w", err))
	}

	if err := p.db.TouchConversation(conv.ID); err != nil {
		return p.fail(phoneNumber, fmt.Errorf("touch conversation: %w", err))
	}

	p.logger.Info("inbound message processed",
		zap.String("from", phoneNumber),
		zap.Int64("conversation_id", conv.ID))
	return Result{Outcome: Processed}
}

// Outgoing returns pending replies for the phone relay, oldest first.
// Pass-through to the outbox; independent of the inbound pipeline.
func (p *Processor) Outgoing(limit int) ([]store.OutboxEntry, error) {
	return p.db.PendingOutbox(limit)
}

// AcknowledgeSent resolves an outbox entry after the relay reports the
// delivery outcome. Repeated or unknown acknowledgments are no-ops.
func (p *Processor) AcknowledgeSent(id int64, status string) (bool, error) {
	applied, err := p.db.AcknowledgeOutbox(id, status)
	if err != nil {
		return false, err
	}
	if applied {
		p.logger.Info("outbox entry resolved",
			zap.Int64("id", id), zap.String("status", status))
	}
	return applied, nil
}

func (p *Processor) fail(phoneNumber string, err error) Result {
	p.logger.Error("inbound pipeline failed",
		zap.String("from", phoneNumber), zap.Error(err))
	return Result{Outcome: Failed, Err: err}
}
