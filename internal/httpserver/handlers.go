package httpserver

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/matheus3301/smsd/internal/processor"
	"github.com/matheus3301/smsd/internal/store"
	"go.uber.org/zap"
)

type okResponse struct {
	OK bool `json:"ok"`
}

type incomingRequest struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
	ID        string `json:"id"`
}

type outgoingMessage struct {
	ID        int64  `json:"id"`
	To        string `json:"to"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
}

type ackRequest struct {
	Status string `json:"status"`
	SentAt string `json:"sent_at"`
}

// receiveSMS accepts an inbound message from the relay. Always 200: a bad
// shared secret or an unauthorized sender answers {ok:false} with no further
// detail, and a pipeline failure still answers {ok:true} because the relay
// has no actionable recovery. Operators see failures in the logs.
func (s *Server) receiveSMS(c *gin.Context) {
	if s.cfg.Auth.APIKey != "" && c.GetHeader("X-API-Key") != s.cfg.Auth.APIKey {
		s.logger.Warn("inbound sms with invalid api key")
		c.JSON(http.StatusOK, okResponse{OK: false})
		return
	}

	var req incomingRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.From == "" || req.Content == "" {
		s.logger.Warn("malformed inbound sms request", zap.Error(err))
		c.JSON(http.StatusOK, okResponse{OK: false})
		return
	}

	res := s.proc.ProcessIncoming(c.Request.Context(), req.From, req.Content)
	c.JSON(http.StatusOK, okResponse{OK: res.Outcome != processor.Unauthorized})
}

// getOutgoing hands the relay its next delivery batch, oldest first. The
// read takes no lease; ack idempotency covers overlapping polls.
func (s *Server) getOutgoing(c *gin.Context) {
	entries, err := s.proc.Outgoing(s.cfg.Outbox.BatchSize)
	if err != nil {
		s.logger.Error("outgoing poll failed", zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"messages": []outgoingMessage{}})
		return
	}

	messages := make([]outgoingMessage, 0, len(entries))
	for _, e := range entries {
		messages = append(messages, outgoingMessage{
			ID:        e.ID,
			To:        e.PhoneNumber,
			Content:   e.Content,
			CreatedAt: rfc3339(e.CreatedAt),
		})
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

// acknowledge resolves an outbox entry. {ok:true} regardless of whether the
// id was still pending: repeated acks from a flaky relay are safe no-ops.
func (s *Server) acknowledge(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusOK, okResponse{OK: false})
		return
	}

	var req ackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusOK, okResponse{OK: false})
		return
	}
	if req.Status != store.StatusSent && req.Status != store.StatusFailed {
		c.JSON(http.StatusOK, okResponse{OK: false})
		return
	}

	if _, err := s.proc.AcknowledgeSent(id, req.Status); err != nil {
		s.logger.Error("acknowledge failed", zap.Int64("id", id), zap.Error(err))
	}
	c.JSON(http.StatusOK, okResponse{OK: true})
}

func (s *Server) health(c *gin.Context) {
	pending, err := s.db.PendingOutboxCount()
	if err != nil {
		s.logger.Error("health check failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":         "ok",
		"pending_outbox": pending,
	})
}

type conversationSummary struct {
	ID              int64  `json:"id"`
	PhoneNumber     string `json:"phone_number"`
	LastMessage     string `json:"last_message"`
	LastMessageRole string `json:"last_message_role"`
	LastMessageAt   string `json:"last_message_at,omitempty"`
	UpdatedAt       string `json:"updated_at"`
}

func (s *Server) listConversations(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	summaries, total, err := s.db.ListConversations(limit, offset)
	if err != nil {
		s.logger.Error("list conversations failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	out := make([]conversationSummary, 0, len(summaries))
	for _, cs := range summaries {
		out = append(out, conversationSummary{
			ID:              cs.ID,
			PhoneNumber:     cs.PhoneNumber,
			LastMessage:     cs.LastMessage,
			LastMessageRole: cs.LastMessageRole,
			LastMessageAt:   rfc3339(cs.LastMessageAt),
			UpdatedAt:       rfc3339(cs.UpdatedAt),
		})
	}
	c.JSON(http.StatusOK, gin.H{"conversations": out, "total": total})
}

type conversationMessage struct {
	ID        int64  `json:"id"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
	Status    string `json:"status"`
}

func (s *Server) conversationMessages(c *gin.Context) {
	conv, err := s.db.FindConversation(c.Param("number"))
	if err != nil {
		s.logger.Error("find conversation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if conv == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
		return
	}

	msgs, err := s.db.AllMessages(conv.ID)
	if err != nil {
		s.logger.Error("load messages failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	out := make([]conversationMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, conversationMessage{
			ID:        m.ID,
			Role:      m.Role,
			Content:   m.Content,
			Timestamp: rfc3339(m.Timestamp),
			Status:    m.Status,
		})
	}
	c.JSON(http.StatusOK, gin.H{"phone_number": conv.PhoneNumber, "messages": out})
}

func (s *Server) deleteConversation(c *gin.Context) {
	existed, err := s.db.DeleteConversation(c.Param("number"))
	if err != nil {
		s.logger.Error("delete conversation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "existed": existed})
}

func rfc3339(ms int64) string {
	if ms == 0 {
		return ""
	}
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}
