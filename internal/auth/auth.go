// Package auth decides whether a sender's phone number may use the assistant.
package auth

import (
	"strings"

	"go.uber.org/zap"
)

// Gate checks phone numbers against a configured allowlist. An empty
// allowlist means open mode: every sender is authorized.
type Gate struct {
	allowed map[string]struct{}
	logger  *zap.Logger
}

// NewGate builds a gate from the configured allowlist. Numbers are
// normalized once here so formatting differences never cause false negatives.
func NewGate(allowedNumbers []string, logger *zap.Logger) *Gate {
	allowed := make(map[string]struct{}, len(allowedNumbers))
	for _, n := range allowedNumbers {
		if norm := Normalize(n); norm != "" {
			allowed[norm] = struct{}{}
		}
	}

	if len(allowed) == 0 {
		logger.Info("authorization gate in open mode, all numbers allowed")
	} else {
		logger.Info("authorization gate initialized", zap.Int("allowed_numbers", len(allowed)))
	}

	return &Gate{allowed: allowed, logger: logger}
}

// Authorized reports whether the phone number may use the assistant.
// Boolean outcome only: an unauthorized sender is not an error, and a
// rejection never blocks other senders.
func (g *Gate) Authorized(phoneNumber string) bool {
	if len(g.allowed) == 0 {
		return true
	}

	_, ok := g.allowed[Normalize(phoneNumber)]
	if !ok {
		g.logger.Warn("unauthorized message attempt", zap.String("from", phoneNumber))
	}
	return ok
}

// Normalize strips everything but digits from a phone number, preserving a
// single leading +. "+1 (555) 123-4567" and "+1-555-123-4567" compare equal;
// "15551234567" does not equal "+15551234567".
func Normalize(phone string) string {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return ""
	}

	plus := strings.HasPrefix(phone, "+")
	var b strings.Builder
	if plus {
		b.WriteByte('+')
		phone = phone[1:]
	}
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
