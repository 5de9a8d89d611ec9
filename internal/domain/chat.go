// Package domain contains core business types and interfaces.
//
// This file defines chat results and the paid-message transcript.
package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ChatResult is the outcome of an admitted message.
type ChatResult struct {
	Answer     string    `json:"answer"`
	MessageID  string    `json:"messageId"`
	TokensUsed int       `json:"tokensUsed"`
	QuotaInfo  QuotaInfo `json:"quotaInfo"`
}

// Kind reports which allowance admitted the message.
func (r *ChatResult) Kind() UsageKind {
	if r.QuotaInfo.IsFree {
		return UsageFree
	}
	return UsagePaid
}

// ChatMessage is one transcript entry. Only paid messages are recorded.
type ChatMessage struct {
	ID         uuid.UUID `json:"id"`
	UserID     string    `json:"userId"`
	Question   string    `json:"question"`
	Answer     string    `json:"answer"`
	TokenCount int       `json:"tokenCount"`
	CreatedAt  time.Time `json:"createdAt"`
}

// MessageID formats the client-facing id of a message, e.g. "paid_<uuid>".
func MessageID(kind UsageKind, id uuid.UUID) string {
	return string(kind) + "_" + id.String()
}

// CountTokens approximates the token count of an answer as its number of
// whitespace-separated words.
func CountTokens(answer string) int {
	return len(strings.Fields(answer))
}
