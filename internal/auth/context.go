// Package auth provides visitor identity context helpers.
//
// This package is designed to be imported by both middleware and handler
// packages without causing import cycles.
package auth

import (
	"context"
	"net/http"
	"sync"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// visitorContextKey is the key used to store the visitor's user id.
	visitorContextKey contextKey = "visitor"

	// noteContextKey is the key used to store the request's RequestNote.
	noteContextKey contextKey = "request_note"
)

// VisitorID retrieves the visitor's user id from the context.
//
// Returns "" if the request carried no visitor cookie. The id is not
// checked against the store; services report unknown users themselves.
func VisitorID(ctx context.Context) string {
	id, _ := ctx.Value(visitorContextKey).(string)
	return id
}

// VisitorIDFromRequest is a convenience wrapper around VisitorID.
func VisitorIDFromRequest(r *http.Request) string {
	return VisitorID(r.Context())
}

// SetVisitorID stores a visitor's user id in the context.
func SetVisitorID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, visitorContextKey, userID)
}

// RequestNote carries what a handler learned while serving a request back
// to the request logger: a visitor created mid-request and the ledger
// outcome ("free", "paid", or the error code sent to the client).
type RequestNote struct {
	mu      sync.Mutex
	userID  string
	outcome string
}

// WithRequestNote returns a context holding a fresh RequestNote.
func WithRequestNote(ctx context.Context) (context.Context, *RequestNote) {
	note := &RequestNote{}
	return context.WithValue(ctx, noteContextKey, note), note
}

// NoteFromContext returns the request's note, or nil when none was attached.
// All RequestNote methods accept a nil receiver.
func NoteFromContext(ctx context.Context) *RequestNote {
	note, _ := ctx.Value(noteContextKey).(*RequestNote)
	return note
}

// SetUserID records the visitor the request acted for.
func (n *RequestNote) SetUserID(id string) {
	if n == nil {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.userID = id
}

// SetOutcome records the ledger outcome. The first outcome wins.
func (n *RequestNote) SetOutcome(outcome string) {
	if n == nil {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.outcome == "" {
		n.outcome = outcome
	}
}

// UserID returns the recorded visitor id.
func (n *RequestNote) UserID() string {
	if n == nil {
		return ""
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.userID
}

// Outcome returns the recorded outcome.
func (n *RequestNote) Outcome() string {
	if n == nil {
		return ""
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.outcome
}
