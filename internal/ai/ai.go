// Package ai defines the answer-generation capability consumed by the chat
// ledger. Implementations live in subpackages.
package ai

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Generator produces an answer for a user's question.
type Generator interface {
	Generate(ctx context.Context, question string) (string, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, question string) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, question string) (string, error) {
	return f(ctx, question)
}

var (
	// EAITimeout indicates generation did not finish before the deadline
	EAITimeout = errors.New("ai request timed out")

	// EAIUnavailable indicates the generator is temporarily unavailable
	EAIUnavailable = errors.New("ai service temporarily unavailable")
)

// WrapError wraps an error with context about the AI operation
func WrapError(operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("ai %s: %w", operation, err)
}

// WithTimeout bounds every call to g by d. A non-positive d returns g as is.
func WithTimeout(g Generator, d time.Duration) Generator {
	if d <= 0 {
		return g
	}
	return GeneratorFunc(func(ctx context.Context, question string) (string, error) {
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		return g.Generate(ctx, question)
	})
}
