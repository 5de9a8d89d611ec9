// Package echo is the stand-in answer generator: it repeats the question back
// after an artificial delay.
package echo

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/DukeRupert/quotachat/internal/ai"
)

// DefaultDelay mimics the latency of a real model.
const DefaultDelay = time.Second

// Generator answers "You said: <question>".
type Generator struct {
	delay  time.Duration
	logger *slog.Logger
}

// New creates an echo generator. A negative delay is treated as zero.
func New(delay time.Duration, logger *slog.Logger) *Generator {
	if delay < 0 {
		delay = 0
	}
	return &Generator{delay: delay, logger: logger}
}

func (g *Generator) Generate(ctx context.Context, question string) (string, error) {
	if g.delay > 0 {
		timer := time.NewTimer(g.delay)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return "", ai.WrapError("generate", ai.EAITimeout)
			}
			return "", ai.WrapError("generate", ctx.Err())
		case <-timer.C:
		}
	}

	g.logger.Debug("generated echo answer", "question_length", len(question))
	return "You said: " + question, nil
}
