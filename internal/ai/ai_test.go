package ai

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestWithTimeout(t *testing.T) {
	slow := GeneratorFunc(func(ctx context.Context, question string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})

	_, err := WithTimeout(slow, 10*time.Millisecond).Generate(context.Background(), "hi")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestWithTimeout_Disabled(t *testing.T) {
	var hasDeadline bool
	g := GeneratorFunc(func(ctx context.Context, question string) (string, error) {
		_, hasDeadline = ctx.Deadline()
		return "ok", nil
	})

	answer, err := WithTimeout(g, 0).Generate(context.Background(), "hi")
	if err != nil || answer != "ok" {
		t.Fatalf("unexpected result %q, %v", answer, err)
	}
	if hasDeadline {
		t.Error("no deadline expected when the timeout is disabled")
	}
}

func TestWrapError(t *testing.T) {
	if WrapError("generate", nil) != nil {
		t.Error("nil error should stay nil")
	}
	err := WrapError("generate", EAITimeout)
	if !errors.Is(err, EAITimeout) {
		t.Errorf("wrapped error should match EAITimeout, got %v", err)
	}
}
