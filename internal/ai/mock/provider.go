package mock

import (
	"context"
	"sync"

	"github.com/DukeRupert/quotachat/internal/ai"
)

// Generator is a mock answer generator for tests.
type Generator struct {
	mu sync.Mutex

	// Configurable responses for testing
	Response string
	Err      error

	// Call tracking for testing
	Calls     int
	Questions []string
}

var _ ai.Generator = (*Generator)(nil)

// New creates a mock generator that echoes like the default generator.
func New() *Generator {
	return &Generator{}
}

// Generate returns the configured response or error.
func (g *Generator) Generate(ctx context.Context, question string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.Calls++
	g.Questions = append(g.Questions, question)

	if g.Err != nil {
		return "", g.Err
	}
	if g.Response != "" {
		return g.Response, nil
	}
	return "You said: " + question, nil
}

// CallCount returns the number of Generate calls so far.
func (g *Generator) CallCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.Calls
}

// Reset clears call tracking and configured responses
func (g *Generator) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.Response = ""
	g.Err = nil
	g.Calls = 0
	g.Questions = nil
}
