package mock

import (
	"context"
	"sync"
)

// MockAnswerer is a test double for ai.Answerer.
type MockAnswerer struct {
	// AnswerFunc is called by Answer if set.
	// If nil, returns "answer: " followed by the query.
	AnswerFunc func(ctx context.Context, query string, contexts []string) (string, error)

	mu        sync.Mutex
	callCount int
	contexts  []string
}

// NewMockAnswerer creates a mock answerer with default behavior.
func NewMockAnswerer() *MockAnswerer {
	return &MockAnswerer{}
}

// Answer returns a canned answer.
func (m *MockAnswerer) Answer(ctx context.Context, query string, contexts []string) (string, error) {
	m.mu.Lock()
	m.callCount++
	m.contexts = append([]string(nil), contexts...)
	m.mu.Unlock()

	if m.AnswerFunc != nil {
		return m.AnswerFunc(ctx, query, contexts)
	}
	return "answer: " + query, nil
}

// CallCount returns the number of times Answer was called.
func (m *MockAnswerer) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// LastContexts returns the contexts passed to the most recent call.
func (m *MockAnswerer) LastContexts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.contexts
}
