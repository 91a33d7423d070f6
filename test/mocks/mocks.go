package mocks

import (
	"context"
	"fmt"
	"sync"
	"wisgen/internal/core"
)

// MockCompleter provides a mock implementation of llm.Completer
type MockCompleter struct {
	CompleteFunc func(ctx context.Context, prompt, model string) (string, error)

	mu      sync.Mutex
	prompts []string
}

func (m *MockCompleter) Complete(ctx context.Context, prompt, model string) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()

	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, prompt, model)
	}
	return "- Mock insight one\n- Mock insight two\n- Mock insight three", nil
}

// Prompts returns every prompt received so far.
func (m *MockCompleter) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}

// Calls returns the number of Complete calls.
func (m *MockCompleter) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

// MockSource provides a mock implementation of mailsource.Source backed by
// an in-memory message map.
type MockSource struct {
	ListMessageIDsFunc func(ctx context.Context, query core.Query) ([]string, error)
	FetchMessageFunc   func(ctx context.Context, id string) (core.RawMessage, error)

	Messages map[string]core.RawMessage
	IDs      []string

	mu      sync.Mutex
	queries []core.Query
}

func (m *MockSource) ListMessageIDs(ctx context.Context, query core.Query) ([]string, error) {
	m.mu.Lock()
	m.queries = append(m.queries, query)
	m.mu.Unlock()

	if m.ListMessageIDsFunc != nil {
		return m.ListMessageIDsFunc(ctx, query)
	}
	return append([]string(nil), m.IDs...), nil
}

func (m *MockSource) FetchMessage(ctx context.Context, id string) (core.RawMessage, error) {
	if m.FetchMessageFunc != nil {
		return m.FetchMessageFunc(ctx, id)
	}
	msg, ok := m.Messages[id]
	if !ok {
		return core.RawMessage{}, fmt.Errorf("message %s not found", id)
	}
	return msg, nil
}

// Queries returns every query passed to ListMessageIDs.
func (m *MockSource) Queries() []core.Query {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]core.Query(nil), m.queries...)
}
