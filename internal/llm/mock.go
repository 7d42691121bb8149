package llm

import (
	"context"
	"sync"
)

// MockClient permite tests sin llamar a un LLM real.
type MockClient struct {
	Response  string
	Err       error
	Embedding []float32
	EmbedErr  error

	mu          sync.Mutex
	Calls       int
	EmbedCalls  int
	LastPrompt  string
	LastSystem  string
	LastEmbedIn string
}

func (m *MockClient) Complete(_ context.Context, prompt, systemPrompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	m.LastPrompt = prompt
	m.LastSystem = systemPrompt
	return m.Response, m.Err
}

func (m *MockClient) CreateEmbedding(_ context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.EmbedCalls++
	m.LastEmbedIn = text
	return m.Embedding, m.EmbedErr
}
