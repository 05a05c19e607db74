package llm

import (
	"context"
	"sync"
)

// MockClient permite tests sin llamar a un LLM real. Guarda la ultima conversacion recibida.
type MockClient struct {
	Response string
	Err      error

	mu   sync.Mutex
	last []Message
}

func (m *MockClient) Complete(_ context.Context, messages []Message) (string, error) {
	m.mu.Lock()
	m.last = append([]Message(nil), messages...)
	m.mu.Unlock()
	return m.Response, m.Err
}

func (m *MockClient) LastMessages() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.last...)
}
