package llm

import (
	"context"
	"sync"
)

// MockClient permite tests sin llamar a un LLM real.
type MockClient struct {
	Response string
	Err      error

	mu       sync.Mutex
	calls    int
	requests []Request
}

func (m *MockClient) Complete(ctx context.Context, r Request) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.requests = append(m.requests, r)
	return m.Response, m.Err
}

func (m *MockClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *MockClient) LastRequest() Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.requests) == 0 {
		return Request{}
	}
	return m.requests[len(m.requests)-1]
}

// Reply es una respuesta programada de ScriptedClient.
type Reply struct {
	Text string
	Err  error
}

// ScriptedClient devuelve las respuestas en orden; la ultima se repite cuando se agotan.
type ScriptedClient struct {
	Replies []Reply

	mu    sync.Mutex
	calls int
}

func (s *ScriptedClient) Complete(ctx context.Context, r Request) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Replies) == 0 {
		s.calls++
		return "", ErrEmptyResponse
	}
	idx := s.calls
	if idx >= len(s.Replies) {
		idx = len(s.Replies) - 1
	}
	s.calls++
	return s.Replies[idx].Text, s.Replies[idx].Err
}

func (s *ScriptedClient) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}
