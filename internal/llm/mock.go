package llm

import (
	"context"
	"sync"

	"github.com/lunasherpa/luna/internal/domain"
)

// MockClient is a test double for Client and Completer.
type MockClient struct {
	ProviderName string
	CallFunc     func(ctx context.Context, agent domain.AgentDescriptor, prompt, credential, model string) (*domain.AgentResponse, error)
	CompleteFunc func(ctx context.Context, system, user, credential, model string, temperature float32, maxTokens int) (string, error)

	mu    sync.Mutex
	calls []string // agent IDs in call order
}

func (m *MockClient) Name() string {
	if m.ProviderName == "" {
		return "mock"
	}
	return m.ProviderName
}

func (m *MockClient) CallAgent(ctx context.Context, agent domain.AgentDescriptor, prompt, credential, model string) (*domain.AgentResponse, error) {
	m.mu.Lock()
	m.calls = append(m.calls, agent.ID)
	m.mu.Unlock()

	if m.CallFunc != nil {
		return m.CallFunc(ctx, agent, prompt, credential, model)
	}
	resp := domain.ResponseFor(agent, "mock response from "+agent.Name)
	return &resp, nil
}

func (m *MockClient) Complete(ctx context.Context, system, user, credential, model string, temperature float32, maxTokens int) (string, error) {
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, system, user, credential, model, temperature, maxTokens)
	}
	return "mock synthesis", nil
}

// Calls returns the agent IDs seen by CallAgent.
func (m *MockClient) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}
