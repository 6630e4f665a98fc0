package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/lunasherpa/luna/internal/domain"
	"github.com/lunasherpa/luna/internal/hooks"
	"github.com/lunasherpa/luna/internal/llm"
	"github.com/lunasherpa/luna/internal/logging"
)

// DefaultCallTimeout bounds each individual agent or synthesis call.
const DefaultCallTimeout = 120 * time.Second

// Progress messages reported during a round.
const (
	StatusDecomposing  = "MacroFlow decomposing task..."
	StatusSynthesizing = "Luna synthesizing final answer..."
)

// Options tunes a Manager.
type Options struct {
	CallTimeout time.Duration // per call; zero selects DefaultCallTimeout
	Hooks       *hooks.Manager
	Synthesizer *domain.AgentDescriptor // defaults to Synthesizer()
}

// Request is one question put to the team.
type Request struct {
	Query       string
	CodeContext string
	Credential  string
	Model       string
	Progress    func(message string) // optional status sink
}

// RoundResult is the outcome of a completed round.
type RoundResult struct {
	RoundID     string                 `json:"roundId"`
	Backend     string                 `json:"backend"`
	Responses   []domain.AgentResponse `json:"responses"`
	FinalAnswer string                 `json:"finalAnswer"`
	Duration    time.Duration          `json:"duration"`
}

// Manager fans a query out to every agent and synthesizes the results.
type Manager struct {
	agents      []domain.AgentDescriptor
	synthesizer domain.AgentDescriptor
	client      llm.Client
	hooks       *hooks.Manager
	callTimeout time.Duration
	log         *logging.Logger
}

// NewManager creates a manager for the given agents. The agents slice is
// copied; its order is the order of every result list.
func NewManager(agents []domain.AgentDescriptor, client llm.Client, opts Options, log *logging.Logger) *Manager {
	m := &Manager{
		agents:      append([]domain.AgentDescriptor(nil), agents...),
		synthesizer: Synthesizer(),
		client:      client,
		hooks:       opts.Hooks,
		callTimeout: opts.CallTimeout,
		log:         log.Sub("agent"),
	}
	if opts.Synthesizer != nil {
		m.synthesizer = *opts.Synthesizer
	}
	if m.callTimeout <= 0 {
		m.callTimeout = DefaultCallTimeout
	}
	return m
}

// Client returns the backend used for agent calls.
func (m *Manager) Client() llm.Client { return m.client }

// Agents returns the fan-out targets in order.
func (m *Manager) Agents() []domain.AgentDescriptor {
	return append([]domain.AgentDescriptor(nil), m.agents...)
}

// GetAgentResponses sends the combined prompt to every agent concurrently.
// The result has one entry per agent, in agent order. If any call fails the
// remaining calls are cancelled and no partial list is returned.
func (m *Manager) GetAgentResponses(ctx context.Context, query, codeContext, credential, model string) ([]domain.AgentResponse, error) {
	prompt := BuildPrompt(query, codeContext)
	results := make([]domain.AgentResponse, len(m.agents))

	g, gctx := errgroup.WithContext(ctx)
	for i, a := range m.agents {
		i, a := i, a
		g.Go(func() error {
			callCtx, cancel := context.WithTimeout(gctx, m.callTimeout)
			defer cancel()

			start := time.Now()
			resp, err := m.client.CallAgent(callCtx, a, prompt, credential, model)
			if err != nil {
				m.log.Debug().Err(err).Str("agent", a.ID).Msg("agent call failed")
				return fmt.Errorf("agent %s: %w", a.ID, err)
			}
			results[i] = *resp

			m.log.Debug().
				Str("agent", a.ID).
				Dur("elapsed", time.Since(start)).
				Int("chars", len(resp.Content)).
				Msg("agent responded")
			m.hooks.Emit(ctx, hooks.EventAgentResponded, map[string]any{
				"agent":   a.ID,
				"index":   i,
				"elapsed": time.Since(start).Milliseconds(),
			})
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// SynthesizeResponse merges specialist responses into one answer using the
// synthesizer's prompt. Offline backends render the answer locally.
func (m *Manager) SynthesizeResponse(ctx context.Context, responses []domain.AgentResponse, query, credential, model string, synthesizer domain.AgentDescriptor) (string, error) {
	if offline, ok := m.client.(llm.OfflineSynthesizer); ok {
		return offline.Synthesize(query), nil
	}

	completer, ok := m.client.(llm.Completer)
	if !ok {
		return "", fmt.Errorf("backend %s cannot synthesize", m.client.Name())
	}

	callCtx, cancel := context.WithTimeout(ctx, m.callTimeout)
	defer cancel()

	answer, err := completer.Complete(callCtx,
		SynthesisSystemPrompt(synthesizer),
		SynthesisUserPrompt(query, responses),
		credential, model,
		llm.SynthesisTemperature, llm.SynthesisMaxTokens,
	)
	if err != nil {
		return "", fmt.Errorf("synthesis: %w", err)
	}
	return answer, nil
}

// Ask runs one full round: fan-out followed by synthesis.
func (m *Manager) Ask(ctx context.Context, req Request) (*RoundResult, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, errors.New("query is empty")
	}

	_, offline := m.client.(llm.OfflineSynthesizer)
	if !offline && strings.TrimSpace(req.Credential) == "" {
		return nil, &llm.MissingCredentialError{Hint: "run `luna key set` or set XAI_API_KEY"}
	}

	roundID := uuid.NewString()
	start := time.Now()
	log := m.log.With("roundId", roundID)
	progress := req.Progress
	if progress == nil {
		progress = func(string) {}
	}

	log.Info().
		Str("backend", m.client.Name()).
		Str("model", req.Model).
		Int("agents", len(m.agents)).
		Msg("round started")
	m.hooks.Emit(ctx, hooks.EventRoundStart, map[string]any{
		"roundId": roundID,
		"backend": m.client.Name(),
		"model":   req.Model,
		"agents":  len(m.agents),
	})

	fail := func(stage string, err error) (*RoundResult, error) {
		log.Error().Err(err).Str("stage", stage).Msg("round failed")
		m.hooks.Emit(ctx, hooks.EventRoundFailed, map[string]any{
			"roundId":    roundID,
			"stage":      stage,
			"error":      err.Error(),
			"statusCode": llm.StatusCode(err),
		})
		return nil, err
	}

	progress(StatusDecomposing)
	codeContext := TruncateContext(req.CodeContext)
	responses, err := m.GetAgentResponses(ctx, query, codeContext, req.Credential, req.Model)
	if err != nil {
		return fail("fan-out", err)
	}

	progress(StatusSynthesizing)
	m.hooks.Emit(ctx, hooks.EventSynthesisStart, map[string]any{
		"roundId":   roundID,
		"responses": len(responses),
	})
	answer, err := m.SynthesizeResponse(ctx, responses, query, req.Credential, req.Model, m.synthesizer)
	if err != nil {
		return fail("synthesis", err)
	}

	result := &RoundResult{
		RoundID:     roundID,
		Backend:     m.client.Name(),
		Responses:   responses,
		FinalAnswer: answer,
		Duration:    time.Since(start),
	}
	log.Info().Dur("duration", result.Duration).Msg("round complete")
	m.hooks.Emit(ctx, hooks.EventRoundComplete, map[string]any{
		"roundId":    roundID,
		"backend":    result.Backend,
		"model":      req.Model,
		"agentCount": len(responses),
		"durationMs": result.Duration.Milliseconds(),
	})
	return result, nil
}
