package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/lunasherpa/luna/internal/domain"
	"github.com/lunasherpa/luna/internal/version"
)

const xaiService = "xai"

// XAIClient calls the OpenAI-compatible xAI chat completions endpoint.
// The credential is supplied per call, so one XAIClient serves any key.
type XAIClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewXAIClient creates a client for the given API root
// (e.g., "https://api.x.ai/v1"). A nil httpClient gets a 120s timeout; a
// given one is copied, never modified.
func NewXAIClient(baseURL string, httpClient *http.Client) *XAIClient {
	hc := &http.Client{Timeout: 120 * time.Second}
	if httpClient != nil {
		copied := *httpClient
		hc = &copied
	}
	if hc.Transport == nil {
		hc.Transport = userAgentTransport{base: http.DefaultTransport}
	}
	return &XAIClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: hc,
	}
}

func (c *XAIClient) Name() string { return "xai" }

// BaseURL returns the API root this client posts to.
func (c *XAIClient) BaseURL() string { return c.baseURL }

// CallAgent sends one chat completion framed by the agent's system prompt.
func (c *XAIClient) CallAgent(ctx context.Context, agent domain.AgentDescriptor, prompt, credential, model string) (*domain.AgentResponse, error) {
	content, err := c.Complete(ctx, agent.SystemPrompt, prompt, credential, model, AgentTemperature, AgentMaxTokens)
	if err != nil {
		return nil, err
	}
	resp := domain.ResponseFor(agent, content)
	return &resp, nil
}

// Complete sends a system message followed by a user message and returns the
// first choice's content verbatim.
func (c *XAIClient) Complete(ctx context.Context, system, user, credential, model string, temperature float32, maxTokens int) (string, error) {
	if strings.TrimSpace(credential) == "" {
		return "", &MissingCredentialError{}
	}

	resp, err := c.openai(credential).CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return "", mapOpenAIError(ctx, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s: response contained no choices", xaiService)
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *XAIClient) openai(credential string) *openai.Client {
	cfg := openai.DefaultConfig(credential)
	cfg.BaseURL = c.baseURL
	cfg.HTTPClient = c.httpClient
	return openai.NewClientWithConfig(cfg)
}

// mapOpenAIError converts go-openai failures into this package's taxonomy.
func mapOpenAIError(ctx context.Context, err error) error {
	if aborted := asAborted(ctx, err); aborted != nil {
		return aborted
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &RemoteServiceError{Service: xaiService, Code: apiErr.HTTPStatusCode, Message: apiErr.Message}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		msg := http.StatusText(reqErr.HTTPStatusCode)
		if reqErr.Err != nil {
			msg = reqErr.Err.Error()
		}
		return &RemoteServiceError{Service: xaiService, Code: reqErr.HTTPStatusCode, Message: msg}
	}

	return fmt.Errorf("%s: request failed: %w", xaiService, err)
}

// userAgentTransport stamps outgoing requests with the luna user agent.
type userAgentTransport struct {
	base http.RoundTripper
}

func (t userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", version.UserAgent())
	return t.base.RoundTrip(req)
}
