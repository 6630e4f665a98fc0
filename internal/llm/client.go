// Package llm defines the agent-call interface and its xAI-backed variants.
//
// Every variant implements Client. Media and build support are optional
// capabilities discovered at runtime with type assertions rather than
// through a class hierarchy:
//   - XAIClient talks to the chat completions endpoint
//   - ExtendedClient adds video, voice and build endpoints on top of XAIClient
//   - DemoClient returns canned text and never touches the network
package llm

import (
	"context"

	"github.com/lunasherpa/luna/internal/domain"
)

// Sampling parameters for the two request shapes the agent round issues.
const (
	AgentTemperature     float32 = 0.7
	AgentMaxTokens               = 2048
	SynthesisTemperature float32 = 0.5
	SynthesisMaxTokens           = 4096
)

// Client is the interface every agent backend implements.
type Client interface {
	// CallAgent sends the agent's system prompt followed by prompt and
	// returns the response stamped with the agent's identity.
	CallAgent(ctx context.Context, agent domain.AgentDescriptor, prompt, credential, model string) (*domain.AgentResponse, error)

	// Name returns the backend name (e.g., "xai", "demo").
	Name() string
}

// Completer issues a single system+user completion with explicit sampling.
// The synthesis step uses it when the backend is online.
type Completer interface {
	Complete(ctx context.Context, system, user, credential, model string, temperature float32, maxTokens int) (string, error)
}

// VideoClient analyzes and generates video.
type VideoClient interface {
	ProcessVideo(ctx context.Context, video []byte, prompt, credential, model string) (*domain.AgentResponse, error)
	GenerateVideo(ctx context.Context, description, quality, credential, model string) (*domain.AgentResponse, error)
}

// VoiceClient analyzes, generates and transcribes audio.
type VoiceClient interface {
	ProcessVoice(ctx context.Context, audio []byte, prompt, credential, model string) (*domain.AgentResponse, error)
	GenerateVoice(ctx context.Context, text, voice, credential, model string) (*domain.AgentResponse, error)
	TranscribeAudio(ctx context.Context, audio []byte, credential, model string) (string, error)
}

// BuildClient creates and validates builds.
type BuildClient interface {
	CreateBuild(ctx context.Context, spec domain.BuildSpec, credential, model string) (*domain.BuildResult, error)
	ValidateBuild(ctx context.Context, buildID, credential, model string) (*domain.ValidationResult, error)
}

// OfflineSynthesizer is implemented by backends that can produce the final
// answer locally. A synthesizer never performs network I/O.
type OfflineSynthesizer interface {
	Synthesize(query string) string
}

// Capabilities summarizes the optional interfaces a Client implements.
type Capabilities struct {
	Video   bool `json:"video"`
	Voice   bool `json:"voice"`
	Build   bool `json:"build"`
	Offline bool `json:"offline"`
}

// CapabilitiesOf reports which optional interfaces c implements.
func CapabilitiesOf(c Client) Capabilities {
	_, video := c.(VideoClient)
	_, voice := c.(VoiceClient)
	_, build := c.(BuildClient)
	_, offline := c.(OfflineSynthesizer)
	return Capabilities{Video: video, Voice: voice, Build: build, Offline: offline}
}
