// Package panel is the presentation layer for a round. A Panel receives
// typed messages (status updates, the final result, errors and media or
// build results) and renders them for one surface: the terminal, a JSON
// stream or a WebSocket client.
package panel

import (
	"encoding/json"
	"fmt"

	"github.com/lunasherpa/luna/internal/domain"
)

// Message kinds.
const (
	KindStatus      = "status"
	KindComplete    = "complete"
	KindError       = "error"
	KindVideoResult = "videoResult"
	KindVoiceResult = "voiceResult"
	KindBuildResult = "buildResult"
)

// Panel renders messages for one surface.
type Panel interface {
	Update(kind string, data any) error
}

// Func adapts a function to the Panel interface.
type Func func(kind string, data any) error

// Update calls f.
func (f Func) Update(kind string, data any) error { return f(kind, data) }

// Status is the payload of a status message.
type Status struct {
	Message string `json:"message"`
}

// Complete carries a finished round.
type Complete struct {
	Responses   []domain.AgentResponse `json:"responses"`
	FinalAnswer string                 `json:"finalAnswer"`
}

// Error is the payload of an error message.
type Error struct {
	Message string `json:"message"`
}

// Media carries a video or voice result.
type Media struct {
	Response      *domain.AgentResponse `json:"response,omitempty"`
	Transcription string                `json:"transcription,omitempty"`
}

// Build carries a build result and, when run, its validation.
type Build struct {
	Result     *domain.BuildResult      `json:"result"`
	Validation *domain.ValidationResult `json:"validation,omitempty"`
}

// Encode renders a message as a flat JSON object with a "type" field
// followed by the payload's fields.
func Encode(kind string, data any) ([]byte, error) {
	fields := map[string]any{}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("encoding %s message: %w", kind, err)
		}
		if err := json.Unmarshal(raw, &fields); err != nil {
			// Non-object payloads are nested under "data".
			fields = map[string]any{"data": json.RawMessage(raw)}
		}
	}
	fields["type"] = kind
	return json.Marshal(fields)
}
