package domain

// CapabilityKind names what an agent persona is able to handle.
type CapabilityKind string

const (
	CapabilityText       CapabilityKind = "text"
	CapabilityVoice      CapabilityKind = "voice"
	CapabilityVideo      CapabilityKind = "video"
	CapabilityBuild      CapabilityKind = "build"
	CapabilityMultimodal CapabilityKind = "multimodal"
)

// AgentCapability describes one capability advertised by an agent.
type AgentCapability struct {
	Kind        CapabilityKind `json:"type"`
	Description string         `json:"description"`
}

// AgentDescriptor is a fixed persona used to frame one request to the LLM API.
// Descriptors are created once at startup and shared read-only.
type AgentDescriptor struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Color        string            `json:"color"`
	Emoji        string            `json:"emoji"`
	SystemPrompt string            `json:"system"`
	Capabilities []AgentCapability `json:"capabilities,omitempty"`
}

// MediaKind classifies the payload carried by an AgentResponse.
type MediaKind string

const (
	MediaText       MediaKind = "text"
	MediaAudio      MediaKind = "audio"
	MediaVideo      MediaKind = "video"
	MediaMultimodal MediaKind = "multimodal"
)

// AgentResponse is the result of one agent call.
type AgentResponse struct {
	AgentID   string         `json:"id"`
	Name      string         `json:"name"`
	Color     string         `json:"color"`
	Emoji     string         `json:"emoji"`
	Content   string         `json:"content"`
	MediaKind MediaKind      `json:"mediaType,omitempty"`
	MediaURL  string         `json:"mediaUrl,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// ResponseFor builds a text response stamped with the agent's identity fields.
func ResponseFor(agent AgentDescriptor, content string) AgentResponse {
	return AgentResponse{
		AgentID:   agent.ID,
		Name:      agent.Name,
		Color:     agent.Color,
		Emoji:     agent.Emoji,
		Content:   content,
		MediaKind: MediaText,
	}
}
