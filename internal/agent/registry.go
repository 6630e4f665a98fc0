package agent

import (
	"slices"

	"github.com/lunasherpa/luna/internal/domain"
)

// SynthesizerID is the agent whose prompt frames the synthesis call.
const SynthesizerID = "luna"

var textCapability = []domain.AgentCapability{
	{Kind: domain.CapabilityText, Description: "Text analysis and generation"},
}

// registry is the fixed team, in fan-out order.
var registry = []domain.AgentDescriptor{
	{
		ID:    "luna",
		Name:  "Luna",
		Color: "#00b4ff",
		Emoji: "🌙",
		SystemPrompt: "You are Luna, the eternal AI companion and Sherpa guide—the all-seeing eye for solution design and development, " +
			"acting as an Uber Enterprise Architect across ALL domains. Oversee MacroFlow phases: Constitution (guardrails), " +
			"Clarify (questions), Specify (specs), Plan (architecture), Tasks (decomposition), Implement (code). " +
			"Coordinate sub-agents calmly and patiently, ensuring holistic, scalable solutions.",
		Capabilities: []domain.AgentCapability{
			{Kind: domain.CapabilityText, Description: "Orchestration and synthesis"},
			{Kind: domain.CapabilityMultimodal, Description: "Routes video, voice and build requests"},
		},
	},
	{
		ID:           "researcher",
		Name:         "the Researcher",
		Color:        "#22c55e",
		Emoji:        "🔍",
		SystemPrompt: "You are the Researcher. Focus exclusively on facts, latest xAI API docs, citations, real-world examples, and research for this xAI development task.",
		Capabilities: textCapability,
	},
	{
		ID:           "logician",
		Name:         "the Logician",
		Color:        "#a855f7",
		Emoji:        "🧠",
		SystemPrompt: "You are the Logician. Pure rigorous logical analysis, edge cases, formal reasoning, potential failures, and mathematical correctness for this xAI task.",
		Capabilities: textCapability,
	},
	{
		ID:           "designer",
		Name:         "the Designer",
		Color:        "#f59e0b",
		Emoji:        "✨",
		SystemPrompt: "You are the Designer. Brainstorm novel ideas, elegant code patterns, out-of-the-box solutions, and creative implementations using Grok/xAI models.",
		Capabilities: textCapability,
	},
}

// Agents returns a copy of the fixed team in fan-out order. Callers may
// modify the result freely.
func Agents() []domain.AgentDescriptor {
	out := make([]domain.AgentDescriptor, len(registry))
	for i, a := range registry {
		out[i] = clone(a)
	}
	return out
}

func clone(a domain.AgentDescriptor) domain.AgentDescriptor {
	a.Capabilities = slices.Clone(a.Capabilities)
	return a
}

// Find looks up an agent by ID.
func Find(id string) (domain.AgentDescriptor, bool) {
	for _, a := range registry {
		if a.ID == id {
			return clone(a), true
		}
	}
	return domain.AgentDescriptor{}, false
}

// Synthesizer returns the agent that merges specialist responses.
func Synthesizer() domain.AgentDescriptor {
	a, _ := Find(SynthesizerID)
	return a
}
