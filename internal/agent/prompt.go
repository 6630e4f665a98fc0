package agent

import (
	"fmt"
	"strings"

	"github.com/lunasherpa/luna/internal/domain"
	"github.com/lunasherpa/luna/internal/llm"
)

// MaxContextChars bounds the code context attached to a query.
const MaxContextChars = 150000

const (
	noCodeSelected     = "No code selected."
	truncatedMarker    = "\n... (truncated)"
	synthesisDirective = " Now synthesize the specialist responses into ONE final, actionable answer."
)

// BuildPrompt frames the user query together with the code context sent to
// every agent. An empty context is replaced by a fixed marker.
func BuildPrompt(query, codeContext string) string {
	if codeContext == "" {
		codeContext = noCodeSelected
	}
	return fmt.Sprintf("%s\n\n=== xAI DEVELOPMENT CONTEXT ===\n%s\n=== END CONTEXT ===", query, codeContext)
}

// TruncateContext caps s at MaxContextChars characters, appending a marker
// when anything was dropped.
func TruncateContext(s string) string {
	if len(s) <= MaxContextChars {
		return s
	}
	runes := []rune(s)
	if len(runes) <= MaxContextChars {
		return s
	}
	return string(runes[:MaxContextChars]) + truncatedMarker
}

// SynthesisSystemPrompt is the synthesizer's own prompt plus the merge directive.
func SynthesisSystemPrompt(synthesizer domain.AgentDescriptor) string {
	return synthesizer.SystemPrompt + synthesisDirective
}

// SynthesisUserPrompt embeds the query and every specialist response.
func SynthesisUserPrompt(query string, responses []domain.AgentResponse) string {
	parts := make([]string, len(responses))
	for i, r := range responses {
		parts[i] = r.Name + ": " + r.Content
	}
	return "User query: " + query + "\n\nSpecialist responses:\n" + strings.Join(parts, "\n\n")
}

// DemoSynthesis is the offline synthesized answer for query.
func DemoSynthesis(query string) string {
	return llm.DemoSynthesis(query)
}
