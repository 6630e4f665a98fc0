package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lunasherpa/luna/internal/domain"
)

func TestAgents_CopiesCapabilities(t *testing.T) {
	before := Agents()

	a := Agents()
	require.NotEmpty(t, a[1].Capabilities)
	a[1].Capabilities[0] = domain.AgentCapability{Kind: domain.CapabilityVideo, Description: "tampered"}
	a[0].Capabilities[1].Description = "tampered"
	a[2].Capabilities = append(a[2].Capabilities, domain.AgentCapability{Kind: domain.CapabilityBuild})
	a[0].Name = "Impostor"

	assert.Equal(t, before, Agents())
	assert.Equal(t, domain.CapabilityText, Agents()[3].Capabilities[0].Kind)
}

func TestFind_CopiesCapabilities(t *testing.T) {
	logician, ok := Find("logician")
	require.True(t, ok)
	logician.Capabilities[0].Description = "tampered"

	again, _ := Find("logician")
	assert.Equal(t, "Text analysis and generation", again.Capabilities[0].Description)
	assert.Equal(t, "Text analysis and generation", Synthesizer().Capabilities[0].Description)

	_, ok = Find("nobody")
	assert.False(t, ok)
}
