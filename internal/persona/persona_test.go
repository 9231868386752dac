package persona

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ashureev/cosmic-guide/internal/domain"
)

func TestEveryPersonaHasAGuide(t *testing.T) {
	for _, p := range domain.Personas() {
		g := For(p)
		assert.Equal(t, p, g.Persona)
		assert.NotEmpty(t, g.Salutation, p.String())
		assert.NotEmpty(t, g.Voice, p.String())
		for _, ph := range []domain.Phase{domain.PhaseOverview, domain.PhaseRemediesOnRequest, domain.PhaseDetailedPlan} {
			assert.NotEmpty(t, g.PhaseInstructions(ph), "%s phase %d", p, ph)
		}
	}
	assert.Len(t, All(), 3)
}

func TestPhaseInstructionsDiffer(t *testing.T) {
	g := For(domain.VedicGuru)
	assert.NotEqual(t, g.PhaseInstructions(domain.PhaseOverview), g.PhaseInstructions(domain.PhaseDetailedPlan))
}

func TestTemperatureDropsWithDepth(t *testing.T) {
	g := For(domain.CosmicStrategist)
	assert.InDelta(t, 0.7, g.Temperature(domain.PhaseOverview), 1e-9)
	assert.InDelta(t, 0.6, g.Temperature(domain.PhaseRemediesOnRequest), 1e-9)
	assert.InDelta(t, 0.5, g.Temperature(domain.PhaseDetailedPlan), 1e-9)
}

func TestForPanicsOnUnknownPersona(t *testing.T) {
	assert.Panics(t, func() { For(domain.Persona(42)) })
}
