package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLatencyBudget_Scale(t *testing.T) {
	b := LatencyBudget{STTMs: 300, LLMMs: 800, TTSMs: 300, NetworkBufferMs: 100, TotalMs: 1500}

	scaled := b.Scale(2)
	assert.Equal(t, LatencyBudget{STTMs: 600, LLMMs: 1600, TTSMs: 600, NetworkBufferMs: 100, TotalMs: 3000}, scaled)
	assert.Equal(t, 1400.0, b.ProcessingMs())
	assert.Equal(t, 1500*time.Millisecond, b.Total())
}

// The network buffer is transport time and does not grow or shrink with
// priority. Scaling it too would change every priority budget.
func TestLatencyBudget_ScaleKeepsNetworkBufferFixed(t *testing.T) {
	b := LatencyBudget{STTMs: 300, LLMMs: 800, TTSMs: 300, NetworkBufferMs: 100, TotalMs: 1500}

	for _, factor := range []float64{0.8, 1, 1.5, 2} {
		scaled := b.Scale(factor)
		assert.Equalf(t, 100.0, scaled.NetworkBufferMs, "factor %v", factor)
		assert.Equalf(t, b.TotalMs*factor, scaled.TotalMs, "factor %v", factor)
	}
}

func TestLatencyBudget_Validate(t *testing.T) {
	assert.NoError(t, LatencyBudget{TotalMs: 1}.Validate())
	assert.Error(t, LatencyBudget{}.Validate())
	assert.Error(t, LatencyBudget{STTMs: -1, TotalMs: 100}.Validate())
}

func TestRequestContext_Elapsed(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rc := RequestContext{StartedAt: start}
	assert.Equal(t, 250*time.Millisecond, rc.Elapsed(start.Add(250*time.Millisecond)))
}
