package models

import (
	"errors"
	"time"
)

// Per-stage latency budget of a voice turn, in milliseconds
type LatencyBudget struct {
	STTMs           float64 `json:"stt_ms"`
	LLMMs           float64 `json:"llm_ms"`
	TTSMs           float64 `json:"tts_ms"`
	NetworkBufferMs float64 `json:"network_buffer_ms"`

	// TotalMs is the SLA ceiling. It is configured on its own and need not
	// equal the sum of the stages.
	TotalMs float64 `json:"total_ms"`
}

// Returns the sum of the stage budgets
func (b LatencyBudget) ProcessingMs() float64 {
	return b.STTMs + b.LLMMs + b.TTSMs
}

// Scale multiplies every stage and the total by factor. The network buffer is fixed.
func (b LatencyBudget) Scale(factor float64) LatencyBudget {
	return LatencyBudget{
		STTMs:           b.STTMs * factor,
		LLMMs:           b.LLMMs * factor,
		TTSMs:           b.TTSMs * factor,
		NetworkBufferMs: b.NetworkBufferMs,
		TotalMs:         b.TotalMs * factor,
	}
}

func (b LatencyBudget) Total() time.Duration {
	return time.Duration(b.TotalMs * float64(time.Millisecond))
}

func (b LatencyBudget) Validate() error {
	if b.STTMs < 0 || b.LLMMs < 0 || b.TTSMs < 0 || b.NetworkBufferMs < 0 {
		return errors.New("stage budgets must not be negative")
	}
	if b.TotalMs <= 0 {
		return errors.New("total budget must be positive")
	}
	return nil
}
