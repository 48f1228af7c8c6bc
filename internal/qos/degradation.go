package qos

import (
	"slices"

	"github.com/aman-churiwal/voice-qos/internal/config"
	"github.com/aman-churiwal/voice-qos/internal/models"
)

// Optional pipeline features that degradation levels can switch off
const (
	FeatureHDSynthesis           = "hd_synthesis"
	FeatureParallelTranscription = "parallel_transcription"
	FeatureSentimentAnalysis     = "sentiment_analysis"
	FeatureContextEnrichment     = "context_enrichment"
	FeatureMemoryLookup          = "memory_lookup"
	FeatureCloudSTT              = "cloud_stt"
	FeatureCloudLLM              = "cloud_llm"
	FeatureCloudTTS              = "cloud_tts"
)

// p95 above this multiple of the default total budget reduces quality
const latencyDegradationFactor = 1.5

var (
	reducedQualityFeatures = []string{
		FeatureHDSynthesis,
		FeatureParallelTranscription,
	}

	skippedFeatures = append(slices.Clone(reducedQualityFeatures),
		FeatureSentimentAnalysis,
		FeatureContextEnrichment,
		FeatureMemoryLookup,
	)

	fallbackFeatures = append(slices.Clone(skippedFeatures),
		FeatureCloudSTT,
		FeatureCloudLLM,
		FeatureCloudTTS,
	)

	disabledFeatures = map[models.DegradationAction][]string{
		models.DegradationReduceQuality: reducedQualityFeatures,
		models.DegradationSkipFeatures:  skippedFeatures,
		models.DegradationFallback:      fallbackFeatures,
	}
)

// EvaluateDegradation maps load and p95 latency to a degradation level. It
// has no memory of the previous level.
func EvaluateDegradation(load, p95LatencyMs float64, cfg config.QoSConfig) models.DegradationAction {
	switch {
	case load > cfg.CriticalLoadThreshold:
		return models.DegradationFallback
	case load > cfg.HighLoadThreshold:
		return models.DegradationSkipFeatures
	case p95LatencyMs > latencyDegradationFactor*cfg.DefaultLatencyBudget.TotalMs:
		return models.DegradationReduceQuality
	default:
		return models.DegradationNone
	}
}

// DisabledFeatures returns the features switched off at level.
func DisabledFeatures(level models.DegradationAction) []string {
	return slices.Clone(disabledFeatures[level])
}

func (c *Controller) GetDegradationAction() models.DegradationAction {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.level
}

// ShouldDegrade reports whether feature is disabled at the current level.
func (c *Controller) ShouldDegrade(feature string) bool {
	return slices.Contains(disabledFeatures[c.GetDegradationAction()], feature)
}
