package models

import "encoding/json"

// System-wide degradation mode. Higher values are more severe.
type DegradationAction int

const (
	// DegradationNone - normal operation, every feature enabled
	DegradationNone DegradationAction = iota

	// DegradationReduceQuality - cheaper synthesis and transcription paths
	DegradationReduceQuality

	// DegradationSkipFeatures - optional enrichment stages are skipped
	DegradationSkipFeatures

	// The next three are never assigned automatically
	DegradationUseCache
	DegradationQueue
	DegradationReject

	// DegradationFallback - cloud providers are bypassed for local fallbacks
	DegradationFallback
)

func (d DegradationAction) String() string {
	switch d {
	case DegradationNone:
		return "none"
	case DegradationReduceQuality:
		return "reduce_quality"
	case DegradationSkipFeatures:
		return "skip_features"
	case DegradationUseCache:
		return "use_cache"
	case DegradationQueue:
		return "queue"
	case DegradationReject:
		return "reject"
	case DegradationFallback:
		return "fallback"
	default:
		return "unknown"
	}
}

func (d DegradationAction) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}
