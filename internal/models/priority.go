package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrUnknownPriority = errors.New("unknown priority")

// Priority orders requests for admission. Lower values win: CRITICAL(1) beats
// everything, BEST_EFFORT(5) only gets leftover capacity.
type Priority int

const (
	PriorityCritical Priority = iota + 1
	PriorityHigh
	PriorityNormal
	PriorityLow
	PriorityBestEffort
)

func (p Priority) String() string {
	switch p {
	case PriorityCritical:
		return "critical"
	case PriorityHigh:
		return "high"
	case PriorityNormal:
		return "normal"
	case PriorityLow:
		return "low"
	case PriorityBestEffort:
		return "best_effort"
	default:
		return "unknown"
	}
}

func (p Priority) Valid() bool {
	return p >= PriorityCritical && p <= PriorityBestEffort
}

// CanPreempt reports whether a request of this priority may evict another
// request when capacity is exhausted.
func (p Priority) CanPreempt() bool {
	return p == PriorityCritical || p == PriorityHigh
}

// Preemptable reports whether a request of this priority may be evicted.
func (p Priority) Preemptable() bool {
	return p == PriorityLow || p == PriorityBestEffort
}

// Parses a priority name ("high", "best_effort") or its numeric value ("2")
func ParsePriority(s string) (Priority, error) {
	s = strings.ToLower(strings.TrimSpace(s))

	if n, err := strconv.Atoi(s); err == nil {
		p := Priority(n)
		if !p.Valid() {
			return 0, fmt.Errorf("%w: %d", ErrUnknownPriority, n)
		}
		return p, nil
	}

	switch strings.ReplaceAll(s, "-", "_") {
	case "critical":
		return PriorityCritical, nil
	case "high":
		return PriorityHigh, nil
	case "normal", "":
		return PriorityNormal, nil
	case "low":
		return PriorityLow, nil
	case "best_effort", "besteffort":
		return PriorityBestEffort, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownPriority, s)
	}
}

func (p Priority) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

func (p *Priority) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		parsed := Priority(n)
		if !parsed.Valid() {
			return fmt.Errorf("%w: %d", ErrUnknownPriority, n)
		}
		*p = parsed
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	parsed, err := ParsePriority(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
