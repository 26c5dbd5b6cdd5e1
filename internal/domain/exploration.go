package domain

import (
	"encoding/json"
	"time"
)

// ExplorationMode selects the instruction set and output schema for a run.
type ExplorationMode string

const (
	ModeGeneric   ExplorationMode = "generic"
	ModeFirstPass ExplorationMode = "first_pass"
	ModeFeatures  ExplorationMode = "features"
	ModeServices  ExplorationMode = "services"
)

// Valid reports whether m is one of the known modes.
func (m ExplorationMode) Valid() bool {
	switch m {
	case ModeGeneric, ModeFirstPass, ModeFeatures, ModeServices:
		return true
	}
	return false
}

// ExplorationOutcome distinguishes how a run ended.
type ExplorationOutcome int

const (
	OutcomeOK ExplorationOutcome = iota
	OutcomeFallback
	OutcomeError
)

func (o ExplorationOutcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeFallback:
		return "fallback"
	default:
		return "error"
	}
}

// FirstPassResult is the structured answer for first_pass mode.
type FirstPassResult struct {
	Summary        string   `json:"summary"`
	KeyFiles       []string `json:"key_files"`
	Infrastructure []string `json:"infrastructure"`
	Dependencies   []string `json:"dependencies"`
	UserStories    []string `json:"user_stories"`
	Pages          []string `json:"pages"`
}

// FeaturesResult is the structured answer for features mode.
type FeaturesResult struct {
	Summary  string   `json:"summary"`
	KeyFiles []string `json:"key_files"`
	Features []string `json:"features"`
}

// ExplorationResult is the payload stored and published after a run. Exactly
// one of the typed fields is set for parsed modes; Raw holds the answer for
// services/generic mode and for degraded (unparseable) payloads.
type ExplorationResult struct {
	FirstPass *FirstPassResult `json:"first_pass,omitempty"`
	Features  *FeaturesResult  `json:"features,omitempty"`
	Raw       string           `json:"raw,omitempty"`
	// Fallback marks a run that ended without a formal answer submission;
	// Raw then carries the model's last free text.
	Fallback bool `json:"fallback,omitempty"`
}

// MarshalPayload renders the result as the wire/store payload: the typed
// struct when present, otherwise the raw text.
func (r ExplorationResult) MarshalPayload() (json.RawMessage, error) {
	switch {
	case r.FirstPass != nil:
		return json.Marshal(r.FirstPass)
	case r.Features != nil:
		return json.Marshal(r.Features)
	default:
		return json.Marshal(r.Raw)
	}
}

// ExplorationRecord is the durable form of one (repo, mode) exploration.
// Later writes replace earlier ones; no history is retained.
type ExplorationRecord struct {
	Mode          ExplorationMode   `json:"mode"`
	Result        ExplorationResult `json:"result"`
	TimestampMS   int64             `json:"timestamp"`
	Owner         string            `json:"owner"`
	Repo          string            `json:"repo"`
	SchemaVersion string            `json:"version"`
}

// Age returns how old the record is relative to now.
func (r ExplorationRecord) Age(now time.Time) time.Duration {
	return now.Sub(time.UnixMilli(r.TimestampMS))
}

// RepoSummary describes one stored repository as reported by the store.
type RepoSummary struct {
	Key             RepoKey
	ExploredModes   []ExplorationMode
	LastExploredMS  int64
	HasSnapshot     bool
	SnapshotStoreMS int64
}
