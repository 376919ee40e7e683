// Package anomaly runs independent detectors over reconstructed sessions and
// ranks the typed records they produce.
package anomaly

import (
	"fmt"
	"strings"
	"time"

	"github.com/gyaneshwarpardhi/flowlens/internal/event"
)

// Kind is the closed set of anomaly kinds.
type Kind string

const (
	KindLongGap          Kind = "long_gap"
	KindErrorSignal      Kind = "error_signal"
	KindHighActivity     Kind = "high_activity"
	KindIdentityConflict Kind = "session_identity_conflict"
)

// Kinds lists every kind in reporting order.
var Kinds = []Kind{KindLongGap, KindErrorSignal, KindHighActivity, KindIdentityConflict}

func (k Kind) order() int {
	for i, v := range Kinds {
		if v == k {
			return i
		}
	}
	return len(Kinds)
}

// Severity is an ordinal triage level.
type Severity int

const (
	SeverityLow Severity = iota + 1
	SeverityMedium
	SeverityHigh
)

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	}
	return fmt.Sprintf("severity(%d)", int(s))
}

// MarshalText renders the severity by name.
func (s Severity) MarshalText() ([]byte, error) {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh:
		return []byte(s.String()), nil
	}
	return nil, fmt.Errorf("anomaly: unknown severity %d", int(s))
}

// UnmarshalText parses a severity name.
func (s *Severity) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "low":
		*s = SeverityLow
	case "medium":
		*s = SeverityMedium
	case "high":
		*s = SeverityHigh
	default:
		return fmt.Errorf("anomaly: unknown severity %q", b)
	}
	return nil
}

// Anchor pins a record to the event (or event pair) it was detected at.
type Anchor struct {
	EventIDs  []string  `json:"event_ids"`
	Timestamp time.Time `json:"timestamp"`
}

// Evidence is the kind-specific payload of a record. The set of
// implementations is closed: GapEvidence, KeywordEvidence, ActivityEvidence
// and IdentityEvidence.
type Evidence interface {
	Kind() Kind
	// Summary is a one-line, human-readable statement of the evidence.
	Summary() string
	evidence()
}

// Record is a single detected anomaly.
type Record struct {
	Kind       Kind     `json:"kind"`
	UserID     string   `json:"user_id"`
	SessionID  string   `json:"session_id"`
	Severity   Severity `json:"severity"`
	Evidence   Evidence `json:"evidence"`
	DetectedAt Anchor   `json:"detected_at"`
}

// GapEvidence backs a long_gap record.
type GapEvidence struct {
	From             event.Ref `json:"from"`
	To               event.Ref `json:"to"`
	GapSeconds       float64   `json:"gap_seconds"`
	ThresholdSeconds float64   `json:"threshold_seconds"`
	Ratio            float64   `json:"ratio"`
}

func (GapEvidence) Kind() Kind { return KindLongGap }
func (GapEvidence) evidence()  {}

func (e GapEvidence) Summary() string {
	return fmt.Sprintf("idle %.1f min on %s before %s", e.GapSeconds/60, e.From.Path, e.To.Path)
}

// KeywordEvidence backs an error_signal record.
type KeywordEvidence struct {
	Event    event.Ref `json:"event"`
	Tokens   []string  `json:"tokens"`
	Fields   []string  `json:"fields"`
	Selector string    `json:"selector,omitempty"`
	Label    string    `json:"label,omitempty"`
}

func (KeywordEvidence) Kind() Kind { return KindErrorSignal }
func (KeywordEvidence) evidence()  {}

func (e KeywordEvidence) Summary() string {
	return fmt.Sprintf("%s matched %s on %s", strings.Join(e.Fields, "+"), strings.Join(e.Tokens, ", "), e.Event.Path)
}

// ActivityEvidence backs a high_activity record.
type ActivityEvidence struct {
	EventCount      int     `json:"event_count"`
	Mean            float64 `json:"mean"`
	StdDev          float64 `json:"stddev"`
	Threshold       float64 `json:"threshold"`
	Policy          string  `json:"policy"`
	DurationSeconds float64 `json:"duration_seconds"`
}

func (ActivityEvidence) Kind() Kind { return KindHighActivity }
func (ActivityEvidence) evidence()  {}

func (e ActivityEvidence) Summary() string {
	return fmt.Sprintf("%d events in %.1f min (threshold %.1f, mean %.1f)",
		e.EventCount, e.DurationSeconds/60, e.Threshold, e.Mean)
}

// UserEvents counts the events one user contributed to a session.
type UserEvents struct {
	UserID string `json:"user_id"`
	Events int    `json:"events"`
}

// IdentityEvidence backs a session_identity_conflict record.
type IdentityEvidence struct {
	Owner     string       `json:"owner"`
	Claimants []UserEvents `json:"claimants"`
}

func (IdentityEvidence) Kind() Kind { return KindIdentityConflict }
func (IdentityEvidence) evidence()  {}

func (e IdentityEvidence) Summary() string {
	ids := make([]string, len(e.Claimants))
	for i, c := range e.Claimants {
		ids[i] = c.UserID
	}
	return fmt.Sprintf("claimed by %d users: %s", len(ids), strings.Join(ids, ", "))
}
