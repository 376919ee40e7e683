package anomaly

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/gyaneshwarpardhi/flowlens/internal/config"
	"github.com/gyaneshwarpardhi/flowlens/internal/metrics"
	"github.com/gyaneshwarpardhi/flowlens/internal/session"
)

// Scope tells the engine what slice of the timeline a detector needs.
type Scope int

const (
	// ScopeSession detectors look at one session at a time and may be fed
	// disjoint partitions of the timeline.
	ScopeSession Scope = iota
	// ScopeGlobal detectors need every session at once.
	ScopeGlobal
)

// Detector is the interface all anomaly detectors satisfy.
// Detectors are stateless; Detect may be called concurrently.
type Detector interface {
	Name() string
	Scope() Scope
	Detect(tl *session.Timeline) []Record
}

// FromConfig builds the standard detector battery from validated configuration.
func FromConfig(cfg *config.AnalysisConfig) []Detector {
	return []Detector{
		NewGapDetector(cfg.Gap),
		NewKeywordDetector(cfg.Keywords),
		NewActivityDetector(cfg.Activity),
		NewIdentityDetector(),
	}
}

// Safe runs d over tl. A panicking detector is logged, counted and yields no
// records, so one broken detector never takes the others down.
func Safe(d Detector, tl *session.Timeline) (recs []Record, err error) {
	defer func() {
		if r := recover(); r != nil {
			metrics.DetectorFailures.WithLabelValues(d.Name()).Inc()
			slog.Error("detector failed", "detector", d.Name(), "panic", r)
			recs, err = nil, fmt.Errorf("detector %s: %v", d.Name(), r)
		}
	}()
	return d.Detect(tl), nil
}

// Run executes every detector over every session and returns the ranked records
// along with the failures of detectors that had to be skipped.
func Run(tl *session.Timeline, detectors ...Detector) ([]Record, []error) {
	var (
		all  []Record
		errs []error
	)
	for _, d := range detectors {
		recs, err := Safe(d, tl)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		all = append(all, recs...)
	}
	Rank(all)
	return all, errs
}

// Rank sorts records by severity descending, then anchor time ascending.
// Remaining ties fall back to kind, session, user and anchor event so the
// order never depends on detector scheduling.
func Rank(recs []Record) {
	slices.SortStableFunc(recs, compareRecords)
}

func compareRecords(a, b Record) int {
	if a.Severity != b.Severity {
		return int(b.Severity) - int(a.Severity)
	}
	if c := a.DetectedAt.Timestamp.Compare(b.DetectedAt.Timestamp); c != 0 {
		return c
	}
	if a.Kind != b.Kind {
		return a.Kind.order() - b.Kind.order()
	}
	if c := strings.Compare(a.SessionID, b.SessionID); c != 0 {
		return c
	}
	if c := strings.Compare(a.UserID, b.UserID); c != 0 {
		return c
	}
	return slices.Compare(a.DetectedAt.EventIDs, b.DetectedAt.EventIDs)
}

// CountByKind tallies records per kind, with every kind present.
func CountByKind(recs []Record) map[Kind]int {
	out := make(map[Kind]int, len(Kinds))
	for _, k := range Kinds {
		out[k] = 0
	}
	for _, r := range recs {
		out[r.Kind]++
	}
	return out
}
