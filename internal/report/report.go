// Package report merges the outputs of one analysis pass into a single
// immutable document.
package report

import (
	"github.com/gyaneshwarpardhi/flowlens/internal/anomaly"
	"github.com/gyaneshwarpardhi/flowlens/internal/event"
	"github.com/gyaneshwarpardhi/flowlens/internal/flow"
	"github.com/gyaneshwarpardhi/flowlens/internal/session"
)

// Summary holds run-level totals.
type Summary struct {
	RecordsRead        int     `json:"records_read"`
	EventsAccepted     int     `json:"events_accepted"`
	Rejected           int     `json:"rejected"`
	Users              int     `json:"users"`
	Sessions           int     `json:"sessions"`
	AvgSessionsPerUser float64 `json:"avg_sessions_per_user"`
	Anomalies          int     `json:"anomalies"`
}

// Rejection is the number of records dropped for one reason.
type Rejection struct {
	Reason event.Reason `json:"reason"`
	Count  int          `json:"count"`
}

// KindCount is the number of anomaly records of one kind.
type KindCount struct {
	Kind  anomaly.Kind `json:"kind"`
	Count int          `json:"count"`
}

// Report is the complete result of an analysis pass. It carries no wall-clock
// data, so two passes over the same input marshal identically.
type Report struct {
	Summary           Summary            `json:"summary"`
	Rejections        []Rejection        `json:"rejections"`
	IdentityConflicts []session.Conflict `json:"identity_conflicts"`
	Flows             *flow.Result       `json:"flows"`
	Anomalies         []anomaly.Record   `json:"anomalies"`
	AnomalyCounts     []KindCount        `json:"anomaly_counts"`
	AnomalyPages      []PageAnomalies    `json:"anomaly_pages"`
	DetectorErrors    []string           `json:"detector_errors,omitempty"`
}

// Inputs is everything Assemble needs from the upstream stages.
type Inputs struct {
	RecordsRead    int
	EventsAccepted int
	Rejections     map[event.Reason]int
	Timeline       *session.Timeline
	Flows          *flow.Result
	Anomalies      []anomaly.Record // already ranked
	DetectorErrors []error
	TopN           int // caps AnomalyPages; 0 keeps every row
}

// Assemble builds the Report. Lists are never nil so empty input still
// marshals to empty arrays.
func Assemble(in Inputs) *Report {
	tl := in.Timeline
	if tl == nil {
		tl = &session.Timeline{}
	}

	r := &Report{
		Summary: Summary{
			RecordsRead:    in.RecordsRead,
			EventsAccepted: in.EventsAccepted,
			Rejected:       in.RecordsRead - in.EventsAccepted,
			Users:          len(tl.Users),
			Sessions:       len(tl.Sessions),
			Anomalies:      len(in.Anomalies),
		},
		Rejections:        make([]Rejection, 0, len(event.Reasons)),
		IdentityConflicts: tl.Conflicts(),
		Flows:             in.Flows,
		Anomalies:         in.Anomalies,
		AnomalyCounts:     make([]KindCount, 0, len(anomaly.Kinds)),
		AnomalyPages:      pageRollups(in.Anomalies, in.TopN),
	}
	if len(tl.Users) > 0 {
		r.Summary.AvgSessionsPerUser = float64(len(tl.Sessions)) / float64(len(tl.Users))
	}

	for _, reason := range event.Reasons {
		r.Rejections = append(r.Rejections, Rejection{Reason: reason, Count: in.Rejections[reason]})
	}

	counts := anomaly.CountByKind(in.Anomalies)
	for _, k := range anomaly.Kinds {
		r.AnomalyCounts = append(r.AnomalyCounts, KindCount{Kind: k, Count: counts[k]})
	}

	if r.IdentityConflicts == nil {
		r.IdentityConflicts = []session.Conflict{}
	}
	if r.Anomalies == nil {
		r.Anomalies = []anomaly.Record{}
	}
	if r.Flows == nil {
		r.Flows = &flow.Result{Completed: []flow.FlowStat{}, Abandoned: []flow.FlowStat{}}
	}
	for _, err := range in.DetectorErrors {
		r.DetectorErrors = append(r.DetectorErrors, err.Error())
	}
	return r
}

// Rejection returns the count for reason.
func (r *Report) Rejection(reason event.Reason) int {
	for _, rj := range r.Rejections {
		if rj.Reason == reason {
			return rj.Count
		}
	}
	return 0
}

// AnomalyCount returns the number of records of kind k.
func (r *Report) AnomalyCount(k anomaly.Kind) int {
	for _, kc := range r.AnomalyCounts {
		if kc.Kind == k {
			return kc.Count
		}
	}
	return 0
}
