package report

import (
	"encoding/json"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyaneshwarpardhi/flowlens/internal/anomaly"
	"github.com/gyaneshwarpardhi/flowlens/internal/event"
	"github.com/gyaneshwarpardhi/flowlens/internal/session"
)

func TestAssemble_Empty(t *testing.T) {
	r := Assemble(Inputs{RecordsRead: 3, Rejections: map[event.Reason]int{event.ReasonMalformedJSON: 3}})

	assert.Equal(t, 3, r.Summary.RecordsRead)
	assert.Equal(t, 3, r.Summary.Rejected)
	assert.Zero(t, r.Summary.AvgSessionsPerUser)
	assert.Equal(t, 3, r.Rejection(event.ReasonMalformedJSON))
	assert.Len(t, r.Rejections, len(event.Reasons))
	assert.Len(t, r.AnomalyCounts, len(anomaly.Kinds))

	b, err := json.Marshal(r)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.Equal(t, []any{}, decoded["anomalies"])
	assert.Equal(t, []any{}, decoded["identity_conflicts"])
	assert.Equal(t, []any{}, decoded["anomaly_pages"])
	assert.NotContains(t, decoded, "detector_errors")
}

func TestAssemble_Totals(t *testing.T) {
	ts := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	events := []event.Event{
		{ID: "1", UserID: "alice", SessionID: "a1", Timestamp: ts, Seq: 0},
		{ID: "2", UserID: "alice", SessionID: "a2", Timestamp: ts, Seq: 1},
		{ID: "3", UserID: "bob", SessionID: "b1", Timestamp: ts, Seq: 2},
		{ID: "4", UserID: "carol", SessionID: "b1", Timestamp: ts, Seq: 3},
	}
	tl := session.Reconstruct(slices.Values(events))
	recs := []anomaly.Record{
		{Kind: anomaly.KindIdentityConflict, SessionID: "b1", Severity: anomaly.SeverityHigh},
		{Kind: anomaly.KindLongGap, SessionID: "a1", Severity: anomaly.SeverityLow},
	}

	r := Assemble(Inputs{
		RecordsRead:    6,
		EventsAccepted: 4,
		Rejections:     map[event.Reason]int{event.ReasonBadTimestamp: 2},
		Timeline:       tl,
		Anomalies:      recs,
		DetectorErrors: []error{errors.New("detector x: boom")},
	})

	assert.Equal(t, Summary{
		RecordsRead:        6,
		EventsAccepted:     4,
		Rejected:           2,
		Users:              2,
		Sessions:           3,
		AvgSessionsPerUser: 1.5,
		Anomalies:          2,
	}, r.Summary)
	assert.Equal(t, 2, r.Rejection(event.ReasonBadTimestamp))
	assert.Equal(t, 0, r.Rejection(event.ReasonMissingUserID))
	assert.Equal(t, 1, r.AnomalyCount(anomaly.KindLongGap))
	assert.Equal(t, 0, r.AnomalyCount(anomaly.KindHighActivity))
	require.Len(t, r.IdentityConflicts, 1)
	assert.Equal(t, session.Conflict{SessionID: "b1", Owner: "bob", UserIDs: []string{"bob", "carol"}}, r.IdentityConflicts[0])
	assert.Equal(t, []string{"detector x: boom"}, r.DetectorErrors)
	assert.Equal(t, anomaly.KindLongGap, r.AnomalyCounts[0].Kind)
}

func gapRecord(from string, minutes float64) anomaly.Record {
	return anomaly.Record{
		Kind:     anomaly.KindLongGap,
		Severity: anomaly.SeverityLow,
		Evidence: anomaly.GapEvidence{
			From:       event.Ref{Path: from},
			To:         event.Ref{Path: "/next"},
			GapSeconds: minutes * 60,
		},
	}
}

func errorRecord(path string) anomaly.Record {
	return anomaly.Record{
		Kind:     anomaly.KindErrorSignal,
		Severity: anomaly.SeverityMedium,
		Evidence: anomaly.KeywordEvidence{Event: event.Ref{Path: path}, Tokens: []string{"error"}},
	}
}

func TestAssemble_AnomalyPages(t *testing.T) {
	recs := []anomaly.Record{
		gapRecord("/cart", 6),
		errorRecord("/checkout"),
		gapRecord("/cart", 12),
		errorRecord("/cart"),
		gapRecord("/products/1", 30),
		errorRecord("/checkout"),
		gapRecord("", 8),
		{Kind: anomaly.KindHighActivity, Severity: anomaly.SeverityLow, Evidence: anomaly.ActivityEvidence{EventCount: 40}},
		{Kind: anomaly.KindIdentityConflict, Severity: anomaly.SeverityHigh},
	}

	r := Assemble(Inputs{Anomalies: recs})
	assert.Equal(t, []PageAnomalies{
		{Path: "/cart", Kind: anomaly.KindLongGap, Count: 2, AvgGapSeconds: 540, MaxGapSeconds: 720},
		{Path: "/checkout", Kind: anomaly.KindErrorSignal, Count: 2},
		{Path: "/cart", Kind: anomaly.KindErrorSignal, Count: 1},
		{Path: "/products/1", Kind: anomaly.KindLongGap, Count: 1, AvgGapSeconds: 1800, MaxGapSeconds: 1800},
	}, r.AnomalyPages)

	capped := Assemble(Inputs{Anomalies: recs, TopN: 2})
	require.Len(t, capped.AnomalyPages, 2)
	assert.Equal(t, "/checkout", capped.AnomalyPages[1].Path)

	empty := Assemble(Inputs{})
	assert.NotNil(t, empty.AnomalyPages)
	assert.Empty(t, empty.AnomalyPages)
}
