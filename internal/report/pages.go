package report

import (
	"slices"
	"strings"

	"github.com/gyaneshwarpardhi/flowlens/internal/anomaly"
)

// PageAnomalies rolls up the anomalies of one kind raised on one page:
// long gaps by the page the user was stuck on, error signals by the page
// the error appeared on.
type PageAnomalies struct {
	Path          string       `json:"path"`
	Kind          anomaly.Kind `json:"kind"`
	Count         int          `json:"count"`
	AvgGapSeconds float64      `json:"avg_gap_seconds,omitempty"`
	MaxGapSeconds float64      `json:"max_gap_seconds,omitempty"`
}

// pageRollups groups page-bound records by (kind, path), ranked by count
// desc, then path, then kind order. limit <= 0 keeps every row.
func pageRollups(recs []anomaly.Record, limit int) []PageAnomalies {
	type key struct {
		kind anomaly.Kind
		path string
	}
	type acc struct {
		count    int
		totalGap float64
		maxGap   float64
	}
	groups := make(map[key]*acc)
	bump := func(k key) *acc {
		a, ok := groups[k]
		if !ok {
			a = &acc{}
			groups[k] = a
		}
		a.count++
		return a
	}

	for _, r := range recs {
		switch ev := r.Evidence.(type) {
		case anomaly.GapEvidence:
			if ev.From.Path == "" {
				continue
			}
			a := bump(key{anomaly.KindLongGap, ev.From.Path})
			a.totalGap += ev.GapSeconds
			a.maxGap = max(a.maxGap, ev.GapSeconds)
		case anomaly.KeywordEvidence:
			if ev.Event.Path == "" {
				continue
			}
			bump(key{anomaly.KindErrorSignal, ev.Event.Path})
		}
	}

	out := make([]PageAnomalies, 0, len(groups))
	for k, a := range groups {
		row := PageAnomalies{Path: k.path, Kind: k.kind, Count: a.count}
		if k.kind == anomaly.KindLongGap {
			row.AvgGapSeconds = a.totalGap / float64(a.count)
			row.MaxGapSeconds = a.maxGap
		}
		out = append(out, row)
	}
	slices.SortFunc(out, func(a, b PageAnomalies) int {
		if a.Count != b.Count {
			return b.Count - a.Count
		}
		if c := strings.Compare(a.Path, b.Path); c != 0 {
			return c
		}
		return slices.Index(anomaly.Kinds, a.Kind) - slices.Index(anomaly.Kinds, b.Kind)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
