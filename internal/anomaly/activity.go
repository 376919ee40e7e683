package anomaly

import (
	"math"
	"slices"

	"github.com/gyaneshwarpardhi/flowlens/internal/config"
	"github.com/gyaneshwarpardhi/flowlens/internal/session"
)

// ActivityDetector flags sessions with an outlying number of events.
// It needs the distribution over every session before judging any one.
type ActivityDetector struct {
	policy     config.OutlierPolicy
	multiplier float64
	percentile float64
}

// NewActivityDetector builds an ActivityDetector from validated configuration.
func NewActivityDetector(cfg config.ActivityConf) *ActivityDetector {
	return &ActivityDetector{
		policy:     cfg.Policy,
		multiplier: cfg.Multiplier,
		percentile: cfg.Percentile,
	}
}

func (d *ActivityDetector) Name() string { return string(KindHighActivity) }
func (d *ActivityDetector) Scope() Scope { return ScopeGlobal }

// Stats summarizes the session-size distribution.
type Stats struct {
	Mean      float64
	StdDev    float64
	Threshold float64
}

// Stats computes the distribution and the outlier threshold for counts.
func (d *ActivityDetector) Stats(counts []int) Stats {
	n := len(counts)
	if n == 0 {
		return Stats{}
	}
	var sum float64
	for _, c := range counts {
		sum += float64(c)
	}
	mean := sum / float64(n)

	var sd float64
	if n > 1 {
		var sq float64
		for _, c := range counts {
			diff := float64(c) - mean
			sq += diff * diff
		}
		sd = math.Sqrt(sq / float64(n-1))
	}

	st := Stats{Mean: mean, StdDev: sd}
	switch d.policy {
	case config.PolicyPercentile:
		sorted := slices.Clone(counts)
		slices.Sort(sorted)
		rank := int(math.Ceil(d.percentile / 100 * float64(n)))
		rank = max(1, min(rank, n))
		st.Threshold = float64(sorted[rank-1])
	default:
		if n > 1 {
			st.Threshold = mean + d.multiplier*sd
		} else {
			st.Threshold = mean * d.multiplier
		}
	}
	return st
}

func (d *ActivityDetector) Detect(tl *session.Timeline) []Record {
	counts := make([]int, len(tl.Sessions))
	for i, s := range tl.Sessions {
		counts[i] = s.Len()
	}
	st := d.Stats(counts)
	if st.Threshold <= 0 {
		return nil
	}

	var out []Record
	for _, s := range tl.Sessions {
		if s.Len() == 0 || float64(s.Len()) <= st.Threshold {
			continue
		}
		first := s.Events[0]
		out = append(out, Record{
			Kind:      KindHighActivity,
			UserID:    s.UserID,
			SessionID: s.ID,
			Severity:  activitySeverity(float64(s.Len()) / st.Threshold),
			Evidence: ActivityEvidence{
				EventCount:      s.Len(),
				Mean:            st.Mean,
				StdDev:          st.StdDev,
				Threshold:       st.Threshold,
				Policy:          string(d.policy),
				DurationSeconds: s.Duration().Seconds(),
			},
			DetectedAt: Anchor{
				EventIDs:  []string{first.ID},
				Timestamp: first.Timestamp,
			},
		})
	}
	return out
}

func activitySeverity(ratio float64) Severity {
	switch {
	case ratio < 1.5:
		return SeverityLow
	case ratio < 2:
		return SeverityMedium
	}
	return SeverityHigh
}
