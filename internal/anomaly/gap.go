package anomaly

import (
	"time"

	"github.com/gyaneshwarpardhi/flowlens/internal/config"
	"github.com/gyaneshwarpardhi/flowlens/internal/session"
)

// GapDetector flags consecutive events separated by more than a threshold,
// a sign the user got stuck or confused on a page.
type GapDetector struct {
	threshold time.Duration
}

// NewGapDetector builds a GapDetector from validated configuration.
func NewGapDetector(cfg config.GapConf) *GapDetector {
	return &GapDetector{threshold: cfg.Threshold}
}

func (d *GapDetector) Name() string { return string(KindLongGap) }
func (d *GapDetector) Scope() Scope { return ScopeSession }

func (d *GapDetector) Detect(tl *session.Timeline) []Record {
	var out []Record
	for _, s := range tl.Sessions {
		for i := 1; i < len(s.Events); i++ {
			prev, cur := s.Events[i-1], s.Events[i]
			gap := cur.Timestamp.Sub(prev.Timestamp)
			if gap <= d.threshold {
				continue
			}
			ratio := float64(gap) / float64(d.threshold)
			out = append(out, Record{
				Kind:      KindLongGap,
				UserID:    s.UserID,
				SessionID: s.ID,
				Severity:  gapSeverity(ratio),
				Evidence: GapEvidence{
					From:             prev.Ref(),
					To:               cur.Ref(),
					GapSeconds:       gap.Seconds(),
					ThresholdSeconds: d.threshold.Seconds(),
					Ratio:            ratio,
				},
				DetectedAt: Anchor{
					EventIDs:  []string{prev.ID, cur.ID},
					Timestamp: cur.Timestamp,
				},
			})
		}
	}
	return out
}

func gapSeverity(ratio float64) Severity {
	switch {
	case ratio < 2:
		return SeverityLow
	case ratio < 5:
		return SeverityMedium
	}
	return SeverityHigh
}
