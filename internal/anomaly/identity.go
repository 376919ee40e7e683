package anomaly

import (
	"github.com/gyaneshwarpardhi/flowlens/internal/metrics"
	"github.com/gyaneshwarpardhi/flowlens/internal/session"
)

// IdentityDetector reports every session id claimed by more than one user id.
type IdentityDetector struct{}

// NewIdentityDetector returns an IdentityDetector.
func NewIdentityDetector() *IdentityDetector { return &IdentityDetector{} }

func (d *IdentityDetector) Name() string { return string(KindIdentityConflict) }
func (d *IdentityDetector) Scope() Scope { return ScopeSession }

func (d *IdentityDetector) Detect(tl *session.Timeline) []Record {
	var out []Record
	for _, s := range tl.Sessions {
		claims := tl.Claims[s.ID]
		if len(claims) < 2 || s.Len() == 0 {
			continue
		}

		perUser := make(map[string]int, len(claims))
		anchor := s.Events[0]
		found := false
		for _, ev := range s.Events {
			perUser[ev.UserID]++
			if !found && ev.UserID != s.UserID {
				anchor, found = ev, true
			}
		}
		claimants := make([]UserEvents, len(claims))
		for i, u := range claims {
			claimants[i] = UserEvents{UserID: u, Events: perUser[u]}
		}

		metrics.IdentityConflicts.Inc()
		out = append(out, Record{
			Kind:      KindIdentityConflict,
			UserID:    s.UserID,
			SessionID: s.ID,
			Severity:  SeverityHigh,
			Evidence: IdentityEvidence{
				Owner:     s.UserID,
				Claimants: claimants,
			},
			DetectedAt: Anchor{
				EventIDs:  []string{anchor.ID},
				Timestamp: anchor.Timestamp,
			},
		})
	}
	return out
}
