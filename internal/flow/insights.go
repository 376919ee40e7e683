package flow

import (
	"slices"
	"strings"
	"time"

	"github.com/gyaneshwarpardhi/flowlens/internal/session"
)

// PageDwell is the average time spent on a path before the next event.
type PageDwell struct {
	Path       string  `json:"path"`
	AvgSeconds float64 `json:"avg_seconds"`
	Samples    int     `json:"samples"`
}

// topProducts counts each product path once per session.
func topProducts(tl *session.Timeline, prefix string, limit int) []PathCount {
	c := newCounter()
	if prefix == "" {
		return c.ranked(limit)
	}
	for _, s := range tl.Sessions {
		seen := make(map[string]bool)
		for _, ev := range s.Events {
			if !strings.HasPrefix(ev.Path, prefix) || seen[ev.Path] {
				continue
			}
			seen[ev.Path] = true
			c.add(ev.Path)
		}
	}
	return c.ranked(limit)
}

// pageDwell averages the gap between each event and the next one in its
// session, attributed to the earlier event's path. Gaps outside (0, max) are
// ignored: zero gaps carry no signal and long ones are idle time.
func pageDwell(tl *session.Timeline, maxDwell time.Duration, limit int) []PageDwell {
	type acc struct {
		total time.Duration
		n     int
	}
	byPath := make(map[string]*acc)
	for _, s := range tl.Sessions {
		for i := 1; i < len(s.Events); i++ {
			prev := s.Events[i-1]
			if prev.Path == "" {
				continue
			}
			gap := s.Events[i].Timestamp.Sub(prev.Timestamp)
			if gap <= 0 || gap >= maxDwell {
				continue
			}
			a, ok := byPath[prev.Path]
			if !ok {
				a = &acc{}
				byPath[prev.Path] = a
			}
			a.total += gap
			a.n++
		}
	}

	out := make([]PageDwell, 0, len(byPath))
	for p, a := range byPath {
		out = append(out, PageDwell{
			Path:       p,
			AvgSeconds: a.total.Seconds() / float64(a.n),
			Samples:    a.n,
		})
	}
	slices.SortFunc(out, func(a, b PageDwell) int {
		switch {
		case a.AvgSeconds > b.AvgSeconds:
			return -1
		case a.AvgSeconds < b.AvgSeconds:
			return 1
		}
		return strings.Compare(a.Path, b.Path)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
