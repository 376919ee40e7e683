// Package session rebuilds per-user, per-session timelines from normalized events.
package session

import (
	"time"

	"github.com/gyaneshwarpardhi/flowlens/internal/event"
)

// Session is the ordered journey of one session id.
// Events are sorted by Timestamp, ties broken by input order.
type Session struct {
	ID     string        `json:"id"`
	UserID string        `json:"user_id"` // user of the first-seen event
	Events []event.Event `json:"events"`
}

// Len returns the number of events in the session.
func (s *Session) Len() int { return len(s.Events) }

// Start returns the timestamp of the earliest event.
func (s *Session) Start() time.Time {
	if len(s.Events) == 0 {
		return time.Time{}
	}
	return s.Events[0].Timestamp
}

// End returns the timestamp of the latest event.
func (s *Session) End() time.Time {
	if len(s.Events) == 0 {
		return time.Time{}
	}
	return s.Events[len(s.Events)-1].Timestamp
}

// Duration is End - Start.
func (s *Session) Duration() time.Duration {
	return s.End().Sub(s.Start())
}

// User owns sessions in the order they were first seen.
type User struct {
	ID       string     `json:"id"`
	Sessions []*Session `json:"sessions"`
}

// Timeline is the immutable output of Reconstruct.
type Timeline struct {
	Users    []*User             // first-seen order
	Sessions []*Session          // first-seen order, across all users
	Claims   map[string][]string // session id -> distinct user ids, first-seen order

	EventCount int
}

// Conflict is a session id observed under more than one user id.
type Conflict struct {
	SessionID string   `json:"session_id"`
	Owner     string   `json:"owner"`
	UserIDs   []string `json:"user_ids"`
}

// Conflicts returns every session claimed by several users, in first-seen order.
func (tl *Timeline) Conflicts() []Conflict {
	var out []Conflict
	for _, s := range tl.Sessions {
		claims := tl.Claims[s.ID]
		if len(claims) < 2 {
			continue
		}
		out = append(out, Conflict{
			SessionID: s.ID,
			Owner:     s.UserID,
			UserIDs:   append([]string(nil), claims...),
		})
	}
	return out
}

// Partition splits the timeline into at most n disjoint timelines keyed by user,
// so that all sessions of a user land in the same part. Parts keep first-seen order.
func (tl *Timeline) Partition(n int) []*Timeline {
	if n <= 1 || len(tl.Users) <= 1 {
		return []*Timeline{tl}
	}
	if n > len(tl.Users) {
		n = len(tl.Users)
	}
	parts := make([]*Timeline, n)
	for i := range parts {
		parts[i] = &Timeline{Claims: make(map[string][]string)}
	}
	for i, u := range tl.Users {
		p := parts[i%n]
		p.Users = append(p.Users, u)
		for _, s := range u.Sessions {
			p.Sessions = append(p.Sessions, s)
			p.Claims[s.ID] = tl.Claims[s.ID]
			p.EventCount += s.Len()
		}
	}
	return parts
}
