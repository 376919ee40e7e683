package session

import (
	"iter"
	"log/slog"
	"slices"

	"github.com/gyaneshwarpardhi/flowlens/internal/event"
	"github.com/gyaneshwarpardhi/flowlens/internal/metrics"
)

// Reconstruct materializes every event and groups them into sessions.
//
// All events sharing a session id form one Session owned by the user of the
// first-seen event; other users claiming the same id are recorded in Claims.
// Every event lands in exactly one session.
func Reconstruct(events iter.Seq[event.Event]) *Timeline {
	tl := &Timeline{Claims: make(map[string][]string)}
	sessions := make(map[string]*Session)
	users := make(map[string]*User)

	for ev := range events {
		tl.EventCount++

		s, ok := sessions[ev.SessionID]
		if !ok {
			s = &Session{ID: ev.SessionID, UserID: ev.UserID}
			sessions[ev.SessionID] = s
			tl.Sessions = append(tl.Sessions, s)

			u, ok := users[ev.UserID]
			if !ok {
				u = &User{ID: ev.UserID}
				users[ev.UserID] = u
				tl.Users = append(tl.Users, u)
			}
			u.Sessions = append(u.Sessions, s)
		}
		s.Events = append(s.Events, ev)

		if claims := tl.Claims[ev.SessionID]; !slices.Contains(claims, ev.UserID) {
			tl.Claims[ev.SessionID] = append(claims, ev.UserID)
		}
	}

	for _, s := range tl.Sessions {
		slices.SortStableFunc(s.Events, compareEvents)
	}

	metrics.SessionsReconstructed.Add(float64(len(tl.Sessions)))
	slog.Debug("sessions reconstructed",
		"events", tl.EventCount, "sessions", len(tl.Sessions), "users", len(tl.Users))
	return tl
}

func compareEvents(a, b event.Event) int {
	if c := a.Timestamp.Compare(b.Timestamp); c != 0 {
		return c
	}
	switch {
	case a.Seq < b.Seq:
		return -1
	case a.Seq > b.Seq:
		return 1
	}
	return 0
}
