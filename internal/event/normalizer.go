package event

import (
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cast"

	"github.com/gyaneshwarpardhi/flowlens/internal/metrics"
)

// Reason classifies why a record was rejected.
type Reason string

const (
	ReasonMalformedJSON    Reason = "malformed_json"
	ReasonMissingUserID    Reason = "missing_user_id"
	ReasonMissingSessionID Reason = "missing_session_id"
	ReasonMissingEventTime Reason = "missing_event_time"
	ReasonBadTimestamp     Reason = "bad_timestamp"
)

// Reasons lists every rejection reason in reporting order.
var Reasons = []Reason{
	ReasonMalformedJSON,
	ReasonMissingUserID,
	ReasonMissingSessionID,
	ReasonMissingEventTime,
	ReasonBadTimestamp,
}

// idNamespace scopes synthesized event ids.
var idNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("flowlens/event"))

// Timestamp layouts accepted for event_time, tried in order.
// RFC 3339 (fractional seconds optional) is the documented format, with a
// space allowed in place of the T. ISO-8601 local time without an offset is
// accepted and read as UTC.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// ParseTime parses an event_time value.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("event_time %q is not RFC 3339", s)
}

// NormalizePath strips surrounding whitespace and trailing slashes, keeping "/" for root.
func NormalizePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	trimmed := strings.TrimRight(p, "/")
	if trimmed == "" {
		return "/"
	}
	return trimmed
}

// Normalizer turns RawRecords into Events, counting what it rejects.
// A Normalizer is single-use and not safe for concurrent use.
type Normalizer struct {
	seen       int
	accepted   int
	rejections map[Reason]int
}

// NewNormalizer creates an empty Normalizer.
func NewNormalizer() *Normalizer {
	return &Normalizer{rejections: make(map[Reason]int)}
}

// Normalize lazily converts records to events. Rejected records are dropped
// and counted; a bad record never stops the sequence.
func (n *Normalizer) Normalize(records iter.Seq[RawRecord]) iter.Seq[Event] {
	return func(yield func(Event) bool) {
		for rec := range records {
			seq := n.seen
			n.seen++
			metrics.RecordsRead.Inc()

			ev, reason, ok := convert(rec, seq)
			if !ok {
				n.reject(seq, reason)
				continue
			}
			n.accepted++
			metrics.EventsAccepted.Inc()
			if !yield(ev) {
				return
			}
		}
	}
}

// Seen returns how many records have been consumed so far.
func (n *Normalizer) Seen() int { return n.seen }

// Accepted returns how many records became Events.
func (n *Normalizer) Accepted() int { return n.accepted }

// Rejected returns the total number of rejected records.
func (n *Normalizer) Rejected() int { return n.seen - n.accepted }

// Rejections returns a copy of the per-reason rejection counts.
func (n *Normalizer) Rejections() map[Reason]int {
	out := make(map[Reason]int, len(n.rejections))
	for k, v := range n.rejections {
		out[k] = v
	}
	return out
}

func (n *Normalizer) reject(seq int, reason Reason) {
	n.rejections[reason]++
	metrics.RecordsRejected.WithLabelValues(string(reason)).Inc()
	slog.Debug("record rejected", "seq", seq, "reason", reason)
}

func convert(rec RawRecord, seq int) (Event, Reason, bool) {
	if rec == nil {
		return Event{}, ReasonMalformedJSON, false
	}
	userID := scalar(rec, FieldUserID)
	if userID == "" {
		return Event{}, ReasonMissingUserID, false
	}
	sessionID := scalar(rec, FieldSessionID)
	if sessionID == "" {
		return Event{}, ReasonMissingSessionID, false
	}
	rawTime := scalar(rec, FieldEventTime)
	if rawTime == "" {
		return Event{}, ReasonMissingEventTime, false
	}
	ts, err := ParseTime(rawTime)
	if err != nil {
		return Event{}, ReasonBadTimestamp, false
	}

	id := scalar(rec, FieldUUID)
	if id == "" {
		name := fmt.Sprintf("%s\x1f%s\x1f%s\x1f%d", userID, sessionID, rawTime, seq)
		id = uuid.NewSHA1(idNamespace, []byte(name)).String()
	}

	return Event{
		ID:        id,
		UserID:    userID,
		SessionID: sessionID,
		Timestamp: ts,
		Path:      NormalizePath(scalar(rec, FieldPath)),
		Selector:  scalar(rec, FieldCSS),
		Label:     scalar(rec, FieldText),
		Value:     scalar(rec, FieldValue),
		Seq:       seq,
	}, "", true
}

// scalar returns the trimmed string form of a scalar field.
// Missing, null, and composite (object/array) values yield "".
func scalar(rec RawRecord, key string) string {
	v, ok := rec[key]
	if !ok || v == nil {
		return ""
	}
	switch v.(type) {
	case map[string]any, []any:
		return ""
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}
