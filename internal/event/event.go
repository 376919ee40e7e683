package event

import "time"

// RawRecord is one decoded JSON object from the input source.
// A nil RawRecord stands for a line that could not be decoded.
type RawRecord map[string]any

// Raw field names.
const (
	FieldUUID      = "uuid"
	FieldUserID    = "user_id"
	FieldSessionID = "session_id"
	FieldEventTime = "event_time"
	FieldPath      = "path"
	FieldCSS       = "css"
	FieldText      = "text"
	FieldValue     = "value"
)

// Event is the canonical, validated form of a RawRecord.
// Every Event has a non-empty UserID and SessionID and a parsed Timestamp.
type Event struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	SessionID string    `json:"session_id"`
	Timestamp time.Time `json:"timestamp"`
	Path      string    `json:"path"`
	Selector  string    `json:"selector,omitempty"`
	Label     string    `json:"label,omitempty"`
	Value     string    `json:"value,omitempty"`
	Seq       int       `json:"seq"` // ordinal of the source record, for tie-breaks
}

// Ref is the minimal reference to an Event carried in anomaly evidence.
type Ref struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Path      string    `json:"path"`
}

// Ref returns a compact reference to e.
func (e Event) Ref() Ref {
	return Ref{ID: e.ID, Timestamp: e.Timestamp, Path: e.Path}
}
