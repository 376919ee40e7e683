// Package flow classifies session journeys into funnel outcomes and ranks the
// navigation flows and drop-off points they share.
package flow

import (
	"strconv"
	"strings"

	"github.com/gyaneshwarpardhi/flowlens/internal/session"
)

// FlowSignature is the navigation path of one session with consecutive
// repeats collapsed. Completed is true iff the last path is the terminal path.
type FlowSignature struct {
	Paths     []string `json:"paths"`
	Completed bool     `json:"completed"`
}

// Signature derives the flow signature of s. Events without a path are skipped.
func Signature(s *session.Session, terminal string) FlowSignature {
	var paths []string
	for _, ev := range s.Events {
		if ev.Path == "" {
			continue
		}
		if n := len(paths); n > 0 && paths[n-1] == ev.Path {
			continue
		}
		paths = append(paths, ev.Path)
	}
	return FlowSignature{
		Paths:     paths,
		Completed: len(paths) > 0 && paths[len(paths)-1] == terminal,
	}
}

// Last returns the final path, or "" for an empty signature.
func (f FlowSignature) Last() string {
	if len(f.Paths) == 0 {
		return ""
	}
	return f.Paths[len(f.Paths)-1]
}

// Key is the aggregation key of the path sequence. Each path is length
// prefixed, so no path content can imitate a boundary between two paths.
func (f FlowSignature) Key() string {
	var b strings.Builder
	for _, p := range f.Paths {
		b.WriteString(strconv.Itoa(len(p)))
		b.WriteByte(':')
		b.WriteString(p)
	}
	return b.String()
}

// String renders the sequence the way people read it.
func (f FlowSignature) String() string {
	return strings.Join(f.Paths, " → ")
}
