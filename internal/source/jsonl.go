// Package source reads raw interaction records from JSON Lines streams,
// HTTP endpoints, local files and ClickHouse.
package source

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"

	"github.com/gyaneshwarpardhi/flowlens/internal/event"
)

// MaxLineBytes caps a single JSONL line. Longer lines are skipped and
// delivered as malformed records.
const MaxLineBytes = 1 << 20

// Stream is a lazily read record source. Err reports the failure that ended
// the sequence early, if any, once iteration has stopped.
type Stream interface {
	Records() iter.Seq[event.RawRecord]
	Err() error
}

// Scanner reads JSON Lines. Blank lines are skipped; a line that is not a
// JSON object yields a nil record.
type Scanner struct {
	r     *bufio.Reader
	buf   []byte
	lines int
	err   error
}

// NewScanner returns a Scanner reading from r.
func NewScanner(r io.Reader) *Scanner {
	return &Scanner{r: bufio.NewReaderSize(r, 64*1024)}
}

// ReadJSONL is shorthand for NewScanner(r).Records() when the caller does not
// need to inspect read errors.
func ReadJSONL(r io.Reader) iter.Seq[event.RawRecord] {
	return NewScanner(r).Records()
}

// Records returns the decoded lines in input order.
func (s *Scanner) Records() iter.Seq[event.RawRecord] {
	return func(yield func(event.RawRecord) bool) {
		for {
			line, tooLong, err := s.readLine()
			if len(line) > 0 || tooLong || err == nil {
				s.lines++
			}
			switch {
			case tooLong:
				slog.Warn("jsonl line too long", "line", s.lines, "limit", MaxLineBytes)
				if !yield(nil) {
					return
				}
			case len(bytes.TrimSpace(line)) > 0:
				if !yield(decode(line, s.lines)) {
					return
				}
			}
			if err != nil {
				if !errors.Is(err, io.EOF) {
					s.err = fmt.Errorf("read jsonl line %d: %w", s.lines, err)
				}
				return
			}
		}
	}
}

// Err returns the read error that stopped Records, if any.
func (s *Scanner) Err() error { return s.err }

// Lines returns how many lines have been read so far, blank ones included.
func (s *Scanner) Lines() int { return s.lines }

// readLine returns the next line without its terminator. Lines over
// MaxLineBytes are drained and reported with tooLong set.
func (s *Scanner) readLine() (line []byte, tooLong bool, err error) {
	s.buf = s.buf[:0]
	for {
		chunk, err := s.r.ReadSlice('\n')
		if !tooLong {
			if len(s.buf)+len(bytes.TrimRight(chunk, "\r\n")) > MaxLineBytes {
				tooLong = true
				s.buf = s.buf[:0]
			} else {
				s.buf = append(s.buf, chunk...)
			}
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		return bytes.TrimRight(s.buf, "\r\n"), tooLong, err
	}
}

func decode(line []byte, n int) event.RawRecord {
	dec := json.NewDecoder(bytes.NewReader(line))
	dec.UseNumber()
	var rec map[string]any
	if err := dec.Decode(&rec); err != nil {
		slog.Debug("undecodable jsonl line", "line", n, "err", err)
		return nil
	}
	if dec.More() {
		slog.Debug("trailing data after json object", "line", n)
		return nil
	}
	return rec
}
