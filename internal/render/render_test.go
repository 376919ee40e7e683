package render

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/gyaneshwarpardhi/flowlens/internal/config"
	"github.com/gyaneshwarpardhi/flowlens/internal/engine"
	"github.com/gyaneshwarpardhi/flowlens/internal/event"
	"github.com/gyaneshwarpardhi/flowlens/internal/report"
)

func sampleReport(t *testing.T) *report.Report {
	t.Helper()
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	at := func(d time.Duration) string { return base.Add(d).Format(time.RFC3339) }

	var recs []event.RawRecord
	for i, paths := range [][]string{
		{"/", "/products/1", "/cart", "/checkout"},
		{"/", "/products/2", "/cart"},
		{"/", "/cart"},
	} {
		for j, p := range paths {
			recs = append(recs, event.RawRecord{
				"user_id":    fmt.Sprintf("u%d", i),
				"session_id": fmt.Sprintf("s%d", i),
				"event_time": at(time.Duration(j) * time.Minute),
				"path":       p,
			})
		}
	}
	recs = append(recs,
		event.RawRecord{"user_id": "u9", "session_id": "s9", "event_time": at(0), "path": "/", "css": "#error-404-banner"},
		event.RawRecord{"user_id": "u9", "session_id": "s9", "event_time": at(20 * time.Minute), "path": "/help"},
		nil,
	)

	rep, err := engine.New(config.Default()).Run(context.Background(), slices.Values(recs))
	require.NoError(t, err)
	return rep
}

func TestNew(t *testing.T) {
	for _, f := range Formats {
		r, err := New(f)
		require.NoError(t, err, f)
		assert.NotNil(t, r)
	}
	_, err := New("xml")
	assert.ErrorContains(t, err, "unknown output format")
}

func TestJSON_Stable(t *testing.T) {
	rep := sampleReport(t)
	var a, b bytes.Buffer
	require.NoError(t, JSON{Indent: true}.Render(&a, rep))
	require.NoError(t, JSON{Indent: true}.Render(&b, sampleReport(t)))
	assert.Equal(t, a.String(), b.String())

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(a.Bytes(), &decoded))
	assert.Contains(t, decoded, "summary")
	assert.Contains(t, decoded, "anomalies")
	assert.True(t, strings.HasPrefix(a.String(), "{\n  \"summary\""))
}

func TestYAML_MatchesJSON(t *testing.T) {
	rep := sampleReport(t)
	var buf bytes.Buffer
	require.NoError(t, YAML{}.Render(&buf, rep))

	var fromYAML map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &fromYAML))
	summary := fromYAML["summary"].(map[string]any)
	assert.Equal(t, rep.Summary.Sessions, summary["sessions"])
	assert.True(t, strings.HasPrefix(buf.String(), "summary:"))
}

func TestText(t *testing.T) {
	color.NoColor = true
	rep := sampleReport(t)

	var buf bytes.Buffer
	require.NoError(t, Text{Limit: 1}.Render(&buf, rep))
	out := buf.String()

	assert.Contains(t, out, "users 4  sessions 4")
	assert.Contains(t, out, "malformed_json: 1")
	assert.Contains(t, out, "/ → /products/1 → /cart → /checkout")
	assert.Contains(t, out, "Drop-off pages")
	assert.Contains(t, out, "more")
	assert.Contains(t, out, "HIGH")
	assert.Contains(t, out, "error_signal")
	assert.Contains(t, out, "Anomalies by page")
	assert.NotContains(t, out, "\x1b[")
}

func TestText_NoAnomalies(t *testing.T) {
	color.NoColor = true
	rep := report.Assemble(report.Inputs{})

	var buf bytes.Buffer
	require.NoError(t, Text{}.Render(&buf, rep))
	assert.Contains(t, buf.String(), "none detected")
}
