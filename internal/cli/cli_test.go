package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/gyaneshwarpardhi/flowlens/internal/config"
)

const events = `{"uuid":"e1","user_id":"u1","session_id":"s1","event_time":"2024-05-01T10:00:00Z","path":"/"}
{"uuid":"e2","user_id":"u1","session_id":"s1","event_time":"2024-05-01T10:01:00Z","path":"/products/1"}
{"uuid":"e3","user_id":"u1","session_id":"s1","event_time":"2024-05-01T10:02:00Z","path":"/checkout"}
{"uuid":"e4","user_id":"u2","session_id":"s2","event_time":"2024-05-01T11:00:00Z","path":"/"}
{"uuid":"e5","user_id":"u2","session_id":"s2","event_time":"2024-05-01T11:10:00Z","path":"/cart","text":"Payment failed"}
{"user_id":"u3"}
`

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func TestValidate_Defaults(t *testing.T) {
	color.NoColor = true
	out, _, err := run(t, "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "built-in defaults is valid")
	assert.Contains(t, out, "/checkout")
}

func TestValidate_Invalid(t *testing.T) {
	path := writeFile(t, "bad.yaml", "funnel:\n  terminal_path: checkout/\nengine:\n  workers: 0\n")
	_, _, err := run(t, "validate", "--config", path)
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrInvalid)
	assert.Contains(t, err.Error(), "terminal_path")
	assert.Contains(t, err.Error(), "workers")
}

func TestAnalyze_JSON(t *testing.T) {
	input := writeFile(t, "events.jsonl", events)
	out, _, err := run(t, "analyze", "--input", input, "--log-level", "warn")
	require.NoError(t, err)

	var rep struct {
		Summary struct {
			RecordsRead int `json:"records_read"`
			Rejected    int `json:"rejected"`
			Sessions    int `json:"sessions"`
		} `json:"summary"`
		Flows struct {
			Completed []struct {
				Sequence []string `json:"sequence"`
			} `json:"completed"`
			DropOffs []struct {
				Path string `json:"path"`
			} `json:"drop_offs"`
		} `json:"flows"`
		Anomalies []struct {
			Kind string `json:"kind"`
		} `json:"anomalies"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	assert.Equal(t, 6, rep.Summary.RecordsRead)
	assert.Equal(t, 1, rep.Summary.Rejected)
	assert.Equal(t, 2, rep.Summary.Sessions)
	require.Len(t, rep.Flows.Completed, 1)
	assert.Equal(t, []string{"/", "/products/1", "/checkout"}, rep.Flows.Completed[0].Sequence)
	require.Len(t, rep.Flows.DropOffs, 1)
	assert.Equal(t, "/cart", rep.Flows.DropOffs[0].Path)

	var kinds []string
	for _, a := range rep.Anomalies {
		kinds = append(kinds, a.Kind)
	}
	assert.ElementsMatch(t, []string{"error_signal", "long_gap"}, kinds)
}

func TestAnalyze_WorkersDoNotChangeOutput(t *testing.T) {
	input := writeFile(t, "events.jsonl", events)
	serial, _, err := run(t, "analyze", "--input", input)
	require.NoError(t, err)
	parallel, _, err := run(t, "analyze", "--input", input, "--workers", "4")
	require.NoError(t, err)
	assert.Equal(t, serial, parallel)
}

func TestAnalyze_OutputFileAndMetrics(t *testing.T) {
	dir := t.TempDir()
	input := writeFile(t, "events.jsonl", events)
	output := filepath.Join(dir, "report.yaml")
	textfile := filepath.Join(dir, "flowlens.prom")

	out, _, err := run(t, "analyze", "-i", input, "-f", "yaml", "-o", output, "--metrics-textfile", textfile)
	require.NoError(t, err)
	assert.Empty(t, out)

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, yaml.Unmarshal(data, &doc))
	assert.Contains(t, doc, "summary")

	prom, err := os.ReadFile(textfile)
	require.NoError(t, err)
	assert.Contains(t, string(prom), "flowlens_records_read_total")
}

func TestAnalyze_FormatFromEnv(t *testing.T) {
	color.NoColor = true
	t.Setenv("FLOWLENS_FORMAT", "text")
	input := writeFile(t, "events.jsonl", events)

	out, _, err := run(t, "analyze", "--input", input)
	require.NoError(t, err)
	assert.True(t, strings.Contains(out, "User flow analysis"), out)
}

func TestAnalyze_Errors(t *testing.T) {
	input := writeFile(t, "events.jsonl", events)

	_, _, err := run(t, "analyze", "--input", input, "--format", "csv")
	assert.ErrorContains(t, err, "unknown output format")

	_, _, err = run(t, "analyze", "--input", filepath.Join(t.TempDir(), "missing.jsonl"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, _, err = run(t, "analyze", "--input", input, "--log-level", "loud")
	assert.ErrorContains(t, err, "invalid log level")

	_, _, err = run(t, "analyze", "--clickhouse", "--since", "yesterday")
	assert.Error(t, err)
}
