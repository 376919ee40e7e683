// Package render writes a report.Report for people and machines.
package render

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/gyaneshwarpardhi/flowlens/internal/report"
)

// Renderer writes a report to w.
type Renderer interface {
	Render(w io.Writer, rep *report.Report) error
}

// Formats lists the accepted format names.
var Formats = []string{"json", "yaml", "text"}

// New returns the renderer for format.
func New(format string) (Renderer, error) {
	switch format {
	case "json", "":
		return JSON{Indent: true}, nil
	case "yaml":
		return YAML{}, nil
	case "text", "human":
		return Text{Limit: DefaultLimit}, nil
	}
	return nil, fmt.Errorf("unknown output format %q (want one of %v)", format, Formats)
}

// JSON renders the report as JSON. Field order is fixed by the report types,
// so equal reports render to identical bytes.
type JSON struct {
	Indent bool
}

func (r JSON) Render(w io.Writer, rep *report.Report) error {
	enc := json.NewEncoder(w)
	if r.Indent {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(rep); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}

// YAML renders the report as YAML with the same keys and order as JSON.
type YAML struct{}

func (YAML) Render(w io.Writer, rep *report.Report) error {
	b, err := json.Marshal(rep)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return fmt.Errorf("convert report: %w", err)
	}
	blockStyle(&doc)
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return enc.Close()
}

// blockStyle drops the flow and quoting styles a JSON source leaves on every
// node. Strings that would read as numbers or booleans are still quoted by
// the encoder because their tag stays !!str.
func blockStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		blockStyle(c)
	}
}
