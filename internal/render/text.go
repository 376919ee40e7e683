package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/gyaneshwarpardhi/flowlens/internal/anomaly"
	"github.com/gyaneshwarpardhi/flowlens/internal/flow"
	"github.com/gyaneshwarpardhi/flowlens/internal/report"
)

// DefaultLimit is how many rows the text renderer prints per list.
const DefaultLimit = 10

var icons = struct {
	OK, Fail, Warn, Separator string
}{
	OK:        "✓",
	Fail:      "✗",
	Warn:      "⚠",
	Separator: "─",
}

var colors = struct {
	Success func(a ...interface{}) string
	Error   func(a ...interface{}) string
	Warning func(a ...interface{}) string
	Info    func(a ...interface{}) string
	Heading func(a ...interface{}) string
	Dim     func(a ...interface{}) string
}{
	Success: color.New(color.FgGreen).SprintFunc(),
	Error:   color.New(color.FgRed, color.Bold).SprintFunc(),
	Warning: color.New(color.FgYellow).SprintFunc(),
	Info:    color.New(color.FgCyan).SprintFunc(),
	Heading: color.New(color.FgWhite, color.Bold).SprintFunc(),
	Dim:     color.New(color.Faint).SprintFunc(),
}

// Text renders a colored terminal summary. Color follows fatih/color, which
// honors NO_COLOR and disables itself when stdout is not a terminal.
type Text struct {
	Limit int // rows per list; 0 prints everything
}

func (t Text) Render(w io.Writer, rep *report.Report) error {
	p := &printer{w: w, limit: t.Limit}
	p.summary(rep)
	if rep.Flows != nil {
		p.flows("Completed flows", rep.Flows.Completed)
		p.flows("Abandoned flows", rep.Flows.Abandoned)
		p.paths("Drop-off pages", rep.Flows.DropOffs)
		p.paths("Entry points", rep.Flows.EntryPoints)
		p.paths("Top products", rep.Flows.TopProducts)
		p.dwell(rep.Flows.PageDwell)
	}
	p.anomalies(rep)
	p.anomalyPages(rep.AnomalyPages)
	return p.err
}

// printer accumulates the first write error so rendering code stays linear.
type printer struct {
	w     io.Writer
	limit int
	err   error
}

func (p *printer) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}

func (p *printer) heading(title string) {
	p.printf("\n%s\n%s\n", colors.Heading(title), colors.Dim(strings.Repeat(icons.Separator, len(title))))
}

func (p *printer) capped(n int) int {
	if p.limit > 0 && n > p.limit {
		return p.limit
	}
	return n
}

func (p *printer) more(total int) {
	if shown := p.capped(total); shown < total {
		p.printf("  %s\n", colors.Dim(fmt.Sprintf("… %d more", total-shown)))
	}
}

func (p *printer) summary(rep *report.Report) {
	s := rep.Summary
	p.heading("User flow analysis")
	p.printf("  users %d  sessions %d  avg sessions/user %.2f\n", s.Users, s.Sessions, s.AvgSessionsPerUser)
	p.printf("  records %d  events %d  rejected %d\n", s.RecordsRead, s.EventsAccepted, s.Rejected)
	for _, r := range rep.Rejections {
		if r.Count > 0 {
			p.printf("    %s %s: %d\n", colors.Warning(icons.Warn), r.Reason, r.Count)
		}
	}
	if rep.Flows != nil {
		fs := rep.Flows.Summary
		p.printf("  funnel %s  %s %d (%.1f%%)  %s %d (%.1f%%)\n",
			rep.Flows.TerminalPath,
			colors.Success("completed"), fs.Completed, fs.ConversionRate*100,
			colors.Warning("abandoned"), fs.Abandoned, fs.AbandonmentRate*100)
		if fs.Pathless > 0 {
			p.printf("    %s %d sessions without a page path\n", colors.Dim(icons.Warn), fs.Pathless)
		}
	}
	for _, e := range rep.DetectorErrors {
		p.printf("  %s %s\n", colors.Error(icons.Fail), e)
	}
}

func (p *printer) flows(title string, flows []flow.FlowStat) {
	if len(flows) == 0 {
		return
	}
	p.heading(title)
	for _, f := range flows[:p.capped(len(flows))] {
		p.printf("  %5d  %s\n", f.Sessions, strings.Join(f.Sequence, " → "))
	}
	p.more(len(flows))
}

func (p *printer) paths(title string, counts []flow.PathCount) {
	if len(counts) == 0 {
		return
	}
	p.heading(title)
	for _, c := range counts[:p.capped(len(counts))] {
		p.printf("  %5d  %s\n", c.Count, c.Path)
	}
	p.more(len(counts))
}

func (p *printer) dwell(rows []flow.PageDwell) {
	if len(rows) == 0 {
		return
	}
	p.heading("Average time on page")
	for _, d := range rows[:p.capped(len(rows))] {
		p.printf("  %7.1fs  %s %s\n", d.AvgSeconds, d.Path, colors.Dim(fmt.Sprintf("(%d samples)", d.Samples)))
	}
	p.more(len(rows))
}

func (p *printer) anomalies(rep *report.Report) {
	p.heading("Anomalies")
	if len(rep.Anomalies) == 0 {
		p.printf("  %s none detected\n", colors.Success(icons.OK))
		return
	}
	var counts []string
	for _, kc := range rep.AnomalyCounts {
		if kc.Count > 0 {
			counts = append(counts, fmt.Sprintf("%s %d", kc.Kind, kc.Count))
		}
	}
	p.printf("  %s\n", strings.Join(counts, "  "))
	for _, r := range rep.Anomalies[:p.capped(len(rep.Anomalies))] {
		var detail string
		if r.Evidence != nil {
			detail = r.Evidence.Summary()
		}
		p.printf("  %s %-26s %s/%s  %s\n",
			severityLabel(r.Severity), r.Kind, r.UserID, r.SessionID, detail)
	}
	p.more(len(rep.Anomalies))
}

func (p *printer) anomalyPages(rows []report.PageAnomalies) {
	if len(rows) == 0 {
		return
	}
	p.heading("Anomalies by page")
	for _, r := range rows[:p.capped(len(rows))] {
		var detail string
		if r.Kind == anomaly.KindLongGap {
			detail = colors.Dim(fmt.Sprintf("(avg %.1f min, longest %.1f min)", r.AvgGapSeconds/60, r.MaxGapSeconds/60))
		}
		p.printf("  %5d  %-14s %s %s\n", r.Count, r.Kind, r.Path, detail)
	}
	p.more(len(rows))
}

func severityLabel(s anomaly.Severity) string {
	label := fmt.Sprintf("%-6s", strings.ToUpper(s.String()))
	switch s {
	case anomaly.SeverityHigh:
		return colors.Error(label)
	case anomaly.SeverityMedium:
		return colors.Warning(label)
	}
	return colors.Info(label)
}
