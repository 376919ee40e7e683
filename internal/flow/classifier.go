package flow

import (
	"slices"
	"strings"

	"github.com/gyaneshwarpardhi/flowlens/internal/config"
	"github.com/gyaneshwarpardhi/flowlens/internal/session"
)

// maxSampleSessions caps the representative session ids kept per flow.
const maxSampleSessions = 5

// FlowStat aggregates every session sharing one path sequence.
type FlowStat struct {
	Sequence       []string `json:"sequence"`
	Sessions       int      `json:"sessions"`
	Completed      int      `json:"completed"`
	CompletionRate float64  `json:"completion_rate"`
	DropOff        string   `json:"drop_off,omitempty"`
	SampleSessions []string `json:"sample_sessions"`
}

// PathCount is a path with the number of sessions it was counted for.
type PathCount struct {
	Path  string `json:"path"`
	Count int    `json:"count"`
}

// Summary holds funnel-level totals. Sessions whose events carry no path
// never enter the funnel: they count toward Sessions and Pathless only, so
// Completed + Abandoned + Pathless == Sessions.
type Summary struct {
	Sessions        int     `json:"sessions"`
	Completed       int     `json:"completed"`
	Abandoned       int     `json:"abandoned"`
	Pathless        int     `json:"pathless"`
	ConversionRate  float64 `json:"conversion_rate"`
	AbandonmentRate float64 `json:"abandonment_rate"`
}

// Result is the classifier's complete, ranked output.
type Result struct {
	TerminalPath string      `json:"terminal_path"`
	Summary      Summary     `json:"summary"`
	Completed    []FlowStat  `json:"completed"`
	Abandoned    []FlowStat  `json:"abandoned"`
	DropOffs     []PathCount `json:"drop_offs"`
	EntryPoints  []PathCount `json:"entry_points"`
	TopProducts  []PathCount `json:"top_products"`
	PageDwell    []PageDwell `json:"page_dwell"`
}

// Classifier turns a timeline into ranked flow statistics.
type Classifier struct {
	terminal string
	insights config.InsightsConf
}

// NewClassifier builds a Classifier from validated configuration.
func NewClassifier(funnel config.FunnelConf, insights config.InsightsConf) *Classifier {
	return &Classifier{terminal: funnel.TerminalPath, insights: insights}
}

// Classify walks every session once and returns ranked flows and insights.
func (c *Classifier) Classify(tl *session.Timeline) *Result {
	res := &Result{
		TerminalPath: c.terminal,
		Completed:    []FlowStat{},
		Abandoned:    []FlowStat{},
	}

	groups := make(map[string]*FlowStat)
	var order []*FlowStat
	dropOffs := newCounter()
	entries := newCounter()

	for _, s := range tl.Sessions {
		sig := Signature(s, c.terminal)
		res.Summary.Sessions++
		switch {
		case len(sig.Paths) == 0:
			res.Summary.Pathless++
			continue
		case sig.Completed:
			res.Summary.Completed++
		default:
			res.Summary.Abandoned++
		}

		entries.add(sig.Paths[0])
		if !sig.Completed {
			dropOffs.add(sig.Last())
		}

		key := sig.Key()
		fs, ok := groups[key]
		if !ok {
			fs = &FlowStat{Sequence: sig.Paths, SampleSessions: []string{}}
			if !sig.Completed {
				fs.DropOff = sig.Last()
			}
			groups[key] = fs
			order = append(order, fs)
		}
		fs.Sessions++
		if sig.Completed {
			fs.Completed++
		}
		if len(fs.SampleSessions) < maxSampleSessions {
			fs.SampleSessions = append(fs.SampleSessions, s.ID)
		}
	}

	for _, fs := range order {
		fs.CompletionRate = ratio(fs.Completed, fs.Sessions)
		if fs.Completed > 0 {
			res.Completed = append(res.Completed, *fs)
		} else {
			res.Abandoned = append(res.Abandoned, *fs)
		}
	}
	slices.SortStableFunc(res.Completed, compareFlows)
	slices.SortStableFunc(res.Abandoned, compareFlows)

	res.Summary.ConversionRate = ratio(res.Summary.Completed, res.Summary.Sessions)
	res.Summary.AbandonmentRate = ratio(res.Summary.Abandoned, res.Summary.Sessions)

	topN := c.insights.TopN
	res.DropOffs = dropOffs.ranked(topN)
	res.EntryPoints = entries.ranked(topN)
	res.TopProducts = topProducts(tl, c.insights.ProductPrefix, topN)
	res.PageDwell = pageDwell(tl, c.insights.MaxDwell, topN)
	return res
}

// compareFlows orders by session count descending, then by sequence.
func compareFlows(a, b FlowStat) int {
	if a.Sessions != b.Sessions {
		return b.Sessions - a.Sessions
	}
	return slices.Compare(a.Sequence, b.Sequence)
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

// counter tallies paths and ranks them by count desc, path asc.
type counter map[string]int

func newCounter() counter { return make(counter) }

func (c counter) add(path string) { c[path]++ }

func (c counter) ranked(limit int) []PathCount {
	out := make([]PathCount, 0, len(c))
	for p, n := range c {
		out = append(out, PathCount{Path: p, Count: n})
	}
	slices.SortFunc(out, func(a, b PathCount) int {
		if a.Count != b.Count {
			return b.Count - a.Count
		}
		return strings.Compare(a.Path, b.Path)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
