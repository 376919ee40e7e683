package config

import (
	"encoding/json"
	"time"
)

// AnalysisConfig is the top-level YAML structure.
type AnalysisConfig struct {
	Version  string       `yaml:"version" json:"version"`
	Funnel   FunnelConf   `yaml:"funnel" json:"funnel"`
	Gap      GapConf      `yaml:"gap" json:"gap"`
	Keywords KeywordConf  `yaml:"keywords" json:"keywords"`
	Activity ActivityConf `yaml:"activity" json:"activity"`
	Insights InsightsConf `yaml:"insights" json:"insights"`
	Engine   EngineConf   `yaml:"engine" json:"engine"`
}

// FunnelConf names the page that marks a completed journey.
type FunnelConf struct {
	TerminalPath string `yaml:"terminal_path" json:"terminal_path"`
}

// GapConf tunes the long-gap detector.
type GapConf struct {
	Threshold time.Duration `yaml:"threshold" json:"threshold"`
}

// MarshalJSON renders Threshold as a duration string ("5m0s").
func (c GapConf) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Threshold string `json:"threshold"`
	}{c.Threshold.String()})
}

// KeywordConf lists the error tokens scanned for in selectors and labels.
type KeywordConf struct {
	Tokens []string `yaml:"tokens" json:"tokens"`
}

// OutlierPolicy selects how the high-activity threshold is derived.
type OutlierPolicy string

const (
	PolicyStdDev     OutlierPolicy = "stddev"     // mean + multiplier × sample stddev
	PolicyPercentile OutlierPolicy = "percentile" // nearest-rank percentile of session sizes
)

// ActivityConf tunes the high-activity detector.
type ActivityConf struct {
	Policy     OutlierPolicy `yaml:"policy" json:"policy"`
	Multiplier float64       `yaml:"multiplier" json:"multiplier"`
	Percentile float64       `yaml:"percentile" json:"percentile"`
}

// InsightsConf bounds the supplementary flow insights.
type InsightsConf struct {
	TopN          int           `yaml:"top_n" json:"top_n"`
	ProductPrefix string        `yaml:"product_prefix" json:"product_prefix"`
	MaxDwell      time.Duration `yaml:"max_dwell" json:"max_dwell"`
}

// MarshalJSON renders MaxDwell as a duration string.
func (c InsightsConf) MarshalJSON() ([]byte, error) {
	type plain InsightsConf
	return json.Marshal(struct {
		plain
		MaxDwell string `json:"max_dwell"`
	}{plain(c), c.MaxDwell.String()})
}

// EngineConf holds tunable concurrency settings.
type EngineConf struct {
	Workers int `yaml:"workers" json:"workers"`
}

// Default returns the configuration used when no file is given.
// Values loaded from YAML are overlaid on top of it.
func Default() *AnalysisConfig {
	return &AnalysisConfig{
		Version: "v1",
		Funnel:  FunnelConf{TerminalPath: "/checkout"},
		Gap:     GapConf{Threshold: 5 * time.Minute},
		Keywords: KeywordConf{
			Tokens: []string{"error", "404", "timeout", "failed"},
		},
		Activity: ActivityConf{
			Policy:     PolicyStdDev,
			Multiplier: 2,
			Percentile: 95,
		},
		Insights: InsightsConf{
			TopN:          10,
			ProductPrefix: "/products/",
			MaxDwell:      30 * time.Minute,
		},
		Engine: EngineConf{Workers: 1},
	}
}
