package config

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalid is wrapped by every error returned from Validate and by YAML
// parse failures in the Loader.
var ErrInvalid = errors.New("invalid configuration")

// Validate checks the config for:
//   - A terminal path that looks like a URL path
//   - Strictly positive thresholds, multipliers and limits
//   - A non-empty, duplicate-free error token set
//   - A known outlier policy with in-range parameters
//
// Every problem is reported, not just the first.
func Validate(cfg *AnalysisConfig) error {
	if cfg == nil {
		return fmt.Errorf("%w: config is nil", ErrInvalid)
	}
	var errs []string

	if cfg.Version == "" {
		errs = append(errs, "version is required")
	}

	tp := cfg.Funnel.TerminalPath
	switch {
	case tp == "":
		errs = append(errs, "funnel.terminal_path is required")
	case !strings.HasPrefix(tp, "/"):
		errs = append(errs, fmt.Sprintf("funnel.terminal_path %q must start with /", tp))
	case len(tp) > 1 && strings.HasSuffix(tp, "/"):
		errs = append(errs, fmt.Sprintf("funnel.terminal_path %q must not end with /", tp))
	}

	if cfg.Gap.Threshold <= 0 {
		errs = append(errs, fmt.Sprintf("gap.threshold must be positive, got %s", cfg.Gap.Threshold))
	}

	if len(cfg.Keywords.Tokens) == 0 {
		errs = append(errs, "keywords.tokens must not be empty")
	}
	seen := make(map[string]int)
	for i, tok := range cfg.Keywords.Tokens {
		norm := strings.ToLower(strings.TrimSpace(tok))
		if norm == "" {
			errs = append(errs, fmt.Sprintf("keywords.tokens[%d]: token must not be blank", i))
			continue
		}
		if prev, ok := seen[norm]; ok {
			errs = append(errs, fmt.Sprintf("keywords.tokens[%d]: duplicate token %q (first at [%d])", i, tok, prev))
			continue
		}
		seen[norm] = i
	}

	switch cfg.Activity.Policy {
	case PolicyStdDev:
		if cfg.Activity.Multiplier <= 0 {
			errs = append(errs, fmt.Sprintf("activity.multiplier must be positive, got %g", cfg.Activity.Multiplier))
		}
	case PolicyPercentile:
		if cfg.Activity.Percentile <= 0 || cfg.Activity.Percentile >= 100 {
			errs = append(errs, fmt.Sprintf("activity.percentile must be in (0, 100), got %g", cfg.Activity.Percentile))
		}
	default:
		errs = append(errs, fmt.Sprintf("activity.policy %q is not one of %q, %q", cfg.Activity.Policy, PolicyStdDev, PolicyPercentile))
	}

	if cfg.Insights.TopN <= 0 {
		errs = append(errs, fmt.Sprintf("insights.top_n must be positive, got %d", cfg.Insights.TopN))
	}
	if cfg.Insights.MaxDwell <= 0 {
		errs = append(errs, fmt.Sprintf("insights.max_dwell must be positive, got %s", cfg.Insights.MaxDwell))
	}

	if cfg.Engine.Workers <= 0 {
		errs = append(errs, fmt.Sprintf("engine.workers must be positive, got %d", cfg.Engine.Workers))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: config validation errors:\n  - %s", ErrInvalid, strings.Join(errs, "\n  - "))
	}
	return nil
}
