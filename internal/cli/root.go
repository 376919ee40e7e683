// Package cli implements the flowlens command tree.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gyaneshwarpardhi/flowlens/internal/config"
)

// Execute runs the root command with ctx, which is cancelled on shutdown signals.
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}

// NewRootCmd builds the command tree. Every flag can also be set through a
// FLOWLENS_* environment variable (--log-level is FLOWLENS_LOG_LEVEL).
func NewRootCmd() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("FLOWLENS")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	root := &cobra.Command{
		Use:   "flowlens",
		Short: "Reconstruct user journeys and flag anomalies in interaction logs",
		Long: `flowlens reads clickstream records (JSON Lines, HTTP or ClickHouse),
rebuilds per-session journeys, ranks completed and abandoned flows toward a
terminal page, and reports long idle gaps, error signals, unusually busy
sessions and session ids shared between users.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := v.BindPFlags(cmd.Flags()); err != nil {
				return fmt.Errorf("bind flags: %w", err)
			}
			return setupLogging(cmd.ErrOrStderr(), v.GetString("log-level"), v.GetString("log-format"))
		},
	}

	pf := root.PersistentFlags()
	pf.String("config", "", "analysis config file (YAML); built-in defaults when empty")
	pf.String("log-level", "info", "log level: debug, info, warn or error")
	pf.String("log-format", "text", "log format: text or json")

	root.AddCommand(newAnalyzeCmd(v), newValidateCmd(v), newServeCmd(v))
	return root
}

func setupLogging(w io.Writer, level, format string) error {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	opts := &slog.HandlerOptions{Level: lvl}

	var h slog.Handler
	switch format {
	case "text", "":
		h = slog.NewTextHandler(w, opts)
	case "json":
		h = slog.NewJSONHandler(w, opts)
	default:
		return fmt.Errorf("invalid log format %q (want text or json)", format)
	}
	slog.SetDefault(slog.New(h))
	return nil
}

// loadConfig reads and validates the analysis config named by --config.
// A positive --workers overrides engine.workers.
func loadConfig(v *viper.Viper) (*config.AnalysisConfig, *config.Loader, error) {
	loader, err := config.NewLoader(v.GetString("config"))
	if err != nil {
		return nil, nil, err
	}
	cfg := loader.Config()
	if n := v.GetInt("workers"); n > 0 {
		c := *cfg
		c.Engine.Workers = n
		cfg = &c
	}
	if err := config.Validate(cfg); err != nil {
		return nil, nil, err
	}
	return cfg, loader, nil
}
