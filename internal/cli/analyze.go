package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gyaneshwarpardhi/flowlens/internal/engine"
	"github.com/gyaneshwarpardhi/flowlens/internal/metrics"
	"github.com/gyaneshwarpardhi/flowlens/internal/render"
	"github.com/gyaneshwarpardhi/flowlens/internal/sink"
	"github.com/gyaneshwarpardhi/flowlens/internal/source"
)

func newAnalyzeCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Run one analysis pass and print the report",
		Example: `  flowlens analyze --input events.jsonl --format text
  curl -s https://example.com/events.jsonl | flowlens analyze
  flowlens analyze --clickhouse --since 2024-05-01T00:00:00Z --nats-url nats://localhost:4222`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAnalyze(cmd.Context(), v, cmd.OutOrStdout())
		},
	}

	f := cmd.Flags()
	f.StringP("input", "i", "-", "JSONL input: file path, http(s) URL, or - for stdin")
	f.Bool("clickhouse", false, "read events from ClickHouse (CLICKHOUSE_* env vars) instead of --input")
	f.String("since", "", "ClickHouse: only events at or after this RFC 3339 time")
	f.String("until", "", "ClickHouse: only events before this RFC 3339 time")
	f.StringP("format", "f", "json", "output format: json, yaml or text")
	f.StringP("output", "o", "", "write the report to this file instead of stdout")
	f.Int("workers", 0, "parallel analysis workers (0 keeps engine.workers from config)")
	f.String("nats-url", "", "also publish the JSON report to this NATS server")
	f.String("nats-subject", sink.DefaultSubject, "NATS subject for published reports")
	f.String("metrics-textfile", "", "write Prometheus metrics to this file after the run")
	return cmd
}

func runAnalyze(ctx context.Context, v *viper.Viper, stdout io.Writer) error {
	cfg, _, err := loadConfig(v)
	if err != nil {
		return err
	}
	renderer, err := render.New(v.GetString("format"))
	if err != nil {
		return err
	}

	stream, closeStream, err := openStream(ctx, v)
	if err != nil {
		return err
	}
	defer closeStream()

	rep, err := engine.New(cfg).Run(ctx, stream.Records())
	if err != nil {
		return err
	}
	if err := stream.Err(); err != nil {
		return err
	}

	out := stdout
	if path := v.GetString("output"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		out = f
	}
	if err := renderer.Render(out, rep); err != nil {
		return err
	}

	if url := v.GetString("nats-url"); url != "" {
		s, err := sink.ConnectNATS(url, v.GetString("nats-subject"))
		if err != nil {
			return err
		}
		defer s.Close()
		if err := s.Publish(ctx, rep); err != nil {
			return err
		}
	}

	if path := v.GetString("metrics-textfile"); path != "" {
		if err := metrics.WriteTextfile(path); err != nil {
			return err
		}
		slog.Debug("metrics written", "path", path)
	}
	return nil
}

// openStream picks the record source from flags and returns it with its closer.
func openStream(ctx context.Context, v *viper.Viper) (source.Stream, func(), error) {
	if !v.GetBool("clickhouse") {
		rc, err := source.Open(ctx, v.GetString("input"))
		if err != nil {
			return nil, nil, err
		}
		return source.NewScanner(rc), func() { rc.Close() }, nil
	}

	chCfg, err := source.ClickHouseConfigFromEnv()
	if err != nil {
		return nil, nil, err
	}
	if chCfg.Since, err = parseWindow(v.GetString("since"), "since"); err != nil {
		return nil, nil, err
	}
	if chCfg.Until, err = parseWindow(v.GetString("until"), "until"); err != nil {
		return nil, nil, err
	}
	ch, err := source.OpenClickHouse(ctx, chCfg)
	if err != nil {
		return nil, nil, err
	}
	return ch.Stream(ctx), func() {
		if err := ch.Close(); err != nil {
			slog.Warn("close ClickHouse connection", "err", err)
		}
	}, nil
}

func parseWindow(s, flag string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --%s: %w", flag, err)
	}
	return t.UTC(), nil
}
