package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gyaneshwarpardhi/flowlens/internal/api"
	"github.com/gyaneshwarpardhi/flowlens/internal/engine"
)

func newServeCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the analysis HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), v)
		},
	}
	cmd.Flags().String("addr", ":8080", "HTTP listen address")
	cmd.Flags().Int("workers", 0, "parallel analysis workers (0 keeps engine.workers from config)")
	return cmd
}

func runServe(ctx context.Context, v *viper.Viper) error {
	cfg, loader, err := loadConfig(v)
	if err != nil {
		return err
	}
	eng := engine.New(cfg)
	handler := api.New(eng, loader)

	// ── Hot-reload watcher ────────────────────────────────────────────────────
	if loader.Path() != "" {
		stopWatch, err := loader.Watch()
		if err != nil {
			slog.Warn("config watcher unavailable (hot-reload disabled)", "err", err)
		} else {
			defer stopWatch()
		}
	}

	// ── HTTP server ───────────────────────────────────────────────────────────
	addr := v.GetString("addr")
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  time.Minute,
		WriteTimeout: 3 * time.Minute,
		IdleTimeout:  2 * time.Minute,
	}

	errC := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", addr, "config", loader.Path(), "workers", cfg.Engine.Workers)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errC <- err
		}
		close(errC)
	}()

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	select {
	case err := <-errC:
		return err
	case <-ctx.Done():
	}
	slog.Info("shutting down…")

	shutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		return err
	}
	slog.Info("goodbye")
	return nil
}
