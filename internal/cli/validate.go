package cli

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newValidateCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check an analysis config file and exit non-zero if it is invalid",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, loader, err := loadConfig(v)
			if err != nil {
				return err
			}
			name := loader.Path()
			if name == "" {
				name = "built-in defaults"
			}
			green := color.New(color.FgGreen, color.Bold).SprintFunc()
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s is valid\n", green("✓"), name)
			fmt.Fprintf(cmd.OutOrStdout(), "  terminal path  %s\n", cfg.Funnel.TerminalPath)
			fmt.Fprintf(cmd.OutOrStdout(), "  gap threshold  %s\n", cfg.Gap.Threshold)
			fmt.Fprintf(cmd.OutOrStdout(), "  error tokens   %s\n", strings.Join(cfg.Keywords.Tokens, ", "))
			fmt.Fprintf(cmd.OutOrStdout(), "  activity       %s\n", cfg.Activity.Policy)
			fmt.Fprintf(cmd.OutOrStdout(), "  workers        %d\n", cfg.Engine.Workers)
			return nil
		},
	}
}
