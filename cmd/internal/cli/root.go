// Package cli is the tokex command tree.
package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"tokex/cmd/internal/app"
)

// rootOptions are the persistent flags shared by every subcommand.
type rootOptions struct {
	configFile string
	logLevel   string
	logFormat  string
}

// load resolves the runtime config, applying flag overrides, and builds the logger.
func (o *rootOptions) load(cmd *cobra.Command) (app.Config, app.Logger, error) {
	cfg, err := app.LoadConfig(o.configFile)
	if err != nil {
		return app.Config{}, nil, err
	}
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = o.logLevel
	}
	if cmd.Flags().Changed("log-format") {
		cfg.LogFormat = o.logFormat
	}
	return cfg, app.NewLogger(cfg.LogLevel, cfg.LogFormat), nil
}

// NewRootCommand builds the tokex command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "tokex",
		Short: "Credential exchange and presign token gateway",
		Long: `tokex sits in front of a Documenso deployment. It trades verified POS credentials
for a team API key and hands callers short-lived, scoped presign tokens instead.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "Path to a config file (default ./tokex.yaml if present)")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "json", "Log format: json or pretty")

	rootCmd.AddCommand(NewServeCommand(opts))
	rootCmd.AddCommand(NewMigrateCommand(opts))
	rootCmd.AddCommand(NewOrgCommand(opts))
	rootCmd.AddCommand(NewTeamCommand(opts))
	rootCmd.AddCommand(NewPOSCommand(opts))

	return rootCmd
}

// Execute runs the command tree and returns the exit code.
func Execute(args []string, stderr io.Writer) int {
	cmd := NewRootCommand()
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
