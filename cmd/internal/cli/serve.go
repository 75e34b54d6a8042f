package cli

import (
	"github.com/spf13/cobra"

	"tokex/cmd/internal/app"
)

// NewServeCommand starts the HTTP gateway.
func NewServeCommand(opts *rootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP gateway",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := opts.load(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.HTTPAddr = addr
			}
			return app.Run(cfg, log)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides TOKEX_HTTP_ADDR)")
	return cmd
}
