package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"tokex/cmd/internal/app"
	"tokex/cmd/internal/exchange"
)

// NewMigrateCommand creates the tokex tables in the configured schema.
func NewMigrateCommand(opts *rootOptions) *cobra.Command {
	var printOnly bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the Postgres schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := opts.load(cmd)
			if err != nil {
				return err
			}

			if printOnly {
				ddl, err := exchange.SchemaSQL(cfg.DBSchema)
				if err != nil {
					return err
				}
				_, err = fmt.Fprint(cmd.OutOrStdout(), ddl)
				return err
			}

			ctx := cmd.Context()
			pool, err := app.NewDBPool(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := exchange.ApplySchema(ctx, pool, cfg.DBSchema); err != nil {
				return err
			}
			log.Info("migrate.done", "schema", cfg.DBSchema)
			return nil
		},
	}
	cmd.Flags().BoolVar(&printOnly, "print", false, "Print the DDL instead of applying it")
	return cmd
}
