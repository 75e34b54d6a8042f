package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"tokex/cmd/internal/app"
	"tokex/cmd/internal/exchange"
)

// withService opens the Postgres store and runs fn against a provisioning Service.
func withService(cmd *cobra.Command, opts *rootOptions, fn func(ctx context.Context, svc *exchange.Service) error) error {
	cfg, log, err := opts.load(cmd)
	if err != nil {
		return err
	}
	if cfg.DatabaseURL == "" {
		return app.ErrNoDatabase
	}
	if err := app.ValidateSecurityConfig(cfg); err != nil {
		return err
	}

	ctx := cmd.Context()
	store, pool, err := app.OpenStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer pool.Close()

	sealer, err := app.NewSealer(cfg, log)
	if err != nil {
		return err
	}
	return fn(ctx, exchange.NewService(store, nil, sealer, exchange.WithLogger(log)))
}

// NewOrgCommand groups organisation provisioning.
func NewOrgCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "org",
		Short: "Manage organisations",
	}

	var id, name, apiKey string
	add := &cobra.Command{
		Use:   "add",
		Short: "Create or update an organisation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withService(cmd, opts, func(ctx context.Context, svc *exchange.Service) error {
				if err := svc.ProvisionOrganisation(ctx, id, name, apiKey); err != nil {
					return err
				}
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "organisation %s saved\n", id)
				return err
			})
		},
	}
	add.Flags().StringVar(&id, "id", "", "Organisation id (required)")
	add.Flags().StringVar(&name, "name", "", "Display name (defaults to id)")
	add.Flags().StringVar(&apiKey, "api-key", "", "Organisation API key used to provision teams on demand")
	_ = add.MarkFlagRequired("id")

	cmd.AddCommand(add)
	return cmd
}

// NewTeamCommand groups team provisioning.
func NewTeamCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "team",
		Short: "Manage teams",
	}

	var orgID, slug, name, apiKey string
	add := &cobra.Command{
		Use:   "add",
		Short: "Create a team under an organisation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withService(cmd, opts, func(ctx context.Context, svc *exchange.Service) error {
				team, err := svc.ProvisionTeam(ctx, orgID, slug, name, apiKey)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "team %s (%s) saved\n", team.Slug, team.ID)
				return err
			})
		},
	}
	add.Flags().StringVar(&orgID, "org", "", "Organisation id (required)")
	add.Flags().StringVar(&slug, "slug", "", "Team slug (derived from --name when empty)")
	add.Flags().StringVar(&name, "name", "", "Display name")
	add.Flags().StringVar(&apiKey, "api-key", "", "Team API key (required)")
	_ = add.MarkFlagRequired("org")
	_ = add.MarkFlagRequired("api-key")

	cmd.AddCommand(add)
	return cmd
}
