package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"tokex/cmd/internal/app"
	"tokex/cmd/internal/pos"
)

type posFlags struct {
	host      string
	accessKey string
	secretKey string
	password  string
	appID     int64
}

func (f *posFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.host, "host", "", "POS host (required)")
	cmd.Flags().StringVar(&f.accessKey, "access-key", "", "POS access key (required)")
	cmd.Flags().StringVar(&f.secretKey, "secret-key", "", "POS secret key (required)")
	_ = cmd.MarkFlagRequired("host")
	_ = cmd.MarkFlagRequired("access-key")
	_ = cmd.MarkFlagRequired("secret-key")
}

func (f *posFlags) credentials(cmd *cobra.Command) (pos.Credentials, error) {
	raw := map[string]any{
		"host":      f.host,
		"accessKey": f.accessKey,
		"secretKey": f.secretKey,
	}
	if f.password != "" {
		raw["password"] = f.password
	}
	if cmd.Flags().Changed("app-id") {
		raw["appId"] = float64(f.appID)
	}
	return pos.ParseCredentials(raw)
}

// NewPOSCommand groups POS credential tooling.
func NewPOSCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pos",
		Short: "Inspect and check POS credentials",
	}
	cmd.AddCommand(newPOSSignCommand())
	cmd.AddCommand(newPOSVerifyCommand(opts))
	return cmd
}

func newPOSSignCommand() *cobra.Command {
	var (
		f    posFlags
		path string
		at   string
	)
	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Print a signed POS URL for path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			creds, err := f.credentials(cmd)
			if err != nil {
				return err
			}
			now := time.Now()
			if at != "" {
				if now, err = time.Parse(time.RFC3339, at); err != nil {
					return fmt.Errorf("--at: %w", err)
				}
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), pos.SignedURL(creds, path, now))
			return err
		},
	}
	f.bind(cmd)
	cmd.Flags().StringVar(&path, "path", pos.DefaultProbePath, "Path to sign")
	cmd.Flags().StringVar(&at, "at", "", "Sign at this RFC3339 time instead of now")
	return cmd
}

var errCredentialsRejected = errors.New("credentials rejected")

func newPOSVerifyCommand(opts *rootOptions) *cobra.Command {
	var (
		f    posFlags
		mode string
	)
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check credentials against the POS host with the configured strategy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := opts.load(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("mode") {
				cfg.POSVerifyMode = mode
			}
			creds, err := f.credentials(cmd)
			if err != nil {
				return err
			}
			verifier, err := app.NewVerifier(cfg, log, nil)
			if err != nil {
				return err
			}

			v := verifier.Verify(cmd.Context(), creds)
			if !v.Valid {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "invalid: %s\n", v.Reason)
				return errCredentialsRejected
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "valid")
			return err
		},
	}
	f.bind(cmd)
	cmd.Flags().StringVar(&f.password, "password", "", "POS password (session mode)")
	cmd.Flags().Int64Var(&f.appID, "app-id", 0, "POS app id (session mode)")
	cmd.Flags().StringVar(&mode, "mode", "", "Verification strategy: probe or session")
	return cmd
}
