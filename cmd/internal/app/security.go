package app

import (
	"errors"
	"fmt"

	"tokex/cmd/internal/pos"
	"tokex/cmd/security/token"
)

// ValidateSecurityConfig fails fast on settings that would weaken the deployment.
//
// A database makes sealed API keys durable, so it requires a store key of at least
// token.MinKeyBytes. Without a database an ephemeral key is generated instead.
func ValidateSecurityConfig(cfg Config) error {
	if _, err := pos.ParseMode(cfg.POSVerifyMode); err != nil {
		return err
	}

	if cfg.DatabaseURL == "" && cfg.StoreKey == "" {
		return nil
	}

	if _, err := token.KeyFromString(cfg.StoreKey, token.MinKeyBytes); err != nil {
		switch {
		case errors.Is(err, token.ErrKeyMissing):
			return fmt.Errorf("security policy: a database is configured but %s is missing", token.StoreKeyEnv)
		case errors.Is(err, token.ErrKeyTooShort):
			return fmt.Errorf("security policy: %s is too short (min %d bytes)", token.StoreKeyEnv, token.MinKeyBytes)
		default:
			return err
		}
	}
	return nil
}
