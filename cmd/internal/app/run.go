package app

import (
	"context"
	"os/signal"
	"syscall"
)

// Run builds the App from cfg and serves until SIGINT or SIGTERM.
// It returns an error instead of calling os.Exit so deferred cleanup runs.
func Run(cfg Config, log Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := New(ctx, cfg, log)
	if err != nil {
		return err
	}
	return a.Run(ctx)
}
