// Package app wires the tokex server runtime: config, logging, storage, the upstream
// client and the gateway routes.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"

	"tokex/cmd/internal/documenso"
	"tokex/cmd/internal/exchange"
	"tokex/cmd/internal/gateway"
	"tokex/cmd/internal/pos"
	"tokex/cmd/security/token"
)

// App is the tokex server runtime. It owns the HTTP handler chain and the DB pool.
type App struct {
	cfg Config
	log Logger

	dbPool *pgxpool.Pool
	reg    *prometheus.Registry

	handler http.Handler
}

// New constructs a fully wired App from cfg.
func New(ctx context.Context, cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat)
	}
	if err := ValidateSecurityConfig(cfg); err != nil {
		return nil, err
	}

	var reg *prometheus.Registry
	if cfg.MetricsEnabled {
		reg = NewRegistry()
	}

	store, pool, err := OpenStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	a, err := build(cfg, log, store, pool, reg)
	if err != nil {
		if pool != nil {
			pool.Close()
		}
		return nil, err
	}
	return a, nil
}

func build(cfg Config, log Logger, store exchange.Store, pool *pgxpool.Pool, reg *prometheus.Registry) (*App, error) {
	sealer, err := NewSealer(cfg, log)
	if err != nil {
		return nil, err
	}

	verifier, err := NewVerifier(cfg, log, reg)
	if err != nil {
		return nil, err
	}

	upstream, err := newUpstream(cfg, log, reg)
	if err != nil {
		return nil, err
	}

	svc := exchange.NewService(store, verifier, sealer, exchange.WithLogger(log))

	opts := []gateway.HandlerOption{}
	if reg != nil {
		opts = append(opts, gateway.WithMetrics(gateway.NewMetrics(reg)))
	}
	if pool != nil {
		opts = append(opts, gateway.WithAuditPool(pool, cfg.DBSchema))
	}
	gw := gateway.NewHandler(log, gateway.Config{
		SharedSecret:   cfg.SharedSecret,
		TrustProxy:     cfg.TrustProxy,
		MaxBodyBytes:   cfg.MaxBodyBytes,
		MaxUploadBytes: cfg.MaxUploadBytes,
		AuthFailMax:    cfg.AuthFailMax,
		AuthFailWindow: cfg.AuthFailWindow,
	}, upstream, svc, opts...)

	if cfg.SharedSecret == "" {
		log.Warn("config.shared_secret.missing", "effect", "gateway routes answer NOT_CONFIGURED")
	}

	mux := http.NewServeMux()
	registerHTTP(mux, log, cfg, pool, reg, gw)

	var httpMetrics *HTTPMetrics
	if reg != nil {
		httpMetrics = NewHTTPMetrics(reg)
	}
	handler := WithRequestLogging(WithCORS(WithSecurityHeaders(mux), cfg, log), log, httpMetrics)

	return &App{cfg: cfg, log: log, dbPool: pool, reg: reg, handler: handler}, nil
}

// Handler returns the root HTTP handler.
func (a *App) Handler() http.Handler { return a.handler }

// Close releases the DB pool.
func (a *App) Close() {
	if a.dbPool != nil {
		a.dbPool.Close()
	}
}

// Run serves HTTP until ctx is cancelled or the listener fails, then shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	defer a.Close()

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           a.handler,
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 60*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 90*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	a.log.Info("server.start",
		"addr", a.cfg.HTTPAddr,
		"db_enabled", a.dbPool != nil,
		"documenso_configured", a.cfg.DocumensoURL != "",
		"pos_verify_mode", a.cfg.POSVerifyMode,
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case err := <-errCh:
		a.log.Error("server.fail", "err", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		return err
	}

	a.log.Info("server.stopped")
	return nil
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// OpenStore picks Postgres when a database URL is configured, the in-memory store otherwise.
// The returned pool is nil in memory mode; the caller owns it.
func OpenStore(ctx context.Context, cfg Config, log Logger) (exchange.Store, *pgxpool.Pool, error) {
	if cfg.DatabaseURL == "" {
		log.Info("db.disabled.memory_store")
		return exchange.NewMemoryStore(), nil, nil
	}

	pool, err := NewDBPool(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}

	st, err := exchange.NewPostgresStore(pool, exchange.WithSchema(cfg.DBSchema))
	if err != nil {
		pool.Close()
		return nil, nil, err
	}

	log.Info("db.enabled.postgres_store", "schema", cfg.DBSchema)
	return st, pool, nil
}

// NewSealer derives the sealer from the store key, or generates an ephemeral one when
// none is configured.
func NewSealer(cfg Config, log Logger) (*exchange.Sealer, error) {
	if cfg.StoreKey == "" {
		log.Warn("store_key.ephemeral", "effect", "sealed keys do not survive a restart")
		return exchange.NewEphemeralSealer()
	}
	key, err := token.KeyFromString(cfg.StoreKey, token.MinKeyBytes)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", token.StoreKeyEnv, err)
	}
	return exchange.NewSealer(key)
}

// NewVerifier builds the POS verifier for the configured mode. reg may be nil.
func NewVerifier(cfg Config, log Logger, reg *prometheus.Registry) (pos.Verifier, error) {
	opts := []pos.Option{pos.WithLogger(log)}
	if reg != nil {
		opts = append(opts, pos.WithMetrics(pos.NewMetrics(reg)))
	}
	return pos.New(pos.Config{
		Mode:        pos.Mode(cfg.POSVerifyMode),
		ProbePath:   cfg.POSProbePath,
		SessionPath: cfg.POSSessionPath,
		Timeout:     cfg.POSTimeout,
	}, opts...)
}

// newUpstream returns a nil interface when no upstream URL is configured.
func newUpstream(cfg Config, log Logger, reg *prometheus.Registry) (gateway.Upstream, error) {
	if cfg.DocumensoURL == "" {
		log.Warn("config.documenso_url.missing", "effect", "upstream routes answer NOT_CONFIGURED")
		return nil, nil
	}
	opts := []documenso.Option{documenso.WithTimeout(cfg.UpstreamTimeout)}
	if reg != nil {
		opts = append(opts, documenso.WithMetrics(documenso.NewMetrics(reg)))
	}
	c, err := documenso.NewClient(cfg.DocumensoURL, opts...)
	if err != nil {
		return nil, err
	}
	log.Info("upstream.configured", "base_url", c.BaseURL(), "timeout", cfg.UpstreamTimeout)
	return c, nil
}
