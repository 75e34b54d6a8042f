// Package gateway is the HTTP dispatcher in front of the upstream e-signature API.
//
// Every route answers OPTIONS with an empty 204, then fails closed when no shared secret
// is configured, then authenticates the caller against the shared secret before any body
// is read or any downstream component is touched.
package gateway

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"tokex/cmd/internal/documenso"
	"tokex/cmd/internal/exchange"
	"tokex/cmd/internal/presign"
	"tokex/cmd/security/token"
)

// Upstream is the subset of the documenso client the gateway dispatches to.
type Upstream interface {
	presign.Minter
	GetTemplates(ctx context.Context, apiKey string, page, perPage int) (documenso.TemplatesPage, error)
	CreateTemplate(ctx context.Context, apiKey string, payload documenso.TemplatePayload, filename string, file io.Reader) (documenso.CreatedTemplate, error)
	CreateEnvelope(ctx context.Context, apiKey, templateID string, req documenso.EnvelopeRequest) (documenso.Envelope, error)
	TemplateAuthoringLink(presignToken string) string
	TemplateEditAuthoringLink(id int64, presignToken string) string
}

// Config controls gateway behavior.
type Config struct {
	SharedSecret string

	TrustProxy     bool
	MaxBodyBytes   int64
	MaxUploadBytes int64

	AuthFailMax    int
	AuthFailWindow time.Duration
}

func (c Config) withDefaults() Config {
	c.SharedSecret = strings.TrimSpace(c.SharedSecret)
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = 1 << 20
	}
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = 50 << 20
	}
	return c
}

// Handler wires the gateway routes to the exchanger, issuer and upstream client.
type Handler struct {
	log *slog.Logger
	cfg Config

	upstream  Upstream
	issuer    *presign.Issuer
	exchanger exchange.Exchanger

	limiter *failureLimiter
	metrics *Metrics

	pool       *pgxpool.Pool
	auditTable string
	now        func() time.Time
}

// HandlerOption configures optional gateway dependencies.
type HandlerOption func(*Handler)

// WithAuditPool enables the Postgres audit trail of exchange outcomes in schema.
func WithAuditPool(pool *pgxpool.Pool, schema string) HandlerOption {
	return func(h *Handler) {
		h.pool = pool
		h.auditTable = exchange.AuditTable(schema)
	}
}

// WithMetrics records response codes on m.
func WithMetrics(m *Metrics) HandlerOption {
	return func(h *Handler) { h.metrics = m }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) HandlerOption {
	return func(h *Handler) {
		if now != nil {
			h.now = now
		}
	}
}

// NewHandler constructs a Handler. upstream may be nil when no upstream URL is configured;
// affected routes then answer NOT_CONFIGURED.
func NewHandler(log *slog.Logger, cfg Config, upstream Upstream, exchanger exchange.Exchanger, opts ...HandlerOption) *Handler {
	if log == nil {
		log = slog.Default()
	}
	cfg = cfg.withDefaults()

	h := &Handler{
		log:       log,
		cfg:       cfg,
		upstream:  upstream,
		exchanger: exchanger,
		limiter:   newFailureLimiter(cfg.AuthFailMax, cfg.AuthFailWindow),
		now:       time.Now,
	}
	if upstream != nil {
		h.issuer = presign.NewIssuer(upstream)
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(h)
	}
	return h
}

// Route names used for metrics and audit.
const (
	routeDocumentRequest = "document_request"
	routeTemplateCreate  = "template_create"
	routeCreateEnvelope  = "create_envelope"
	routeTemplates       = "templates"
)

// Register wires gateway routes onto the provided mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("/api/document-request", h.handleDocumentRequest)
	mux.HandleFunc("/api/template/create", h.handleTemplateCreate)
	mux.HandleFunc("/api/template/{templateEnvelopeId}/create-envelope", h.handleCreateEnvelope)
	mux.HandleFunc("/api/templates", h.handleTemplates)
}

// admit runs the shared per-request contract. It returns false when a response has
// already been written.
func (h *Handler) admit(w http.ResponseWriter, r *http.Request, route string, methods ...string) bool {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return false
	}

	if h.cfg.SharedSecret == "" {
		h.log.Error("gateway.not_configured", "route", route)
		h.fail(w, route, failure(CodeNotConfigured, "Token exchange is not configured"))
		return false
	}

	ip := clientIP(r, h.cfg.TrustProxy)
	ipKey := ""
	if ip != nil {
		ipKey = ip.String()
	}
	now := h.now()

	// A matching secret is never throttled; only repeated failures are.
	if !token.SecureEqual(callerSecret(r), h.cfg.SharedSecret) {
		if blocked, retryAfter := h.limiter.Blocked(ipKey, now); blocked {
			h.metrics.observe(route, writeRateLimited(w, retryAfter))
			return false
		}
		h.limiter.Fail(ipKey, now)
		h.log.Warn("gateway.unauthorized", "route", route, "ip", ipKey)
		h.fail(w, route, failure(CodeUnauthorized, "Unauthorized"))
		return false
	}

	for _, m := range methods {
		if r.Method == m {
			return true
		}
	}
	w.Header().Set("Allow", strings.Join(append(methods, http.MethodOptions), ", "))
	w.WriteHeader(http.StatusMethodNotAllowed)
	return false
}

// requireUpstream writes NOT_CONFIGURED when no upstream client exists.
func (h *Handler) requireUpstream(w http.ResponseWriter, route string) bool {
	if h.upstream != nil {
		return true
	}
	h.log.Error("gateway.upstream.not_configured", "route", route)
	h.fail(w, route, failure(CodeNotConfigured, "Documenso URL is not configured"))
	return false
}

func (h *Handler) fail(w http.ResponseWriter, route string, f *Failure) {
	h.metrics.observe(route, writeFailure(w, f))
}

func (h *Handler) ok(w http.ResponseWriter, route string, v any) {
	writeJSON(w, http.StatusOK, v)
	h.metrics.observe(route, "OK")
}

// callerSecret reads the shared secret from "Authorization: Bearer" or X-API-Key.
func callerSecret(r *http.Request) string {
	if v := bearerToken(r); v != "" {
		return v
	}
	return strings.TrimSpace(r.Header.Get("X-API-Key"))
}

func bearerToken(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if raw == "" {
		return ""
	}
	parts := strings.SplitN(raw, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// documensoAPIKey reads the caller's platform key from X-Documenso-API-Key or ?apiKey=.
func documensoAPIKey(r *http.Request) string {
	if v := strings.TrimSpace(r.Header.Get("X-Documenso-API-Key")); v != "" {
		return v
	}
	return strings.TrimSpace(r.URL.Query().Get("apiKey"))
}

const missingAPIKeyMsg = "Missing Documenso API key. Pass via X-Documenso-API-Key header or apiKey query param"
