package pos

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultTimeout bounds the verification call.
	DefaultTimeout = 15 * time.Second
	// DefaultCleanupTimeout bounds the best-effort session release.
	DefaultCleanupTimeout = 5 * time.Second

	// DefaultProbePath is the read-only endpoint used by ProbeVerifier.
	DefaultProbePath = "/apps/any/test"
	// DefaultSessionPath is the session endpoint used by SessionVerifier.
	DefaultSessionPath = "/apps/any/sessions"

	reasonBodyLimit = 200
)

// Mode selects the verification strategy for a deployment.
type Mode string

const (
	ModeProbe   Mode = "probe"
	ModeSession Mode = "session"
)

// ParseMode maps a config value to a Mode. Blank defaults to ModeProbe.
func ParseMode(raw string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(raw))) {
	case "", ModeProbe:
		return ModeProbe, nil
	case ModeSession:
		return ModeSession, nil
	default:
		return "", fmt.Errorf("pos: unknown verify mode %q (want probe or session)", raw)
	}
}

// Verdict is the outcome of one verification. Reason is set when Valid is false.
type Verdict struct {
	Valid  bool
	Reason string
}

func invalid(format string, args ...any) Verdict {
	return Verdict{Valid: false, Reason: fmt.Sprintf(format, args...)}
}

// Verifier checks a set of credentials against the POS host they name.
type Verifier interface {
	Verify(ctx context.Context, creds Credentials) Verdict
}

// HTTPDoer is the subset of *http.Client used by verifiers.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config holds the shared verifier settings.
type Config struct {
	Mode           Mode
	ProbePath      string
	SessionPath    string
	Timeout        time.Duration
	CleanupTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Mode == "" {
		c.Mode = ModeProbe
	}
	if strings.TrimSpace(c.ProbePath) == "" {
		c.ProbePath = DefaultProbePath
	}
	if strings.TrimSpace(c.SessionPath) == "" {
		c.SessionPath = DefaultSessionPath
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.CleanupTimeout <= 0 {
		c.CleanupTimeout = DefaultCleanupTimeout
	}
	return c
}

// Option configures optional verifier dependencies.
type Option func(*base)

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(c HTTPDoer) Option {
	return func(b *base) {
		if c != nil {
			b.client = c
		}
	}
}

// WithLogger sets the logger used for best-effort failures.
func WithLogger(log *slog.Logger) Option {
	return func(b *base) {
		if log != nil {
			b.log = log
		}
	}
}

// WithClock overrides time.Now for challenge timestamps.
func WithClock(now func() time.Time) Option {
	return func(b *base) {
		if now != nil {
			b.now = now
		}
	}
}

// WithMetrics records verdicts on m.
func WithMetrics(m *Metrics) Option {
	return func(b *base) { b.metrics = m }
}

type base struct {
	cfg     Config
	client  HTTPDoer
	log     *slog.Logger
	now     func() time.Time
	metrics *Metrics
}

func newBase(cfg Config, opts []Option) base {
	b := base{
		cfg:    cfg.withDefaults(),
		client: &http.Client{},
		log:    slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&b)
	}
	return b
}

// detached returns a context that ignores caller cancellation and expires after d.
func detached(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), d)
}

func (b *base) record(v Verdict) Verdict {
	b.metrics.observe(b.cfg.Mode, v)
	return v
}

// New builds the Verifier for cfg.Mode.
func New(cfg Config, opts ...Option) (Verifier, error) {
	mode, err := ParseMode(string(cfg.Mode))
	if err != nil {
		return nil, err
	}
	cfg.Mode = mode
	switch mode {
	case ModeSession:
		return NewSessionVerifier(cfg, opts...), nil
	default:
		return NewProbeVerifier(cfg, opts...), nil
	}
}

func readSnippet(body io.Reader, limit int) string {
	b, _ := io.ReadAll(io.LimitReader(body, int64(limit)))
	return strings.TrimSpace(string(b))
}

func validateForCall(creds Credentials) (Verdict, bool) {
	if creds.Host == "" || creds.AccessKey == "" || creds.SecretKey == "" {
		return invalid("host, accessKey and secretKey are required"), false
	}
	return Verdict{}, true
}
