package pos

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
)

// ProbeVerifier validates credentials with one signed read-only GET.
// It never mutates POS state, so repeated verification is idempotent.
type ProbeVerifier struct {
	base
}

// NewProbeVerifier constructs a ProbeVerifier.
func NewProbeVerifier(cfg Config, opts ...Option) *ProbeVerifier {
	cfg.Mode = ModeProbe
	return &ProbeVerifier{base: newBase(cfg, opts)}
}

// Verify implements Verifier.
func (v *ProbeVerifier) Verify(ctx context.Context, creds Credentials) Verdict {
	if verdict, ok := validateForCall(creds); !ok {
		return v.record(verdict)
	}

	ctx, cancel := detached(ctx, v.cfg.Timeout)
	defer cancel()

	target := SignedURL(creds, v.cfg.ProbePath, v.now())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return v.record(invalid("invalid POS host: %v", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		return v.record(invalid("POS host unreachable: %v", err))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return v.record(invalid("POS validation failed (%d): %s", resp.StatusCode, readSnippet(resp.Body, reasonBodyLimit)))
	}

	var payload map[string]any
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&payload); err != nil {
		return v.record(invalid("POS validation returned an unreadable response: %v", err))
	}
	if msg, ok := payload["error"]; ok && msg != nil {
		return v.record(invalid("POS validation rejected credentials: %v", msg))
	}

	return v.record(Verdict{Valid: true})
}
