package pos

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
)

// SessionVerifier validates credentials by opening a signed POS session with the
// account password. A successfully opened session is always released again.
type SessionVerifier struct {
	base
}

// NewSessionVerifier constructs a SessionVerifier.
func NewSessionVerifier(cfg Config, opts ...Option) *SessionVerifier {
	cfg.Mode = ModeSession
	return &SessionVerifier{base: newBase(cfg, opts)}
}

type sessionRequest struct {
	Password string `json:"password"`
	AppID    *int64 `json:"appId,omitempty"`
}

type sessionResponse struct {
	Token        string `json:"token"`
	SessionToken string `json:"sessionToken"`
	Error        any    `json:"error"`
}

func (r sessionResponse) token() string {
	if t := strings.TrimSpace(r.Token); t != "" {
		return t
	}
	return strings.TrimSpace(r.SessionToken)
}

// Verify implements Verifier.
func (v *SessionVerifier) Verify(ctx context.Context, creds Credentials) Verdict {
	if verdict, ok := validateForCall(creds); !ok {
		return v.record(verdict)
	}
	if creds.Password == "" {
		return v.record(invalid("password is required for session verification"))
	}

	sessionToken, verdict := v.open(ctx, creds)
	if sessionToken != "" {
		defer v.release(ctx, creds, sessionToken)
	}
	return v.record(verdict)
}

func (v *SessionVerifier) open(ctx context.Context, creds Credentials) (string, Verdict) {
	ctx, cancel := detached(ctx, v.cfg.Timeout)
	defer cancel()

	body, err := json.Marshal(sessionRequest{Password: creds.Password, AppID: creds.AppID})
	if err != nil {
		return "", invalid("encode session request: %v", err)
	}

	target := SignedURL(creds, v.cfg.SessionPath, v.now())
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return "", invalid("invalid POS host: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		return "", invalid("POS host unreachable: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", invalid("POS session failed (%d): %s", resp.StatusCode, readSnippet(resp.Body, reasonBodyLimit))
	}

	var payload sessionResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&payload); err != nil {
		return "", invalid("POS session returned an unreadable response: %v", err)
	}
	tok := payload.token()
	if payload.Error != nil {
		return tok, invalid("POS session rejected credentials: %v", payload.Error)
	}
	if tok == "" {
		return "", invalid("POS session response carried no session token")
	}
	return tok, Verdict{Valid: true}
}

// release signs the session out. Failures are logged and otherwise ignored.
func (v *SessionVerifier) release(ctx context.Context, creds Credentials, sessionToken string) {
	ctx, cancel := detached(ctx, v.cfg.CleanupTimeout)
	defer cancel()

	target := SignedURL(creds, v.cfg.SessionPath, v.now())
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, target, nil)
	if err != nil {
		v.log.Warn("pos.signout.fail", "err", err)
		return
	}
	req.Header.Set("X-Session-Token", sessionToken)

	resp, err := v.client.Do(req)
	if err != nil {
		v.log.Warn("pos.signout.fail", "host", creds.Host, "err", err)
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
	_ = resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		v.log.Warn("pos.signout.fail", "host", creds.Host, "status", resp.StatusCode)
	}
}
