package pos

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = func() time.Time { return time.Date(2026, 5, 6, 7, 8, 9, 0, time.UTC) }

func discardLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func testCreds(host string) Credentials {
	return Credentials{Host: host, AccessKey: "ak", SecretKey: "sk", Password: "pw"}
}

func TestProbeVerifier_Valid(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, DefaultProbePath, r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "ak", q.Get("accesskey"))
		assert.Equal(t, "2026-05-06T07:08:09Z", q.Get("timestamp"))
		assert.Equal(t, Sign(DefaultProbePath, "2026-05-06T07:08:09Z", "sk"), q.Get("signature"))
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	v := NewProbeVerifier(Config{}, WithClock(fixedNow), WithLogger(discardLogger()))
	got := v.Verify(context.Background(), testCreds(srv.URL))
	assert.True(t, got.Valid, got.Reason)
}

func TestProbeVerifier_Invalid(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name       string
		status     int
		body       string
		wantReason string
	}{
		{name: "non-2xx", status: http.StatusForbidden, body: "forbidden", wantReason: "(403): forbidden"},
		{name: "error field", status: http.StatusOK, body: `{"error":"bad signature"}`, wantReason: "bad signature"},
		{name: "not json", status: http.StatusOK, body: "<html>", wantReason: "unreadable"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			got := NewProbeVerifier(Config{}).Verify(context.Background(), testCreds(srv.URL))
			assert.False(t, got.Valid)
			assert.Contains(t, got.Reason, tc.wantReason)
		})
	}
}

func TestProbeVerifier_TruncatesReasonBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(strings.Repeat("x", 1000)))
	}))
	defer srv.Close()

	got := NewProbeVerifier(Config{}).Verify(context.Background(), testCreds(srv.URL))
	require.False(t, got.Valid)
	assert.Equal(t, reasonBodyLimit, strings.Count(got.Reason, "x"))
}

func TestProbeVerifier_Timeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	v := NewProbeVerifier(Config{Timeout: 50 * time.Millisecond})
	got := v.Verify(context.Background(), testCreds(srv.URL))
	assert.False(t, got.Valid)
	assert.Contains(t, got.Reason, "unreachable")
}

func TestProbeVerifier_IgnoresCallerCancellation(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got := NewProbeVerifier(Config{}).Verify(ctx, testCreds(srv.URL))
	assert.True(t, got.Valid, got.Reason)
}

func TestProbeVerifier_Idempotent(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	v := NewProbeVerifier(Config{}, WithClock(fixedNow))
	first := v.Verify(context.Background(), testCreds(srv.URL))
	second := v.Verify(context.Background(), testCreds(srv.URL))
	assert.Equal(t, first, second)
}

type sessionServer struct {
	mu            sync.Mutex
	opened        int
	released      []string
	releaseStatus int
	openReply     string
	openBody      sessionRequest
}

func (s *sessionServer) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()

		assert.Equal(t, DefaultSessionPath, r.URL.Path)
		assert.NotEmpty(t, r.URL.Query().Get("signature"))

		switch r.Method {
		case http.MethodPost:
			s.opened++
			_ = json.NewDecoder(r.Body).Decode(&s.openBody)
			reply := s.openReply
			if reply == "" {
				reply = `{"token":"sess-1"}`
			}
			_, _ = w.Write([]byte(reply))
		case http.MethodDelete:
			s.released = append(s.released, r.Header.Get("X-Session-Token"))
			if s.releaseStatus != 0 {
				w.WriteHeader(s.releaseStatus)
			}
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})
}

func TestSessionVerifier_AlwaysSignsOut(t *testing.T) {
	t.Parallel()

	ss := &sessionServer{}
	srv := httptest.NewServer(ss.handler(t))
	defer srv.Close()

	appID := int64(3)
	creds := testCreds(srv.URL)
	creds.AppID = &appID

	got := NewSessionVerifier(Config{}, WithLogger(discardLogger())).Verify(context.Background(), creds)
	require.True(t, got.Valid, got.Reason)

	ss.mu.Lock()
	defer ss.mu.Unlock()
	assert.Equal(t, 1, ss.opened)
	assert.Equal(t, []string{"sess-1"}, ss.released)
	assert.Equal(t, "pw", ss.openBody.Password)
	require.NotNil(t, ss.openBody.AppID)
	assert.Equal(t, int64(3), *ss.openBody.AppID)
}

func TestSessionVerifier_SignsOutRejectedSession(t *testing.T) {
	t.Parallel()

	ss := &sessionServer{openReply: `{"token":"sess-1","error":"app disabled"}`}
	srv := httptest.NewServer(ss.handler(t))
	defer srv.Close()

	got := NewSessionVerifier(Config{}, WithLogger(discardLogger())).Verify(context.Background(), testCreds(srv.URL))
	assert.False(t, got.Valid)
	assert.Contains(t, got.Reason, "app disabled")

	ss.mu.Lock()
	defer ss.mu.Unlock()
	assert.Equal(t, []string{"sess-1"}, ss.released)
}

func TestSessionVerifier_NoTokenNoSignOut(t *testing.T) {
	t.Parallel()

	ss := &sessionServer{openReply: `{"error":"bad password"}`}
	srv := httptest.NewServer(ss.handler(t))
	defer srv.Close()

	got := NewSessionVerifier(Config{}, WithLogger(discardLogger())).Verify(context.Background(), testCreds(srv.URL))
	assert.False(t, got.Valid)

	ss.mu.Lock()
	defer ss.mu.Unlock()
	assert.Empty(t, ss.released)
}

func TestSessionVerifier_SignOutFailureKeepsVerdict(t *testing.T) {
	t.Parallel()

	ss := &sessionServer{releaseStatus: http.StatusInternalServerError}
	srv := httptest.NewServer(ss.handler(t))
	defer srv.Close()

	got := NewSessionVerifier(Config{}, WithLogger(discardLogger())).Verify(context.Background(), testCreds(srv.URL))
	assert.True(t, got.Valid, got.Reason)
}

type scriptedDoer struct {
	calls []string
}

func (d *scriptedDoer) Do(req *http.Request) (*http.Response, error) {
	d.calls = append(d.calls, req.Method)
	if req.Method == http.MethodDelete {
		return nil, errors.New("connection reset")
	}
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(strings.NewReader(`{"sessionToken":"s"}`)),
		Header:     http.Header{},
	}, nil
}

func TestSessionVerifier_SignOutNetworkErrorSwallowed(t *testing.T) {
	t.Parallel()

	doer := &scriptedDoer{}
	v := NewSessionVerifier(Config{}, WithHTTPClient(doer), WithLogger(discardLogger()))

	got := v.Verify(context.Background(), testCreds("https://pos.invalid"))
	assert.True(t, got.Valid, got.Reason)
	assert.Equal(t, []string{http.MethodPost, http.MethodDelete}, doer.calls)
}

func TestSessionVerifier_RequiresPasswordAndToken(t *testing.T) {
	t.Parallel()

	doer := &scriptedDoer{}
	v := NewSessionVerifier(Config{}, WithHTTPClient(doer))

	creds := testCreds("https://pos.invalid")
	creds.Password = ""
	got := v.Verify(context.Background(), creds)
	assert.False(t, got.Valid)
	assert.Empty(t, doer.calls)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete {
			t.Errorf("no session was opened, sign-out must not run")
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	got = NewSessionVerifier(Config{}).Verify(context.Background(), testCreds(srv.URL))
	assert.False(t, got.Valid)
	assert.Contains(t, got.Reason, "no session token")
}

func TestNew_SelectsStrategy(t *testing.T) {
	t.Parallel()

	v, err := New(Config{Mode: ModeSession})
	require.NoError(t, err)
	_, ok := v.(*SessionVerifier)
	assert.True(t, ok)

	v, err = New(Config{})
	require.NoError(t, err)
	_, ok = v.(*ProbeVerifier)
	assert.True(t, ok)

	_, err = New(Config{Mode: "nope"})
	assert.Error(t, err)
}
