package exchange

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tokex/cmd/internal/pos"
)

type stubVerifier struct {
	mu      sync.Mutex
	verdict pos.Verdict
	calls   []pos.Credentials
}

func (v *stubVerifier) Verify(_ context.Context, creds pos.Credentials) pos.Verdict {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.calls = append(v.calls, creds)
	return v.verdict
}

func testSealer(t *testing.T) *Sealer {
	t.Helper()
	s, err := NewSealer([]byte(strings.Repeat("r", 32)))
	require.NoError(t, err)
	return s
}

func validCreds() map[string]any {
	return map[string]any{"host": "pos.example.com", "accessKey": "ak", "secretKey": "sk"}
}

type fixture struct {
	store    *MemoryStore
	verifier *stubVerifier
	svc      *Service
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	st := NewMemoryStore()
	v := &stubVerifier{verdict: pos.Verdict{Valid: true}}
	svc := NewService(st, v, testSealer(t), WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	ctx := context.Background()
	require.NoError(t, svc.ProvisionOrganisation(ctx, "org_1", "Acme", ""))
	require.NoError(t, svc.ProvisionOrganisation(ctx, "org_2", "Globex", "api_org2"))
	_, err := svc.ProvisionTeam(ctx, "org_1", "acme-shop", "Acme Shop", "api_team1")
	require.NoError(t, err)
	return fixture{store: st, verifier: v, svc: svc}
}

func TestExchange_Success(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	res := f.svc.Exchange(context.Background(), Request{Credentials: validCreds(), Slug: "acme-shop", OrganisationID: "org_1"})
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "api_team1", res.APIKey)

	require.Len(t, f.verifier.calls, 1)
	assert.Equal(t, "https://pos.example.com", f.verifier.calls[0].Host)

	again := f.svc.Exchange(context.Background(), Request{Credentials: validCreds(), Slug: "acme-shop", OrganisationID: "org_1"})
	assert.Equal(t, res, again)
}

func TestExchange_Failures(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		req   Request
		setup func(f fixture)
		want  Code
	}{
		{
			name: "missing fields",
			req:  Request{Credentials: validCreds(), Slug: " ", OrganisationID: "org_1"},
			want: CodeInvalidRequest,
		},
		{
			name: "malformed credentials",
			req:  Request{Credentials: map[string]any{"host": "h"}, Slug: "acme-shop", OrganisationID: "org_1"},
			want: CodeInvalidCredentials,
		},
		{
			name:  "rejected by pos",
			req:   Request{Credentials: validCreds(), Slug: "acme-shop", OrganisationID: "org_1"},
			setup: func(f fixture) { f.verifier.verdict = pos.Verdict{Reason: "bad signature"} },
			want:  CodeInvalidCredentials,
		},
		{
			name: "bad slug",
			req:  Request{Credentials: validCreds(), Slug: "Acme Shop!", OrganisationID: "org_1"},
			want: CodeInvalidSlug,
		},
		{
			name: "unknown organisation",
			req:  Request{Credentials: validCreds(), Slug: "acme-shop", OrganisationID: "org_missing"},
			want: CodeOrganisationNotFound,
		},
		{
			name: "slug owned by another organisation",
			req:  Request{Credentials: validCreds(), Slug: "acme-shop", OrganisationID: "org_2"},
			want: CodeTeamURLTaken,
		},
		{
			name: "unknown slug without organisation key",
			req:  Request{Credentials: validCreds(), Slug: "new-shop", OrganisationID: "org_1"},
			want: CodeInvalidSlug,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t)
			if tc.setup != nil {
				tc.setup(f)
			}
			res := f.svc.Exchange(context.Background(), tc.req)
			assert.False(t, res.Success)
			assert.Empty(t, res.APIKey)
			assert.Equal(t, tc.want, res.Code, res.Error)
			assert.NotEmpty(t, res.Error)
		})
	}
}

func TestExchange_RejectedCredentialsSkipStore(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.verifier.verdict = pos.Verdict{Reason: "nope"}

	res := f.svc.Exchange(context.Background(), Request{Credentials: validCreds(), Slug: "brand-new", OrganisationID: "org_2"})
	require.Equal(t, CodeInvalidCredentials, res.Code)

	_, err := f.store.GetTeamBySlug(context.Background(), "brand-new")
	assert.True(t, IsNotFound(err))
}

func TestExchange_ProvisionsTeamFromOrganisationKey(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	res := f.svc.Exchange(context.Background(), Request{Credentials: validCreds(), Slug: "globex-east", OrganisationID: "org_2"})
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "api_org2", res.APIKey)

	team, err := f.store.GetTeamBySlug(context.Background(), "globex-east")
	require.NoError(t, err)
	assert.Equal(t, "org_2", team.OrganisationID)
	assert.NotContains(t, string(team.SealedAPIKey), "api_org2")
}

func TestExchange_IdentityBoundToOtherTeam(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.ProvisionTeam(ctx, "org_1", "", "Acme Outlet", "api_outlet")
	require.NoError(t, err)

	first := f.svc.Exchange(ctx, Request{Credentials: validCreds(), Slug: "acme-shop", OrganisationID: "org_1"})
	require.True(t, first.Success, first.Error)

	second := f.svc.Exchange(ctx, Request{Credentials: validCreds(), Slug: "acme-outlet", OrganisationID: "org_1"})
	assert.Equal(t, CodeTeamURLTaken, second.Code)
}

func TestProvisionTeam_Validation(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.ProvisionTeam(ctx, "org_1", "x", "X", "k")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.svc.ProvisionTeam(ctx, "org_1", "valid-slug", "", "")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.svc.ProvisionTeam(ctx, "org_nope", "valid-slug", "", "k")
	assert.True(t, IsNotFound(err))

	_, err = f.svc.ProvisionTeam(ctx, "org_2", "acme-shop", "", "k")
	assert.True(t, IsConflict(err))
}

func TestProvisionTeam_IDStampedByServiceClock(t *testing.T) {
	t.Parallel()
	at := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	svc := NewService(NewMemoryStore(), nil, testSealer(t),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithClock(func() time.Time { return at }))
	ctx := context.Background()

	require.NoError(t, svc.ProvisionOrganisation(ctx, "org_1", "", ""))
	team, err := svc.ProvisionTeam(ctx, "org_1", "acme-shop", "", "k")
	require.NoError(t, err)

	id, err := ulid.ParseStrict(team.ID)
	require.NoError(t, err)
	assert.True(t, ulid.Time(id.Time()).Equal(at))
	assert.Equal(t, at, team.CreatedAt)
}

func posValid() pos.Verdict { return pos.Verdict{Valid: true} }
