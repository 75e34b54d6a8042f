package exchange

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tokex/cmd/internal/ids"
)

// Integration tests are opt-in and require TOKEX_TEST_DATABASE_URL.

func mustOpenTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	raw := strings.TrimSpace(os.Getenv("TOKEX_TEST_DATABASE_URL"))
	if raw == "" {
		t.Skip("integration test skipped: TOKEX_TEST_DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, raw)
	require.NoError(t, err)
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		t.Skipf("integration test skipped: Postgres unreachable: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}

func mustTestSchema(t *testing.T, pool *pgxpool.Pool) string {
	t.Helper()

	schema := "tokex_it_" + strings.ToLower(ids.MustULID())
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	require.NoError(t, ApplySchema(ctx, pool, schema))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_, _ = pool.Exec(ctx, `DROP SCHEMA IF EXISTS `+pgx.Identifier{schema}.Sanitize()+` CASCADE`)
	})
	return schema
}

func TestPostgresStore_ExchangeFlow(t *testing.T) {
	pool := mustOpenTestPool(t)
	schema := mustTestSchema(t, pool)

	st, err := NewPostgresStore(pool, WithSchema(schema))
	require.NoError(t, err)

	svc := NewService(st, &stubVerifier{verdict: posValid()}, testSealer(t))
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	require.NoError(t, svc.ProvisionOrganisation(ctx, "org_1", "Acme", "api_org"))
	_, err = svc.ProvisionTeam(ctx, "org_1", "acme-shop", "Acme Shop", "api_team")
	require.NoError(t, err)

	res := svc.Exchange(ctx, Request{Credentials: validCreds(), Slug: "acme-shop", OrganisationID: "org_1"})
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "api_team", res.APIKey)

	res = svc.Exchange(ctx, Request{Credentials: validCreds(), Slug: "acme-shop", OrganisationID: "org_1"})
	require.True(t, res.Success, res.Error)

	res = svc.Exchange(ctx, Request{Credentials: validCreds(), Slug: "acme-new", OrganisationID: "org_1"})
	assert.Equal(t, CodeTeamURLTaken, res.Code, res.Error)

	_, err = st.GetTeamBySlug(ctx, "acme-new")
	require.NoError(t, err)

	res = svc.Exchange(ctx, Request{Credentials: validCreds(), Slug: "acme-shop", OrganisationID: "org_missing"})
	assert.Equal(t, CodeOrganisationNotFound, res.Code)

	_, err = svc.ProvisionTeam(ctx, "org_1", "acme-shop", "dup", "k")
	assert.True(t, IsConflict(err), "err=%v", err)

	_, err = svc.ProvisionTeam(ctx, "org_missing", "other-shop", "x", "k")
	assert.True(t, IsNotFound(err), "err=%v", err)
}

func TestSchemaSQL_RejectsBadIdentifier(t *testing.T) {
	t.Parallel()

	_, err := SchemaSQL(`tokex"; DROP TABLE x; --`)
	assert.Error(t, err)

	ddl, err := SchemaSQL("tokex")
	require.NoError(t, err)
	assert.Contains(t, ddl, `"tokex"."teams"`)
}
