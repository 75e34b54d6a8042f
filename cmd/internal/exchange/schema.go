package exchange

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DefaultSchema is the Postgres schema owned by tokex.
const DefaultSchema = "tokex"

var pgIdentRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

func pgIdentIsValid(s string) bool { return pgIdentRe.MatchString(s) }

// pgIdent safely quotes a schema-qualified identifier: "schema"."name".
func pgIdent(schema, name string) string {
	return pgx.Identifier{schema, name}.Sanitize()
}

// SchemaSQL renders the DDL for schema. It is idempotent.
func SchemaSQL(schema string) (string, error) {
	schema = strings.TrimSpace(schema)
	if !pgIdentIsValid(schema) {
		return "", fmt.Errorf("exchange: invalid schema identifier %q", schema)
	}

	orgs := pgIdent(schema, "organisations")
	teams := pgIdent(schema, "teams")
	integrations := pgIdent(schema, "integrations")
	audit := pgIdent(schema, "audit_log")

	return fmt.Sprintf(`
CREATE SCHEMA IF NOT EXISTS %[1]s;

CREATE TABLE IF NOT EXISTS %[2]s (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  api_key_sealed BYTEA NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS %[3]s (
  id TEXT PRIMARY KEY,
  organisation_id TEXT NOT NULL REFERENCES %[2]s (id) ON DELETE CASCADE,
  slug TEXT NOT NULL,
  name TEXT NOT NULL,
  api_key_sealed BYTEA NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  CONSTRAINT uq_teams_slug UNIQUE (slug)
);

CREATE TABLE IF NOT EXISTS %[4]s (
  id TEXT PRIMARY KEY,
  fingerprint TEXT NOT NULL,
  team_id TEXT NOT NULL REFERENCES %[3]s (id) ON DELETE CASCADE,
  organisation_id TEXT NOT NULL,
  pos_host TEXT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  last_verified_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  CONSTRAINT uq_integrations_fingerprint UNIQUE (fingerprint)
);

CREATE TABLE IF NOT EXISTS %[5]s (
  id TEXT PRIMARY KEY,
  action TEXT NOT NULL,
  route TEXT NULL,
  organisation_id TEXT NULL,
  slug TEXT NULL,
  code TEXT NULL,
  ip TEXT NULL,
  user_agent TEXT NULL,
  meta JSONB NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_audit_log_action_created ON %[5]s (action, created_at);
`, pgx.Identifier{schema}.Sanitize(), orgs, teams, integrations, audit), nil
}

// ApplySchema creates the tokex tables in schema if they do not exist.
func ApplySchema(ctx context.Context, pool *pgxpool.Pool, schema string) error {
	ddl, err := SchemaSQL(schema)
	if err != nil {
		return err
	}
	if _, err := pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("exchange: apply schema: %w", err)
	}
	return nil
}

// AuditTable returns the quoted audit_log table name inside schema.
func AuditTable(schema string) string {
	schema = strings.TrimSpace(schema)
	if schema == "" {
		schema = DefaultSchema
	}
	return pgIdent(schema, "audit_log")
}
