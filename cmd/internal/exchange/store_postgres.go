package exchange

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store over PostgreSQL.
// The pgx pool is owned by the caller; the store never closes it.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// PostgresOption configures the store.
type PostgresOption func(*PostgresStore) error

// WithSchema sets the schema (default DefaultSchema). It must be a legal identifier.
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return fmt.Errorf("exchange: empty schema")
		}
		if !pgIdentIsValid(schema) {
			return fmt.Errorf("exchange: invalid schema identifier")
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore constructs a PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{pool: pool, schema: DefaultSchema}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, fmt.Errorf("exchange: nil pool")
	}
	return st, nil
}

// GetOrganisation implements Store.
func (s *PostgresStore) GetOrganisation(ctx context.Context, id string) (Organisation, error) {
	const op = "exchange.GetOrganisation"

	var org Organisation
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, api_key_sealed, created_at
		FROM `+pgIdent(s.schema, "organisations")+`
		WHERE id = $1
	`, strings.TrimSpace(id)).Scan(&org.ID, &org.Name, &org.SealedAPIKey, &org.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Organisation{}, notFound(op, "organisation")
		}
		return Organisation{}, fmt.Errorf("%s: %w", op, err)
	}
	return org, nil
}

// PutOrganisation implements Store. Existing rows keep created_at.
func (s *PostgresStore) PutOrganisation(ctx context.Context, org Organisation) error {
	const op = "exchange.PutOrganisation"

	if strings.TrimSpace(org.ID) == "" {
		return invalidInput(op, "id is required")
	}
	createdAt := org.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO `+pgIdent(s.schema, "organisations")+` (id, name, api_key_sealed, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, api_key_sealed = EXCLUDED.api_key_sealed
	`, org.ID, org.Name, org.SealedAPIKey, createdAt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// GetTeamBySlug implements Store.
func (s *PostgresStore) GetTeamBySlug(ctx context.Context, slug string) (Team, error) {
	const op = "exchange.GetTeamBySlug"

	var t Team
	err := s.pool.QueryRow(ctx, `
		SELECT id, organisation_id, slug, name, api_key_sealed, created_at
		FROM `+pgIdent(s.schema, "teams")+`
		WHERE slug = $1
	`, slug).Scan(&t.ID, &t.OrganisationID, &t.Slug, &t.Name, &t.SealedAPIKey, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Team{}, notFound(op, "team")
		}
		return Team{}, fmt.Errorf("%s: %w", op, err)
	}
	return t, nil
}

// CreateTeam implements Store.
func (s *PostgresStore) CreateTeam(ctx context.Context, team Team) error {
	const op = "exchange.CreateTeam"

	createdAt := team.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO `+pgIdent(s.schema, "teams")+` (id, organisation_id, slug, name, api_key_sealed, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, team.ID, team.OrganisationID, team.Slug, team.Name, team.SealedAPIKey, createdAt)
	if err != nil {
		if field, ok := pgClassifyUniqueViolation(err); ok {
			return ConflictError{Op: op, Field: field}
		}
		if pgIsForeignKeyViolation(err) {
			return notFound(op, "organisation")
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// BindIntegration implements Store. The row is locked while it is compared and refreshed.
func (s *PostgresStore) BindIntegration(ctx context.Context, in Integration) (Integration, error) {
	const op = "exchange.BindIntegration"

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Integration{}, fmt.Errorf("%s: begin: %w", op, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	table := pgIdent(s.schema, "integrations")

	var cur Integration
	err = tx.QueryRow(ctx, `
		SELECT id, fingerprint, team_id, organisation_id, pos_host, created_at, last_verified_at
		FROM `+table+`
		WHERE fingerprint = $1
		FOR UPDATE
	`, in.Fingerprint).Scan(&cur.ID, &cur.Fingerprint, &cur.TeamID, &cur.OrganisationID, &cur.Host, &cur.CreatedAt, &cur.LastVerifiedAt)

	switch {
	case errors.Is(err, pgx.ErrNoRows):
		_, err = tx.Exec(ctx, `
			INSERT INTO `+table+` (id, fingerprint, team_id, organisation_id, pos_host, created_at, last_verified_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, in.ID, in.Fingerprint, in.TeamID, in.OrganisationID, in.Host, in.CreatedAt, in.LastVerifiedAt)
		if err != nil {
			if _, ok := pgClassifyUniqueViolation(err); ok {
				return Integration{}, ConflictError{Op: op, Field: "integration"}
			}
			return Integration{}, fmt.Errorf("%s: insert: %w", op, err)
		}
		cur = in
	case err != nil:
		return Integration{}, fmt.Errorf("%s: select: %w", op, err)
	case cur.TeamID != in.TeamID:
		return Integration{}, ConflictError{Op: op, Field: "integration"}
	default:
		_, err = tx.Exec(ctx, `
			UPDATE `+table+`
			SET last_verified_at = $2, pos_host = $3
			WHERE id = $1
		`, cur.ID, in.LastVerifiedAt, in.Host)
		if err != nil {
			return Integration{}, fmt.Errorf("%s: update: %w", op, err)
		}
		cur.LastVerifiedAt = in.LastVerifiedAt
		cur.Host = in.Host
	}

	if err := tx.Commit(ctx); err != nil {
		return Integration{}, fmt.Errorf("%s: commit: %w", op, err)
	}
	return cur, nil
}

func pgIsForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "23503" // foreign_key_violation
}

func pgClassifyUniqueViolation(err error) (field string, ok bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return "", false
	}
	if pgErr.Code != "23505" { // unique_violation
		return "", false
	}

	switch c := strings.ToLower(strings.TrimSpace(pgErr.ConstraintName)); {
	case c == "uq_teams_slug":
		return "slug", true
	case c == "uq_integrations_fingerprint":
		return "integration", true
	default:
		return "unique", true
	}
}
