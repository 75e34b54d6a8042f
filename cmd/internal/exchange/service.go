package exchange

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"tokex/cmd/internal/ids"
	"tokex/cmd/internal/pos"
)

// Exchanger resolves a platform API key for verified POS credentials.
type Exchanger interface {
	Exchange(ctx context.Context, req Request) Result
}

// Service is the Store-backed Exchanger.
type Service struct {
	store    Store
	verifier pos.Verifier
	sealer   *Sealer
	log      *slog.Logger
	now      func() time.Time
}

// ServiceOption configures optional Service dependencies.
type ServiceOption func(*Service)

// WithLogger sets the service logger.
func WithLogger(log *slog.Logger) ServiceOption {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService constructs a Service.
func NewService(store Store, verifier pos.Verifier, sealer *Sealer, opts ...ServiceOption) *Service {
	s := &Service{
		store:    store,
		verifier: verifier,
		sealer:   sealer,
		log:      slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(s)
	}
	return s
}

// Exchange implements Exchanger.
func (s *Service) Exchange(ctx context.Context, req Request) Result {
	slug := strings.TrimSpace(req.Slug)
	orgID := strings.TrimSpace(req.OrganisationID)
	if req.Credentials == nil || slug == "" || orgID == "" {
		return fail(CodeInvalidRequest, "credentials, slug and organisationId are required")
	}

	creds, err := pos.ParseCredentials(req.Credentials)
	if err != nil {
		return fail(CodeInvalidCredentials, err.Error())
	}

	if v := s.verifier.Verify(ctx, creds); !v.Valid {
		return fail(CodeInvalidCredentials, v.Reason)
	}

	if !ValidSlug(slug) {
		return fail(CodeInvalidSlug, "slug must be 3-50 lowercase letters, digits or hyphens")
	}

	org, err := s.store.GetOrganisation(ctx, orgID)
	if err != nil {
		if IsNotFound(err) {
			return fail(CodeOrganisationNotFound, "organisation not found")
		}
		return s.internal("exchange.organisation.lookup.fail", err)
	}

	team, res, done := s.resolveTeam(ctx, org, slug)
	if done {
		return res
	}

	apiKey, err := s.sealer.Open(team.SealedAPIKey, teamAAD(team.ID))
	if err != nil {
		return s.internal("exchange.team.unseal.fail", err)
	}

	now := s.now().UTC()
	integrationID, err := ids.NewULID(now)
	if err != nil {
		return s.internal("exchange.integration.id.fail", err)
	}
	_, err = s.store.BindIntegration(ctx, Integration{
		ID:             integrationID,
		Fingerprint:    s.sealer.Fingerprint(creds.Host, creds.AccessKey),
		TeamID:         team.ID,
		OrganisationID: org.ID,
		Host:           creds.Host,
		CreatedAt:      now,
		LastVerifiedAt: now,
	})
	if err != nil {
		if IsConflict(err) {
			return fail(CodeTeamURLTaken, "these credentials are already linked to another team")
		}
		return s.internal("exchange.integration.bind.fail", err)
	}

	return ok(apiKey)
}

// resolveTeam finds the team for slug within org, provisioning it from the organisation
// key when the slug is free. done is true when res is terminal.
func (s *Service) resolveTeam(ctx context.Context, org Organisation, slug string) (team Team, res Result, done bool) {
	team, err := s.store.GetTeamBySlug(ctx, slug)
	switch {
	case err == nil:
		if team.OrganisationID != org.ID {
			return Team{}, fail(CodeTeamURLTaken, "team URL is already taken"), true
		}
		return team, Result{}, false
	case !IsNotFound(err):
		return Team{}, s.internal("exchange.team.lookup.fail", err), true
	}

	if len(org.SealedAPIKey) == 0 {
		return Team{}, fail(CodeInvalidSlug, "no team exists for this slug"), true
	}

	team, err = s.provisionTeam(ctx, org, slug)
	if err == nil {
		return team, Result{}, false
	}
	if !IsConflict(err) {
		return Team{}, s.internal("exchange.team.provision.fail", err), true
	}

	// Lost a race for the slug: the winner decides.
	team, err = s.store.GetTeamBySlug(ctx, slug)
	if err != nil {
		return Team{}, s.internal("exchange.team.lookup.fail", err), true
	}
	if team.OrganisationID != org.ID {
		return Team{}, fail(CodeTeamURLTaken, "team URL is already taken"), true
	}
	return team, Result{}, false
}

func (s *Service) provisionTeam(ctx context.Context, org Organisation, slug string) (Team, error) {
	apiKey, err := s.sealer.Open(org.SealedAPIKey, orgAAD(org.ID))
	if err != nil {
		return Team{}, err
	}

	now := s.now().UTC()
	teamID, err := ids.NewULID(now)
	if err != nil {
		return Team{}, err
	}
	team := Team{
		ID:             teamID,
		OrganisationID: org.ID,
		Slug:           slug,
		Name:           slug,
		CreatedAt:      now,
	}
	if team.SealedAPIKey, err = s.sealer.Seal(apiKey, teamAAD(team.ID)); err != nil {
		return Team{}, err
	}
	if err := s.store.CreateTeam(ctx, team); err != nil {
		return Team{}, err
	}

	s.log.Info("exchange.team.provisioned", "organisation_id", org.ID, "slug", slug, "team_id", team.ID)
	return team, nil
}

func (s *Service) internal(event string, err error) Result {
	s.log.Error(event, "err", err)
	return fail(CodeInternalError, "credential exchange failed")
}

// ProvisionOrganisation creates or updates an organisation. apiKey may be empty.
func (s *Service) ProvisionOrganisation(ctx context.Context, id, name, apiKey string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return invalidInput("exchange.ProvisionOrganisation", "id is required")
	}
	org := Organisation{ID: id, Name: strings.TrimSpace(name), CreatedAt: s.now().UTC()}
	if org.Name == "" {
		org.Name = id
	}
	if apiKey = strings.TrimSpace(apiKey); apiKey != "" {
		sealed, err := s.sealer.Seal(apiKey, orgAAD(id))
		if err != nil {
			return err
		}
		org.SealedAPIKey = sealed
	}
	return s.store.PutOrganisation(ctx, org)
}

// ProvisionTeam creates a team under an existing organisation. An empty slug is derived
// from name.
func (s *Service) ProvisionTeam(ctx context.Context, orgID, slug, name, apiKey string) (Team, error) {
	const op = "exchange.ProvisionTeam"

	name = strings.TrimSpace(name)
	slug = strings.TrimSpace(slug)
	if slug == "" {
		slug = MakeSlug(name)
	}
	if !ValidSlug(slug) {
		return Team{}, invalidInput(op, "invalid slug")
	}
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return Team{}, invalidInput(op, "api key is required")
	}
	if name == "" {
		name = slug
	}

	org, err := s.store.GetOrganisation(ctx, strings.TrimSpace(orgID))
	if err != nil {
		return Team{}, err
	}

	now := s.now().UTC()
	teamID, err := ids.NewULID(now)
	if err != nil {
		return Team{}, err
	}
	team := Team{
		ID:             teamID,
		OrganisationID: org.ID,
		Slug:           slug,
		Name:           name,
		CreatedAt:      now,
	}
	if team.SealedAPIKey, err = s.sealer.Seal(apiKey, teamAAD(team.ID)); err != nil {
		return Team{}, err
	}
	if err := s.store.CreateTeam(ctx, team); err != nil {
		return Team{}, err
	}
	return team, nil
}

var _ Exchanger = (*Service)(nil)
