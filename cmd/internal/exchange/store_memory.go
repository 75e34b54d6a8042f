package exchange

import (
	"context"
	"strings"
	"sync"
)

// MemoryStore is an in-process Store used when no database is configured.
type MemoryStore struct {
	mu           sync.RWMutex
	orgs         map[string]Organisation
	teamsBySlug  map[string]Team
	integrations map[string]Integration
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		orgs:         make(map[string]Organisation),
		teamsBySlug:  make(map[string]Team),
		integrations: make(map[string]Integration),
	}
}

// GetOrganisation implements Store.
func (s *MemoryStore) GetOrganisation(_ context.Context, id string) (Organisation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	org, ok := s.orgs[strings.TrimSpace(id)]
	if !ok {
		return Organisation{}, notFound("exchange.GetOrganisation", "organisation")
	}
	return org, nil
}

// PutOrganisation implements Store.
func (s *MemoryStore) PutOrganisation(_ context.Context, org Organisation) error {
	if strings.TrimSpace(org.ID) == "" {
		return invalidInput("exchange.PutOrganisation", "id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.orgs[org.ID]; ok && !prev.CreatedAt.IsZero() {
		org.CreatedAt = prev.CreatedAt
	}
	s.orgs[org.ID] = org
	return nil
}

// GetTeamBySlug implements Store.
func (s *MemoryStore) GetTeamBySlug(_ context.Context, slug string) (Team, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	team, ok := s.teamsBySlug[slug]
	if !ok {
		return Team{}, notFound("exchange.GetTeamBySlug", "team")
	}
	return team, nil
}

// CreateTeam implements Store.
func (s *MemoryStore) CreateTeam(_ context.Context, team Team) error {
	const op = "exchange.CreateTeam"

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orgs[team.OrganisationID]; !ok {
		return notFound(op, "organisation")
	}
	if _, ok := s.teamsBySlug[team.Slug]; ok {
		return ConflictError{Op: op, Field: "slug"}
	}
	s.teamsBySlug[team.Slug] = team
	return nil
}

// BindIntegration implements Store.
func (s *MemoryStore) BindIntegration(_ context.Context, in Integration) (Integration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cur, ok := s.integrations[in.Fingerprint]; ok {
		if cur.TeamID != in.TeamID {
			return Integration{}, ConflictError{Op: "exchange.BindIntegration", Field: "integration"}
		}
		cur.LastVerifiedAt = in.LastVerifiedAt
		cur.Host = in.Host
		s.integrations[in.Fingerprint] = cur
		return cur, nil
	}
	s.integrations[in.Fingerprint] = in
	return in, nil
}
