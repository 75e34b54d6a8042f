package exchange

import (
	"context"
	"time"
)

// Organisation owns teams. SealedAPIKey is optional: when set, a team for a new slug can be
// provisioned on first exchange using the organisation's key.
type Organisation struct {
	ID           string
	Name         string
	SealedAPIKey []byte
	CreatedAt    time.Time
}

// Team is addressed by a globally unique slug and carries the sealed API key handed out
// on exchange.
type Team struct {
	ID             string
	OrganisationID string
	Slug           string
	Name           string
	SealedAPIKey   []byte
	CreatedAt      time.Time
}

// Integration binds one POS identity (by fingerprint) to one team.
type Integration struct {
	ID             string
	Fingerprint    string
	TeamID         string
	OrganisationID string
	Host           string
	CreatedAt      time.Time
	LastVerifiedAt time.Time
}

// Store is the exchange persistence contract.
//
// Lookups return ErrNotFound kinds. CreateTeam returns a ConflictError on a taken slug.
// BindIntegration inserts by fingerprint or refreshes LastVerifiedAt of an existing
// binding to the same team; a binding to another team is a ConflictError.
type Store interface {
	GetOrganisation(ctx context.Context, id string) (Organisation, error)
	PutOrganisation(ctx context.Context, org Organisation) error
	GetTeamBySlug(ctx context.Context, slug string) (Team, error)
	CreateTeam(ctx context.Context, team Team) error
	BindIntegration(ctx context.Context, in Integration) (Integration, error)
}
