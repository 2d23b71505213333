package sso

import (
	"context"
	"errors"
	"fmt"

	"github.com/taskhive/taskhive/pkg/auth"
	"github.com/taskhive/taskhive/pkg/observability"
	"github.com/taskhive/taskhive/pkg/users"
)

// Provisioner maps external identities onto local user records. The local
// username is "<provider>_<externalID>", and provisioned accounts carry the
// sentinel password hash so they can never log in with a password.
type Provisioner struct {
	store  users.Store
	logger *observability.Logger
}

// NewProvisioner creates an identity provisioner
func NewProvisioner(store users.Store, logger *observability.Logger) *Provisioner {
	return &Provisioner{store: store, logger: logger}
}

// LocalUsername derives the local username for an external identity
func LocalUsername(identity *Identity) string {
	return fmt.Sprintf("%s_%s", identity.Provider, identity.ExternalID)
}

// FindOrCreate returns the local user for the identity, creating it on
// first login. A concurrent first login is resolved by the uniqueness
// constraint: the loser of the race re-reads the winner's record.
func (p *Provisioner) FindOrCreate(ctx context.Context, identity *Identity) (*users.User, error) {
	if identity.ExternalID == "" {
		return nil, ErrNoExternalID
	}
	username := LocalUsername(identity)

	u, err := p.store.FindByUsername(ctx, username)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, users.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	u, err = p.store.Create(ctx, username, auth.SentinelHash, users.RoleUser)
	if err != nil {
		if errors.Is(err, users.ErrUsernameTaken) {
			return p.store.FindByUsername(ctx, username)
		}
		return nil, fmt.Errorf("failed to provision user: %w", err)
	}

	p.logger.WithField("username", username).WithField("provider", identity.Provider).Info("Provisioned federated user")
	return u, nil
}
