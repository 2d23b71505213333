// Package sso implements federated login: external providers authenticate
// the user, and a local identity is provisioned and issued the same token
// pair a password login would get.
package sso

import (
	"context"
	"errors"
)

// Identity is what a provider learns about the external user. ExternalID is
// the provider's stable identifier and becomes part of the local username.
type Identity struct {
	Provider   string
	ExternalID string
	Email      string
	Name       string
}

// ErrNoExternalID is returned when the provider response carries no usable
// stable identifier.
var ErrNoExternalID = errors.New("provider response missing external id")

// Provider is a federated login backend
type Provider interface {
	// Name returns the provider slug used in routes and local usernames
	Name() string

	// AuthCodeURL builds the provider authorization URL for the state
	AuthCodeURL(state string) string

	// Exchange trades the authorization code for the external identity
	Exchange(ctx context.Context, code string) (*Identity, error)
}
