// Package users defines the identity directory: durable user records keyed
// by a unique username, with the credential hash and role needed by the
// authentication layer.
package users

import (
	"context"
	"errors"
	"time"
)

// Role is the coarse-grained role stored on a user record
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// Valid reports whether the role is a known value
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// User is the durable identity record
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// ErrNotFound is returned when no user exists for a username
var ErrNotFound = errors.New("user not found")

// ErrUsernameTaken is returned when a create collides with an existing
// username. The database uniqueness constraint is the source of truth, so
// two concurrent creates for the same name yield exactly one success.
var ErrUsernameTaken = errors.New("username taken")

// Store is the identity directory contract consumed by the auth layer
type Store interface {
	FindByUsername(ctx context.Context, username string) (*User, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	Create(ctx context.Context, username, passwordHash string, role Role) (*User, error)
}
