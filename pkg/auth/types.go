package auth

import (
	"context"

	"github.com/taskhive/taskhive/pkg/contextkeys"
	"github.com/taskhive/taskhive/pkg/users"
)

// AuthContext is the per-request caller identity. A nil *AuthContext in a
// request context means the caller is anonymous.
type AuthContext struct {
	UserID      int64
	Username    string
	Role        users.Role
	Authorities []string
}

// NewAuthContext builds a caller identity from a user record. Authorities
// follow the "ROLE_<role>" convention.
func NewAuthContext(u *users.User) *AuthContext {
	return &AuthContext{
		UserID:      u.ID,
		Username:    u.Username,
		Role:        u.Role,
		Authorities: []string{"ROLE_" + string(u.Role)},
	}
}

// HasAuthority reports whether the caller holds the given authority
func (a *AuthContext) HasAuthority(authority string) bool {
	if a == nil {
		return false
	}
	for _, got := range a.Authorities {
		if got == authority {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the caller holds the admin role
func (a *AuthContext) IsAdmin() bool {
	return a.HasAuthority("ROLE_ADMIN")
}

// FromContext returns the caller identity stored by the request gate, or
// nil when the request is anonymous.
func FromContext(ctx context.Context) *AuthContext {
	if a, ok := ctx.Value(contextkeys.AuthKey).(*AuthContext); ok {
		return a
	}
	return nil
}

// TokenPair is the access/refresh token pair returned by login, register,
// and refresh.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	Username     string `json:"username"`
	Role         string `json:"role"`
}
