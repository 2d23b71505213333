package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/taskhive/taskhive/pkg/observability"
	"github.com/taskhive/taskhive/pkg/users"
)

// ErrBadCredentials is returned for any login failure. Unknown username and
// wrong password are deliberately indistinguishable to callers.
var ErrBadCredentials = errors.New("bad credentials")

// ErrBadRefreshToken is returned when a refresh is attempted with a token
// that is missing, invalid, expired, or not a refresh token.
var ErrBadRefreshToken = errors.New("invalid refresh token")

// Service implements the credential flows: login, register, and refresh
type Service struct {
	store   users.Store
	issuer  *TokenIssuer
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewService creates the auth service
func NewService(store users.Store, issuer *TokenIssuer, logger *observability.Logger, metrics *observability.Metrics) *Service {
	return &Service{
		store:   store,
		issuer:  issuer,
		logger:  logger,
		metrics: metrics,
	}
}

// Login verifies the password for the username and mints a token pair
func (s *Service) Login(ctx context.Context, username, password string) (*TokenPair, error) {
	u, err := s.store.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			s.observeLogin("failure")
			return nil, ErrBadCredentials
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	if !CheckPassword(u.PasswordHash, password) {
		s.observeLogin("failure")
		return nil, ErrBadCredentials
	}

	pair, err := s.mintPair(u)
	if err != nil {
		return nil, err
	}
	s.observeLogin("success")
	s.logger.WithField("username", u.Username).Info("Login succeeded")
	return pair, nil
}

// Register creates a user with the default role and mints a token pair, so
// a fresh registration is immediately logged in.
func (s *Service) Register(ctx context.Context, username, password string) (*TokenPair, error) {
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	u, err := s.store.Create(ctx, username, hash, users.RoleUser)
	if err != nil {
		return nil, err
	}

	pair, err := s.mintPair(u)
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.RegistrationsTotal.Inc()
	}
	s.logger.WithField("username", u.Username).Info("User registered")
	return pair, nil
}

// Refresh exchanges a valid refresh token for a brand new token pair. An
// access token is never accepted here.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.issuer.Verify(refreshToken)
	if err != nil {
		s.observeRefresh("failure")
		return nil, ErrBadRefreshToken
	}
	if claims.Kind != TokenKindRefresh {
		s.observeRefresh("failure")
		return nil, ErrBadRefreshToken
	}

	u, err := s.store.FindByUsername(ctx, claims.Username)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			s.observeRefresh("failure")
			return nil, ErrBadRefreshToken
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	pair, err := s.mintPair(u)
	if err != nil {
		return nil, err
	}
	s.observeRefresh("success")
	return pair, nil
}

// CurrentUser resolves the caller identity behind a verified access token
func (s *Service) CurrentUser(ctx context.Context, username string) (*users.User, error) {
	return s.store.FindByUsername(ctx, username)
}

func (s *Service) mintPair(u *users.User) (*TokenPair, error) {
	access, err := s.issuer.IssueAccess(u.Username)
	if err != nil {
		return nil, err
	}
	refresh, err := s.issuer.IssueRefresh(u.Username)
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		Username:     u.Username,
		Role:         string(u.Role),
	}, nil
}

func (s *Service) observeLogin(outcome string) {
	if s.metrics != nil {
		s.metrics.LoginsTotal.WithLabelValues(outcome).Inc()
	}
}

func (s *Service) observeRefresh(outcome string) {
	if s.metrics != nil {
		s.metrics.TokenRefreshTotal.WithLabelValues(outcome).Inc()
	}
}
