package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token kinds carried in the "type" claim.
const (
	TokenKindAccess  = "access"
	TokenKindRefresh = "refresh"
)

var (
	// ErrTokenExpired is returned for structurally valid tokens past their
	// expiry instant.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid is returned for malformed, tampered, or wrongly
	// signed tokens.
	ErrTokenInvalid = errors.New("token invalid")
)

// TokenClaims is the decoded payload of a verified token
type TokenClaims struct {
	Username string
	Kind     string
	IssuedAt time.Time
	Expiry   time.Time
}

// TokenIssuer mints and verifies HMAC-SHA256 signed bearer tokens. The
// signing key is fixed for the process lifetime.
type TokenIssuer struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration

	// now is swappable for expiry tests
	now func() time.Time
}

// NewTokenIssuer creates a token issuer with the given signing secret and
// lifetimes for the two token kinds.
func NewTokenIssuer(secret []byte, accessTTL, refreshTTL time.Duration) *TokenIssuer {
	return &TokenIssuer{
		secret:     secret,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

// IssueAccess mints a short-lived access token for the username
func (t *TokenIssuer) IssueAccess(username string) (string, error) {
	return t.issue(username, TokenKindAccess, t.accessTTL)
}

// IssueRefresh mints a long-lived refresh token for the username
func (t *TokenIssuer) IssueRefresh(username string) (string, error) {
	return t.issue(username, TokenKindRefresh, t.refreshTTL)
}

func (t *TokenIssuer) issue(username, kind string, ttl time.Duration) (string, error) {
	now := t.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  username,
		"type": kind,
		"iat":  jwt.NewNumericDate(now),
		"exp":  jwt.NewNumericDate(now.Add(ttl)),
	})

	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify checks the token's signature and expiry and returns its claims.
// It does not care which kind the token is; callers that need a specific
// kind check TokenClaims.Kind.
func (t *TokenIssuer) Verify(tokenString string) (*TokenClaims, error) {
	token, err := jwt.Parse(tokenString, func(tok *jwt.Token) (interface{}, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", tok.Header["alg"])
		}
		return t.secret, nil
	}, jwt.WithTimeFunc(t.now), jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, ErrTokenInvalid
	}
	kind, _ := claims["type"].(string)

	out := &TokenClaims{Username: sub, Kind: kind}
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		out.IssuedAt = iat.Time
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		out.Expiry = exp.Time
	}
	return out, nil
}
