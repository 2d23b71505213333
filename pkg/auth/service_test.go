package auth

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/taskhive/taskhive/pkg/observability"
	"github.com/taskhive/taskhive/pkg/users"
)

// memStore is an in-memory users.Store for tests
type memStore struct {
	mu     sync.Mutex
	byName map[string]*users.User
	nextID int64
}

func newMemStore() *memStore {
	return &memStore{byName: make(map[string]*users.User), nextID: 1}
}

func (m *memStore) FindByUsername(_ context.Context, username string) (*users.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byName[username]
	if !ok {
		return nil, users.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memStore) ExistsByUsername(_ context.Context, username string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.byName[username]
	return ok, nil
}

func (m *memStore) Create(_ context.Context, username, passwordHash string, role users.Role) (*users.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byName[username]; ok {
		return nil, users.ErrUsernameTaken
	}
	u := &users.User{
		ID:           m.nextID,
		Username:     username,
		PasswordHash: passwordHash,
		Role:         role,
		CreatedAt:    time.Now(),
	}
	m.nextID++
	m.byName[username] = u
	cp := *u
	return &cp, nil
}

func newTestService(store users.Store) *Service {
	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	return NewService(store, newTestIssuer(), logger, nil)
}

func TestRegisterThenLogin(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	ctx := context.Background()

	pair, err := svc.Register(ctx, "alice", "secret123")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatal("expected a full token pair from register")
	}
	if pair.Role != "USER" {
		t.Errorf("expected default role USER, got %q", pair.Role)
	}

	u, err := store.FindByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("FindByUsername: %v", err)
	}
	if u.PasswordHash == "secret123" {
		t.Error("password stored in plaintext")
	}

	pair, err = svc.Login(ctx, "alice", "secret123")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if pair.Username != "alice" {
		t.Errorf("unexpected username %q", pair.Username)
	}
}

func TestLoginFailuresIndistinguishable(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "alice", "secret123"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	_, unknownErr := svc.Login(ctx, "ghost", "secret123")
	_, wrongErr := svc.Login(ctx, "alice", "wrong")

	if !errors.Is(unknownErr, ErrBadCredentials) {
		t.Errorf("unknown user: expected ErrBadCredentials, got %v", unknownErr)
	}
	if !errors.Is(wrongErr, ErrBadCredentials) {
		t.Errorf("wrong password: expected ErrBadCredentials, got %v", wrongErr)
	}
}

func TestRegisterDuplicate(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "alice", "secret123"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := svc.Register(ctx, "alice", "other"); !errors.Is(err, users.ErrUsernameTaken) {
		t.Errorf("expected ErrUsernameTaken, got %v", err)
	}
}

func TestRefreshIssuesNewPair(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	ctx := context.Background()

	first, err := svc.Register(ctx, "alice", "secret123")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	pair, err := svc.Refresh(ctx, first.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatal("expected a full token pair from refresh")
	}

	claims, err := svc.issuer.Verify(pair.AccessToken)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Username != "alice" || claims.Kind != TokenKindAccess {
		t.Errorf("unexpected claims: %+v", claims)
	}

	// the prior refresh token is not revoked
	if _, err := svc.Refresh(ctx, first.RefreshToken); err != nil {
		t.Errorf("expected earlier refresh token to stay valid, got %v", err)
	}
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	ctx := context.Background()

	pair, err := svc.Register(ctx, "alice", "secret123")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	if _, err := svc.Refresh(ctx, pair.AccessToken); !errors.Is(err, ErrBadRefreshToken) {
		t.Errorf("expected ErrBadRefreshToken for access token, got %v", err)
	}
	if _, err := svc.Refresh(ctx, "garbage"); !errors.Is(err, ErrBadRefreshToken) {
		t.Errorf("expected ErrBadRefreshToken for garbage, got %v", err)
	}
}

func TestRefreshForDeletedUser(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	ctx := context.Background()

	pair, err := svc.Register(ctx, "alice", "secret123")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	store.mu.Lock()
	delete(store.byName, "alice")
	store.mu.Unlock()

	if _, err := svc.Refresh(ctx, pair.RefreshToken); !errors.Is(err, ErrBadRefreshToken) {
		t.Errorf("expected ErrBadRefreshToken after user removal, got %v", err)
	}
}

func TestSentinelAccountCannotLogin(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	ctx := context.Background()

	if _, err := store.Create(ctx, "github_octocat", SentinelHash, users.RoleUser); err != nil {
		t.Fatalf("Create: %v", err)
	}

	for _, password := range []string{"", "!", "password"} {
		if _, err := svc.Login(ctx, "github_octocat", password); !errors.Is(err, ErrBadCredentials) {
			t.Errorf("expected ErrBadCredentials for %q, got %v", password, err)
		}
	}
}
