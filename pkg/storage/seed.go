package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/taskhive/taskhive/pkg/auth"
	"github.com/taskhive/taskhive/pkg/observability"
	"github.com/taskhive/taskhive/pkg/users"
)

// SeedAdmin creates the bootstrap admin account on first startup. An empty
// password disables seeding entirely; an existing admin is left untouched.
func SeedAdmin(ctx context.Context, store users.Store, password string, logger *observability.Logger) error {
	if password == "" {
		return nil
	}

	exists, err := store.ExistsByUsername(ctx, "admin")
	if err != nil {
		return fmt.Errorf("failed to check for admin user: %w", err)
	}
	if exists {
		return nil
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}

	if _, err := store.Create(ctx, "admin", hash, users.RoleAdmin); err != nil {
		// another instance may have seeded concurrently
		if errors.Is(err, users.ErrUsernameTaken) {
			return nil
		}
		return fmt.Errorf("failed to seed admin user: %w", err)
	}

	logger.Info("Seeded bootstrap admin user")
	return nil
}
