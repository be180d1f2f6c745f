package auth

import (
	"context"
	"fmt"
	"log"

	"github.com/lex1olnk/mang2/internal/engine"
	"github.com/lex1olnk/mang2/internal/metadata"
)

// seeder acts for SeedAdmin; it never reaches the request path.
var seeder = &metadata.Actor{Role: metadata.RoleAdmin}

// SeedAdmin creates an admin user when the user table is empty. It is a no-op
// when email or password is blank, or when any user exists.
func SeedAdmin(ctx context.Context, e *engine.Engine, userModel, email, password string) error {
	if email == "" || password == "" {
		return nil
	}
	n, err := e.Count(ctx, userModel, nil, engine.Options{Access: engine.PublicRead})
	if err != nil {
		return fmt.Errorf("count users: %w", err)
	}
	if n > 0 {
		return nil
	}

	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	if _, err := e.Create(ctx, userModel, map[string]any{
		"email":       email,
		PasswordField: hash,
		RoleField:     metadata.RoleAdmin,
	}, seeder); err != nil {
		return fmt.Errorf("create admin user: %w", err)
	}

	log.Printf("WARN: Seeded admin user %s, change the password immediately", email)
	return nil
}
