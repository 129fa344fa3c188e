package db

import (
	"context"
	"log/slog"

	"github.com/geocoder89/absencehub/internal/config"
)

// AdminSeeder creates the admin account when its email is free.
type AdminSeeder interface {
	EnsureAdmin(ctx context.Context, name, email, password string) (bool, error)
}

func EnsureAdminUser(ctx context.Context, seeder AdminSeeder, cfg config.Config) error {
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		return nil
	}

	created, err := seeder.EnsureAdmin(ctx, cfg.AdminName, cfg.AdminEmail, cfg.AdminPassword)
	if err != nil {
		return err
	}

	if created {
		slog.InfoContext(ctx, "admin user seeded", "email", cfg.AdminEmail)
	}
	return nil
}
