package appbootstrap

import (
	"context"

	"missionctl/config"
	"missionctl/core/auth"
	"missionctl/core/store"
	"missionctl/core/utils"
)

const (
	defaultAdminUsername = "admin"
	defaultAdminPassword = "changeme123"
)

// EnsureDefaultAdmin seeds an admin account on an empty user table so a
// fresh install can be logged into.
func EnsureDefaultAdmin(ctx context.Context, users store.UsersStore, cfg *config.AppConfig, logger *utils.Logger) error {
	existing, err := users.GetByUsername(ctx, defaultAdminUsername)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}
	all, err := users.List(ctx)
	if err != nil {
		return err
	}
	if len(all) > 0 {
		return nil
	}
	hash, salt, err := auth.HashPassword(defaultAdminPassword, cfg.Pepper)
	if err != nil {
		return err
	}
	u := &store.User{
		Username:     defaultAdminUsername,
		Email:        "admin@localhost",
		FullName:     "Administrator",
		PasswordHash: hash,
		Salt:         salt,
		Active:       true,
	}
	if _, err := users.Create(ctx, u); err != nil {
		return err
	}
	logger.Printf("seeded default admin user %q, change the password immediately", defaultAdminUsername)
	return nil
}
