package main

import (
	"context"
	"errors"
	"log/slog"

	"invledger/models"
	"invledger/pkg/config"
	"invledger/pkg/store"

	"golang.org/x/crypto/bcrypt"
)

// initStore connects to Postgres when DB_DSN is set, migrates if allowed and
// seeds the admin account. A nil store means ledgers are not persisted.
func initStore(ctx context.Context, cfg *config.Config) (*store.Store, error) {
	if !cfg.Persistence() {
		slog.Info("DB_DSN not set, ledger history and accounts are disabled")
		return nil, nil
	}
	st, err := store.Open(cfg.DSN)
	if err != nil {
		return nil, err
	}
	if cfg.AutoMigrate {
		// Permission errors are logged and ignored, the tables may already exist.
		if err := st.Migrate(); err != nil {
			slog.Warn("migration incomplete", "err", err)
		}
	}
	seedAdmin(ctx, st, cfg)
	return st, nil
}

// seedAdmin creates the configured administrator if it does not exist yet.
func seedAdmin(ctx context.Context, st *store.Store, cfg *config.Config) {
	if cfg.AdminUsername == "" {
		return
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(cfg.AdminPassword), bcrypt.DefaultCost)
	if err != nil {
		slog.Error("hashing admin password failed", "err", err)
		return
	}
	_, err = st.CreateUser(ctx, cfg.AdminUsername, hashed, models.RoleAdministrator)
	switch {
	case errors.Is(err, store.ErrUserExists):
		slog.Debug("admin already present", "username", cfg.AdminUsername)
	case err != nil:
		slog.Error("seeding admin failed", "username", cfg.AdminUsername, "err", err)
	default:
		slog.Info("seeded admin user", "username", cfg.AdminUsername)
	}
}
