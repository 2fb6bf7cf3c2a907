package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"

	"ledgerpay/internal/config"
	"ledgerpay/internal/models"
	"ledgerpay/internal/repositories"
	"ledgerpay/internal/validation"

	"golang.org/x/crypto/bcrypt"
)

func main() {
	config.LoadEnv()
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	adminEmail := strings.ToLower(strings.TrimSpace(config.GetEnv("ADMIN_EMAIL", "")))
	adminPassword := config.GetEnv("ADMIN_PASSWORD", "")
	if adminEmail == "" || adminPassword == "" {
		logger.Error("ADMIN_EMAIL and ADMIN_PASSWORD must be set in environment")
		os.Exit(1)
	}

	v := validation.New()
	v.Email("email", adminEmail)
	v.Password("password", adminPassword)
	if !v.Valid() {
		logger.Error("invalid admin credentials", "errors", v.Errors)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	db, err := repositories.InitDB(cfg)
	if err != nil {
		logger.Error("failed to initialise database", "error", err)
		os.Exit(1)
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}
	store := repositories.NewStore(db)
	ctx := context.Background()

	if _, err := store.GetUserByEmail(ctx, adminEmail); err == nil {
		logger.Info("admin user already exists", "email", adminEmail)
		return
	} else if !errors.Is(err, repositories.ErrNotFound) {
		logger.Error("failed to look up admin", "error", err)
		os.Exit(1)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.DefaultCost)
	if err != nil {
		logger.Error("failed to hash password", "error", err)
		os.Exit(1)
	}

	admin := &models.User{
		FirstName: config.GetEnv("ADMIN_FIRST_NAME", "Platform"),
		LastName:  config.GetEnv("ADMIN_LAST_NAME", "Admin"),
		Email:     adminEmail,
		Password:  string(hashedPassword),
		Role:      models.RoleAdmin,
	}
	if err := store.CreateUser(ctx, admin); err != nil {
		logger.Error("failed to create admin user", "error", err)
		os.Exit(1)
	}
	logger.Info("admin account created", "id", admin.ID, "email", adminEmail)
}
