package db_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/bigsamfit/bigsam/internal/db"
	"github.com/bigsamfit/bigsam/internal/models"
	"github.com/bigsamfit/bigsam/internal/utils"
)

func TestPostgresUserCRUD(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set; skipping postgres integration test")
	}

	cfg := utils.PostgresConfig{
		DSN:            dsn,
		ConnectTimeout: 5 * time.Second,
	}

	store, err := db.NewPostgres(context.Background(), cfg)
	if err != nil {
		t.Fatalf("failed to connect to postgres: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.EnsureSchema(ctx); err != nil {
		t.Fatalf("ensure schema failed: %v", err)
	}

	now := time.Now().UTC()
	email := uuid.NewString() + "@example.com"
	user := models.User{
		ID:           uuid.NewString(),
		Username:     "tester",
		Email:        email,
		PasswordHash: "not-a-real-hash",
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := store.InsertUser(ctx, user); err != nil {
		t.Fatalf("insert user failed: %v", err)
	}

	duplicate := user
	duplicate.ID = uuid.NewString()
	if err := store.InsertUser(ctx, duplicate); !errors.Is(err, db.ErrDuplicateEmail) {
		t.Fatalf("expected duplicate email error, got %v", err)
	}

	byEmail, err := store.FindUserByEmail(ctx, email)
	if err != nil {
		t.Fatalf("find by email failed: %v", err)
	}
	if byEmail.ID != user.ID {
		t.Fatalf("expected user %s, got %s", user.ID, byEmail.ID)
	}

	byID, err := store.FindUserByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("find by id failed: %v", err)
	}
	if byID.Email != email {
		t.Fatalf("expected email %s, got %s", email, byID.Email)
	}

	if _, err := store.FindUserByID(ctx, uuid.NewString()); !errors.Is(err, db.ErrUserNotFound) {
		t.Fatalf("expected user not found, got %v", err)
	}
}
