package db_test

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/bigsamfit/bigsam/internal/db"
	"github.com/bigsamfit/bigsam/internal/models"
	"github.com/bigsamfit/bigsam/internal/utils"
)

func TestMongoConversationAppendAndFetch(t *testing.T) {
	uri := os.Getenv("TEST_MONGO_URI")
	if uri == "" {
		t.Skip("TEST_MONGO_URI not set; skipping mongo integration test")
	}

	database := "bigsam_test_" + strings.ReplaceAll(uuid.NewString(), "-", "")

	cfg := utils.MongoConfig{
		URI:            uri,
		Database:       database,
		ConnectTimeout: 5 * time.Second,
	}

	store, err := db.NewMongo(context.Background(), cfg)
	if err != nil {
		t.Fatalf("failed to connect to mongo: %v", err)
	}
	defer func() {
		ctx := context.Background()
		store.Database.Drop(ctx)
		store.Close(ctx)
	}()

	if err := store.EnsureCollections(context.Background()); err != nil {
		t.Fatalf("ensure collections failed: %v", err)
	}

	ctx := context.Background()
	userID := uuid.NewString()

	// A fresh user has no document; GetOrCreate must not create one.
	conv, err := store.GetOrCreate(ctx, userID)
	if err != nil {
		t.Fatalf("get or create failed: %v", err)
	}
	if len(conv.Messages) != 0 {
		t.Fatalf("expected empty conversation, got %d messages", len(conv.Messages))
	}

	history, err := store.FetchHistory(ctx, userID)
	if err != nil {
		t.Fatalf("fetch history failed: %v", err)
	}
	if len(history) != 0 {
		t.Fatalf("expected no stored history before first append, got %d", len(history))
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	userMsg := models.Message{Sender: models.SenderUser, Text: "hola", Timestamp: now}
	botMsg := models.Message{Sender: models.SenderBot, Text: "¡qué onda!", Timestamp: now}

	if err := store.AppendMessages(ctx, userID, userMsg, botMsg); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	// Second append must extend, not replace, the array.
	followUp := models.Message{Sender: models.SenderUser, Text: "¿rutinas?", Timestamp: now}
	reply := models.Message{Sender: models.SenderBot, Text: "claro", Timestamp: now}
	if err := store.AppendMessages(ctx, userID, followUp, reply); err != nil {
		t.Fatalf("second append failed: %v", err)
	}

	history, err = store.FetchHistory(ctx, userID)
	if err != nil {
		t.Fatalf("fetch history failed: %v", err)
	}
	if len(history) != 4 {
		t.Fatalf("expected 4 stored messages, got %d", len(history))
	}
	if history[0].Text != "hola" || history[3].Text != "claro" {
		t.Fatalf("unexpected message order: %+v", history)
	}
	if history[0].Sender != models.SenderUser || history[1].Sender != models.SenderBot {
		t.Fatalf("sender values not preserved: %+v", history[:2])
	}
}
