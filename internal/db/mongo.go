package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/bigsamfit/bigsam/internal/models"
	"github.com/bigsamfit/bigsam/internal/utils"
)

type Mongo struct {
	Client        *mongo.Client
	Database      *mongo.Database
	Conversations *mongo.Collection
}

func NewMongo(ctx context.Context, cfg utils.MongoConfig) (*Mongo, error) {
	if cfg.URI == "" {
		return nil, fmt.Errorf("mongo: uri is required")
	}

	clientOpts := options.Client().ApplyURI(cfg.URI)
	if cfg.ConnectTimeout > 0 {
		clientOpts.SetServerSelectionTimeout(cfg.ConnectTimeout)
	}

	ctx, cancel := context.WithTimeout(ctx, timeoutOrDefault(cfg.ConnectTimeout))
	defer cancel()

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("mongo: connect: %w", err)
	}

	database := client.Database(cfg.Database)
	store := &Mongo{
		Client:        client,
		Database:      database,
		Conversations: database.Collection("conversations"),
	}

	return store, nil
}

func (m *Mongo) Close(ctx context.Context) error {
	if m == nil || m.Client == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return m.Client.Disconnect(ctx)
}

func (m *Mongo) Ping(ctx context.Context) error {
	if m == nil || m.Client == nil {
		return fmt.Errorf("mongo: client not initialised")
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return m.Client.Ping(ctx, nil)
}

func (m *Mongo) EnsureCollections(ctx context.Context) error {
	if m == nil || m.Database == nil {
		return fmt.Errorf("mongo: database not initialised")
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := m.Conversations.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("mongo: ensure conversation index: %w", err)
	}

	return nil
}

// GetOrCreate loads the user's conversation, or returns a fresh unsaved one
// when none exists. Nothing is written until AppendMessages runs.
func (m *Mongo) GetOrCreate(ctx context.Context, userID string) (*models.Conversation, error) {
	var conv models.Conversation
	err := m.Conversations.FindOne(ctx, bson.M{"user_id": userID}).Decode(&conv)
	if err == nil {
		return &conv, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("mongo: load conversation: %w", err)
	}

	now := time.Now().UTC()
	return &models.Conversation{
		UserID:    userID,
		Messages:  []models.Message{},
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// AppendMessages durably appends entries to the user's conversation in a
// single document-level update, creating the document on first write. The
// $push keeps concurrent sends for the same user from overwriting each other.
func (m *Mongo) AppendMessages(ctx context.Context, userID string, messages ...models.Message) error {
	if len(messages) == 0 {
		return nil
	}

	now := time.Now().UTC()
	filter := bson.M{"user_id": userID}
	update := bson.M{
		"$push":        bson.M{"messages": bson.M{"$each": messages}},
		"$set":         bson.M{"updated_at": now},
		"$setOnInsert": bson.M{"_id": uuid.NewString(), "user_id": userID, "created_at": now},
	}

	_, err := m.Conversations.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("mongo: append messages: %w", err)
	}

	return nil
}

// FetchHistory returns the stored messages for a user in append order, or an
// empty slice when the user has no conversation. Read-only: no document is
// created on this path.
func (m *Mongo) FetchHistory(ctx context.Context, userID string) ([]models.Message, error) {
	var conv models.Conversation
	err := m.Conversations.FindOne(ctx, bson.M{"user_id": userID}).Decode(&conv)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("mongo: fetch history: %w", err)
	}

	return conv.Messages, nil
}

func timeoutOrDefault(value time.Duration) time.Duration {
	if value > 0 {
		return value
	}
	return 10 * time.Second
}
