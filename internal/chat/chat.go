package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/bigsamfit/bigsam/internal/gemini"
	"github.com/bigsamfit/bigsam/internal/models"
)

// ErrEmptyMessage rejects inbound messages that are empty after trimming.
var ErrEmptyMessage = errors.New("chat: message cannot be empty")

// historyWindow bounds how many stored turns travel to the model per call,
// counting the just-appended inbound message.
const historyWindow = 20

// ConversationStore is the persistence surface the chat service needs.
// *db.Mongo satisfies it in production.
type ConversationStore interface {
	GetOrCreate(ctx context.Context, userID string) (*models.Conversation, error)
	AppendMessages(ctx context.Context, userID string, messages ...models.Message) error
	FetchHistory(ctx context.Context, userID string) ([]models.Message, error)
}

// Gateway answers one user turn given its prior role-tagged context.
type Gateway interface {
	Generate(ctx context.Context, history []gemini.Content, message string) (string, error)
}

type Service struct {
	store   ConversationStore
	gateway Gateway
	logger  *zap.SugaredLogger
	now     func() time.Time
}

func NewService(store ConversationStore, gateway Gateway, logger *zap.SugaredLogger) *Service {
	return &Service{
		store:   store,
		gateway: gateway,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Send runs one full chat turn: append the user's message to the loaded
// conversation, derive the bounded context window, ask the gateway, and
// persist the user/bot pair in a single store append. Nothing is persisted
// when the gateway fails, so the store never records a user turn without its
// matching reply.
func (s *Service) Send(ctx context.Context, userID, text string) (models.Message, models.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return models.Message{}, models.Message{}, ErrEmptyMessage
	}

	conv, err := s.store.GetOrCreate(ctx, userID)
	if err != nil {
		return models.Message{}, models.Message{}, fmt.Errorf("load conversation: %w", err)
	}

	userEntry := models.Message{Sender: models.SenderUser, Text: text, Timestamp: s.now()}
	conv.Messages = append(conv.Messages, userEntry)

	window := mapWindow(conv.Messages)
	// The window ends with the entry appended above, so everything before the
	// final element is the prior context and the final element is the current
	// turn, which the gateway transmits separately.
	prior := window[:len(window)-1]

	reply, err := s.gateway.Generate(ctx, prior, text)
	if err != nil {
		return models.Message{}, models.Message{}, err
	}

	botEntry := models.Message{Sender: models.SenderBot, Text: reply, Timestamp: s.now()}

	if err := s.store.AppendMessages(ctx, userID, userEntry, botEntry); err != nil {
		return models.Message{}, models.Message{}, fmt.Errorf("save conversation: %w", err)
	}

	s.logger.Debugw("chat turn persisted", "user_id", userID, "context_len", len(prior))

	return userEntry, botEntry, nil
}

// History returns the stored messages for a user in append order. Users with
// no history get the synthetic greeting; that path reads only and never
// creates a conversation document.
func (s *Service) History(ctx context.Context, userID string) ([]models.Message, error) {
	messages, err := s.store.FetchHistory(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("fetch history: %w", err)
	}

	if len(messages) == 0 {
		return []models.Message{{
			Sender:    models.SenderBot,
			Text:      Greeting,
			Timestamp: s.now(),
		}}, nil
	}

	return messages, nil
}

// mapWindow takes the trailing historyWindow entries of messages and maps
// each to its gateway representation, preserving order. Stored "user" turns
// keep the user role; everything else, including any malformed sender value,
// maps to the model role.
func mapWindow(messages []models.Message) []gemini.Content {
	start := 0
	if len(messages) > historyWindow {
		start = len(messages) - historyWindow
	}

	window := messages[start:]
	mapped := make([]gemini.Content, 0, len(window))
	for _, msg := range window {
		role := gemini.RoleModel
		if msg.Sender == models.SenderUser {
			role = gemini.RoleUser
		}
		mapped = append(mapped, gemini.Content{
			Role:  role,
			Parts: []gemini.Part{{Text: msg.Text}},
		})
	}

	return mapped
}
