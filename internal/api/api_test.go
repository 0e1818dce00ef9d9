package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/bigsamfit/bigsam/internal/auth"
	"github.com/bigsamfit/bigsam/internal/chat"
	"github.com/bigsamfit/bigsam/internal/db"
	"github.com/bigsamfit/bigsam/internal/gemini"
	"github.com/bigsamfit/bigsam/internal/models"
)

type memoryUserStore struct {
	users map[string]models.User
}

func (m *memoryUserStore) InsertUser(ctx context.Context, user models.User) error {
	for _, existing := range m.users {
		if strings.EqualFold(existing.Email, user.Email) {
			return db.ErrDuplicateEmail
		}
	}
	m.users[user.ID] = user
	return nil
}

func (m *memoryUserStore) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, user := range m.users {
		if strings.EqualFold(user.Email, email) {
			copied := user
			return &copied, nil
		}
	}
	return nil, db.ErrUserNotFound
}

func (m *memoryUserStore) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	user, ok := m.users[id]
	if !ok {
		return nil, db.ErrUserNotFound
	}
	return &user, nil
}

type memoryConversationStore struct {
	conversations map[string][]models.Message
	appends       int
}

func (m *memoryConversationStore) GetOrCreate(ctx context.Context, userID string) (*models.Conversation, error) {
	now := time.Now().UTC()
	return &models.Conversation{
		UserID:    userID,
		Messages:  append([]models.Message(nil), m.conversations[userID]...),
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (m *memoryConversationStore) AppendMessages(ctx context.Context, userID string, messages ...models.Message) error {
	m.appends++
	m.conversations[userID] = append(m.conversations[userID], messages...)
	return nil
}

func (m *memoryConversationStore) FetchHistory(ctx context.Context, userID string) ([]models.Message, error) {
	return append([]models.Message(nil), m.conversations[userID]...), nil
}

type stubGateway struct {
	reply string
	err   error
	calls int
}

func (s *stubGateway) Generate(ctx context.Context, history []gemini.Content, message string) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return s.reply, nil
}

type testEnv struct {
	router  *gin.Engine
	store   *memoryConversationStore
	gateway *stubGateway
}

func setupTestRouter(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	authService, err := auth.NewService("test-secret", time.Hour, &memoryUserStore{users: make(map[string]models.User)})
	if err != nil {
		t.Fatalf("failed to create auth service: %v", err)
	}

	store := &memoryConversationStore{conversations: make(map[string][]models.Message)}
	gateway := &stubGateway{reply: "¡Dale duro al press de banca, campeón!"}
	chatService := chat.NewService(store, gateway, zap.NewNop().Sugar())

	handler := NewHandler(authService, chatService, zap.NewNop().Sugar())
	router := gin.New()
	handler.RegisterRoutes(router)

	return &testEnv{router: router, store: store, gateway: gateway}
}

func (e *testEnv) registerUser(t *testing.T, username, email, password string) string {
	t.Helper()
	rec := httptest.NewRecorder()
	req := newJSONRequest(t, http.MethodPost, "/api/auth/register", map[string]string{
		"username": username,
		"email":    email,
		"password": password,
	})
	e.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("register: expected status 201, got %d (%s)", rec.Code, rec.Body.String())
	}

	var resp map[string]any
	decodeBody(t, rec.Body.Bytes(), &resp)
	token, _ := resp["token"].(string)
	if token == "" {
		t.Fatalf("register: expected token in response")
	}
	return token
}

func TestRegisterLoginFlow(t *testing.T) {
	env := setupTestRouter(t)
	env.registerUser(t, "ana", "a@x.com", "p1")

	rec := httptest.NewRecorder()
	req := newJSONRequest(t, http.MethodPost, "/api/auth/login", map[string]string{
		"email":    "a@x.com",
		"password": "p1",
	})
	env.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("login: expected status 200, got %d", rec.Code)
	}

	var loginResp map[string]any
	decodeBody(t, rec.Body.Bytes(), &loginResp)
	if loginResp["token"] == "" {
		t.Fatalf("login: expected token in response")
	}
	if loginResp["email"] != "a@x.com" {
		t.Fatalf("login: expected email echoed back, got %v", loginResp["email"])
	}

	rec = httptest.NewRecorder()
	req = newJSONRequest(t, http.MethodPost, "/api/auth/login", map[string]string{
		"email":    "a@x.com",
		"password": "wrong",
	})
	env.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad login: expected status 401, got %d", rec.Code)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	env := setupTestRouter(t)
	env.registerUser(t, "ana", "a@x.com", "p1")

	rec := httptest.NewRecorder()
	req := newJSONRequest(t, http.MethodPost, "/api/auth/register", map[string]string{
		"username": "otra",
		"email":    "a@x.com",
		"password": "p2",
	})
	env.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for duplicate email, got %d", rec.Code)
	}
}

func TestProfileRequiresToken(t *testing.T) {
	env := setupTestRouter(t)
	token := env.registerUser(t, "ana", "a@x.com", "p1")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/auth/profile", nil)
	env.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token: expected status 401, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/auth/profile", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	env.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad token: expected status 401, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/auth/profile", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	env.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("profile: expected status 200, got %d", rec.Code)
	}

	var profile map[string]any
	decodeBody(t, rec.Body.Bytes(), &profile)
	if profile["username"] != "ana" || profile["email"] != "a@x.com" {
		t.Fatalf("unexpected profile body: %v", profile)
	}
}

func TestHistoryNewUserGetsGreeting(t *testing.T) {
	env := setupTestRouter(t)
	token := env.registerUser(t, "ana", "a@x.com", "p1")

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/chat/history", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		env.router.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("history: expected status 200, got %d", rec.Code)
		}

		var messages []models.Message
		decodeBody(t, rec.Body.Bytes(), &messages)
		if len(messages) != 1 {
			t.Fatalf("expected single greeting message, got %d", len(messages))
		}
		if messages[0].Sender != models.SenderBot || messages[0].Text != chat.Greeting {
			t.Fatalf("unexpected greeting: %+v", messages[0])
		}
	}

	if env.store.appends != 0 {
		t.Fatalf("greeting path must not write to the store, got %d appends", env.store.appends)
	}
}

func TestSendAndHistoryRoundTrip(t *testing.T) {
	env := setupTestRouter(t)
	token := env.registerUser(t, "ana", "a@x.com", "p1")

	rec := httptest.NewRecorder()
	req := newJSONRequest(t, http.MethodPost, "/api/chat/send", map[string]string{
		"message": "¿qué máquina es buena para pecho?",
	})
	req.Header.Set("Authorization", "Bearer "+token)
	env.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("send: expected status 200, got %d (%s)", rec.Code, rec.Body.String())
	}

	var sendResp struct {
		UserMessage models.Message `json:"userMessage"`
		BotResponse models.Message `json:"botResponse"`
	}
	decodeBody(t, rec.Body.Bytes(), &sendResp)

	if sendResp.UserMessage.Text != "¿qué máquina es buena para pecho?" {
		t.Fatalf("unexpected user message text: %q", sendResp.UserMessage.Text)
	}
	if sendResp.BotResponse.Sender != models.SenderBot {
		t.Fatalf("expected bot sender on response, got %q", sendResp.BotResponse.Sender)
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/chat/history", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	env.router.ServeHTTP(rec, req)

	var messages []models.Message
	decodeBody(t, rec.Body.Bytes(), &messages)
	if len(messages) != 2 {
		t.Fatalf("expected history length 2, got %d", len(messages))
	}
	if messages[0].Text != sendResp.UserMessage.Text || messages[1].Text != sendResp.BotResponse.Text {
		t.Fatalf("history tail does not match send response")
	}
}

func TestSendEmptyMessageRejected(t *testing.T) {
	env := setupTestRouter(t)
	token := env.registerUser(t, "ana", "a@x.com", "p1")

	for _, message := range []string{"", "   \t\n"} {
		rec := httptest.NewRecorder()
		req := newJSONRequest(t, http.MethodPost, "/api/chat/send", map[string]string{"message": message})
		req.Header.Set("Authorization", "Bearer "+token)
		env.router.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("message %q: expected status 400, got %d", message, rec.Code)
		}
	}

	if env.store.appends != 0 {
		t.Fatalf("rejected sends must not touch the store, got %d appends", env.store.appends)
	}
	if env.gateway.calls != 0 {
		t.Fatalf("rejected sends must not reach the gateway, got %d calls", env.gateway.calls)
	}
}

func TestSendGatewayFailures(t *testing.T) {
	cases := []struct {
		name        string
		err         error
		wantMessage string
	}{
		{"safety", gemini.ErrSafetyBlocked, msgSafetyBlocked},
		{"quota", gemini.ErrQuotaExceeded, msgQuotaExceeded},
		{"unavailable", gemini.ErrUnavailable, msgChatFailure},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := setupTestRouter(t)
			token := env.registerUser(t, "ana", "a@x.com", "p1")
			env.gateway.err = tc.err

			rec := httptest.NewRecorder()
			req := newJSONRequest(t, http.MethodPost, "/api/chat/send", map[string]string{"message": "hola"})
			req.Header.Set("Authorization", "Bearer "+token)
			env.router.ServeHTTP(rec, req)

			if rec.Code != http.StatusInternalServerError {
				t.Fatalf("expected status 500, got %d", rec.Code)
			}

			var resp map[string]string
			decodeBody(t, rec.Body.Bytes(), &resp)
			if resp["message"] != tc.wantMessage {
				t.Fatalf("expected message %q, got %q", tc.wantMessage, resp["message"])
			}

			// Failed turns roll back entirely: no user turn is stored.
			if env.store.appends != 0 {
				t.Fatalf("expected no persistence on gateway failure, got %d appends", env.store.appends)
			}
		})
	}
}

func TestRootBanner(t *testing.T) {
	env := setupTestRouter(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	env.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Big Sam") {
		t.Fatalf("expected banner body, got %q", rec.Body.String())
	}
}

func newJSONRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("failed to marshal body: %v", err)
	}

	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeBody(t *testing.T, data []byte, out any) {
	t.Helper()
	if err := json.Unmarshal(data, out); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
}
