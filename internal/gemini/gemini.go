package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/bigsamfit/bigsam/internal/utils"
)

// Typed gateway failures. Callers match with errors.Is to pick a user-facing
// message; everything else is an unknown internal failure.
var (
	ErrSafetyBlocked = errors.New("gemini: prompt or reply blocked by safety filters")
	ErrQuotaExceeded = errors.New("gemini: quota exceeded")
	ErrUnavailable   = errors.New("gemini: service unavailable")
	ErrEmptyReply    = errors.New("gemini: response contained no text")
)

const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Content is one role-tagged turn in the generateContent payload.
type Content struct {
	Role  string `json:"role"`
	Parts []Part `json:"parts"`
}

type Part struct {
	Text string `json:"text"`
}

type httpDoer interface {
	Do(*http.Request) (*http.Response, error)
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	TopK            int     `json:"topK"`
	TopP            float64 `json:"topP"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type safetySetting struct {
	Category  string `json:"category"`
	Threshold string `json:"threshold"`
}

// Client calls the generativelanguage generateContent endpoint. It is
// configured once at startup and immutable afterwards; every call carries the
// full conversational context, so the client holds no per-session state.
type Client struct {
	endpoint          string
	model             string
	apiKey            string
	systemInstruction Content
	generation        generationConfig
	safety            []safetySetting
	client            httpDoer
	logger            *zap.SugaredLogger
}

func NewClient(cfg utils.GeminiConfig, systemInstruction string, logger *zap.SugaredLogger) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("gemini: api key is required")
	}

	endpoint := strings.TrimRight(cfg.Endpoint, "/")
	if endpoint == "" {
		endpoint = "https://generativelanguage.googleapis.com/v1beta"
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = "gemini-2.0-flash"
	}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		endpoint:          endpoint,
		model:             model,
		apiKey:            cfg.APIKey,
		systemInstruction: Content{Parts: []Part{{Text: systemInstruction}}},
		generation: generationConfig{
			Temperature:     cfg.Temperature,
			TopK:            cfg.TopK,
			TopP:            cfg.TopP,
			MaxOutputTokens: cfg.MaxOutputTokens,
		},
		safety: []safetySetting{
			{Category: "HARM_CATEGORY_HARASSMENT", Threshold: "BLOCK_MEDIUM_AND_ABOVE"},
			{Category: "HARM_CATEGORY_HATE_SPEECH", Threshold: "BLOCK_MEDIUM_AND_ABOVE"},
			{Category: "HARM_CATEGORY_SEXUALLY_EXPLICIT", Threshold: "BLOCK_MEDIUM_AND_ABOVE"},
			{Category: "HARM_CATEGORY_DANGEROUS_CONTENT", Threshold: "BLOCK_MEDIUM_AND_ABOVE"},
		},
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}, nil
}

type generateRequest struct {
	SystemInstruction Content          `json:"systemInstruction"`
	Contents          []Content        `json:"contents"`
	GenerationConfig  generationConfig `json:"generationConfig"`
	SafetySettings    []safetySetting  `json:"safetySettings"`
}

type candidate struct {
	Content      Content `json:"content"`
	FinishReason string  `json:"finishReason"`
}

type promptFeedback struct {
	BlockReason string `json:"blockReason"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

type generateResponse struct {
	Candidates     []candidate     `json:"candidates"`
	PromptFeedback *promptFeedback `json:"promptFeedback"`
	Error          *apiError       `json:"error,omitempty"`
}

// Generate answers message given the prior role-tagged history. The history
// must not include the current message; Generate appends it as the final user
// turn of the payload.
func (c *Client) Generate(ctx context.Context, history []Content, message string) (string, error) {
	contents := make([]Content, 0, len(history)+1)
	contents = append(contents, history...)
	contents = append(contents, Content{Role: RoleUser, Parts: []Part{{Text: message}}})

	payload := generateRequest{
		SystemInstruction: c.systemInstruction,
		Contents:          contents,
		GenerationConfig:  c.generation,
		SafetySettings:    c.safety,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("gemini: marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", c.endpoint, c.model)
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("gemini: create request: %w", err)
	}

	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("x-goog-api-key", c.apiKey)

	response, err := c.client.Do(request)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer response.Body.Close()

	respBody, err := io.ReadAll(response.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read response: %v", ErrUnavailable, err)
	}

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return "", c.buildStatusError(response.StatusCode, respBody)
	}

	var apiResp generateResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return "", fmt.Errorf("gemini: decode response: %w", err)
	}

	if apiResp.PromptFeedback != nil && apiResp.PromptFeedback.BlockReason != "" {
		c.logger.Warnw("prompt blocked", "reason", apiResp.PromptFeedback.BlockReason)
		return "", ErrSafetyBlocked
	}

	if len(apiResp.Candidates) == 0 {
		return "", ErrEmptyReply
	}

	first := apiResp.Candidates[0]
	if strings.EqualFold(first.FinishReason, "SAFETY") {
		c.logger.Warnw("candidate blocked", "finish_reason", first.FinishReason)
		return "", ErrSafetyBlocked
	}

	text := joinParts(first.Content.Parts)
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyReply
	}

	return text, nil
}

func (c *Client) buildStatusError(statusCode int, body []byte) error {
	var envelope generateResponse
	status, message := "", ""
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error != nil {
		status = envelope.Error.Status
		message = strings.TrimSpace(envelope.Error.Message)
	}

	switch {
	case statusCode == http.StatusTooManyRequests || status == "RESOURCE_EXHAUSTED":
		return fmt.Errorf("%w: %s", ErrQuotaExceeded, messageOrStatus(message, statusCode))
	case statusCode >= 500:
		return fmt.Errorf("%w: %s", ErrUnavailable, messageOrStatus(message, statusCode))
	default:
		return fmt.Errorf("gemini: api error (%d): %s", statusCode, messageOrStatus(message, statusCode))
	}
}

func messageOrStatus(message string, statusCode int) string {
	if message != "" {
		if len(message) > 256 {
			message = message[:256]
		}
		return message
	}
	return http.StatusText(statusCode)
}

func joinParts(parts []Part) string {
	if len(parts) == 1 {
		return parts[0].Text
	}

	var builder strings.Builder
	for _, part := range parts {
		builder.WriteString(part.Text)
	}
	return builder.String()
}
