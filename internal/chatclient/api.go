package chatclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"inksink-backend/internal/models"
	"inksink-backend/internal/sse"
)

// StatusError is a non-2xx answer from the API. Message is the server's
// {"error": ...} text when it sent one.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("Request failed with %d", e.Code)
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusNotFound
}

// APIClient talks to the server's /api/v1 routes with a bearer token.
type APIClient struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewAPIClient builds a client for baseURL (for example
// http://localhost:8080/api/v1). A nil httpClient means http.DefaultClient;
// it must not carry a total timeout or long streams get cut.
func NewAPIClient(baseURL, token string, httpClient *http.Client) *APIClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &APIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    httpClient,
	}
}

func (c *APIClient) StreamChat(ctx context.Context, messages []models.ChatMessage, content string, fn func(sse.Frame) error) error {
	raw, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("failed to encode messages: %w", err)
	}

	resp, err := c.send(ctx, http.MethodPost, "/chat", models.ChatRequest{Messages: raw, Content: content})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return err
	}
	return sse.Read(ctx, resp.Body, fn)
}

func (c *APIClient) GenerateTitle(ctx context.Context, message string) (string, error) {
	raw, err := json.Marshal(message)
	if err != nil {
		return "", err
	}

	var out models.TitleResponse
	if err := c.do(ctx, http.MethodPost, "/chat-title", models.TitleRequest{Message: raw}, &out); err != nil {
		return "", err
	}
	return out.Title, nil
}

// LatestChat returns nil without error when the document has no chats.
func (c *APIClient) LatestChat(ctx context.Context, documentID uuid.UUID) (*models.Chat, error) {
	var chat models.Chat
	err := c.do(ctx, http.MethodGet, "/documents/"+documentID.String()+"/chats/latest", nil, &chat)
	if IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &chat, nil
}

func (c *APIClient) ListChats(ctx context.Context, documentID uuid.UUID) ([]*models.ChatMetadata, error) {
	var out struct {
		Chats []*models.ChatMetadata `json:"chats"`
	}
	if err := c.do(ctx, http.MethodGet, "/documents/"+documentID.String()+"/chats", nil, &out); err != nil {
		return nil, err
	}
	return out.Chats, nil
}

func (c *APIClient) GetChat(ctx context.Context, chatID uuid.UUID) (*models.Chat, error) {
	var chat models.Chat
	if err := c.do(ctx, http.MethodGet, "/chats/"+chatID.String(), nil, &chat); err != nil {
		return nil, err
	}
	return &chat, nil
}

func (c *APIClient) CreateChat(ctx context.Context, req models.CreateChatRequest) (*models.Chat, error) {
	var chat models.Chat
	if err := c.do(ctx, http.MethodPost, "/chats", req, &chat); err != nil {
		return nil, err
	}
	return &chat, nil
}

func (c *APIClient) UpdateChat(ctx context.Context, chatID uuid.UUID, req models.UpdateChatRequest) (*models.Chat, error) {
	var chat models.Chat
	if err := c.do(ctx, http.MethodPut, "/chats/"+chatID.String(), req, &chat); err != nil {
		return nil, err
	}
	return &chat, nil
}

func (c *APIClient) DeleteChat(ctx context.Context, chatID uuid.UUID) error {
	return c.do(ctx, http.MethodDelete, "/chats/"+chatID.String(), nil, nil)
}

func (c *APIClient) Credits(ctx context.Context) (int, error) {
	var out models.CreditsResponse
	if err := c.do(ctx, http.MethodGet, "/credits", nil, &out); err != nil {
		return 0, err
	}
	return out.Credits, nil
}

func (c *APIClient) do(ctx context.Context, method, path string, body, out any) error {
	resp, err := c.send(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return err
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s %s: %w", method, path, err)
	}
	return nil
}

func (c *APIClient) send(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	return c.http.Do(req)
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	msg := strings.TrimSpace(string(body))
	if gjson.ValidBytes(body) {
		if m := gjson.GetBytes(body, "error"); m.Type == gjson.String {
			msg = m.String()
		}
	}
	return &StatusError{Code: resp.StatusCode, Message: msg}
}
