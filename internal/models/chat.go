package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Role identifies the author of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the two conversation roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// ChatMessage represents a single message in a conversation.
type ChatMessage struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// ChatRequest is the payload sent to the chat stream endpoint. Messages is
// kept raw so a missing or non-array value can be told apart from an empty
// conversation.
type ChatRequest struct {
	Messages json.RawMessage `json:"messages"`
	Content  string          `json:"content,omitempty"`
}

// Chat is a persisted conversation attached to a document.
type Chat struct {
	ID         uuid.UUID     `json:"id"`
	UserID     uuid.UUID     `json:"user_id"`
	DocumentID uuid.UUID     `json:"document_id"`
	Title      string        `json:"title"`
	Messages   []ChatMessage `json:"messages"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

// ChatMetadata is a chat without its messages, used for "previous chats" lists.
type ChatMetadata struct {
	ID         uuid.UUID `json:"id"`
	DocumentID uuid.UUID `json:"document_id"`
	Title      string    `json:"title"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type CreateChatRequest struct {
	DocumentID uuid.UUID     `json:"document_id"`
	Title      string        `json:"title"`
	Messages   []ChatMessage `json:"messages"`
}

type UpdateChatRequest struct {
	Messages []ChatMessage `json:"messages"`
}

// TitleRequest is the payload of the chat-title endpoint. Message is raw so a
// non-string value is rejected instead of silently coerced.
type TitleRequest struct {
	Message json.RawMessage `json:"message"`
}

type TitleResponse struct {
	Title string `json:"title"`
}
