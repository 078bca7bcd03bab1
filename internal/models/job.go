package models

import (
	"time"

	"github.com/google/uuid"
)

// SettlementJob charges one credit for a completed workflow run.
type SettlementJob struct {
	RunID      string    `json:"run_id"`
	UserID     uuid.UUID `json:"user_id"`
	Credits    int       `json:"credits"` // balance observed by the credit gate
	Attempts   int       `json:"attempts"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// WebSocket message types
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

const (
	WSChatSaved      = "chat_saved"
	WSCreditsUpdated = "credits_updated"
)

type ChatSavedEvent struct {
	ChatID     uuid.UUID `json:"chat_id"`
	DocumentID uuid.UUID `json:"document_id"`
	Title      string    `json:"title"`
}

type CreditsUpdatedEvent struct {
	Credits int    `json:"credits"`
	RunID   string `json:"run_id"`
}

// ErrorResponse is the JSON body of every non-stream error.
type ErrorResponse struct {
	Error string `json:"error"`
}
