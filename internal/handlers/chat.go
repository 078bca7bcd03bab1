package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"inksink-backend/internal/logger"
	"inksink-backend/internal/middleware"
	"inksink-backend/internal/models"
	"inksink-backend/internal/sse"
	"inksink-backend/internal/workflow"
)

const maxChatBodyBytes = 2 << 20

type workflowRunner interface {
	Start(ctx context.Context, in workflow.RunInput) *workflow.Run
}

type creditGate interface {
	Require(ctx context.Context, userID uuid.UUID) (int, error)
}

type settlementQueue interface {
	Enqueue(ctx context.Context, runID string, userID uuid.UUID, credits int) error
}

type ChatHandler struct {
	workflow    workflowRunner
	credits     creditGate
	settlements settlementQueue
	log         *logger.Logger
}

func NewChatHandler(wf workflowRunner, credits creditGate, settlements settlementQueue, log *logger.Logger) *ChatHandler {
	return &ChatHandler{
		workflow:    wf,
		credits:     credits,
		settlements: settlements,
		log:         log.With("component", "chat"),
	}
}

// Stream runs the chat workflow for the authenticated user and streams it as
// server-sent events. One credit is settled after a successful run.
func (h *ChatHandler) Stream(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeRunInput(w, r)
	if !ok {
		return
	}

	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		writeJSON(w, http.StatusUnauthorized, errorResp("Unauthorized"))
		return
	}

	credits, err := h.credits.Require(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	run, err := h.stream(w, r, in)
	if err != nil {
		return
	}

	// The request context may already be done once the client drops the
	// connection after the close frame.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), 5*time.Second)
	defer cancel()
	if err := h.settlements.Enqueue(ctx, run.ID(), userID, credits); err != nil {
		h.log.Error("Failed to enqueue credit settlement", "run_id", run.ID(), "user_id", userID.String(), "error", err)
	}
}

// StreamPublic is the unauthenticated development variant of Stream.
func (h *ChatHandler) StreamPublic(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeRunInput(w, r)
	if !ok {
		return
	}
	h.stream(w, r, in)
}

func (h *ChatHandler) stream(w http.ResponseWriter, r *http.Request, in workflow.RunInput) (*workflow.Run, error) {
	// Streams outlive the server-wide write timeout.
	http.NewResponseController(w).SetWriteDeadline(time.Time{})

	sse.SetHeaders(w)
	w.WriteHeader(http.StatusOK)

	run := h.workflow.Start(r.Context(), in)
	defer run.Close()

	started := time.Now()
	err := sse.Pump(r.Context(), sse.NewEncoder(w), run)
	if err != nil {
		h.log.Warn("Chat stream failed", "run_id", run.ID(), "state", run.State().String(), "error", err)
		return run, err
	}

	h.log.Info("Chat stream completed",
		"run_id", run.ID(),
		"duration_ms", time.Since(started).Milliseconds(),
		"chars", len(run.Result().Result.Result),
	)
	return run, nil
}

func decodeRunInput(w http.ResponseWriter, r *http.Request) (workflow.RunInput, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxChatBodyBytes)

	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("Invalid request body"))
		return workflow.RunInput{}, false
	}

	raw := bytes.TrimSpace(req.Messages)
	if len(raw) == 0 || raw[0] != '[' {
		writeJSON(w, http.StatusBadRequest, errorResp("messages array required"))
		return workflow.RunInput{}, false
	}

	var messages []models.ChatMessage
	if err := json.Unmarshal(raw, &messages); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("Invalid messages"))
		return workflow.RunInput{}, false
	}
	for _, m := range messages {
		if !m.Role.Valid() {
			writeJSON(w, http.StatusBadRequest, errorResp("Invalid message role"))
			return workflow.RunInput{}, false
		}
	}

	return workflow.RunInput{Messages: messages, Content: req.Content}, true
}
