package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"inksink-backend/internal/middleware"
	"inksink-backend/internal/models"
	"inksink-backend/internal/services"
)

type chatService interface {
	LatestForDocument(ctx context.Context, userID, documentID uuid.UUID) (*models.Chat, error)
	ListRecent(ctx context.Context, userID, documentID uuid.UUID) ([]*models.ChatMetadata, error)
	Get(ctx context.Context, userID, chatID uuid.UUID) (*models.Chat, error)
	Create(ctx context.Context, userID uuid.UUID, req models.CreateChatRequest) (*models.Chat, error)
	Update(ctx context.Context, userID, chatID uuid.UUID, req models.UpdateChatRequest) (*models.Chat, error)
	Delete(ctx context.Context, userID, chatID uuid.UUID) error
}

type ChatsHandler struct {
	chats chatService
}

func NewChatsHandler(chats chatService) *ChatsHandler {
	return &ChatsHandler{chats: chats}
}

func (h *ChatsHandler) Latest(w http.ResponseWriter, r *http.Request) {
	documentID, ok := uuidParam(r, "documentID")
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResp("Invalid document ID"))
		return
	}

	chat, err := h.chats.LatestForDocument(r.Context(), middleware.GetUserID(r.Context()), documentID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if chat == nil {
		handleServiceError(w, &services.NotFoundError{Message: "No chats for this document"})
		return
	}

	writeJSON(w, http.StatusOK, chat)
}

func (h *ChatsHandler) List(w http.ResponseWriter, r *http.Request) {
	documentID, ok := uuidParam(r, "documentID")
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResp("Invalid document ID"))
		return
	}

	chats, err := h.chats.ListRecent(r.Context(), middleware.GetUserID(r.Context()), documentID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if chats == nil {
		chats = []*models.ChatMetadata{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"chats": chats})
}

func (h *ChatsHandler) Get(w http.ResponseWriter, r *http.Request) {
	chatID, ok := uuidParam(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResp("Invalid chat ID"))
		return
	}

	chat, err := h.chats.Get(r.Context(), middleware.GetUserID(r.Context()), chatID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, chat)
}

func (h *ChatsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("Invalid request body"))
		return
	}

	chat, err := h.chats.Create(r.Context(), middleware.GetUserID(r.Context()), req)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, chat)
}

func (h *ChatsHandler) Update(w http.ResponseWriter, r *http.Request) {
	chatID, ok := uuidParam(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResp("Invalid chat ID"))
		return
	}

	var req models.UpdateChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("Invalid request body"))
		return
	}

	chat, err := h.chats.Update(r.Context(), middleware.GetUserID(r.Context()), chatID, req)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, chat)
}

func (h *ChatsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	chatID, ok := uuidParam(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResp("Invalid chat ID"))
		return
	}

	if err := h.chats.Delete(r.Context(), middleware.GetUserID(r.Context()), chatID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
