package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"inksink-backend/internal/logger"
	"inksink-backend/internal/models"
)

type titleGenerator interface {
	Generate(ctx context.Context, message string) (string, error)
}

type TitleHandler struct {
	titles titleGenerator
	log    *logger.Logger
}

func NewTitleHandler(titles titleGenerator, log *logger.Logger) *TitleHandler {
	return &TitleHandler{titles: titles, log: log.With("component", "title")}
}

func (h *TitleHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req models.TitleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("Invalid request body"))
		return
	}

	var message string
	if err := json.Unmarshal(req.Message, &message); err != nil || strings.TrimSpace(message) == "" {
		writeJSON(w, http.StatusBadRequest, errorResp("message string required"))
		return
	}

	title, err := h.titles.Generate(r.Context(), message)
	if err != nil {
		h.log.Warn("Title generation failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResp("Failed to generate title"))
		return
	}

	writeJSON(w, http.StatusOK, models.TitleResponse{Title: title})
}
