package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"inksink-backend/internal/middleware"
	"inksink-backend/internal/models"
)

type creditReader interface {
	GetCredits(ctx context.Context, userID uuid.UUID) (int, error)
}

type CreditsHandler struct {
	credits creditReader
}

func NewCreditsHandler(credits creditReader) *CreditsHandler {
	return &CreditsHandler{credits: credits}
}

func (h *CreditsHandler) Get(w http.ResponseWriter, r *http.Request) {
	credits, err := h.credits.GetCredits(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, models.CreditsResponse{Credits: credits})
}
