package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"inksink-backend/internal/models"
	"inksink-backend/internal/services"
)

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func errorResp(message string) models.ErrorResponse {
	return models.ErrorResponse{Error: message}
}

func handleServiceError(w http.ResponseWriter, err error) {
	switch e := err.(type) {
	case *services.ValidationError:
		writeJSON(w, http.StatusBadRequest, errorResp(e.Message))
	case *services.NotFoundError:
		writeJSON(w, http.StatusNotFound, errorResp(e.Message))
	case *services.ForbiddenError:
		writeJSON(w, http.StatusForbidden, errorResp(e.Message))
	case *services.PaymentRequiredError:
		writeJSON(w, http.StatusPaymentRequired, errorResp(e.Message))
	default:
		writeJSON(w, http.StatusInternalServerError, errorResp("An unexpected error occurred"))
	}
}

func uuidParam(r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	return id, err == nil
}
