package service

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/mmynk/saferound/internal/models"
	"github.com/mmynk/saferound/pkg/api"
)

// DrinkCooldown is the minimum gap between two served drinks.
const DrinkCooldown = 2 * time.Minute

// validateDrink decides whether a scanned drink may be served and records it
// when allowed. Denials are 200 responses with allowed=false.
func (s *Server) validateDrink(w http.ResponseWriter, r *http.Request) {
	var req api.ValidateDrinkRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.UserID == "" || req.DrinkID == "" {
		writeDetail(w, http.StatusUnprocessableEntity, "user_id and drink_id are required")
		return
	}
	if !validNonNegative(req.AlcoholGrams) {
		writeDetail(w, http.StatusUnprocessableEntity, "alcohol_grams must be a non-negative number")
		return
	}

	slog.Info("ValidateDrink request received", "user_id", req.UserID, "drink_id", req.DrinkID)

	user, err := s.store.GetUser(r.Context(), req.UserID)
	if err != nil {
		slog.Error("ValidateDrink failed", "user_id", req.UserID, "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if user == nil {
		writeJSON(w, http.StatusOK, denied(api.ReasonServiceDenied, "User not found.", nil))
		return
	}
	if user.IsCutOff {
		writeJSON(w, http.StatusOK, denied(api.ReasonServiceDenied, "Service denied. You are cut off.", nil))
		return
	}

	now := s.now()
	if req.ScannedAt != nil {
		now = *req.ScannedAt
	}

	last, err := s.store.LastDrink(r.Context(), req.UserID)
	if err != nil {
		slog.Error("ValidateDrink failed", "user_id", req.UserID, "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if last != nil {
		lastAt := time.Unix(last.Timestamp, 0).UTC()
		if now.Sub(lastAt) < DrinkCooldown {
			slog.Info("ValidateDrink cooldown", "user_id", req.UserID, "last_drink_at", lastAt)
			writeJSON(w, http.StatusOK, denied(api.ReasonCooldown, "Please wait 2 minutes between drinks.", &lastAt))
			return
		}
	}

	drink := &models.DrinkRecord{
		UserID:       req.UserID,
		DrinkID:      req.DrinkID,
		AlcoholGrams: req.AlcoholGrams,
		Timestamp:    now.Unix(),
	}
	if err := s.store.RecordDrink(r.Context(), drink); err != nil {
		slog.Error("ValidateDrink failed", "user_id", req.UserID, "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	slog.Info("Drink validated", "user_id", req.UserID, "drink_id", req.DrinkID)
	writeJSON(w, http.StatusOK, api.ValidateDrinkResponse{
		Allowed: true,
		Reason:  api.ReasonOK,
		Message: "Drink validated.",
	})
}

func denied(reason, message string, lastDrinkAt *time.Time) api.ValidateDrinkResponse {
	return api.ValidateDrinkResponse{
		Allowed:     false,
		Reason:      reason,
		Message:     message,
		LastDrinkAt: lastDrinkAt,
	}
}
