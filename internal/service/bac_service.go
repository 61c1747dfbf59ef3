package service

import (
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/mmynk/saferound/internal/calculator"
	"github.com/mmynk/saferound/internal/models"
	"github.com/mmynk/saferound/pkg/api"
)

// estimateBAC computes a Widmark estimate from the request alone.
func (s *Server) estimateBAC(w http.ResponseWriter, r *http.Request) {
	var req api.EstimateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	slog.Info("EstimateBAC request received",
		"user_id", req.UserID,
		"alcohol_grams", req.AlcoholGrams,
		"time_elapsed_minutes", req.TimeElapsedMinutes,
	)

	sex, err := models.ParseSex(req.Sex)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	if !validNonNegative(req.TimeElapsedMinutes) {
		writeDetail(w, http.StatusUnprocessableEntity, "time_elapsed_minutes must be a non-negative number")
		return
	}

	elapsed := time.Duration(req.TimeElapsedMinutes * float64(time.Minute))
	bac, err := calculator.WidmarkBAC(req.WeightKg, sex, req.AlcoholGrams, elapsed)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	bac = calculator.Round4(bac)
	status := calculator.Classify(bac)

	slog.Info("EstimateBAC successful", "user_id", req.UserID, "bac", bac, "status", status)

	writeJSON(w, http.StatusOK, api.EstimateResponse{
		BAC:            bac,
		Status:         string(status),
		NotifyGuardian: status == models.BACStatusRed,
	})
}

// recommendation returns rule-based guidance for a BAC and optional reaction time.
func (s *Server) recommendation(w http.ResponseWriter, r *http.Request) {
	var req api.RecommendationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !validNonNegative(req.BAC) {
		writeDetail(w, http.StatusUnprocessableEntity, "bac must be a non-negative number")
		return
	}
	if req.ReactionTimeMs != nil && !validNonNegative(*req.ReactionTimeMs) {
		writeDetail(w, http.StatusUnprocessableEntity, "reaction_time_ms must be a non-negative number")
		return
	}

	rec := calculator.Recommend(req.BAC, req.ReactionTimeMs)
	slog.Debug("Recommendation computed", "bac", req.BAC, "sobriety_score", rec.SobrietyScore)

	writeJSON(w, http.StatusOK, api.RecommendationResponse{
		SobrietyScore:  rec.SobrietyScore,
		Recommendation: rec.Text,
		IsEmergency:    rec.IsEmergency,
	})
}

func validNonNegative(v float64) bool {
	return v >= 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}
