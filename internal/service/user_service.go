package service

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/mmynk/saferound/internal/models"
	"github.com/mmynk/saferound/internal/storage"
	"github.com/mmynk/saferound/pkg/api"
)

// putUser creates or replaces the profile at the path's user id.
func (s *Server) putUser(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")
	if !s.authorize(w, r, userID) {
		return
	}

	var req api.UserProfile
	if !decodeJSON(w, r, &req) {
		return
	}

	user := &models.User{
		ID:        userID,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
		WeightKg:  req.WeightKg,
		IsCutOff:  req.IsCutOff,
	}
	if req.Sex != "" {
		sex, err := models.ParseSex(req.Sex)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, err)
			return
		}
		user.Sex = sex
	}
	if !validNonNegative(req.WeightKg) {
		writeDetail(w, http.StatusUnprocessableEntity, "weight_kg must be a non-negative number")
		return
	}

	if err := s.store.UpsertUser(r.Context(), user); err != nil {
		slog.Error("PutUser failed", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	slog.Info("Profile saved", "user_id", userID)
	writeJSON(w, http.StatusOK, api.OKResponse{OK: true})
}

func (s *Server) getUser(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")
	if !s.authorize(w, r, userID) {
		return
	}

	user, err := s.store.GetUser(r.Context(), userID)
	if err != nil {
		slog.Error("GetUser failed", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if user == nil {
		writeDetail(w, http.StatusNotFound, "User not found")
		return
	}

	writeJSON(w, http.StatusOK, api.UserProfile{
		UserID:    user.ID,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Phone:     user.Phone,
		WeightKg:  user.WeightKg,
		Sex:       string(user.Sex),
		IsCutOff:  user.IsCutOff,
	})
}

// setCutOff sets the cut-off flag from the is_cut_off query parameter.
func (s *Server) setCutOff(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")
	if !s.authorize(w, r, userID) {
		return
	}

	cutOff, err := strconv.ParseBool(r.URL.Query().Get("is_cut_off"))
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "is_cut_off must be true or false")
		return
	}

	err = s.store.SetCutOff(r.Context(), userID, cutOff)
	if errors.Is(err, storage.ErrNotFound) {
		writeDetail(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		slog.Error("SetCutOff failed", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	slog.Info("Cut-off updated", "user_id", userID, "is_cut_off", cutOff)
	writeJSON(w, http.StatusOK, api.CutOffResponse{IsCutOff: cutOff})
}
