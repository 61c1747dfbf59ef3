package service

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/mmynk/saferound/internal/models"
	"github.com/mmynk/saferound/internal/storage"
	"github.com/mmynk/saferound/pkg/api"
)

const (
	defaultGroupName = "My Group"

	// codeAttempts bounds retries when a generated code is already in use.
	codeAttempts = 10
)

// createGroup creates a group with a fresh 6-digit code. The creator is the
// first member.
func (s *Server) createGroup(w http.ResponseWriter, r *http.Request) {
	var req api.CreateGroupRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.UserID == "" {
		writeDetail(w, http.StatusUnprocessableEntity, "user_id is required")
		return
	}
	if !s.authorize(w, r, req.UserID) {
		return
	}

	slog.Info("CreateGroup request received", "user_id", req.UserID, "name", req.Name)

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = defaultGroupName
	}

	var group *models.Group
	for attempt := 0; attempt < codeAttempts; attempt++ {
		group = &models.Group{Code: s.newCode(), Name: name, MemberIDs: []string{req.UserID}}
		err := s.store.CreateGroup(r.Context(), group)
		if err == nil {
			break
		}
		group = nil
		if !errors.Is(err, storage.ErrCodeTaken) {
			slog.Error("CreateGroup failed", "error", err)
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		slog.Debug("Group code collision, retrying", "attempt", attempt+1)
	}
	if group == nil {
		slog.Error("CreateGroup failed", "error", "no free group code")
		writeDetail(w, http.StatusServiceUnavailable, "could not allocate a group code")
		return
	}

	slog.Info("Group created", "group_id", group.ID, "code", group.Code)

	writeJSON(w, http.StatusOK, api.CreateGroupResponse{
		GroupID: group.ID,
		Code:    group.Code,
		Name:    group.Name,
	})
}

// joinGroup adds the user to the group with the given code. Joining twice
// succeeds with "Already in group".
func (s *Server) joinGroup(w http.ResponseWriter, r *http.Request) {
	var req api.JoinGroupRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	code := strings.TrimSpace(req.Code)
	if code == "" || req.UserID == "" {
		writeDetail(w, http.StatusBadRequest, "Provide user_id and code.")
		return
	}
	if !s.authorize(w, r, req.UserID) {
		return
	}

	slog.Info("JoinGroup request received", "user_id", req.UserID, "code", code)

	group, err := s.store.GetGroupByCode(r.Context(), code)
	if errors.Is(err, storage.ErrNotFound) {
		writeDetail(w, http.StatusNotFound, "Group not found. Check the code or group id.")
		return
	}
	if err != nil {
		slog.Error("JoinGroup failed", "code", code, "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	added, err := s.store.AddMember(r.Context(), group.ID, req.UserID)
	if err != nil {
		slog.Error("JoinGroup failed", "group_id", group.ID, "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	resp := api.JoinGroupResponse{OK: true, GroupID: group.ID}
	if !added {
		resp.Message = "Already in group"
	}

	slog.Info("JoinGroup successful", "group_id", group.ID, "user_id", req.UserID, "added", added)
	writeJSON(w, http.StatusOK, resp)
}

// listGroups returns every group with its member count.
func (s *Server) listGroups(w http.ResponseWriter, r *http.Request) {
	slog.Info("ListGroups request received")

	groups, err := s.store.ListGroups(r.Context())
	if err != nil {
		slog.Error("ListGroups failed", "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	resp := api.ListGroupsResponse{Groups: make([]api.GroupSummary, 0, len(groups))}
	for _, g := range groups {
		resp.Groups = append(resp.Groups, api.GroupSummary{
			GroupID:     g.ID,
			Code:        g.Code,
			Name:        g.Name,
			MemberCount: len(g.MemberIDs),
		})
	}

	slog.Info("ListGroups successful", "count", len(groups))
	writeJSON(w, http.StatusOK, resp)
}

// listMembers returns the roster with profile names resolved.
func (s *Server) listMembers(w http.ResponseWriter, r *http.Request) {
	groupID := r.PathValue("group_id")
	slog.Info("ListMembers request received", "group_id", groupID)

	group, err := s.store.GetGroup(r.Context(), groupID)
	if errors.Is(err, storage.ErrNotFound) {
		writeDetail(w, http.StatusNotFound, "Group not found")
		return
	}
	if err != nil {
		slog.Error("ListMembers failed", "group_id", groupID, "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	users, err := s.store.GetUsersByIDs(r.Context(), group.MemberIDs)
	if err != nil {
		slog.Error("ListMembers failed", "group_id", groupID, "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	resp := api.MembersResponse{Members: make([]api.Member, 0, len(group.MemberIDs))}
	for _, id := range group.MemberIDs {
		user := users[id]
		m := api.Member{UserID: id, Name: user.FullName()}
		if user != nil {
			m.FirstName = user.FirstName
			m.LastName = user.LastName
			m.Phone = user.Phone
		}
		resp.Members = append(resp.Members, m)
	}

	writeJSON(w, http.StatusOK, resp)
}

// notifyGroup composes a "going home" message for the sender's group. With a
// recipient_id only that member is targeted.
func (s *Server) notifyGroup(w http.ResponseWriter, r *http.Request) {
	var req api.NotifyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.UserID == "" {
		writeDetail(w, http.StatusUnprocessableEntity, "user_id is required")
		return
	}
	if !s.authorize(w, r, req.UserID) {
		return
	}

	slog.Info("NotifyGroup request received", "user_id", req.UserID, "group_id", req.GroupID, "recipient_id", req.RecipientID)

	if !s.limiter.Allow(req.UserID) {
		s.metrics.RateLimited.Inc()
		slog.Warn("NotifyGroup rate limited", "user_id", req.UserID)
		writeDetail(w, http.StatusTooManyRequests, "Too many notifications. Try again in a minute.")
		return
	}

	var (
		group *models.Group
		err   error
	)
	if req.GroupID == "" {
		group, err = s.store.FindGroupByMember(r.Context(), req.UserID)
		if errors.Is(err, storage.ErrNotFound) {
			writeDetail(w, http.StatusNotFound, "You are not in a group.")
			return
		}
	} else {
		group, err = s.store.GetGroup(r.Context(), req.GroupID)
		if errors.Is(err, storage.ErrNotFound) {
			writeDetail(w, http.StatusNotFound, "Group not found")
			return
		}
	}
	if err != nil {
		slog.Error("NotifyGroup failed", "user_id", req.UserID, "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	if !group.HasMember(req.UserID) {
		writeDetail(w, http.StatusForbidden, "You are not in this group.")
		return
	}
	if req.RecipientID != "" && (req.RecipientID == req.UserID || !group.HasMember(req.RecipientID)) {
		writeDetail(w, http.StatusForbidden, "Recipient is not in this group.")
		return
	}

	user, err := s.store.GetUser(r.Context(), req.UserID)
	if err != nil {
		slog.Error("NotifyGroup failed", "user_id", req.UserID, "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	message := goingHomeMessage(user.FullName(), req.Message)
	notified := len(group.MemberIDs) - 1
	if req.RecipientID != "" {
		notified = 1
	}

	s.metrics.Notifications.Inc()
	slog.Info("NotifyGroup successful", "group_id", group.ID, "notified_count", notified, "message", message)

	writeJSON(w, http.StatusOK, api.NotifyResponse{
		OK:            true,
		NotifiedCount: notified,
		Message:       message,
	})
}

func goingHomeMessage(name, bac string) string {
	if bac == "" {
		return fmt.Sprintf("%s is going home.", name)
	}
	return fmt.Sprintf("%s is going home. Status: BAC %s", name, bac)
}
