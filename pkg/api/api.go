// Package api defines the JSON request and response bodies shared by the
// SafeRound server and its clients.
package api

import "time"

// Route paths served by the reference server.
const (
	PathHealth         = "/health"
	PathMetrics        = "/metrics"
	PathEstimate       = "/bac/estimate"
	PathRecommendation = "/sobriety/recommendation"
	PathGroups         = "/groups"
	PathJoinGroup      = "/groups/join"
	PathListGroups     = "/groups/list"
	PathNotify         = "/groups/notify"
	PathValidateDrink  = "/validate-drink"
)

// MembersPath is the roster path for a group.
func MembersPath(groupID string) string {
	return PathGroups + "/" + groupID + "/members"
}

// UserPath is the profile path for a user.
func UserPath(userID string) string {
	return "/users/" + userID
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

type EstimateRequest struct {
	UserID             string  `json:"user_id"`
	WeightKg           float64 `json:"weight_kg"`
	Sex                string  `json:"sex"`
	AlcoholGrams       float64 `json:"alcohol_grams"`
	TimeElapsedMinutes float64 `json:"time_elapsed_minutes"`
}

type EstimateResponse struct {
	BAC            float64 `json:"bac"`
	Status         string  `json:"status"`
	NotifyGuardian bool    `json:"notify_guardian"`
}

type RecommendationRequest struct {
	BAC            float64  `json:"bac"`
	ReactionTimeMs *float64 `json:"reaction_time_ms,omitempty"`
}

type RecommendationResponse struct {
	SobrietyScore  int    `json:"sobriety_score"`
	Recommendation string `json:"recommendation"`
	IsEmergency    bool   `json:"is_emergency"`
}

type CreateGroupRequest struct {
	UserID string `json:"user_id"`
	Name   string `json:"name,omitempty"`
}

type CreateGroupResponse struct {
	GroupID string `json:"group_id"`
	Code    string `json:"code"`
	Name    string `json:"name"`
}

type JoinGroupRequest struct {
	Code   string `json:"code"`
	UserID string `json:"user_id"`
}

type JoinGroupResponse struct {
	OK      bool   `json:"ok"`
	GroupID string `json:"group_id"`
	Message string `json:"message,omitempty"`
}

type Member struct {
	UserID    string `json:"user_id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
	Name      string `json:"name"`
}

type MembersResponse struct {
	Members []Member `json:"members"`
}

type GroupSummary struct {
	GroupID     string `json:"group_id"`
	Code        string `json:"code"`
	Name        string `json:"name"`
	MemberCount int    `json:"member_count"`
}

type ListGroupsResponse struct {
	Groups []GroupSummary `json:"groups"`
}

// NotifyRequest pushes a status message. Message is normally the formatted
// BAC. RecipientID narrows the push to one member.
type NotifyRequest struct {
	UserID      string `json:"user_id"`
	Message     string `json:"message"`
	GroupID     string `json:"group_id,omitempty"`
	RecipientID string `json:"recipient_id,omitempty"`
}

type NotifyResponse struct {
	OK            bool   `json:"ok"`
	NotifiedCount int    `json:"notified_count"`
	Message       string `json:"message"`
}

type UserProfile struct {
	UserID    string  `json:"user_id,omitempty"`
	FirstName string  `json:"first_name"`
	LastName  string  `json:"last_name"`
	Phone     string  `json:"phone"`
	WeightKg  float64 `json:"weight_kg"`
	Sex       string  `json:"sex"`
	IsCutOff  bool    `json:"is_cut_off"`
}

type OKResponse struct {
	OK bool `json:"ok"`
}

type CutOffResponse struct {
	IsCutOff bool `json:"is_cut_off"`
}

// Drink validation outcomes.
const (
	ReasonOK            = "OK"
	ReasonServiceDenied = "SERVICE_DENIED"
	ReasonCooldown      = "COOLDOWN"
)

type ValidateDrinkRequest struct {
	UserID       string     `json:"user_id"`
	DrinkID      string     `json:"drink_id"`
	AlcoholGrams float64    `json:"alcohol_grams"`
	ScannedAt    *time.Time `json:"scanned_at,omitempty"`
}

type ValidateDrinkResponse struct {
	Allowed     bool       `json:"allowed"`
	Reason      string     `json:"reason"`
	Message     string     `json:"message"`
	LastDrinkAt *time.Time `json:"last_drink_at,omitempty"`
}

type HealthResponse struct {
	Status string `json:"status"`
}
