// Package remote is the HTTP client for the SafeRound service endpoints.
//
// Client implements the capability interfaces the core components depend on:
// estimator.Oracle, groupsync.GroupService and notify.Notifier.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mmynk/saferound/internal/models"
	"github.com/mmynk/saferound/pkg/api"
)

const defaultTimeout = 10 * time.Second

// maxErrorBody caps how much of a failed response is read for its detail.
const maxErrorBody = 4096

// ErrNotFound matches any *APIError with status 404.
var ErrNotFound = errors.New("not found")

// APIError is a non-2xx response from the service.
type APIError struct {
	StatusCode int

	// Detail is the server's "detail" message, if it sent one.
	Detail string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("request failed with status %d: %s", e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("request failed with status %d", e.StatusCode)
}

// Is reports whether target is ErrNotFound and the response was a 404.
func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// Client talks to one SafeRound service.
type Client struct {
	baseURL string
	http    *http.Client
	token   string
	logger  *slog.Logger

	// timeout overrides the HTTP client's timeout when positive.
	timeout time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the per-request timeout. It applies to a copy of the HTTP
// client, so a client passed to WithHTTPClient is left unchanged.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithToken sends token as a bearer credential on every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a Client for the service at baseURL (e.g. "http://localhost:8000").
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.timeout > 0 {
		hc := *c.http
		hc.Timeout = c.timeout
		c.http = &hc
	}
	return c
}

// Estimate is the server-side BAC estimate.
type Estimate struct {
	BAC            float64
	Status         models.BACStatus
	NotifyGuardian bool
}

// EstimateBAC asks the service to compute a BAC.
func (c *Client) EstimateBAC(ctx context.Context, userID string, bio models.UserBiometrics, alcoholGrams, elapsedMinutes float64) (Estimate, error) {
	req := api.EstimateRequest{
		UserID:             userID,
		WeightKg:           bio.WeightKg,
		Sex:                string(bio.Sex),
		AlcoholGrams:       alcoholGrams,
		TimeElapsedMinutes: elapsedMinutes,
	}
	var resp api.EstimateResponse
	if err := c.do(ctx, http.MethodPost, api.PathEstimate, req, &resp); err != nil {
		return Estimate{}, fmt.Errorf("failed to estimate BAC: %w", err)
	}
	return Estimate{
		BAC:            resp.BAC,
		Status:         models.BACStatus(resp.Status),
		NotifyGuardian: resp.NotifyGuardian,
	}, nil
}

// Recommendation fetches guidance for bac and an optional average reaction time.
func (c *Client) Recommendation(ctx context.Context, bac float64, reactionMs *float64) (models.Recommendation, error) {
	req := api.RecommendationRequest{BAC: bac, ReactionTimeMs: reactionMs}
	var resp api.RecommendationResponse
	if err := c.do(ctx, http.MethodPost, api.PathRecommendation, req, &resp); err != nil {
		return models.Recommendation{}, fmt.Errorf("failed to get recommendation: %w", err)
	}
	return models.Recommendation{
		SobrietyScore: resp.SobrietyScore,
		Text:          resp.Recommendation,
		IsEmergency:   resp.IsEmergency,
	}, nil
}

// Recommend returns only the recommendation text.
func (c *Client) Recommend(ctx context.Context, bac float64, reactionMs *float64) (string, error) {
	rec, err := c.Recommendation(ctx, bac, reactionMs)
	if err != nil {
		return "", err
	}
	return rec.Text, nil
}

// CreateGroup creates a group with userID as its first member. An empty name
// lets the server pick its default.
func (c *Client) CreateGroup(ctx context.Context, userID, name string) (models.GroupSummary, error) {
	var resp api.CreateGroupResponse
	req := api.CreateGroupRequest{UserID: userID, Name: name}
	if err := c.do(ctx, http.MethodPost, api.PathGroups, req, &resp); err != nil {
		return models.GroupSummary{}, fmt.Errorf("failed to create group: %w", err)
	}
	return models.GroupSummary{
		GroupID:     resp.GroupID,
		Code:        resp.Code,
		Name:        resp.Name,
		MemberCount: 1,
	}, nil
}

// JoinGroup joins the group with the given code and returns its id.
func (c *Client) JoinGroup(ctx context.Context, code, userID string) (string, error) {
	var resp api.JoinGroupResponse
	req := api.JoinGroupRequest{Code: code, UserID: userID}
	if err := c.do(ctx, http.MethodPost, api.PathJoinGroup, req, &resp); err != nil {
		return "", fmt.Errorf("failed to join group: %w", err)
	}
	if resp.Message != "" {
		c.logger.Debug("Join group", "group_id", resp.GroupID, "message", resp.Message)
	}
	return resp.GroupID, nil
}

// ListMembers fetches a group's roster.
func (c *Client) ListMembers(ctx context.Context, groupID string) ([]models.Member, error) {
	var resp api.MembersResponse
	if err := c.do(ctx, http.MethodGet, api.MembersPath(url.PathEscape(groupID)), nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	members := make([]models.Member, 0, len(resp.Members))
	for _, m := range resp.Members {
		members = append(members, models.Member{
			UserID:    m.UserID,
			Name:      m.Name,
			FirstName: m.FirstName,
			LastName:  m.LastName,
			Phone:     m.Phone,
		})
	}
	return members, nil
}

// ListGroups fetches every group known to the service.
func (c *Client) ListGroups(ctx context.Context) ([]models.GroupSummary, error) {
	var resp api.ListGroupsResponse
	if err := c.do(ctx, http.MethodGet, api.PathListGroups, nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	groups := make([]models.GroupSummary, 0, len(resp.Groups))
	for _, g := range resp.Groups {
		groups = append(groups, models.GroupSummary{
			GroupID:     g.GroupID,
			Code:        g.Code,
			Name:        g.Name,
			MemberCount: g.MemberCount,
		})
	}
	return groups, nil
}

// Notify pushes a status message to the sender's group.
func (c *Client) Notify(ctx context.Context, req api.NotifyRequest) (api.NotifyResponse, error) {
	var resp api.NotifyResponse
	if err := c.do(ctx, http.MethodPost, api.PathNotify, req, &resp); err != nil {
		return api.NotifyResponse{}, fmt.Errorf("failed to notify group: %w", err)
	}
	return resp, nil
}

// PutUser creates or replaces a profile.
func (c *Client) PutUser(ctx context.Context, profile api.UserProfile) error {
	if profile.UserID == "" {
		return errors.New("user id is required")
	}
	var resp api.OKResponse
	if err := c.do(ctx, http.MethodPut, api.UserPath(url.PathEscape(profile.UserID)), profile, &resp); err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}
	return nil
}

// GetUser fetches a profile.
func (c *Client) GetUser(ctx context.Context, userID string) (api.UserProfile, error) {
	var resp api.UserProfile
	if err := c.do(ctx, http.MethodGet, api.UserPath(url.PathEscape(userID)), nil, &resp); err != nil {
		return api.UserProfile{}, fmt.Errorf("failed to get profile: %w", err)
	}
	return resp, nil
}

// ValidateDrink asks the service whether a scanned drink may be served.
func (c *Client) ValidateDrink(ctx context.Context, req api.ValidateDrinkRequest) (api.ValidateDrinkResponse, error) {
	var resp api.ValidateDrinkResponse
	if err := c.do(ctx, http.MethodPost, api.PathValidateDrink, req, &resp); err != nil {
		return api.ValidateDrinkResponse{}, fmt.Errorf("failed to validate drink: %w", err)
	}
	return resp, nil
}

// do sends in as JSON (when non-nil) and decodes a 2xx body into out.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	c.logger.Debug("Remote call", "method", method, "path", path, "status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return apiErr
	}
	var body api.ErrorResponse
	if json.Unmarshal(raw, &body) == nil && body.Detail != "" {
		apiErr.Detail = body.Detail
	}
	return apiErr
}

// Detail returns the server's message for err when it is an *APIError with one.
func Detail(err error) (string, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Detail != "" {
		return apiErr.Detail, true
	}
	return "", false
}
