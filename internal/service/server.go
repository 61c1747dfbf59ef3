// Package service implements the SafeRound HTTP API over a storage.Store.
package service

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"

	"github.com/mmynk/saferound/internal/auth"
	"github.com/mmynk/saferound/internal/middleware"
	"github.com/mmynk/saferound/internal/models"
	"github.com/mmynk/saferound/internal/storage"
	"github.com/mmynk/saferound/pkg/api"
)

// DefaultNotifyPerMinute is the default per-user budget for group pushes.
const DefaultNotifyPerMinute = 6

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// Server serves the SafeRound API.
type Server struct {
	store   storage.Store
	jwt     *auth.JWTManager
	metrics *middleware.Metrics
	limiter *userLimiter
	newCode func() string
	now     func() time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithJWT requires a valid bearer token on /groups and /users routes, and
// requires its subject to match the user the request acts for.
func WithJWT(m *auth.JWTManager) Option {
	return func(s *Server) { s.jwt = m }
}

// WithMetrics records request metrics and serves them at /metrics.
func WithMetrics(m *middleware.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithNotifyRate sets how many group pushes a user may send per minute.
func WithNotifyRate(perMinute int) Option {
	return func(s *Server) { s.limiter = newUserLimiter(perMinute) }
}

// WithCodeGenerator overrides the random join code generator.
func WithCodeGenerator(f func() string) Option {
	return func(s *Server) { s.newCode = f }
}

// WithClock overrides the time source used for drink cooldowns.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// New creates a Server with the given storage backend.
func New(store storage.Store, opts ...Option) *Server {
	s := &Server{
		store:   store,
		limiter: newUserLimiter(DefaultNotifyPerMinute),
		newCode: randomCode,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = middleware.NewMetrics()
	}
	return s
}

// Handler returns the routed API with logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	authed := middleware.RequireAuth(s.jwt, writeError)

	route := func(pattern string, h http.HandlerFunc, protected bool) {
		var handler http.Handler = h
		if protected {
			handler = authed(handler)
		}
		mux.Handle(pattern, s.metrics.Instrument(pattern, handler))
	}

	route("GET "+api.PathHealth, s.health, false)
	mux.Handle("GET "+api.PathMetrics, s.metrics.Handler())

	route("POST "+api.PathEstimate, s.estimateBAC, false)
	route("POST "+api.PathRecommendation, s.recommendation, false)

	route("POST "+api.PathGroups, s.createGroup, true)
	route("POST "+api.PathJoinGroup, s.joinGroup, true)
	route("GET "+api.PathListGroups, s.listGroups, true)
	route("GET /groups/{group_id}/members", s.listMembers, true)
	route("POST "+api.PathNotify, s.notifyGroup, true)

	route("PUT /users/{user_id}", s.putUser, true)
	route("GET /users/{user_id}", s.getUser, true)
	route("PATCH /users/{user_id}/cut-off", s.setCutOff, true)

	route("POST "+api.PathValidateDrink, s.validateDrink, false)

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeDetail(w, http.StatusNotFound, "Not Found")
	})

	return middleware.Logging(mux)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, api.HealthResponse{Status: "ok"})
}

// authorize checks that the authenticated caller is userID. It always passes
// when tokens are not required.
func (s *Server) authorize(w http.ResponseWriter, r *http.Request, userID string) bool {
	if s.jwt == nil {
		return true
	}
	if middleware.GetUserID(r.Context()) != userID {
		writeDetail(w, http.StatusForbidden, "token does not match user")
		return false
	}
	return true
}

// randomCode returns six random digits.
func randomCode() string {
	var b strings.Builder
	for i := 0; i < models.GroupCodeLength; i++ {
		b.WriteByte(byte('0' + rand.IntN(10)))
	}
	return b.String()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeDetail(w, status, detail(status, err))
}

func writeDetail(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, api.ErrorResponse{Detail: msg})
}

// detail hides internal error text behind a generic message.
func detail(status int, err error) string {
	if status >= 500 {
		return http.StatusText(status)
	}
	return err.Error()
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusUnprocessableEntity, fmt.Errorf("invalid request body: %w", err))
		return false
	}
	return true
}
