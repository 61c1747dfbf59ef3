package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/saferound/internal/models"
	"github.com/mmynk/saferound/pkg/api"
)

func newStub(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(h)
	t.Cleanup(server.Close)
	return New(server.URL + "/")
}

func TestAPIErrorMatchesNotFound(t *testing.T) {
	c := newStub(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(api.ErrorResponse{Detail: "Group not found"})
	})

	_, err := c.JoinGroup(context.Background(), "123456", "alice")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "Group not found", apiErr.Detail)

	detail, ok := Detail(err)
	assert.True(t, ok)
	assert.Equal(t, "Group not found", detail)
}

func TestAPIErrorWithoutJSONBody(t *testing.T) {
	c := newStub(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	})

	_, err := c.ListGroups(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Empty(t, apiErr.Detail)
	assert.NotErrorIs(t, err, ErrNotFound)

	_, ok := Detail(err)
	assert.False(t, ok)
}

func TestRequestShape(t *testing.T) {
	var (
		gotPath   string
		gotMethod string
		gotAuth   string
		gotBody   api.RecommendationRequest
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotMethod, gotAuth = r.URL.Path, r.Method, r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(api.RecommendationResponse{SobrietyScore: 80, Recommendation: "Take it slow."})
	}))
	defer server.Close()

	c := New(server.URL, WithToken("tok"))
	ms := 280.0
	text, err := c.Recommend(context.Background(), 0.04, &ms)
	require.NoError(t, err)

	assert.Equal(t, "Take it slow.", text)
	assert.Equal(t, api.PathRecommendation, gotPath)
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, 0.04, gotBody.BAC)
	require.NotNil(t, gotBody.ReactionTimeMs)
	assert.Equal(t, 280.0, *gotBody.ReactionTimeMs)
}

func TestListMembersMapsFields(t *testing.T) {
	c := newStub(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/groups/g-1/members", r.URL.Path)
		_ = json.NewEncoder(w).Encode(api.MembersResponse{Members: []api.Member{
			{UserID: "alice", FirstName: "Alice", LastName: "Smith", Phone: "555", Name: "Alice Smith"},
		}})
	})

	members, err := c.ListMembers(context.Background(), "g-1")
	require.NoError(t, err)
	assert.Equal(t, []models.Member{
		{UserID: "alice", Name: "Alice Smith", FirstName: "Alice", LastName: "Smith", Phone: "555"},
	}, members)
}

func TestEstimateBAC(t *testing.T) {
	c := newStub(t, func(w http.ResponseWriter, r *http.Request) {
		var req api.EstimateRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		assert.Equal(t, "female", req.Sex)
		assert.Equal(t, 90.0, req.TimeElapsedMinutes)
		_ = json.NewEncoder(w).Encode(api.EstimateResponse{BAC: 0.13, Status: "red", NotifyGuardian: true})
	})

	est, err := c.EstimateBAC(context.Background(), "alice", models.UserBiometrics{WeightKg: 55, Sex: models.SexFemale}, 56, 90)
	require.NoError(t, err)
	assert.Equal(t, Estimate{BAC: 0.13, Status: models.BACStatusRed, NotifyGuardian: true}, est)
}

func TestContextCancellation(t *testing.T) {
	release := make(chan struct{})
	c := newStub(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.ListGroups(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestPutUserRequiresID(t *testing.T) {
	c := New("http://127.0.0.1:1")
	assert.Error(t, c.PutUser(context.Background(), api.UserProfile{}))
}

func TestTimeoutLeavesCallerClientUnchanged(t *testing.T) {
	tests := []struct {
		name string
		opts func(hc *http.Client) []Option
	}{
		{"timeout first", func(hc *http.Client) []Option { return []Option{WithTimeout(time.Second), WithHTTPClient(hc)} }},
		{"timeout last", func(hc *http.Client) []Option { return []Option{WithHTTPClient(hc), WithTimeout(time.Second)} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hc := &http.Client{Timeout: time.Minute}
			c := New("http://localhost", tt.opts(hc)...)

			assert.Equal(t, time.Minute, hc.Timeout)
			assert.NotSame(t, hc, c.http)
			assert.Equal(t, time.Second, c.http.Timeout)
		})
	}

	hc := &http.Client{Timeout: time.Minute}
	assert.Same(t, hc, New("http://localhost", WithHTTPClient(hc)).http)
	assert.Equal(t, defaultTimeout, New("http://localhost").http.Timeout)
}
