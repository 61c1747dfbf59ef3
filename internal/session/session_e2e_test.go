package session

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/saferound/internal/models"
	"github.com/mmynk/saferound/internal/remote"
	"github.com/mmynk/saferound/internal/service"
	"github.com/mmynk/saferound/internal/storage/sqlite"
)

// TestAgainstService runs two sessions against the real API.
func TestAgainstService(t *testing.T) {
	store, err := sqlite.New(filepath.Join(t.TempDir(), "e2e.db"))
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.UpsertUser(ctx, &models.User{ID: "alice", FirstName: "Alice", LastName: "Smith"}))
	require.NoError(t, store.UpsertUser(ctx, &models.User{ID: "bob", FirstName: "Bob", LastName: "Jones"}))

	codes := []string{"123456"}
	srv := httptest.NewServer(service.New(store, service.WithCodeGenerator(func() string {
		c := codes[0]
		codes = codes[1:]
		return c
	})).Handler())
	defer srv.Close()

	c := clockwork.NewFakeClockAt(time.Date(2026, 3, 14, 22, 0, 0, 0, time.UTC))
	client := remote.New(srv.URL)

	alice := New("alice", WithClock(c), WithRemote(client), WithPollInterval(0), WithBiometrics(models.UserBiometrics{WeightKg: 70, Sex: models.SexMale}))
	defer alice.Close()
	bob := New("bob", WithClock(c), WithRemote(client), WithPollInterval(0), WithBiometrics(models.UserBiometrics{WeightKg: 80, Sex: models.SexMale}))
	defer bob.Close()

	created, err := alice.Groups().CreateGroup(ctx, "alice", "")
	require.NoError(t, err)
	assert.Equal(t, "123456", created.Code)

	roster, err := bob.Groups().JoinGroup(ctx, "123-456", "bob")
	require.NoError(t, err)
	require.Len(t, roster.Members, 2)
	assert.Equal(t, "Alice Smith", roster.Members[0].Name)
	assert.Equal(t, "Bob Jones", roster.Members[1].Name)

	members, err := alice.Groups().RefreshMembers(ctx)
	require.NoError(t, err)
	assert.Len(t, members, 2)

	alice.AddStandardDrink()
	alice.AddStandardDrink()
	c.Advance(time.Hour)

	result, err := alice.Estimate(ctx)
	require.NoError(t, err)
	assert.True(t, result.FromOracle)
	assert.InDelta(t, 0.0438, result.Reading.Value, 0.0001)

	toast, err := alice.NotifyGroup(ctx)
	require.NoError(t, err)
	assert.True(t, toast.OK)
	assert.Equal(t, "You notified your group: BAC status is 0.04", toast.Message)

	toast, err = alice.AlertMember(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, "Alert sent to Bob Jones.", toast.Message)
}
