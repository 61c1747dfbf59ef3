package notify

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/saferound/internal/models"
	"github.com/mmynk/saferound/internal/remote"
	"github.com/mmynk/saferound/pkg/api"
)

type fakeNotifier struct {
	requests []api.NotifyRequest
	err      error
}

func (f *fakeNotifier) Notify(_ context.Context, req api.NotifyRequest) (api.NotifyResponse, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return api.NotifyResponse{}, f.err
	}
	return api.NotifyResponse{OK: true, NotifiedCount: 2}, nil
}

var now = time.Date(2026, 3, 14, 23, 0, 0, 0, time.UTC)

func TestNotifyGroup(t *testing.T) {
	n := &fakeNotifier{}
	d := New(n, WithClock(clockwork.NewFakeClockAt(now)))

	toast := d.NotifyGroup(context.Background(), "alice", "g-1", 0.0438)

	assert.True(t, toast.OK)
	assert.Equal(t, "You notified your group: BAC status is 0.04", toast.Message)
	assert.Equal(t, now.Add(ToastDuration), toast.ExpiresAt)

	require.Len(t, n.requests, 1)
	assert.Equal(t, api.NotifyRequest{UserID: "alice", Message: "0.04", GroupID: "g-1"}, n.requests[0])
}

func TestNotifyGroupFailureIsNotRetried(t *testing.T) {
	n := &fakeNotifier{err: &remote.APIError{StatusCode: http.StatusNotFound, Detail: "You are not in a group."}}
	d := New(n, WithClock(clockwork.NewFakeClockAt(now)))

	toast := d.NotifyGroup(context.Background(), "alice", "g-1", 0.1)

	assert.False(t, toast.OK)
	assert.Equal(t, "Could not notify your group: You are not in a group.", toast.Message)
	assert.Len(t, n.requests, 1)
}

func TestNotifyWithoutGroupSendsNothing(t *testing.T) {
	n := &fakeNotifier{}
	d := New(n)

	toast := d.NotifyGroup(context.Background(), "alice", "", 0.1)
	assert.False(t, toast.OK)
	assert.Equal(t, "Could not notify your group: "+ErrNoGroup.Error(), toast.Message)
	assert.Empty(t, n.requests)

	toast = d.Alert(context.Background(), "alice", "", models.Member{UserID: "bob"}, 0.1)
	assert.False(t, toast.OK)
	assert.Empty(t, n.requests)
}

func TestNotifyGroupTimeout(t *testing.T) {
	n := &fakeNotifier{err: context.DeadlineExceeded}
	d := New(n)

	toast := d.NotifyGroup(context.Background(), "alice", "g-1", 0.1)
	assert.False(t, toast.OK)
	assert.Contains(t, toast.Message, "timed out")
}

func TestNotifyRequiresUser(t *testing.T) {
	n := &fakeNotifier{}
	d := New(n)

	toast := d.NotifyGroup(context.Background(), "", "", 0.1)
	assert.False(t, toast.OK)
	assert.Empty(t, n.requests)
}

func TestAlert(t *testing.T) {
	n := &fakeNotifier{}
	d := New(n, WithClock(clockwork.NewFakeClockAt(now)))
	bob := models.Member{UserID: "bob", Name: "Bob Jones"}

	toast := d.Alert(context.Background(), "alice", "g-1", bob, 0.09)

	assert.True(t, toast.OK)
	assert.Equal(t, "Alert sent to Bob Jones.", toast.Message)
	require.Len(t, n.requests, 1)
	assert.Equal(t, "bob", n.requests[0].RecipientID)
	assert.Equal(t, "0.09", n.requests[0].Message)
}

func TestAlertFailure(t *testing.T) {
	n := &fakeNotifier{err: errors.New("connection refused")}
	d := New(n)

	toast := d.Alert(context.Background(), "alice", "g-1", models.Member{UserID: "bob", FirstName: "Bob"}, 0.09)
	assert.False(t, toast.OK)
	assert.Equal(t, "Could not alert Bob: connection refused", toast.Message)
}

func TestToastExpired(t *testing.T) {
	toast := Toast{ExpiresAt: now.Add(ToastDuration)}
	assert.False(t, toast.Expired(now))
	assert.True(t, toast.Expired(now.Add(ToastDuration)))
}
