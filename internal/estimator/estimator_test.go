package estimator

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/saferound/internal/ledger"
	"github.com/mmynk/saferound/internal/models"
)

var start = time.Date(2026, 3, 14, 21, 0, 0, 0, time.UTC)

var male70 = models.UserBiometrics{WeightKg: 70, Sex: models.SexMale}

type fakeOracle struct {
	calls    atomic.Int32
	text     string
	err      error
	block    bool
	lastBAC  float64
	lastReac *float64
}

func (f *fakeOracle) Recommend(ctx context.Context, bac float64, reactionMs *float64) (string, error) {
	f.calls.Add(1)
	f.lastBAC = bac
	f.lastReac = reactionMs
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return f.text, f.err
}

func TestEstimate_EmptyLedgerIsZeroWithoutOracle(t *testing.T) {
	c := clockwork.NewFakeClockAt(start)
	oracle := &fakeOracle{text: "stay safe"}
	e := New(oracle, WithClock(c))

	for _, bio := range []models.UserBiometrics{
		male70,
		{WeightKg: 50, Sex: models.SexFemale},
		{WeightKg: 150, Sex: models.SexMale},
	} {
		res, err := e.Estimate(context.Background(), bio, ledger.New(c), nil)
		require.NoError(t, err)
		assert.Zero(t, res.Reading.Value)
		assert.Equal(t, "BAC 0.00", res.Guidance)
		assert.Equal(t, "You are sober", res.StatusText)
	}
	assert.Zero(t, oracle.calls.Load())
}

func TestEstimate_BiometricsRequired(t *testing.T) {
	c := clockwork.NewFakeClockAt(start)
	oracle := &fakeOracle{text: "x"}
	e := New(oracle, WithClock(c))
	l := ledger.New(c)
	l.AddStandardDrink()

	for _, bio := range []models.UserBiometrics{
		{},
		{WeightKg: 70},
		{Sex: models.SexFemale},
		{WeightKg: -5, Sex: models.SexMale},
		{WeightKg: 70, Sex: "robot"},
	} {
		_, err := e.Estimate(context.Background(), bio, l, nil)
		assert.ErrorIs(t, err, ErrBiometricsRequired)
	}
	assert.Zero(t, oracle.calls.Load())
}

func TestEstimate_Scenario(t *testing.T) {
	c := clockwork.NewFakeClockAt(start)
	l := ledger.New(c)
	l.AddStandardDrink()
	l.AddStandardDrink()
	c.Advance(time.Hour)

	reaction := 272.0
	oracle := &fakeOracle{text: "Allow time before driving."}
	e := New(oracle, WithClock(c))

	res, err := e.Estimate(context.Background(), male70, l, &reaction)
	require.NoError(t, err)

	assert.InDelta(t, 0.0438, res.Reading.Value, 0.0001)
	assert.Equal(t, c.Now(), res.Reading.ComputedAt)
	assert.Equal(t, "Allow time before driving.", res.Guidance)
	assert.True(t, res.FromOracle)
	assert.Equal(t, "Reduced inhibition", res.StatusText)
	assert.Equal(t, models.BACStatusGreen, res.Status)
	assert.Equal(t, l.Version(), res.LedgerVersion)

	assert.InDelta(t, res.Reading.Value, oracle.lastBAC, 1e-12)
	require.NotNil(t, oracle.lastReac)
	assert.Equal(t, 272.0, *oracle.lastReac)
}

func TestEstimate_IsIdempotent(t *testing.T) {
	c := clockwork.NewFakeClockAt(start)
	l := ledger.New(c)
	l.AddDrink(40)
	c.Advance(95 * time.Minute)
	e := New(NoOracle{}, WithClock(c))

	a, err := e.Estimate(context.Background(), male70, l, nil)
	require.NoError(t, err)
	b, err := e.Estimate(context.Background(), male70, l, nil)
	require.NoError(t, err)

	assert.Equal(t, a.Reading, b.Reading)
	assert.Equal(t, a.Guidance, b.Guidance)
}

func TestEstimate_OracleFailureFallsBack(t *testing.T) {
	c := clockwork.NewFakeClockAt(start)
	l := ledger.New(c)
	l.AddStandardDrink()
	l.AddStandardDrink()
	c.Advance(time.Hour)

	e := New(&fakeOracle{err: errors.New("503 service unavailable")}, WithClock(c))

	res, err := e.Estimate(context.Background(), male70, l, nil)
	require.NoError(t, err)
	assert.Equal(t, "BAC 0.04", res.Guidance)
	assert.False(t, res.FromOracle)
}

func TestEstimate_OracleEmptyTextFallsBack(t *testing.T) {
	c := clockwork.NewFakeClockAt(start)
	l := ledger.New(c)
	l.AddStandardDrink()

	res, err := New(&fakeOracle{}, WithClock(c)).Estimate(context.Background(), male70, l, nil)
	require.NoError(t, err)
	assert.False(t, res.FromOracle)
}

func TestEstimate_OracleTimeoutFallsBack(t *testing.T) {
	c := clockwork.NewFakeClockAt(start)
	l := ledger.New(c)
	l.AddStandardDrink()

	e := New(&fakeOracle{block: true}, WithClock(c), WithTimeout(20*time.Millisecond))

	began := time.Now()
	res, err := e.Estimate(context.Background(), male70, l, nil)
	require.NoError(t, err)

	assert.Less(t, time.Since(began), 2*time.Second)
	assert.Equal(t, FallbackGuidance(res.Reading.Value), res.Guidance)
}

func TestEstimate_RedStatusNotifiesGuardian(t *testing.T) {
	c := clockwork.NewFakeClockAt(start)
	l := ledger.New(c)
	_, err := l.AddDrink(100)
	require.NoError(t, err)

	res, err := New(NoOracle{}, WithClock(c)).Estimate(context.Background(), models.UserBiometrics{WeightKg: 60, Sex: models.SexFemale}, l, nil)
	require.NoError(t, err)

	assert.Equal(t, models.BACStatusRed, res.Status)
	assert.True(t, res.NotifyGuardian)
}

func TestLocalOracle(t *testing.T) {
	text, err := LocalOracle{}.Recommend(context.Background(), 0.1, nil)
	require.NoError(t, err)
	assert.Equal(t, "BAC at or above legal limit. Do not drive.", text)
}
