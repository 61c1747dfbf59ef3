package ledger

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/saferound/internal/models"
)

var start = time.Date(2026, 3, 14, 21, 0, 0, 0, time.UTC)

func TestEmptyLedger(t *testing.T) {
	l := New(clockwork.NewFakeClockAt(start))

	assert.Zero(t, l.TotalMass())
	assert.Zero(t, l.Len())
	assert.Zero(t, l.ElapsedSinceFirst(start.Add(time.Hour)))

	_, ok := l.FirstDrinkAt()
	assert.False(t, ok)
}

func TestRemoveLastOnEmptyIsNoop(t *testing.T) {
	l := New(clockwork.NewFakeClockAt(start))
	v := l.Version()

	_, ok := l.RemoveLast()

	assert.False(t, ok)
	assert.Zero(t, l.TotalMass())
	assert.Equal(t, v, l.Version())
}

func TestAddAndRemove(t *testing.T) {
	c := clockwork.NewFakeClockAt(start)
	l := New(c)

	first := l.AddStandardDrink()
	c.Advance(20 * time.Minute)
	second, err := l.AddDrink(20)
	require.NoError(t, err)

	assert.Equal(t, models.StandardDrinkGrams, first.MassGrams)
	assert.Equal(t, start, first.OccurredAt)
	assert.NotEqual(t, first.ID, second.ID)
	assert.InDelta(t, 34, l.TotalMass(), 1e-9)

	removed, ok := l.RemoveLast()
	require.True(t, ok)
	assert.Equal(t, second.ID, removed.ID)
	assert.InDelta(t, 14, l.TotalMass(), 1e-9)
	assert.Equal(t, 1, l.Len())
}

func TestAddDrinkRejectsInvalidMass(t *testing.T) {
	l := New(clockwork.NewFakeClockAt(start))

	for _, mass := range []float64{0, -14, math.NaN(), math.Inf(1)} {
		_, err := l.AddDrink(mass)
		assert.True(t, errors.Is(err, ErrInvalidMass), "mass %v", mass)
	}
	assert.Zero(t, l.Len())
	assert.Zero(t, l.Version())
}

func TestElapsedSinceFirst(t *testing.T) {
	c := clockwork.NewFakeClockAt(start)
	l := New(c)

	l.AddStandardDrink()
	c.Advance(30 * time.Minute)
	l.AddStandardDrink()
	c.Advance(30 * time.Minute)

	assert.Equal(t, time.Hour, l.ElapsedSinceFirst(c.Now()))
	assert.InDelta(t, 60, l.ElapsedMinutes(c.Now()), 1e-9)
	assert.Zero(t, l.ElapsedSinceFirst(start.Add(-time.Minute)))
}

func TestUndoFirstDrinkMovesFirstTime(t *testing.T) {
	c := clockwork.NewFakeClockAt(start)
	l := New(c)

	l.AddStandardDrink()
	l.RemoveLast()
	c.Advance(time.Hour)
	l.AddStandardDrink()

	first, ok := l.FirstDrinkAt()
	require.True(t, ok)
	assert.Equal(t, start.Add(time.Hour), first)
}

func TestVersionTracksMutations(t *testing.T) {
	l := New(clockwork.NewFakeClockAt(start))

	v0 := l.Version()
	l.AddStandardDrink()
	v1 := l.Version()
	l.RemoveLast()
	v2 := l.Version()

	assert.Greater(t, v1, v0)
	assert.Greater(t, v2, v1)
}

func TestAddCandidate(t *testing.T) {
	l := New(clockwork.NewFakeClockAt(start))

	event, err := l.AddCandidate(models.DrinkCandidate{MassGrams: 21, Source: models.DrinkSourceTag})
	require.NoError(t, err)
	assert.Equal(t, models.DrinkSourceTag, event.Source)

	event, err = l.AddCandidate(models.DrinkCandidate{MassGrams: 14})
	require.NoError(t, err)
	assert.Equal(t, models.DrinkSourceManual, event.Source)
}

func TestSnapshot(t *testing.T) {
	c := clockwork.NewFakeClockAt(start)
	l := New(c)

	empty := l.Snapshot()
	assert.Zero(t, empty.Elapsed(start.Add(time.Hour)))

	l.AddStandardDrink()
	c.Advance(45 * time.Minute)
	l.AddStandardDrink()

	s := l.Snapshot()
	assert.Equal(t, 2, s.Count)
	assert.InDelta(t, 28, s.TotalMass, 1e-9)
	assert.Equal(t, start, s.FirstAt)
	assert.Equal(t, l.Version(), s.Version)
	assert.Equal(t, 45*time.Minute, s.Elapsed(c.Now()))
}

func TestEventsReturnsCopy(t *testing.T) {
	l := New(clockwork.NewFakeClockAt(start))
	l.AddStandardDrink()

	events := l.Events()
	events[0].MassGrams = 1000

	assert.InDelta(t, 14, l.TotalMass(), 1e-9)
}
