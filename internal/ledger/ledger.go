// Package ledger records the drinks of one session and answers the two
// questions the BAC model asks: how much alcohol, and since when.
package ledger

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/mmynk/saferound/internal/models"
)

// ErrInvalidMass is returned when a drink's alcohol mass is not a positive number.
var ErrInvalidMass = errors.New("drink mass must be a positive number of grams")

// Ledger is an append-mostly list of drink events.
// It is safe for concurrent use.
type Ledger struct {
	mu      sync.RWMutex
	clock   clockwork.Clock
	events  []models.DrinkEvent
	version uint64
}

// New creates an empty ledger stamping events with c.
func New(c clockwork.Clock) *Ledger {
	if c == nil {
		c = clockwork.NewRealClock()
	}
	return &Ledger{clock: c}
}

// AddDrink appends a drink of massGrams stamped with the current time.
func (l *Ledger) AddDrink(massGrams float64) (models.DrinkEvent, error) {
	return l.add(massGrams, models.DrinkSourceManual)
}

// AddStandardDrink appends a 14 g standard drink.
func (l *Ledger) AddStandardDrink() models.DrinkEvent {
	event, _ := l.add(models.StandardDrinkGrams, models.DrinkSourceManual)
	return event
}

// AddCandidate appends a drink produced by an event source.
func (l *Ledger) AddCandidate(c models.DrinkCandidate) (models.DrinkEvent, error) {
	source := c.Source
	if source == "" {
		source = models.DrinkSourceManual
	}
	return l.add(c.MassGrams, source)
}

func (l *Ledger) add(massGrams float64, source models.DrinkSource) (models.DrinkEvent, error) {
	if massGrams <= 0 || math.IsNaN(massGrams) || math.IsInf(massGrams, 0) {
		return models.DrinkEvent{}, fmt.Errorf("%w: %v", ErrInvalidMass, massGrams)
	}

	event := models.DrinkEvent{
		ID:         uuid.New().String(),
		MassGrams:  massGrams,
		OccurredAt: l.clock.Now(),
		Source:     source,
	}

	l.mu.Lock()
	l.events = append(l.events, event)
	l.version++
	l.mu.Unlock()

	return event, nil
}

// RemoveLast removes the most recently appended drink and returns it.
// On an empty ledger it does nothing and reports false.
func (l *Ledger) RemoveLast() (models.DrinkEvent, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.events) == 0 {
		return models.DrinkEvent{}, false
	}
	last := l.events[len(l.events)-1]
	l.events = l.events[:len(l.events)-1]
	l.version++
	return last, true
}

// TotalMass is the sum of all current drink masses in grams.
func (l *Ledger) TotalMass() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var total float64
	for _, e := range l.events {
		total += e.MassGrams
	}
	return total
}

// ElapsedSinceFirst is the time from the earliest drink to now.
// It is zero for an empty ledger and never negative.
func (l *Ledger) ElapsedSinceFirst(now time.Time) time.Duration {
	first, ok := l.FirstDrinkAt()
	if !ok {
		return 0
	}
	elapsed := now.Sub(first)
	if elapsed < 0 {
		return 0
	}
	return elapsed
}

// ElapsedMinutes is ElapsedSinceFirst expressed in minutes.
func (l *Ledger) ElapsedMinutes(now time.Time) float64 {
	return l.ElapsedSinceFirst(now).Minutes()
}

// FirstDrinkAt returns the earliest drink time.
func (l *Ledger) FirstDrinkAt() (time.Time, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if len(l.events) == 0 {
		return time.Time{}, false
	}
	first := l.events[0].OccurredAt
	for _, e := range l.events[1:] {
		if e.OccurredAt.Before(first) {
			first = e.OccurredAt
		}
	}
	return first, true
}

// Len is the number of drinks in the ledger.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.events)
}

// Events returns a copy of the drinks in insertion order.
func (l *Ledger) Events() []models.DrinkEvent {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]models.DrinkEvent, len(l.events))
	copy(out, l.events)
	return out
}

// Version increases on every mutation. Callers compare versions to detect
// results computed from a ledger state that has since changed.
func (l *Ledger) Version() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.version
}

// Snapshot is a consistent view of the ledger at one version.
type Snapshot struct {
	TotalMass float64
	FirstAt   time.Time
	Count     int
	Version   uint64
}

// Snapshot reads mass, first drink time and version under one lock.
func (l *Ledger) Snapshot() Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()

	s := Snapshot{Count: len(l.events), Version: l.version}
	for i, e := range l.events {
		s.TotalMass += e.MassGrams
		if i == 0 || e.OccurredAt.Before(s.FirstAt) {
			s.FirstAt = e.OccurredAt
		}
	}
	return s
}

// Elapsed is the time since the snapshot's first drink, zero when empty.
func (s Snapshot) Elapsed(now time.Time) time.Duration {
	if s.Count == 0 {
		return 0
	}
	if d := now.Sub(s.FirstAt); d > 0 {
		return d
	}
	return 0
}
