package models

import "time"

// StandardDrinkGrams is the reference mass of pure alcohol in one standard drink.
const StandardDrinkGrams = 14.0

// DrinkSource records how a drink entered the ledger.
type DrinkSource string

const (
	// DrinkSourceManual is a drink logged by an explicit user action.
	DrinkSourceManual DrinkSource = "manual"

	// DrinkSourceTag is a drink logged from a proximity/tag scan payload.
	DrinkSourceTag DrinkSource = "tag"

	// DrinkSourceDefault is a tag scan whose payload was unusable, logged as a standard drink.
	DrinkSourceDefault DrinkSource = "default"
)

// DrinkEvent is one drink in the ledger. Events are never mutated; the only
// removal allowed is undoing the most recently added one.
type DrinkEvent struct {
	// ID is the unique identifier for the event (UUID format).
	ID string

	// MassGrams is the mass of pure alcohol ingested. Always positive.
	MassGrams float64

	// OccurredAt is when the drink was logged.
	OccurredAt time.Time

	// Source records whether the drink was logged manually or from a scan.
	Source DrinkSource
}

// DrinkCandidate is a drink produced by an event source that has not yet been
// appended to a ledger.
type DrinkCandidate struct {
	MassGrams float64
	Source    DrinkSource
}

// DrinkRecord is a validated drink persisted by the server for cooldown checks.
type DrinkRecord struct {
	ID           string
	UserID       string
	DrinkID      string
	AlcoholGrams float64

	// Timestamp is the Unix timestamp when the drink was scanned.
	Timestamp int64
}
