package models

import "time"

// BACReading is a derived BAC value. It is superseded on every recomputation.
type BACReading struct {
	// Value is the BAC as a percentage (e.g. 0.08). Never negative.
	Value float64

	// ComputedAt is the instant the value was computed for.
	ComputedAt time.Time
}

// BACStatus is the traffic-light classification of a BAC value.
type BACStatus string

const (
	BACStatusGreen  BACStatus = "green"
	BACStatusYellow BACStatus = "yellow"
	BACStatusRed    BACStatus = "red"
)

// Recommendation is the guidance returned for a BAC and optional reaction time.
type Recommendation struct {
	// SobrietyScore is 0-100 where 100 is fully sober.
	SobrietyScore int

	// Text is a short, human-readable sentence for the user.
	Text string

	// IsEmergency is set only when immediate danger is suspected.
	IsEmergency bool
}
