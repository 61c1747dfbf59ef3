package models

import (
	"fmt"
	"math"
	"strings"
)

// Sex is the biological sex used to pick the Widmark distribution ratio.
type Sex string

const (
	SexMale   Sex = "male"
	SexFemale Sex = "female"
)

// ParseSex normalizes a user-supplied sex value.
func ParseSex(s string) (Sex, error) {
	switch Sex(strings.ToLower(strings.TrimSpace(s))) {
	case SexMale:
		return SexMale, nil
	case SexFemale:
		return SexFemale, nil
	default:
		return "", fmt.Errorf("invalid sex %q: must be male or female", s)
	}
}

// Valid reports whether s is one of the known values.
func (s Sex) Valid() bool {
	return s == SexMale || s == SexFemale
}

// UserBiometrics holds the inputs the BAC model needs about the drinker.
type UserBiometrics struct {
	WeightKg float64
	Sex      Sex
}

// Valid reports whether the biometrics are complete enough to estimate BAC.
func (b UserBiometrics) Valid() bool {
	if b.WeightKg <= 0 || math.IsNaN(b.WeightKg) || math.IsInf(b.WeightKg, 0) {
		return false
	}
	return b.Sex.Valid()
}

// User is a profile stored by the group service.
//
// Accounts and credentials are managed elsewhere; the service only keeps what
// it needs to render rosters and evaluate drinks.
type User struct {
	// ID is the external user identifier (e.g. an email or auth subject).
	ID string

	FirstName string
	LastName  string

	// Phone is the primary contact number shown on rosters.
	Phone string

	WeightKg float64
	Sex      Sex

	// IsCutOff denies further drink validation when set.
	IsCutOff bool

	// UpdatedAt is the Unix timestamp of the last profile write.
	UpdatedAt int64
}

// FullName renders the display name used on rosters and notifications.
func (u *User) FullName() string {
	if u == nil {
		return "Unknown"
	}
	first := strings.TrimSpace(u.FirstName)
	last := strings.TrimSpace(u.LastName)
	switch {
	case first != "" && last != "":
		return first + " " + last
	case first != "":
		return first
	case last != "":
		return last
	default:
		return "Unknown"
	}
}
