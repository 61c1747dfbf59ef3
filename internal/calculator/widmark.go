package calculator

import (
	"fmt"
	"math"
	"time"

	"github.com/mmynk/saferound/internal/models"
)

// Widmark constants. These are textbook approximations, not values validated
// against any particular population.
const (
	RMale          = 0.68
	RFemale        = 0.55
	BetaPerHour    = 0.015
	gramsPerKg     = 1000.0
	percentPerUnit = 100.0
)

// DistributionRatio returns the Widmark body-water ratio r for sex.
func DistributionRatio(sex models.Sex) float64 {
	if sex == models.SexMale {
		return RMale
	}
	return RFemale
}

// PeakBAC is the BAC the given mass would produce with no elimination.
func PeakBAC(weightKg float64, sex models.Sex, alcoholGrams float64) float64 {
	weightGrams := weightKg * gramsPerKg
	return alcoholGrams / (weightGrams * DistributionRatio(sex)) * percentPerUnit
}

// WidmarkBAC computes BAC as a percentage.
// Based on the algorithm: bac = max(0, mass / (weight_g × r) × 100 − β × hours)
//
// elapsed is wall-clock time since the first drink. The result is never negative.
func WidmarkBAC(weightKg float64, sex models.Sex, alcoholGrams float64, elapsed time.Duration) (float64, error) {
	if weightKg <= 0 || math.IsNaN(weightKg) || math.IsInf(weightKg, 0) {
		return 0, fmt.Errorf("weight must be positive, got %v", weightKg)
	}
	if !sex.Valid() {
		return 0, fmt.Errorf("invalid sex %q", sex)
	}
	if alcoholGrams < 0 || math.IsNaN(alcoholGrams) {
		return 0, fmt.Errorf("alcohol mass cannot be negative, got %v", alcoholGrams)
	}
	if alcoholGrams == 0 {
		return 0, nil
	}
	if elapsed < 0 {
		elapsed = 0
	}

	eliminated := BetaPerHour * elapsed.Hours()
	return math.Max(0, PeakBAC(weightKg, sex, alcoholGrams)-eliminated), nil
}

// Round4 rounds a BAC to four decimals, the precision the service reports.
func Round4(bac float64) float64 {
	return math.Round(bac*10000) / 10000
}

// FormatBAC renders a BAC with two decimals, e.g. "0.04".
func FormatBAC(bac float64) string {
	return fmt.Sprintf("%.2f", bac)
}
