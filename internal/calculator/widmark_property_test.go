package calculator

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/mmynk/saferound/internal/models"
)

// TestWidmarkProperties checks the invariants of the decay model over random inputs.
func TestWidmarkProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	sexes := gen.OneConstOf(models.SexMale, models.SexFemale)

	properties.Property("BAC is never negative", prop.ForAll(
		func(weight, grams float64, minutes int, sex models.Sex) bool {
			bac, err := WidmarkBAC(weight, sex, grams, time.Duration(minutes)*time.Minute)
			return err == nil && bac >= 0
		},
		gen.Float64Range(30, 200),
		gen.Float64Range(0, 500),
		gen.IntRange(0, 48*60),
		sexes,
	))

	properties.Property("BAC does not increase as time passes", prop.ForAll(
		func(weight, grams float64, minutes, extra int, sex models.Sex) bool {
			earlier, err1 := WidmarkBAC(weight, sex, grams, time.Duration(minutes)*time.Minute)
			later, err2 := WidmarkBAC(weight, sex, grams, time.Duration(minutes+extra)*time.Minute)
			return err1 == nil && err2 == nil && later <= earlier
		},
		gen.Float64Range(30, 200),
		gen.Float64Range(0, 500),
		gen.IntRange(0, 24*60),
		gen.IntRange(0, 24*60),
		sexes,
	))

	properties.Property("estimate is deterministic", prop.ForAll(
		func(weight, grams float64, minutes int, sex models.Sex) bool {
			a, _ := WidmarkBAC(weight, sex, grams, time.Duration(minutes)*time.Minute)
			b, _ := WidmarkBAC(weight, sex, grams, time.Duration(minutes)*time.Minute)
			return a == b
		},
		gen.Float64Range(30, 200),
		gen.Float64Range(0, 500),
		gen.IntRange(0, 24*60),
		sexes,
	))

	properties.Property("female peak exceeds male peak for equal mass and weight", prop.ForAll(
		func(weight, grams float64) bool {
			return PeakBAC(weight, models.SexFemale, grams) > PeakBAC(weight, models.SexMale, grams)
		},
		gen.Float64Range(30, 200),
		gen.Float64Range(1, 500),
	))

	properties.TestingRun(t)
}
