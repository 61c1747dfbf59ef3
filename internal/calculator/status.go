package calculator

import "github.com/mmynk/saferound/internal/models"

// Traffic-light thresholds used by the estimate endpoint.
const (
	YellowThreshold = 0.08
	RedThreshold    = 0.12
)

// Classify maps a BAC to its traffic-light status.
func Classify(bac float64) models.BACStatus {
	switch {
	case bac >= RedThreshold:
		return models.BACStatusRed
	case bac >= YellowThreshold:
		return models.BACStatusYellow
	default:
		return models.BACStatusGreen
	}
}

// StatusText is the short dashboard label for a BAC value.
func StatusText(bac float64) string {
	switch {
	case bac <= 0:
		return "You are sober"
	case bac < 0.04:
		return "Drinking light, relaxed"
	case bac < 0.08:
		return "Reduced inhibition"
	case bac < 0.15:
		return "You CANNOT drive"
	case bac < 0.20:
		return "Blackout possible soon"
	default:
		return "Coma is possible"
	}
}

// SlowReactionMs is the average latency above which a reaction test suggests impairment.
const SlowReactionMs = 400.0

// Recommend produces rule-based guidance for a BAC and optional average
// reaction latency in milliseconds.
func Recommend(bac float64, reactionMs *float64) models.Recommendation {
	var text string
	switch {
	case bac >= 0.15:
		text = "High BAC. Do not drive. Consider a ride share or designated driver."
	case bac >= 0.08:
		text = "BAC at or above legal limit. Do not drive."
	case bac > 0:
		text = "You have consumed alcohol. Allow time before driving or use a ride share."
	default:
		text = "You are sober. Stay safe."
	}
	if reactionMs != nil && *reactionMs > SlowReactionMs {
		text += " Your reaction time suggests impairment."
	}

	score := int(100 - bac*500)
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	return models.Recommendation{
		SobrietyScore: score,
		Text:          text,
		IsEmergency:   false,
	}
}
