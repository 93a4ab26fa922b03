// Package scoring computes the domain-infrastructure sub-score and the
// confidence accumulator the decision engine's commercial-promotion rule
// consults.
package scoring

import (
	"github.com/devyanshu/mailcheck/internal/model"
)

const baseScore = 50

// InfraScore is the weighted infra sub-score in [0,100] plus the reasons
// list, one string per active weight.
type InfraScore struct {
	Score   int
	Reasons []string
}

// ScoreDomainInfra applies the additive weights below over a base of 50,
// clamped to [0,100].
func ScoreDomainInfra(snap *model.DomainInfraSnapshot) InfraScore {
	score := baseScore
	var reasons []string

	if snap.DomainAgeDays != nil {
		age := *snap.DomainAgeDays
		switch {
		case age >= 730:
			score += 15
			reasons = append(reasons, "Old domain")
		case age >= 180:
			score += 8
			reasons = append(reasons, "Mid-age domain")
		default:
			score -= 15
			reasons = append(reasons, "New domain")
		}
	}

	if snap.HasSPF {
		score += 10
		reasons = append(reasons, "SPF configured")
	} else {
		score -= 20
		reasons = append(reasons, "No SPF")
	}

	if snap.HasDMARC {
		score += 10
		reasons = append(reasons, "DMARC configured")
	} else {
		score -= 10
		reasons = append(reasons, "No DMARC")
	}

	switch snap.WebStatus {
	case model.WebActive:
		score += 15
		reasons = append(reasons, "Active website")
	case model.WebParking:
		score -= 30
		reasons = append(reasons, "Parking domain")
	default:
		score -= 15
		reasons = append(reasons, "No website")
	}

	if snap.HTTPS {
		score += 5
		reasons = append(reasons, "HTTPS enabled")
	} else {
		score -= 5
		reasons = append(reasons, "No HTTPS")
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	return InfraScore{Score: score, Reasons: reasons}
}

// CommercialConfidence is the accumulator feeding the decision engine's
// commercial-promotion rule: web presence +30, https +10, title +10, meta
// description +10, favicon +10, parking -30. It is deliberately independent
// of ScoreDomainInfra — both are deterministic functions of the same
// snapshot.
func CommercialConfidence(snap *model.DomainInfraSnapshot) int {
	confidence := 0

	if snap.WebStatus == model.WebActive {
		confidence += 30
	}
	if snap.HTTPS {
		confidence += 10
	}
	if snap.Title != "" {
		confidence += 10
	}
	if snap.MetaDesc != "" {
		confidence += 10
	}
	if snap.HasFavicon {
		confidence += 10
	}
	if snap.WebStatus == model.WebParking {
		confidence -= 30
	}

	return confidence
}
