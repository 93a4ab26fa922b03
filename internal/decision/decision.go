// Package decision implements the deterministic precedence ladder of spec
// §4.8: the first rule that fires produces the terminal (status, score,
// reason). Exactly one rule fires for any signal bag.
package decision

import (
	"github.com/devyanshu/mailcheck/internal/model"
	"github.com/devyanshu/mailcheck/internal/scoring"
)

// Decide evaluates the signal bag top to bottom against the ladder in spec
// §4.8 and returns the terminal verdict. Callers are expected to have
// already short-circuited resolution errors (no MX / MX timeout) before
// reaching here — see internal/worker's pipeline for that boundary.
func Decide(signal model.SignalBag) (status model.VerificationStatus, score int, reason string) {
	// 1. Invalid syntax.
	if !signal.SyntaxValid {
		return model.Undeliverable, 0, "Invalid syntax"
	}

	// 2. Disposable domain.
	if signal.IsDisposable {
		return model.Risky, 40, "Disposable domain"
	}

	// 3 & 4. Explicit SMTP evidence.
	if signal.SMTP != nil {
		switch signal.SMTP.Status {
		case model.SMTPInvalid:
			return model.Undeliverable, 10, "Mailbox does not exist"
		case model.SMTPDeliverable:
			return model.Deliverable, 95, "SMTP mailbox exists"
		}
	}

	// 5. Catch-all domain.
	if signal.IsCatchAll {
		return model.Risky, 60, "Catch-all domain"
	}

	// 6. Role-based email.
	if signal.IsRole {
		return model.Risky, 50, "Role-based email"
	}

	// 7. Free provider heuristic, gated by username strength.
	if signal.IsFreeProvider {
		switch signal.UsernameStrength {
		case "weak":
			return model.Risky, 55, "Low confidence username on free provider"
		case "strong":
			return model.Deliverable, 95, "Free provider heuristic deliverable"
		default:
			return model.Deliverable, 85, "Free provider heuristic deliverable"
		}
	}

	// 8. SMTP connection timeout.
	if signal.SMTPTimedOut {
		return model.Unknown, 30, "SMTP connection timeout"
	}

	// 9. Commercial promotion rule: infra confidence substitutes for
	// inconclusive SMTP evidence.
	if signal.Infra != nil {
		confidence := scoring.CommercialConfidence(signal.Infra)
		if confidence >= 20 {
			s := 70 + confidence
			if s > 90 {
				s = 90
			}
			return model.Deliverable, s, "High probability of delivery"
		}
		return model.Risky, 20, "Low domain trust"
	}

	// 10. Fallback.
	return model.Unknown, 25, "Insufficient data"
}
