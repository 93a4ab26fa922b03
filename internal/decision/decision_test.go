package decision_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/devyanshu/mailcheck/internal/decision"
	"github.com/devyanshu/mailcheck/internal/model"
)

func TestDecide_InvalidSyntax(t *testing.T) {
	status, score, reason := decision.Decide(model.SignalBag{SyntaxValid: false})
	assert.Equal(t, model.Undeliverable, status)
	assert.Equal(t, 0, score)
	assert.Equal(t, "Invalid syntax", reason)
}

func TestDecide_DisposableDomain(t *testing.T) {
	status, score, _ := decision.Decide(model.SignalBag{SyntaxValid: true, IsDisposable: true})
	assert.Equal(t, model.Risky, status)
	assert.Equal(t, 40, score)
}

func TestDecide_SMTPInvalid(t *testing.T) {
	status, score, _ := decision.Decide(model.SignalBag{
		SyntaxValid: true,
		SMTP:        &model.SMTPProbeResult{Status: model.SMTPInvalid},
	})
	assert.Equal(t, model.Undeliverable, status)
	assert.Equal(t, 10, score)
}

func TestDecide_SMTPDeliverable(t *testing.T) {
	status, score, _ := decision.Decide(model.SignalBag{
		SyntaxValid: true,
		SMTP:        &model.SMTPProbeResult{Status: model.SMTPDeliverable},
	})
	assert.Equal(t, model.Deliverable, status)
	assert.Equal(t, 95, score)
}

func TestDecide_CatchAll(t *testing.T) {
	status, score, _ := decision.Decide(model.SignalBag{SyntaxValid: true, IsCatchAll: true})
	assert.Equal(t, model.Risky, status)
	assert.Equal(t, 60, score)
}

func TestDecide_RoleBased(t *testing.T) {
	status, score, _ := decision.Decide(model.SignalBag{SyntaxValid: true, IsRole: true})
	assert.Equal(t, model.Risky, status)
	assert.Equal(t, 50, score)
}

func TestDecide_FreeProviderByStrength(t *testing.T) {
	weak, weakScore, _ := decision.Decide(model.SignalBag{SyntaxValid: true, IsFreeProvider: true, UsernameStrength: "weak"})
	assert.Equal(t, model.Risky, weak)
	assert.Equal(t, 55, weakScore)

	strong, strongScore, _ := decision.Decide(model.SignalBag{SyntaxValid: true, IsFreeProvider: true, UsernameStrength: "strong"})
	assert.Equal(t, model.Deliverable, strong)
	assert.Equal(t, 95, strongScore)

	normal, normalScore, _ := decision.Decide(model.SignalBag{SyntaxValid: true, IsFreeProvider: true, UsernameStrength: "normal"})
	assert.Equal(t, model.Deliverable, normal)
	assert.Equal(t, 85, normalScore)
}

func TestDecide_SMTPTimeout(t *testing.T) {
	status, score, _ := decision.Decide(model.SignalBag{SyntaxValid: true, SMTPTimedOut: true})
	assert.Equal(t, model.Unknown, status)
	assert.Equal(t, 30, score)
}

func TestDecide_CommercialPromotion(t *testing.T) {
	confident := &model.DomainInfraSnapshot{WebStatus: model.WebActive, HTTPS: true, Title: "Acme"}
	status, score, _ := decision.Decide(model.SignalBag{SyntaxValid: true, Infra: confident})
	assert.Equal(t, model.Deliverable, status)
	assert.LessOrEqual(t, score, 90)

	weak := &model.DomainInfraSnapshot{WebStatus: model.WebNone}
	status2, score2, reason2 := decision.Decide(model.SignalBag{SyntaxValid: true, Infra: weak})
	assert.Equal(t, model.Risky, status2)
	assert.Equal(t, 20, score2)
	assert.Equal(t, "Low domain trust", reason2)
}

func TestDecide_Fallback(t *testing.T) {
	status, score, reason := decision.Decide(model.SignalBag{SyntaxValid: true})
	assert.Equal(t, model.Unknown, status)
	assert.Equal(t, 25, score)
	assert.Equal(t, "Insufficient data", reason)
}
