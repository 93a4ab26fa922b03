package scoring_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/devyanshu/mailcheck/internal/model"
	"github.com/devyanshu/mailcheck/internal/scoring"
)

func intPtr(n int) *int { return &n }

func TestScoreDomainInfra_StrongDomain(t *testing.T) {
	snap := &model.DomainInfraSnapshot{
		DomainAgeDays: intPtr(1000),
		HasSPF:        true,
		HasDMARC:      true,
		WebStatus:     model.WebActive,
		HTTPS:         true,
	}
	got := scoring.ScoreDomainInfra(snap)
	assert.Equal(t, 100, got.Score)
	assert.NotEmpty(t, got.Reasons)
}

func TestScoreDomainInfra_WeakDomain(t *testing.T) {
	snap := &model.DomainInfraSnapshot{
		DomainAgeDays: intPtr(10),
		HasSPF:        false,
		HasDMARC:      false,
		WebStatus:     model.WebParking,
		HTTPS:         false,
	}
	got := scoring.ScoreDomainInfra(snap)
	assert.Equal(t, 0, got.Score)
}

func TestScoreDomainInfra_NoAgeData(t *testing.T) {
	snap := &model.DomainInfraSnapshot{WebStatus: model.WebNone}
	got := scoring.ScoreDomainInfra(snap)
	// base 50, no SPF -20, no DMARC -10, no website -15, no https -5 = 0
	assert.Equal(t, 0, got.Score)
}

func TestCommercialConfidence(t *testing.T) {
	active := &model.DomainInfraSnapshot{
		WebStatus:  model.WebActive,
		HTTPS:      true,
		Title:      "Acme Inc",
		MetaDesc:   "we sell widgets",
		HasFavicon: true,
	}
	assert.Equal(t, 70, scoring.CommercialConfidence(active))

	parked := &model.DomainInfraSnapshot{WebStatus: model.WebParking}
	assert.Equal(t, -30, scoring.CommercialConfidence(parked))

	none := &model.DomainInfraSnapshot{WebStatus: model.WebNone}
	assert.Equal(t, 0, scoring.CommercialConfidence(none))
}
