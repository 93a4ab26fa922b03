package reputation_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/devyanshu/mailcheck/internal/model"
	"github.com/devyanshu/mailcheck/internal/reputation"
)

func TestScore_InsufficientHistory(t *testing.T) {
	entry := model.ReputationEntry{Total: 4, Deliverable: 4}
	score, ok := reputation.Score(entry)
	assert.False(t, ok)
	assert.Equal(t, 0, score)
}

func TestScore_Formula(t *testing.T) {
	// 8 deliverable, 1 undeliverable, 1 risky out of 10:
	// 40*0.8 - 50*0.1 - 20*0.1 = 32 - 5 - 2 = 25
	entry := model.ReputationEntry{Total: 10, Deliverable: 8, Undeliverable: 1, Risky: 1}
	score, ok := reputation.Score(entry)
	assert.True(t, ok)
	assert.Equal(t, 25, score)
}

func TestTrustLevel_Buckets(t *testing.T) {
	cases := []struct {
		name  string
		entry model.ReputationEntry
		want  string
	}{
		{"too little history", model.ReputationEntry{Total: 2, Deliverable: 2}, "unknown"},
		{"high", model.ReputationEntry{Total: 10, Deliverable: 10}, "high"},
		{"medium", model.ReputationEntry{Total: 10, Deliverable: 7, Undeliverable: 1, Risky: 1}, "medium"},
		{"low", model.ReputationEntry{Total: 10, Deliverable: 4, Undeliverable: 2, Risky: 1}, "low"},
		{"unknown from negative score", model.ReputationEntry{Total: 10, Undeliverable: 10}, "unknown"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, reputation.TrustLevel(tc.entry))
		})
	}
}
