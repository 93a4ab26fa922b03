package infra

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseCreationAgeDays(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		raw  string
		want int
		ok   bool
	}{
		{
			name: "standard creation date field",
			raw:  "Domain Name: EXAMPLE.COM\nCreation Date: 2020-01-01T00:00:00Z\nRegistrar: Example",
			want: 2192,
			ok:   true,
		},
		{
			name: "registered on field",
			raw:  "Registered on: 01-Jan-2025\n",
			want: 365,
			ok:   true,
		},
		{
			name: "no date present",
			raw:  "Registrar: Example\n",
			want: 0,
			ok:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseCreationAgeDays(tt.raw, now)
			assert.Equal(t, tt.ok, ok)
			if ok {
				assert.InDelta(t, tt.want, got, 1)
			}
		})
	}
}
