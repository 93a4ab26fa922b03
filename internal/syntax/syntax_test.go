package syntax_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/devyanshu/mailcheck/internal/syntax"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		email string
		ok    bool
	}{
		{"plain address", "john.doe@example.com", true},
		{"missing at", "john.doeexample.com", false},
		{"double at", "john@doe@example.com", false},
		{"leading dot local", ".john@example.com", false},
		{"double dot local", "john..doe@example.com", false},
		{"no tld", "john@example", false},
		{"label too long", "john@" + string(make([]byte, 64)) + ".com", false},
		{"empty", "", false},
		{"unicode domain", "user@münchen.de", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := syntax.Validate(tt.email)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestValidate_LowercasesAndConvertsIDN(t *testing.T) {
	parsed, ok := syntax.Validate("User@München.de")
	assert.True(t, ok)
	assert.Equal(t, "user", parsed.Local)
	assert.Equal(t, "xn--mnchen-3ya.de", parsed.Domain)
}

func TestClassifyUsername(t *testing.T) {
	assert.Equal(t, syntax.ClassRole, syntax.ClassifyUsername("admin"))
	assert.Equal(t, syntax.ClassHuman, syntax.ClassifyUsername("john.doe"))
	assert.Equal(t, syntax.ClassRandom, syntax.ClassifyUsername("a1b2c3d4"))
	assert.Equal(t, syntax.ClassGeneric, syntax.ClassifyUsername("x7"))
}

func TestUsernameStrength(t *testing.T) {
	assert.Equal(t, "strong", syntax.UsernameStrength(syntax.ClassHuman))
	assert.Equal(t, "normal", syntax.UsernameStrength(syntax.ClassGeneric))
	assert.Equal(t, "weak", syntax.UsernameStrength(syntax.ClassRole))
	assert.Equal(t, "weak", syntax.UsernameStrength(syntax.ClassRandom))
}

func TestClassifyDomain(t *testing.T) {
	tests := []struct {
		domain string
		want   syntax.DomainType
		smtp   bool
	}{
		{"mailinator.com", syntax.DomainDisposable, false},
		{"privaterelay.appleid.com", syntax.DomainPrivateRelay, false},
		{"gmail.com", syntax.DomainUnverifiablePersonal, false},
		{"mit.edu", syntax.DomainInstitutional, false},
		{"acme.io", syntax.DomainBusiness, true},
	}
	for _, tt := range tests {
		t.Run(tt.domain, func(t *testing.T) {
			got := syntax.ClassifyDomain(tt.domain)
			assert.Equal(t, tt.want, got.Type)
			assert.Equal(t, tt.smtp, got.SMTPVerifiable)
		})
	}
}
