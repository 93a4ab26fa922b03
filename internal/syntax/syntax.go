// Package syntax validates the RFC-shaped grammar of an email address and
// classifies its local-part and domain into the buckets the decision engine
// consumes downstream.
package syntax

import (
	"regexp"
	"strings"

	"golang.org/x/net/idna"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9.!#$%&'*+/=?^_` + "`" + `{|}~-]+@[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(?:\.[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)+$`)

// Parsed is the (local, domain) pair once an address has cleared Validate.
type Parsed struct {
	Local  string
	Domain string
}

// Validate rejects unless the address matches every syntax rule:
// exactly one '@', local-part 1-64 chars with no leading/trailing/consecutive
// dots, domain 1-255 chars with labels 1-63 chars and no leading/trailing
// hyphen, and a total length of at most 254.
func Validate(email string) (Parsed, bool) {
	if len(email) == 0 || len(email) > 254 {
		return Parsed{}, false
	}
	if strings.Count(email, "@") != 1 {
		return Parsed{}, false
	}

	parts := strings.SplitN(email, "@", 2)
	local, domain := parts[0], parts[1]

	if len(local) == 0 || len(local) > 64 {
		return Parsed{}, false
	}
	if strings.HasPrefix(local, ".") || strings.HasSuffix(local, ".") || strings.Contains(local, "..") {
		return Parsed{}, false
	}

	domain, domainOK := toASCIIDomain(domain)
	if !domainOK {
		return Parsed{}, false
	}

	if len(domain) == 0 || len(domain) > 255 {
		return Parsed{}, false
	}
	if strings.HasPrefix(domain, ".") || strings.HasSuffix(domain, ".") || strings.Contains(domain, "..") {
		return Parsed{}, false
	}
	if !strings.Contains(domain, ".") {
		return Parsed{}, false
	}
	for _, label := range strings.Split(domain, ".") {
		if len(label) == 0 || len(label) > 63 {
			return Parsed{}, false
		}
		if strings.HasPrefix(label, "-") || strings.HasSuffix(label, "-") {
			return Parsed{}, false
		}
	}

	if !emailRegex.MatchString(local + "@" + domain) {
		return Parsed{}, false
	}

	return Parsed{Local: strings.ToLower(local), Domain: strings.ToLower(domain)}, true
}

// toASCIIDomain converts an internationalized domain to its Punycode/ASCII
// form for DNS and SMTP use, leaving already-ASCII domains untouched. ok is
// false if the domain contains non-ASCII characters IDNA2008 rejects.
func toASCIIDomain(domain string) (string, bool) {
	domain = strings.ToLower(domain)
	for _, r := range domain {
		if r > 127 {
			ascii, err := idna.Lookup.ToASCII(domain)
			if err != nil {
				return "", false
			}
			return ascii, true
		}
	}
	return domain, true
}

// UsernameClass classifies a local-part into role/human/random/generic.
type UsernameClass string

const (
	ClassRole    UsernameClass = "role"
	ClassHuman   UsernameClass = "human"
	ClassRandom  UsernameClass = "random"
	ClassGeneric UsernameClass = "generic"
)

var roleAccounts = map[string]bool{
	"admin": true, "support": true, "info": true, "sales": true, "contact": true,
	"help": true, "abuse": true, "security": true, "billing": true, "noreply": true,
	"postmaster": true, "webmaster": true, "hello": true, "mail": true, "team": true,
	"office": true, "marketing": true, "staff": true, "newsletter": true,
}

var curatedHumanNames = map[string]bool{
	"carlos": true, "juan": true, "maria": true, "pedro": true, "jose": true,
	"andres": true, "luis": true, "ana": true, "laura": true, "david": true,
	"miguel": true, "sofia": true, "paula": true, "daniel": true,
}

var (
	humanDotPattern   = regexp.MustCompile(`^[a-z]{3,}\.[a-z]{3,}$`)
	humanWordPattern  = regexp.MustCompile(`^[a-z]{4,}$`)
	randomDigitsPattern = regexp.MustCompile(`\d{2,}`)
	randomSandwichPattern = regexp.MustCompile(`[a-z]\d+[a-z]`)
)

// ClassifyUsername applies a fixed precedence: role names first,
// then the human patterns/curated set, then the random markers, defaulting
// to generic.
func ClassifyUsername(local string) UsernameClass {
	local = strings.ToLower(strings.TrimSpace(local))

	if roleAccounts[local] {
		return ClassRole
	}
	if curatedHumanNames[local] || humanDotPattern.MatchString(local) || humanWordPattern.MatchString(local) {
		return ClassHuman
	}
	if randomDigitsPattern.MatchString(local) || randomSandwichPattern.MatchString(local) {
		return ClassRandom
	}
	return ClassGeneric
}

// UsernameStrength maps a username classification onto the weak/normal/strong
// scale the free-provider decision rule consults.
func UsernameStrength(class UsernameClass) string {
	switch class {
	case ClassHuman:
		return "strong"
	case ClassGeneric:
		return "normal"
	default:
		return "weak"
	}
}

// DomainType is the classifier's bucket for a domain.
type DomainType string

const (
	DomainUnverifiablePersonal DomainType = "unverifiable_personal"
	DomainInstitutional        DomainType = "institutional"
	DomainBusiness             DomainType = "business"
	DomainDisposable           DomainType = "disposable"
	DomainPrivateRelay         DomainType = "private_relay"
)

// DomainClassification is the output of ClassifyDomain.
type DomainClassification struct {
	Provider       string
	Type           DomainType
	SMTPVerifiable bool
}

var freeProviders = map[string]bool{
	"gmail.com": true, "googlemail.com": true, "outlook.com": true,
	"hotmail.com": true, "live.com": true, "yahoo.com": true,
	"icloud.com": true, "protonmail.com": true, "gmx.com": true,
	"yandex.com": true, "aol.com": true, "mail.com": true, "zoho.com": true,
}

var institutionalSuffixes = []string{".edu", ".gov", ".mil"}

var disposableSuffixes = []string{
	"mailinator.com", "tempmail.org", "tempmail.com", "10minutemail.com",
	"disposable10min.com", "guerrillamail.com", "trashmail.com",
	"temp-mail.org", "yopmail.com", "maildrop.cc", "dispostable.com",
	"fakeinbox.com", "getnada.com", "throwawaymail.com", "sharklasers.com",
}

var privateRelaySuffixes = []string{
	"privaterelay.appleid.com", "duck.com", "simplelogin.co",
	"relay.firefox.com", "pm.me",
}

// IsDisposable reports whether domain matches (by suffix) a disposable
// mailbox provider.
func IsDisposable(domain string) bool {
	return hasSuffixMatch(domain, disposableSuffixes)
}

// IsPrivateRelay reports whether domain matches a privacy-relay provider.
func IsPrivateRelay(domain string) bool {
	return hasSuffixMatch(domain, privateRelaySuffixes)
}

// IsFreeProvider reports whether domain is a known large consumer mail
// provider (exact match, these don't have meaningful subdomains).
func IsFreeProvider(domain string) bool {
	return freeProviders[strings.ToLower(domain)]
}

func hasSuffixMatch(domain string, suffixes []string) bool {
	domain = strings.ToLower(domain)
	for _, s := range suffixes {
		if domain == s || strings.HasSuffix(domain, "."+s) {
			return true
		}
	}
	return false
}

// ClassifyDomain buckets a domain by provider category. Free providers and
// institutional TLDs are never SMTP-verifiable.
func ClassifyDomain(domain string) DomainClassification {
	domain = strings.ToLower(domain)

	if IsDisposable(domain) {
		return DomainClassification{Provider: domain, Type: DomainDisposable, SMTPVerifiable: false}
	}
	if IsPrivateRelay(domain) {
		return DomainClassification{Provider: domain, Type: DomainPrivateRelay, SMTPVerifiable: false}
	}
	if IsFreeProvider(domain) {
		return DomainClassification{Provider: domain, Type: DomainUnverifiablePersonal, SMTPVerifiable: false}
	}
	for _, suffix := range institutionalSuffixes {
		if strings.HasSuffix(domain, suffix) {
			return DomainClassification{Provider: domain, Type: DomainInstitutional, SMTPVerifiable: false}
		}
	}
	return DomainClassification{Provider: domain, Type: DomainBusiness, SMTPVerifiable: true}
}
