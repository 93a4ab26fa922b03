// Package infra probes a domain's mail and web infrastructure — SPF,
// DMARC, WHOIS age, HTTPS reachability, and landing-page parking — to
// produce the snapshot the decision and scoring engines consult when SMTP
// evidence is unavailable or inconclusive.
package infra

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/likexian/whois"
	"github.com/sirupsen/logrus"

	"github.com/devyanshu/mailcheck/internal/model"
)

const probeTimeout = 4 * time.Second
const webTimeout = 6 * time.Second
const tlsTimeout = 3 * time.Second

var parkingMarkers = []string{
	"buy this domain", "domain for sale", "parking", "sedo", "afternic",
	"godaddy cashparking", "coming soon", "under construction",
}

// TXTLookuper is the subset of *net.Resolver used for SPF/DMARC probes.
type TXTLookuper interface {
	LookupTXT(ctx context.Context, name string) ([]string, error)
}

// WhoisClient looks up raw WHOIS text for a domain; injectable for tests.
type WhoisClient interface {
	Whois(domain string, servers ...string) (string, error)
}

// Prober runs the four independent, best-effort infra probes.
type Prober struct {
	resolver   TXTLookuper
	whois      WhoisClient
	httpClient *http.Client
	log        *logrus.Entry
}

// New constructs a Prober using the standard resolver, the likexian/whois
// client, and an http.Client tuned to the probe timeouts.
func New(log *logrus.Entry) *Prober {
	return &Prober{
		resolver: &net.Resolver{},
		whois:    whoisAdapter{},
		httpClient: &http.Client{
			Timeout: webTimeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
		log: log,
	}
}

type whoisAdapter struct{}

func (whoisAdapter) Whois(domain string, servers ...string) (string, error) {
	return whois.Whois(domain, servers...)
}

// Probe runs SPF, DMARC, web, and HTTPS checks concurrently and combines
// them into a single snapshot. Every probe defaults to its false/none value
// on failure; nothing here ever returns an error to the caller.
func (p *Prober) Probe(ctx context.Context, domain string) *model.DomainInfraSnapshot {
	snap := &model.DomainInfraSnapshot{Domain: domain, WebStatus: model.WebNone}

	type result struct {
		apply func()
	}
	results := make(chan func(), 4)

	go func() { results <- func() { snap.HasSPF = p.hasSPF(ctx, domain) } }()
	go func() { results <- func() { snap.HasDMARC = p.hasDMARC(ctx, domain) } }()
	go func() {
		status, title, meta, favicon := p.checkWeb(domain)
		results <- func() {
			snap.WebStatus = status
			snap.Title = title
			snap.MetaDesc = meta
			snap.HasFavicon = favicon
		}
	}()
	go func() { results <- func() { snap.HTTPS = p.hasValidHTTPS(domain) } }()

	for i := 0; i < 4; i++ {
		(<-results)()
	}

	if age, ok := p.domainAgeDays(domain); ok {
		snap.DomainAgeDays = &age
	}

	return snap
}

func (p *Prober) hasSPF(ctx context.Context, domain string) bool {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	txts, err := p.resolver.LookupTXT(ctx, domain)
	if err != nil {
		return false
	}
	for _, txt := range txts {
		if strings.HasPrefix(strings.ToLower(txt), "v=spf1") {
			return true
		}
	}
	return false
}

func (p *Prober) hasDMARC(ctx context.Context, domain string) bool {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	txts, err := p.resolver.LookupTXT(ctx, "_dmarc."+domain)
	if err != nil {
		return false
	}
	for _, txt := range txts {
		if strings.HasPrefix(strings.ToLower(txt), "v=dmarc1") {
			return true
		}
	}
	return false
}

// checkWeb fetches https then http and classifies the landing page. A 5xx
// status is skipped (not a verdict); a body under 200 chars or a parking
// marker downgrades the verdict.
func (p *Prober) checkWeb(domain string) (status model.WebStatus, title, meta string, favicon bool) {
	for _, scheme := range []string{"https", "http"} {
		url := scheme + "://" + domain
		req, err := http.NewRequest(http.MethodGet, url, nil)
		if err != nil {
			continue
		}
		req.Header.Set("User-Agent", "mailcheck-infra-prober/1.0")

		resp, err := p.httpClient.Do(req)
		if err != nil {
			continue
		}
		body := readLimited(resp.Body, 64*1024)
		resp.Body.Close()

		if resp.StatusCode >= 500 {
			continue
		}

		lower := strings.ToLower(body)
		for _, marker := range parkingMarkers {
			if strings.Contains(lower, marker) {
				return model.WebParking, "", "", false
			}
		}

		if len(body) > 200 {
			t, m, f := extractMeta(body)
			return model.WebActive, t, m, f
		}
	}
	return model.WebNone, "", "", false
}

func (p *Prober) hasValidHTTPS(domain string) bool {
	dialer := &net.Dialer{Timeout: tlsTimeout}
	conn, err := tls.DialWithDialer(dialer, "tcp", net.JoinHostPort(domain, "443"), &tls.Config{ServerName: domain})
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// domainAgeDays queries WHOIS through p.whois and extracts the registration
// age in days. Parsing WHOIS's free-text "Creation Date" field is
// best-effort; any failure yields (0, false) so the caller leaves the
// snapshot field nil.
func (p *Prober) domainAgeDays(domain string) (int, bool) {
	raw, err := p.whois.Whois(domain)
	if err != nil {
		return 0, false
	}
	return parseCreationAgeDays(raw, time.Now())
}
