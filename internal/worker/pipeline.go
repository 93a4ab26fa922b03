// Package worker orchestrates the per-address pipeline (syntax -> DNS ->
// classifier -> infra/SMTP probes -> decision -> scoring) and the job fan-out
// that drives it from the queue.
package worker

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/devyanshu/mailcheck/internal/decision"
	"github.com/devyanshu/mailcheck/internal/dnsresolve"
	"github.com/devyanshu/mailcheck/internal/infra"
	"github.com/devyanshu/mailcheck/internal/metrics"
	"github.com/devyanshu/mailcheck/internal/model"
	"github.com/devyanshu/mailcheck/internal/ratelimit"
	"github.com/devyanshu/mailcheck/internal/scoring"
	"github.com/devyanshu/mailcheck/internal/smtppool"
	"github.com/devyanshu/mailcheck/internal/smtpprobe"
	"github.com/devyanshu/mailcheck/internal/syntax"
)

// Pipeline runs one address through every probe and returns the terminal
// verdict. It holds no per-job state; a single Pipeline is shared and safe
// for concurrent use by every worker goroutine.
type Pipeline struct {
	Resolver  *dnsresolve.Resolver
	Infra     *infra.Prober
	SMTP      *smtpprobe.Prober
	Pool      *smtppool.Pool
	Limiter   *ratelimit.TokenBucket
	Breaker   *ratelimit.Breaker
	Log       *logrus.Entry
}

// Outcome carries the verification result plus whether it should be
// greylist-retried instead of persisted as final.
type Outcome struct {
	Result      model.VerificationResult
	Retryable   bool
}

// Run executes the full pipeline for one address.
func (p *Pipeline) Run(ctx context.Context, email string) Outcome {
	parsed, ok := syntax.Validate(email)
	if !ok {
		return terminal(email, "", model.Undeliverable, 0, "Invalid syntax")
	}

	domain := parsed.Domain
	domainClass := syntax.ClassifyDomain(domain)
	usernameClass := syntax.ClassifyUsername(parsed.Local)

	signal := model.SignalBag{
		SyntaxValid:    true,
		IsDisposable:   domainClass.Type == syntax.DomainDisposable,
		IsPrivateRelay: domainClass.Type == syntax.DomainPrivateRelay,
		IsFreeProvider: domainClass.Type == syntax.DomainUnverifiablePersonal,
		IsRole:         usernameClass == syntax.ClassRole,
		UsernameClass:  string(usernameClass),
		UsernameStrength: syntax.UsernameStrength(usernameClass),
	}

	if signal.IsDisposable {
		return terminal(email, domain, model.Risky, 40, "Disposable domain")
	}

	// MX resolution happens regardless of verifiability so the infra prober
	// can still run against the domain's mail posture.
	mx, mxErr := p.Resolver.Resolve(domain)
	signal.MX = mx
	signal.MXLookupErr = mxErr

	if mxErr != nil {
		if lookupErr, ok := mxErr.(*dnsresolve.MXLookupError); ok {
			if lookupErr.Err == dnsresolve.ErrTimeout {
				return terminal(email, domain, model.Unknown, 30, "DNS lookup timeout")
			}
		}
		return terminal(email, domain, model.Risky, 20, "Domain has no MX records")
	}
	if len(mx) == 0 {
		return terminal(email, domain, model.Risky, 20, "Domain has no MX records")
	}

	// Infra probing runs for every domain: it feeds the commercial-promotion
	// rule even when SMTP evidence exists, and it's the only signal once SMTP
	// is skipped for a non-verifiable provider.
	signal.Infra = p.Infra.Probe(ctx, domain)

	if !domainClass.SMTPVerifiable {
		status, score, reason := decision.Decide(signal)
		return terminal(email, domain, status, score, reason)
	}

	mxHost := mx[0].Host

	if p.Breaker != nil {
		open, _, err := p.Breaker.IsOpen(ctx, mxHost)
		if err == nil {
			gaugeValue := 0.0
			if open {
				gaugeValue = 1.0
			}
			metrics.BreakerOpen.WithLabelValues(mxHost).Set(gaugeValue)
		}
		if err == nil && open {
			return terminal(email, domain, model.Unknown, 30, "MX host circuit breaker open")
		}
	}

	if p.Limiter != nil {
		allowed, _, err := p.Limiter.Allow(ctx, domain)
		if err == nil && !allowed {
			return Outcome{Retryable: true, Result: partial(email, domain)}
		}
	}

	smtpResult := p.probeSMTP(ctx, email, mxHost)
	signal.SMTP = smtpResult
	if smtpResult != nil {
		signal.SMTPTimedOut = smtpResult.TimedOut
		signal.IsCatchAll = smtpResult.IsCatchAll

		if smtpResult.TimedOut && p.Breaker != nil {
			p.Breaker.Inc(ctx, mxHost)
		}
		if smtpResult.Greylisted {
			return Outcome{Retryable: true, Result: partial(email, domain)}
		}
	}

	status, score, reason := decision.Decide(signal)
	return terminal(email, domain, status, score, reason)
}

// probeSMTP delegates to SMTP, which was wired via UsePool to acquire and
// release connections against Pool. Each address runs its own MAIL FROM /
// RCPT TO transaction; it reuses a session only when the pool holds an idle
// connection to mxHost, and a batch is not combined under one MAIL FROM.
func (p *Pipeline) probeSMTP(ctx context.Context, email, mxHost string) *model.SMTPProbeResult {
	return p.SMTP.Probe(ctx, email, mxHost)
}

func terminal(email, domain string, status model.VerificationStatus, score int, reason string) Outcome {
	return Outcome{Result: model.VerificationResult{
		Email: email, Domain: domain, Status: status, Score: score, Reason: reason,
	}}
}

func partial(email, domain string) model.VerificationResult {
	return model.VerificationResult{Email: email, Domain: domain, Status: model.Unknown, Reason: "deferred"}
}

// ScoreInfra exposes the weighted infra sub-score for callers (e.g. the
// storage layer or an API surface) that want it alongside the terminal
// decision, without re-running the probe.
func ScoreInfra(snap *model.DomainInfraSnapshot) scoring.InfraScore {
	return scoring.ScoreDomainInfra(snap)
}
