// Package smtpprobe implements the SMTP verification state machine: given
// an (email, mx_host) pair it connects, negotiates EHLO/STARTTLS, and
// issues MAIL FROM / RCPT TO — for the target address and once more for a
// random local-part to detect catch-all domains — without ever sending
// DATA.
package smtpprobe

import (
	"bufio"
	"context"
	"crypto/rand"
	"crypto/tls"
	"fmt"
	"math/big"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/devyanshu/mailcheck/internal/model"
	"github.com/devyanshu/mailcheck/internal/smtppool"
)

const (
	connectTimeout = 4 * time.Second
	commandTimeout = 10 * time.Second
)

// ports are tried in this order: 465 uses implicit TLS, 587 attempts
// opportunistic STARTTLS, 25 falls through without TLS.
var ports = []int{25, 587, 465}

// nonVerifiableDomains are large consumer providers where SMTP verification
// is definitionally unreliable; the prober short-circuits to unknown
// without touching the network.
var nonVerifiableDomains = map[string]bool{
	"gmail.com": true, "googlemail.com": true, "outlook.com": true,
	"hotmail.com": true, "live.com": true, "yahoo.com": true,
	"icloud.com": true, "me.com": true,
}

var antiSpamBanners = []string{"proofpoint", "barracuda", "google frontend", "spamhaus"}

// Config configures the prober's SMTP identity (HELO host and MAIL FROM).
type Config struct {
	HeloHost string
	MailFrom string
}

func DefaultConfig() Config {
	return Config{HeloHost: "verifier.local", MailFrom: "verifier@mailcheck.local"}
}

// Prober runs the SMTP state machine against a single MX host per call.
type Prober struct {
	cfg  Config
	dial func(ctx context.Context, network, address string, timeout time.Duration) (net.Conn, error)
	pool *smtppool.Pool
}

// New constructs a Prober dialing with net.Dialer.
func New(cfg Config) *Prober {
	return &Prober{
		cfg: cfg,
		dial: func(ctx context.Context, network, address string, timeout time.Duration) (net.Conn, error) {
			d := net.Dialer{Timeout: timeout}
			return d.DialContext(ctx, network, address)
		},
	}
}

// NewWithDialer is a test-oriented constructor overriding the transport.
func NewWithDialer(cfg Config, dial func(ctx context.Context, network, address string, timeout time.Duration) (net.Conn, error)) *Prober {
	p := New(cfg)
	p.dial = dial
	return p
}

// UsePool routes every probe's connection acquisition through pool instead
// of dialing directly, so a probe against an mxHost reuses an idle
// TCP/TLS/EHLO session when the pool has one instead of paying that cost
// again. Each probe still issues its own MAIL FROM and RCPT TO commands.
func (p *Prober) UsePool(pool *smtppool.Pool) {
	p.pool = pool
}

// IsNonVerifiable reports whether domain belongs to the privacy-protected
// set this prober never issues, by design.
func IsNonVerifiable(domain string) bool {
	return nonVerifiableDomains[strings.ToLower(domain)]
}

// Probe verifies email against mxHost, trying ports 25, 587, 465 in order
// until one completes the SMTP conversation without a transport error; that
// port's result is returned even when its status is unknown.
func (p *Prober) Probe(ctx context.Context, email, mxHost string) *model.SMTPProbeResult {
	domain := domainOf(email)
	if IsNonVerifiable(domain) {
		return &model.SMTPProbeResult{Status: model.SMTPUnknown, Message: "privacy-protected", MXHost: mxHost}
	}

	start := time.Now()
	var lastErr error

	for _, port := range ports {
		result, err := p.probePort(ctx, email, mxHost, port)
		if err == nil {
			result.Duration = time.Since(start)
			result.MXHost = mxHost
			return result
		}
		lastErr = err
	}

	return &model.SMTPProbeResult{
		Status:   model.SMTPUnknown,
		Message:  fmt.Sprintf("all ports failed: %v", lastErr),
		MXHost:   mxHost,
		Duration: time.Since(start),
		TimedOut: isTimeoutErr(lastErr),
	}
}

func (p *Prober) probePort(ctx context.Context, email, mxHost string, port int) (*model.SMTPProbeResult, error) {
	portStr := strconv.Itoa(port)
	addr := net.JoinHostPort(mxHost, portStr)

	var conn net.Conn
	var reused bool
	var err error
	if p.pool != nil {
		conn, reused, err = p.pool.Acquire(mxHost, portStr)
	} else {
		conn, err = p.dial(ctx, "tcp", addr, connectTimeout)
	}
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", addr, err)
	}

	r := bufio.NewReader(conn)
	var banner string

	discard := func() {
		if p.pool != nil {
			p.pool.Discard(conn)
		} else {
			_ = conn.Close()
		}
	}
	// finish ends this probe's transaction without tearing down the TCP
	// connection when pooled: RSET clears MAIL FROM/RCPT TO state so the
	// connection can be released for the next probe against this host.
	finish := func() {
		if p.pool != nil {
			_, _, _ = command(conn, r, "RSET\r\n")
			p.pool.Release(mxHost, portStr, conn)
		} else {
			quit(conn, r)
			_ = conn.Close()
		}
	}

	// A reused connection already completed the greeting, EHLO/HELO, and
	// any STARTTLS negotiation on a prior probe — jump straight to MAIL
	// FROM on it.
	if !reused {
		if port == 465 {
			tlsConn := tls.Client(conn, &tls.Config{ServerName: mxHost})
			tlsConn.SetDeadline(time.Now().Add(commandTimeout))
			if err := tlsConn.Handshake(); err != nil {
				discard()
				return nil, fmt.Errorf("implicit TLS handshake: %w", err)
			}
			conn = tlsConn
			r = bufio.NewReader(conn)
		}

		conn.SetDeadline(time.Now().Add(commandTimeout))

		code, b, err := readResponse(r)
		if err != nil {
			discard()
			return nil, fmt.Errorf("read banner: %w", err)
		}
		if code != 220 {
			discard()
			return nil, fmt.Errorf("bad greeting: %d", code)
		}
		banner = b

		ehloCode, _, ehloErr := command(conn, r, fmt.Sprintf("EHLO %s\r\n", p.cfg.HeloHost))
		if ehloErr != nil || ehloCode >= 400 {
			heloCode, _, heloErr := command(conn, r, fmt.Sprintf("HELO %s\r\n", p.cfg.HeloHost))
			if heloErr != nil || heloCode >= 400 {
				discard()
				return nil, fmt.Errorf("EHLO/HELO rejected")
			}
		}

		if port == 587 {
			if code, _, err := command(conn, r, "STARTTLS\r\n"); err == nil && code/100 == 2 {
				tlsConn := tls.Client(conn, &tls.Config{ServerName: mxHost})
				tlsConn.SetDeadline(time.Now().Add(commandTimeout))
				if err := tlsConn.Handshake(); err != nil {
					discard()
					return nil, fmt.Errorf("STARTTLS handshake: %w", err)
				}
				conn = tlsConn
				r = bufio.NewReader(conn)
				if code, _, err := command(conn, r, fmt.Sprintf("EHLO %s\r\n", p.cfg.HeloHost)); err != nil || code >= 400 {
					discard()
					return nil, fmt.Errorf("post-STARTTLS EHLO rejected")
				}
			}
		}
	} else {
		conn.SetDeadline(time.Now().Add(commandTimeout))
	}

	mailCode, mailMsg, err := command(conn, r, fmt.Sprintf("MAIL FROM:<%s>\r\n", p.cfg.MailFrom))
	if err != nil {
		discard()
		return nil, fmt.Errorf("MAIL FROM: %w", err)
	}
	if mailCode >= 400 || hasAntiSpamBanner(banner) {
		finish()
		return &model.SMTPProbeResult{Status: model.SMTPUnknown, Code: mailCode, Message: mailMsg, AntiSpam: true, ServerBanner: banner}, nil
	}

	targetCode, targetMsg, err := command(conn, r, fmt.Sprintf("RCPT TO:<%s>\r\n", email))
	if err != nil {
		discard()
		return nil, fmt.Errorf("RCPT TO target: %w", err)
	}

	randomLocal := randomLowercase(12)
	probeCode, _, _ := command(conn, r, fmt.Sprintf("RCPT TO:<%s@%s>\r\n", randomLocal, domainOf(email)))

	finish()

	return classify(targetCode, targetMsg, probeCode, banner), nil
}

func classify(targetCode int, targetMsg string, probeCode int, banner string) *model.SMTPProbeResult {
	result := &model.SMTPProbeResult{Code: targetCode, Message: targetMsg, ServerBanner: banner}
	result.IsCatchAll = probeCode/100 == 2

	switch {
	case targetCode/100 == 2:
		result.Status = model.SMTPDeliverable
	case targetCode == 450 || targetCode == 451 || targetCode == 452:
		result.Status = model.SMTPUnknown
		result.Greylisted = targetCode == 450 || targetCode == 451
	case targetCode == 550 || targetCode == 551 || targetCode == 553:
		result.Status = model.SMTPInvalid
	case targetCode/100 == 4:
		result.Status = model.SMTPUnknown
	case targetCode/100 == 5:
		result.Status = model.SMTPUnknown
	default:
		result.Status = model.SMTPUnknown
	}
	return result
}

func hasAntiSpamBanner(banner string) bool {
	lower := strings.ToLower(banner)
	for _, marker := range antiSpamBanners {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func command(conn net.Conn, r *bufio.Reader, cmd string) (int, string, error) {
	if _, err := conn.Write([]byte(cmd)); err != nil {
		return 0, "", err
	}
	return readResponse(r)
}

func quit(conn net.Conn, r *bufio.Reader) {
	_, _ = conn.Write([]byte("QUIT\r\n"))
	_, _, _ = readResponse(r)
}

// readResponse reads a possibly multi-line SMTP response and returns the
// final status code and the joined message text.
func readResponse(r *bufio.Reader) (int, string, error) {
	var lines []string
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return 0, "", err
		}
		line = strings.TrimRight(line, "\r\n")
		if len(line) < 3 {
			return 0, "", fmt.Errorf("short SMTP line: %q", line)
		}
		lines = append(lines, line)
		if len(line) < 4 || line[3] != '-' {
			break
		}
	}
	last := lines[len(lines)-1]
	var code int
	if _, err := fmt.Sscanf(last[:3], "%d", &code); err != nil {
		return 0, "", fmt.Errorf("invalid SMTP code %q: %w", last[:3], err)
	}
	return code, strings.Join(lines, " | "), nil
}

func randomLowercase(n int) string {
	const charset = "abcdefghijklmnopqrstuvwxyz"
	b := make([]byte, n)
	for i := range b {
		idx, _ := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		b[i] = charset[idx.Int64()]
	}
	return string(b)
}

func domainOf(email string) string {
	parts := strings.SplitN(email, "@", 2)
	if len(parts) != 2 {
		return ""
	}
	return parts[1]
}

func isTimeoutErr(err error) bool {
	if err == nil {
		return false
	}
	type timeout interface{ Timeout() bool }
	if t, ok := err.(timeout); ok {
		return t.Timeout()
	}
	return strings.Contains(err.Error(), "timeout") || strings.Contains(err.Error(), "i/o timeout")
}
