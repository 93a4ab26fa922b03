package infra

import (
	"bufio"
	"io"
	"strings"
	"time"
)

var creationDateFields = []string{
	"creation date:", "created on:", "registered on:", "domain registration date:",
}

var whoisDateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05Z",
	"2006-01-02",
	"02-Jan-2006",
	"2006.01.02",
	"20060102",
}

// parseCreationAgeDays scans raw WHOIS text for a creation-date field and
// returns the number of days since that date relative to now. WHOIS output
// format varies wildly by registry; this matches the common
// "Creation Date: <value>" shape rather than attempting a full grammar.
func parseCreationAgeDays(raw string, now time.Time) (int, bool) {
	scanner := bufio.NewScanner(strings.NewReader(raw))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		lower := strings.ToLower(line)
		for _, field := range creationDateFields {
			if idx := strings.Index(lower, field); idx == 0 {
				value := strings.TrimSpace(line[len(field):])
				if t, ok := parseWhoisDate(value); ok {
					days := int(now.Sub(t).Hours() / 24)
					if days < 0 {
						return 0, false
					}
					return days, true
				}
			}
		}
	}
	return 0, false
}

func parseWhoisDate(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	for _, layout := range whoisDateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	// Some registries append time and zone info after the date we care
	// about; fall back to parsing the first 10 characters as YYYY-MM-DD.
	if len(value) >= 10 {
		if t, err := time.Parse("2006-01-02", value[:10]); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func readLimited(r io.Reader, max int64) string {
	b, _ := io.ReadAll(io.LimitReader(r, max))
	return string(b)
}

// extractMeta does a cheap, dependency-free scan for <title>, a meta
// description tag, and a favicon link — enough for the commercial
// promotion rule's confidence accumulator without pulling in an HTML
// parser for what is, at this layer, a best-effort signal.
func extractMeta(body string) (title, meta string, favicon bool) {
	lower := strings.ToLower(body)

	if start := strings.Index(lower, "<title>"); start != -1 {
		start += len("<title>")
		if end := strings.Index(lower[start:], "</title>"); end != -1 {
			title = strings.TrimSpace(body[start : start+end])
		}
	}

	if idx := strings.Index(lower, `name="description"`); idx != -1 {
		if c := strings.Index(lower[idx:], "content="); c != -1 {
			segStart := idx + c + len("content=")
			meta = extractAttrValue(body, segStart)
		}
	}

	favicon = strings.Contains(lower, "rel=\"icon\"") || strings.Contains(lower, "rel='icon'") ||
		strings.Contains(lower, "rel=\"shortcut icon\"")

	return title, meta, favicon
}

func extractAttrValue(body string, start int) string {
	if start >= len(body) {
		return ""
	}
	quote := body[start]
	if quote != '"' && quote != '\'' {
		return ""
	}
	end := strings.IndexByte(body[start+1:], quote)
	if end == -1 {
		return ""
	}
	return body[start+1 : start+1+end]
}
