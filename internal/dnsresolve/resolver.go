// Package dnsresolve performs MX lookups with an A-record fallback, a
// parking-keyword sniff, and a bounded process-lifetime cache.
package dnsresolve

import (
	"container/list"
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/devyanshu/mailcheck/internal/model"
)

const lookupTimeout = 4 * time.Second

// parkingKeywords poisons a lookup if any MX hostname contains one of these
// substrings, raising MXLookupError rather than degrading silently, unlike
// the other parking checks in the infra prober.
var parkingKeywords = []string{"example.com", "invalid", "parking", "localhost"}

// MXLookupError wraps the distinct failure modes of an MX lookup.
type MXLookupError struct {
	Domain string
	Reason string
	Err    error
}

func (e *MXLookupError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("mx lookup failed for %s: %s: %v", e.Domain, e.Reason, e.Err)
	}
	return fmt.Sprintf("mx lookup failed for %s: %s", e.Domain, e.Reason)
}

func (e *MXLookupError) Unwrap() error { return e.Err }

// ErrTimeout marks an MXLookupError caused by resolver timeout.
var ErrTimeout = errors.New("mx lookup timeout")

// Lookuper is the subset of *net.Resolver this package depends on; tests
// inject a fake.
type Lookuper interface {
	LookupMX(ctx context.Context, name string) ([]*net.MX, error)
	LookupHost(ctx context.Context, host string) ([]string, error)
}

type cacheEntry struct {
	key     string
	records model.MXRecordSet
	err     error
}

// Resolver resolves MX record sets with caching, A-record fallback, and
// parking detection. Entries are immutable once inserted; cache eviction is
// bounded LRU sized by maxEntries.
type Resolver struct {
	lookup     Lookuper
	mu         sync.Mutex
	cache      map[string]*list.Element
	order      *list.List
	maxEntries int
}

// New constructs a Resolver backed by the standard net.Resolver.
func New(maxEntries int) *Resolver {
	return &Resolver{
		lookup:     &net.Resolver{},
		cache:      make(map[string]*list.Element),
		order:      list.New(),
		maxEntries: maxEntries,
	}
}

// NewWithLookuper is a test-oriented constructor overriding DNS lookups.
func NewWithLookuper(maxEntries int, l Lookuper) *Resolver {
	r := New(maxEntries)
	r.lookup = l
	return r
}

// Resolve returns the ordered MX set for domain, consulting the cache first.
// On NXDOMAIN/NoAnswer or an empty MX set, Resolve tries a single A-record
// fallback, synthesizing a preference-0 record pointing at the domain
// itself; if that finds no address it returns an empty set and lets the
// caller decide. Any other error escalates to *MXLookupError.
func (r *Resolver) Resolve(domain string) (model.MXRecordSet, error) {
	domain = strings.ToLower(domain)

	if cached, ok := r.get(domain); ok {
		return cached.records, cached.err
	}

	records, err := r.resolveUncached(domain)
	r.put(domain, records, err)
	return records, err
}

func (r *Resolver) resolveUncached(domain string) (model.MXRecordSet, error) {
	ctx, cancel := context.WithTimeout(context.Background(), lookupTimeout)
	defer cancel()

	mx, err := r.lookup.LookupMX(ctx, domain)
	if err != nil {
		if isNoData(err) {
			return r.aRecordFallback(domain)
		}
		if isTimeout(err) {
			return nil, &MXLookupError{Domain: domain, Reason: "timeout", Err: ErrTimeout}
		}
		return nil, &MXLookupError{Domain: domain, Reason: "lookup error", Err: err}
	}

	if len(mx) == 0 {
		return r.aRecordFallback(domain)
	}

	set := make(model.MXRecordSet, 0, len(mx))
	for _, rec := range mx {
		host := strings.TrimSuffix(rec.Host, ".")
		set = append(set, model.MXRecord{Preference: int(rec.Pref), Host: host})
	}
	sort.Slice(set, func(i, j int) bool {
		if set[i].Preference != set[j].Preference {
			return set[i].Preference < set[j].Preference
		}
		return set[i].Host < set[j].Host
	})

	for _, rec := range set {
		for _, kw := range parkingKeywords {
			if strings.Contains(rec.Host, kw) {
				return nil, &MXLookupError{Domain: domain, Reason: "parking-poisoned MX host: " + rec.Host}
			}
		}
	}

	return set, nil
}

func (r *Resolver) aRecordFallback(domain string) (model.MXRecordSet, error) {
	ctx, cancel := context.WithTimeout(context.Background(), lookupTimeout)
	defer cancel()

	addrs, err := r.lookup.LookupHost(ctx, domain)
	if err != nil || len(addrs) == 0 {
		return model.MXRecordSet{}, nil
	}
	return model.MXRecordSet{{Preference: 0, Host: domain}}, nil
}

func isNoData(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.IsNotFound
	}
	return false
}

func isTimeout(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.IsTimeout
	}
	return errors.Is(err, context.DeadlineExceeded)
}

func (r *Resolver) get(domain string) (cacheEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	el, ok := r.cache[domain]
	if !ok {
		return cacheEntry{}, false
	}
	r.order.MoveToFront(el)
	return el.Value.(cacheEntry), true
}

func (r *Resolver) put(domain string, records model.MXRecordSet, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if el, ok := r.cache[domain]; ok {
		r.order.MoveToFront(el)
		return
	}

	el := r.order.PushFront(cacheEntry{key: domain, records: records, err: err})
	r.cache[domain] = el

	for r.order.Len() > r.maxEntries {
		oldest := r.order.Back()
		if oldest == nil {
			break
		}
		r.order.Remove(oldest)
		delete(r.cache, oldest.Value.(cacheEntry).key)
	}
}
