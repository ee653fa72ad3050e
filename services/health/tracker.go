package health

import (
	"sort"
	"sync"
	"time"
)

// entry is one provider's health cell. Each entry carries its own lock so
// updates for unrelated providers never contend.
type entry struct {
	mu            sync.Mutex
	healthy       bool
	lastFailureAt time.Time
}

// Tracker records per-provider health with passive, time-based recovery.
//
// Entries are created lazily on first reference (default healthy) and live
// for the process lifetime. State is in-memory only: it resets on restart
// and deliberately survives configuration reloads, since entries are keyed
// by provider name rather than tied to a snapshot generation.
type Tracker struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

// NewTracker creates an empty Tracker
func NewTracker() *Tracker {
	return &Tracker{entries: make(map[string]*entry)}
}

// lookup returns the entry for name, creating it healthy on first reference
func (t *Tracker) lookup(name string) *entry {
	t.mu.RLock()
	e, ok := t.entries[name]
	t.mu.RUnlock()
	if ok {
		return e
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok = t.entries[name]; ok {
		return e
	}
	e = &entry{healthy: true}
	t.entries[name] = e
	return e
}

// RecordFailure marks name unhealthy as of now. Repeated failures only move
// the failure timestamp forward.
func (t *Tracker) RecordFailure(name string, now time.Time) {
	e := t.lookup(name)
	e.mu.Lock()
	e.healthy = false
	e.lastFailureAt = now
	e.mu.Unlock()
}

// RecordSuccess restores full eligibility for name. A single success clears
// the failure history; there is no gradual healing.
func (t *Tracker) RecordSuccess(name string) {
	e := t.lookup(name)
	e.mu.Lock()
	e.healthy = true
	e.lastFailureAt = time.Time{}
	e.mu.Unlock()
}

// IsEligible reports whether name may be selected at now. Healthy providers
// always are; unhealthy ones recover passively once cooldown has elapsed
// since their last recorded failure, without requiring a probe request.
func (t *Tracker) IsEligible(name string, now time.Time, cooldown time.Duration) bool {
	e := t.lookup(name)
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.healthy {
		return true
	}
	return now.Sub(e.lastFailureAt) >= cooldown
}

// LastFailure returns when name last failed; ok is false when the provider
// has no failure on record.
func (t *Tracker) LastFailure(name string) (failedAt time.Time, ok bool) {
	e := t.lookup(name)
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.lastFailureAt.IsZero() {
		return time.Time{}, false
	}
	return e.lastFailureAt, true
}

// ProviderHealth is a point-in-time copy of one provider's entry
type ProviderHealth struct {
	Name          string     `json:"name"`
	Healthy       bool       `json:"healthy"`
	LastFailureAt *time.Time `json:"last_failure_at,omitempty"`
}

// Snapshot returns a copy of every tracked entry, sorted by provider name
func (t *Tracker) Snapshot() []ProviderHealth {
	t.mu.RLock()
	names := make([]string, 0, len(t.entries))
	for name := range t.entries {
		names = append(names, name)
	}
	t.mu.RUnlock()
	sort.Strings(names)

	out := make([]ProviderHealth, 0, len(names))
	for _, name := range names {
		e := t.lookup(name)
		e.mu.Lock()
		ph := ProviderHealth{Name: name, Healthy: e.healthy}
		if !e.lastFailureAt.IsZero() {
			failedAt := e.lastFailureAt
			ph.LastFailureAt = &failedAt
		}
		e.mu.Unlock()
		out = append(out, ph)
	}
	return out
}
