package payments

import (
	"sync"
	"time"
)

// DefaultAbandonTTL bounds how long an entry whose work id was never
// assigned may live. A request verified but abandoned before execution
// starts (the executor never reported a work id) is evicted after this
// window so the ledger cannot grow without bound.
const DefaultAbandonTTL = 10 * time.Minute

// RequestLedger is the in-memory correlation store bridging the
// caller's transient request identifier to the eventual work
// identifier, and the single source of truth for "has this work id
// been charged". Entries exist only between a positive verification
// and the completion of settlement; nothing survives a process
// restart.
type RequestLedger struct {
	mu         sync.Mutex
	entries    map[string]*ledgerEntry // keyed by current id (correlation, then work)
	aliases    map[string]string       // correlation id -> work id after rekey
	abandonTTL time.Duration
}

type ledgerEntry struct {
	context PaymentContext
	settled bool
	rekeyed bool
	created time.Time
}

// LedgerOption configures the ledger.
type LedgerOption func(*RequestLedger)

// WithAbandonTTL overrides the eviction window for entries that never
// get a work id.
func WithAbandonTTL(ttl time.Duration) LedgerOption {
	return func(l *RequestLedger) {
		l.abandonTTL = ttl
	}
}

// NewRequestLedger creates an empty ledger.
func NewRequestLedger(opts ...LedgerOption) *RequestLedger {
	l := &RequestLedger{
		entries:    make(map[string]*ledgerEntry),
		aliases:    make(map[string]string),
		abandonTTL: DefaultAbandonTTL,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Put records a payment context under the correlation id known at
// request time. Overwrites any abandoned entry under the same id.
func (l *RequestLedger) Put(correlationID string, context PaymentContext) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries[correlationID] = &ledgerEntry{
		context: context,
		created: time.Now(),
	}

	// Lazy sweep of abandoned entries on writes.
	l.evictAbandonedLocked()
}

// Rekey migrates the entry from the correlation id to the work id the
// executor assigned. Must happen before any lifecycle event for the
// work id can reach settlement. Rekeying to the same id is a no-op;
// an unknown correlation id returns false.
func (l *RequestLedger) Rekey(correlationID, workID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.entries[correlationID]
	if !ok {
		// Already rekeyed under this correlation id?
		if existing, ok := l.aliases[correlationID]; ok && existing == workID {
			return true
		}
		return false
	}

	if correlationID != workID {
		delete(l.entries, correlationID)
		l.entries[workID] = entry
		l.aliases[correlationID] = workID
	}
	entry.rekeyed = true
	return true
}

// Get returns the payment context for a work id (or a correlation id
// that was rekeyed to one).
func (l *RequestLedger) Get(id string) (PaymentContext, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.resolveLocked(id)
	if !ok {
		return PaymentContext{}, false
	}
	return entry.context, true
}

// TryMarkSettled atomically flips the settled flag. Only the first
// caller for a given work id gets true; every concurrent path
// (foreground wait, background task, streaming consumer, cancel) must
// gate its settle call on this.
func (l *RequestLedger) TryMarkSettled(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.resolveLocked(id)
	if !ok || entry.settled {
		return false
	}
	entry.settled = true
	return true
}

// Remove discards the entry after settlement has been attempted
// (success, failure, or explicit skip) to bound memory.
func (l *RequestLedger) Remove(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if workID, ok := l.aliases[id]; ok {
		delete(l.aliases, id)
		id = workID
	}
	for corr, work := range l.aliases {
		if work == id {
			delete(l.aliases, corr)
		}
	}
	delete(l.entries, id)
}

// Len reports the number of live entries.
func (l *RequestLedger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (l *RequestLedger) resolveLocked(id string) (*ledgerEntry, bool) {
	if workID, ok := l.aliases[id]; ok {
		id = workID
	}
	entry, ok := l.entries[id]
	return entry, ok
}

// evictAbandonedLocked drops entries that were never rekeyed within
// the abandonment window. Must be called with the lock held.
func (l *RequestLedger) evictAbandonedLocked() {
	cutoff := time.Now().Add(-l.abandonTTL)
	for id, entry := range l.entries {
		if !entry.rekeyed && entry.created.Before(cutoff) {
			delete(l.entries, id)
		}
	}
}
