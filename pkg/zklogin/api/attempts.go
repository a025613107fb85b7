package api

import (
	"sync"
	"time"

	"github.com/sprinkle-app/sprinkle-go/pkg/zklogin"
)

// attemptRegistry is the idempotency guard for duplicate OAuth callback
// deliveries. Each login nonce is one-shot: the first authenticate call owns
// it, a concurrent duplicate is rejected, and a late duplicate within the
// retention window gets the original result back without a second prover
// call.
type attemptRegistry struct {
	mu        sync.Mutex
	retention time.Duration
	entries   map[string]*attemptEntry
}

type attemptEntry struct {
	result  *zklogin.AuthResult
	started time.Time
}

func newAttemptRegistry(retention time.Duration) *attemptRegistry {
	return &attemptRegistry{
		retention: retention,
		entries:   make(map[string]*attemptEntry),
	}
}

// begin claims the nonce. It returns the cached result for a completed
// attempt, or inFlight=true if another request currently owns the nonce.
func (r *attemptRegistry) begin(nonce string) (cached *zklogin.AuthResult, inFlight bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pruneLocked()

	if entry, ok := r.entries[nonce]; ok {
		return entry.result, entry.result == nil
	}
	r.entries[nonce] = &attemptEntry{started: time.Now()}
	return nil, false
}

func (r *attemptRegistry) complete(nonce string, result *zklogin.AuthResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.entries[nonce]; ok {
		entry.result = result
	}
}

// abandon frees the nonce after a failed attempt so the error is not pinned.
func (r *attemptRegistry) abandon(nonce string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, nonce)
}

func (r *attemptRegistry) pruneLocked() {
	cutoff := time.Now().Add(-r.retention)
	for nonce, entry := range r.entries {
		if entry.started.Before(cutoff) {
			delete(r.entries, nonce)
		}
	}
}
