package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

// Revocations remembers signed-out session tokens until they would have
// expired anyway. Expired entries are dropped on access.
type Revocations struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

func NewRevocations() *Revocations {
	return &Revocations{entries: make(map[string]time.Time), now: time.Now}
}

// TokenID identifies a session token: its jti claim when present, otherwise
// a hash of the raw token.
func TokenID(jti, raw string) string {
	if jti != "" {
		return jti
	}
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// Revoke marks id as signed out until expiresAt. A zero expiry keeps the
// entry for an hour.
func (r *Revocations) Revoke(id string, expiresAt time.Time) {
	if expiresAt.IsZero() {
		expiresAt = r.now().Add(time.Hour)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.purge()
	r.entries[id] = expiresAt
}

func (r *Revocations) IsRevoked(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	exp, ok := r.entries[id]
	if !ok {
		return false
	}
	if r.now().After(exp) {
		delete(r.entries, id)
		return false
	}
	return true
}

// Count returns the number of live revocations.
func (r *Revocations) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.purge()
	return len(r.entries)
}

// purge must be called with r.mu held.
func (r *Revocations) purge() {
	now := r.now()
	for id, exp := range r.entries {
		if now.After(exp) {
			delete(r.entries, id)
		}
	}
}
