package auth

import (
	"context"
	"sync"
)

// RevocationList tracks tokens that were logged out before their natural
// expiry. Stateless tokens cannot be invalidated server-side, so every
// protected request consults the list after signature verification.
type RevocationList interface {
	Revoke(ctx context.Context, token string) error
	IsRevoked(ctx context.Context, token string) (bool, error)
}

// MemoryRevocationList is a process-lifetime revocation set. Entries are
// never pruned; revoking a token that already expired is a harmless no-op.
// Safe for concurrent use.
type MemoryRevocationList struct {
	mu      sync.RWMutex
	revoked map[string]struct{}
}

var _ RevocationList = (*MemoryRevocationList)(nil)

// NewMemoryRevocationList returns an empty in-memory revocation set.
func NewMemoryRevocationList() *MemoryRevocationList {
	return &MemoryRevocationList{revoked: make(map[string]struct{})}
}

func (l *MemoryRevocationList) Revoke(_ context.Context, token string) error {
	if token == "" {
		return nil
	}
	l.mu.Lock()
	l.revoked[token] = struct{}{}
	l.mu.Unlock()
	return nil
}

func (l *MemoryRevocationList) IsRevoked(_ context.Context, token string) (bool, error) {
	l.mu.RLock()
	_, ok := l.revoked[token]
	l.mu.RUnlock()
	return ok, nil
}

// Len reports the number of revoked entries. Intended for diagnostics.
func (l *MemoryRevocationList) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.revoked)
}
