// Package memory provides an in-memory UserStore used by tests and for
// running the service without external backends.
package memory

import (
	"context"
	"sync"
	"time"

	"neurocare.org/internal/auth"
	"neurocare.org/internal/ids"
)

type Store struct {
	mu      sync.RWMutex
	byEmail map[string]*auth.User
}

var _ auth.UserStore = (*Store)(nil)

func New() *Store {
	return &Store{byEmail: make(map[string]*auth.User)}
}

func (s *Store) Create(_ context.Context, u *auth.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byEmail[u.Email]; ok {
		return auth.ErrDuplicateEmail
	}
	if u.ID == "" {
		u.ID = ids.New()
	}
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now
	s.byEmail[u.Email] = clone(u)
	return nil
}

func (s *Store) FindByEmail(_ context.Context, email string) (*auth.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.byEmail[email]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return clone(u), nil
}

func (s *Store) FindByID(_ context.Context, id string) (*auth.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.byEmail {
		if u.ID == id {
			return clone(u), nil
		}
	}
	return nil, auth.ErrNotFound
}

func (s *Store) Update(_ context.Context, u *auth.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.byEmail[u.Email]
	if !ok || stored.ID != u.ID {
		return auth.ErrNotFound
	}
	u.UpdatedAt = time.Now().UTC()
	s.byEmail[u.Email] = clone(u)
	return nil
}

// Delete removes a record. Only used by tests simulating vanished subjects.
func (s *Store) Delete(_ context.Context, email string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byEmail, email)
}

// clone keeps callers from aliasing stored records, including the challenge
// pointers.
func clone(u *auth.User) *auth.User {
	c := *u
	if u.OTPCode != nil {
		code := *u.OTPCode
		c.OTPCode = &code
	}
	if u.OTPExpiry != nil {
		expiry := *u.OTPExpiry
		c.OTPExpiry = &expiry
	}
	return &c
}
