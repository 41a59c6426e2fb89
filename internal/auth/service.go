package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Service composes the password hasher, token service, revocation list and
// reset-challenge handling into the signup/login/logout/current-user/
// forgot-password/reset-password operations. It is the only component aware
// of the user store and the mail collaborator.
type Service struct {
	store   UserStore
	tokens  *TokenService
	revoked RevocationList
	mailer  Mailer
	now     func() time.Time
	otpTTL  time.Duration

	// userLocks serializes OTP/password mutations per email so a racing
	// forgot-password and reset-password cannot lose each other's update.
	// Entries are reference-counted and removed once the last holder
	// releases, so the map stays bounded by in-flight requests.
	locksMu   sync.Mutex
	userLocks map[string]*userLock
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service) error

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) error {
		if fn != nil {
			s.now = fn
		}
		return nil
	}
}

// WithOTPTTL overrides the reset challenge lifetime.
func WithOTPTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) error {
		if ttl <= 0 {
			return errors.New("otp ttl must be greater than zero")
		}
		s.otpTTL = ttl
		return nil
	}
}

// NewService constructs the auth orchestrator.
func NewService(store UserStore, tokens *TokenService, revoked RevocationList, mailer Mailer, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("user store is required")
	}
	if tokens == nil {
		return nil, errors.New("token service is required")
	}
	if revoked == nil {
		return nil, errors.New("revocation list is required")
	}
	if mailer == nil {
		return nil, errors.New("mailer is required")
	}
	svc := &Service{
		store:     store,
		tokens:    tokens,
		revoked:   revoked,
		mailer:    mailer,
		now:       time.Now,
		otpTTL:    DefaultOTPTTL,
		userLocks: make(map[string]*userLock),
	}
	for _, opt := range opts {
		if err := opt(svc); err != nil {
			return nil, err
		}
	}
	return svc, nil
}

// Signup registers a new account with a hashed password. The plaintext is
// never stored or logged.
func (s *Service) Signup(ctx context.Context, name, email, password string) (*User, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrInvalidInput
	}

	if _, err := s.store.FindByEmail(ctx, email); err == nil {
		return nil, ErrDuplicateEmail
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user := &User{
		Name:         strings.TrimSpace(name),
		Email:        email,
		PasswordHash: hash,
	}
	// The store enforces email uniqueness again, so a concurrent signup
	// racing past the lookup above still fails with ErrDuplicateEmail.
	if err := s.store.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Login verifies credentials and issues a fresh session token. An unknown
// email and a wrong password are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (string, time.Time, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return "", time.Time{}, ErrUnauthorized
	}
	user, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		return "", time.Time{}, ErrUnauthorized
	}
	if err := VerifyPassword(user.PasswordHash, password); err != nil {
		return "", time.Time{}, ErrUnauthorized
	}
	token, expiresAt, err := s.tokens.Issue(user.Email)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// Logout unconditionally revokes the presented token. Revoking a token that
// is already invalid or expired is a harmless no-op, so no signature check
// happens first.
func (s *Service) Logout(ctx context.Context, token string) error {
	if strings.TrimSpace(token) == "" {
		return ErrInvalidInput
	}
	return s.revoked.Revoke(ctx, token)
}

// CurrentUser resolves a bearer token to its account. The revocation list is
// consulted after signature verification and before the subject is trusted.
func (s *Service) CurrentUser(ctx context.Context, token string) (*User, error) {
	subject, err := s.tokens.Verify(token)
	if err != nil {
		return nil, ErrInvalidToken
	}
	revoked, err := s.revoked.IsRevoked(ctx, token)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, ErrTokenRevoked
	}
	user, err := s.store.FindByEmail(ctx, subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return user, nil
}

// ForgotPassword issues a reset challenge when the email is known and hands
// the code to the mail collaborator. The caller observes success either way;
// only ErrMailDelivery escapes, and it must not reach the requester.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if email == "" {
		return nil
	}

	unlock := s.lockUser(email)
	defer unlock()

	user, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}

	code, err := generateResetCode()
	if err != nil {
		return err
	}
	expiry := s.now().UTC().Add(s.otpTTL)
	// A new challenge overwrites any previous one; at most one is live.
	user.OTPCode = &code
	user.OTPExpiry = &expiry
	if err := s.store.Update(ctx, user); err != nil {
		return err
	}

	if err := s.mailer.SendResetCode(ctx, user.Email, code, s.otpTTL); err != nil {
		return fmt.Errorf("%w: %v", ErrMailDelivery, err)
	}
	return nil
}

// ResetPassword consumes a pending challenge exactly once: on success the
// challenge fields are cleared and the new hash installed in a single store
// update.
func (s *Service) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	email = normalizeEmail(email)
	if email == "" {
		return ErrNotFound
	}
	if newPassword == "" {
		return ErrInvalidInput
	}

	unlock := s.lockUser(email)
	defer unlock()

	user, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	if err := validateResetCode(user, code, s.now().UTC()); err != nil {
		return err
	}

	hash, err := HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	user.PasswordHash = hash
	user.ClearChallenge()
	return s.store.Update(ctx, user)
}

// VerifyToken exposes token verification to other layers that need to
// authenticate a caller. It applies the same revocation check as CurrentUser
// but skips the store lookup.
func (s *Service) VerifyToken(ctx context.Context, token string) (string, error) {
	subject, err := s.tokens.Verify(token)
	if err != nil {
		return "", ErrInvalidToken
	}
	revoked, err := s.revoked.IsRevoked(ctx, token)
	if err != nil {
		return "", err
	}
	if revoked {
		return "", ErrTokenRevoked
	}
	return subject, nil
}

func (s *Service) lockUser(email string) func() {
	s.locksMu.Lock()
	l, ok := s.userLocks[email]
	if !ok {
		l = &userLock{}
		s.userLocks[email] = l
	}
	l.refs++
	s.locksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.userLocks, email)
		}
		s.locksMu.Unlock()
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
