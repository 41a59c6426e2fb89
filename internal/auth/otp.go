package auth

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

// DefaultOTPTTL is the reset challenge lifetime.
const DefaultOTPTTL = 10 * time.Minute

// otpRange keeps codes in 100000..999999 so they are never zero-padded.
var otpRange = big.NewInt(900000)

// generateResetCode returns a 6-digit decimal one-time code.
func generateResetCode() (string, error) {
	n, err := rand.Int(rand.Reader, otpRange)
	if err != nil {
		return "", fmt.Errorf("generate reset code: %w", err)
	}
	return fmt.Sprintf("%d", n.Int64()+100000), nil
}

// validateResetCode checks a submitted code against the challenge stored on
// the record. Codes compare as strings; there is no numeric coercion.
func validateResetCode(u *User, submitted string, now time.Time) error {
	if !u.HasChallenge() {
		return ErrNoChallenge
	}
	// The challenge is already unusable at the exact expiry instant.
	if !now.Before(*u.OTPExpiry) {
		return ErrCodeExpired
	}
	if *u.OTPCode != submitted {
		return ErrCodeMismatch
	}
	return nil
}
