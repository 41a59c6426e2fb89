package auth

import "time"

// User represents a registered account. The password hash and any pending
// reset challenge never appear in JSON responses.
type User struct {
	ID           string     `json:"id"`
	Name         string     `json:"name,omitempty"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	OTPCode      *string    `json:"-"`
	OTPExpiry    *time.Time `json:"-"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// HasChallenge reports whether a reset challenge is pending on the record.
// OTPCode and OTPExpiry are either both set or both nil; a record with only
// one of them is treated as having no challenge.
func (u *User) HasChallenge() bool {
	return u.OTPCode != nil && u.OTPExpiry != nil
}

// ClearChallenge removes any pending reset challenge.
func (u *User) ClearChallenge() {
	u.OTPCode = nil
	u.OTPExpiry = nil
}
