package model

import "time"

// OneTimeCode is an emailed passcode. Codes are never deleted by the request
// path; they are retired by flipping Used, either on successful verification
// or when a newer code is issued for the same email.
type OneTimeCode struct {
	ID        int64     `json:"id" db:"id"`
	Email     string    `json:"email" db:"email"`
	Code      string    `json:"-" db:"code"`
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`
	Used      bool      `json:"used" db:"used"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Expired reports whether the code is past its expiry at the given instant.
func (c *OneTimeCode) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}
