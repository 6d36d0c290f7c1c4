package model

import "time"

// Admin is a whitelisted identity allowed to sign in to the admin panel.
// Rows are seeded out of band; the request surface only ever attaches a
// password (once) to an existing row.
type Admin struct {
	ID           int64     `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	PasswordHash *string   `json:"-" db:"password_hash"` // bcrypt hash, never expose
	Mobile       *string   `json:"mobile,omitempty" db:"mobile"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// HasPassword reports whether registration has already set a password.
func (a *Admin) HasPassword() bool {
	return a.PasswordHash != nil && *a.PasswordHash != ""
}

// HasMobile reports whether a mobile number is on file.
func (a *Admin) HasMobile() bool {
	return a.Mobile != nil && *a.Mobile != ""
}

// Public returns the identity fields that are safe to hand to clients.
func (a *Admin) Public() User {
	return User{ID: a.ID, Email: a.Email}
}

// User is the public half of an identity embedded in session responses.
type User struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
}
