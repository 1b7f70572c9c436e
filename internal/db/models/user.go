package models

import "time"

// User is an authenticated principal. Users sign in with a password (bcrypt
// hashed) or through the configured SSO provider, in which case SSOSubject
// carries the provider's subject identifier and PasswordHash is NULL.
type User struct {
	ID           string     `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	Name         string     `db:"name" json:"name"`
	PasswordHash *string    `db:"password_hash" json:"-"`
	SSOSubject   *string    `db:"sso_subject" json:"-"`
	CreatedAt    time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updatedAt"`
}
