package models

import "time"

// User is a stored account. PasswordHash is an argon2id PHC string and
// must never leave the server.
type User struct {
	ID           int64
	UserName     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// SessionIdentity is the principal resolved from a valid access token.
// It is built per request and never persisted.
type SessionIdentity struct {
	UserID    int64
	UserName  string
	Email     string
	TokenID   string
	ExpiresAt time.Time
}
