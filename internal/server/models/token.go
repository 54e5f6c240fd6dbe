package models

import "time"

// AccessToken is what the issuer hands back on a successful login.
type AccessToken struct {
	Token     string
	TokenType string
	TokenID   string
	ExpiresAt time.Time
}

// RevokedToken records a logged-out access token until it would have
// expired on its own.
type RevokedToken struct {
	TokenID   string
	UserID    int64
	ExpiresAt time.Time
	CreatedAt time.Time
}
