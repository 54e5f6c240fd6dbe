// Package revocations declares the store of logged-out access tokens.
package revocations

import (
	"context"
	"time"
)

// Repository keeps revoked token ids until the tokens would have expired.
type Repository interface {
	// Revoke records jti as revoked. Revoking twice is not an error.
	Revoke(ctx context.Context, jti string, userID int64, expiresAt time.Time) error

	// IsRevoked reports whether jti has been revoked.
	IsRevoked(ctx context.Context, jti string) (bool, error)

	// DeleteExpired removes records whose expiry is before now and returns
	// how many were removed.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
