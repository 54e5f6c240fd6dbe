// Package auth mints and checks HS256 access tokens.
//
// A token carries the user id in "sub" as a decimal string, a random "jti"
// used for logout revocation, "iat", "exp" and "iss".
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dmitrijs2005/diagrams/internal/common"
	"github.com/dmitrijs2005/diagrams/internal/server/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims is the verified content of an access token.
type Claims struct {
	UserID    int64
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Issuer signs access tokens for authenticated users.
type Issuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
	newID  func() string
}

func NewIssuer(secret []byte, issuer string, ttl time.Duration) *Issuer {
	return &Issuer{
		secret: secret,
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
		newID:  func() string { return uuid.NewString() },
	}
}

// Issue returns a signed token for userID valid for the issuer's TTL.
func (i *Issuer) Issue(userID int64) (*models.AccessToken, error) {
	now := i.now().Truncate(time.Second)
	exp := now.Add(i.ttl)
	jti := i.newID()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(userID, 10),
		Issuer:    i.issuer,
		ID:        jti,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	})

	signed, err := token.SignedString(i.secret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	return &models.AccessToken{
		Token:     signed,
		TokenType: common.TokenTypeBearer,
		TokenID:   jti,
		ExpiresAt: exp,
	}, nil
}

// Verifier checks tokens produced by an Issuer sharing the same secret
// and issuer name.
type Verifier struct {
	secret []byte
	issuer string
	now    func() time.Time
}

func NewVerifier(secret []byte, issuer string) *Verifier {
	return &Verifier{secret: secret, issuer: issuer, now: time.Now}
}

// Verify parses tokenString and returns its claims. It fails with
// common.ErrTokenExpired for an expired token and common.ErrTokenInvalid
// for anything else that does not check out.
func (v *Verifier) Verify(tokenString string) (*Claims, error) {
	rc := &jwt.RegisteredClaims{}

	_, err := jwt.ParseWithClaims(tokenString, rc,
		func(t *jwt.Token) (any, error) { return v.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(v.issuer),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", common.ErrTokenInvalid, err)
	}

	if rc.Subject == "" || rc.ID == "" {
		return nil, common.ErrTokenInvalid
	}
	userID, err := strconv.ParseInt(rc.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return nil, common.ErrTokenInvalid
	}

	claims := &Claims{
		UserID:    userID,
		TokenID:   rc.ID,
		ExpiresAt: rc.ExpiresAt.Time,
	}
	if rc.IssuedAt != nil {
		claims.IssuedAt = rc.IssuedAt.Time
	}
	return claims, nil
}
