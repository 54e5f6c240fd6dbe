// Package services contains server-side business logic. This file implements
// UserService: registration, credential exchange, session verification,
// logout and account removal.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/diagrams/internal/common"
	"github.com/dmitrijs2005/diagrams/internal/cryptox"
	"github.com/dmitrijs2005/diagrams/internal/dbx"
	"github.com/dmitrijs2005/diagrams/internal/logging"
	"github.com/dmitrijs2005/diagrams/internal/server/auth"
	"github.com/dmitrijs2005/diagrams/internal/server/config"
	"github.com/dmitrijs2005/diagrams/internal/server/metrics"
	"github.com/dmitrijs2005/diagrams/internal/server/models"
	"github.com/dmitrijs2005/diagrams/internal/server/repositories/repomanager"
)

// TokenIssuer mints access tokens.
type TokenIssuer interface {
	Issue(userID int64) (*models.AccessToken, error)
}

// TokenVerifier checks access tokens.
type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

// UserService owns the account lifecycle and both halves of the token flow.
type UserService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	issuer      TokenIssuer
	verifier    TokenVerifier
	logger      logging.Logger
	hashParams  cryptox.Params
	now         func() time.Time

	dummyHash string
}

// NewUserService constructs a UserService whose tokens are signed with
// cfg.SecretKey and live for cfg.AccessTokenValidityDuration.
func NewUserService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config, logger logging.Logger) (*UserService, error) {
	return newUserService(db, m, cfg, logger, cryptox.DefaultParams())
}

func newUserService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config, logger logging.Logger, params cryptox.Params) (*UserService, error) {
	// Hashed up front so the first unknown-username login costs the same
	// as every later one.
	dummy, err := dummyHash(params)
	if err != nil {
		return nil, fmt.Errorf("dummy hash: %w", err)
	}

	secret := []byte(cfg.SecretKey)
	return &UserService{
		db:          db,
		repomanager: m,
		issuer:      auth.NewIssuer(secret, cfg.TokenIssuer, cfg.AccessTokenValidityDuration),
		verifier:    auth.NewVerifier(secret, cfg.TokenIssuer),
		logger:      logger,
		hashParams:  params,
		now:         time.Now,
		dummyHash:   dummy,
	}, nil
}

// Register stores a new account. Duplicates surface as common.ErrUsernameTaken
// or common.ErrEmailTaken.
func (s *UserService) Register(ctx context.Context, userName, email, password string) (*models.User, error) {
	hash, err := cryptox.HashPassword(password, s.hashParams)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrValidation, err)
	}

	repo := s.repomanager.Users(s.db)
	user, err := repo.Create(ctx, &models.User{UserName: userName, Email: email, PasswordHash: hash})
	if err != nil {
		if errors.Is(err, common.ErrUsernameTaken) || errors.Is(err, common.ErrEmailTaken) {
			return nil, err
		}
		return nil, fmt.Errorf("error creating user: %w", err)
	}

	s.logger.Info(ctx, "auth.register", "user_id", user.ID)
	return user, nil
}

// Login exchanges a username and password for an access token. Every
// credential failure, including an unknown username, is
// common.ErrInvalidCredentials.
func (s *UserService) Login(ctx context.Context, userName, password string) (*models.AccessToken, error) {
	if userName == "" || password == "" {
		s.loginFailed(ctx, userName, "empty credentials")
		return nil, common.ErrInvalidCredentials
	}

	repo := s.repomanager.Users(s.db)
	user, err := repo.GetUserByLogin(ctx, userName)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			// burn the same argon2 work as a real mismatch
			_, _ = cryptox.VerifyPassword(password, s.dummyHash)
			s.loginFailed(ctx, userName, "unknown user")
			return nil, common.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}

	ok, err := cryptox.VerifyPassword(password, user.PasswordHash)
	if err != nil {
		s.logger.Error(ctx, "stored password hash is unreadable", "user_id", user.ID, "error", err)
		return nil, common.ErrorInternal
	}
	if !ok {
		s.loginFailed(ctx, userName, "password mismatch")
		return nil, common.ErrInvalidCredentials
	}

	token, err := s.issuer.Issue(user.ID)
	if err != nil {
		s.logger.Error(ctx, "token signing failed", "error", err)
		return nil, common.ErrorInternal
	}

	metrics.RecordTokenIssued()
	s.logger.Info(ctx, "auth.login.success", "user_id", user.ID, "jti", token.TokenID)
	return token, nil
}

func (s *UserService) loginFailed(ctx context.Context, userName, reason string) {
	metrics.RecordLoginFailure()
	s.logger.Warn(ctx, "auth.login.failed", "username", userName, "reason", reason)
}

// dummyHash returns a hash of a random secret, so no password matches it.
func dummyHash(params cryptox.Params) (string, error) {
	secret, err := common.MakeRandHexString(16)
	if err != nil {
		return "", err
	}
	return cryptox.HashPassword(secret, params)
}

// Authenticate resolves a bearer token to the identity of its subject.
func (s *UserService) Authenticate(ctx context.Context, token string) (*models.SessionIdentity, error) {
	identity, err := s.authenticate(ctx, token)
	metrics.RecordVerify(verifyResult(err))
	if err != nil && common.IsAuthError(err) {
		s.logger.Debug(ctx, "auth.verify.rejected", "reason", err.Error())
	}
	return identity, err
}

func (s *UserService) authenticate(ctx context.Context, token string) (*models.SessionIdentity, error) {
	if token == "" {
		return nil, common.ErrNotAuthenticated
	}

	claims, err := s.verifier.Verify(token)
	if err != nil {
		return nil, err
	}

	revoked, err := s.repomanager.Revocations(s.db).IsRevoked(ctx, claims.TokenID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}
	if revoked {
		return nil, common.ErrTokenRevoked
	}

	user, err := s.repomanager.Users(s.db).GetUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrSubjectNotFound
		}
		return nil, fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}

	return &models.SessionIdentity{
		UserID:    user.ID,
		UserName:  user.UserName,
		Email:     user.Email,
		TokenID:   claims.TokenID,
		ExpiresAt: claims.ExpiresAt,
	}, nil
}

func verifyResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, common.ErrNotAuthenticated):
		return "missing"
	case errors.Is(err, common.ErrTokenExpired):
		return "expired"
	case errors.Is(err, common.ErrTokenRevoked):
		return "revoked"
	case errors.Is(err, common.ErrSubjectNotFound):
		return "unknown_subject"
	case errors.Is(err, common.ErrTokenInvalid):
		return "invalid"
	default:
		return "error"
	}
}

// Logout revokes the token behind identity until it expires.
func (s *UserService) Logout(ctx context.Context, identity *models.SessionIdentity) error {
	repo := s.repomanager.Revocations(s.db)
	if err := repo.Revoke(ctx, identity.TokenID, identity.UserID, identity.ExpiresAt); err != nil {
		return fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}
	s.logger.Info(ctx, "auth.logout", "user_id", identity.UserID, "jti", identity.TokenID)
	return nil
}

// DeleteAccount removes the user and, through the schema, their diagrams.
// The presented token is revoked in the same transaction.
func (s *UserService) DeleteAccount(ctx context.Context, identity *models.SessionIdentity) error {
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Revocations(tx).Revoke(ctx, identity.TokenID, identity.UserID, identity.ExpiresAt); err != nil {
			return err
		}
		return s.repomanager.Users(tx).Delete(ctx, identity.UserID)
	})
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrSubjectNotFound
		}
		return fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}
	s.logger.Info(ctx, "auth.account.deleted", "user_id", identity.UserID)
	return nil
}

// PurgeRevocations deletes revocation records for tokens that have expired.
func (s *UserService) PurgeRevocations(ctx context.Context) (int64, error) {
	n, err := s.repomanager.Revocations(s.db).DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, err
	}
	metrics.RecordPurge(n)
	return n, nil
}

// RunPurgeLoop calls PurgeRevocations every interval until ctx is done.
func (s *UserService) RunPurgeLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.PurgeRevocations(ctx)
			if err != nil {
				s.logger.Error(ctx, "revocation purge failed", "error", err)
				continue
			}
			if n > 0 {
				s.logger.Debug(ctx, "revocation purge", "deleted", n)
			}
		}
	}
}
