// Package users declares the credential and identity store.
package users

import (
	"context"

	"github.com/dmitrijs2005/diagrams/internal/server/models"
)

// Repository stores accounts. Lookups return common.ErrorNotFound when no
// row matches; Create reports duplicates as common.ErrUsernameTaken or
// common.ErrEmailTaken.
type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetUserByLogin(ctx context.Context, userName string) (*models.User, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	Delete(ctx context.Context, id int64) error
}
