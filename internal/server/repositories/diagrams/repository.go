// Package diagrams declares storage for user-owned diagram documents.
package diagrams

import (
	"context"

	"github.com/dmitrijs2005/diagrams/internal/server/models"
)

// Repository stores diagrams. Methods taking a userID only see rows owned
// by that user and report common.ErrorNotFound otherwise.
type Repository interface {
	Create(ctx context.Context, d *models.Diagram) (*models.Diagram, error)
	GetByID(ctx context.Context, id, userID int64) (*models.Diagram, error)
	ListByUser(ctx context.Context, userID int64) ([]*models.Diagram, error)
	Update(ctx context.Context, d *models.Diagram) (*models.Diagram, error)
	Delete(ctx context.Context, id, userID int64) error

	// SetShareUUID assigns shareUUID unless the diagram already has one and
	// returns the stored diagram.
	SetShareUUID(ctx context.Context, id, userID int64, shareUUID string) (*models.Diagram, error)
	GetByShareUUID(ctx context.Context, shareUUID string) (*models.Diagram, error)
}
