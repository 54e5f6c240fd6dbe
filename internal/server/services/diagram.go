package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/diagrams/internal/common"
	"github.com/dmitrijs2005/diagrams/internal/dbx"
	"github.com/dmitrijs2005/diagrams/internal/logging"
	"github.com/dmitrijs2005/diagrams/internal/server/models"
	"github.com/dmitrijs2005/diagrams/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// DiagramService manages diagrams on behalf of their owners. A diagram that
// belongs to someone else is reported as common.ErrorNotFound.
type DiagramService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	logger      logging.Logger
	newShareID  func() string
}

func NewDiagramService(db *sql.DB, m repomanager.RepositoryManager, logger logging.Logger) *DiagramService {
	return &DiagramService{
		db:          db,
		repomanager: m,
		logger:      logger,
		newShareID:  uuid.NewString,
	}
}

// DiagramPatch holds the fields of an update. Nil fields are left as they are.
type DiagramPatch struct {
	Title   *string
	Content json.RawMessage
}

func normalizeTitle(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return models.DefaultDiagramTitle
	}
	return title
}

func checkContent(content json.RawMessage) error {
	if len(content) > 0 && !json.Valid(content) {
		return fmt.Errorf("%w: content is not valid JSON", common.ErrValidation)
	}
	return nil
}

func (s *DiagramService) Create(ctx context.Context, userID int64, title string, content json.RawMessage) (*models.Diagram, error) {
	if err := checkContent(content); err != nil {
		return nil, err
	}

	d, err := s.repomanager.Diagrams(s.db).Create(ctx, &models.Diagram{
		UserID:  userID,
		Title:   normalizeTitle(title),
		Content: content,
	})
	if err != nil {
		return nil, fmt.Errorf("error creating diagram: %w", err)
	}

	s.logger.Info(ctx, "diagram.created", "user_id", userID, "diagram_id", d.ID)
	return d, nil
}

func (s *DiagramService) List(ctx context.Context, userID int64) ([]*models.Diagram, error) {
	return s.repomanager.Diagrams(s.db).ListByUser(ctx, userID)
}

func (s *DiagramService) Get(ctx context.Context, userID, id int64) (*models.Diagram, error) {
	return s.repomanager.Diagrams(s.db).GetByID(ctx, id, userID)
}

// Update applies patch to the diagram inside a transaction.
func (s *DiagramService) Update(ctx context.Context, userID, id int64, patch DiagramPatch) (*models.Diagram, error) {
	if err := checkContent(patch.Content); err != nil {
		return nil, err
	}

	var updated *models.Diagram
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Diagrams(tx)

		d, err := repo.GetByID(ctx, id, userID)
		if err != nil {
			return err
		}
		if patch.Title != nil {
			d.Title = normalizeTitle(*patch.Title)
		}
		if patch.Content != nil {
			d.Content = patch.Content
		}

		updated, err = repo.Update(ctx, d)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *DiagramService) Delete(ctx context.Context, userID, id int64) error {
	if err := s.repomanager.Diagrams(s.db).Delete(ctx, id, userID); err != nil {
		return err
	}
	s.logger.Info(ctx, "diagram.deleted", "user_id", userID, "diagram_id", id)
	return nil
}

// Share makes the diagram readable by share UUID. Sharing twice keeps the
// first UUID.
func (s *DiagramService) Share(ctx context.Context, userID, id int64) (*models.Diagram, error) {
	d, err := s.repomanager.Diagrams(s.db).SetShareUUID(ctx, id, userID, s.newShareID())
	if err != nil {
		return nil, err
	}
	return d, nil
}

// GetShared returns a shared diagram to anyone holding its UUID.
func (s *DiagramService) GetShared(ctx context.Context, shareUUID string) (*models.Diagram, error) {
	if _, err := uuid.Parse(shareUUID); err != nil {
		return nil, common.ErrorNotFound
	}
	return s.repomanager.Diagrams(s.db).GetByShareUUID(ctx, shareUUID)
}
