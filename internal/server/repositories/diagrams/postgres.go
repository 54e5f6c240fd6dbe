package diagrams

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/diagrams/internal/common"
	"github.com/dmitrijs2005/diagrams/internal/dbx"
	"github.com/dmitrijs2005/diagrams/internal/server/models"
)

const columns = `id, user_id, title, content, share_uuid, created_at, updated_at`

// PostgresRepository implements Repository over dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDiagram(row rowScanner) (*models.Diagram, error) {
	var (
		d       models.Diagram
		content []byte
		share   sql.NullString
	)
	if err := row.Scan(&d.ID, &d.UserID, &d.Title, &content, &share, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, err
	}
	if content != nil {
		d.Content = content
	}
	if share.Valid {
		s := share.String
		d.ShareUUID = &s
	}
	return &d, nil
}

// nullableContent keeps an empty document as SQL NULL.
func nullableContent(d *models.Diagram) any {
	if len(d.Content) == 0 {
		return nil
	}
	return []byte(d.Content)
}

func (r *PostgresRepository) one(ctx context.Context, query string, args ...any) (*models.Diagram, error) {
	d, err := scanDiagram(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return d, nil
}

func (r *PostgresRepository) Create(ctx context.Context, d *models.Diagram) (*models.Diagram, error) {
	query := `
		INSERT INTO diagrams (user_id, title, content)
		VALUES ($1, $2, $3)
		RETURNING ` + columns
	return r.one(ctx, query, d.UserID, d.Title, nullableContent(d))
}

func (r *PostgresRepository) GetByID(ctx context.Context, id, userID int64) (*models.Diagram, error) {
	query := `
		SELECT ` + columns + `
		FROM diagrams
		WHERE id = $1 AND user_id = $2
	`
	return r.one(ctx, query, id, userID)
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID int64) ([]*models.Diagram, error) {
	query := `
		SELECT ` + columns + `
		FROM diagrams
		WHERE user_id = $1
		ORDER BY updated_at DESC, id DESC
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := make([]*models.Diagram, 0)
	for rows.Next() {
		d, err := scanDiagram(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) Update(ctx context.Context, d *models.Diagram) (*models.Diagram, error) {
	query := `
		UPDATE diagrams
		SET title = $1, content = $2, updated_at = now()
		WHERE id = $3 AND user_id = $4
		RETURNING ` + columns
	return r.one(ctx, query, d.Title, nullableContent(d), d.ID, d.UserID)
}

func (r *PostgresRepository) Delete(ctx context.Context, id, userID int64) error {
	query := `
		DELETE FROM diagrams
		WHERE id = $1 AND user_id = $2
	`
	res, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) SetShareUUID(ctx context.Context, id, userID int64, shareUUID string) (*models.Diagram, error) {
	query := `
		UPDATE diagrams
		SET share_uuid = COALESCE(share_uuid, $1)
		WHERE id = $2 AND user_id = $3
		RETURNING ` + columns
	return r.one(ctx, query, shareUUID, id, userID)
}

func (r *PostgresRepository) GetByShareUUID(ctx context.Context, shareUUID string) (*models.Diagram, error) {
	query := `
		SELECT ` + columns + `
		FROM diagrams
		WHERE share_uuid = $1
	`
	return r.one(ctx, query, shareUUID)
}
