package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/snappy-loop/animator/internal/models"
)

// ErrAnimationNotFound is returned when no animation has the requested ID.
var ErrAnimationNotFound = errors.New("animation not found")

const animationColumns = `id, status, model, prompt, image_url, operation_name, media_id,
	mime_type, size_bytes, archive_key, error_kind, error_message, created_at, finished_at`

// AnimationRepository handles animation history operations
type AnimationRepository struct {
	db *DB
}

// NewAnimationRepository creates a new AnimationRepository
func NewAnimationRepository(db *DB) *AnimationRepository {
	return &AnimationRepository{db: db}
}

// Create inserts a started animation
func (r *AnimationRepository) Create(ctx context.Context, a *models.Animation) error {
	query := `
		INSERT INTO animations (id, status, model, prompt, image_url, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.ExecContext(ctx, query, a.ID, a.Status, a.Model, a.Prompt, a.ImageURL, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert animation: %w", err)
	}
	return nil
}

// Finish stores the outcome of an animation. Missing rows are inserted so a
// failed Create does not lose the result.
func (r *AnimationRepository) Finish(ctx context.Context, a *models.Animation) error {
	query := `
		INSERT INTO animations (` + animationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			operation_name = EXCLUDED.operation_name,
			media_id = EXCLUDED.media_id,
			mime_type = EXCLUDED.mime_type,
			size_bytes = EXCLUDED.size_bytes,
			archive_key = EXCLUDED.archive_key,
			error_kind = EXCLUDED.error_kind,
			error_message = EXCLUDED.error_message,
			finished_at = EXCLUDED.finished_at
	`
	_, err := r.db.ExecContext(ctx, query,
		a.ID, a.Status, a.Model, a.Prompt, a.ImageURL, a.OperationName, a.MediaID,
		a.MimeType, a.SizeBytes, a.ArchiveKey, a.ErrorKind, a.ErrorMessage, a.CreatedAt, a.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("finish animation: %w", err)
	}
	return nil
}

// GetByID retrieves an animation by ID
func (r *AnimationRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Animation, error) {
	query := `SELECT ` + animationColumns + ` FROM animations WHERE id = $1`

	a, err := scanAnimation(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAnimationNotFound
	}
	return a, err
}

// List returns animations newest first, paginated by created_at cursor
func (r *AnimationRepository) List(ctx context.Context, limit int, cursor *time.Time) ([]*models.Animation, error) {
	query := `
		SELECT ` + animationColumns + `
		FROM animations
		WHERE ($1::timestamptz IS NULL OR created_at < $1)
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, cursor, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	animations := []*models.Animation{}
	for rows.Next() {
		a, err := scanAnimation(rows)
		if err != nil {
			return nil, err
		}
		animations = append(animations, a)
	}

	return animations, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAnimation(row rowScanner) (*models.Animation, error) {
	a := &models.Animation{}
	var mediaID uuid.NullUUID
	err := row.Scan(
		&a.ID, &a.Status, &a.Model, &a.Prompt, &a.ImageURL, &a.OperationName, &mediaID,
		&a.MimeType, &a.SizeBytes, &a.ArchiveKey, &a.ErrorKind, &a.ErrorMessage, &a.CreatedAt, &a.FinishedAt,
	)
	if err != nil {
		return nil, err
	}
	if mediaID.Valid {
		id := mediaID.UUID
		a.MediaID = &id
	}
	return a, nil
}
