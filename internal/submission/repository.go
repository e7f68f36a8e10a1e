// internal/submission/repository.go

package submission

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

var ErrNotFound = errors.New("submission not found")

// Repository handles submission persistence
type Repository interface {
	Create(ctx context.Context, record *Record) error
	GetByID(ctx context.Context, id int64) (*Record, error)
	GetByUUID(ctx context.Context, uuid string) (*Record, error)
	ListForForm(ctx context.Context, formID int64, limit, offset int) ([]*Record, error)
	CountForForm(ctx context.Context, formID int64) (int64, error)
	CountRecent(ctx context.Context, formID int64, since time.Time) (int64, error)
	Delete(ctx context.Context, id int64) error
}

type postgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository creates a new PostgreSQL submission repository
func NewPostgresRepository(db *sqlx.DB) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) Create(ctx context.Context, record *Record) error {
	query := `
		INSERT INTO submissions (form_id, uuid, data, ip_address, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}

	err := r.db.QueryRowContext(ctx, query,
		record.FormID,
		record.UUID,
		record.Data,
		record.IPAddress,
		record.UserAgent,
		record.CreatedAt,
	).Scan(&record.ID)
	if err != nil {
		return fmt.Errorf("failed to create submission: %w", err)
	}
	return nil
}

func (r *postgresRepository) GetByID(ctx context.Context, id int64) (*Record, error) {
	var record Record
	query := `SELECT * FROM submissions WHERE id = $1`

	err := r.db.GetContext(ctx, &record, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}
	return &record, nil
}

func (r *postgresRepository) GetByUUID(ctx context.Context, uuid string) (*Record, error) {
	var record Record
	query := `SELECT * FROM submissions WHERE uuid = $1`

	err := r.db.GetContext(ctx, &record, query, uuid)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}
	return &record, nil
}

func (r *postgresRepository) ListForForm(ctx context.Context, formID int64, limit, offset int) ([]*Record, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	var records []*Record
	query := `
		SELECT * FROM submissions
		WHERE form_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	err := r.db.SelectContext(ctx, &records, query, formID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	return records, nil
}

func (r *postgresRepository) CountForForm(ctx context.Context, formID int64) (int64, error) {
	var count int64
	query := `SELECT COUNT(*) FROM submissions WHERE form_id = $1`

	err := r.db.GetContext(ctx, &count, query, formID)
	if err != nil {
		return 0, fmt.Errorf("failed to count submissions: %w", err)
	}
	return count, nil
}

func (r *postgresRepository) CountRecent(ctx context.Context, formID int64, since time.Time) (int64, error) {
	var count int64
	query := `SELECT COUNT(*) FROM submissions WHERE form_id = $1 AND created_at >= $2`

	err := r.db.GetContext(ctx, &count, query, formID, since)
	if err != nil {
		return 0, fmt.Errorf("failed to count recent submissions: %w", err)
	}
	return count, nil
}

func (r *postgresRepository) Delete(ctx context.Context, id int64) error {
	query := `DELETE FROM submissions WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete submission: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}
