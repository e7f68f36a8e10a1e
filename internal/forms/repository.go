// internal/forms/repository.go

package forms

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

var ErrNotFound = errors.New("form not found")

type Repository interface {
	Create(ctx context.Context, form *Form) error
	Find(ctx context.Context, formID int64) (*Form, error)
	List(ctx context.Context, limit, offset int) ([]*Form, error)
	Update(ctx context.Context, form *Form) error
	Delete(ctx context.Context, formID int64) error
}

type postgresRepository struct {
	db *sqlx.DB
}

func NewPostgresRepository(db *sqlx.DB) Repository {
	return &postgresRepository{db: db}
}

// Create inserts a new form
func (r *postgresRepository) Create(ctx context.Context, form *Form) error {
	query := `
		INSERT INTO forms (title, active, config)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		form.Title, form.Active, form.Config,
	).Scan(&form.ID, &form.CreatedAt, &form.UpdatedAt)

	return err
}

// Find retrieves a form by ID
func (r *postgresRepository) Find(ctx context.Context, formID int64) (*Form, error) {
	var form Form
	query := `
		SELECT id, title, active, config, created_at, updated_at
		FROM forms
		WHERE id = $1`

	err := r.db.GetContext(ctx, &form, query, formID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get form: %w", err)
	}

	return &form, nil
}

// List returns forms ordered by creation time
func (r *postgresRepository) List(ctx context.Context, limit, offset int) ([]*Form, error) {
	forms := []*Form{}
	query := `
		SELECT id, title, active, config, created_at, updated_at
		FROM forms
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`

	err := r.db.SelectContext(ctx, &forms, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list forms: %w", err)
	}

	return forms, nil
}

// Update persists title, active flag and config
func (r *postgresRepository) Update(ctx context.Context, form *Form) error {
	query := `
		UPDATE forms
		SET title = $1, active = $2, config = $3, updated_at = NOW()
		WHERE id = $4
		RETURNING updated_at`

	err := r.db.QueryRowContext(ctx, query,
		form.Title, form.Active, form.Config, form.ID,
	).Scan(&form.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}

	return err
}

// Delete removes a form
func (r *postgresRepository) Delete(ctx context.Context, formID int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM forms WHERE id = $1`, formID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}
