package repository

import (
	"context"
	"database/sql"
	"errors"

	"affirmation-wave/backend/internal/category/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a category repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByID returns the category for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Category, error) {
	var c domain.Category
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, prompt, created_at FROM categories WHERE id = $1`, id).
		Scan(&c.ID, &c.Name, &c.Prompt, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

// List returns all categories ordered by name.
func (r *PostgresRepository) List(ctx context.Context) ([]*domain.Category, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, prompt, created_at FROM categories ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Category
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Prompt, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

// Create persists the category to the database. The category must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, c *domain.Category) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO categories (id, name, prompt, created_at) VALUES ($1, $2, $3, $4)`,
		c.ID, c.Name, c.Prompt, c.CreatedAt)
	return err
}
