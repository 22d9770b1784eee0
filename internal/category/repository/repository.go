package repository

import (
	"context"

	"affirmation-wave/backend/internal/category/domain"
)

// Repository defines persistence for categories.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Category, error)
	List(ctx context.Context) ([]*domain.Category, error)
	Create(ctx context.Context, c *domain.Category) error
}
