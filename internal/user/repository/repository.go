package repository

import (
	"context"

	"affirmation-wave/backend/internal/user/domain"
)

// Repository defines persistence for users.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByPrincipal(ctx context.Context, principalID string) (*domain.User, error)
	Create(ctx context.Context, u *domain.User) error
	// IncrementCompletedSessions adds one to the user's lifetime counter and
	// returns the new total.
	IncrementCompletedSessions(ctx context.Context, userID string) (int, error)
}
