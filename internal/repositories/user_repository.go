package repositories

import (
	"context"

	"usersapi/internal/models"
)

// UserRepository defines the interface for user data access. Users are
// addressed by their business key, userId.
//
// Read methods return stripped users: Password and Orders are never
// populated. Missing users are reported as apperrors.ErrNotFound and
// userId/username collisions as apperrors.ErrDuplicateKey.
type UserRepository interface {
	EnsureSchema(ctx context.Context) error
	Exists(ctx context.Context, userID int) (bool, error)
	Create(ctx context.Context, user *models.User) error
	List(ctx context.Context) ([]models.User, error)
	Get(ctx context.Context, userID int) (*models.User, error)
	// Replace overwrites every field of the user. Orders are only replaced
	// when user.Orders is non-nil.
	Replace(ctx context.Context, userID int, user *models.User) (*models.User, error)
	Delete(ctx context.Context, userID int) (*models.User, error)
	AppendOrder(ctx context.Context, userID int, order models.Order) error
	ListOrders(ctx context.Context, userID int) ([]models.Order, error)
	TotalPrice(ctx context.Context, userID int) (float64, error)
}
