package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"usersapi/internal/apperrors"
	"usersapi/internal/models"
	"usersapi/internal/repositories"

	"golang.org/x/crypto/bcrypt"
)

// Event types published after successful writes.
const (
	EventUserCreated   = "user.created"
	EventUserUpdated   = "user.updated"
	EventUserDeleted   = "user.deleted"
	EventOrderAppended = "order.appended"
)

// EventPublisher delivers user lifecycle events to a broker.
type EventPublisher interface {
	Publish(eventType string, body []byte) error
}

// UserEvent is the body of a published event.
type UserEvent struct {
	Type       string        `json:"type"`
	UserID     int           `json:"userId"`
	Username   string        `json:"username,omitempty"`
	Order      *models.Order `json:"order,omitempty"`
	OccurredAt time.Time     `json:"occurredAt"`
}

// UserService handles business logic related to users and their orders.
// Every use case is a single repository call; uniqueness and existence are
// enforced by the store.
type UserService struct {
	repo     repositories.UserRepository
	hashCost int
	events   EventPublisher
	log      *slog.Logger
}

// NewUserService creates a new UserService. events may be nil to disable
// publishing.
func NewUserService(repo repositories.UserRepository, hashCost int, events EventPublisher, log *slog.Logger) *UserService {
	return &UserService{
		repo:     repo,
		hashCost: hashCost,
		events:   events,
		log:      log,
	}
}

// CreateUser hashes the plaintext password and persists the user.
func (s *UserService) CreateUser(ctx context.Context, user *models.User) (*models.User, error) {
	toStore := *user
	hashed, err := s.hashPassword(user.Password)
	if err != nil {
		return nil, err
	}
	toStore.Password = hashed

	if err := s.repo.Create(ctx, &toStore); err != nil {
		return nil, err
	}
	s.publish(UserEvent{Type: EventUserCreated, UserID: toStore.UserID, Username: toStore.Username})

	created := toStore
	created.Password = ""
	created.Orders = nil
	return &created, nil
}

// ListUsers retrieves all users.
func (s *UserService) ListUsers(ctx context.Context) ([]models.User, error) {
	return s.repo.List(ctx)
}

// GetUser retrieves a single user by userId.
func (s *UserService) GetUser(ctx context.Context, userID int) (*models.User, error) {
	return s.repo.Get(ctx, userID)
}

// UserExists reports whether a user with the given userId exists.
func (s *UserService) UserExists(ctx context.Context, userID int) (bool, error) {
	return s.repo.Exists(ctx, userID)
}

// UpdateUser replaces the user stored under userID. The body's userId must
// match userID.
func (s *UserService) UpdateUser(ctx context.Context, userID int, user *models.User) (*models.User, error) {
	if user.UserID != userID {
		return nil, fmt.Errorf("path userId %d, body userId %d: %w", userID, user.UserID, apperrors.ErrIdentityMismatch)
	}
	toStore := *user
	hashed, err := s.hashPassword(user.Password)
	if err != nil {
		return nil, err
	}
	toStore.Password = hashed

	updated, err := s.repo.Replace(ctx, userID, &toStore)
	if err != nil {
		return nil, err
	}
	s.publish(UserEvent{Type: EventUserUpdated, UserID: updated.UserID, Username: updated.Username})
	return updated, nil
}

// DeleteUser removes a user together with its orders.
func (s *UserService) DeleteUser(ctx context.Context, userID int) error {
	deleted, err := s.repo.Delete(ctx, userID)
	if err != nil {
		return err
	}
	s.publish(UserEvent{Type: EventUserDeleted, UserID: deleted.UserID, Username: deleted.Username})
	return nil
}

// AppendOrder adds an order to the user's order list.
func (s *UserService) AppendOrder(ctx context.Context, userID int, order models.Order) error {
	if err := s.repo.AppendOrder(ctx, userID, order); err != nil {
		return err
	}
	s.publish(UserEvent{Type: EventOrderAppended, UserID: userID, Order: &order})
	return nil
}

// ListOrders returns the orders of a user.
func (s *UserService) ListOrders(ctx context.Context, userID int) ([]models.Order, error) {
	return s.repo.ListOrders(ctx, userID)
}

// TotalPrice returns the sum of the unit prices of a user's orders.
func (s *UserService) TotalPrice(ctx context.Context, userID int) (float64, error) {
	return s.repo.TotalPrice(ctx, userID)
}

func (s *UserService) hashPassword(plain string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), s.hashCost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", fmt.Errorf("%w: password exceeds 72 bytes", apperrors.ErrValidation)
	}
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

// publish never fails the calling use case; broker errors are logged.
func (s *UserService) publish(ev UserEvent) {
	if s.events == nil {
		return
	}
	ev.OccurredAt = time.Now().UTC()
	body, err := json.Marshal(ev)
	if err != nil {
		s.log.Error("failed to marshal event", "type", ev.Type, "error", err)
		return
	}
	if err := s.events.Publish(ev.Type, body); err != nil {
		s.log.Warn("failed to publish event", "type", ev.Type, "user_id", ev.UserID, "error", err)
		return
	}
	s.log.Debug("published event", "type", ev.Type, "user_id", ev.UserID)
}
