package repositories

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"usersapi/internal/apperrors"
	"usersapi/internal/models"
)

// MemoryUserRepository is an in-memory implementation of UserRepository.
type MemoryUserRepository struct {
	users map[int]models.User
	mu    sync.RWMutex
}

// NewMemoryUserRepository creates a new instance of MemoryUserRepository.
func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		users: make(map[int]models.User),
	}
}

// EnsureSchema is a no-op for the in-memory store.
func (r *MemoryUserRepository) EnsureSchema(ctx context.Context) error {
	return nil
}

// Exists reports whether a user with the given userId is stored.
func (r *MemoryUserRepository) Exists(ctx context.Context, userID int) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.users[userID]
	return ok, nil
}

// Create adds a new user.
func (r *MemoryUserRepository) Create(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[user.UserID]; ok {
		return fmt.Errorf("user with userId %d: %w", user.UserID, apperrors.ErrDuplicateKey)
	}
	if r.usernameTaken(user.Username, 0) {
		return fmt.Errorf("user with username %s: %w", user.Username, apperrors.ErrDuplicateKey)
	}
	stored := clone(*user)
	if stored.Orders == nil {
		stored.Orders = []models.Order{}
	}
	r.users[user.UserID] = stored
	return nil
}

// List returns all users ordered by userId.
func (r *MemoryUserRepository) List(ctx context.Context) ([]models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	userList := make([]models.User, 0, len(r.users))
	for _, u := range r.users {
		userList = append(userList, strip(u))
	}
	sort.Slice(userList, func(i, j int) bool { return userList[i].UserID < userList[j].UserID })
	return userList, nil
}

// Get returns a user by userId.
func (r *MemoryUserRepository) Get(ctx context.Context, userID int) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[userID]
	if !ok {
		return nil, fmt.Errorf("user with userId %d: %w", userID, apperrors.ErrNotFound)
	}
	out := strip(u)
	return &out, nil
}

// Replace overwrites an existing user.
func (r *MemoryUserRepository) Replace(ctx context.Context, userID int, user *models.User) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.users[userID]
	if !ok {
		return nil, fmt.Errorf("user with userId %d not found for update: %w", userID, apperrors.ErrNotFound)
	}
	if user.UserID != userID {
		if _, taken := r.users[user.UserID]; taken {
			return nil, fmt.Errorf("user with userId %d: %w", user.UserID, apperrors.ErrDuplicateKey)
		}
	}
	if r.usernameTaken(user.Username, userID) {
		return nil, fmt.Errorf("user with username %s: %w", user.Username, apperrors.ErrDuplicateKey)
	}

	updated := clone(*user)
	if user.Orders == nil {
		updated.Orders = existing.Orders
	}
	delete(r.users, userID)
	r.users[updated.UserID] = updated

	out := strip(updated)
	return &out, nil
}

// Delete removes a user and its orders.
func (r *MemoryUserRepository) Delete(ctx context.Context, userID int) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[userID]
	if !ok {
		return nil, fmt.Errorf("user with userId %d not found for deletion: %w", userID, apperrors.ErrNotFound)
	}
	delete(r.users, userID)
	out := strip(u)
	return &out, nil
}

// AppendOrder adds an order to the end of a user's order list.
func (r *MemoryUserRepository) AppendOrder(ctx context.Context, userID int, order models.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[userID]
	if !ok {
		return fmt.Errorf("user with userId %d: %w", userID, apperrors.ErrNotFound)
	}
	orders := make([]models.Order, len(u.Orders), len(u.Orders)+1)
	copy(orders, u.Orders)
	u.Orders = append(orders, order)
	r.users[userID] = u
	return nil
}

// ListOrders returns a user's orders.
func (r *MemoryUserRepository) ListOrders(ctx context.Context, userID int) ([]models.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[userID]
	if !ok {
		return nil, fmt.Errorf("user with userId %d: %w", userID, apperrors.ErrNotFound)
	}
	orders := make([]models.Order, len(u.Orders))
	copy(orders, u.Orders)
	return orders, nil
}

// TotalPrice sums the unit price of every order of a user.
func (r *MemoryUserRepository) TotalPrice(ctx context.Context, userID int) (float64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[userID]
	if !ok {
		return 0, fmt.Errorf("user with userId %d: %w", userID, apperrors.ErrNotFound)
	}
	var total float64
	for _, o := range u.Orders {
		total += o.Price
	}
	return total, nil
}

// usernameTaken must be called with the lock held. exceptUserID excludes the
// user being replaced.
func (r *MemoryUserRepository) usernameTaken(username string, exceptUserID int) bool {
	for id, u := range r.users {
		if id != exceptUserID && u.Username == username {
			return true
		}
	}
	return false
}

func clone(u models.User) models.User {
	u.Hobbies = append([]string(nil), u.Hobbies...)
	if u.Orders != nil {
		u.Orders = append([]models.Order{}, u.Orders...)
	}
	return u
}

func strip(u models.User) models.User {
	u = clone(u)
	u.Password = ""
	u.Orders = nil
	return u
}
