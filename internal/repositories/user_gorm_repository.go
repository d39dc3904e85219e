package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"usersapi/internal/apperrors"
	"usersapi/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// userRecord is the relational row for a user. Orders live in user_orders and
// keep their insertion order through the serial primary key.
type userRecord struct {
	ID        uint          `gorm:"primaryKey"`
	UserID    int           `gorm:"uniqueIndex;not null"`
	Username  string        `gorm:"uniqueIndex;type:varchar(255);not null"`
	Password  string        `gorm:"type:varchar(255);not null"`
	FirstName string        `gorm:"type:varchar(255)"`
	LastName  string        `gorm:"type:varchar(255)"`
	Age       int           `gorm:"not null"`
	Email     string        `gorm:"type:varchar(255)"`
	IsActive  bool          `gorm:"not null"`
	Hobbies   []string      `gorm:"serializer:json;type:text"`
	Street    string        `gorm:"type:varchar(255)"`
	City      string        `gorm:"type:varchar(255)"`
	Country   string        `gorm:"type:varchar(255)"`
	Orders    []orderRecord `gorm:"foreignKey:UserRef;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (userRecord) TableName() string { return "users" }

type orderRecord struct {
	ID          uint    `gorm:"primaryKey"`
	UserRef     uint    `gorm:"index;not null"`
	ProductName string  `gorm:"type:varchar(255);not null"`
	Price       float64 `gorm:"not null"`
	Quantity    int     `gorm:"not null"`
}

func (orderRecord) TableName() string { return "user_orders" }

// publicColumns excludes the password hash.
var publicColumns = []string{
	"id", "user_id", "username", "first_name", "last_name", "age",
	"email", "is_active", "hobbies", "street", "city", "country",
}

var replaceColumns = []string{
	"user_id", "username", "password", "first_name", "last_name", "age",
	"email", "is_active", "hobbies", "street", "city", "country", "updated_at",
}

// OpenGORM opens a postgres or sqlite database with duplicate-key errors
// translated to gorm.ErrDuplicatedKey.
func OpenGORM(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "postgres":
		dialector = postgres.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported gorm driver %q", driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s database: %w", driver, err)
	}
	if driver == "sqlite" {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get sqlite handle: %w", err)
		}
		// sqlite allows one writer at a time
		sqlDB.SetMaxOpenConns(1)
	}
	return db, nil
}

// GORMUserRepository is a GORM implementation of UserRepository.
type GORMUserRepository struct {
	db *gorm.DB
}

// NewGORMUserRepository creates a new instance of GORMUserRepository.
func NewGORMUserRepository(db *gorm.DB) *GORMUserRepository {
	return &GORMUserRepository{
		db: db,
	}
}

// EnsureSchema migrates the users and user_orders tables.
func (r *GORMUserRepository) EnsureSchema(ctx context.Context) error {
	if err := r.db.WithContext(ctx).AutoMigrate(&userRecord{}, &orderRecord{}); err != nil {
		return fmt.Errorf("failed to migrate user tables: %w", err)
	}
	return nil
}

// Exists reports whether a user with the given userId is stored.
func (r *GORMUserRepository) Exists(ctx context.Context, userID int) (bool, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&userRecord{}).Where("user_id = ?", userID).Limit(1).Count(&n).Error; err != nil {
		return false, persistenceErr("check user existence", err)
	}
	return n > 0, nil
}

// Create inserts a user and its orders.
func (r *GORMUserRepository) Create(ctx context.Context, user *models.User) error {
	rec := toUserRecord(user)
	rec.Orders = toOrderRecords(user.Orders)
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("user with userId %d or username %s: %w", user.UserID, user.Username, apperrors.ErrDuplicateKey)
		}
		return persistenceErr("create user", err)
	}
	return nil
}

// List retrieves all users ordered by userId.
func (r *GORMUserRepository) List(ctx context.Context) ([]models.User, error) {
	var recs []userRecord
	if err := r.db.WithContext(ctx).Select(publicColumns).Order("user_id").Find(&recs).Error; err != nil {
		return nil, persistenceErr("list users", err)
	}
	users := make([]models.User, 0, len(recs))
	for i := range recs {
		users = append(users, recs[i].toModel())
	}
	return users, nil
}

// Get retrieves a single user by userId.
func (r *GORMUserRepository) Get(ctx context.Context, userID int) (*models.User, error) {
	var rec userRecord
	if err := r.db.WithContext(ctx).Select(publicColumns).Where("user_id = ?", userID).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user with userId %d: %w", userID, apperrors.ErrNotFound)
		}
		return nil, persistenceErr("get user", err)
	}
	u := rec.toModel()
	return &u, nil
}

// Replace overwrites a user row in place, conditional on the userId existing.
func (r *GORMUserRepository) Replace(ctx context.Context, userID int, user *models.User) (*models.User, error) {
	var out models.User
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec := toUserRecord(user)
		rec.UpdatedAt = time.Now()
		res := tx.Model(&userRecord{}).Where("user_id = ?", userID).Select(replaceColumns).Updates(&rec)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		var updated userRecord
		if err := tx.Select(publicColumns).Where("user_id = ?", user.UserID).Take(&updated).Error; err != nil {
			return err
		}
		if user.Orders != nil {
			if err := tx.Where("user_ref = ?", updated.ID).Delete(&orderRecord{}).Error; err != nil {
				return err
			}
			if orders := toOrderRecords(user.Orders); len(orders) > 0 {
				for i := range orders {
					orders[i].UserRef = updated.ID
				}
				if err := tx.Create(&orders).Error; err != nil {
					return err
				}
			}
		}
		out = updated.toModel()
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return nil, fmt.Errorf("user with userId %d not found for update: %w", userID, apperrors.ErrNotFound)
		case errors.Is(err, gorm.ErrDuplicatedKey):
			return nil, fmt.Errorf("user with userId %d or username %s: %w", user.UserID, user.Username, apperrors.ErrDuplicateKey)
		}
		return nil, persistenceErr("update user", err)
	}
	return &out, nil
}

// Delete removes a user and its orders, returning the removed user.
func (r *GORMUserRepository) Delete(ctx context.Context, userID int) (*models.User, error) {
	var rec userRecord
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Select(publicColumns).Where("user_id = ?", userID).Take(&rec).Error; err != nil {
			return err
		}
		if err := tx.Where("user_ref = ?", rec.ID).Delete(&orderRecord{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&userRecord{}, rec.ID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user with userId %d not found for deletion: %w", userID, apperrors.ErrNotFound)
		}
		return nil, persistenceErr("delete user", err)
	}
	u := rec.toModel()
	return &u, nil
}

// AppendOrder inserts an order for the user in a single statement that only
// writes when the user exists.
func (r *GORMUserRepository) AppendOrder(ctx context.Context, userID int, order models.Order) error {
	res := r.db.WithContext(ctx).Exec(
		`INSERT INTO user_orders (user_ref, product_name, price, quantity)
		SELECT id, CAST(? AS VARCHAR(255)), CAST(? AS DECIMAL), CAST(? AS INTEGER) FROM users WHERE user_id = ?`,
		order.ProductName, order.Price, order.Quantity, userID,
	)
	if res.Error != nil {
		return persistenceErr("append order", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("user with userId %d: %w", userID, apperrors.ErrNotFound)
	}
	return nil
}

type orderRow struct {
	ProductName *string
	Price       *float64
	Quantity    *int
}

// ListOrders returns a user's orders in insertion order.
func (r *GORMUserRepository) ListOrders(ctx context.Context, userID int) ([]models.Order, error) {
	var rows []orderRow
	err := r.db.WithContext(ctx).Raw(
		`SELECT o.product_name, o.price, o.quantity
		FROM users u LEFT JOIN user_orders o ON o.user_ref = u.id
		WHERE u.user_id = ? ORDER BY o.id`, userID,
	).Scan(&rows).Error
	if err != nil {
		return nil, persistenceErr("list orders", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("user with userId %d: %w", userID, apperrors.ErrNotFound)
	}
	orders := make([]models.Order, 0, len(rows))
	for _, row := range rows {
		if row.ProductName == nil {
			continue
		}
		o := models.Order{ProductName: *row.ProductName}
		if row.Price != nil {
			o.Price = *row.Price
		}
		if row.Quantity != nil {
			o.Quantity = *row.Quantity
		}
		orders = append(orders, o)
	}
	return orders, nil
}

type totalRow struct {
	Users      int64
	TotalPrice float64
}

// TotalPrice sums the unit price of a user's orders.
func (r *GORMUserRepository) TotalPrice(ctx context.Context, userID int) (float64, error) {
	var row totalRow
	err := r.db.WithContext(ctx).Raw(
		`SELECT COUNT(DISTINCT u.id) AS users, COALESCE(SUM(o.price), 0) AS total_price
		FROM users u LEFT JOIN user_orders o ON o.user_ref = u.id
		WHERE u.user_id = ?`, userID,
	).Scan(&row).Error
	if err != nil {
		return 0, persistenceErr("total price", err)
	}
	if row.Users == 0 {
		return 0, fmt.Errorf("user with userId %d: %w", userID, apperrors.ErrNotFound)
	}
	return row.TotalPrice, nil
}

func persistenceErr(op string, err error) error {
	return fmt.Errorf("failed to %s: %w: %w", op, apperrors.ErrPersistence, err)
}

func toUserRecord(u *models.User) userRecord {
	return userRecord{
		UserID:    u.UserID,
		Username:  u.Username,
		Password:  u.Password,
		FirstName: u.FullName.FirstName,
		LastName:  u.FullName.LastName,
		Age:       u.Age,
		Email:     u.Email,
		IsActive:  u.IsActive,
		Hobbies:   u.Hobbies,
		Street:    u.Address.Street,
		City:      u.Address.City,
		Country:   u.Address.Country,
	}
}

func toOrderRecords(orders []models.Order) []orderRecord {
	out := make([]orderRecord, 0, len(orders))
	for _, o := range orders {
		out = append(out, orderRecord{ProductName: o.ProductName, Price: o.Price, Quantity: o.Quantity})
	}
	return out
}

func (rec *userRecord) toModel() models.User {
	hobbies := rec.Hobbies
	if hobbies == nil {
		hobbies = []string{}
	}
	return models.User{
		UserID:   rec.UserID,
		Username: rec.Username,
		FullName: models.FullName{FirstName: rec.FirstName, LastName: rec.LastName},
		Age:      rec.Age,
		Email:    rec.Email,
		IsActive: rec.IsActive,
		Hobbies:  hobbies,
		Address:  models.Address{Street: rec.Street, City: rec.City, Country: rec.Country},
	}
}
