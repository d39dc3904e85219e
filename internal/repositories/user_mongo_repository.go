package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"usersapi/internal/apperrors"
	"usersapi/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const usersCollection = "users"

// userDocument is the stored form of a user. Orders are embedded
// sub-documents without an _id of their own.
type userDocument struct {
	ID       primitive.ObjectID `bson:"_id,omitempty"`
	UserID   int                `bson:"userId"`
	Username string             `bson:"username"`
	Password string             `bson:"password"`
	FullName fullNameDocument   `bson:"fullName"`
	Age      int                `bson:"age"`
	Email    string             `bson:"email"`
	IsActive bool               `bson:"isActive"`
	Hobbies  []string           `bson:"hobbies"`
	Address  addressDocument    `bson:"address"`
	Orders   []orderDocument    `bson:"orders"`
}

type fullNameDocument struct {
	FirstName string `bson:"firstName"`
	LastName  string `bson:"lastName"`
}

type addressDocument struct {
	Street  string `bson:"street"`
	City    string `bson:"city"`
	Country string `bson:"country"`
}

type orderDocument struct {
	ProductName string  `bson:"productName"`
	Price       float64 `bson:"price"`
	Quantity    int     `bson:"quantity"`
}

// publicProjection drops the password hash and orders from read results.
var publicProjection = bson.M{"password": 0, "orders": 0}

// ConnectMongo dials MongoDB and verifies the connection.
func ConnectMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	return client, nil
}

// MongoUserRepository is a MongoDB implementation of UserRepository.
type MongoUserRepository struct {
	coll *mongo.Collection
}

// NewMongoUserRepository creates a repository over the users collection of db.
func NewMongoUserRepository(db *mongo.Database) *MongoUserRepository {
	return &MongoUserRepository{
		coll: db.Collection(usersCollection),
	}
}

// EnsureSchema creates the unique indexes on userId and username.
func (r *MongoUserRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.M{"userId": 1}, Options: options.Index().SetUnique(true).SetName("uniq_userId")},
		{Keys: bson.M{"username": 1}, Options: options.Index().SetUnique(true).SetName("uniq_username")},
	})
	if err != nil {
		return fmt.Errorf("failed to create user indexes: %w", err)
	}
	return nil
}

// Exists reports whether a user with the given userId is stored.
func (r *MongoUserRepository) Exists(ctx context.Context, userID int) (bool, error) {
	n, err := r.coll.CountDocuments(ctx, byUserID(userID), options.Count().SetLimit(1))
	if err != nil {
		return false, persistenceErr("check user existence", err)
	}
	return n > 0, nil
}

// Create inserts a user document. The unique indexes reject collisions.
func (r *MongoUserRepository) Create(ctx context.Context, user *models.User) error {
	doc := toUserDocument(user)
	if doc.Orders == nil {
		doc.Orders = []orderDocument{}
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("user with userId %d or username %s: %w", user.UserID, user.Username, apperrors.ErrDuplicateKey)
		}
		return persistenceErr("create user", err)
	}
	return nil
}

// List returns every user ordered by userId.
func (r *MongoUserRepository) List(ctx context.Context) ([]models.User, error) {
	cur, err := r.coll.Find(ctx, bson.M{}, options.Find().
		SetProjection(publicProjection).
		SetSort(bson.M{"userId": 1}))
	if err != nil {
		return nil, persistenceErr("list users", err)
	}
	var docs []userDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, persistenceErr("decode users", err)
	}
	users := make([]models.User, 0, len(docs))
	for i := range docs {
		users = append(users, docs[i].toModel())
	}
	return users, nil
}

// Get returns a single user by userId.
func (r *MongoUserRepository) Get(ctx context.Context, userID int) (*models.User, error) {
	var doc userDocument
	err := r.coll.FindOne(ctx, byUserID(userID), options.FindOne().SetProjection(publicProjection)).Decode(&doc)
	if err != nil {
		return nil, r.lookupErr("get user", userID, err)
	}
	u := doc.toModel()
	return &u, nil
}

// Replace overwrites the user's fields in one conditional write.
func (r *MongoUserRepository) Replace(ctx context.Context, userID int, user *models.User) (*models.User, error) {
	doc := toUserDocument(user)
	set := bson.M{
		"userId":   doc.UserID,
		"username": doc.Username,
		"password": doc.Password,
		"fullName": doc.FullName,
		"age":      doc.Age,
		"email":    doc.Email,
		"isActive": doc.IsActive,
		"hobbies":  doc.Hobbies,
		"address":  doc.Address,
	}
	if user.Orders != nil {
		set["orders"] = toOrderDocuments(user.Orders)
	}

	var updated userDocument
	err := r.coll.FindOneAndUpdate(ctx, byUserID(userID), bson.M{"$set": set}, options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetProjection(publicProjection)).Decode(&updated)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("user with userId %d or username %s: %w", user.UserID, user.Username, apperrors.ErrDuplicateKey)
		}
		return nil, r.lookupErr("update user", userID, err)
	}
	u := updated.toModel()
	return &u, nil
}

// Delete removes the user document, embedded orders included.
func (r *MongoUserRepository) Delete(ctx context.Context, userID int) (*models.User, error) {
	var doc userDocument
	err := r.coll.FindOneAndDelete(ctx, byUserID(userID), options.FindOneAndDelete().
		SetProjection(publicProjection)).Decode(&doc)
	if err != nil {
		return nil, r.lookupErr("delete user", userID, err)
	}
	u := doc.toModel()
	return &u, nil
}

// AppendOrder pushes an order onto the user's orders array.
func (r *MongoUserRepository) AppendOrder(ctx context.Context, userID int, order models.Order) error {
	res, err := r.coll.UpdateOne(ctx, byUserID(userID), bson.M{
		"$push": bson.M{"orders": orderDocument(order)},
	})
	if err != nil {
		return persistenceErr("append order", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("user with userId %d: %w", userID, apperrors.ErrNotFound)
	}
	return nil
}

// ListOrders returns only the orders array of a user.
func (r *MongoUserRepository) ListOrders(ctx context.Context, userID int) ([]models.Order, error) {
	var doc struct {
		Orders []orderDocument `bson:"orders"`
	}
	err := r.coll.FindOne(ctx, byUserID(userID), options.FindOne().
		SetProjection(bson.M{"_id": 0, "orders": 1})).Decode(&doc)
	if err != nil {
		return nil, r.lookupErr("list orders", userID, err)
	}
	orders := make([]models.Order, 0, len(doc.Orders))
	for _, o := range doc.Orders {
		orders = append(orders, models.Order(o))
	}
	return orders, nil
}

// TotalPrice sums orders.price with an aggregation pipeline.
func (r *MongoUserRepository) TotalPrice(ctx context.Context, userID int) (float64, error) {
	pipeline := bson.A{
		bson.M{"$match": byUserID(userID)},
		bson.M{"$project": bson.M{"_id": 0, "totalPrice": bson.M{"$sum": "$orders.price"}}},
	}
	cur, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return 0, persistenceErr("total price", err)
	}
	defer cur.Close(ctx)

	if !cur.Next(ctx) {
		if err := cur.Err(); err != nil {
			return 0, persistenceErr("total price", err)
		}
		return 0, fmt.Errorf("user with userId %d: %w", userID, apperrors.ErrNotFound)
	}
	var out struct {
		TotalPrice float64 `bson:"totalPrice"`
	}
	if err := cur.Decode(&out); err != nil {
		return 0, persistenceErr("decode total price", err)
	}
	return out.TotalPrice, nil
}

func (r *MongoUserRepository) lookupErr(op string, userID int, err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("%s: user with userId %d: %w", op, userID, apperrors.ErrNotFound)
	}
	return persistenceErr(op, err)
}

func byUserID(userID int) bson.M {
	return bson.M{"userId": userID}
}

func toUserDocument(u *models.User) userDocument {
	doc := userDocument{
		UserID:   u.UserID,
		Username: u.Username,
		Password: u.Password,
		FullName: fullNameDocument(u.FullName),
		Age:      u.Age,
		Email:    u.Email,
		IsActive: u.IsActive,
		Hobbies:  u.Hobbies,
		Address:  addressDocument(u.Address),
	}
	if u.Orders != nil {
		doc.Orders = toOrderDocuments(u.Orders)
	}
	return doc
}

func toOrderDocuments(orders []models.Order) []orderDocument {
	out := make([]orderDocument, 0, len(orders))
	for _, o := range orders {
		out = append(out, orderDocument(o))
	}
	return out
}

func (d *userDocument) toModel() models.User {
	hobbies := d.Hobbies
	if hobbies == nil {
		hobbies = []string{}
	}
	return models.User{
		UserID:   d.UserID,
		Username: d.Username,
		FullName: models.FullName(d.FullName),
		Age:      d.Age,
		Email:    d.Email,
		IsActive: d.IsActive,
		Hobbies:  hobbies,
		Address:  models.Address(d.Address),
	}
}
