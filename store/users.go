package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"go-shop/models"
)

// userCarts is the slice of the user collection a cart mutation needs: one
// read and one write, neither atomic with the other.
type userCarts interface {
	load(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	saveCart(ctx context.Context, id primitive.ObjectID, cart models.Cart) error
}

// cartMutator serializes cart mutations per user through a keyed mutex, so
// two concurrent read-modify-write sequences for the same user cannot
// silently drop each other's update.
type cartMutator struct {
	docs  userCarts
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newCartMutator(docs userCarts) *cartMutator {
	return &cartMutator{docs: docs, locks: make(map[string]*sync.Mutex)}
}

func (m *cartMutator) userLock(id primitive.ObjectID) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[id.Hex()]
	if !ok {
		l = &sync.Mutex{}
		m.locks[id.Hex()] = l
	}
	return l
}

func (m *cartMutator) modify(ctx context.Context, id primitive.ObjectID, fn func(models.Cart) models.Cart) error {
	l := m.userLock(id)
	l.Lock()
	defer l.Unlock()

	user, err := m.docs.load(ctx, id)
	if err != nil {
		return err
	}
	return m.docs.saveCart(ctx, id, fn(user.Cart))
}

// Users persists user documents, carts included.
type Users struct {
	col   *mongo.Collection
	carts *cartMutator
}

// NewUsers creates a user store backed by the "users" collection.
func NewUsers(client *mongo.Client) *Users {
	u := &Users{col: client.Database(databaseName).Collection("users")}
	u.carts = newCartMutator(u)
	return u
}

// Insert stores a new user. The caller is expected to have hashed the
// password and initialized an empty cart.
func (s *Users) Insert(ctx context.Context, user models.User) error {
	if _, err := s.col.InsertOne(ctx, user); err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// FindByID returns the user with the given id.
func (s *Users) FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var user models.User
	err := s.col.FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &user, nil
}

// FindByEmail returns the user registered under the given email.
func (s *Users) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := s.col.FindOne(ctx, bson.M{"email": email}).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &user, nil
}

// FindByResetToken returns the user holding the given, still valid, password
// reset token.
func (s *Users) FindByResetToken(ctx context.Context, token string) (*models.User, error) {
	filter := bson.M{
		"reset_token":            token,
		"reset_token_expiration": bson.M{"$gt": time.Now()},
	}
	var user models.User
	err := s.col.FindOne(ctx, filter).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user by reset token: %w", err)
	}
	return &user, nil
}

// SetResetToken stores a reset token and its expiration on the user.
func (s *Users) SetResetToken(ctx context.Context, id primitive.ObjectID, token string, expiration time.Time) error {
	update := bson.M{"$set": bson.M{
		"reset_token":            token,
		"reset_token_expiration": expiration,
	}}
	if _, err := s.col.UpdateOne(ctx, bson.M{"_id": id}, update); err != nil {
		return fmt.Errorf("set reset token: %w", err)
	}
	return nil
}

// UpdatePassword replaces the password hash and clears any reset token.
func (s *Users) UpdatePassword(ctx context.Context, id primitive.ObjectID, passwordHash string) error {
	update := bson.M{
		"$set":   bson.M{"password": passwordHash},
		"$unset": bson.M{"reset_token": "", "reset_token_expiration": ""},
	}
	if _, err := s.col.UpdateOne(ctx, bson.M{"_id": id}, update); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

// ModifyCart applies fn to the user's current cart and persists the result,
// holding the user's lock across the whole read-modify-write. fn must be a
// pure function of the cart value.
func (s *Users) ModifyCart(ctx context.Context, id primitive.ObjectID, fn func(models.Cart) models.Cart) error {
	return s.carts.modify(ctx, id, fn)
}

func (s *Users) load(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return s.FindByID(ctx, id)
}

func (s *Users) saveCart(ctx context.Context, id primitive.ObjectID, cart models.Cart) error {
	update := bson.M{"$set": bson.M{"cart": cart}}
	if _, err := s.col.UpdateOne(ctx, bson.M{"_id": id}, update); err != nil {
		return fmt.Errorf("update cart: %w", err)
	}
	return nil
}
