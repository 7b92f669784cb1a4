package store

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"go-shop/models"
)

// Orders persists completed purchases. Orders are insert-only: there is no
// update or delete path, matching the order lifecycle.
type Orders struct {
	col *mongo.Collection
}

// NewOrders creates an order store backed by the "orders" collection.
func NewOrders(client *mongo.Client) *Orders {
	return &Orders{col: client.Database(databaseName).Collection("orders")}
}

// Insert stores a new order and returns it with its generated id.
func (s *Orders) Insert(ctx context.Context, order models.Order) (*models.Order, error) {
	result, err := s.col.InsertOne(ctx, order)
	if err != nil {
		return nil, fmt.Errorf("insert order: %w", err)
	}
	order.ID = result.InsertedID.(primitive.ObjectID)
	return &order, nil
}

// FindByID returns the order with the given id.
func (s *Orders) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Order, error) {
	var order models.Order
	err := s.col.FindOne(ctx, bson.M{"_id": id}).Decode(&order)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find order: %w", err)
	}
	return &order, nil
}

// FindByUser returns all orders placed by the given user, newest first.
func (s *Orders) FindByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Order, error) {
	opts := options.Find().SetSort(bson.M{"created_at": -1})
	cursor, err := s.col.Find(ctx, bson.M{"user.user_id": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("find orders: %w", err)
	}
	defer cursor.Close(ctx)

	var orders []models.Order
	if err := cursor.All(ctx, &orders); err != nil {
		return nil, fmt.Errorf("decode orders: %w", err)
	}
	return orders, nil
}
