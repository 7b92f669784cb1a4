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

// Products persists catalog entries.
type Products struct {
	col *mongo.Collection
}

// NewProducts creates a product store backed by the "products" collection.
func NewProducts(client *mongo.Client) *Products {
	return &Products{col: client.Database(databaseName).Collection("products")}
}

// Insert stores a new product and returns it with its generated id.
func (s *Products) Insert(ctx context.Context, product models.Product) (*models.Product, error) {
	result, err := s.col.InsertOne(ctx, product)
	if err != nil {
		return nil, fmt.Errorf("insert product: %w", err)
	}
	product.ID = result.InsertedID.(primitive.ObjectID)
	return &product, nil
}

// FindByID returns the product with the given id.
func (s *Products) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Product, error) {
	var product models.Product
	err := s.col.FindOne(ctx, bson.M{"_id": id}).Decode(&product)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find product: %w", err)
	}
	return &product, nil
}

// FindPage returns one page of the catalog plus the total number of
// products, for the pagination links.
func (s *Products) FindPage(ctx context.Context, page, perPage int) ([]models.Product, int64, error) {
	return s.findPage(ctx, bson.M{}, page, perPage)
}

// FindPageByOwner returns one page of the products owned by the given user.
func (s *Products) FindPageByOwner(ctx context.Context, ownerID primitive.ObjectID, page, perPage int) ([]models.Product, int64, error) {
	return s.findPage(ctx, bson.M{"user_id": ownerID}, page, perPage)
}

func (s *Products) findPage(ctx context.Context, filter bson.M, page, perPage int) ([]models.Product, int64, error) {
	total, err := s.col.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}

	opts := options.Find().
		SetSkip(int64((page - 1) * perPage)).
		SetLimit(int64(perPage))
	cursor, err := s.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("find products: %w", err)
	}
	defer cursor.Close(ctx)

	var products []models.Product
	if err := cursor.All(ctx, &products); err != nil {
		return nil, 0, fmt.Errorf("decode products: %w", err)
	}
	return products, total, nil
}

// Update rewrites a product's mutable fields. The owner id is part of the
// filter, so editing someone else's product matches nothing.
func (s *Products) Update(ctx context.Context, product models.Product) error {
	filter := bson.M{"_id": product.ID, "user_id": product.UserID}
	update := bson.M{"$set": bson.M{
		"title":       product.Title,
		"price_cents": product.PriceCents,
		"description": product.Description,
		"image_path":  product.ImagePath,
	}}
	result, err := s.col.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	if result.MatchedCount == 0 {
		return models.ErrNotFound
	}
	return nil
}

// Delete removes a product owned by the given user.
func (s *Products) Delete(ctx context.Context, id, ownerID primitive.ObjectID) error {
	result, err := s.col.DeleteOne(ctx, bson.M{"_id": id, "user_id": ownerID})
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if result.DeletedCount == 0 {
		return models.ErrNotFound
	}
	return nil
}
