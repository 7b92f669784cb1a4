package models

import (
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SnapshotVersion is the schema version written into every product snapshot,
// so the snapshot shape can evolve without old orders becoming ambiguous.
const SnapshotVersion = 1

// ProductSnapshot is a full copy of a product's fields taken at order
// creation time. Orders reference snapshots, never live products, so an
// order stays valid when the source product is edited or deleted.
type ProductSnapshot struct {
	Version     int                `bson:"version" json:"version"`
	ProductID   primitive.ObjectID `bson:"product_id" json:"product_id"`
	Title       string             `bson:"title" json:"title"`
	PriceCents  int64              `bson:"price_cents" json:"price_cents"`
	Description string             `bson:"description" json:"description"`
	ImagePath   string             `bson:"image_path" json:"image_path"`
}

// Price returns the snapshotted display price in major currency units.
func (s ProductSnapshot) Price() decimal.Decimal {
	return decimal.New(s.PriceCents, -2)
}

// SnapshotOf deep-copies a product into a versioned snapshot.
func SnapshotOf(p Product) ProductSnapshot {
	return ProductSnapshot{
		Version:     SnapshotVersion,
		ProductID:   p.ID,
		Title:       p.Title,
		PriceCents:  p.PriceCents,
		Description: p.Description,
		ImagePath:   p.ImagePath,
	}
}

// OrderItem pairs a product snapshot with the purchased quantity.
type OrderItem struct {
	Product  ProductSnapshot `bson:"product" json:"product"`
	Quantity int             `bson:"quantity" json:"quantity"`
}

// Purchaser captures who placed the order at creation time. It is copied
// from the session user, not referenced, so later account changes do not
// rewrite history.
type Purchaser struct {
	Email  string             `bson:"email" json:"email"`
	UserID primitive.ObjectID `bson:"user_id" json:"user_id"`
}

// Order is an immutable record of a completed purchase. It is created once
// at successful checkout and never updated or deleted.
type Order struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	User       Purchaser          `bson:"user" json:"user"`
	Items      []OrderItem        `bson:"items" json:"items"`
	PaymentRef string             `bson:"payment_ref,omitempty" json:"payment_ref,omitempty"`
	CreatedAt  time.Time          `bson:"created_at" json:"created_at"`
}

// ResolvedCartItem is a cart line joined with its full product document.
type ResolvedCartItem struct {
	Product  Product
	Quantity int
}

// NewOrder builds an order from resolved cart lines, snapshotting every
// product at this moment.
func NewOrder(purchaser Purchaser, items []ResolvedCartItem, paymentRef string) Order {
	orderItems := make([]OrderItem, 0, len(items))
	for _, item := range items {
		orderItems = append(orderItems, OrderItem{
			Product:  SnapshotOf(item.Product),
			Quantity: item.Quantity,
		})
	}
	return Order{
		User:       purchaser,
		Items:      orderItems,
		PaymentRef: paymentRef,
		CreatedAt:  time.Now().UTC(),
	}
}

// Total recomputes the grand total from the stored snapshots. It is never
// read back from a persisted field, so a stored order cannot disagree with
// its own line items.
func (o Order) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range o.Items {
		line := item.Product.Price().Mul(decimal.NewFromInt(int64(item.Quantity)))
		total = total.Add(line)
	}
	return total
}

// TotalCents recomputes the grand total in minor currency units.
func (o Order) TotalCents() int64 {
	var total int64
	for _, item := range o.Items {
		total += item.Product.PriceCents * int64(item.Quantity)
	}
	return total
}
