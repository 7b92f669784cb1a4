package models

import (
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Product is a catalog entry. Prices are stored in minor currency units
// (cents) and converted to decimal only for rendering. A product is mutable
// by its owning user only; deleting it also removes the stored image.
type Product struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Title       string             `bson:"title" json:"title"`
	PriceCents  int64              `bson:"price_cents" json:"price_cents"`
	Description string             `bson:"description" json:"description"`
	ImagePath   string             `bson:"image_path" json:"image_path"`
	UserID      primitive.ObjectID `bson:"user_id" json:"user_id"`
}

// Price returns the display price in major currency units.
func (p Product) Price() decimal.Decimal {
	return decimal.New(p.PriceCents, -2)
}

// OwnedBy reports whether the product belongs to the given user.
func (p Product) OwnedBy(userID primitive.ObjectID) bool {
	return p.UserID == userID
}
