package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CartItem is a single pending purchase intent: a product reference plus a
// quantity of at least 1. ProductID is unique within a cart.
type CartItem struct {
	ProductID primitive.ObjectID `bson:"productId" json:"product_id"`
	Quantity  int                `bson:"quantity" json:"quantity"`
}

// Cart is the per-user set of pending purchase intents, embedded in the user
// document. Cart values are immutable; the With*/Cleared operations return a
// fresh value and leave the receiver untouched. Persisting an updated cart is
// a separate, explicit step (store.Users.ModifyCart).
type Cart struct {
	Items []CartItem `bson:"items" json:"items"`
}

// WithProduct returns a cart with one more unit of the given product.
// Re-adding a product already in the cart increments its quantity instead of
// appending a duplicate line.
func (c Cart) WithProduct(productID primitive.ObjectID) Cart {
	items := make([]CartItem, len(c.Items))
	copy(items, c.Items)

	for i, item := range items {
		if item.ProductID == productID {
			items[i].Quantity++
			return Cart{Items: items}
		}
	}
	return Cart{Items: append(items, CartItem{ProductID: productID, Quantity: 1})}
}

// WithoutProduct returns a cart with every line for the given product
// removed. Removing a product that is not in the cart is a no-op.
func (c Cart) WithoutProduct(productID primitive.ObjectID) Cart {
	items := make([]CartItem, 0, len(c.Items))
	for _, item := range c.Items {
		if item.ProductID != productID {
			items = append(items, item)
		}
	}
	return Cart{Items: items}
}

// RetainingProducts returns a cart keeping only the lines whose product is
// in keep, dropping lines whose product no longer exists.
func (c Cart) RetainingProducts(keep map[primitive.ObjectID]bool) Cart {
	items := make([]CartItem, 0, len(c.Items))
	for _, item := range c.Items {
		if keep[item.ProductID] {
			items = append(items, item)
		}
	}
	return Cart{Items: items}
}

// Cleared returns an empty cart.
func (c Cart) Cleared() Cart {
	return Cart{Items: []CartItem{}}
}

// IsEmpty reports whether the cart holds no items.
func (c Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// Quantity returns the quantity of the given product, 0 if absent.
func (c Cart) Quantity(productID primitive.ObjectID) int {
	for _, item := range c.Items {
		if item.ProductID == productID {
			return item.Quantity
		}
	}
	return 0
}

// User represents a shopper account. The cart lives inside the user document;
// it is created empty at signup and persists for the user's lifetime.
type User struct {
	ID                   primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Email                string             `bson:"email" json:"email"`
	Password             string             `bson:"password" json:"-"`
	Cart                 Cart               `bson:"cart" json:"cart"`
	ResetToken           string             `bson:"reset_token,omitempty" json:"-"`
	ResetTokenExpiration time.Time          `bson:"reset_token_expiration,omitempty" json:"-"`
}
