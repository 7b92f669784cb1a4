package models

import "errors"

// Shared error taxonomy. Persistence and payment failures are wrapped with
// fmt.Errorf("...: %w", err) at the call site; handlers test against these
// sentinels with errors.Is.
var (
	// ErrNotFound marks a missing product, order or user.
	ErrNotFound = errors.New("not found")

	// ErrAccessDenied marks an ownership mismatch, e.g. requesting another
	// user's invoice or editing another admin's product.
	ErrAccessDenied = errors.New("access denied")

	// ErrEmptyCart rejects checkout before the payment gateway is called.
	ErrEmptyCart = errors.New("cart is empty")
)
