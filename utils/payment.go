package utils

import (
	"context"
	"encoding/json"
	"fmt"

	stripe "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/checkout/session"
	"github.com/stripe/stripe-go/v76/webhook"
)

// CheckoutItem is one payment line: name, description, unit amount in minor
// currency units and quantity.
type CheckoutItem struct {
	Name            string
	Description     string
	UnitAmountCents int64
	Quantity        int64
}

// CheckoutOptions carries the redirect URLs, scoped to the current request's
// host, plus an opaque reference identifying the purchasing user.
type CheckoutOptions struct {
	SuccessURL string
	CancelURL  string
	UserRef    string
}

// CheckoutSession is the handle returned by the payment collaborator's
// hosted checkout.
type CheckoutSession struct {
	ID  string
	URL string
}

// PaymentNotification is a verified server-to-server payment event.
// Completed is true only for a finished checkout; UserRef echoes the
// reference passed at session creation.
type PaymentNotification struct {
	SessionID string
	UserRef   string
	Completed bool
}

// PaymentService abstracts the hosted-checkout collaborator.
type PaymentService interface {
	CreateCheckoutSession(ctx context.Context, items []CheckoutItem, opts CheckoutOptions) (*CheckoutSession, error)
	VerifyNotification(payload []byte, signature string) (*PaymentNotification, error)
}

// StripeService implements PaymentService against Stripe Checkout. Order
// creation is driven exclusively by signature-verified webhook events, never
// by the client's success redirect.
type StripeService struct {
	webhookSecret string
}

// NewStripeService configures the Stripe client with the given keys.
func NewStripeService(secretKey, webhookSecret string) *StripeService {
	stripe.Key = secretKey
	return &StripeService{webhookSecret: webhookSecret}
}

// CreateCheckoutSession creates a hosted checkout session for the given
// line items.
func (s *StripeService) CreateCheckoutSession(ctx context.Context, items []CheckoutItem, opts CheckoutOptions) (*CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(opts.SuccessURL),
		CancelURL:         stripe.String(opts.CancelURL),
		ClientReferenceID: stripe.String(opts.UserRef),
	}
	params.Context = ctx

	for _, item := range items {
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			Quantity: stripe.Int64(item.Quantity),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(string(stripe.CurrencyUSD)),
				UnitAmount: stripe.Int64(item.UnitAmountCents),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name:        stripe.String(item.Name),
					Description: stripe.String(item.Description),
				},
			},
		})
	}

	sess, err := session.New(params)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}
	return &CheckoutSession{ID: sess.ID, URL: sess.URL}, nil
}

// VerifyNotification checks the webhook signature and extracts the checkout
// completion event. Events other than checkout.session.completed yield a
// notification with Completed false.
func (s *StripeService) VerifyNotification(payload []byte, signature string) (*PaymentNotification, error) {
	event, err := webhook.ConstructEvent(payload, signature, s.webhookSecret)
	if err != nil {
		return nil, fmt.Errorf("verify payment notification: %w", err)
	}

	if event.Type != "checkout.session.completed" {
		return &PaymentNotification{Completed: false}, nil
	}

	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return nil, fmt.Errorf("decode checkout session: %w", err)
	}
	return &PaymentNotification{
		SessionID: sess.ID,
		UserRef:   sess.ClientReferenceID,
		Completed: true,
	}, nil
}
