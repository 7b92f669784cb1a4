package controllers

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"go-shop/middleware"
	"go-shop/models"
	"go-shop/utils"
)

// CheckoutController converts a cart into a payment session and, once the
// payment collaborator confirms completion server-to-server, into an
// immutable order.
type CheckoutController struct {
	base
	users    UserStore
	products ProductStore
	orders   OrderStore
	payments utils.PaymentService
	mailer   Mailer
}

// NewCheckoutController creates a new CheckoutController.
func NewCheckoutController(renderer *utils.Renderer, session *middleware.Session, users UserStore, products ProductStore, orders OrderStore, payments utils.PaymentService, mailer Mailer) *CheckoutController {
	return &CheckoutController{
		base:     base{renderer: renderer, session: session},
		users:    users,
		products: products,
		orders:   orders,
		payments: payments,
		mailer:   mailer,
	}
}

// checkoutItems builds the payment line items from resolved cart lines,
// in minor currency units. An empty cart is rejected here, before any call
// to the payment collaborator.
func checkoutItems(resolved []models.ResolvedCartItem) ([]utils.CheckoutItem, error) {
	if len(resolved) == 0 {
		return nil, models.ErrEmptyCart
	}
	items := make([]utils.CheckoutItem, 0, len(resolved))
	for _, line := range resolved {
		items = append(items, utils.CheckoutItem{
			Name:            line.Product.Title,
			Description:     line.Product.Description,
			UnitAmountCents: line.Product.PriceCents,
			Quantity:        int64(line.Quantity),
		})
	}
	return items, nil
}

type checkoutPage struct {
	Page
	Items      []models.ResolvedCartItem
	Total      decimal.Decimal
	SessionID  string
	SessionURL string
}

// Checkout computes the cart total, creates a hosted payment session with
// success/cancel URLs scoped to this request's host, and renders the
// checkout page. A payment collaborator failure aborts checkout and leaves
// the cart untouched.
func (c *CheckoutController) Checkout(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFrom(r.Context())

	ctx, cancel := dbCtx()
	defer cancel()
	resolved, err := resolveCart(ctx, c.products, user.Cart)
	if err != nil {
		c.serverError(w, r, err)
		return
	}

	items, err := checkoutItems(resolved)
	if errors.Is(err, models.ErrEmptyCart) {
		c.session.Flash(w, r, middleware.FlashError, "Your cart is empty.")
		http.Redirect(w, r, "/cart", http.StatusFound)
		return
	}

	baseURL := requestBaseURL(r)
	sess, err := c.payments.CreateCheckoutSession(r.Context(), items, utils.CheckoutOptions{
		SuccessURL: baseURL + "/checkout/success",
		CancelURL:  baseURL + "/checkout/cancel",
		UserRef:    user.ID.Hex(),
	})
	if err != nil {
		log.Printf("create checkout session for user %s: %v", user.ID.Hex(), err)
		c.session.Flash(w, r, middleware.FlashError, "Payment is unavailable right now. Your cart is unchanged.")
		http.Redirect(w, r, "/cart", http.StatusFound)
		return
	}

	c.renderer.Render(w, http.StatusOK, "checkout.html", checkoutPage{
		Page:       c.page(w, r, "Checkout", "/checkout"),
		Items:      resolved,
		Total:      cartTotal(resolved),
		SessionID:  sess.ID,
		SessionURL: sess.URL,
	})
}

// Success is where the hosted checkout redirects the browser afterwards.
// The redirect proves nothing; the order is created by the verified
// webhook, so this only points the user at their order list.
func (c *CheckoutController) Success(w http.ResponseWriter, r *http.Request) {
	c.session.Flash(w, r, middleware.FlashSuccess, "Payment received. Your order will appear below shortly.")
	http.Redirect(w, r, "/orders", http.StatusFound)
}

// Cancel returns the user to their untouched cart.
func (c *CheckoutController) Cancel(w http.ResponseWriter, r *http.Request) {
	c.session.Flash(w, r, middleware.FlashError, "Checkout cancelled.")
	http.Redirect(w, r, "/cart", http.StatusFound)
}

// Webhook receives the payment collaborator's server-to-server events. The
// signature is verified before anything else; only a completed checkout
// creates an order.
func (c *CheckoutController) Webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<16))
	if err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	notification, err := c.payments.VerifyNotification(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		http.Error(w, "invalid signature", http.StatusBadRequest)
		return
	}
	if !notification.Completed {
		w.WriteHeader(http.StatusOK)
		return
	}

	userID, err := primitive.ObjectIDFromHex(notification.UserRef)
	if err != nil {
		http.Error(w, "unknown purchaser", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	user, err := c.users.FindByID(ctx, userID)
	if err != nil {
		log.Printf("webhook: load user %s: %v", notification.UserRef, err)
		http.Error(w, "unknown purchaser", http.StatusBadRequest)
		return
	}

	if _, err := c.placeOrder(ctx, user, notification.SessionID); err != nil {
		// A replayed event finds the cart already cleared; that is not a
		// failure, and no duplicate order is written.
		if errors.Is(err, models.ErrEmptyCart) {
			w.WriteHeader(http.StatusOK)
			return
		}
		log.Printf("webhook: place order for user %s: %v", user.ID.Hex(), err)
		http.Error(w, "order creation failed", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// placeOrder snapshots the user's resolved cart into a new order, persists
// it, then clears the cart. The order insert comes first: if clearing fails
// the cart keeps stale lines, but the order is never rolled back.
func (c *CheckoutController) placeOrder(ctx context.Context, user *models.User, paymentRef string) (*models.Order, error) {
	resolved, err := resolveCart(ctx, c.products, user.Cart)
	if err != nil {
		return nil, err
	}
	if len(resolved) == 0 {
		return nil, models.ErrEmptyCart
	}

	purchaser := models.Purchaser{Email: user.Email, UserID: user.ID}
	order, err := c.orders.Insert(ctx, models.NewOrder(purchaser, resolved, paymentRef))
	if err != nil {
		return nil, err
	}

	if err := c.users.ModifyCart(ctx, user.ID, func(cart models.Cart) models.Cart {
		return cart.Cleared()
	}); err != nil {
		log.Printf("clear cart after order %s: %v", order.ID.Hex(), err)
	}

	if c.mailer != nil {
		go func() {
			if err := c.mailer.SendOrderConfirmationEmail(user.Email, *order); err != nil {
				log.Printf("Failed to send email to %s: %v", user.Email, err)
			}
		}()
	}

	return order, nil
}
