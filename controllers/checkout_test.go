package controllers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"go-shop/models"
	"go-shop/utils"
)

func checkoutFixture(t *testing.T) (*CheckoutController, *fakeUsers, *fakeProducts, *fakeOrders, *fakeGateway, models.User, models.Product) {
	t.Helper()

	product := models.Product{
		ID:          primitive.NewObjectID(),
		Title:       "A Book",
		PriceCents:  999,
		Description: "A very good book",
		UserID:      primitive.NewObjectID(),
	}
	user := models.User{
		ID:    primitive.NewObjectID(),
		Email: "buyer@example.com",
		Cart:  models.Cart{}.WithProduct(product.ID).WithProduct(product.ID),
	}

	users := newFakeUsers(user)
	products := newFakeProducts(product)
	orders := &fakeOrders{}
	gateway := &fakeGateway{}
	controller := NewCheckoutController(testRenderer(t), testSession(users), users, products, orders, gateway, nil)
	return controller, users, products, orders, gateway, user, product
}

func TestCheckoutCreatesPaymentSession(t *testing.T) {
	controller, users, _, _, gateway, user, _ := checkoutFixture(t)

	r := httptest.NewRequest(http.MethodGet, "http://shop.test/checkout", nil)
	r = asUser(t, r, users, user.ID)
	w := httptest.NewRecorder()

	controller.Checkout(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, gateway.createCalls)
	require.Len(t, gateway.lastItems, 1)
	assert.Equal(t, "A Book", gateway.lastItems[0].Name)
	assert.Equal(t, int64(999), gateway.lastItems[0].UnitAmountCents)
	assert.Equal(t, int64(2), gateway.lastItems[0].Quantity)
	assert.Equal(t, "http://shop.test/checkout/success", gateway.lastOpts.SuccessURL)
	assert.Equal(t, "http://shop.test/checkout/cancel", gateway.lastOpts.CancelURL)
	assert.Equal(t, user.ID.Hex(), gateway.lastOpts.UserRef)
	assert.Contains(t, w.Body.String(), "19.98")
	assert.Contains(t, w.Body.String(), "https://pay.example.com/cs_test_123")
}

func TestCheckoutEmptyCartRejectedBeforeGateway(t *testing.T) {
	controller, users, _, orders, gateway, user, _ := checkoutFixture(t)
	require.NoError(t, users.ModifyCart(nil, user.ID, func(cart models.Cart) models.Cart {
		return cart.Cleared()
	}))

	r := httptest.NewRequest(http.MethodGet, "http://shop.test/checkout", nil)
	r = asUser(t, r, users, user.ID)
	w := httptest.NewRecorder()

	controller.Checkout(w, r)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/cart", w.Header().Get("Location"))
	assert.Equal(t, 0, gateway.createCalls)
	assert.Empty(t, orders.all())
}

func TestCheckoutGatewayFailureLeavesCartUntouched(t *testing.T) {
	controller, users, _, orders, gateway, user, _ := checkoutFixture(t)
	gateway.createErr = errors.New("gateway down")

	r := httptest.NewRequest(http.MethodGet, "http://shop.test/checkout", nil)
	r = asUser(t, r, users, user.ID)
	w := httptest.NewRecorder()

	controller.Checkout(w, r)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/cart", w.Header().Get("Location"))
	assert.Empty(t, orders.all())
	assert.Equal(t, 2, users.cart(t, user.ID).Quantity(productIDOf(t, users, user.ID)))
}

func productIDOf(t *testing.T, users *fakeUsers, userID primitive.ObjectID) primitive.ObjectID {
	t.Helper()
	cart := users.cart(t, userID)
	require.NotEmpty(t, cart.Items)
	return cart.Items[0].ProductID
}

func postWebhook(controller *CheckoutController) *httptest.ResponseRecorder {
	r := httptest.NewRequest(http.MethodPost, "http://shop.test/webhook/stripe", strings.NewReader(`{}`))
	r.Header.Set("Stripe-Signature", "t=1,v1=sig")
	w := httptest.NewRecorder()
	controller.Webhook(w, r)
	return w
}

func TestWebhookCreatesOrderAndClearsCart(t *testing.T) {
	controller, users, _, orders, gateway, user, product := checkoutFixture(t)
	gateway.notification = &utils.PaymentNotification{
		SessionID: "cs_test_123",
		UserRef:   user.ID.Hex(),
		Completed: true,
	}

	w := postWebhook(controller)

	require.Equal(t, http.StatusOK, w.Code)
	all := orders.all()
	require.Len(t, all, 1)
	order := all[0]
	assert.Equal(t, user.Email, order.User.Email)
	assert.Equal(t, user.ID, order.User.UserID)
	assert.Equal(t, "cs_test_123", order.PaymentRef)
	require.Len(t, order.Items, 1)
	assert.Equal(t, product.ID, order.Items[0].Product.ProductID)
	assert.Equal(t, int64(999), order.Items[0].Product.PriceCents)
	assert.Equal(t, 2, order.Items[0].Quantity)
	assert.True(t, users.cart(t, user.ID).IsEmpty())
}

func TestWebhookInvalidSignatureRejected(t *testing.T) {
	controller, _, _, orders, gateway, _, _ := checkoutFixture(t)
	gateway.verifyErr = errors.New("signature mismatch")

	w := postWebhook(controller)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, orders.all())
}

func TestWebhookIncompleteEventIgnored(t *testing.T) {
	controller, users, _, orders, gateway, user, _ := checkoutFixture(t)
	gateway.notification = &utils.PaymentNotification{
		SessionID: "cs_test_123",
		UserRef:   user.ID.Hex(),
		Completed: false,
	}

	w := postWebhook(controller)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, orders.all())
	assert.False(t, users.cart(t, user.ID).IsEmpty())
}

func TestWebhookReplayDoesNotDuplicateOrder(t *testing.T) {
	controller, users, _, orders, gateway, user, _ := checkoutFixture(t)
	gateway.notification = &utils.PaymentNotification{
		SessionID: "cs_test_123",
		UserRef:   user.ID.Hex(),
		Completed: true,
	}

	first := postWebhook(controller)
	second := postWebhook(controller)

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusOK, second.Code)
	assert.Len(t, orders.all(), 1)
	assert.True(t, users.cart(t, user.ID).IsEmpty())
}

func TestWebhookKeepsOrderWhenCartClearFails(t *testing.T) {
	controller, users, _, orders, gateway, user, _ := checkoutFixture(t)
	users.failCartClear = true
	gateway.notification = &utils.PaymentNotification{
		SessionID: "cs_test_123",
		UserRef:   user.ID.Hex(),
		Completed: true,
	}

	w := postWebhook(controller)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, orders.all(), 1)
	assert.False(t, users.cart(t, user.ID).IsEmpty())
}

// Full purchase walkthrough: add the same product twice, check out, receive
// the completed-payment event, then edit the live product price and confirm
// the recorded order keeps its original total.
func TestPurchaseFlowEndToEnd(t *testing.T) {
	product := models.Product{
		ID:          primitive.NewObjectID(),
		Title:       "A Book",
		PriceCents:  999,
		Description: "A very good book",
		UserID:      primitive.NewObjectID(),
	}
	user := models.User{ID: primitive.NewObjectID(), Email: "buyer@example.com"}

	users := newFakeUsers(user)
	products := newFakeProducts(product)
	orders := &fakeOrders{}
	gateway := &fakeGateway{}
	renderer := testRenderer(t)
	session := testSession(users)
	shop := NewShopController(renderer, session, users, products, orders, nil)
	checkout := NewCheckoutController(renderer, session, users, products, orders, gateway, nil)

	for i := 0; i < 2; i++ {
		form := strings.NewReader("productId=" + product.ID.Hex())
		r := httptest.NewRequest(http.MethodPost, "http://shop.test/cart", form)
		r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		r = asUser(t, r, users, user.ID)
		shop.AddToCart(httptest.NewRecorder(), r)
	}

	cart := users.cart(t, user.ID)
	require.Len(t, cart.Items, 1)
	require.Equal(t, 2, cart.Items[0].Quantity)

	r := httptest.NewRequest(http.MethodGet, "http://shop.test/checkout", nil)
	r = asUser(t, r, users, user.ID)
	w := httptest.NewRecorder()
	checkout.Checkout(w, r)
	require.Equal(t, http.StatusOK, w.Code)

	gateway.notification = &utils.PaymentNotification{
		SessionID: "cs_test_123",
		UserRef:   user.ID.Hex(),
		Completed: true,
	}
	require.Equal(t, http.StatusOK, postWebhook(checkout).Code)

	all := orders.all()
	require.Len(t, all, 1)
	assert.Equal(t, "19.98", all[0].Total().StringFixed(2))
	assert.True(t, users.cart(t, user.ID).IsEmpty())

	products.setPrice(product.ID, 5000)
	assert.Equal(t, "19.98", all[0].Total().StringFixed(2))
}
