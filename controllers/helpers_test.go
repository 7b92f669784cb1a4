package controllers

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"go-shop/middleware"
	"go-shop/models"
	"go-shop/utils"
)

type fakeUsers struct {
	mu            sync.Mutex
	users         map[primitive.ObjectID]models.User
	failCartClear bool
}

func newFakeUsers(users ...models.User) *fakeUsers {
	f := &fakeUsers{users: make(map[primitive.ObjectID]models.User)}
	for _, u := range users {
		f.users[u.ID] = u
	}
	return f
}

func (f *fakeUsers) Insert(_ context.Context, user models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	f.users[user.ID] = user
	return nil
}

func (f *fakeUsers) FindByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &user, nil
}

func (f *fakeUsers) FindByEmail(_ context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, user := range f.users {
		if user.Email == email {
			u := user
			return &u, nil
		}
	}
	return nil, models.ErrNotFound
}

func (f *fakeUsers) FindByResetToken(_ context.Context, token string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, user := range f.users {
		if user.ResetToken == token && user.ResetTokenExpiration.After(time.Now()) {
			u := user
			return &u, nil
		}
	}
	return nil, models.ErrNotFound
}

func (f *fakeUsers) SetResetToken(_ context.Context, id primitive.ObjectID, token string, expiration time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user := f.users[id]
	user.ResetToken = token
	user.ResetTokenExpiration = expiration
	f.users[id] = user
	return nil
}

func (f *fakeUsers) UpdatePassword(_ context.Context, id primitive.ObjectID, passwordHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user := f.users[id]
	user.Password = passwordHash
	user.ResetToken = ""
	f.users[id] = user
	return nil
}

func (f *fakeUsers) ModifyCart(_ context.Context, id primitive.ObjectID, fn func(models.Cart) models.Cart) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok {
		return models.ErrNotFound
	}
	updated := fn(user.Cart)
	if f.failCartClear && updated.IsEmpty() {
		return models.ErrNotFound
	}
	user.Cart = updated
	f.users[id] = user
	return nil
}

func (f *fakeUsers) cart(t *testing.T, id primitive.ObjectID) models.Cart {
	t.Helper()
	user, err := f.FindByID(context.Background(), id)
	require.NoError(t, err)
	return user.Cart
}

type fakeProducts struct {
	mu         sync.Mutex
	products   map[primitive.ObjectID]models.Product
	failUpdate bool
}

func newFakeProducts(products ...models.Product) *fakeProducts {
	f := &fakeProducts{products: make(map[primitive.ObjectID]models.Product)}
	for _, p := range products {
		f.products[p.ID] = p
	}
	return f
}

func (f *fakeProducts) Insert(_ context.Context, product models.Product) (*models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if product.ID.IsZero() {
		product.ID = primitive.NewObjectID()
	}
	f.products[product.ID] = product
	return &product, nil
}

func (f *fakeProducts) FindByID(_ context.Context, id primitive.ObjectID) (*models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	product, ok := f.products[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &product, nil
}

func (f *fakeProducts) FindPage(_ context.Context, page, perPage int) ([]models.Product, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	all := make([]models.Product, 0, len(f.products))
	for _, p := range f.products {
		all = append(all, p)
	}
	return all, int64(len(all)), nil
}

func (f *fakeProducts) FindPageByOwner(_ context.Context, ownerID primitive.ObjectID, page, perPage int) ([]models.Product, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var owned []models.Product
	for _, p := range f.products {
		if p.UserID == ownerID {
			owned = append(owned, p)
		}
	}
	return owned, int64(len(owned)), nil
}

func (f *fakeProducts) Update(_ context.Context, product models.Product) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUpdate {
		return errors.New("write failed")
	}
	existing, ok := f.products[product.ID]
	if !ok || existing.UserID != product.UserID {
		return models.ErrNotFound
	}
	f.products[product.ID] = product
	return nil
}

func (f *fakeProducts) Delete(_ context.Context, id, ownerID primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.products[id]
	if !ok || existing.UserID != ownerID {
		return models.ErrNotFound
	}
	delete(f.products, id)
	return nil
}

// setPrice edits the live product, simulating an admin edit after orders
// were placed.
func (f *fakeProducts) setPrice(id primitive.ObjectID, priceCents int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	product := f.products[id]
	product.PriceCents = priceCents
	f.products[id] = product
}

type fakeOrders struct {
	mu         sync.Mutex
	orders     []models.Order
	failInsert bool
}

func (f *fakeOrders) Insert(_ context.Context, order models.Order) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failInsert {
		return nil, models.ErrNotFound
	}
	order.ID = primitive.NewObjectID()
	f.orders = append(f.orders, order)
	return &order, nil
}

func (f *fakeOrders) FindByID(_ context.Context, id primitive.ObjectID) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, order := range f.orders {
		if order.ID == id {
			o := order
			return &o, nil
		}
	}
	return nil, models.ErrNotFound
}

func (f *fakeOrders) FindByUser(_ context.Context, userID primitive.ObjectID) ([]models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var owned []models.Order
	for _, order := range f.orders {
		if order.User.UserID == userID {
			owned = append(owned, order)
		}
	}
	return owned, nil
}

func (f *fakeOrders) all() []models.Order {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Order(nil), f.orders...)
}

type fakeGateway struct {
	mu           sync.Mutex
	createCalls  int
	lastItems    []utils.CheckoutItem
	lastOpts     utils.CheckoutOptions
	createErr    error
	notification *utils.PaymentNotification
	verifyErr    error
}

func (f *fakeGateway) CreateCheckoutSession(_ context.Context, items []utils.CheckoutItem, opts utils.CheckoutOptions) (*utils.CheckoutSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	f.lastItems = items
	f.lastOpts = opts
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &utils.CheckoutSession{ID: "cs_test_123", URL: "https://pay.example.com/cs_test_123"}, nil
}

func (f *fakeGateway) VerifyNotification(payload []byte, signature string) (*utils.PaymentNotification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.verifyErr != nil {
		return nil, f.verifyErr
	}
	return f.notification, nil
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []string
}

func (f *fakeMailer) SendWelcomeEmail(toEmail string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, toEmail)
	return nil
}

func (f *fakeMailer) SendPasswordResetEmail(toEmail, resetLink string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, toEmail)
	return nil
}

func (f *fakeMailer) SendOrderConfirmationEmail(toEmail string, _ models.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, toEmail)
	return nil
}

func testRenderer(t *testing.T) *utils.Renderer {
	t.Helper()
	renderer, err := utils.NewRenderer("../views")
	require.NoError(t, err)
	return renderer
}

func testSession(users *fakeUsers) *middleware.Session {
	return middleware.NewSession([]byte("test-session-secret"), users)
}

// asUser attaches a freshly loaded user document to the request context,
// the way the session middleware does.
func asUser(t *testing.T, r *http.Request, users *fakeUsers, id primitive.ObjectID) *http.Request {
	t.Helper()
	user, err := users.FindByID(context.Background(), id)
	require.NoError(t, err)
	return r.WithContext(middleware.WithUser(r.Context(), user))
}
