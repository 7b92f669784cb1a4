package controllers

import (
	"context"
	"errors"
	"html/template"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/csrf"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"go-shop/middleware"
	"go-shop/models"
	"go-shop/utils"
)

const itemsPerPage = 4

// UserStore persists users and their embedded carts.
type UserStore interface {
	Insert(ctx context.Context, user models.User) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByResetToken(ctx context.Context, token string) (*models.User, error)
	SetResetToken(ctx context.Context, id primitive.ObjectID, token string, expiration time.Time) error
	UpdatePassword(ctx context.Context, id primitive.ObjectID, passwordHash string) error
	ModifyCart(ctx context.Context, id primitive.ObjectID, fn func(models.Cart) models.Cart) error
}

// ProductStore persists catalog entries.
type ProductStore interface {
	Insert(ctx context.Context, product models.Product) (*models.Product, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Product, error)
	FindPage(ctx context.Context, page, perPage int) ([]models.Product, int64, error)
	FindPageByOwner(ctx context.Context, ownerID primitive.ObjectID, page, perPage int) ([]models.Product, int64, error)
	Update(ctx context.Context, product models.Product) error
	Delete(ctx context.Context, id, ownerID primitive.ObjectID) error
}

// OrderStore persists completed purchases. Insert-only.
type OrderStore interface {
	Insert(ctx context.Context, order models.Order) (*models.Order, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Order, error)
	FindByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Order, error)
}

// Mailer sends transactional email, fire and forget.
type Mailer interface {
	SendWelcomeEmail(toEmail string) error
	SendPasswordResetEmail(toEmail, resetLink string) error
	SendOrderConfirmationEmail(toEmail string, order models.Order) error
}

// Page is the view data shared by every rendered template.
type Page struct {
	PageTitle       string
	Path            string
	IsAuthenticated bool
	CSRFField       template.HTML
	ErrorMessage    string
	SuccessMessage  string
}

type base struct {
	renderer *utils.Renderer
	session  *middleware.Session
}

func (b base) page(w http.ResponseWriter, r *http.Request, title, path string) Page {
	return Page{
		PageTitle:       title,
		Path:            path,
		IsAuthenticated: middleware.UserFrom(r.Context()) != nil,
		CSRFField:       csrf.TemplateField(r),
		ErrorMessage:    b.session.PopFlash(w, r, middleware.FlashError),
		SuccessMessage:  b.session.PopFlash(w, r, middleware.FlashSuccess),
	}
}

func (b base) serverError(w http.ResponseWriter, r *http.Request, err error) {
	log.Printf("%s %s: %v", r.Method, r.URL.Path, err)
	b.renderer.Render(w, http.StatusInternalServerError, "500.html", b.page(w, r, "Error", "/500"))
}

func (b base) notFound(w http.ResponseWriter, r *http.Request) {
	b.renderer.Render(w, http.StatusNotFound, "404.html", b.page(w, r, "Page Not Found", "/404"))
}

// dbCtx bounds a database call the way every handler does: a fresh timeout
// detached from the request, so a started write runs to completion.
func dbCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}

// resolveCart joins cart lines with their full product documents. Lines
// whose product has been deleted since it was added are dropped.
func resolveCart(ctx context.Context, products ProductStore, cart models.Cart) ([]models.ResolvedCartItem, error) {
	resolved := make([]models.ResolvedCartItem, 0, len(cart.Items))
	for _, item := range cart.Items {
		product, err := products.FindByID(ctx, item.ProductID)
		if errors.Is(err, models.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		resolved = append(resolved, models.ResolvedCartItem{Product: *product, Quantity: item.Quantity})
	}
	return resolved, nil
}

// cartTotal computes the display total of resolved cart lines.
func cartTotal(items []models.ResolvedCartItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		line := item.Product.Price().Mul(decimal.NewFromInt(int64(item.Quantity)))
		total = total.Add(line)
	}
	return total
}

type pagination struct {
	CurrentPage     int
	PreviousPage    int
	NextPage        int
	LastPage        int
	HasPreviousPage bool
	HasNextPage     bool
}

func paginate(page, perPage int, total int64) pagination {
	lastPage := int((total + int64(perPage) - 1) / int64(perPage))
	if lastPage < 1 {
		lastPage = 1
	}
	return pagination{
		CurrentPage:     page,
		PreviousPage:    page - 1,
		NextPage:        page + 1,
		LastPage:        lastPage,
		HasPreviousPage: page > 1,
		HasNextPage:     int64(page*perPage) < total,
	}
}

func pageNumber(r *http.Request) int {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		return 1
	}
	return page
}

// requestBaseURL rebuilds the scheme and host of the current request, used
// to scope payment redirect URLs.
func requestBaseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}
