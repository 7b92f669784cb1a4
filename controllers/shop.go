package controllers

import (
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"go-shop/middleware"
	"go-shop/models"
	"go-shop/utils"
)

// ShopController handles the storefront: catalog pages, the cart, order
// listing and invoice download.
type ShopController struct {
	base
	users    UserStore
	products ProductStore
	orders   OrderStore
	invoices *utils.InvoiceService
}

// NewShopController creates a new ShopController.
func NewShopController(renderer *utils.Renderer, session *middleware.Session, users UserStore, products ProductStore, orders OrderStore, invoices *utils.InvoiceService) *ShopController {
	return &ShopController{
		base:     base{renderer: renderer, session: session},
		users:    users,
		products: products,
		orders:   orders,
		invoices: invoices,
	}
}

type catalogPage struct {
	Page
	Products []models.Product
	pagination
}

// Index renders the landing page with a page of the catalog.
func (c *ShopController) Index(w http.ResponseWriter, r *http.Request) {
	c.renderCatalog(w, r, "index.html", "Shop", "/")
}

// Products renders the product listing.
func (c *ShopController) Products(w http.ResponseWriter, r *http.Request) {
	c.renderCatalog(w, r, "product-list.html", "Products", "/products")
}

func (c *ShopController) renderCatalog(w http.ResponseWriter, r *http.Request, name, title, path string) {
	pageNo := pageNumber(r)

	ctx, cancel := dbCtx()
	defer cancel()
	products, total, err := c.products.FindPage(ctx, pageNo, itemsPerPage)
	if err != nil {
		c.serverError(w, r, err)
		return
	}

	c.renderer.Render(w, http.StatusOK, name, catalogPage{
		Page:       c.page(w, r, title, path),
		Products:   products,
		pagination: paginate(pageNo, itemsPerPage, total),
	})
}

type productDetailPage struct {
	Page
	Product models.Product
}

// ProductDetail renders a single product.
func (c *ShopController) ProductDetail(w http.ResponseWriter, r *http.Request) {
	id, err := primitive.ObjectIDFromHex(mux.Vars(r)["id"])
	if err != nil {
		c.notFound(w, r)
		return
	}

	ctx, cancel := dbCtx()
	defer cancel()
	product, err := c.products.FindByID(ctx, id)
	if errors.Is(err, models.ErrNotFound) {
		c.notFound(w, r)
		return
	}
	if err != nil {
		c.serverError(w, r, err)
		return
	}

	c.renderer.Render(w, http.StatusOK, "product-detail.html", productDetailPage{
		Page:    c.page(w, r, product.Title, "/products"),
		Product: *product,
	})
}

type cartPage struct {
	Page
	Items []models.ResolvedCartItem
	Total decimal.Decimal
}

// Cart renders the current user's cart with every line resolved to its
// product. Lines whose product has been deleted are dropped from the stored
// cart as well, not just from the rendered view.
func (c *ShopController) Cart(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFrom(r.Context())

	ctx, cancel := dbCtx()
	defer cancel()
	resolved, err := resolveCart(ctx, c.products, user.Cart)
	if err != nil {
		c.serverError(w, r, err)
		return
	}

	if len(resolved) != len(user.Cart.Items) {
		keep := make(map[primitive.ObjectID]bool, len(resolved))
		for _, line := range resolved {
			keep[line.Product.ID] = true
		}
		err := c.users.ModifyCart(ctx, user.ID, func(cart models.Cart) models.Cart {
			return cart.RetainingProducts(keep)
		})
		if err != nil {
			log.Printf("prune cart for user %s: %v", user.ID.Hex(), err)
		}
	}

	c.renderer.Render(w, http.StatusOK, "cart.html", cartPage{
		Page:  c.page(w, r, "Your Cart", "/cart"),
		Items: resolved,
		Total: cartTotal(resolved),
	})
}

// AddToCart adds one unit of the posted product to the user's cart.
// Re-adding increments the existing line's quantity.
func (c *ShopController) AddToCart(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFrom(r.Context())

	productID, err := primitive.ObjectIDFromHex(r.FormValue("productId"))
	if err != nil {
		c.notFound(w, r)
		return
	}

	ctx, cancel := dbCtx()
	defer cancel()
	product, err := c.products.FindByID(ctx, productID)
	if errors.Is(err, models.ErrNotFound) {
		c.notFound(w, r)
		return
	}
	if err != nil {
		c.serverError(w, r, err)
		return
	}

	err = c.users.ModifyCart(ctx, user.ID, func(cart models.Cart) models.Cart {
		return cart.WithProduct(product.ID)
	})
	if err != nil {
		c.serverError(w, r, err)
		return
	}

	http.Redirect(w, r, "/cart", http.StatusFound)
}

// RemoveFromCart drops the posted product from the user's cart. Removing a
// product that is not in the cart is a no-op.
func (c *ShopController) RemoveFromCart(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFrom(r.Context())

	productID, err := primitive.ObjectIDFromHex(r.FormValue("productId"))
	if err != nil {
		c.notFound(w, r)
		return
	}

	ctx, cancel := dbCtx()
	defer cancel()
	err = c.users.ModifyCart(ctx, user.ID, func(cart models.Cart) models.Cart {
		return cart.WithoutProduct(productID)
	})
	if err != nil {
		c.serverError(w, r, err)
		return
	}

	http.Redirect(w, r, "/cart", http.StatusFound)
}

type ordersPage struct {
	Page
	Orders []models.Order
}

// Orders lists the current user's orders.
func (c *ShopController) Orders(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFrom(r.Context())

	ctx, cancel := dbCtx()
	defer cancel()
	orders, err := c.orders.FindByUser(ctx, user.ID)
	if err != nil {
		c.serverError(w, r, err)
		return
	}

	c.renderer.Render(w, http.StatusOK, "orders.html", ordersPage{
		Page:   c.page(w, r, "Orders", "/orders"),
		Orders: orders,
	})
}

// Invoice renders an order's invoice as a PDF, streaming it to the
// requester while persisting a copy. Only the order's purchaser may fetch
// it.
func (c *ShopController) Invoice(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFrom(r.Context())

	orderID, err := primitive.ObjectIDFromHex(mux.Vars(r)["orderId"])
	if err != nil {
		c.notFound(w, r)
		return
	}

	ctx, cancel := dbCtx()
	defer cancel()
	order, err := c.orders.FindByID(ctx, orderID)
	if errors.Is(err, models.ErrNotFound) {
		c.notFound(w, r)
		return
	}
	if err != nil {
		c.serverError(w, r, err)
		return
	}

	if order.User.UserID != user.ID {
		c.session.Flash(w, r, middleware.FlashError, models.ErrAccessDenied.Error())
		http.Redirect(w, r, "/orders", http.StatusFound)
		return
	}

	fileName := c.invoices.FileName(order.ID.Hex())
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", fileName))

	if err := c.invoices.RenderAndStore(*order, w); err != nil {
		// Headers are already on the wire; all we can do is log.
		log.Printf("render invoice for order %s: %v", order.ID.Hex(), err)
	}
}
