package controllers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"go-shop/middleware"
	"go-shop/models"
	"go-shop/utils"
)

const maxUploadBytes = 10 << 20

// AdminController handles the product-management panel. Every mutation is
// scoped to the signed-in user's own products.
type AdminController struct {
	base
	products ProductStore
	images   *utils.ImageStore
	validate *validator.Validate
}

// NewAdminController creates a new AdminController.
func NewAdminController(renderer *utils.Renderer, session *middleware.Session, products ProductStore, images *utils.ImageStore) *AdminController {
	return &AdminController{
		base:     base{renderer: renderer, session: session},
		products: products,
		images:   images,
		validate: validator.New(),
	}
}

type productForm struct {
	Title       string `validate:"required,min=5"`
	Price       string `validate:"required"`
	Description string `validate:"required,min=10,max=400"`
}

// parsePriceCents converts a posted price like "9.99" into minor currency
// units, rejecting non-positive values and sub-cent precision.
func parsePriceCents(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid price")
	}
	cents := d.Shift(2)
	if !d.IsPositive() || !cents.IsInteger() {
		return 0, fmt.Errorf("invalid price")
	}
	return cents.IntPart(), nil
}

type editProductPage struct {
	Page
	Editing          bool
	Product          models.Product
	PriceInput       string
	ValidationErrors map[string]string
}

// Products lists the signed-in user's own products.
func (c *AdminController) Products(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFrom(r.Context())
	pageNo := pageNumber(r)

	ctx, cancel := dbCtx()
	defer cancel()
	products, total, err := c.products.FindPageByOwner(ctx, user.ID, pageNo, itemsPerPage)
	if err != nil {
		c.serverError(w, r, err)
		return
	}

	c.renderer.Render(w, http.StatusOK, "admin-products.html", catalogPage{
		Page:       c.page(w, r, "Admin Products", "/admin/products"),
		Products:   products,
		pagination: paginate(pageNo, itemsPerPage, total),
	})
}

// AddProductForm renders the empty product form.
func (c *AdminController) AddProductForm(w http.ResponseWriter, r *http.Request) {
	c.renderer.Render(w, http.StatusOK, "edit-product.html", editProductPage{
		Page:    c.page(w, r, "Add Product", "/admin/add-product"),
		Editing: false,
	})
}

// AddProduct validates the posted form and image, stores the image and
// creates the product owned by the current user.
func (c *AdminController) AddProduct(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFrom(r.Context())

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		c.serverError(w, r, err)
		return
	}

	form := productForm{
		Title:       r.FormValue("title"),
		Price:       r.FormValue("price"),
		Description: r.FormValue("description"),
	}

	rerender := func(message string, fields map[string]string) {
		page := c.page(w, r, "Add Product", "/admin/add-product")
		page.ErrorMessage = message
		c.renderer.Render(w, http.StatusUnprocessableEntity, "edit-product.html", editProductPage{
			Page:    page,
			Editing: false,
			Product: models.Product{
				Title:       form.Title,
				Description: form.Description,
				UserID:      user.ID,
			},
			PriceInput:       form.Price,
			ValidationErrors: fields,
		})
	}

	if err := c.validate.Struct(form); err != nil {
		fields := validationMessages(err)
		rerender(firstMessage(fields), fields)
		return
	}
	priceCents, err := parsePriceCents(form.Price)
	if err != nil {
		rerender("Invalid price", map[string]string{"Price": "Invalid price"})
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		rerender("Invalid file provided", nil)
		return
	}
	defer file.Close()

	imagePath, err := c.images.Save(file, header)
	if errors.Is(err, utils.ErrUnsupportedImage) {
		rerender("Invalid file provided", nil)
		return
	}
	if err != nil {
		c.serverError(w, r, err)
		return
	}

	ctx, cancel := dbCtx()
	defer cancel()
	_, err = c.products.Insert(ctx, models.Product{
		Title:       form.Title,
		PriceCents:  priceCents,
		Description: form.Description,
		ImagePath:   imagePath,
		UserID:      user.ID,
	})
	if err != nil {
		c.serverError(w, r, err)
		return
	}

	http.Redirect(w, r, "/admin/products", http.StatusFound)
}

// EditProductForm renders the product form pre-filled with an existing
// product. Editing someone else's product redirects away.
func (c *AdminController) EditProductForm(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFrom(r.Context())

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
	if !product.OwnedBy(user.ID) {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	c.renderer.Render(w, http.StatusOK, "edit-product.html", editProductPage{
		Page:       c.page(w, r, "Edit Product", "/admin/edit-product"),
		Editing:    true,
		Product:    *product,
		PriceInput: product.Price().StringFixed(2),
	})
}

// EditProduct applies the posted form to an owned product. A newly uploaded
// image replaces the stored one, which is removed once the update persists.
func (c *AdminController) EditProduct(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFrom(r.Context())

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		c.serverError(w, r, err)
		return
	}

	id, err := primitive.ObjectIDFromHex(r.FormValue("productId"))
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
	if !product.OwnedBy(user.ID) {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	form := productForm{
		Title:       r.FormValue("title"),
		Price:       r.FormValue("price"),
		Description: r.FormValue("description"),
	}

	rerender := func(message string, fields map[string]string) {
		page := c.page(w, r, "Edit Product", "/admin/edit-product")
		page.ErrorMessage = message
		edited := *product
		edited.Title = form.Title
		edited.Description = form.Description
		c.renderer.Render(w, http.StatusUnprocessableEntity, "edit-product.html", editProductPage{
			Page:             page,
			Editing:          true,
			Product:          edited,
			PriceInput:       form.Price,
			ValidationErrors: fields,
		})
	}

	if err := c.validate.Struct(form); err != nil {
		fields := validationMessages(err)
		rerender(firstMessage(fields), fields)
		return
	}
	priceCents, err := parsePriceCents(form.Price)
	if err != nil {
		rerender("Invalid price", map[string]string{"Price": "Invalid price"})
		return
	}

	imagePath := product.ImagePath
	replacedImage := ""
	file, header, err := r.FormFile("image")
	if err == nil {
		defer file.Close()
		newPath, err := c.images.Save(file, header)
		if errors.Is(err, utils.ErrUnsupportedImage) {
			rerender("Invalid file provided", nil)
			return
		}
		if err != nil {
			c.serverError(w, r, err)
			return
		}
		replacedImage = imagePath
		imagePath = newPath
	} else if !errors.Is(err, http.ErrMissingFile) {
		c.serverError(w, r, err)
		return
	}

	updated := models.Product{
		ID:          product.ID,
		Title:       form.Title,
		PriceCents:  priceCents,
		Description: form.Description,
		ImagePath:   imagePath,
		UserID:      user.ID,
	}
	if err := c.products.Update(ctx, updated); err != nil {
		c.serverError(w, r, err)
		return
	}

	// The old image is removed only once the product no longer points at it.
	if replacedImage != "" {
		if err := c.images.Delete(replacedImage); err != nil {
			log.Printf("delete replaced image %s: %v", replacedImage, err)
		}
	}

	http.Redirect(w, r, "/admin/products", http.StatusFound)
}

// DeleteProduct removes an owned product and its stored image, answering
// JSON for the panel's fetch call.
func (c *AdminController) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFrom(r.Context())
	w.Header().Set("Content-Type", "application/json")

	fail := func(status int) {
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]string{"error": "Deletion failed"})
	}

	id, err := primitive.ObjectIDFromHex(mux.Vars(r)["id"])
	if err != nil {
		fail(http.StatusNotFound)
		return
	}

	ctx, cancel := dbCtx()
	defer cancel()
	product, err := c.products.FindByID(ctx, id)
	if errors.Is(err, models.ErrNotFound) {
		fail(http.StatusNotFound)
		return
	}
	if err != nil {
		fail(http.StatusInternalServerError)
		return
	}
	if !product.OwnedBy(user.ID) {
		fail(http.StatusForbidden)
		return
	}

	if err := c.products.Delete(ctx, product.ID, user.ID); err != nil {
		fail(http.StatusInternalServerError)
		return
	}
	if err := c.images.Delete(product.ImagePath); err != nil {
		log.Printf("delete image for product %s: %v", product.ID.Hex(), err)
	}

	json.NewEncoder(w).Encode(map[string]string{"message": "Deletion successful"})
}
