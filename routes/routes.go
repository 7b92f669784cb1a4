// routes/routes.go
package routes

import (
	"net/http"

	"github.com/gorilla/mux"

	"go-shop/controllers"
	"go-shop/middleware"
)

// Register sets up all the routes for the application.
func Register(router *mux.Router, csrfProtect mux.MiddlewareFunc, sess *middleware.Session, auth *controllers.AuthController, shop *controllers.ShopController, checkout *controllers.CheckoutController, admin *controllers.AdminController, errs *controllers.ErrorController) {
	// Payment notifications come from the collaborator's servers and carry
	// their own signature; the CSRF layer must not see them.
	router.HandleFunc("/checkout/webhook", checkout.Webhook).Methods("POST")

	// Static files
	router.PathPrefix("/images/").Handler(http.StripPrefix("/images/", http.FileServer(http.Dir("images"))))
	router.PathPrefix("/public/").Handler(http.StripPrefix("/public/", http.FileServer(http.Dir("public"))))

	web := router.PathPrefix("/").Subrouter()
	web.Use(csrfProtect)
	web.Use(sess.CurrentUser)

	// Public routes
	web.HandleFunc("/", shop.Index).Methods("GET")
	web.HandleFunc("/products", shop.Products).Methods("GET")
	web.HandleFunc("/products/{id}", shop.ProductDetail).Methods("GET")
	web.HandleFunc("/login", auth.LoginForm).Methods("GET")
	web.HandleFunc("/login", auth.Login).Methods("POST")
	web.HandleFunc("/signup", auth.SignupForm).Methods("GET")
	web.HandleFunc("/signup", auth.Signup).Methods("POST")
	web.HandleFunc("/reset", auth.ResetForm).Methods("GET")
	web.HandleFunc("/reset", auth.Reset).Methods("POST")
	web.HandleFunc("/new-password/{token}", auth.NewPasswordForm).Methods("GET")
	web.HandleFunc("/new-password", auth.NewPassword).Methods("POST")
	web.HandleFunc("/500", errs.ServerError).Methods("GET")

	// Protected routes
	protected := web.PathPrefix("/").Subrouter()
	protected.Use(sess.RequireAuth)
	protected.HandleFunc("/logout", auth.Logout).Methods("POST")
	protected.HandleFunc("/cart", shop.Cart).Methods("GET")
	protected.HandleFunc("/cart", shop.AddToCart).Methods("POST")
	protected.HandleFunc("/cart-delete-item", shop.RemoveFromCart).Methods("POST")
	protected.HandleFunc("/checkout", checkout.Checkout).Methods("GET")
	protected.HandleFunc("/checkout/success", checkout.Success).Methods("GET")
	protected.HandleFunc("/checkout/cancel", checkout.Cancel).Methods("GET")
	protected.HandleFunc("/orders", shop.Orders).Methods("GET")
	protected.HandleFunc("/orders/{orderId}", shop.Invoice).Methods("GET")

	// Admin routes
	adminRouter := web.PathPrefix("/admin").Subrouter()
	adminRouter.Use(sess.RequireAuth)
	adminRouter.HandleFunc("/products", admin.Products).Methods("GET")
	adminRouter.HandleFunc("/add-product", admin.AddProductForm).Methods("GET")
	adminRouter.HandleFunc("/add-product", admin.AddProduct).Methods("POST")
	adminRouter.HandleFunc("/edit-product/{id}", admin.EditProductForm).Methods("GET")
	adminRouter.HandleFunc("/edit-product", admin.EditProduct).Methods("POST")
	adminRouter.HandleFunc("/product/{id}", admin.DeleteProduct).Methods("DELETE")

	router.NotFoundHandler = http.HandlerFunc(errs.NotFound)
}
