// main.go
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gorilla/csrf"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"

	"go-shop/controllers"
	"go-shop/middleware"
	"go-shop/routes"
	"go-shop/store"
	"go-shop/utils"
)

func main() {
	// Load environment variables from .env file
	err := godotenv.Load()
	if err != nil {
		log.Println("No .env file found. Proceeding with environment variables.")
	}

	// Set the JWT secret key used for password-reset tokens
	utils.JwtKey = []byte(os.Getenv("JWT_SECRET"))

	// Connect to MongoDB
	client := store.Connect(os.Getenv("MONGODB_URI"))
	defer func() {
		if err = client.Disconnect(context.TODO()); err != nil {
			log.Fatal(err)
		}
	}()

	users := store.NewUsers(client)
	products := store.NewProducts(client)
	orders := store.NewOrders(client)

	renderer, err := utils.NewRenderer("views")
	if err != nil {
		log.Fatal(err)
	}
	emailService := utils.NewEmailService()
	paymentService := utils.NewStripeService(os.Getenv("STRIPE_SECRET_KEY"), os.Getenv("STRIPE_WEBHOOK_SECRET"))
	invoiceService := utils.NewInvoiceService(filepath.Join("data", "invoices"))
	imageStore := utils.NewImageStore("images")

	sess := middleware.NewSession([]byte(os.Getenv("SESSION_SECRET")), users)

	// Initialize controllers
	authController := controllers.NewAuthController(renderer, sess, users, emailService)
	shopController := controllers.NewShopController(renderer, sess, users, products, orders, invoiceService)
	checkoutController := controllers.NewCheckoutController(renderer, sess, users, products, orders, paymentService, emailService)
	adminController := controllers.NewAdminController(renderer, sess, products, imageStore)
	errorController := controllers.NewErrorController(renderer, sess)

	// Set up the router
	router := mux.NewRouter()
	csrfProtect := csrf.Protect(
		[]byte(os.Getenv("CSRF_AUTH_KEY")),
		csrf.Secure(os.Getenv("ENV") == "production"),
		csrf.Path("/"),
	)
	routes.Register(router, csrfProtect, sess, authController, shopController, checkoutController, adminController, errorController)

	// Start the server
	port := os.Getenv("PORT")
	if port == "" {
		port = "8000"
	}
	fmt.Printf("Server is running on port %s\n", port)
	log.Fatal(http.ListenAndServe(":"+port, router))
}
