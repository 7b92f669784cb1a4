package controllers

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"

	"go-shop/middleware"
	"go-shop/models"
	"go-shop/utils"
)

const bcryptCost = 12

// AuthController handles signup, login, logout and password reset.
type AuthController struct {
	base
	users    UserStore
	mailer   Mailer
	validate *validator.Validate
}

// NewAuthController creates a new AuthController.
func NewAuthController(renderer *utils.Renderer, session *middleware.Session, users UserStore, mailer Mailer) *AuthController {
	return &AuthController{
		base:     base{renderer: renderer, session: session},
		users:    users,
		mailer:   mailer,
		validate: validator.New(),
	}
}

type signupForm struct {
	Email           string `validate:"required,email"`
	Password        string `validate:"required,min=6"`
	ConfirmPassword string `validate:"required,eqfield=Password"`
}

// validationMessages flattens validator errors into field -> message.
func validationMessages(err error) map[string]string {
	messages := make(map[string]string)
	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return messages
	}
	for _, fe := range fieldErrors {
		messages[fe.Field()] = fmt.Sprintf("Invalid %s", strings.ToLower(fe.Field()))
	}
	return messages
}

func firstMessage(messages map[string]string) string {
	for _, m := range messages {
		return m
	}
	return ""
}

type loginPage struct {
	Page
	Email string
}

// LoginForm renders the login page.
func (c *AuthController) LoginForm(w http.ResponseWriter, r *http.Request) {
	c.renderer.Render(w, http.StatusOK, "login.html", loginPage{
		Page: c.page(w, r, "Login", "/login"),
	})
}

// Login authenticates the posted credentials and starts a session.
func (c *AuthController) Login(w http.ResponseWriter, r *http.Request) {
	email := r.FormValue("email")
	password := r.FormValue("password")

	rerender := func() {
		page := c.page(w, r, "Login", "/login")
		page.ErrorMessage = "Invalid email or password"
		c.renderer.Render(w, http.StatusUnprocessableEntity, "login.html", loginPage{
			Page:  page,
			Email: email,
		})
	}

	ctx, cancel := dbCtx()
	defer cancel()
	user, err := c.users.FindByEmail(ctx, email)
	if errors.Is(err, models.ErrNotFound) {
		rerender()
		return
	}
	if err != nil {
		c.serverError(w, r, err)
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		rerender()
		return
	}

	if err := c.session.LogIn(w, r, user.ID); err != nil {
		c.serverError(w, r, err)
		return
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

// Logout destroys the session.
func (c *AuthController) Logout(w http.ResponseWriter, r *http.Request) {
	if err := c.session.LogOut(w, r); err != nil {
		c.serverError(w, r, err)
		return
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

type signupPage struct {
	Page
	Email            string
	ValidationErrors map[string]string
}

// SignupForm renders the signup page.
func (c *AuthController) SignupForm(w http.ResponseWriter, r *http.Request) {
	c.renderer.Render(w, http.StatusOK, "signup.html", signupPage{
		Page: c.page(w, r, "Signup", "/signup"),
	})
}

// Signup registers a new user with an empty cart and sends the welcome
// email.
func (c *AuthController) Signup(w http.ResponseWriter, r *http.Request) {
	form := signupForm{
		Email:           r.FormValue("email"),
		Password:        r.FormValue("password"),
		ConfirmPassword: r.FormValue("confirmPassword"),
	}

	rerender := func(message string, fields map[string]string) {
		page := c.page(w, r, "Signup", "/signup")
		page.ErrorMessage = message
		c.renderer.Render(w, http.StatusUnprocessableEntity, "signup.html", signupPage{
			Page:             page,
			Email:            form.Email,
			ValidationErrors: fields,
		})
	}

	if err := c.validate.Struct(form); err != nil {
		fields := validationMessages(err)
		rerender(firstMessage(fields), fields)
		return
	}

	ctx, cancel := dbCtx()
	defer cancel()
	if _, err := c.users.FindByEmail(ctx, form.Email); err == nil {
		rerender("E-mail already registered", nil)
		return
	} else if !errors.Is(err, models.ErrNotFound) {
		c.serverError(w, r, err)
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(form.Password), bcryptCost)
	if err != nil {
		c.serverError(w, r, err)
		return
	}

	user := models.User{
		Email:    form.Email,
		Password: string(hashedPassword),
		Cart:     models.Cart{Items: []models.CartItem{}},
	}
	if err := c.users.Insert(ctx, user); err != nil {
		c.serverError(w, r, err)
		return
	}

	if c.mailer != nil {
		go func(email string) {
			if err := c.mailer.SendWelcomeEmail(email); err != nil {
				log.Printf("Failed to send email to %s: %v", email, err)
			}
		}(form.Email)
	}

	c.session.Flash(w, r, middleware.FlashSuccess, "Success! Please login")
	http.Redirect(w, r, "/login", http.StatusFound)
}

// ResetForm renders the password-reset request page.
func (c *AuthController) ResetForm(w http.ResponseWriter, r *http.Request) {
	c.renderer.Render(w, http.StatusOK, "reset.html", c.page(w, r, "Reset Password", "/reset"))
}

// Reset issues a signed reset token, stores it with its expiration on the
// user and emails the reset link.
func (c *AuthController) Reset(w http.ResponseWriter, r *http.Request) {
	email := r.FormValue("email")

	ctx, cancel := dbCtx()
	defer cancel()
	user, err := c.users.FindByEmail(ctx, email)
	if errors.Is(err, models.ErrNotFound) {
		c.session.Flash(w, r, middleware.FlashError, "No account with that email!")
		http.Redirect(w, r, "/reset", http.StatusFound)
		return
	}
	if err != nil {
		c.serverError(w, r, err)
		return
	}

	token, expiration, err := utils.GenerateResetToken(user.Email, time.Hour)
	if err != nil {
		c.serverError(w, r, err)
		return
	}
	if err := c.users.SetResetToken(ctx, user.ID, token, expiration); err != nil {
		c.serverError(w, r, err)
		return
	}

	resetLink := requestBaseURL(r) + "/new-password/" + token
	if c.mailer != nil {
		go func(email, link string) {
			if err := c.mailer.SendPasswordResetEmail(email, link); err != nil {
				log.Printf("Failed to send email to %s: %v", email, err)
			}
		}(user.Email, resetLink)
	}

	c.session.Flash(w, r, middleware.FlashSuccess, "Please check your email")
	http.Redirect(w, r, "/login", http.StatusFound)
}

type newPasswordPage struct {
	Page
	UserID        string
	PasswordToken string
}

// NewPasswordForm validates the emailed token and renders the new-password
// form.
func (c *AuthController) NewPasswordForm(w http.ResponseWriter, r *http.Request) {
	token := mux.Vars(r)["token"]

	if _, err := utils.ParseResetToken(token); err != nil {
		c.session.Flash(w, r, middleware.FlashError, "Reset link is invalid or expired")
		http.Redirect(w, r, "/reset", http.StatusFound)
		return
	}

	ctx, cancel := dbCtx()
	defer cancel()
	user, err := c.users.FindByResetToken(ctx, token)
	if errors.Is(err, models.ErrNotFound) {
		c.session.Flash(w, r, middleware.FlashError, "Reset link is invalid or expired")
		http.Redirect(w, r, "/reset", http.StatusFound)
		return
	}
	if err != nil {
		c.serverError(w, r, err)
		return
	}

	c.renderer.Render(w, http.StatusOK, "new-password.html", newPasswordPage{
		Page:          c.page(w, r, "New Password", "/new-password"),
		UserID:        user.ID.Hex(),
		PasswordToken: token,
	})
}

// NewPassword sets the new password after re-checking the token.
func (c *AuthController) NewPassword(w http.ResponseWriter, r *http.Request) {
	password := r.FormValue("password")
	token := r.FormValue("passwordToken")
	userID, err := primitive.ObjectIDFromHex(r.FormValue("userId"))
	if err != nil {
		c.notFound(w, r)
		return
	}

	if len(password) < 6 {
		c.session.Flash(w, r, middleware.FlashError, "Password must be at least 6 characters")
		http.Redirect(w, r, "/new-password/"+token, http.StatusFound)
		return
	}

	ctx, cancel := dbCtx()
	defer cancel()
	user, err := c.users.FindByResetToken(ctx, token)
	if errors.Is(err, models.ErrNotFound) || (err == nil && user.ID != userID) {
		c.session.Flash(w, r, middleware.FlashError, "Reset link is invalid or expired")
		http.Redirect(w, r, "/reset", http.StatusFound)
		return
	}
	if err != nil {
		c.serverError(w, r, err)
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		c.serverError(w, r, err)
		return
	}
	if err := c.users.UpdatePassword(ctx, user.ID, string(hashedPassword)); err != nil {
		c.serverError(w, r, err)
		return
	}

	c.session.Flash(w, r, middleware.FlashSuccess, "Password reset successfully")
	http.Redirect(w, r, "/login", http.StatusFound)
}
