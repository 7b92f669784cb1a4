// utils/email.go
package utils

import (
	"fmt"
	"go-shop/models"
	"os"

	"github.com/keighl/postmark"
)

// EmailService handles sending emails using Postmark
type EmailService struct {
	client *postmark.Client
}

// NewEmailService initializes and returns a new EmailService instance
func NewEmailService() *EmailService {
	apiToken := os.Getenv("POSTMARK_API_TOKEN")
	if apiToken == "" {
		panic("POSTMARK_API_TOKEN is not set in environment variables")
	}
	client := postmark.NewClient(apiToken, "")
	return &EmailService{
		client: client,
	}
}

// SendEmail sends a basic email to the specified recipient
func (es *EmailService) SendEmail(toEmail, subject, htmlContent string) error {
	_, err := es.client.SendEmail(postmark.Email{
		From:     os.Getenv("EMAIL_SENDER"),
		To:       toEmail,
		Subject:  subject,
		HtmlBody: htmlContent,
		TextBody: htmlContent,
	})

	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

// SendWelcomeEmail sends the signup confirmation email.
func (es *EmailService) SendWelcomeEmail(toEmail string) error {
	subject := "Signup success"
	htmlContent := "<h1>Welcome to Go Shop</h1><p>Your account has been created. Happy shopping!</p>"
	return es.SendEmail(toEmail, subject, htmlContent)
}

// SendPasswordResetEmail sends a password-reset link to the user.
func (es *EmailService) SendPasswordResetEmail(toEmail, resetLink string) error {
	subject := "Password Reset Link"
	htmlContent := fmt.Sprintf(
		"<h1>Password Reset</h1><p>Click this <a href=\"%s\">link</a> to set a new password. The link expires in one hour.</p>",
		resetLink,
	)
	return es.SendEmail(toEmail, subject, htmlContent)
}

// SendOrderConfirmationEmail sends an order confirmation email to the user
func (es *EmailService) SendOrderConfirmationEmail(toEmail string, order models.Order) error {
	subject := "Order Confirmation"
	htmlContent := fmt.Sprintf(
		"<strong>Dear Customer,</strong><br><br>Thank you for your purchase! Your order (ID: %s) has been placed successfully.<br><br>Total Amount: <strong>$%s</strong><br><br>Thank you for shopping with us!",
		order.ID.Hex(),
		order.Total().StringFixed(2),
	)
	return es.SendEmail(toEmail, subject, htmlContent)
}
