// Package email provides transactional email sending for the Sommet application.
//
// This package defines an EmailService interface backed by SMTP
// (Mailhog for development, any authenticated SMTP relay for production).
package email

import (
	"context"
)

// EmailService defines the interface for sending transactional emails.
//
// All methods are context-aware for timeout and cancellation support.
type EmailService interface {
	// SendWelcomeEmail greets a newly registered user and describes
	// what the free plan includes.
	SendWelcomeEmail(ctx context.Context, to, name string) error

	// SendPlanChangedEmail confirms a plan change after a billing event
	// has been applied.
	SendPlanChangedEmail(ctx context.Context, to, name, plan string) error
}

// Email represents a single email message.
type Email struct {
	To       string // Recipient email address
	Subject  string // Email subject line
	HTMLBody string // HTML content of the email
	TextBody string // Plain text fallback content
}

// SMTPConfig holds SMTP server configuration.
type SMTPConfig struct {
	Host     string // SMTP server hostname (e.g., "localhost" for Mailhog)
	Port     int    // SMTP server port (e.g., 1025 for Mailhog)
	Username string // SMTP authentication username (empty for Mailhog)
	Password string // SMTP authentication password (empty for Mailhog)
	From     string // Default sender email address
	FromName string // Default sender display name
}

const (
	// DefaultFromEmail is the default sender email for transactional emails.
	DefaultFromEmail = "noreply@sommet.app"

	// DefaultFromName is the default sender display name.
	DefaultFromName = "Sommet"
)
