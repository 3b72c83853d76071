// Package domain contains core business types and interfaces.
//
// This file defines the User domain type and related types for
// authentication. The user's plan is not stored here: the entitlement
// record is the single source of truth for plan and credits.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// User represents a registered Sommet user.
type User struct {
	ID               uuid.UUID
	Email            string
	PasswordHash     string // Never expose this in API responses
	Name             string
	StripeCustomerID string
	SubscriptionID   string // Stripe subscription ID (builder plan only)
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// DisplayName returns the user's name or email if name is empty.
func (u *User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}

// Session represents an authenticated session.
//
// Sessions are stored in the database with a hashed token.
// The raw token is only given to the client once (at login).
type Session struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	TokenHash string // SHA-256 hash of the session token
	ExpiresAt time.Time
	CreatedAt time.Time
}

// IsExpired returns true if the session has expired.
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// RegisterParams contains the validated parameters for user registration.
type RegisterParams struct {
	Email    string
	Password string // Raw password, will be hashed by service
	Name     string
}

// LoginResult contains the result of a successful login.
type LoginResult struct {
	User  *User
	Token string // Raw session token (not hashed) - only returned once
}
