package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/sommetlabs/sommet/internal/domain"
	"github.com/sommetlabs/sommet/internal/email"
	"github.com/sommetlabs/sommet/internal/repository"
)

const (
	// BcryptCost is the cost factor for bcrypt password hashing.
	// Cost 12 provides good security (~250ms on modern hardware) while being
	// fast enough for login flows.
	//
	// SECURITY NOTE: This should NOT be configurable at runtime to prevent
	// accidental weakening. If you need to change it, do so here and redeploy.
	BcryptCost = 12

	// SessionTokenBytes is the number of random bytes for session tokens.
	// 32 bytes = 256 bits of entropy. The token is hex-encoded to 64
	// characters for storage and transmission.
	SessionTokenBytes = 32

	// SessionDuration is how long a session remains valid.
	SessionDuration = 30 * 24 * time.Hour

	// MinPasswordLength is the minimum password length.
	// NIST SP 800-63B recommends 8+ characters minimum.
	MinPasswordLength = 8

	// MaxPasswordLength prevents DoS via bcrypt on very long passwords.
	// bcrypt has a 72-byte limit anyway, but we cap earlier for clarity.
	MaxPasswordLength = 72
)

// UserService defines the interface for user-related operations.
type UserService interface {
	// Register creates a new user account with a fresh base-plan
	// entitlement record.
	// Returns domain.ECONFLICT if email already exists.
	// Returns domain.EINVALID for validation errors.
	Register(ctx context.Context, params domain.RegisterParams) (*domain.User, error)

	// Login authenticates a user and creates a new session.
	// Returns the user and raw session token on success.
	// Returns domain.EUNAUTHORIZED for invalid credentials.
	Login(ctx context.Context, email, password string) (*domain.LoginResult, error)

	// Logout invalidates a session by its raw token.
	// This is idempotent. Calling with an invalid token is not an error.
	Logout(ctx context.Context, token string) error

	// GetByID retrieves a user by their ID.
	// Returns domain.ENOTFOUND if user does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)

	// GetBySessionToken retrieves a user by their session token.
	// Returns domain.EUNAUTHORIZED if token is invalid or expired.
	GetBySessionToken(ctx context.Context, token string) (*domain.User, error)

	// GetByStripeCustomerID retrieves a user by their Stripe customer ID.
	// Returns domain.ENOTFOUND if no user has that customer ID.
	GetByStripeCustomerID(ctx context.Context, stripeCustomerID string) (*domain.User, error)

	// SetStripeCustomerID saves the Stripe customer ID for a user.
	SetStripeCustomerID(ctx context.Context, userID uuid.UUID, stripeCustomerID string) error

	// SetSubscriptionID saves the Stripe subscription ID for a user.
	SetSubscriptionID(ctx context.Context, userID uuid.UUID, subscriptionID string) error

	// DeleteExpiredSessions removes all expired sessions from the database.
	// This should be called periodically (e.g., daily) to clean up.
	DeleteExpiredSessions(ctx context.Context) error
}

// userService is the concrete implementation of UserService.
type userService struct {
	users    UserStore
	sessions SessionStore
	accounts AccountStore
	email    email.EmailService // nil disables transactional email
	logger   *slog.Logger
}

// NewUserService creates a new UserService instance.
func NewUserService(users UserStore, sessions SessionStore, accounts AccountStore, emailSvc email.EmailService, logger *slog.Logger) UserService {
	return &userService{
		users:    users,
		sessions: sessions,
		accounts: accounts,
		email:    emailSvc,
		logger:   logger,
	}
}

// Register creates a new user account.
//
// Flow:
// 1. Validate input parameters (email format, password strength)
// 2. Check if email already exists
// 3. Hash the password with bcrypt
// 4. Create the user record and its base-plan entitlement record in one
//    transaction, so a failure leaves no half-provisioned account
// 5. Send a welcome email (best effort, off the request path)
//
// Security Considerations:
// - Timing attacks are mitigated by always hashing even on duplicate email
// - The raw password is never logged or stored
func (s *userService) Register(ctx context.Context, params domain.RegisterParams) (*domain.User, error) {
	const op = "UserService.Register"

	params.Email = strings.ToLower(strings.TrimSpace(params.Email))
	params.Name = strings.TrimSpace(params.Name)

	if err := validateEmail(params.Email); err != nil {
		return nil, domain.Wrap(err, domain.EINVALID, op, "Invalid email address")
	}

	if params.Name == "" {
		return nil, domain.Invalid(op, "Name is required")
	}

	if err := validatePassword(params.Password); err != nil {
		return nil, domain.Wrap(err, domain.EINVALID, op, "Invalid password")
	}

	_, err := s.users.GetByEmail(ctx, params.Email)
	if err == nil {
		// User exists. Hash anyway so duplicate emails take the same time.
		_, _ = bcrypt.GenerateFromPassword([]byte(params.Password), BcryptCost)
		return nil, domain.Conflict(op, "Email already registered")
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.Internal(err, op, "Failed to check email availability")
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(params.Password), BcryptCost)
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to hash password")
	}

	// Every account starts on the base plan with full base credits. The
	// user row and the entitlement record commit together; if either
	// fails, the whole registration rolls back and can be retried.
	user, err := s.accounts.CreateAccount(ctx, params.Email, string(passwordHash), params.Name, domain.PlanBase)
	if err != nil {
		// Unique constraint violation means we lost a registration race
		if repository.IsUniqueViolation(err) {
			return nil, domain.Conflict(op, "Email already registered")
		}
		return nil, domain.Internal(err, op, "Failed to create account")
	}

	user.PasswordHash = ""

	s.logger.Info("user registered", "user_id", user.ID, "email", user.Email)

	if s.email != nil {
		go func(to, name string) {
			emailCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			if err := s.email.SendWelcomeEmail(emailCtx, to, name); err != nil {
				s.logger.Warn("failed to send welcome email", "email", to, "error", err)
			}
		}(user.Email, user.DisplayName())
	}

	return user, nil
}

// Login authenticates a user and creates a new session.
//
// Security Considerations:
// - Constant-time password comparison via bcrypt
// - Generic error message prevents email enumeration
// - Session token is only returned once and stored hashed
func (s *userService) Login(ctx context.Context, loginEmail, password string) (*domain.LoginResult, error) {
	const op = "UserService.Login"

	loginEmail = strings.ToLower(strings.TrimSpace(loginEmail))

	user, err := s.users.GetByEmail(ctx, loginEmail)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Compare against a dummy hash to keep timing constant
			dummyHash := "$2a$12$R9h/cIPz0gi.URNNX3kh2OPST9/PgBkqquzi.Ss7KIUgO2t0jWMUW" // bcrypt hash of "dummy"
			_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(password))
			return nil, domain.Unauthorized(op, "Invalid email or password")
		}
		return nil, domain.Internal(err, op, "Failed to retrieve user")
	}

	err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password))
	if err != nil {
		return nil, domain.Unauthorized(op, "Invalid email or password")
	}

	token, err := generateSessionToken()
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to generate session token")
	}

	tokenHash := hashSessionToken(token)
	expiresAt := time.Now().Add(SessionDuration)

	if _, err := s.sessions.Create(ctx, user.ID, tokenHash, expiresAt); err != nil {
		return nil, domain.Internal(err, op, "Failed to create session")
	}

	user.PasswordHash = ""

	s.logger.Info("user logged in", "user_id", user.ID, "email", user.Email)

	return &domain.LoginResult{
		User:  user,
		Token: token,
	}, nil
}

// Logout invalidates a session. Idempotent.
func (s *userService) Logout(ctx context.Context, token string) error {
	if token == "" || len(token) != 64 {
		return nil
	}

	tokenHash := hashSessionToken(token)

	if err := s.sessions.DeleteByTokenHash(ctx, tokenHash); err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			s.logger.Warn("failed to delete session", "error", err)
		}
	}

	s.logger.Debug("session invalidated")

	return nil
}

// GetByID retrieves a user by their ID.
func (s *userService) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	const op = "UserService.GetByID"

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NotFound(op, "user", id.String())
		}
		return nil, domain.Internal(err, op, "Failed to retrieve user")
	}

	user.PasswordHash = ""

	return user, nil
}

// GetBySessionToken retrieves a user by their session token.
//
// Flow:
// 1. Hash the provided raw token
// 2. Look up the unexpired session by token hash
// 3. Look up the associated user
func (s *userService) GetBySessionToken(ctx context.Context, token string) (*domain.User, error) {
	const op = "UserService.GetBySessionToken"

	if token == "" || len(token) != 64 {
		return nil, domain.Unauthorized(op, "Invalid or expired session")
	}

	tokenHash := hashSessionToken(token)

	session, err := s.sessions.GetByTokenHash(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.Unauthorized(op, "Invalid or expired session")
		}
		return nil, domain.Internal(err, op, "Failed to retrieve session")
	}

	user, err := s.users.GetByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Possible if the user was deleted after the session was issued
			return nil, domain.Unauthorized(op, "Invalid or expired session")
		}
		return nil, domain.Internal(err, op, "Failed to retrieve user")
	}

	user.PasswordHash = ""

	return user, nil
}

// GetByStripeCustomerID retrieves a user by their Stripe customer ID.
func (s *userService) GetByStripeCustomerID(ctx context.Context, stripeCustomerID string) (*domain.User, error) {
	const op = "UserService.GetByStripeCustomerID"

	user, err := s.users.GetByStripeCustomerID(ctx, stripeCustomerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NotFound(op, "user", stripeCustomerID)
		}
		return nil, domain.Internal(err, op, "Failed to retrieve user")
	}

	user.PasswordHash = ""

	return user, nil
}

// SetStripeCustomerID saves the Stripe customer ID for a user.
func (s *userService) SetStripeCustomerID(ctx context.Context, userID uuid.UUID, stripeCustomerID string) error {
	const op = "UserService.SetStripeCustomerID"

	if err := s.users.SetStripeCustomerID(ctx, userID, stripeCustomerID); err != nil {
		return domain.Internal(err, op, "Failed to save Stripe customer ID")
	}
	return nil
}

// SetSubscriptionID saves the Stripe subscription ID for a user.
func (s *userService) SetSubscriptionID(ctx context.Context, userID uuid.UUID, subscriptionID string) error {
	const op = "UserService.SetSubscriptionID"

	if err := s.users.SetSubscriptionID(ctx, userID, subscriptionID); err != nil {
		return domain.Internal(err, op, "Failed to save subscription ID")
	}
	return nil
}

// DeleteExpiredSessions removes all expired sessions.
func (s *userService) DeleteExpiredSessions(ctx context.Context) error {
	const op = "UserService.DeleteExpiredSessions"

	deleted, err := s.sessions.DeleteExpired(ctx)
	if err != nil {
		return domain.Internal(err, op, "Failed to delete expired sessions")
	}

	if deleted > 0 {
		s.logger.Info("expired sessions deleted", "count", deleted)
	}

	return nil
}

// generateSessionToken creates a cryptographically secure random token.
func generateSessionToken() (string, error) {
	bytes := make([]byte, SessionTokenBytes)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// hashSessionToken creates a SHA-256 hash of a session token.
//
// We hash session tokens before storing them because:
//  1. If the database is compromised, attackers cannot use the hashes directly
//  2. SHA-256 is fast enough for per-request validation
//  3. Unlike passwords, session tokens are high-entropy random values,
//     so SHA-256 is sufficient (bcrypt would be overkill and slow)
func hashSessionToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

// validateEmail performs basic email format validation.
func validateEmail(email string) error {
	if email == "" {
		return domain.Invalid("", "Email is required")
	}

	if len(email) > 254 {
		return domain.Invalid("", "Email must be 254 characters or less")
	}

	atIndex := strings.Index(email, "@")
	if atIndex != strings.LastIndex(email, "@") || atIndex <= 0 || atIndex == len(email)-1 {
		return domain.Invalid("", "Email address is malformed")
	}

	if !strings.Contains(email[atIndex+1:], ".") {
		return domain.Invalid("", "Email domain is malformed")
	}

	return nil
}

// validatePassword enforces password length bounds.
func validatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return domain.Invalid("", "Password must be at least 8 characters")
	}

	if len(password) > MaxPasswordLength {
		return domain.Invalid("", "Password must be 72 characters or less")
	}

	return nil
}
