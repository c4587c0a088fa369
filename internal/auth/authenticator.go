package auth

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/fieldprep/exercise-hub/internal/model"
)

// Lockout policy. The duration is not extended by further attempts while a
// lock is in force; the lock check short-circuits before the counter is
// touched.
const (
	FailedAttemptThreshold = 5
	LockoutDuration        = 30 * time.Minute
)

// CredentialStore is the slice of the user repository the authenticator
// needs. FindByEmail must return sql.ErrNoRows for unknown or soft-deleted
// emails. RegisterFailedAttempt must be a single atomic read-modify-write:
// concurrent wrong-password attempts may not lose increments, and a locked
// row must not increment at all.
type CredentialStore interface {
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	RegisterFailedAttempt(ctx context.Context, userID uint64, threshold int, lockFor time.Duration) (attempts int, lockedUntil *time.Time, err error)
	RecordLogin(ctx context.Context, userID uint64, at time.Time) error
	EffectiveRoleNames(ctx context.Context, userID uint64, now time.Time) ([]string, error)
}

// LoginRequest is the parsed body of POST /v1/auth/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=128"`
}

// LoginResult carries everything a successful login returns: the signed API
// token, its expiry, the public profile and the effective role names that
// were embedded in the token.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	User      *model.User
	Roles     []string
}

// Authenticator runs the login state machine against a CredentialStore and
// issues API tokens through the TokenService.
type Authenticator struct {
	store    CredentialStore
	tokens   *TokenService
	validate *validator.Validate
	log      *zap.Logger
}

// NewAuthenticator wires an Authenticator. The logger records lockout
// transitions; it may not be nil.
func NewAuthenticator(store CredentialStore, tokens *TokenService, log *zap.Logger) *Authenticator {
	return &Authenticator{
		store:    store,
		tokens:   tokens,
		validate: validator.New(),
		log:      log,
	}
}

// Login evaluates a credential pair strictly in order: input shape, lookup,
// lock check, active check, password verify, then success bookkeeping.
// It short-circuits on the first failure and mutates no state on the
// validation, lookup, lock and inactive paths.
func (a *Authenticator) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := a.validate.Struct(req); err != nil {
		return nil, &ValidationError{Message: "email must be valid and password 6-128 characters"}
	}

	now := time.Now().UTC()

	u, err := a.store.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Unknown emails get the same answer as bad passwords.
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if u.Locked(now) {
		return nil, &AccountLockedError{Until: *u.LockedUntil}
	}

	if !u.IsActive {
		// Inactive accounts skip lockout bookkeeping entirely.
		return nil, ErrInvalidCredentials
	}

	if !VerifyPassword(u.PasswordHash, req.Password) {
		attempts, lockedUntil, ferr := a.store.RegisterFailedAttempt(ctx, u.ID, FailedAttemptThreshold, LockoutDuration)
		if ferr != nil {
			return nil, ferr
		}
		if lockedUntil != nil {
			a.log.Warn("account locked after repeated failures",
				zap.Uint64("user_id", u.ID),
				zap.Int("failed_attempts", attempts),
				zap.Time("locked_until", *lockedUntil),
				zap.String("threat_level", "high"))
		}
		return nil, ErrInvalidCredentials
	}

	if err := a.store.RecordLogin(ctx, u.ID, now); err != nil {
		return nil, err
	}
	u.FailedAttempts = 0
	u.LockedUntil = nil
	u.LastLoginAt = &now

	roles, err := a.store.EffectiveRoleNames(ctx, u.ID, now)
	if err != nil {
		return nil, err
	}

	token, exp, err := a.tokens.IssueAPIToken(u.ID, u.Email, u.Name, roles)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Token: token, ExpiresAt: exp, User: u, Roles: roles}, nil
}
