// Package auth implements the authentication and authorization core:
// password hashing, dual-secret JWT issuing/verification, the login state
// machine with account lockout, and pure RBAC policy decisions. It talks to
// storage only through the CredentialStore interface so handlers, tests and
// repositories stay decoupled.
package auth

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidCredentials covers unknown email, wrong password and
	// inactive-at-login. Callers must not reveal which one it was.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrAccountInactive is returned by the authorization path when a
	// validly signed token references a deactivated account.
	ErrAccountInactive = errors.New("account inactive")

	// ErrTokenExpired and ErrTokenInvalid are distinct so rejections can be
	// reported with different codes; both deny the request.
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("token invalid")

	// ErrSecretMissing signals a configuration gap: a route needed a signing
	// secret that was never provided. It maps to a 500, not a process exit.
	ErrSecretMissing = errors.New("signing secret not configured")
)

// AccountLockedError is returned while an account is locked out. Until is
// surfaced to the client so it knows when to retry.
type AccountLockedError struct {
	Until time.Time
}

func (e *AccountLockedError) Error() string {
	return fmt.Sprintf("account locked until %s", e.Until.UTC().Format(time.RFC3339))
}

// ValidationError reports a malformed login request. It carries a
// client-safe message and causes no state mutation.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }
