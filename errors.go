package mailgate

import "errors"

// Request-outcome taxonomy. Every engine operation fails with exactly one
// of these five; handlers map them to status codes and generic bodies, and
// nothing finer crosses the client boundary.
var (
	// ErrBadRequest marks malformed or missing client input.
	ErrBadRequest = errors.New("bad request")
	// ErrUnauthorized marks a missing, invalid, or expired credential.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrRequestFailed marks a downstream rejection or transport error.
	// Wrong code, expired session, and platform outage are deliberately
	// indistinguishable here so failures leak nothing about why.
	ErrRequestFailed = errors.New("request failed")
	// ErrNotFound marks a resolvable identity attribute that is absent.
	ErrNotFound = errors.New("not found")
	// ErrInternal marks an unexpected platform or transport exception.
	ErrInternal = errors.New("internal error")
)

// Identity-platform causes. Providers return these; the engine folds them
// into the taxonomy above before anything reaches a handler.
var (
	// ErrUserNotFound is returned when no account exists for an email or
	// subject identifier.
	ErrUserNotFound = errors.New("user not found")
	// ErrChallengeNotPosed is returned when a login start does not come
	// back with the OTP challenge. The flow must never silently fall back
	// to another auth mechanism.
	ErrChallengeNotPosed = errors.New("custom challenge not posed")
	// ErrChallengeRejected is returned when a challenge answer does not
	// authenticate the session.
	ErrChallengeRejected = errors.New("challenge rejected")
	// ErrSessionExpired is returned when a login session is unknown or
	// past its TTL.
	ErrSessionExpired = errors.New("login session expired")
	// ErrRefreshRejected is returned when a refresh token is unknown,
	// expired, or revoked.
	ErrRefreshRejected = errors.New("refresh token rejected")
	// ErrNoEmailAttribute is returned when an account has no email
	// attribute to resolve.
	ErrNoEmailAttribute = errors.New("no email attribute")
)

// ErrEngineNotReady is returned when an Engine is used before Build wired
// its dependencies.
var ErrEngineNotReady = errors.New("engine not initialized")
