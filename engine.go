package mailgate

import (
	"context"
	"errors"
	"time"

	"github.com/mailgate/mailgate/jwt"
)

// Engine is the credential side of the system: it starts logins, forwards
// challenge answers, exchanges refresh tokens, verifies access credentials,
// and resolves subjects to email addresses. Each call is an independent,
// stateless invocation; the only shared state is the verifier's key cache.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
type Engine struct {
	config   Config
	identity Identity
	verifier *jwt.Verifier
	audit    *auditDispatcher
	metrics  *Metrics
}

// Close drains the audit dispatcher.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports how many audit events were dropped under pressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of all counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// StartLogin begins a custom-challenge login for email and returns the
// opaque session token the client must echo back with its answer. The OTP
// send happens inside this call, so it runs under the longer email budget
// rather than the exchange timeout.
func (e *Engine) StartLogin(ctx context.Context, email string) (string, error) {
	if e == nil || e.identity == nil {
		return "", ErrEngineNotReady
	}
	if email == "" {
		e.emitAudit(ctx, auditEventLoginStart, false, "", "", ErrBadRequest, nil)
		return "", ErrBadRequest
	}

	cctx, cancel := context.WithTimeout(ctx, e.config.Email.SendTimeout)
	defer cancel()

	session, err := e.identity.StartCustomAuth(cctx, email)
	if err != nil {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginStart, false, email, "", err, nil)
		return "", ErrRequestFailed
	}

	e.metricInc(MetricLoginStarted)
	e.emitAudit(ctx, auditEventLoginStart, true, email, "", nil, nil)
	return session, nil
}

// AnswerChallenge forwards the submitted passcode. On acceptance it
// returns the credential bundle with the expiry already converted to epoch
// milliseconds. Every rejection — wrong code, expired session, transport
// error — surfaces as the same ErrRequestFailed.
func (e *Engine) AnswerChallenge(ctx context.Context, email, session, answer string) (Credentials, error) {
	if e == nil || e.identity == nil {
		return Credentials{}, ErrEngineNotReady
	}
	if email == "" || session == "" || answer == "" {
		e.emitAudit(ctx, auditEventAnswer, false, email, "", ErrBadRequest, nil)
		return Credentials{}, ErrBadRequest
	}

	cctx, cancel := context.WithTimeout(ctx, e.config.Token.ExchangeTimeout)
	defer cancel()

	tokens, err := e.identity.RespondToChallenge(cctx, email, session, answer)
	if err != nil || tokens.AccessToken == "" {
		e.metricInc(MetricAnswerRejected)
		e.emitAudit(ctx, auditEventAnswer, false, email, "", err, nil)
		return Credentials{}, ErrRequestFailed
	}

	e.metricInc(MetricTokensIssued)
	e.emitAudit(ctx, auditEventAnswer, true, email, "", nil, nil)
	return credentialsFrom(tokens), nil
}

// Refresh exchanges a refresh token for a new access token. An empty token
// is Unauthorized without any downstream call; a platform rejection is
// Unauthorized; a transport failure is RequestFailed so caller policy can
// decide whether to retry.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (Credentials, error) {
	if e == nil || e.identity == nil {
		return Credentials{}, ErrEngineNotReady
	}
	if refreshToken == "" {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefresh, false, "", "", ErrUnauthorized, nil)
		return Credentials{}, ErrUnauthorized
	}

	cctx, cancel := context.WithTimeout(ctx, e.config.Token.ExchangeTimeout)
	defer cancel()

	tokens, err := e.identity.RefreshAccess(cctx, refreshToken)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefresh, false, "", "", err, nil)
		if errors.Is(err, ErrRefreshRejected) || errors.Is(err, ErrUserNotFound) {
			return Credentials{}, ErrUnauthorized
		}
		return Credentials{}, ErrRequestFailed
	}
	if tokens.AccessToken == "" {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefresh, false, "", "", ErrUnauthorized, nil)
		return Credentials{}, ErrUnauthorized
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditEventRefresh, true, "", "", nil, nil)
	return credentialsFrom(tokens), nil
}

// VerifyAccess validates an access credential's signature and claims
// against the cached key material. A missing token is Unauthorized, not a
// panic; so is every signature, expiry, or claim mismatch.
func (e *Engine) VerifyAccess(ctx context.Context, accessToken string) (SubjectClaims, error) {
	if e == nil || e.verifier == nil {
		return SubjectClaims{}, ErrEngineNotReady
	}

	claims, err := e.verifier.Verify(ctx, accessToken)
	if err != nil {
		e.metricInc(MetricVerifyFailure)
		e.emitAudit(ctx, auditEventVerify, false, "", "", err, nil)
		return SubjectClaims{}, ErrUnauthorized
	}

	e.metricInc(MetricVerifySuccess)

	out := SubjectClaims{
		Subject: claims.Subject,
		Email:   claims.Email,
		Issuer:  claims.Issuer,
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}

// SignOut revokes the refresh token, best effort. Sign-out must succeed
// for the client regardless of platform health, so revocation failures are
// recorded and swallowed.
func (e *Engine) SignOut(ctx context.Context, refreshToken string) {
	if e == nil || e.identity == nil || refreshToken == "" {
		return
	}

	cctx, cancel := context.WithTimeout(ctx, e.config.Token.ExchangeTimeout)
	defer cancel()

	err := e.identity.RevokeRefresh(cctx, refreshToken)
	e.metricInc(MetricSignOut)
	e.emitAudit(ctx, auditEventSignOut, err == nil, "", "", err, nil)
}

// LookupEmail resolves a verified subject identifier to the account's
// email attribute.
func (e *Engine) LookupEmail(ctx context.Context, subject string) (string, error) {
	if e == nil || e.identity == nil {
		return "", ErrEngineNotReady
	}
	if subject == "" {
		return "", ErrNotFound
	}

	cctx, cancel := context.WithTimeout(ctx, e.config.Token.ExchangeTimeout)
	defer cancel()

	email, err := e.identity.SubjectEmail(cctx, subject)
	if err != nil {
		e.emitAudit(ctx, auditEventLookup, false, "", subject, err, nil)
		if errors.Is(err, ErrNoEmailAttribute) || errors.Is(err, ErrUserNotFound) {
			return "", ErrNotFound
		}
		return "", ErrInternal
	}

	e.emitAudit(ctx, auditEventLookup, true, email, subject, nil, nil)
	return email, nil
}

func credentialsFrom(tokens TokenSet) Credentials {
	return Credentials{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		AccessExpiry: time.Now().Add(tokens.ExpiresIn).UnixMilli(),
	}
}
