package mailgate

import (
	"context"
	"io"
	"time"

	internalaudit "github.com/mailgate/mailgate/internal/audit"
	"github.com/mailgate/mailgate/internal/flows"
)

// ChallengeOTP is the name of the only challenge kind posed by the engine.
const ChallengeOTP = flows.ChallengeOTP

// ChallengeResult is the tri-state outcome of one challenge attempt.
type ChallengeResult = flows.Result

const (
	// ResultPending marks an attempt that has been posed but not answered.
	ResultPending = flows.ResultPending
	// ResultCorrect marks an attempt answered with the expected passcode.
	ResultCorrect = flows.ResultCorrect
	// ResultIncorrect marks an attempt answered with anything else.
	ResultIncorrect = flows.ResultIncorrect
)

// ChallengeAttempt is one entry of a login session's append-only challenge
// history. The identity platform persists the history between invocations
// and always presents the same prefix it was previously handed.
type ChallengeAttempt = flows.Attempt

// Decision is the state machine's verdict for a session history.
type Decision = flows.Decision

// ChallengeOutput is the issuer's response bundle for one posed challenge.
type ChallengeOutput struct {
	// Email is the only client-visible public parameter.
	Email string
	// Passcode is the server-only private parameter handed to the
	// verifier. It is never placed in a client-visible field.
	Passcode string
	// Metadata is attached to the posed attempt so a later re-issue can
	// recover the same passcode without sending another email.
	Metadata string
}

// TokenSet is what the identity platform returns when it authenticates a
// session or honors a refresh. RefreshToken is empty on refresh.
type TokenSet struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    time.Duration
}

// Credentials is the client-facing credential bundle. AccessExpiry is epoch
// milliseconds, the value carried on the script-readable expiry cookie.
type Credentials struct {
	AccessToken  string
	RefreshToken string
	AccessExpiry int64
}

// SubjectClaims are the verified claims of an access credential.
type SubjectClaims struct {
	Subject   string
	Email     string
	Issuer    string
	ExpiresAt time.Time
}

// Identity is the narrow interface to the platform that owns user records,
// persists login sessions, and signs tokens. The engine decides challenge
// outcomes and forwards verified claims; everything durable lives behind
// this interface.
type Identity interface {
	// StartCustomAuth begins a custom-challenge login for email and
	// returns an opaque session token. It must fail with
	// ErrChallengeNotPosed rather than fall back to another mechanism.
	StartCustomAuth(ctx context.Context, email string) (string, error)
	// RespondToChallenge forwards a challenge answer. On acceptance it
	// returns the signed token set; otherwise it fails.
	RespondToChallenge(ctx context.Context, email, session, answer string) (TokenSet, error)
	// RefreshAccess exchanges a still-valid refresh token for a new
	// access token. ErrRefreshRejected means the token was refused.
	RefreshAccess(ctx context.Context, refreshToken string) (TokenSet, error)
	// RevokeRefresh invalidates a refresh token. Revoking an unknown
	// token is not an error.
	RevokeRefresh(ctx context.Context, refreshToken string) error
	// SubjectEmail resolves a verified subject identifier to the user's
	// current email attribute. ErrNoEmailAttribute when none exists.
	SubjectEmail(ctx context.Context, subject string) (string, error)
}

// EmailSender delivers the OTP email. Send blocks until the delivery
// channel acknowledges; a send failure means no code was issued.
type EmailSender interface {
	Send(ctx context.Context, to, from, subject, body string) error
}

// AuditEvent is a structured audit record emitted by the engine.
type AuditEvent = internalaudit.Event

// AuditSink receives AuditEvent values from the engine's audit dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink is an AuditSink that silently discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based AuditSink.
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink is an AuditSink that writes JSON-encoded events to an
// io.Writer, one object per line.
type JSONWriterSink = internalaudit.JSONWriterSink

// NewChannelSink creates a ChannelSink with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a JSONWriterSink that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}
