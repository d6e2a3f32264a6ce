// Package identity is a Redis-backed reference implementation of the
// mailgate.Identity platform: user records, durable login-session attempt
// chains, custom-auth orchestration over the challenge service, and the
// token lifecycle (mint, refresh, revoke). A deployment fronting a real
// external identity platform replaces this package with its own adapter.
package identity

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/mailgate/mailgate"
	"github.com/mailgate/mailgate/jwt"
)

// Challenger is the slice of the challenge service the provider drives at
// each step of the handshake.
type Challenger interface {
	Define(attempts []mailgate.ChallengeAttempt) mailgate.Decision
	Create(ctx context.Context, attempts []mailgate.ChallengeAttempt, email string) (mailgate.ChallengeOutput, error)
	VerifyAnswer(passcode, answer string) bool
}

// Config tunes the provider's storage.
type Config struct {
	// KeyPrefix namespaces every Redis key. Defaults to "mg".
	KeyPrefix string
	// SessionTTL bounds how long an unanswered login session survives.
	SessionTTL time.Duration
	// RefreshTTL is the refresh-credential validity.
	RefreshTTL time.Duration
}

const (
	defaultKeyPrefix  = "mg"
	defaultSessionTTL = 15 * time.Minute
)

// Provider implements mailgate.Identity on Redis.
type Provider struct {
	rdb        *redis.Client
	signer     *jwt.Manager
	challenges Challenger
	cfg        Config
}

// NewProvider wires the provider. All three dependencies are required.
func NewProvider(rdb *redis.Client, signer *jwt.Manager, challenges Challenger, cfg Config) (*Provider, error) {
	if rdb == nil {
		return nil, errors.New("redis client required")
	}
	if signer == nil {
		return nil, errors.New("token signer required")
	}
	if challenges == nil {
		return nil, errors.New("challenge service required")
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = defaultKeyPrefix
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = defaultSessionTTL
	}
	if cfg.RefreshTTL <= 0 {
		return nil, errors.New("refresh TTL required")
	}

	return &Provider{
		rdb:        rdb,
		signer:     signer,
		challenges: challenges,
		cfg:        cfg,
	}, nil
}

func (p *Provider) userKey(subject string) string {
	return p.cfg.KeyPrefix + ":user:" + subject
}

func (p *Provider) emailKey(email string) string {
	return p.cfg.KeyPrefix + ":email:" + email
}

func (p *Provider) sessionKey(token string) string {
	return p.cfg.KeyPrefix + ":authsess:" + token
}

func (p *Provider) refreshKey(token string) string {
	return p.cfg.KeyPrefix + ":refresh:" + token
}

// loginSession is the persisted attempt chain for one login. Attempts are
// append-only; the provider always hands the challenge service the same
// prefix it produced earlier. Passcode is the private challenge parameter
// of the currently posed attempt — server-side only, never returned to the
// client.
type loginSession struct {
	Subject  string                      `json:"subject"`
	Email    string                      `json:"email"`
	Passcode string                      `json:"passcode"`
	Attempts []mailgate.ChallengeAttempt `json:"attempts"`
}

// RegisterUser creates an account for email and returns its subject id.
// Registration is idempotent per email.
func (p *Provider) RegisterUser(ctx context.Context, email string) (string, error) {
	if email == "" {
		return "", errors.New("email required")
	}

	if existing, err := p.rdb.Get(ctx, p.emailKey(email)).Result(); err == nil && existing != "" {
		return existing, nil
	} else if err != nil && !errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("lookup email: %w", err)
	}

	subject := uuid.NewString()
	if err := p.rdb.HSet(ctx, p.userKey(subject), "email", email).Err(); err != nil {
		return "", fmt.Errorf("store user: %w", err)
	}
	if err := p.rdb.Set(ctx, p.emailKey(email), subject, 0).Err(); err != nil {
		return "", fmt.Errorf("index email: %w", err)
	}
	return subject, nil
}

// StartCustomAuth begins the custom-challenge flow: it runs the state
// machine on an empty history, has the challenge service issue the OTP
// (which emails it), and persists the session chain under a fresh opaque
// token.
func (p *Provider) StartCustomAuth(ctx context.Context, email string) (string, error) {
	subject, err := p.rdb.Get(ctx, p.emailKey(email)).Result()
	if errors.Is(err, redis.Nil) {
		return "", mailgate.ErrUserNotFound
	}
	if err != nil {
		return "", fmt.Errorf("lookup email: %w", err)
	}

	decision := p.challenges.Define(nil)
	if decision.ChallengeName != mailgate.ChallengeOTP {
		return "", mailgate.ErrChallengeNotPosed
	}

	out, err := p.challenges.Create(ctx, nil, email)
	if err != nil {
		return "", fmt.Errorf("create challenge: %w", err)
	}

	sess := loginSession{
		Subject:  subject,
		Email:    email,
		Passcode: out.Passcode,
		Attempts: []mailgate.ChallengeAttempt{{
			Name:     mailgate.ChallengeOTP,
			Metadata: out.Metadata,
			Result:   mailgate.ResultPending,
		}},
	}

	token := uuid.NewString()
	if err := p.saveSession(ctx, token, sess); err != nil {
		return "", err
	}
	return token, nil
}

// RespondToChallenge records the answer into the chain, re-runs the state
// machine, and acts on its decision: issue tokens, terminate, or re-pose
// the challenge (reusing the same passcode) and keep the session alive for
// the next try.
func (p *Provider) RespondToChallenge(ctx context.Context, email, session, answer string) (mailgate.TokenSet, error) {
	sess, err := p.loadSession(ctx, session)
	if err != nil {
		return mailgate.TokenSet{}, err
	}
	if sess.Email != email || len(sess.Attempts) == 0 {
		return mailgate.TokenSet{}, mailgate.ErrChallengeRejected
	}

	last := len(sess.Attempts) - 1
	if p.challenges.VerifyAnswer(sess.Passcode, answer) {
		sess.Attempts[last].Result = mailgate.ResultCorrect
	} else {
		sess.Attempts[last].Result = mailgate.ResultIncorrect
	}

	decision := p.challenges.Define(sess.Attempts)

	switch {
	case decision.IssueTokens:
		if err := p.deleteSession(ctx, session); err != nil {
			return mailgate.TokenSet{}, err
		}
		return p.issueTokens(ctx, sess.Subject, sess.Email)

	case decision.FailAuthentication:
		if err := p.deleteSession(ctx, session); err != nil {
			return mailgate.TokenSet{}, err
		}
		return mailgate.TokenSet{}, mailgate.ErrChallengeRejected

	default:
		out, err := p.challenges.Create(ctx, sess.Attempts, sess.Email)
		if err != nil {
			return mailgate.TokenSet{}, fmt.Errorf("reissue challenge: %w", err)
		}
		sess.Passcode = out.Passcode
		sess.Attempts = append(sess.Attempts, mailgate.ChallengeAttempt{
			Name:     mailgate.ChallengeOTP,
			Metadata: out.Metadata,
			Result:   mailgate.ResultPending,
		})
		if err := p.saveSession(ctx, session, sess); err != nil {
			return mailgate.TokenSet{}, err
		}
		return mailgate.TokenSet{}, mailgate.ErrChallengeRejected
	}
}

// RefreshAccess exchanges a live refresh token for a new access token. The
// refresh token itself is not rotated.
func (p *Provider) RefreshAccess(ctx context.Context, refreshToken string) (mailgate.TokenSet, error) {
	subject, err := p.rdb.Get(ctx, p.refreshKey(refreshToken)).Result()
	if errors.Is(err, redis.Nil) {
		return mailgate.TokenSet{}, mailgate.ErrRefreshRejected
	}
	if err != nil {
		return mailgate.TokenSet{}, fmt.Errorf("lookup refresh token: %w", err)
	}

	email, err := p.SubjectEmail(ctx, subject)
	if err != nil {
		return mailgate.TokenSet{}, err
	}

	access, err := p.signer.Mint(subject, email, time.Now())
	if err != nil {
		return mailgate.TokenSet{}, fmt.Errorf("mint access token: %w", err)
	}

	return mailgate.TokenSet{
		AccessToken: access,
		ExpiresIn:   p.signer.AccessTTL(),
	}, nil
}

// RevokeRefresh deletes the refresh record. Unknown tokens are a no-op.
func (p *Provider) RevokeRefresh(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	if err := p.rdb.Del(ctx, p.refreshKey(refreshToken)).Err(); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

// SubjectEmail resolves a subject id to its email attribute.
func (p *Provider) SubjectEmail(ctx context.Context, subject string) (string, error) {
	email, err := p.rdb.HGet(ctx, p.userKey(subject), "email").Result()
	if errors.Is(err, redis.Nil) {
		return "", mailgate.ErrNoEmailAttribute
	}
	if err != nil {
		return "", fmt.Errorf("lookup subject: %w", err)
	}
	if email == "" {
		return "", mailgate.ErrNoEmailAttribute
	}
	return email, nil
}

func (p *Provider) issueTokens(ctx context.Context, subject, email string) (mailgate.TokenSet, error) {
	access, err := p.signer.Mint(subject, email, time.Now())
	if err != nil {
		return mailgate.TokenSet{}, fmt.Errorf("mint access token: %w", err)
	}

	refresh, err := newRefreshToken()
	if err != nil {
		return mailgate.TokenSet{}, err
	}
	if err := p.rdb.Set(ctx, p.refreshKey(refresh), subject, p.cfg.RefreshTTL).Err(); err != nil {
		return mailgate.TokenSet{}, fmt.Errorf("store refresh token: %w", err)
	}

	return mailgate.TokenSet{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    p.signer.AccessTTL(),
	}, nil
}

func (p *Provider) saveSession(ctx context.Context, token string, sess loginSession) error {
	blob, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode login session: %w", err)
	}
	if err := p.rdb.Set(ctx, p.sessionKey(token), blob, p.cfg.SessionTTL).Err(); err != nil {
		return fmt.Errorf("store login session: %w", err)
	}
	return nil
}

func (p *Provider) loadSession(ctx context.Context, token string) (loginSession, error) {
	blob, err := p.rdb.Get(ctx, p.sessionKey(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return loginSession{}, mailgate.ErrSessionExpired
	}
	if err != nil {
		return loginSession{}, fmt.Errorf("load login session: %w", err)
	}

	var sess loginSession
	if err := json.Unmarshal(blob, &sess); err != nil {
		return loginSession{}, fmt.Errorf("decode login session: %w", err)
	}
	return sess, nil
}

func (p *Provider) deleteSession(ctx context.Context, token string) error {
	if err := p.rdb.Del(ctx, p.sessionKey(token)).Err(); err != nil {
		return fmt.Errorf("delete login session: %w", err)
	}
	return nil
}

const refreshTokenBytes = 32

func newRefreshToken() (string, error) {
	var raw [refreshTokenBytes]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", fmt.Errorf("read refresh entropy: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}
