package mailgate

import (
	"errors"
	"time"
)

// Config defines the engine's tunables. Instances are configured during
// initialization and treated as immutable afterwards.
type Config struct {
	Token     TokenConfig
	Challenge ChallengeConfig
	Email     EmailConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
}

// TokenConfig bounds the credential lifecycle.
type TokenConfig struct {
	// AccessTTL is the access-credential validity. Between 5 minutes and
	// 1 day, and never longer than RefreshTTL.
	AccessTTL time.Duration
	// RefreshTTL is the refresh-credential validity. Between 60 minutes
	// and 10 years.
	RefreshTTL time.Duration
	// ExchangeTimeout bounds every identity-platform call except the OTP
	// send path.
	ExchangeTimeout time.Duration
	// Issuer and Audience are the claim values stamped into and required
	// of every access token.
	Issuer   string
	Audience string
}

// ChallengeConfig bounds the challenge handshake.
type ChallengeConfig struct {
	// MaxAttempts is the inclusive ceiling on challenge attempts,
	// counting every attempt, answered or not.
	MaxAttempts int
}

// EmailConfig describes the OTP email content and delivery bound.
type EmailConfig struct {
	From     string
	Subject  string
	Preamble string
	// SendTimeout bounds the synchronous delivery acknowledgment. The
	// send path gets a longer budget than token exchange.
	SendTimeout time.Duration
}

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls the in-process counters.
type MetricsConfig struct {
	Enabled bool
}

const (
	minAccessTTL  = 5 * time.Minute
	maxAccessTTL  = 24 * time.Hour
	minRefreshTTL = 60 * time.Minute
	maxRefreshTTL = 10 * 365 * 24 * time.Hour
)

// DefaultConfig returns the production defaults: 60-minute access tokens,
// 30-day refresh tokens, three challenge attempts.
func DefaultConfig() Config {
	return Config{
		Token: TokenConfig{
			AccessTTL:       60 * time.Minute,
			RefreshTTL:      30 * 24 * time.Hour,
			ExchangeTimeout: 10 * time.Second,
			Issuer:          "mailgate",
			Audience:        "mailgate-client",
		},
		Challenge: ChallengeConfig{
			MaxAttempts: 3,
		},
		Email: EmailConfig{
			Subject:     "Your sign-in code",
			Preamble:    "Your one-time sign-in code is below. It expires shortly.",
			SendTimeout: 30 * time.Second,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Validate checks every bound. It is called by Build and by
// NewChallengeService; a Config that fails here never reaches an Engine.
func (c Config) Validate() error {
	if c.Token.AccessTTL < minAccessTTL || c.Token.AccessTTL > maxAccessTTL {
		return errors.New("access TTL must be between 5 minutes and 1 day")
	}
	if c.Token.RefreshTTL < minRefreshTTL || c.Token.RefreshTTL > maxRefreshTTL {
		return errors.New("refresh TTL must be between 60 minutes and 10 years")
	}
	if c.Token.AccessTTL > c.Token.RefreshTTL {
		return errors.New("access TTL must not exceed refresh TTL")
	}
	if c.Token.ExchangeTimeout <= 0 {
		return errors.New("exchange timeout must be positive")
	}
	if c.Token.Issuer == "" || c.Token.Audience == "" {
		return errors.New("token issuer and audience are required")
	}
	if c.Challenge.MaxAttempts < 1 {
		return errors.New("challenge max attempts must be at least 1")
	}
	if c.Email.SendTimeout <= 0 {
		return errors.New("email send timeout must be positive")
	}
	return nil
}
