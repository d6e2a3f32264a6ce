// Package jwt mints and verifies the signed access credentials of the
// email-OTP flow. Minting is done by the identity provider; verification is
// done on every protected request through a [Verifier] whose public-key
// material is fetched once per process and cached.
package jwt

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims are the verified contents of an access token. Subject carries the
// stable user identifier; Email is a convenience claim set at mint time.
type Claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Config configures a Manager.
type Config struct {
	AccessTTL  time.Duration
	Issuer     string
	Audience   string
	KeyID      string
	PrivateKey ed25519.PrivateKey
	Leeway     time.Duration
}

// Manager signs access tokens with an ed25519 key.
type Manager struct {
	cfg Config
	pub ed25519.PublicKey
}

// NewManager validates cfg and returns a Manager ready for signing.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.AccessTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Issuer == "" || cfg.Audience == "" {
		return nil, errors.New("issuer and audience are required")
	}
	if cfg.KeyID == "" {
		return nil, errors.New("key id is required")
	}
	if len(cfg.PrivateKey) != ed25519.PrivateKeySize {
		return nil, errors.New("invalid ed25519 private key")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}

	pub, ok := cfg.PrivateKey.Public().(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key")
	}

	return &Manager{cfg: cfg, pub: pub}, nil
}

// Mint creates a signed access token for subject, valid from now for the
// configured access TTL.
func (m *Manager) Mint(subject, email string, now time.Time) (string, error) {
	claims := Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    m.cfg.Issuer,
			Audience:  jwt.ClaimStrings{m.cfg.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.cfg.AccessTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	token.Header["kid"] = m.cfg.KeyID

	signed, err := token.SignedString(m.cfg.PrivateKey)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

// AccessTTL returns the configured access-token lifetime.
func (m *Manager) AccessTTL() time.Duration {
	return m.cfg.AccessTTL
}

// FetchKeys implements [KeySource] with the manager's own public key, so a
// co-located verifier needs no remote key endpoint.
func (m *Manager) FetchKeys(context.Context) (map[string]ed25519.PublicKey, error) {
	return map[string]ed25519.PublicKey{m.cfg.KeyID: m.pub}, nil
}
