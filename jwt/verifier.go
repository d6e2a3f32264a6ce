package jwt

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"
)

// ErrTokenInvalid is returned for any verification failure: bad signature,
// unknown key, expired token, issuer or audience mismatch, or a missing
// token. Callers get one error for all of them.
var ErrTokenInvalid = errors.New("invalid access token")

// KeySource fetches the public key material used to verify access tokens,
// keyed by key id. Implementations should return immutable maps.
type KeySource interface {
	FetchKeys(ctx context.Context) (map[string]ed25519.PublicKey, error)
}

// Verifier checks access-token signatures and registered claims against
// cached key material. The keys are fetched lazily on first use and reused
// for the life of the process; concurrent cold starts are collapsed into a
// single fetch. There is no invalidation — rotated upstream keys are picked
// up by the next process.
type Verifier struct {
	issuer   string
	audience string
	parser   *jwt.Parser
	source   KeySource
	group    singleflight.Group
	keys     atomic.Pointer[map[string]ed25519.PublicKey]
}

// NewVerifier returns a Verifier bound to the given issuer and audience.
func NewVerifier(issuer, audience string, leeway time.Duration, source KeySource) (*Verifier, error) {
	if issuer == "" || audience == "" {
		return nil, errors.New("issuer and audience are required")
	}
	if source == nil {
		return nil, errors.New("key source is required")
	}
	if leeway < 0 || leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithAudience(audience),
		jwt.WithLeeway(leeway),
		jwt.WithExpirationRequired(),
	)

	return &Verifier{
		issuer:   issuer,
		audience: audience,
		parser:   parser,
		source:   source,
	}, nil
}

// Verify parses and validates token. An empty token fails like any other
// invalid one; it never panics. All failures wrap [ErrTokenInvalid].
func (v *Verifier) Verify(ctx context.Context, token string) (Claims, error) {
	if token == "" {
		return Claims{}, fmt.Errorf("%w: empty token", ErrTokenInvalid)
	}

	keys, err := v.cachedKeys(ctx)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	var claims Claims
	_, err = v.parser.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		key, ok := keys[kid]
		if !ok {
			return nil, fmt.Errorf("unknown key id %q", kid)
		}
		return key, nil
	})
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if claims.Subject == "" {
		return Claims{}, fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}

	return claims, nil
}

// cachedKeys returns the memoized key set, fetching it on first use. A race
// on the cold path is collapsed by singleflight; the fetched map is treated
// as immutable afterwards.
func (v *Verifier) cachedKeys(ctx context.Context) (map[string]ed25519.PublicKey, error) {
	if cached := v.keys.Load(); cached != nil {
		return *cached, nil
	}

	fetched, err, _ := v.group.Do("keys", func() (any, error) {
		if cached := v.keys.Load(); cached != nil {
			return *cached, nil
		}
		keys, err := v.source.FetchKeys(ctx)
		if err != nil {
			return nil, fmt.Errorf("fetch verification keys: %w", err)
		}
		v.keys.Store(&keys)
		return keys, nil
	})
	if err != nil {
		return nil, err
	}
	return fetched.(map[string]ed25519.PublicKey), nil
}
