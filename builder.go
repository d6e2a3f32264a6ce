package mailgate

import (
	"errors"

	"github.com/mailgate/mailgate/jwt"
)

// Builder assembles an Engine. Configure it fluently, then call Build once.
type Builder struct {
	config   Config
	identity Identity
	verifier *jwt.Verifier

	auditSink AuditSink

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the builder's configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithIdentity sets the identity platform the engine forwards to.
func (b *Builder) WithIdentity(id Identity) *Builder {
	b.identity = id
	return b
}

// WithVerifier sets the access-credential verifier. The verifier owns the
// process-wide verification-key cache; construct it once and share it.
func (b *Builder) WithVerifier(v *jwt.Verifier) *Builder {
	b.verifier = v
	return b
}

// WithAuditSink sets the sink receiving the engine's audit events.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithMetricsEnabled toggles the in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build validates the configuration and dependencies and returns the
// immutable Engine. A Builder can be used once.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	if err := b.config.Validate(); err != nil {
		return nil, err
	}
	if b.identity == nil {
		return nil, errors.New("identity platform required")
	}
	if b.verifier == nil {
		return nil, errors.New("access verifier required")
	}

	b.built = true

	return &Engine{
		config:   b.config,
		identity: b.identity,
		verifier: b.verifier,
		audit:    newAuditDispatcher(b.config.Audit, b.auditSink),
		metrics:  NewMetrics(b.config.Metrics),
	}, nil
}
