package facegate

import (
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/securefs/facegate/biometric"
	"github.com/securefs/facegate/credential"
)

// Builder assembles an Engine. Redis and an IdentityProvider are mandatory;
// everything else has defaults.
type Builder struct {
	config Config
	redis  *redis.Client

	identities IdentityProvider
	ledger     Ledger
	auditSink  AuditSink

	built bool
}

func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

func (b *Builder) WithRedis(client *redis.Client) *Builder {
	b.redis = client
	return b
}

func (b *Builder) WithIdentityProvider(p IdentityProvider) *Builder {
	b.identities = p
	return b
}

// WithLedger overrides the default Redis attempt ledger, e.g. with the
// pgstore implementation.
func (b *Builder) WithLedger(l Ledger) *Builder {
	b.ledger = l
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the engine. A builder is
// single use.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.identities == nil {
		return nil, errors.New("identity provider required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	hasher, err := credential.NewHasher(credential.Config{
		Memory:          cfg.Credential.Memory,
		Time:            cfg.Credential.Time,
		Parallelism:     cfg.Credential.Parallelism,
		SaltLength:      cfg.Credential.SaltLength,
		KeyLength:       cfg.Credential.KeyLength,
		MinSecretLength: cfg.Credential.MinSecretLength,
	})
	if err != nil {
		return nil, err
	}

	matcher, err := biometric.NewMatcher(cfg.Biometric.MatchThreshold)
	if err != nil {
		return nil, err
	}

	signer, err := newGrantSigner(cfg.Grant)
	if err != nil {
		return nil, err
	}

	// One digest of a random throwaway secret, verified against unknown
	// identities so their credential path is not observably cheaper.
	decoy, err := hasher.Hash("facegate-decoy-credential")
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:      cfg,
		identities:  b.identities,
		hasher:      hasher,
		matcher:     matcher,
		templates:   newTemplateStore(b.redis, cfg.Template.RedisPrefix),
		grants:      signer,
		decoyDigest: decoy,
	}

	engine.ledger = b.ledger
	if engine.ledger == nil {
		engine.ledger = newRedisLedger(b.redis, cfg.Ledger, cfg.Lockout.CountCancelled)
	}
	engine.audit = newAuditDispatcher(cfg.Audit, b.auditSink)
	engine.metrics = NewMetrics(cfg.Metrics)

	b.built = true

	return engine, nil
}
