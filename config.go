package facegate

import (
	"errors"
	"time"
)

// Config aggregates every engine policy. Zero values are filled in by
// defaultConfig; Build validates the merged result.
type Config struct {
	Credential   CredentialConfig
	Biometric    BiometricConfig
	Lockout      LockoutConfig
	Template     TemplateConfig
	Ledger       LedgerConfig
	Grant        GrantConfig
	Registration RegistrationConfig
	Audit        AuditConfig
	Metrics      MetricsConfig
}

// CredentialConfig carries the argon2id digest parameters.
type CredentialConfig struct {
	Memory          uint32 // in KB
	Time            uint32
	Parallelism     uint8
	SaltLength      uint32
	KeyLength       uint32
	MinSecretLength int
	UpgradeOnLogin  bool
}

// BiometricConfig bounds the verification session.
type BiometricConfig struct {
	// MatchThreshold is the maximum distance accepted as a match, in [0,1].
	MatchThreshold float64
	// MaxAttempts is the frame-pull budget of a single session.
	MaxAttempts int
	// SampleTimeout caps the wall-clock duration of a single session.
	SampleTimeout time.Duration
}

// LockoutConfig derives denial from the attempt ledger. The state is the
// ledger itself; nothing is cached between calls.
type LockoutConfig struct {
	Window    time.Duration
	Threshold int
	// CountCancelled includes cancelled attempts in the failure count.
	CountCancelled bool
}

// TemplateConfig names the Redis keyspace of the template store.
type TemplateConfig struct {
	RedisPrefix string
}

// LedgerConfig names the Redis keyspace of the attempt ledger and caps the
// global attempt stream.
type LedgerConfig struct {
	RedisPrefix  string
	StreamMaxLen int64
}

// GrantConfig controls grant token issuance.
type GrantConfig struct {
	TTL           time.Duration
	SigningMethod string // "hs256" (default) or "ed25519"
	SigningKey    []byte
	PublicKey     []byte
	Issuer        string
}

// RegistrationConfig controls Engine.Register.
type RegistrationConfig struct {
	Enabled      bool
	DefaultRole  string
	AllowedRoles []string
}

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls the in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns the configuration the Builder starts from. The grant
// signing key has no safe default and must be supplied by the caller.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Credential: CredentialConfig{
			Memory:          64 * 1024,
			Time:            3,
			Parallelism:     2,
			SaltLength:      16,
			KeyLength:       32,
			MinSecretLength: 8,
			UpgradeOnLogin:  true,
		},
		Biometric: BiometricConfig{
			MatchThreshold: 0.6,
			MaxAttempts:    100,
			SampleTimeout:  30 * time.Second,
		},
		Lockout: LockoutConfig{
			Window:    10 * time.Minute,
			Threshold: 3,
		},
		Template: TemplateConfig{
			RedisPrefix: "fgt",
		},
		Ledger: LedgerConfig{
			RedisPrefix:  "fga",
			StreamMaxLen: 10000,
		},
		Grant: GrantConfig{
			TTL:           15 * time.Minute,
			SigningMethod: "hs256",
			Issuer:        "facegate",
		},
		Registration: RegistrationConfig{
			Enabled:      true,
			DefaultRole:  "user",
			AllowedRoles: []string{"user", "admin"},
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Validate rejects configurations the engine cannot run safely with.
func (c Config) Validate() error {
	if c.Biometric.MatchThreshold < 0 || c.Biometric.MatchThreshold > 1 {
		return errors.New("Biometric MatchThreshold must be within [0,1]")
	}
	if c.Biometric.MaxAttempts <= 0 {
		return errors.New("Biometric MaxAttempts must be > 0")
	}
	if c.Biometric.SampleTimeout <= 0 {
		return errors.New("Biometric SampleTimeout must be > 0")
	}
	if c.Lockout.Window <= 0 {
		return errors.New("Lockout Window must be > 0")
	}
	if c.Lockout.Threshold <= 0 {
		return errors.New("Lockout Threshold must be > 0")
	}
	if c.Template.RedisPrefix == "" {
		return errors.New("Template RedisPrefix must be set")
	}
	if c.Ledger.RedisPrefix == "" {
		return errors.New("Ledger RedisPrefix must be set")
	}
	if c.Ledger.StreamMaxLen <= 0 {
		return errors.New("Ledger StreamMaxLen must be > 0")
	}
	if c.Grant.TTL <= 0 {
		return errors.New("Grant TTL must be > 0")
	}
	switch c.Grant.SigningMethod {
	case "hs256", "ed25519":
	default:
		return errors.New("Grant SigningMethod must be hs256 or ed25519")
	}
	if len(c.Grant.SigningKey) == 0 {
		return errors.New("Grant SigningKey must be set")
	}
	if c.Registration.Enabled {
		if c.Registration.DefaultRole == "" {
			return errors.New("Registration DefaultRole must be set")
		}
		if !containsRole(c.Registration.AllowedRoles, c.Registration.DefaultRole) {
			return errors.New("Registration DefaultRole must be in AllowedRoles")
		}
	}
	if c.Credential.MinSecretLength < 8 {
		return errors.New("Credential MinSecretLength must be >= 8")
	}

	return nil
}

func containsRole(roles []string, role string) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

func cloneConfig(c Config) Config {
	out := c
	out.Grant.SigningKey = cloneBytes(c.Grant.SigningKey)
	out.Grant.PublicKey = cloneBytes(c.Grant.PublicKey)
	out.Registration.AllowedRoles = append([]string(nil), c.Registration.AllowedRoles...)
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
