package facegate

import (
	"context"
	"time"

	"github.com/securefs/facegate/biometric"
)

// AttemptOutcome classifies a single authentication attempt in the ledger.
type AttemptOutcome uint8

const (
	// AttemptFailure marks an attempt denied for any reason other than
	// cooperative cancellation.
	AttemptFailure AttemptOutcome = iota
	// AttemptSuccess marks a granted attempt.
	AttemptSuccess
	// AttemptCancelled marks an attempt the caller abandoned. Cancelled
	// attempts are excluded from lockout accounting by default.
	AttemptCancelled
)

func (o AttemptOutcome) String() string {
	switch o {
	case AttemptSuccess:
		return "success"
	case AttemptCancelled:
		return "cancelled"
	default:
		return "failure"
	}
}

// AttemptRecord is one append-only entry in the attempt ledger. Records are
// never edited after being written.
type AttemptRecord struct {
	ID        string         `json:"id"`
	Identity  string         `json:"identity,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Outcome   AttemptOutcome `json:"outcome"`
	Origin    string         `json:"origin,omitempty"`
}

// IdentityRecord is the provider-side view of a principal. CredentialDigest
// holds a PHC-encoded argon2id digest, never the secret. TemplateRef is an
// opaque handle to the enrolled biometric template and is empty until
// enrollment completes.
type IdentityRecord struct {
	Name             string
	Role             string
	CredentialDigest string
	TemplateRef      string
	CreatedAt        time.Time
	LastLogin        *time.Time
}

// CreateIdentityInput carries the fields the provider needs to persist a new
// identity.
type CreateIdentityInput struct {
	Name             string
	Role             string
	CredentialDigest string
}

// IdentityProvider is the caller-owned system of record for identities.
// Implementations must return ErrIdentityNotFound for unknown names and
// ErrIdentityExists for duplicate creation; any other failure is treated as
// a storage fault.
type IdentityProvider interface {
	GetIdentity(ctx context.Context, name string) (*IdentityRecord, error)
	CreateIdentity(ctx context.Context, input CreateIdentityInput) (*IdentityRecord, error)
	UpdateCredentialDigest(ctx context.Context, name, digest string) error
	UpdateTemplateRef(ctx context.Context, name, ref string) error
	UpdateLastLogin(ctx context.Context, name string, at time.Time) error
	DeleteIdentity(ctx context.Context, name string) error
}

// FrameSource yields candidate biometric encodings, one pull per verification
// tick. An empty slice with a nil error is a consumed attempt with nothing to
// match. NextFrame must honor ctx cancellation; a source that stalls past the
// session deadline is abandoned.
type FrameSource interface {
	NextFrame(ctx context.Context) ([]biometric.Encoding, error)
}

// Ledger is the append-only attempt trail plus its lockout read side.
// RecentFailures counts failure outcomes for the identity inside the window
// ending now.
type Ledger interface {
	Record(ctx context.Context, rec AttemptRecord) error
	RecentFailures(ctx context.Context, identity string, window time.Duration) (int, error)
}

// Grant is the result of a fully satisfied authentication. It is ephemeral:
// the engine persists nothing about issued grants.
type Grant struct {
	ID        string
	Identity  string
	Role      string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Token     string
}

// RegisterRequest carries the inputs for identity registration.
type RegisterRequest struct {
	Name   string
	Secret string
	Role   string
}
