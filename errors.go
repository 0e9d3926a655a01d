package facegate

import "errors"

var (
	// ErrInvalidCredential is returned when the identity is unknown or the
	// supplied secret does not match the stored digest. The two causes are
	// deliberately indistinguishable at the API boundary.
	ErrInvalidCredential = errors.New("invalid credential")
	// ErrIdentityExists is returned by Register for a duplicate identity name.
	ErrIdentityExists = errors.New("identity already exists")
	// ErrIdentityNotFound is returned by administrative operations that name
	// an identity the provider does not know.
	ErrIdentityNotFound = errors.New("identity not found")
	// ErrNotEnrolled is returned when authentication or enrollment management
	// requires a biometric template and none is stored.
	ErrNotEnrolled = errors.New("no biometric template enrolled")
	// ErrEncodingRejected is returned for a structurally invalid biometric
	// encoding (wrong length, NaN or Inf components).
	ErrEncodingRejected = errors.New("biometric encoding rejected")
	// ErrBiometricMismatch is returned when the verification session ends
	// without a match, whether by attempt exhaustion or by timeout.
	ErrBiometricMismatch = errors.New("biometric verification failed")
	// ErrLockedOut is returned when recent failures within the lockout window
	// meet the configured threshold.
	ErrLockedOut = errors.New("identity locked out")
	// ErrVerificationCancelled is returned when the caller cancels the
	// verification session through its context.
	ErrVerificationCancelled = errors.New("verification cancelled")
	// ErrStorageUnavailable wraps backend failures on reads the authentication
	// decision depends on.
	ErrStorageUnavailable = errors.New("storage backend unavailable")
	// ErrGrantInvalid is returned by VerifyGrant for expired, malformed or
	// tampered grant tokens.
	ErrGrantInvalid = errors.New("invalid grant token")
	// ErrRoleInvalid is returned by Register when the requested role is not
	// in the configured allow-list.
	ErrRoleInvalid = errors.New("invalid role")
	// ErrEngineNotReady is returned when an Engine method is called before
	// Build completed.
	ErrEngineNotReady = errors.New("engine not initialized")
)
