package facegate

import (
	"context"
	"errors"
	"log"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Authenticate runs the full gate for one identity: lockout check, credential
// verification, then a fresh biometric verification session against the
// enrolled template. On success it returns a signed Grant. Every decided
// attempt is appended to the ledger; ledger write failures are logged and
// swallowed, never surfaced to the caller.
func (e *Engine) Authenticate(ctx context.Context, identity, secret string, source FrameSource) (*Grant, error) {
	if e == nil || e.hasher == nil || e.identities == nil {
		return nil, ErrEngineNotReady
	}
	if e.metrics != nil && e.metrics.LatencyEnabled() {
		start := time.Now()
		defer func() { e.metrics.Observe(MetricAuthenticateLatency, time.Since(start)) }()
	}
	if source == nil {
		return nil, errors.New("frame source required")
	}

	// Lockout is derived fresh from the ledger on every call. A failed read
	// must not turn into a denial of service for the whole population, so it
	// degrades to an unlocked view and is logged.
	failures, err := e.ledger.RecentFailures(ctx, identity, e.config.Lockout.Window)
	if err != nil {
		log.Print("facegate: lockout window read failed")
		failures = 0
	}
	if failures >= e.config.Lockout.Threshold {
		e.recordAttempt(ctx, identity, AttemptFailure)
		e.metricInc(MetricAuthLockedOut)
		e.emitAudit(ctx, auditEventAuthLockedOut, false, identity, ErrLockedOut, func() map[string]string {
			return map[string]string{
				"recent_failures": strconv.Itoa(failures),
			}
		})
		return nil, ErrLockedOut
	}

	record, err := e.identities.GetIdentity(ctx, identity)
	if err != nil {
		if errors.Is(err, ErrIdentityNotFound) {
			// Burn a digest verification so unknown names cost the same as a
			// mismatched secret.
			_, _ = e.hasher.Verify(secret, e.decoyDigest)
			e.recordAttempt(ctx, identity, AttemptFailure)
			e.metricInc(MetricAuthFailure)
			e.metricInc(MetricCredentialRejected)
			e.emitAudit(ctx, auditEventAuthFailure, false, identity, ErrInvalidCredential, func() map[string]string {
				return map[string]string{
					"reason": "identity_not_found",
				}
			})
			return nil, ErrInvalidCredential
		}
		e.emitAudit(ctx, auditEventAuthFailure, false, identity, ErrStorageUnavailable, func() map[string]string {
			return map[string]string{
				"reason": "identity_read_failed",
			}
		})
		return nil, errors.Join(ErrStorageUnavailable, err)
	}

	ok, err := e.hasher.Verify(secret, record.CredentialDigest)
	if err != nil || !ok {
		e.recordAttempt(ctx, identity, AttemptFailure)
		e.metricInc(MetricAuthFailure)
		e.metricInc(MetricCredentialRejected)
		e.emitAudit(ctx, auditEventAuthFailure, false, identity, ErrInvalidCredential, func() map[string]string {
			return map[string]string{
				"reason": "credential_mismatch",
			}
		})
		return nil, ErrInvalidCredential
	}

	if e.config.Credential.UpgradeOnLogin {
		if needsUpgrade, err := e.hasher.NeedsUpgrade(record.CredentialDigest); err == nil && needsUpgrade {
			if upgraded, err := e.hasher.Hash(secret); err == nil {
				// Digest refresh is best-effort and must not block a login.
				if err := e.identities.UpdateCredentialDigest(ctx, identity, upgraded); err != nil {
					log.Print("facegate: credential digest upgrade update failed")
				}
			} else {
				log.Print("facegate: credential digest upgrade generation failed")
			}
		}
	}
	secret = ""

	reference, err := e.templates.Get(ctx, identity)
	if err != nil {
		if errors.Is(err, ErrNotEnrolled) {
			e.recordAttempt(ctx, identity, AttemptFailure)
			e.metricInc(MetricAuthFailure)
			e.metricInc(MetricNotEnrolled)
			e.emitAudit(ctx, auditEventAuthFailure, false, identity, ErrNotEnrolled, nil)
			return nil, ErrNotEnrolled
		}
		e.emitAudit(ctx, auditEventAuthFailure, false, identity, ErrStorageUnavailable, func() map[string]string {
			return map[string]string{
				"reason": "template_read_failed",
			}
		})
		return nil, err
	}

	session := newVerificationSession(e.matcher, reference, source, e.config.Biometric)
	state, err := session.Run(ctx)
	if err != nil {
		e.emitAudit(ctx, auditEventAuthFailure, false, identity, err, func() map[string]string {
			return map[string]string{
				"reason": "session_failed",
			}
		})
		return nil, err
	}

	switch state {
	case sessionMatched:
		grant, err := e.grants.Issue(identity, record.Role)
		if err != nil {
			e.metricInc(MetricAuthFailure)
			e.emitAudit(ctx, auditEventAuthFailure, false, identity, err, func() map[string]string {
				return map[string]string{
					"reason": "grant_issue_failed",
				}
			})
			return nil, err
		}

		e.recordAttempt(ctx, identity, AttemptSuccess)
		// LastLogin is bookkeeping; a provider hiccup here does not revoke a
		// decided grant.
		if err := e.identities.UpdateLastLogin(ctx, identity, time.Now()); err != nil {
			log.Print("facegate: last login update failed")
		}
		e.metricInc(MetricAuthSuccess)
		e.emitAudit(ctx, auditEventAuthSuccess, true, identity, nil, func() map[string]string {
			return map[string]string{
				"attempts": strconv.Itoa(session.Attempts()),
			}
		})
		return grant, nil

	case sessionCancelled:
		e.recordAttempt(ctx, identity, AttemptCancelled)
		e.metricInc(MetricAuthCancelled)
		e.emitAudit(ctx, auditEventAuthCancelled, false, identity, ErrVerificationCancelled, nil)
		return nil, ErrVerificationCancelled

	default:
		// Attempts exhausted and timeout deny the same way; the session state
		// only shows up in audit metadata.
		e.recordAttempt(ctx, identity, AttemptFailure)
		e.metricInc(MetricAuthFailure)
		e.metricInc(MetricBiometricMismatch)
		e.emitAudit(ctx, auditEventAuthFailure, false, identity, ErrBiometricMismatch, func() map[string]string {
			return map[string]string{
				"reason":   state.String(),
				"attempts": strconv.Itoa(session.Attempts()),
			}
		})
		return nil, ErrBiometricMismatch
	}
}

// RecentFailures exposes the lockout read side for administrative surfaces.
func (e *Engine) RecentFailures(ctx context.Context, identity string) (int, error) {
	if e == nil || e.ledger == nil {
		return 0, ErrEngineNotReady
	}
	return e.ledger.RecentFailures(ctx, identity, e.config.Lockout.Window)
}

// VerifyGrant validates a grant token issued by Authenticate and returns the
// grant it encodes.
func (e *Engine) VerifyGrant(tokenStr string) (*Grant, error) {
	if e == nil || e.grants == nil {
		return nil, ErrEngineNotReady
	}
	return e.grants.Parse(tokenStr)
}

func (e *Engine) recordAttempt(ctx context.Context, identity string, outcome AttemptOutcome) {
	rec := AttemptRecord{
		ID:        uuid.NewString(),
		Identity:  identity,
		Timestamp: time.Now().UTC(),
		Outcome:   outcome,
		Origin:    originFromContext(ctx),
	}

	if err := e.ledger.Record(ctx, rec); err != nil {
		log.Print("facegate: attempt ledger write failed")
		e.metricInc(MetricLedgerWriteFailure)
	}

	e.emitAudit(ctx, auditEventAttemptRecorded, outcome == AttemptSuccess, identity, nil, func() map[string]string {
		return map[string]string{
			"attempt_id": rec.ID,
			"outcome":    outcome.String(),
		}
	})
}
