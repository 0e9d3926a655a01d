package facegate

import (
	"context"
	"errors"
	"log"

	"github.com/securefs/facegate/biometric"
)

// Enroll stores enc as the identity's sole biometric template, replacing any
// previous one. The identity must already exist; the encoding must be
// structurally valid.
func (e *Engine) Enroll(ctx context.Context, identity string, enc biometric.Encoding) error {
	if e == nil || e.identities == nil || e.templates == nil {
		return ErrEngineNotReady
	}

	if _, err := e.identities.GetIdentity(ctx, identity); err != nil {
		if errors.Is(err, ErrIdentityNotFound) {
			e.emitAudit(ctx, auditEventEnrollRejected, false, identity, ErrIdentityNotFound, nil)
			return ErrIdentityNotFound
		}
		return errors.Join(ErrStorageUnavailable, err)
	}

	if err := enc.Validate(); err != nil {
		e.metricInc(MetricEnrollRejected)
		e.emitAudit(ctx, auditEventEnrollRejected, false, identity, ErrEncodingRejected, nil)
		return errors.Join(ErrEncodingRejected, err)
	}

	ref, err := e.templates.Put(ctx, identity, enc)
	if err != nil {
		e.emitAudit(ctx, auditEventEnrollRejected, false, identity, err, func() map[string]string {
			return map[string]string{
				"reason": "template_write_failed",
			}
		})
		return err
	}

	// The ref on the identity record is a pointer for operators; the template
	// store remains the source of truth for the encoding itself.
	if err := e.identities.UpdateTemplateRef(ctx, identity, ref); err != nil {
		log.Print("facegate: template ref update failed")
	}

	e.metricInc(MetricEnrollSuccess)
	e.emitAudit(ctx, auditEventEnrollSuccess, true, identity, nil, nil)
	return nil
}

// RevokeEnrollment deletes the identity's template. Subsequent
// authentications fail closed until re-enrollment. Revoking an identity with
// no template succeeds.
func (e *Engine) RevokeEnrollment(ctx context.Context, identity string) error {
	if e == nil || e.identities == nil || e.templates == nil {
		return ErrEngineNotReady
	}

	if _, err := e.identities.GetIdentity(ctx, identity); err != nil {
		if errors.Is(err, ErrIdentityNotFound) {
			return ErrIdentityNotFound
		}
		return errors.Join(ErrStorageUnavailable, err)
	}

	if err := e.templates.Delete(ctx, identity); err != nil {
		return err
	}
	if err := e.identities.UpdateTemplateRef(ctx, identity, ""); err != nil {
		log.Print("facegate: template ref clear failed")
	}

	e.metricInc(MetricEnrollRevoked)
	e.emitAudit(ctx, auditEventEnrollRevoked, true, identity, nil, nil)
	return nil
}
