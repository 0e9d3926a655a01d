package facegate

import (
	"context"
	"errors"
	"strings"
)

// Register hashes the secret and creates the identity with the provider.
// The role defaults to the configured default and must be in the allow-list.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (*IdentityRecord, error) {
	if e == nil || e.identities == nil || e.hasher == nil {
		return nil, ErrEngineNotReady
	}
	if !e.config.Registration.Enabled {
		return nil, errors.New("registration disabled")
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, ErrIdentityNotFound
	}

	role := req.Role
	if role == "" {
		role = e.config.Registration.DefaultRole
	}
	if !containsRole(e.config.Registration.AllowedRoles, role) {
		e.emitAudit(ctx, auditEventIdentityRegistered, false, name, ErrRoleInvalid, func() map[string]string {
			return map[string]string{
				"role": role,
			}
		})
		return nil, ErrRoleInvalid
	}

	digest, err := e.hasher.Hash(req.Secret)
	if err != nil {
		e.emitAudit(ctx, auditEventIdentityRegistered, false, name, err, func() map[string]string {
			return map[string]string{
				"reason": "secret_policy",
			}
		})
		return nil, err
	}

	record, err := e.identities.CreateIdentity(ctx, CreateIdentityInput{
		Name:             name,
		Role:             role,
		CredentialDigest: digest,
	})
	if err != nil {
		if errors.Is(err, ErrIdentityExists) {
			e.emitAudit(ctx, auditEventIdentityRegistered, false, name, ErrIdentityExists, nil)
			return nil, ErrIdentityExists
		}
		e.emitAudit(ctx, auditEventIdentityRegistered, false, name, ErrStorageUnavailable, nil)
		return nil, errors.Join(ErrStorageUnavailable, err)
	}

	e.metricInc(MetricIdentityRegistered)
	e.emitAudit(ctx, auditEventIdentityRegistered, true, name, nil, func() map[string]string {
		return map[string]string{
			"role": role,
		}
	})
	return record, nil
}

// DeleteIdentity removes the identity from the provider and revokes its
// biometric template. The template goes first so a half-finished delete can
// never leave an authenticatable orphan.
func (e *Engine) DeleteIdentity(ctx context.Context, identity string) error {
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

	if err := e.identities.DeleteIdentity(ctx, identity); err != nil {
		if errors.Is(err, ErrIdentityNotFound) {
			return ErrIdentityNotFound
		}
		return errors.Join(ErrStorageUnavailable, err)
	}

	e.metricInc(MetricIdentityDeleted)
	e.emitAudit(ctx, auditEventIdentityDeleted, true, identity, nil, nil)
	return nil
}
