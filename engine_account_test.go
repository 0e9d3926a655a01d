package facegate

import (
	"context"
	"errors"
	"testing"

	"github.com/securefs/facegate/biometric"
)

func TestRegisterDefaultsRole(t *testing.T) {
	engine, done := buildTestEngine(t, gateTestConfig(), newMockIdentityProvider())
	defer done()

	rec, err := engine.Register(context.Background(), RegisterRequest{Name: "alice", Secret: "correct-secret-1"})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if rec.Role != "user" {
		t.Fatalf("expected default role user, got %q", rec.Role)
	}
	if rec.CredentialDigest == "" || rec.CredentialDigest == "correct-secret-1" {
		t.Fatal("expected a digest, never the plaintext secret")
	}
}

func TestRegisterDuplicate(t *testing.T) {
	engine, done := buildTestEngine(t, gateTestConfig(), newMockIdentityProvider())
	defer done()

	if _, err := engine.Register(context.Background(), RegisterRequest{Name: "alice", Secret: "correct-secret-1"}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if _, err := engine.Register(context.Background(), RegisterRequest{Name: "alice", Secret: "other-secret-00"}); !errors.Is(err, ErrIdentityExists) {
		t.Fatalf("expected ErrIdentityExists, got %v", err)
	}
}

func TestRegisterRejectsUnknownRole(t *testing.T) {
	engine, done := buildTestEngine(t, gateTestConfig(), newMockIdentityProvider())
	defer done()

	if _, err := engine.Register(context.Background(), RegisterRequest{Name: "mallory", Secret: "correct-secret-1", Role: "root"}); !errors.Is(err, ErrRoleInvalid) {
		t.Fatalf("expected ErrRoleInvalid, got %v", err)
	}
}

func TestRegisterRejectsShortSecret(t *testing.T) {
	engine, done := buildTestEngine(t, gateTestConfig(), newMockIdentityProvider())
	defer done()

	if _, err := engine.Register(context.Background(), RegisterRequest{Name: "alice", Secret: "short"}); err == nil {
		t.Fatal("expected short secret to be rejected")
	}
}

func TestRegisterDisabled(t *testing.T) {
	cfg := gateTestConfig()
	cfg.Registration.Enabled = false
	engine, done := buildTestEngine(t, cfg, newMockIdentityProvider())
	defer done()

	if _, err := engine.Register(context.Background(), RegisterRequest{Name: "alice", Secret: "correct-secret-1"}); err == nil {
		t.Fatal("expected Register to fail when disabled")
	}
}

func TestDeleteIdentityRevokesTemplate(t *testing.T) {
	provider := newMockIdentityProvider()
	engine, done := buildTestEngine(t, gateTestConfig(), provider)
	defer done()

	face := testEncoding(1.0)
	registerAndEnroll(t, engine, "alice", "correct-secret-1", face)

	if err := engine.DeleteIdentity(context.Background(), "alice"); err != nil {
		t.Fatalf("DeleteIdentity failed: %v", err)
	}

	// The template must be gone along with the identity: re-registering the
	// same name starts from a clean slate.
	if _, err := engine.Register(context.Background(), RegisterRequest{Name: "alice", Secret: "correct-secret-1"}); err != nil {
		t.Fatalf("re-register failed: %v", err)
	}
	source := &staticSource{candidates: []biometric.Encoding{face}}
	if _, err := engine.Authenticate(context.Background(), "alice", "correct-secret-1", source); !errors.Is(err, ErrNotEnrolled) {
		t.Fatalf("expected ErrNotEnrolled for recreated identity, got %v", err)
	}
}

func TestDeleteIdentityUnknown(t *testing.T) {
	engine, done := buildTestEngine(t, gateTestConfig(), newMockIdentityProvider())
	defer done()

	if err := engine.DeleteIdentity(context.Background(), "nobody"); !errors.Is(err, ErrIdentityNotFound) {
		t.Fatalf("expected ErrIdentityNotFound, got %v", err)
	}
}
