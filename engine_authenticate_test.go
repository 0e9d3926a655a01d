package facegate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/securefs/facegate/biometric"
)

func TestAuthenticateHappyPath(t *testing.T) {
	cfg := gateTestConfig()
	provider := newMockIdentityProvider()
	engine, done := buildTestEngine(t, cfg, provider)
	defer done()

	face := testEncoding(1.0)
	registerAndEnroll(t, engine, "alice", "correct-secret-1", face)

	// Two empty warmup frames before the matching one.
	source := &scriptedSource{frames: [][]biometric.Encoding{
		nil,
		nil,
		{face},
	}}

	grant, err := engine.Authenticate(context.Background(), "alice", "correct-secret-1", source)
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if grant == nil || grant.Identity != "alice" {
		t.Fatalf("unexpected grant: %+v", grant)
	}
	if grant.Token == "" {
		t.Fatal("expected signed token on grant")
	}
	if source.pulls != 3 {
		t.Fatalf("expected match on third pull, got %d pulls", source.pulls)
	}

	verified, err := engine.VerifyGrant(grant.Token)
	if err != nil {
		t.Fatalf("VerifyGrant failed: %v", err)
	}
	if verified.Identity != "alice" || verified.Role != "user" {
		t.Fatalf("unexpected verified grant: %+v", verified)
	}

	failures, err := engine.RecentFailures(context.Background(), "alice")
	if err != nil {
		t.Fatalf("RecentFailures failed: %v", err)
	}
	if failures != 0 {
		t.Fatalf("expected no recorded failures after success, got %d", failures)
	}
	if provider.lastLoginUpdates != 1 {
		t.Fatalf("expected one last-login update, got %d", provider.lastLoginUpdates)
	}
}

func TestAuthenticateNearbyCandidateWithinThreshold(t *testing.T) {
	cfg := gateTestConfig()
	engine, done := buildTestEngine(t, cfg, newMockIdentityProvider())
	defer done()

	face := testEncoding(1.0)
	registerAndEnroll(t, engine, "alice", "correct-secret-1", face)

	source := &staticSource{candidates: []biometric.Encoding{nearbyEncoding(face, 0.1)}}
	if _, err := engine.Authenticate(context.Background(), "alice", "correct-secret-1", source); err != nil {
		t.Fatalf("expected candidate within threshold to match: %v", err)
	}
}

func TestAuthenticateWrongSecretThenLockout(t *testing.T) {
	cfg := gateTestConfig()
	cfg.Lockout.Threshold = 3
	engine, done := buildTestEngine(t, cfg, newMockIdentityProvider())
	defer done()

	face := testEncoding(1.0)
	registerAndEnroll(t, engine, "alice", "correct-secret-1", face)
	source := &staticSource{candidates: []biometric.Encoding{face}}

	for i := 0; i < 3; i++ {
		_, err := engine.Authenticate(context.Background(), "alice", "wrong-secret-00", source)
		if !errors.Is(err, ErrInvalidCredential) {
			t.Fatalf("attempt %d: expected ErrInvalidCredential, got %v", i, err)
		}
	}

	// Threshold reached: even the correct secret is refused, and the
	// credential verifier is never consulted.
	_, err := engine.Authenticate(context.Background(), "alice", "correct-secret-1", source)
	if !errors.Is(err, ErrLockedOut) {
		t.Fatalf("expected ErrLockedOut, got %v", err)
	}
	if source.pulls != 0 {
		t.Fatal("expected no frame pulls for a locked-out identity")
	}

	if got := engine.MetricsSnapshot().Counters[MetricAuthLockedOut]; got != 1 {
		t.Fatalf("expected 1 lockout metric, got %d", got)
	}
}

func TestAuthenticateLockoutHealsAfterWindow(t *testing.T) {
	cfg := gateTestConfig()
	cfg.Lockout.Threshold = 2
	cfg.Lockout.Window = 50 * time.Millisecond
	engine, done := buildTestEngine(t, cfg, newMockIdentityProvider())
	defer done()

	face := testEncoding(1.0)
	registerAndEnroll(t, engine, "alice", "correct-secret-1", face)
	source := &staticSource{candidates: []biometric.Encoding{face}}

	for i := 0; i < 2; i++ {
		if _, err := engine.Authenticate(context.Background(), "alice", "wrong-secret-00", source); !errors.Is(err, ErrInvalidCredential) {
			t.Fatalf("expected ErrInvalidCredential, got %v", err)
		}
	}
	if _, err := engine.Authenticate(context.Background(), "alice", "correct-secret-1", source); !errors.Is(err, ErrLockedOut) {
		t.Fatalf("expected ErrLockedOut, got %v", err)
	}

	time.Sleep(60 * time.Millisecond)

	if _, err := engine.Authenticate(context.Background(), "alice", "correct-secret-1", source); err != nil {
		t.Fatalf("expected lockout to heal after window, got %v", err)
	}
}

func TestAuthenticateUnknownIdentityIndistinguishable(t *testing.T) {
	cfg := gateTestConfig()
	engine, done := buildTestEngine(t, cfg, newMockIdentityProvider())
	defer done()

	face := testEncoding(1.0)
	registerAndEnroll(t, engine, "alice", "correct-secret-1", face)
	source := &staticSource{candidates: []biometric.Encoding{face}}

	_, unknownErr := engine.Authenticate(context.Background(), "nobody", "whatever-secret", source)
	_, mismatchErr := engine.Authenticate(context.Background(), "alice", "wrong-secret-00", source)

	if !errors.Is(unknownErr, ErrInvalidCredential) {
		t.Fatalf("unknown identity: expected ErrInvalidCredential, got %v", unknownErr)
	}
	if !errors.Is(mismatchErr, ErrInvalidCredential) {
		t.Fatalf("secret mismatch: expected ErrInvalidCredential, got %v", mismatchErr)
	}
	if unknownErr.Error() != mismatchErr.Error() {
		t.Fatal("unknown identity and secret mismatch must be indistinguishable")
	}
}

func TestAuthenticateNotEnrolledFailsClosed(t *testing.T) {
	cfg := gateTestConfig()
	engine, done := buildTestEngine(t, cfg, newMockIdentityProvider())
	defer done()

	if _, err := engine.Register(context.Background(), RegisterRequest{Name: "bob", Secret: "correct-secret-1"}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	source := &staticSource{candidates: []biometric.Encoding{testEncoding(1.0)}}
	_, err := engine.Authenticate(context.Background(), "bob", "correct-secret-1", source)
	if !errors.Is(err, ErrNotEnrolled) {
		t.Fatalf("expected ErrNotEnrolled, got %v", err)
	}
	if source.pulls != 0 {
		t.Fatal("expected no frame pulls without an enrolled template")
	}
}

func TestAuthenticateMismatchExhaustsAttemptBudget(t *testing.T) {
	cfg := gateTestConfig()
	cfg.Biometric.MaxAttempts = 4
	engine, done := buildTestEngine(t, cfg, newMockIdentityProvider())
	defer done()

	registerAndEnroll(t, engine, "alice", "correct-secret-1", testEncoding(1.0))

	// Far-away face: clamped distance 1.0, never matches.
	source := &staticSource{candidates: []biometric.Encoding{testEncoding(10.0)}}
	_, err := engine.Authenticate(context.Background(), "alice", "correct-secret-1", source)
	if !errors.Is(err, ErrBiometricMismatch) {
		t.Fatalf("expected ErrBiometricMismatch, got %v", err)
	}
	if source.pulls != 4 {
		t.Fatalf("expected exactly 4 frame pulls, got %d", source.pulls)
	}

	failures, err := engine.RecentFailures(context.Background(), "alice")
	if err != nil {
		t.Fatalf("RecentFailures failed: %v", err)
	}
	if failures != 1 {
		t.Fatalf("expected a single ledger failure for the whole session, got %d", failures)
	}
}

func TestAuthenticateTimeoutDominatesStallingSource(t *testing.T) {
	cfg := gateTestConfig()
	cfg.Biometric.SampleTimeout = 100 * time.Millisecond
	engine, done := buildTestEngine(t, cfg, newMockIdentityProvider())
	defer done()

	registerAndEnroll(t, engine, "alice", "correct-secret-1", testEncoding(1.0))

	start := time.Now()
	_, err := engine.Authenticate(context.Background(), "alice", "correct-secret-1", stallingSource{})
	if !errors.Is(err, ErrBiometricMismatch) {
		t.Fatalf("expected ErrBiometricMismatch on timeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("expected the session deadline to dominate a stalling source, took %s", elapsed)
	}
}

func TestAuthenticateCancelledNotCountedForLockout(t *testing.T) {
	cfg := gateTestConfig()
	cfg.Lockout.Threshold = 2
	engine, done := buildTestEngine(t, cfg, newMockIdentityProvider())
	defer done()

	registerAndEnroll(t, engine, "alice", "correct-secret-1", testEncoding(1.0))

	for i := 0; i < 3; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(30 * time.Millisecond)
			cancel()
		}()
		_, err := engine.Authenticate(ctx, "alice", "correct-secret-1", stallingSource{})
		if !errors.Is(err, ErrVerificationCancelled) {
			t.Fatalf("expected ErrVerificationCancelled, got %v", err)
		}
	}

	failures, err := engine.RecentFailures(context.Background(), "alice")
	if err != nil {
		t.Fatalf("RecentFailures failed: %v", err)
	}
	if failures != 0 {
		t.Fatalf("cancelled attempts must not count toward lockout, got %d", failures)
	}

	// The identity is still authenticatable.
	source := &staticSource{candidates: []biometric.Encoding{testEncoding(1.0)}}
	if _, err := engine.Authenticate(context.Background(), "alice", "correct-secret-1", source); err != nil {
		t.Fatalf("expected authentication after cancellations, got %v", err)
	}
}

func TestAuthenticateCancelledCountedWhenConfigured(t *testing.T) {
	cfg := gateTestConfig()
	cfg.Lockout.Threshold = 2
	cfg.Lockout.CountCancelled = true
	engine, done := buildTestEngine(t, cfg, newMockIdentityProvider())
	defer done()

	registerAndEnroll(t, engine, "alice", "correct-secret-1", testEncoding(1.0))

	for i := 0; i < 2; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(30 * time.Millisecond)
			cancel()
		}()
		if _, err := engine.Authenticate(ctx, "alice", "correct-secret-1", stallingSource{}); !errors.Is(err, ErrVerificationCancelled) {
			t.Fatalf("expected ErrVerificationCancelled, got %v", err)
		}
	}

	source := &staticSource{candidates: []biometric.Encoding{testEncoding(1.0)}}
	if _, err := engine.Authenticate(context.Background(), "alice", "correct-secret-1", source); !errors.Is(err, ErrLockedOut) {
		t.Fatalf("expected ErrLockedOut with CountCancelled, got %v", err)
	}
}

type failingLedger struct {
	recordCalls int
}

func (l *failingLedger) Record(context.Context, AttemptRecord) error {
	l.recordCalls++
	return errors.New("ledger backend down")
}

func (l *failingLedger) RecentFailures(context.Context, string, time.Duration) (int, error) {
	return 0, errors.New("ledger backend down")
}

func TestAuthenticateLedgerFailureIsSwallowed(t *testing.T) {
	cfg := gateTestConfig()
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	ledger := &failingLedger{}
	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithIdentityProvider(newMockIdentityProvider()).
		WithLedger(ledger).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()

	face := testEncoding(1.0)
	registerAndEnroll(t, engine, "alice", "correct-secret-1", face)

	source := &staticSource{candidates: []biometric.Encoding{face}}
	grant, err := engine.Authenticate(context.Background(), "alice", "correct-secret-1", source)
	if err != nil {
		t.Fatalf("expected grant despite ledger failure, got %v", err)
	}
	if grant == nil {
		t.Fatal("expected non-nil grant")
	}
	if ledger.recordCalls == 0 {
		t.Fatal("expected a ledger write to have been attempted")
	}
	if got := engine.MetricsSnapshot().Counters[MetricLedgerWriteFailure]; got == 0 {
		t.Fatal("expected ledger write failure metric to increment")
	}
}

func TestAuthenticateIdentityReadFailureFailsClosed(t *testing.T) {
	cfg := gateTestConfig()
	provider := newMockIdentityProvider()
	engine, done := buildTestEngine(t, cfg, provider)
	defer done()

	face := testEncoding(1.0)
	registerAndEnroll(t, engine, "alice", "correct-secret-1", face)

	provider.getErr = errors.New("database down")
	source := &staticSource{candidates: []biometric.Encoding{face}}

	_, err := engine.Authenticate(context.Background(), "alice", "correct-secret-1", source)
	if !errors.Is(err, ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}
	if source.pulls != 0 {
		t.Fatal("expected no frame pulls on identity read failure")
	}
}

func TestAuthenticateReplacedTemplateTakesEffect(t *testing.T) {
	cfg := gateTestConfig()
	engine, done := buildTestEngine(t, cfg, newMockIdentityProvider())
	defer done()

	oldFace := testEncoding(1.0)
	newFace := testEncoding(10.0)
	registerAndEnroll(t, engine, "alice", "correct-secret-1", oldFace)

	if err := engine.Enroll(context.Background(), "alice", newFace); err != nil {
		t.Fatalf("re-enroll failed: %v", err)
	}

	oldSource := &staticSource{candidates: []biometric.Encoding{oldFace}}
	if _, err := engine.Authenticate(context.Background(), "alice", "correct-secret-1", oldSource); !errors.Is(err, ErrBiometricMismatch) {
		t.Fatalf("expected old face to be rejected after replacement, got %v", err)
	}

	newSource := &staticSource{candidates: []biometric.Encoding{newFace}}
	if _, err := engine.Authenticate(context.Background(), "alice", "correct-secret-1", newSource); err != nil {
		t.Fatalf("expected new face to match, got %v", err)
	}
}

func TestAuthenticateDigestUpgradeOnLogin(t *testing.T) {
	weak := gateTestConfig()

	// Seed the identity with a digest produced under weaker parameters.
	provider := newMockIdentityProvider()
	engine, done := buildTestEngine(t, weak, provider)
	face := testEncoding(1.0)
	registerAndEnroll(t, engine, "alice", "correct-secret-1", face)
	weakDigest := provider.records["alice"].CredentialDigest
	done()

	strong := gateTestConfig()
	strong.Credential.Time = 2
	mr, rdb := newTestRedis(t)
	defer mr.Close()
	upgraded, err := New().
		WithConfig(strong).
		WithRedis(rdb).
		WithIdentityProvider(provider).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer upgraded.Close()
	if err := upgraded.Enroll(context.Background(), "alice", face); err != nil {
		t.Fatalf("Enroll failed: %v", err)
	}

	source := &staticSource{candidates: []biometric.Encoding{face}}
	if _, err := upgraded.Authenticate(context.Background(), "alice", "correct-secret-1", source); err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}

	if provider.records["alice"].CredentialDigest == weakDigest {
		t.Fatal("expected credential digest to be upgraded on login")
	}
}

func TestVerifyGrantRejectsTampering(t *testing.T) {
	cfg := gateTestConfig()
	engine, done := buildTestEngine(t, cfg, newMockIdentityProvider())
	defer done()

	face := testEncoding(1.0)
	registerAndEnroll(t, engine, "alice", "correct-secret-1", face)

	source := &staticSource{candidates: []biometric.Encoding{face}}
	grant, err := engine.Authenticate(context.Background(), "alice", "correct-secret-1", source)
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}

	tampered := grant.Token[:len(grant.Token)-2] + "xx"
	if _, err := engine.VerifyGrant(tampered); !errors.Is(err, ErrGrantInvalid) {
		t.Fatalf("expected ErrGrantInvalid for tampered token, got %v", err)
	}
}
