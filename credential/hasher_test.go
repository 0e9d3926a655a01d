package credential

import (
	"strings"
	"testing"
)

func fastConfig() Config {
	return Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func newFastHasher(t *testing.T) *Hasher {
	t.Helper()
	h, err := NewHasher(fastConfig())
	if err != nil {
		t.Fatalf("NewHasher failed: %v", err)
	}
	return h
}

func TestHashProducesPHCFormat(t *testing.T) {
	h := newFastHasher(t)

	digest, err := h.Hash("correct-secret-1")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	if !strings.HasPrefix(digest, "$argon2id$v=") {
		t.Fatalf("unexpected digest prefix: %s", digest)
	}
	if strings.Contains(digest, "correct-secret-1") {
		t.Fatal("digest contains the plaintext secret")
	}
}

func TestHashSaltsDiffer(t *testing.T) {
	h := newFastHasher(t)

	first, err := h.Hash("correct-secret-1")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	second, err := h.Hash("correct-secret-1")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	if first == second {
		t.Fatal("expected fresh salt per digest")
	}
}

func TestVerifyRoundTrip(t *testing.T) {
	h := newFastHasher(t)

	digest, err := h.Hash("correct-secret-1")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}

	ok, err := h.Verify("correct-secret-1", digest)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if !ok {
		t.Fatal("expected matching secret to verify")
	}

	ok, err = h.Verify("wrong-secret-000", digest)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if ok {
		t.Fatal("expected wrong secret to fail verification")
	}
}

func TestVerifyUsesEmbeddedParameters(t *testing.T) {
	weak := newFastHasher(t)
	digest, err := weak.Hash("correct-secret-1")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}

	strongCfg := fastConfig()
	strongCfg.Time = 3
	strong, err := NewHasher(strongCfg)
	if err != nil {
		t.Fatalf("NewHasher failed: %v", err)
	}

	// A stronger hasher still verifies digests made with weaker parameters.
	ok, err := strong.Verify("correct-secret-1", digest)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if !ok {
		t.Fatal("expected verification against embedded parameters")
	}
}

func TestNeedsUpgrade(t *testing.T) {
	weak := newFastHasher(t)
	digest, err := weak.Hash("correct-secret-1")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}

	if upgrade, err := weak.NeedsUpgrade(digest); err != nil || upgrade {
		t.Fatalf("same-parameter digest must not need upgrade: upgrade=%v err=%v", upgrade, err)
	}

	strongCfg := fastConfig()
	strongCfg.Time = 2
	strong, err := NewHasher(strongCfg)
	if err != nil {
		t.Fatalf("NewHasher failed: %v", err)
	}
	if upgrade, err := strong.NeedsUpgrade(digest); err != nil || !upgrade {
		t.Fatalf("expected weaker digest to need upgrade: upgrade=%v err=%v", upgrade, err)
	}
}

func TestHashRejectsShortSecret(t *testing.T) {
	h := newFastHasher(t)
	if _, err := h.Hash("short"); err == nil {
		t.Fatal("expected short secret to be rejected")
	}
}

func TestHashRejectsOversizedSecret(t *testing.T) {
	h := newFastHasher(t)

	atLimit := strings.Repeat("a", DefaultMaxSecretBytes)
	if _, err := h.Hash(atLimit); err != nil {
		t.Fatalf("expected secret at the limit to be accepted: %v", err)
	}
	if _, err := h.Hash(atLimit + "a"); err == nil {
		t.Fatal("expected over-limit secret to be rejected")
	}
}

func TestVerifyRejectsMalformedDigests(t *testing.T) {
	h := newFastHasher(t)

	digest, err := h.Hash("correct-secret-1")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}

	cases := []struct {
		name   string
		digest string
	}{
		{"empty", ""},
		{"not phc", "plain-text"},
		{"wrong algorithm", strings.Replace(digest, "argon2id", "argon2i", 1)},
		{"wrong version", strings.Replace(digest, "v=19", "v=18", 1)},
		{"bad salt encoding", "$argon2id$v=19$m=8192,t=1,p=1$!!!$aGFzaA=="},
		{"missing parameters", "$argon2id$v=19$m=8192,t=1$c2FsdHNhbHRzYWx0c2FsdA==$aGFzaA=="},
		{"memory below floor", "$argon2id$v=19$m=1024,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA==$aGFzaA=="},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := h.Verify("correct-secret-1", tc.digest); err == nil {
				t.Fatal("expected malformed digest to error")
			}
		})
	}
}

func TestNewHasherRejectsWeakParameters(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"memory below floor", func(c *Config) { c.Memory = 1024 }},
		{"zero time", func(c *Config) { c.Time = 0 }},
		{"zero parallelism", func(c *Config) { c.Parallelism = 0 }},
		{"short salt", func(c *Config) { c.SaltLength = 8 }},
		{"short key", func(c *Config) { c.KeyLength = 8 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := fastConfig()
			tc.mutate(&cfg)
			if _, err := NewHasher(cfg); err == nil {
				t.Fatal("expected NewHasher to reject")
			}
		})
	}
}
