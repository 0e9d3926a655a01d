package facegate

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type grantClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// grantSigner issues and verifies the signed token attached to a Grant.
// Grants are ephemeral: nothing about an issued grant is persisted.
type grantSigner struct {
	cfg GrantConfig
}

func newGrantSigner(cfg GrantConfig) (*grantSigner, error) {
	switch cfg.SigningMethod {
	case "hs256":
		if len(cfg.SigningKey) == 0 {
			return nil, errors.New("hs256 requires signing key")
		}
	case "ed25519":
		if len(cfg.SigningKey) != ed25519.PrivateKeySize {
			return nil, errors.New("invalid ed25519 signing key")
		}
		if len(cfg.PublicKey) != ed25519.PublicKeySize {
			return nil, errors.New("invalid ed25519 public key")
		}
	default:
		return nil, errors.New("unsupported grant signing method")
	}
	if cfg.TTL <= 0 {
		return nil, errors.New("invalid grant TTL")
	}

	return &grantSigner{cfg: cfg}, nil
}

func (g *grantSigner) Issue(identity, role string) (*Grant, error) {
	now := time.Now()
	grantID := uuid.NewString()

	claims := grantClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        grantID,
			Subject:   identity,
			Issuer:    g.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(g.cfg.TTL)),
		},
	}

	token := jwt.NewWithClaims(g.method(), claims)
	signed, err := token.SignedString(g.signKey())
	if err != nil {
		return nil, err
	}

	return &Grant{
		ID:        grantID,
		Identity:  identity,
		Role:      role,
		IssuedAt:  now,
		ExpiresAt: now.Add(g.cfg.TTL),
		Token:     signed,
	}, nil
}

func (g *grantSigner) Parse(tokenStr string) (*Grant, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{g.method().Alg()}),
		jwt.WithExpirationRequired(),
	}
	if g.cfg.Issuer != "" {
		options = append(options, jwt.WithIssuer(g.cfg.Issuer))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, &grantClaims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != g.method().Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return g.verifyKey(), nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGrantInvalid, err)
	}

	claims, ok := token.Claims.(*grantClaims)
	if !ok || !token.Valid {
		return nil, ErrGrantInvalid
	}

	grant := &Grant{
		ID:       claims.ID,
		Identity: claims.Subject,
		Role:     claims.Role,
		Token:    tokenStr,
	}
	if claims.IssuedAt != nil {
		grant.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		grant.ExpiresAt = claims.ExpiresAt.Time
	}

	return grant, nil
}

func (g *grantSigner) method() jwt.SigningMethod {
	if g.cfg.SigningMethod == "ed25519" {
		return jwt.SigningMethodEdDSA
	}
	return jwt.SigningMethodHS256
}

func (g *grantSigner) signKey() interface{} {
	if g.cfg.SigningMethod == "ed25519" {
		return ed25519.PrivateKey(g.cfg.SigningKey)
	}
	return g.cfg.SigningKey
}

func (g *grantSigner) verifyKey() interface{} {
	if g.cfg.SigningMethod == "ed25519" {
		return ed25519.PublicKey(g.cfg.PublicKey)
	}
	return g.cfg.SigningKey
}
