package databox

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenIssuer is the iss claim of every minted key.
const TokenIssuer = "databox"

// TokenGenerator mints the opaque token string of a new API key.
type TokenGenerator interface {
	Generate(p *Project, keyType KeyType, issuedAt time.Time) (string, error)
}

// JWTTokenGenerator mints HS256 tokens signed with the project's JWT secret.
// Each token carries a 128-bit random jti so two keys of the same project,
// type and second never share a token string.
type JWTTokenGenerator struct {
	// Rand is the entropy source. Nil means crypto/rand.
	Rand io.Reader
}

var _ TokenGenerator = JWTTokenGenerator{}

// KeyClaims are the claims carried by a databox API key.
type KeyClaims struct {
	Ref  string  `json:"ref"`
	Role KeyType `json:"role"`
	jwt.RegisteredClaims
}

func (g JWTTokenGenerator) Generate(p *Project, keyType KeyType, issuedAt time.Time) (string, error) {
	if p.AuthConfig.JWTSecret == "" {
		return "", fmt.Errorf("project %s has no jwt secret", p.ID)
	}
	jti, err := randomHex(g.Rand, 16)
	if err != nil {
		return "", fmt.Errorf("generating token id: %w", err)
	}

	claims := KeyClaims{
		Ref:  p.ID,
		Role: keyType,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   TokenIssuer,
			IssuedAt: jwt.NewNumericDate(issuedAt),
			ID:       jti,
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(p.AuthConfig.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return token, nil
}

// ParseKeyToken verifies a token against a project secret and returns its claims.
func ParseKeyToken(token, secret string) (*KeyClaims, error) {
	claims := &KeyClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(TokenIssuer))
	if err != nil {
		return nil, fmt.Errorf("parsing key token: %w", err)
	}
	return claims, nil
}

// newJWTSecret returns 64 random bytes, hex encoded.
func newJWTSecret(r io.Reader) (string, error) {
	return randomHex(r, 64)
}

func randomHex(r io.Reader, n int) (string, error) {
	if r == nil {
		r = rand.Reader
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
