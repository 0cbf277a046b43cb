// Package auth turns bearer tokens into workflow actors. Tokens are HS256 JWTs
// whose subject is the actor id and whose role claim is one of the human roles.
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/teranos/hireflow/am"
	"github.com/teranos/hireflow/errors"
	"github.com/teranos/hireflow/workflow"
)

// DefaultTokenExpiry is the lifetime of tokens issued without an explicit ttl
const DefaultTokenExpiry = 12 * time.Hour

// JWTClaims extends standard JWT claims with the actor role
type JWTClaims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// JWTManager issues and verifies actor tokens
type JWTManager struct {
	secret    []byte
	issuer    string
	generated bool
	now       func() time.Time
}

// NewJWTManager creates a manager from config. Without a configured secret a
// random one is generated, so only tokens issued by this process verify.
func NewJWTManager(cfg am.AuthConfig) (*JWTManager, error) {
	secret := cfg.JWTSecret
	generated := false
	if secret == "" {
		s, err := generateSecureSecret(32)
		if err != nil {
			return nil, errors.Wrap(err, "failed to generate JWT secret")
		}
		secret, generated = s, true
	}
	return &JWTManager{secret: []byte(secret), issuer: cfg.Issuer, generated: generated, now: time.Now}, nil
}

// GeneratedSecret reports whether the secret was generated rather than configured
func (m *JWTManager) GeneratedSecret() bool {
	return m.generated
}

// Issue signs a token for actor. The system role cannot be issued.
func (m *JWTManager) Issue(actor workflow.Actor, ttl time.Duration) (string, error) {
	if actor.ID == "" {
		return "", errors.NewInvalidRequestError("token subject is required")
	}
	if _, err := workflow.ParseRole(string(actor.Role)); err != nil {
		return "", err
	}
	if ttl <= 0 {
		ttl = DefaultTokenExpiry
	}
	now := m.now()
	claims := JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.ID,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Role: string(actor.Role),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

// ParseActor verifies token and returns the actor it names
func (m *JWTManager) ParseActor(token string) (workflow.Actor, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
	}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}

	claims := &JWTClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return m.secret, nil
	}, opts...)
	if err != nil {
		return workflow.Actor{}, errors.Mark(errors.Wrap(err, "invalid token"), errors.ErrUnauthorized)
	}
	if !parsed.Valid || claims.Subject == "" {
		return workflow.Actor{}, errors.Wrap(errors.ErrUnauthorized, "token has no subject")
	}

	role, err := workflow.ParseRole(claims.Role)
	if err != nil {
		return workflow.Actor{}, errors.Mark(errors.Wrapf(err, "token role %q", claims.Role), errors.ErrUnauthorized)
	}
	return workflow.Actor{ID: claims.Subject, Role: role}, nil
}

func generateSecureSecret(bytes int) (string, error) {
	b := make([]byte, bytes)
	if _, err := rand.Read(b); err != nil {
		return "", errors.Wrap(err, "failed to generate random bytes")
	}
	return hex.EncodeToString(b), nil
}
