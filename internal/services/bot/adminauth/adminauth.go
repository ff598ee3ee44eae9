// Package adminauth verifies the bearer tokens that guard the admin
// listing endpoints. Tokens are EdDSA JWTs minted offline by the
// authkey tool; the service only ever holds the public key.
package adminauth

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/instaagents/discovery/internal/platform/errors"
)

// Environment variables for admin token verification.
const (
	EnvAdminTokenIssuer    = "INSTA_AGENTS_ADMIN_TOKEN_ISSUER"
	EnvAdminTokenAudience  = "INSTA_AGENTS_ADMIN_TOKEN_AUDIENCE"
	EnvAdminTokenPublicKey = "INSTA_AGENTS_ADMIN_TOKEN_PUBLIC_KEY"
)

// tokenEnv holds raw env values before post-parse validation.
type tokenEnv struct {
	Issuer    string `env:"INSTA_AGENTS_ADMIN_TOKEN_ISSUER"`
	Audience  string `env:"INSTA_AGENTS_ADMIN_TOKEN_AUDIENCE"`
	PublicKey string `env:"INSTA_AGENTS_ADMIN_TOKEN_PUBLIC_KEY"`
}

// Config defines how admin tokens are verified.
type Config struct {
	Issuer   string
	Audience string
	Key      ed25519.PublicKey
	Now      func() time.Time
}

// Claims captures validated admin token claims.
type Claims struct {
	Issuer    string
	Audience  []string
	ExpiresAt time.Time
	NotBefore time.Time
	IssuedAt  time.Time
	JWTID     string
}

// tokenClaims is the internal claims type used for JWT parsing.
type tokenClaims struct {
	jwt.RegisteredClaims
}

// LoadConfigFromEnv reads admin token verification configuration.
func LoadConfigFromEnv(now func() time.Time) (Config, error) {
	var raw tokenEnv
	if err := env.Parse(&raw); err != nil {
		return Config{}, fmt.Errorf("parse admin token env: %w", err)
	}
	issuer := strings.TrimSpace(raw.Issuer)
	audience := strings.TrimSpace(raw.Audience)
	publicKey := strings.TrimSpace(raw.PublicKey)
	if issuer == "" {
		return Config{}, fmt.Errorf("INSTA_AGENTS_ADMIN_TOKEN_ISSUER is required")
	}
	if audience == "" {
		return Config{}, fmt.Errorf("INSTA_AGENTS_ADMIN_TOKEN_AUDIENCE is required")
	}
	if publicKey == "" {
		return Config{}, fmt.Errorf("INSTA_AGENTS_ADMIN_TOKEN_PUBLIC_KEY is required")
	}
	keyBytes, err := decodeBase64(publicKey)
	if err != nil {
		return Config{}, fmt.Errorf("decode admin token public key: %w", err)
	}
	if len(keyBytes) != ed25519.PublicKeySize {
		return Config{}, fmt.Errorf("admin token public key must be %d bytes", ed25519.PublicKeySize)
	}
	if now == nil {
		now = time.Now
	}
	return Config{
		Issuer:   issuer,
		Audience: audience,
		Key:      ed25519.PublicKey(keyBytes),
		Now:      now,
	}, nil
}

// FromAuthorization extracts the bearer token from an Authorization
// header value.
func FromAuthorization(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", apperrors.New(apperrors.CodeAdminTokenMissing, "authorization header is required")
	}
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", apperrors.New(apperrors.CodeAdminTokenMissing, "authorization header must use the Bearer scheme")
	}
	token := strings.TrimSpace(header[len(prefix):])
	if token == "" {
		return "", apperrors.New(apperrors.CodeAdminTokenMissing, "bearer token is required")
	}
	return token, nil
}

// ValidateToken verifies an admin bearer token against the config.
func ValidateToken(token string, cfg Config) (Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Claims{}, apperrors.New(apperrors.CodeAdminTokenMissing, "admin token is required")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Issuer == "" || cfg.Audience == "" || len(cfg.Key) != ed25519.PublicKeySize {
		return Claims{}, errors.New("admin token verifier is not configured")
	}

	var parsed tokenClaims
	_, err := jwt.ParseWithClaims(token, &parsed, func(token *jwt.Token) (any, error) {
		return cfg.Key, nil
	},
		jwt.WithValidMethods([]string{"EdDSA"}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return Claims{}, mapJWTError(err)
	}

	if parsed.Issuer == "" || parsed.Issuer != cfg.Issuer {
		return Claims{}, apperrors.New(apperrors.CodeAdminTokenInvalid, "admin token issuer mismatch")
	}
	if !audienceContains(parsed.Audience, cfg.Audience) {
		return Claims{}, apperrors.New(apperrors.CodeAdminTokenInvalid, "admin token audience mismatch")
	}
	if parsed.ID == "" {
		return Claims{}, apperrors.New(apperrors.CodeAdminTokenInvalid, "admin token jti is required")
	}
	if parsed.ExpiresAt == nil {
		return Claims{}, apperrors.New(apperrors.CodeAdminTokenInvalid, "admin token exp is required")
	}

	now := cfg.Now().UTC()
	exp := parsed.ExpiresAt.Time.UTC()
	if !exp.After(now) {
		return Claims{}, apperrors.New(apperrors.CodeAdminTokenExpired, "admin token is expired")
	}
	if parsed.NotBefore != nil {
		nbf := parsed.NotBefore.Time.UTC()
		if now.Before(nbf) {
			return Claims{}, apperrors.New(apperrors.CodeAdminTokenInvalid, "admin token not active yet")
		}
	}

	claims := Claims{
		Issuer:    parsed.Issuer,
		Audience:  []string(parsed.Audience),
		ExpiresAt: exp,
		JWTID:     parsed.ID,
	}
	if parsed.NotBefore != nil {
		claims.NotBefore = parsed.NotBefore.Time.UTC()
	}
	if parsed.IssuedAt != nil {
		claims.IssuedAt = parsed.IssuedAt.Time.UTC()
	}
	return claims, nil
}

// mapJWTError translates jwt library errors to application errors.
func mapJWTError(err error) error {
	if errors.Is(err, jwt.ErrTokenSignatureInvalid) || errors.Is(err, jwt.ErrEd25519Verification) {
		return apperrors.New(apperrors.CodeAdminTokenInvalid, "admin token signature is invalid")
	}
	if errors.Is(err, jwt.ErrTokenUnverifiable) {
		return apperrors.New(apperrors.CodeAdminTokenInvalid, "admin token alg is invalid")
	}
	return apperrors.New(apperrors.CodeAdminTokenInvalid, "admin token is invalid")
}

// audienceContains reports whether the audience list contains the given value.
func audienceContains(aud jwt.ClaimStrings, value string) bool {
	for _, item := range aud {
		if item == value {
			return true
		}
	}
	return false
}

func decodeBase64(value string) ([]byte, error) {
	if value == "" {
		return nil, errors.New("empty base64 value")
	}
	decoded, err := base64.RawStdEncoding.DecodeString(value)
	if err == nil {
		return decoded, nil
	}
	return base64.StdEncoding.DecodeString(value)
}
