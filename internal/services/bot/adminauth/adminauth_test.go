package adminauth

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"testing"
	"time"

	apperrors "github.com/instaagents/discovery/internal/platform/errors"
)

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv(EnvAdminTokenIssuer, "")
	t.Setenv(EnvAdminTokenAudience, "")
	t.Setenv(EnvAdminTokenPublicKey, "")

	if _, err := LoadConfigFromEnv(nil); err == nil {
		t.Fatal("expected error when env vars are missing")
	}

	pubKey, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	t.Setenv(EnvAdminTokenIssuer, "issuer")
	t.Setenv(EnvAdminTokenAudience, "audience")
	t.Setenv(EnvAdminTokenPublicKey, base64.RawStdEncoding.EncodeToString(pubKey))

	cfg, err := LoadConfigFromEnv(nil)
	if err != nil {
		t.Fatalf("load admin token config: %v", err)
	}
	if cfg.Issuer != "issuer" || cfg.Audience != "audience" {
		t.Fatal("expected issuer and audience to be loaded")
	}
	if len(cfg.Key) != ed25519.PublicKeySize {
		t.Fatalf("expected public key size %d", ed25519.PublicKeySize)
	}
}

func TestFromAuthorization(t *testing.T) {
	token, err := FromAuthorization("Bearer abc.def.ghi")
	if err != nil {
		t.Fatalf("from authorization: %v", err)
	}
	if token != "abc.def.ghi" {
		t.Fatalf("unexpected token %q", token)
	}

	tests := []struct {
		name   string
		header string
	}{
		{name: "empty", header: ""},
		{name: "no scheme", header: "abc.def.ghi"},
		{name: "wrong scheme", header: "Basic abc"},
		{name: "blank token", header: "Bearer   "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromAuthorization(tt.header)
			if apperrors.CodeOf(err) != apperrors.CodeAdminTokenMissing {
				t.Fatalf("expected missing token code, got %v", err)
			}
		})
	}
}

func TestValidateTokenSuccess(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	token := signToken(t, priv, map[string]any{
		"alg": "EdDSA",
		"typ": "JWT",
	}, map[string]any{
		"iss": "issuer",
		"aud": []string{"discovery-admin", "secondary"},
		"exp": now.Add(2 * time.Hour).Unix(),
		"iat": now.Add(-time.Minute).Unix(),
		"jti": "jti-1",
	})

	cfg := Config{Issuer: "issuer", Audience: "discovery-admin", Key: pub, Now: func() time.Time { return now }}
	claims, err := ValidateToken(token, cfg)
	if err != nil {
		t.Fatalf("validate token: %v", err)
	}
	if claims.Issuer != "issuer" {
		t.Fatalf("expected issuer claim issuer, got %s", claims.Issuer)
	}
	if claims.JWTID != "jti-1" {
		t.Fatalf("expected jti-1, got %s", claims.JWTID)
	}
	if !claims.ExpiresAt.Equal(time.Unix(now.Add(2*time.Hour).Unix(), 0).UTC()) {
		t.Fatal("expected expires at to match exp")
	}
}

func TestValidateTokenMissing(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	cfg := Config{Issuer: "issuer", Audience: "discovery-admin", Key: pub, Now: time.Now}
	_, err = ValidateToken("   ", cfg)
	if apperrors.CodeOf(err) != apperrors.CodeAdminTokenMissing {
		t.Fatalf("expected missing token code, got %v", err)
	}
}

func TestValidateTokenExpired(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	token := signToken(t, priv, map[string]any{"alg": "EdDSA"}, map[string]any{
		"iss": "issuer",
		"aud": "discovery-admin",
		"exp": now.Add(-time.Minute).Unix(),
		"jti": "jti-1",
	})

	cfg := Config{Issuer: "issuer", Audience: "discovery-admin", Key: pub, Now: func() time.Time { return now }}
	_, err = ValidateToken(token, cfg)
	if apperrors.CodeOf(err) != apperrors.CodeAdminTokenExpired {
		t.Fatalf("expected expired code, got %v", err)
	}
}

func TestValidateTokenMismatch(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	cfg := Config{Issuer: "issuer", Audience: "discovery-admin", Key: pub, Now: func() time.Time { return now }}

	tests := []struct {
		name   string
		claims map[string]any
	}{
		{name: "issuer mismatch", claims: map[string]any{
			"iss": "other", "aud": "discovery-admin", "exp": now.Add(time.Hour).Unix(), "jti": "jti-1",
		}},
		{name: "audience mismatch", claims: map[string]any{
			"iss": "issuer", "aud": "other", "exp": now.Add(time.Hour).Unix(), "jti": "jti-1",
		}},
		{name: "missing jti", claims: map[string]any{
			"iss": "issuer", "aud": "discovery-admin", "exp": now.Add(time.Hour).Unix(),
		}},
		{name: "missing exp", claims: map[string]any{
			"iss": "issuer", "aud": "discovery-admin", "jti": "jti-1",
		}},
		{name: "not active yet", claims: map[string]any{
			"iss": "issuer", "aud": "discovery-admin", "exp": now.Add(time.Hour).Unix(),
			"nbf": now.Add(time.Minute).Unix(), "jti": "jti-1",
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token := signToken(t, priv, map[string]any{"alg": "EdDSA"}, tt.claims)
			_, err := ValidateToken(token, cfg)
			if apperrors.CodeOf(err) != apperrors.CodeAdminTokenInvalid {
				t.Fatalf("expected invalid token code, got %v", err)
			}
		})
	}
}

func TestValidateTokenWrongKey(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	_, otherPriv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate other key: %v", err)
	}

	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	token := signToken(t, otherPriv, map[string]any{"alg": "EdDSA"}, map[string]any{
		"iss": "issuer",
		"aud": "discovery-admin",
		"exp": now.Add(time.Hour).Unix(),
		"jti": "jti-1",
	})

	cfg := Config{Issuer: "issuer", Audience: "discovery-admin", Key: pub, Now: func() time.Time { return now }}
	_, err = ValidateToken(token, cfg)
	if apperrors.CodeOf(err) != apperrors.CodeAdminTokenInvalid {
		t.Fatalf("expected invalid token code, got %v", err)
	}
}

func TestValidateTokenRejectsHMAC(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	// A token claiming HS256 must never reach signature verification
	// with the public key as an HMAC secret.
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))
	payload := base64.RawURLEncoding.EncodeToString([]byte(`{"iss":"issuer"}`))
	token := header + "." + payload + ".sig"

	cfg := Config{Issuer: "issuer", Audience: "discovery-admin", Key: pub, Now: time.Now}
	_, err = ValidateToken(token, cfg)
	if apperrors.CodeOf(err) != apperrors.CodeAdminTokenInvalid {
		t.Fatalf("expected invalid token code, got %v", err)
	}
}

func TestValidateTokenUnconfigured(t *testing.T) {
	_, err := ValidateToken("a.b.c", Config{})
	if err == nil {
		t.Fatal("expected error for unconfigured verifier")
	}
	var domainErr *apperrors.Error
	if errors.As(err, &domainErr) {
		t.Fatalf("expected plain config error, got domain error %v", domainErr)
	}
}

func signToken(t *testing.T, privateKey ed25519.PrivateKey, header, payload map[string]any) string {
	t.Helper()

	headerJSON, err := json.Marshal(header)
	if err != nil {
		t.Fatalf("marshal header: %v", err)
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}

	encodedHeader := base64.RawURLEncoding.EncodeToString(headerJSON)
	encodedPayload := base64.RawURLEncoding.EncodeToString(payloadJSON)
	signingInput := encodedHeader + "." + encodedPayload
	signature := ed25519.Sign(privateKey, []byte(signingInput))
	encodedSig := base64.RawURLEncoding.EncodeToString(signature)
	return signingInput + "." + encodedSig
}
