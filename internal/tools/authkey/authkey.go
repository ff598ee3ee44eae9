// Package authkey mints admin credential material: an ed25519 keypair and
// EdDSA-signed bearer tokens for the admin API.
package authkey

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// EnvAdminTokenPrivateKey names the signing key variable read in token mode.
const EnvAdminTokenPrivateKey = "INSTA_AGENTS_ADMIN_TOKEN_PRIVATE_KEY"

const (
	// ModeKeypair generates a fresh signing keypair.
	ModeKeypair = "keypair"
	// ModeToken signs an admin bearer token with an existing private key.
	ModeToken = "token"
)

// Config holds authkey command configuration.
type Config struct {
	Mode       string
	PrivateKey string
	Issuer     string
	Audience   string
	TTL        time.Duration
	Now        func() time.Time
}

// ParseConfig parses flags into a Config. Token mode reads its signing key
// from $INSTA_AGENTS_ADMIN_TOKEN_PRIVATE_KEY so the secret stays out of argv.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := Config{
		Mode:       ModeKeypair,
		PrivateKey: os.Getenv(EnvAdminTokenPrivateKey),
		Issuer:     "insta-agents",
		Audience:   "discovery-admin",
		TTL:        24 * time.Hour,
	}
	fs.StringVar(&cfg.Mode, "mode", cfg.Mode, "keypair or token")
	fs.StringVar(&cfg.Issuer, "issuer", cfg.Issuer, "token issuer claim")
	fs.StringVar(&cfg.Audience, "audience", cfg.Audience, "token audience claim")
	fs.DurationVar(&cfg.TTL, "ttl", cfg.TTL, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run executes the configured mode and writes exports to out.
func Run(cfg Config, out io.Writer, reader io.Reader) error {
	if out == nil {
		return errors.New("output is required")
	}
	if reader == nil {
		reader = rand.Reader
	}

	switch cfg.Mode {
	case ModeKeypair:
		return runKeypair(out, reader)
	case ModeToken:
		return runToken(cfg, out, reader)
	default:
		return fmt.Errorf("unknown mode %q", cfg.Mode)
	}
}

func runKeypair(out io.Writer, reader io.Reader) error {
	publicKey, privateKey, err := ed25519.GenerateKey(reader)
	if err != nil {
		return fmt.Errorf("generate admin token key: %w", err)
	}
	if _, err := fmt.Fprintf(out, "export %s=%s\n", EnvAdminTokenPrivateKey, base64.RawStdEncoding.EncodeToString(privateKey)); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(out, "export INSTA_AGENTS_ADMIN_TOKEN_PUBLIC_KEY=%s\n", base64.RawStdEncoding.EncodeToString(publicKey)); err != nil {
		return err
	}
	return nil
}

func runToken(cfg Config, out io.Writer, reader io.Reader) error {
	if cfg.PrivateKey == "" {
		return errors.New("private key is required for token mode")
	}
	if cfg.Issuer == "" {
		return errors.New("issuer is required")
	}
	if cfg.Audience == "" {
		return errors.New("audience is required")
	}
	if cfg.TTL <= 0 {
		return errors.New("ttl must be greater than zero")
	}
	now := time.Now
	if cfg.Now != nil {
		now = cfg.Now
	}

	keyBytes, err := decodeBase64(cfg.PrivateKey)
	if err != nil {
		return fmt.Errorf("decode private key: %w", err)
	}
	if len(keyBytes) != ed25519.PrivateKeySize {
		return fmt.Errorf("private key must be %d bytes", ed25519.PrivateKeySize)
	}

	jti := make([]byte, 16)
	if _, err := io.ReadFull(reader, jti); err != nil {
		return fmt.Errorf("generate token id: %w", err)
	}

	issuedAt := now().UTC()
	claims := jwt.RegisteredClaims{
		Issuer:    cfg.Issuer,
		Audience:  jwt.ClaimStrings{cfg.Audience},
		ID:        hex.EncodeToString(jti),
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		NotBefore: jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(issuedAt.Add(cfg.TTL)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims).SignedString(ed25519.PrivateKey(keyBytes))
	if err != nil {
		return fmt.Errorf("sign admin token: %w", err)
	}

	_, err = fmt.Fprintf(out, "export INSTA_AGENTS_ADMIN_TOKEN=%s\n", token)
	return err
}

func decodeBase64(value string) ([]byte, error) {
	decoded, err := base64.RawStdEncoding.DecodeString(value)
	if err == nil {
		return decoded, nil
	}
	return base64.StdEncoding.DecodeString(value)
}
