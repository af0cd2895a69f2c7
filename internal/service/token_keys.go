package service

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"github.com/qcom/otpauth/internal/config"
	"github.com/qcom/otpauth/internal/models"
)

type signingKey struct {
	id     string
	secret []byte
}

func newSigningKey(secret string) signingKey {
	h := sha256.Sum256([]byte(secret))
	return signingKey{
		id:     base64.RawURLEncoding.EncodeToString(h[:8]),
		secret: []byte(secret),
	}
}

// Keyring signs with the current secret and verifies with the current or
// the previous one. Keys are addressed by the token's kid header.
type Keyring struct {
	current  signingKey
	previous []signingKey
}

func NewKeyring(secret string, previous ...string) (*Keyring, error) {
	if len(secret) < 32 {
		return nil, fmt.Errorf("secret key must be at least 32 bytes")
	}

	k := &Keyring{current: newSigningKey(secret)}
	for _, p := range previous {
		if p == "" {
			continue
		}
		if len(p) < 32 {
			return nil, fmt.Errorf("previous secret key must be at least 32 bytes")
		}
		k.previous = append(k.previous, newSigningKey(p))
	}
	return k, nil
}

func (k *Keyring) lookup(kid string) ([]byte, bool) {
	if kid == k.current.id {
		return k.current.secret, true
	}
	for _, p := range k.previous {
		if kid == p.id {
			return p.secret, true
		}
	}
	return nil, false
}

// TokenKeys holds the per-purpose keyrings. Access and refresh tokens never
// share a secret.
type TokenKeys struct {
	Access  *Keyring
	Refresh *Keyring
}

func NewTokenKeys(cfg *config.JWTConfig) (*TokenKeys, error) {
	if cfg.AccessSecret == cfg.RefreshSecret {
		return nil, fmt.Errorf("access and refresh secrets must differ")
	}

	access, err := NewKeyring(cfg.AccessSecret, cfg.AccessPreviousSecret)
	if err != nil {
		return nil, fmt.Errorf("access keyring: %w", err)
	}

	refresh, err := NewKeyring(cfg.RefreshSecret, cfg.RefreshPreviousSecret)
	if err != nil {
		return nil, fmt.Errorf("refresh keyring: %w", err)
	}

	return &TokenKeys{Access: access, Refresh: refresh}, nil
}

func (k *TokenKeys) forPurpose(purpose models.TokenPurpose) (*Keyring, error) {
	switch purpose {
	case models.PurposeAccess:
		return k.Access, nil
	case models.PurposeRefresh:
		return k.Refresh, nil
	default:
		return nil, fmt.Errorf("unknown token purpose %q", purpose)
	}
}
