package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"slices"

	"github.com/go-faster/errors"
)

// ScopeAdmin grants access to the back-office endpoints.
const ScopeAdmin = "admin"

// APIKeyInfo holds the identity and permission data for a validated API key.
type APIKeyInfo struct {
	ID      string
	KeyHash string
	Name    string
	Scopes  []string
}

// HasScope reports whether the key was granted scope.
func (k *APIKeyInfo) HasScope(scope string) bool {
	return slices.Contains(k.Scopes, scope)
}

// Repository provides lookup of API keys by their HMAC hash.
type Repository interface {
	FindByHash(ctx context.Context, hash string) (*APIKeyInfo, error)
	Create(ctx context.Context, k *APIKeyInfo) error
}

// HashKey returns the hex HMAC-SHA256 of key under pepper. Only hashes are
// ever stored.
func HashKey(pepper []byte, key string) string {
	mac := hmac.New(sha256.New, pepper)
	mac.Write([]byte(key))
	return hex.EncodeToString(mac.Sum(nil))
}

// KeyAuthenticator validates raw API keys against the repository.
type KeyAuthenticator struct {
	apikeys Repository
	pepper  []byte
}

// NewKeyAuthenticator creates a KeyAuthenticator with the given API key
// repository and HMAC pepper.
func NewKeyAuthenticator(apikeys Repository, pepper []byte) *KeyAuthenticator {
	return &KeyAuthenticator{
		apikeys: apikeys,
		pepper:  pepper,
	}
}

// Authenticate hashes key, looks it up and compares the stored hash in
// constant time.
func (a *KeyAuthenticator) Authenticate(ctx context.Context, key string) (*APIKeyInfo, error) {
	if key == "" {
		return nil, ErrUnauthorized
	}

	mac := hmac.New(sha256.New, a.pepper)
	mac.Write([]byte(key))
	hash := mac.Sum(nil)

	info, err := a.apikeys.FindByHash(ctx, hex.EncodeToString(hash))
	if err != nil {
		return nil, errors.Wrap(ErrUnauthorized, "unknown api key")
	}

	stored, err := hex.DecodeString(info.KeyHash)
	if err != nil {
		return nil, errors.Wrap(ErrUnauthorized, "malformed stored hash")
	}
	if subtle.ConstantTimeCompare(hash, stored) != 1 {
		return nil, ErrUnauthorized
	}

	return info, nil
}
