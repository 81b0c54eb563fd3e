package sqlite

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ericfisherdev/firechat/internal/domain/model"
	"github.com/ericfisherdev/firechat/internal/domain/port/driven"
)

// CredentialsKey is the key the last-used login pair is stored under.
const CredentialsKey = "user_credentials"

// sealedPrefix marks a value sealed with AES-256-GCM.
const sealedPrefix = "gcm:"

// Compile-time interface satisfaction check.
var _ driven.CredentialStore = (*CredentialRepo)(nil)

// CredentialRepo stores the last-used credentials as JSON in the key-value
// store. When constructed with a key, the JSON is sealed with AES-256-GCM
// before write and opened after read.
type CredentialRepo struct {
	kv  driven.KeyValueStore
	key []byte // 32-byte AES-256 key; nil stores plain JSON.
}

// NewCredentialRepo creates a new CredentialRepo. key must be 32 bytes for
// AES-256-GCM, or nil to store credentials unsealed.
func NewCredentialRepo(kv driven.KeyValueStore, key []byte) (*CredentialRepo, error) {
	if key != nil && len(key) != 32 {
		return nil, driven.ErrInvalidSecretKey
	}
	return &CredentialRepo{kv: kv, key: key}, nil
}

// Save stores or replaces the credentials.
func (r *CredentialRepo) Save(ctx context.Context, creds model.Credentials) error {
	data, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("marshal credentials: %w", err)
	}

	value := string(data)
	if r.key != nil {
		value, err = r.seal(data)
		if err != nil {
			return err
		}
	}

	return r.kv.Set(ctx, CredentialsKey, value)
}

// Load returns the stored credentials, or (nil, nil) if none are stored.
func (r *CredentialRepo) Load(ctx context.Context) (*model.Credentials, error) {
	value, ok, err := r.kv.Get(ctx, CredentialsKey)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	data := []byte(value)
	if strings.HasPrefix(value, sealedPrefix) {
		data, err = r.open(strings.TrimPrefix(value, sealedPrefix))
		if err != nil {
			return nil, fmt.Errorf("open credentials: %w", err)
		}
	}

	var creds model.Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("unmarshal credentials: %w", err)
	}
	return &creds, nil
}

// Clear removes the stored credentials.
func (r *CredentialRepo) Clear(ctx context.Context) error {
	return r.kv.Remove(ctx, CredentialsKey)
}

// seal encrypts plaintext using AES-256-GCM and returns the sealed prefix
// followed by base64 of nonce (12 bytes) || ciphertext || tag.
func (r *CredentialRepo) seal(plaintext []byte) (string, error) {
	gcm, err := newGCM(r.key)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("rand nonce: %w", err)
	}

	ciphertext := gcm.Seal(nonce, nonce, plaintext, nil)
	return sealedPrefix + base64.StdEncoding.EncodeToString(ciphertext), nil
}

// open decrypts a base64-encoded AES-256-GCM ciphertext.
func (r *CredentialRepo) open(encoded string) ([]byte, error) {
	if r.key == nil {
		return nil, errors.New("credentials are sealed but no secret key is configured")
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("base64 decode: %w", err)
	}

	gcm, err := newGCM(r.key)
	if err != nil {
		return nil, err
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return nil, errors.New("ciphertext too short")
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("gcm.Open: %w", err)
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}
	return gcm, nil
}
