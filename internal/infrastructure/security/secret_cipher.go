package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// keyBytes is the AES-256 key size
	keyBytes = 32
	// keyIterations is the PBKDF2 iteration count for key derivation
	keyIterations = 64_000
)

// keySalt is a fixed derivation salt. Changing it invalidates every stored
// ciphertext, so it must stay stable across releases.
var keySalt = []byte("titledesk.tracker-credentials.v1")

var (
	// ErrCipherKeyMissing indicates the encryption passphrase is not configured
	ErrCipherKeyMissing = errors.New("security: encryption key is not configured")
	// ErrCiphertextInvalid indicates the ciphertext is malformed or was
	// produced with a different key
	ErrCiphertextInvalid = errors.New("security: ciphertext is invalid")
)

// SecretCipher encrypts and decrypts short secrets for storage at rest.
type SecretCipher interface {
	// Encrypt returns base64-encoded nonce+ciphertext for the plaintext
	Encrypt(plaintext string) (string, error)
	// Decrypt reverses Encrypt
	Decrypt(ciphertext string) (string, error)
}

// AESSecretCipher implements SecretCipher with AES-256-GCM. The key is
// derived once from the configured passphrase with PBKDF2-SHA256.
type AESSecretCipher struct {
	aead cipher.AEAD
}

// NewSecretCipher derives the AES key from the passphrase and prepares the
// AEAD. The passphrase comes from tracker.encryption_key in the config.
func NewSecretCipher(passphrase string) (*AESSecretCipher, error) {
	if passphrase == "" {
		return nil, ErrCipherKeyMissing
	}

	key := pbkdf2.Key([]byte(passphrase), keySalt, keyIterations, keyBytes, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &AESSecretCipher{aead: aead}, nil
}

// Encrypt encrypts the plaintext and returns base64(nonce + ciphertext + tag).
func (c *AESSecretCipher) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt decodes and decrypts a value produced by Encrypt.
func (c *AESSecretCipher) Decrypt(ciphertext string) (string, error) {
	sealed, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCiphertextInvalid, err)
	}

	nonceSize := c.aead.NonceSize()
	if len(sealed) < nonceSize {
		return "", fmt.Errorf("%w: shorter than nonce", ErrCiphertextInvalid)
	}

	nonce, data := sealed[:nonceSize], sealed[nonceSize:]
	plaintext, err := c.aead.Open(nil, nonce, data, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCiphertextInvalid, err)
	}
	return string(plaintext), nil
}

// Ensure implementation satisfies the interface
var _ SecretCipher = (*AESSecretCipher)(nil)
