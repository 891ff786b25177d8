// Package crypto encrypts chat provider credentials at rest. The key is
// derived per machine, so a config file copied to another host does not
// leak the credentials stored in it.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ErrInvalidCiphertext is returned when a ciphertext cannot be authenticated
// or decrypted, including ciphertexts produced under another machine's key.
var ErrInvalidCiphertext = errors.New("invalid ciphertext")

const (
	keySize  = 32 // AES-256
	saltSize = 32
)

// Encryptor seals and opens credential strings with AES-256-GCM.
type Encryptor struct {
	key []byte
}

// NewEncryptor creates an Encryptor keyed to this machine. The key combines
// the hostname with a random salt kept under the config directory; both must
// match for decryption to succeed.
func NewEncryptor() (*Encryptor, error) {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown-host"
	}

	salt, err := loadOrCreateSalt()
	if err != nil {
		return nil, fmt.Errorf("failed to derive encryption key: %w", err)
	}

	sum := sha256.Sum256([]byte(hostname + ":" + string(salt)))
	return &Encryptor{key: sum[:]}, nil
}

// NewEncryptorWithKey creates an Encryptor from an explicit 32-byte key.
func NewEncryptorWithKey(key []byte) (*Encryptor, error) {
	if len(key) != keySize {
		return nil, errors.New("key must be 32 bytes for AES-256")
	}
	return &Encryptor{key: key}, nil
}

// aead builds the AES-GCM cipher over the derived key.
func (e *Encryptor) aead() (cipher.AEAD, error) {
	block, err := aes.NewCipher(e.key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}

// Encrypt seals the plaintext and returns it base64-encoded, nonce first.
// An empty plaintext stays empty so optional credentials round-trip cleanly.
func (e *Encryptor) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	gcm, err := e.aead()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a base64-encoded ciphertext produced by Encrypt.
func (e *Encryptor) Decrypt(ciphertext string) (string, error) {
	if ciphertext == "" {
		return "", nil
	}

	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("failed to decode ciphertext: %w", err)
	}

	gcm, err := e.aead()
	if err != nil {
		return "", err
	}

	if len(data) < gcm.NonceSize() {
		return "", ErrInvalidCiphertext
	}
	nonce, sealed := data[:gcm.NonceSize()], data[gcm.NonceSize():]

	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", ErrInvalidCiphertext
	}
	return string(plaintext), nil
}

// loadOrCreateSalt reads the salt file under ~/.moneta, generating it on
// first use with owner-only permissions.
func loadOrCreateSalt() ([]byte, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}
	saltFile := filepath.Join(home, ".moneta", ".salt")

	if salt, err := os.ReadFile(saltFile); err == nil && len(salt) == saltSize {
		return salt, nil
	}

	if err := os.MkdirAll(filepath.Dir(saltFile), 0700); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	if err := os.WriteFile(saltFile, salt, 0600); err != nil {
		return nil, fmt.Errorf("failed to write salt file: %w", err)
	}
	return salt, nil
}
