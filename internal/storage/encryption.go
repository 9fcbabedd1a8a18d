package storage

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
)

const (
	// EncryptionMagicHeader is prepended to encrypted exports for identification.
	EncryptionMagicHeader = "CTBLENC1"

	// Default Argon2 parameters (RFC 9106 recommendations)
	defaultArgon2Time    = 1
	defaultArgon2Memory  = 64 * 1024 // 64 MB
	defaultArgon2Threads = 4
	defaultArgon2KeyLen  = 32 // AES-256

	saltLength = 32
)

var (
	// ErrPasswordRequired is returned when encrypted data is read without a password.
	ErrPasswordRequired = errors.New("password required")

	// ErrDecryptFailed is returned for a wrong password or corrupted data.
	ErrDecryptFailed = errors.New("decryption failed (wrong password or corrupted data)")
)

// EncryptionConfig holds configuration for encryption operations.
type EncryptionConfig struct {
	// Password is the encryption passphrase.
	Password string

	// Argon2Time is the number of Argon2 iterations.
	// Default: 1
	Argon2Time uint32

	// Argon2Memory is the amount of memory to use in KB.
	// Default: 64 MB (65536 KB)
	Argon2Memory uint32

	// Argon2Threads is the number of threads to use.
	// Default: 4
	Argon2Threads uint8
}

// DefaultEncryptionConfig returns encryption config with secure defaults.
func DefaultEncryptionConfig(password string) *EncryptionConfig {
	return &EncryptionConfig{
		Password:      password,
		Argon2Time:    defaultArgon2Time,
		Argon2Memory:  defaultArgon2Memory,
		Argon2Threads: defaultArgon2Threads,
	}
}

// deriveKey derives an encryption key from a password using Argon2id.
func deriveKey(salt []byte, config *EncryptionConfig) []byte {
	return argon2.IDKey(
		[]byte(config.Password),
		salt,
		config.Argon2Time,
		config.Argon2Memory,
		config.Argon2Threads,
		defaultArgon2KeyLen,
	)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}

// Encrypt encrypts data with AES-256-GCM under a key derived from the
// password. The result is: magic header || salt || nonce || ciphertext.
func Encrypt(plaintext []byte, config *EncryptionConfig) ([]byte, error) {
	if config == nil || config.Password == "" {
		return nil, ErrPasswordRequired
	}

	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	gcm, err := newGCM(deriveKey(salt, config))
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	out := make([]byte, 0, len(EncryptionMagicHeader)+len(salt)+len(nonce)+len(plaintext)+gcm.Overhead())
	out = append(out, EncryptionMagicHeader...)
	out = append(out, salt...)
	out = append(out, nonce...)
	return gcm.Seal(out, nonce, plaintext, nil), nil
}

// Decrypt reverses Encrypt.
func Decrypt(data []byte, config *EncryptionConfig) ([]byte, error) {
	if !IsEncrypted(data) {
		return nil, fmt.Errorf("data is not encrypted or has wrong format")
	}
	if config == nil || config.Password == "" {
		return nil, ErrPasswordRequired
	}
	data = data[len(EncryptionMagicHeader):]

	// salt + nonce + GCM tag
	if len(data) < saltLength+12+16 {
		return nil, fmt.Errorf("%w: encrypted data too short", ErrDecryptFailed)
	}
	salt := data[:saltLength]
	data = data[saltLength:]

	gcm, err := newGCM(deriveKey(salt, config))
	if err != nil {
		return nil, err
	}

	nonce := data[:gcm.NonceSize()]
	plaintext, err := gcm.Open(nil, nonce, data[gcm.NonceSize():], nil)
	if err != nil {
		return nil, ErrDecryptFailed
	}
	return plaintext, nil
}

// IsEncrypted reports whether data starts with the encryption header.
func IsEncrypted(data []byte) bool {
	return bytes.HasPrefix(data, []byte(EncryptionMagicHeader))
}
