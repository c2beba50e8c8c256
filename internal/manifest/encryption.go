package manifest

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/crypto/pbkdf2"

	"restore-chain/internal/errors"
)

const (
	keySize          = 32
	saltSize         = 16
	pbkdf2Iterations = 100000
)

// Encryptor seals manifest payloads with AES-256-GCM.
// With a passphrase key source every payload carries its own random salt
// ahead of the nonce, and the key is derived with PBKDF2-SHA256.
type Encryptor struct {
	config EncryptionConfig
	// keyFunc overrides key lookup for env and file sources
	keyFunc func() ([]byte, error)
}

// NewEncryptor creates an encryptor for config
func NewEncryptor(config EncryptionConfig) *Encryptor {
	return &Encryptor{config: config}
}

// Enabled reports whether payloads are encrypted
func (e *Encryptor) Enabled() bool {
	return e.config.Enabled
}

// Algorithm returns the cipher name recorded in envelopes
func (e *Encryptor) Algorithm() string {
	if !e.config.Enabled {
		return "NONE"
	}
	return "AES-256-GCM"
}

// Encrypt seals data. Disabled encryption returns data unchanged.
func (e *Encryptor) Encrypt(data []byte) ([]byte, error) {
	if !e.config.Enabled {
		return data, nil
	}

	var salt []byte
	if e.config.KeySource == "passphrase" {
		salt = make([]byte, saltSize)
		if _, err := io.ReadFull(rand.Reader, salt); err != nil {
			return nil, encryptionError("failed to generate salt", err)
		}
	}

	gcm, err := e.aead(salt)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, encryptionError("failed to generate nonce", err)
	}

	out := make([]byte, 0, len(salt)+len(nonce)+len(data)+gcm.Overhead())
	out = append(out, salt...)
	out = append(out, nonce...)
	return gcm.Seal(out, nonce, data, nil), nil
}

// Decrypt opens data produced by Encrypt
func (e *Encryptor) Decrypt(data []byte) ([]byte, error) {
	if !e.config.Enabled {
		return data, nil
	}

	var salt []byte
	if e.config.KeySource == "passphrase" {
		if len(data) < saltSize {
			return nil, encryptionError("encrypted data too short", nil)
		}
		salt, data = data[:saltSize], data[saltSize:]
	}

	gcm, err := e.aead(salt)
	if err != nil {
		return nil, err
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return nil, encryptionError("encrypted data too short", nil)
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, encryptionError("failed to decrypt data", err)
	}
	return plaintext, nil
}

func (e *Encryptor) aead(salt []byte) (cipher.AEAD, error) {
	key, err := e.key(salt)
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, encryptionError("failed to create AES cipher", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, encryptionError("failed to create GCM cipher", err)
	}
	return gcm, nil
}

func (e *Encryptor) key(salt []byte) ([]byte, error) {
	if e.config.KeySource == "passphrase" {
		return DeriveKey(e.config.Passphrase, salt), nil
	}
	if e.keyFunc != nil {
		return e.keyFunc()
	}

	switch e.config.KeySource {
	case "env":
		return LoadKeyFromEnv(e.config.KeyEnvVar)
	case "file":
		return LoadKeyFromFile(e.config.KeyPath)
	default:
		return nil, encryptionError(fmt.Sprintf("unsupported key source: %s", e.config.KeySource), nil)
	}
}

// DeriveKey derives an AES-256 key from a passphrase with PBKDF2-SHA256
func DeriveKey(passphrase string, salt []byte) []byte {
	return pbkdf2.Key([]byte(passphrase), salt, pbkdf2Iterations, keySize, sha256.New)
}

// GenerateKey returns a random 256-bit key
func GenerateKey() ([]byte, error) {
	key := make([]byte, keySize)
	if _, err := rand.Read(key); err != nil {
		return nil, encryptionError("failed to generate encryption key", err)
	}
	return key, nil
}

// LoadKeyFromEnv reads a hex encoded key from an environment variable
func LoadKeyFromEnv(envVar string) ([]byte, error) {
	hexKey := os.Getenv(envVar)
	if hexKey == "" {
		return nil, encryptionError(fmt.Sprintf("environment variable %s not set", envVar), nil)
	}
	return decodeKey(hexKey)
}

// LoadKeyFromFile reads a key file holding either 32 raw bytes or 64 hex characters
func LoadKeyFromFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, encryptionError("failed to read key file", err)
	}
	if len(data) == keySize {
		return data, nil
	}
	return decodeKey(strings.TrimSpace(string(data)))
}

// SaveKeyToFile writes key hex encoded with owner-only permissions
func SaveKeyToFile(key []byte, path string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(hex.EncodeToString(key)), 0600); err != nil {
		return encryptionError("failed to save key to file", err)
	}
	return nil
}

// ValidateKey rejects keys of the wrong size and all-zero or all-one keys
func ValidateKey(key []byte) error {
	if len(key) != keySize {
		return encryptionError("key must be 32 bytes for AES-256", nil)
	}

	allZeros, allOnes := true, true
	for _, b := range key {
		if b != 0 {
			allZeros = false
		}
		if b != 0xFF {
			allOnes = false
		}
	}
	if allZeros || allOnes {
		return encryptionError("key has no entropy", nil)
	}
	return nil
}

func decodeKey(hexKey string) ([]byte, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, encryptionError("failed to decode hex key", err)
	}
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	return key, nil
}

func encryptionError(message string, cause error) error {
	return errors.NewAppError(errors.ErrorTypeValidation, message, cause).
		WithContext("component", "encryption")
}
