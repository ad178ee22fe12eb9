// Package crypto encrypts credential values before they are written to the database.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ericfitz/oauthreg/internal/slogging"
)

const (
	encryptedPrefix = "ENC:"
	formatVersion   = "v1"
	keySize         = 32
)

// ErrDecryptionFailed is returned when neither configured key opens a value
var ErrDecryptionFailed = errors.New("value could not be decrypted with current or previous key")

// ValueEncryptor seals strings with AES-256-GCM. Sealed values have the form
// ENC:v1:<context id>:<unix time>:<base64 nonce+ciphertext+tag>.
// A nil or disabled encryptor passes values through unchanged.
type ValueEncryptor struct {
	currentKey  []byte
	previousKey []byte
	contextID   int
	now         func() time.Time
}

// NewValueEncryptor builds an encryptor from hex-encoded keys. An empty
// currentKeyHex returns nil, which stores values in plaintext.
// previousKeyHex is only used to open values sealed before a key rotation.
func NewValueEncryptor(currentKeyHex, previousKeyHex string, contextID int) (*ValueEncryptor, error) {
	if currentKeyHex == "" {
		if previousKeyHex != "" {
			return nil, fmt.Errorf("previous encryption key configured without a current key")
		}
		return nil, nil
	}

	current, err := DecodeHexKey(currentKeyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid encryption key: %w", err)
	}

	var previous []byte
	if previousKeyHex != "" {
		previous, err = DecodeHexKey(previousKeyHex)
		if err != nil {
			return nil, fmt.Errorf("invalid previous encryption key: %w", err)
		}
	}

	return NewValueEncryptorFromKeys(current, previous, contextID)
}

// NewValueEncryptorFromKeys builds an encryptor from raw 32-byte keys.
// contextID defaults to 1.
func NewValueEncryptorFromKeys(currentKey, previousKey []byte, contextID int) (*ValueEncryptor, error) {
	if len(currentKey) != keySize {
		return nil, fmt.Errorf("current key must be %d bytes, got %d", keySize, len(currentKey))
	}
	if previousKey != nil && len(previousKey) != keySize {
		return nil, fmt.Errorf("previous key must be %d bytes, got %d", keySize, len(previousKey))
	}
	if contextID <= 0 {
		contextID = 1
	}
	return &ValueEncryptor{
		currentKey:  currentKey,
		previousKey: previousKey,
		contextID:   contextID,
		now:         time.Now,
	}, nil
}

// Enabled reports whether values are sealed
func (e *ValueEncryptor) Enabled() bool {
	return e != nil && e.currentKey != nil
}

// HasPreviousKey reports whether a rotation key is configured
func (e *ValueEncryptor) HasPreviousKey() bool {
	return e != nil && e.previousKey != nil
}

// ContextID identifies the current key generation in sealed values
func (e *ValueEncryptor) ContextID() int {
	if e == nil {
		return 0
	}
	return e.contextID
}

// Encrypt seals plaintext with the current key
func (e *ValueEncryptor) Encrypt(plaintext string) (string, error) {
	if !e.Enabled() {
		return plaintext, nil
	}

	sealed, err := encryptAESGCM(e.currentKey, []byte(plaintext))
	if err != nil {
		return "", fmt.Errorf("encryption failed: %w", err)
	}

	return fmt.Sprintf("%s%s:%d:%d:%s", encryptedPrefix, formatVersion, e.contextID, e.now().Unix(),
		base64.StdEncoding.EncodeToString(sealed)), nil
}

// Decrypt opens a sealed value, trying the current key and then the previous
// key. Values without the ENC: prefix are returned unchanged, so rows written
// before encryption was enabled stay readable.
func (e *ValueEncryptor) Decrypt(value string) (string, error) {
	if !IsEncrypted(value) {
		return value, nil
	}
	if !e.Enabled() {
		return "", fmt.Errorf("%w: no encryption key configured", ErrDecryptionFailed)
	}

	parts := strings.SplitN(value, ":", 5)
	if len(parts) != 5 || parts[1] != formatVersion {
		return "", fmt.Errorf("invalid encrypted value format")
	}

	data, err := base64.StdEncoding.DecodeString(parts[4])
	if err != nil {
		return "", fmt.Errorf("failed to decode encrypted value: %w", err)
	}

	if plaintext, err := decryptAESGCM(e.currentKey, data); err == nil {
		return string(plaintext), nil
	}
	if e.previousKey != nil {
		if plaintext, err := decryptAESGCM(e.previousKey, data); err == nil {
			slogging.Get().Debug("Decrypted value sealed under context %s with the previous key", parts[2])
			return string(plaintext), nil
		}
	}

	return "", ErrDecryptionFailed
}

// NeedsRotation reports whether value is plaintext or sealed under an older context
func (e *ValueEncryptor) NeedsRotation(value string) bool {
	if !e.Enabled() {
		return false
	}
	if !IsEncrypted(value) {
		return true
	}
	parts := strings.SplitN(value, ":", 4)
	return len(parts) < 3 || parts[2] != fmt.Sprint(e.contextID)
}

// IsEncrypted reports whether value carries the ENC: prefix
func IsEncrypted(value string) bool {
	return strings.HasPrefix(value, encryptedPrefix)
}

// DecodeHexKey decodes a 64 character hex key
func DecodeHexKey(hexKey string) ([]byte, error) {
	key, err := hex.DecodeString(strings.TrimSpace(hexKey))
	if err != nil {
		return nil, fmt.Errorf("key must be hex-encoded: %w", err)
	}
	if len(key) != keySize {
		return nil, fmt.Errorf("key must be %d bytes (%d hex chars), got %d bytes", keySize, keySize*2, len(key))
	}
	return key, nil
}

// encryptAESGCM returns nonce + ciphertext + tag
func encryptAESGCM(key, plaintext []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func decryptAESGCM(key, data []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return nil, fmt.Errorf("ciphertext too short")
	}
	return gcm.Open(nil, data[:nonceSize], data[nonceSize:], nil)
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
