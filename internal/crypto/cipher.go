package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
)

const nonceSize = 12

// ErrInvalidCiphertext indicates a token that is not in the expected
// base64(nonce|ciphertext) form.
var ErrInvalidCiphertext = errors.New("invalid ciphertext token")

// ErrDecryptionFailed indicates an authentication-tag mismatch: the key
// is wrong or the token was tampered with. Decryption fails closed and
// never yields corrupted plaintext.
var ErrDecryptionFailed = errors.New("decryption failed: authentication tag mismatch")

// Encrypt seals plaintext under key with AES-256-GCM and returns an
// opaque token: base64url(nonce | ciphertext). Each field is encrypted
// independently as its own token with a fresh nonce.
func Encrypt(key []byte, plaintext string) (string, error) {
	aead, err := newAEAD(key)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a token produced by Encrypt. Any integrity failure
// returns ErrDecryptionFailed.
func Decrypt(key []byte, token string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", ErrInvalidCiphertext
	}
	if len(raw) < nonceSize {
		return "", ErrInvalidCiphertext
	}

	aead, err := newAEAD(key)
	if err != nil {
		return "", err
	}

	plaintext, err := aead.Open(nil, raw[:nonceSize], raw[nonceSize:], nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	return string(plaintext), nil
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	return cipher.NewGCM(block)
}
