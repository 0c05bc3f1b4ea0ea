package crypto

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

const NonceSize = chacha20poly1305.NonceSize

// Encrypt seals plaintext under key with a fresh random nonce.
func Encrypt(plaintext, key []byte) (ciphertext, iv []byte, err error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidKeyMaterial, err)
	}
	iv = make([]byte, NonceSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, nil, err
	}
	return aead.Seal(nil, iv, plaintext, nil), iv, nil
}

// Decrypt opens ciphertext. A wrong key, a wrong nonce or a modified
// ciphertext all fail with ErrAuthenticationFailed.
func Decrypt(ciphertext, iv, key []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKeyMaterial, err)
	}
	if len(iv) != NonceSize || len(ciphertext) < aead.Overhead() {
		return nil, ErrAuthenticationFailed
	}
	pt, err := aead.Open(nil, iv, ciphertext, nil)
	if err != nil {
		return nil, ErrAuthenticationFailed
	}
	return pt, nil
}
