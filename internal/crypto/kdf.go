package crypto

import (
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	KeySize = 32

	rootKeyLabel = "hush-e2e-root"
)

// rootKeySalt is constant and public. Determinism is the point.
var rootKeySalt = make([]byte, 32)

// DeriveRootKey turns high-entropy secret material into a 32-byte root key.
// Identical input always yields identical output.
func DeriveRootKey(secretMaterial []byte) ([]byte, error) {
	if len(secretMaterial) == 0 {
		return nil, fmt.Errorf("%w: empty secret", ErrInvalidKeyMaterial)
	}
	hk := hkdf.New(sha256.New, secretMaterial, rootKeySalt, []byte(rootKeyLabel))
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(hk, key); err != nil {
		return nil, err
	}
	return key, nil
}

// SenderRootKey is the root of one sender's chain inside a room: the shared
// secret bound to that sender's token.
func SenderRootKey(secret, senderToken string) ([]byte, error) {
	if secret == "" || senderToken == "" {
		return nil, fmt.Errorf("%w: secret and sender token required", ErrInvalidKeyMaterial)
	}
	return DeriveRootKey([]byte(secret + ":" + senderToken))
}
