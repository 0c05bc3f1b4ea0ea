package crypto

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
)

// SenderToken maps (secret, display name) to a stable pseudonym. The same
// pair always gives the same token; the server cannot invert it.
func SenderToken(secret, displayName string) (string, error) {
	root, err := DeriveRootKey([]byte(secret))
	if err != nil {
		return "", err
	}
	defer wipe(root)
	mac := hmac.New(sha256.New, root)
	mac.Write([]byte(displayName))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil)), nil
}

// GenerateSecret returns 32 random bytes, base64 encoded, suitable as a
// pair room's shared secret.
func GenerateSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// EncodeB64 and DecodeB64 are the wire encoding for ciphertext and nonces.
func EncodeB64(b []byte) string { return base64.StdEncoding.EncodeToString(b) }

func DecodeB64(s string) ([]byte, error) { return base64.StdEncoding.DecodeString(s) }
