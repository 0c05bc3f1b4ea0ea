// Package crypto holds the client-side primitives for end-to-end encrypted rooms.
//
// Contents
//
//   - DeriveRootKey: HKDF-SHA256 with a fixed salt and a dedicated label, so
//     every participant arrives at the same root key without coordination
//   - Advance: the hash ratchet, key_{n+1} = HMAC-SHA256(key_n, iv_n)
//   - Encrypt/Decrypt: ChaCha20-Poly1305 with a fresh random nonce per message
//   - SenderToken: pseudonymous per (secret, display name) grouping key
//   - Chain: one sender's ratchet position (key + step)
//
// The server never sees any of this material. It stores ciphertext, nonces
// and sender tokens and cannot recover a plaintext or a display name.
package crypto
