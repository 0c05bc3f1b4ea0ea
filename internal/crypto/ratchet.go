package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"fmt"
	"runtime"
)

// Advance computes the next chain key from the current key and the nonce used
// at this step. The previous key cannot be recovered from the result.
func Advance(currentKey, iv []byte) ([]byte, error) {
	if len(currentKey) != KeySize {
		return nil, fmt.Errorf("%w: ratchet key must be %d bytes", ErrInvalidKeyMaterial, KeySize)
	}
	if len(iv) != NonceSize {
		return nil, fmt.Errorf("%w: nonce must be %d bytes", ErrInvalidKeyMaterial, NonceSize)
	}
	mac := hmac.New(sha256.New, currentKey)
	mac.Write(iv)
	return mac.Sum(nil), nil
}

// Chain tracks one sender's position in its ratchet. It is not safe for
// concurrent use; owners serialise access.
type Chain struct {
	key  []byte
	step uint64
}

// NewChain starts a chain at step 0 from a root key.
func NewChain(rootKey []byte) (*Chain, error) {
	if len(rootKey) != KeySize {
		return nil, fmt.Errorf("%w: root key must be %d bytes", ErrInvalidKeyMaterial, KeySize)
	}
	return &Chain{key: append([]byte(nil), rootKey...)}, nil
}

// Step is the next step this chain will seal or open.
func (c *Chain) Step() uint64 { return c.step }

// Key returns a copy of the current key.
func (c *Chain) Key() []byte { return append([]byte(nil), c.key...) }

// Sealed is one encrypted message as it travels to the server.
type Sealed struct {
	Ciphertext []byte
	IV         []byte
	Step       uint64
}

// Seal encrypts plaintext under the current key without moving the chain.
// Callers Advance with the returned IV once the message has been accepted,
// so a failed submission can be retried at the same step.
func (c *Chain) Seal(plaintext []byte) (Sealed, error) {
	ct, iv, err := Encrypt(plaintext, c.key)
	if err != nil {
		return Sealed{}, err
	}
	return Sealed{Ciphertext: ct, IV: iv, Step: c.step}, nil
}

// Open decrypts a message at the current step and moves the chain forward.
// The chain moves even when authentication fails: the nonce alone decides the
// next key, so one corrupted message does not stall the sender's later ones.
func (c *Chain) Open(ciphertext, iv []byte) ([]byte, error) {
	pt, openErr := Decrypt(ciphertext, iv, c.key)
	if err := c.Advance(iv); err != nil {
		return nil, err
	}
	return pt, openErr
}

// Advance moves the chain one step using the nonce of the message just sent
// or received. The old key is wiped.
func (c *Chain) Advance(iv []byte) error {
	next, err := Advance(c.key, iv)
	if err != nil {
		return err
	}
	wipe(c.key)
	c.key = next
	c.step++
	return nil
}

// JumpTo sets the step counter without touching the key. Replay uses it when
// stored history skips a step number.
func (c *Chain) JumpTo(step uint64) { c.step = step }

//go:noinline
func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
	runtime.KeepAlive(&b)
}
