package crypto

import (
	"bytes"
	"errors"
	"testing"
)

func TestDeriveRootKeyDeterministic(t *testing.T) {
	secrets := []string{"a", "correct horse battery staple", "c2VjcmV0LWJ5dGVz:token"}
	for _, s := range secrets {
		k1, err := DeriveRootKey([]byte(s))
		if err != nil {
			t.Fatalf("DeriveRootKey(%q): %v", s, err)
		}
		k2, _ := DeriveRootKey([]byte(s))
		if !bytes.Equal(k1, k2) {
			t.Fatalf("DeriveRootKey(%q) not deterministic", s)
		}
		if len(k1) != KeySize {
			t.Fatalf("root key length = %d, want %d", len(k1), KeySize)
		}
	}

	a, _ := DeriveRootKey([]byte("one"))
	b, _ := DeriveRootKey([]byte("two"))
	if bytes.Equal(a, b) {
		t.Fatal("distinct secrets produced the same root key")
	}
}

func TestDeriveRootKeyRejectsEmpty(t *testing.T) {
	if _, err := DeriveRootKey(nil); !errors.Is(err, ErrInvalidKeyMaterial) {
		t.Fatalf("expected ErrInvalidKeyMaterial, got %v", err)
	}
	if _, err := SenderRootKey("secret", ""); !errors.Is(err, ErrInvalidKeyMaterial) {
		t.Fatalf("expected ErrInvalidKeyMaterial, got %v", err)
	}
}

func TestAEADRoundTrip(t *testing.T) {
	key, _ := DeriveRootKey([]byte("room secret"))
	plaintext := []byte(`{"sender":"alice","text":"hello"}`)

	ct, iv, err := Encrypt(plaintext, key)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if len(iv) != NonceSize {
		t.Fatalf("iv length = %d, want %d", len(iv), NonceSize)
	}

	pt, err := Decrypt(ct, iv, key)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if !bytes.Equal(pt, plaintext) {
		t.Fatal("decrypted != plaintext")
	}

	// Fresh nonce per call.
	_, iv2, _ := Encrypt(plaintext, key)
	if bytes.Equal(iv, iv2) {
		t.Fatal("nonce reused across calls")
	}

	ct[0] ^= 0x01
	if _, err := Decrypt(ct, iv, key); !errors.Is(err, ErrAuthenticationFailed) {
		t.Fatalf("expected ErrAuthenticationFailed on tampered ciphertext, got %v", err)
	}
}

func TestDecryptWrongKey(t *testing.T) {
	k1, _ := DeriveRootKey([]byte("one"))
	k2, _ := DeriveRootKey([]byte("two"))
	ct, iv, _ := Encrypt([]byte("hi"), k1)
	if _, err := Decrypt(ct, iv, k2); !errors.Is(err, ErrAuthenticationFailed) {
		t.Fatalf("expected ErrAuthenticationFailed, got %v", err)
	}
	if _, err := Decrypt([]byte("short"), iv, k1); !errors.Is(err, ErrAuthenticationFailed) {
		t.Fatalf("expected ErrAuthenticationFailed for short ciphertext, got %v", err)
	}
}

func TestAdvance(t *testing.T) {
	key, _ := DeriveRootKey([]byte("chain"))
	iv := bytes.Repeat([]byte{7}, NonceSize)

	next, err := Advance(key, iv)
	if err != nil {
		t.Fatalf("Advance: %v", err)
	}
	again, _ := Advance(key, iv)
	if !bytes.Equal(next, again) {
		t.Fatal("Advance not deterministic")
	}
	if bytes.Equal(next, key) {
		t.Fatal("Advance returned the same key")
	}

	otherIV := bytes.Repeat([]byte{8}, NonceSize)
	other, _ := Advance(key, otherIV)
	if bytes.Equal(next, other) {
		t.Fatal("different nonces produced the same next key")
	}

	if _, err := Advance(key[:16], iv); !errors.Is(err, ErrInvalidKeyMaterial) {
		t.Fatalf("expected ErrInvalidKeyMaterial for short key, got %v", err)
	}
	if _, err := Advance(key, iv[:4]); !errors.Is(err, ErrInvalidKeyMaterial) {
		t.Fatalf("expected ErrInvalidKeyMaterial for short nonce, got %v", err)
	}
}

func TestChainSequentialReplay(t *testing.T) {
	root, _ := SenderRootKey("secret", "token-a")
	sender, _ := NewChain(root)

	var sent []Sealed
	for _, m := range []string{"m0", "m1", "m2"} {
		s, err := sender.Seal([]byte(m))
		if err != nil {
			t.Fatalf("Seal: %v", err)
		}
		if err := sender.Advance(s.IV); err != nil {
			t.Fatalf("Advance: %v", err)
		}
		sent = append(sent, s)
	}
	if sender.Step() != 3 {
		t.Fatalf("sender step = %d, want 3", sender.Step())
	}

	observer, _ := NewChain(root)
	for i, s := range sent {
		if s.Step != uint64(i) {
			t.Fatalf("sealed step = %d, want %d", s.Step, i)
		}
		pt, err := observer.Open(s.Ciphertext, s.IV)
		if err != nil {
			t.Fatalf("Open %d: %v", i, err)
		}
		if string(pt) != []string{"m0", "m1", "m2"}[i] {
			t.Fatalf("message %d mismatch: %q", i, pt)
		}
	}
	if !bytes.Equal(sender.Key(), observer.Key()) {
		t.Fatal("observer chain diverged from sender chain")
	}
}

func TestChainWrongStepFails(t *testing.T) {
	root, _ := SenderRootKey("secret", "token-a")
	sender, _ := NewChain(root)

	s0, _ := sender.Seal([]byte("m0"))
	sender.Advance(s0.IV)
	s1, _ := sender.Seal([]byte("m1"))

	// Opening step 1 with the step 0 key fails, every time.
	for i := 0; i < 2; i++ {
		observer, _ := NewChain(root)
		if _, err := observer.Open(s1.Ciphertext, s1.IV); !errors.Is(err, ErrAuthenticationFailed) {
			t.Fatalf("expected ErrAuthenticationFailed, got %v", err)
		}
	}
}

func TestChainOpenAdvancesOnFailure(t *testing.T) {
	root, _ := SenderRootKey("secret", "token-a")
	sender, _ := NewChain(root)

	s0, _ := sender.Seal([]byte("m0"))
	sender.Advance(s0.IV)
	s1, _ := sender.Seal([]byte("m1"))

	observer, _ := NewChain(root)
	corrupted := append([]byte(nil), s0.Ciphertext...)
	corrupted[len(corrupted)-1] ^= 0xff
	if _, err := observer.Open(corrupted, s0.IV); !errors.Is(err, ErrAuthenticationFailed) {
		t.Fatalf("expected ErrAuthenticationFailed, got %v", err)
	}
	pt, err := observer.Open(s1.Ciphertext, s1.IV)
	if err != nil {
		t.Fatalf("message after a corrupted one should still open: %v", err)
	}
	if string(pt) != "m1" {
		t.Fatalf("got %q, want m1", pt)
	}
}

func TestSenderToken(t *testing.T) {
	a1, err := SenderToken("secret", "alice")
	if err != nil {
		t.Fatalf("SenderToken: %v", err)
	}
	a2, _ := SenderToken("secret", "alice")
	if a1 != a2 {
		t.Fatal("SenderToken not deterministic")
	}

	b, _ := SenderToken("secret", "bob")
	other, _ := SenderToken("other secret", "alice")
	if a1 == b || a1 == other {
		t.Fatal("distinct inputs produced the same token")
	}
	if _, err := SenderToken("", "alice"); !errors.Is(err, ErrInvalidKeyMaterial) {
		t.Fatalf("expected ErrInvalidKeyMaterial, got %v", err)
	}
}

func TestGenerateSecret(t *testing.T) {
	s1, err := GenerateSecret()
	if err != nil {
		t.Fatalf("GenerateSecret: %v", err)
	}
	raw, err := DecodeB64(s1)
	if err != nil || len(raw) != 32 {
		t.Fatalf("secret should be 32 base64 bytes, got %d (%v)", len(raw), err)
	}
	s2, _ := GenerateSecret()
	if s1 == s2 {
		t.Fatal("GenerateSecret repeated")
	}
}

func BenchmarkChainReplay(b *testing.B) {
	root, _ := SenderRootKey("secret", "token")
	sender, _ := NewChain(root)
	msgs := make([]Sealed, 100)
	for i := range msgs {
		msgs[i], _ = sender.Seal(make([]byte, 256))
		sender.Advance(msgs[i].IV)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c, _ := NewChain(root)
		for _, m := range msgs {
			_, _ = c.Open(m.Ciphertext, m.IV)
		}
	}
}
