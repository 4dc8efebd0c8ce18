package roomkey

import (
	"encoding/base64"
	"testing"

	"vibe_chat/internal/cryptographic/dh"
)

type keyPair struct {
	privPKCS8 string
	pubSPKI   string
}

func newKeyPair(t *testing.T) keyPair {
	t.Helper()
	priv, err := dh.NewP256KeyPair()
	if err != nil {
		t.Fatalf("keypair: %v", err)
	}
	privPKCS8, err := dh.ExportPrivateKey(priv)
	if err != nil {
		t.Fatalf("export private: %v", err)
	}
	pubSPKI, err := dh.ExportPublicKey(priv.PublicKey())
	if err != nil {
		t.Fatalf("export public: %v", err)
	}
	return keyPair{privPKCS8: privPKCS8, pubSPKI: pubSPKI}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	rk, err := Generate()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	for _, plaintext := range []string{"", "hi", "привет, едем?", "a longer message with some detail about where to meet and when"} {
		ciphertext, nonce, err := EncryptMessage(plaintext, rk)
		if err != nil {
			t.Fatalf("encrypt %q: %v", plaintext, err)
		}

		got, ok := DecryptMessage(ciphertext, nonce, rk)
		if !ok {
			t.Fatalf("decrypt %q failed", plaintext)
		}
		if got != plaintext {
			t.Fatalf("round trip mismatch: got %q want %q", got, plaintext)
		}
	}
}

func TestDecryptWithWrongKeyFails(t *testing.T) {
	k1, _ := Generate()
	k2, _ := Generate()

	ciphertext, nonce, err := EncryptMessage("secret", k1)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	if _, ok := DecryptMessage(ciphertext, nonce, k2); ok {
		t.Fatal("decrypt under a different key must fail")
	}
}

func TestDecryptRejectsInvalidNonceLength(t *testing.T) {
	rk, _ := Generate()
	ciphertext, _, err := EncryptMessage("hello", rk)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	// 10 bytes is not a valid nonce; the message is undecryptable, not a panic.
	shortNonce := base64.StdEncoding.EncodeToString(make([]byte, 10))
	if _, ok := DecryptMessage(ciphertext, shortNonce, rk); ok {
		t.Fatal("10-byte nonce must be treated as undecryptable")
	}

	if _, ok := DecryptMessage(ciphertext, "not base64!!", rk); ok {
		t.Fatal("malformed nonce must be treated as undecryptable")
	}
	if _, ok := DecryptMessage("not base64!!", shortNonce, rk); ok {
		t.Fatal("malformed ciphertext must be treated as undecryptable")
	}
}

func TestNonceUniqueness(t *testing.T) {
	rk, _ := Generate()

	seen := make(map[string]bool, 10000)
	for i := 0; i < 10000; i++ {
		_, nonce, err := EncryptMessage("x", rk)
		if err != nil {
			t.Fatalf("encrypt #%d: %v", i, err)
		}
		if seen[nonce] {
			t.Fatalf("nonce repeated after %d messages", i)
		}
		seen[nonce] = true
	}
}

func TestSealUnsealPairwiseSymmetry(t *testing.T) {
	alice := newKeyPair(t)
	bob := newKeyPair(t)

	rk, err := Generate()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	// Sealed with (A priv, B pub), unsealed with (B priv, A pub).
	sealed, err := Seal(rk, alice.privPKCS8, bob.pubSPKI)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	got, err := Unseal(sealed, bob.privPKCS8, alice.pubSPKI)
	if err != nil {
		t.Fatalf("unseal: %v", err)
	}
	if got.Export() != rk.Export() {
		t.Fatal("unsealed key differs from original")
	}
}

func TestUnsealWithWrongKeyPairFails(t *testing.T) {
	alice := newKeyPair(t)
	bob := newKeyPair(t)
	eve := newKeyPair(t)

	rk, _ := Generate()
	sealed, err := Seal(rk, alice.privPKCS8, bob.pubSPKI)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}

	if _, err := Unseal(sealed, eve.privPKCS8, alice.pubSPKI); err == nil {
		t.Fatal("unseal with an unrelated private key must fail")
	}
}

func TestImportValidatesLength(t *testing.T) {
	if _, err := Import(base64.StdEncoding.EncodeToString(make([]byte, 16))); err == nil {
		t.Fatal("expected error for 16-byte key")
	}
	if _, err := Import("***"); err == nil {
		t.Fatal("expected error for invalid base64")
	}

	rk, _ := Generate()
	back, err := Import(rk.Export())
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if back.Export() != rk.Export() {
		t.Fatal("export/import round trip mismatch")
	}
}
