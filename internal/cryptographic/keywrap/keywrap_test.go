package keywrap

import (
	"bytes"
	"encoding/hex"
	"errors"
	"testing"
)

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	if err != nil {
		t.Fatalf("bad hex %q: %v", s, err)
	}
	return b
}

// Vectors from RFC 3394 section 4.
func TestWrapVectors(t *testing.T) {
	cases := []struct {
		name      string
		kek       string
		plaintext string
		wrapped   string
	}{
		{
			name:      "128-bit data, 128-bit kek",
			kek:       "000102030405060708090A0B0C0D0E0F",
			plaintext: "00112233445566778899AABBCCDDEEFF",
			wrapped:   "1FA68B0A8112B447AEF34BD8FB5A7B829D3E862371D2CFE5",
		},
		{
			name:      "256-bit data, 256-bit kek",
			kek:       "000102030405060708090A0B0C0D0E0F101112131415161718191A1B1C1D1E1F",
			plaintext: "00112233445566778899AABBCCDDEEFF000102030405060708090A0B0C0D0E0F",
			wrapped:   "28C9F404C4B810F4CBCCB35CFB87F8263F5786E2D80ED326CBC7F0E71A99F43BFB988B9B7A02DD21",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			kek := mustHex(t, tc.kek)
			plaintext := mustHex(t, tc.plaintext)

			wrapped, err := Wrap(kek, plaintext)
			if err != nil {
				t.Fatalf("wrap: %v", err)
			}
			if got := hex.EncodeToString(wrapped); got != hexLower(tc.wrapped) {
				t.Fatalf("unexpected wrap output: %s", got)
			}

			unwrapped, err := Unwrap(kek, wrapped)
			if err != nil {
				t.Fatalf("unwrap: %v", err)
			}
			if !bytes.Equal(unwrapped, plaintext) {
				t.Fatalf("round trip mismatch: %x", unwrapped)
			}
		})
	}
}

func TestUnwrapRejectsWrongKEK(t *testing.T) {
	kek := mustHex(t, "000102030405060708090A0B0C0D0E0F")
	other := mustHex(t, "0F0102030405060708090A0B0C0D0E0F")
	plaintext := mustHex(t, "00112233445566778899AABBCCDDEEFF")

	wrapped, err := Wrap(kek, plaintext)
	if err != nil {
		t.Fatalf("wrap: %v", err)
	}

	if _, err := Unwrap(other, wrapped); !errors.Is(err, ErrIntegrity) {
		t.Fatalf("expected ErrIntegrity, got %v", err)
	}
}

func TestUnwrapRejectsTamperedCiphertext(t *testing.T) {
	kek := mustHex(t, "000102030405060708090A0B0C0D0E0F")
	plaintext := mustHex(t, "00112233445566778899AABBCCDDEEFF")

	wrapped, err := Wrap(kek, plaintext)
	if err != nil {
		t.Fatalf("wrap: %v", err)
	}
	wrapped[9] ^= 0x01

	if _, err := Unwrap(kek, wrapped); !errors.Is(err, ErrIntegrity) {
		t.Fatalf("expected ErrIntegrity, got %v", err)
	}
}

func TestWrapRejectsBadLengths(t *testing.T) {
	kek := mustHex(t, "000102030405060708090A0B0C0D0E0F")

	if _, err := Wrap(kek, make([]byte, 12)); err == nil {
		t.Fatal("expected error for 12-byte plaintext")
	}
	if _, err := Wrap(kek, make([]byte, 8)); err == nil {
		t.Fatal("expected error for 8-byte plaintext")
	}
	if _, err := Unwrap(kek, make([]byte, 16)); err == nil {
		t.Fatal("expected error for 16-byte ciphertext")
	}
}

func hexLower(s string) string {
	b, _ := hex.DecodeString(s)
	return hex.EncodeToString(b)
}
