package crypto

import (
	"errors"
	"strings"
	"testing"
)

func testCipher(t *testing.T) *CredentialCipher {
	t.Helper()
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	cc, err := NewCredentialCipher(key)
	if err != nil {
		t.Fatalf("NewCredentialCipher: %v", err)
	}
	return cc
}

func TestSealOpen_RoundTrip(t *testing.T) {
	cc := testCipher(t)

	plaintext := `{"access_key":"AKIA...","secret":"abc123"}`
	sealed, err := cc.Seal(plaintext)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if sealed == plaintext {
		t.Fatal("sealed output equals plaintext")
	}

	opened, err := cc.Open(sealed)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if opened != plaintext {
		t.Errorf("round trip = %q, want %q", opened, plaintext)
	}
}

func TestSeal_EmptyPlaintext(t *testing.T) {
	cc := testCipher(t)
	sealed, err := cc.Seal("")
	if err != nil || sealed != "" {
		t.Fatalf("Seal(\"\") = %q, %v; want \"\", nil", sealed, err)
	}
}

func TestSeal_NonceMakesOutputUnique(t *testing.T) {
	cc := testCipher(t)
	a, _ := cc.Seal("same input")
	b, _ := cc.Seal("same input")
	if a == b {
		t.Error("two seals of identical plaintext produced identical ciphertext")
	}
}

func TestOpen_TamperedCiphertext(t *testing.T) {
	cc := testCipher(t)
	sealed, _ := cc.Seal("secret")

	tampered := strings.Replace(sealed, sealed[4:5], "A", 1)
	if tampered == sealed {
		tampered = strings.Replace(sealed, sealed[4:5], "B", 1)
	}

	if _, err := cc.Open(tampered); err == nil {
		t.Fatal("tampered ciphertext decrypted without error")
	}
}

func TestOpen_WrongKey(t *testing.T) {
	a := testCipher(t)
	b := testCipher(t)

	sealed, _ := a.Seal("secret")
	if _, err := b.Open(sealed); !errors.Is(err, ErrDecryptionFailed) {
		t.Fatalf("Open with wrong key = %v, want ErrDecryptionFailed", err)
	}
}

func TestOpen_GarbageInput(t *testing.T) {
	cc := testCipher(t)
	if _, err := cc.Open("!!not base64!!"); !errors.Is(err, ErrCiphertextCorrupted) {
		t.Fatalf("Open(garbage) = %v, want ErrCiphertextCorrupted", err)
	}
	if _, err := cc.Open("c2hvcnQ="); !errors.Is(err, ErrCiphertextCorrupted) {
		t.Fatalf("Open(short) = %v, want ErrCiphertextCorrupted", err)
	}
}

func TestNewCredentialCipher_KeyLength(t *testing.T) {
	if _, err := NewCredentialCipher(make([]byte, 16)); !errors.Is(err, ErrKeyLengthInvalid) {
		t.Fatalf("16-byte key accepted: %v", err)
	}
}

func TestDeriveCredentialCipher(t *testing.T) {
	salt, err := GenerateSalt(16)
	if err != nil {
		t.Fatalf("GenerateSalt: %v", err)
	}

	cc, err := DeriveCredentialCipher("passphrase", salt, 10000)
	if err != nil {
		t.Fatalf("DeriveCredentialCipher: %v", err)
	}

	sealed, _ := cc.Seal("secret")

	// Same passphrase and salt derive the same key.
	again, _ := DeriveCredentialCipher("passphrase", salt, 10000)
	opened, err := again.Open(sealed)
	if err != nil || opened != "secret" {
		t.Fatalf("re-derived cipher Open = %q, %v", opened, err)
	}

	if _, err := DeriveCredentialCipher("passphrase", salt[:8], 10000); !errors.Is(err, ErrSaltTooShort) {
		t.Fatalf("short salt accepted: %v", err)
	}
}
