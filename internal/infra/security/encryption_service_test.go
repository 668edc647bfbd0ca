package security

import (
	"strings"
	"testing"
)

func TestEncryptionRoundTrip(t *testing.T) {
	svc, err := NewEncryptionService("0123456789abcdef0123456789abcdef")
	if err != nil {
		t.Fatalf("NewEncryptionService: %v", err)
	}

	ct, err := svc.Encrypt("hunter2")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if strings.Contains(ct, "hunter2") {
		t.Fatal("ciphertext leaks plaintext")
	}
	pt, err := svc.Decrypt(ct)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if pt != "hunter2" {
		t.Fatalf("round trip = %q", pt)
	}

	// Nonce per value: same plaintext never encrypts to the same ciphertext.
	ct2, _ := svc.Encrypt("hunter2")
	if ct == ct2 {
		t.Fatal("two encryptions produced identical ciphertext")
	}
}

func TestEncryptionRejectsBadKeyAndCiphertext(t *testing.T) {
	if _, err := NewEncryptionService("short"); err == nil {
		t.Fatal("expected key length error")
	}
	svc, _ := NewEncryptionService("0123456789abcdef")
	if _, err := svc.Decrypt("not-base64!!!"); err == nil {
		t.Fatal("expected decode error")
	}
	if _, err := svc.Decrypt("AAAA"); err == nil {
		t.Fatal("expected too-short error")
	}
}
