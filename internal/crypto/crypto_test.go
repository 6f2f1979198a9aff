package crypto

import (
	"bytes"
	"testing"

	"github.com/sparkvibe-io/memorymesh/internal/merrors"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	salt, err := NewSalt()
	if err != nil {
		t.Fatalf("NewSalt() error = %v", err)
	}
	key := DeriveKey("correct horse battery staple", salt)
	c := New(key)

	plaintext := []byte("the user prefers dark mode")
	record, err := c.Encrypt(plaintext)
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	if len(record) != NonceLength+len(plaintext)+TagLength {
		t.Fatalf("record length = %d, want %d", len(record), NonceLength+len(plaintext)+TagLength)
	}

	got, err := c.Decrypt(record)
	if err != nil {
		t.Fatalf("Decrypt() error = %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Errorf("Decrypt() = %q, want %q", got, plaintext)
	}
}

func TestEncryptEmptyPlaintext(t *testing.T) {
	c := New(DeriveKey("pw", make([]byte, SaltLength)))
	record, err := c.Encrypt(nil)
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	got, err := c.Decrypt(record)
	if err != nil {
		t.Fatalf("Decrypt() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Decrypt() = %q, want empty", got)
	}
}

func TestDecryptWrongKeyFails(t *testing.T) {
	salt := make([]byte, SaltLength)
	right := New(DeriveKey("right-passphrase", salt))
	wrong := New(DeriveKey("wrong-passphrase", salt))

	record, err := right.Encrypt([]byte("secret project codename"))
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}

	_, err = wrong.Decrypt(record)
	if merrors.CodeOf(err) != merrors.EncryptionError {
		t.Errorf("Decrypt() with wrong key error = %v, want EncryptionError", err)
	}
}

func TestDecryptCorruptedCiphertextFails(t *testing.T) {
	c := New(DeriveKey("pw", make([]byte, SaltLength)))
	record, err := c.Encrypt([]byte("some memory text"))
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	record[len(record)/2] ^= 0xFF

	_, err = c.Decrypt(record)
	if merrors.CodeOf(err) != merrors.EncryptionError {
		t.Errorf("Decrypt() with corrupted ciphertext error = %v, want EncryptionError", err)
	}
}

func TestDecryptTooShortRecordFails(t *testing.T) {
	c := New(DeriveKey("pw", make([]byte, SaltLength)))
	_, err := c.Decrypt([]byte("short"))
	if merrors.CodeOf(err) != merrors.EncryptionError {
		t.Errorf("Decrypt() on short record error = %v, want EncryptionError", err)
	}
}

func TestDeriveKeyDeterministic(t *testing.T) {
	salt := make([]byte, SaltLength)
	a := DeriveKey("same-passphrase", salt)
	b := DeriveKey("same-passphrase", salt)
	if !bytes.Equal(a, b) {
		t.Errorf("DeriveKey not deterministic for same passphrase+salt")
	}
	c := DeriveKey("different-passphrase", salt)
	if bytes.Equal(a, c) {
		t.Errorf("DeriveKey produced same key for different passphrases")
	}
}
