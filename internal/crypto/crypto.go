// Package crypto implements the field-level encryption used to protect
// memory text and metadata at rest. It derives a key from a passphrase
// with PBKDF2-HMAC-SHA256 and encrypts with an HMAC-SHA256 keystream in
// counter mode, authenticated by a second HMAC tag. This is
// defence-in-depth against casual inspection of the database file, not
// a substitute for OS-level disk encryption.
package crypto

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/binary"
	"io"

	"golang.org/x/crypto/pbkdf2"

	"github.com/sparkvibe-io/memorymesh/internal/merrors"
)

const (
	// KeyLength is the derived key size in bytes (AES-256-equivalent).
	KeyLength = 32

	// SaltLength is the persisted salt size in bytes.
	SaltLength = 16

	// NonceLength is the per-message nonce size in bytes.
	NonceLength = 16

	// TagLength is the authentication tag size in bytes (HMAC-SHA256).
	TagLength = 32

	// Iterations is the PBKDF2 work factor.
	Iterations = 100_000
)

// DeriveKey runs PBKDF2-HMAC-SHA256 over passphrase and salt, producing
// a KeyLength-byte key. salt must be SaltLength bytes.
func DeriveKey(passphrase string, salt []byte) []byte {
	return pbkdf2.Key([]byte(passphrase), salt, Iterations, KeyLength, sha256.New)
}

// NewSalt generates a fresh random salt, to be persisted once per
// store and reused on every subsequent open.
func NewSalt() ([]byte, error) {
	salt := make([]byte, SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, merrors.Wrap(merrors.IoError, "crypto.NewSalt", err)
	}
	return salt, nil
}

// Cipher encrypts and decrypts individual fields with a fixed key.
type Cipher struct {
	key []byte
}

// New builds a Cipher from a derived key. key must be KeyLength bytes.
func New(key []byte) *Cipher {
	k := make([]byte, len(key))
	copy(k, key)
	return &Cipher{key: k}
}

// Encrypt produces nonce || ciphertext || tag for plaintext. The
// ciphertext is the same length as plaintext; the record grows by
// NonceLength+TagLength bytes.
func (c *Cipher) Encrypt(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, NonceLength)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, merrors.Wrap(merrors.IoError, "crypto.Encrypt", err)
	}

	ciphertext := c.xorKeystream(nonce, plaintext)
	tag := c.tag(nonce, ciphertext)

	out := make([]byte, 0, NonceLength+len(ciphertext)+TagLength)
	out = append(out, nonce...)
	out = append(out, ciphertext...)
	out = append(out, tag...)
	return out, nil
}

// Decrypt verifies the tag in constant time and returns the plaintext.
// A mismatch or malformed record yields merrors.EncryptionError.
func (c *Cipher) Decrypt(record []byte) ([]byte, error) {
	if len(record) < NonceLength+TagLength {
		return nil, merrors.New(merrors.EncryptionError, "crypto.Decrypt", "record too short")
	}

	nonce := record[:NonceLength]
	ciphertext := record[NonceLength : len(record)-TagLength]
	wantTag := record[len(record)-TagLength:]

	gotTag := c.tag(nonce, ciphertext)
	if subtle.ConstantTimeCompare(gotTag, wantTag) != 1 {
		return nil, merrors.New(merrors.EncryptionError, "crypto.Decrypt", "tag mismatch")
	}

	return c.xorKeystream(nonce, ciphertext), nil
}

// tag computes HMAC-SHA256(key, nonce || ciphertext).
func (c *Cipher) tag(nonce, ciphertext []byte) []byte {
	mac := hmac.New(sha256.New, c.key)
	mac.Write(nonce)
	mac.Write(ciphertext)
	return mac.Sum(nil)
}

// xorKeystream XORs data against an HMAC-SHA256 counter-mode keystream
// derived from nonce. Encryption and decryption are the same operation.
func (c *Cipher) xorKeystream(nonce, data []byte) []byte {
	out := make([]byte, len(data))
	block := make([]byte, 8)

	var counter uint64
	for offset := 0; offset < len(data); counter++ {
		binary.BigEndian.PutUint64(block, counter)

		mac := hmac.New(sha256.New, c.key)
		mac.Write(nonce)
		mac.Write(block)
		keystream := mac.Sum(nil)

		n := copy(out[offset:], keystream)
		for i := 0; i < n; i++ {
			out[offset+i] ^= data[offset+i]
		}
		offset += n
	}
	return out
}
