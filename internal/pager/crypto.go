package pager

import (
	"crypto/aes"
	"crypto/cipher"

	"github.com/zeebo/blake3"

	"github.com/basaltdb/sqlitecore/internal/dberr"
)

// CryptoTransform decrypts a page-encrypted database. Each page's reserved
// trailer (file header offset 20, ReservedSpace) holds the AEAD
// authentication tag; the rest of the page is ciphertext. The nonce is
// never stored - it's derived per page from the page number and a salt
// fixed at open time, so two pages never reuse a nonce under the same key.
//
// When the caller supplies a verification hash (Options.EncryptionKeyHash),
// key correctness is checked once, at open, by VerifyKey. Without one the
// key is not checked up front, and a wrong key surfaces as a CryptoFailure
// error when the first page read fails authentication.
type CryptoTransform struct {
	aead cipher.AEAD
	salt [16]byte
}

// NewCryptoTransform derives an AES-GCM AEAD from key; the key length (16,
// 24 or 32 bytes) selects AES-128, AES-192 or AES-256 (the key must
// already be the right length for AES - callers deriving a key from a
// passphrase are expected to run it through a KDF before calling this).
func NewCryptoTransform(key []byte, salt [16]byte) (*CryptoTransform, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, &dberr.CryptoFailureError{Reason: "invalid key length for AES", Err: err}
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, &dberr.CryptoFailureError{Reason: "failed to construct AEAD", Err: err}
	}
	return &CryptoTransform{aead: aead, salt: salt}, nil
}

// VerifyKey checks key against a verification hash recorded when the
// database was created (analogous to SQLCipher's HMAC-salt check): an
// unkeyed BLAKE3 hash of the salt followed by the raw key bytes. A mismatch means the
// key is wrong and is reported once, at open, rather than as per-page
// decrypt failures.
func VerifyKey(key []byte, salt [16]byte, expectedHash []byte) error {
	got := verificationHash(salt, key)
	if len(expectedHash) != len(got) {
		return &dberr.CryptoFailureError{Reason: "stored verification hash has unexpected length"}
	}
	for i := range got {
		if got[i] != expectedHash[i] {
			return &dberr.CryptoFailureError{Reason: "key verification hash mismatch"}
		}
	}
	return nil
}

// pgnoBytes big-endian encodes a page number, used both as nonce-derivation
// input and as AEAD associated data.
func pgnoBytes(pgno Pgno) [4]byte {
	var pb [4]byte
	pb[0] = byte(pgno >> 24)
	pb[1] = byte(pgno >> 16)
	pb[2] = byte(pgno >> 8)
	pb[3] = byte(pgno)
	return pb
}

// verificationHash computes the BLAKE3(salt || key) hash VerifyKey checks
// against a caller-supplied expected value.
func verificationHash(salt [16]byte, key []byte) []byte {
	h := blake3.New()
	h.Write(salt[:])
	h.Write(key)
	return h.Sum(nil)
}

// nonce derives a 12-byte GCM nonce from the salt and page number so that
// every page under one open database uses a distinct nonce without ever
// storing one.
func (c *CryptoTransform) nonce(pgno Pgno) []byte {
	h := blake3.New()
	h.Write(c.salt[:])
	pb := pgnoBytes(pgno)
	h.Write(pb[:])
	return h.Sum(nil)[:c.aead.NonceSize()]
}

// Apply decrypts one page. tagSize is the AEAD's overhead (16 bytes for
// GCM); the page's reserved trailer must be at least that large. The page
// number is bound in as AEAD associated data (not just folded into the
// nonce) so that swapping two ciphertext pages under the same key fails
// authentication instead of silently decrypting under the wrong identity.
func (c *CryptoTransform) Apply(pgno Pgno, raw []byte) ([]byte, error) {
	tagSize := c.aead.Overhead()
	if err := requireLen(pgno, raw, tagSize, "page too short to hold AEAD tag"); err != nil {
		return nil, err
	}

	ciphertext := raw[:len(raw)-tagSize]
	tag := raw[len(raw)-tagSize:]
	sealed := append(append([]byte{}, ciphertext...), tag...)

	pb := pgnoBytes(pgno)
	plain, err := c.aead.Open(nil, c.nonce(pgno), sealed, pb[:])
	if err != nil {
		return nil, &dberr.CryptoFailureError{Page: uint32(pgno), Reason: "AEAD authentication failed", Err: err}
	}

	// Restore the page to its original size: the reserved trailer carried
	// the tag, not plaintext, so pad back out to len(raw).
	out := make([]byte, len(raw))
	copy(out, plain)
	return out, nil
}
