// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package symm provides the symmetric sealing used by trustees: an
// XChaCha20-Poly1305 AEAD for a trustee's own storage, and ECIES-style
// sealing to a group public key for per-recipient DKG shares.
//
// The default profile binds every ciphertext to caller-supplied
// additional authenticated data (configuration identifier and sender
// identity). SealPlain/OpenPlain omit the AAD for constrained
// environments; ciphertexts sealed that way are NOT bound to their
// protocol context and can be replayed across configurations.
package symm

import (
	"crypto/sha512"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"github.com/luxfi/braid/crypto/group"
)

// KeySize is the symmetric key size in bytes.
const KeySize = chacha20poly1305.KeySize

// ErrDecryptFailed marks an AEAD open failure.
var ErrDecryptFailed = errors.New("symm: decryption failed")

// Key is a trustee's symmetric storage key.
type Key [KeySize]byte

// NewKey samples a fresh symmetric key.
func NewKey(rand io.Reader) (Key, error) {
	var k Key
	if _, err := io.ReadFull(rand, k[:]); err != nil {
		return Key{}, fmt.Errorf("sampling key: %w", err)
	}
	return k, nil
}

// Seal encrypts plaintext bound to aad. The returned blob is
// nonce || ciphertext.
func Seal(key Key, plaintext, aad []byte, rand io.Reader) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key[:])
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := io.ReadFull(rand, nonce); err != nil {
		return nil, fmt.Errorf("sampling nonce: %w", err)
	}
	return aead.Seal(nonce, nonce, plaintext, aad), nil
}

// Open decrypts a blob produced by Seal with the same aad.
func Open(key Key, blob, aad []byte) ([]byte, error) {
	if len(blob) < chacha20poly1305.NonceSizeX+chacha20poly1305.Overhead {
		return nil, fmt.Errorf("%w: blob too short", ErrDecryptFailed)
	}
	aead, err := chacha20poly1305.NewX(key[:])
	if err != nil {
		return nil, err
	}
	nonce, ct := blob[:chacha20poly1305.NonceSizeX], blob[chacha20poly1305.NonceSizeX:]
	pt, err := aead.Open(nil, nonce, ct, aad)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecryptFailed, err)
	}
	return pt, nil
}

// SealPlain seals without AAD. See the package note on the weakened
// context binding.
func SealPlain(key Key, plaintext []byte, rand io.Reader) ([]byte, error) {
	return Seal(key, plaintext, nil, rand)
}

// OpenPlain opens a blob sealed by SealPlain.
func OpenPlain(key Key, blob []byte) ([]byte, error) {
	return Open(key, blob, nil)
}

// Sealed is an ECIES ciphertext: the ephemeral public element and the
// AEAD blob under the derived key.
type Sealed struct {
	Ephemeral group.Element
	Blob      []byte
}

// SealTo seals plaintext to the holder of the secret for pk: an
// ephemeral exchange (g^e, pk^e) derives the AEAD key through HKDF.
func SealTo(
	ctx group.Ctx,
	pk group.Element,
	plaintext, aad []byte,
	rand io.Reader,
) (Sealed, error) {
	e, err := ctx.RandomScalar(rand)
	if err != nil {
		return Sealed{}, err
	}
	eph := ctx.GenExp(e)
	shared := ctx.Exp(pk, e)
	key, err := deriveKey(shared, eph, pk)
	if err != nil {
		return Sealed{}, err
	}
	blob, err := Seal(key, plaintext, aad, rand)
	if err != nil {
		return Sealed{}, err
	}
	return Sealed{Ephemeral: eph, Blob: blob}, nil
}

// OpenFrom opens an ECIES ciphertext with the recipient secret key.
func OpenFrom(ctx group.Ctx, sk group.Scalar, sealed Sealed, aad []byte) ([]byte, error) {
	shared := ctx.Exp(sealed.Ephemeral, sk)
	key, err := deriveKey(shared, sealed.Ephemeral, ctx.GenExp(sk))
	if err != nil {
		return nil, err
	}
	return Open(key, sealed.Blob, aad)
}

func deriveKey(shared, eph, pk group.Element) (Key, error) {
	salt := append(append([]byte{}, eph.Bytes()...), pk.Bytes()...)
	r := hkdf.New(sha512.New, shared.Bytes(), salt, []byte("braid/symm/ecies"))
	var k Key
	if _, err := io.ReadFull(r, k[:]); err != nil {
		return Key{}, fmt.Errorf("deriving key: %w", err)
	}
	return k, nil
}
