// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package sign wraps the Ed25519 keys that authenticate every board
// message. Public keys have one canonical 32-byte encoding; signer
// positions are resolved by by-value comparison against the
// configuration's trustee list.
package sign

import (
	"crypto/ed25519"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

const (
	// PublicKeyLen is the canonical public key width.
	PublicKeyLen = ed25519.PublicKeySize
	// SignatureLen is the detached signature width.
	SignatureLen = ed25519.SignatureSize
)

// ErrSignatureInvalid marks a failed signature verification.
var ErrSignatureInvalid = errors.New("sign: signature invalid")

// Signature is a detached Ed25519 signature.
type Signature [SignatureLen]byte

// PublicKey is a canonical 32-byte Ed25519 public key.
type PublicKey [PublicKeyLen]byte

// SigningKey is a private signing key.
type SigningKey struct {
	k ed25519.PrivateKey
}

// GenerateKey samples a fresh signing key.
func GenerateKey(rand io.Reader) (SigningKey, error) {
	_, priv, err := ed25519.GenerateKey(rand)
	if err != nil {
		return SigningKey{}, err
	}
	return SigningKey{k: priv}, nil
}

// Sign signs msg.
func (s SigningKey) Sign(msg []byte) Signature {
	var sig Signature
	copy(sig[:], ed25519.Sign(s.k, msg))
	return sig
}

// Public returns the corresponding public key.
func (s SigningKey) Public() PublicKey {
	var pk PublicKey
	copy(pk[:], s.k.Public().(ed25519.PublicKey))
	return pk
}

// Verify checks sig over msg.
func (p PublicKey) Verify(msg []byte, sig Signature) error {
	if !ed25519.Verify(ed25519.PublicKey(p[:]), msg, sig[:]) {
		return ErrSignatureInvalid
	}
	return nil
}

// DERBase64 returns the base64 of the PKIX DER encoding, the form the
// wire format carries for senders.
func (p PublicKey) DERBase64() (string, error) {
	der, err := x509.MarshalPKIXPublicKey(ed25519.PublicKey(p[:]))
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(der), nil
}

// ParseDERBase64 parses the wire form back into a public key.
func ParseDERBase64(s string) (PublicKey, error) {
	der, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return PublicKey{}, fmt.Errorf("%w: %w", ErrSignatureInvalid, err)
	}
	parsed, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return PublicKey{}, fmt.Errorf("%w: %w", ErrSignatureInvalid, err)
	}
	edpk, ok := parsed.(ed25519.PublicKey)
	if !ok || len(edpk) != PublicKeyLen {
		return PublicKey{}, fmt.Errorf("%w: not an ed25519 key", ErrSignatureInvalid)
	}
	var pk PublicKey
	copy(pk[:], edpk)
	return pk, nil
}
