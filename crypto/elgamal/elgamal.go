// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package elgamal implements ElGamal encryption over an abstract
// prime-order group.
package elgamal

import (
	"fmt"
	"io"

	"github.com/luxfi/braid/canonical"
	"github.com/luxfi/braid/crypto/group"
)

// Ciphertext is an ElGamal ciphertext (g^r, m*y^r).
type Ciphertext struct {
	GR  group.Element
	MHR group.Element
}

// Equal reports component-wise equality.
func (c Ciphertext) Equal(o Ciphertext) bool {
	return c.GR.Equal(o.GR) && c.MHR.Equal(o.MHR)
}

// Pack appends the fixed-width encoding gr || mhr.
func (c Ciphertext) Pack(p *canonical.Packer) {
	p.PackFixedBytes(c.GR.Bytes())
	p.PackFixedBytes(c.MHR.Bytes())
}

// UnpackCiphertext reads a fixed-width ciphertext.
func UnpackCiphertext(ctx group.Ctx, u *canonical.Unpacker) Ciphertext {
	gr := u.UnpackFixedBytes(ctx.ElementLen())
	mhr := u.UnpackFixedBytes(ctx.ElementLen())
	if u.Err != nil {
		return Ciphertext{}
	}
	g, err := ctx.DecodeElement(gr)
	if err != nil {
		u.Err = err
		return Ciphertext{}
	}
	m, err := ctx.DecodeElement(mhr)
	if err != nil {
		u.Err = err
		return Ciphertext{}
	}
	return Ciphertext{GR: g, MHR: m}
}

// KeyPair is a group key pair (x, g^x).
type KeyPair struct {
	Secret group.Scalar
	Public group.Element
}

// GenerateKeyPair samples a fresh key pair.
func GenerateKeyPair(ctx group.Ctx, rand io.Reader) (KeyPair, error) {
	x, err := ctx.RandomScalar(rand)
	if err != nil {
		return KeyPair{}, err
	}
	return KeyPair{Secret: x, Public: ctx.GenExp(x)}, nil
}

// Encrypt encrypts m under public key y with fresh randomness,
// returning the ciphertext and the randomness used.
func Encrypt(ctx group.Ctx, y, m group.Element, rand io.Reader) (Ciphertext, group.Scalar, error) {
	r, err := ctx.RandomScalar(rand)
	if err != nil {
		return Ciphertext{}, nil, err
	}
	return EncryptWith(ctx, y, m, r), r, nil
}

// EncryptWith encrypts m under y with the given randomness.
func EncryptWith(ctx group.Ctx, y, m group.Element, r group.Scalar) Ciphertext {
	return Ciphertext{
		GR:  ctx.GenExp(r),
		MHR: ctx.Mul(m, ctx.Exp(y, r)),
	}
}

// ReEncrypt multiplies in a fresh encryption of the identity:
// (gr*g^r', mhr*y^r').
func ReEncrypt(ctx group.Ctx, y group.Element, c Ciphertext, r group.Scalar) Ciphertext {
	return Ciphertext{
		GR:  ctx.Mul(c.GR, ctx.GenExp(r)),
		MHR: ctx.Mul(c.MHR, ctx.Exp(y, r)),
	}
}

// DecryptWithFactor recovers m = mhr / d given the combined decryption
// factor d = gr^x.
func DecryptWithFactor(ctx group.Ctx, c Ciphertext, d group.Element) (group.Element, error) {
	inv, err := ctx.Inv(d)
	if err != nil {
		return nil, fmt.Errorf("invalid decryption factor: %w", err)
	}
	return ctx.Mul(c.MHR, inv), nil
}

// Decrypt recovers m directly from the secret key.
func Decrypt(ctx group.Ctx, c Ciphertext, x group.Scalar) (group.Element, error) {
	return DecryptWithFactor(ctx, c, ctx.Exp(c.GR, x))
}
