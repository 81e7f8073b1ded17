// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package zkp implements the non-interactive sigma protocols used by
// the trustee protocol: Schnorr proofs of knowledge, Chaum–Pedersen
// equality of discrete logs, and the encryption proof of knowledge.
// All challenges are Fiat–Shamir, domain-separated by a caller label.
package zkp

import (
	"errors"
	"fmt"
	"io"

	"github.com/luxfi/braid/canonical"
	"github.com/luxfi/braid/crypto/elgamal"
	"github.com/luxfi/braid/crypto/group"
)

// ErrProofCheckFailed marks a proof that does not verify.
var ErrProofCheckFailed = errors.New("zkp: proof check failed")

// SchnorrProof proves knowledge of x with public = base^x.
type SchnorrProof struct {
	Commit   group.Element
	Response group.Scalar
}

// SchnorrProve proves knowledge of secret with public = base^secret.
// A nil base means the group generator.
func SchnorrProve(
	ctx group.Ctx,
	secret group.Scalar,
	public group.Element,
	base group.Element,
	label []byte,
	rand io.Reader,
) (SchnorrProof, error) {
	if base == nil {
		base = ctx.Generator()
	}
	k, err := ctx.RandomScalar(rand)
	if err != nil {
		return SchnorrProof{}, err
	}
	commit := ctx.Exp(base, k)
	c := ctx.HashToScalar(
		[]byte("braid/zkp/schnorr"), label,
		base.Bytes(), public.Bytes(), commit.Bytes(),
	)
	return SchnorrProof{
		Commit:   commit,
		Response: ctx.ScalarAdd(k, ctx.ScalarMul(c, secret)),
	}, nil
}

// SchnorrVerify checks base^response == commit * public^challenge.
func SchnorrVerify(
	ctx group.Ctx,
	public group.Element,
	base group.Element,
	proof SchnorrProof,
	label []byte,
) error {
	if base == nil {
		base = ctx.Generator()
	}
	c := ctx.HashToScalar(
		[]byte("braid/zkp/schnorr"), label,
		base.Bytes(), public.Bytes(), proof.Commit.Bytes(),
	)
	lhs := ctx.Exp(base, proof.Response)
	rhs := ctx.Mul(proof.Commit, ctx.Exp(public, c))
	if !lhs.Equal(rhs) {
		return fmt.Errorf("%w: schnorr", ErrProofCheckFailed)
	}
	return nil
}

// ChaumPedersenProof proves log_g1(A) = log_g2(B).
type ChaumPedersenProof struct {
	Commit1  group.Element
	Commit2  group.Element
	Response group.Scalar
}

// ChaumPedersenProve proves that a = g1^secret and b = g2^secret share
// the discrete log. A nil g1 means the group generator.
func ChaumPedersenProve(
	ctx group.Ctx,
	secret group.Scalar,
	a, b group.Element,
	g1, g2 group.Element,
	label []byte,
	rand io.Reader,
) (ChaumPedersenProof, error) {
	if g1 == nil {
		g1 = ctx.Generator()
	}
	k, err := ctx.RandomScalar(rand)
	if err != nil {
		return ChaumPedersenProof{}, err
	}
	t1 := ctx.Exp(g1, k)
	t2 := ctx.Exp(g2, k)
	c := ctx.HashToScalar(
		[]byte("braid/zkp/chaum-pedersen"), label,
		g1.Bytes(), g2.Bytes(), a.Bytes(), b.Bytes(), t1.Bytes(), t2.Bytes(),
	)
	return ChaumPedersenProof{
		Commit1:  t1,
		Commit2:  t2,
		Response: ctx.ScalarAdd(k, ctx.ScalarMul(c, secret)),
	}, nil
}

// ChaumPedersenVerify checks both commitment equations.
func ChaumPedersenVerify(
	ctx group.Ctx,
	a, b group.Element,
	g1, g2 group.Element,
	proof ChaumPedersenProof,
	label []byte,
) error {
	if g1 == nil {
		g1 = ctx.Generator()
	}
	c := ctx.HashToScalar(
		[]byte("braid/zkp/chaum-pedersen"), label,
		g1.Bytes(), g2.Bytes(), a.Bytes(), b.Bytes(),
		proof.Commit1.Bytes(), proof.Commit2.Bytes(),
	)
	lhs1 := ctx.Exp(g1, proof.Response)
	rhs1 := ctx.Mul(proof.Commit1, ctx.Exp(a, c))
	lhs2 := ctx.Exp(g2, proof.Response)
	rhs2 := ctx.Mul(proof.Commit2, ctx.Exp(b, c))
	if !lhs1.Equal(rhs1) || !lhs2.Equal(rhs2) {
		return fmt.Errorf("%w: chaum-pedersen", ErrProofCheckFailed)
	}
	return nil
}

// EncryptionProof proves knowledge of the randomness r of an ElGamal
// ciphertext (g^r, m*y^r), binding the full ciphertext into the
// challenge.
type EncryptionProof struct {
	Commit   group.Element
	Response group.Scalar
}

// EncryptionProve proves knowledge of r for ciphertext ct.
func EncryptionProve(
	ctx group.Ctx,
	r group.Scalar,
	ct elgamal.Ciphertext,
	label []byte,
	rand io.Reader,
) (EncryptionProof, error) {
	k, err := ctx.RandomScalar(rand)
	if err != nil {
		return EncryptionProof{}, err
	}
	commit := ctx.GenExp(k)
	c := ctx.HashToScalar(
		[]byte("braid/zkp/encryption-pok"), label,
		ct.GR.Bytes(), ct.MHR.Bytes(), commit.Bytes(),
	)
	return EncryptionProof{
		Commit:   commit,
		Response: ctx.ScalarAdd(k, ctx.ScalarMul(c, r)),
	}, nil
}

// EncryptionVerify checks g^response == commit * gr^challenge.
func EncryptionVerify(
	ctx group.Ctx,
	ct elgamal.Ciphertext,
	proof EncryptionProof,
	label []byte,
) error {
	c := ctx.HashToScalar(
		[]byte("braid/zkp/encryption-pok"), label,
		ct.GR.Bytes(), ct.MHR.Bytes(), proof.Commit.Bytes(),
	)
	lhs := ctx.GenExp(proof.Response)
	rhs := ctx.Mul(proof.Commit, ctx.Exp(ct.GR, c))
	if !lhs.Equal(rhs) {
		return fmt.Errorf("%w: encryption pok", ErrProofCheckFailed)
	}
	return nil
}

// PackChaumPedersen appends the proof's fixed-width encoding.
func PackChaumPedersen(p *canonical.Packer, proof ChaumPedersenProof) {
	p.PackFixedBytes(proof.Commit1.Bytes())
	p.PackFixedBytes(proof.Commit2.Bytes())
	p.PackFixedBytes(proof.Response.Bytes())
}

// UnpackChaumPedersen reads a fixed-width proof.
func UnpackChaumPedersen(ctx group.Ctx, u *canonical.Unpacker) ChaumPedersenProof {
	c1b := u.UnpackFixedBytes(ctx.ElementLen())
	c2b := u.UnpackFixedBytes(ctx.ElementLen())
	rb := u.UnpackFixedBytes(ctx.ScalarLen())
	if u.Err != nil {
		return ChaumPedersenProof{}
	}
	c1, err := ctx.DecodeElement(c1b)
	if err != nil {
		u.Err = err
		return ChaumPedersenProof{}
	}
	c2, err := ctx.DecodeElement(c2b)
	if err != nil {
		u.Err = err
		return ChaumPedersenProof{}
	}
	r, err := ctx.DecodeScalar(rb)
	if err != nil {
		u.Err = err
		return ChaumPedersenProof{}
	}
	return ChaumPedersenProof{Commit1: c1, Commit2: c2, Response: r}
}
