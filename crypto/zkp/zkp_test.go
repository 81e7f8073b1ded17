// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package zkp

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/braid/crypto/elgamal"
	"github.com/luxfi/braid/crypto/group/ristretto"
)

func TestSchnorr(t *testing.T) {
	require := require.New(t)
	ctx := ristretto.New()

	secret, err := ctx.RandomScalar(rand.Reader)
	require.NoError(err)
	public := ctx.GenExp(secret)

	proof, err := SchnorrProve(ctx, secret, public, nil, []byte("label"), rand.Reader)
	require.NoError(err)
	require.NoError(SchnorrVerify(ctx, public, nil, proof, []byte("label")))

	// Wrong label.
	require.ErrorIs(SchnorrVerify(ctx, public, nil, proof, []byte("other")), ErrProofCheckFailed)

	// Wrong public value.
	other, err := ctx.RandomScalar(rand.Reader)
	require.NoError(err)
	require.ErrorIs(SchnorrVerify(ctx, ctx.GenExp(other), nil, proof, []byte("label")), ErrProofCheckFailed)
}

func TestSchnorrCustomBase(t *testing.T) {
	require := require.New(t)
	ctx := ristretto.New()

	base, err := ctx.HashToElement([]byte("base"))
	require.NoError(err)
	secret, err := ctx.RandomScalar(rand.Reader)
	require.NoError(err)
	public := ctx.Exp(base, secret)

	proof, err := SchnorrProve(ctx, secret, public, base, nil, rand.Reader)
	require.NoError(err)
	require.NoError(SchnorrVerify(ctx, public, base, proof, nil))
	require.ErrorIs(SchnorrVerify(ctx, public, nil, proof, nil), ErrProofCheckFailed)
}

func TestChaumPedersen(t *testing.T) {
	require := require.New(t)
	ctx := ristretto.New()

	secret, err := ctx.RandomScalar(rand.Reader)
	require.NoError(err)
	g2, err := ctx.RandomElement(rand.Reader)
	require.NoError(err)

	a := ctx.GenExp(secret)
	b := ctx.Exp(g2, secret)

	proof, err := ChaumPedersenProve(ctx, secret, a, b, nil, g2, []byte("cp"), rand.Reader)
	require.NoError(err)
	require.NoError(ChaumPedersenVerify(ctx, a, b, nil, g2, proof, []byte("cp")))

	// Unequal discrete logs must fail.
	other, err := ctx.RandomScalar(rand.Reader)
	require.NoError(err)
	bad := ctx.Exp(g2, other)
	badProof, err := ChaumPedersenProve(ctx, secret, a, bad, nil, g2, []byte("cp"), rand.Reader)
	require.NoError(err)
	require.ErrorIs(ChaumPedersenVerify(ctx, a, bad, nil, g2, badProof, []byte("cp")), ErrProofCheckFailed)

	// Label mismatch.
	require.ErrorIs(ChaumPedersenVerify(ctx, a, b, nil, g2, proof, []byte("cq")), ErrProofCheckFailed)
}

func TestEncryptionPoK(t *testing.T) {
	require := require.New(t)
	ctx := ristretto.New()

	kp, err := elgamal.GenerateKeyPair(ctx, rand.Reader)
	require.NoError(err)
	m, err := ctx.EncodePlaintext([]byte("pok"))
	require.NoError(err)
	ct, r, err := elgamal.Encrypt(ctx, kp.Public, m, rand.Reader)
	require.NoError(err)

	proof, err := EncryptionProve(ctx, r, ct, []byte("ballot"), rand.Reader)
	require.NoError(err)
	require.NoError(EncryptionVerify(ctx, ct, proof, []byte("ballot")))

	// A different ciphertext with the same proof must fail.
	ct2, _, err := elgamal.Encrypt(ctx, kp.Public, m, rand.Reader)
	require.NoError(err)
	require.ErrorIs(EncryptionVerify(ctx, ct2, proof, []byte("ballot")), ErrProofCheckFailed)
}
