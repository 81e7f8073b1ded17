// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package elgamal

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/braid/canonical"
	"github.com/luxfi/braid/crypto/group/ristretto"
)

func TestEncryptDecrypt(t *testing.T) {
	require := require.New(t)
	ctx := ristretto.New()

	kp, err := GenerateKeyPair(ctx, rand.Reader)
	require.NoError(err)

	m, err := ctx.EncodePlaintext([]byte("hello"))
	require.NoError(err)

	ct, _, err := Encrypt(ctx, kp.Public, m, rand.Reader)
	require.NoError(err)

	recovered, err := Decrypt(ctx, ct, kp.Secret)
	require.NoError(err)
	require.True(m.Equal(recovered))
}

func TestDecryptWithFactor(t *testing.T) {
	require := require.New(t)
	ctx := ristretto.New()

	kp, err := GenerateKeyPair(ctx, rand.Reader)
	require.NoError(err)
	m, err := ctx.EncodePlaintext([]byte{42})
	require.NoError(err)
	ct, _, err := Encrypt(ctx, kp.Public, m, rand.Reader)
	require.NoError(err)

	factor := ctx.Exp(ct.GR, kp.Secret)
	recovered, err := DecryptWithFactor(ctx, ct, factor)
	require.NoError(err)
	require.True(m.Equal(recovered))

	// A wrong factor recovers a different element.
	wrong, err := ctx.RandomElement(rand.Reader)
	require.NoError(err)
	garbled, err := DecryptWithFactor(ctx, ct, wrong)
	require.NoError(err)
	require.False(m.Equal(garbled))
}

func TestReEncrypt(t *testing.T) {
	require := require.New(t)
	ctx := ristretto.New()

	kp, err := GenerateKeyPair(ctx, rand.Reader)
	require.NoError(err)
	m, err := ctx.EncodePlaintext([]byte("re-encrypt"))
	require.NoError(err)
	ct, _, err := Encrypt(ctx, kp.Public, m, rand.Reader)
	require.NoError(err)

	r, err := ctx.RandomScalar(rand.Reader)
	require.NoError(err)
	ct2 := ReEncrypt(ctx, kp.Public, ct, r)

	// Different ciphertext, same plaintext.
	require.False(ct.Equal(ct2))
	recovered, err := Decrypt(ctx, ct2, kp.Secret)
	require.NoError(err)
	require.True(m.Equal(recovered))
}

func TestCiphertextCodec(t *testing.T) {
	require := require.New(t)
	ctx := ristretto.New()

	kp, err := GenerateKeyPair(ctx, rand.Reader)
	require.NoError(err)
	m, err := ctx.EncodePlaintext([]byte("codec"))
	require.NoError(err)
	ct, _, err := Encrypt(ctx, kp.Public, m, rand.Reader)
	require.NoError(err)

	p := canonical.NewPacker(64)
	ct.Pack(p)
	require.NoError(p.Err)

	u := canonical.NewUnpacker(p.Bytes)
	decoded := UnpackCiphertext(ctx, u)
	require.NoError(u.Done())
	require.True(ct.Equal(decoded))
}
