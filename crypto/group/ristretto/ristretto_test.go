// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ristretto

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/braid/crypto/group"
)

func TestElementRoundtrip(t *testing.T) {
	require := require.New(t)
	ctx := New()

	e, err := ctx.RandomElement(rand.Reader)
	require.NoError(err)

	decoded, err := ctx.DecodeElement(e.Bytes())
	require.NoError(err)
	require.True(e.Equal(decoded))

	_, err = ctx.DecodeElement(make([]byte, 31))
	require.ErrorIs(err, group.ErrSerialization)
}

func TestScalarArithmetic(t *testing.T) {
	require := require.New(t)
	ctx := New()

	a := ctx.ScalarFromUint64(10)
	b := ctx.ScalarFromUint64(4)
	require.True(ctx.ScalarAdd(a, b).Equal(ctx.ScalarFromUint64(14)))
	require.True(ctx.ScalarSub(a, b).Equal(ctx.ScalarFromUint64(6)))
	require.True(ctx.ScalarMul(a, b).Equal(ctx.ScalarFromUint64(40)))

	inv, err := ctx.ScalarInv(a)
	require.NoError(err)
	require.True(ctx.ScalarMul(a, inv).Equal(ctx.ScalarOne()))

	_, err = ctx.ScalarInv(ctx.ScalarZero())
	require.ErrorIs(err, group.ErrInvalidInput)
}

func TestExpLaws(t *testing.T) {
	require := require.New(t)
	ctx := New()

	x, err := ctx.RandomScalar(rand.Reader)
	require.NoError(err)
	y, err := ctx.RandomScalar(rand.Reader)
	require.NoError(err)

	// g^x * g^y == g^(x+y)
	left := ctx.Mul(ctx.GenExp(x), ctx.GenExp(y))
	right := ctx.GenExp(ctx.ScalarAdd(x, y))
	require.True(left.Equal(right))

	// (g^x)^y == g^(x*y)
	left = ctx.Exp(ctx.GenExp(x), y)
	right = ctx.GenExp(ctx.ScalarMul(x, y))
	require.True(left.Equal(right))

	// e * e^-1 == identity
	e := ctx.GenExp(x)
	inv, err := ctx.Inv(e)
	require.NoError(err)
	require.True(ctx.Mul(e, inv).Equal(ctx.One()))
}

func TestPlaintextEncoding(t *testing.T) {
	require := require.New(t)
	ctx := New()

	msg := make([]byte, ctx.PlaintextLen())
	msg[0] = 42
	msg[7] = 0xa5

	e, err := ctx.EncodePlaintext(msg)
	require.NoError(err)
	decoded, err := ctx.DecodePlaintext(e)
	require.NoError(err)
	require.Equal(msg, decoded)

	// The encoding must survive a serialization roundtrip.
	e2, err := ctx.DecodeElement(e.Bytes())
	require.NoError(err)
	decoded2, err := ctx.DecodePlaintext(e2)
	require.NoError(err)
	require.Equal(msg, decoded2)

	_, err = ctx.EncodePlaintext(make([]byte, ctx.PlaintextLen()+1))
	require.ErrorIs(err, group.ErrInvalidInput)
}

func TestHashToScalarDeterministic(t *testing.T) {
	require := require.New(t)
	ctx := New()

	a := ctx.HashToScalar([]byte("label"), []byte("data"))
	b := ctx.HashToScalar([]byte("label"), []byte("data"))
	require.True(a.Equal(b))

	c := ctx.HashToScalar([]byte("label"), []byte("datb"))
	require.False(a.Equal(c))

	// Length-prefixed parts: ("ab","c") must differ from ("a","bc").
	d := ctx.HashToScalar([]byte("ab"), []byte("c"))
	e := ctx.HashToScalar([]byte("a"), []byte("bc"))
	require.False(d.Equal(e))
}

func TestHashToElement(t *testing.T) {
	require := require.New(t)
	ctx := New()

	a, err := ctx.HashToElement([]byte("gen"), []byte("1"))
	require.NoError(err)
	b, err := ctx.HashToElement([]byte("gen"), []byte("1"))
	require.NoError(err)
	require.True(a.Equal(b))

	c, err := ctx.HashToElement([]byte("gen"), []byte("2"))
	require.NoError(err)
	require.False(a.Equal(c))
}
