// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package trustee

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/luxfi/braid/artifact"
	"github.com/luxfi/braid/board"
	"github.com/luxfi/braid/canonical"
	"github.com/luxfi/braid/crypto/group"
)

///////////////////////////////////////////////////////////////////////////
// Polynomial arithmetic for the Pedersen-style DKG: each dealer commits
// to a degree-(threshold-1) polynomial and delivers evaluations at the
// recipients' 1-based positions.
///////////////////////////////////////////////////////////////////////////

// randomPolynomial samples threshold coefficients a_0..a_{t-1}.
func randomPolynomial(ctx group.Ctx, threshold int, rand io.Reader) ([]group.Scalar, error) {
	coeffs := make([]group.Scalar, threshold)
	for i := range coeffs {
		c, err := ctx.RandomScalar(rand)
		if err != nil {
			return nil, err
		}
		coeffs[i] = c
	}
	return coeffs, nil
}

// commitPolynomial returns g^{a_k} for every coefficient.
func commitPolynomial(ctx group.Ctx, coeffs []group.Scalar) []group.Element {
	out := make([]group.Element, len(coeffs))
	for i, c := range coeffs {
		out[i] = ctx.GenExp(c)
	}
	return out
}

// evalPolynomial evaluates the polynomial at x (a 1-based position)
// by Horner's rule.
func evalPolynomial(ctx group.Ctx, coeffs []group.Scalar, x int) group.Scalar {
	xs := ctx.ScalarFromUint64(uint64(x))
	acc := ctx.ScalarZero()
	for i := len(coeffs) - 1; i >= 0; i-- {
		acc = ctx.ScalarAdd(ctx.ScalarMul(acc, xs), coeffs[i])
	}
	return acc
}

// verifyShare checks g^share == prod_k commitments[k]^(position^k).
func verifyShare(ctx group.Ctx, share group.Scalar, commitments []group.Element, position int) bool {
	return ctx.GenExp(share).Equal(commitmentEval(ctx, commitments, position))
}

// commitmentEval computes prod_k commitments[k]^(position^k), the
// public image of a polynomial evaluation.
func commitmentEval(ctx group.Ctx, commitments []group.Element, position int) group.Element {
	xs := ctx.ScalarFromUint64(uint64(position))
	pow := ctx.ScalarOne()
	acc := ctx.One()
	for _, c := range commitments {
		acc = ctx.Mul(acc, ctx.Exp(c, pow))
		pow = ctx.ScalarMul(pow, xs)
	}
	return acc
}

// publicShare computes g^{x_position} from every dealer's commitments:
// the product of each dealer's commitment evaluation at the position.
func publicShare(ctx group.Ctx, dealerCommitments [][]group.Element, position int) group.Element {
	acc := ctx.One()
	for _, commitments := range dealerCommitments {
		acc = ctx.Mul(acc, commitmentEval(ctx, commitments, position))
	}
	return acc
}

// lagrangeCoefficient computes the coefficient for position within the
// active set, evaluated at zero: prod_{q != position} q/(q-position).
func lagrangeCoefficient(ctx group.Ctx, active []int, position int) (group.Scalar, error) {
	num := ctx.ScalarOne()
	den := ctx.ScalarOne()
	for _, q := range active {
		if q == position {
			continue
		}
		num = ctx.ScalarMul(num, ctx.ScalarFromUint64(uint64(q)))
		den = ctx.ScalarMul(den, ctx.ScalarSub(
			ctx.ScalarFromUint64(uint64(q)),
			ctx.ScalarFromUint64(uint64(position)),
		))
	}
	denInv, err := ctx.ScalarInv(den)
	if err != nil {
		return nil, fmt.Errorf("degenerate active set: %w", err)
	}
	return ctx.ScalarMul(num, denInv), nil
}

///////////////////////////////////////////////////////////////////////////
// Context binding labels. Every AEAD and every Fiat-Shamir proof is
// bound to the configuration and, where applicable, the batch and the
// identities involved.
///////////////////////////////////////////////////////////////////////////

// channelAAD binds a trustee's sealed channel secret to the
// configuration and its own position.
func channelAAD(cfgHash canonical.Hash, position int) []byte {
	return label("braid/aad/channel", cfgHash, uint32(position), 0)
}

// shareAAD binds a sealed share to the configuration, the dealer and
// the recipient.
func shareAAD(cfgHash canonical.Hash, dealer, recipient int) []byte {
	return label("braid/aad/share", cfgHash, uint32(dealer), uint32(recipient))
}

// shuffleLabel binds a shuffle proof to the configuration, batch and
// chain position.
func shuffleLabel(cfgHash canonical.Hash, batch, mixNumber uint32) []byte {
	return label("braid/label/shuffle", cfgHash, batch, mixNumber)
}

// decryptLabel binds a decryption factor proof to the configuration,
// batch and trustee.
func decryptLabel(cfgHash canonical.Hash, batch uint32, position int) []byte {
	return label("braid/label/decrypt", cfgHash, batch, uint32(position))
}

func label(domain string, cfgHash canonical.Hash, a, b uint32) []byte {
	out := make([]byte, 0, len(domain)+canonical.HashLen+8)
	out = append(out, domain...)
	out = append(out, cfgHash[:]...)
	out = binary.BigEndian.AppendUint32(out, a)
	out = binary.BigEndian.AppendUint32(out, b)
	return out
}

///////////////////////////////////////////////////////////////////////////
// Shared DKG lookups
///////////////////////////////////////////////////////////////////////////

// dealerShares fetches every dealer's shares artifact, hash-checked
// against the hashes carried by the action.
func dealerShares(staged *board.Local, hashes []canonical.Hash) ([]*artifact.Shares, error) {
	out := make([]*artifact.Shares, len(hashes))
	for i := range hashes {
		s, err := staged.GetShares(hashes[i], i+1)
		if err != nil {
			return nil, err
		}
		if len(s.Commitments) == 0 {
			return nil, fmt.Errorf("%w: dealer %d has no commitments", ErrInvalidShare, i+1)
		}
		out[i] = s
	}
	return out, nil
}

// jointPublicKey is the product of every dealer's constant-term
// commitment.
func jointPublicKey(ctx group.Ctx, dealers []*artifact.Shares) group.Element {
	y := ctx.One()
	for _, d := range dealers {
		y = ctx.Mul(y, d.Commitments[0])
	}
	return y
}
