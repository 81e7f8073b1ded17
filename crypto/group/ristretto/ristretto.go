// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package ristretto is the reference group backend, the Ristretto
// prime-order group over Curve25519.
package ristretto

import (
	"crypto/sha512"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/gtank/ristretto255"

	"github.com/luxfi/braid/crypto/group"
)

const (
	elementLen = 32
	scalarLen  = 32

	// plaintextLen leaves the first and last bytes of the 32-byte wire
	// form free for the encode counter.
	plaintextLen = 30

	hashToScalarDomain  = "braid/ristretto255/hash-to-scalar"
	hashToElementDomain = "braid/ristretto255/hash-to-element"
)

type element struct {
	e *ristretto255.Element
}

func (e element) Bytes() []byte {
	return e.e.Bytes()
}

func (e element) Equal(other group.Element) bool {
	o, ok := other.(element)
	return ok && e.e.Equal(o.e) == 1
}

type scalar struct {
	s *ristretto255.Scalar
}

func (s scalar) Bytes() []byte {
	return s.s.Bytes()
}

func (s scalar) Equal(other group.Scalar) bool {
	o, ok := other.(scalar)
	return ok && s.s.Equal(o.s) == 1
}

// Ctx implements group.Ctx over ristretto255.
type Ctx struct{}

// New returns the ristretto255 group context.
func New() *Ctx {
	return &Ctx{}
}

func (*Ctx) Name() string { return "ristretto255" }

func (*Ctx) Generator() group.Element {
	return element{e: ristretto255.NewGeneratorElement()}
}

func (*Ctx) One() group.Element {
	return element{e: ristretto255.NewIdentityElement()}
}

func (*Ctx) Mul(a, b group.Element) group.Element {
	return element{e: ristretto255.NewIdentityElement().Add(a.(element).e, b.(element).e)}
}

func (*Ctx) Inv(a group.Element) (group.Element, error) {
	return element{e: ristretto255.NewIdentityElement().Negate(a.(element).e)}, nil
}

func (*Ctx) Exp(base group.Element, exp group.Scalar) group.Element {
	return element{e: ristretto255.NewIdentityElement().ScalarMult(exp.(scalar).s, base.(element).e)}
}

func (*Ctx) GenExp(exp group.Scalar) group.Element {
	return element{e: ristretto255.NewIdentityElement().ScalarBaseMult(exp.(scalar).s)}
}

func (*Ctx) RandomScalar(rand io.Reader) (group.Scalar, error) {
	var seed [64]byte
	if _, err := io.ReadFull(rand, seed[:]); err != nil {
		return nil, fmt.Errorf("%w: %w", group.ErrInternal, err)
	}
	s, err := ristretto255.NewScalar().SetUniformBytes(seed[:])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", group.ErrInternal, err)
	}
	return scalar{s: s}, nil
}

func (c *Ctx) RandomElement(rand io.Reader) (group.Element, error) {
	var seed [64]byte
	if _, err := io.ReadFull(rand, seed[:]); err != nil {
		return nil, fmt.Errorf("%w: %w", group.ErrInternal, err)
	}
	e, err := ristretto255.NewIdentityElement().SetUniformBytes(seed[:])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", group.ErrInternal, err)
	}
	return element{e: e}, nil
}

func (*Ctx) ScalarZero() group.Scalar {
	return scalar{s: ristretto255.NewScalar()}
}

func (c *Ctx) ScalarOne() group.Scalar {
	return c.ScalarFromUint64(1)
}

func (*Ctx) ScalarFromUint64(v uint64) group.Scalar {
	var b [32]byte
	binary.LittleEndian.PutUint64(b[:8], v)
	s, err := ristretto255.NewScalar().SetCanonicalBytes(b[:])
	if err != nil {
		// A uint64 is always below the group order.
		panic(err)
	}
	return scalar{s: s}
}

func (*Ctx) ScalarAdd(a, b group.Scalar) group.Scalar {
	return scalar{s: ristretto255.NewScalar().Add(a.(scalar).s, b.(scalar).s)}
}

func (*Ctx) ScalarSub(a, b group.Scalar) group.Scalar {
	return scalar{s: ristretto255.NewScalar().Subtract(a.(scalar).s, b.(scalar).s)}
}

func (*Ctx) ScalarMul(a, b group.Scalar) group.Scalar {
	return scalar{s: ristretto255.NewScalar().Multiply(a.(scalar).s, b.(scalar).s)}
}

func (*Ctx) ScalarNeg(a group.Scalar) group.Scalar {
	return scalar{s: ristretto255.NewScalar().Negate(a.(scalar).s)}
}

func (c *Ctx) ScalarInv(a group.Scalar) (group.Scalar, error) {
	if a.Equal(c.ScalarZero()) {
		return nil, fmt.Errorf("%w: inverse of zero scalar", group.ErrInvalidInput)
	}
	return scalar{s: ristretto255.NewScalar().Invert(a.(scalar).s)}, nil
}

func (*Ctx) HashToScalar(parts ...[]byte) group.Scalar {
	h := sha512.New()
	h.Write([]byte(hashToScalarDomain))
	for _, p := range parts {
		var lenb [8]byte
		binary.BigEndian.PutUint64(lenb[:], uint64(len(p)))
		h.Write(lenb[:])
		h.Write(p)
	}
	s, err := ristretto255.NewScalar().SetUniformBytes(h.Sum(nil))
	if err != nil {
		panic(err)
	}
	return scalar{s: s}
}

func (*Ctx) HashToElement(parts ...[]byte) (group.Element, error) {
	h := sha512.New()
	h.Write([]byte(hashToElementDomain))
	for _, p := range parts {
		var lenb [8]byte
		binary.BigEndian.PutUint64(lenb[:], uint64(len(p)))
		h.Write(lenb[:])
		h.Write(p)
	}
	e, err := ristretto255.NewIdentityElement().SetUniformBytes(h.Sum(nil))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", group.ErrInternal, err)
	}
	return element{e: e}, nil
}

func (*Ctx) DecodeElement(b []byte) (group.Element, error) {
	if len(b) != elementLen {
		return nil, fmt.Errorf("%w: element must be %d bytes", group.ErrSerialization, elementLen)
	}
	e, err := ristretto255.NewIdentityElement().SetCanonicalBytes(b)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", group.ErrSerialization, err)
	}
	return element{e: e}, nil
}

func (*Ctx) DecodeScalar(b []byte) (group.Scalar, error) {
	if len(b) != scalarLen {
		return nil, fmt.Errorf("%w: scalar must be %d bytes", group.ErrSerialization, scalarLen)
	}
	s, err := ristretto255.NewScalar().SetCanonicalBytes(b)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", group.ErrSerialization, err)
	}
	return scalar{s: s}, nil
}

func (*Ctx) ElementLen() int   { return elementLen }
func (*Ctx) ScalarLen() int    { return scalarLen }
func (*Ctx) PlaintextLen() int { return plaintextLen }

// EncodePlaintext embeds the message bytes into bytes 1..30 of the
// 32-byte wire form and searches the two counter bytes (the first and
// the last byte, which carry the sign and top bits that a canonical
// encoding constrains) for a value that decodes to a valid ristretto
// point. Each candidate is valid with constant probability, so the
// search space of 2^16 counters never runs out in practice.
func (*Ctx) EncodePlaintext(b []byte) (group.Element, error) {
	if len(b) > plaintextLen {
		return nil, fmt.Errorf("%w: plaintext exceeds %d bytes", group.ErrInvalidInput, plaintextLen)
	}
	var buf [32]byte
	copy(buf[1:1+plaintextLen], b)
	for ctr := uint32(0); ctr <= 0xffff; ctr++ {
		buf[0] = byte(ctr)
		buf[31] = byte(ctr >> 8)
		if e, err := ristretto255.NewIdentityElement().SetCanonicalBytes(buf[:]); err == nil {
			return element{e: e}, nil
		}
	}
	return nil, fmt.Errorf("%w: no valid encoding found", group.ErrInternal)
}

func (*Ctx) DecodePlaintext(e group.Element) ([]byte, error) {
	el, ok := e.(element)
	if !ok {
		return nil, fmt.Errorf("%w: foreign element", group.ErrInvalidInput)
	}
	b := make([]byte, plaintextLen)
	copy(b, el.e.Bytes()[1:1+plaintextLen])
	return b, nil
}
