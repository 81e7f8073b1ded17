// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package group abstracts the prime-order group the protocol runs over.
// The engine only sees this capability set; the concrete representation
// lives in the backend packages (ristretto, modp). Randomness is drawn
// from a per-call reader so tests can inject deterministic streams.
package group

import (
	"errors"
	"io"
)

var (
	// ErrInvalidInput marks malformed points, scalars or plaintexts.
	ErrInvalidInput = errors.New("group: invalid input")
	// ErrSerialization marks bytes that do not decode to a group value.
	ErrSerialization = errors.New("group: serialization failed")
	// ErrInternal marks failures that indicate a bug, not bad data.
	ErrInternal = errors.New("group: internal error")
)

// Element is an opaque group element.
type Element interface {
	// Bytes returns the fixed-width canonical encoding.
	Bytes() []byte
	// Equal reports whether both elements encode the same point.
	Equal(Element) bool
}

// Scalar is an opaque member of the scalar field.
type Scalar interface {
	Bytes() []byte
	Equal(Scalar) bool
}

// Ctx is the capability set of a prime-order group. The protocol core
// is written against this interface only.
type Ctx interface {
	// Name identifies the backend ("ristretto255", "modp2048").
	Name() string

	Generator() Element
	// One is the identity element.
	One() Element
	Mul(a, b Element) Element
	Inv(a Element) (Element, error)
	Exp(base Element, exp Scalar) Element
	// GenExp computes generator^exp.
	GenExp(exp Scalar) Element

	RandomScalar(rand io.Reader) (Scalar, error)
	RandomElement(rand io.Reader) (Element, error)

	ScalarZero() Scalar
	ScalarOne() Scalar
	ScalarFromUint64(v uint64) Scalar
	ScalarAdd(a, b Scalar) Scalar
	ScalarSub(a, b Scalar) Scalar
	ScalarMul(a, b Scalar) Scalar
	ScalarNeg(a Scalar) Scalar
	ScalarInv(a Scalar) (Scalar, error)

	// HashToScalar derives a scalar from the given byte parts,
	// domain-separated by the backend.
	HashToScalar(parts ...[]byte) Scalar
	// HashToElement derives an element of unknown discrete log from the
	// given byte parts, used to seed independent generators.
	HashToElement(parts ...[]byte) (Element, error)

	DecodeElement(b []byte) (Element, error)
	DecodeScalar(b []byte) (Scalar, error)
	ElementLen() int
	ScalarLen() int

	// PlaintextLen is the number of message bytes one element carries.
	PlaintextLen() int
	// EncodePlaintext maps up to PlaintextLen bytes to an element
	// invertibly.
	EncodePlaintext(b []byte) (Element, error)
	// DecodePlaintext recovers the bytes passed to EncodePlaintext.
	DecodePlaintext(e Element) ([]byte, error)
}
