// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package modp is the multiplicative-group backend over a 2048-bit safe
// prime, selectable through the same capability set as the reference
// ristretto backend. Element arithmetic uses saferith's constant-time
// Nat/Modulus types. The parameters are the Unicrypt 2048-bit safe
// prime with generator 3.
package modp

import (
	"crypto/sha512"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"math/big"

	"github.com/cronokirby/saferith"

	"github.com/luxfi/braid/crypto/group"
)

// Unicrypt 2048-bit safe prime parameters: p = 2q+1, generator 3
// generates the order-q subgroup of quadratic residues.
const (
	pHex = "B7E151628AED2A6ABF7158809CF4F3C762E7160F38B4DA56A784D9045190CFEF324E7738926CFBE5F4BF8D8D8C31D763DA06C80ABB1185EB4F7C7B5757F5958490CFD47D7C19BB42158D9554F7B46BCED55C4D79FD5F24D6613C31C3839A2DDF8A9A276BCFBFA1C877C56284DAB79CD4C2B3293D20E9E5EAF02AC60ACC93ED874422A52ECB238FEEE5AB6ADD835FD1A0753D0A8F78E537D2B95BB79D8DCAEC642C1E9F23B829B5C2780BF38737DF8BB300D01334A0D0BD8645CBFA73A6160FFE393C48CBBBCA060F0FF8EC6D31BEB5CCEED7F2F0BB088017163BC60DF45A0ECB1BCD289B06CBBFEA21AD08E1847F3F7378D56CED94640D6EF0D3D37BE69D0063"
	qHex = "5BF0A8B1457695355FB8AC404E7A79E3B1738B079C5A6D2B53C26C8228C867F799273B9C49367DF2FA5FC6C6C618EBB1ED0364055D88C2F5A7BE3DABABFACAC24867EA3EBE0CDDA10AC6CAAA7BDA35E76AAE26BCFEAF926B309E18E1C1CD16EFC54D13B5E7DFD0E43BE2B1426D5BCE6A6159949E9074F2F5781563056649F6C3A21152976591C7F772D5B56EC1AFE8D03A9E8547BC729BE95CADDBCEC6E57632160F4F91DC14DAE13C05F9C39BEFC5D98068099A50685EC322E5FD39D30B07FF1C9E2465DDE5030787FC763698DF5AE6776BF9785D84400B8B1DE306FA2D07658DE6944D8365DFF510D68470C23F9FB9BC6AB676CA3206B77869E9BDF34E8031"

	elementLen = 256
	scalarLen  = 256
	// plaintextLen keeps encoded values strictly below q (2047 bits).
	plaintextLen = 254

	hashToScalarDomain  = "braid/modp2048/hash-to-scalar"
	hashToElementDomain = "braid/modp2048/hash-to-element"
)

type element struct {
	n *saferith.Nat
}

func (e element) Bytes() []byte {
	b := make([]byte, elementLen)
	e.n.Big().FillBytes(b)
	return b
}

func (e element) Equal(other group.Element) bool {
	o, ok := other.(element)
	return ok && e.n.Eq(o.n) == 1
}

type scalar struct {
	n *saferith.Nat
}

func (s scalar) Bytes() []byte {
	b := make([]byte, scalarLen)
	s.n.Big().FillBytes(b)
	return b
}

func (s scalar) Equal(other group.Scalar) bool {
	o, ok := other.(scalar)
	return ok && s.n.Eq(o.n) == 1
}

// Ctx implements group.Ctx over the safe-prime multiplicative group.
type Ctx struct {
	p *saferith.Modulus
	q *saferith.Modulus

	pBig *big.Int
	qBig *big.Int

	gen element
}

// New returns the 2048-bit safe-prime group context.
func New() *Ctx {
	pBytes, err := hex.DecodeString(pHex)
	if err != nil {
		panic(err)
	}
	qBytes, err := hex.DecodeString(qHex)
	if err != nil {
		panic(err)
	}
	c := &Ctx{
		p:    saferith.ModulusFromBytes(pBytes),
		q:    saferith.ModulusFromBytes(qBytes),
		pBig: new(big.Int).SetBytes(pBytes),
		qBig: new(big.Int).SetBytes(qBytes),
	}
	c.gen = element{n: new(saferith.Nat).SetUint64(3)}
	return c
}

func (*Ctx) Name() string { return "modp2048" }

func (c *Ctx) Generator() group.Element {
	return c.gen
}

func (*Ctx) One() group.Element {
	return element{n: new(saferith.Nat).SetUint64(1)}
}

func (c *Ctx) Mul(a, b group.Element) group.Element {
	return element{n: new(saferith.Nat).ModMul(a.(element).n, b.(element).n, c.p)}
}

func (c *Ctx) Inv(a group.Element) (group.Element, error) {
	if a.(element).n.EqZero() == 1 {
		return nil, fmt.Errorf("%w: inverse of zero", group.ErrInvalidInput)
	}
	return element{n: new(saferith.Nat).ModInverse(a.(element).n, c.p)}, nil
}

func (c *Ctx) Exp(base group.Element, exp group.Scalar) group.Element {
	return element{n: new(saferith.Nat).Exp(base.(element).n, exp.(scalar).n, c.p)}
}

func (c *Ctx) GenExp(exp group.Scalar) group.Element {
	return c.Exp(c.gen, exp)
}

func (c *Ctx) RandomScalar(rand io.Reader) (group.Scalar, error) {
	var seed [64]byte
	if _, err := io.ReadFull(rand, seed[:]); err != nil {
		return nil, fmt.Errorf("%w: %w", group.ErrInternal, err)
	}
	n := new(saferith.Nat).Mod(new(saferith.Nat).SetBytes(seed[:]), c.q)
	return scalar{n: n}, nil
}

func (c *Ctx) RandomElement(rand io.Reader) (group.Element, error) {
	s, err := c.RandomScalar(rand)
	if err != nil {
		return nil, err
	}
	return c.GenExp(s), nil
}

func (*Ctx) ScalarZero() group.Scalar {
	return scalar{n: new(saferith.Nat).SetUint64(0)}
}

func (*Ctx) ScalarOne() group.Scalar {
	return scalar{n: new(saferith.Nat).SetUint64(1)}
}

func (*Ctx) ScalarFromUint64(v uint64) group.Scalar {
	return scalar{n: new(saferith.Nat).SetUint64(v)}
}

func (c *Ctx) ScalarAdd(a, b group.Scalar) group.Scalar {
	return scalar{n: new(saferith.Nat).ModAdd(a.(scalar).n, b.(scalar).n, c.q)}
}

func (c *Ctx) ScalarSub(a, b group.Scalar) group.Scalar {
	return c.ScalarAdd(a, c.ScalarNeg(b))
}

func (c *Ctx) ScalarMul(a, b group.Scalar) group.Scalar {
	return scalar{n: new(saferith.Nat).ModMul(a.(scalar).n, b.(scalar).n, c.q)}
}

func (c *Ctx) ScalarNeg(a group.Scalar) group.Scalar {
	return scalar{n: new(saferith.Nat).ModNeg(a.(scalar).n, c.q)}
}

func (c *Ctx) ScalarInv(a group.Scalar) (group.Scalar, error) {
	if a.(scalar).n.EqZero() == 1 {
		return nil, fmt.Errorf("%w: inverse of zero scalar", group.ErrInvalidInput)
	}
	return scalar{n: new(saferith.Nat).ModInverse(a.(scalar).n, c.q)}, nil
}

func hashParts(domain string, parts ...[]byte) []byte {
	h := sha512.New()
	h.Write([]byte(domain))
	for _, p := range parts {
		var lenb [8]byte
		binary.BigEndian.PutUint64(lenb[:], uint64(len(p)))
		h.Write(lenb[:])
		h.Write(p)
	}
	return h.Sum(nil)
}

func (c *Ctx) HashToScalar(parts ...[]byte) group.Scalar {
	d := hashParts(hashToScalarDomain, parts...)
	return scalar{n: new(saferith.Nat).Mod(new(saferith.Nat).SetBytes(d), c.q)}
}

// HashToElement squares the hashed value mod p, landing in the
// quadratic-residue subgroup with unknown discrete log.
func (c *Ctx) HashToElement(parts ...[]byte) (group.Element, error) {
	d := hashParts(hashToElementDomain, parts...)
	n := new(saferith.Nat).Mod(new(saferith.Nat).SetBytes(d), c.p)
	sq := new(saferith.Nat).ModMul(n, n, c.p)
	if sq.EqZero() == 1 {
		return nil, fmt.Errorf("%w: hashed to zero", group.ErrInternal)
	}
	return element{n: sq}, nil
}

func (c *Ctx) DecodeElement(b []byte) (group.Element, error) {
	if len(b) != elementLen {
		return nil, fmt.Errorf("%w: element must be %d bytes", group.ErrSerialization, elementLen)
	}
	v := new(big.Int).SetBytes(b)
	if v.Sign() == 0 || v.Cmp(c.pBig) >= 0 {
		return nil, fmt.Errorf("%w: element out of range", group.ErrSerialization)
	}
	n := new(saferith.Nat).SetBytes(b)
	// Subgroup membership: v^q == 1 (mod p).
	pow := new(saferith.Nat).Exp(n, c.q.Nat(), c.p)
	if pow.Eq(new(saferith.Nat).SetUint64(1)) != 1 {
		return nil, fmt.Errorf("%w: element outside prime-order subgroup", group.ErrSerialization)
	}
	return element{n: n}, nil
}

func (c *Ctx) DecodeScalar(b []byte) (group.Scalar, error) {
	if len(b) != scalarLen {
		return nil, fmt.Errorf("%w: scalar must be %d bytes", group.ErrSerialization, scalarLen)
	}
	v := new(big.Int).SetBytes(b)
	if v.Cmp(c.qBig) >= 0 {
		return nil, fmt.Errorf("%w: scalar out of range", group.ErrSerialization)
	}
	return scalar{n: new(saferith.Nat).SetBytes(b)}, nil
}

func (*Ctx) ElementLen() int   { return elementLen }
func (*Ctx) ScalarLen() int    { return scalarLen }
func (*Ctx) PlaintextLen() int { return plaintextLen }

// EncodePlaintext maps message m to v = m+1 and selects whichever of v,
// p-v lies in the quadratic-residue subgroup.
func (c *Ctx) EncodePlaintext(b []byte) (group.Element, error) {
	if len(b) > plaintextLen {
		return nil, fmt.Errorf("%w: plaintext exceeds %d bytes", group.ErrInvalidInput, plaintextLen)
	}
	padded := make([]byte, plaintextLen)
	copy(padded, b)

	v := new(big.Int).SetBytes(padded)
	v.Add(v, big.NewInt(1))
	if v.Cmp(c.qBig) > 0 {
		return nil, fmt.Errorf("%w: plaintext out of range", group.ErrInvalidInput)
	}

	n := natFromBig(v)
	pow := new(saferith.Nat).Exp(n, c.q.Nat(), c.p)
	if pow.Eq(new(saferith.Nat).SetUint64(1)) != 1 {
		// Not a residue: use p - v, which is.
		n = natFromBig(new(big.Int).Sub(c.pBig, v))
	}
	return element{n: n}, nil
}

func (c *Ctx) DecodePlaintext(e group.Element) ([]byte, error) {
	el, ok := e.(element)
	if !ok {
		return nil, fmt.Errorf("%w: foreign element", group.ErrInvalidInput)
	}
	v := el.n.Big()
	if v.Cmp(c.qBig) > 0 {
		v = new(big.Int).Sub(c.pBig, v)
	}
	v.Sub(v, big.NewInt(1))
	if v.Sign() < 0 || v.BitLen() > plaintextLen*8 {
		return nil, fmt.Errorf("%w: element does not carry a plaintext", group.ErrInvalidInput)
	}
	b := make([]byte, plaintextLen)
	v.FillBytes(b)
	return b, nil
}

func natFromBig(v *big.Int) *saferith.Nat {
	b := make([]byte, elementLen)
	v.FillBytes(b)
	return new(saferith.Nat).SetBytes(b)
}
