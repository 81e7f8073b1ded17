// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package artifact

import (
	"fmt"

	"github.com/luxfi/braid/canonical"
	"github.com/luxfi/braid/crypto/elgamal"
	"github.com/luxfi/braid/crypto/group"
	"github.com/luxfi/braid/crypto/shuffle"
	"github.com/luxfi/braid/crypto/symm"
	"github.com/luxfi/braid/crypto/zkp"
)

// maxSeqLen bounds every variable-length sequence an artifact decode
// will allocate for.
const maxSeqLen = 1 << 20

// Channel is a trustee's per-session key channel: the public element of
// a fresh group key pair, and the private scalar sealed under the
// trustee's own storage key so the share secret survives restarts
// without persistent state.
type Channel struct {
	Element     group.Element
	EncryptedSK []byte
}

// Encode returns the canonical bytes.
func (c *Channel) Encode() ([]byte, error) {
	p := canonical.NewPacker(len(c.EncryptedSK) + 64)
	p.PackFixedBytes(c.Element.Bytes())
	p.PackBytes(c.EncryptedSK)
	return p.Bytes, p.Err
}

// ParseChannel decodes canonical bytes.
func ParseChannel(ctx group.Ctx, b []byte) (*Channel, error) {
	u := canonical.NewUnpacker(b)
	eb := u.UnpackFixedBytes(ctx.ElementLen())
	sk := u.UnpackBytes(maxSeqLen)
	if err := u.Done(); err != nil {
		return nil, err
	}
	e, err := ctx.DecodeElement(eb)
	if err != nil {
		return nil, err
	}
	return &Channel{Element: e, EncryptedSK: sk}, nil
}

// EncryptedShare is one recipient's sealed polynomial share.
type EncryptedShare struct {
	Ephemeral group.Element
	Blob      []byte
}

// Sealed converts to the symm representation.
func (e EncryptedShare) Sealed() symm.Sealed {
	return symm.Sealed{Ephemeral: e.Ephemeral, Blob: e.Blob}
}

// Shares carries a dealer's DKG contribution: the polynomial
// commitments g^{a_0}..g^{a_{t-1}} and, for each trustee position 1..n,
// the sealed share evaluated at that position.
type Shares struct {
	Commitments []group.Element
	Encrypted   []EncryptedShare
}

// Encode returns the canonical bytes.
func (s *Shares) Encode() ([]byte, error) {
	p := canonical.NewPacker(1024)
	p.PackUint32(uint32(len(s.Commitments)))
	for _, c := range s.Commitments {
		p.PackFixedBytes(c.Bytes())
	}
	p.PackUint32(uint32(len(s.Encrypted)))
	for _, e := range s.Encrypted {
		p.PackFixedBytes(e.Ephemeral.Bytes())
		p.PackBytes(e.Blob)
	}
	return p.Bytes, p.Err
}

// ParseShares decodes canonical bytes.
func ParseShares(ctx group.Ctx, b []byte) (*Shares, error) {
	u := canonical.NewUnpacker(b)
	nc := u.UnpackUint32()
	if u.Err == nil && nc > MaxTrustees {
		return nil, fmt.Errorf("shares: %d commitments exceed %d", nc, MaxTrustees)
	}
	s := &Shares{Commitments: make([]group.Element, nc)}
	for i := range s.Commitments {
		eb := u.UnpackFixedBytes(ctx.ElementLen())
		if u.Err != nil {
			break
		}
		e, err := ctx.DecodeElement(eb)
		if err != nil {
			return nil, err
		}
		s.Commitments[i] = e
	}
	ne := u.UnpackUint32()
	if u.Err == nil && ne > MaxTrustees {
		return nil, fmt.Errorf("shares: %d recipients exceed %d", ne, MaxTrustees)
	}
	s.Encrypted = make([]EncryptedShare, ne)
	for i := range s.Encrypted {
		eb := u.UnpackFixedBytes(ctx.ElementLen())
		blob := u.UnpackBytes(maxSeqLen)
		if u.Err != nil {
			break
		}
		e, err := ctx.DecodeElement(eb)
		if err != nil {
			return nil, err
		}
		s.Encrypted[i] = EncryptedShare{Ephemeral: e, Blob: blob}
	}
	if err := u.Done(); err != nil {
		return nil, err
	}
	return s, nil
}

// DkgPublicKey is the joint election public key formed from verified
// share contributions.
type DkgPublicKey struct {
	Y group.Element
}

// Encode returns the canonical bytes.
func (d *DkgPublicKey) Encode() ([]byte, error) {
	p := canonical.NewPacker(64)
	p.PackFixedBytes(d.Y.Bytes())
	return p.Bytes, p.Err
}

// ParseDkgPublicKey decodes canonical bytes.
func ParseDkgPublicKey(ctx group.Ctx, b []byte) (*DkgPublicKey, error) {
	u := canonical.NewUnpacker(b)
	yb := u.UnpackFixedBytes(ctx.ElementLen())
	if err := u.Done(); err != nil {
		return nil, err
	}
	y, err := ctx.DecodeElement(yb)
	if err != nil {
		return nil, err
	}
	return &DkgPublicKey{Y: y}, nil
}

// Ballots is a batch of voter ciphertexts together with the public key
// hash they were encrypted under, the batch number and the TrusteeSet
// naming the threshold trustees that will mix and decrypt it.
type Ballots struct {
	Batch         uint32
	PublicKeyHash canonical.Hash
	Trustees      TrusteeSet
	Ciphertexts   []elgamal.Ciphertext
}

// Encode returns the canonical bytes.
func (b *Ballots) Encode() ([]byte, error) {
	p := canonical.NewPacker(256 + 64*len(b.Ciphertexts))
	p.PackUint32(b.Batch)
	p.PackHash(b.PublicKeyHash)
	p.PackFixedBytes(b.Trustees[:])
	packCiphertexts(p, b.Ciphertexts)
	return p.Bytes, p.Err
}

// ParseBallots decodes canonical bytes.
func ParseBallots(ctx group.Ctx, raw []byte) (*Ballots, error) {
	u := canonical.NewUnpacker(raw)
	b := &Ballots{}
	b.Batch = u.UnpackUint32()
	b.PublicKeyHash = u.UnpackHash()
	copy(b.Trustees[:], u.UnpackFixedBytes(MaxTrustees))
	b.Ciphertexts = unpackCiphertexts(ctx, u)
	if err := u.Done(); err != nil {
		return nil, err
	}
	return b, nil
}

// Mix is a permuted re-encryption of a source ciphertext sequence with
// its shuffle proof. MixNumber is the 1-based position in the chain.
type Mix struct {
	MixNumber   uint32
	Ciphertexts []elgamal.Ciphertext
	Proof       shuffle.Proof
}

// Encode returns the canonical bytes.
func (m *Mix) Encode() ([]byte, error) {
	p := canonical.NewPacker(256 + 128*len(m.Ciphertexts))
	p.PackUint32(m.MixNumber)
	packCiphertexts(p, m.Ciphertexts)
	shuffle.PackProof(p, m.Proof)
	return p.Bytes, p.Err
}

// ParseMix decodes canonical bytes.
func ParseMix(ctx group.Ctx, raw []byte) (*Mix, error) {
	u := canonical.NewUnpacker(raw)
	m := &Mix{}
	m.MixNumber = u.UnpackUint32()
	m.Ciphertexts = unpackCiphertexts(ctx, u)
	m.Proof = shuffle.UnpackProof(ctx, u, maxSeqLen)
	if err := u.Done(); err != nil {
		return nil, err
	}
	return m, nil
}

// DecryptionFactors is one trustee's partial decryption of a final mix:
// a factor gr^{x_i} per ciphertext, each with a Chaum–Pedersen proof
// against the trustee's public share.
type DecryptionFactors struct {
	Factors []group.Element
	Proofs  []zkp.ChaumPedersenProof
}

// Encode returns the canonical bytes.
func (d *DecryptionFactors) Encode() ([]byte, error) {
	p := canonical.NewPacker(128 * len(d.Factors))
	p.PackUint32(uint32(len(d.Factors)))
	for _, f := range d.Factors {
		p.PackFixedBytes(f.Bytes())
	}
	p.PackUint32(uint32(len(d.Proofs)))
	for _, pr := range d.Proofs {
		zkp.PackChaumPedersen(p, pr)
	}
	return p.Bytes, p.Err
}

// ParseDecryptionFactors decodes canonical bytes.
func ParseDecryptionFactors(ctx group.Ctx, raw []byte) (*DecryptionFactors, error) {
	u := canonical.NewUnpacker(raw)
	nf := u.UnpackUint32()
	if u.Err == nil && nf > maxSeqLen {
		return nil, canonical.ErrOversized
	}
	d := &DecryptionFactors{Factors: make([]group.Element, nf)}
	for i := range d.Factors {
		fb := u.UnpackFixedBytes(ctx.ElementLen())
		if u.Err != nil {
			break
		}
		f, err := ctx.DecodeElement(fb)
		if err != nil {
			return nil, err
		}
		d.Factors[i] = f
	}
	np := u.UnpackUint32()
	if u.Err == nil && np > maxSeqLen {
		return nil, canonical.ErrOversized
	}
	d.Proofs = make([]zkp.ChaumPedersenProof, np)
	for i := range d.Proofs {
		d.Proofs[i] = zkp.UnpackChaumPedersen(ctx, u)
	}
	if err := u.Done(); err != nil {
		return nil, err
	}
	return d, nil
}

// Plaintexts is the recovered sequence of group elements after
// combining the threshold decryption factors.
type Plaintexts struct {
	Elements []group.Element
}

// Encode returns the canonical bytes.
func (pl *Plaintexts) Encode() ([]byte, error) {
	p := canonical.NewPacker(64 * len(pl.Elements))
	p.PackUint32(uint32(len(pl.Elements)))
	for _, e := range pl.Elements {
		p.PackFixedBytes(e.Bytes())
	}
	return p.Bytes, p.Err
}

// ParsePlaintexts decodes canonical bytes.
func ParsePlaintexts(ctx group.Ctx, raw []byte) (*Plaintexts, error) {
	u := canonical.NewUnpacker(raw)
	n := u.UnpackUint32()
	if u.Err == nil && n > maxSeqLen {
		return nil, canonical.ErrOversized
	}
	pl := &Plaintexts{Elements: make([]group.Element, n)}
	for i := range pl.Elements {
		eb := u.UnpackFixedBytes(ctx.ElementLen())
		if u.Err != nil {
			break
		}
		e, err := ctx.DecodeElement(eb)
		if err != nil {
			return nil, err
		}
		pl.Elements[i] = e
	}
	if err := u.Done(); err != nil {
		return nil, err
	}
	return pl, nil
}

// Decode returns the plaintext bytes of every element.
func (pl *Plaintexts) Decode(ctx group.Ctx) ([][]byte, error) {
	out := make([][]byte, len(pl.Elements))
	for i, e := range pl.Elements {
		b, err := ctx.DecodePlaintext(e)
		if err != nil {
			return nil, err
		}
		out[i] = b
	}
	return out, nil
}

func packCiphertexts(p *canonical.Packer, cs []elgamal.Ciphertext) {
	p.PackUint32(uint32(len(cs)))
	for _, c := range cs {
		c.Pack(p)
	}
}

func unpackCiphertexts(ctx group.Ctx, u *canonical.Unpacker) []elgamal.Ciphertext {
	n := u.UnpackUint32()
	if u.Err != nil {
		return nil
	}
	if n > maxSeqLen {
		u.Err = canonical.ErrOversized
		return nil
	}
	cs := make([]elgamal.Ciphertext, n)
	for i := range cs {
		cs[i] = elgamal.UnpackCiphertext(ctx, u)
	}
	return cs
}
