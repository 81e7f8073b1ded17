// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package shuffle

import (
	"github.com/luxfi/braid/canonical"
	"github.com/luxfi/braid/crypto/group"
)

// PackProof appends the canonical encoding of the proof.
func PackProof(p *canonical.Packer, proof Proof) {
	packElements(p, proof.PermCommit)
	packElements(p, proof.ChainCommit)
	for _, e := range []group.Element{proof.T1, proof.T2, proof.T3, proof.T41, proof.T42} {
		p.PackFixedBytes(e.Bytes())
	}
	packElements(p, proof.THat)
	for _, s := range []group.Scalar{proof.S1, proof.S2, proof.S3, proof.S4} {
		p.PackFixedBytes(s.Bytes())
	}
	packScalars(p, proof.SHat)
	packScalars(p, proof.STilde)
}

// UnpackProof reads a canonical proof encoding.
func UnpackProof(ctx group.Ctx, u *canonical.Unpacker, maxLen uint32) Proof {
	var proof Proof
	proof.PermCommit = unpackElements(ctx, u, maxLen)
	proof.ChainCommit = unpackElements(ctx, u, maxLen)
	ts := make([]group.Element, 5)
	for i := range ts {
		ts[i] = unpackElement(ctx, u)
	}
	proof.T1, proof.T2, proof.T3, proof.T41, proof.T42 = ts[0], ts[1], ts[2], ts[3], ts[4]
	proof.THat = unpackElements(ctx, u, maxLen)
	ss := make([]group.Scalar, 4)
	for i := range ss {
		ss[i] = unpackScalar(ctx, u)
	}
	proof.S1, proof.S2, proof.S3, proof.S4 = ss[0], ss[1], ss[2], ss[3]
	proof.SHat = unpackScalars(ctx, u, maxLen)
	proof.STilde = unpackScalars(ctx, u, maxLen)
	return proof
}

func packElements(p *canonical.Packer, es []group.Element) {
	p.PackUint32(uint32(len(es)))
	for _, e := range es {
		p.PackFixedBytes(e.Bytes())
	}
}

func packScalars(p *canonical.Packer, ss []group.Scalar) {
	p.PackUint32(uint32(len(ss)))
	for _, s := range ss {
		p.PackFixedBytes(s.Bytes())
	}
}

func unpackElement(ctx group.Ctx, u *canonical.Unpacker) group.Element {
	b := u.UnpackFixedBytes(ctx.ElementLen())
	if u.Err != nil {
		return nil
	}
	e, err := ctx.DecodeElement(b)
	if err != nil {
		u.Err = err
		return nil
	}
	return e
}

func unpackScalar(ctx group.Ctx, u *canonical.Unpacker) group.Scalar {
	b := u.UnpackFixedBytes(ctx.ScalarLen())
	if u.Err != nil {
		return nil
	}
	s, err := ctx.DecodeScalar(b)
	if err != nil {
		u.Err = err
		return nil
	}
	return s
}

func unpackElements(ctx group.Ctx, u *canonical.Unpacker, maxLen uint32) []group.Element {
	n := u.UnpackUint32()
	if u.Err != nil {
		return nil
	}
	if n > maxLen {
		u.Err = canonical.ErrOversized
		return nil
	}
	es := make([]group.Element, n)
	for i := range es {
		es[i] = unpackElement(ctx, u)
	}
	return es
}

func unpackScalars(ctx group.Ctx, u *canonical.Unpacker, maxLen uint32) []group.Scalar {
	n := u.UnpackUint32()
	if u.Err != nil {
		return nil
	}
	if n > maxLen {
		u.Err = canonical.ErrOversized
		return nil
	}
	ss := make([]group.Scalar, n)
	for i := range ss {
		ss[i] = unpackScalar(ctx, u)
	}
	return ss
}
