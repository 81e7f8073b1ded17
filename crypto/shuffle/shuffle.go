// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package shuffle implements a verifiable re-encryption shuffle with a
// Wikström-style proof: the output ciphertext multiset is shown to be a
// permutation of re-encryptions of the input multiset under a given
// public key. Independent generators are derived from a caller label,
// so proofs are bound to their protocol context.
package shuffle

import (
	"crypto/sha512"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/luxfi/braid/crypto/elgamal"
	"github.com/luxfi/braid/crypto/group"
	"github.com/luxfi/braid/crypto/zkp"
)

// Proof is the shuffle argument. All element/scalar slices have the
// length of the shuffled sequence.
type Proof struct {
	// PermCommit is the permutation commitment c_1..c_n.
	PermCommit []group.Element
	// ChainCommit is the challenge commitment chain c^_1..c^_n.
	ChainCommit []group.Element

	T1, T2, T3 group.Element
	T41, T42   group.Element
	THat       []group.Element

	S1, S2, S3, S4 group.Scalar
	SHat           []group.Scalar
	STilde         []group.Scalar
}

// Shuffle permutes and re-encrypts the inputs under y, returning the
// outputs, the permutation and the re-encryption randomness:
// outputs[i] = ReEnc(inputs[perm[i]], rho[i]).
func Shuffle(
	ctx group.Ctx,
	y group.Element,
	inputs []elgamal.Ciphertext,
	rand io.Reader,
) ([]elgamal.Ciphertext, []int, []group.Scalar, error) {
	n := len(inputs)
	perm, err := randomPermutation(n, rand)
	if err != nil {
		return nil, nil, nil, err
	}
	outputs := make([]elgamal.Ciphertext, n)
	rho := make([]group.Scalar, n)
	for i := 0; i < n; i++ {
		r, err := ctx.RandomScalar(rand)
		if err != nil {
			return nil, nil, nil, err
		}
		rho[i] = r
		outputs[i] = elgamal.ReEncrypt(ctx, y, inputs[perm[i]], r)
	}
	return outputs, perm, rho, nil
}

// Prove produces the shuffle argument for outputs[i] =
// ReEnc(inputs[perm[i]], rho[i]).
func Prove(
	ctx group.Ctx,
	y group.Element,
	inputs, outputs []elgamal.Ciphertext,
	perm []int,
	rho []group.Scalar,
	label []byte,
	rand io.Reader,
) (Proof, error) {
	n := len(inputs)
	if len(outputs) != n || len(perm) != n || len(rho) != n {
		return Proof{}, fmt.Errorf("%w: length mismatch", group.ErrInvalidInput)
	}

	h, hs, err := generators(ctx, label, n)
	if err != nil {
		return Proof{}, err
	}

	// Permutation commitment: c_{perm[i]} = g^{r_{perm[i]}} * h_i.
	r := make([]group.Scalar, n)
	c := make([]group.Element, n)
	for i := 0; i < n; i++ {
		j := perm[i]
		rj, err := ctx.RandomScalar(rand)
		if err != nil {
			return Proof{}, err
		}
		r[j] = rj
		c[j] = ctx.Mul(ctx.GenExp(rj), hs[i])
	}

	u := challenges(ctx, label, y, inputs, outputs, c, n)
	uTilde := make([]group.Scalar, n)
	for i := 0; i < n; i++ {
		uTilde[i] = u[perm[i]]
	}

	// Commitment chain: c^_0 = h, c^_i = g^{r^_i} * c^_{i-1}^{u~_i}.
	rHat := make([]group.Scalar, n)
	chain := make([]group.Element, n)
	prev := h
	for i := 0; i < n; i++ {
		ri, err := ctx.RandomScalar(rand)
		if err != nil {
			return Proof{}, err
		}
		rHat[i] = ri
		chain[i] = ctx.Mul(ctx.GenExp(ri), ctx.Exp(prev, uTilde[i]))
		prev = chain[i]
	}

	// Commitment phase randomness.
	var omega [4]group.Scalar
	for i := range omega {
		if omega[i], err = ctx.RandomScalar(rand); err != nil {
			return Proof{}, err
		}
	}
	omegaHat := make([]group.Scalar, n)
	omegaTilde := make([]group.Scalar, n)
	for i := 0; i < n; i++ {
		if omegaHat[i], err = ctx.RandomScalar(rand); err != nil {
			return Proof{}, err
		}
		if omegaTilde[i], err = ctx.RandomScalar(rand); err != nil {
			return Proof{}, err
		}
	}

	t1 := ctx.GenExp(omega[0])
	t2 := ctx.GenExp(omega[1])
	t3 := ctx.GenExp(omega[2])
	for i := 0; i < n; i++ {
		t3 = ctx.Mul(t3, ctx.Exp(hs[i], omegaTilde[i]))
	}
	// t41 = y^{-w4} * prod outputs.mhr^{w~_i}
	// t42 = g^{-w4} * prod outputs.gr^{w~_i}
	yInv, err := ctx.Inv(y)
	if err != nil {
		return Proof{}, err
	}
	gInv, err := ctx.Inv(ctx.Generator())
	if err != nil {
		return Proof{}, err
	}
	t41 := ctx.Exp(yInv, omega[3])
	t42 := ctx.Exp(gInv, omega[3])
	for i := 0; i < n; i++ {
		t41 = ctx.Mul(t41, ctx.Exp(outputs[i].MHR, omegaTilde[i]))
		t42 = ctx.Mul(t42, ctx.Exp(outputs[i].GR, omegaTilde[i]))
	}
	tHat := make([]group.Element, n)
	prev = h
	for i := 0; i < n; i++ {
		tHat[i] = ctx.Mul(ctx.GenExp(omegaHat[i]), ctx.Exp(prev, omegaTilde[i]))
		prev = chain[i]
	}

	ch := proofChallenge(ctx, label, y, inputs, outputs, c, chain, t1, t2, t3, t41, t42, tHat)

	// rBar = sum r_j, rTilde = sum r_j*u_j, rPrime = sum rho_i*u~_i.
	rBar := ctx.ScalarZero()
	rTilde := ctx.ScalarZero()
	rPrime := ctx.ScalarZero()
	for j := 0; j < n; j++ {
		rBar = ctx.ScalarAdd(rBar, r[j])
		rTilde = ctx.ScalarAdd(rTilde, ctx.ScalarMul(r[j], u[j]))
	}
	for i := 0; i < n; i++ {
		rPrime = ctx.ScalarAdd(rPrime, ctx.ScalarMul(rho[i], uTilde[i]))
	}
	// rHatSum = sum r^_i * prod_{j>i} u~_j, accumulated backwards.
	rHatSum := ctx.ScalarZero()
	acc := ctx.ScalarOne()
	for i := n - 1; i >= 0; i-- {
		rHatSum = ctx.ScalarAdd(rHatSum, ctx.ScalarMul(rHat[i], acc))
		acc = ctx.ScalarMul(acc, uTilde[i])
	}

	sHat := make([]group.Scalar, n)
	sTilde := make([]group.Scalar, n)
	for i := 0; i < n; i++ {
		sHat[i] = ctx.ScalarAdd(omegaHat[i], ctx.ScalarMul(ch, rHat[i]))
		sTilde[i] = ctx.ScalarAdd(omegaTilde[i], ctx.ScalarMul(ch, uTilde[i]))
	}

	return Proof{
		PermCommit:  c,
		ChainCommit: chain,
		T1:          t1,
		T2:          t2,
		T3:          t3,
		T41:         t41,
		T42:         t42,
		THat:        tHat,
		S1:          ctx.ScalarAdd(omega[0], ctx.ScalarMul(ch, rBar)),
		S2:          ctx.ScalarAdd(omega[1], ctx.ScalarMul(ch, rHatSum)),
		S3:          ctx.ScalarAdd(omega[2], ctx.ScalarMul(ch, rTilde)),
		S4:          ctx.ScalarAdd(omega[3], ctx.ScalarMul(ch, rPrime)),
		SHat:        sHat,
		STilde:      sTilde,
	}, nil
}

// Verify checks the shuffle argument for the given input and output
// sequences under y.
func Verify(
	ctx group.Ctx,
	y group.Element,
	inputs, outputs []elgamal.Ciphertext,
	proof Proof,
	label []byte,
) error {
	n := len(inputs)
	if len(outputs) != n ||
		len(proof.PermCommit) != n ||
		len(proof.ChainCommit) != n ||
		len(proof.THat) != n ||
		len(proof.SHat) != n ||
		len(proof.STilde) != n {
		return fmt.Errorf("%w: shuffle proof dimensions", zkp.ErrProofCheckFailed)
	}
	if proof.T1 == nil || proof.T2 == nil || proof.T3 == nil ||
		proof.T41 == nil || proof.T42 == nil ||
		proof.S1 == nil || proof.S2 == nil || proof.S3 == nil || proof.S4 == nil {
		return fmt.Errorf("%w: missing commitments", zkp.ErrProofCheckFailed)
	}

	h, hs, err := generators(ctx, label, n)
	if err != nil {
		return err
	}
	u := challenges(ctx, label, y, inputs, outputs, proof.PermCommit, n)
	ch := proofChallenge(ctx, label, y, inputs, outputs,
		proof.PermCommit, proof.ChainCommit,
		proof.T1, proof.T2, proof.T3, proof.T41, proof.T42, proof.THat)
	// (1) g^{s1} == t1 * (prod c_j / prod h_i)^{ch}
	cBar := ctx.One()
	for j := 0; j < n; j++ {
		cBar = ctx.Mul(cBar, proof.PermCommit[j])
	}
	hProd := ctx.One()
	for i := 0; i < n; i++ {
		hProd = ctx.Mul(hProd, hs[i])
	}
	hProdInv, err := ctx.Inv(hProd)
	if err != nil {
		return err
	}
	cBar = ctx.Mul(cBar, hProdInv)
	if !ctx.GenExp(proof.S1).Equal(ctx.Mul(proof.T1, ctx.Exp(cBar, ch))) {
		return fmt.Errorf("%w: shuffle commitment sum", zkp.ErrProofCheckFailed)
	}

	// (2) g^{s2} == t2 * (chain_n / h^{prod u_j})^{ch}
	uProd := ctx.ScalarOne()
	for j := 0; j < n; j++ {
		uProd = ctx.ScalarMul(uProd, u[j])
	}
	chainEnd := h
	if n > 0 {
		chainEnd = proof.ChainCommit[n-1]
	}
	hPow, err := ctx.Inv(ctx.Exp(h, uProd))
	if err != nil {
		return err
	}
	cHat := ctx.Mul(chainEnd, hPow)
	if !ctx.GenExp(proof.S2).Equal(ctx.Mul(proof.T2, ctx.Exp(cHat, ch))) {
		return fmt.Errorf("%w: shuffle challenge product", zkp.ErrProofCheckFailed)
	}

	// (3) g^{s3} * prod h_i^{s~_i} == t3 * (prod c_j^{u_j})^{ch}
	lhs := ctx.GenExp(proof.S3)
	for i := 0; i < n; i++ {
		lhs = ctx.Mul(lhs, ctx.Exp(hs[i], proof.STilde[i]))
	}
	cTilde := ctx.One()
	for j := 0; j < n; j++ {
		cTilde = ctx.Mul(cTilde, ctx.Exp(proof.PermCommit[j], u[j]))
	}
	if !lhs.Equal(ctx.Mul(proof.T3, ctx.Exp(cTilde, ch))) {
		return fmt.Errorf("%w: shuffle permutation commitment", zkp.ErrProofCheckFailed)
	}

	// (4) re-encryption equations over both ciphertext components.
	yInv, err := ctx.Inv(y)
	if err != nil {
		return err
	}
	gInv, err := ctx.Inv(ctx.Generator())
	if err != nil {
		return err
	}
	lhs41 := ctx.Exp(yInv, proof.S4)
	lhs42 := ctx.Exp(gInv, proof.S4)
	for i := 0; i < n; i++ {
		lhs41 = ctx.Mul(lhs41, ctx.Exp(outputs[i].MHR, proof.STilde[i]))
		lhs42 = ctx.Mul(lhs42, ctx.Exp(outputs[i].GR, proof.STilde[i]))
	}
	aBar := ctx.One()
	bBar := ctx.One()
	for j := 0; j < n; j++ {
		aBar = ctx.Mul(aBar, ctx.Exp(inputs[j].MHR, u[j]))
		bBar = ctx.Mul(bBar, ctx.Exp(inputs[j].GR, u[j]))
	}
	if !lhs41.Equal(ctx.Mul(proof.T41, ctx.Exp(aBar, ch))) ||
		!lhs42.Equal(ctx.Mul(proof.T42, ctx.Exp(bBar, ch))) {
		return fmt.Errorf("%w: shuffle re-encryption", zkp.ErrProofCheckFailed)
	}

	// (5) per-link chain equations:
	// g^{s^_i} * prev^{s~_i} == t^_i * chain_i^{ch}
	prev := h
	for i := 0; i < n; i++ {
		l := ctx.Mul(ctx.GenExp(proof.SHat[i]), ctx.Exp(prev, proof.STilde[i]))
		rhs := ctx.Mul(proof.THat[i], ctx.Exp(proof.ChainCommit[i], ch))
		if !l.Equal(rhs) {
			return fmt.Errorf("%w: shuffle chain link %d", zkp.ErrProofCheckFailed, i)
		}
		prev = proof.ChainCommit[i]
	}

	// Degenerate n == 0: the four scalar equations above collapse to
	// g^{s} == t * identity^{ch}, which still binds the proof scalars.
	return nil
}

// generators derives h, h_1..h_n from the label.
func generators(ctx group.Ctx, label []byte, n int) (group.Element, []group.Element, error) {
	h, err := ctx.HashToElement([]byte("braid/shuffle/h"), label)
	if err != nil {
		return nil, nil, err
	}
	hs := make([]group.Element, n)
	for i := 0; i < n; i++ {
		var idx [4]byte
		binary.BigEndian.PutUint32(idx[:], uint32(i))
		if hs[i], err = ctx.HashToElement([]byte("braid/shuffle/hs"), label, idx[:]); err != nil {
			return nil, nil, err
		}
	}
	return h, hs, nil
}

// challenges derives u_1..u_n binding the instance and the permutation
// commitment.
func challenges(
	ctx group.Ctx,
	label []byte,
	y group.Element,
	inputs, outputs []elgamal.Ciphertext,
	permCommit []group.Element,
	n int,
) []group.Scalar {
	base := instanceDigest(label, y, inputs, outputs, permCommit, nil, nil)
	u := make([]group.Scalar, n)
	for i := 0; i < n; i++ {
		var idx [4]byte
		binary.BigEndian.PutUint32(idx[:], uint32(i))
		u[i] = ctx.HashToScalar([]byte("braid/shuffle/u"), base, idx[:])
	}
	return u
}

func proofChallenge(
	ctx group.Ctx,
	label []byte,
	y group.Element,
	inputs, outputs []elgamal.Ciphertext,
	permCommit, chainCommit []group.Element,
	t1, t2, t3, t41, t42 group.Element,
	tHat []group.Element,
) group.Scalar {
	ts := []group.Element{t1, t2, t3, t41, t42}
	ts = append(ts, tHat...)
	base := instanceDigest(label, y, inputs, outputs, permCommit, chainCommit, ts)
	return ctx.HashToScalar([]byte("braid/shuffle/challenge"), base)
}

// instanceDigest hashes every public value of the argument into one
// digest reused by the challenge derivations.
func instanceDigest(
	label []byte,
	y group.Element,
	inputs, outputs []elgamal.Ciphertext,
	permCommit, chainCommit []group.Element,
	ts []group.Element,
) []byte {
	h := sha512.New()
	writePart := func(b []byte) {
		var lenb [8]byte
		binary.BigEndian.PutUint64(lenb[:], uint64(len(b)))
		h.Write(lenb[:])
		h.Write(b)
	}
	writePart(label)
	writePart(y.Bytes())
	for _, c := range inputs {
		writePart(c.GR.Bytes())
		writePart(c.MHR.Bytes())
	}
	for _, c := range outputs {
		writePart(c.GR.Bytes())
		writePart(c.MHR.Bytes())
	}
	for _, e := range permCommit {
		writePart(e.Bytes())
	}
	for _, e := range chainCommit {
		writePart(e.Bytes())
	}
	for _, e := range ts {
		writePart(e.Bytes())
	}
	return h.Sum(nil)
}

func randomPermutation(n int, rand io.Reader) ([]int, error) {
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	// Fisher-Yates with rejection sampling for unbiased indices.
	for i := n - 1; i > 0; i-- {
		j, err := uniformInt(rand, i+1)
		if err != nil {
			return nil, err
		}
		perm[i], perm[j] = perm[j], perm[i]
	}
	return perm, nil
}

func uniformInt(rand io.Reader, bound int) (int, error) {
	max := uint64(bound)
	limit := (^uint64(0) / max) * max
	var buf [8]byte
	for {
		if _, err := io.ReadFull(rand, buf[:]); err != nil {
			return 0, fmt.Errorf("%w: %w", group.ErrInternal, err)
		}
		v := binary.BigEndian.Uint64(buf[:])
		if v < limit {
			return int(v % max), nil
		}
	}
}
