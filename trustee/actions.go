// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package trustee

import (
	"errors"
	"fmt"

	"github.com/luxfi/braid/artifact"
	"github.com/luxfi/braid/board"
	"github.com/luxfi/braid/canonical"
	"github.com/luxfi/braid/crypto/elgamal"
	"github.com/luxfi/braid/crypto/group"
	"github.com/luxfi/braid/crypto/shuffle"
	"github.com/luxfi/braid/crypto/symm"
	"github.com/luxfi/braid/crypto/zkp"
	"github.com/luxfi/braid/inference"
	"github.com/luxfi/braid/statement"
)

// ErrPublicKeyMismatch marks a proposed joint public key that does not
// match its re-derivation from the referenced shares.
var ErrPublicKeyMismatch = errors.New("trustee: public key does not match shares")

// ErrPlaintextsMismatch marks published plaintexts that do not match
// their re-derivation from the referenced factors.
var ErrPlaintextsMismatch = errors.New("trustee: plaintexts do not match factors")

// executor runs one action against the staged board, producing zero or
// more signed messages. Executors never mutate the board.
type executor func(t *Trustee, staged *board.Local, a inference.Action) ([]statement.Message, error)

// executors is the dispatch table for a participating trustee.
var executors = map[inference.ActionKind]executor{
	inference.SignConfiguration: runSignConfiguration,
	inference.PublishChannel:    runPublishChannel,
	inference.SignAllChannels:   runSignAllChannels,
	inference.PublishShares:     runPublishShares,
	inference.ComputePublicKey:  runComputePublicKey,
	inference.SignPublicKey:     runSignPublicKey,
	inference.Shuffle:           runShuffle,
	inference.SignMix:           runSignMix,
	inference.Decrypt:           runDecrypt,
	inference.CombinePlaintexts: runCombinePlaintexts,
	inference.SignPlaintexts:    runSignPlaintexts,
}

///////////////////////////////////////////////////////////////////////////
// DKG actions
///////////////////////////////////////////////////////////////////////////

func runSignConfiguration(t *Trustee, staged *board.Local, a inference.Action) ([]statement.Message, error) {
	cfg, err := staged.GetConfiguration(a.Cfg)
	if err != nil {
		return nil, err
	}
	if err := t.approveConfiguration(cfg); err != nil {
		return nil, err
	}
	st := statement.ConfigurationSigned(t.now(), a.Cfg)
	msg, err := statement.Sign(t, st, nil)
	if err != nil {
		return nil, err
	}
	return []statement.Message{msg}, nil
}

// approveConfiguration inspects the configuration's semantics before
// the trustee commits its signature to it.
func (t *Trustee) approveConfiguration(cfg *artifact.Configuration) error {
	if err := cfg.Valid(); err != nil {
		return fmt.Errorf("%w: %w", ErrConfigurationRejected, err)
	}
	if cfg.Group != t.ctx.Name() {
		return fmt.Errorf("%w: group %q, running %q", ErrConfigurationRejected, cfg.Group, t.ctx.Name())
	}
	return nil
}

func runPublishChannel(t *Trustee, staged *board.Local, a inference.Action) ([]statement.Message, error) {
	kp, err := elgamal.GenerateKeyPair(t.ctx, t.rng)
	if err != nil {
		return nil, err
	}
	sealed, err := symm.Seal(t.storageKey, kp.Secret.Bytes(), channelAAD(a.Cfg, a.Self), t.rng)
	if err != nil {
		return nil, err
	}
	ch := &artifact.Channel{Element: kp.Public, EncryptedSK: sealed}
	bytes, err := ch.Encode()
	if err != nil {
		return nil, err
	}
	st := statement.Channel(t.now(), a.Cfg, canonical.Sum(bytes))
	msg, err := statement.Sign(t, st, bytes)
	if err != nil {
		return nil, err
	}
	return []statement.Message{msg}, nil
}

func runSignAllChannels(t *Trustee, staged *board.Local, a inference.Action) ([]statement.Message, error) {
	cfg, err := staged.GetConfiguration(a.Cfg)
	if err != nil {
		return nil, err
	}
	hashes := a.Channels.Slice(cfg.TrusteeCount())
	// Every channel must be present and hash-checked before the
	// trustee signs the list.
	for i, h := range hashes {
		if _, err := staged.GetChannel(h, i+1); err != nil {
			return nil, err
		}
	}
	st := statement.ChannelsAllSigned(t.now(), a.Cfg, hashes)
	msg, err := statement.Sign(t, st, nil)
	if err != nil {
		return nil, err
	}
	return []statement.Message{msg}, nil
}

func runPublishShares(t *Trustee, staged *board.Local, a inference.Action) ([]statement.Message, error) {
	cfg, err := staged.GetConfiguration(a.Cfg)
	if err != nil {
		return nil, err
	}
	n := cfg.TrusteeCount()

	coeffs, err := randomPolynomial(t.ctx, cfg.Threshold, t.rng)
	if err != nil {
		return nil, err
	}
	// The constant term is this trustee's private key contribution:
	// the channel secret, recoverable across restarts from the
	// trustee's own Channel artifact. The joint public key is then the
	// product of the channel public elements.
	coeffs[0], err = t.channelSecret(staged, a.Channels[a.Self-1], a.Cfg, a.Self)
	if err != nil {
		return nil, err
	}
	shares := &artifact.Shares{
		Commitments: commitPolynomial(t.ctx, coeffs),
		Encrypted:   make([]artifact.EncryptedShare, n),
	}
	for j := 1; j <= n; j++ {
		ch, err := staged.GetChannel(a.Channels[j-1], j)
		if err != nil {
			return nil, err
		}
		share := evalPolynomial(t.ctx, coeffs, j)
		sealed, err := symm.SealTo(t.ctx, ch.Element, share.Bytes(), shareAAD(a.Cfg, a.Self, j), t.rng)
		if err != nil {
			return nil, err
		}
		shares.Encrypted[j-1] = artifact.EncryptedShare{Ephemeral: sealed.Ephemeral, Blob: sealed.Blob}
	}

	bytes, err := shares.Encode()
	if err != nil {
		return nil, err
	}
	st := statement.Shares(t.now(), a.Cfg, canonical.Sum(bytes))
	msg, err := statement.Sign(t, st, bytes)
	if err != nil {
		return nil, err
	}
	return []statement.Message{msg}, nil
}

// channelSecret recovers the trustee's channel private key from its own
// published channel artifact.
func (t *Trustee) channelSecret(staged *board.Local, channelHash canonical.Hash, cfgHash canonical.Hash, self int) (group.Scalar, error) {
	ch, err := staged.GetChannel(channelHash, self)
	if err != nil {
		return nil, err
	}
	pt, err := symm.Open(t.storageKey, ch.EncryptedSK, channelAAD(cfgHash, self))
	if err != nil {
		return nil, err
	}
	return t.ctx.DecodeScalar(pt)
}

// recoverSecretShare decrypts the share addressed to this trustee from
// every dealer, verifies each against the dealer's commitments, and
// sums them into the trustee's private key share.
func (t *Trustee) recoverSecretShare(staged *board.Local, a inference.Action, n int) (group.Scalar, []*artifact.Shares, error) {
	chSecret, err := t.channelSecret(staged, a.Channels[a.Self-1], a.Cfg, a.Self)
	if err != nil {
		return nil, nil, err
	}
	dealers, err := dealerShares(staged, a.Shares.Slice(n))
	if err != nil {
		return nil, nil, err
	}

	x := t.ctx.ScalarZero()
	for i, dealer := range dealers {
		if len(dealer.Encrypted) != n {
			return nil, nil, fmt.Errorf("%w: dealer %d sealed %d shares for %d trustees",
				ErrInvalidShare, i+1, len(dealer.Encrypted), n)
		}
		pt, err := symm.OpenFrom(t.ctx, chSecret, dealer.Encrypted[a.Self-1].Sealed(), shareAAD(a.Cfg, i+1, a.Self))
		if err != nil {
			return nil, nil, fmt.Errorf("opening share from dealer %d: %w", i+1, err)
		}
		share, err := t.ctx.DecodeScalar(pt)
		if err != nil {
			return nil, nil, err
		}
		if !verifyShare(t.ctx, share, dealer.Commitments, a.Self) {
			return nil, nil, fmt.Errorf("%w: dealer %d", ErrInvalidShare, i+1)
		}
		x = t.ctx.ScalarAdd(x, share)
	}
	return x, dealers, nil
}

func runComputePublicKey(t *Trustee, staged *board.Local, a inference.Action) ([]statement.Message, error) {
	cfg, err := staged.GetConfiguration(a.Cfg)
	if err != nil {
		return nil, err
	}
	n := cfg.TrusteeCount()

	_, dealers, err := t.recoverSecretShare(staged, a, n)
	if err != nil {
		return nil, err
	}

	pk := &artifact.DkgPublicKey{Y: jointPublicKey(t.ctx, dealers)}
	bytes, err := pk.Encode()
	if err != nil {
		return nil, err
	}
	st := statement.PublicKey(t.now(), a.Cfg, canonical.Sum(bytes), a.Shares.Slice(n), a.Channels.Slice(n))
	msg, err := statement.Sign(t, st, bytes)
	if err != nil {
		return nil, err
	}
	return []statement.Message{msg}, nil
}

// rederivePublicKey rebuilds the joint key artifact from the referenced
// shares and checks its hash against the proposed one.
func rederivePublicKey(ctx group.Ctx, staged *board.Local, shares []canonical.Hash, proposed canonical.Hash) error {
	dealers, err := dealerShares(staged, shares)
	if err != nil {
		return err
	}
	pk := &artifact.DkgPublicKey{Y: jointPublicKey(ctx, dealers)}
	bytes, err := pk.Encode()
	if err != nil {
		return err
	}
	if canonical.Sum(bytes) != proposed {
		return ErrPublicKeyMismatch
	}
	return nil
}

func runSignPublicKey(t *Trustee, staged *board.Local, a inference.Action) ([]statement.Message, error) {
	cfg, err := staged.GetConfiguration(a.Cfg)
	if err != nil {
		return nil, err
	}
	n := cfg.TrusteeCount()
	if err := rederivePublicKey(t.ctx, staged, a.Shares.Slice(n), a.PublicKeyHash); err != nil {
		return nil, err
	}
	st := statement.PublicKeySigned(t.now(), a.Cfg, a.PublicKeyHash, a.Shares.Slice(n), a.Channels.Slice(n))
	msg, err := statement.Sign(t, st, nil)
	if err != nil {
		return nil, err
	}
	return []statement.Message{msg}, nil
}

///////////////////////////////////////////////////////////////////////////
// Shuffle actions
///////////////////////////////////////////////////////////////////////////

// resolvePublicKey fetches the DKG public key artifact by hash from
// whichever trustee published it.
func resolvePublicKey(staged *board.Local, hash canonical.Hash, n int) (*artifact.DkgPublicKey, error) {
	var lastErr error
	for i := 1; i <= n; i++ {
		pk, err := staged.GetPublicKey(hash, i)
		if err == nil {
			return pk, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

// sourceCiphertexts resolves a mix's source: the ballots batch for the
// first link, the previous trustee's mix after that.
func sourceCiphertexts(staged *board.Local, a inference.Action) ([]elgamal.Ciphertext, error) {
	if a.MixNumber == 1 {
		ballots, err := staged.GetBallots(a.SourceHash, a.Batch, artifact.ProtocolManagerIndex)
		if err != nil {
			return nil, err
		}
		return ballots.Ciphertexts, nil
	}
	prev := a.Trustees.AtRank(int(a.MixNumber) - 1)
	mix, err := staged.GetMix(a.SourceHash, a.Batch, prev)
	if err != nil {
		return nil, err
	}
	return mix.Ciphertexts, nil
}

func runShuffle(t *Trustee, staged *board.Local, a inference.Action) ([]statement.Message, error) {
	cfg, err := staged.GetConfiguration(a.Cfg)
	if err != nil {
		return nil, err
	}
	inputs, err := sourceCiphertexts(staged, a)
	if err != nil {
		return nil, err
	}
	pk, err := resolvePublicKey(staged, a.PublicKeyHash, cfg.TrusteeCount())
	if err != nil {
		return nil, err
	}

	outputs, perm, rho, err := shuffle.Shuffle(t.ctx, pk.Y, inputs, t.rng)
	if err != nil {
		return nil, err
	}
	proof, err := shuffle.Prove(t.ctx, pk.Y, inputs, outputs, perm, rho,
		shuffleLabel(a.Cfg, a.Batch, a.MixNumber), t.rng)
	if err != nil {
		return nil, err
	}

	mix := &artifact.Mix{MixNumber: a.MixNumber, Ciphertexts: outputs, Proof: proof}
	bytes, err := mix.Encode()
	if err != nil {
		return nil, err
	}
	st := statement.Mix(t.now(), a.Cfg, a.Batch, a.MixNumber, a.SourceHash, canonical.Sum(bytes))
	msg, err := statement.Sign(t, st, bytes)
	if err != nil {
		return nil, err
	}
	return []statement.Message{msg}, nil
}

// checkMix verifies another trustee's shuffle proof against its source
// ciphertexts and the joint public key.
func checkMix(ctx group.Ctx, staged *board.Local, a inference.Action, n int) error {
	mix, err := staged.GetMix(a.MixHash, a.Batch, a.Signer)
	if err != nil {
		return err
	}
	if mix.MixNumber != a.MixNumber {
		return fmt.Errorf("%w: mix number %d, statement says %d",
			zkp.ErrProofCheckFailed, mix.MixNumber, a.MixNumber)
	}
	inputs, err := sourceCiphertexts(staged, a)
	if err != nil {
		return err
	}
	if len(mix.Ciphertexts) != len(inputs) {
		return fmt.Errorf("%w: mix length %d, source length %d",
			zkp.ErrProofCheckFailed, len(mix.Ciphertexts), len(inputs))
	}
	pk, err := resolvePublicKey(staged, a.PublicKeyHash, n)
	if err != nil {
		return err
	}
	return shuffle.Verify(ctx, pk.Y, inputs, mix.Ciphertexts, mix.Proof,
		shuffleLabel(a.Cfg, a.Batch, a.MixNumber))
}

func runSignMix(t *Trustee, staged *board.Local, a inference.Action) ([]statement.Message, error) {
	cfg, err := staged.GetConfiguration(a.Cfg)
	if err != nil {
		return nil, err
	}
	if err := checkMix(t.ctx, staged, a, cfg.TrusteeCount()); err != nil {
		return nil, err
	}
	st := statement.MixSigned(t.now(), a.Cfg, a.Batch, a.MixNumber, a.SourceHash, a.MixHash)
	msg, err := statement.Sign(t, st, nil)
	if err != nil {
		return nil, err
	}
	return []statement.Message{msg}, nil
}

///////////////////////////////////////////////////////////////////////////
// Decryption actions
///////////////////////////////////////////////////////////////////////////

// finalMix fetches the last mix of the chain, produced by the last
// active trustee.
func finalMix(staged *board.Local, a inference.Action) (*artifact.Mix, error) {
	last := a.Trustees.AtRank(len(a.Trustees.Active()))
	return staged.GetMix(a.SourceHash, a.Batch, last)
}

func runDecrypt(t *Trustee, staged *board.Local, a inference.Action) ([]statement.Message, error) {
	cfg, err := staged.GetConfiguration(a.Cfg)
	if err != nil {
		return nil, err
	}
	n := cfg.TrusteeCount()

	x, _, err := t.recoverSecretShare(staged, a, n)
	if err != nil {
		return nil, err
	}
	mix, err := finalMix(staged, a)
	if err != nil {
		return nil, err
	}

	public := t.ctx.GenExp(x)
	label := decryptLabel(a.Cfg, a.Batch, a.Self)
	factors := &artifact.DecryptionFactors{
		Factors: make([]group.Element, len(mix.Ciphertexts)),
		Proofs:  make([]zkp.ChaumPedersenProof, len(mix.Ciphertexts)),
	}
	for j, ct := range mix.Ciphertexts {
		d := t.ctx.Exp(ct.GR, x)
		proof, err := zkp.ChaumPedersenProve(t.ctx, x, public, d, nil, ct.GR, label, t.rng)
		if err != nil {
			return nil, err
		}
		factors.Factors[j] = d
		factors.Proofs[j] = proof
	}

	bytes, err := factors.Encode()
	if err != nil {
		return nil, err
	}
	st := statement.DecryptionFactors(t.now(), a.Cfg, a.Batch, canonical.Sum(bytes), a.SourceHash, a.Shares.Slice(n))
	msg, err := statement.Sign(t, st, bytes)
	if err != nil {
		return nil, err
	}
	return []statement.Message{msg}, nil
}

// derivePlaintexts verifies every active trustee's decryption factors
// and combines them by Lagrange interpolation in the exponent.
func derivePlaintexts(ctx group.Ctx, staged *board.Local, a inference.Action, n int) (*artifact.Plaintexts, error) {
	dealers, err := dealerShares(staged, a.Shares.Slice(n))
	if err != nil {
		return nil, err
	}
	dealerComms := make([][]group.Element, len(dealers))
	for i, d := range dealers {
		dealerComms[i] = d.Commitments
	}

	mix, err := finalMix(staged, a)
	if err != nil {
		return nil, err
	}
	active := a.Trustees.Active()

	factors := make([]*artifact.DecryptionFactors, len(active))
	for rank, pos := range active {
		df, err := staged.GetDecryptionFactors(a.Factors[rank], a.Batch, pos)
		if err != nil {
			return nil, err
		}
		if len(df.Factors) != len(mix.Ciphertexts) || len(df.Proofs) != len(mix.Ciphertexts) {
			return nil, fmt.Errorf("%w: trustee %d factor count", zkp.ErrProofCheckFailed, pos)
		}
		public := publicShare(ctx, dealerComms, pos)
		label := decryptLabel(a.Cfg, a.Batch, pos)
		for j, ct := range mix.Ciphertexts {
			if err := zkp.ChaumPedersenVerify(ctx, public, df.Factors[j], nil, ct.GR, df.Proofs[j], label); err != nil {
				return nil, fmt.Errorf("trustee %d ciphertext %d: %w", pos, j, err)
			}
		}
		factors[rank] = df
	}

	lambdas := make([]group.Scalar, len(active))
	for rank, pos := range active {
		l, err := lagrangeCoefficient(ctx, active, pos)
		if err != nil {
			return nil, err
		}
		lambdas[rank] = l
	}

	out := &artifact.Plaintexts{Elements: make([]group.Element, len(mix.Ciphertexts))}
	for j, ct := range mix.Ciphertexts {
		combined := ctx.One()
		for rank := range active {
			combined = ctx.Mul(combined, ctx.Exp(factors[rank].Factors[j], lambdas[rank]))
		}
		m, err := elgamal.DecryptWithFactor(ctx, ct, combined)
		if err != nil {
			return nil, err
		}
		out.Elements[j] = m
	}
	return out, nil
}

func runCombinePlaintexts(t *Trustee, staged *board.Local, a inference.Action) ([]statement.Message, error) {
	cfg, err := staged.GetConfiguration(a.Cfg)
	if err != nil {
		return nil, err
	}
	plaintexts, err := derivePlaintexts(t.ctx, staged, a, cfg.TrusteeCount())
	if err != nil {
		return nil, err
	}
	bytes, err := plaintexts.Encode()
	if err != nil {
		return nil, err
	}
	threshold := len(a.Trustees.Active())
	st := statement.Plaintexts(t.now(), a.Cfg, a.Batch, canonical.Sum(bytes),
		a.Factors.Slice(threshold), a.SourceHash, a.PublicKeyHash)
	msg, err := statement.Sign(t, st, bytes)
	if err != nil {
		return nil, err
	}
	return []statement.Message{msg}, nil
}

func runSignPlaintexts(t *Trustee, staged *board.Local, a inference.Action) ([]statement.Message, error) {
	cfg, err := staged.GetConfiguration(a.Cfg)
	if err != nil {
		return nil, err
	}
	plaintexts, err := derivePlaintexts(t.ctx, staged, a, cfg.TrusteeCount())
	if err != nil {
		return nil, err
	}
	bytes, err := plaintexts.Encode()
	if err != nil {
		return nil, err
	}
	if canonical.Sum(bytes) != a.PlaintextsHash {
		return nil, ErrPlaintextsMismatch
	}
	threshold := len(a.Trustees.Active())
	st := statement.PlaintextsSigned(t.now(), a.Cfg, a.Batch, a.PlaintextsHash,
		a.Factors.Slice(threshold), a.SourceHash, a.PublicKeyHash)
	msg, err := statement.Sign(t, st, nil)
	if err != nil {
		return nil, err
	}
	return []statement.Message{msg}, nil
}
