// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package predicate derives the logical facts the inference engine
// consumes from stored statements. Predicates are plain comparable
// values: two predicates with equal fields are indistinguishable, and
// hash arrays are fixed-width so predicates can key sets and maps.
package predicate

import (
	"errors"
	"fmt"

	"github.com/luxfi/braid/artifact"
	"github.com/luxfi/braid/canonical"
	"github.com/luxfi/braid/crypto/sign"
	"github.com/luxfi/braid/statement"
)

var (
	// ErrNotInConfiguration marks a trustee key absent from the
	// configuration during bootstrap derivation.
	ErrNotInConfiguration = errors.New("predicate: trustee not in configuration")
	// ErrImpossibleStatement marks a statement kind that never reaches
	// derivation (bootstrap configurations are installed, not stored).
	ErrImpossibleStatement = errors.New("predicate: statement kind cannot be derived")
)

// Kind tags a predicate variant.
type Kind byte

const (
	// Input predicates, derived from the configuration or statements.
	Configuration Kind = iota
	ConfigurationSigned
	Channel
	ChannelsSigned
	Shares
	PublicKey
	PublicKeySigned
	Ballots
	Mix
	MixSigned
	DecryptionFactors
	Plaintexts
	PlaintextsSigned

	// Output predicates, produced by the inference engine.
	ConfigurationSignedAll
	ChannelsAllSignedAll
	PublicKeySignedAll
	MixComplete

	numKinds
)

var kindNames = [numKinds]string{
	"Configuration",
	"ConfigurationSigned",
	"Channel",
	"ChannelsSigned",
	"Shares",
	"PublicKey",
	"PublicKeySigned",
	"Ballots",
	"Mix",
	"MixSigned",
	"DecryptionFactors",
	"Plaintexts",
	"PlaintextsSigned",
	"ConfigurationSignedAll",
	"ChannelsAllSignedAll",
	"PublicKeySignedAll",
	"MixComplete",
}

func (k Kind) String() string {
	if k < numKinds {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", byte(k))
}

// Hashes is a fixed-width hash vector; slots beyond the trustee count
// stay zero. Fixed width keeps predicates comparable.
type Hashes [artifact.MaxTrustees]canonical.Hash

// HashesOf packs a slice into the fixed-width vector.
func HashesOf(hs []canonical.Hash) Hashes {
	var out Hashes
	copy(out[:], hs)
	return out
}

// Slice unpacks the first n hashes.
func (h Hashes) Slice(n int) []canonical.Hash {
	out := make([]canonical.Hash, n)
	copy(out, h[:n])
	return out
}

// Predicate is one fact. The populated fields depend on the kind; the
// zero value of unused fields is part of the predicate's identity.
type Predicate struct {
	Kind Kind
	Cfg  canonical.Hash

	// Position is the signer position, or the trustee's own position
	// for the bootstrap Configuration predicate.
	Position int
	// Count and Threshold are only set on Configuration and
	// ConfigurationSignedAll.
	Count     int
	Threshold int

	Batch     uint32
	MixNumber uint32

	// Hash is the primary artifact hash of the fact: channel, shares,
	// public key, ciphertexts (ballots/mix output), factors or
	// plaintexts hash.
	Hash canonical.Hash
	// SourceHash is the ciphertexts a mix consumed, or the final mix
	// a decryption or combination consumed.
	SourceHash canonical.Hash
	// PublicKeyHash references the DKG public key.
	PublicKeyHash canonical.Hash

	Shares   Hashes
	Channels Hashes
	Factors  Hashes

	Trustees artifact.TrusteeSet
}

func (p Predicate) String() string {
	return fmt.Sprintf("%s{cfg=%s signer=%d batch=%d mix=%d hash=%s}",
		p.Kind, p.Cfg, p.Position, p.Batch, p.MixNumber, p.Hash)
}

// FromStatement derives the predicate for one stored statement. The
// derivation is a pure function of the statement, the signer position
// and the configuration. A Ballots statement whose TrusteeSet does not
// select exactly the threshold subset is rejected here with a typed
// error; it must never panic.
func FromStatement(st *statement.Statement, signer int, cfg *artifact.Configuration) (Predicate, error) {
	switch st.Kind {
	case statement.KindConfiguration:
		// Bootstrap configurations are installed into the board's
		// dedicated slot and derived through Bootstrap, never stored
		// as statements.
		return Predicate{}, ErrImpossibleStatement

	case statement.KindConfigurationSigned:
		return Predicate{Kind: ConfigurationSigned, Cfg: st.CfgHash, Position: signer}, nil

	case statement.KindChannel:
		return Predicate{Kind: Channel, Cfg: st.CfgHash, Hash: st.ArtifactHash, Position: signer}, nil

	case statement.KindChannelsAllSigned:
		return Predicate{
			Kind: ChannelsSigned, Cfg: st.CfgHash,
			Channels: HashesOf(st.ChannelsHashes), Position: signer,
		}, nil

	case statement.KindShares:
		return Predicate{Kind: Shares, Cfg: st.CfgHash, Hash: st.ArtifactHash, Position: signer}, nil

	case statement.KindPublicKey:
		return Predicate{
			Kind: PublicKey, Cfg: st.CfgHash, Hash: st.ArtifactHash,
			Shares: HashesOf(st.SharesHashes), Channels: HashesOf(st.ChannelsHashes),
			Position: signer,
		}, nil

	case statement.KindPublicKeySigned:
		return Predicate{
			Kind: PublicKeySigned, Cfg: st.CfgHash, Hash: st.ArtifactHash,
			Shares: HashesOf(st.SharesHashes), Channels: HashesOf(st.ChannelsHashes),
			Position: signer,
		}, nil

	case statement.KindBallots:
		if err := st.Trustees.Validate(cfg.TrusteeCount(), cfg.Threshold); err != nil {
			return Predicate{}, err
		}
		return Predicate{
			Kind: Ballots, Cfg: st.CfgHash, Batch: st.Batch,
			Hash: st.ArtifactHash, PublicKeyHash: st.PublicKeyHash,
			Trustees: st.Trustees,
		}, nil

	case statement.KindMix:
		return Predicate{
			Kind: Mix, Cfg: st.CfgHash, Batch: st.Batch,
			SourceHash: st.SourceHash, Hash: st.ArtifactHash,
			MixNumber: st.MixNumber, Position: signer,
		}, nil

	case statement.KindMixSigned:
		return Predicate{
			Kind: MixSigned, Cfg: st.CfgHash, Batch: st.Batch,
			SourceHash: st.SourceHash, Hash: st.ArtifactHash,
			Position: signer,
		}, nil

	case statement.KindDecryptionFactors:
		return Predicate{
			Kind: DecryptionFactors, Cfg: st.CfgHash, Batch: st.Batch,
			Hash: st.ArtifactHash, SourceHash: st.CiphertextsHash,
			Shares: HashesOf(st.SharesHashes), Position: signer,
		}, nil

	case statement.KindPlaintexts:
		return Predicate{
			Kind: Plaintexts, Cfg: st.CfgHash, Batch: st.Batch,
			Hash: st.ArtifactHash, Factors: HashesOf(st.FactorsHashes),
			SourceHash: st.CiphertextsHash, PublicKeyHash: st.PublicKeyHash,
			Position: signer,
		}, nil

	case statement.KindPlaintextsSigned:
		return Predicate{
			Kind: PlaintextsSigned, Cfg: st.CfgHash, Batch: st.Batch,
			Hash: st.ArtifactHash, Factors: HashesOf(st.FactorsHashes),
			SourceHash: st.CiphertextsHash, PublicKeyHash: st.PublicKeyHash,
			Position: signer,
		}, nil

	default:
		return Predicate{}, fmt.Errorf("%w: %s", ErrImpossibleStatement, st.Kind)
	}
}

// Bootstrap emits the Configuration predicate for the trustee holding
// pk, derived from the installed configuration rather than from any
// statement.
func Bootstrap(cfg *artifact.Configuration, cfgHash canonical.Hash, pk sign.PublicKey) (Predicate, error) {
	position, ok := cfg.TrusteePosition(pk)
	if !ok {
		return Predicate{}, ErrNotInConfiguration
	}
	if position == artifact.ProtocolManagerIndex {
		return Predicate{}, fmt.Errorf("%w: protocol manager is not a trustee", ErrNotInConfiguration)
	}
	return Predicate{
		Kind: Configuration, Cfg: cfgHash,
		Position: position, Count: cfg.TrusteeCount(), Threshold: cfg.Threshold,
	}, nil
}

// VerifierBootstrap emits the Configuration predicate at the verifier
// pseudo-position.
func VerifierBootstrap(cfg *artifact.Configuration, cfgHash canonical.Hash) Predicate {
	return Predicate{
		Kind: Configuration, Cfg: cfgHash,
		Position: artifact.VerifierIndex, Count: cfg.TrusteeCount(), Threshold: cfg.Threshold,
	}
}
