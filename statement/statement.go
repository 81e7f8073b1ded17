// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package statement defines the signed, hash-referencing envelopes that
// trustees append to the bulletin board, and the messages that carry
// them. A statement references every artifact it depends on by
// canonical hash; artifacts are never referenced by position.
package statement

import (
	"fmt"

	"github.com/luxfi/braid/artifact"
	"github.com/luxfi/braid/canonical"
)

// Kind is the statement discriminator. The byte values are the wire
// tags and must not be reordered.
type Kind byte

const (
	KindConfiguration Kind = iota
	KindConfigurationSigned
	KindChannel
	KindChannelsAllSigned
	KindShares
	KindPublicKey
	KindPublicKeySigned
	KindBallots
	KindMix
	KindMixSigned
	KindDecryptionFactors
	KindPlaintexts
	KindPlaintextsSigned

	numKinds
)

var kindNames = [numKinds]string{
	"Configuration",
	"ConfigurationSigned",
	"Channel",
	"ChannelsAllSigned",
	"Shares",
	"PublicKey",
	"PublicKeySigned",
	"Ballots",
	"Mix",
	"MixSigned",
	"DecryptionFactors",
	"Plaintexts",
	"PlaintextsSigned",
}

func (k Kind) String() string {
	if k < numKinds {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", byte(k))
}

// Valid reports whether the kind is a known discriminator.
func (k Kind) Valid() bool {
	return k < numKinds
}

// OwnsArtifact reports whether messages of this kind carry artifact
// bytes.
func (k Kind) OwnsArtifact() bool {
	switch k {
	case KindConfiguration, KindChannel, KindShares, KindPublicKey,
		KindBallots, KindMix, KindDecryptionFactors, KindPlaintexts:
		return true
	default:
		return false
	}
}

// Statement is one of the thirteen variants. A single struct carries
// the union of fields; the canonical encoding writes only the fields
// the kind defines, in fixed order.
type Statement struct {
	Kind      Kind
	Timestamp int64
	CfgHash   canonical.Hash

	// Batch is the 0-based batch number (shuffle and decrypt phases).
	Batch uint32
	// MixNumber is the 1-based chain position (Mix, MixSigned).
	MixNumber uint32

	// ArtifactHash is the hash of the owned or attested artifact: the
	// configuration hash itself for Configuration/ConfigurationSigned,
	// otherwise the channel/shares/public key/ballots/mix/factors/
	// plaintexts hash.
	ArtifactHash canonical.Hash
	// SourceHash points to the ciphertexts a mix consumed.
	SourceHash canonical.Hash
	// CiphertextsHash points to the final mix a decryption consumed.
	CiphertextsHash canonical.Hash
	// PublicKeyHash references the DKG public key (Ballots,
	// Plaintexts, PlaintextsSigned).
	PublicKeyHash canonical.Hash

	SharesHashes   []canonical.Hash
	ChannelsHashes []canonical.Hash
	FactorsHashes  []canonical.Hash

	// Trustees selects the active subset for a ballots batch.
	Trustees artifact.TrusteeSet
}

// Encode returns the canonical bytes, which are also the signed bytes.
func (s *Statement) Encode() ([]byte, error) {
	if !s.Kind.Valid() {
		return nil, fmt.Errorf("statement: invalid kind %d", s.Kind)
	}
	p := canonical.NewPacker(256)
	p.PackByte(byte(s.Kind))
	p.PackInt64(s.Timestamp)
	p.PackHash(s.CfgHash)

	switch s.Kind {
	case KindConfiguration, KindConfigurationSigned:
		// The configuration hash doubles as the artifact reference.
	case KindChannel, KindShares:
		p.PackHash(s.ArtifactHash)
	case KindChannelsAllSigned:
		p.PackHashes(s.ChannelsHashes)
	case KindPublicKey, KindPublicKeySigned:
		p.PackHash(s.ArtifactHash)
		p.PackHashes(s.SharesHashes)
		p.PackHashes(s.ChannelsHashes)
	case KindBallots:
		p.PackUint32(s.Batch)
		p.PackHash(s.ArtifactHash)
		p.PackHash(s.PublicKeyHash)
		p.PackFixedBytes(s.Trustees[:])
	case KindMix, KindMixSigned:
		p.PackUint32(s.Batch)
		p.PackUint32(s.MixNumber)
		p.PackHash(s.SourceHash)
		p.PackHash(s.ArtifactHash)
	case KindDecryptionFactors:
		p.PackUint32(s.Batch)
		p.PackHash(s.ArtifactHash)
		p.PackHash(s.CiphertextsHash)
		p.PackHashes(s.SharesHashes)
	case KindPlaintexts, KindPlaintextsSigned:
		p.PackUint32(s.Batch)
		p.PackHash(s.ArtifactHash)
		p.PackHashes(s.FactorsHashes)
		p.PackHash(s.CiphertextsHash)
		p.PackHash(s.PublicKeyHash)
	}
	return p.Bytes, p.Err
}

// Hash returns the canonical statement hash.
func (s *Statement) Hash() (canonical.Hash, error) {
	b, err := s.Encode()
	if err != nil {
		return canonical.Hash{}, err
	}
	return canonical.Sum(b), nil
}

// Parse decodes canonical statement bytes, rejecting trailing data.
func Parse(b []byte) (*Statement, error) {
	u := canonical.NewUnpacker(b)
	s := &Statement{}
	kind := u.UnpackByte()
	if u.Err == nil && !Kind(kind).Valid() {
		return nil, fmt.Errorf("statement: invalid kind %d", kind)
	}
	s.Kind = Kind(kind)
	s.Timestamp = u.UnpackInt64()
	s.CfgHash = u.UnpackHash()

	switch s.Kind {
	case KindConfiguration, KindConfigurationSigned:
		// The configuration hash doubles as the artifact reference and
		// is not repeated on the wire.
		s.ArtifactHash = s.CfgHash
	case KindChannel, KindShares:
		s.ArtifactHash = u.UnpackHash()
	case KindChannelsAllSigned:
		s.ChannelsHashes = u.UnpackHashes(artifact.MaxTrustees)
	case KindPublicKey, KindPublicKeySigned:
		s.ArtifactHash = u.UnpackHash()
		s.SharesHashes = u.UnpackHashes(artifact.MaxTrustees)
		s.ChannelsHashes = u.UnpackHashes(artifact.MaxTrustees)
	case KindBallots:
		s.Batch = u.UnpackUint32()
		s.ArtifactHash = u.UnpackHash()
		s.PublicKeyHash = u.UnpackHash()
		copy(s.Trustees[:], u.UnpackFixedBytes(artifact.MaxTrustees))
	case KindMix, KindMixSigned:
		s.Batch = u.UnpackUint32()
		s.MixNumber = u.UnpackUint32()
		s.SourceHash = u.UnpackHash()
		s.ArtifactHash = u.UnpackHash()
	case KindDecryptionFactors:
		s.Batch = u.UnpackUint32()
		s.ArtifactHash = u.UnpackHash()
		s.CiphertextsHash = u.UnpackHash()
		s.SharesHashes = u.UnpackHashes(artifact.MaxTrustees)
	case KindPlaintexts, KindPlaintextsSigned:
		s.Batch = u.UnpackUint32()
		s.ArtifactHash = u.UnpackHash()
		s.FactorsHashes = u.UnpackHashes(artifact.MaxTrustees)
		s.CiphertextsHash = u.UnpackHash()
		s.PublicKeyHash = u.UnpackHash()
	}
	if err := u.Done(); err != nil {
		return nil, err
	}
	return s, nil
}

// String abbreviates the statement for logs.
func (s *Statement) String() string {
	return fmt.Sprintf("%s{cfg=%s batch=%d mix=%d artifact=%s}",
		s.Kind, s.CfgHash, s.Batch, s.MixNumber, s.ArtifactHash)
}
