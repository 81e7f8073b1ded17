// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package statement

import (
	"github.com/luxfi/braid/artifact"
	"github.com/luxfi/braid/canonical"
)

// Configuration returns the bootstrap statement; its artifact reference
// is the configuration hash itself.
func Configuration(ts int64, cfgHash canonical.Hash) Statement {
	return Statement{Kind: KindConfiguration, Timestamp: ts, CfgHash: cfgHash, ArtifactHash: cfgHash}
}

// ConfigurationSigned attests the configuration.
func ConfigurationSigned(ts int64, cfgHash canonical.Hash) Statement {
	return Statement{Kind: KindConfigurationSigned, Timestamp: ts, CfgHash: cfgHash, ArtifactHash: cfgHash}
}

// Channel publishes a trustee's channel artifact.
func Channel(ts int64, cfgHash, channelHash canonical.Hash) Statement {
	return Statement{Kind: KindChannel, Timestamp: ts, CfgHash: cfgHash, ArtifactHash: channelHash}
}

// ChannelsAllSigned attests the full channel hash list.
func ChannelsAllSigned(ts int64, cfgHash canonical.Hash, channels []canonical.Hash) Statement {
	return Statement{Kind: KindChannelsAllSigned, Timestamp: ts, CfgHash: cfgHash, ChannelsHashes: channels}
}

// Shares publishes a dealer's shares artifact.
func Shares(ts int64, cfgHash, sharesHash canonical.Hash) Statement {
	return Statement{Kind: KindShares, Timestamp: ts, CfgHash: cfgHash, ArtifactHash: sharesHash}
}

// PublicKey publishes the joint public key with its provenance.
func PublicKey(ts int64, cfgHash, pkHash canonical.Hash, shares, channels []canonical.Hash) Statement {
	return Statement{
		Kind: KindPublicKey, Timestamp: ts, CfgHash: cfgHash,
		ArtifactHash: pkHash, SharesHashes: shares, ChannelsHashes: channels,
	}
}

// PublicKeySigned attests the joint public key.
func PublicKeySigned(ts int64, cfgHash, pkHash canonical.Hash, shares, channels []canonical.Hash) Statement {
	return Statement{
		Kind: KindPublicKeySigned, Timestamp: ts, CfgHash: cfgHash,
		ArtifactHash: pkHash, SharesHashes: shares, ChannelsHashes: channels,
	}
}

// Ballots publishes a ballot batch for the selected trustees.
func Ballots(ts int64, cfgHash canonical.Hash, batch uint32, ballotsHash, pkHash canonical.Hash, trustees artifact.TrusteeSet) Statement {
	return Statement{
		Kind: KindBallots, Timestamp: ts, CfgHash: cfgHash, Batch: batch,
		ArtifactHash: ballotsHash, PublicKeyHash: pkHash, Trustees: trustees,
	}
}

// Mix publishes a mix over its source ciphertexts.
func Mix(ts int64, cfgHash canonical.Hash, batch, mixNumber uint32, sourceHash, mixHash canonical.Hash) Statement {
	return Statement{
		Kind: KindMix, Timestamp: ts, CfgHash: cfgHash, Batch: batch,
		MixNumber: mixNumber, SourceHash: sourceHash, ArtifactHash: mixHash,
	}
}

// MixSigned attests another trustee's mix.
func MixSigned(ts int64, cfgHash canonical.Hash, batch, mixNumber uint32, sourceHash, mixHash canonical.Hash) Statement {
	return Statement{
		Kind: KindMixSigned, Timestamp: ts, CfgHash: cfgHash, Batch: batch,
		MixNumber: mixNumber, SourceHash: sourceHash, ArtifactHash: mixHash,
	}
}

// DecryptionFactors publishes a trustee's partial decryption of a
// final mix.
func DecryptionFactors(ts int64, cfgHash canonical.Hash, batch uint32, factorsHash, mixHash canonical.Hash, shares []canonical.Hash) Statement {
	return Statement{
		Kind: KindDecryptionFactors, Timestamp: ts, CfgHash: cfgHash, Batch: batch,
		ArtifactHash: factorsHash, CiphertextsHash: mixHash, SharesHashes: shares,
	}
}

// Plaintexts publishes combined plaintexts with their provenance.
func Plaintexts(ts int64, cfgHash canonical.Hash, batch uint32, plaintextsHash canonical.Hash, factors []canonical.Hash, mixHash, pkHash canonical.Hash) Statement {
	return Statement{
		Kind: KindPlaintexts, Timestamp: ts, CfgHash: cfgHash, Batch: batch,
		ArtifactHash: plaintextsHash, FactorsHashes: factors,
		CiphertextsHash: mixHash, PublicKeyHash: pkHash,
	}
}

// PlaintextsSigned attests another trustee's plaintexts.
func PlaintextsSigned(ts int64, cfgHash canonical.Hash, batch uint32, plaintextsHash canonical.Hash, factors []canonical.Hash, mixHash, pkHash canonical.Hash) Statement {
	return Statement{
		Kind: KindPlaintextsSigned, Timestamp: ts, CfgHash: cfgHash, Batch: batch,
		ArtifactHash: plaintextsHash, FactorsHashes: factors,
		CiphertextsHash: mixHash, PublicKeyHash: pkHash,
	}
}
