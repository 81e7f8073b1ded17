// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package inference runs the protocol rule set over the predicate
// multiset and produces the actions a trustee must perform next. The
// engine is deterministic, monotone and confluent: adding predicates
// never retracts actions, and the fixed point is independent of rule
// firing order.
package inference

import (
	"bytes"
	"fmt"

	"github.com/luxfi/braid/artifact"
	"github.com/luxfi/braid/canonical"
	"github.com/luxfi/braid/predicate"
)

// ActionKind tags an action variant; executors dispatch on it.
type ActionKind byte

const (
	SignConfiguration ActionKind = iota
	PublishChannel
	SignAllChannels
	PublishShares
	ComputePublicKey
	SignPublicKey
	Shuffle
	SignMix
	Decrypt
	CombinePlaintexts
	SignPlaintexts

	numActionKinds
)

var actionNames = [numActionKinds]string{
	"SignConfiguration",
	"PublishChannel",
	"SignAllChannels",
	"PublishShares",
	"ComputePublicKey",
	"SignPublicKey",
	"Shuffle",
	"SignMix",
	"Decrypt",
	"CombinePlaintexts",
	"SignPlaintexts",
}

func (k ActionKind) String() string {
	if k < numActionKinds {
		return actionNames[k]
	}
	return fmt.Sprintf("ActionKind(%d)", byte(k))
}

// Action is an equality-comparable value: its discriminant plus the
// hashes identifying its inputs. Duplicates collapse in a set; the
// engine's ordering is only used for logging.
type Action struct {
	Kind ActionKind
	Cfg  canonical.Hash
	// Self is the acting trustee's position.
	Self int

	Batch     uint32
	MixNumber uint32

	// SourceHash is the ciphertexts a shuffle consumes, or the final
	// mix a decryption or combination consumes.
	SourceHash canonical.Hash
	// MixHash is the mix under signature (SignMix).
	MixHash canonical.Hash
	// PlaintextsHash is the plaintexts under signature
	// (SignPlaintexts).
	PlaintextsHash canonical.Hash
	PublicKeyHash  canonical.Hash

	Shares   predicate.Hashes
	Channels predicate.Hashes
	Factors  predicate.Hashes

	Trustees artifact.TrusteeSet
	// Signer is the peer whose artifact the action verifies (SignMix).
	Signer int
}

func (a Action) String() string {
	return fmt.Sprintf("%s{self=%d batch=%d mix=%d src=%s}",
		a.Kind, a.Self, a.Batch, a.MixNumber, a.SourceHash)
}

// digest is the stable identity used to order actions for logging.
func (a Action) digest() canonical.Hash {
	p := canonical.NewPacker(512)
	p.PackByte(byte(a.Kind))
	p.PackHash(a.Cfg)
	p.PackUint32(uint32(a.Self))
	p.PackUint32(a.Batch)
	p.PackUint32(a.MixNumber)
	p.PackHash(a.SourceHash)
	p.PackHash(a.MixHash)
	p.PackHash(a.PlaintextsHash)
	p.PackHash(a.PublicKeyHash)
	for _, h := range a.Shares {
		p.PackHash(h)
	}
	for _, h := range a.Channels {
		p.PackHash(h)
	}
	for _, h := range a.Factors {
		p.PackHash(h)
	}
	p.PackFixedBytes(a.Trustees[:])
	p.PackUint32(uint32(a.Signer))
	return canonical.Sum(p.Bytes)
}

// Less orders actions by digest.
func (a Action) Less(b Action) bool {
	ad, bd := a.digest(), b.digest()
	return bytes.Compare(ad[:], bd[:]) < 0
}
