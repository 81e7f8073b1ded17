// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package artifact defines the typed cryptographic payloads exchanged
// through the bulletin board and their canonical byte encodings.
// Artifacts are identified by the SHA-512 hash of those bytes; no
// artifact contains its own hash.
package artifact

import (
	"errors"
	"fmt"
)

const (
	// MaxTrustees is the fixed width of every trustee-indexed vector.
	MaxTrustees = 12
	// ProtocolManagerIndex is the reserved position of the protocol
	// manager in the configuration.
	ProtocolManagerIndex = 0
	// VerifierIndex is the pseudo-position a verifier-mode trustee
	// assumes; it never appears in a configuration.
	VerifierIndex = MaxTrustees + 1
	// NullTrustee marks an unused TrusteeSet slot. It is not a valid
	// 1-based trustee index, so it cannot collide with a position.
	NullTrustee = 0
)

// ErrInvalidTrusteeSet marks a trustee set that does not select exactly
// the threshold number of distinct trustees.
var ErrInvalidTrusteeSet = errors.New("artifact: invalid trustee set")

// TrusteeSet is the fixed-width vector naming the threshold subset of
// trustees that mixes and decrypts one ballot batch. Slots hold 1-based
// trustee indices or NullTrustee.
type TrusteeSet [MaxTrustees]uint8

// NewTrusteeSet builds a set from 1-based indices.
func NewTrusteeSet(indices ...int) TrusteeSet {
	var ts TrusteeSet
	for i, idx := range indices {
		ts[i] = uint8(idx)
	}
	return ts
}

// Validate checks that the set holds exactly threshold distinct values
// in 1..trusteeCount and NullTrustee everywhere else.
func (ts TrusteeSet) Validate(trusteeCount, threshold int) error {
	seen := make(map[uint8]bool, threshold)
	for _, s := range ts {
		if s == NullTrustee {
			continue
		}
		if int(s) > trusteeCount {
			return fmt.Errorf("%w: index %d out of range 1..%d", ErrInvalidTrusteeSet, s, trusteeCount)
		}
		if seen[s] {
			return fmt.Errorf("%w: duplicate index %d", ErrInvalidTrusteeSet, s)
		}
		seen[s] = true
	}
	if len(seen) != threshold {
		return fmt.Errorf("%w: %d selected, threshold is %d", ErrInvalidTrusteeSet, len(seen), threshold)
	}
	return nil
}

// Active returns the selected 1-based indices in slot order.
func (ts TrusteeSet) Active() []int {
	var out []int
	for _, s := range ts {
		if s != NullTrustee {
			out = append(out, int(s))
		}
	}
	return out
}

// Contains reports whether the 1-based position is selected.
func (ts TrusteeSet) Contains(position int) bool {
	for _, s := range ts {
		if int(s) == position && s != NullTrustee {
			return true
		}
	}
	return false
}

// AtRank returns the 1-based trustee index of the rank-th active slot
// (rank is 1-based), or NullTrustee if there is none.
func (ts TrusteeSet) AtRank(rank int) int {
	active := ts.Active()
	if rank < 1 || rank > len(active) {
		return NullTrustee
	}
	return active[rank-1]
}

// RankOf returns the 1-based rank of position among the active slots,
// or 0 if the position is not selected.
func (ts TrusteeSet) RankOf(position int) int {
	for i, idx := range ts.Active() {
		if idx == position {
			return i + 1
		}
	}
	return 0
}
