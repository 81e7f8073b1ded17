// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package canonical implements the deterministic byte encoding used for
// every artifact and statement, and the SHA-512 hashing that identifies
// them. Encodings use fixed field order, big-endian fixed-width integers
// and u32 length-prefixed variable arrays; decoding rejects trailing
// bytes.
package canonical

import (
	"crypto/sha512"
	"encoding/hex"

	"github.com/luxfi/ids"
)

// HashLen is the length of a full artifact or statement hash.
const HashLen = sha512.Size

// Hash is the SHA-512 digest of a canonical encoding. Hashes are the
// only cross-references used between statements and predicates.
type Hash [HashLen]byte

// Sum hashes a canonical byte encoding.
func Sum(bytes []byte) Hash {
	return sha512.Sum512(bytes)
}

// Short returns the 32-byte prefix of the hash as an ID, used where a
// short identifier is sufficient (logging, map keys).
func (h Hash) Short() ids.ID {
	var id ids.ID
	copy(id[:], h[:ids.IDLen])
	return id
}

// String returns an abbreviated hex form for logging.
func (h Hash) String() string {
	return hex.EncodeToString(h[:8])
}

// IsZero reports whether the hash is the zero value.
func (h Hash) IsZero() bool {
	return h == Hash{}
}
