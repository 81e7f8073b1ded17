// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package artifact

import (
	"errors"
	"fmt"

	"github.com/luxfi/braid/canonical"
	"github.com/luxfi/braid/crypto/sign"
)

// ErrInvalidConfiguration marks a configuration that fails its
// structural invariants.
var ErrInvalidConfiguration = errors.New("artifact: invalid configuration")

// Configuration is the bootstrap artifact of a session: the protocol
// manager identity, the trustee identities (positions 1..n), the
// threshold and the group descriptor. Immutable once bootstrapped.
type Configuration struct {
	Timestamp       int64
	ProtocolManager sign.PublicKey
	Trustees        []sign.PublicKey
	Threshold       int
	// Group names the group backend ("ristretto255", "modp2048").
	Group string
}

// Valid checks 2 <= threshold <= |trustees| <= MaxTrustees and distinct
// identities.
func (c *Configuration) Valid() error {
	n := len(c.Trustees)
	if n > MaxTrustees {
		return fmt.Errorf("%w: %d trustees exceeds %d", ErrInvalidConfiguration, n, MaxTrustees)
	}
	if c.Threshold < 2 || c.Threshold > n {
		return fmt.Errorf("%w: threshold %d out of range 2..%d", ErrInvalidConfiguration, c.Threshold, n)
	}
	if c.Group == "" {
		return fmt.Errorf("%w: missing group descriptor", ErrInvalidConfiguration)
	}
	seen := map[sign.PublicKey]bool{c.ProtocolManager: true}
	for _, pk := range c.Trustees {
		if seen[pk] {
			return fmt.Errorf("%w: duplicate identity", ErrInvalidConfiguration)
		}
		seen[pk] = true
	}
	return nil
}

// TrusteePosition resolves a public key to its position: 0 for the
// protocol manager, 1..n for trustees. The second result is false for
// unknown keys.
func (c *Configuration) TrusteePosition(pk sign.PublicKey) (int, bool) {
	if pk == c.ProtocolManager {
		return ProtocolManagerIndex, true
	}
	for i, t := range c.Trustees {
		if pk == t {
			return i + 1, true
		}
	}
	return 0, false
}

// TrusteeCount returns the number of trustees (excluding the protocol
// manager).
func (c *Configuration) TrusteeCount() int {
	return len(c.Trustees)
}

// Encode returns the canonical bytes.
func (c *Configuration) Encode() ([]byte, error) {
	p := canonical.NewPacker(64 + sign.PublicKeyLen*(1+len(c.Trustees)))
	p.PackInt64(c.Timestamp)
	p.PackFixedBytes(c.ProtocolManager[:])
	p.PackUint32(uint32(len(c.Trustees)))
	for _, t := range c.Trustees {
		p.PackFixedBytes(t[:])
	}
	p.PackUint32(uint32(c.Threshold))
	p.PackBytes([]byte(c.Group))
	return p.Bytes, p.Err
}

// Hash returns the canonical hash.
func (c *Configuration) Hash() (canonical.Hash, error) {
	b, err := c.Encode()
	if err != nil {
		return canonical.Hash{}, err
	}
	return canonical.Sum(b), nil
}

// ParseConfiguration decodes canonical bytes, rejecting trailing data.
func ParseConfiguration(b []byte) (*Configuration, error) {
	u := canonical.NewUnpacker(b)
	c := &Configuration{}
	c.Timestamp = u.UnpackInt64()
	copy(c.ProtocolManager[:], u.UnpackFixedBytes(sign.PublicKeyLen))
	n := u.UnpackUint32()
	if u.Err == nil && n > MaxTrustees {
		return nil, fmt.Errorf("%w: %d trustees", ErrInvalidConfiguration, n)
	}
	c.Trustees = make([]sign.PublicKey, n)
	for i := range c.Trustees {
		copy(c.Trustees[i][:], u.UnpackFixedBytes(sign.PublicKeyLen))
	}
	c.Threshold = int(u.UnpackUint32())
	c.Group = string(u.UnpackBytes(64))
	if err := u.Done(); err != nil {
		return nil, err
	}
	return c, nil
}
