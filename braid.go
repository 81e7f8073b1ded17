// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package braid provides a clean, single-import surface to the braid
// trustee protocol engine: threshold ElGamal key generation, verifiable
// re-encryption mixing and threshold decryption driven by an
// append-only bulletin board.
package braid

import (
	"github.com/luxfi/braid/artifact"
	"github.com/luxfi/braid/board"
	"github.com/luxfi/braid/canonical"
	"github.com/luxfi/braid/inference"
	"github.com/luxfi/braid/predicate"
	"github.com/luxfi/braid/statement"
	"github.com/luxfi/braid/trustee"
)

// Type aliases for a clean single-import experience
type (
	// Engine types
	Trustee         = trustee.Trustee
	ProtocolManager = trustee.ProtocolManager
	Config          = trustee.Config

	// Board types
	LocalBoard  = board.Local
	MemoryBoard = board.Memory

	// Message types
	Message   = statement.Message
	Statement = statement.Statement
	Sender    = statement.Sender

	// Core values
	Hash          = canonical.Hash
	Action        = inference.Action
	Predicate     = predicate.Predicate
	Configuration = artifact.Configuration
	TrusteeSet    = artifact.TrusteeSet
)

// Constants re-exported for convenience
const (
	MaxTrustees          = artifact.MaxTrustees
	ProtocolManagerIndex = artifact.ProtocolManagerIndex
	VerifierIndex        = artifact.VerifierIndex
	NullTrustee          = artifact.NullTrustee
)

// Constructors re-exported for convenience
var (
	NewTrustee         = trustee.New
	NewVerifier        = trustee.NewVerifier
	NewProtocolManager = trustee.NewProtocolManager
	NewMemoryBoard     = board.NewMemory
	NewTrusteeSet      = artifact.NewTrusteeSet
)
