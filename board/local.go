// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package board holds a trustee's local mirror of the bulletin board
// and an in-memory bulletin board implementing the board contract.
package board

import (
	"errors"
	"fmt"

	"github.com/luxfi/braid/artifact"
	"github.com/luxfi/braid/canonical"
	"github.com/luxfi/braid/crypto/group"
	"github.com/luxfi/braid/statement"
)

var (
	// ErrOverwriteAttempt marks a statement or artifact that would
	// change value at an existing key.
	ErrOverwriteAttempt = errors.New("board: overwrite attempt")
	// ErrBootstrap marks a missing, malformed or mis-signed
	// configuration.
	ErrBootstrap = errors.New("board: bootstrap error")
	// ErrMissingArtifact marks a hash-checked retrieval of an absent
	// artifact.
	ErrMissingArtifact = errors.New("board: missing artifact")
	// ErrMismatchedArtifactHash marks a retrieval whose expected hash
	// does not match the stored artifact.
	ErrMismatchedArtifactHash = errors.New("board: mismatched artifact hash")
)

// StatementKey locates a statement in the local board. MixNumber is
// non-zero only for mix signatures: each trustee signs every other
// trustee's mix, and without the coordinate those statements would
// collide.
type StatementKey struct {
	Kind      statement.Kind
	Signer    int
	Batch     uint32
	MixNumber uint32
}

func keyFor(st *statement.Statement, signer int) StatementKey {
	k := StatementKey{Kind: st.Kind, Signer: signer, Batch: st.Batch}
	if st.Kind == statement.KindMixSigned {
		k.MixNumber = st.MixNumber
	}
	return k
}

type statementEntry struct {
	hash canonical.Hash
	st   statement.Statement
}

type rawEntry struct {
	hash  canonical.Hash
	bytes []byte
}

type ballotsEntry struct {
	hash canonical.Hash
	b    *artifact.Ballots
}

type mixEntry struct {
	hash canonical.Hash
	m    *artifact.Mix
}

type factorsEntry struct {
	hash canonical.Hash
	d    *artifact.DecryptionFactors
}

type plaintextsEntry struct {
	hash canonical.Hash
	p    *artifact.Plaintexts
}

// Entry is a stored statement with its key and hash.
type Entry struct {
	Key       StatementKey
	Hash      canonical.Hash
	Statement statement.Statement
}

// Local is a trustee's in-memory mirror of the bulletin board for one
// session. It is owned exclusively by its trustee; external observers
// get copies. The configuration is stored apart from the general maps
// because it bootstraps every other check.
type Local struct {
	ctx group.Ctx

	cfg     *artifact.Configuration
	cfgHash canonical.Hash

	statements map[StatementKey]statementEntry

	artifacts  map[StatementKey]rawEntry
	ballots    map[StatementKey]ballotsEntry
	mixes      map[StatementKey]mixEntry
	factors    map[StatementKey]factorsEntry
	plaintexts map[StatementKey]plaintextsEntry
}

// NewLocal returns an empty local board over the given group.
func NewLocal(ctx group.Ctx) *Local {
	return &Local{
		ctx:        ctx,
		statements: make(map[StatementKey]statementEntry),
		artifacts:  make(map[StatementKey]rawEntry),
		ballots:    make(map[StatementKey]ballotsEntry),
		mixes:      make(map[StatementKey]mixEntry),
		factors:    make(map[StatementKey]factorsEntry),
		plaintexts: make(map[StatementKey]plaintextsEntry),
	}
}

// Clone returns a shallow copy sharing the immutable entries. The
// trustee stages adds on a clone and commits by swapping, so a failed
// step leaves the board untouched.
func (l *Local) Clone() *Local {
	c := NewLocal(l.ctx)
	c.cfg = l.cfg
	c.cfgHash = l.cfgHash
	for k, v := range l.statements {
		c.statements[k] = v
	}
	for k, v := range l.artifacts {
		c.artifacts[k] = v
	}
	for k, v := range l.ballots {
		c.ballots[k] = v
	}
	for k, v := range l.mixes {
		c.mixes[k] = v
	}
	for k, v := range l.factors {
		c.factors[k] = v
	}
	for k, v := range l.plaintexts {
		c.plaintexts[k] = v
	}
	return c
}

// HasConfiguration reports whether the board is bootstrapped.
func (l *Local) HasConfiguration() bool {
	return l.cfg != nil
}

// Configuration returns the installed configuration and its hash.
func (l *Local) Configuration() (*artifact.Configuration, canonical.Hash, bool) {
	if l.cfg == nil {
		return nil, canonical.Hash{}, false
	}
	return l.cfg, l.cfgHash, true
}

// GetConfiguration returns the installed configuration only when the
// provided hash matches.
func (l *Local) GetConfiguration(hash canonical.Hash) (*artifact.Configuration, error) {
	if l.cfg == nil {
		return nil, fmt.Errorf("%w: no configuration installed", ErrBootstrap)
	}
	if hash != l.cfgHash {
		return nil, fmt.Errorf("%w: Configuration", ErrMismatchedArtifactHash)
	}
	return l.cfg, nil
}

// Add inserts a verified message. Duplicate inserts of identical
// content are no-ops; a different value at an existing key is an
// overwrite attempt.
func (l *Local) Add(v *statement.Verified) error {
	if v.Statement.Kind == statement.KindConfiguration {
		return l.addBootstrap(v)
	}
	return l.addMessage(v)
}

func (l *Local) addBootstrap(v *statement.Verified) error {
	if l.cfg == nil {
		if v.Artifact == nil {
			return fmt.Errorf("%w: missing artifact in configuration message", ErrBootstrap)
		}
		cfg, err := artifact.ParseConfiguration(v.Artifact)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrBootstrap, err)
		}
		if err := cfg.Valid(); err != nil {
			return fmt.Errorf("%w: %w", ErrBootstrap, err)
		}
		l.cfg = cfg
		l.cfgHash = v.Statement.CfgHash
		return nil
	}
	if l.cfgHash == v.Statement.CfgHash {
		// Identical repost.
		return nil
	}
	return fmt.Errorf("%w: Configuration", ErrOverwriteAttempt)
}

func (l *Local) addMessage(v *statement.Verified) error {
	stHash, err := v.Statement.Hash()
	if err != nil {
		return err
	}
	key := keyFor(&v.Statement, v.SignerPosition)

	if existing, ok := l.statements[key]; ok {
		if existing.hash == stHash {
			return nil
		}
		return fmt.Errorf("%w: %s", ErrOverwriteAttempt, v.Statement.Kind)
	}

	if v.Artifact == nil {
		l.statements[key] = statementEntry{hash: stHash, st: v.Statement}
		return nil
	}

	artifactHash := canonical.Sum(v.Artifact)
	if existingHash, ok := l.artifactHash(key); ok {
		if existingHash == artifactHash {
			l.statements[key] = statementEntry{hash: stHash, st: v.Statement}
			return nil
		}
		return fmt.Errorf("%w: %s artifact", ErrOverwriteAttempt, v.Statement.Kind)
	}
	if err := l.insertArtifact(key, artifactHash, v.Artifact); err != nil {
		return err
	}
	l.statements[key] = statementEntry{hash: stHash, st: v.Statement}
	return nil
}

func (l *Local) artifactHash(key StatementKey) (canonical.Hash, bool) {
	switch key.Kind {
	case statement.KindBallots:
		e, ok := l.ballots[key]
		return e.hash, ok
	case statement.KindMix:
		e, ok := l.mixes[key]
		return e.hash, ok
	case statement.KindDecryptionFactors:
		e, ok := l.factors[key]
		return e.hash, ok
	case statement.KindPlaintexts:
		e, ok := l.plaintexts[key]
		return e.hash, ok
	default:
		e, ok := l.artifacts[key]
		return e.hash, ok
	}
}

// insertArtifact stores ballots, mixes, factors and plaintexts in
// deserialized form for speed; everything else stays raw.
func (l *Local) insertArtifact(key StatementKey, hash canonical.Hash, bytes []byte) error {
	switch key.Kind {
	case statement.KindBallots:
		b, err := artifact.ParseBallots(l.ctx, bytes)
		if err != nil {
			return err
		}
		l.ballots[key] = ballotsEntry{hash: hash, b: b}
	case statement.KindMix:
		m, err := artifact.ParseMix(l.ctx, bytes)
		if err != nil {
			return err
		}
		l.mixes[key] = mixEntry{hash: hash, m: m}
	case statement.KindDecryptionFactors:
		d, err := artifact.ParseDecryptionFactors(l.ctx, bytes)
		if err != nil {
			return err
		}
		l.factors[key] = factorsEntry{hash: hash, d: d}
	case statement.KindPlaintexts:
		p, err := artifact.ParsePlaintexts(l.ctx, bytes)
		if err != nil {
			return err
		}
		l.plaintexts[key] = plaintextsEntry{hash: hash, p: p}
	default:
		l.artifacts[key] = rawEntry{hash: hash, bytes: bytes}
	}
	return nil
}

// Entries lists all stored statements.
func (l *Local) Entries() []Entry {
	out := make([]Entry, 0, len(l.statements))
	for k, v := range l.statements {
		out = append(out, Entry{Key: k, Hash: v.hash, Statement: v.st})
	}
	return out
}

// Len returns the number of stored statements.
func (l *Local) Len() int {
	return len(l.statements)
}

///////////////////////////////////////////////////////////////////////////
// Hash-checked artifact accessors. There is no positional access: every
// accessor takes the expected hash from predicate data and fails on
// mismatch.
///////////////////////////////////////////////////////////////////////////

// GetChannel returns the channel artifact published by signer.
func (l *Local) GetChannel(hash canonical.Hash, signer int) (*artifact.Channel, error) {
	key := StatementKey{Kind: statement.KindChannel, Signer: signer}
	e, ok := l.artifacts[key]
	if !ok {
		return nil, fmt.Errorf("%w: Channel", ErrMissingArtifact)
	}
	if e.hash != hash {
		return nil, fmt.Errorf("%w: Channel", ErrMismatchedArtifactHash)
	}
	return artifact.ParseChannel(l.ctx, e.bytes)
}

// GetShares returns the shares artifact published by signer.
func (l *Local) GetShares(hash canonical.Hash, signer int) (*artifact.Shares, error) {
	key := StatementKey{Kind: statement.KindShares, Signer: signer}
	e, ok := l.artifacts[key]
	if !ok {
		return nil, fmt.Errorf("%w: Shares", ErrMissingArtifact)
	}
	if e.hash != hash {
		return nil, fmt.Errorf("%w: Shares", ErrMismatchedArtifactHash)
	}
	return artifact.ParseShares(l.ctx, e.bytes)
}

// GetPublicKey returns the DKG public key artifact published by signer.
func (l *Local) GetPublicKey(hash canonical.Hash, signer int) (*artifact.DkgPublicKey, error) {
	key := StatementKey{Kind: statement.KindPublicKey, Signer: signer}
	e, ok := l.artifacts[key]
	if !ok {
		return nil, fmt.Errorf("%w: PublicKey", ErrMissingArtifact)
	}
	if e.hash != hash {
		return nil, fmt.Errorf("%w: PublicKey", ErrMismatchedArtifactHash)
	}
	return artifact.ParseDkgPublicKey(l.ctx, e.bytes)
}

// GetBallots returns the ballots artifact for a batch.
func (l *Local) GetBallots(hash canonical.Hash, batch uint32, signer int) (*artifact.Ballots, error) {
	key := StatementKey{Kind: statement.KindBallots, Signer: signer, Batch: batch}
	e, ok := l.ballots[key]
	if !ok {
		return nil, fmt.Errorf("%w: Ballots", ErrMissingArtifact)
	}
	if e.hash != hash {
		return nil, fmt.Errorf("%w: Ballots", ErrMismatchedArtifactHash)
	}
	return e.b, nil
}

// GetMix returns the mix artifact produced by signer for a batch.
func (l *Local) GetMix(hash canonical.Hash, batch uint32, signer int) (*artifact.Mix, error) {
	key := StatementKey{Kind: statement.KindMix, Signer: signer, Batch: batch}
	e, ok := l.mixes[key]
	if !ok {
		return nil, fmt.Errorf("%w: Mix", ErrMissingArtifact)
	}
	if e.hash != hash {
		return nil, fmt.Errorf("%w: Mix", ErrMismatchedArtifactHash)
	}
	return e.m, nil
}

// GetDecryptionFactors returns the factors published by signer for a
// batch.
func (l *Local) GetDecryptionFactors(hash canonical.Hash, batch uint32, signer int) (*artifact.DecryptionFactors, error) {
	key := StatementKey{Kind: statement.KindDecryptionFactors, Signer: signer, Batch: batch}
	e, ok := l.factors[key]
	if !ok {
		return nil, fmt.Errorf("%w: DecryptionFactors", ErrMissingArtifact)
	}
	if e.hash != hash {
		return nil, fmt.Errorf("%w: DecryptionFactors", ErrMismatchedArtifactHash)
	}
	return e.d, nil
}

// PlaintextsHashes returns, per signer position, the hash of every
// plaintexts artifact stored for the batch. Verifier mode uses this to
// cross-check all published plaintexts against a re-derivation.
func (l *Local) PlaintextsHashes(batch uint32) map[int]canonical.Hash {
	out := make(map[int]canonical.Hash)
	for k, e := range l.plaintexts {
		if k.Batch == batch {
			out[k.Signer] = e.hash
		}
	}
	return out
}

// GetPlaintexts returns the plaintexts published by signer for a batch.
func (l *Local) GetPlaintexts(hash canonical.Hash, batch uint32, signer int) (*artifact.Plaintexts, error) {
	key := StatementKey{Kind: statement.KindPlaintexts, Signer: signer, Batch: batch}
	e, ok := l.plaintexts[key]
	if !ok {
		return nil, fmt.Errorf("%w: Plaintexts", ErrMissingArtifact)
	}
	if e.hash != hash {
		return nil, fmt.Errorf("%w: Plaintexts", ErrMismatchedArtifactHash)
	}
	return e.p, nil
}
