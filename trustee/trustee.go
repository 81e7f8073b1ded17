// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package trustee implements the protocol engine that drives one
// trustee through distributed key generation, verifiable shuffling and
// threshold decryption. Each step consumes bulletin-board messages,
// updates the local board, derives predicates, infers the pending
// actions and executes them, returning the resulting signed messages
// for posting.
package trustee

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/luxfi/log"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/luxfi/braid/artifact"
	"github.com/luxfi/braid/board"
	"github.com/luxfi/braid/canonical"
	"github.com/luxfi/braid/crypto/group"
	"github.com/luxfi/braid/crypto/sign"
	"github.com/luxfi/braid/crypto/symm"
	"github.com/luxfi/braid/inference"
	"github.com/luxfi/braid/predicate"
	"github.com/luxfi/braid/statement"
)

var (
	// ErrNoMessages marks a bootstrap step that received nothing.
	ErrNoMessages = errors.New("trustee: no messages, cannot bootstrap")
	// ErrBadBootstrap marks a first message that is not a valid
	// protocol-manager-signed configuration.
	ErrBadBootstrap = errors.New("trustee: invalid bootstrap message")
	// ErrInvalidShare marks a DKG share that fails its commitment
	// check.
	ErrInvalidShare = errors.New("trustee: share does not match commitments")
	// ErrConfigurationRejected marks a configuration the trustee
	// refuses to sign.
	ErrConfigurationRejected = errors.New("trustee: configuration rejected")
)

// Config carries the injectable collaborators of a trustee. Zero
// values select a no-op logger, crypto/rand and wall-clock timestamps.
type Config struct {
	Log        log.Logger
	Registerer prometheus.Registerer
	Rand       io.Reader
	Now        func() int64
}

func (c *Config) defaults() {
	if c.Log == nil {
		c.Log = log.NewNoOpLogger()
	}
	if c.Rand == nil {
		c.Rand = rand.Reader
	}
	if c.Now == nil {
		c.Now = func() int64 { return time.Now().Unix() }
	}
}

// Trustee is one protocol participant bound to a session. The local
// board is owned exclusively; Step (Verify for a verifier) is the
// public entry point that advances it and is not safe for concurrent
// use.
type Trustee struct {
	log log.Logger
	ctx group.Ctx

	name       string
	signingKey sign.SigningKey
	storageKey symm.Key
	rng        io.Reader
	now        func() int64

	local    *board.Local
	metrics  *stepMetrics
	verifier bool
}

// New returns a trustee ready to bootstrap a session.
func New(ctx group.Ctx, name string, key sign.SigningKey, storage symm.Key, cfg Config) (*Trustee, error) {
	cfg.defaults()
	m, err := newStepMetrics(cfg.Registerer)
	if err != nil {
		return nil, err
	}
	return &Trustee{
		log:        cfg.Log,
		ctx:        ctx,
		name:       name,
		signingKey: key,
		storageKey: storage,
		rng:        cfg.Rand,
		now:        cfg.Now,
		local:      board.NewLocal(ctx),
		metrics:    m,
	}, nil
}

// NewVerifier returns a read-only trustee that re-runs a session's
// board and fails on the first check that does not hold. It emits no
// messages.
func NewVerifier(ctx group.Ctx, cfg Config) (*Trustee, error) {
	cfg.defaults()
	m, err := newStepMetrics(cfg.Registerer)
	if err != nil {
		return nil, err
	}
	return &Trustee{
		log:      cfg.Log,
		ctx:      ctx,
		name:     "verifier",
		rng:      cfg.Rand,
		now:      cfg.Now,
		local:    board.NewLocal(ctx),
		metrics:  m,
		verifier: true,
	}, nil
}

// Name implements statement.Signer.
func (t *Trustee) Name() string { return t.name }

// SigningKey implements statement.Signer.
func (t *Trustee) SigningKey() sign.SigningKey { return t.signingKey }

// PublicKey returns the trustee's signing identity.
func (t *Trustee) PublicKey() sign.PublicKey { return t.signingKey.Public() }

// Step runs one protocol step: update the local board with the given
// messages, derive predicates, infer pending actions, execute them and
// return the resulting messages. A step either completes, growing the
// board, or fails leaving the board in its pre-step state.
func (t *Trustee) Step(messages []statement.Message) ([]statement.Message, []inference.Action, error) {
	t.metrics.steps.Inc()
	out, actions, _, err := t.step(messages, false)
	if err != nil {
		t.metrics.stepFailures.Inc()
		return nil, nil, err
	}
	return out, actions, nil
}

// Verify runs one read-only verification step, returning the derived
// predicates and the actions that were verified.
func (t *Trustee) Verify(messages []statement.Message) ([]predicate.Predicate, []inference.Action, error) {
	if !t.verifier {
		return nil, nil, errors.New("trustee: Verify requires a verifier-mode trustee")
	}
	t.metrics.steps.Inc()
	_, actions, preds, err := t.step(messages, true)
	if err != nil {
		t.metrics.stepFailures.Inc()
		return nil, nil, err
	}
	return preds, actions, nil
}

func (t *Trustee) step(messages []statement.Message, verifying bool) (
	[]statement.Message, []inference.Action, []predicate.Predicate, error,
) {
	// Stage adds on a clone; commit only on success.
	staged := t.local.Clone()

	added, err := t.update(staged, messages)
	if err != nil {
		return nil, nil, nil, err
	}
	t.log.Debug("update added messages", "added", added)
	t.metrics.messagesAdded.Add(float64(added))

	preds, err := t.derive(staged, verifying)
	if err != nil {
		return nil, nil, nil, err
	}
	t.log.Debug("derived predicates", "count", len(preds))

	actions, allPreds := inference.Run(preds)
	if len(actions) == 0 {
		t.log.Debug("idle: no pending actions")
	}
	for _, a := range actions {
		t.log.Debug("pending action", "action", a.String())
	}

	out, err := t.execute(staged, actions, verifying)
	if err != nil {
		return nil, nil, nil, err
	}
	t.metrics.actionsExecuted.Add(float64(len(actions)))

	// Every outgoing message must bind to the installed configuration.
	_, cfgHash, ok := staged.Configuration()
	for _, m := range out {
		if !ok || m.Statement.CfgHash != cfgHash {
			return nil, nil, nil, fmt.Errorf("trustee: outgoing message with foreign configuration hash")
		}
	}

	t.local = staged
	t.metrics.boardStatements.Set(float64(staged.Len()))
	return out, actions, allPreds, nil
}

///////////////////////////////////////////////////////////////////////////
// Update
///////////////////////////////////////////////////////////////////////////

func (t *Trustee) update(staged *board.Local, messages []statement.Message) (int, error) {
	if !staged.HasConfiguration() {
		return t.updateBootstrap(staged, messages)
	}
	cfg, cfgHash, _ := staged.Configuration()
	return t.updateVerified(staged, messages, cfg, cfgHash)
}

// updateBootstrap treats the first message as the bootstrap
// configuration: the artifact must deserialize to a valid
// configuration signed by the declared protocol manager key.
func (t *Trustee) updateBootstrap(staged *board.Local, messages []statement.Message) (int, error) {
	if len(messages) == 0 {
		return 0, ErrNoMessages
	}
	zero := messages[0]
	if zero.Statement.Kind != statement.KindConfiguration {
		return 0, fmt.Errorf("%w: first message is %s", ErrBadBootstrap, zero.Statement.Kind)
	}
	if zero.Artifact == nil {
		return 0, fmt.Errorf("%w: no artifact", ErrBadBootstrap)
	}
	cfg, err := artifact.ParseConfiguration(zero.Artifact)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrBadBootstrap, err)
	}
	if err := cfg.Valid(); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrBadBootstrap, err)
	}
	cfgHash := canonical.Sum(zero.Artifact)

	verified, err := zero.Verify(cfg, cfgHash)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrBadBootstrap, err)
	}
	if verified.SignerPosition != artifact.ProtocolManagerIndex {
		return 0, fmt.Errorf("%w: configuration not signed by protocol manager", ErrBadBootstrap)
	}
	if err := staged.Add(verified); err != nil {
		return 0, err
	}
	t.log.Info("installed bootstrap configuration",
		"cfg", cfgHash.String(),
		"trustees", cfg.TrusteeCount(),
		"threshold", cfg.Threshold)

	added, err := t.updateVerified(staged, messages[1:], cfg, cfgHash)
	return added + 1, err
}

func (t *Trustee) updateVerified(
	staged *board.Local,
	messages []statement.Message,
	cfg *artifact.Configuration,
	cfgHash canonical.Hash,
) (int, error) {
	added := 0
	for i := range messages {
		verified, err := messages[i].Verify(cfg, cfgHash)
		if err != nil {
			// A message that fails authentication poisons the step.
			return added, err
		}
		if err := staged.Add(verified); err != nil {
			if errors.Is(err, board.ErrOverwriteAttempt) {
				// Dropping the offending message preserves liveness
				// against one malicious or buggy peer.
				t.log.Warn("dropping overwrite attempt",
					"statement", verified.Statement.String(),
					"signer", verified.SignerPosition)
				t.metrics.overwriteAttempts.Inc()
				continue
			}
			return added, err
		}
		added++
	}
	return added, nil
}

///////////////////////////////////////////////////////////////////////////
// Derive
///////////////////////////////////////////////////////////////////////////

func (t *Trustee) derive(staged *board.Local, verifying bool) ([]predicate.Predicate, error) {
	cfg, cfgHash, ok := staged.Configuration()
	if !ok {
		return nil, fmt.Errorf("trustee: cannot derive predicates without a configuration")
	}

	var boot predicate.Predicate
	var err error
	if verifying {
		boot = predicate.VerifierBootstrap(cfg, cfgHash)
	} else {
		boot, err = predicate.Bootstrap(cfg, cfgHash, t.PublicKey())
		if err != nil {
			return nil, err
		}
	}
	preds := []predicate.Predicate{boot}

	for _, entry := range staged.Entries() {
		p, err := predicate.FromStatement(&entry.Statement, entry.Key.Signer, cfg)
		if err != nil {
			return nil, err
		}
		preds = append(preds, p)
	}
	return preds, nil
}

///////////////////////////////////////////////////////////////////////////
// Execute
///////////////////////////////////////////////////////////////////////////

// execute runs the actions in parallel. Action inputs are immutable
// hash-addressed artifacts and outputs are independent messages, so
// cross-action parallelism is safe; the board is never mutated here.
func (t *Trustee) execute(staged *board.Local, actions []inference.Action, verifying bool) ([]statement.Message, error) {
	table := executors
	if verifying {
		table = verifierExecutors
	}

	results := make([][]statement.Message, len(actions))
	var eg errgroup.Group
	for i, action := range actions {
		run, ok := table[action.Kind]
		if !ok {
			return nil, fmt.Errorf("trustee: no executor for %s", action.Kind)
		}
		i, action := i, action
		eg.Go(func() error {
			msgs, err := run(t, staged, action)
			if err != nil {
				return fmt.Errorf("executing %s: %w", action, err)
			}
			results[i] = msgs
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	var out []statement.Message
	for _, msgs := range results {
		out = append(out, msgs...)
	}
	return out, nil
}

///////////////////////////////////////////////////////////////////////////
// Hash-checked artifact accessors for orchestrators
///////////////////////////////////////////////////////////////////////////

// Configuration returns the installed configuration and its hash.
func (t *Trustee) Configuration() (*artifact.Configuration, canonical.Hash, bool) {
	return t.local.Configuration()
}

// GetChannel returns the channel artifact published by signer.
func (t *Trustee) GetChannel(hash canonical.Hash, signer int) (*artifact.Channel, error) {
	return t.local.GetChannel(hash, signer)
}

// GetShares returns the shares artifact published by signer.
func (t *Trustee) GetShares(hash canonical.Hash, signer int) (*artifact.Shares, error) {
	return t.local.GetShares(hash, signer)
}

// GetPublicKey returns the DKG public key artifact published by signer.
func (t *Trustee) GetPublicKey(hash canonical.Hash, signer int) (*artifact.DkgPublicKey, error) {
	return t.local.GetPublicKey(hash, signer)
}

// GetMix returns a mix artifact.
func (t *Trustee) GetMix(hash canonical.Hash, batch uint32, signer int) (*artifact.Mix, error) {
	return t.local.GetMix(hash, batch, signer)
}

// GetDecryptionFactors returns a decryption factors artifact.
func (t *Trustee) GetDecryptionFactors(hash canonical.Hash, batch uint32, signer int) (*artifact.DecryptionFactors, error) {
	return t.local.GetDecryptionFactors(hash, batch, signer)
}

// GetPlaintexts returns a plaintexts artifact.
func (t *Trustee) GetPlaintexts(hash canonical.Hash, batch uint32, signer int) (*artifact.Plaintexts, error) {
	return t.local.GetPlaintexts(hash, batch, signer)
}

// GetBallots returns a ballots artifact.
func (t *Trustee) GetBallots(hash canonical.Hash, batch uint32, signer int) (*artifact.Ballots, error) {
	return t.local.GetBallots(hash, batch, signer)
}

// JointPublicKey returns the DKG public key this trustee published,
// resolved through its own PublicKey statement so the fetch stays
// hash-checked.
func (t *Trustee) JointPublicKey() (*artifact.DkgPublicKey, canonical.Hash, error) {
	cfg, _, ok := t.local.Configuration()
	if !ok {
		return nil, canonical.Hash{}, fmt.Errorf("trustee: no configuration installed")
	}
	self, ok := cfg.TrusteePosition(t.PublicKey())
	if !ok {
		return nil, canonical.Hash{}, fmt.Errorf("trustee: not part of the configuration")
	}
	for _, e := range t.local.Entries() {
		if e.Statement.Kind != statement.KindPublicKey || e.Key.Signer != self {
			continue
		}
		pk, err := t.local.GetPublicKey(e.Statement.ArtifactHash, e.Key.Signer)
		if err != nil {
			return nil, canonical.Hash{}, err
		}
		return pk, e.Statement.ArtifactHash, nil
	}
	return nil, canonical.Hash{}, fmt.Errorf("trustee: no public key published yet")
}

// PlaintextsResult returns the plaintexts this trustee published for a
// batch, resolved through its own Plaintexts statement.
func (t *Trustee) PlaintextsResult(batch uint32) (*artifact.Plaintexts, error) {
	cfg, _, ok := t.local.Configuration()
	if !ok {
		return nil, fmt.Errorf("trustee: no configuration installed")
	}
	self, ok := cfg.TrusteePosition(t.PublicKey())
	if !ok {
		return nil, fmt.Errorf("trustee: not part of the configuration")
	}
	for _, e := range t.local.Entries() {
		if e.Statement.Kind != statement.KindPlaintexts || e.Key.Signer != self || e.Statement.Batch != batch {
			continue
		}
		return t.local.GetPlaintexts(e.Statement.ArtifactHash, batch, self)
	}
	return nil, fmt.Errorf("trustee: no plaintexts published for batch %d", batch)
}
