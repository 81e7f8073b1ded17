// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package trustee

import (
	"fmt"

	"github.com/luxfi/braid/board"
	"github.com/luxfi/braid/canonical"
	"github.com/luxfi/braid/inference"
	"github.com/luxfi/braid/statement"
)

// verifierExecutors replaces every emitting action with its
// verification-only variant. No messages are produced; a failed check
// fails the step.
var verifierExecutors = map[inference.ActionKind]executor{
	inference.SignConfiguration: verifyConfiguration,
	inference.PublishChannel:    verifyNothing,
	inference.SignAllChannels:   verifyChannels,
	inference.PublishShares:     verifyNothing,
	inference.ComputePublicKey:  verifyNothing,
	inference.SignPublicKey:     verifyPublicKey,
	inference.Shuffle:           verifyNothing,
	inference.SignMix:           verifyMix,
	inference.Decrypt:           verifyNothing,
	inference.CombinePlaintexts: verifyPlaintexts,
	inference.SignPlaintexts:    verifyPlaintexts,
}

// verifyNothing covers generation actions that have no published
// counterpart to check: their outputs are verified through the
// downstream signing actions.
func verifyNothing(*Trustee, *board.Local, inference.Action) ([]statement.Message, error) {
	return nil, nil
}

func verifyConfiguration(t *Trustee, staged *board.Local, a inference.Action) ([]statement.Message, error) {
	cfg, err := staged.GetConfiguration(a.Cfg)
	if err != nil {
		return nil, err
	}
	return nil, t.approveConfiguration(cfg)
}

func verifyChannels(t *Trustee, staged *board.Local, a inference.Action) ([]statement.Message, error) {
	cfg, err := staged.GetConfiguration(a.Cfg)
	if err != nil {
		return nil, err
	}
	for i, h := range a.Channels.Slice(cfg.TrusteeCount()) {
		if _, err := staged.GetChannel(h, i+1); err != nil {
			return nil, err
		}
	}
	return nil, nil
}

func verifyPublicKey(t *Trustee, staged *board.Local, a inference.Action) ([]statement.Message, error) {
	cfg, err := staged.GetConfiguration(a.Cfg)
	if err != nil {
		return nil, err
	}
	return nil, rederivePublicKey(t.ctx, staged, a.Shares.Slice(cfg.TrusteeCount()), a.PublicKeyHash)
}

func verifyMix(t *Trustee, staged *board.Local, a inference.Action) ([]statement.Message, error) {
	cfg, err := staged.GetConfiguration(a.Cfg)
	if err != nil {
		return nil, err
	}
	return nil, checkMix(t.ctx, staged, a, cfg.TrusteeCount())
}

// verifyPlaintexts re-derives the batch plaintexts from the referenced
// factors and checks every published plaintexts artifact against them.
func verifyPlaintexts(t *Trustee, staged *board.Local, a inference.Action) ([]statement.Message, error) {
	cfg, err := staged.GetConfiguration(a.Cfg)
	if err != nil {
		return nil, err
	}
	plaintexts, err := derivePlaintexts(t.ctx, staged, a, cfg.TrusteeCount())
	if err != nil {
		return nil, err
	}
	bytes, err := plaintexts.Encode()
	if err != nil {
		return nil, err
	}
	derived := canonical.Sum(bytes)
	for signer, published := range staged.PlaintextsHashes(a.Batch) {
		if published != derived {
			return nil, fmt.Errorf("%w: trustee %d batch %d", ErrPlaintextsMismatch, signer, a.Batch)
		}
	}
	return nil, nil
}
