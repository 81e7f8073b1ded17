// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package inference

import (
	"sort"

	"github.com/luxfi/braid/artifact"
	"github.com/luxfi/braid/canonical"
	"github.com/luxfi/braid/predicate"
	"github.com/luxfi/braid/utils/set"
)

// Run evaluates the rule set over the predicate multiset to fixed
// point, returning the deduplicated actions in stable digest order and
// the closure of predicates (inputs plus derived output predicates).
//
// Rules fire on the trustee's own position carried by the bootstrap
// Configuration predicate. Rule firing order cannot change the result:
// every rule is strictly additive and the possible predicates per
// session are finite.
func Run(preds []predicate.Predicate) ([]Action, []predicate.Predicate) {
	ps := set.Of(preds...)

	boot, ok := findBootstrap(ps)
	if !ok {
		return nil, ps.List()
	}
	e := &evaluator{
		ps:      ps,
		actions: set.NewSet[Action](8),
		cfg:     boot.Cfg,
		self:    boot.Position,
		count:   boot.Count,
		thresh:  boot.Threshold,
	}

	for {
		before := e.ps.Len()
		e.dkgRules()
		e.shuffleRules()
		e.decryptRules()
		if e.ps.Len() == before {
			break
		}
	}

	actions := e.actions.List()
	sort.Slice(actions, func(i, j int) bool { return actions[i].Less(actions[j]) })
	return actions, e.ps.List()
}

func findBootstrap(ps set.Set[predicate.Predicate]) (predicate.Predicate, bool) {
	for p := range ps {
		if p.Kind == predicate.Configuration {
			return p, true
		}
	}
	return predicate.Predicate{}, false
}

type evaluator struct {
	ps      set.Set[predicate.Predicate]
	actions set.Set[Action]

	cfg    canonical.Hash
	self   int
	count  int
	thresh int
}

// exists reports whether any predicate satisfies the filter.
func (e *evaluator) exists(kind predicate.Kind, match func(predicate.Predicate) bool) bool {
	for p := range e.ps {
		if p.Kind == kind && (match == nil || match(p)) {
			return true
		}
	}
	return false
}

// each visits the predicates of one kind.
func (e *evaluator) each(kind predicate.Kind, visit func(predicate.Predicate)) {
	for p := range e.ps {
		if p.Kind == kind {
			visit(p)
		}
	}
}

// perPosition returns the predicate of the given kind for every
// position 1..count, or false if any is missing.
func (e *evaluator) perPosition(kind predicate.Kind) ([]predicate.Predicate, bool) {
	out := make([]predicate.Predicate, e.count)
	found := 0
	for p := range e.ps {
		if p.Kind != kind || p.Position < 1 || p.Position > e.count {
			continue
		}
		if out[p.Position-1].Kind != kind {
			out[p.Position-1] = p
			found++
		}
	}
	return out, found == e.count
}

///////////////////////////////////////////////////////////////////////////
// DKG phase: rules 1-9
///////////////////////////////////////////////////////////////////////////

func (e *evaluator) dkgRules() {
	// Rule 1: sign the configuration once.
	if !e.exists(predicate.ConfigurationSigned, func(p predicate.Predicate) bool {
		return p.Position == e.self
	}) {
		e.actions.Add(Action{Kind: SignConfiguration, Cfg: e.cfg, Self: e.self})
	}

	// Rule 2: all trustees signed the configuration.
	if _, all := e.perPosition(predicate.ConfigurationSigned); all {
		e.ps.Add(predicate.Predicate{
			Kind: predicate.ConfigurationSignedAll, Cfg: e.cfg,
			Position: e.self, Count: e.count, Threshold: e.thresh,
		})
	}

	signedAll := e.exists(predicate.ConfigurationSignedAll, nil)

	// Rule 3: publish the channel once.
	if signedAll && !e.exists(predicate.Channel, func(p predicate.Predicate) bool {
		return p.Position == e.self
	}) {
		e.actions.Add(Action{Kind: PublishChannel, Cfg: e.cfg, Self: e.self})
	}

	// Rule 4: sign the full channel hash list once.
	if channels, all := e.perPosition(predicate.Channel); signedAll && all {
		var hashes predicate.Hashes
		for i, c := range channels {
			hashes[i] = c.Hash
		}
		if !e.exists(predicate.ChannelsSigned, func(p predicate.Predicate) bool {
			return p.Position == e.self && p.Channels == hashes
		}) {
			e.actions.Add(Action{
				Kind: SignAllChannels, Cfg: e.cfg, Self: e.self, Channels: hashes,
			})
		}
	}

	// Rule 5: every trustee signed an identical channel list.
	if signed, all := e.perPosition(predicate.ChannelsSigned); all {
		identical := true
		for _, p := range signed[1:] {
			if p.Channels != signed[0].Channels {
				identical = false
				break
			}
		}
		if identical {
			e.ps.Add(predicate.Predicate{
				Kind: predicate.ChannelsAllSignedAll, Cfg: e.cfg, Channels: signed[0].Channels,
			})
		}
	}

	var channelsAll predicate.Predicate
	channelsAllOK := false
	e.each(predicate.ChannelsAllSignedAll, func(p predicate.Predicate) {
		channelsAll, channelsAllOK = p, true
	})

	// Rule 6: publish shares once, sealed to the signed channel set.
	if channelsAllOK && !e.exists(predicate.Shares, func(p predicate.Predicate) bool {
		return p.Position == e.self
	}) {
		e.actions.Add(Action{
			Kind: PublishShares, Cfg: e.cfg, Self: e.self, Channels: channelsAll.Channels,
		})
	}

	// Rule 7: compute the public key from everyone's shares once.
	if shares, all := e.perPosition(predicate.Shares); channelsAllOK && all {
		var hashes predicate.Hashes
		for i, s := range shares {
			hashes[i] = s.Hash
		}
		if !e.exists(predicate.PublicKey, func(p predicate.Predicate) bool {
			return p.Position == e.self
		}) {
			e.actions.Add(Action{
				Kind: ComputePublicKey, Cfg: e.cfg, Self: e.self,
				Shares: hashes, Channels: channelsAll.Channels,
			})
		}
	}

	// Rule 8: everyone computed the same public key; sign it once.
	if pks, all := e.perPosition(predicate.PublicKey); all {
		if tupleConsistent(pks) {
			pk := pks[0]
			if !e.exists(predicate.PublicKeySigned, func(p predicate.Predicate) bool {
				return p.Position == e.self && p.Hash == pk.Hash
			}) {
				e.actions.Add(Action{
					Kind: SignPublicKey, Cfg: e.cfg, Self: e.self,
					PublicKeyHash: pk.Hash, Shares: pk.Shares, Channels: pk.Channels,
				})
			}
		}
	}

	// Rule 9: everyone signed the public key.
	if signed, all := e.perPosition(predicate.PublicKeySigned); all {
		if tupleConsistent(signed) {
			e.ps.Add(predicate.Predicate{
				Kind: predicate.PublicKeySignedAll, Cfg: e.cfg,
				Hash: signed[0].Hash, Shares: signed[0].Shares, Channels: signed[0].Channels,
			})
		}
	}
}

// tupleConsistent checks that all predicates carry the same
// (hash, shares, channels) tuple.
func tupleConsistent(ps []predicate.Predicate) bool {
	for _, p := range ps[1:] {
		if p.Hash != ps[0].Hash || p.Shares != ps[0].Shares || p.Channels != ps[0].Channels {
			return false
		}
	}
	return true
}

///////////////////////////////////////////////////////////////////////////
// Shuffle phase: rules 10-13
///////////////////////////////////////////////////////////////////////////

func (e *evaluator) shuffleRules() {
	// Rule 10: the first active trustee mixes the ballots.
	e.each(predicate.Ballots, func(b predicate.Predicate) {
		if b.Trustees.AtRank(1) != e.self {
			return
		}
		if e.exists(predicate.Mix, func(p predicate.Predicate) bool {
			return p.Position == e.self && p.Batch == b.Batch && p.MixNumber == 1
		}) {
			return
		}
		e.actions.Add(Action{
			Kind: Shuffle, Cfg: e.cfg, Self: e.self, Batch: b.Batch,
			MixNumber: 1, SourceHash: b.Hash,
			PublicKeyHash: b.PublicKeyHash, Trustees: b.Trustees,
		})
	})

	e.each(predicate.Mix, func(m predicate.Predicate) {
		b, ok := e.ballotsFor(m.Batch)
		if !ok {
			return
		}
		ts := b.Trustees

		// Rule 11: the (k+1)-th active trustee extends the chain.
		k := int(m.MixNumber)
		if m.Position == ts.AtRank(k) && ts.AtRank(k+1) == e.self {
			if !e.exists(predicate.Mix, func(p predicate.Predicate) bool {
				return p.Position == e.self && p.Batch == m.Batch && p.MixNumber == m.MixNumber+1
			}) {
				e.actions.Add(Action{
					Kind: Shuffle, Cfg: e.cfg, Self: e.self, Batch: m.Batch,
					MixNumber: m.MixNumber + 1, SourceHash: m.Hash,
					PublicKeyHash: b.PublicKeyHash, Trustees: ts,
				})
			}
		}

		// Rule 12: sign every other trustee's mix.
		if m.Position != e.self {
			if !e.exists(predicate.MixSigned, func(p predicate.Predicate) bool {
				return p.Position == e.self && p.Batch == m.Batch &&
					p.SourceHash == m.SourceHash && p.Hash == m.Hash
			}) {
				e.actions.Add(Action{
					Kind: SignMix, Cfg: e.cfg, Self: e.self, Batch: m.Batch,
					MixNumber: m.MixNumber, SourceHash: m.SourceHash, MixHash: m.Hash,
					PublicKeyHash: b.PublicKeyHash, Signer: m.Position, Trustees: ts,
				})
			}
		}

		// Rule 13: the threshold-th mix completes the chain.
		if int(m.MixNumber) == e.thresh {
			e.ps.Add(predicate.Predicate{
				Kind: predicate.MixComplete, Cfg: e.cfg, Batch: m.Batch,
				MixNumber: m.MixNumber, Hash: m.Hash, Position: m.Position,
			})
		}
	})
}

func (e *evaluator) ballotsFor(batch uint32) (predicate.Predicate, bool) {
	var out predicate.Predicate
	found := false
	e.each(predicate.Ballots, func(p predicate.Predicate) {
		if p.Batch == batch {
			out, found = p, true
		}
	})
	return out, found
}

///////////////////////////////////////////////////////////////////////////
// Decryption phase: rules 14-15
///////////////////////////////////////////////////////////////////////////

func (e *evaluator) decryptRules() {
	var pkAll predicate.Predicate
	pkAllOK := false
	e.each(predicate.PublicKeySignedAll, func(p predicate.Predicate) {
		pkAll, pkAllOK = p, true
	})

	e.each(predicate.MixComplete, func(mc predicate.Predicate) {
		b, ok := e.ballotsFor(mc.Batch)
		if !ok {
			return
		}
		ts := b.Trustees

		// Rule 14: each active trustee publishes decryption factors.
		if pkAllOK && ts.Contains(e.self) {
			if !e.exists(predicate.DecryptionFactors, func(p predicate.Predicate) bool {
				return p.Position == e.self && p.Batch == mc.Batch
			}) {
				e.actions.Add(Action{
					Kind: Decrypt, Cfg: e.cfg, Self: e.self, Batch: mc.Batch,
					SourceHash: mc.Hash, Shares: pkAll.Shares, Channels: pkAll.Channels,
					PublicKeyHash: b.PublicKeyHash, Trustees: ts,
				})
			}
		}

		// Rule 15: all active factors present.
		factors, all := e.factorsFor(mc, ts)
		if !all || !pkAllOK {
			return
		}

		var own predicate.Predicate
		ownOK := false
		e.each(predicate.Plaintexts, func(p predicate.Predicate) {
			if p.Position == e.self && p.Batch == mc.Batch {
				own, ownOK = p, true
			}
		})

		if !ownOK {
			e.actions.Add(Action{
				Kind: CombinePlaintexts, Cfg: e.cfg, Self: e.self, Batch: mc.Batch,
				SourceHash: mc.Hash, Factors: factors, Shares: pkAll.Shares,
				PublicKeyHash: b.PublicKeyHash, Trustees: ts,
			})
			return
		}

		// Sign matching plaintexts published by other trustees.
		signMatching := false
		e.each(predicate.Plaintexts, func(p predicate.Predicate) {
			if p.Position != e.self && p.Batch == mc.Batch && p.Hash == own.Hash {
				signMatching = true
			}
		})
		if signMatching && !e.exists(predicate.PlaintextsSigned, func(p predicate.Predicate) bool {
			return p.Position == e.self && p.Batch == mc.Batch && p.Hash == own.Hash
		}) {
			e.actions.Add(Action{
				Kind: SignPlaintexts, Cfg: e.cfg, Self: e.self, Batch: mc.Batch,
				PlaintextsHash: own.Hash, SourceHash: mc.Hash, Factors: factors,
				Shares: pkAll.Shares, PublicKeyHash: b.PublicKeyHash, Trustees: ts,
			})
		}
	})
}

// factorsFor returns the factor hashes of every active trustee in rank
// order, or false if any are missing.
func (e *evaluator) factorsFor(mc predicate.Predicate, ts artifact.TrusteeSet) (predicate.Hashes, bool) {
	var out predicate.Hashes
	active := ts.Active()
	for rank, pos := range active {
		found := false
		e.each(predicate.DecryptionFactors, func(p predicate.Predicate) {
			if p.Position == pos && p.Batch == mc.Batch && p.SourceHash == mc.Hash {
				out[rank] = p.Hash
				found = true
			}
		})
		if !found {
			return predicate.Hashes{}, false
		}
	}
	return out, true
}
