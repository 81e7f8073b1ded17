// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Command braid runs a complete local protocol session over an
// in-memory bulletin board: bootstrap, DKG, a ballot batch, mixing and
// threshold decryption, printing the recovered plaintexts.
package main

import (
	"crypto/rand"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/luxfi/braid/artifact"
	"github.com/luxfi/braid/board"
	"github.com/luxfi/braid/crypto/group"
	"github.com/luxfi/braid/crypto/group/modp"
	"github.com/luxfi/braid/crypto/group/ristretto"
	"github.com/luxfi/braid/crypto/sign"
	"github.com/luxfi/braid/crypto/symm"
	"github.com/luxfi/braid/statement"
	"github.com/luxfi/braid/trustee"
)

const boardName = "session"

func main() {
	var (
		trusteeCount = flag.Int("trustees", 3, "number of trustees (2..12)")
		threshold    = flag.Int("threshold", 2, "mixing/decryption threshold")
		ballotCount  = flag.Int("ballots", 10, "number of demo ballots")
		groupName    = flag.String("group", "ristretto255", "group backend (ristretto255, modp2048)")
		maxRounds    = flag.Int("max-rounds", 100, "round limit before giving up")
	)
	flag.Parse()

	if err := run(*trusteeCount, *threshold, *ballotCount, *groupName, *maxRounds); err != nil {
		fmt.Fprintf(os.Stderr, "braid: %v\n", err)
		os.Exit(1)
	}
}

func run(n, threshold, ballots int, groupName string, maxRounds int) error {
	var ctx group.Ctx
	switch groupName {
	case "ristretto255":
		ctx = ristretto.New()
	case "modp2048":
		ctx = modp.New()
	default:
		return fmt.Errorf("unknown group %q", groupName)
	}
	now := func() int64 { return time.Now().Unix() }

	// Identities.
	pmKey, err := sign.GenerateKey(rand.Reader)
	if err != nil {
		return err
	}
	pm := trustee.NewProtocolManager(ctx, "protocol-manager", pmKey, now)

	cfg := &artifact.Configuration{
		Timestamp: now(),
		Threshold: threshold,
		Group:     ctx.Name(),
	}
	cfg.ProtocolManager = pm.PublicKey()

	trustees := make([]*trustee.Trustee, n)
	for i := range trustees {
		key, err := sign.GenerateKey(rand.Reader)
		if err != nil {
			return err
		}
		storage, err := symm.NewKey(rand.Reader)
		if err != nil {
			return err
		}
		tr, err := trustee.New(ctx, fmt.Sprintf("trustee-%d", i+1), key, storage, trustee.Config{})
		if err != nil {
			return err
		}
		trustees[i] = tr
		cfg.Trustees = append(cfg.Trustees, tr.PublicKey())
	}

	// Bulletin board with the bootstrap configuration.
	mem := board.NewMemory(0)
	if err := mem.CreateBoard(boardName); err != nil {
		return err
	}
	bootstrap, err := pm.BootstrapMessage(cfg)
	if err != nil {
		return err
	}
	if err := mem.PutMessages(boardName, []statement.Message{bootstrap}); err != nil {
		return err
	}

	cursors := make([]int, n)
	fmt.Printf("running DKG with %d trustees, threshold %d, group %s\n", n, threshold, ctx.Name())
	if err := runToQuiescence(mem, trustees, cursors, maxRounds); err != nil {
		return err
	}

	pk, pkHash, err := trustees[0].JointPublicKey()
	if err != nil {
		return err
	}
	fmt.Printf("joint public key established (%s)\n", pkHash)

	// Encrypt a demo batch under the joint key.
	plaintexts := make([][]byte, ballots)
	for i := range plaintexts {
		pt := make([]byte, ctx.PlaintextLen())
		pt[0] = byte(i + 1)
		plaintexts[i] = pt
	}
	ciphertexts, err := trustee.EncryptBallots(ctx, pk.Y, plaintexts, rand.Reader)
	if err != nil {
		return err
	}

	var active []int
	for i := 1; i <= threshold; i++ {
		active = append(active, i)
	}
	_, cfgHash, _ := trustees[0].Configuration()
	ballotsMsg, err := pm.BallotsMessage(cfgHash, 0, ciphertexts, pkHash, artifact.NewTrusteeSet(active...))
	if err != nil {
		return err
	}
	if err := mem.PutMessages(boardName, []statement.Message{ballotsMsg}); err != nil {
		return err
	}

	fmt.Printf("posted batch of %d ballots, mixing and decrypting\n", ballots)
	if err := runToQuiescence(mem, trustees, cursors, maxRounds); err != nil {
		return err
	}

	result, err := trustees[0].PlaintextsResult(0)
	if err != nil {
		return err
	}
	decoded, err := result.Decode(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("recovered %d plaintexts:\n", len(decoded))
	for i, pt := range decoded {
		fmt.Printf("  %3d: %d\n", i, pt[0])
	}
	return nil
}

// runToQuiescence steps every trustee against the shared board until a
// full round posts nothing new.
func runToQuiescence(mem *board.Memory, trustees []*trustee.Trustee, cursors []int, maxRounds int) error {
	for round := 0; round < maxRounds; round++ {
		posted := 0
		for i, tr := range trustees {
			msgs, last, err := mem.GetMessages(boardName, cursors[i])
			if err != nil {
				return err
			}
			cursors[i] = last
			out, _, err := tr.Step(msgs)
			if err != nil {
				return fmt.Errorf("trustee %d: %w", i+1, err)
			}
			if len(out) > 0 {
				if err := mem.PutMessages(boardName, out); err != nil {
					return err
				}
				posted += len(out)
			}
		}
		if posted == 0 {
			pending := false
			for i := range trustees {
				if msgs, _, _ := mem.GetMessages(boardName, cursors[i]); len(msgs) > 0 {
					pending = true
					break
				}
			}
			if !pending {
				return nil
			}
		}
	}
	return fmt.Errorf("no quiescence after %d rounds", maxRounds)
}
