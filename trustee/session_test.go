// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package trustee

import (
	"crypto/rand"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/braid/artifact"
	"github.com/luxfi/braid/board"
	"github.com/luxfi/braid/canonical"
	"github.com/luxfi/braid/crypto/group"
	"github.com/luxfi/braid/crypto/group/ristretto"
	"github.com/luxfi/braid/crypto/sign"
	"github.com/luxfi/braid/crypto/symm"
	"github.com/luxfi/braid/statement"
)

const testBoard = "session"

// session wires a protocol manager, n trustees and an in-memory
// bulletin board holding the bootstrap configuration.
type session struct {
	ctx      group.Ctx
	mem      *board.Memory
	pm       *ProtocolManager
	cfg      *artifact.Configuration
	cfgHash  canonical.Hash
	trustees []*Trustee
	cursors  []int
	clock    atomic.Int64
}

func newSession(t *testing.T, n, threshold int) *session {
	t.Helper()
	require := require.New(t)

	s := &session{ctx: ristretto.New()}
	s.clock.Store(1700000000)
	// Executors run in parallel inside a step, so the test clock must
	// be atomic.
	now := func() int64 { return s.clock.Add(1) }

	pmKey, err := sign.GenerateKey(rand.Reader)
	require.NoError(err)
	s.pm = NewProtocolManager(s.ctx, "pm", pmKey, now)

	s.cfg = &artifact.Configuration{
		Timestamp:       1700000000,
		ProtocolManager: s.pm.PublicKey(),
		Threshold:       threshold,
		Group:           s.ctx.Name(),
	}
	for i := 0; i < n; i++ {
		key, err := sign.GenerateKey(rand.Reader)
		require.NoError(err)
		storage, err := symm.NewKey(rand.Reader)
		require.NoError(err)
		tr, err := New(s.ctx, fmt.Sprintf("trustee-%d", i+1), key, storage, Config{Now: now})
		require.NoError(err)
		s.trustees = append(s.trustees, tr)
		s.cfg.Trustees = append(s.cfg.Trustees, tr.PublicKey())
	}
	cfgBytes, err := s.cfg.Encode()
	require.NoError(err)
	s.cfgHash = canonical.Sum(cfgBytes)

	s.mem = board.NewMemory(0)
	require.NoError(s.mem.CreateBoard(testBoard))
	bootstrap, err := s.pm.BootstrapMessage(s.cfg)
	require.NoError(err)
	require.NoError(s.mem.PutMessages(testBoard, []statement.Message{bootstrap}))

	s.cursors = make([]int, n)
	return s
}

// run steps every trustee against the board until a full round is
// quiet.
func (s *session) run(t *testing.T) {
	t.Helper()
	require := require.New(t)

	for round := 0; round < 100; round++ {
		posted := 0
		pending := false
		for i, tr := range s.trustees {
			msgs, last, err := s.mem.GetMessages(testBoard, s.cursors[i])
			require.NoError(err)
			s.cursors[i] = last
			out, _, err := tr.Step(msgs)
			require.NoError(err)
			if len(out) > 0 {
				require.NoError(s.mem.PutMessages(testBoard, out))
				posted += len(out)
			}
		}
		for i := range s.trustees {
			if msgs, _, _ := s.mem.GetMessages(testBoard, s.cursors[i]); len(msgs) > 0 {
				pending = true
			}
		}
		if posted == 0 && !pending {
			return
		}
	}
	t.Fatal("no quiescence after 100 rounds")
}

// postBallots encrypts the plaintexts under the joint key and posts
// the batch for the selected trustees.
func (s *session) postBallots(t *testing.T, batch uint32, plaintexts [][]byte, ts artifact.TrusteeSet) {
	t.Helper()
	require := require.New(t)

	pk, pkHash, err := s.trustees[0].JointPublicKey()
	require.NoError(err)
	cts, err := EncryptBallots(s.ctx, pk.Y, plaintexts, rand.Reader)
	require.NoError(err)
	msg, err := s.pm.BallotsMessage(s.cfgHash, batch, cts, pkHash, ts)
	require.NoError(err)
	require.NoError(s.mem.PutMessages(testBoard, []statement.Message{msg}))
}

// paddedPlaintexts builds fixed-size plaintext byte vectors with the
// given first bytes.
func (s *session) paddedPlaintexts(first ...byte) [][]byte {
	out := make([][]byte, len(first))
	for i, b := range first {
		pt := make([]byte, s.ctx.PlaintextLen())
		pt[0] = b
		out[i] = pt
	}
	return out
}

// decodedMultiset decodes a trustee's plaintexts result into a
// multiset of first bytes.
func decodedMultiset(t *testing.T, s *session, tr *Trustee, batch uint32) map[byte]int {
	t.Helper()
	require := require.New(t)
	result, err := tr.PlaintextsResult(batch)
	require.NoError(err)
	decoded, err := result.Decode(s.ctx)
	require.NoError(err)
	counts := make(map[byte]int)
	for _, pt := range decoded {
		counts[pt[0]]++
	}
	return counts
}

// countKind counts board statements of one kind on a trustee's local
// board.
func countKind(tr *Trustee, kind statement.Kind) int {
	n := 0
	for _, e := range tr.local.Entries() {
		if e.Statement.Kind == kind {
			n++
		}
	}
	return n
}

///////////////////////////////////////////////////////////////////////////
// End-to-end scenarios
///////////////////////////////////////////////////////////////////////////

func TestBootstrapEcho(t *testing.T) {
	require := require.New(t)
	s := newSession(t, 2, 2)

	msgs, _, err := s.mem.GetMessages(testBoard, 0)
	require.NoError(err)
	require.Len(msgs, 1)

	out, actions, err := s.trustees[0].Step(msgs)
	require.NoError(err)
	require.Len(out, 1)
	require.Equal(statement.KindConfigurationSigned, out[0].Statement.Kind)
	require.Equal(s.trustees[0].PublicKey(), out[0].Sender.PublicKey)
	require.Len(actions, 1)

	// The local board holds the configuration and nothing else.
	require.True(s.trustees[0].local.HasConfiguration())
	require.Equal(0, s.trustees[0].local.Len())
}

func TestDKGCompletion(t *testing.T) {
	require := require.New(t)
	s := newSession(t, 2, 2)
	s.run(t)

	pk0, pkHash0, err := s.trustees[0].JointPublicKey()
	require.NoError(err)
	pk1, pkHash1, err := s.trustees[1].JointPublicKey()
	require.NoError(err)
	require.Equal(pkHash0, pkHash1)
	require.True(pk0.Y.Equal(pk1.Y))

	// The joint key is the product of the two channel public elements.
	product := s.ctx.One()
	for _, e := range s.trustees[0].local.Entries() {
		if e.Statement.Kind != statement.KindChannel {
			continue
		}
		ch, err := s.trustees[0].local.GetChannel(e.Statement.ArtifactHash, e.Key.Signer)
		require.NoError(err)
		product = s.ctx.Mul(product, ch.Element)
	}
	require.True(pk0.Y.Equal(product))

	// Everything is cross-signed by both trustees.
	for _, tr := range s.trustees {
		require.Equal(2, countKind(tr, statement.KindConfigurationSigned))
		require.Equal(2, countKind(tr, statement.KindChannel))
		require.Equal(2, countKind(tr, statement.KindChannelsAllSigned))
		require.Equal(2, countKind(tr, statement.KindShares))
		require.Equal(2, countKind(tr, statement.KindPublicKey))
		require.Equal(2, countKind(tr, statement.KindPublicKeySigned))
	}
}

func TestSingleBallotRoundtrip(t *testing.T) {
	require := require.New(t)
	s := newSession(t, 2, 2)
	s.run(t)

	s.postBallots(t, 0, s.paddedPlaintexts(42), artifact.NewTrusteeSet(1, 2))
	s.run(t)

	for _, tr := range s.trustees {
		counts := decodedMultiset(t, s, tr, 0)
		require.Equal(map[byte]int{42: 1}, counts)
	}

	// Both trustees published plaintexts and the matching signatures.
	require.Equal(2, countKind(s.trustees[0], statement.KindPlaintexts))
	require.Equal(2, countKind(s.trustees[0], statement.KindPlaintextsSigned))
	// Both mixes are signed by the respective other trustee.
	require.Equal(2, countKind(s.trustees[0], statement.KindMix))
	require.Equal(2, countKind(s.trustees[0], statement.KindMixSigned))
}

func TestMaliciousOverwriteDropped(t *testing.T) {
	require := require.New(t)
	s := newSession(t, 2, 2)
	s.run(t)

	before := s.trustees[1].local.Len()

	// Trustee 1 republishes a different channel.
	forged := &artifact.Channel{Element: s.ctx.Generator(), EncryptedSK: []byte("forged")}
	bytes, err := forged.Encode()
	require.NoError(err)
	st := statement.Channel(9999999999, s.cfgHash, canonical.Sum(bytes))
	msg, err := statement.Sign(s.trustees[0], st, bytes)
	require.NoError(err)

	out, _, err := s.trustees[1].Step([]statement.Message{msg})
	require.NoError(err)
	require.Empty(out)
	// The board did not advance.
	require.Equal(before, s.trustees[1].local.Len())

	// The original channel artifact is untouched.
	tampered, err := s.trustees[1].local.GetChannel(canonical.Sum(bytes), 1)
	require.Error(err)
	require.Nil(tampered)
}

func TestThresholdRecovery(t *testing.T) {
	require := require.New(t)
	s := newSession(t, 3, 2)
	s.run(t)

	// Trustee 3 is excluded from the batch.
	s.postBallots(t, 0, s.paddedPlaintexts(7, 9, 7), artifact.NewTrusteeSet(1, 2))
	s.run(t)

	want := map[byte]int{7: 2, 9: 1}
	for _, tr := range s.trustees {
		require.Equal(want, decodedMultiset(t, s, tr, 0))
	}
}

func TestShuffleTamperRejected(t *testing.T) {
	require := require.New(t)
	s := newSession(t, 2, 2)
	s.run(t)
	s.postBallots(t, 0, s.paddedPlaintexts(1, 2, 3), artifact.NewTrusteeSet(1, 2))
	s.run(t)

	// Find a mix message on the board and tamper with its artifact bytes.
	msgs, _, err := s.mem.GetMessages(testBoard, 0)
	require.NoError(err)
	var mixMsg *statement.Message
	for i := range msgs {
		if msgs[i].Statement.Kind == statement.KindMix {
			mixMsg = &msgs[i]
			break
		}
	}
	require.NotNil(mixMsg)

	// Re-sign a tampered copy of the mix under a fourth identity.
	strangerKey, err := sign.GenerateKey(rand.Reader)
	require.NoError(err)
	strangerStorage, err := symm.NewKey(rand.Reader)
	require.NoError(err)
	stranger, err := New(s.ctx, "stranger", strangerKey, strangerStorage, Config{})
	require.NoError(err)

	tamperedBytes := append(append([]byte{}, mixMsg.Artifact...), 0)
	st := mixMsg.Statement
	st.ArtifactHash = canonical.Sum(tamperedBytes)
	forged, err := statement.Sign(stranger, st, tamperedBytes)
	require.NoError(err)

	before := s.trustees[1].local.Len()
	_, _, err = s.trustees[1].Step([]statement.Message{forged})
	require.ErrorIs(err, statement.ErrNotConfiguredSigner)
	// The failed step left the board untouched.
	require.Equal(before, s.trustees[1].local.Len())

	// The same payload signed by a configured trustee still fails: the
	// artifact does not match the statement it would overwrite, and a
	// mismatched artifact hash is caught at verification.
	st2 := mixMsg.Statement
	forged2, err := statement.Sign(s.trustees[0], st2, tamperedBytes)
	require.NoError(err)
	_, _, err = s.trustees[1].Step([]statement.Message{forged2})
	require.ErrorIs(err, statement.ErrArtifactHashMismatch)
	require.Equal(before, s.trustees[1].local.Len())
}

///////////////////////////////////////////////////////////////////////////
// Boundary behaviours
///////////////////////////////////////////////////////////////////////////

func TestZeroBallotBatch(t *testing.T) {
	require := require.New(t)
	s := newSession(t, 2, 2)
	s.run(t)

	s.postBallots(t, 0, nil, artifact.NewTrusteeSet(1, 2))
	s.run(t)

	result, err := s.trustees[0].PlaintextsResult(0)
	require.NoError(err)
	require.Empty(result.Elements)
}

func TestTwoBatchesOppositeOrder(t *testing.T) {
	require := require.New(t)
	s := newSession(t, 2, 2)
	s.run(t)

	// Batch 1 is posted before batch 0.
	s.postBallots(t, 1, s.paddedPlaintexts(11, 12), artifact.NewTrusteeSet(2, 1))
	s.postBallots(t, 0, s.paddedPlaintexts(21), artifact.NewTrusteeSet(1, 2))
	s.run(t)

	for _, tr := range s.trustees {
		require.Equal(map[byte]int{11: 1, 12: 1}, decodedMultiset(t, s, tr, 1))
		require.Equal(map[byte]int{21: 1}, decodedMultiset(t, s, tr, 0))
	}
}

func TestStepIdempotent(t *testing.T) {
	require := require.New(t)
	s := newSession(t, 2, 2)
	s.run(t)
	s.postBallots(t, 0, s.paddedPlaintexts(5), artifact.NewTrusteeSet(1, 2))
	s.run(t)

	// Replaying the whole board into a settled trustee changes
	// nothing and emits nothing.
	msgs, _, err := s.mem.GetMessages(testBoard, 0)
	require.NoError(err)
	before := s.trustees[0].local.Len()
	out, _, err := s.trustees[0].Step(msgs)
	require.NoError(err)
	require.Empty(out)
	require.Equal(before, s.trustees[0].local.Len())
}

func TestOrderInsensitiveClosure(t *testing.T) {
	require := require.New(t)
	s := newSession(t, 2, 2)
	s.run(t)
	s.postBallots(t, 0, s.paddedPlaintexts(3, 1), artifact.NewTrusteeSet(1, 2))
	s.run(t)

	msgs, _, err := s.mem.GetMessages(testBoard, 0)
	require.NoError(err)

	// A late observer replaying the board with the non-bootstrap
	// messages reversed reaches the same closure.
	replay := func(ordered []statement.Message) *Trustee {
		v, err := NewVerifier(s.ctx, Config{})
		require.NoError(err)
		_, _, err = v.Verify(ordered)
		require.NoError(err)
		return v
	}

	forward := replay(msgs)

	reversed := make([]statement.Message, 0, len(msgs))
	reversed = append(reversed, msgs[0])
	for i := len(msgs) - 1; i >= 1; i-- {
		reversed = append(reversed, msgs[i])
	}
	backward := replay(reversed)

	require.Equal(forward.local.Len(), backward.local.Len())
	fEntries := make(map[board.StatementKey]canonical.Hash)
	for _, e := range forward.local.Entries() {
		fEntries[e.Key] = e.Hash
	}
	for _, e := range backward.local.Entries() {
		require.Equal(fEntries[e.Key], e.Hash)
	}
}

func TestVerifierReRun(t *testing.T) {
	require := require.New(t)
	s := newSession(t, 3, 2)
	s.run(t)
	s.postBallots(t, 0, s.paddedPlaintexts(1, 2, 3, 4), artifact.NewTrusteeSet(3, 1))
	s.run(t)

	msgs, _, err := s.mem.GetMessages(testBoard, 0)
	require.NoError(err)

	v, err := NewVerifier(s.ctx, Config{})
	require.NoError(err)
	preds, actions, err := v.Verify(msgs)
	require.NoError(err)
	require.NotEmpty(preds)
	// The verifier re-checks the session; it never emits messages, and
	// its pending "actions" are exactly the verification variants.
	require.NotEmpty(actions)
}

func TestFailedStepLeavesBoardUntouched(t *testing.T) {
	require := require.New(t)
	s := newSession(t, 2, 2)
	s.run(t)

	// A garbage message from an unknown signer fails the step.
	strangerKey, err := sign.GenerateKey(rand.Reader)
	require.NoError(err)
	stSigner := &managerSigner{name: "x", key: strangerKey}
	bad, err := statement.Sign(stSigner, statement.ConfigurationSigned(1, s.cfgHash), nil)
	require.NoError(err)

	before := s.trustees[0].local.Len()
	_, _, err = s.trustees[0].Step([]statement.Message{bad})
	require.ErrorIs(err, statement.ErrNotConfiguredSigner)
	require.Equal(before, s.trustees[0].local.Len())
}

// managerSigner adapts a bare key to statement.Signer for tests.
type managerSigner struct {
	name string
	key  sign.SigningKey
}

func (m *managerSigner) Name() string                { return m.name }
func (m *managerSigner) SigningKey() sign.SigningKey { return m.key }
