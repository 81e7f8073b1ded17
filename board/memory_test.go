// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package board

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/braid/canonical"
	"github.com/luxfi/braid/crypto/sign"
	"github.com/luxfi/braid/statement"
)

type memSigner struct {
	key sign.SigningKey
}

func (s *memSigner) Name() string                { return "signer" }
func (s *memSigner) SigningKey() sign.SigningKey { return s.key }

func signedStatement(t *testing.T, s *memSigner, ts int64) statement.Message {
	t.Helper()
	msg, err := statement.Sign(s, statement.ConfigurationSigned(ts, canonical.Sum([]byte("cfg"))), nil)
	require.NoError(t, err)
	return msg
}

func newMemSigner(t *testing.T) *memSigner {
	t.Helper()
	key, err := sign.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return &memSigner{key: key}
}

func TestBoardNames(t *testing.T) {
	require := require.New(t)
	m := NewMemory(0)

	require.NoError(m.CreateBoard("session_1-a"))
	require.ErrorIs(m.CreateBoard(""), ErrInvalidBoardName)
	require.ErrorIs(m.CreateBoard("no spaces"), ErrInvalidBoardName)
	require.ErrorIs(m.CreateBoard("xxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxx"), ErrInvalidBoardName)

	require.Equal([]string{"session_1-a"}, m.Boards())

	_, _, err := m.GetMessages("unknown", 0)
	require.ErrorIs(err, ErrUnknownBoard)
}

func TestPutGetMonotone(t *testing.T) {
	require := require.New(t)
	m := NewMemory(0)
	require.NoError(m.CreateBoard("b"))

	s1 := newMemSigner(t)
	s2 := newMemSigner(t)
	m1 := signedStatement(t, s1, 1)
	m2 := signedStatement(t, s2, 2)

	require.NoError(m.PutMessages("b", []statement.Message{m1}))
	require.NoError(m.PutMessages("b", []statement.Message{m2}))

	msgs, last, err := m.GetMessages("b", 0)
	require.NoError(err)
	require.Len(msgs, 2)
	require.Equal(2, last)

	// Resuming from the cursor returns only the tail.
	msgs, last, err = m.GetMessages("b", 1)
	require.NoError(err)
	require.Len(msgs, 1)
	require.Equal(2, last)

	msgs, last, err = m.GetMessages("b", 2)
	require.NoError(err)
	require.Empty(msgs)
	require.Equal(2, last)
}

func TestPutIdempotent(t *testing.T) {
	require := require.New(t)
	m := NewMemory(0)
	require.NoError(m.CreateBoard("b"))

	s := newMemSigner(t)
	msg := signedStatement(t, s, 1)

	require.NoError(m.PutMessages("b", []statement.Message{msg}))
	require.NoError(m.PutMessages("b", []statement.Message{msg}))

	msgs, _, err := m.GetMessages("b", 0)
	require.NoError(err)
	require.Len(msgs, 1)
}

func TestPutConflictRejected(t *testing.T) {
	require := require.New(t)
	m := NewMemory(0)
	require.NoError(m.CreateBoard("b"))

	s := newMemSigner(t)
	// Same logical key (kind, sender, batch), different content.
	require.NoError(m.PutMessages("b", []statement.Message{signedStatement(t, s, 1)}))
	require.ErrorIs(m.PutMessages("b", []statement.Message{signedStatement(t, s, 2)}), ErrConflictingAppend)

	msgs, _, err := m.GetMessages("b", 0)
	require.NoError(err)
	require.Len(msgs, 1)
}

func TestChunkTruncation(t *testing.T) {
	require := require.New(t)
	m := NewMemory(2)
	require.NoError(m.CreateBoard("b"))

	for i := 0; i < 5; i++ {
		require.NoError(m.PutMessages("b", []statement.Message{signedStatement(t, newMemSigner(t), int64(i))}))
	}

	var got int
	last := 0
	for {
		msgs, newLast, err := m.GetMessages("b", last)
		require.NoError(err)
		if len(msgs) == 0 {
			break
		}
		require.LessOrEqual(len(msgs), 2)
		got += len(msgs)
		last = newLast
	}
	require.Equal(5, got)
}
