// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package board

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"sync"

	"github.com/luxfi/braid/canonical"
	"github.com/luxfi/braid/crypto/sign"
	"github.com/luxfi/braid/statement"
)

// DefaultMessageChunkSize bounds one GetMessages response.
const DefaultMessageChunkSize = 256

var (
	// ErrInvalidBoardName marks a name outside ^[a-zA-Z0-9_-]{1,64}$.
	ErrInvalidBoardName = errors.New("board: invalid board name")
	// ErrUnknownBoard marks an access to a board that was never
	// created.
	ErrUnknownBoard = errors.New("board: unknown board")
	// ErrConflictingAppend marks a put whose logical key already holds
	// different content.
	ErrConflictingAppend = errors.New("board: conflicting append")

	boardNameRE = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)
)

// logicalKey identifies the slot a message occupies on the board. The
// board has no configuration, so the sender is keyed by public key
// rather than position.
type logicalKey struct {
	kind      statement.Kind
	sender    sign.PublicKey
	batch     uint32
	mixNumber uint32
}

type storedMessage struct {
	id   int
	hash canonical.Hash
	msg  statement.Message
}

type boardLog struct {
	messages []storedMessage
	byKey    map[logicalKey]canonical.Hash
}

// Memory is an in-memory bulletin board implementing the board
// contract: a monotone, insertion-ordered message stream per board,
// idempotent for byte-identical appends and rejecting conflicting
// content at the same logical key.
type Memory struct {
	mu        sync.Mutex
	chunkSize int
	boards    map[string]*boardLog
}

// NewMemory returns an empty board set with the given chunk size
// (DefaultMessageChunkSize if zero or negative).
func NewMemory(chunkSize int) *Memory {
	if chunkSize <= 0 {
		chunkSize = DefaultMessageChunkSize
	}
	return &Memory{
		chunkSize: chunkSize,
		boards:    make(map[string]*boardLog),
	}
}

// CreateBoard creates an empty board. Creating an existing board is a
// no-op.
func (m *Memory) CreateBoard(name string) error {
	if !boardNameRE.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidBoardName, name)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.boards[name]; !ok {
		m.boards[name] = &boardLog{byKey: make(map[logicalKey]canonical.Hash)}
	}
	return nil
}

// Boards lists the board names, sorted.
func (m *Memory) Boards() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.boards))
	for n := range m.boards {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// GetMessages returns messages with id > lastID, in insertion order,
// truncated to the chunk size, along with the id of the last returned
// message.
func (m *Memory) GetMessages(name string, lastID int) ([]statement.Message, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.boards[name]
	if !ok {
		return nil, lastID, fmt.Errorf("%w: %q", ErrUnknownBoard, name)
	}
	var out []statement.Message
	id := lastID
	for _, sm := range b.messages {
		if sm.id <= lastID {
			continue
		}
		out = append(out, sm.msg)
		id = sm.id
		if len(out) == m.chunkSize {
			break
		}
	}
	return out, id, nil
}

// PutMessages appends messages. Byte-identical duplicates are ignored;
// differing content at an existing logical key is rejected without
// appending any message of the batch.
func (m *Memory) PutMessages(name string, msgs []statement.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.boards[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownBoard, name)
	}

	type pending struct {
		key  logicalKey
		hash canonical.Hash
		msg  statement.Message
	}
	var toAppend []pending
	staged := make(map[logicalKey]canonical.Hash)
	for i := range msgs {
		msg := msgs[i]
		hash, err := msg.Hash()
		if err != nil {
			return err
		}
		key := logicalKey{
			kind:   msg.Statement.Kind,
			sender: msg.Sender.PublicKey,
			batch:  msg.Statement.Batch,
		}
		if msg.Statement.Kind == statement.KindMixSigned {
			key.mixNumber = msg.Statement.MixNumber
		}
		existing, exists := b.byKey[key]
		if !exists {
			existing, exists = staged[key]
		}
		if exists {
			if existing == hash {
				continue
			}
			return fmt.Errorf("%w: %s", ErrConflictingAppend, msg.Statement.Kind)
		}
		staged[key] = hash
		toAppend = append(toAppend, pending{key: key, hash: hash, msg: msg})
	}
	for _, p := range toAppend {
		b.byKey[p.key] = p.hash
		b.messages = append(b.messages, storedMessage{
			id:   len(b.messages) + 1,
			hash: p.hash,
			msg:  p.msg,
		})
	}
	return nil
}
