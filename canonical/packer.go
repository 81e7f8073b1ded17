// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package canonical

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	// ErrTrailingBytes is returned when a decode leaves unread input.
	ErrTrailingBytes = errors.New("canonical: trailing bytes after decode")
	// ErrShortInput is returned when a decode runs out of input.
	ErrShortInput = errors.New("canonical: short input")
	// ErrOversized is returned when a length prefix exceeds its bound.
	ErrOversized = errors.New("canonical: length prefix exceeds bound")
)

// Packer accumulates a canonical encoding. The first error latches and
// subsequent calls are no-ops, so call sites can pack a whole structure
// and check Err once.
type Packer struct {
	Bytes []byte
	Err   error
}

// NewPacker returns a packer with the given capacity hint.
func NewPacker(size int) *Packer {
	return &Packer{Bytes: make([]byte, 0, size)}
}

// PackByte appends a single byte.
func (p *Packer) PackByte(b byte) {
	if p.Err != nil {
		return
	}
	p.Bytes = append(p.Bytes, b)
}

// PackUint32 appends a big-endian uint32.
func (p *Packer) PackUint32(v uint32) {
	if p.Err != nil {
		return
	}
	p.Bytes = binary.BigEndian.AppendUint32(p.Bytes, v)
}

// PackUint64 appends a big-endian uint64.
func (p *Packer) PackUint64(v uint64) {
	if p.Err != nil {
		return
	}
	p.Bytes = binary.BigEndian.AppendUint64(p.Bytes, v)
}

// PackInt64 appends a big-endian int64 (two's complement).
func (p *Packer) PackInt64(v int64) {
	p.PackUint64(uint64(v))
}

// PackFixedBytes appends bytes without a length prefix. The decoder
// must know the width.
func (p *Packer) PackFixedBytes(b []byte) {
	if p.Err != nil {
		return
	}
	p.Bytes = append(p.Bytes, b...)
}

// PackBytes appends a u32 length prefix followed by the bytes.
func (p *Packer) PackBytes(b []byte) {
	p.PackUint32(uint32(len(b)))
	p.PackFixedBytes(b)
}

// PackHash appends a full 64-byte hash.
func (p *Packer) PackHash(h Hash) {
	p.PackFixedBytes(h[:])
}

// PackHashes appends a u32 count followed by the hashes.
func (p *Packer) PackHashes(hs []Hash) {
	p.PackUint32(uint32(len(hs)))
	for _, h := range hs {
		p.PackHash(h)
	}
}

// PackBool appends a bool as one byte.
func (p *Packer) PackBool(b bool) {
	if b {
		p.PackByte(1)
	} else {
		p.PackByte(0)
	}
}

// Unpacker decodes a canonical encoding. Errors latch like the packer;
// Done must be called to reject trailing bytes.
type Unpacker struct {
	Bytes  []byte
	Offset int
	Err    error
}

// NewUnpacker returns an unpacker over the given encoding.
func NewUnpacker(bytes []byte) *Unpacker {
	return &Unpacker{Bytes: bytes}
}

func (u *Unpacker) checkSpace(n int) bool {
	if u.Err != nil {
		return false
	}
	if len(u.Bytes)-u.Offset < n {
		u.Err = ErrShortInput
		return false
	}
	return true
}

// UnpackByte reads a single byte.
func (u *Unpacker) UnpackByte() byte {
	if !u.checkSpace(1) {
		return 0
	}
	b := u.Bytes[u.Offset]
	u.Offset++
	return b
}

// UnpackUint32 reads a big-endian uint32.
func (u *Unpacker) UnpackUint32() uint32 {
	if !u.checkSpace(4) {
		return 0
	}
	v := binary.BigEndian.Uint32(u.Bytes[u.Offset:])
	u.Offset += 4
	return v
}

// UnpackUint64 reads a big-endian uint64.
func (u *Unpacker) UnpackUint64() uint64 {
	if !u.checkSpace(8) {
		return 0
	}
	v := binary.BigEndian.Uint64(u.Bytes[u.Offset:])
	u.Offset += 8
	return v
}

// UnpackInt64 reads a big-endian int64.
func (u *Unpacker) UnpackInt64() int64 {
	return int64(u.UnpackUint64())
}

// UnpackFixedBytes reads exactly n bytes.
func (u *Unpacker) UnpackFixedBytes(n int) []byte {
	if n < 0 {
		u.Err = fmt.Errorf("%w: negative width", ErrShortInput)
		return nil
	}
	if !u.checkSpace(n) {
		return nil
	}
	b := make([]byte, n)
	copy(b, u.Bytes[u.Offset:])
	u.Offset += n
	return b
}

// UnpackBytes reads a u32 length prefix and then that many bytes,
// bounded by maxLen to stop hostile prefixes from allocating.
func (u *Unpacker) UnpackBytes(maxLen uint32) []byte {
	n := u.UnpackUint32()
	if u.Err != nil {
		return nil
	}
	if n > maxLen {
		u.Err = fmt.Errorf("%w: %d > %d", ErrOversized, n, maxLen)
		return nil
	}
	return u.UnpackFixedBytes(int(n))
}

// UnpackHash reads a full 64-byte hash.
func (u *Unpacker) UnpackHash() Hash {
	var h Hash
	if !u.checkSpace(HashLen) {
		return h
	}
	copy(h[:], u.Bytes[u.Offset:])
	u.Offset += HashLen
	return h
}

// UnpackHashes reads a u32 count followed by that many hashes.
func (u *Unpacker) UnpackHashes(maxLen uint32) []Hash {
	n := u.UnpackUint32()
	if u.Err != nil {
		return nil
	}
	if n > maxLen {
		u.Err = fmt.Errorf("%w: %d > %d", ErrOversized, n, maxLen)
		return nil
	}
	hs := make([]Hash, n)
	for i := range hs {
		hs[i] = u.UnpackHash()
	}
	return hs
}

// UnpackBool reads one byte as a bool, rejecting values other than 0/1.
func (u *Unpacker) UnpackBool() bool {
	b := u.UnpackByte()
	if u.Err == nil && b > 1 {
		u.Err = fmt.Errorf("canonical: invalid bool byte %d", b)
	}
	return b == 1
}

// Done returns the latched error, or ErrTrailingBytes if input remains.
func (u *Unpacker) Done() error {
	if u.Err != nil {
		return u.Err
	}
	if u.Offset != len(u.Bytes) {
		return ErrTrailingBytes
	}
	return nil
}
