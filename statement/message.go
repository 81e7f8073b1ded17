// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package statement

import (
	"errors"
	"fmt"

	"github.com/luxfi/braid/artifact"
	"github.com/luxfi/braid/canonical"
	"github.com/luxfi/braid/crypto/sign"
)

var (
	// ErrNotConfiguredSigner marks a sender absent from the
	// configuration.
	ErrNotConfiguredSigner = errors.New("statement: sender not in configuration")
	// ErrWrongConfiguration marks a statement bound to a different
	// configuration hash.
	ErrWrongConfiguration = errors.New("statement: mismatched configuration hash")
	// ErrArtifactHashMismatch marks artifact bytes that do not hash to
	// the statement's declaration.
	ErrArtifactHashMismatch = errors.New("statement: artifact hash mismatch")
	// ErrMissingArtifact marks a message whose kind owns an artifact
	// but carries none.
	ErrMissingArtifact = errors.New("statement: missing artifact")
	// ErrNotProtocolManager marks a PM-only statement signed by a
	// trustee.
	ErrNotProtocolManager = errors.New("statement: must be signed by protocol manager")
)

// Sender identifies the author of a message.
type Sender struct {
	Name      string
	PublicKey sign.PublicKey
}

// Message is a signed statement with optional artifact bytes. The
// signature covers the statement bytes only; the artifact is separately
// hash-checked against the statement's declaration.
type Message struct {
	Sender    Sender
	Signature sign.Signature
	Statement Statement
	Artifact  []byte
}

// Signer is the common signing surface of trustees and the protocol
// manager.
type Signer interface {
	Name() string
	SigningKey() sign.SigningKey
}

// Sign builds and signs a message over the statement bytes.
func Sign(s Signer, st Statement, artifactBytes []byte) (Message, error) {
	bytes, err := st.Encode()
	if err != nil {
		return Message{}, err
	}
	key := s.SigningKey()
	return Message{
		Sender:    Sender{Name: s.Name(), PublicKey: key.Public()},
		Signature: key.Sign(bytes),
		Statement: st,
		Artifact:  artifactBytes,
	}, nil
}

// Verified is a message that passed verification, annotated with the
// sender's position in the configuration.
type Verified struct {
	SignerPosition int
	Statement      Statement
	Artifact       []byte
}

// Verify authenticates the message against the installed configuration:
// the sender must appear in it, the signature must cover the statement
// bytes, the statement must bind to cfgHash, PM-only kinds must be
// signed by the protocol manager, and artifact bytes must hash to the
// statement's declaration.
func (m *Message) Verify(cfg *artifact.Configuration, cfgHash canonical.Hash) (*Verified, error) {
	st := &m.Statement
	if int(st.MixNumber) > cfg.TrusteeCount() {
		return nil, fmt.Errorf("statement: mix number %d out of range", st.MixNumber)
	}

	position, ok := cfg.TrusteePosition(m.Sender.PublicKey)
	if !ok {
		return nil, ErrNotConfiguredSigner
	}

	bytes, err := st.Encode()
	if err != nil {
		return nil, err
	}
	if err := m.Sender.PublicKey.Verify(bytes, m.Signature); err != nil {
		return nil, err
	}

	if st.CfgHash != cfgHash {
		return nil, ErrWrongConfiguration
	}

	if st.Kind == KindConfiguration || st.Kind == KindBallots {
		if position != artifact.ProtocolManagerIndex {
			return nil, fmt.Errorf("%w: %s", ErrNotProtocolManager, st.Kind)
		}
	}

	if !st.Kind.OwnsArtifact() {
		if m.Artifact != nil {
			return nil, fmt.Errorf("statement: unexpected artifact for %s", st.Kind)
		}
		return &Verified{SignerPosition: position, Statement: m.Statement}, nil
	}

	if m.Artifact == nil {
		return nil, fmt.Errorf("%w: %s", ErrMissingArtifact, st.Kind)
	}
	if canonical.Sum(m.Artifact) != st.ArtifactHash {
		return nil, fmt.Errorf("%w: %s", ErrArtifactHashMismatch, st.Kind)
	}
	return &Verified{SignerPosition: position, Statement: m.Statement, Artifact: m.Artifact}, nil
}

// Encode returns the deterministic wire form of the message.
func (m *Message) Encode() ([]byte, error) {
	stBytes, err := m.Statement.Encode()
	if err != nil {
		return nil, err
	}
	derB64, err := m.Sender.PublicKey.DERBase64()
	if err != nil {
		return nil, err
	}
	p := canonical.NewPacker(256 + len(stBytes) + len(m.Artifact))
	p.PackBytes([]byte(m.Sender.Name))
	p.PackBytes([]byte(derB64))
	p.PackFixedBytes(m.Signature[:])
	p.PackBytes(stBytes)
	p.PackBool(m.Artifact != nil)
	if m.Artifact != nil {
		p.PackBytes(m.Artifact)
	}
	return p.Bytes, p.Err
}

// ParseMessage decodes the wire form.
func ParseMessage(b []byte) (*Message, error) {
	u := canonical.NewUnpacker(b)
	m := &Message{}
	m.Sender.Name = string(u.UnpackBytes(256))
	derB64 := string(u.UnpackBytes(1024))
	copy(m.Signature[:], u.UnpackFixedBytes(sign.SignatureLen))
	stBytes := u.UnpackBytes(1 << 16)
	hasArtifact := u.UnpackBool()
	if hasArtifact {
		m.Artifact = u.UnpackBytes(1 << 30)
	}
	if err := u.Done(); err != nil {
		return nil, err
	}
	pk, err := sign.ParseDERBase64(derB64)
	if err != nil {
		return nil, err
	}
	m.Sender.PublicKey = pk
	st, err := Parse(stBytes)
	if err != nil {
		return nil, err
	}
	m.Statement = *st
	return m, nil
}

// Hash returns the hash of the wire form, used by boards to de-dup.
func (m *Message) Hash() (canonical.Hash, error) {
	b, err := m.Encode()
	if err != nil {
		return canonical.Hash{}, err
	}
	return canonical.Sum(b), nil
}
