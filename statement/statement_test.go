// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package statement

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/braid/artifact"
	"github.com/luxfi/braid/canonical"
	"github.com/luxfi/braid/crypto/sign"
)

type testSigner struct {
	name string
	key  sign.SigningKey
}

func (s *testSigner) Name() string                { return s.name }
func (s *testSigner) SigningKey() sign.SigningKey { return s.key }

func newSigner(t *testing.T, name string) *testSigner {
	t.Helper()
	key, err := sign.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return &testSigner{name: name, key: key}
}

// testSession builds a configuration with a PM and n trustee signers.
func testSession(t *testing.T, n int) (*artifact.Configuration, canonical.Hash, *testSigner, []*testSigner) {
	t.Helper()
	require := require.New(t)

	pm := newSigner(t, "pm")
	cfg := &artifact.Configuration{
		Timestamp:       1700000000,
		ProtocolManager: pm.key.Public(),
		Threshold:       2,
		Group:           "ristretto255",
	}
	trustees := make([]*testSigner, n)
	for i := range trustees {
		trustees[i] = newSigner(t, "t")
		cfg.Trustees = append(cfg.Trustees, trustees[i].key.Public())
	}
	bytes, err := cfg.Encode()
	require.NoError(err)
	return cfg, canonical.Sum(bytes), pm, trustees
}

func TestStatementRoundtripAllKinds(t *testing.T) {
	require := require.New(t)

	cfgH := canonical.Sum([]byte("cfg"))
	h1 := canonical.Sum([]byte("one"))
	h2 := canonical.Sum([]byte("two"))
	hs := []canonical.Hash{h1, h2}
	ts := artifact.NewTrusteeSet(1, 2)

	statements := []Statement{
		Configuration(1, cfgH),
		ConfigurationSigned(2, cfgH),
		Channel(3, cfgH, h1),
		ChannelsAllSigned(4, cfgH, hs),
		Shares(5, cfgH, h1),
		PublicKey(6, cfgH, h1, hs, hs),
		PublicKeySigned(7, cfgH, h1, hs, hs),
		Ballots(8, cfgH, 0, h1, h2, ts),
		Mix(9, cfgH, 0, 1, h1, h2),
		MixSigned(10, cfgH, 0, 1, h1, h2),
		DecryptionFactors(11, cfgH, 0, h1, h2, hs),
		Plaintexts(12, cfgH, 0, h1, hs, h2, h1),
		PlaintextsSigned(13, cfgH, 0, h1, hs, h2, h1),
	}
	for i, st := range statements {
		require.Equal(Kind(i), st.Kind)
		bytes, err := st.Encode()
		require.NoError(err)
		// The wire tag is the first byte.
		require.Equal(byte(i), bytes[0])

		decoded, err := Parse(bytes)
		require.NoError(err)
		require.Equal(&st, decoded, "kind %s", st.Kind)

		_, err = Parse(append(bytes, 0xcc))
		require.ErrorIs(err, canonical.ErrTrailingBytes)
	}
}

func TestMessageSignVerify(t *testing.T) {
	require := require.New(t)
	cfg, cfgH, _, trustees := testSession(t, 2)

	st := ConfigurationSigned(1, cfgH)
	msg, err := Sign(trustees[0], st, nil)
	require.NoError(err)

	verified, err := msg.Verify(cfg, cfgH)
	require.NoError(err)
	require.Equal(1, verified.SignerPosition)
	require.Equal(st, verified.Statement)
}

func TestMessageWireRoundtrip(t *testing.T) {
	require := require.New(t)
	cfg, cfgH, _, trustees := testSession(t, 2)

	st := Channel(1, cfgH, canonical.Sum([]byte("artifact")))
	msg, err := Sign(trustees[1], st, []byte("artifact"))
	require.NoError(err)

	wire, err := msg.Encode()
	require.NoError(err)
	decoded, err := ParseMessage(wire)
	require.NoError(err)
	require.Equal(msg.Sender, decoded.Sender)
	require.Equal(msg.Signature, decoded.Signature)
	require.Equal(msg.Statement, decoded.Statement)
	require.Equal(msg.Artifact, decoded.Artifact)

	verified, err := decoded.Verify(cfg, cfgH)
	require.NoError(err)
	require.Equal(2, verified.SignerPosition)
}

func TestVerifyRejectsUnknownSigner(t *testing.T) {
	require := require.New(t)
	cfg, cfgH, _, _ := testSession(t, 2)

	stranger := newSigner(t, "stranger")
	msg, err := Sign(stranger, ConfigurationSigned(1, cfgH), nil)
	require.NoError(err)
	_, err = msg.Verify(cfg, cfgH)
	require.ErrorIs(err, ErrNotConfiguredSigner)
}

func TestVerifyRejectsTamperedStatement(t *testing.T) {
	require := require.New(t)
	cfg, cfgH, _, trustees := testSession(t, 2)

	msg, err := Sign(trustees[0], ConfigurationSigned(1, cfgH), nil)
	require.NoError(err)
	msg.Statement.Timestamp = 99
	_, err = msg.Verify(cfg, cfgH)
	require.ErrorIs(err, sign.ErrSignatureInvalid)
}

func TestVerifyRejectsWrongConfiguration(t *testing.T) {
	require := require.New(t)
	cfg, cfgH, _, trustees := testSession(t, 2)

	foreign := canonical.Sum([]byte("other config"))
	msg, err := Sign(trustees[0], ConfigurationSigned(1, foreign), nil)
	require.NoError(err)
	_, err = msg.Verify(cfg, cfgH)
	require.ErrorIs(err, ErrWrongConfiguration)
}

func TestVerifyEnforcesProtocolManagerOnly(t *testing.T) {
	require := require.New(t)
	cfg, cfgH, pm, trustees := testSession(t, 2)

	ballots := []byte("ballots artifact")
	st := Ballots(1, cfgH, 0, canonical.Sum(ballots), canonical.Sum([]byte("pk")), artifact.NewTrusteeSet(1, 2))

	// A trustee cannot post ballots.
	msg, err := Sign(trustees[0], st, ballots)
	require.NoError(err)
	_, err = msg.Verify(cfg, cfgH)
	require.ErrorIs(err, ErrNotProtocolManager)

	// The protocol manager can.
	msg, err = Sign(pm, st, ballots)
	require.NoError(err)
	verified, err := msg.Verify(cfg, cfgH)
	require.NoError(err)
	require.Equal(artifact.ProtocolManagerIndex, verified.SignerPosition)
}

func TestVerifyChecksArtifactHash(t *testing.T) {
	require := require.New(t)
	cfg, cfgH, _, trustees := testSession(t, 2)

	st := Channel(1, cfgH, canonical.Sum([]byte("the artifact")))

	// Artifact bytes that do not match the declared hash.
	msg, err := Sign(trustees[0], st, []byte("tampered artifact"))
	require.NoError(err)
	_, err = msg.Verify(cfg, cfgH)
	require.ErrorIs(err, ErrArtifactHashMismatch)

	// Missing artifact for an artifact-owning kind.
	msg, err = Sign(trustees[0], st, nil)
	require.NoError(err)
	_, err = msg.Verify(cfg, cfgH)
	require.ErrorIs(err, ErrMissingArtifact)
}
