// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package predicate

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/braid/artifact"
	"github.com/luxfi/braid/canonical"
	"github.com/luxfi/braid/crypto/sign"
	"github.com/luxfi/braid/statement"
)

func testConfig(t *testing.T, n int) (*artifact.Configuration, canonical.Hash) {
	t.Helper()
	require := require.New(t)

	pm, err := sign.GenerateKey(rand.Reader)
	require.NoError(err)
	cfg := &artifact.Configuration{
		Timestamp:       1,
		ProtocolManager: pm.Public(),
		Threshold:       2,
		Group:           "ristretto255",
	}
	for i := 0; i < n; i++ {
		k, err := sign.GenerateKey(rand.Reader)
		require.NoError(err)
		cfg.Trustees = append(cfg.Trustees, k.Public())
	}
	bytes, err := cfg.Encode()
	require.NoError(err)
	return cfg, canonical.Sum(bytes)
}

func TestBootstrap(t *testing.T) {
	require := require.New(t)
	cfg, cfgH := testConfig(t, 3)

	p, err := Bootstrap(cfg, cfgH, cfg.Trustees[1])
	require.NoError(err)
	require.Equal(Configuration, p.Kind)
	require.Equal(2, p.Position)
	require.Equal(3, p.Count)
	require.Equal(2, p.Threshold)
	require.Equal(cfgH, p.Cfg)

	// The protocol manager is not a trustee.
	_, err = Bootstrap(cfg, cfgH, cfg.ProtocolManager)
	require.ErrorIs(err, ErrNotInConfiguration)

	// Unknown identity.
	stranger, err := sign.GenerateKey(rand.Reader)
	require.NoError(err)
	_, err = Bootstrap(cfg, cfgH, stranger.Public())
	require.ErrorIs(err, ErrNotInConfiguration)
}

func TestVerifierBootstrap(t *testing.T) {
	require := require.New(t)
	cfg, cfgH := testConfig(t, 3)

	p := VerifierBootstrap(cfg, cfgH)
	require.Equal(artifact.VerifierIndex, p.Position)
	require.Equal(3, p.Count)
}

func TestFromStatementMix(t *testing.T) {
	require := require.New(t)
	cfg, cfgH := testConfig(t, 3)

	src := canonical.Sum([]byte("src"))
	mix := canonical.Sum([]byte("mix"))
	st := statement.Mix(5, cfgH, 7, 2, src, mix)

	p, err := FromStatement(&st, 3, cfg)
	require.NoError(err)
	require.Equal(Mix, p.Kind)
	require.Equal(uint32(7), p.Batch)
	require.Equal(uint32(2), p.MixNumber)
	require.Equal(src, p.SourceHash)
	require.Equal(mix, p.Hash)
	require.Equal(3, p.Position)
}

func TestFromStatementBallotsValidatesTrusteeSet(t *testing.T) {
	require := require.New(t)
	cfg, cfgH := testConfig(t, 3)

	good := statement.Ballots(1, cfgH, 0, canonical.Sum([]byte("b")), canonical.Sum([]byte("pk")), artifact.NewTrusteeSet(1, 3))
	p, err := FromStatement(&good, artifact.ProtocolManagerIndex, cfg)
	require.NoError(err)
	require.Equal(Ballots, p.Kind)
	require.Equal(artifact.NewTrusteeSet(1, 3), p.Trustees)

	// Out-of-range index: typed error, never a panic.
	bad := statement.Ballots(1, cfgH, 0, canonical.Sum([]byte("b")), canonical.Sum([]byte("pk")), artifact.NewTrusteeSet(1, 4))
	_, err = FromStatement(&bad, artifact.ProtocolManagerIndex, cfg)
	require.ErrorIs(err, artifact.ErrInvalidTrusteeSet)

	// Wrong cardinality.
	bad = statement.Ballots(1, cfgH, 0, canonical.Sum([]byte("b")), canonical.Sum([]byte("pk")), artifact.NewTrusteeSet(1, 2, 3))
	_, err = FromStatement(&bad, artifact.ProtocolManagerIndex, cfg)
	require.ErrorIs(err, artifact.ErrInvalidTrusteeSet)
}

func TestFromStatementConfigurationImpossible(t *testing.T) {
	require := require.New(t)
	cfg, cfgH := testConfig(t, 2)

	st := statement.Configuration(1, cfgH)
	_, err := FromStatement(&st, artifact.ProtocolManagerIndex, cfg)
	require.ErrorIs(err, ErrImpossibleStatement)
}

func TestPredicatesAreValues(t *testing.T) {
	require := require.New(t)
	cfg, cfgH := testConfig(t, 2)

	st := statement.ConfigurationSigned(9, cfgH)
	a, err := FromStatement(&st, 1, cfg)
	require.NoError(err)
	// A second derivation with a different timestamp yields the same
	// predicate: timestamps are not facts.
	st2 := statement.ConfigurationSigned(10, cfgH)
	b, err := FromStatement(&st2, 1, cfg)
	require.NoError(err)
	require.Equal(a, b)

	// Predicates are usable as map keys.
	m := map[Predicate]bool{a: true}
	require.True(m[b])
}
