// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package board

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/braid/artifact"
	"github.com/luxfi/braid/canonical"
	"github.com/luxfi/braid/crypto/group/ristretto"
	"github.com/luxfi/braid/crypto/sign"
	"github.com/luxfi/braid/statement"
)

func testConfigMessage(t *testing.T) (*statement.Verified, canonical.Hash) {
	t.Helper()
	require := require.New(t)

	pmKey, err := sign.GenerateKey(rand.Reader)
	require.NoError(err)
	cfg := &artifact.Configuration{
		Timestamp:       1,
		ProtocolManager: pmKey.Public(),
		Threshold:       2,
		Group:           "ristretto255",
	}
	for i := 0; i < 2; i++ {
		k, err := sign.GenerateKey(rand.Reader)
		require.NoError(err)
		cfg.Trustees = append(cfg.Trustees, k.Public())
	}
	bytes, err := cfg.Encode()
	require.NoError(err)
	hash := canonical.Sum(bytes)

	return &statement.Verified{
		SignerPosition: artifact.ProtocolManagerIndex,
		Statement:      statement.Configuration(1, hash),
		Artifact:       bytes,
	}, hash
}

func TestBootstrapInstall(t *testing.T) {
	require := require.New(t)
	l := NewLocal(ristretto.New())

	require.False(l.HasConfiguration())
	v, hash := testConfigMessage(t)
	require.NoError(l.Add(v))
	require.True(l.HasConfiguration())

	cfg, gotHash, ok := l.Configuration()
	require.True(ok)
	require.Equal(hash, gotHash)
	require.Equal(2, cfg.TrusteeCount())

	// Identical repost is a no-op.
	require.NoError(l.Add(v))

	// A different configuration is an overwrite attempt.
	v2, _ := testConfigMessage(t)
	require.ErrorIs(l.Add(v2), ErrOverwriteAttempt)
}

func TestGetConfigurationHashChecked(t *testing.T) {
	require := require.New(t)
	l := NewLocal(ristretto.New())

	v, hash := testConfigMessage(t)
	require.NoError(l.Add(v))

	_, err := l.GetConfiguration(hash)
	require.NoError(err)
	_, err = l.GetConfiguration(canonical.Sum([]byte("wrong")))
	require.ErrorIs(err, ErrMismatchedArtifactHash)
}

func TestStatementDuplicateAndOverwrite(t *testing.T) {
	require := require.New(t)
	l := NewLocal(ristretto.New())
	v, hash := testConfigMessage(t)
	require.NoError(l.Add(v))

	signed := &statement.Verified{
		SignerPosition: 1,
		Statement:      statement.ConfigurationSigned(10, hash),
	}
	require.NoError(l.Add(signed))
	require.Equal(1, l.Len())

	// Identical statement: no-op.
	require.NoError(l.Add(signed))
	require.Equal(1, l.Len())

	// Same key, different content: overwrite attempt.
	conflicting := &statement.Verified{
		SignerPosition: 1,
		Statement:      statement.ConfigurationSigned(11, hash),
	}
	require.ErrorIs(l.Add(conflicting), ErrOverwriteAttempt)
	require.Equal(1, l.Len())

	// Same statement, different signer: distinct key.
	other := &statement.Verified{
		SignerPosition: 2,
		Statement:      statement.ConfigurationSigned(10, hash),
	}
	require.NoError(l.Add(other))
	require.Equal(2, l.Len())
}

func TestMixSignedKeyedByMixNumber(t *testing.T) {
	require := require.New(t)
	l := NewLocal(ristretto.New())
	v, hash := testConfigMessage(t)
	require.NoError(l.Add(v))

	src := canonical.Sum([]byte("src"))
	mix1 := canonical.Sum([]byte("mix1"))
	mix2 := canonical.Sum([]byte("mix2"))

	// One trustee signs two different mixes of the same batch; the
	// mix-number coordinate keeps the keys distinct.
	require.NoError(l.Add(&statement.Verified{
		SignerPosition: 1,
		Statement:      statement.MixSigned(1, hash, 0, 1, src, mix1),
	}))
	require.NoError(l.Add(&statement.Verified{
		SignerPosition: 1,
		Statement:      statement.MixSigned(1, hash, 0, 2, mix1, mix2),
	}))
	require.Equal(2, l.Len())
}

func TestArtifactHashCheckedAccess(t *testing.T) {
	require := require.New(t)
	ctx := ristretto.New()
	l := NewLocal(ctx)
	v, cfgHash := testConfigMessage(t)
	require.NoError(l.Add(v))

	ch := &artifact.Channel{Element: ctx.Generator(), EncryptedSK: []byte("enc")}
	bytes, err := ch.Encode()
	require.NoError(err)
	chHash := canonical.Sum(bytes)

	require.NoError(l.Add(&statement.Verified{
		SignerPosition: 1,
		Statement:      statement.Channel(1, cfgHash, chHash),
		Artifact:       bytes,
	}))

	got, err := l.GetChannel(chHash, 1)
	require.NoError(err)
	require.True(ch.Element.Equal(got.Element))

	// Wrong hash.
	_, err = l.GetChannel(canonical.Sum([]byte("nope")), 1)
	require.ErrorIs(err, ErrMismatchedArtifactHash)

	// Wrong signer.
	_, err = l.GetChannel(chHash, 2)
	require.ErrorIs(err, ErrMissingArtifact)
}

func TestCloneIsolation(t *testing.T) {
	require := require.New(t)
	l := NewLocal(ristretto.New())
	v, hash := testConfigMessage(t)
	require.NoError(l.Add(v))

	clone := l.Clone()
	require.NoError(clone.Add(&statement.Verified{
		SignerPosition: 1,
		Statement:      statement.ConfigurationSigned(1, hash),
	}))
	require.Equal(1, clone.Len())
	require.Equal(0, l.Len())
}
