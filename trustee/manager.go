// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package trustee

import (
	"fmt"
	"io"

	"github.com/luxfi/braid/artifact"
	"github.com/luxfi/braid/canonical"
	"github.com/luxfi/braid/crypto/elgamal"
	"github.com/luxfi/braid/crypto/group"
	"github.com/luxfi/braid/crypto/sign"
	"github.com/luxfi/braid/statement"
)

// ProtocolManager is the privileged identity that bootstraps the
// configuration and publishes ballot batches. It never holds a key
// share.
type ProtocolManager struct {
	name       string
	signingKey sign.SigningKey
	ctx        group.Ctx
	now        func() int64
}

// NewProtocolManager returns a manager for one session.
func NewProtocolManager(ctx group.Ctx, name string, key sign.SigningKey, now func() int64) *ProtocolManager {
	return &ProtocolManager{name: name, signingKey: key, ctx: ctx, now: now}
}

// Name implements statement.Signer.
func (pm *ProtocolManager) Name() string { return pm.name }

// SigningKey implements statement.Signer.
func (pm *ProtocolManager) SigningKey() sign.SigningKey { return pm.signingKey }

// PublicKey returns the manager's signing identity.
func (pm *ProtocolManager) PublicKey() sign.PublicKey { return pm.signingKey.Public() }

// BootstrapMessage builds the signed configuration message that opens
// a session.
func (pm *ProtocolManager) BootstrapMessage(cfg *artifact.Configuration) (statement.Message, error) {
	if err := cfg.Valid(); err != nil {
		return statement.Message{}, err
	}
	bytes, err := cfg.Encode()
	if err != nil {
		return statement.Message{}, err
	}
	st := statement.Configuration(pm.now(), canonical.Sum(bytes))
	return statement.Sign(pm, st, bytes)
}

// BallotsMessage builds a signed ballot batch for the selected
// trustees.
func (pm *ProtocolManager) BallotsMessage(
	cfgHash canonical.Hash,
	batch uint32,
	ciphertexts []elgamal.Ciphertext,
	pkHash canonical.Hash,
	trustees artifact.TrusteeSet,
) (statement.Message, error) {
	ballots := &artifact.Ballots{
		Batch:         batch,
		PublicKeyHash: pkHash,
		Trustees:      trustees,
		Ciphertexts:   ciphertexts,
	}
	bytes, err := ballots.Encode()
	if err != nil {
		return statement.Message{}, err
	}
	st := statement.Ballots(pm.now(), cfgHash, batch, canonical.Sum(bytes), pkHash, trustees)
	return statement.Sign(pm, st, bytes)
}

// EncryptBallots encodes each plaintext and encrypts it under the
// joint public key, the way a ballot submission surface would.
func EncryptBallots(ctx group.Ctx, y group.Element, plaintexts [][]byte, rand io.Reader) ([]elgamal.Ciphertext, error) {
	out := make([]elgamal.Ciphertext, len(plaintexts))
	for i, pt := range plaintexts {
		m, err := ctx.EncodePlaintext(pt)
		if err != nil {
			return nil, fmt.Errorf("ballot %d: %w", i, err)
		}
		ct, _, err := elgamal.Encrypt(ctx, y, m, rand)
		if err != nil {
			return nil, err
		}
		out[i] = ct
	}
	return out, nil
}
