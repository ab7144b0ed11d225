// Copyright 2025 The Meridian Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

package protocol

import (
	"crypto/ed25519"
	"os"
	"path/filepath"
	"testing"

	cmted25519 "github.com/cometbft/cometbft/crypto/ed25519"
	cmtjson "github.com/cometbft/cometbft/libs/json"
	"github.com/cometbft/cometbft/privval"
	"github.com/stretchr/testify/require"
)

func TestIdentityFile(t *testing.T) {
	id := NewNodeIdentity(genKey(t), genKey(t))
	path := filepath.Join(t.TempDir(), "identity.json")

	require.NoError(t, StoreIdentity(id, path))
	loaded, err := LoadIdentity(path)
	require.NoError(t, err)
	require.Equal(t, id, loaded)

	// Identity files are secrets
	st, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0600), st.Mode().Perm())
}

func TestIdentityCometBFT(t *testing.T) {
	// A CometBFT priv_validator_key.json is accepted as an identity
	sk := cmted25519.GenPrivKey()
	pvKey := privval.FilePVKey{
		Address: sk.PubKey().Address(),
		PubKey:  sk.PubKey(),
		PrivKey: sk,
	}
	b, err := cmtjson.MarshalIndent(pvKey, "", "  ")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "priv_validator_key.json")
	require.NoError(t, os.WriteFile(path, b, 0600))

	id, err := LoadIdentity(path)
	require.NoError(t, err)
	require.NoError(t, id.Validate())
	require.Equal(t, PrivateKey(sk), id.ConsensusKey)

	// The derived network key must not be the consensus key
	require.NotEqual(t, id.ConsensusKey, id.NetworkKey)
}

func TestIdentityValidate(t *testing.T) {
	id := NewNodeIdentity(genKey(t), genKey(t))
	require.NoError(t, id.Validate())

	// An account that does not match the consensus key is rejected
	id.Account = AddressForKey(genKey(t).Public().(ed25519.PublicKey))
	require.Error(t, id.Validate())
}

func TestIdentityVerifyAgainstGenesis(t *testing.T) {
	consensus := genKey(t)
	g := testGenesis(t, Devnet, consensus)

	id := NewNodeIdentity(consensus, genKey(t))
	require.NoError(t, id.VerifyAgainstGenesis(g))

	// An identity outside the validator set is rejected
	other := NewNodeIdentity(genKey(t), genKey(t))
	require.Error(t, other.VerifyAgainstGenesis(g))
}
