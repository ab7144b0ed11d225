// Copyright 2025 The Meridian Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

package protocol

import (
	"crypto/ed25519"
	"crypto/rand"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func genKey(t *testing.T) ed25519.PrivateKey {
	t.Helper()
	_, sk, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return sk
}

func testGenesis(t *testing.T, chain ChainID, keys ...ed25519.PrivateKey) *GenesisDoc {
	t.Helper()
	g := &GenesisDoc{
		ChainID:     chain,
		GenesisTime: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	for i, key := range keys {
		pub := PublicKey(key.Public().(ed25519.PublicKey))
		addr := AddressForKey(key.Public().(ed25519.PublicKey))
		g.Validators = append(g.Validators, GenesisValidator{
			Name:         "validator-" + string(rune('a'+i)),
			ConsensusKey: pub,
			NetworkKey:   pub,
			Address:      addr,
		})
		g.Accounts = append(g.Accounts, GenesisAccount{Address: addr, Balance: 1e9})
	}
	return g
}

func TestGenesisBlob(t *testing.T) {
	g := testGenesis(t, Devnet, genKey(t), genKey(t))

	// The blob round-trips and the hash is stable
	b, err := g.MarshalBlob()
	require.NoError(t, err)
	h, err := UnmarshalBlob(b)
	require.NoError(t, err)
	require.Equal(t, g.Hash(), h.Hash())
	require.Equal(t, g.ChainID, h.ChainID)
	require.Len(t, h.Validators, 2)

	// A different validator set has a different hash
	i := testGenesis(t, Devnet, genKey(t))
	require.NotEqual(t, g.Hash(), i.Hash())
}

func TestGenesisValidate(t *testing.T) {
	t.Run("Ok", func(t *testing.T) {
		g := testGenesis(t, Devnet, genKey(t))
		require.NoError(t, g.Validate())
	})

	t.Run("No validators", func(t *testing.T) {
		g := testGenesis(t, Devnet)
		require.Error(t, g.Validate())
	})

	t.Run("No chain", func(t *testing.T) {
		g := testGenesis(t, 0, genKey(t))
		require.Error(t, g.Validate())
	})

	t.Run("Duplicate keys", func(t *testing.T) {
		key := genKey(t)
		g := testGenesis(t, Devnet, key, key)
		require.Error(t, g.Validate())
	})
}

func TestGenesisFile(t *testing.T) {
	g := testGenesis(t, Testnet, genKey(t))
	path := filepath.Join(t.TempDir(), "genesis.blob")

	require.NoError(t, StoreGenesis(g, path))
	h, err := LoadGenesis(path)
	require.NoError(t, err)
	require.Equal(t, g.Hash(), h.Hash())

	// A missing blob is an error, not an empty document
	_, err = LoadGenesis(filepath.Join(t.TempDir(), "missing.blob"))
	require.Error(t, err)
}

func TestHasValidator(t *testing.T) {
	key, other := genKey(t), genKey(t)
	g := testGenesis(t, Devnet, key)

	require.True(t, g.HasValidator(PublicKey(key.Public().(ed25519.PublicKey))))
	require.False(t, g.HasValidator(PublicKey(other.Public().(ed25519.PublicKey))))
}
