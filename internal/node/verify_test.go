// Copyright 2025 The Meridian Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

package node

import (
	"crypto/ed25519"
	"crypto/rand"
	"path/filepath"
	"testing"
	"time"

	"github.com/meridianledger/meridian/config"
	"github.com/meridianledger/meridian/internal/ledger"
	"github.com/meridianledger/meridian/pkg/database/keyvalue/memory"
	"github.com/meridianledger/meridian/pkg/errors"
	"github.com/meridianledger/meridian/protocol"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	cfg      *config.Config
	genesis  *protocol.GenesisDoc
	identity *protocol.NodeIdentity
}

// mkfixture writes a consistent set of inputs to disk.
func mkfixture(t *testing.T, network string) *fixture {
	t.Helper()
	dir := t.TempDir()

	_, consensus, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	_, netKey, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	identity := protocol.NewNodeIdentity(consensus, netKey)

	chain, err := protocol.ParseChainID(network)
	require.NoError(t, err)

	genesis := &protocol.GenesisDoc{
		ChainID:     chain,
		GenesisTime: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Validators: []protocol.GenesisValidator{{
			Name:         "validator",
			ConsensusKey: identity.ConsensusKey.Public(),
			NetworkKey:   identity.NetworkKey.Public(),
			Address:      identity.Account,
		}},
	}

	cfg := config.Default(network)
	cfg.DataDir = filepath.Join(dir, "data")
	cfg.Genesis = filepath.Join(dir, "genesis.blob")
	cfg.Waypoint = filepath.Join(dir, "waypoint.txt")
	cfg.Identity = filepath.Join(dir, "identity.json")

	require.NoError(t, protocol.StoreGenesis(genesis, cfg.Genesis))
	require.NoError(t, protocol.StoreWaypoint(protocol.WaypointForGenesis(genesis), cfg.Waypoint))
	require.NoError(t, protocol.StoreIdentity(identity, cfg.Identity))

	return &fixture{cfg: cfg, genesis: genesis, identity: identity}
}

func TestVerifyInputs(t *testing.T) {
	t.Run("Ok", func(t *testing.T) {
		f := mkfixture(t, "devnet")
		inputs, err := VerifyInputs(f.cfg)
		require.NoError(t, err)
		require.Equal(t, protocol.Devnet, inputs.ChainID)
		require.Equal(t, f.genesis.Hash(), inputs.GenesisHash)
		require.Equal(t, f.identity.Account, inputs.Identity.Account)
	})

	t.Run("Missing genesis", func(t *testing.T) {
		f := mkfixture(t, "devnet")
		f.cfg.Genesis = filepath.Join(t.TempDir(), "missing.blob")
		_, err := VerifyInputs(f.cfg)
		require.Error(t, err)
	})

	t.Run("Missing waypoint", func(t *testing.T) {
		f := mkfixture(t, "devnet")
		f.cfg.Waypoint = filepath.Join(t.TempDir(), "missing.txt")
		_, err := VerifyInputs(f.cfg)
		require.Error(t, err)
	})

	t.Run("Missing identity", func(t *testing.T) {
		f := mkfixture(t, "devnet")
		f.cfg.Identity = filepath.Join(t.TempDir(), "missing.json")
		_, err := VerifyInputs(f.cfg)
		require.Error(t, err)
	})

	t.Run("Wrong network", func(t *testing.T) {
		// The genesis blob names a different chain than the config
		f := mkfixture(t, "devnet")
		f.cfg.Network = "testnet"
		_, err := VerifyInputs(f.cfg)
		require.True(t, errors.Is(err, errors.FatalError))
	})

	t.Run("Waypoint mismatch", func(t *testing.T) {
		// The waypoint belongs to a different genesis blob
		f, g := mkfixture(t, "devnet"), mkfixture(t, "devnet")
		f.cfg.Waypoint = g.cfg.Waypoint
		_, err := VerifyInputs(f.cfg)
		require.True(t, errors.Is(err, errors.FatalError))
	})

	t.Run("Identity mismatch", func(t *testing.T) {
		// The identity is not in the genesis validator set
		f, g := mkfixture(t, "devnet"), mkfixture(t, "devnet")
		f.cfg.Identity = g.cfg.Identity
		_, err := VerifyInputs(f.cfg)
		require.True(t, errors.Is(err, errors.FatalError))
	})
}

func TestOpenLedger(t *testing.T) {
	f := mkfixture(t, "devnet")
	inputs, err := VerifyInputs(f.cfg)
	require.NoError(t, err)

	// A fresh store is bootstrapped, and reopening it is fine
	store := memory.New()
	l, err := openLedger(store, inputs)
	require.NoError(t, err)
	require.Equal(t, inputs.GenesisHash, l.Info().GenesisHash)

	_, err = openLedger(store, inputs)
	require.NoError(t, err)

	// A store bootstrapped from a different genesis blob is refused
	g := mkfixture(t, "devnet")
	other, err := VerifyInputs(g.cfg)
	require.NoError(t, err)

	_, err = openLedger(store, other)
	require.True(t, errors.Is(err, errors.FatalError))

	// A store belonging to a different chain is refused
	h := mkfixture(t, "testing")
	stray, err := VerifyInputs(h.cfg)
	require.NoError(t, err)

	strayStore := memory.New()
	_, err = ledger.Bootstrap(strayStore, stray.Genesis)
	require.NoError(t, err)
	_, err = openLedger(strayStore, inputs)
	require.True(t, errors.Is(err, errors.FatalError))
}
