// Copyright 2025 The Meridian Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

package node

import (
	"path/filepath"

	"github.com/meridianledger/meridian/config"
	"github.com/meridianledger/meridian/internal/ledger"
	"github.com/meridianledger/meridian/pkg/database/keyvalue"
	"github.com/meridianledger/meridian/pkg/errors"
	"github.com/meridianledger/meridian/protocol"
)

// Inputs is the verified set of mounted inputs.
type Inputs struct {
	ChainID     protocol.ChainID
	Genesis     *protocol.GenesisDoc
	GenesisHash [32]byte
	Waypoint    protocol.Waypoint
	Identity    *protocol.NodeIdentity
}

// VerifyInputs loads the genesis blob, waypoint, and identity named by the
// configuration and verifies they are present and mutually consistent.
// Relative paths are resolved against the configuration file's directory.
func VerifyInputs(cfg *config.Config) (*Inputs, error) {
	chain, err := cfg.ChainID()
	if err != nil {
		return nil, err
	}

	resolve := func(path string) string {
		if filepath.IsAbs(path) || cfg.FilePath() == "" {
			return path
		}
		return filepath.Join(filepath.Dir(cfg.FilePath()), path)
	}

	genesis, err := protocol.LoadGenesis(resolve(cfg.Genesis))
	if err != nil {
		return nil, errors.FatalError.WithFormat("genesis: %w", err)
	}
	err = genesis.Validate()
	if err != nil {
		return nil, errors.FatalError.WithFormat("genesis: %w", err)
	}
	if genesis.ChainID != chain {
		return nil, errors.FatalError.WithFormat("genesis is for %v, the node is configured for %v", genesis.ChainID, chain)
	}

	waypoint, err := protocol.LoadWaypoint(resolve(cfg.Waypoint))
	if err != nil {
		return nil, errors.FatalError.WithFormat("waypoint: %w", err)
	}
	err = waypoint.VerifyGenesis(genesis)
	if err != nil {
		return nil, errors.FatalError.WithFormat("waypoint: %w", err)
	}

	identity, err := protocol.LoadIdentity(resolve(cfg.Identity))
	if err != nil {
		return nil, errors.FatalError.WithFormat("identity: %w", err)
	}
	err = identity.Validate()
	if err != nil {
		return nil, errors.FatalError.WithFormat("identity: %w", err)
	}
	err = identity.VerifyAgainstGenesis(genesis)
	if err != nil {
		return nil, errors.FatalError.WithFormat("identity: %w", err)
	}

	return &Inputs{
		ChainID:     chain,
		Genesis:     genesis,
		GenesisHash: genesis.Hash(),
		Waypoint:    waypoint,
		Identity:    identity,
	}, nil
}

// openLedger opens or bootstraps the ledger. A data directory bootstrapped
// from a different genesis blob is refused.
func openLedger(store keyvalue.Store, inputs *Inputs) (*ledger.Ledger, error) {
	ok, err := ledger.IsBootstrapped(store)
	if err != nil {
		return nil, errors.UnknownError.WithFormat("open ledger: %w", err)
	}

	if !ok {
		l, err := ledger.Bootstrap(store, inputs.Genesis)
		if err != nil {
			return nil, errors.UnknownError.WithFormat("bootstrap ledger: %w", err)
		}
		return l, nil
	}

	l, err := ledger.Open(store)
	if err != nil {
		return nil, errors.UnknownError.WithFormat("open ledger: %w", err)
	}

	record := l.Info()
	if record.ChainID != inputs.ChainID {
		return nil, errors.FatalError.WithFormat("data directory belongs to %v, the node is configured for %v", record.ChainID, inputs.ChainID)
	}
	if record.GenesisHash != inputs.GenesisHash {
		return nil, errors.FatalError.With("data directory was bootstrapped from a different genesis blob")
	}
	return l, nil
}
