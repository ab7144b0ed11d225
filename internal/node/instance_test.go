// Copyright 2025 The Meridian Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

package node

import (
	"context"
	"net"
	"path/filepath"
	"testing"

	"github.com/meridianledger/meridian/config"
	"github.com/meridianledger/meridian/pkg/errors"
	"github.com/stretchr/testify/require"
)

// loopback rewires a config to ephemeral loopback ports so instances do not
// collide.
func loopback(cfg *config.Config) {
	cfg.P2P.Listen = []string{"/ip4/127.0.0.1/tcp/0"}
	cfg.P2P.SecondaryListen = []string{"/ip4/127.0.0.1/tcp/0"}
	cfg.API.Listen = []string{"127.0.0.1:0", "127.0.0.1:0"}
	cfg.Instrumentation.Listen = "127.0.0.1:0"
	cfg.Backup.Listen = "127.0.0.1:0"
}

func TestInstanceStartStop(t *testing.T) {
	f := mkfixture(t, "devnet")
	loopback(f.cfg)

	// Load the config from disk with a relative data directory, as a real
	// deployment does. The first boot must create the directory itself.
	dir := filepath.Dir(f.cfg.Genesis)
	f.cfg.DataDir = "data"
	file := filepath.Join(dir, "meridian.toml")
	require.NoError(t, f.cfg.SaveTo(file))

	cfg, err := config.Load(file)
	require.NoError(t, err)
	require.NoDirExists(t, filepath.Join(dir, "data"))

	inst, err := Start(context.Background(), cfg)
	require.NoError(t, err)
	require.DirExists(t, filepath.Join(dir, "data"))
	require.Equal(t, f.genesis.Hash(), inst.Ledger().Info().GenesisHash)
	inst.Stop()

	// A restart against the same data directory resumes from persisted state
	inst, err = Start(context.Background(), cfg)
	require.NoError(t, err)
	require.Equal(t, f.genesis.Hash(), inst.Ledger().Info().GenesisHash)
	inst.Stop()
}

func TestStartFailureTearsDown(t *testing.T) {
	f := mkfixture(t, "devnet")
	loopback(f.cfg)

	// Occupy the API port so startup cannot complete
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer func() { _ = l.Close() }()
	f.cfg.API.Listen = []string{l.Addr().String()}

	inst, err := Start(context.Background(), f.cfg)
	require.Error(t, err)

	// Everything started before the failure is shut down
	select {
	case <-inst.Done():
	default:
		t.Fatal("instance is still running")
	}
}

func TestBackupNeedsBackupableStorage(t *testing.T) {
	// A backup listener over memory storage would be a declared port that
	// never binds
	f := mkfixture(t, "devnet")
	loopback(f.cfg)
	f.cfg.Storage = &config.Storage{Type: "memory"}

	_, err := Start(context.Background(), f.cfg)
	require.True(t, errors.Is(err, errors.Conflict))
}
