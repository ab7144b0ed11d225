// Copyright 2025 The Meridian Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

package config

import (
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	"github.com/meridianledger/meridian/protocol"
	"github.com/stretchr/testify/require"
)

func mkfs(files map[string]string) fstest.MapFS {
	fsys := fstest.MapFS{}
	for name, data := range files {
		fsys[name] = &fstest.MapFile{Data: []byte(data)}
	}
	return fsys
}

func TestLoadTOML(t *testing.T) {
	fsys := mkfs(map[string]string{
		"meridian.toml": `
			network = "devnet"
			data-dir = "/opt/meridian/data"

			[api]
			listen = ["0.0.0.0:8000", "0.0.0.0:8080"]
			connection-limit = 500

			[backup]
			schedule = "0 3 * * *"`,
	})

	cfg := new(Config)
	require.NoError(t, cfg.LoadFromFS(fsys, "meridian.toml"))
	require.Equal(t, "devnet", cfg.Network)
	require.Equal(t, "/opt/meridian/data", cfg.DataDir)
	require.Equal(t, []string{"0.0.0.0:8000", "0.0.0.0:8080"}, cfg.API.Listen)
	require.NotNil(t, cfg.API.ConnectionLimit)
	require.Equal(t, 500, *cfg.API.ConnectionLimit)
	require.Equal(t, "0 3 * * *", cfg.Backup.Schedule)
}

func TestLoadYAML(t *testing.T) {
	fsys := mkfs(map[string]string{
		"meridian.yaml": `
network: testnet
genesis: /opt/meridian/etc/genesis.blob
api:
  read-header-timeout: 30s
p2p:
  bootstrap-peers:
    - /dns/seed.example.com/tcp/6180/p2p/QmFoo
`,
	})

	cfg := new(Config)
	require.NoError(t, cfg.LoadFromFS(fsys, "meridian.yaml"))
	require.Equal(t, "testnet", cfg.Network)
	require.Equal(t, "/opt/meridian/etc/genesis.blob", cfg.Genesis)
	require.Equal(t, Duration(30*time.Second), cfg.API.ReadHeaderTimeout)
	require.Len(t, cfg.P2P.BootstrapPeers, 1)
}

func TestLoadUnknownExtension(t *testing.T) {
	cfg := new(Config)
	err := cfg.LoadFromFS(mkfs(nil), "meridian.conf")
	require.Error(t, err)
}

func TestDotenv(t *testing.T) {
	// When dot-env is set, ${FOO} is resolved
	t.Run("Set", func(t *testing.T) {
		fsys := mkfs(map[string]string{
			".env": `FOO=devnet`,
			"meridian.toml": `
				dot-env = true
				network = "${FOO}"`,
		})

		cfg := new(Config)
		require.NoError(t, cfg.LoadFromFS(fsys, "meridian.toml"))
		require.Equal(t, "devnet", cfg.Network)
	})

	// When dot-env is unset, ${FOO} is left as is
	t.Run("Unset", func(t *testing.T) {
		fsys := mkfs(map[string]string{
			".env":          `FOO=devnet`,
			"meridian.toml": `network = "${FOO}"`,
		})

		cfg := new(Config)
		require.NoError(t, cfg.LoadFromFS(fsys, "meridian.toml"))
		require.Equal(t, "${FOO}", cfg.Network)
	})

	// Referencing an unset variable is an error
	t.Run("Wrong var", func(t *testing.T) {
		fsys := mkfs(map[string]string{
			".env": `FOO=devnet`,
			"meridian.toml": `
				dot-env = true
				network = "${BAR}"`,
		})

		cfg := new(Config)
		err := cfg.LoadFromFS(fsys, "meridian.toml")
		require.EqualError(t, err, `"BAR" is not defined`)
	})
}

func TestSaveLoad(t *testing.T) {
	for _, ext := range []string{"toml", "yaml", "json"} {
		t.Run(ext, func(t *testing.T) {
			cfg := Default("devnet")
			file := filepath.Join(t.TempDir(), "meridian."+ext)
			require.NoError(t, cfg.SaveTo(file))

			loaded, err := Load(file)
			require.NoError(t, err)
			require.Equal(t, cfg.Network, loaded.Network)
			require.Equal(t, cfg.API.Listen, loaded.API.Listen)
			require.Equal(t, cfg.P2P.Listen, loaded.P2P.Listen)
			require.NoError(t, loaded.Validate())
		})
	}
}

func TestValidate(t *testing.T) {
	require.NoError(t, Default("devnet").Validate())

	// A config missing an input or a listener is rejected
	cfg := Default("devnet")
	cfg.Genesis = ""
	require.Error(t, cfg.Validate())

	cfg = Default("devnet")
	cfg.API.Listen = nil
	require.Error(t, cfg.Validate())

	cfg = Default("mainnet")
	require.Error(t, cfg.Validate())

	// Memory storage does not need a backup listener - and must not declare
	// one, since the backup service cannot serve it
	cfg = Default("devnet")
	cfg.Storage = &Storage{Type: "memory"}
	cfg.Backup = nil
	require.NoError(t, cfg.Validate())

	cfg = Default("devnet")
	cfg.Storage = &Storage{Type: "memory"}
	require.Error(t, cfg.Validate())

	cfg = Default("devnet")
	cfg.Backup = nil
	require.Error(t, cfg.Validate())
}

func TestDefaultPorts(t *testing.T) {
	cfg := Default("devnet")
	require.Contains(t, cfg.P2P.Listen[0], "6180")
	require.Contains(t, cfg.P2P.SecondaryListen[0], "6181")
	require.Contains(t, cfg.API.Listen[0], "8000")
	require.Contains(t, cfg.API.Listen[1], "8080")
	require.Contains(t, cfg.Instrumentation.Listen, "9101")
	require.Contains(t, cfg.Backup.Listen, "6186")

	id, err := cfg.ChainID()
	require.NoError(t, err)
	require.Equal(t, protocol.Devnet, id)
}
