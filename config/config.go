// Copyright 2025 The Meridian Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

// Package config defines the node's configuration file. The file is
// TOML/YAML/JSON (chosen by extension) with kebab-case keys, and it names the
// four inputs a validator deployment mounts: the config itself, the genesis
// blob, the waypoint, and the node identity.
package config

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/meridianledger/meridian/pkg/errors"
	"github.com/meridianledger/meridian/protocol"
)

type Config struct {
	// Network is the chain this node joins (devnet, testnet, premainnet, or
	// a number).
	Network string `json:"network,omitempty"`

	// DataDir is the node's exclusive data directory.
	DataDir string `json:"dataDir,omitempty"`

	// Genesis, Waypoint, and Identity are the paths of the mounted inputs.
	Genesis  string `json:"genesis,omitempty"`
	Waypoint string `json:"waypoint,omitempty"`
	Identity string `json:"identity,omitempty"`

	// DotEnv enables ${VAR} expansion from a .env file next to the config.
	DotEnv *bool `json:"dotEnv,omitempty"`

	Logging         *Logging         `json:"logging,omitempty"`
	Storage         *Storage         `json:"storage,omitempty"`
	P2P             *P2P             `json:"p2p,omitempty"`
	API             *API             `json:"api,omitempty"`
	Instrumentation *Instrumentation `json:"instrumentation,omitempty"`
	Backup          *Backup          `json:"backup,omitempty"`
	Faucet          *Faucet          `json:"faucet,omitempty"`

	file string
}

type Logging struct {
	// Format is "plain" or "json".
	Format string `json:"format,omitempty"`

	// Rules is a rule string such as "error;network=info".
	Rules string `json:"rules,omitempty"`
}

type Storage struct {
	// Type is "badger" or "memory".
	Type string `json:"type,omitempty"`

	// Path is relative to the data directory.
	Path string `json:"path,omitempty"`
}

// P2P configures the validator-to-validator network.
type P2P struct {
	// Listen addresses are multiaddrs. Primary is the validator network,
	// secondary serves full nodes.
	Listen          []string `json:"listen,omitempty"`
	SecondaryListen []string `json:"secondaryListen,omitempty"`

	// BootstrapPeers are multiaddrs with peer IDs.
	BootstrapPeers []string `json:"bootstrapPeers,omitempty"`

	// External is the address advertised to peers.
	External string `json:"external,omitempty"`
}

// API configures the admission control / client-facing API.
type API struct {
	Listen            []string `json:"listen,omitempty"`
	CorsOrigins       []string `json:"corsOrigins,omitempty"`
	ConnectionLimit   *int     `json:"connectionLimit,omitempty"`
	ReadHeaderTimeout Duration `json:"readHeaderTimeout,omitempty"`
}

// Instrumentation configures metrics exposition.
type Instrumentation struct {
	Listen      string `json:"listen,omitempty"`
	PprofListen string `json:"pprofListen,omitempty"`
}

// Backup configures the backup service.
type Backup struct {
	Listen string `json:"listen,omitempty"`

	// Schedule is a cron expression; empty disables scheduled snapshots.
	Schedule string `json:"schedule,omitempty"`

	// Directory receives scheduled snapshots; Retain bounds how many are
	// kept.
	Directory string `json:"directory,omitempty"`
	Retain    *int   `json:"retain,omitempty"`

	S3 *S3Target `json:"s3,omitempty"`
}

// S3Target uploads snapshots to an S3 bucket.
type S3Target struct {
	Bucket string `json:"bucket"`
	Region string `json:"region,omitempty"`
	Prefix string `json:"prefix,omitempty"`
}

// Faucet configures the devnet faucet.
type Faucet struct {
	Enable        *bool   `json:"enable,omitempty"`
	Listen        string  `json:"listen,omitempty"`
	MaximumAmount *uint64 `json:"maximumAmount,omitempty"`
}

// Default returns the conventional configuration for a validator of the given
// network: inputs under /opt/meridian/etc, data under /opt/meridian/data, and
// the standard port surface.
func Default(network string) *Config {
	c := new(Config)
	c.Network = network
	c.DataDir = "/opt/meridian/data"
	c.Genesis = "/opt/meridian/etc/genesis.blob"
	c.Waypoint = "/opt/meridian/etc/waypoint.txt"
	c.Identity = "/opt/meridian/etc/identity.json"
	c.Logging = &Logging{Format: "plain", Rules: "info"}
	c.Storage = &Storage{Type: "badger", Path: "meridian.db"}
	c.P2P = &P2P{
		Listen:          []string{fmt.Sprintf("/ip4/0.0.0.0/tcp/%d", protocol.PortValidator)},
		SecondaryListen: []string{fmt.Sprintf("/ip4/0.0.0.0/tcp/%d", protocol.PortFullNode)},
	}
	c.API = &API{
		Listen: []string{
			fmt.Sprintf("0.0.0.0:%d", protocol.PortAPI),
			fmt.Sprintf("0.0.0.0:%d", protocol.PortAPISecondary),
		},
	}
	c.Instrumentation = &Instrumentation{Listen: fmt.Sprintf("0.0.0.0:%d", protocol.PortMetrics)}
	c.Backup = &Backup{
		Listen:    fmt.Sprintf("0.0.0.0:%d", protocol.PortBackupService),
		Directory: "backups",
	}
	return c
}

// Validate checks that the configuration names every required input and
// listener.
func (c *Config) Validate() error {
	var errs []error
	need := func(value, name string) {
		if value == "" {
			errs = append(errs, errors.BadRequest.WithFormat("%s is required", name))
		}
	}

	need(c.Network, "network")
	need(c.DataDir, "data-dir")
	need(c.Genesis, "genesis")
	need(c.Waypoint, "waypoint")
	need(c.Identity, "identity")

	if _, err := protocol.ParseChainID(c.Network); err != nil {
		errs = append(errs, err)
	}

	if c.P2P == nil || len(c.P2P.Listen) == 0 {
		errs = append(errs, errors.BadRequest.With("p2p.listen is required"))
	}
	if c.API == nil || len(c.API.Listen) == 0 {
		errs = append(errs, errors.BadRequest.With("api.listen is required"))
	}
	if c.Instrumentation == nil || c.Instrumentation.Listen == "" {
		errs = append(errs, errors.BadRequest.With("instrumentation.listen is required"))
	}
	// Memory storage cannot serve backups, so the backup listener does not
	// apply to it
	if c.Storage == nil || c.Storage.Type != "memory" {
		if c.Backup == nil || c.Backup.Listen == "" {
			errs = append(errs, errors.BadRequest.With("backup.listen is required"))
		}
	} else if c.Backup != nil && c.Backup.Listen != "" {
		errs = append(errs, errors.Conflict.With("backup.listen requires storage that supports backups"))
	}

	return errors.Join(errs...)
}

// ChainID parses the network field.
func (c *Config) ChainID() (protocol.ChainID, error) {
	return protocol.ParseChainID(c.Network)
}

// FilePath returns the path the config was loaded from, if any.
func (c *Config) FilePath() string { return c.file }

// Duration round-trips through config files as a string such as "10s".
type Duration time.Duration

// Get returns the duration, or def if the duration is zero.
func (d Duration) Get(def time.Duration) time.Duration {
	if d == 0 {
		return def
	}
	return time.Duration(d)
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	err := json.Unmarshal(b, &v)
	if err != nil {
		return err
	}
	switch v := v.(type) {
	case float64:
		*d = Duration(time.Duration(v) * time.Second)
		return nil
	case string:
		u, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		*d = Duration(u)
		return nil
	}
	return errors.EncodingError.WithFormat("cannot parse %T as a duration", v)
}
