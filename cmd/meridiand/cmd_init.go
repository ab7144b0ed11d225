// Copyright 2025 The Meridian Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/meridianledger/meridian/config"
	cmdutil "github.com/meridianledger/meridian/internal/util/cmd"
	"github.com/meridianledger/meridian/protocol"
	"github.com/spf13/cobra"
)

var cmdInit = &cobra.Command{
	Use:   "init [directory]",
	Short: "Initialize a single node devnet",
	Long:  "Initialize a directory with everything a single node devnet needs: a configuration file, a genesis blob, a waypoint, and a node identity.",
	Run:   initNode,
	Args:  cobra.MaximumNArgs(1),
}

var flagInit = struct {
	Network string
	Balance uint64
	Faucet  bool
	Force   bool
}{}

func init() {
	cmdMain.AddCommand(cmdInit)

	cmdInit.Flags().StringVar(&flagInit.Network, "network", "devnet", "Network to initialize")
	cmdInit.Flags().Uint64Var(&flagInit.Balance, "balance", 1_000_000_000, "Initial balance of the validator's account")
	cmdInit.Flags().BoolVar(&flagInit.Faucet, "faucet", true, "Enable the faucet")
	cmdInit.Flags().BoolVarP(&flagInit.Force, "force", "f", false, "Overwrite existing files")
}

func initNode(_ *cobra.Command, args []string) {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}

	chain, err := protocol.ParseChainID(flagInit.Network)
	cmdutil.Check(err)
	if !chain.IsEphemeral() {
		cmdutil.Fatalf("refusing to initialize a single node %v", chain)
	}

	err = os.MkdirAll(dir, 0700)
	cmdutil.Check(err)

	cfgPath := filepath.Join(dir, "meridian.yaml")
	if !flagInit.Force {
		_, err = os.Stat(cfgPath)
		if err == nil {
			cmdutil.Fatalf("%s already exists, use --force to overwrite", cfgPath)
		}
	}

	// Identity
	_, consensus, err := ed25519.GenerateKey(rand.Reader)
	cmdutil.Check(err)
	_, netKey, err := ed25519.GenerateKey(rand.Reader)
	cmdutil.Check(err)
	identity := protocol.NewNodeIdentity(consensus, netKey)

	// Genesis
	genesis := &protocol.GenesisDoc{
		ChainID:     chain,
		GenesisTime: time.Now().UTC(),
		Validators: []protocol.GenesisValidator{{
			Name:         "devnet-validator",
			ConsensusKey: identity.ConsensusKey.Public(),
			NetworkKey:   identity.NetworkKey.Public(),
			Address:      identity.Account,
		}},
		Accounts: []protocol.GenesisAccount{{
			Address: identity.Account,
			Balance: flagInit.Balance,
		}},
	}
	cmdutil.Check(genesis.Validate())

	// Configuration
	cfg := config.Default(flagInit.Network)
	cfg.DataDir = "data"
	cfg.Genesis = "genesis.blob"
	cfg.Waypoint = "waypoint.txt"
	cfg.Identity = "identity.json"
	if flagInit.Faucet {
		enable := true
		cfg.Faucet = &config.Faucet{
			Enable: &enable,
			Listen: "127.0.0.1:8081",
		}
	}

	cmdutil.Checkf(protocol.StoreGenesis(genesis, filepath.Join(dir, cfg.Genesis)), "write genesis")
	cmdutil.Checkf(protocol.StoreWaypoint(protocol.WaypointForGenesis(genesis), filepath.Join(dir, cfg.Waypoint)), "write waypoint")
	cmdutil.Checkf(protocol.StoreIdentity(identity, filepath.Join(dir, cfg.Identity)), "write identity")
	cmdutil.Checkf(cfg.SaveTo(cfgPath), "write config")

	fmt.Printf("Initialized a %v node in %s\n", chain, dir)
	fmt.Printf("  account: %v\n", identity.Account)
}
