// Copyright 2025 The Meridian Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

package main

import (
	"fmt"

	"github.com/meridianledger/meridian/config"
	"github.com/meridianledger/meridian/internal/node"
	cmdutil "github.com/meridianledger/meridian/internal/util/cmd"
	"github.com/meridianledger/meridian/protocol"
	"github.com/spf13/cobra"
)

var cmdVerify = &cobra.Command{
	Use:   "verify",
	Short: "Verify the configuration and mounted inputs without starting the node",
	Run:   verifyNode,
	Args:  cobra.NoArgs,
}

func init() {
	cmdMain.AddCommand(cmdVerify)
}

func verifyNode(*cobra.Command, []string) {
	cfg, err := config.Load(flagMain.Config)
	cmdutil.Checkf(err, "load %s", flagMain.Config)
	cmdutil.Check(cfg.Validate())

	inputs, err := node.VerifyInputs(cfg)
	cmdutil.Check(err)

	fmt.Printf("network:  %v\n", inputs.ChainID)
	fmt.Printf("genesis:  %v\n", protocol.PublicKey(inputs.GenesisHash[:]))
	fmt.Printf("waypoint: %v\n", inputs.Waypoint)
	fmt.Printf("account:  %v\n", inputs.Identity.Account)
}
