// Copyright 2025 The Meridian Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

package main

import (
	"context"
	"time"

	"github.com/meridianledger/meridian/config"
	"github.com/meridianledger/meridian/internal/node"
	cmdutil "github.com/meridianledger/meridian/internal/util/cmd"
	"github.com/meridianledger/meridian/pkg/database/keyvalue/badger"
	"github.com/spf13/cobra"
)

var cmdRun = &cobra.Command{
	Use:   "run",
	Short: "Run the node",
	Run:   runNode,
	Args:  cobra.NoArgs,
}

var flagRun = struct {
	Truncate    bool
	CiStopAfter time.Duration
}{}

func init() {
	cmdMain.AddCommand(cmdRun)

	cmdRun.Flags().BoolVar(&flagRun.Truncate, "truncate", false, "Truncate Badger if necessary")
	cmdRun.Flags().DurationVar(&flagRun.CiStopAfter, "ci-stop-after", 0, "FOR CI ONLY - stop the node after some time")
	cmdRun.Flag("ci-stop-after").Hidden = true

	cmdRun.PersistentPreRun = func(*cobra.Command, []string) {
		badger.Truncate = flagRun.Truncate
	}
}

func runNode(cmd *cobra.Command, _ []string) {
	cfg, err := config.Load(flagMain.Config)
	cmdutil.Checkf(err, "load %s", flagMain.Config)
	cmdutil.Check(cfg.Validate())

	ctx := cmdutil.ContextForMainProcess(cmd.Context())
	if flagRun.CiStopAfter != 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, flagRun.CiStopAfter)
		defer cancel()
	}

	inst, err := node.Start(ctx, cfg)
	cmdutil.Check(err)

	<-ctx.Done()
	inst.Stop()
}
