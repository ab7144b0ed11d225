// Copyright 2025 The Meridian Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

// meridian-restore loads a backup into a fresh data directory. Restoring over
// a directory that already has data is refused.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/meridianledger/meridian/internal/backup"
	"github.com/meridianledger/meridian/internal/ledger"
	cmdutil "github.com/meridianledger/meridian/internal/util/cmd"
	"github.com/meridianledger/meridian/pkg/database/keyvalue/badger"
	"github.com/meridianledger/meridian/protocol"
	"github.com/spf13/cobra"
)

func main() {
	_ = cmd.Execute()
}

var cmd = &cobra.Command{
	Use:   "meridian-restore <snapshot>",
	Short: "Restore a backup into a fresh data directory",
	Run:   run,
	Args:  cobra.ExactArgs(1),
}

var flag = struct {
	DataDir string
	Path    string
}{}

func init() {
	cmd.Flags().StringVarP(&flag.DataDir, "data-dir", "d", "/opt/meridian/data", "The node's data directory")
	cmd.Flags().StringVar(&flag.Path, "path", "meridian.db", "The database path, relative to the data directory")
}

func run(_ *cobra.Command, args []string) {
	path := filepath.Join(flag.DataDir, flag.Path)
	cmdutil.Check(backup.CheckEmpty(path))

	f, err := os.Open(args[0])
	cmdutil.Checkf(err, "open %s", args[0])
	defer func() { _ = f.Close() }()

	st, err := f.Stat()
	cmdutil.Check(err)

	store, err := badger.New(path)
	cmdutil.Checkf(err, "open %s", path)
	defer func() { _ = store.Close() }()

	err = backup.Restore(store, f)
	cmdutil.Check(err)

	// Sanity check the result
	l, err := ledger.Open(store)
	cmdutil.Checkf(err, "the restored database has no ledger record")

	info := l.Info()
	fmt.Printf("Restored %s (%s) into %s\n", args[0], humanize.Bytes(uint64(st.Size())), path)
	fmt.Printf("  network: %v\n", info.ChainID)
	fmt.Printf("  genesis: %v\n", protocol.PublicKey(info.GenesisHash[:]))
	fmt.Printf("  version: %d\n", info.Version)
}
