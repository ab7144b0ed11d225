// Copyright 2025 The Meridian Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

// meridian-bootstrap runs a standalone bootstrap peer. It joins the validator
// network named by a genesis blob and serves peer discovery, nothing else.
package main

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/meridianledger/meridian/internal/network"
	. "github.com/meridianledger/meridian/internal/util/cmd"
	cmdutil "github.com/meridianledger/meridian/internal/util/cmd"
	"github.com/meridianledger/meridian/protocol"
	"github.com/multiformats/go-multiaddr"
	"github.com/spf13/cobra"
)

func main() {
	_ = cmd.Execute()
}

var cmd = &cobra.Command{
	Use:   "meridian-bootstrap",
	Short: "Meridian network bootstrap node",
	Run:   run,
	Args:  cobra.NoArgs,
}

var flag = struct {
	Genesis  string
	Key      string
	Listen   []multiaddr.Multiaddr
	Peers    []multiaddr.Multiaddr
	External multiaddr.Multiaddr
}{}

func init() {
	cmd.Flags().StringVarP(&flag.Genesis, "genesis", "g", "/opt/meridian/etc/genesis.blob", "The genesis blob of the network to join")
	cmd.Flags().StringVar(&flag.Key, "key", "", "The node key - not required but highly recommended. The value can be a hex key or the path of an identity file.")
	cmd.Flags().VarP((*MultiaddrSliceFlag)(&flag.Listen), "listen", "l", "Listening address")
	cmd.Flags().VarP((*MultiaddrSliceFlag)(&flag.Peers), "peer", "p", "Peers to connect to")
	cmd.Flags().Var(MultiaddrFlag{Value: &flag.External}, "external", "External address to advertize")
}

func run(*cobra.Command, []string) {
	genesis, err := protocol.LoadGenesis(flag.Genesis)
	Checkf(err, "load genesis")

	if len(flag.Listen) == 0 {
		a, err := multiaddr.NewMultiaddr(fmt.Sprintf("/ip4/0.0.0.0/tcp/%d", protocol.PortValidator))
		Check(err)
		flag.Listen = []multiaddr.Multiaddr{a}
	}

	var peers []peer.AddrInfo
	for _, a := range flag.Peers {
		ai, err := peer.AddrInfoFromP2pAddr(a)
		Checkf(err, "invalid peer %v", a)
		peers = append(peers, *ai)
	}

	ctx := cmdutil.ContextForMainProcess(context.Background())

	node, err := network.Start(ctx, network.Options{
		Network:        genesis.ChainID,
		GenesisHash:    genesis.Hash(),
		Key:            loadOrGenerateKey(),
		Listen:         flag.Listen,
		BootstrapPeers: peers,
		External:       flag.External,
	})
	Check(err)
	defer func() { _ = node.Close() }()

	fmt.Println("We are")
	for _, a := range node.Addresses() {
		fmt.Printf("  %s/p2p/%s\n", a, node.ID())
	}
	fmt.Println()

	// Wait for SIGINT
	<-ctx.Done()
}

func loadOrGenerateKey() ed25519.PrivateKey {
	if strings.HasPrefix(flag.Key, "seed:") {
		Warnf("Generating a new key from a seed. This is not at all secure.")
		h := sha256.Sum256([]byte(flag.Key))
		return ed25519.NewKeyFromSeed(h[:])
	}

	if flag.Key != "" {
		if _, err := os.Stat(flag.Key); err == nil {
			id, err := protocol.LoadIdentity(flag.Key)
			Checkf(err, "load identity")
			return ed25519.PrivateKey(id.NetworkKey)
		}

		b, err := hex.DecodeString(flag.Key)
		Checkf(err, "decode key")
		switch len(b) {
		case ed25519.SeedSize:
			return ed25519.NewKeyFromSeed(b)
		case ed25519.PrivateKeySize:
			return ed25519.PrivateKey(b)
		}
		Fatalf("a key must be %d or %d bytes", ed25519.SeedSize, ed25519.PrivateKeySize)
	}

	// Generate a key if necessary
	Warnf("Generating a new key. This is highly discouraged for permanent infrastructure.")
	_, sk, err := ed25519.GenerateKey(rand.Reader)
	Checkf(err, "generate key")
	return sk
}
