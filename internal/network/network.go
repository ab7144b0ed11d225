// Copyright 2025 The Meridian Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

// Package network implements the validator-to-validator network on libp2p.
// The protocol namespace includes the genesis hash, so nodes bootstrapped
// from inconsistent genesis blobs cannot talk to each other.
package network

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/libp2p/go-libp2p"
	dht "github.com/libp2p/go-libp2p-kad-dht"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	libp2protocol "github.com/libp2p/go-libp2p/core/protocol"
	"github.com/meridianledger/meridian/pkg/errors"
	"github.com/meridianledger/meridian/protocol"
	"github.com/multiformats/go-multiaddr"
)

// Status is exchanged over the status protocol.
type Status struct {
	ChainID       protocol.ChainID `json:"chainId"`
	GenesisHash   string           `json:"genesisHash"`
	LedgerVersion uint64           `json:"ledgerVersion"`
}

// Options configures the network node.
type Options struct {
	// Network is the chain this node belongs to.
	Network protocol.ChainID

	// GenesisHash namespaces the wire protocols.
	GenesisHash [32]byte

	// Key is the node's network key.
	Key ed25519.PrivateKey

	// Listen is the primary (validator) listen set; SecondaryListen serves
	// full nodes.
	Listen          []multiaddr.Multiaddr
	SecondaryListen []multiaddr.Multiaddr

	// BootstrapPeers are dialed at startup.
	BootstrapPeers []peer.AddrInfo

	// External, if set, is the only address advertised to peers.
	External multiaddr.Multiaddr

	// LedgerVersion reports the current ledger version for the status
	// protocol.
	LedgerVersion func() uint64
}

// Node is a live network node.
type Node struct {
	opts  Options
	host  host.Host
	dht   *dht.IpfsDHT
	ps    *pubsub.PubSub
	topic *pubsub.Topic
}

// Start launches the network node and binds its listeners. An unbindable
// listener fails the whole node.
func Start(ctx context.Context, opts Options) (_ *Node, err error) {
	if len(opts.Listen) == 0 {
		return nil, errors.BadRequest.With("no listen addresses")
	}

	key, err := crypto.UnmarshalEd25519PrivateKey(opts.Key)
	if err != nil {
		return nil, errors.BadRequest.WithFormat("network key: %w", err)
	}

	listen := make([]multiaddr.Multiaddr, 0, len(opts.Listen)+len(opts.SecondaryListen))
	listen = append(listen, opts.Listen...)
	listen = append(listen, opts.SecondaryListen...)

	lopts := []libp2p.Option{
		libp2p.Identity(key),
		libp2p.ListenAddrs(listen...),
	}
	if opts.External != nil {
		ext := opts.External
		lopts = append(lopts, libp2p.AddrsFactory(func([]multiaddr.Multiaddr) []multiaddr.Multiaddr {
			return []multiaddr.Multiaddr{ext}
		}))
	}

	n := new(Node)
	n.opts = opts
	n.host, err = libp2p.New(lopts...)
	if err != nil {
		return nil, errors.UnknownError.WithFormat("start host: %w", err)
	}
	defer func() {
		if err != nil {
			_ = n.host.Close()
		}
	}()

	n.host.SetStreamHandler(n.statusProtocol(), n.handleStatus)

	// Peer discovery
	n.dht, err = dht.New(ctx, n.host,
		dht.Mode(dht.ModeServer),
		dht.ProtocolPrefix(libp2protocol.ID(n.namespace())))
	if err != nil {
		return nil, errors.UnknownError.WithFormat("start DHT: %w", err)
	}

	for _, p := range opts.BootstrapPeers {
		err = n.host.Connect(ctx, p)
		if err != nil {
			slog.Warn("Failed to connect to bootstrap peer", "peer", p.ID, "error", err, "module", "network")
		}
	}
	err = n.dht.Bootstrap(ctx)
	if err != nil {
		return nil, errors.UnknownError.WithFormat("bootstrap DHT: %w", err)
	}

	// Transaction gossip
	n.ps, err = pubsub.NewGossipSub(ctx, n.host)
	if err != nil {
		return nil, errors.UnknownError.WithFormat("start gossip: %w", err)
	}
	n.topic, err = n.ps.Join(n.namespace() + "/txs")
	if err != nil {
		return nil, errors.UnknownError.WithFormat("join topic: %w", err)
	}

	slog.Info("We are", "node-id", n.host.ID(), "module", "network")
	return n, nil
}

// namespace returns the wire protocol namespace for this network and genesis.
func (n *Node) namespace() string {
	return fmt.Sprintf("/meridian/%v/%s", n.opts.Network, hex.EncodeToString(n.opts.GenesisHash[:8]))
}

func (n *Node) statusProtocol() libp2protocol.ID {
	return libp2protocol.ID(n.namespace() + "/status/1.0.0")
}

// ID returns the node's peer ID.
func (n *Node) ID() peer.ID { return n.host.ID() }

// Addresses returns the addresses the node is reachable at.
func (n *Node) Addresses() []multiaddr.Multiaddr { return n.host.Addrs() }

func (n *Node) status() *Status {
	s := &Status{
		ChainID:     n.opts.Network,
		GenesisHash: hex.EncodeToString(n.opts.GenesisHash[:]),
	}
	if n.opts.LedgerVersion != nil {
		s.LedgerVersion = n.opts.LedgerVersion()
	}
	return s
}

func (n *Node) handleStatus(s network.Stream) {
	defer func() { _ = s.Close() }()
	err := json.NewEncoder(s).Encode(n.status())
	if err != nil {
		slog.Debug("Failed to send status", "peer", s.Conn().RemotePeer(), "error", err, "module", "network")
	}
}

// Status queries a peer's status. The peer must share this node's network and
// genesis, otherwise the protocol negotiation itself fails.
func (n *Node) Status(ctx context.Context, id peer.ID) (*Status, error) {
	s, err := n.host.NewStream(ctx, id, n.statusProtocol())
	if err != nil {
		return nil, errors.UnknownError.WithFormat("status %v: %w", id, err)
	}
	defer func() { _ = s.Close() }()

	status := new(Status)
	err = json.NewDecoder(s).Decode(status)
	if err != nil {
		return nil, errors.EncodingError.WithFormat("status %v: %w", id, err)
	}
	return status, nil
}

// Publish gossips an admitted transaction to the validator network.
func (n *Node) Publish(ctx context.Context, tx *protocol.SignedTransaction) error {
	b, err := json.Marshal(tx)
	if err != nil {
		return errors.EncodingError.Wrap(err)
	}
	return n.topic.Publish(ctx, b)
}

// Subscribe delivers transactions gossiped by other nodes. Messages published
// by this node are skipped. Subscribe blocks until the context is canceled.
func (n *Node) Subscribe(ctx context.Context, handle func(*protocol.SignedTransaction)) error {
	sub, err := n.topic.Subscribe()
	if err != nil {
		return errors.UnknownError.WithFormat("subscribe: %w", err)
	}
	defer sub.Cancel()

	for {
		msg, err := sub.Next(ctx)
		switch {
		case err == nil:
			// Ok
		case errors.Is(err, context.Canceled):
			return nil
		default:
			return err
		}

		if msg.ReceivedFrom == n.host.ID() {
			continue
		}

		tx := new(protocol.SignedTransaction)
		err = json.Unmarshal(msg.Data, tx)
		if err != nil {
			slog.Debug("Discarding malformed transaction", "peer", msg.ReceivedFrom, "error", err, "module", "network")
			continue
		}
		handle(tx)
	}
}

// Close shuts the node down.
func (n *Node) Close() error {
	var errs []error
	if n.dht != nil {
		errs = append(errs, n.dht.Close())
	}
	errs = append(errs, n.host.Close())
	return errors.Join(errs...)
}

// ParseMultiaddrs parses a list of multiaddr strings.
func ParseMultiaddrs(addrs []string) ([]multiaddr.Multiaddr, error) {
	var out []multiaddr.Multiaddr
	for _, s := range addrs {
		a, err := multiaddr.NewMultiaddr(s)
		if err != nil {
			return nil, errors.BadRequest.WithFormat("invalid address %q: %w", s, err)
		}
		out = append(out, a)
	}
	return out, nil
}

// ParsePeers parses a list of multiaddrs that include peer IDs.
func ParsePeers(addrs []string) ([]peer.AddrInfo, error) {
	var out []peer.AddrInfo
	for _, s := range addrs {
		a, err := multiaddr.NewMultiaddr(s)
		if err != nil {
			return nil, errors.BadRequest.WithFormat("invalid peer %q: %w", s, err)
		}
		ai, err := peer.AddrInfoFromP2pAddr(a)
		if err != nil {
			return nil, errors.BadRequest.WithFormat("invalid peer %q: %w", s, err)
		}
		out = append(out, *ai)
	}
	return out, nil
}
