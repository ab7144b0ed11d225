// Copyright 2025 The Meridian Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

package faucet

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/meridianledger/meridian/internal/ledger"
	"github.com/meridianledger/meridian/pkg/database/keyvalue/memory"
	"github.com/meridianledger/meridian/protocol"
	"github.com/stretchr/testify/require"
)

func testLedger(t *testing.T, chain protocol.ChainID) *ledger.Ledger {
	t.Helper()

	_, key, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	pub := protocol.PublicKey(key.Public().(ed25519.PublicKey))
	addr := protocol.AddressForKey(key.Public().(ed25519.PublicKey))

	l, err := ledger.Bootstrap(memory.New(), &protocol.GenesisDoc{
		ChainID:     chain,
		GenesisTime: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Validators: []protocol.GenesisValidator{
			{Name: "validator", ConsensusKey: pub, NetworkKey: pub, Address: addr},
		},
	})
	require.NoError(t, err)
	return l
}

func serve(t *testing.T, f *Faucet) string {
	t.Helper()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.Serve(ctx, lis) }()
	t.Cleanup(func() { cancel(); <-done })
	return fmt.Sprintf("http://%s", lis.Addr())
}

func TestMint(t *testing.T) {
	l := testLedger(t, protocol.Devnet)
	f, err := New(Options{Ledger: l, MaximumAmount: 1000})
	require.NoError(t, err)
	base := serve(t, f)

	_, key, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	addr := protocol.AddressForKey(key.Public().(ed25519.PublicKey))

	resp, err := http.Post(fmt.Sprintf("%s/mint?address=%v&amount=500", base, addr), "", nil)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	mint := new(MintResponse)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(mint))
	require.Equal(t, uint64(500), mint.Amount)
	require.Equal(t, uint64(500), mint.Balance)

	acct, err := l.Account(addr)
	require.NoError(t, err)
	require.Equal(t, uint64(500), acct.Balance)
}

func TestMintLimits(t *testing.T) {
	f, err := New(Options{Ledger: testLedger(t, protocol.Devnet), MaximumAmount: 1000})
	require.NoError(t, err)
	base := serve(t, f)

	_, key, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	addr := protocol.AddressForKey(key.Public().(ed25519.PublicKey))

	// Over the limit
	resp, err := http.Post(fmt.Sprintf("%s/mint?address=%v&amount=1001", base, addr), "", nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Bad address
	resp, err = http.Post(base+"/mint?address=nonsense", "", nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealth(t *testing.T) {
	f, err := New(Options{Ledger: testLedger(t, protocol.Devnet)})
	require.NoError(t, err)
	base := serve(t, f)

	resp, err := http.Get(base + "/health")
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRefusesDurableChains(t *testing.T) {
	// The faucet only runs on ephemeral chains
	_, err := New(Options{Ledger: testLedger(t, protocol.Testnet)})
	require.Error(t, err)

	_, err = New(Options{Ledger: testLedger(t, protocol.PreMainnet)})
	require.Error(t, err)
}
