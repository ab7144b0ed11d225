// Copyright 2025 The Meridian Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

package backup

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/meridianledger/meridian/internal/ledger"
	"github.com/meridianledger/meridian/pkg/database/keyvalue/badger"
	"github.com/meridianledger/meridian/protocol"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T) (*badger.Database, *ledger.Ledger) {
	t.Helper()

	store, err := badger.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	_, key, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	pub := protocol.PublicKey(key.Public().(ed25519.PublicKey))
	addr := protocol.AddressForKey(key.Public().(ed25519.PublicKey))

	l, err := ledger.Bootstrap(store, &protocol.GenesisDoc{
		ChainID:     protocol.Devnet,
		GenesisTime: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Validators: []protocol.GenesisValidator{
			{Name: "validator", ConsensusKey: pub, NetworkKey: pub, Address: addr},
		},
		Accounts: []protocol.GenesisAccount{{Address: addr, Balance: 1000}},
	})
	require.NoError(t, err)
	return store, l
}

func TestServiceRoundTrip(t *testing.T) {
	store, l := testStore(t)

	svc, err := NewService(Options{Store: store, Ledger: l})
	require.NoError(t, err)

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx, lis) }()
	defer func() { cancel(); <-done }()

	base := fmt.Sprintf("http://%s", lis.Addr())

	// Metadata reports the ledger
	resp, err := http.Get(base + "/metadata")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	// A streamed backup restores into a fresh store
	resp, err = http.Get(base + "/backup")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	defer func() { _ = resp.Body.Close() }()

	dst, err := badger.New(filepath.Join(t.TempDir(), "restore.db"))
	require.NoError(t, err)
	defer func() { _ = dst.Close() }()

	require.NoError(t, Restore(dst, resp.Body))

	m, err := ledger.Open(dst)
	require.NoError(t, err)
	require.Equal(t, l.Info(), m.Info())
}

func TestBadSince(t *testing.T) {
	store, l := testStore(t)
	svc, err := NewService(Options{Store: store, Ledger: l})
	require.NoError(t, err)

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx, lis) }()
	defer func() { cancel(); <-done }()

	resp, err := http.Get(fmt.Sprintf("http://%s/backup?since=garbage", lis.Addr()))
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSnapshotAndPrune(t *testing.T) {
	store, _ := testStore(t)
	dir := t.TempDir()

	sched, err := NewScheduler(context.Background(), SchedulerOptions{
		Store:     store,
		Schedule:  "@daily",
		Directory: dir,
		Retain:    2,
	})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, sched.Snapshot(context.Background()))
		time.Sleep(1100 * time.Millisecond) // snapshot names have second resolution
	}

	// Only the most recent snapshots are kept
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 2)
}

func TestSchedulerBadSchedule(t *testing.T) {
	store, _ := testStore(t)
	_, err := NewScheduler(context.Background(), SchedulerOptions{
		Store:     store,
		Schedule:  "not a schedule",
		Directory: t.TempDir(),
	})
	require.Error(t, err)
}

func TestCheckEmpty(t *testing.T) {
	// Missing or empty directories are fine
	require.NoError(t, CheckEmpty(filepath.Join(t.TempDir(), "missing")))
	require.NoError(t, CheckEmpty(t.TempDir()))

	// A directory with data is refused
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "MANIFEST"), nil, 0600))
	require.Error(t, CheckEmpty(dir))
}
