// Copyright 2025 The Meridian Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

package api

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/meridianledger/meridian/internal/ledger"
	"github.com/meridianledger/meridian/pkg/database/keyvalue/memory"
	"github.com/meridianledger/meridian/protocol"
	"github.com/stretchr/testify/require"
)

type testAPI struct {
	*httptest.Server
	ledger    *ledger.Ledger
	key       ed25519.PrivateKey
	submitted []*protocol.SignedTransaction
}

func setup(t *testing.T) *testAPI {
	t.Helper()

	_, key, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	pub := protocol.PublicKey(key.Public().(ed25519.PublicKey))
	addr := protocol.AddressForKey(key.Public().(ed25519.PublicKey))

	genesis := &protocol.GenesisDoc{
		ChainID:     protocol.Devnet,
		GenesisTime: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Validators: []protocol.GenesisValidator{
			{Name: "validator", ConsensusKey: pub, NetworkKey: pub, Address: addr},
		},
		Accounts: []protocol.GenesisAccount{{Address: addr, Balance: 1000}},
	}

	l, err := ledger.Bootstrap(memory.New(), genesis)
	require.NoError(t, err)

	api := &testAPI{ledger: l, key: key}
	jrpc, err := NewJrpc(Options{
		Network: protocol.Devnet,
		NodeID:  "test-node",
		Version: "test",
		Ledger:  l,
		Submit:  api.submit,
	})
	require.NoError(t, err)

	api.Server = httptest.NewServer(jrpc.NewMux())
	t.Cleanup(api.Server.Close)
	return api
}

func (a *testAPI) submit(_ context.Context, tx *protocol.SignedTransaction) error {
	err := a.ledger.Pending(tx)
	if err != nil {
		return err
	}
	a.submitted = append(a.submitted, tx)
	return nil
}

func (a *testAPI) call(t *testing.T, method string, params any) (json.RawMessage, *json.RawMessage) {
	t.Helper()

	req, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  params,
	})
	require.NoError(t, err)

	resp, err := http.Post(a.URL+"/v1", "application/json", bytes.NewReader(req))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	var body struct {
		Result json.RawMessage  `json:"result"`
		Error  *json.RawMessage `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body.Result, body.Error
}

func TestHealthz(t *testing.T) {
	api := setup(t)

	resp, err := http.Get(api.URL + "/healthz")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestNodeInfo(t *testing.T) {
	api := setup(t)

	result, jerr := api.call(t, "node-info", nil)
	require.Nil(t, jerr)

	info := new(NodeInfoResponse)
	require.NoError(t, json.Unmarshal(result, info))
	require.Equal(t, protocol.Devnet, info.Network)
	require.Equal(t, "test-node", info.NodeID)
}

func TestLedgerInfo(t *testing.T) {
	api := setup(t)

	result, jerr := api.call(t, "ledger-info", nil)
	require.Nil(t, jerr)

	info := new(LedgerInfoResponse)
	require.NoError(t, json.Unmarshal(result, info))
	require.Equal(t, protocol.Devnet, info.Network)
	require.Zero(t, info.PendingCount)
}

func TestAccount(t *testing.T) {
	api := setup(t)
	addr := protocol.AddressForKey(api.key.Public().(ed25519.PublicKey))

	result, jerr := api.call(t, "account", AccountRequest{Address: addr})
	require.Nil(t, jerr)

	acct := new(ledger.Account)
	require.NoError(t, json.Unmarshal(result, acct))
	require.Equal(t, uint64(1000), acct.Balance)

	// Unknown accounts are a not-found error, not an empty account
	_, sk, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	_, jerr = api.call(t, "account", AccountRequest{
		Address: protocol.AddressForKey(sk.Public().(ed25519.PublicKey)),
	})
	require.NotNil(t, jerr)
}

func TestSubmit(t *testing.T) {
	api := setup(t)

	tx := &protocol.SignedTransaction{
		Sender:  protocol.AddressForKey(api.key.Public().(ed25519.PublicKey)),
		ChainID: protocol.Devnet,
		Payload: []byte("payload"),
	}
	tx.Sign(api.key)

	result, jerr := api.call(t, "submit", tx)
	require.Nil(t, jerr)

	sub := new(SubmitResponse)
	require.NoError(t, json.Unmarshal(result, sub))
	require.NotEmpty(t, sub.Hash)
	require.Len(t, api.submitted, 1)

	// A replay is rejected (sequence number reuse)
	_, jerr = api.call(t, "submit", tx)
	require.NotNil(t, jerr)

	// A tampered transaction is rejected
	tx2 := &protocol.SignedTransaction{
		Sender:         tx.Sender,
		SequenceNumber: 1,
		ChainID:        protocol.Devnet,
		Payload:        []byte("payload"),
	}
	tx2.Sign(api.key)
	tx2.Payload = []byte("tampered")
	_, jerr = api.call(t, "submit", tx2)
	require.NotNil(t, jerr)
	require.Len(t, api.submitted, 1)
}
