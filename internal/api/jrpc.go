// Copyright 2025 The Meridian Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

// Package api implements the node's admission control / client-facing API as
// JSON-RPC 2.0 over HTTP.
package api

import (
	"context"
	"encoding/json"
	stdlog "log"
	"log/slog"
	"net/http"
	"os"

	"github.com/AccumulateNetwork/jsonrpc2/v15"
	"github.com/meridianledger/meridian/internal/ledger"
	"github.com/meridianledger/meridian/pkg/database/keyvalue"
	"github.com/meridianledger/meridian/pkg/errors"
	"github.com/meridianledger/meridian/protocol"
)

// JSON-RPC error codes.
const (
	ErrCodeValidation jsonrpc2.ErrorCode = -32800 - iota
	ErrCodeNotFound
	ErrCodeSubmission
	ErrCodeInternal
)

// Options configures the API.
type Options struct {
	Logger  *slog.Logger
	Network protocol.ChainID
	NodeID  string
	Version string
	Ledger  *ledger.Ledger

	// Submit admits a verified transaction (queue + gossip).
	Submit func(context.Context, *protocol.SignedTransaction) error
}

// JrpcMethods is the JSON-RPC method table.
type JrpcMethods struct {
	Options
	methods jsonrpc2.MethodMap
	logger  *slog.Logger
}

// NewJrpc builds the method table.
func NewJrpc(opts Options) (*JrpcMethods, error) {
	if opts.Ledger == nil {
		return nil, errors.BadRequest.With("missing ledger")
	}

	m := new(JrpcMethods)
	m.Options = opts
	m.logger = opts.Logger
	if m.logger == nil {
		m.logger = slog.Default()
	}
	m.logger = m.logger.With("module", "api")

	m.methods = jsonrpc2.MethodMap{
		"node-info":   m.NodeInfo,
		"ledger-info": m.LedgerInfo,
		"account":     m.Account,
		"submit":      m.SubmitTransaction,
	}
	return m, nil
}

// NewMux returns the HTTP handler: health on /healthz, JSON-RPC on /v1.
func (m *JrpcMethods) NewMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", m.healthz)
	mux.Handle("/v1", jsonrpc2.HTTPRequestHandler(m.methods, stdlog.New(os.Stderr, "", 0)))
	return mux
}

func (m *JrpcMethods) healthz(w http.ResponseWriter, _ *http.Request) {
	info := m.Ledger.Info()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"network": m.Network,
		"version": info.Version,
	})
}

// NodeInfoResponse is the response of the node-info method.
type NodeInfoResponse struct {
	Network protocol.ChainID `json:"network"`
	NodeID  string           `json:"nodeId,omitempty"`
	Version string           `json:"version,omitempty"`
}

// LedgerInfoResponse is the response of the ledger-info method.
type LedgerInfoResponse struct {
	Network      protocol.ChainID `json:"network"`
	GenesisHash  string           `json:"genesisHash"`
	Version      uint64           `json:"version"`
	PendingCount int              `json:"pendingCount"`
}

// AccountRequest is the request of the account method.
type AccountRequest struct {
	Address protocol.AccountAddress `json:"address"`
}

// SubmitResponse is the response of the submit method.
type SubmitResponse struct {
	Hash string `json:"hash"`
}

func (m *JrpcMethods) NodeInfo(_ context.Context, _ json.RawMessage) interface{} {
	return &NodeInfoResponse{
		Network: m.Network,
		NodeID:  m.NodeID,
		Version: m.Version,
	}
}

func (m *JrpcMethods) LedgerInfo(_ context.Context, _ json.RawMessage) interface{} {
	info := m.Ledger.Info()
	pending, err := m.Ledger.PendingCount()
	if err != nil {
		return m.internalError(err)
	}
	return &LedgerInfoResponse{
		Network:      info.ChainID,
		GenesisHash:  protocol.PublicKey(info.GenesisHash[:]).String(),
		Version:      info.Version,
		PendingCount: pending,
	}
}

func (m *JrpcMethods) Account(_ context.Context, params json.RawMessage) interface{} {
	req := new(AccountRequest)
	err := json.Unmarshal(params, req)
	if err != nil {
		return validationError(err)
	}

	acct, err := m.Ledger.Account(req.Address)
	switch {
	case err == nil:
		return acct
	case errors.Is(err, keyvalue.ErrNotFound):
		return jsonrpc2.NewError(ErrCodeNotFound, "Not Found", req.Address.String())
	default:
		return m.internalError(err)
	}
}

func (m *JrpcMethods) SubmitTransaction(ctx context.Context, params json.RawMessage) interface{} {
	mApiRequests.WithLabelValues("submit").Inc()

	tx := new(protocol.SignedTransaction)
	err := json.Unmarshal(params, tx)
	if err != nil {
		return validationError(err)
	}

	err = tx.Verify(m.Network)
	if err != nil {
		return validationError(err)
	}

	err = m.Options.Submit(ctx, tx)
	if err != nil {
		var e *errors.Error
		if errors.As(err, &e) && e.Code.IsClientError() {
			return jsonrpc2.NewError(ErrCodeSubmission, "Submission Error", e.Message)
		}
		return m.internalError(err)
	}

	hash := tx.Hash()
	return &SubmitResponse{Hash: protocol.PublicKey(hash[:]).String()}
}

func (m *JrpcMethods) internalError(err error) jsonrpc2.Error {
	m.logger.Error("Internal error", "error", err)
	return jsonrpc2.NewError(ErrCodeInternal, "Internal Error", err.Error())
}

func validationError(err error) jsonrpc2.Error {
	return jsonrpc2.NewError(ErrCodeValidation, "Validation Error", err.Error())
}
