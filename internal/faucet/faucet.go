// Copyright 2025 The Meridian Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

// Package faucet implements the development faucet. It mints funds into
// accounts on request and only runs on ephemeral chains.
package faucet

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/meridianledger/meridian/internal/ledger"
	"github.com/meridianledger/meridian/pkg/errors"
	"github.com/meridianledger/meridian/protocol"
)

// DefaultMaximumAmount bounds a single mint when no limit is configured.
const DefaultMaximumAmount = 100_000_000

// Options configures the faucet.
type Options struct {
	Logger *slog.Logger
	Ledger *ledger.Ledger

	// MaximumAmount bounds a single mint request.
	MaximumAmount uint64
}

// Faucet is the faucet HTTP service.
type Faucet struct {
	Options
	logger *slog.Logger
	srv    *http.Server
}

// MintResponse is the response of a mint request.
type MintResponse struct {
	Address protocol.AccountAddress `json:"address"`
	Amount  uint64                  `json:"amount"`
	Balance uint64                  `json:"balance"`
}

// New builds the faucet. The ledger's chain must be ephemeral.
func New(opts Options) (*Faucet, error) {
	if opts.Ledger == nil {
		return nil, errors.BadRequest.With("missing ledger")
	}
	if chain := opts.Ledger.Info().ChainID; !chain.IsEphemeral() {
		return nil, errors.BadRequest.WithFormat("refusing to run a faucet on %v", chain)
	}

	f := new(Faucet)
	f.Options = opts
	if f.MaximumAmount == 0 {
		f.MaximumAmount = DefaultMaximumAmount
	}
	f.logger = opts.Logger
	if f.logger == nil {
		f.logger = slog.Default()
	}
	f.logger = f.logger.With("module", "faucet")

	router := httprouter.New()
	router.POST("/mint", f.handleMint)
	router.GET("/health", f.handleHealth)
	f.srv = &http.Server{Handler: router, ReadHeaderTimeout: 10 * time.Second}
	return f, nil
}

// Serve serves the listener until the context is canceled.
func (f *Faucet) Serve(ctx context.Context, l net.Listener) error {
	done := make(chan error, 1)
	go func() { done <- f.srv.Serve(l) }()

	select {
	case err := <-done:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return f.srv.Shutdown(sctx)
	}
}

func (f *Faucet) handleMint(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	addr, err := protocol.ParseAddress(r.URL.Query().Get("address"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	amount := f.MaximumAmount
	if q := r.URL.Query().Get("amount"); q != "" {
		amount, err = strconv.ParseUint(q, 10, 64)
		if err != nil {
			http.Error(w, "invalid amount", http.StatusBadRequest)
			return
		}
	}
	if amount > f.MaximumAmount {
		http.Error(w, "amount exceeds the faucet's limit", http.StatusBadRequest)
		return
	}

	acct, err := f.Ledger.Credit(addr, amount)
	if err != nil {
		f.logger.Error("Mint failed", "address", addr, "error", err)
		http.Error(w, "mint failed", http.StatusInternalServerError)
		return
	}

	f.logger.Info("Minted", "address", addr, "amount", amount)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(&MintResponse{
		Address: addr,
		Amount:  amount,
		Balance: acct.Balance,
	})
}

func (f *Faucet) handleHealth(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"network": f.Ledger.Info().ChainID,
		"version": f.Ledger.Info().Version,
	})
}
