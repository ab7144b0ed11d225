// Copyright 2025 The Meridian Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

// Package backup implements the backup service: an HTTP endpoint that streams
// database backups, plus scheduled snapshots with retention and optional S3
// upload.
package backup

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
	"github.com/meridianledger/meridian/pkg/database/keyvalue"
	"github.com/meridianledger/meridian/pkg/errors"
	"github.com/meridianledger/meridian/protocol"
)

// VersionHeader carries the version a streamed backup is current to.
const VersionHeader = "X-Meridian-Backup-Version"

// Options configures the backup service.
type Options struct {
	Logger *slog.Logger
	Store  keyvalue.Backupable
	Ledger *ledger.Ledger
}

// Service is the backup HTTP service.
type Service struct {
	Options
	logger *slog.Logger
	srv    *http.Server
}

// Metadata describes the node a backup was taken from.
type Metadata struct {
	Network       protocol.ChainID `json:"network"`
	GenesisHash   string           `json:"genesisHash"`
	LedgerVersion uint64           `json:"ledgerVersion"`
}

// NewService builds the backup service.
func NewService(opts Options) (*Service, error) {
	if opts.Store == nil {
		return nil, errors.BadRequest.With("missing store")
	}
	if opts.Ledger == nil {
		return nil, errors.BadRequest.With("missing ledger")
	}

	s := new(Service)
	s.Options = opts
	s.logger = opts.Logger
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With("module", "backup")

	router := httprouter.New()
	router.GET("/backup", s.handleBackup)
	router.GET("/metadata", s.handleMetadata)
	s.srv = &http.Server{Handler: router, ReadHeaderTimeout: 10 * time.Second}
	return s, nil
}

// Serve serves the listener until the context is canceled.
func (s *Service) Serve(ctx context.Context, l net.Listener) error {
	done := make(chan error, 1)
	go func() { done <- s.srv.Serve(l) }()

	select {
	case err := <-done:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.srv.Shutdown(sctx)
	}
}

func (s *Service) handleBackup(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var since uint64
	if q := r.URL.Query().Get("since"); q != "" {
		var err error
		since, err = strconv.ParseUint(q, 10, 64)
		if err != nil {
			http.Error(w, "invalid since", http.StatusBadRequest)
			return
		}
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Trailer", VersionHeader)

	start := time.Now()
	version, err := s.Store.Backup(w, since)
	if err != nil {
		// The response may be partially written; all we can do is log
		s.logger.Error("Backup failed", "error", err, "since", since)
		return
	}

	// Sent as a trailer - the version is not known until the stream completes
	w.Header().Set(VersionHeader, strconv.FormatUint(version, 10))
	s.logger.Info("Served backup", "since", since, "version", version, "duration", time.Since(start))
}

func (s *Service) handleMetadata(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	info := s.Ledger.Info()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(&Metadata{
		Network:       info.ChainID,
		GenesisHash:   protocol.PublicKey(info.GenesisHash[:]).String(),
		LedgerVersion: info.Version,
	})
}
