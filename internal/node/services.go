// Copyright 2025 The Meridian Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

package node

import (
	"context"
	"crypto/ed25519"
	"log/slog"
	"net"
	"net/http"
	"net/http/pprof"
	"path/filepath"
	"time"

	meridian "github.com/meridianledger/meridian"
	"github.com/meridianledger/meridian/internal/api"
	"github.com/meridianledger/meridian/internal/backup"
	"github.com/meridianledger/meridian/internal/faucet"
	"github.com/meridianledger/meridian/internal/network"
	"github.com/meridianledger/meridian/pkg/database/keyvalue"
	"github.com/meridianledger/meridian/pkg/database/keyvalue/badger"
	"github.com/meridianledger/meridian/pkg/database/keyvalue/memory"
	"github.com/meridianledger/meridian/pkg/errors"
	"github.com/meridianledger/meridian/protocol"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

func (i *Instance) startStorage() (keyvalue.Store, error) {
	typ, path := "badger", "meridian.db"
	if i.config.Storage != nil {
		if i.config.Storage.Type != "" {
			typ = i.config.Storage.Type
		}
		if i.config.Storage.Path != "" {
			path = i.config.Storage.Path
		}
	}

	var store keyvalue.Store
	var err error
	switch typ {
	case "badger":
		store, err = badger.New(filepath.Join(i.dataDir, path))
	case "memory":
		store = memory.New()
	default:
		return nil, errors.BadRequest.WithFormat("storage type %q is not supported", typ)
	}
	if err != nil {
		return nil, err
	}

	i.cleanup("storage", func(context.Context) error { return store.Close() })
	return store, nil
}

func (i *Instance) startInstrumentation() error {
	// Bridge the node's own meters into the Prometheus registry
	exporter, err := otelprom.New()
	if err != nil {
		return errors.UnknownError.WithFormat("start telemetry: %w", err)
	}
	otel.SetMeterProvider(sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter)))

	l, err := net.Listen("tcp", i.config.Instrumentation.Listen)
	if err != nil {
		return errors.UnknownError.WithFormat("listen %s: %w", i.config.Instrumentation.Listen, err)
	}

	h := promhttp.InstrumentMetricHandler(
		prometheus.DefaultRegisterer, promhttp.HandlerFor(
			prometheus.DefaultGatherer,
			promhttp.HandlerOpts{MaxRequestsInFlight: 16},
		),
	)
	i.serveHTTP("metrics", l, h)

	if i.config.Instrumentation.PprofListen != "" {
		l, err := net.Listen("tcp", i.config.Instrumentation.PprofListen)
		if err != nil {
			return errors.UnknownError.WithFormat("listen %s: %w", i.config.Instrumentation.PprofListen, err)
		}

		mux := http.NewServeMux()
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
		i.serveHTTP("pprof", l, mux)
	}
	return nil
}

// serveHTTP serves a plain HTTP server over the listener for the life of the
// instance.
func (i *Instance) serveHTTP(name string, l net.Listener, h http.Handler) {
	srv := &http.Server{Handler: h, ReadHeaderTimeout: time.Minute}
	i.serve(name, func(context.Context) error {
		err := srv.Serve(l)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	i.cleanup(name, srv.Shutdown)
}

func (i *Instance) startNetwork() error {
	cfg := i.config.P2P

	listen, err := network.ParseMultiaddrs(cfg.Listen)
	if err != nil {
		return err
	}
	secondary, err := network.ParseMultiaddrs(cfg.SecondaryListen)
	if err != nil {
		return err
	}
	peers, err := network.ParsePeers(cfg.BootstrapPeers)
	if err != nil {
		return err
	}

	opts := network.Options{
		Network:         i.inputs.ChainID,
		GenesisHash:     i.inputs.GenesisHash,
		Key:             ed25519.PrivateKey(i.inputs.Identity.NetworkKey),
		Listen:          listen,
		SecondaryListen: secondary,
		BootstrapPeers:  peers,
		LedgerVersion:   func() uint64 { return i.ledger.Info().Version },
	}
	if cfg.External != "" {
		ext, err := network.ParseMultiaddrs([]string{cfg.External})
		if err != nil {
			return err
		}
		opts.External = ext[0]
	}

	i.network, err = network.Start(i.context, opts)
	if err != nil {
		return err
	}
	i.cleanup("network", func(context.Context) error { return i.network.Close() })

	// Admit transactions gossiped by other validators
	i.run(func() {
		err := i.network.Subscribe(i.context, func(tx *protocol.SignedTransaction) {
			err := tx.Verify(i.inputs.ChainID)
			if err == nil {
				err = i.ledger.Pending(tx)
			}
			if err != nil {
				slog.Debug("Rejected gossiped transaction", "error", err, "module", "node")
			}
		})
		if err != nil {
			slog.Error("Gossip subscription failed", "error", err, "module", "node")
			i.shutdown()
		}
	})
	return nil
}

func (i *Instance) startAPI() error {
	jrpc, err := api.NewJrpc(api.Options{
		Logger:  i.logger,
		Network: i.inputs.ChainID,
		NodeID:  i.id,
		Version: meridian.Version,
		Ledger:  i.ledger,
		Submit:  i.submit,
	})
	if err != nil {
		return err
	}

	opts := api.ServerOptions{}
	if cfg := i.config.API; cfg != nil {
		opts.CorsOrigins = cfg.CorsOrigins
		if cfg.ConnectionLimit != nil {
			opts.ConnectionLimit = *cfg.ConnectionLimit
		}
		opts.ReadHeaderTimeout = cfg.ReadHeaderTimeout.Get(0)
	}

	listeners, err := api.Listen(i.config.API.Listen)
	if err != nil {
		return err
	}

	srv := api.NewServer(jrpc, opts)
	i.serve("api", func(ctx context.Context) error { return srv.Serve(ctx, listeners) })
	return nil
}

// submit admits a transaction: queue it, then gossip it to the validator
// network.
func (i *Instance) submit(ctx context.Context, tx *protocol.SignedTransaction) error {
	err := i.ledger.Pending(tx)
	if err != nil {
		return err
	}
	err = i.network.Publish(ctx, tx)
	if err != nil {
		slog.Warn("Failed to gossip transaction", "error", err, "module", "node")
	}
	return nil
}

func (i *Instance) startBackup(store keyvalue.Store) error {
	cfg := i.config.Backup
	bstore, ok := store.(keyvalue.Backupable)
	if !ok {
		// A backup listener over storage that cannot back itself up would be
		// a declared port that never binds
		if cfg != nil && cfg.Listen != "" {
			return errors.Conflict.WithFormat("storage type %q does not support backups", i.config.Storage.Type)
		}
		slog.Info("Storage does not support backups, not starting the backup service", "module", "node")
		return nil
	}
	if cfg == nil || cfg.Listen == "" {
		return errors.BadRequest.With("backup.listen is required")
	}

	svc, err := backup.NewService(backup.Options{
		Logger: i.logger,
		Store:  bstore,
		Ledger: i.ledger,
	})
	if err != nil {
		return err
	}

	l, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return errors.UnknownError.WithFormat("listen %s: %w", cfg.Listen, err)
	}
	i.serve("backup", func(ctx context.Context) error { return svc.Serve(ctx, l) })

	if cfg.Schedule == "" {
		return nil
	}

	opts := backup.SchedulerOptions{
		Logger:    i.logger,
		Store:     bstore,
		Schedule:  cfg.Schedule,
		Directory: filepath.Join(i.dataDir, cfg.Directory),
	}
	if cfg.Retain != nil {
		opts.Retain = *cfg.Retain
	}
	if s3 := cfg.S3; s3 != nil {
		opts.S3 = &backup.S3Target{Bucket: s3.Bucket, Region: s3.Region, Prefix: s3.Prefix}
	}

	sched, err := backup.NewScheduler(i.context, opts)
	if err != nil {
		return err
	}
	sched.Start()
	i.cleanup("backup scheduler", func(context.Context) error { sched.Stop(); return nil })
	return nil
}

func (i *Instance) startFaucet() error {
	cfg := i.config.Faucet
	if cfg == nil || cfg.Enable == nil || !*cfg.Enable {
		return nil
	}
	if cfg.Listen == "" {
		return errors.BadRequest.With("faucet.listen is required")
	}

	opts := faucet.Options{Logger: i.logger, Ledger: i.ledger}
	if cfg.MaximumAmount != nil {
		opts.MaximumAmount = *cfg.MaximumAmount
	}
	f, err := faucet.New(opts)
	if err != nil {
		return err
	}

	l, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return errors.UnknownError.WithFormat("listen %s: %w", cfg.Listen, err)
	}
	i.serve("faucet", func(ctx context.Context) error { return f.Serve(ctx, l) })
	return nil
}
