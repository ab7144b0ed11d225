// Copyright 2025 The Meridian Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

// Package node assembles the validator node: it verifies the mounted inputs,
// opens storage, and starts the network, API, metrics, backup, and faucet
// services. If any input is inconsistent or any listener cannot bind, startup
// fails and nothing is left running.
package node

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/meridianledger/meridian/config"
	"github.com/meridianledger/meridian/internal/ledger"
	"github.com/meridianledger/meridian/internal/logging"
	"github.com/meridianledger/meridian/internal/network"
	"github.com/meridianledger/meridian/pkg/errors"
	"github.com/meridianledger/meridian/protocol"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var meter = otel.Meter("github.com/meridianledger/meridian/internal/node")
var serviceUp = must(meter.Int64UpDownCounter("meridian_service_up"))

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

const minDiskSpace = 0.05

// Instance is a running node.
type Instance struct {
	config  *config.Config
	rootDir string
	dataDir string
	id      string

	running  *sync.WaitGroup    // tracks jobs that want a graceful shutdown
	context  context.Context    // canceled when the instance shuts down
	shutdown context.CancelFunc // shuts down the instance
	logger   *slog.Logger

	inputs  *Inputs
	ledger  *ledger.Ledger
	network *network.Node
}

// Start creates an instance and starts it.
func Start(ctx context.Context, cfg *config.Config) (*Instance, error) {
	inst, err := New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return inst, inst.Start()
}

// New creates an instance without starting it.
func New(ctx context.Context, cfg *config.Config) (*Instance, error) {
	inst := new(Instance)
	inst.config = cfg
	inst.running = new(sync.WaitGroup)
	inst.context, inst.shutdown = context.WithCancel(ctx)

	var err error
	if cfg.FilePath() != "" {
		inst.rootDir, err = filepath.Abs(filepath.Dir(cfg.FilePath()))
	} else {
		inst.rootDir, err = os.Getwd()
	}
	if err != nil {
		return nil, err
	}

	// Setup logging
	var logOpts logging.Options
	if cfg.Logging != nil {
		logOpts.Format = cfg.Logging.Format
		logOpts.Rules, err = logging.ParseRules(cfg.Logging.Rules)
		if err != nil {
			return nil, errors.UnknownError.WithFormat("start logging: %w", err)
		}
	}
	inst.logger, err = logging.Start(logOpts)
	if err != nil {
		return nil, errors.UnknownError.WithFormat("start logging: %w", err)
	}

	return inst, nil
}

// Done returns a channel that is closed when the instance shuts down.
func (i *Instance) Done() <-chan struct{} { return i.context.Done() }

// ID returns the instance's ID, which is derived from its network key.
func (i *Instance) ID() string { return i.id }

// Ledger returns the instance's ledger. Ledger returns nil before Start.
func (i *Instance) Ledger() *ledger.Ledger { return i.ledger }

// Start verifies the inputs and starts every service. If anything fails,
// everything already started is shut down.
func (inst *Instance) Start() (err error) {
	// Cleanup if boot fails
	defer func() {
		if err != nil {
			inst.Stop()
		}
	}()

	// Verify the mounted inputs before binding a single port
	inst.inputs, err = VerifyInputs(inst.config)
	if err != nil {
		return err
	}
	inst.id = uuid.NewSHA1(uuid.Nil, inst.inputs.Identity.NetworkKey.Public()).String()

	// Ensure the disk does not fill up (and is not currently full). On first
	// boot the data directory does not exist yet, so create it before
	// measuring.
	inst.dataDir = inst.path(inst.config.DataDir)
	err = os.MkdirAll(inst.dataDir, 0700)
	if err != nil {
		return errors.UnknownError.WithFormat("create data directory: %w", err)
	}
	free, err := diskUsage(inst.dataDir)
	if err != nil {
		return err
	} else if free < minDiskSpace {
		return errors.FatalError.With("disk is full")
	}
	inst.run(inst.checkDiskSpace)

	// Storage and ledger
	store, err := inst.startStorage()
	if err != nil {
		return errors.UnknownError.WithFormat("start storage: %w", err)
	}
	inst.ledger, err = openLedger(store, inst.inputs)
	if err != nil {
		return err
	}

	startOrder := []struct {
		name  string
		start func() error
	}{
		{"instrumentation", inst.startInstrumentation},
		{"network", inst.startNetwork},
		{"api", inst.startAPI},
		{"backup", func() error { return inst.startBackup(store) }},
		{"faucet", inst.startFaucet},
	}
	for _, svc := range startOrder {
		slog.InfoContext(inst.context, "Starting", "module", "node", "service", svc.name)
		err = svc.start()
		if err != nil {
			return errors.UnknownError.WithFormat("start service %s: %w", svc.name, err)
		}

		name := svc.name
		serviceUp.Add(inst.context, 1, metric.WithAttributes(attribute.String("type", name)))
		inst.cleanup("service metrics", func(context.Context) error {
			serviceUp.Add(context.Background(), -1, metric.WithAttributes(attribute.String("type", name)))
			return nil
		})
	}

	slog.InfoContext(inst.context, "Node is up", "module", "node",
		"id", inst.id,
		"network", inst.inputs.ChainID,
		"genesis", protocol.PublicKey(inst.inputs.GenesisHash[:]).String())
	return nil
}

// Stop shuts the instance down and waits for every job to finish.
func (i *Instance) Stop() {
	i.shutdown()
	i.running.Wait()
}

func (i *Instance) run(fn func()) {
	i.running.Add(1)
	go func() {
		defer i.running.Done()
		fn()
	}()
}

func (i *Instance) cleanup(name string, fn func(context.Context) error) {
	i.running.Add(1)
	go func() {
		defer i.running.Done()
		<-i.context.Done()

		slog.Debug("Stopping", "process", name)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := fn(ctx)
		if err != nil {
			slog.Error("Error during shutdown", "error", err, "process", name)
		} else {
			slog.Debug("Stopped", "process", name)
		}
	}()
}

// serve runs fn as a job and shuts the instance down if it fails. Services
// must not fail while the node runs.
func (i *Instance) serve(name string, fn func(context.Context) error) {
	i.run(func() {
		err := fn(i.context)
		if err != nil {
			slog.Error("Server stopped", "error", err, "service", name, "module", "node")
			i.shutdown()
		}
	})
}

func (i *Instance) path(path ...string) string {
	if len(path) == 0 {
		return i.rootDir
	}
	if filepath.IsAbs(path[0]) {
		return filepath.Join(path...)
	}
	return filepath.Join(append([]string{i.rootDir}, path...)...)
}

func (i *Instance) checkDiskSpace() {
	for {
		free, err := diskUsage(i.dataDir)
		if err != nil {
			i.logger.Error("Failed to get disk size, shutting down", "error", err, "module", "node")
			i.shutdown()
			return
		}

		if free < minDiskSpace {
			i.logger.Error("Less than 5% disk space available, shutting down", "free", free, "module", "node")
			i.shutdown()
			return
		}

		i.logger.Info("Disk usage", "free", free, "module", "node")

		select {
		case <-time.After(10 * time.Minute):
		case <-i.context.Done():
			return
		}
	}
}
