// Copyright 2025 The Meridian Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

package backup

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dustin/go-humanize"
	"github.com/meridianledger/meridian/pkg/database/keyvalue"
	"github.com/meridianledger/meridian/pkg/errors"
	"github.com/robfig/cron/v3"
)

const snapshotSuffix = ".bak"

// S3Target describes where snapshots are uploaded.
type S3Target struct {
	Bucket string
	Region string
	Prefix string
}

// SchedulerOptions configures scheduled snapshots.
type SchedulerOptions struct {
	Logger *slog.Logger
	Store  keyvalue.Backupable

	// Schedule is a cron expression.
	Schedule string

	// Directory is where snapshot files are written.
	Directory string

	// Retain is the number of snapshots to keep; zero keeps all.
	Retain int

	// S3 enables upload of each snapshot; nil disables it.
	S3 *S3Target
}

// Scheduler writes snapshots of the database on a cron schedule.
type Scheduler struct {
	SchedulerOptions
	logger *slog.Logger
	cron   *cron.Cron
	s3     *s3.Client
}

// NewScheduler builds a snapshot scheduler. The schedule is validated but
// nothing runs until Start.
func NewScheduler(ctx context.Context, opts SchedulerOptions) (*Scheduler, error) {
	if opts.Store == nil {
		return nil, errors.BadRequest.With("missing store")
	}
	if opts.Directory == "" {
		return nil, errors.BadRequest.With("missing snapshot directory")
	}
	err := os.MkdirAll(opts.Directory, 0700)
	if err != nil {
		return nil, errors.UnknownError.WithFormat("create snapshot directory: %w", err)
	}

	s := new(Scheduler)
	s.SchedulerOptions = opts
	s.logger = opts.Logger
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With("module", "backup")

	if opts.S3 != nil {
		cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(opts.S3.Region))
		if err != nil {
			return nil, errors.UnknownError.WithFormat("load AWS config: %w", err)
		}
		s.s3 = s3.NewFromConfig(cfg)
	}

	s.cron = cron.New()
	_, err = s.cron.AddFunc(opts.Schedule, func() {
		err := s.Snapshot(context.Background())
		if err != nil {
			s.logger.Error("Snapshot failed", "error", err)
		}
	})
	if err != nil {
		return nil, errors.BadRequest.WithFormat("invalid schedule %q: %w", opts.Schedule, err)
	}
	return s, nil
}

// Start begins running the schedule.
func (s *Scheduler) Start() { s.cron.Start() }

// Stop stops the schedule, waiting for a running snapshot to finish.
func (s *Scheduler) Stop() { <-s.cron.Stop().Done() }

// Snapshot writes a full snapshot, prunes old ones, and uploads to S3 if
// configured.
func (s *Scheduler) Snapshot(ctx context.Context) error {
	name := fmt.Sprintf("snapshot-%s%s", time.Now().UTC().Format("20060102-150405"), snapshotSuffix)
	path := filepath.Join(s.Directory, name)

	f, err := os.Create(path)
	if err != nil {
		return errors.UnknownError.WithFormat("create snapshot: %w", err)
	}

	start := time.Now()
	version, err := s.Store.Backup(f, 0)
	if err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return errors.UnknownError.WithFormat("write snapshot: %w", err)
	}
	err = f.Close()
	if err != nil {
		return errors.UnknownError.WithFormat("close snapshot: %w", err)
	}

	st, err := os.Stat(path)
	if err != nil {
		return errors.UnknownError.Wrap(err)
	}
	s.logger.Info("Wrote snapshot", "file", name, "size", humanize.Bytes(uint64(st.Size())), "version", version, "duration", time.Since(start))

	err = s.prune()
	if err != nil {
		s.logger.Error("Failed to prune snapshots", "error", err)
	}

	if s.s3 != nil {
		err = s.upload(ctx, path, name)
		if err != nil {
			return errors.UnknownError.WithFormat("upload snapshot: %w", err)
		}
	}
	return nil
}

// prune removes the oldest snapshots beyond the retention count. Snapshot
// names sort chronologically.
func (s *Scheduler) prune() error {
	if s.Retain <= 0 {
		return nil
	}

	entries, err := os.ReadDir(s.Directory)
	if err != nil {
		return err
	}

	var snapshots []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), snapshotSuffix) {
			snapshots = append(snapshots, e.Name())
		}
	}
	sort.Strings(snapshots)

	for len(snapshots) > s.Retain {
		name := snapshots[0]
		snapshots = snapshots[1:]
		err = os.Remove(filepath.Join(s.Directory, name))
		if err != nil {
			return err
		}
		s.logger.Info("Pruned snapshot", "file", name)
	}
	return nil
}

func (s *Scheduler) upload(ctx context.Context, path, name string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	key := name
	if s.S3.Prefix != "" {
		key = strings.TrimSuffix(s.S3.Prefix, "/") + "/" + name
	}
	_, err = s.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket: &s.S3.Bucket,
		Key:    &key,
		Body:   f,
	})
	if err != nil {
		return err
	}
	s.logger.Info("Uploaded snapshot", "bucket", s.S3.Bucket, "key", key)
	return nil
}
