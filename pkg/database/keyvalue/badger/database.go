// Copyright 2025 The Meridian Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

// Package badger implements the key-value store on Badger.
package badger

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/dgraph-io/badger"
	"github.com/meridianledger/meridian/pkg/database/keyvalue"
	"github.com/meridianledger/meridian/pkg/errors"
)

// Truncate controls whether Badger is configured to truncate corrupted data.
// Especially on Windows, if the node is terminated abruptly, setting this may
// be necessary to recover the state of the database.
var Truncate = false

type Database struct {
	badger *badger.DB
	ready  bool
	mu     sync.RWMutex
}

var _ keyvalue.Store = (*Database)(nil)
var _ keyvalue.Backupable = (*Database)(nil)

// New opens a Badger database at the given directory, creating it if
// necessary, and starts the garbage collection loop.
func New(filepath string) (*Database, error) {
	err := os.MkdirAll(filepath, 0700)
	if err != nil {
		return nil, errors.UnknownError.WithFormat("open badger: create %q: %w", filepath, err)
	}

	opts := badger.DefaultOptions(filepath)
	opts = opts.WithLogger(slogger{})
	if Truncate {
		opts = opts.WithTruncate(true)
	}

	d := new(Database)
	d.badger, err = badger.Open(opts)
	if err != nil {
		return nil, err
	}
	d.ready = true
	mDbOpen.Inc()

	// Run GC every hour
	go d.gc()

	return d, nil
}

func (d *Database) Get(key []byte) ([]byte, error) {
	l, err := d.lock(false)
	if err != nil {
		return nil, err
	}
	defer l.Unlock()

	var value []byte
	err = d.badger.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	switch {
	case err == nil:
		return value, nil
	case errors.Is(err, badger.ErrKeyNotFound):
		return nil, keyvalue.ErrNotFound
	default:
		return nil, errors.UnknownError.WithFormat("get %x: %w", key, err)
	}
}

func (d *Database) Put(key, value []byte) error {
	l, err := d.lock(false)
	if err != nil {
		return err
	}
	defer l.Unlock()

	start := time.Now()
	defer func() { mCommitDuration.Set(time.Since(start).Seconds()) }()

	return d.badger.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
}

func (d *Database) Delete(key []byte) error {
	l, err := d.lock(false)
	if err != nil {
		return err
	}
	defer l.Unlock()

	return d.badger.Update(func(txn *badger.Txn) error {
		err := txn.Delete(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
}

func (d *Database) ForEach(prefix []byte, fn func(key, value []byte) error) error {
	l, err := d.lock(false)
	if err != nil {
		return err
	}
	defer l.Unlock()

	return d.badger.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			err = fn(item.KeyCopy(nil), value)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// Backup streams entries newer than since to w.
func (d *Database) Backup(w io.Writer, since uint64) (uint64, error) {
	l, err := d.lock(false)
	if err != nil {
		return 0, err
	}
	defer l.Unlock()

	return d.badger.Backup(w, since)
}

// Restore loads a backup stream.
func (d *Database) Restore(r io.Reader) error {
	l, err := d.lock(false)
	if err != nil {
		return err
	}
	defer l.Unlock()

	return d.badger.Load(r, 256)
}

// Close closes the underlying database.
func (d *Database) Close() error {
	l, err := d.lock(true)
	if err != nil {
		return err
	}
	defer l.Unlock()

	d.ready = false
	mDbOpen.Dec()
	return d.badger.Close()
}

// lock acquires the ready-lock. Badger panics if the database is used after
// it is closed, so every operation holds the read lock and Close holds the
// write lock.
func (d *Database) lock(closing bool) (sync.Locker, error) {
	var l sync.Locker
	if closing {
		l = &d.mu
	} else {
		l = d.mu.RLocker()
	}

	l.Lock()
	if !d.ready {
		l.Unlock()
		return nil, errors.NotReady.With("badger: database is closed")
	}
	return l, nil
}

func (d *Database) gc() {
	for {
		time.Sleep(time.Hour)

		l, err := d.lock(false)
		if err != nil {
			return // Closed
		}

		start := time.Now()
		mGcRun.Inc()

		// Run GC if 50% space could be reclaimed
		err = d.badger.RunValueLogGC(0.5)
		switch {
		case err == nil, errors.Is(err, badger.ErrNoRewrite):
			// Ok
		default:
			slogger{}.Errorf("badger GC failed: %v", err)
		}

		mGcDuration.Set(time.Since(start).Seconds())
		l.Unlock()
	}
}
