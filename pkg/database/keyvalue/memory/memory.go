// Copyright 2025 The Meridian Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

// Package memory implements an in-memory key-value store, primarily for
// tests.
package memory

import (
	"bytes"
	"sort"
	"sync"

	"github.com/meridianledger/meridian/pkg/database/keyvalue"
	"github.com/meridianledger/meridian/pkg/errors"
)

type Database struct {
	mu      sync.RWMutex
	entries map[string][]byte
	closed  bool
}

var _ keyvalue.Store = (*Database)(nil)

func New() *Database {
	return &Database{entries: map[string][]byte{}}
}

func (d *Database) Get(key []byte) ([]byte, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return nil, errors.NotReady.With("memory: database is closed")
	}

	v, ok := d.entries[string(key)]
	if !ok {
		return nil, keyvalue.ErrNotFound
	}
	u := make([]byte, len(v))
	copy(u, v)
	return u, nil
}

func (d *Database) Put(key, value []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return errors.NotReady.With("memory: database is closed")
	}

	v := make([]byte, len(value))
	copy(v, value)
	d.entries[string(key)] = v
	return nil
}

func (d *Database) Delete(key []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return errors.NotReady.With("memory: database is closed")
	}

	delete(d.entries, string(key))
	return nil
}

func (d *Database) ForEach(prefix []byte, fn func(key, value []byte) error) error {
	d.mu.RLock()
	if d.closed {
		d.mu.RUnlock()
		return errors.NotReady.With("memory: database is closed")
	}

	// Iterate over a sorted snapshot so fn may modify the store
	keys := make([]string, 0, len(d.entries))
	for k := range d.entries {
		if bytes.HasPrefix([]byte(k), prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	snapshot := make(map[string][]byte, len(keys))
	for _, k := range keys {
		snapshot[k] = d.entries[k]
	}
	d.mu.RUnlock()

	for _, k := range keys {
		err := fn([]byte(k), snapshot[k])
		if err != nil {
			return err
		}
	}
	return nil
}

func (d *Database) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}
