// Copyright 2025 The Meridian Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

// Package keyvalue defines the key-value storage interface the node persists
// its state through.
package keyvalue

import (
	"io"

	"github.com/meridianledger/meridian/pkg/errors"
)

// ErrNotFound is returned by Get for missing keys.
var ErrNotFound = errors.NotFound.With("key not found")

// Store is a key-value store.
type Store interface {
	// Get returns the value for a key, or ErrNotFound.
	Get(key []byte) ([]byte, error)

	// Put sets the value for a key.
	Put(key, value []byte) error

	// Delete removes a key. Deleting a missing key is not an error.
	Delete(key []byte) error

	// ForEach calls fn for every key with the given prefix. Iteration stops
	// on the first error.
	ForEach(prefix []byte, fn func(key, value []byte) error) error

	// Close releases the store. The store must not be used afterwards.
	Close() error
}

// Backupable is implemented by stores that support streaming backups.
type Backupable interface {
	// Backup writes entries newer than since to w and returns the version the
	// backup is current to.
	Backup(w io.Writer, since uint64) (uint64, error)

	// Restore loads a backup stream produced by Backup.
	Restore(r io.Reader) error
}
