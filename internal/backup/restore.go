// Copyright 2025 The Meridian Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

package backup

import (
	"io"
	"os"

	"github.com/meridianledger/meridian/pkg/database/keyvalue"
	"github.com/meridianledger/meridian/pkg/errors"
)

// Restore loads a backup stream into the store.
func Restore(store keyvalue.Backupable, r io.Reader) error {
	err := store.Restore(r)
	if err != nil {
		return errors.UnknownError.WithFormat("restore: %w", err)
	}
	return nil
}

// CheckEmpty verifies the directory does not exist or is empty. Restoring over
// live data is refused.
func CheckEmpty(dir string) error {
	entries, err := os.ReadDir(dir)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return nil
	case err != nil:
		return errors.UnknownError.Wrap(err)
	case len(entries) > 0:
		return errors.Conflict.WithFormat("%s is not empty", dir)
	default:
		return nil
	}
}
