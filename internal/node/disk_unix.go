// Copyright 2025 The Meridian Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

//go:build !windows

package node

import (
	"math"

	"golang.org/x/sys/unix"
)

// diskUsage returns the fraction of the filesystem that is free.
func diskUsage(path string) (float64, error) {
	var stat unix.Statfs_t
	err := unix.Statfs(path, &stat)
	if err != nil {
		return math.NaN(), err
	}
	return float64(stat.Bavail) / float64(stat.Blocks), nil
}
