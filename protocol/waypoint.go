// Copyright 2025 The Meridian Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

package protocol

import (
	"encoding/hex"
	"encoding/json"
	"os"
	"strconv"
	"strings"

	"github.com/meridianledger/meridian/pkg/errors"
)

// Waypoint is a trusted checkpoint - a ledger version and the state hash at
// that version. A node will only sync history that agrees with its waypoint.
// The text form is "<version>:<hex hash>".
type Waypoint struct {
	Version uint64
	Hash    [32]byte
}

// WaypointForGenesis returns the waypoint for version zero of a chain, which
// commits to the genesis document itself.
func WaypointForGenesis(g *GenesisDoc) Waypoint {
	return Waypoint{Version: 0, Hash: g.Hash()}
}

// ParseWaypoint parses the "<version>:<hex hash>" text form.
func ParseWaypoint(s string) (Waypoint, error) {
	var w Waypoint
	i := strings.IndexByte(s, ':')
	if i < 0 {
		return w, errors.BadRequest.WithFormat("invalid waypoint %q: missing ':'", s)
	}

	v, err := strconv.ParseUint(s[:i], 10, 64)
	if err != nil {
		return w, errors.BadRequest.WithFormat("invalid waypoint version %q: %w", s[:i], err)
	}

	h, err := hex.DecodeString(s[i+1:])
	if err != nil {
		return w, errors.BadRequest.WithFormat("invalid waypoint hash %q: %w", s[i+1:], err)
	}
	if len(h) != len(w.Hash) {
		return w, errors.BadRequest.WithFormat("invalid waypoint hash %q: want %d bytes, got %d", s[i+1:], len(w.Hash), len(h))
	}

	w.Version = v
	copy(w.Hash[:], h)
	return w, nil
}

func (w Waypoint) String() string {
	return strconv.FormatUint(w.Version, 10) + ":" + hex.EncodeToString(w.Hash[:])
}

// VerifyGenesis checks that the waypoint commits to the given genesis
// document. Only version-zero waypoints can be checked against genesis alone.
func (w Waypoint) VerifyGenesis(g *GenesisDoc) error {
	if w.Version != 0 {
		return nil
	}
	if w.Hash != g.Hash() {
		return errors.Conflict.With("waypoint does not match genesis")
	}
	return nil
}

func (w Waypoint) MarshalJSON() ([]byte, error) {
	return json.Marshal(w.String())
}

func (w *Waypoint) UnmarshalJSON(b []byte) error {
	var s string
	err := json.Unmarshal(b, &s)
	if err != nil {
		return err
	}
	v, err := ParseWaypoint(s)
	if err != nil {
		return err
	}
	*w = v
	return nil
}

// LoadWaypoint reads a waypoint from a text file, ignoring surrounding
// whitespace.
func LoadWaypoint(path string) (Waypoint, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Waypoint{}, errors.NotFound.WithFormat("load waypoint: %w", err)
	}
	return ParseWaypoint(strings.TrimSpace(string(b)))
}

// StoreWaypoint writes a waypoint to a text file.
func StoreWaypoint(w Waypoint, path string) error {
	return errors.UnknownError.Wrap(os.WriteFile(path, []byte(w.String()+"\n"), 0644))
}
