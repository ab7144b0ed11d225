// Copyright 2025 The Meridian Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

package protocol

import (
	"bytes"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/meridianledger/meridian/pkg/errors"
)

// AccountAddress is a 32-byte account identifier derived from the account's
// authentication key.
type AccountAddress [32]byte

// AddressForKey derives an account address from an ed25519 public key.
func AddressForKey(key ed25519.PublicKey) AccountAddress {
	return sha256.Sum256(key)
}

// ParseAddress parses a hex account address, with or without a 0x prefix.
func ParseAddress(s string) (AccountAddress, error) {
	s = trimHexPrefix(s)
	var a AccountAddress
	b, err := hex.DecodeString(s)
	if err != nil {
		return a, errors.BadRequest.WithFormat("invalid address %q: %w", s, err)
	}
	if len(b) != len(a) {
		return a, errors.BadRequest.WithFormat("invalid address %q: want %d bytes, got %d", s, len(a), len(b))
	}
	copy(a[:], b)
	return a, nil
}

func trimHexPrefix(s string) string {
	if len(s) >= 2 && (s[:2] == "0x" || s[:2] == "0X") {
		return s[2:]
	}
	return s
}

func (a AccountAddress) String() string { return hex.EncodeToString(a[:]) }

// Equal returns true if the addresses are the same.
func (a AccountAddress) Equal(b AccountAddress) bool { return bytes.Equal(a[:], b[:]) }

// IsZero returns true for the all-zero address.
func (a AccountAddress) IsZero() bool { return a == AccountAddress{} }

func (a AccountAddress) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

func (a *AccountAddress) UnmarshalJSON(b []byte) error {
	var s string
	err := json.Unmarshal(b, &s)
	if err != nil {
		return err
	}
	v, err := ParseAddress(s)
	if err != nil {
		return err
	}
	*a = v
	return nil
}
