// Copyright 2025 The Meridian Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

// Package protocol defines the boundary types of a Meridian network: chain
// IDs, account addresses, the genesis document, waypoints, node identities,
// and signed transactions.
package protocol

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/meridianledger/meridian/pkg/errors"
)

// ChainID identifies the network a node or transaction belongs to. Zero is
// not a valid chain ID.
type ChainID uint8

// Well-known networks.
const (
	PreMainnet ChainID = 1
	Testnet    ChainID = 2
	Devnet     ChainID = 3
	Testing    ChainID = 4
)

// Conventional port assignments for a validator deployment.
const (
	PortValidator     = 6180 // validator-to-validator network
	PortFullNode      = 6181 // secondary (full node) network listener
	PortAPI           = 8000 // admission control / client-facing API
	PortAPISecondary  = 8080
	PortMetrics       = 9101 // metrics exposition
	PortBackupService = 6186 // backup service
)

// ParseChainID parses a chain ID from a network name or a number.
func ParseChainID(s string) (ChainID, error) {
	switch strings.ToLower(s) {
	case "premainnet":
		return PreMainnet, nil
	case "testnet":
		return Testnet, nil
	case "devnet":
		return Devnet, nil
	case "testing":
		return Testing, nil
	}

	n, err := strconv.ParseUint(s, 10, 8)
	if err != nil {
		return 0, errors.BadRequest.WithFormat("invalid chain ID %q", s)
	}
	if n == 0 {
		return 0, errors.BadRequest.With("chain ID 0 is not allowed")
	}
	return ChainID(n), nil
}

func (c ChainID) String() string {
	switch c {
	case PreMainnet:
		return "premainnet"
	case Testnet:
		return "testnet"
	case Devnet:
		return "devnet"
	case Testing:
		return "testing"
	}
	return strconv.FormatUint(uint64(c), 10)
}

// IsEphemeral returns true for networks whose state has no durability
// guarantee (devnet and local testing chains).
func (c ChainID) IsEphemeral() bool {
	return c == Devnet || c == Testing
}

func (c ChainID) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *ChainID) UnmarshalJSON(b []byte) error {
	var s string
	err := json.Unmarshal(b, &s)
	if err != nil {
		return err
	}
	id, err := ParseChainID(s)
	if err != nil {
		return err
	}
	*c = id
	return nil
}
