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
	"os"

	cmted25519 "github.com/cometbft/cometbft/crypto/ed25519"
	cmtjson "github.com/cometbft/cometbft/libs/json"
	"github.com/cometbft/cometbft/privval"
	"github.com/meridianledger/meridian/pkg/errors"
)

// PrivateKey is an ed25519 private key that round-trips through JSON as hex.
type PrivateKey []byte

func (k PrivateKey) Public() PublicKey {
	return PublicKey(ed25519.PrivateKey(k).Public().(ed25519.PublicKey))
}

func (k PrivateKey) MarshalJSON() ([]byte, error) {
	return json.Marshal(hex.EncodeToString(k))
}

func (k *PrivateKey) UnmarshalJSON(b []byte) error {
	var s string
	err := json.Unmarshal(b, &s)
	if err != nil {
		return err
	}
	v, err := hex.DecodeString(s)
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// NodeIdentity is the validator's identity material: the account it operates
// as, the key it signs consensus messages with, and the key that identifies
// it on the validator network.
type NodeIdentity struct {
	Account      AccountAddress `json:"account"`
	ConsensusKey PrivateKey     `json:"consensusKey"`
	NetworkKey   PrivateKey     `json:"networkKey"`
}

// NewNodeIdentity derives an identity from the given keys.
func NewNodeIdentity(consensus, network ed25519.PrivateKey) *NodeIdentity {
	return &NodeIdentity{
		Account:      AddressForKey(consensus.Public().(ed25519.PublicKey)),
		ConsensusKey: PrivateKey(consensus),
		NetworkKey:   PrivateKey(network),
	}
}

// Validate checks the identity's internal consistency.
func (id *NodeIdentity) Validate() error {
	if len(id.ConsensusKey) != ed25519.PrivateKeySize {
		return errors.BadRequest.With("identity: invalid consensus key")
	}
	if len(id.NetworkKey) != ed25519.PrivateKeySize {
		return errors.BadRequest.With("identity: invalid network key")
	}
	if id.Account != AddressForKey(ed25519.PublicKey(id.ConsensusKey.Public())) {
		return errors.Conflict.With("identity: account does not match consensus key")
	}
	return nil
}

// VerifyAgainstGenesis checks that the identity belongs to the network's
// initial validator set.
func (id *NodeIdentity) VerifyAgainstGenesis(g *GenesisDoc) error {
	err := id.Validate()
	if err != nil {
		return err
	}
	if !g.HasValidator(id.ConsensusKey.Public()) {
		return errors.Unauthorized.WithFormat("identity: consensus key %x is not in the genesis validator set", id.ConsensusKey.Public())
	}
	return nil
}

// LoadIdentity reads an identity file. Both the native JSON format and a
// CometBFT priv_validator_key.json are accepted; the latter carries no
// network key, so one is derived from the consensus key's hash.
func LoadIdentity(path string) (*NodeIdentity, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NotFound.WithFormat("load identity: %w", err)
	}

	if bytes.Contains(b, []byte(`"priv_key"`)) {
		return identityFromCometBFT(b)
	}

	id := new(NodeIdentity)
	err = json.Unmarshal(b, id)
	if err != nil {
		return nil, errors.EncodingError.WithFormat("load identity: %w", err)
	}
	return id, id.Validate()
}

func identityFromCometBFT(b []byte) (*NodeIdentity, error) {
	var pvKey privval.FilePVKey
	err := cmtjson.Unmarshal(b, &pvKey)
	if err != nil {
		return nil, errors.EncodingError.WithFormat("load identity: %w", err)
	}

	sk, ok := pvKey.PrivKey.(cmted25519.PrivKey)
	if !ok {
		return nil, errors.BadRequest.WithFormat("load identity: key type %v not supported", pvKey.PrivKey.Type())
	}

	consensus := ed25519.PrivateKey(sk)
	seed := sha256.Sum256(consensus.Seed())
	return NewNodeIdentity(consensus, ed25519.NewKeyFromSeed(seed[:])), nil
}

// StoreIdentity writes an identity file with owner-only permissions.
func StoreIdentity(id *NodeIdentity, path string) error {
	err := id.Validate()
	if err != nil {
		return err
	}
	b, err := json.MarshalIndent(id, "", "  ")
	if err != nil {
		return errors.EncodingError.Wrap(err)
	}
	return errors.UnknownError.Wrap(os.WriteFile(path, b, 0600))
}
