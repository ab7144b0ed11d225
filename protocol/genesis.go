// Copyright 2025 The Meridian Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

package protocol

import (
	"bytes"
	"compress/gzip"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/meridianledger/meridian/pkg/errors"
)

// PublicKey is an ed25519 public key that round-trips through JSON as hex.
type PublicKey []byte

func (k PublicKey) String() string { return hex.EncodeToString(k) }

func (k PublicKey) Equal(l PublicKey) bool { return bytes.Equal(k, l) }

func (k PublicKey) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

func (k *PublicKey) UnmarshalJSON(b []byte) error {
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

// GenesisValidator describes one member of the initial validator set.
type GenesisValidator struct {
	Name         string    `json:"name"`
	ConsensusKey PublicKey `json:"consensusKey"`
	NetworkKey   PublicKey `json:"networkKey,omitempty"`
	// Address is the account the validator operates as
	Address AccountAddress `json:"address,omitempty"`
}

// GenesisAccount seeds an account balance at genesis.
type GenesisAccount struct {
	Address AccountAddress `json:"address"`
	Balance uint64         `json:"balance"`
}

// GenesisDoc is the initial state of a network. Its serialized form - the
// genesis blob - is gzipped canonical JSON.
type GenesisDoc struct {
	ChainID     ChainID            `json:"chainId"`
	GenesisTime time.Time          `json:"genesisTime"`
	Validators  []GenesisValidator `json:"validators"`
	Accounts    []GenesisAccount   `json:"accounts,omitempty"`
}

// Validate checks the structural invariants of the document.
func (g *GenesisDoc) Validate() error {
	if g.ChainID == 0 {
		return errors.BadRequest.With("genesis: chain ID 0 is not allowed")
	}
	if len(g.Validators) == 0 {
		return errors.BadRequest.With("genesis: no validators")
	}

	seen := map[string]bool{}
	for _, v := range g.Validators {
		if len(v.ConsensusKey) != ed25519.PublicKeySize {
			return errors.BadRequest.WithFormat("genesis: validator %q: invalid consensus key", v.Name)
		}
		k := v.ConsensusKey.String()
		if seen[k] {
			return errors.Conflict.WithFormat("genesis: validator %q: duplicate consensus key", v.Name)
		}
		seen[k] = true
	}
	return nil
}

// HasValidator returns true if the given consensus key belongs to the initial
// validator set.
func (g *GenesisDoc) HasValidator(key PublicKey) bool {
	for _, v := range g.Validators {
		if v.ConsensusKey.Equal(key) {
			return true
		}
	}
	return false
}

// Hash returns the deterministic SHA-256 hash of the document. The hash is
// computed over the canonical (uncompressed) JSON encoding.
func (g *GenesisDoc) Hash() [32]byte {
	b, err := json.Marshal(g)
	if err != nil {
		// GenesisDoc contains nothing that can fail to marshal
		panic(err)
	}
	return sha256.Sum256(b)
}

// MarshalBlob encodes the document as a genesis blob.
func (g *GenesisDoc) MarshalBlob() ([]byte, error) {
	err := g.Validate()
	if err != nil {
		return nil, err
	}

	buf := new(bytes.Buffer)
	w := gzip.NewWriter(buf)
	err = json.NewEncoder(w).Encode(g)
	if err != nil {
		return nil, errors.EncodingError.Wrap(err)
	}
	err = w.Close()
	if err != nil {
		return nil, errors.EncodingError.Wrap(err)
	}
	return buf.Bytes(), nil
}

// UnmarshalBlob decodes a genesis blob.
func UnmarshalBlob(b []byte) (*GenesisDoc, error) {
	r, err := gzip.NewReader(bytes.NewReader(b))
	if err != nil {
		return nil, errors.EncodingError.WithFormat("genesis blob: %w", err)
	}
	defer func() { _ = r.Close() }()

	g := new(GenesisDoc)
	err = json.NewDecoder(r).Decode(g)
	if err != nil {
		return nil, errors.EncodingError.WithFormat("genesis blob: %w", err)
	}
	return g, g.Validate()
}

// LoadGenesis reads and decodes a genesis blob from a file.
func LoadGenesis(path string) (*GenesisDoc, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.NotFound.WithFormat("load genesis: %w", err)
	}
	defer func() { _ = f.Close() }()

	b, err := io.ReadAll(f)
	if err != nil {
		return nil, errors.UnknownError.WithFormat("load genesis: %w", err)
	}
	return UnmarshalBlob(b)
}

// StoreGenesis encodes and writes a genesis blob to a file.
func StoreGenesis(g *GenesisDoc, path string) error {
	b, err := g.MarshalBlob()
	if err != nil {
		return err
	}
	return errors.UnknownError.Wrap(os.WriteFile(path, b, 0644))
}
