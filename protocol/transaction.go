// Copyright 2025 The Meridian Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

package protocol

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"

	"github.com/meridianledger/meridian/pkg/errors"
)

// SignedTransaction is a transaction as accepted by admission control. The
// node validates and queues transactions; execution belongs to the chain
// core, not this layer.
type SignedTransaction struct {
	Sender         AccountAddress `json:"sender"`
	SequenceNumber uint64         `json:"sequenceNumber"`
	ChainID        ChainID        `json:"chainId"`
	Payload        []byte         `json:"payload"`
	PublicKey      PublicKey      `json:"publicKey"`
	Signature      []byte         `json:"signature"`
}

// SigningHash returns the hash the sender signs.
func (t *SignedTransaction) SigningHash() [32]byte {
	h := sha256.New()
	h.Write(t.Sender[:])

	var u [8]byte
	binary.BigEndian.PutUint64(u[:], t.SequenceNumber)
	h.Write(u[:])
	h.Write([]byte{byte(t.ChainID)})

	p := sha256.Sum256(t.Payload)
	h.Write(p[:])

	var hash [32]byte
	copy(hash[:], h.Sum(nil))
	return hash
}

// Hash returns the transaction's identity hash, which covers the signature.
func (t *SignedTransaction) Hash() [32]byte {
	b, err := json.Marshal(t)
	if err != nil {
		panic(err)
	}
	return sha256.Sum256(b)
}

// Sign signs the transaction with the given key, setting the public key and
// signature.
func (t *SignedTransaction) Sign(key ed25519.PrivateKey) {
	t.PublicKey = PublicKey(key.Public().(ed25519.PublicKey))
	h := t.SigningHash()
	t.Signature = ed25519.Sign(key, h[:])
}

// Verify checks the transaction's signature and that the sender address is
// derived from the signing key. Verify does not check the sequence number -
// that requires the ledger.
func (t *SignedTransaction) Verify(chain ChainID) error {
	if t.ChainID != chain {
		return errors.BadRequest.WithFormat("transaction is for chain %v, this is %v", t.ChainID, chain)
	}
	if len(t.PublicKey) != ed25519.PublicKeySize {
		return errors.BadRequest.With("invalid public key")
	}
	if t.Sender != AddressForKey(ed25519.PublicKey(t.PublicKey)) {
		return errors.Unauthorized.With("sender address does not match public key")
	}
	h := t.SigningHash()
	if !ed25519.Verify(ed25519.PublicKey(t.PublicKey), h[:], t.Signature) {
		return errors.Unauthorized.With("invalid signature")
	}
	return nil
}
