// Copyright 2025 The Meridian Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

// Package ledger persists the node's view of chain state: the ledger record,
// account balances, and the pending transaction queue. Execution and
// consensus live in the chain core; this layer only stores what admission
// control and bootstrap need.
package ledger

import (
	"encoding/json"
	"sync"

	"github.com/meridianledger/meridian/pkg/database/keyvalue"
	"github.com/meridianledger/meridian/pkg/errors"
	"github.com/meridianledger/meridian/protocol"
)

var (
	keyLedger     = []byte("ledger")
	prefixAccount = []byte("acct:")
	prefixPending = []byte("pending:")
)

// Record is the persisted ledger header. GenesisHash binds a data directory
// to the genesis blob it was bootstrapped from.
type Record struct {
	ChainID     protocol.ChainID `json:"chainId"`
	GenesisHash [32]byte         `json:"genesisHash"`
	Version     uint64           `json:"version"`
}

// Account is a stored account.
type Account struct {
	Address        protocol.AccountAddress `json:"address"`
	Balance        uint64                  `json:"balance"`
	SequenceNumber uint64                  `json:"sequenceNumber"`
}

// Ledger is a handle over a store that has been bootstrapped. Methods that
// modify state are safe for concurrent use.
type Ledger struct {
	mu     sync.Mutex
	store  keyvalue.Store
	record Record
}

// IsBootstrapped returns true if the store contains a ledger record.
func IsBootstrapped(store keyvalue.Store) (bool, error) {
	_, err := store.Get(keyLedger)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, keyvalue.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

// Bootstrap initializes a store from a genesis document. Bootstrapping a
// store that already has a ledger record is an error.
func Bootstrap(store keyvalue.Store, genesis *protocol.GenesisDoc) (*Ledger, error) {
	ok, err := IsBootstrapped(store)
	if err != nil {
		return nil, err
	}
	if ok {
		return nil, errors.Conflict.With("store is already bootstrapped")
	}

	err = genesis.Validate()
	if err != nil {
		return nil, err
	}

	l := new(Ledger)
	l.store = store
	l.record = Record{ChainID: genesis.ChainID, GenesisHash: genesis.Hash()}

	for _, a := range genesis.Accounts {
		err = l.putAccount(&Account{Address: a.Address, Balance: a.Balance})
		if err != nil {
			return nil, err
		}
	}

	return l, l.putRecord()
}

// Open opens a bootstrapped store.
func Open(store keyvalue.Store) (*Ledger, error) {
	b, err := store.Get(keyLedger)
	if err != nil {
		return nil, errors.NotReady.WithFormat("open ledger: %w", err)
	}

	l := new(Ledger)
	l.store = store
	err = json.Unmarshal(b, &l.record)
	if err != nil {
		return nil, errors.EncodingError.WithFormat("open ledger: %w", err)
	}
	return l, nil
}

// Info returns a copy of the ledger record.
func (l *Ledger) Info() Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.record
}

// Account returns the account with the given address.
func (l *Ledger) Account(addr protocol.AccountAddress) (*Account, error) {
	b, err := l.store.Get(accountKey(addr))
	if err != nil {
		return nil, err
	}

	a := new(Account)
	err = json.Unmarshal(b, a)
	if err != nil {
		return nil, errors.EncodingError.Wrap(err)
	}
	return a, nil
}

// Credit adds to an account's balance, creating the account if it does not
// exist.
func (l *Ledger) Credit(addr protocol.AccountAddress, amount uint64) (*Account, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	a, err := l.Account(addr)
	switch {
	case err == nil:
		// Ok
	case errors.Is(err, keyvalue.ErrNotFound):
		a = &Account{Address: addr}
	default:
		return nil, err
	}

	a.Balance += amount
	err = l.putAccount(a)
	if err != nil {
		return nil, err
	}
	return a, l.bump()
}

// Pending queues a verified transaction for the chain core. The transaction's
// sequence number must be the account's next.
func (l *Ledger) Pending(tx *protocol.SignedTransaction) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if tx.ChainID != l.record.ChainID {
		return errors.BadRequest.WithFormat("transaction is for chain %v, this is %v", tx.ChainID, l.record.ChainID)
	}

	acct, err := l.Account(tx.Sender)
	switch {
	case err == nil:
		// Ok
	case errors.Is(err, keyvalue.ErrNotFound):
		return errors.NotFound.WithFormat("account %v not found", tx.Sender)
	default:
		return err
	}

	if tx.SequenceNumber != acct.SequenceNumber {
		return errors.Conflict.WithFormat("sequence number mismatch: want %d, got %d", acct.SequenceNumber, tx.SequenceNumber)
	}

	b, err := json.Marshal(tx)
	if err != nil {
		return errors.EncodingError.Wrap(err)
	}

	hash := tx.Hash()
	err = l.store.Put(append(prefixPending, hash[:]...), b)
	if err != nil {
		return err
	}

	acct.SequenceNumber++
	err = l.putAccount(acct)
	if err != nil {
		return err
	}
	return l.bump()
}

// ForEachPending iterates over the pending queue.
func (l *Ledger) ForEachPending(fn func(*protocol.SignedTransaction) error) error {
	return l.store.ForEach(prefixPending, func(_, value []byte) error {
		tx := new(protocol.SignedTransaction)
		err := json.Unmarshal(value, tx)
		if err != nil {
			return errors.EncodingError.Wrap(err)
		}
		return fn(tx)
	})
}

// PendingCount returns the size of the pending queue.
func (l *Ledger) PendingCount() (int, error) {
	var n int
	err := l.store.ForEach(prefixPending, func(_, _ []byte) error {
		n++
		return nil
	})
	return n, err
}

func (l *Ledger) putAccount(a *Account) error {
	b, err := json.Marshal(a)
	if err != nil {
		return errors.EncodingError.Wrap(err)
	}
	return l.store.Put(accountKey(a.Address), b)
}

func (l *Ledger) putRecord() error {
	b, err := json.Marshal(l.record)
	if err != nil {
		return errors.EncodingError.Wrap(err)
	}
	return l.store.Put(keyLedger, b)
}

func (l *Ledger) bump() error {
	l.record.Version++
	return l.putRecord()
}

func accountKey(addr protocol.AccountAddress) []byte {
	return append(prefixAccount, addr[:]...)
}
