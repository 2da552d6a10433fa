// Copyright 2025 Archon 72 Project
//
// KV Adapter for CometBFT Database Integration
// Wraps CometBFT's dbm.DB interface to implement ledger.KV

package kvdb

import (
	dbm "github.com/cometbft/cometbft-db"
)

// KVAdapter wraps a CometBFT dbm.DB and exposes the ledger.KV interface.
// This lets the event log and the fast cessation-flag channel use CometBFT's
// storage backends (goleveldb on disk, memdb in tests) directly.
type KVAdapter struct {
	db dbm.DB
}

// NewKVAdapter creates a new KVAdapter for the given underlying DB.
func NewKVAdapter(db dbm.DB) *KVAdapter {
	return &KVAdapter{db: db}
}

// Get implements ledger.KV.Get
func (a *KVAdapter) Get(key []byte) ([]byte, error) {
	if a.db == nil {
		return nil, nil
	}

	// v may be nil if key not found - the ledger treats nil as "not present".
	v, err := a.db.Get(key)
	if err != nil {
		return nil, err
	}
	return v, nil
}

// Set implements ledger.KV.Set
func (a *KVAdapter) Set(key, value []byte) error {
	if a.db == nil {
		return nil
	}

	// Use SetSync for durable writes at append time
	return a.db.SetSync(key, value)
}
