// Copyright 2025 Archon 72 Project
//
// Cessation Flag Store - dual-channel one-way latch
//
// Two independent channels record "the system has ceased": a fast channel
// (KV store, bounded latency) and a durable channel (survives restarts).
// Reads OR the channels: the flag is a one-way latch, not a consensus value.
// If both channels are unreadable the read errors, which the halt gate
// interprets as halted (CT-13). The flag is monotonic; no clear operation
// exists anywhere in the system.

package cessation

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/archon72/accountability-engine/pkg/ledger"
	"github.com/archon72/accountability-engine/pkg/store"
)

// KVFlagChannel is the fast cessation-flag channel over a KV store.
type KVFlagChannel struct {
	kv ledger.KV
}

// NewKVFlagChannel creates a fast flag channel over the given KV store.
func NewKVFlagChannel(kv ledger.KV) *KVFlagChannel {
	return &KVFlagChannel{kv: kv}
}

// SetCeased implements store.CessationFlagChannel. First write wins.
func (c *KVFlagChannel) SetCeased(ctx context.Context, details *store.FlagDetails) error {
	existing, err := c.kv.Get(ledger.KeyCessationFlag)
	if err != nil {
		return fmt.Errorf("failed to read cessation flag key: %w", err)
	}
	if len(existing) > 0 {
		return nil
	}
	b, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("failed to marshal cessation details: %w", err)
	}
	if err := c.kv.Set(ledger.KeyCessationFlag, b); err != nil {
		return fmt.Errorf("failed to set cessation flag key: %w", err)
	}
	return nil
}

// IsCeased implements store.CessationFlagChannel.
func (c *KVFlagChannel) IsCeased(ctx context.Context) (bool, error) {
	b, err := c.kv.Get(ledger.KeyCessationFlag)
	if err != nil {
		return false, fmt.Errorf("failed to read cessation flag key: %w", err)
	}
	return len(b) > 0, nil
}

// Details implements store.CessationFlagChannel.
func (c *KVFlagChannel) Details(ctx context.Context) (*store.FlagDetails, error) {
	b, err := c.kv.Get(ledger.KeyCessationFlag)
	if err != nil {
		return nil, fmt.Errorf("failed to read cessation flag key: %w", err)
	}
	if len(b) == 0 {
		return nil, nil
	}
	var d store.FlagDetails
	if err := json.Unmarshal(b, &d); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cessation details: %w", err)
	}
	return &d, nil
}

// FlagStore is the dual-channel cessation flag.
type FlagStore struct {
	fast    store.CessationFlagChannel
	durable store.CessationFlagChannel
	logger  *log.Logger
}

// FlagStoreOption is a functional option for configuring the flag store.
type FlagStoreOption func(*FlagStore)

// WithFlagLogger sets a custom logger for the flag store.
func WithFlagLogger(logger *log.Logger) FlagStoreOption {
	return func(f *FlagStore) { f.logger = logger }
}

// NewFlagStore creates a dual-channel flag store.
func NewFlagStore(fast, durable store.CessationFlagChannel, opts ...FlagStoreOption) *FlagStore {
	f := &FlagStore{
		fast:    fast,
		durable: durable,
		logger:  log.New(log.Writer(), "[CessationFlag] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// SetCeased writes the flag to both channels. The durable channel is written
// first; any channel failure fails the whole operation. A partial write can
// only err toward "ceased" because reads OR the channels.
func (f *FlagStore) SetCeased(ctx context.Context, details *store.FlagDetails) error {
	if err := f.durable.SetCeased(ctx, details); err != nil {
		return fmt.Errorf("durable channel write failed: %w", err)
	}
	if err := f.fast.SetCeased(ctx, details); err != nil {
		return fmt.Errorf("fast channel write failed (durable channel holds the flag): %w", err)
	}
	f.logger.Printf("CRITICAL: cessation flag set: final_sequence=%d event_id=%s",
		details.FinalSequenceNumber, details.CessationEventID)
	return nil
}

// IsCeased reports true if either channel holds the flag. Only when both
// channels are unreadable does the read error.
func (f *FlagStore) IsCeased(ctx context.Context) (bool, error) {
	fastCeased, fastErr := f.fast.IsCeased(ctx)
	if fastErr == nil && fastCeased {
		return true, nil
	}
	durableCeased, durableErr := f.durable.IsCeased(ctx)
	if durableErr == nil {
		return durableCeased || (fastErr == nil && fastCeased), nil
	}
	if fastErr == nil {
		return fastCeased, nil
	}
	return false, fmt.Errorf("both cessation flag channels unreadable: fast: %v; durable: %v",
		fastErr, durableErr)
}

// Details returns the recorded cessation details, preferring the fast
// channel and falling back to the durable one. Nil when the system has not
// ceased.
func (f *FlagStore) Details(ctx context.Context) (*store.FlagDetails, error) {
	d, err := f.fast.Details(ctx)
	if err == nil && d != nil {
		return d, nil
	}
	durable, durableErr := f.durable.Details(ctx)
	if durableErr == nil {
		return durable, nil
	}
	if err == nil {
		return d, nil
	}
	return nil, fmt.Errorf("both cessation flag channels unreadable: fast: %v; durable: %v",
		err, durableErr)
}
