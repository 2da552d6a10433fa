// Copyright 2025 Archon 72 Project
//
// Event log over a key-value store
//
// CONCURRENCY: EventLog assumes single-writer access and is designed to be
// called from the Event Writer only. Readers may be concurrent.

package ledger

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/archon72/accountability-engine/pkg/events"
)

// KV defines the key-value store interface the event log persists through.
type KV interface {
	Get(key []byte) ([]byte, error)
	Set(key, value []byte) error
}

// ====== KV Key Layout ======

var (
	keyEventHead   = []byte("eventlog:head")   // -> big-endian head sequence
	keyEventPrefix = []byte("eventlog:event:") // + big-endian sequence -> Event JSON

	// Fast cessation-flag channel (see pkg/cessation)
	KeyCessationFlag = []byte("cessation:flag") // -> FlagDetails JSON
)

// eventKey generates a KV key for a specific sequence number.
func eventKey(sequence uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, sequence)
	return append(append([]byte{}, keyEventPrefix...), b...)
}

// EventLog provides append/head/by-sequence access to the hash-chained event
// log in the KV store.
type EventLog struct {
	kv KV
}

// NewEventLog creates a new EventLog over the given KV store.
func NewEventLog(kv KV) *EventLog {
	return &EventLog{kv: kv}
}

// Append persists the event and advances the head pointer. The event record
// is written before the head pointer; a crash in between leaves the previous
// head intact and the orphan record is overwritten on the next append.
func (l *EventLog) Append(ctx context.Context, event *events.Event) error {
	existing, err := l.kv.Get(eventKey(event.Sequence))
	if err != nil {
		return fmt.Errorf("failed to check sequence %d: %w", event.Sequence, err)
	}
	head, err := l.headSequence()
	if err != nil {
		return err
	}
	if existing != nil && event.Sequence <= head {
		return fmt.Errorf("%w: %d", ErrSequenceConflict, event.Sequence)
	}

	// HTML escaping stays off so the stored payload keeps the canonical bytes
	// its content hash was computed over.
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(event); err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	b := buf.Bytes()
	if err := l.kv.Set(eventKey(event.Sequence), b); err != nil {
		return fmt.Errorf("failed to set event key: %w", err)
	}

	hb := make([]byte, 8)
	binary.BigEndian.PutUint64(hb, event.Sequence)
	if err := l.kv.Set(keyEventHead, hb); err != nil {
		return fmt.Errorf("failed to advance head pointer: %w", err)
	}
	return nil
}

// Head returns the highest-sequence event, or nil for an empty log.
func (l *EventLog) Head(ctx context.Context) (*events.Event, error) {
	seq, err := l.headSequence()
	if err != nil {
		return nil, err
	}
	if seq == 0 {
		return nil, nil
	}
	return l.BySequence(ctx, seq)
}

// BySequence returns the event with the given sequence number.
func (l *EventLog) BySequence(ctx context.Context, sequence uint64) (*events.Event, error) {
	b, err := l.kv.Get(eventKey(sequence))
	if err != nil {
		return nil, fmt.Errorf("failed to get event %d: %w", sequence, err)
	}
	if len(b) == 0 {
		return nil, fmt.Errorf("%w: sequence %d", ErrEventNotFound, sequence)
	}
	var e events.Event
	if err := json.Unmarshal(b, &e); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event %d: %w", sequence, err)
	}
	return &e, nil
}

func (l *EventLog) headSequence() (uint64, error) {
	b, err := l.kv.Get(keyEventHead)
	if err != nil {
		return 0, fmt.Errorf("failed to read head pointer: %w", err)
	}
	if len(b) != 8 {
		return 0, nil
	}
	return binary.BigEndian.Uint64(b), nil
}
