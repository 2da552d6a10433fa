// Copyright 2025 Archon 72 Project
//
// Event Writer - sole serialized append path for the event log
//
// CONCURRENCY: the Writer holds a mutex across the whole append (read head,
// verify, assign sequence, hash, witness, persist). The chain invariants
// (gap-free sequences, previous-hash links) depend on this single-writer
// discipline; never append to the underlying log by any other path.

package writer

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/archon72/accountability-engine/pkg/events"
	"github.com/archon72/accountability-engine/pkg/halt"
	"github.com/archon72/accountability-engine/pkg/witness"
)

// EventStore is the persistence contract the Writer appends through.
type EventStore interface {
	// Append persists the event atomically as the new head. Either the
	// event is durable and is the new head, or nothing changed.
	Append(ctx context.Context, event *events.Event) error

	// Head returns the highest-sequence event, or nil for an empty log.
	Head(ctx context.Context) (*events.Event, error)

	// BySequence returns the event with the given sequence number.
	BySequence(ctx context.Context, sequence uint64) (*events.Event, error)
}

// HaltChecker is the slice of the halt gate the Writer consults.
type HaltChecker interface {
	IsHalted(ctx context.Context) bool
	HaltReason(ctx context.Context) string
}

// Writer is the atomic event writer. All services write events exclusively
// through it.
type Writer struct {
	mu      sync.Mutex
	store   EventStore
	witness witness.Witness
	gate    HaltChecker
	logger  *log.Logger
}

// Option is a functional option for configuring the Writer.
type Option func(*Writer)

// WithLogger sets a custom logger for the Writer.
func WithLogger(logger *log.Logger) Option {
	return func(w *Writer) { w.logger = logger }
}

// New creates an event writer over the given store, witness, and halt gate.
func New(store EventStore, wit witness.Witness, gate HaltChecker, opts ...Option) (*Writer, error) {
	if store == nil {
		return nil, fmt.Errorf("event store is required")
	}
	if wit == nil {
		return nil, fmt.Errorf("witness is required")
	}
	if gate == nil {
		return nil, fmt.Errorf("halt gate is required")
	}
	w := &Writer{
		store:   store,
		witness: wit,
		gate:    gate,
		logger:  log.New(log.Writer(), "[Writer] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// WriteEvent appends a witnessed event to the log. The payload's canonical
// bytes are computed once and persisted verbatim; the content hash covers the
// predecessor's hash, binding the event into the chain.
func (w *Writer) WriteEvent(
	ctx context.Context,
	eventType string,
	payload events.Payload,
	agentID string,
	localTimestamp time.Time,
) (*events.Event, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	// HALT CHECK FIRST (CT-11)
	if w.gate.IsHalted(ctx) {
		return nil, halt.NewHaltedError(w.gate.HaltReason(ctx))
	}

	head, err := w.store.Head(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read head event: %w", err)
	}

	var sequence uint64 = 1
	var previousHash string
	if head != nil {
		// Terminal check (FR43): after cessation.executed nothing may be
		// appended, independent of the flag channels.
		if head.IsTerminal() {
			return nil, halt.NewHaltedError("cessation executed: event log is sealed")
		}

		// Self-consistency: the stored head must reproduce its own hash.
		recomputed, err := head.RecomputeContentHash()
		if err != nil {
			return nil, fmt.Errorf("failed to recompute head hash: %w", err)
		}
		if recomputed != head.ContentHash {
			incErr := &InconsistencyError{
				Sequence:     head.Sequence,
				StoredHash:   head.ContentHash,
				ComputedHash: recomputed,
			}
			w.logger.Printf("CRITICAL: %v", incErr)
			return nil, incErr
		}

		sequence = head.Sequence + 1
		previousHash = head.ContentHash
	}

	payloadBytes, err := payload.SignableContent()
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload for %s: %w", eventType, err)
	}

	localTimestamp = events.TruncateToCanonical(localTimestamp)
	contentHash, err := events.ComputeContentHash(
		sequence, eventType, payloadBytes, agentID, localTimestamp, previousHash)
	if err != nil {
		return nil, fmt.Errorf("failed to compute content hash: %w", err)
	}

	attestation, err := w.witness.Attest([]byte(contentHash))
	if err != nil {
		return nil, fmt.Errorf("witness attestation failed for %s: %w", eventType, err)
	}

	event := &events.Event{
		EventID:             uuid.New(),
		Sequence:            sequence,
		EventType:           eventType,
		Payload:             payloadBytes,
		AgentID:             agentID,
		LocalTimestamp:      localTimestamp,
		PreviousContentHash: previousHash,
		ContentHash:         contentHash,
		WitnessID:           attestation.WitnessID,
		WitnessSignature:    attestation.Signature,
	}

	if err := w.store.Append(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to persist event %s at sequence %d: %w",
			eventType, sequence, err)
	}

	w.logger.Printf("event written: type=%s sequence=%d event_id=%s", eventType, sequence, event.EventID)
	return event, nil
}

// Head returns the current head event, or nil for an empty log.
func (w *Writer) Head(ctx context.Context) (*events.Event, error) {
	return w.store.Head(ctx)
}

// BySequence returns the event at the given sequence number.
func (w *Writer) BySequence(ctx context.Context, sequence uint64) (*events.Event, error) {
	return w.store.BySequence(ctx, sequence)
}
