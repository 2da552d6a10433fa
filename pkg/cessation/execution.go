// Copyright 2025 Archon 72 Project
//
// Cessation Execution Orchestrator (FR41, FR43, FR135)
//
// Coordinates the one-way termination of the system:
//
//	1. record the final deliberation (FR135)
//	2. write the cessation.executed event (the last event ever, FR43)
//	3. set the dual-channel cessation flag
//
// The ordering is strict: nothing may observe the flag set without the
// cessation event durable, and nothing may observe the cessation event
// without the deliberation (or its failure record) durable. If the
// deliberation cannot be recorded, the failure record becomes the final
// event, the halt gate latches, and no cessation event is written. If even
// the failure record cannot be written, the process must halt (CT-13).

package cessation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/archon72/accountability-engine/pkg/events"
	"github.com/archon72/accountability-engine/pkg/halt"
	"github.com/archon72/accountability-engine/pkg/store"
	"github.com/archon72/accountability-engine/pkg/writer"
)

// ExecutionAgentID is the attributed originator of cessation execution events.
const ExecutionAgentID = "SYSTEM:CESSATION"

// deliberationMaxRetries bounds the attempts to write the final deliberation;
// the failure event records how many attempts were made before giving up.
const deliberationMaxRetries = 3

// AlarmRaiser is the slice of the halt gate the orchestrator latches when a
// recording failure becomes the final event.
type AlarmRaiser interface {
	RaiseAlarm(reason string)
}

// DeliberationInput is the collected final deliberation supplied by the
// caller once a PROCEED_TO_VOTE decision has produced a passing vote.
type DeliberationInput struct {
	DeliberationID      uuid.UUID
	StartedAt           time.Time
	EndedAt             time.Time
	ArchonDeliberations []events.ArchonDeliberation
}

// ExecutionService orchestrates cessation execution.
type ExecutionService struct {
	writer *writer.Writer
	flags  *FlagStore
	gate   AlarmRaiser
	halts  writer.HaltChecker
	logger *log.Logger
	now    func() time.Time
}

// ExecutionOption is a functional option for the execution service.
type ExecutionOption func(*ExecutionService)

// WithExecutionLogger sets a custom logger.
func WithExecutionLogger(logger *log.Logger) ExecutionOption {
	return func(s *ExecutionService) { s.logger = logger }
}

// WithExecutionClock sets the time source.
func WithExecutionClock(now func() time.Time) ExecutionOption {
	return func(s *ExecutionService) { s.now = now }
}

// NewExecutionService creates a cessation execution orchestrator. gate is the
// halt gate; it serves both as halt oracle and as the alarm latch for
// recording failures.
func NewExecutionService(
	w *writer.Writer,
	flags *FlagStore,
	gate *halt.Gate,
	opts ...ExecutionOption,
) *ExecutionService {
	s := &ExecutionService{
		writer: w,
		flags:  flags,
		gate:   gate,
		halts:  gate,
		logger: log.New(log.Writer(), "[CessationExec] ", log.LstdFlags),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ExecuteCessationWithDeliberation records the final deliberation and then
// executes cessation (FR135, FR43). This is the only supported entry point
// for terminal cessation; the deliberation of all 72 Archons is recorded
// before the terminal event.
func (s *ExecutionService) ExecuteCessationWithDeliberation(
	ctx context.Context,
	input DeliberationInput,
	triggeringEventID uuid.UUID,
	reason string,
) (*events.Event, error) {
	// HALT CHECK FIRST (CT-11)
	if s.halts.IsHalted(ctx) {
		return nil, halt.NewHaltedError(s.halts.HaltReason(ctx))
	}

	payload, err := s.buildDeliberationPayload(input)
	if err != nil {
		return nil, err
	}

	s.logger.Printf("recording final deliberation: deliberation_id=%s dissent=%.2f%%",
		payload.DeliberationID, payload.DissentPercentage)

	var recErr error
	attempts := 0
	for attempts < deliberationMaxRetries {
		attempts++
		_, recErr = s.writer.WriteEvent(ctx, events.TypeCessationDeliberation, payload, ExecutionAgentID, payload.VoteRecordedAt)
		if recErr == nil || errors.Is(recErr, halt.ErrSystemHalted) || errors.Is(recErr, writer.ErrWriterInconsistency) {
			break
		}
		s.logger.Printf("deliberation write attempt %d/%d failed: %v", attempts, deliberationMaxRetries, recErr)
	}
	if recErr != nil {
		if errors.Is(recErr, halt.ErrSystemHalted) {
			return nil, recErr
		}
		// Recording failed: the failure record becomes the final event and
		// cessation is NOT executed.
		return nil, s.recordDeliberationFailure(ctx, input, recErr, attempts)
	}

	return s.ExecuteCessation(ctx, triggeringEventID, reason)
}

func (s *ExecutionService) buildDeliberationPayload(input DeliberationInput) (*events.DeliberationPayload, error) {
	counts := events.CountVotes(input.ArchonDeliberations)
	payload := &events.DeliberationPayload{
		DeliberationID:        input.DeliberationID,
		DeliberationStartedAt: events.TruncateToCanonical(input.StartedAt),
		DeliberationEndedAt:   events.TruncateToCanonical(input.EndedAt),
		VoteRecordedAt:        events.TruncateToCanonical(s.now()),
		DurationSeconds:       int64(input.EndedAt.Sub(input.StartedAt).Seconds()),
		ArchonDeliberations:   input.ArchonDeliberations,
		VoteCounts:            counts,
		DissentPercentage:     events.DissentPercentage(counts),
	}
	if err := payload.Validate(); err != nil {
		return nil, err
	}
	return payload, nil
}

// recordDeliberationFailure writes the cessation.deliberation_recording_failed
// event. On success that failure record is the final event: the halt gate
// latches and the returned error tells the caller no cessation occurred. If
// the failure record cannot be written either, the returned error wraps
// ErrDeliberationRecordingCompleteFailure and the caller must halt the
// process.
func (s *ExecutionService) recordDeliberationFailure(
	ctx context.Context,
	input DeliberationInput,
	cause error,
	attempts int,
) error {
	s.logger.Printf("CRITICAL: deliberation recording failed, recording failure as final event: deliberation_id=%s err=%v",
		input.DeliberationID, cause)

	now := events.TruncateToCanonical(s.now())
	failure := &events.RecordingFailedPayload{
		DeliberationID:     input.DeliberationID,
		AttemptedAt:        events.TruncateToCanonical(input.StartedAt),
		FailedAt:           now,
		ErrorCode:          "DELIBERATION_WRITE_FAILED",
		ErrorMessage:       cause.Error(),
		RetryCount:         attempts,
		PartialArchonCount: len(input.ArchonDeliberations),
	}
	if err := failure.Validate(); err != nil {
		return fmt.Errorf("%w: invalid failure record: %v (cause: %v)",
			ErrDeliberationRecordingCompleteFailure, err, cause)
	}

	if _, err := s.writer.WriteEvent(ctx, events.TypeDeliberationRecordingFailed, failure, ExecutionAgentID, now); err != nil {
		s.logger.Printf("CRITICAL: cannot record deliberation failure either, system must halt: %v", err)
		return fmt.Errorf("%w: deliberation write failed (%v) and failure record write failed (%v)",
			ErrDeliberationRecordingCompleteFailure, cause, err)
	}

	// The failure is the final event; seal the write path.
	s.gate.RaiseAlarm(fmt.Sprintf(
		"FR135: deliberation recording failed for %s; the failure record is the final event",
		input.DeliberationID))

	return fmt.Errorf("%w: deliberation recording failed, failure record is the final event: %v",
		ErrExecution, cause)
}

// ExecuteCessation writes the terminal event and sets the flag. Callers must
// have recorded the final deliberation first; ExecuteCessationWithDeliberation
// is the entry point that enforces that ordering.
func (s *ExecutionService) ExecuteCessation(
	ctx context.Context,
	triggeringEventID uuid.UUID,
	reason string,
) (*events.Event, error) {
	head, err := s.writer.Head(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read head event: %v", ErrExecution, err)
	}
	if head == nil {
		return nil, fmt.Errorf("%w: event store is empty", ErrExecution)
	}

	executionTimestamp := events.TruncateToCanonical(s.now())
	payload := events.NewExecutedPayload(
		uuid.New(),
		executionTimestamp,
		head.Sequence,
		head.ContentHash,
		reason,
		triggeringEventID,
	)
	if err := payload.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExecution, err)
	}

	s.logger.Printf("CRITICAL: writing cessation event (last event ever): final_sequence=%d final_hash=%s",
		payload.FinalSequenceNumber, hashPrefix(payload.FinalHash))

	event, err := s.writer.WriteEvent(ctx, events.TypeCessationExecuted, payload, ExecutionAgentID, executionTimestamp)
	if err != nil {
		if errors.Is(err, halt.ErrSystemHalted) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: failed to write cessation event: %v", ErrExecution, err)
	}

	details := &store.FlagDetails{
		CeasedAt:            executionTimestamp,
		FinalSequenceNumber: event.Sequence,
		Reason:              reason,
		CessationEventID:    event.EventID,
	}
	if err := s.flags.SetCeased(ctx, details); err != nil {
		// The cessation event is durable and is the source of truth; the
		// flag must be reconciled by hand.
		s.logger.Printf("CRITICAL: cessation event written (sequence=%d) but flag set failed, human intervention required: %v",
			event.Sequence, err)
		return event, fmt.Errorf("%w: cessation event written (sequence=%d) but flag set failed, human intervention required: %v",
			ErrExecution, event.Sequence, err)
	}

	s.logger.Printf("CRITICAL: system cessation complete: cessation_event_id=%s final_sequence=%d. This is irreversible.",
		event.EventID, event.Sequence)
	return event, nil
}

func hashPrefix(h string) string {
	if len(h) > 16 {
		return h[:16] + "..."
	}
	return h
}
