// Copyright 2025 Archon 72 Project
//
// Cessation Consideration Service (FR32)
//
// Places termination onto the Conclave agenda when more than 10
// unacknowledged breaches accumulate inside the trailing 90-day window, and
// records the Conclave's decision on each consideration.

package cessation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/archon72/accountability-engine/pkg/events"
	"github.com/archon72/accountability-engine/pkg/halt"
	"github.com/archon72/accountability-engine/pkg/store"
	"github.com/archon72/accountability-engine/pkg/writer"
)

// AgentID is the attributed originator of cessation governance events.
const AgentID = "cessation_system"

// ConsiderationService manages cessation consideration triggers and decisions.
type ConsiderationService struct {
	breaches store.BreachRepository
	repo     store.CessationRepository
	writer   *writer.Writer
	gate     writer.HaltChecker
	logger   *log.Logger
	now      func() time.Time

	threshold        int
	warningThreshold int
	windowDays       int
}

// ConsiderationOption is a functional option for the consideration service.
type ConsiderationOption func(*ConsiderationService)

// WithConsiderationLogger sets a custom logger.
func WithConsiderationLogger(logger *log.Logger) ConsiderationOption {
	return func(s *ConsiderationService) { s.logger = logger }
}

// WithConsiderationClock sets the time source.
func WithConsiderationClock(now func() time.Time) ConsiderationOption {
	return func(s *ConsiderationService) { s.now = now }
}

// WithThresholds overrides the trigger threshold, warning threshold, and
// rolling window. The constitutional defaults are Threshold,
// WarningThreshold, and WindowDays; overrides exist for test networks and
// rehearsals.
func WithThresholds(threshold, warningThreshold, windowDays int) ConsiderationOption {
	return func(s *ConsiderationService) {
		s.threshold = threshold
		s.warningThreshold = warningThreshold
		s.windowDays = windowDays
	}
}

// NewConsiderationService creates a cessation consideration service.
func NewConsiderationService(
	breaches store.BreachRepository,
	repo store.CessationRepository,
	w *writer.Writer,
	gate writer.HaltChecker,
	opts ...ConsiderationOption,
) *ConsiderationService {
	s := &ConsiderationService{
		breaches:         breaches,
		repo:             repo,
		writer:           w,
		gate:             gate,
		logger:           log.New(log.Writer(), "[Cessation] ", log.LstdFlags),
		now:              func() time.Time { return time.Now().UTC() },
		threshold:        Threshold,
		warningThreshold: WarningThreshold,
		windowDays:       WindowDays,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *ConsiderationService) checkHalt(ctx context.Context) error {
	if s.gate.IsHalted(ctx) {
		return halt.NewHaltedError(s.gate.HaltReason(ctx))
	}
	return nil
}

// CheckAndTriggerCessation evaluates the FR32 threshold and, when exceeded,
// places cessation on the agenda. Idempotent: while a consideration is
// active (undecided), repeated calls return nil without a new trigger. The
// inequality is strict: the trigger fires only above the threshold (10 by
// default).
func (s *ConsiderationService) CheckAndTriggerCessation(ctx context.Context) (*events.ConsiderationPayload, error) {
	// HALT CHECK FIRST (CT-11)
	if err := s.checkHalt(ctx); err != nil {
		return nil, err
	}

	active, err := s.repo.ActiveConsideration(ctx)
	if err == nil {
		s.logger.Printf("cessation check skipped, consideration already active: %s", active.ConsiderationID)
		return nil, nil
	}
	if !errors.Is(err, store.ErrNoActiveConsideration) {
		return nil, fmt.Errorf("FR32: failed to read active consideration: %w", err)
	}

	cutoff := s.now().AddDate(0, 0, -s.windowDays)
	count, err := s.breaches.CountUnacknowledgedSince(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("FR32: failed to count unacknowledged breaches: %w", err)
	}
	if count <= s.threshold {
		return nil, nil
	}

	breaches, err := s.breaches.UnacknowledgedSince(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("FR32: failed to load unacknowledged breaches: %w", err)
	}
	ids := make([]uuid.UUID, len(breaches))
	for i, b := range breaches {
		ids[i] = b.BreachID
	}

	payload := &events.ConsiderationPayload{
		ConsiderationID:         uuid.New(),
		TriggerTimestamp:        events.TruncateToCanonical(s.now()),
		BreachCount:             count,
		WindowDays:              s.windowDays,
		UnacknowledgedBreachIDs: ids,
		AgendaPlacementReason:   fmt.Sprintf("FR32: >%d unacknowledged breaches in %d days", s.threshold, s.windowDays),
	}

	if _, err := s.writer.WriteEvent(ctx, events.TypeCessationConsideration, payload, AgentID, payload.TriggerTimestamp); err != nil {
		if errors.Is(err, halt.ErrSystemHalted) {
			return nil, err
		}
		return nil, fmt.Errorf("FR32: failed to record cessation consideration: %w", err)
	}

	if err := s.repo.SaveConsideration(ctx, payload); err != nil {
		s.logger.Printf("CRITICAL: consideration event written but store save failed: consideration_id=%s err=%v",
			payload.ConsiderationID, err)
		return nil, fmt.Errorf("FR32: consideration event written but store update failed, human intervention required: %w", err)
	}

	s.logger.Printf("CRITICAL: cessation consideration triggered: consideration_id=%s breach_count=%d",
		payload.ConsiderationID, count)
	return payload, nil
}

// RecordDecision records the Conclave's decision on a consideration (FR32).
// At most one decision per consideration.
func (s *ConsiderationService) RecordDecision(
	ctx context.Context,
	considerationID uuid.UUID,
	decision events.CessationDecision,
	decidedBy string,
	rationale string,
) (*events.DecisionPayload, error) {
	// HALT CHECK FIRST (CT-11)
	if err := s.checkHalt(ctx); err != nil {
		return nil, err
	}

	decidedBy = strings.TrimSpace(decidedBy)
	rationale = strings.TrimSpace(rationale)
	if decidedBy == "" {
		return nil, &InvalidDecisionError{ConsiderationID: considerationID, Reason: "decided_by cannot be empty"}
	}
	if rationale == "" {
		return nil, &InvalidDecisionError{ConsiderationID: considerationID, Reason: "rationale cannot be empty"}
	}
	if !events.ValidCessationDecision(decision) {
		return nil, &InvalidDecisionError{ConsiderationID: considerationID, Reason: fmt.Sprintf("unknown decision %q", decision)}
	}

	if _, err := s.repo.ConsiderationByID(ctx, considerationID); err != nil {
		if errors.Is(err, store.ErrConsiderationNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrConsiderationNotFound, considerationID)
		}
		return nil, fmt.Errorf("FR32: failed to load consideration %s: %w", considerationID, err)
	}

	if _, err := s.repo.DecisionForConsideration(ctx, considerationID); err == nil {
		return nil, &InvalidDecisionError{ConsiderationID: considerationID, Reason: "already recorded"}
	} else if !errors.Is(err, store.ErrDecisionNotFound) {
		return nil, fmt.Errorf("FR32: failed to read decision for consideration %s: %w", considerationID, err)
	}

	payload := &events.DecisionPayload{
		DecisionID:        uuid.New(),
		ConsiderationID:   considerationID,
		Decision:          decision,
		DecisionTimestamp: events.TruncateToCanonical(s.now()),
		DecidedBy:         decidedBy,
		Rationale:         rationale,
	}

	if _, err := s.writer.WriteEvent(ctx, events.TypeCessationDecision, payload, AgentID, payload.DecisionTimestamp); err != nil {
		if errors.Is(err, halt.ErrSystemHalted) {
			return nil, err
		}
		return nil, fmt.Errorf("FR32: failed to record cessation decision: %w", err)
	}

	if err := s.repo.SaveDecision(ctx, payload); err != nil {
		s.logger.Printf("CRITICAL: decision event written but store save failed: decision_id=%s err=%v",
			payload.DecisionID, err)
		return nil, fmt.Errorf("FR32: decision event written but store update failed, human intervention required: %w", err)
	}

	s.logger.Printf("cessation decision recorded: decision_id=%s decision=%s by=%s",
		payload.DecisionID, decision, decidedBy)
	return payload, nil
}

// IsConsiderationActive reports whether any consideration is awaiting a
// decision.
func (s *ConsiderationService) IsConsiderationActive(ctx context.Context) (bool, error) {
	if err := s.checkHalt(ctx); err != nil {
		return false, err
	}
	_, err := s.repo.ActiveConsideration(ctx)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, store.ErrNoActiveConsideration) {
		return false, nil
	}
	return false, fmt.Errorf("FR32: failed to read active consideration: %w", err)
}

// GetBreachCountStatus computes count, IDs, and trajectory for the current
// window (FR32).
func (s *ConsiderationService) GetBreachCountStatus(ctx context.Context) (*BreachCountStatus, error) {
	// HALT CHECK FIRST (CT-11)
	if err := s.checkHalt(ctx); err != nil {
		return nil, err
	}

	now := s.now()
	breaches, err := s.breaches.UnacknowledgedSince(ctx, now.AddDate(0, 0, -s.windowDays))
	if err != nil {
		return nil, fmt.Errorf("FR32: failed to load unacknowledged breaches: %w", err)
	}
	return StatusWithThresholds(breaches, now, s.threshold, s.warningThreshold, s.windowDays), nil
}

// GetBreachAlertStatus buckets the current count: AlertCritical above the
// cessation threshold, AlertWarning at the warning threshold, empty string
// below both.
func (s *ConsiderationService) GetBreachAlertStatus(ctx context.Context) (string, error) {
	status, err := s.GetBreachCountStatus(ctx)
	if err != nil {
		return "", err
	}
	switch {
	case status.IsAboveThreshold():
		return AlertCritical, nil
	case status.IsAtWarning():
		return AlertWarning, nil
	default:
		return "", nil
	}
}
