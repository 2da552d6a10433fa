// Copyright 2025 Archon 72 Project
//
// Escalation Service (FR31)
//
// Enforces the per-breach state machine:
//
//	(none) --declare--> DECLARED
//	DECLARED --acknowledge--> ACKNOWLEDGED
//	DECLARED --[age >= 7d, not acknowledged]--> ESCALATED
//
// Acknowledgment and escalation are mutually exclusive and each at-most-once.
// Acknowledging an already-escalated breach is rejected: the breach is on the
// Conclave agenda and responsibility has moved there.

package escalation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/archon72/accountability-engine/pkg/events"
	"github.com/archon72/accountability-engine/pkg/halt"
	"github.com/archon72/accountability-engine/pkg/store"
	"github.com/archon72/accountability-engine/pkg/writer"
)

// AgentID is the attributed originator of escalation and acknowledgment events.
const AgentID = "escalation_system"

// BreachStatus is the combined acknowledgment/escalation view of one breach.
type BreachStatus struct {
	IsAcknowledged bool                          `json:"is_acknowledged"`
	IsEscalated    bool                          `json:"is_escalated"`
	Acknowledgment *events.AcknowledgmentPayload `json:"acknowledgment,omitempty"`
	Escalation     *events.EscalationPayload     `json:"escalation,omitempty"`
}

// Service manages breach acknowledgment and the 7-day escalation mechanism.
type Service struct {
	breaches store.BreachRepository
	repo     store.EscalationRepository
	writer   *writer.Writer
	gate     writer.HaltChecker
	logger   *log.Logger
	now      func() time.Time

	thresholdDays int
}

// Option is a functional option for configuring the service.
type Option func(*Service)

// WithLogger sets a custom logger.
func WithLogger(logger *log.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithThresholdDays overrides the escalation deadline. The constitutional
// default is ThresholdDays; overrides exist for test networks and rehearsals.
func WithThresholdDays(days int) Option {
	return func(s *Service) { s.thresholdDays = days }
}

// NewService creates an escalation service.
func NewService(
	breaches store.BreachRepository,
	repo store.EscalationRepository,
	w *writer.Writer,
	gate writer.HaltChecker,
	opts ...Option,
) *Service {
	s := &Service{
		breaches:      breaches,
		repo:          repo,
		writer:        w,
		gate:          gate,
		logger:        log.New(log.Writer(), "[Escalation] ", log.LstdFlags),
		now:           func() time.Time { return time.Now().UTC() },
		thresholdDays: ThresholdDays,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) checkHalt(ctx context.Context) error {
	if s.gate.IsHalted(ctx) {
		return halt.NewHaltedError(s.gate.HaltReason(ctx))
	}
	return nil
}

// AcknowledgeBreach records an acknowledgment, stopping the escalation timer
// (FR31). The acknowledgment is rejected if the breach is unknown, already
// acknowledged, or already escalated.
func (s *Service) AcknowledgeBreach(
	ctx context.Context,
	breachID uuid.UUID,
	acknowledgedBy string,
	responseChoice events.ResponseChoice,
) (*events.AcknowledgmentPayload, error) {
	// HALT CHECK FIRST (CT-11)
	if err := s.checkHalt(ctx); err != nil {
		return nil, err
	}

	acknowledgedBy = strings.TrimSpace(acknowledgedBy)
	if acknowledgedBy == "" {
		return nil, fmt.Errorf("%w: acknowledged_by cannot be empty", ErrInvalidAcknowledgment)
	}
	if !events.ValidResponseChoice(responseChoice) {
		return nil, fmt.Errorf("%w: unknown response choice %q", ErrInvalidAcknowledgment, responseChoice)
	}

	if _, err := s.breaches.GetByID(ctx, breachID); err != nil {
		if errors.Is(err, store.ErrBreachNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrBreachNotFound, breachID)
		}
		return nil, fmt.Errorf("failed to load breach %s: %w", breachID, err)
	}

	if err := s.ensureNotAcknowledged(ctx, breachID); err != nil {
		return nil, err
	}
	// Escalation and acknowledgment are mutually exclusive; a breach that is
	// already on the Conclave agenda cannot be acknowledged locally.
	if err := s.ensureNotEscalated(ctx, breachID); err != nil {
		return nil, err
	}

	payload := &events.AcknowledgmentPayload{
		AcknowledgmentID:        uuid.New(),
		BreachID:                breachID,
		AcknowledgedBy:          acknowledgedBy,
		AcknowledgmentTimestamp: events.TruncateToCanonical(s.now()),
		ResponseChoice:          responseChoice,
	}

	if _, err := s.writer.WriteEvent(ctx, events.TypeBreachAcknowledged, payload, AgentID, payload.AcknowledgmentTimestamp); err != nil {
		if errors.Is(err, halt.ErrSystemHalted) {
			return nil, err
		}
		return nil, fmt.Errorf("FR31: failed to record acknowledgment: %w", err)
	}

	if err := s.repo.SaveAcknowledgment(ctx, payload); err != nil {
		s.logger.Printf("CRITICAL: acknowledgment event written but index save failed: breach_id=%s err=%v",
			breachID, err)
		return nil, fmt.Errorf("FR31: acknowledgment event written but index update failed, human intervention required: %w", err)
	}

	s.logger.Printf("breach acknowledged: breach_id=%s by=%s choice=%s",
		breachID, acknowledgedBy, responseChoice)
	return payload, nil
}

// EscalateBreach escalates one breach to the Conclave agenda (FR31),
// regardless of age. The escalation is rejected if the breach is unknown,
// already acknowledged, or already escalated. Automatic 7-day escalation goes
// through CheckAndEscalateBreaches.
func (s *Service) EscalateBreach(ctx context.Context, breachID uuid.UUID) (*events.EscalationPayload, error) {
	// HALT CHECK FIRST (CT-11)
	if err := s.checkHalt(ctx); err != nil {
		return nil, err
	}

	breach, err := s.breaches.GetByID(ctx, breachID)
	if err != nil {
		if errors.Is(err, store.ErrBreachNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrBreachNotFound, breachID)
		}
		return nil, fmt.Errorf("failed to load breach %s: %w", breachID, err)
	}

	if err := s.ensureNotAcknowledged(ctx, breachID); err != nil {
		return nil, err
	}
	if err := s.ensureNotEscalated(ctx, breachID); err != nil {
		return nil, err
	}

	return s.escalate(ctx, breach)
}

// CheckAndEscalateBreaches scans the registry and escalates every breach at
// least 7 days old that is neither acknowledged nor escalated (FR31).
// Designed to run periodically; idempotent over repeated invocations.
// Per-breach failures are logged and skipped.
func (s *Service) CheckAndEscalateBreaches(ctx context.Context) ([]*events.EscalationPayload, error) {
	// HALT CHECK FIRST (CT-11)
	if err := s.checkHalt(ctx); err != nil {
		return nil, err
	}

	all, err := s.breaches.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("FR31: failed to list breaches for escalation sweep: %w", err)
	}

	now := s.now()
	threshold := time.Duration(s.thresholdDays) * 24 * time.Hour
	escalated := make([]*events.EscalationPayload, 0)

	for _, breach := range all {
		if err := ctx.Err(); err != nil {
			return escalated, err
		}
		if now.Sub(breach.DetectionTimestamp) < threshold {
			continue
		}
		acked, escd, err := s.transitionState(ctx, breach.BreachID)
		if err != nil {
			s.logger.Printf("escalation sweep: failed to read state for breach %s: %v", breach.BreachID, err)
			continue
		}
		if acked || escd {
			continue
		}
		e, err := s.escalate(ctx, breach)
		if err != nil {
			if errors.Is(err, halt.ErrSystemHalted) {
				return escalated, err
			}
			s.logger.Printf("escalation sweep: failed to escalate breach %s: %v", breach.BreachID, err)
			continue
		}
		escalated = append(escalated, e)
	}

	s.logger.Printf("escalation sweep complete: checked=%d escalated=%d", len(all), len(escalated))
	return escalated, nil
}

func (s *Service) escalate(ctx context.Context, breach *events.BreachPayload) (*events.EscalationPayload, error) {
	now := events.TruncateToCanonical(s.now())
	daysSince := int(now.Sub(breach.DetectionTimestamp).Hours() / 24)

	payload := &events.EscalationPayload{
		EscalationID:          uuid.New(),
		BreachID:              breach.BreachID,
		BreachType:            breach.BreachType,
		EscalationTimestamp:   now,
		DaysSinceBreach:       daysSince,
		AgendaPlacementReason: fmt.Sprintf("%d-day unacknowledged breach per FR31 (actual: %d days)", s.thresholdDays, daysSince),
	}

	if _, err := s.writer.WriteEvent(ctx, events.TypeBreachEscalated, payload, AgentID, now); err != nil {
		if errors.Is(err, halt.ErrSystemHalted) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrEscalation, err)
	}

	if err := s.repo.SaveEscalation(ctx, payload); err != nil {
		s.logger.Printf("CRITICAL: escalation event written but index save failed: breach_id=%s err=%v",
			breach.BreachID, err)
		return nil, fmt.Errorf("%w: event written but index update failed, human intervention required: %v",
			ErrEscalation, err)
	}

	s.logger.Printf("breach escalated to Conclave agenda: breach_id=%s days_since=%d",
		breach.BreachID, daysSince)
	return payload, nil
}

// GetPendingEscalations lists breaches that are neither acknowledged nor
// escalated, with time remaining until the deadline, most urgent first.
func (s *Service) GetPendingEscalations(ctx context.Context) ([]PendingEscalation, error) {
	// HALT CHECK FIRST (CT-11)
	if err := s.checkHalt(ctx); err != nil {
		return nil, err
	}

	all, err := s.breaches.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("FR31: failed to list breaches: %w", err)
	}

	now := s.now()
	pending := make([]PendingEscalation, 0)
	for _, breach := range all {
		acked, escd, err := s.transitionState(ctx, breach.BreachID)
		if err != nil {
			return nil, err
		}
		if acked || escd {
			continue
		}
		pending = append(pending, NewPendingEscalation(breach, now, s.thresholdDays))
	}

	sort.SliceStable(pending, func(i, j int) bool {
		return pending[i].HoursRemaining < pending[j].HoursRemaining
	})
	return pending, nil
}

// IsBreachAcknowledged reports whether the breach has an acknowledgment.
func (s *Service) IsBreachAcknowledged(ctx context.Context, breachID uuid.UUID) (bool, error) {
	if err := s.checkHalt(ctx); err != nil {
		return false, err
	}
	acked, _, err := s.transitionState(ctx, breachID)
	return acked, err
}

// IsBreachEscalated reports whether the breach has an escalation.
func (s *Service) IsBreachEscalated(ctx context.Context, breachID uuid.UUID) (bool, error) {
	if err := s.checkHalt(ctx); err != nil {
		return false, err
	}
	_, escd, err := s.transitionState(ctx, breachID)
	return escd, err
}

// GetBreachStatus returns the combined state-machine view of one breach.
func (s *Service) GetBreachStatus(ctx context.Context, breachID uuid.UUID) (*BreachStatus, error) {
	if err := s.checkHalt(ctx); err != nil {
		return nil, err
	}

	if _, err := s.breaches.GetByID(ctx, breachID); err != nil {
		if errors.Is(err, store.ErrBreachNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrBreachNotFound, breachID)
		}
		return nil, fmt.Errorf("failed to load breach %s: %w", breachID, err)
	}

	status := &BreachStatus{}
	ack, err := s.repo.AcknowledgmentForBreach(ctx, breachID)
	switch {
	case err == nil:
		status.IsAcknowledged = true
		status.Acknowledgment = ack
	case !errors.Is(err, store.ErrAcknowledgmentNotFound):
		return nil, fmt.Errorf("failed to read acknowledgment for breach %s: %w", breachID, err)
	}

	esc, err := s.repo.EscalationForBreach(ctx, breachID)
	switch {
	case err == nil:
		status.IsEscalated = true
		status.Escalation = esc
	case !errors.Is(err, store.ErrEscalationNotFound):
		return nil, fmt.Errorf("failed to read escalation for breach %s: %w", breachID, err)
	}

	return status, nil
}

// transitionState reads the (acknowledged, escalated) pair for a breach.
func (s *Service) transitionState(ctx context.Context, breachID uuid.UUID) (bool, bool, error) {
	acked := true
	if _, err := s.repo.AcknowledgmentForBreach(ctx, breachID); err != nil {
		if !errors.Is(err, store.ErrAcknowledgmentNotFound) {
			return false, false, fmt.Errorf("failed to read acknowledgment for breach %s: %w", breachID, err)
		}
		acked = false
	}
	escd := true
	if _, err := s.repo.EscalationForBreach(ctx, breachID); err != nil {
		if !errors.Is(err, store.ErrEscalationNotFound) {
			return false, false, fmt.Errorf("failed to read escalation for breach %s: %w", breachID, err)
		}
		escd = false
	}
	return acked, escd, nil
}

func (s *Service) ensureNotAcknowledged(ctx context.Context, breachID uuid.UUID) error {
	_, err := s.repo.AcknowledgmentForBreach(ctx, breachID)
	if err == nil {
		return fmt.Errorf("%w: %s", ErrBreachAlreadyAcknowledged, breachID)
	}
	if !errors.Is(err, store.ErrAcknowledgmentNotFound) {
		return fmt.Errorf("failed to read acknowledgment for breach %s: %w", breachID, err)
	}
	return nil
}

func (s *Service) ensureNotEscalated(ctx context.Context, breachID uuid.UUID) error {
	_, err := s.repo.EscalationForBreach(ctx, breachID)
	if err == nil {
		return fmt.Errorf("%w: %s", ErrBreachAlreadyEscalated, breachID)
	}
	if !errors.Is(err, store.ErrEscalationNotFound) {
		return fmt.Errorf("failed to read escalation for breach %s: %w", breachID, err)
	}
	return nil
}
