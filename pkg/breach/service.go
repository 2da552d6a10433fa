// Copyright 2025 Archon 72 Project
//
// Breach Declaration Service (FR30)
//
// Declares constitutional breaches as witnessed events and serves breach
// queries. HALT CHECK FIRST: every operation consults the halt gate before
// doing anything else. All breach events are written through the Event
// Writer, then mirrored into the breach registry for querying.

package breach

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

// AgentID is the attributed originator of breach declaration events.
const AgentID = "breach_declaration_system"

// Service manages constitutional breach declarations.
type Service struct {
	repo   store.BreachRepository
	writer *writer.Writer
	gate   writer.HaltChecker
	logger *log.Logger
	now    func() time.Time
}

// Option is a functional option for configuring the service.
type Option func(*Service)

// WithLogger sets a custom logger.
func WithLogger(logger *log.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithClock sets the time source. Timed behavior in tests depends on this.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a breach declaration service.
func NewService(repo store.BreachRepository, w *writer.Writer, gate writer.HaltChecker, opts ...Option) *Service {
	s := &Service{
		repo:   repo,
		writer: w,
		gate:   gate,
		logger: log.New(log.Writer(), "[Breach] ", log.LstdFlags),
		now:    func() time.Time { return time.Now().UTC() },
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

// DeclareBreach records a constitutional breach (FR30). The breach.declared
// event is witnessed and appended before the registry is updated. When
// sourceEventID is provided it must reference an event already in the log.
func (s *Service) DeclareBreach(
	ctx context.Context,
	breachType events.BreachType,
	violatedRequirement string,
	severity events.Severity,
	details map[string]any,
	sourceEventID *uuid.UUID,
) (*events.BreachPayload, error) {
	// HALT CHECK FIRST (CT-11)
	if err := s.checkHalt(ctx); err != nil {
		return nil, err
	}

	if !events.ValidBreachType(breachType) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBreachType, breachType)
	}
	if !events.ValidSeverity(severity) {
		return nil, fmt.Errorf("%w: severity %q", ErrInvalidBreachType, severity)
	}
	if sourceEventID != nil {
		if err := s.verifySourceEvent(ctx, *sourceEventID); err != nil {
			return nil, err
		}
	}

	payload := &events.BreachPayload{
		BreachID:            uuid.New(),
		BreachType:          breachType,
		ViolatedRequirement: violatedRequirement,
		Severity:            severity,
		DetectionTimestamp:  events.TruncateToCanonical(s.now()),
		Details:             details,
		SourceEventID:       sourceEventID,
	}

	if _, err := s.writer.WriteEvent(ctx, events.TypeBreachDeclared, payload, AgentID, payload.DetectionTimestamp); err != nil {
		if errors.Is(err, halt.ErrSystemHalted) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrDeclaration, err)
	}

	if err := s.repo.Save(ctx, payload); err != nil {
		// The event is durable and is the truth; the registry is behind.
		s.logger.Printf("CRITICAL: breach event written but registry save failed: breach_id=%s err=%v",
			payload.BreachID, err)
		return nil, fmt.Errorf("%w: event written but registry update failed, human intervention required: %v",
			ErrDeclaration, err)
	}

	s.logger.Printf("breach declared: breach_id=%s type=%s severity=%s requirement=%s",
		payload.BreachID, breachType, severity, violatedRequirement)
	return payload, nil
}

// verifySourceEvent checks that the referenced event exists in the log. Every
// event in the log is witnessed by construction, so existence is the
// witnessed-ness check.
func (s *Service) verifySourceEvent(ctx context.Context, sourceEventID uuid.UUID) error {
	head, err := s.writer.Head(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrQuery, err)
	}
	for e := head; e != nil; {
		if e.EventID == sourceEventID {
			return nil
		}
		if e.Sequence <= 1 {
			break
		}
		prev, err := s.writer.BySequence(ctx, e.Sequence-1)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrQuery, err)
		}
		e = prev
	}
	return fmt.Errorf("%w: %s", ErrUnknownSourceEvent, sourceEventID)
}

// GetBreachByID retrieves one breach. Returns store.ErrBreachNotFound when
// absent.
func (s *Service) GetBreachByID(ctx context.Context, breachID uuid.UUID) (*events.BreachPayload, error) {
	if err := s.checkHalt(ctx); err != nil {
		return nil, err
	}
	b, err := s.repo.GetByID(ctx, breachID)
	if err != nil {
		if errors.Is(err, store.ErrBreachNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrQuery, err)
	}
	return b, nil
}

// ListAllBreaches returns every stored breach.
func (s *Service) ListAllBreaches(ctx context.Context) ([]*events.BreachPayload, error) {
	if err := s.checkHalt(ctx); err != nil {
		return nil, err
	}
	out, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQuery, err)
	}
	return out, nil
}

// FilterBreaches filters by any combination of type and closed date range
// (inclusive on both ends). The date range applies only when both start and
// end are given; a lone start or end is ignored, as are nil filters. With no
// filters the full registry is returned.
func (s *Service) FilterBreaches(
	ctx context.Context,
	breachType *events.BreachType,
	start, end *time.Time,
) ([]*events.BreachPayload, error) {
	if err := s.checkHalt(ctx); err != nil {
		return nil, err
	}

	var (
		out []*events.BreachPayload
		err error
	)
	switch {
	case breachType != nil && start != nil && end != nil:
		out, err = s.repo.FilterByTypeAndDateRange(ctx, *breachType, *start, *end)
	case breachType != nil:
		out, err = s.repo.FilterByType(ctx, *breachType)
	case start != nil && end != nil:
		out, err = s.repo.FilterByDateRange(ctx, *start, *end)
	default:
		out, err = s.repo.ListAll(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQuery, err)
	}
	return out, nil
}

// CountUnacknowledgedInWindow counts unacknowledged breaches in the trailing
// window. Supports the cessation trigger (FR32).
func (s *Service) CountUnacknowledgedInWindow(ctx context.Context, windowDays int) (int, error) {
	if err := s.checkHalt(ctx); err != nil {
		return 0, err
	}
	cutoff := s.now().AddDate(0, 0, -windowDays)
	n, err := s.repo.CountUnacknowledgedSince(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrQuery, err)
	}
	return n, nil
}

// GetUnacknowledgedInWindow returns the unacknowledged breaches in the
// trailing window, ordered by detection timestamp.
func (s *Service) GetUnacknowledgedInWindow(ctx context.Context, windowDays int) ([]*events.BreachPayload, error) {
	if err := s.checkHalt(ctx); err != nil {
		return nil, err
	}
	cutoff := s.now().AddDate(0, 0, -windowDays)
	out, err := s.repo.UnacknowledgedSince(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQuery, err)
	}
	return out, nil
}
