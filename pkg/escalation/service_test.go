// Copyright 2025 Archon 72 Project
//
// Unit tests for the escalation state machine

package escalation

import (
	"context"
	"errors"
	"testing"
	"time"

	dbm "github.com/cometbft/cometbft-db"
	"github.com/google/uuid"

	"github.com/archon72/accountability-engine/pkg/breach"
	"github.com/archon72/accountability-engine/pkg/events"
	"github.com/archon72/accountability-engine/pkg/halt"
	"github.com/archon72/accountability-engine/pkg/kvdb"
	"github.com/archon72/accountability-engine/pkg/ledger"
	"github.com/archon72/accountability-engine/pkg/memstore"
	"github.com/archon72/accountability-engine/pkg/witness"
	"github.com/archon72/accountability-engine/pkg/writer"
)

type testClock struct{ t time.Time }

func (c *testClock) now() time.Time          { return c.t }
func (c *testClock) advance(d time.Duration) { c.t = c.t.Add(d) }

type harness struct {
	clock       *testClock
	gate        *halt.Gate
	log         *ledger.EventLog
	breaches    *breach.Service
	escalations *Service

	svcBreaches    *memstore.BreachStore
	svcEscalations *memstore.EscalationStore
	svcWriter      *writer.Writer
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	clock := &testClock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	log := ledger.NewEventLog(kvdb.NewKVAdapter(dbm.NewMemDB()))
	wit, err := witness.NewEd25519Witness("witness-1", nil)
	if err != nil {
		t.Fatalf("failed to create witness: %v", err)
	}
	gate := halt.NewGate(nil)
	w, err := writer.New(log, wit, gate)
	if err != nil {
		t.Fatalf("failed to create writer: %v", err)
	}

	escalationStore := memstore.NewEscalationStore()
	breachStore := memstore.NewBreachStore(escalationStore)

	return &harness{
		clock:          clock,
		gate:           gate,
		log:            log,
		breaches:       breach.NewService(breachStore, w, gate, breach.WithClock(clock.now)),
		escalations:    NewService(breachStore, escalationStore, w, gate, WithClock(clock.now)),
		svcBreaches:    breachStore,
		svcEscalations: escalationStore,
		svcWriter:      w,
	}
}

func (h *harness) declare(t *testing.T) *events.BreachPayload {
	t.Helper()
	b, err := h.breaches.DeclareBreach(
		context.Background(), events.BreachTimingViolation, "FR21",
		events.SeverityMedium, map[string]any{"check": "watchdog"}, nil)
	if err != nil {
		t.Fatalf("DeclareBreach failed: %v", err)
	}
	return b
}

func (h *harness) eventTypes(t *testing.T) []string {
	t.Helper()
	ctx := context.Background()
	head, err := h.log.Head(ctx)
	if err != nil {
		t.Fatalf("Head failed: %v", err)
	}
	if head == nil {
		return nil
	}
	types := make([]string, head.Sequence)
	for seq := uint64(1); seq <= head.Sequence; seq++ {
		e, err := h.log.BySequence(ctx, seq)
		if err != nil {
			t.Fatalf("BySequence(%d) failed: %v", seq, err)
		}
		types[seq-1] = e.EventType
	}
	return types
}

// Scenario: declare, age past 7 days, sweep escalates exactly once.
func TestDeclareAgeEscalate(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	b := h.declare(t)
	h.clock.advance(7*24*time.Hour + time.Second)

	escalated, err := h.escalations.CheckAndEscalateBreaches(ctx)
	if err != nil {
		t.Fatalf("CheckAndEscalateBreaches failed: %v", err)
	}
	if len(escalated) != 1 {
		t.Fatalf("escalated %d breaches, want 1", len(escalated))
	}
	e := escalated[0]
	if e.BreachID != b.BreachID {
		t.Errorf("escalated breach %s, want %s", e.BreachID, b.BreachID)
	}
	if e.DaysSinceBreach != 7 {
		t.Errorf("days_since_breach = %d, want 7", e.DaysSinceBreach)
	}
	want := "7-day unacknowledged breach per FR31 (actual: 7 days)"
	if e.AgendaPlacementReason != want {
		t.Errorf("agenda reason = %q, want %q", e.AgendaPlacementReason, want)
	}

	types := h.eventTypes(t)
	if len(types) != 2 || types[0] != events.TypeBreachDeclared || types[1] != events.TypeBreachEscalated {
		t.Errorf("event order = %v, want [breach.declared breach.escalated]", types)
	}

	escd, err := h.escalations.IsBreachEscalated(ctx, b.BreachID)
	if err != nil || !escd {
		t.Errorf("IsBreachEscalated = %v, %v; want true", escd, err)
	}
	acked, err := h.escalations.IsBreachAcknowledged(ctx, b.BreachID)
	if err != nil || acked {
		t.Errorf("IsBreachAcknowledged = %v, %v; want false", acked, err)
	}
}

// Boundary: a breach exactly 7.0 days old escalates.
func TestEscalationAtExactThreshold(t *testing.T) {
	h := newHarness(t)
	h.declare(t)
	h.clock.advance(7 * 24 * time.Hour)

	escalated, err := h.escalations.CheckAndEscalateBreaches(context.Background())
	if err != nil {
		t.Fatalf("CheckAndEscalateBreaches failed: %v", err)
	}
	if len(escalated) != 1 {
		t.Errorf("escalated %d breaches at exactly 7.0 days, want 1", len(escalated))
	}
}

func TestNoEscalationBeforeThreshold(t *testing.T) {
	h := newHarness(t)
	h.declare(t)
	h.clock.advance(7*24*time.Hour - time.Second)

	escalated, err := h.escalations.CheckAndEscalateBreaches(context.Background())
	if err != nil {
		t.Fatalf("CheckAndEscalateBreaches failed: %v", err)
	}
	if len(escalated) != 0 {
		t.Errorf("escalated %d breaches before threshold, want 0", len(escalated))
	}
}

// Scenario: acknowledgment stops the escalation timer.
func TestAcknowledgeStopsTimer(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	b := h.declare(t)
	h.clock.advance(3 * 24 * time.Hour)

	ack, err := h.escalations.AcknowledgeBreach(ctx, b.BreachID, "keeper:alice", events.ResponseCorrective)
	if err != nil {
		t.Fatalf("AcknowledgeBreach failed: %v", err)
	}
	if ack.AcknowledgedBy != "keeper:alice" || ack.ResponseChoice != events.ResponseCorrective {
		t.Errorf("unexpected acknowledgment: %+v", ack)
	}

	h.clock.advance(27 * 24 * time.Hour) // t = 30d

	escalated, err := h.escalations.CheckAndEscalateBreaches(ctx)
	if err != nil {
		t.Fatalf("CheckAndEscalateBreaches failed: %v", err)
	}
	if len(escalated) != 0 {
		t.Errorf("escalated %d acknowledged breaches, want 0", len(escalated))
	}

	pending, err := h.escalations.GetPendingEscalations(ctx)
	if err != nil {
		t.Fatalf("GetPendingEscalations failed: %v", err)
	}
	for _, p := range pending {
		if p.BreachID == b.BreachID {
			t.Error("acknowledged breach listed as pending escalation")
		}
	}
}

// Idempotence: a second sweep escalates nothing new.
func TestSweepIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.declare(t)
	h.declare(t)
	h.clock.advance(8 * 24 * time.Hour)

	first, err := h.escalations.CheckAndEscalateBreaches(ctx)
	if err != nil {
		t.Fatalf("first sweep failed: %v", err)
	}
	if len(first) != 2 {
		t.Fatalf("first sweep escalated %d, want 2", len(first))
	}

	second, err := h.escalations.CheckAndEscalateBreaches(ctx)
	if err != nil {
		t.Fatalf("second sweep failed: %v", err)
	}
	if len(second) != 0 {
		t.Errorf("second sweep escalated %d, want 0", len(second))
	}
}

func TestAcknowledgeValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	b := h.declare(t)

	if _, err := h.escalations.AcknowledgeBreach(ctx, b.BreachID, "   ", events.ResponseCorrective); !errors.Is(err, ErrInvalidAcknowledgment) {
		t.Errorf("blank acknowledged_by: got %v, want ErrInvalidAcknowledgment", err)
	}
	if _, err := h.escalations.AcknowledgeBreach(ctx, b.BreachID, "keeper:alice", events.ResponseChoice("retry")); !errors.Is(err, ErrInvalidAcknowledgment) {
		t.Errorf("unknown response choice: got %v, want ErrInvalidAcknowledgment", err)
	}
	if _, err := h.escalations.AcknowledgeBreach(ctx, uuid.New(), "keeper:alice", events.ResponseCorrective); !errors.Is(err, ErrBreachNotFound) {
		t.Errorf("unknown breach: got %v, want ErrBreachNotFound", err)
	}
}

func TestDoubleAcknowledgmentRejected(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	b := h.declare(t)

	if _, err := h.escalations.AcknowledgeBreach(ctx, b.BreachID, "keeper:alice", events.ResponseCorrective); err != nil {
		t.Fatalf("first acknowledgment failed: %v", err)
	}
	_, err := h.escalations.AcknowledgeBreach(ctx, b.BreachID, "keeper:bob", events.ResponseDismiss)
	if !errors.Is(err, ErrBreachAlreadyAcknowledged) {
		t.Errorf("expected ErrBreachAlreadyAcknowledged, got %v", err)
	}
}

func TestDoubleEscalationRejected(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	b := h.declare(t)
	h.clock.advance(8 * 24 * time.Hour)

	if _, err := h.escalations.EscalateBreach(ctx, b.BreachID); err != nil {
		t.Fatalf("first escalation failed: %v", err)
	}
	_, err := h.escalations.EscalateBreach(ctx, b.BreachID)
	if !errors.Is(err, ErrBreachAlreadyEscalated) {
		t.Errorf("expected ErrBreachAlreadyEscalated, got %v", err)
	}
}

// Escalation and acknowledgment are mutually exclusive in both directions.
func TestTransitionsMutuallyExclusive(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	// Escalated breach cannot be acknowledged.
	b1 := h.declare(t)
	h.clock.advance(8 * 24 * time.Hour)
	if _, err := h.escalations.EscalateBreach(ctx, b1.BreachID); err != nil {
		t.Fatalf("escalation failed: %v", err)
	}
	if _, err := h.escalations.AcknowledgeBreach(ctx, b1.BreachID, "keeper:alice", events.ResponseDefer); !errors.Is(err, ErrBreachAlreadyEscalated) {
		t.Errorf("acknowledging escalated breach: got %v, want ErrBreachAlreadyEscalated", err)
	}

	// Acknowledged breach never escalates, even via the manual path.
	b2 := h.declare(t)
	if _, err := h.escalations.AcknowledgeBreach(ctx, b2.BreachID, "keeper:alice", events.ResponseAccept); err != nil {
		t.Fatalf("acknowledgment failed: %v", err)
	}
	h.clock.advance(8 * 24 * time.Hour)
	escalated, err := h.escalations.CheckAndEscalateBreaches(ctx)
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	for _, e := range escalated {
		if e.BreachID == b2.BreachID {
			t.Error("acknowledged breach escalated by sweep")
		}
	}
	if _, err := h.escalations.EscalateBreach(ctx, b2.BreachID); !errors.Is(err, ErrBreachAlreadyAcknowledged) {
		t.Errorf("manually escalating acknowledged breach: got %v, want ErrBreachAlreadyAcknowledged", err)
	}

	status, err := h.escalations.GetBreachStatus(ctx, b2.BreachID)
	if err != nil {
		t.Fatalf("GetBreachStatus failed: %v", err)
	}
	if !status.IsAcknowledged || status.IsEscalated {
		t.Errorf("status = %+v, want acknowledged and not escalated", status)
	}
}

func TestPendingEscalationsOrderingAndUrgency(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	oldest := h.declare(t) // will be overdue
	h.clock.advance(8 * 24 * time.Hour)
	middle := h.declare(t) // 12h remaining -> URGENT
	h.clock.advance(6*24*time.Hour + 12*time.Hour)
	newest := h.declare(t) // 7d remaining -> PENDING

	pending, err := h.escalations.GetPendingEscalations(ctx)
	if err != nil {
		t.Fatalf("GetPendingEscalations failed: %v", err)
	}
	if len(pending) != 3 {
		t.Fatalf("pending count = %d, want 3", len(pending))
	}

	if pending[0].BreachID != oldest.BreachID || pending[0].Urgency() != UrgencyOverdue {
		t.Errorf("pending[0] = %s urgency %s, want oldest OVERDUE", pending[0].BreachID, pending[0].Urgency())
	}
	if pending[1].BreachID != middle.BreachID || pending[1].Urgency() != UrgencyUrgent {
		t.Errorf("pending[1] = %s urgency %s, want middle URGENT", pending[1].BreachID, pending[1].Urgency())
	}
	if pending[2].BreachID != newest.BreachID || pending[2].Urgency() != UrgencyPending {
		t.Errorf("pending[2] = %s urgency %s, want newest PENDING", pending[2].BreachID, pending[2].Urgency())
	}

	if !pending[0].IsOverdue() {
		t.Error("oldest breach not reported overdue")
	}
	if pending[0].HoursRemaining >= 0 {
		t.Errorf("overdue hours remaining = %d, want negative", pending[0].HoursRemaining)
	}
}

// A configured deadline overrides the constitutional default.
func TestConfiguredThresholdDays(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	// Rebuild the escalation service with a 3-day deadline over the same
	// stores and writer.
	short := NewService(h.svcBreaches, h.svcEscalations, h.svcWriter, h.gate,
		WithClock(h.clock.now), WithThresholdDays(3))

	b := h.declare(t)
	h.clock.advance(3 * 24 * time.Hour)

	escalated, err := short.CheckAndEscalateBreaches(ctx)
	if err != nil {
		t.Fatalf("CheckAndEscalateBreaches failed: %v", err)
	}
	if len(escalated) != 1 {
		t.Fatalf("escalated %d breaches at the 3-day deadline, want 1", len(escalated))
	}
	if escalated[0].BreachID != b.BreachID || escalated[0].DaysSinceBreach != 3 {
		t.Errorf("escalation = %+v, want breach %s at 3 days", escalated[0], b.BreachID)
	}
	want := "3-day unacknowledged breach per FR31 (actual: 3 days)"
	if escalated[0].AgendaPlacementReason != want {
		t.Errorf("agenda reason = %q, want %q", escalated[0].AgendaPlacementReason, want)
	}
}

func TestOperationsHaltChecked(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	b := h.declare(t)

	h.gate.RaiseAlarm("test halt")

	if _, err := h.escalations.AcknowledgeBreach(ctx, b.BreachID, "keeper:alice", events.ResponseCorrective); !errors.Is(err, halt.ErrSystemHalted) {
		t.Errorf("AcknowledgeBreach: got %v, want ErrSystemHalted", err)
	}
	if _, err := h.escalations.EscalateBreach(ctx, b.BreachID); !errors.Is(err, halt.ErrSystemHalted) {
		t.Errorf("EscalateBreach: got %v, want ErrSystemHalted", err)
	}
	if _, err := h.escalations.CheckAndEscalateBreaches(ctx); !errors.Is(err, halt.ErrSystemHalted) {
		t.Errorf("CheckAndEscalateBreaches: got %v, want ErrSystemHalted", err)
	}
	if _, err := h.escalations.GetPendingEscalations(ctx); !errors.Is(err, halt.ErrSystemHalted) {
		t.Errorf("GetPendingEscalations: got %v, want ErrSystemHalted", err)
	}
}
