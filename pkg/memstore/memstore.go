// Copyright 2025 Archon 72 Project
//
// In-memory repository implementations
//
// Used by the test suites and by the daemon when no database is configured,
// the same way the validator falls back to an in-memory KV. All stores are
// safe for concurrent readers with a single writer role per entity type.

package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/archon72/accountability-engine/pkg/events"
	"github.com/archon72/accountability-engine/pkg/store"
)

// BreachStore is an in-memory store.BreachRepository. Acknowledgment state is
// observed through the paired EscalationStore so that "unacknowledged"
// queries see the same index the escalation service maintains.
type BreachStore struct {
	mu       sync.RWMutex
	byID     map[uuid.UUID]*events.BreachPayload
	ordered  []uuid.UUID
	ackIndex *EscalationStore
}

// NewBreachStore creates a breach store whose unacknowledged queries consult
// the given escalation store.
func NewBreachStore(acks *EscalationStore) *BreachStore {
	return &BreachStore{
		byID:     make(map[uuid.UUID]*events.BreachPayload),
		ackIndex: acks,
	}
}

// Save implements store.BreachRepository.
func (s *BreachStore) Save(ctx context.Context, breach *events.BreachPayload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byID[breach.BreachID]; exists {
		return fmt.Errorf("breach %s already stored", breach.BreachID)
	}
	clone := *breach
	s.byID[breach.BreachID] = &clone
	s.ordered = append(s.ordered, breach.BreachID)
	return nil
}

// GetByID implements store.BreachRepository.
func (s *BreachStore) GetByID(ctx context.Context, breachID uuid.UUID) (*events.BreachPayload, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.byID[breachID]
	if !ok {
		return nil, store.ErrBreachNotFound
	}
	clone := *b
	return &clone, nil
}

// ListAll implements store.BreachRepository.
func (s *BreachStore) ListAll(ctx context.Context) ([]*events.BreachPayload, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*events.BreachPayload, 0, len(s.ordered))
	for _, id := range s.ordered {
		clone := *s.byID[id]
		out = append(out, &clone)
	}
	return out, nil
}

// FilterByType implements store.BreachRepository.
func (s *BreachStore) FilterByType(ctx context.Context, breachType events.BreachType) ([]*events.BreachPayload, error) {
	return s.filter(func(b *events.BreachPayload) bool {
		return b.BreachType == breachType
	})
}

// FilterByDateRange implements store.BreachRepository. Both ends inclusive.
func (s *BreachStore) FilterByDateRange(ctx context.Context, start, end time.Time) ([]*events.BreachPayload, error) {
	return s.filter(func(b *events.BreachPayload) bool {
		return inRange(b.DetectionTimestamp, start, end)
	})
}

// FilterByTypeAndDateRange implements store.BreachRepository.
func (s *BreachStore) FilterByTypeAndDateRange(ctx context.Context, breachType events.BreachType, start, end time.Time) ([]*events.BreachPayload, error) {
	return s.filter(func(b *events.BreachPayload) bool {
		return b.BreachType == breachType && inRange(b.DetectionTimestamp, start, end)
	})
}

// CountUnacknowledgedSince implements store.BreachRepository.
func (s *BreachStore) CountUnacknowledgedSince(ctx context.Context, cutoff time.Time) (int, error) {
	matches, err := s.UnacknowledgedSince(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	return len(matches), nil
}

// UnacknowledgedSince implements store.BreachRepository.
func (s *BreachStore) UnacknowledgedSince(ctx context.Context, cutoff time.Time) ([]*events.BreachPayload, error) {
	matches, err := s.filter(func(b *events.BreachPayload) bool {
		return !b.DetectionTimestamp.Before(cutoff) && !s.ackIndex.hasAcknowledgment(b.BreachID)
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].DetectionTimestamp.Before(matches[j].DetectionTimestamp)
	})
	return matches, nil
}

func (s *BreachStore) filter(keep func(*events.BreachPayload) bool) ([]*events.BreachPayload, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*events.BreachPayload
	for _, id := range s.ordered {
		b := s.byID[id]
		if keep(b) {
			clone := *b
			out = append(out, &clone)
		}
	}
	return out, nil
}

func inRange(t, start, end time.Time) bool {
	return !t.Before(start) && !t.After(end)
}

// EscalationStore is an in-memory store.EscalationRepository enforcing the
// one-escalation-per-breach and one-acknowledgment-per-breach indices.
type EscalationStore struct {
	mu          sync.RWMutex
	escalations map[uuid.UUID]*events.EscalationPayload
	acks        map[uuid.UUID]*events.AcknowledgmentPayload
}

// NewEscalationStore creates an empty escalation store.
func NewEscalationStore() *EscalationStore {
	return &EscalationStore{
		escalations: make(map[uuid.UUID]*events.EscalationPayload),
		acks:        make(map[uuid.UUID]*events.AcknowledgmentPayload),
	}
}

// SaveEscalation implements store.EscalationRepository.
func (s *EscalationStore) SaveEscalation(ctx context.Context, escalation *events.EscalationPayload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.escalations[escalation.BreachID]; exists {
		return fmt.Errorf("%w: %s", store.ErrEscalationExists, escalation.BreachID)
	}
	clone := *escalation
	s.escalations[escalation.BreachID] = &clone
	return nil
}

// SaveAcknowledgment implements store.EscalationRepository.
func (s *EscalationStore) SaveAcknowledgment(ctx context.Context, ack *events.AcknowledgmentPayload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.acks[ack.BreachID]; exists {
		return fmt.Errorf("%w: %s", store.ErrAcknowledgmentExists, ack.BreachID)
	}
	clone := *ack
	s.acks[ack.BreachID] = &clone
	return nil
}

// EscalationForBreach implements store.EscalationRepository.
func (s *EscalationStore) EscalationForBreach(ctx context.Context, breachID uuid.UUID) (*events.EscalationPayload, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.escalations[breachID]
	if !ok {
		return nil, store.ErrEscalationNotFound
	}
	clone := *e
	return &clone, nil
}

// AcknowledgmentForBreach implements store.EscalationRepository.
func (s *EscalationStore) AcknowledgmentForBreach(ctx context.Context, breachID uuid.UUID) (*events.AcknowledgmentPayload, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.acks[breachID]
	if !ok {
		return nil, store.ErrAcknowledgmentNotFound
	}
	clone := *a
	return &clone, nil
}

func (s *EscalationStore) hasAcknowledgment(breachID uuid.UUID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.acks[breachID]
	return ok
}

// CessationStore is an in-memory store.CessationRepository.
type CessationStore struct {
	mu             sync.RWMutex
	considerations map[uuid.UUID]*events.ConsiderationPayload
	ordered        []uuid.UUID
	decisions      map[uuid.UUID]*events.DecisionPayload
}

// NewCessationStore creates an empty cessation store.
func NewCessationStore() *CessationStore {
	return &CessationStore{
		considerations: make(map[uuid.UUID]*events.ConsiderationPayload),
		decisions:      make(map[uuid.UUID]*events.DecisionPayload),
	}
}

// SaveConsideration implements store.CessationRepository.
func (s *CessationStore) SaveConsideration(ctx context.Context, consideration *events.ConsiderationPayload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.considerations[consideration.ConsiderationID]; exists {
		return fmt.Errorf("consideration %s already stored", consideration.ConsiderationID)
	}
	clone := *consideration
	s.considerations[consideration.ConsiderationID] = &clone
	s.ordered = append(s.ordered, consideration.ConsiderationID)
	return nil
}

// ConsiderationByID implements store.CessationRepository.
func (s *CessationStore) ConsiderationByID(ctx context.Context, considerationID uuid.UUID) (*events.ConsiderationPayload, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.considerations[considerationID]
	if !ok {
		return nil, store.ErrConsiderationNotFound
	}
	clone := *c
	return &clone, nil
}

// ActiveConsideration implements store.CessationRepository.
func (s *CessationStore) ActiveConsideration(ctx context.Context) (*events.ConsiderationPayload, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range s.ordered {
		if _, decided := s.decisions[id]; !decided {
			clone := *s.considerations[id]
			return &clone, nil
		}
	}
	return nil, store.ErrNoActiveConsideration
}

// SaveDecision implements store.CessationRepository.
func (s *CessationStore) SaveDecision(ctx context.Context, decision *events.DecisionPayload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.decisions[decision.ConsiderationID]; exists {
		return fmt.Errorf("%w: %s", store.ErrDecisionExists, decision.ConsiderationID)
	}
	clone := *decision
	s.decisions[decision.ConsiderationID] = &clone
	return nil
}

// DecisionForConsideration implements store.CessationRepository.
func (s *CessationStore) DecisionForConsideration(ctx context.Context, considerationID uuid.UUID) (*events.DecisionPayload, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.decisions[considerationID]
	if !ok {
		return nil, store.ErrDecisionNotFound
	}
	clone := *d
	return &clone, nil
}

// DissentStore is an in-memory store.DissentRepository.
type DissentStore struct {
	mu      sync.RWMutex
	records []*store.DissentRecord
}

// NewDissentStore creates an empty dissent store.
func NewDissentStore() *DissentStore {
	return &DissentStore{}
}

// RecordVoteDissent implements store.DissentRepository.
func (s *DissentStore) RecordVoteDissent(ctx context.Context, record *store.DissentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *record
	s.records = append(s.records, &clone)
	return nil
}

// ListSince implements store.DissentRepository.
func (s *DissentStore) ListSince(ctx context.Context, cutoff time.Time) ([]*store.DissentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*store.DissentRecord
	for _, r := range s.records {
		if !r.RecordedAt.Before(cutoff) {
			clone := *r
			out = append(out, &clone)
		}
	}
	return out, nil
}

// ContentHashStore is an in-memory store.ContentHashRepository.
type ContentHashStore struct {
	mu     sync.RWMutex
	hashes map[uuid.UUID]string
}

// NewContentHashStore creates an empty content hash store.
func NewContentHashStore() *ContentHashStore {
	return &ContentHashStore{hashes: make(map[uuid.UUID]string)}
}

// SaveHash implements store.ContentHashRepository.
func (s *ContentHashStore) SaveHash(ctx context.Context, contentID uuid.UUID, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hashes[contentID] = hash
	return nil
}

// StoredHash implements store.ContentHashRepository.
func (s *ContentHashStore) StoredHash(ctx context.Context, contentID uuid.UUID) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.hashes[contentID]
	if !ok {
		return "", store.ErrContentHashNotFound
	}
	return h, nil
}

// FlagChannel is an in-memory store.CessationFlagChannel with injectable
// failures for exercising the dual-channel semantics in tests.
type FlagChannel struct {
	mu      sync.RWMutex
	details *store.FlagDetails

	// FailWrites and FailReads simulate an unavailable channel.
	FailWrites bool
	FailReads  bool
}

// NewFlagChannel creates an empty flag channel.
func NewFlagChannel() *FlagChannel {
	return &FlagChannel{}
}

// SetCeased implements store.CessationFlagChannel. First write wins; the flag
// is a one-way latch.
func (c *FlagChannel) SetCeased(ctx context.Context, details *store.FlagDetails) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FailWrites {
		return fmt.Errorf("flag channel unavailable")
	}
	if c.details == nil {
		clone := *details
		c.details = &clone
	}
	return nil
}

// IsCeased implements store.CessationFlagChannel.
func (c *FlagChannel) IsCeased(ctx context.Context) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.FailReads {
		return false, fmt.Errorf("flag channel unavailable")
	}
	return c.details != nil, nil
}

// Details implements store.CessationFlagChannel.
func (c *FlagChannel) Details(ctx context.Context) (*store.FlagDetails, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.FailReads {
		return nil, fmt.Errorf("flag channel unavailable")
	}
	if c.details == nil {
		return nil, nil
	}
	clone := *c.details
	return &clone, nil
}
