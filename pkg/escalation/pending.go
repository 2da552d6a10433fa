// Copyright 2025 Archon 72 Project
//
// Pending escalation model (FR31)

package escalation

import (
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/archon72/accountability-engine/pkg/events"
)

// ThresholdDays is the escalation deadline: a breach unacknowledged for this
// many days escalates to the Conclave agenda.
const ThresholdDays = 7

// Urgency buckets for pending escalations.
const (
	UrgencyOverdue = "OVERDUE"
	UrgencyUrgent  = "URGENT"
	UrgencyWarning = "WARNING"
	UrgencyPending = "PENDING"
)

// PendingEscalation is a breach approaching (or past) its 7-day escalation
// deadline, with time remaining for operator prioritization.
type PendingEscalation struct {
	BreachID           uuid.UUID         `json:"breach_id"`
	BreachType         events.BreachType `json:"breach_type"`
	DetectionTimestamp time.Time         `json:"detection_timestamp"`
	DaysRemaining      int               `json:"days_remaining"`
	HoursRemaining     int               `json:"hours_remaining"`
}

// NewPendingEscalation computes time remaining until the thresholdDays
// deadline for a breach at the given current time. Remaining values go
// negative once the breach is overdue.
func NewPendingEscalation(breach *events.BreachPayload, now time.Time, thresholdDays int) PendingEscalation {
	age := now.Sub(breach.DetectionTimestamp)
	remaining := time.Duration(thresholdDays)*24*time.Hour - age
	secs := remaining.Seconds()
	return PendingEscalation{
		BreachID:           breach.BreachID,
		BreachType:         breach.BreachType,
		DetectionTimestamp: breach.DetectionTimestamp,
		DaysRemaining:      int(math.Floor(secs / (24 * 3600))),
		HoursRemaining:     int(math.Floor(secs / 3600)),
	}
}

// IsOverdue reports whether the breach has exceeded the 7-day threshold.
func (p PendingEscalation) IsOverdue() bool { return p.HoursRemaining < 0 }

// Urgency buckets the pending escalation for display: OVERDUE past the
// threshold, URGENT under 24h, WARNING under 72h, PENDING otherwise.
func (p PendingEscalation) Urgency() string {
	switch {
	case p.HoursRemaining < 0:
		return UrgencyOverdue
	case p.HoursRemaining < 24:
		return UrgencyUrgent
	case p.HoursRemaining < 72:
		return UrgencyWarning
	default:
		return UrgencyPending
	}
}
