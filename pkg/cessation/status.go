// Copyright 2025 Archon 72 Project
//
// Breach count status and trajectory (FR32)

package cessation

import (
	"time"

	"github.com/google/uuid"

	"github.com/archon72/accountability-engine/pkg/events"
)

// Threshold constants (FR32). The cessation inequality is strict: the trigger
// fires at 11 or more unacknowledged breaches in the window.
const (
	Threshold        = 10
	WarningThreshold = 8
	WindowDays       = 90
)

// Trajectory is the trend direction of the breach count over the window.
type Trajectory string

const (
	TrajectoryIncreasing Trajectory = "increasing"
	TrajectoryStable     Trajectory = "stable"
	TrajectoryDecreasing Trajectory = "decreasing"
)

// Alert levels reported by GetBreachAlertStatus.
const (
	AlertCritical = "CRITICAL"
	AlertWarning  = "WARNING"
)

// BreachCountStatus is the visibility model for the unacknowledged breach
// count in the 90-day window.
type BreachCountStatus struct {
	CurrentCount     int         `json:"current_count"`
	WindowDays       int         `json:"window_days"`
	Threshold        int         `json:"threshold"`
	WarningThreshold int         `json:"warning_threshold"`
	BreachIDs        []uuid.UUID `json:"breach_ids"`
	Trajectory       Trajectory  `json:"trajectory"`
	CalculatedAt     time.Time   `json:"calculated_at"`
}

// IsAboveThreshold reports whether the count triggers cessation (strict >).
func (s *BreachCountStatus) IsAboveThreshold() bool { return s.CurrentCount > s.Threshold }

// IsAtWarning reports whether the count has reached the warning level (>=).
func (s *BreachCountStatus) IsAtWarning() bool { return s.CurrentCount >= s.WarningThreshold }

// UrgencyLevel buckets the count: CRITICAL above the cessation threshold,
// WARNING at the warning threshold, NORMAL otherwise.
func (s *BreachCountStatus) UrgencyLevel() string {
	if s.IsAboveThreshold() {
		return AlertCritical
	}
	if s.IsAtWarning() {
		return AlertWarning
	}
	return "NORMAL"
}

// BreachesUntilThreshold returns how many more breaches would trip the
// trigger; zero once already above it.
func (s *BreachCountStatus) BreachesUntilThreshold() int {
	remaining := s.Threshold - s.CurrentCount + 1
	if remaining < 0 {
		return 0
	}
	return remaining
}

// StatusFromBreaches computes status under the constitutional thresholds.
func StatusFromBreaches(breaches []*events.BreachPayload, now time.Time) *BreachCountStatus {
	return StatusWithThresholds(breaches, now, Threshold, WarningThreshold, WindowDays)
}

// StatusWithThresholds computes count, IDs, and trajectory for a set of
// unacknowledged breaches under the given thresholds. The trajectory
// partitions the window at its midpoint and compares recent against older
// counts with a tolerance of 2 to suppress noise.
func StatusWithThresholds(
	breaches []*events.BreachPayload,
	now time.Time,
	threshold, warningThreshold, windowDays int,
) *BreachCountStatus {
	midpoint := now.AddDate(0, 0, -windowDays/2)

	recent := 0
	ids := make([]uuid.UUID, len(breaches))
	for i, b := range breaches {
		ids[i] = b.BreachID
		if b.DetectionTimestamp.After(midpoint) {
			recent++
		}
	}
	older := len(breaches) - recent

	trajectory := TrajectoryStable
	switch {
	case recent > older+2:
		trajectory = TrajectoryIncreasing
	case recent < older-2:
		trajectory = TrajectoryDecreasing
	}

	return &BreachCountStatus{
		CurrentCount:     len(breaches),
		WindowDays:       windowDays,
		Threshold:        threshold,
		WarningThreshold: warningThreshold,
		BreachIDs:        ids,
		Trajectory:       trajectory,
		CalculatedAt:     now,
	}
}
