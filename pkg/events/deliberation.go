// Copyright 2025 Archon 72 Project
//
// Cessation deliberation payload (FR135, FR12)
//
// The final deliberation aggregates the statements of all 72 Archons. The
// payload validates its own tallies: vote counts must equal the positional
// counts, and the dissent percentage is bound into the signed content.

package events

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// RequiredArchonCount is the fixed size of the deliberative body.
const RequiredArchonCount = 72

// ArchonPosition is a single Archon's stance on cessation.
type ArchonPosition string

const (
	PositionSupportCessation ArchonPosition = "SUPPORT_CESSATION"
	PositionOpposeCessation  ArchonPosition = "OPPOSE_CESSATION"
	PositionAbstain          ArchonPosition = "ABSTAIN"
)

// ValidArchonPosition reports whether p is one of the declared positions.
func ValidArchonPosition(p ArchonPosition) bool {
	switch p {
	case PositionSupportCessation, PositionOpposeCessation, PositionAbstain:
		return true
	}
	return false
}

// ArchonDeliberation records one Archon's position and reasoning.
type ArchonDeliberation struct {
	ArchonID           string         `json:"archon_id"`
	Position           ArchonPosition `json:"position"`
	Reasoning          string         `json:"reasoning"`
	StatementTimestamp time.Time      `json:"statement_timestamp"`
}

func (d *ArchonDeliberation) canonicalMap() map[string]any {
	return map[string]any{
		"archon_id":           d.ArchonID,
		"position":            string(d.Position),
		"reasoning":           d.Reasoning,
		"statement_timestamp": isoTimestamp(d.StatementTimestamp),
	}
}

// VoteCounts is the yes/no/abstain breakdown of a deliberation.
type VoteCounts struct {
	YesCount     int `json:"yes_count"`
	NoCount      int `json:"no_count"`
	AbstainCount int `json:"abstain_count"`
}

// Total returns the number of counted statements.
func (v VoteCounts) Total() int { return v.YesCount + v.NoCount + v.AbstainCount }

func (v VoteCounts) canonicalMap() map[string]any {
	return map[string]any{
		"abstain_count": v.AbstainCount,
		"no_count":      v.NoCount,
		"yes_count":     v.YesCount,
	}
}

// CountVotes tallies positions from a set of Archon deliberations.
func CountVotes(deliberations []ArchonDeliberation) VoteCounts {
	var counts VoteCounts
	for _, d := range deliberations {
		switch d.Position {
		case PositionSupportCessation:
			counts.YesCount++
		case PositionOpposeCessation:
			counts.NoCount++
		case PositionAbstain:
			counts.AbstainCount++
		}
	}
	return counts
}

// DissentPercentage computes the share of non-supporting votes, rounded to
// two decimal places (FR12).
func DissentPercentage(counts VoteCounts) float64 {
	total := counts.Total()
	if total == 0 {
		return 0.0
	}
	dissent := counts.NoCount + counts.AbstainCount
	return math.Round(float64(dissent)/float64(total)*100*100) / 100
}

// DeliberationPayload is the payload of a cessation.deliberation event: the
// complete final deliberation of all 72 Archons, recorded immediately before
// a cessation is executed.
type DeliberationPayload struct {
	DeliberationID        uuid.UUID            `json:"deliberation_id"`
	DeliberationStartedAt time.Time            `json:"deliberation_started_at"`
	DeliberationEndedAt   time.Time            `json:"deliberation_ended_at"`
	VoteRecordedAt        time.Time            `json:"vote_recorded_at"`
	DurationSeconds       int64                `json:"duration_seconds"`
	ArchonDeliberations   []ArchonDeliberation `json:"archon_deliberations"`
	VoteCounts            VoteCounts           `json:"vote_counts"`
	DissentPercentage     float64              `json:"dissent_percentage"`
}

// EventType implements Payload.
func (p *DeliberationPayload) EventType() string { return TypeCessationDeliberation }

// Validate enforces the deliberation invariants before anything is persisted.
func (p *DeliberationPayload) Validate() error {
	if got := len(p.ArchonDeliberations); got != RequiredArchonCount {
		return fmt.Errorf("FR135: cessation deliberation requires exactly %d Archon entries, got %d",
			RequiredArchonCount, got)
	}
	for i := range p.ArchonDeliberations {
		d := &p.ArchonDeliberations[i]
		if !ValidArchonPosition(d.Position) {
			return fmt.Errorf("FR135: archon %s has unknown position %q", d.ArchonID, d.Position)
		}
	}
	actual := CountVotes(p.ArchonDeliberations)
	if actual != p.VoteCounts {
		return fmt.Errorf("vote counts must match deliberation positions: expected (%d, %d, %d), got (%d, %d, %d)",
			actual.YesCount, actual.NoCount, actual.AbstainCount,
			p.VoteCounts.YesCount, p.VoteCounts.NoCount, p.VoteCounts.AbstainCount)
	}
	if p.DissentPercentage < 0.0 || p.DissentPercentage > 100.0 {
		return fmt.Errorf("dissent_percentage must be between 0 and 100, got %v", p.DissentPercentage)
	}
	if p.DurationSeconds < 0 {
		return fmt.Errorf("duration_seconds must be non-negative, got %d", p.DurationSeconds)
	}
	return nil
}

// SignableContent implements Payload.
func (p *DeliberationPayload) SignableContent() ([]byte, error) {
	archons := make([]map[string]any, len(p.ArchonDeliberations))
	for i := range p.ArchonDeliberations {
		archons[i] = p.ArchonDeliberations[i].canonicalMap()
	}
	return canonicalJSON(map[string]any{
		"archon_deliberations":    archons,
		"deliberation_ended_at":   isoTimestamp(p.DeliberationEndedAt),
		"deliberation_id":         p.DeliberationID.String(),
		"deliberation_started_at": isoTimestamp(p.DeliberationStartedAt),
		"dissent_percentage":      p.DissentPercentage,
		"duration_seconds":        p.DurationSeconds,
		"vote_counts":             p.VoteCounts.canonicalMap(),
		"vote_recorded_at":        isoTimestamp(p.VoteRecordedAt),
	})
}
