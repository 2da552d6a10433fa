// Copyright 2025 Archon 72 Project
//
// Cessation API Handlers
// Decision recording and terminal execution endpoints. Execution carries the
// full final deliberation of all 72 Archons; the vote that produced it
// happens upstream in the Conclave.

package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/archon72/accountability-engine/pkg/cessation"
	"github.com/archon72/accountability-engine/pkg/events"
)

// CessationHandlers provides HTTP handlers for cessation governance
type CessationHandlers struct {
	considerations *cessation.ConsiderationService
	execution      *cessation.ExecutionService
}

// NewCessationHandlers creates new cessation handlers
func NewCessationHandlers(
	considerations *cessation.ConsiderationService,
	execution *cessation.ExecutionService,
) *CessationHandlers {
	return &CessationHandlers{
		considerations: considerations,
		execution:      execution,
	}
}

// RecordDecisionRequest is the body of POST /api/cessation/decision
type RecordDecisionRequest struct {
	ConsiderationID uuid.UUID `json:"consideration_id"`
	Decision        string    `json:"decision"`
	DecidedBy       string    `json:"decided_by"`
	Rationale       string    `json:"rationale"`
}

// HandleRecordDecision handles POST /api/cessation/decision requests
func (h *CessationHandlers) HandleRecordDecision(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.Method != http.MethodPost {
		http.Error(w, `{"error":"method not allowed"}`, http.StatusMethodNotAllowed)
		return
	}

	var req RecordDecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
		return
	}

	decision, err := h.considerations.RecordDecision(
		r.Context(), req.ConsiderationID, events.CessationDecision(req.Decision),
		req.DecidedBy, req.Rationale)
	if err != nil {
		switch {
		case errors.Is(err, cessation.ErrConsiderationNotFound):
			writeError(w, err, http.StatusNotFound)
		case errors.Is(err, cessation.ErrInvalidDecision):
			writeError(w, err, http.StatusConflict)
		default:
			writeServiceError(w, err)
		}
		return
	}

	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(decision); err != nil {
		http.Error(w, `{"error":"failed to encode response"}`, http.StatusInternalServerError)
	}
}

// ArchonStatement is one Archon's entry in an execution request
type ArchonStatement struct {
	ArchonID           string    `json:"archon_id"`
	Position           string    `json:"position"`
	Reasoning          string    `json:"reasoning"`
	StatementTimestamp time.Time `json:"statement_timestamp"`
}

// ExecuteCessationRequest is the body of POST /api/cessation/execute
type ExecuteCessationRequest struct {
	DeliberationID    uuid.UUID         `json:"deliberation_id"`
	StartedAt         time.Time         `json:"deliberation_started_at"`
	EndedAt           time.Time         `json:"deliberation_ended_at"`
	Statements        []ArchonStatement `json:"archon_deliberations"`
	TriggeringEventID uuid.UUID         `json:"triggering_event_id"`
	Reason            string            `json:"reason"`
}

// HandleExecuteCessation handles POST /api/cessation/execute requests.
// This is the irreversible terminal operation.
func (h *CessationHandlers) HandleExecuteCessation(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.Method != http.MethodPost {
		http.Error(w, `{"error":"method not allowed"}`, http.StatusMethodNotAllowed)
		return
	}

	var req ExecuteCessationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
		return
	}

	deliberations := make([]events.ArchonDeliberation, len(req.Statements))
	for i, s := range req.Statements {
		deliberations[i] = events.ArchonDeliberation{
			ArchonID:           s.ArchonID,
			Position:           events.ArchonPosition(s.Position),
			Reasoning:          s.Reasoning,
			StatementTimestamp: s.StatementTimestamp,
		}
	}

	event, err := h.execution.ExecuteCessationWithDeliberation(
		r.Context(),
		cessation.DeliberationInput{
			DeliberationID:      req.DeliberationID,
			StartedAt:           req.StartedAt,
			EndedAt:             req.EndedAt,
			ArchonDeliberations: deliberations,
		},
		req.TriggeringEventID,
		req.Reason,
	)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(event); err != nil {
		http.Error(w, `{"error":"failed to encode response"}`, http.StatusInternalServerError)
	}
}

// RegisterRoutes attaches all cessation handlers to the mux
func (h *CessationHandlers) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/cessation/decision", h.HandleRecordDecision)
	mux.HandleFunc("/api/cessation/execute", h.HandleExecuteCessation)
}
