// Copyright 2025 Archon 72 Project
//
// Governance Status API Handlers
// Provides HTTP endpoints for breach, escalation, cessation, and dissent
// visibility. These handlers are read-only; the write endpoints live in
// BreachHandlers and CessationHandlers, and every write goes through the
// services.

package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/archon72/accountability-engine/pkg/cessation"
	"github.com/archon72/accountability-engine/pkg/dissent"
	"github.com/archon72/accountability-engine/pkg/escalation"
	"github.com/archon72/accountability-engine/pkg/halt"
	"github.com/archon72/accountability-engine/pkg/writer"
)

// GovernanceHandlers provides HTTP handlers for governance status queries
type GovernanceHandlers struct {
	escalations    *escalation.Service
	considerations *cessation.ConsiderationService
	flags          *cessation.FlagStore
	dissent        *dissent.Service
	eventWriter    *writer.Writer
	gate           writer.HaltChecker
}

// NewGovernanceHandlers creates new governance status handlers
func NewGovernanceHandlers(
	escalations *escalation.Service,
	considerations *cessation.ConsiderationService,
	flags *cessation.FlagStore,
	dissentSvc *dissent.Service,
	eventWriter *writer.Writer,
	gate writer.HaltChecker,
) *GovernanceHandlers {
	return &GovernanceHandlers{
		escalations:    escalations,
		considerations: considerations,
		flags:          flags,
		dissent:        dissentSvc,
		eventWriter:    eventWriter,
		gate:           gate,
	}
}

// HandleHealth handles GET /health requests. Health reports the halt state
// explicitly: a halted system is not an error condition of the HTTP surface,
// it is the constitutionally required answer.
func (h *GovernanceHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	ctx := r.Context()
	halted := h.gate.IsHalted(ctx)

	status := map[string]any{
		"status":    "ok",
		"halted":    halted,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if halted {
		status["status"] = "halted"
		status["halt_reason"] = h.gate.HaltReason(ctx)
	}

	if head, err := h.eventWriter.Head(ctx); err == nil && head != nil {
		status["head_sequence"] = head.Sequence
		status["head_event_type"] = head.EventType
	}

	if err := json.NewEncoder(w).Encode(status); err != nil {
		http.Error(w, `{"error":"failed to encode response"}`, http.StatusInternalServerError)
	}
}

// HandleBreachCountStatus handles GET /api/breaches/status requests
func (h *GovernanceHandlers) HandleBreachCountStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	status, err := h.considerations.GetBreachCountStatus(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response := map[string]any{
		"current_count":            status.CurrentCount,
		"window_days":              status.WindowDays,
		"threshold":                status.Threshold,
		"warning_threshold":        status.WarningThreshold,
		"breach_ids":               status.BreachIDs,
		"trajectory":               status.Trajectory,
		"urgency_level":            status.UrgencyLevel(),
		"breaches_until_threshold": status.BreachesUntilThreshold(),
		"calculated_at":            status.CalculatedAt,
	}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, `{"error":"failed to encode response"}`, http.StatusInternalServerError)
	}
}

// HandlePendingEscalations handles GET /api/escalations/pending requests
func (h *GovernanceHandlers) HandlePendingEscalations(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	pending, err := h.escalations.GetPendingEscalations(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	type pendingResponse struct {
		escalation.PendingEscalation
		Urgency string `json:"urgency"`
	}
	response := make([]pendingResponse, len(pending))
	for i, p := range pending {
		response[i] = pendingResponse{PendingEscalation: p, Urgency: p.Urgency()}
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, `{"error":"failed to encode response"}`, http.StatusInternalServerError)
	}
}

// HandleCessationStatus handles GET /api/cessation/status requests
func (h *GovernanceHandlers) HandleCessationStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	ctx := r.Context()
	response := map[string]any{}

	ceased, err := h.flags.IsCeased(ctx)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	response["is_ceased"] = ceased
	if ceased {
		details, err := h.flags.Details(ctx)
		if err == nil && details != nil {
			response["details"] = details
		}
	} else {
		active, err := h.considerations.IsConsiderationActive(ctx)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		response["consideration_active"] = active

		alert, err := h.considerations.GetBreachAlertStatus(ctx)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		if alert != "" {
			response["alert"] = alert
		}
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, `{"error":"failed to encode response"}`, http.StatusInternalServerError)
	}
}

// HandleDissentHealth handles GET /api/dissent/health requests
func (h *GovernanceHandlers) HandleDissentHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	status, err := h.dissent.GetHealthStatus(r.Context(), h.dissent.PeriodDays(), h.dissent.Threshold())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response := map[string]any{
		"rolling_average": status.RollingAverage,
		"period_days":     status.PeriodDays,
		"record_count":    status.RecordCount,
		"is_healthy":      status.IsHealthy,
	}
	if alert, err := h.dissent.CheckAlertCondition(r.Context(), h.dissent.Threshold(), h.dissent.PeriodDays()); err == nil && alert != nil {
		response["alert"] = alert
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, `{"error":"failed to encode response"}`, http.StatusInternalServerError)
	}
}

// RegisterRoutes attaches all governance handlers to the mux
func (h *GovernanceHandlers) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", h.HandleHealth)
	mux.HandleFunc("/api/breaches/status", h.HandleBreachCountStatus)
	mux.HandleFunc("/api/escalations/pending", h.HandlePendingEscalations)
	mux.HandleFunc("/api/cessation/status", h.HandleCessationStatus)
	mux.HandleFunc("/api/dissent/health", h.HandleDissentHealth)
}

// writeServiceError maps service errors to HTTP responses. A halted system
// answers 503 with the halt reason; everything else is a 500.
func writeServiceError(w http.ResponseWriter, err error) {
	if errors.Is(err, halt.ErrSystemHalted) {
		http.Error(w, fmt.Sprintf(`{"error":%q}`, err.Error()), http.StatusServiceUnavailable)
		return
	}
	http.Error(w, fmt.Sprintf(`{"error":%q}`, err.Error()), http.StatusInternalServerError)
}
