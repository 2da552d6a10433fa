// Copyright 2025 Archon 72 Project
//
// Breach API Handlers
// Declaration, acknowledgment, and query endpoints for the breach lifecycle

package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/archon72/accountability-engine/pkg/breach"
	"github.com/archon72/accountability-engine/pkg/content"
	"github.com/archon72/accountability-engine/pkg/escalation"
	"github.com/archon72/accountability-engine/pkg/events"
	"github.com/archon72/accountability-engine/pkg/store"
)

// BreachHandlers provides HTTP handlers for the breach lifecycle
type BreachHandlers struct {
	breaches    *breach.Service
	escalations *escalation.Service
	publish     *content.PublishService
}

// NewBreachHandlers creates new breach lifecycle handlers
func NewBreachHandlers(
	breaches *breach.Service,
	escalations *escalation.Service,
	publish *content.PublishService,
) *BreachHandlers {
	return &BreachHandlers{
		breaches:    breaches,
		escalations: escalations,
		publish:     publish,
	}
}

// DeclareBreachRequest is the body of POST /api/breaches
type DeclareBreachRequest struct {
	BreachType          string         `json:"breach_type"`
	ViolatedRequirement string         `json:"violated_requirement"`
	Severity            string         `json:"severity"`
	Details             map[string]any `json:"details"`
	SourceEventID       *uuid.UUID     `json:"source_event_id,omitempty"`
}

// HandleDeclareBreach handles POST /api/breaches requests
func (h *BreachHandlers) HandleDeclareBreach(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.Method != http.MethodPost {
		http.Error(w, `{"error":"method not allowed"}`, http.StatusMethodNotAllowed)
		return
	}

	var req DeclareBreachRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
		return
	}

	declared, err := h.breaches.DeclareBreach(
		r.Context(),
		events.BreachType(req.BreachType),
		req.ViolatedRequirement,
		events.Severity(req.Severity),
		req.Details,
		req.SourceEventID,
	)
	if err != nil {
		if errors.Is(err, breach.ErrInvalidBreachType) || errors.Is(err, breach.ErrUnknownSourceEvent) {
			writeError(w, err, http.StatusBadRequest)
			return
		}
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(declared); err != nil {
		http.Error(w, `{"error":"failed to encode response"}`, http.StatusInternalServerError)
	}
}

// HandleListBreaches handles GET /api/breaches requests with optional
// breach_type, start, and end (RFC 3339) query filters.
func (h *BreachHandlers) HandleListBreaches(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	var breachType *events.BreachType
	if t := r.URL.Query().Get("breach_type"); t != "" {
		bt := events.BreachType(t)
		if !events.ValidBreachType(bt) {
			http.Error(w, `{"error":"unknown breach_type"}`, http.StatusBadRequest)
			return
		}
		breachType = &bt
	}

	var start, end *time.Time
	if s := r.URL.Query().Get("start"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			http.Error(w, `{"error":"invalid start parameter"}`, http.StatusBadRequest)
			return
		}
		start = &t
	}
	if e := r.URL.Query().Get("end"); e != "" {
		t, err := time.Parse(time.RFC3339, e)
		if err != nil {
			http.Error(w, `{"error":"invalid end parameter"}`, http.StatusBadRequest)
			return
		}
		end = &t
	}

	breaches, err := h.breaches.FilterBreaches(r.Context(), breachType, start, end)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if err := json.NewEncoder(w).Encode(breaches); err != nil {
		http.Error(w, `{"error":"failed to encode response"}`, http.StatusInternalServerError)
	}
}

// AcknowledgeBreachRequest is the body of POST /api/breaches/acknowledge
type AcknowledgeBreachRequest struct {
	BreachID       uuid.UUID `json:"breach_id"`
	AcknowledgedBy string    `json:"acknowledged_by"`
	ResponseChoice string    `json:"response_choice"`
}

// HandleAcknowledgeBreach handles POST /api/breaches/acknowledge requests
func (h *BreachHandlers) HandleAcknowledgeBreach(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.Method != http.MethodPost {
		http.Error(w, `{"error":"method not allowed"}`, http.StatusMethodNotAllowed)
		return
	}

	var req AcknowledgeBreachRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
		return
	}

	ack, err := h.escalations.AcknowledgeBreach(
		r.Context(), req.BreachID, req.AcknowledgedBy, events.ResponseChoice(req.ResponseChoice))
	if err != nil {
		switch {
		case errors.Is(err, escalation.ErrBreachNotFound):
			writeError(w, err, http.StatusNotFound)
		case errors.Is(err, escalation.ErrBreachAlreadyAcknowledged),
			errors.Is(err, escalation.ErrBreachAlreadyEscalated):
			writeError(w, err, http.StatusConflict)
		case errors.Is(err, escalation.ErrInvalidAcknowledgment):
			writeError(w, err, http.StatusBadRequest)
		default:
			writeServiceError(w, err)
		}
		return
	}

	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(ack); err != nil {
		http.Error(w, `{"error":"failed to encode response"}`, http.StatusInternalServerError)
	}
}

// HandleBreachStatus handles GET /api/breaches/state?breach_id= requests
func (h *BreachHandlers) HandleBreachStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	breachID, err := uuid.Parse(r.URL.Query().Get("breach_id"))
	if err != nil {
		http.Error(w, `{"error":"invalid breach_id parameter"}`, http.StatusBadRequest)
		return
	}

	status, err := h.escalations.GetBreachStatus(r.Context(), breachID)
	if err != nil {
		if errors.Is(err, escalation.ErrBreachNotFound) || errors.Is(err, store.ErrBreachNotFound) {
			writeError(w, err, http.StatusNotFound)
			return
		}
		writeServiceError(w, err)
		return
	}
	if err := json.NewEncoder(w).Encode(status); err != nil {
		http.Error(w, `{"error":"failed to encode response"}`, http.StatusInternalServerError)
	}
}

// VerifyContentRequest is the body of POST /api/content/verify
type VerifyContentRequest struct {
	ContentID uuid.UUID `json:"content_id"`
	Content   string    `json:"content"`
}

// HandleVerifyContent handles POST /api/content/verify requests: the
// no-silent-edit check without publication.
func (h *BreachHandlers) HandleVerifyContent(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.Method != http.MethodPost {
		http.Error(w, `{"error":"method not allowed"}`, http.StatusMethodNotAllowed)
		return
	}

	var req VerifyContentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
		return
	}

	result, err := h.publish.VerifyContent(r.Context(), req.ContentID, []byte(req.Content))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if err := json.NewEncoder(w).Encode(result); err != nil {
		http.Error(w, `{"error":"failed to encode response"}`, http.StatusInternalServerError)
	}
}

// RegisterRoutes attaches all breach lifecycle handlers to the mux
func (h *BreachHandlers) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/breaches", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			h.HandleDeclareBreach(w, r)
		case http.MethodGet:
			h.HandleListBreaches(w, r)
		default:
			http.Error(w, `{"error":"method not allowed"}`, http.StatusMethodNotAllowed)
		}
	})
	mux.HandleFunc("/api/breaches/acknowledge", h.HandleAcknowledgeBreach)
	mux.HandleFunc("/api/breaches/state", h.HandleBreachStatus)
	mux.HandleFunc("/api/content/verify", h.HandleVerifyContent)
}

func writeError(w http.ResponseWriter, err error, status int) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
