// Copyright 2025 Archon 72 Project
//
// Dissent Metrics (FR12, NFR-023)
//
// Tracks per-vote dissent samples and rolling averages. Healthy governance
// shows sustained disagreement; a rolling average strictly below the
// threshold indicates potential groupthink and fires the
// DISSENT_BELOW_THRESHOLD alert.

package dissent

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/archon72/accountability-engine/pkg/halt"
	"github.com/archon72/accountability-engine/pkg/store"
	"github.com/archon72/accountability-engine/pkg/writer"
)

// Defaults per NFR-023: alert when the 30-day rolling average drops below 10%.
const (
	DefaultThreshold  = 10.0
	DefaultPeriodDays = 30
)

// AlertBelowThreshold is the alert type emitted for low dissent.
const AlertBelowThreshold = "DISSENT_BELOW_THRESHOLD"

// HealthStatus is the current dissent health view.
type HealthStatus struct {
	RollingAverage float64 `json:"rolling_average"`
	PeriodDays     int     `json:"period_days"`
	RecordCount    int     `json:"record_count"`
	IsHealthy      bool    `json:"is_healthy"`
}

// Alert signals that dissent has dropped below the threshold.
type Alert struct {
	Threshold     float64 `json:"threshold"`
	ActualAverage float64 `json:"actual_average"`
	PeriodDays    int     `json:"period_days"`
	AlertType     string  `json:"alert_type"`
}

// Service tracks dissent metrics.
type Service struct {
	repo   store.DissentRepository
	gate   writer.HaltChecker
	logger *log.Logger
	now    func() time.Time

	threshold  float64
	periodDays int

	rollingAverageGauge prometheus.Gauge
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

// WithRegistry registers the dissent gauges on the given prometheus registry.
func WithRegistry(reg prometheus.Registerer) Option {
	return func(s *Service) {
		reg.MustRegister(s.rollingAverageGauge)
	}
}

// WithThreshold overrides the alert threshold and rolling period. The
// defaults are DefaultThreshold and DefaultPeriodDays per NFR-023; overrides
// exist for test networks and rehearsals.
func WithThreshold(threshold float64, periodDays int) Option {
	return func(s *Service) {
		s.threshold = threshold
		s.periodDays = periodDays
	}
}

// NewService creates a dissent metrics service.
func NewService(repo store.DissentRepository, gate writer.HaltChecker, opts ...Option) *Service {
	s := &Service{
		repo:       repo,
		gate:       gate,
		logger:     log.New(log.Writer(), "[Dissent] ", log.LstdFlags),
		now:        func() time.Time { return time.Now().UTC() },
		threshold:  DefaultThreshold,
		periodDays: DefaultPeriodDays,
		rollingAverageGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "archon72_dissent_rolling_average_percent",
			Help: "Rolling average dissent percentage across collective outputs over the configured period",
		}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Threshold returns the configured alert threshold.
func (s *Service) Threshold() float64 { return s.threshold }

// PeriodDays returns the configured rolling period.
func (s *Service) PeriodDays() int { return s.periodDays }

func (s *Service) checkHalt(ctx context.Context) error {
	if s.gate.IsHalted(ctx) {
		return halt.NewHaltedError(s.gate.HaltReason(ctx))
	}
	return nil
}

// RecordVoteDissent appends one dissent sample for a collective output.
func (s *Service) RecordVoteDissent(ctx context.Context, outputID uuid.UUID, dissentPercentage float64) error {
	// HALT CHECK FIRST (CT-11)
	if err := s.checkHalt(ctx); err != nil {
		return err
	}
	if dissentPercentage < 0.0 || dissentPercentage > 100.0 {
		return fmt.Errorf("dissent percentage must be between 0 and 100, got %v", dissentPercentage)
	}

	record := &store.DissentRecord{
		OutputID:          outputID,
		DissentPercentage: dissentPercentage,
		RecordedAt:        s.now(),
	}
	if err := s.repo.RecordVoteDissent(ctx, record); err != nil {
		return fmt.Errorf("failed to record dissent sample: %w", err)
	}

	if avg, err := s.rollingAverage(ctx, s.periodDays); err == nil {
		s.rollingAverageGauge.Set(avg)
	}

	s.logger.Printf("dissent recorded: output_id=%s dissent=%.2f%%", outputID, dissentPercentage)
	return nil
}

// GetRollingAverage returns the mean dissent percentage over the trailing
// period; 0.0 when no records fall inside it.
func (s *Service) GetRollingAverage(ctx context.Context, days int) (float64, error) {
	if err := s.checkHalt(ctx); err != nil {
		return 0, err
	}
	return s.rollingAverage(ctx, days)
}

// IsBelowThreshold reports whether the rolling average is strictly below the
// threshold. An average exactly at the threshold is not below it.
func (s *Service) IsBelowThreshold(ctx context.Context, threshold float64, days int) (bool, error) {
	if err := s.checkHalt(ctx); err != nil {
		return false, err
	}
	avg, err := s.rollingAverage(ctx, days)
	if err != nil {
		return false, err
	}
	return avg < threshold, nil
}

// GetHealthStatus returns the rolling average, sample count, and health flag
// for the trailing period.
func (s *Service) GetHealthStatus(ctx context.Context, days int, threshold float64) (*HealthStatus, error) {
	if err := s.checkHalt(ctx); err != nil {
		return nil, err
	}
	records, err := s.repo.ListSince(ctx, s.now().AddDate(0, 0, -days))
	if err != nil {
		return nil, fmt.Errorf("failed to list dissent records: %w", err)
	}
	avg := average(records)
	s.rollingAverageGauge.Set(avg)
	return &HealthStatus{
		RollingAverage: avg,
		PeriodDays:     days,
		RecordCount:    len(records),
		IsHealthy:      !(avg < threshold),
	}, nil
}

// CheckAlertCondition returns a DISSENT_BELOW_THRESHOLD alert when the
// rolling average over the period is strictly below the threshold, nil
// otherwise.
func (s *Service) CheckAlertCondition(ctx context.Context, threshold float64, days int) (*Alert, error) {
	below, err := s.IsBelowThreshold(ctx, threshold, days)
	if err != nil {
		return nil, err
	}
	if !below {
		return nil, nil
	}
	avg, err := s.rollingAverage(ctx, days)
	if err != nil {
		return nil, err
	}
	s.logger.Printf("dissent alert: rolling average %.2f%% below threshold %.2f%% over %d days",
		avg, threshold, days)
	return &Alert{
		Threshold:     threshold,
		ActualAverage: avg,
		PeriodDays:    days,
		AlertType:     AlertBelowThreshold,
	}, nil
}

func (s *Service) rollingAverage(ctx context.Context, days int) (float64, error) {
	records, err := s.repo.ListSince(ctx, s.now().AddDate(0, 0, -days))
	if err != nil {
		return 0, fmt.Errorf("failed to list dissent records: %w", err)
	}
	return average(records), nil
}

func average(records []*store.DissentRecord) float64 {
	if len(records) == 0 {
		return 0.0
	}
	var sum float64
	for _, r := range records {
		sum += r.DissentPercentage
	}
	return sum / float64(len(records))
}
