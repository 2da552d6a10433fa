// Copyright 2025 Archon 72 Project
//
// Halt Gate - process-wide "is writing permitted?" oracle (CT-11, CT-13)
//
// Every public service operation consults the gate before doing anything
// else. The gate is never bypassed and a halt is not a retry condition.
// Integrity outranks availability: if the cessation flag cannot be read on
// either channel, the gate reports halted rather than guessing.

package halt

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
)

// ErrSystemHalted is the sentinel wrapped by every halt rejection. Callers
// match it with errors.Is.
var ErrSystemHalted = errors.New("CT-11: system is halted")

// NewHaltedError builds a halt rejection carrying the gate's reason.
func NewHaltedError(reason string) error {
	if reason == "" {
		reason = "unknown reason"
	}
	return fmt.Errorf("%w: %s", ErrSystemHalted, reason)
}

// CeasedChecker is the slice of the cessation flag store the gate consults.
type CeasedChecker interface {
	IsCeased(ctx context.Context) (bool, error)
}

// Gate is the process-wide halt oracle. It reports halted when either the
// cessation flag is set or an integrity alarm has been raised. Both inputs
// are one-way latches; the gate never un-halts.
type Gate struct {
	mu          sync.RWMutex
	alarmRaised bool
	alarmReason string

	flag   CeasedChecker
	logger *log.Logger
}

// Option is a functional option for configuring the gate.
type Option func(*Gate)

// WithLogger sets a custom logger for the gate.
func WithLogger(logger *log.Logger) Option {
	return func(g *Gate) { g.logger = logger }
}

// NewGate creates a halt gate over the given cessation flag checker. flag may
// be nil for gates that are driven by alarms only (tests, tooling).
func NewGate(flag CeasedChecker, opts ...Option) *Gate {
	g := &Gate{
		flag:   flag,
		logger: log.New(log.Writer(), "[HaltGate] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// RaiseAlarm latches the gate halted for the given integrity reason. Raising
// an alarm is one-way; subsequent calls keep the first reason.
func (g *Gate) RaiseAlarm(reason string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.alarmRaised {
		return
	}
	g.alarmRaised = true
	g.alarmReason = reason
	g.logger.Printf("CRITICAL: integrity alarm raised, system halted: %s", reason)
}

// IsHalted reports whether the write path is shut. A flag store that cannot
// be read on any channel counts as halted (CT-13).
func (g *Gate) IsHalted(ctx context.Context) bool {
	g.mu.RLock()
	raised := g.alarmRaised
	g.mu.RUnlock()
	if raised {
		return true
	}
	if g.flag == nil {
		return false
	}
	ceased, err := g.flag.IsCeased(ctx)
	if err != nil {
		g.logger.Printf("CRITICAL: cessation flag unreadable, treating as halted: %v", err)
		return true
	}
	return ceased
}

// HaltReason returns the human-readable reason the gate is halted, or the
// empty string when it is open.
func (g *Gate) HaltReason(ctx context.Context) string {
	g.mu.RLock()
	raised, reason := g.alarmRaised, g.alarmReason
	g.mu.RUnlock()
	if raised {
		return reason
	}
	if g.flag == nil {
		return ""
	}
	ceased, err := g.flag.IsCeased(ctx)
	if err != nil {
		return fmt.Sprintf("cessation flag unreadable: %v", err)
	}
	if ceased {
		return "system has ceased"
	}
	return ""
}
