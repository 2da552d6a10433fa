// Copyright 2025 Archon 72 Project
//
// Unit tests for the halt gate

package halt

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

type fakeFlag struct {
	ceased bool
	err    error
}

func (f *fakeFlag) IsCeased(ctx context.Context) (bool, error) {
	return f.ceased, f.err
}

func TestGateOpenByDefault(t *testing.T) {
	gate := NewGate(&fakeFlag{})
	if gate.IsHalted(context.Background()) {
		t.Error("fresh gate reports halted")
	}
	if reason := gate.HaltReason(context.Background()); reason != "" {
		t.Errorf("open gate reason = %q, want empty", reason)
	}
}

func TestGateAlarmIsOneWayLatch(t *testing.T) {
	gate := NewGate(&fakeFlag{})
	ctx := context.Background()

	gate.RaiseAlarm("first reason")
	if !gate.IsHalted(ctx) {
		t.Fatal("gate not halted after alarm")
	}
	if reason := gate.HaltReason(ctx); reason != "first reason" {
		t.Errorf("reason = %q, want %q", reason, "first reason")
	}

	// Subsequent alarms keep the first reason.
	gate.RaiseAlarm("second reason")
	if reason := gate.HaltReason(ctx); reason != "first reason" {
		t.Errorf("reason after second alarm = %q, want %q", reason, "first reason")
	}
}

func TestGateReflectsCessationFlag(t *testing.T) {
	flag := &fakeFlag{}
	gate := NewGate(flag)
	ctx := context.Background()

	if gate.IsHalted(ctx) {
		t.Fatal("gate halted with unset flag")
	}

	flag.ceased = true
	if !gate.IsHalted(ctx) {
		t.Error("gate not halted with set flag")
	}
	if reason := gate.HaltReason(ctx); reason != "system has ceased" {
		t.Errorf("reason = %q, want %q", reason, "system has ceased")
	}
}

func TestGateHaltsWhenFlagUnreadable(t *testing.T) {
	// Integrity outranks availability: an unreadable flag halts.
	flag := &fakeFlag{err: fmt.Errorf("both channels down")}
	gate := NewGate(flag)

	if !gate.IsHalted(context.Background()) {
		t.Error("gate not halted with unreadable flag")
	}
}

func TestHaltedErrorMatchesSentinel(t *testing.T) {
	err := NewHaltedError("some reason")
	if !errors.Is(err, ErrSystemHalted) {
		t.Error("NewHaltedError does not match ErrSystemHalted")
	}
}
