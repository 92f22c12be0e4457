// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ux

import (
	"errors"
	"strings"
	"testing"
)

// =============================================================================
// Constructor Tests
// =============================================================================

func TestNewSpinner(t *testing.T) {
	spin := NewSpinner("Combining datasets")
	if spin == nil {
		t.Fatal("NewSpinner returned nil")
	}
	if spin.message != "Combining datasets" {
		t.Errorf("message = %q, want 'Combining datasets'", spin.message)
	}
	if spin.spinType != SpinnerDots {
		t.Errorf("expected SpinnerDots default, got %v", spin.spinType)
	}
	if spin.stop == nil || spin.done == nil {
		t.Error("channels should be initialized")
	}
}

func TestSpinner_WithType(t *testing.T) {
	spin := NewSpinner("Writing output").WithType(SpinnerWave)
	if spin == nil {
		t.Fatal("WithType should return the spinner for chaining")
	}
	if spin.spinType != SpinnerWave {
		t.Errorf("expected SpinnerWave, got %v", spin.spinType)
	}
}

// =============================================================================
// Start/Stop Tests (Machine Mode)
// =============================================================================

func TestSpinner_Start_MachineMode(t *testing.T) {
	orig := GetPersonality()
	defer SetPersonality(orig)

	SetPersonalityLevel(PersonalityMachine)

	output := captureStdout(func() {
		spin := NewSpinner("Opening components")
		spin.Start()
		spin.Stop()
	})

	if !strings.Contains(output, "PROGRESS: Opening components") {
		t.Errorf("expected single progress line, got %q", output)
	}
}

func TestSpinner_StartTwice(t *testing.T) {
	orig := GetPersonality()
	defer SetPersonality(orig)

	SetPersonalityLevel(PersonalityMachine)

	output := captureStdout(func() {
		spin := NewSpinner("Opening components")
		spin.Start()
		spin.Start() // Second start is a no-op
		spin.Stop()
	})

	if strings.Count(output, "PROGRESS:") != 1 {
		t.Errorf("expected one progress line, got %q", output)
	}
}

func TestSpinner_StopWithoutStart(t *testing.T) {
	spin := NewSpinner("never started")
	// Must not panic or block
	spin.Stop()
}

func TestSpinner_StartStop_Animated(t *testing.T) {
	orig := GetPersonality()
	defer SetPersonality(orig)

	SetPersonalityLevel(PersonalityStandard)

	_ = captureStdout(func() {
		spin := NewSpinner("Totaling")
		spin.Start()
		spin.UpdateMessage("Totaling sea_level_change")
		spin.Stop()
	})
	// Reaching here without deadlock is the assertion
}

// =============================================================================
// StopWith Tests
// =============================================================================

func TestSpinner_StopWithSuccess(t *testing.T) {
	orig := GetPersonality()
	defer SetPersonality(orig)

	SetPersonalityLevel(PersonalityMachine)

	output := captureStdout(func() {
		spin := NewSpinner("Writing output")
		spin.Start()
		spin.StopWithSuccess("wrote out/total.twd")
	})

	if !strings.Contains(output, "OK: wrote out/total.twd") {
		t.Errorf("expected success line, got %q", output)
	}
}

func TestSpinner_StopWithError(t *testing.T) {
	orig := GetPersonality()
	defer SetPersonality(orig)

	SetPersonalityLevel(PersonalityMachine)

	stderr := captureStderr(func() {
		spin := NewSpinner("Combining")
		spin.Start()
		spin.StopWithError("merge failed")
	})

	if !strings.Contains(stderr, "ERROR: merge failed") {
		t.Errorf("expected error line, got %q", stderr)
	}
}

// =============================================================================
// WithSpinner Tests
// =============================================================================

func TestWithSpinner_Success(t *testing.T) {
	orig := GetPersonality()
	defer SetPersonality(orig)

	SetPersonalityLevel(PersonalityMachine)

	var ran bool
	_ = captureStdout(func() {
		err := WithSpinner("totaling", func() error {
			ran = true
			return nil
		})
		if err != nil {
			t.Errorf("WithSpinner() returned error: %v", err)
		}
	})

	if !ran {
		t.Error("function should have run")
	}
}

func TestWithSpinner_Error(t *testing.T) {
	orig := GetPersonality()
	defer SetPersonality(orig)

	SetPersonalityLevel(PersonalityMachine)

	wantErr := errors.New("uneven year spacing")
	_ = captureStdout(func() {
		_ = captureStderr(func() {
			err := WithSpinner("totaling", func() error {
				return wantErr
			})
			if !errors.Is(err, wantErr) {
				t.Errorf("WithSpinner() error = %v, want %v", err, wantErr)
			}
		})
	})
}

// =============================================================================
// ProgressSpinner Tests
// =============================================================================

func TestProgressSpinner_Increment(t *testing.T) {
	orig := GetPersonality()
	defer SetPersonality(orig)

	SetPersonalityLevel(PersonalityStandard)

	p := NewProgressSpinner("Opening components", 3)
	p.Increment()
	p.Increment()

	p.mu.Lock()
	message := p.message
	p.mu.Unlock()

	if !strings.Contains(message, "[2/3]") {
		t.Errorf("expected counter in message, got %q", message)
	}
	if strings.Count(message, "[") != 1 {
		t.Errorf("counter should not compound, got %q", message)
	}
}

func TestProgressSpinner_SetProgress(t *testing.T) {
	orig := GetPersonality()
	defer SetPersonality(orig)

	SetPersonalityLevel(PersonalityStandard)

	p := NewProgressSpinner("Opening components", 5)
	p.SetProgress(4)

	p.mu.Lock()
	message := p.message
	p.mu.Unlock()

	if !strings.Contains(message, "[4/5]") {
		t.Errorf("expected counter in message, got %q", message)
	}
}
