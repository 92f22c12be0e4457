// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"bytes"
	"io"
	"os"
	"strings"
	"testing"
	"time"
)

// Helper to capture stdout
func captureStdout(f func()) string {
	old := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	f()

	w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	io.Copy(&buf, r)
	return buf.String()
}

// Helper to capture stderr
func captureStderr(f func()) string {
	old := os.Stderr
	r, w, _ := os.Pipe()
	os.Stderr = w

	f()

	w.Close()
	os.Stderr = old

	var buf bytes.Buffer
	io.Copy(&buf, r)
	return buf.String()
}

// =============================================================================
// Icon.Render Tests
// =============================================================================

func TestIcon_Render_Success(t *testing.T) {
	if IconSuccess.Render() == "" {
		t.Error("expected non-empty result for IconSuccess")
	}
}

func TestIcon_Render_Warning(t *testing.T) {
	if IconWarning.Render() == "" {
		t.Error("expected non-empty result for IconWarning")
	}
}

func TestIcon_Render_Error(t *testing.T) {
	if IconError.Render() == "" {
		t.Error("expected non-empty result for IconError")
	}
}

func TestIcon_Render_Default(t *testing.T) {
	if IconWave.Render() != string(IconWave) {
		t.Error("unstyled icons should render as themselves")
	}
}

// =============================================================================
// Title Tests
// =============================================================================

func TestTitle_MachineMode(t *testing.T) {
	orig := GetPersonality()
	defer SetPersonality(orig)

	SetPersonalityLevel(PersonalityMachine)

	output := captureStdout(func() {
		Title("Totaling Run")
	})

	// In machine mode, Title should output nothing
	if output != "" {
		t.Errorf("expected no output in machine mode, got %q", output)
	}
}

func TestTitle_StandardMode(t *testing.T) {
	orig := GetPersonality()
	defer SetPersonality(orig)

	SetPersonalityLevel(PersonalityStandard)

	output := captureStdout(func() {
		Title("Totaling Run")
	})

	if output == "" {
		t.Error("expected styled output in standard mode")
	}
}

// =============================================================================
// Success / Warning / Error Tests
// =============================================================================

func TestSuccess_MachineMode(t *testing.T) {
	orig := GetPersonality()
	defer SetPersonality(orig)

	SetPersonalityLevel(PersonalityMachine)

	output := captureStdout(func() {
		Success("wrote total.twd")
	})

	if output != "OK: wrote total.twd\n" {
		t.Errorf("expected 'OK: wrote total.twd', got %q", output)
	}
}

func TestSuccess_StandardMode(t *testing.T) {
	orig := GetPersonality()
	defer SetPersonality(orig)

	SetPersonalityLevel(PersonalityStandard)

	output := captureStdout(func() {
		Success("wrote total.twd")
	})

	if output == "" {
		t.Error("expected styled output in standard mode")
	}
}

func TestWarning_MachineMode(t *testing.T) {
	orig := GetPersonality()
	defer SetPersonality(orig)

	SetPersonalityLevel(PersonalityMachine)

	output := captureStderr(func() {
		Warning("observed step differs from requested")
	})

	if output != "WARN: observed step differs from requested\n" {
		t.Errorf("unexpected machine warning output: %q", output)
	}
}

func TestError_MachineMode(t *testing.T) {
	orig := GetPersonality()
	defer SetPersonality(orig)

	SetPersonalityLevel(PersonalityMachine)

	output := captureStderr(func() {
		Error("uneven year spacing")
	})

	if output != "ERROR: uneven year spacing\n" {
		t.Errorf("unexpected machine error output: %q", output)
	}
}

func TestError_MinimalMode(t *testing.T) {
	orig := GetPersonality()
	defer SetPersonality(orig)

	SetPersonalityLevel(PersonalityMinimal)

	output := captureStdout(func() {
		Error("uneven year spacing")
	})

	if !strings.Contains(output, "uneven year spacing") {
		t.Errorf("expected message in output, got %q", output)
	}
}

// =============================================================================
// Info / Muted / Box Tests
// =============================================================================

func TestInfo_MachineMode(t *testing.T) {
	orig := GetPersonality()
	defer SetPersonality(orig)

	SetPersonalityLevel(PersonalityMachine)

	output := captureStdout(func() {
		Info("3 input files")
	})

	if output != "3 input files\n" {
		t.Errorf("expected plain text, got %q", output)
	}
}

func TestMuted_MachineMode(t *testing.T) {
	orig := GetPersonality()
	defer SetPersonality(orig)

	SetPersonalityLevel(PersonalityMachine)

	output := captureStdout(func() {
		Muted("run id 6f1f3a2b9c0d")
	})

	if output != "" {
		t.Errorf("expected no output in machine mode, got %q", output)
	}
}

func TestBox_MachineMode(t *testing.T) {
	orig := GetPersonality()
	defer SetPersonality(orig)

	SetPersonalityLevel(PersonalityMachine)

	output := captureStdout(func() {
		Box("Output", "out/total.twd")
	})

	if output != "Output: out/total.twd\n" {
		t.Errorf("expected plain 'title: content', got %q", output)
	}
}

func TestWarningBox_MachineMode(t *testing.T) {
	orig := GetPersonality()
	defer SetPersonality(orig)

	SetPersonalityLevel(PersonalityMachine)

	output := captureStderr(func() {
		WarningBox("Diagnostics", "2 findings")
	})

	if output != "WARN Diagnostics: 2 findings\n" {
		t.Errorf("unexpected machine warning box output: %q", output)
	}
}

func TestBox_StandardMode(t *testing.T) {
	orig := GetPersonality()
	defer SetPersonality(orig)

	SetPersonalityLevel(PersonalityStandard)

	output := captureStdout(func() {
		Box("Output", "out/total.twd")
	})

	if !strings.Contains(output, "out/total.twd") {
		t.Errorf("expected content in box, got %q", output)
	}
}

// =============================================================================
// FileStatus Tests
// =============================================================================

func TestFileStatus_MachineMode(t *testing.T) {
	orig := GetPersonality()
	defer SetPersonality(orig)

	SetPersonalityLevel(PersonalityMachine)

	output := captureStdout(func() {
		FileStatus("out/icesheets/AIS.twd", IconSuccess, "icesheets/AIS")
	})

	if output != "✓\tout/icesheets/AIS.twd\ticesheets/AIS\n" {
		t.Errorf("unexpected machine file status: %q", output)
	}
}

func TestFileStatus_StandardMode_WithDetail(t *testing.T) {
	orig := GetPersonality()
	defer SetPersonality(orig)

	SetPersonalityLevel(PersonalityStandard)

	output := captureStdout(func() {
		FileStatus("out/icesheets/AIS.twd", IconSuccess, "step 10")
	})

	if !strings.Contains(output, "out/icesheets/AIS.twd") {
		t.Errorf("expected path in output, got %q", output)
	}
	if !strings.Contains(output, "step 10") {
		t.Errorf("expected detail in output, got %q", output)
	}
}

func TestFileStatus_StandardMode_NoDetail(t *testing.T) {
	orig := GetPersonality()
	defer SetPersonality(orig)

	SetPersonalityLevel(PersonalityStandard)

	output := captureStdout(func() {
		FileStatus("out/icesheets/AIS.twd", IconPending, "")
	})

	if !strings.Contains(output, "out/icesheets/AIS.twd") {
		t.Errorf("expected path in output, got %q", output)
	}
	if strings.Contains(output, "()") {
		t.Errorf("empty detail should not render parens, got %q", output)
	}
}

// =============================================================================
// RunSummary Tests
// =============================================================================

func TestRunSummary_MachineMode(t *testing.T) {
	orig := GetPersonality()
	defer SetPersonality(orig)

	SetPersonalityLevel(PersonalityMachine)

	output := captureStdout(func() {
		RunSummary(3, 0, 6, 1500*time.Millisecond)
	})

	if output != "SUMMARY: files=3 diagnostics=0 cells=6 elapsed=1.5s\n" {
		t.Errorf("unexpected machine summary: %q", output)
	}
}

func TestRunSummary_StandardMode(t *testing.T) {
	orig := GetPersonality()
	defer SetPersonality(orig)

	SetPersonality(Personality{Level: PersonalityStandard, ShowTimings: true})

	output := captureStdout(func() {
		RunSummary(3, 2, 6, time.Second)
	})

	if !strings.Contains(output, "files") {
		t.Errorf("expected file count in summary, got %q", output)
	}
	if !strings.Contains(output, "diagnostics") {
		t.Errorf("expected diagnostics count in summary, got %q", output)
	}
	if !strings.Contains(output, "1s") {
		t.Errorf("expected elapsed time in summary, got %q", output)
	}
}

func TestRunSummary_TimingsDisabled(t *testing.T) {
	orig := GetPersonality()
	defer SetPersonality(orig)

	SetPersonality(Personality{Level: PersonalityStandard, ShowTimings: false})

	output := captureStdout(func() {
		RunSummary(3, 0, 6, time.Second)
	})

	if strings.Contains(output, "in 1s") {
		t.Errorf("expected no elapsed time in summary, got %q", output)
	}
}

// =============================================================================
// ProgressBar Tests
// =============================================================================

func TestProgressBar_MachineMode(t *testing.T) {
	orig := GetPersonality()
	defer SetPersonality(orig)

	SetPersonalityLevel(PersonalityMachine)

	got := ProgressBar(2, 3, 20)
	if got != "2/3" {
		t.Errorf("ProgressBar() = %q, want '2/3'", got)
	}
}

func TestProgressBar_StandardMode(t *testing.T) {
	orig := GetPersonality()
	defer SetPersonality(orig)

	SetPersonalityLevel(PersonalityStandard)

	got := ProgressBar(1, 2, 10)
	if !strings.Contains(got, "50%") {
		t.Errorf("expected 50%% in bar, got %q", got)
	}
}

// =============================================================================
// repeatChar Tests
// =============================================================================

func TestRepeatChar(t *testing.T) {
	tests := []struct {
		name string
		c    rune
		n    int
		want string
	}{
		{"positive", '█', 3, "███"},
		{"zero", '█', 0, ""},
		{"negative", '█', -1, ""},
		{"one", '░', 1, "░"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := repeatChar(tt.c, tt.n)
			if got != tt.want {
				t.Errorf("repeatChar(%q, %d) = %q, want %q", tt.c, tt.n, got, tt.want)
			}
		})
	}
}
