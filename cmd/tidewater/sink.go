// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"

	"github.com/AleutianAI/tidewater/pkg/ux"
	"github.com/AleutianAI/tidewater/services/totaling"
)

// uxSink renders diagnostics to the terminal as they are reported,
// so long runs surface findings before the final summary.
type uxSink struct{}

func (uxSink) Report(d totaling.Diagnostic) {
	if d.Path != "" {
		ux.Warning(fmt.Sprintf("%s: %s (%s)", d.Kind, d.Message, d.Path))
		return
	}
	ux.Warning(fmt.Sprintf("%s: %s", d.Kind, d.Message))
}

// sinkFor picks the live diagnostic sink for a command invocation.
// JSON and quiet modes keep stdout clean; the run report still carries
// every diagnostic either way.
func sinkFor(cfg OutputConfig) totaling.DiagnosticSink {
	if cfg.JSON || cfg.Quiet {
		return totaling.NopSink{}
	}
	return uxSink{}
}
