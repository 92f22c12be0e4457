// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package validation

import (
	"fmt"
	"regexp"
)

// workflowNamePattern matches workflow names safe for logs, filenames, and
// metric labels. Allows: letters, digits, dots, underscores, hyphens.
// Max length: 128 characters.
var workflowNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._\-]{0,127}$`)

// variableNamePattern matches dataset variable names. Same alphabet as
// workflow names but must start with a letter or underscore, matching the
// naming rules of the scientific-array formats the pipeline reads.
var variableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,127}$`)

// ValidateWorkflowName validates a workflow name before it reaches logs,
// metric labels, or output metadata.
//
// Valid names:
//   - 1-128 characters
//   - Letters, digits, dots, underscores, hyphens
//   - Must start with a letter or digit
//
// Returns an error if the name is invalid.
func ValidateWorkflowName(name string) error {
	if name == "" {
		return fmt.Errorf("workflow name cannot be empty")
	}
	if !workflowNamePattern.MatchString(name) {
		return fmt.Errorf("invalid workflow name: %q (must be 1-128 alphanumeric chars, dots, underscores, or hyphens)", name)
	}
	return nil
}

// ValidateVariableName validates a dataset variable name.
func ValidateVariableName(name string) error {
	if name == "" {
		return fmt.Errorf("variable name cannot be empty")
	}
	if !variableNamePattern.MatchString(name) {
		return fmt.Errorf("invalid variable name: %q (must start with a letter or underscore, then alphanumerics or underscores)", name)
	}
	return nil
}

// ValidateYearParams validates the expected temporal axis: a proper range
// and a positive step.
//
// Example:
//
//	if err := validation.ValidateYearParams(start, end, step); err != nil {
//	    return fmt.Errorf("invalid projection years: %w", err)
//	}
func ValidateYearParams(start, end, step int) error {
	if start >= end {
		return fmt.Errorf("pyear-start (%d) must be before pyear-end (%d)", start, end)
	}
	if step <= 0 {
		return fmt.Errorf("pyear-step must be positive, got %d", step)
	}
	if span := end - start; step > span {
		return fmt.Errorf("pyear-step (%d) exceeds the year span (%d)", step, span)
	}
	return nil
}

// ValidateCompressionLevel validates a zstd compression level. Zero means
// the default and is accepted.
func ValidateCompressionLevel(level int) error {
	if level < 0 || level > 19 {
		return fmt.Errorf("compression level must be 0-19, got %d", level)
	}
	return nil
}
