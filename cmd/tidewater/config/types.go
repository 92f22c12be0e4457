// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"github.com/go-playground/validator/v10"

	"github.com/AleutianAI/tidewater/pkg/validation"
)

// =============================================================================
// Shared Validator Instance
// =============================================================================

// configValidate is the validator instance for the config file.
// Initialized in init() with the workflow-specific validators.
var configValidate *validator.Validate

func init() {
	configValidate = validator.New()

	_ = configValidate.RegisterValidation("workflow_name", validateWorkflowName)
	_ = configValidate.RegisterValidation("variable_name", validateVariableName)
}

// validateWorkflowName applies the workflow naming rules to a config field.
func validateWorkflowName(fl validator.FieldLevel) bool {
	return validation.ValidateWorkflowName(fl.Field().String()) == nil
}

// validateVariableName applies the variable naming rules to a config field.
func validateVariableName(fl validator.FieldLevel) bool {
	return validation.ValidateVariableName(fl.Field().String()) == nil
}

// =============================================================================
// Config Types
// =============================================================================

// TidewaterConfig is the on-disk configuration, loaded from
// ~/.tidewater/tidewater.yaml unless a path is given on the command
// line. Every value here is a default; flags override per run.
type TidewaterConfig struct {
	// Defaults seed the workflow settings flags can override.
	Defaults DefaultsConfig `yaml:"defaults"`

	// Logging controls the run log destination.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics configures batch metrics push.
	Metrics MetricsConfig `yaml:"metrics"`

	// Tracing configures the OpenTelemetry trace exporter.
	Tracing TracingConfig `yaml:"tracing"`

	// Spill configures the on-disk chunk cache for inputs larger
	// than memory.
	Spill SpillConfig `yaml:"spill"`
}

type DefaultsConfig struct {
	WorkflowName     string `yaml:"workflow_name" validate:"omitempty,workflow_name"`
	TargetVariable   string `yaml:"target_variable" validate:"omitempty,variable_name"`
	CompressionLevel int    `yaml:"compression_level" validate:"gte=0,lte=19"`
}

type LoggingConfig struct {
	Dir   string `yaml:"dir"`
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	JSON  bool   `yaml:"json"`
}

type MetricsConfig struct {
	// PushgatewayURL enables a metrics push after each run when set.
	PushgatewayURL string `yaml:"pushgateway_url" validate:"omitempty,url"`
	Job            string `yaml:"job"`
}

type TracingConfig struct {
	Exporter string `yaml:"exporter" validate:"omitempty,oneof=otlp stdout none"`
}

type SpillConfig struct {
	// Dir holds the badger spill store. Empty disables spilling.
	Dir string `yaml:"dir"`

	// MaxMemoryBytes caps the in-memory chunk cache tier.
	MaxMemoryBytes int64 `yaml:"max_memory_bytes" validate:"gte=0"`
}

// Validate checks the loaded config against its field rules.
func (c *TidewaterConfig) Validate() error {
	return configValidate.Struct(c)
}

// DefaultConfig returns the configuration written on first run.
func DefaultConfig() TidewaterConfig {
	return TidewaterConfig{
		Defaults: DefaultsConfig{
			WorkflowName:     "my_workflow_name",
			TargetVariable:   "sea_level_change",
			CompressionLevel: 0,
		},
		Logging: LoggingConfig{
			Dir:   "",
			Level: "info",
			JSON:  false,
		},
		Metrics: MetricsConfig{
			PushgatewayURL: "",
			Job:            "tidewater",
		},
		Tracing: TracingConfig{
			Exporter: "none",
		},
		Spill: SpillConfig{
			Dir:            "",
			MaxMemoryBytes: 256 << 20,
		},
	}
}
