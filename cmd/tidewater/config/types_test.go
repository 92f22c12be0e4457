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
	"testing"
)

func TestDefaultConfig_Defaults(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Defaults.WorkflowName != "my_workflow_name" {
		t.Errorf("WorkflowName = %q, want my_workflow_name", cfg.Defaults.WorkflowName)
	}
	if cfg.Defaults.TargetVariable != "sea_level_change" {
		t.Errorf("TargetVariable = %q, want sea_level_change", cfg.Defaults.TargetVariable)
	}
	if cfg.Defaults.CompressionLevel != 0 {
		t.Errorf("CompressionLevel = %d, want 0 (container default)", cfg.Defaults.CompressionLevel)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want info", cfg.Logging.Level)
	}
	if cfg.Tracing.Exporter != "none" {
		t.Errorf("Tracing.Exporter = %q, want none", cfg.Tracing.Exporter)
	}
	if cfg.Spill.MaxMemoryBytes != 256<<20 {
		t.Errorf("Spill.MaxMemoryBytes = %d, want %d", cfg.Spill.MaxMemoryBytes, int64(256<<20))
	}
}

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*TidewaterConfig)
		wantErr bool
	}{
		{
			name:    "defaults pass",
			mutate:  func(c *TidewaterConfig) {},
			wantErr: false,
		},
		{
			name: "dotted workflow name passes",
			mutate: func(c *TidewaterConfig) {
				c.Defaults.WorkflowName = "coupled.ssp585"
			},
			wantErr: false,
		},
		{
			name: "workflow name with slash fails",
			mutate: func(c *TidewaterConfig) {
				c.Defaults.WorkflowName = "out/coupled"
			},
			wantErr: true,
		},
		{
			name: "variable name with dash fails",
			mutate: func(c *TidewaterConfig) {
				c.Defaults.TargetVariable = "sea-level"
			},
			wantErr: true,
		},
		{
			name: "negative compression fails",
			mutate: func(c *TidewaterConfig) {
				c.Defaults.CompressionLevel = -1
			},
			wantErr: true,
		},
		{
			name: "valid pushgateway url passes",
			mutate: func(c *TidewaterConfig) {
				c.Metrics.PushgatewayURL = "http://pushgateway:9091"
			},
			wantErr: false,
		},
		{
			name: "stdout tracing passes",
			mutate: func(c *TidewaterConfig) {
				c.Tracing.Exporter = "stdout"
			},
			wantErr: false,
		},
		{
			name: "otlp tracing passes",
			mutate: func(c *TidewaterConfig) {
				c.Tracing.Exporter = "otlp"
			},
			wantErr: false,
		},
		{
			name: "unknown tracing exporter fails",
			mutate: func(c *TidewaterConfig) {
				c.Tracing.Exporter = "zipkin"
			},
			wantErr: true,
		},
		{
			name: "negative spill memory fails",
			mutate: func(c *TidewaterConfig) {
				c.Spill.MaxMemoryBytes = -1
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
