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
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/AleutianAI/tidewater/cmd/tidewater/config"
	"github.com/AleutianAI/tidewater/services/totaling"
	"github.com/AleutianAI/tidewater/services/totaling/dataset"
	"github.com/AleutianAI/tidewater/services/totaling/twdfile"
)

func mustNoErr(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// writeProjectionFile persists a minimal per-component projection over
// two locations, shaped the way upstream modules produce them.
func writeProjectionFile(t *testing.T, path string, years []int64, values []float64) {
	t.Helper()
	locs := []int64{0, 1}
	if len(values) != len(years)*len(locs) {
		t.Fatalf("bad scenario: %d values for %d cells", len(values), len(years)*len(locs))
	}

	ds := dataset.New()
	mustNoErr(t, ds.AddDim(totaling.DimYears, len(years)))
	mustNoErr(t, ds.AddDim(totaling.DimLocations, len(locs)))

	yearBuf, err := dataset.NewInts([]int{len(years)}, years)
	mustNoErr(t, err)
	yearVar, err := dataset.NewVariable([]string{totaling.DimYears}, yearBuf, nil)
	mustNoErr(t, err)
	mustNoErr(t, ds.SetCoord(totaling.DimYears, yearVar))

	locBuf, err := dataset.NewInts([]int{len(locs)}, locs)
	mustNoErr(t, err)
	locVar, err := dataset.NewVariable([]string{totaling.DimLocations}, locBuf, nil)
	mustNoErr(t, err)
	mustNoErr(t, ds.SetCoord(totaling.DimLocations, locVar))

	latBuf, err := dataset.NewFloats([]int{len(locs)}, []float64{10, 11})
	mustNoErr(t, err)
	latVar, err := dataset.NewVariable([]string{totaling.DimLocations}, latBuf,
		map[string]string{"units": "degrees_north"})
	mustNoErr(t, err)
	mustNoErr(t, ds.SetCoord(totaling.VarLat, latVar))

	lonBuf, err := dataset.NewFloats([]int{len(locs)}, []float64{100, 101})
	mustNoErr(t, err)
	lonVar, err := dataset.NewVariable([]string{totaling.DimLocations}, lonBuf,
		map[string]string{"units": "degrees_east"})
	mustNoErr(t, err)
	mustNoErr(t, ds.SetCoord(totaling.VarLon, lonVar))

	valBuf, err := dataset.NewFloats([]int{len(years), len(locs)}, values)
	mustNoErr(t, err)
	valVar, err := dataset.NewVariable([]string{totaling.DimYears, totaling.DimLocations}, valBuf,
		map[string]string{"units": "mm"})
	mustNoErr(t, err)
	mustNoErr(t, ds.SetVar(totaling.DefaultTargetVariable, valVar))

	mustNoErr(t, os.MkdirAll(filepath.Dir(path), 0o755))
	mustNoErr(t, twdfile.Write(context.Background(), path, ds, twdfile.WriteOptions{}))
}

// setTotalFlags assigns the total command's flags for one invocation.
func setTotalFlags(t *testing.T, vals map[string]string) {
	t.Helper()
	for name, v := range vals {
		if err := totalCmd.Flags().Set(name, v); err != nil {
			t.Fatalf("Set(%s=%s) error: %v", name, v, err)
		}
	}
}

// TestCLITotal_EndToEnd drives the total command against real files.
func TestCLITotal_EndToEnd(t *testing.T) {
	config.Global = config.DefaultConfig()
	dir := t.TempDir()
	years := []int64{2020, 2030, 2040}
	inputs := []string{
		filepath.Join(dir, "icesheets", "AIS.twd"),
		filepath.Join(dir, "glaciers", "glaciers.twd"),
		filepath.Join(dir, "oceandyn", "sterodynamics.twd"),
	}
	writeProjectionFile(t, inputs[0], years, []float64{1, 2, 3, 4, 5, 6})
	writeProjectionFile(t, inputs[1], years, []float64{10, 20, 30, 40, 50, 60})
	writeProjectionFile(t, inputs[2], years, []float64{100, 200, 300, 400, 500, 600})
	out := filepath.Join(dir, "out", "total.twd")

	setTotalFlags(t, map[string]string{
		"name":        "coupled.ssp585",
		"pyear-start": "2020",
		"pyear-end":   "2040",
		"pyear-step":  "10",
		"output-path": out,
		"quiet":       "true",
	})

	code := totalMain(totalCmd, inputs)
	if code != CLIExitSuccess {
		t.Fatalf("totalMain() = %d, want %d", code, CLIExitSuccess)
	}

	fl, err := twdfile.Open(out)
	if err != nil {
		t.Fatalf("Open(total) error: %v", err)
	}
	defer fl.Close()

	var found bool
	for _, v := range fl.VarInfos() {
		if v.Name == totaling.DefaultTargetVariable {
			found = true
			if len(v.Dims) != 2 {
				t.Errorf("Expected a 2-D total, got dims %v", v.Dims)
			}
		}
	}
	if !found {
		t.Error("Expected the totaled variable in the output")
	}
}

// TestCLITotal_DiagnosticsExitCode tests that non-fatal findings exit 1.
func TestCLITotal_DiagnosticsExitCode(t *testing.T) {
	config.Global = config.DefaultConfig()
	dir := t.TempDir()

	// A superset of the window: usable, but reported.
	years := make([]int64, 8)
	values := make([]float64, 16)
	for i := range years {
		years[i] = 1990 + int64(i)*10
	}
	for i := range values {
		values[i] = float64(i)
	}
	input := filepath.Join(dir, "oceandyn", "sterodynamics.twd")
	writeProjectionFile(t, input, years, values)
	out := filepath.Join(dir, "out", "total.twd")

	setTotalFlags(t, map[string]string{
		"name":        "coupled",
		"pyear-start": "2020",
		"pyear-end":   "2040",
		"pyear-step":  "10",
		"output-path": out,
		"quiet":       "true",
	})

	code := totalMain(totalCmd, []string{input})
	if code != CLIExitDiagnostics {
		t.Fatalf("totalMain() = %d, want %d", code, CLIExitDiagnostics)
	}
	if _, err := os.Stat(out); err != nil {
		t.Errorf("Diagnostics must not block the write: %v", err)
	}
}

// TestCLITotal_AbortExitCode tests that fatal validation errors exit 2
// without writing anything.
func TestCLITotal_AbortExitCode(t *testing.T) {
	config.Global = config.DefaultConfig()
	dir := t.TempDir()
	input := filepath.Join(dir, "icesheets", "AIS.twd")
	writeProjectionFile(t, input, []int64{2020, 2025, 2040}, []float64{1, 2, 3, 4, 5, 6})
	out := filepath.Join(dir, "out", "total.twd")

	setTotalFlags(t, map[string]string{
		"name":        "coupled",
		"pyear-start": "2020",
		"pyear-end":   "2040",
		"pyear-step":  "10",
		"output-path": out,
		"quiet":       "true",
	})

	code := totalMain(totalCmd, []string{input})
	if code != CLIExitError {
		t.Fatalf("totalMain() = %d, want %d", code, CLIExitError)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Error("Aborted runs must write nothing")
	}
}

// TestCLIValidate_EndToEnd drives the validate command against real files.
func TestCLIValidate_EndToEnd(t *testing.T) {
	config.Global = config.DefaultConfig()
	dir := t.TempDir()
	years := []int64{2020, 2030, 2040}
	input := filepath.Join(dir, "glaciers", "glaciers.twd")
	writeProjectionFile(t, input, years, []float64{1, 2, 3, 4, 5, 6})

	for name, v := range map[string]string{
		"name":        "coupled",
		"pyear-start": "2020",
		"pyear-end":   "2040",
		"pyear-step":  "10",
		"quiet":       "true",
	} {
		if err := validateCmd.Flags().Set(name, v); err != nil {
			t.Fatalf("Set(%s) error: %v", name, err)
		}
	}

	code := validateMain(validateCmd, []string{input})
	if code != CLIExitSuccess {
		t.Fatalf("validateMain() = %d, want %d", code, CLIExitSuccess)
	}
}

// TestCLIInspect_JSON tests the inspect command's JSON contract.
func TestCLIInspect_JSON(t *testing.T) {
	config.Global = config.DefaultConfig()
	dir := t.TempDir()
	input := filepath.Join(dir, "icesheets", "AIS.twd")
	writeProjectionFile(t, input, []int64{2020, 2030, 2040}, []float64{1, 2, 3, 4, 5, 6})

	if err := inspectCmd.Flags().Set("json", "true"); err != nil {
		t.Fatalf("Set(json) error: %v", err)
	}

	var code int
	out := captureStdout(t, func() {
		code = inspectMain(inspectCmd, []string{input})
	})
	if code != CLIExitSuccess {
		t.Fatalf("inspectMain() = %d, want %d", code, CLIExitSuccess)
	}

	var envelope struct {
		Success bool `json:"success"`
		Data    struct {
			Path string       `json:"path"`
			Dims []inspectDim `json:"dims"`
			Vars []inspectVar `json:"vars"`
		} `json:"data"`
	}
	if err := json.Unmarshal([]byte(out), &envelope); err != nil {
		t.Fatalf("Output is not valid JSON: %v\noutput: %q", err, out)
	}
	if !envelope.Success {
		t.Error("Expected success=true")
	}
	if envelope.Data.Path != input {
		t.Errorf("Expected path %q, got %q", input, envelope.Data.Path)
	}

	dims := map[string]int{}
	for _, d := range envelope.Data.Dims {
		dims[d.Name] = d.Length
	}
	if dims[totaling.DimYears] != 3 || dims[totaling.DimLocations] != 2 {
		t.Errorf("Expected years=3 locations=2, got %v", dims)
	}

	var sawTarget, sawCoord bool
	for _, v := range envelope.Data.Vars {
		if v.Name == totaling.DefaultTargetVariable {
			sawTarget = true
		}
		if v.Coord {
			sawCoord = true
		}
	}
	if !sawTarget || !sawCoord {
		t.Errorf("Expected the target variable and coords in the listing, got %+v", envelope.Data.Vars)
	}
}
