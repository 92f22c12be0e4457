// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package totaling

import (
	"fmt"

	"github.com/AleutianAI/tidewater/services/totaling/dataset"
)

// Totaled is the final dataset: the target variable summed over files, the
// de-duplicated coordinates, and the provenance attributes. It exists to be
// serialized.
type Totaled struct {
	DS *dataset.Dataset

	// Target is the summed variable's name.
	Target string
}

// Cells returns the number of cells in the summed variable.
func (t *Totaled) Cells() int {
	v, ok := t.DS.Var(t.Target)
	if !ok {
		return 0
	}
	n := 1
	for _, s := range v.Shape() {
		n *= s
	}
	return n
}

// Total sums the target variable over the file axis as a deferred reduction;
// no data is evaluated here. The summed variable keeps the target's name.
// Outer-join gaps propagate the missing marker into the sum unless
// Policy.MissingAsZero is set, in which case they contribute zero.
//
// The summed variable's attrs are reset to the aggregate's units and missing
// marker rather than inherited from any single input; the dataset-level
// provenance attributes are carried onto the result. Any other variable
// still varying by file has no meaning after the sum and is dropped with a
// diagnostic.
func Total(n *Normalized, target string, pol Policy, sink DiagnosticSink) (*Totaled, error) {
	ds := n.DS.Copy()

	v, ok := ds.Var(target)
	if !ok {
		return nil, &AggregationError{Variable: target}
	}
	if !v.HasDim(DimFile) {
		return nil, &AggregationError{Variable: target, Err: fmt.Errorf("no %s axis to sum over", DimFile)}
	}
	summed, err := v.SumOver(DimFile, pol.MissingAsZero)
	if err != nil {
		return nil, &AggregationError{Variable: target, Err: err}
	}
	summed = summed.WithAttrs(map[string]string{
		"units":         "mm",
		"missing_value": "NaN",
	})

	for _, name := range ds.VarNames() {
		if name == target {
			continue
		}
		other, _ := ds.Var(name)
		if other.HasDim(DimFile) {
			ds.DropVar(name)
			sink.Report(Diagnostic{
				Kind:    DiagnosticVariableDropped,
				Message: fmt.Sprintf("variable %q still varies by file after normalization; dropped from the total", name),
			})
		}
	}

	ds.DropVar(target)
	if err := ds.SetVar(target, summed); err != nil {
		return nil, &AggregationError{Variable: target, Err: err}
	}
	if err := ds.DropDim(DimFile); err != nil {
		return nil, &AggregationError{Variable: target, Err: err}
	}

	// The reduction path must not lose the provenance listing assembled by
	// the Normalizer.
	ds.ReplaceAttrs(n.DS.Attrs())

	return &Totaled{DS: ds, Target: target}, nil
}
