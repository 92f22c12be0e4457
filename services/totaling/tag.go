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
	"path/filepath"
	"strings"
)

// ProvenanceTag identifies one input file in the combined dataset and in the
// output's provenance attributes. Component outputs conventionally live in
// per-module directories (out/ocean/ocean_dynamics.twd), so the parent
// directory name carries meaning and is kept.
type ProvenanceTag string

// TagFor derives the tag for a source path: the parent directory's base name
// joined with the file stem, extension stripped. A bare filename tags as just
// the stem.
func TagFor(path string) ProvenanceTag {
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	dir := filepath.Base(filepath.Dir(path))
	if dir == "." || dir == string(filepath.Separator) || dir == "" {
		return ProvenanceTag(stem)
	}
	return ProvenanceTag(dir + "/" + stem)
}
