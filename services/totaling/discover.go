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
	"path/filepath"
	"sort"
	"strings"
)

// ExpandItems resolves the ordered input list: plain paths pass through
// untouched, glob patterns expand to their matches in sorted order. Item
// order is preserved, so callers control which files combine first. A
// pattern matching nothing is an error; a plain path that does not exist
// surfaces later, at Open.
func ExpandItems(items []string) ([]string, error) {
	var out []string
	for _, item := range items {
		if !strings.ContainsAny(item, "*?[") {
			out = append(out, item)
			continue
		}
		matches, err := filepath.Glob(item)
		if err != nil {
			return nil, fmt.Errorf("bad input pattern %q: %w", item, err)
		}
		if len(matches) == 0 {
			return nil, &ReadError{Path: item, Err: fmt.Errorf("no files match pattern")}
		}
		sort.Strings(matches)
		out = append(out, matches...)
	}
	return out, nil
}
