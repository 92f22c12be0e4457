// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package twdfile

import "errors"

// ErrNotTWD indicates the file does not start with the TWD magic.
var ErrNotTWD = errors.New("not a TWD file")

// ErrUnsupportedVersion indicates a format version this build cannot read.
var ErrUnsupportedVersion = errors.New("unsupported TWD version")

// ErrChecksum indicates stored bytes do not match their recorded CRC32.
var ErrChecksum = errors.New("checksum mismatch")

// ErrTruncated indicates the file ends before a declared section.
var ErrTruncated = errors.New("file truncated")
