package tiles

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Extents is a geographic bounding box in decimal degrees (WGS84).
type Extents struct {
	West  float64 `json:"west"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	North float64 `json:"north"`
}

// ParseExtents parses the single-line JSON the extents helper script prints
// to stdout. All four fields are required; a record missing any of them is a
// parse failure, never a partial result.
func ParseExtents(line string) (Extents, error) {
	var raw struct {
		West  *float64 `json:"west"`
		South *float64 `json:"south"`
		East  *float64 `json:"east"`
		North *float64 `json:"north"`
	}

	if err := json.Unmarshal([]byte(strings.TrimSpace(line)), &raw); err != nil {
		return Extents{}, fmt.Errorf("parse extents: %w", err)
	}
	if raw.West == nil || raw.South == nil || raw.East == nil || raw.North == nil {
		return Extents{}, fmt.Errorf("extents record missing required fields: %q", line)
	}

	return Extents{West: *raw.West, South: *raw.South, East: *raw.East, North: *raw.North}, nil
}

// lastLine returns the final non-empty line of command output. The helper
// script prints exactly one JSON line, but the toolchain may emit warnings
// before it.
func lastLine(output string) string {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}
