package engine

import (
	"regexp"
	"strconv"
	"strings"
)

// Field names read by the engine. Every other field is ignored.
const (
	FieldStatus = "status"
	FieldPool   = "pool"
)

// tokenPattern matches key=value where value is either a double-quoted run
// (quotes stripped, spaces kept) or a run of non-whitespace characters.
var tokenPattern = regexp.MustCompile(`(\w+)=(?:"([^"]*)"|(\S*))`)

// ParseLine extracts key=value tokens from an access log line.
//
// Text between tokens is ignored. Blank lines yield an empty map. When a
// key repeats, the last occurrence wins.
func ParseLine(line string) map[string]string {
	fields := make(map[string]string)
	if strings.TrimSpace(line) == "" {
		return fields
	}

	for _, m := range tokenPattern.FindAllStringSubmatch(line, -1) {
		if m[2] != "" {
			fields[m[1]] = m[2]
		} else {
			fields[m[1]] = m[3]
		}
	}
	return fields
}

// parseStatus returns the status code, or 0 when absent or not an integer.
func parseStatus(raw string) int {
	if raw == "" {
		return 0
	}
	status, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return status
}
