package profile

import (
	"strings"

	"github.com/araddon/dateparse"

	"github.com/jkramsay/flat-file-manager/internal/descriptor"
	"github.com/jkramsay/flat-file-manager/internal/tabular"
)

// minDateLength skips five-digit values, which are more often day counts
// than dates.
const minDateLength = 6

// isPotentialDate is the cheap pre-filter run before the date parser: at
// least minDateLength characters drawn only from digits, T, Z, ':', '/',
// '-' and whitespace (letters case-insensitive).
func isPotentialDate(s string) bool {
	if len(s) < minDateLength {
		return false
	}
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r == 'T' || r == 't' || r == 'Z' || r == 'z':
		case r == ':' || r == '/' || r == '-':
		case r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\f' || r == '\v':
		default:
			return false
		}
	}
	return true
}

// hasTimeComponent reports whether the part after the date carries a clock
// time: the first space becomes 'T' and the segment after the first 'T'
// must contain ':'.
func hasTimeComponent(s string) bool {
	s = strings.Replace(s, " ", "T", 1)
	parts := strings.Split(s, "T")
	return len(parts) > 1 && strings.Contains(parts[1], ":")
}

// parseDate wraps dateparse, which can panic on some malformed input.
func parseDate(s string) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()
	_, err := dateparse.ParseAny(s)
	return err == nil
}

// classifyDate returns DATE or DATETIME for a parseable value.
func classifyDate(s string) (descriptor.LogicalType, bool) {
	s = strings.TrimSpace(s)
	if !parseDate(s) {
		return descriptor.TypeUnknown, false
	}
	if hasTimeComponent(s) {
		return descriptor.TypeDateTime, true
	}
	return descriptor.TypeDate, true
}

// inferDateType classifies every candidate. It reports DATETIME when any
// value carries a time or both classes occur, DATE when only dates parse,
// and ok=false when nothing parses. Rows rejected by the pre-filter or the
// parser are returned in failures.
func inferDateType(cells []tabular.Cell) (lt descriptor.LogicalType, failures []int, ok bool) {
	seen := map[descriptor.LogicalType]bool{}
	failures = []int{}
	for _, c := range cells {
		s, isStr := c.Value.(string)
		if !isStr || !isPotentialDate(s) {
			failures = append(failures, c.Row)
			continue
		}
		cls, parsed := classifyDate(s)
		if !parsed {
			failures = append(failures, c.Row)
			continue
		}
		seen[cls] = true
	}
	switch {
	case len(seen) == 0:
		return descriptor.TypeUnknown, nil, false
	case seen[descriptor.TypeDateTime] || len(seen) > 1:
		return descriptor.TypeDateTime, failures, true
	default:
		return descriptor.TypeDate, failures, true
	}
}
