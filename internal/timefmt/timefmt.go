// Package timefmt normalizes the timestamp formats found in Xumo API
// responses into UTC instants and formats them as XMLTV wire time.
package timefmt

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrParse is returned when a timestamp cannot be interpreted in any
// supported format. Callers treat it as "timestamp unavailable" for the
// affected entry.
var ErrParse = errors.New("unparsable timestamp")

// xmltvLayout is the XMLTV wire format: no colon in the offset, a single
// space before it.
const xmltvLayout = "20060102150405 -0700"

// Parse converts a timestamp as it appears in decoded JSON into a UTC
// instant. Supported inputs: ISO-8601 strings (trailing Z, explicit offset
// with or without colon, optional fractional seconds) and epoch-millisecond
// numbers (float64 from encoding/json, or int64/int).
func Parse(v any) (time.Time, error) {
	switch t := v.(type) {
	case string:
		return parseISO(t)
	case float64:
		return time.UnixMilli(int64(t)).UTC(), nil
	case int64:
		return time.UnixMilli(t).UTC(), nil
	case int:
		return time.UnixMilli(int64(t)).UTC(), nil
	case nil:
		return time.Time{}, fmt.Errorf("%w: missing value", ErrParse)
	default:
		return time.Time{}, fmt.Errorf("%w: unsupported type %T", ErrParse, v)
	}
}

func parseISO(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty string", ErrParse)
	}

	ts, err := time.Parse(time.RFC3339Nano, normalizeISO(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrParse, s)
	}

	return ts.UTC(), nil
}

// normalizeISO rewrites the offset variants the upstream emits into RFC 3339
// form: "+0000" gains a colon, and a datetime with no offset at all is
// assumed UTC.
func normalizeISO(s string) string {
	if strings.HasSuffix(s, "Z") {
		return s[:len(s)-1] + "+00:00"
	}

	// Look for an offset after the time portion. Scanning past index 10
	// skips the date's own dashes.
	offsetIdx := -1

	for i := len(s) - 1; i > 10; i-- {
		if s[i] == '+' || s[i] == '-' {
			offsetIdx = i

			break
		}
	}

	if offsetIdx == -1 {
		return s + "+00:00"
	}

	offset := s[offsetIdx:]
	if len(offset) == 5 && !strings.Contains(offset, ":") {
		return s[:offsetIdx] + offset[:3] + ":" + offset[3:]
	}

	return s
}

// FormatXMLTV renders an instant as XMLTV wire time (YYYYMMDDHHMMSS +HHMM),
// always in UTC. The zero time formats to the empty string so callers can
// omit the field.
func FormatXMLTV(t time.Time) string {
	if t.IsZero() {
		return ""
	}

	return t.UTC().Format(xmltvLayout)
}
