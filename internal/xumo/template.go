package xumo

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrUnresolvedPlaceholder is returned when a stream URI still contains
// bracketed placeholders after expansion. The URI is unusable as-is; the
// channel is skipped rather than emitted with a mangled URL.
var ErrUnresolvedPlaceholder = errors.New("unresolved stream URI placeholder")

var placeholderPattern = regexp.MustCompile(`\[([^][]+)\]`)

// PlaceholderValues returns the substitution map for the bracketed
// placeholders Xumo embeds in stream URIs. Session, advertising and device
// identifiers are freshly generated per call.
func PlaceholderValues(now time.Time) map[string]string {
	return map[string]string{
		"PLATFORM":         "web",
		"APP_VERSION":      "1.0.0",
		"timestamp":        strconv.FormatInt(now.UnixMilli(), 10),
		"app_bundle":       "web.xumo.com",
		"device_make":      "xumo-playlist",
		"device_model":     "generator",
		"content_language": "en",
		"IS_LAT":           "0",
		"IFA":              uuid.NewString(),
		"SESSION_ID":       uuid.NewString(),
		"DEVICE_ID":        strings.ReplaceAll(uuid.NewString(), "-", ""),
	}
}

// ExpandStreamURI substitutes every bracketed placeholder in uri using
// values. Placeholders with no mapping are an error, not silently stripped.
func ExpandStreamURI(uri string, values map[string]string) (string, error) {
	if uri == "" {
		return "", errors.New("empty stream URI")
	}

	var unresolved []string

	expanded := placeholderPattern.ReplaceAllStringFunc(uri, func(match string) string {
		name := match[1 : len(match)-1]

		if value, ok := values[name]; ok {
			return value
		}

		unresolved = append(unresolved, name)

		return match
	})

	if len(unresolved) > 0 {
		return "", fmt.Errorf("%w: %s", ErrUnresolvedPlaceholder, strings.Join(unresolved, ", "))
	}

	return expanded, nil
}
