// Package timetext parses and formats the "HH:MM - HH:MM" time-range text
// representation. Parsing is deliberately lenient (backend data may be messy
// and a malformed string must never block the editor); validation for
// user-entered text is a separate, strict check.
package timetext

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const (
	// MinutesPerDay is the wrap-around modulus for overnight ranges.
	MinutesPerDay = 1440
	// DefaultDurationMin is assumed when only a start time is present, and is
	// the duration of the fixed fallback range.
	DefaultDurationMin = 120
	// FallbackStartMin is the start of the fixed fallback range (08:00).
	FallbackStartMin = 8 * 60
)

// Range is a parsed time range. Start is minutes since 00:00 in [0,1440);
// End is Start+Duration and may exceed 1440 for overnight ranges. Duration is
// always positive.
type Range struct {
	Start    int
	End      int
	Duration int
}

// Text renders the canonical "HH:MM - HH:MM" form. For valid input it
// round-trips losslessly through ParseRange.
func (r Range) Text() string {
	return FormatMinutes(r.Start) + " - " + FormatMinutes(r.End)
}

var (
	sepRe    = regexp.MustCompile(`\s*(?:-|–|—|\bto\b)\s*`)
	clockRe  = regexp.MustCompile(`(\d{1,2}):(\d{2})`)
	strictRe = regexp.MustCompile(`\d{1,2}:\d{2}\s*(?:-|–|—|\bto\b)\s*\d{1,2}:\d{2}`)
)

// ParseRange leniently parses free-form range text. Separators may be a
// hyphen, en dash, em dash, or the word "to"; non-digit, non-colon noise
// around each side is ignored. A lone start time gets the default duration.
// If no start can be recovered at all, the fixed fallback 08:00-10:00 is
// returned; ParseRange never fails.
func ParseRange(text string) Range {
	parts := sepRe.Split(text, 2)

	start, ok := parseClock(parts[0])
	if !ok {
		return Range{Start: FallbackStartMin, End: FallbackStartMin + DefaultDurationMin, Duration: DefaultDurationMin}
	}
	if len(parts) < 2 {
		return Range{Start: start, End: start + DefaultDurationMin, Duration: DefaultDurationMin}
	}
	end, ok := parseClock(parts[1])
	if !ok {
		return Range{Start: start, End: start + DefaultDurationMin, Duration: DefaultDurationMin}
	}
	dur := end - start
	if dur <= 0 {
		// midnight rollover, e.g. "23:30 - 00:30"
		dur += MinutesPerDay
	}
	return Range{Start: start, End: start + dur, Duration: dur}
}

// parseClock extracts the first H(H):MM token from s.
func parseClock(s string) (int, bool) {
	m := clockRe.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	h, _ := strconv.Atoi(m[1])
	min, _ := strconv.Atoi(m[2])
	if h > 23 || min > 59 {
		return 0, false
	}
	return h*60 + min, true
}

// FormatMinutes renders a minute offset as zero-padded "HH:MM", wrapping
// modulo one day so overnight end times render as wall-clock times.
func FormatMinutes(m int) string {
	m = ((m % MinutesPerDay) + MinutesPerDay) % MinutesPerDay
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

// IsValidRangeText reports whether the text contains a recognizable
// H(H):MM - H(H):MM pattern. It gates user-facing commits only; loading
// always goes through the lenient ParseRange.
func IsValidRangeText(text string) bool {
	if !strictRe.MatchString(text) {
		return false
	}
	// Both clocks must be real wall-clock values.
	parts := sepRe.Split(text, 2)
	if len(parts) < 2 {
		return false
	}
	if _, ok := parseClock(parts[0]); !ok {
		return false
	}
	_, ok := parseClock(parts[1])
	return ok
}

// NormalizeText re-renders arbitrary range text in canonical form.
func NormalizeText(text string) string {
	return ParseRange(strings.TrimSpace(text)).Text()
}
