package sched

import (
	"math"

	"tripweaver/internal/model"
	"tripweaver/internal/timetext"
)

// Window bounds the timeline editor to a wall-clock span, in minutes since
// 00:00. The reference window is 06:00-23:00.
type Window struct {
	Start int `yaml:"start" json:"start"`
	End   int `yaml:"end" json:"end"`
}

// DefaultWindow is used when the configuration does not override it.
var DefaultWindow = Window{Start: 6 * 60, End: 23 * 60}

func (w Window) Span() int { return w.End - w.Start }

// SnapMin is the rounding increment for pointer positions and adjusted
// durations.
const SnapMin = 5

// PointerToMinutes maps a pointer Y offset to minutes at the given
// pixels-per-minute scale, rounded to the nearest 5-minute increment.
func PointerToMinutes(deltaPx, pxPerMinute float64) int {
	if pxPerMinute <= 0 {
		return 0
	}
	return snap(deltaPx / pxPerMinute)
}

func snap(minutes float64) int {
	return int(math.Round(minutes/SnapMin)) * SnapMin
}

// Gesture modes and resize edges.
const (
	GestureMove   = "move"
	GestureResize = "resize"
	EdgeTop       = "top"
	EdgeBottom    = "bottom"
)

// ApplyGesture applies one drag gesture to the draft day, in place. Move
// preserves duration; resize moves a single edge with duration and window
// clamps. An unknown activity id is a no-op (stale pointer events are
// expected); the bool reports whether anything changed.
func ApplyGesture(day *model.Day, g model.GestureRequest, w Window, pxPerMinute float64) bool {
	idx := day.IndexOf(g.ActivityID)
	if idx < 0 {
		return false
	}
	delta := PointerToMinutes(g.DeltaPx, pxPerMinute)
	r := timetext.ParseRange(day.Activities[idx].TimeRange)

	switch g.Mode {
	case GestureMove:
		start := r.Start + delta
		if start < w.Start {
			start = w.Start
		}
		if start+r.Duration > w.End {
			start = w.End - r.Duration
			if start < w.Start {
				start = w.Start
			}
		}
		r = timetext.Range{Start: start, End: start + r.Duration, Duration: r.Duration}
	case GestureResize:
		switch g.Edge {
		case EdgeTop:
			start := r.Start + delta
			if start < w.Start {
				start = w.Start
			}
			if r.End-start < MinDurationMin {
				start = r.End - MinDurationMin
			}
			r = timetext.Range{Start: start, End: r.End, Duration: r.End - start}
		case EdgeBottom:
			end := r.End + delta
			if end > w.End {
				end = w.End
			}
			if end-r.Start < MinDurationMin {
				end = r.Start + MinDurationMin
			}
			r = timetext.Range{Start: r.Start, End: end, Duration: end - r.Start}
		default:
			return false
		}
	default:
		return false
	}

	day.Activities[idx].TimeRange = r.Text()
	return true
}

// SaveNormalize is the final pass before a timeline session commits: every
// interval is clamped into the window and the minimum buffer is enforced
// sequentially in list order. Locked activities are not exempt here; the
// draft may contain gesture leftovers.
func SaveNormalize(day *model.Day, w Window) {
	cursor := w.Start
	for i := range day.Activities {
		r := timetext.ParseRange(day.Activities[i].TimeRange)
		start := r.Start
		if start < cursor {
			start = cursor
		}
		end := start + r.Duration
		if end > w.End {
			end = w.End
			if end-start < MinDurationMin {
				start = end - MinDurationMin
			}
			if start < w.Start {
				start = w.Start
			}
		}
		day.Activities[i].TimeRange = timetext.Range{Start: start, End: end, Duration: end - start}.Text()
		cursor = end + BufferMin
	}
}
