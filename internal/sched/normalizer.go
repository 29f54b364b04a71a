// Package sched implements the scheduling engine for one day of an itinerary:
// sequential and targeted re-lay of activity times, the pixel-based timeline
// gesture math, and the lock-aware auto-adjust solver. Everything operates on
// plain values and returns errors instead of mutating on failure, so the HTTP
// layer can treat each edit as atomic.
package sched

import (
	"errors"

	"tripweaver/internal/model"
	"tripweaver/internal/timetext"
)

const (
	// BufferMin is the minimum idle gap enforced between consecutive
	// activities whenever the normalizer pushes times.
	BufferMin = 15
	// MinDurationMin is the smallest duration a resize may produce.
	MinDurationMin = 15
	// MaxPreservedGapMin caps the per-pair gap carried over by the
	// push_preserve_gaps policy.
	MaxPreservedGapMin = 120
)

var (
	ErrConflict      = errors.New("schedule conflict")
	ErrInvalidRange  = errors.New("invalid time range")
	ErrInvalidPolicy = errors.New("invalid edit policy")
)

// Relay lays the activities out back to back starting at baseStart, keeping
// each activity's duration and inserting the minimum buffer between
// neighbours. Prior gaps are discarded: after a reorder or insert they no
// longer mean anything.
func Relay(acts []model.Activity, baseStart int) {
	cursor := baseStart
	for i := range acts {
		r := timetext.ParseRange(acts[i].TimeRange)
		acts[i].TimeRange = timetext.Range{Start: cursor, End: cursor + r.Duration, Duration: r.Duration}.Text()
		cursor += r.Duration + BufferMin
	}
}

// MinStart returns the earliest parsed start across the activities, or
// fallback when the list is empty. Reorder anchors at this value so repeated
// moves do not drift the day in absolute time.
func MinStart(acts []model.Activity, fallback int) int {
	if len(acts) == 0 {
		return fallback
	}
	min := timetext.ParseRange(acts[0].TimeRange).Start
	for _, a := range acts[1:] {
		if s := timetext.ParseRange(a.TimeRange).Start; s < min {
			min = s
		}
	}
	return min
}

// Move relocates the element at from to position to, shifting the elements in
// between. Out-of-range indices leave the slice untouched; drag libraries can
// emit stale events after a list mutation.
func Move(acts []model.Activity, from, to int) bool {
	n := len(acts)
	if from < 0 || from >= n || to < 0 || to >= n || from == to {
		return false
	}
	a := acts[from]
	if from < to {
		copy(acts[from:], acts[from+1:to+1])
	} else {
		copy(acts[to+1:], acts[to:from])
	}
	acts[to] = a
	return true
}

// ApplyTimeEdit sets a new time range on the activity at idx and adjusts the
// following activities per the policy. On any error the slice is left
// unmodified.
//
// Under push policies a new start colliding with the previous activity is
// clamped forward to previous end + buffer. keep_following never clamps and
// never touches neighbours: it fails instead.
func ApplyTimeEdit(acts []model.Activity, idx int, text string, policy model.EditPolicy) error {
	if idx < 0 || idx >= len(acts) {
		return ErrInvalidRange
	}
	if !policy.Valid() {
		return ErrInvalidPolicy
	}
	if !timetext.IsValidRangeText(text) {
		return ErrInvalidRange
	}
	edited := timetext.ParseRange(text)

	// Clamp against the previous activity, except under keep_following.
	if idx > 0 && policy != model.KeepFollowing {
		prev := timetext.ParseRange(acts[idx-1].TimeRange)
		if edited.Start < prev.End+BufferMin {
			edited = timetext.Range{
				Start:    prev.End + BufferMin,
				End:      prev.End + BufferMin + edited.Duration,
				Duration: edited.Duration,
			}
		}
	}

	switch policy {
	case model.KeepFollowing:
		if idx > 0 {
			prev := timetext.ParseRange(acts[idx-1].TimeRange)
			if edited.Start < prev.End+BufferMin {
				return ErrConflict
			}
		}
		if idx+1 < len(acts) {
			// Overlap with the next activity is the failure; a gap short of
			// the buffer is allowed since nothing downstream moves.
			next := timetext.ParseRange(acts[idx+1].TimeRange)
			if edited.End > next.Start {
				return ErrConflict
			}
		}
		acts[idx].TimeRange = edited.Text()
		return nil

	case model.PushCompact:
		acts[idx].TimeRange = edited.Text()
		cursor := edited.End + BufferMin
		for i := idx + 1; i < len(acts); i++ {
			r := timetext.ParseRange(acts[i].TimeRange)
			acts[i].TimeRange = timetext.Range{Start: cursor, End: cursor + r.Duration, Duration: r.Duration}.Text()
			cursor += r.Duration + BufferMin
		}
		return nil

	case model.PushPreserveGaps:
		// Record the original gaps before overwriting anything.
		gaps := make([]int, 0, len(acts)-idx-1)
		prevEnd := timetext.ParseRange(acts[idx].TimeRange).End
		for i := idx + 1; i < len(acts); i++ {
			r := timetext.ParseRange(acts[i].TimeRange)
			gap := r.Start - prevEnd
			if gap < BufferMin {
				gap = BufferMin
			}
			if gap > MaxPreservedGapMin {
				gap = MaxPreservedGapMin
			}
			gaps = append(gaps, gap)
			prevEnd = r.End
		}
		acts[idx].TimeRange = edited.Text()
		cursor := edited.End
		for i := idx + 1; i < len(acts); i++ {
			r := timetext.ParseRange(acts[i].TimeRange)
			start := cursor + gaps[i-idx-1]
			acts[i].TimeRange = timetext.Range{Start: start, End: start + r.Duration, Duration: r.Duration}.Text()
			cursor = start + r.Duration
		}
		return nil
	}
	return ErrInvalidPolicy
}
