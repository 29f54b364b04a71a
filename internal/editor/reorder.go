// Package editor turns user gestures (drag ends, modal commits, timeline
// pointer events) into atomic plan mutations. It owns the draft/commit
// separation: nothing here writes to the committed plan except through an
// explicit commit, and a failed or cancelled operation leaves the committed
// plan byte-for-byte unchanged.
package editor

import (
	"tripweaver/internal/model"
	"tripweaver/internal/sched"
	"tripweaver/internal/timetext"
)

// Reorder moves the activity at from to position to within the day and
// re-lays the schedule sequentially, anchored at the day's minimum original
// start so repeated moves do not drift the day. It applies identically to the
// card list and the route list; both are views over the same id-keyed order.
// Stale indices are a no-op and report false.
func Reorder(day *model.Day, from, to int) bool {
	anchor := sched.MinStart(day.Activities, timetext.FallbackStartMin)
	if !sched.Move(day.Activities, from, to) {
		return false
	}
	sched.Relay(day.Activities, anchor)
	return true
}

// Insert adds a fresh activity (default 08:00-10:00, isNew set) above the
// given index, or at the end when aboveIndex is nil, then re-lays the day.
// The returned activity carries the generated id.
func Insert(day *model.Day, req model.InsertActivityRequest) model.Activity {
	a := model.Activity{
		ID:    model.NewID(),
		Place: req.Place,
		IsNew: true,
		TimeRange: timetext.Range{
			Start:    timetext.FallbackStartMin,
			End:      timetext.FallbackStartMin + timetext.DefaultDurationMin,
			Duration: timetext.DefaultDurationMin,
		}.Text(),
	}
	anchor := sched.MinStart(day.Activities, timetext.FallbackStartMin)
	pos := len(day.Activities)
	if req.AboveIndex != nil && *req.AboveIndex >= 0 && *req.AboveIndex <= len(day.Activities) {
		pos = *req.AboveIndex
	}
	day.Activities = append(day.Activities, model.Activity{})
	copy(day.Activities[pos+1:], day.Activities[pos:])
	day.Activities[pos] = a
	sched.Relay(day.Activities, anchor)
	return day.Activities[pos]
}

// Delete removes the activity with the given id and re-lays the day. Unknown
// ids are a no-op.
func Delete(day *model.Day, activityID string) bool {
	idx := day.IndexOf(activityID)
	if idx < 0 {
		return false
	}
	anchor := sched.MinStart(day.Activities, timetext.FallbackStartMin)
	day.Activities = append(day.Activities[:idx], day.Activities[idx+1:]...)
	sched.Relay(day.Activities, anchor)
	return true
}
