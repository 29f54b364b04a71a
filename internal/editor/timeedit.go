package editor

import (
	"errors"

	"tripweaver/internal/model"
	"tripweaver/internal/sched"
	"tripweaver/internal/timetext"
)

// EditState is the manual time-edit modal's lifecycle.
type EditState int

const (
	EditClosed EditState = iota
	EditOpen
	EditCommitting
)

var (
	ErrEditClosed  = errors.New("no open time edit")
	ErrEditInvalid = errors.New("draft fails validation")
)

// TimeEdit backs the modal for editing one activity's range text. The draft
// validates continuously; Commit is rejected, not silently skipped, while the
// draft is invalid.
type TimeEdit struct {
	state      EditState
	activityID string
	draft      string
	policy     model.EditPolicy
}

// Open starts an edit for the activity, seeding the draft with its current
// range text. The default policy is push_preserve_gaps.
func (e *TimeEdit) Open(day *model.Day, activityID string) bool {
	idx := day.IndexOf(activityID)
	if idx < 0 {
		return false
	}
	e.state = EditOpen
	e.activityID = activityID
	e.draft = day.Activities[idx].TimeRange
	e.policy = model.PushPreserveGaps
	return true
}

func (e *TimeEdit) State() EditState { return e.state }

// SetDraft updates the draft text; SetPolicy switches the push policy.
func (e *TimeEdit) SetDraft(text string) { e.draft = text }

func (e *TimeEdit) SetPolicy(p model.EditPolicy) {
	if p.Valid() {
		e.policy = p
	}
}

// Validate reports whether Commit would be allowed against the given day:
// the draft must be strict-valid range text, and under keep_following it must
// not overlap the neighbouring activities.
func (e *TimeEdit) Validate(day *model.Day) error {
	if e.state != EditOpen {
		return ErrEditClosed
	}
	if !timetext.IsValidRangeText(e.draft) {
		return sched.ErrInvalidRange
	}
	if e.policy == model.KeepFollowing {
		idx := day.IndexOf(e.activityID)
		if idx < 0 {
			return ErrEditInvalid
		}
		r := timetext.ParseRange(e.draft)
		if idx > 0 {
			prev := timetext.ParseRange(day.Activities[idx-1].TimeRange)
			if r.Start < prev.End+sched.BufferMin {
				return sched.ErrConflict
			}
		}
		if idx+1 < len(day.Activities) {
			next := timetext.ParseRange(day.Activities[idx+1].TimeRange)
			if r.End > next.Start {
				return sched.ErrConflict
			}
		}
	}
	return nil
}

// Commit applies the draft to the day through the targeted re-lay. On any
// failure the day is unchanged and the modal stays open; on success the modal
// closes.
func (e *TimeEdit) Commit(day *model.Day) error {
	if err := e.Validate(day); err != nil {
		return err
	}
	e.state = EditCommitting
	idx := day.IndexOf(e.activityID)
	if idx < 0 {
		// The list mutated underneath the modal; treat as stale and close.
		e.reset()
		return nil
	}
	if err := sched.ApplyTimeEdit(day.Activities, idx, e.draft, e.policy); err != nil {
		e.state = EditOpen
		return err
	}
	e.reset()
	return nil
}

// Cancel closes the modal with no mutation.
func (e *TimeEdit) Cancel() { e.reset() }

func (e *TimeEdit) reset() {
	*e = TimeEdit{}
}
