package sched

import (
	"testing"

	"tripweaver/internal/model"
	"tripweaver/internal/timetext"
)

func day(ranges ...string) []model.Activity {
	acts := make([]model.Activity, len(ranges))
	for i, r := range ranges {
		acts[i] = model.Activity{ID: string(rune('a' + i)), TimeRange: r}
	}
	return acts
}

func ranges(acts []model.Activity) []string {
	out := make([]string, len(acts))
	for i := range acts {
		out[i] = acts[i].TimeRange
	}
	return out
}

func assertNoOverlap(t *testing.T, acts []model.Activity) {
	t.Helper()
	for i := 1; i < len(acts); i++ {
		prev := timetext.ParseRange(acts[i-1].TimeRange)
		cur := timetext.ParseRange(acts[i].TimeRange)
		if cur.Start < prev.End+BufferMin {
			t.Fatalf("activity %d starts %d, previous ends %d: buffer violated\n%v",
				i, cur.Start, prev.End, ranges(acts))
		}
	}
}

func TestRelayPreservesDurations(t *testing.T) {
	acts := day("09:00 - 10:30", "10:00 - 10:45", "08:00 - 12:00")
	want := []int{90, 45, 240}
	Relay(acts, 9*60)
	assertNoOverlap(t, acts)
	cursor := 9 * 60
	for i, a := range acts {
		r := timetext.ParseRange(a.TimeRange)
		if r.Duration != want[i] {
			t.Fatalf("activity %d duration %d, want %d", i, r.Duration, want[i])
		}
		if r.Start != cursor {
			t.Fatalf("activity %d starts %d, want %d", i, r.Start, cursor)
		}
		cursor = r.End + BufferMin
	}
}

func TestMinStart(t *testing.T) {
	acts := day("10:00 - 11:00", "08:30 - 09:00", "12:00 - 13:00")
	if got := MinStart(acts, 480); got != 510 {
		t.Fatalf("MinStart = %d, want 510", got)
	}
	if got := MinStart(nil, 480); got != 480 {
		t.Fatalf("MinStart empty = %d, want fallback 480", got)
	}
}

func TestMoveStaleIndicesNoOp(t *testing.T) {
	acts := day("08:00 - 09:00", "09:15 - 10:00")
	before := ranges(acts)
	for _, c := range [][2]int{{-1, 0}, {0, 5}, {2, 0}, {1, 1}} {
		if Move(acts, c[0], c[1]) {
			t.Fatalf("Move(%d,%d) applied on stale indices", c[0], c[1])
		}
	}
	for i, r := range ranges(acts) {
		if r != before[i] {
			t.Fatalf("slice mutated by rejected move")
		}
	}
	if !Move(acts, 0, 1) {
		t.Fatal("valid move rejected")
	}
	if acts[0].ID != "b" || acts[1].ID != "a" {
		t.Fatalf("move order: %s, %s", acts[0].ID, acts[1].ID)
	}
}

func TestApplyTimeEditPushCompact(t *testing.T) {
	acts := day("08:00 - 09:00", "09:30 - 10:30", "12:00 - 13:00")
	if err := ApplyTimeEdit(acts, 0, "08:00 - 10:00", model.PushCompact); err != nil {
		t.Fatalf("ApplyTimeEdit: %v", err)
	}
	want := []string{"08:00 - 10:00", "10:15 - 11:15", "11:30 - 12:30"}
	for i, w := range want {
		if acts[i].TimeRange != w {
			t.Fatalf("activity %d: %q, want %q", i, acts[i].TimeRange, w)
		}
	}
	assertNoOverlap(t, acts)
}

func TestApplyTimeEditPreserveGaps(t *testing.T) {
	// 60-minute gap after the edited activity, then a tight 15-minute one.
	acts := day("08:00 - 09:00", "10:00 - 11:00", "11:15 - 12:00")
	if err := ApplyTimeEdit(acts, 0, "08:00 - 09:30", model.PushPreserveGaps); err != nil {
		t.Fatalf("ApplyTimeEdit: %v", err)
	}
	want := []string{"08:00 - 09:30", "10:30 - 11:30", "11:45 - 12:30"}
	for i, w := range want {
		if acts[i].TimeRange != w {
			t.Fatalf("activity %d: %q, want %q", i, acts[i].TimeRange, w)
		}
	}
	assertNoOverlap(t, acts)
}

func TestApplyTimeEditPreserveGapsCapsLargeGap(t *testing.T) {
	// A 4-hour gap is carried as at most MaxPreservedGapMin.
	acts := day("08:00 - 09:00", "13:00 - 14:00")
	if err := ApplyTimeEdit(acts, 0, "08:00 - 09:15", model.PushPreserveGaps); err != nil {
		t.Fatalf("ApplyTimeEdit: %v", err)
	}
	next := timetext.ParseRange(acts[1].TimeRange)
	if got := next.Start - (9*60 + 15); got != MaxPreservedGapMin {
		t.Fatalf("preserved gap %d, want %d", got, MaxPreservedGapMin)
	}
}

func TestApplyTimeEditClampsAgainstPrevious(t *testing.T) {
	acts := day("08:00 - 09:00", "09:30 - 10:30")
	if err := ApplyTimeEdit(acts, 1, "08:30 - 09:30", model.PushCompact); err != nil {
		t.Fatalf("ApplyTimeEdit: %v", err)
	}
	// Start clamps to previous end + buffer; the hour duration is kept.
	if acts[1].TimeRange != "09:15 - 10:15" {
		t.Fatalf("clamped range: %q", acts[1].TimeRange)
	}
	assertNoOverlap(t, acts)
}

func TestApplyTimeEditKeepFollowingConflict(t *testing.T) {
	acts := day("08:00 - 09:00", "09:15 - 10:00", "10:15 - 11:00")
	before := ranges(acts)
	// New end runs into the next activity.
	err := ApplyTimeEdit(acts, 1, "09:15 - 10:20", model.KeepFollowing)
	if err != ErrConflict {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
	for i, r := range ranges(acts) {
		if r != before[i] {
			t.Fatalf("slice mutated on rejected keep_following edit")
		}
	}
	// A fit that respects both neighbours applies without touching them.
	if err := ApplyTimeEdit(acts, 1, "09:15 - 09:45", model.KeepFollowing); err != nil {
		t.Fatalf("ApplyTimeEdit: %v", err)
	}
	if acts[0].TimeRange != before[0] || acts[2].TimeRange != before[2] {
		t.Fatal("keep_following moved a neighbour")
	}
	if acts[1].TimeRange != "09:15 - 09:45" {
		t.Fatalf("edited range: %q", acts[1].TimeRange)
	}
}

func TestApplyTimeEditKeepFollowingAllowsShortGap(t *testing.T) {
	// Ending short of the next start commits even when the gap is under the
	// buffer: nothing downstream moves, so no buffer is owed.
	acts := day("08:00 - 09:00", "09:15 - 10:00", "10:15 - 11:00")
	if err := ApplyTimeEdit(acts, 1, "09:15 - 10:05", model.KeepFollowing); err != nil {
		t.Fatalf("ApplyTimeEdit: %v", err)
	}
	if acts[1].TimeRange != "09:15 - 10:05" {
		t.Fatalf("edited range: %q", acts[1].TimeRange)
	}
	if acts[2].TimeRange != "10:15 - 11:00" {
		t.Fatalf("next activity moved: %q", acts[2].TimeRange)
	}
	// Touching the next start exactly is still allowed; crossing it is not.
	if err := ApplyTimeEdit(acts, 1, "09:15 - 10:15", model.KeepFollowing); err != nil {
		t.Fatalf("flush fit: %v", err)
	}
	if err := ApplyTimeEdit(acts, 1, "09:15 - 10:16", model.KeepFollowing); err != ErrConflict {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
}

func TestApplyTimeEditRejectsBadInput(t *testing.T) {
	acts := day("08:00 - 09:00")
	if err := ApplyTimeEdit(acts, 0, "whenever", model.PushCompact); err != ErrInvalidRange {
		t.Fatalf("bad text: %v", err)
	}
	if err := ApplyTimeEdit(acts, 0, "08:00 - 09:00", model.EditPolicy("squash")); err != ErrInvalidPolicy {
		t.Fatalf("bad policy: %v", err)
	}
	if err := ApplyTimeEdit(acts, 3, "08:00 - 09:00", model.PushCompact); err != ErrInvalidRange {
		t.Fatalf("bad index: %v", err)
	}
}
