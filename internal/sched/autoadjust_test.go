package sched

import (
	"reflect"
	"testing"

	"tripweaver/internal/model"
)

func TestAutoAdjustFillsWindow(t *testing.T) {
	d := &model.Day{DayNumber: 1, Activities: []model.Activity{
		{ID: "a", TimeRange: "08:00 - 12:00"},
		{ID: "b", TimeRange: "13:00 - 17:00"},
		{ID: "c", TimeRange: "18:00 - 22:00"},
	}}
	res, err := AutoAdjust(d, nil, DefaultWindow)
	if err != nil {
		t.Fatalf("AutoAdjust: %v", err)
	}
	if len(res.Segments) != 1 {
		t.Fatalf("segments: %d", len(res.Segments))
	}
	want := []string{"06:00 - 11:30", "11:45 - 17:15", "17:30 - 23:00"}
	for i, w := range want {
		if d.Activities[i].TimeRange != w {
			t.Fatalf("activity %d: %q, want %q", i, d.Activities[i].TimeRange, w)
		}
	}
}

func TestAutoAdjustIdempotentWhenUnclamped(t *testing.T) {
	d := &model.Day{DayNumber: 1, Activities: []model.Activity{
		{ID: "a", TimeRange: "08:00 - 12:00"},
		{ID: "b", TimeRange: "13:00 - 17:00"},
		{ID: "c", TimeRange: "18:00 - 22:00"},
	}}
	res, err := AutoAdjust(d, nil, DefaultWindow)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if s := res.Segments[0].Scale; s <= minAdjustScale || s >= maxAdjustScale {
		t.Fatalf("scenario must not clamp, got scale %v", s)
	}
	after := append([]model.Activity(nil), d.Activities...)
	if _, err := AutoAdjust(d, nil, DefaultWindow); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if !reflect.DeepEqual(after, d.Activities) {
		t.Fatalf("second run changed the day:\n%v\n%v", after, d.Activities)
	}
}

func TestAutoAdjustRespectsLocks(t *testing.T) {
	d := &model.Day{DayNumber: 1, Activities: []model.Activity{
		{ID: "a", TimeRange: "06:30 - 07:30"},
		{ID: "lunch", TimeRange: "12:00 - 14:00"},
		{ID: "b", TimeRange: "15:00 - 16:00"},
	}}
	locked := map[string]bool{"lunch": true}
	res, err := AutoAdjust(d, locked, DefaultWindow)
	if err != nil {
		t.Fatalf("AutoAdjust: %v", err)
	}
	if d.Activities[1].TimeRange != "12:00 - 14:00" {
		t.Fatalf("locked activity moved: %q", d.Activities[1].TimeRange)
	}
	// Both free runs want far more than 2x; the scale clamp caps them.
	if d.Activities[0].TimeRange != "06:00 - 08:00" {
		t.Fatalf("segment before anchor: %q", d.Activities[0].TimeRange)
	}
	if d.Activities[2].TimeRange != "14:15 - 16:15" {
		t.Fatalf("segment after anchor: %q", d.Activities[2].TimeRange)
	}
	for _, seg := range res.Segments {
		if len(seg.Indices) > 0 && seg.Scale != maxAdjustScale {
			t.Fatalf("expected clamped scale, got %v", seg.Scale)
		}
	}
}

func TestAutoAdjustRejectsOverlappingAnchors(t *testing.T) {
	d := &model.Day{DayNumber: 1, Activities: []model.Activity{
		{ID: "l1", TimeRange: "10:00 - 12:00"},
		{ID: "free", TimeRange: "12:30 - 13:00"},
		{ID: "l2", TimeRange: "11:00 - 13:00"},
	}}
	before := append([]model.Activity(nil), d.Activities...)
	_, err := AutoAdjust(d, map[string]bool{"l1": true, "l2": true}, DefaultWindow)
	if err != ErrInvalidAnchor {
		t.Fatalf("err = %v, want ErrInvalidAnchor", err)
	}
	if !reflect.DeepEqual(before, d.Activities) {
		t.Fatal("day mutated on rejected adjust")
	}
}

func TestAutoAdjustRejectsEmptySegmentSpan(t *testing.T) {
	d := &model.Day{DayNumber: 1, Activities: []model.Activity{
		{ID: "l1", TimeRange: "08:00 - 10:00"},
		{ID: "free", TimeRange: "10:00 - 10:30"},
		{ID: "l2", TimeRange: "10:00 - 12:00"},
	}}
	before := append([]model.Activity(nil), d.Activities...)
	_, err := AutoAdjust(d, map[string]bool{"l1": true, "l2": true}, DefaultWindow)
	if err != ErrSegmentSpan {
		t.Fatalf("err = %v, want ErrSegmentSpan", err)
	}
	if !reflect.DeepEqual(before, d.Activities) {
		t.Fatal("day mutated on rejected adjust")
	}
}
