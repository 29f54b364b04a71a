package sched

import (
	"errors"
	"math"
	"sort"

	"tripweaver/internal/model"
	"tripweaver/internal/timetext"
)

var (
	// ErrInvalidAnchor is returned when a locked activity has a non-positive
	// duration or locked anchors overlap each other. Validated before any
	// segment math runs.
	ErrInvalidAnchor = errors.New("invalid locked anchor")
	// ErrSegmentSpan is returned when a segment has no room at all.
	ErrSegmentSpan = errors.New("segment span is non-positive")
)

const (
	minAdjustScale = 0.5
	maxAdjustScale = 2.0
)

// Segment is a maximal run of unlocked activities bounded by anchors or the
// window edges.
type Segment struct {
	Lower         int  // minute bound below the segment
	Upper         int  // minute bound above the segment
	LowerAnchored bool // true when Lower comes from a locked activity
	UpperAnchored bool
	Indices       []int // positions of the segment's activities within the day
	Scale         float64
}

// AutoAdjustResult reports what the solver did, mostly for logging and the
// event stream.
type AutoAdjustResult struct {
	Segments []Segment
}

// AutoAdjust redistributes time across unlocked activities so each segment
// fills the span between its anchors as closely as possible. Locked
// activities are never moved. The day is only mutated when the whole
// operation succeeds; any validation failure leaves it untouched.
func AutoAdjust(day *model.Day, locked map[string]bool, w Window) (AutoAdjustResult, error) {
	var res AutoAdjustResult

	// Anchor validation comes first: bad anchors reject the operation before
	// any segment is computed.
	type anchor struct {
		start, end int
	}
	var anchors []anchor
	for i := range day.Activities {
		if !locked[day.Activities[i].ID] {
			continue
		}
		r := timetext.ParseRange(day.Activities[i].TimeRange)
		if r.Duration <= 0 {
			return res, ErrInvalidAnchor
		}
		anchors = append(anchors, anchor{start: r.Start, end: r.End})
	}
	sort.Slice(anchors, func(i, j int) bool { return anchors[i].start < anchors[j].start })
	for i := 1; i < len(anchors); i++ {
		if anchors[i].start < anchors[i-1].end {
			return res, ErrInvalidAnchor
		}
	}

	// Partition in list order into runs delimited by locked activities.
	draft := day.Clone()
	var segs []Segment
	cur := Segment{Lower: w.Start, LowerAnchored: false}
	for i := range draft.Activities {
		if locked[draft.Activities[i].ID] {
			r := timetext.ParseRange(draft.Activities[i].TimeRange)
			cur.Upper = r.Start
			cur.UpperAnchored = true
			segs = append(segs, cur)
			cur = Segment{Lower: r.End, LowerAnchored: true}
			continue
		}
		cur.Indices = append(cur.Indices, i)
	}
	cur.Upper = w.End
	segs = append(segs, cur)

	for si := range segs {
		if err := adjustSegment(draft, &segs[si]); err != nil {
			return res, err
		}
	}

	*day = *draft
	res.Segments = segs
	return res, nil
}

func adjustSegment(day *model.Day, seg *Segment) error {
	if len(seg.Indices) == 0 {
		seg.Scale = 1
		return nil
	}
	avail := seg.Upper - seg.Lower
	if avail <= 0 {
		return ErrSegmentSpan
	}

	durations := make([]int, len(seg.Indices))
	sum := 0
	for i, idx := range seg.Indices {
		d := timetext.ParseRange(day.Activities[idx].TimeRange).Duration
		if d < SnapMin {
			d = SnapMin
		}
		durations[i] = d
		sum += d
	}

	// One buffer between each pair, plus one against each anchored bound.
	buffers := (len(seg.Indices) - 1) * BufferMin
	if seg.LowerAnchored {
		buffers += BufferMin
	}
	if seg.UpperAnchored {
		buffers += BufferMin
	}

	scale := float64(avail-buffers) / float64(sum)
	if scale < minAdjustScale {
		scale = minAdjustScale
	}
	if scale > maxAdjustScale {
		scale = maxAdjustScale
	}
	seg.Scale = scale

	scaled := apportionToGrid(durations, scale)

	cursor := seg.Lower
	if seg.LowerAnchored {
		cursor += BufferMin
	}
	for i, idx := range seg.Indices {
		d := scaled[i]
		day.Activities[idx].TimeRange = timetext.Range{Start: cursor, End: cursor + d, Duration: d}.Text()
		cursor += d + BufferMin
	}
	return nil
}

// apportionToGrid scales the durations and rounds each to the 5-minute grid
// while preserving the grid-rounded total (largest-remainder). Preserving the
// total keeps a second solver pass at scale ~1, which is what makes repeated
// auto-adjust runs a fixed point.
func apportionToGrid(durations []int, scale float64) []int {
	exact := make([]float64, len(durations))
	total := 0.0
	for i, d := range durations {
		exact[i] = float64(d) * scale
		total += exact[i]
	}
	target := int(math.Round(total/SnapMin)) * SnapMin
	if target < SnapMin*len(durations) {
		target = SnapMin * len(durations)
	}

	out := make([]int, len(durations))
	type rem struct {
		idx  int
		frac float64
	}
	rems := make([]rem, len(durations))
	allocated := 0
	for i, e := range exact {
		base := int(math.Floor(e/SnapMin)) * SnapMin
		if base < SnapMin {
			base = SnapMin
		}
		out[i] = base
		allocated += base
		rems[i] = rem{idx: i, frac: e - float64(base)}
	}
	sort.SliceStable(rems, func(a, b int) bool { return rems[a].frac > rems[b].frac })
	for i := 0; allocated < target && i < len(rems); i++ {
		out[rems[i].idx] += SnapMin
		allocated += SnapMin
	}
	// If floors overshot the target (all-minimum case), leave as is; the
	// scale clamp already accepts a best-effort fit.
	return out
}
