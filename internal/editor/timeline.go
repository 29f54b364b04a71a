package editor

import (
	"errors"
	"sync"

	"tripweaver/internal/model"
	"tripweaver/internal/sched"
)

var (
	ErrSessionBusy     = errors.New("day already has an open timeline session")
	ErrSessionNotFound = errors.New("timeline session not found")
)

// TimelineSession is an exclusive editing session over one day. All gestures
// mutate the draft; the committed plan is only touched by Save.
type TimelineSession struct {
	ID        string
	TripID    string
	DayNumber int

	draft  *model.Day
	locked map[string]bool
	window sched.Window
	scale  float64
}

// Draft exposes the working copy (for rendering and tests).
func (s *TimelineSession) Draft() *model.Day { return s.draft }

// Locked reports an activity's lock flag.
func (s *TimelineSession) Locked(id string) bool { return s.locked[id] }

// ApplyGesture applies one move/resize gesture to the draft.
func (s *TimelineSession) ApplyGesture(g model.GestureRequest) bool {
	return sched.ApplyGesture(s.draft, g, s.window, s.scale)
}

// SetLock toggles an activity's anchor flag. Unknown ids are a no-op.
func (s *TimelineSession) SetLock(req model.LockRequest) bool {
	if s.draft.IndexOf(req.ActivityID) < 0 {
		return false
	}
	if req.Locked {
		s.locked[req.ActivityID] = true
	} else {
		delete(s.locked, req.ActivityID)
	}
	return true
}

// AutoAdjust runs the solver over the draft. Failures leave the draft as it
// was.
func (s *TimelineSession) AutoAdjust() (sched.AutoAdjustResult, error) {
	return sched.AutoAdjust(s.draft, s.locked, s.window)
}

// Sessions manages timeline sessions and enforces one open editor per
// (trip, day). It is safe for concurrent handlers.
type Sessions struct {
	mu     sync.Mutex
	byID   map[string]*TimelineSession
	byDay  map[dayKey]string
	window sched.Window
	scale  float64
}

type dayKey struct {
	tripID string
	day    int
}

func NewSessions(w sched.Window, pxPerMinute float64) *Sessions {
	if pxPerMinute <= 0 {
		pxPerMinute = 1
	}
	return &Sessions{
		byID:   map[string]*TimelineSession{},
		byDay:  map[dayKey]string{},
		window: w,
		scale:  pxPerMinute,
	}
}

// Open starts a session over a deep copy of the day. A second open for the
// same day fails with ErrSessionBusy until the first is saved or closed.
func (m *Sessions) Open(tripID string, day *model.Day) (*TimelineSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := dayKey{tripID: tripID, day: day.DayNumber}
	if _, busy := m.byDay[k]; busy {
		return nil, ErrSessionBusy
	}
	s := &TimelineSession{
		ID:        model.NewID(),
		TripID:    tripID,
		DayNumber: day.DayNumber,
		draft:     day.Clone(),
		locked:    map[string]bool{},
		window:    m.window,
		scale:     m.scale,
	}
	m.byID[s.ID] = s
	m.byDay[k] = s.ID
	return s, nil
}

// Get resolves a session id.
func (m *Sessions) Get(id string) (*TimelineSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byID[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Close discards a session. The draft is dropped; the committed plan was
// never touched.
func (m *Sessions) Close(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.byID[id]; ok {
		delete(m.byDay, dayKey{tripID: s.TripID, day: s.DayNumber})
		delete(m.byID, id)
	}
}

// TakeForSave runs the final normalization pass and removes the session,
// returning the normalized day for the caller to commit. The session is gone
// either way; commit failures fall back on the store's unchanged state.
func (m *Sessions) TakeForSave(id string) (*model.Day, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byID[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	sched.SaveNormalize(s.draft, s.window)
	delete(m.byDay, dayKey{tripID: s.TripID, day: s.DayNumber})
	delete(m.byID, id)
	return s.draft, nil
}
