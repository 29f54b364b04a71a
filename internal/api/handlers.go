package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"tripweaver/internal/backend"
	"tripweaver/internal/editor"
	"tripweaver/internal/metrics"
	"tripweaver/internal/model"
	"tripweaver/internal/sched"
	"tripweaver/internal/store"
	"tripweaver/internal/timetext"
)

// TripsHandler handles everything under /v1/trips/:
//
//	GET/PUT /v1/trips/{id}
//	GET     /v1/trips/{id}/dirty
//	GET     /v1/trips/{id}/map
//	POST    /v1/trips/{id}/save
//	GET     /v1/trips/{id}/saves
//	GET     /v1/trips/{id}/events/stream
//	POST    /v1/trips/{id}/days/{n}/activities
//	DELETE  /v1/trips/{id}/days/{n}/activities/{activityId}
//	POST    /v1/trips/{id}/days/{n}/reorder
//	POST    /v1/trips/{id}/days/{n}/time-edit
//	POST    /v1/trips/{id}/days/{n}/timeline
func (s *Server) TripsHandler(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/trips/")
	if rest == r.URL.Path || rest == "" {
		writeProblem(w, http.StatusNotFound, "Not Found", "missing trip id", r.URL.Path)
		return
	}
	parts := strings.Split(rest, "/")
	tripID := parts[0]

	if len(parts) == 1 {
		s.tripDocument(w, r, tripID)
		return
	}
	switch parts[1] {
	case "dirty":
		s.tripDirty(w, r, tripID)
	case "map":
		s.tripMap(w, r, tripID)
	case "save":
		s.tripSave(w, r, tripID)
	case "saves":
		s.tripSaves(w, r, tripID)
	case "events":
		if len(parts) == 3 && parts[2] == "stream" {
			s.tripEventsStream(w, r, tripID)
			return
		}
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
	case "days":
		if len(parts) < 4 {
			writeProblem(w, http.StatusNotFound, "Not Found", "missing day operation", r.URL.Path)
			return
		}
		dayNum, err := strconv.Atoi(parts[2])
		if err != nil || dayNum < 1 {
			writeProblem(w, http.StatusNotFound, "Not Found", "bad day number", r.URL.Path)
			return
		}
		s.dayOperation(w, r, tripID, dayNum, parts[3:])
	default:
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
	}
}

// tripDocument handles GET/PUT of the whole plan.
func (s *Server) tripDocument(w http.ResponseWriter, r *http.Request, tripID string) {
	switch r.Method {
	case http.MethodGet:
		plan, err := s.loadPlan(r.Context(), tripID)
		if err != nil {
			writeSchedError(w, err, r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, plan)
	case http.MethodPut:
		var body struct {
			TripPlan *model.TripPlan   `json:"tripPlan"`
			Params   *model.TripParams `json:"tripParams,omitempty"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		if body.TripPlan == nil {
			writeProblem(w, http.StatusUnprocessableEntity, "Invalid plan", "tripPlan required", r.URL.Path)
			return
		}
		if err := s.Store.PutPlan(r.Context(), tripID, body.TripPlan); err != nil {
			writeProblem(w, http.StatusInternalServerError, "Store plan failed", err.Error(), r.URL.Path)
			return
		}
		if body.Params != nil {
			_ = s.Store.PutParams(r.Context(), tripID, body.Params)
		}
		s.Cache.Invalidate(r.Context(), tripID)
		plan, err := s.loadPlan(r.Context(), tripID)
		if err != nil {
			writeSchedError(w, err, r.URL.Path)
			return
		}
		s.Broker.Publish(tripID, SSEEvent{Type: "plan.updated", Data: map[string]any{"tripId": tripID, "kind": "replace"}})
		writeJSON(w, http.StatusOK, plan)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) tripDirty(w http.ResponseWriter, r *http.Request, tripID string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	dirty, err := s.Store.Dirty(r.Context(), tripID)
	if err != nil {
		writeSchedError(w, err, r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"dirty": dirty})
}

// tripMap projects activities with coordinates into ordered map points.
// ?day=N limits to one day.
func (s *Server) tripMap(w http.ResponseWriter, r *http.Request, tripID string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	plan, err := s.loadPlan(r.Context(), tripID)
	if err != nil {
		writeSchedError(w, err, r.URL.Path)
		return
	}
	onlyDay := 0
	if v := r.URL.Query().Get("day"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			onlyDay = n
		}
	}
	points := []model.MapPoint{}
	for _, d := range plan.Days {
		if onlyDay != 0 && d.DayNumber != onlyDay {
			continue
		}
		for i, a := range d.Activities {
			if a.PlaceDetails == nil || a.PlaceDetails.Coordinates == nil {
				continue
			}
			name := a.Place
			if name == "" {
				name = a.PlaceDetails.Name
			}
			rg := timetext.ParseRange(a.TimeRange)
			points = append(points, model.MapPoint{
				Lat:  a.PlaceDetails.Coordinates.Lat,
				Lng:  a.PlaceDetails.Coordinates.Lng,
				Name: name,
				Time: timetext.FormatMinutes(rg.Start),
				Seq:  i,
			})
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"tripId": tripID, "points": points})
}

// tripSave enqueues a push of the current plan to the backend. Requires a
// verified bearer principal (dev mode verifies trivially).
func (s *Server) tripSave(w http.ResponseWriter, r *http.Request, tripID string) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !s.authenticated(r) {
		writeProblem(w, http.StatusUnauthorized, "Unauthorized", "sign in to save", r.URL.Path)
		return
	}
	if s.Backend == nil || s.Backend.BaseURL == "" {
		writeProblem(w, http.StatusServiceUnavailable, "No backend", "no save target configured", r.URL.Path)
		return
	}
	plan, err := s.Store.GetPlan(r.Context(), tripID)
	if err != nil {
		writeSchedError(w, err, r.URL.Path)
		return
	}
	payload, err := backend.EncodePlan(plan)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Encode plan failed", err.Error(), r.URL.Path)
		return
	}
	id, err := s.Store.EnqueueSave(r.Context(), tripID, s.Backend.SaveURL(tripID), s.Backend.Secret, payload)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Enqueue save failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"deliveryId": id, "status": store.SaveStatusPending})
}

func (s *Server) tripSaves(w http.ResponseWriter, r *http.Request, tripID string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	status := r.URL.Query().Get("status")
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		fmt.Sscanf(v, "%d", &limit)
	}
	items, err := s.Store.ListSaves(r.Context(), tripID, status, limit)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "List saves failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// tripEventsStream is the SSE feed of plan.updated / plan.saved /
// timeline.opened / schedule.conflict events for one trip.
func (s *Server) tripEventsStream(w http.ResponseWriter, r *http.Request, tripID string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeProblem(w, http.StatusInternalServerError, "Streaming unsupported", "", r.URL.Path)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	ch := s.Broker.Subscribe(tripID)
	defer s.Broker.Unsubscribe(tripID, ch)
	// initial heartbeat
	fmt.Fprintf(w, "event: heartbeat\n")
	fmt.Fprintf(w, "data: {\"tripId\":\"%s\",\"ts\":\"%s\"}\n\n", tripID, time.Now().Format(time.RFC3339))
	flusher.Flush()
	notify := r.Context().Done()
	for {
		select {
		case <-notify:
			return
		case evt := <-ch:
			b, _ := json.Marshal(evt.Data)
			fmt.Fprintf(w, "event: %s\n", evt.Type)
			fmt.Fprintf(w, "data: %s\n\n", string(b))
			flusher.Flush()
		case <-time.After(15 * time.Second):
			fmt.Fprintf(w, "event: heartbeat\n")
			fmt.Fprintf(w, "data: {\"tripId\":\"%s\",\"ts\":\"%s\"}\n\n", tripID, time.Now().Format(time.RFC3339))
			flusher.Flush()
		}
	}
}

// dayOperation dispatches the per-day edit endpoints.
func (s *Server) dayOperation(w http.ResponseWriter, r *http.Request, tripID string, dayNum int, tail []string) {
	plan, err := s.loadPlan(r.Context(), tripID)
	if err != nil {
		writeSchedError(w, err, r.URL.Path)
		return
	}
	day := plan.Day(dayNum)
	if day == nil {
		writeProblem(w, http.StatusNotFound, "Day not found", fmt.Sprintf("trip has no day %d", dayNum), r.URL.Path)
		return
	}

	switch tail[0] {
	case "activities":
		if len(tail) == 1 && r.Method == http.MethodPost {
			s.insertActivity(w, r, tripID, day)
			return
		}
		if len(tail) == 2 && r.Method == http.MethodDelete {
			s.deleteActivity(w, r, tripID, day, tail[1])
			return
		}
		w.WriteHeader(http.StatusMethodNotAllowed)
	case "reorder":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		s.reorderDay(w, r, tripID, day)
	case "time-edit":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		s.timeEditDay(w, r, tripID, day)
	case "timeline":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		s.openTimeline(w, r, tripID, day)
	default:
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
	}
}

func (s *Server) insertActivity(w http.ResponseWriter, r *http.Request, tripID string, day *model.Day) {
	var req model.InsertActivityRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	created := editor.Insert(day, req)
	if err := s.commitDay(r.Context(), tripID, day, "insert"); err != nil {
		writeSchedError(w, err, r.URL.Path)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"activity": created, "day": day})
}

func (s *Server) deleteActivity(w http.ResponseWriter, r *http.Request, tripID string, day *model.Day, activityID string) {
	if !editor.Delete(day, activityID) {
		// stale id: the activity is already gone, nothing to do
		writeJSON(w, http.StatusOK, map[string]any{"applied": false, "day": day})
		return
	}
	if err := s.commitDay(r.Context(), tripID, day, "delete"); err != nil {
		writeSchedError(w, err, r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"applied": true, "day": day})
}

func (s *Server) reorderDay(w http.ResponseWriter, r *http.Request, tripID string, day *model.Day) {
	var req model.ReorderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	if err := validateReorderRequest(&req, len(day.Activities)); err != nil {
		writeProblem(w, http.StatusUnprocessableEntity, "Invalid reorder", err.Error(), r.URL.Path)
		return
	}
	if !editor.Reorder(day, req.From, req.To) {
		writeJSON(w, http.StatusOK, map[string]any{"applied": false, "day": day})
		return
	}
	if err := s.commitDay(r.Context(), tripID, day, "reorder"); err != nil {
		writeSchedError(w, err, r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"applied": true, "day": day})
}

func (s *Server) timeEditDay(w http.ResponseWriter, r *http.Request, tripID string, day *model.Day) {
	var req model.TimeEditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	if err := validateTimeEditRequest(&req); err != nil {
		writeProblem(w, http.StatusUnprocessableEntity, "Invalid time edit", err.Error(), r.URL.Path)
		return
	}
	var edit editor.TimeEdit
	if !edit.Open(day, req.ActivityID) {
		// stale activity id: the modal would never have opened
		writeJSON(w, http.StatusOK, map[string]any{"applied": false, "day": day})
		return
	}
	edit.SetDraft(req.Text)
	if req.Policy != "" {
		edit.SetPolicy(req.Policy)
	}
	start := time.Now()
	err := edit.Commit(day)
	metrics.NormalizeDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.EditOps.WithLabelValues("time-edit", "rejected").Inc()
		if err == sched.ErrConflict {
			s.Broker.Publish(tripID, SSEEvent{Type: "schedule.conflict", Data: map[string]any{
				"tripId":     tripID,
				"dayNumber":  day.DayNumber,
				"activityId": req.ActivityID,
			}})
		}
		writeSchedError(w, err, r.URL.Path)
		return
	}
	if err := s.commitDay(r.Context(), tripID, day, "time-edit"); err != nil {
		writeSchedError(w, err, r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"applied": true, "day": day})
}

// openTimeline starts an exclusive drag session over the day's draft.
func (s *Server) openTimeline(w http.ResponseWriter, r *http.Request, tripID string, day *model.Day) {
	sess, err := s.Sessions.Open(tripID, day)
	if err != nil {
		writeSchedError(w, err, r.URL.Path)
		return
	}
	metrics.TimelineSessions.Inc()
	s.Broker.Publish(tripID, SSEEvent{Type: "timeline.opened", Data: map[string]any{
		"tripId":    tripID,
		"dayNumber": day.DayNumber,
		"sessionId": sess.ID,
	}})
	writeJSON(w, http.StatusCreated, map[string]any{
		"sessionId": sess.ID,
		"tripId":    tripID,
		"dayNumber": day.DayNumber,
		"window":    s.Cfg.Timeline.Window,
		"draft":     sess.Draft(),
	})
}

// TimelineHandler handles /v1/timeline/{sessionId}[/gesture|/lock|/auto-adjust|/save].
func (s *Server) TimelineHandler(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/timeline/")
	if rest == r.URL.Path || rest == "" {
		writeProblem(w, http.StatusNotFound, "Not Found", "missing session id", r.URL.Path)
		return
	}
	parts := strings.Split(rest, "/")
	sid := parts[0]

	if len(parts) == 1 {
		if r.Method != http.MethodDelete {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if _, err := s.Sessions.Get(sid); err != nil {
			writeSchedError(w, err, r.URL.Path)
			return
		}
		s.Sessions.Close(sid)
		metrics.TimelineSessions.Dec()
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	switch parts[1] {
	case "gesture":
		s.timelineGesture(w, r, sid)
	case "lock":
		s.timelineLock(w, r, sid)
	case "auto-adjust":
		s.timelineAutoAdjust(w, r, sid)
	case "save":
		s.timelineSave(w, r, sid)
	default:
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
	}
}

func (s *Server) timelineGesture(w http.ResponseWriter, r *http.Request, sid string) {
	sess, err := s.Sessions.Get(sid)
	if err != nil {
		writeSchedError(w, err, r.URL.Path)
		return
	}
	var req model.GestureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	if err := validateGestureRequest(&req); err != nil {
		writeProblem(w, http.StatusUnprocessableEntity, "Invalid gesture", err.Error(), r.URL.Path)
		return
	}
	applied := sess.ApplyGesture(req)
	writeJSON(w, http.StatusOK, map[string]any{"applied": applied, "draft": sess.Draft()})
}

func (s *Server) timelineLock(w http.ResponseWriter, r *http.Request, sid string) {
	sess, err := s.Sessions.Get(sid)
	if err != nil {
		writeSchedError(w, err, r.URL.Path)
		return
	}
	var req model.LockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	applied := sess.SetLock(req)
	writeJSON(w, http.StatusOK, map[string]any{"applied": applied})
}

func (s *Server) timelineAutoAdjust(w http.ResponseWriter, r *http.Request, sid string) {
	sess, err := s.Sessions.Get(sid)
	if err != nil {
		writeSchedError(w, err, r.URL.Path)
		return
	}
	start := time.Now()
	res, err := sess.AutoAdjust()
	metrics.NormalizeDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.EditOps.WithLabelValues("auto-adjust", "rejected").Inc()
		writeSchedError(w, err, r.URL.Path)
		return
	}
	metrics.EditOps.WithLabelValues("auto-adjust", "ok").Inc()
	writeJSON(w, http.StatusOK, map[string]any{
		"segments": len(res.Segments),
		"draft":    sess.Draft(),
	})
}

// timelineSave commits the session draft: final normalization, store commit,
// session gone. On commit failure the committed plan is untouched.
func (s *Server) timelineSave(w http.ResponseWriter, r *http.Request, sid string) {
	sess, err := s.Sessions.Get(sid)
	if err != nil {
		writeSchedError(w, err, r.URL.Path)
		return
	}
	tripID := sess.TripID
	start := time.Now()
	day, err := s.Sessions.TakeForSave(sid)
	metrics.NormalizeDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		writeSchedError(w, err, r.URL.Path)
		return
	}
	metrics.TimelineSessions.Dec()
	if err := s.commitDay(r.Context(), tripID, day, "timeline"); err != nil {
		writeSchedError(w, err, r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"applied": true, "day": day})
}

// PlacesResolveHandler handles POST /v1/places/resolve.
func (s *Server) PlacesResolveHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req model.ResolvePlaceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	if err := validateResolvePlaceRequest(&req); err != nil {
		writeProblem(w, http.StatusUnprocessableEntity, "Invalid resolve request", err.Error(), r.URL.Path)
		return
	}
	details, err := s.Backend.ResolvePlace(r.Context(), s.Places, req)
	if err != nil {
		writeProblem(w, http.StatusBadGateway, "Place resolve failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, details)
}

func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	// Check DB connectivity when using Postgres store
	type pinger interface{ Ping(ctx context.Context) error }
	if pg, ok := s.Store.(pinger); ok {
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		defer cancel()
		if err := pg.Ping(ctx); err != nil {
			writeProblem(w, http.StatusServiceUnavailable, "Not Ready", err.Error(), r.URL.Path)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
