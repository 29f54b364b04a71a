package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"tripweaver/internal/config"
	"tripweaver/internal/model"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.Default()
	cfg.Backend.BaseURL = "http://backend.invalid"
	cfg.Backend.Secret = "shh"
	s, err := NewServer(cfg)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return s
}

func seedTrip(t *testing.T, s *Server, tripID string) {
	t.Helper()
	plan := &model.TripPlan{
		Name: "Porto In Three Days",
		Days: []model.Day{
			{DayNumber: 1, Activities: []model.Activity{
				{ID: "a1", TimeRange: "08:00 - 09:00", Place: "Livraria Lello",
					PlaceDetails: &model.PlaceDetails{Coordinates: &model.GeoPoint{Lat: 41.147, Lng: -8.615}}},
				{ID: "a2", TimeRange: "09:15 - 10:00", Place: "Clerigos Tower",
					PlaceDetails: &model.PlaceDetails{Coordinates: &model.GeoPoint{Lat: 41.146, Lng: -8.614}}},
				{ID: "a3", TimeRange: "12:00 - 13:30", Place: "Mercado do Bolhao"},
			}},
		},
	}
	body, _ := json.Marshal(map[string]any{"tripPlan": plan})
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/v1/trips/"+tripID, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	s.TripsHandler(rr, req)
	if rr.Code != 200 {
		t.Fatalf("seed trip: %d %s", rr.Code, rr.Body.String())
	}
}

func TestHealthReady(t *testing.T) {
	s := newTestServer(t)
	rr := httptest.NewRecorder()
	s.HealthHandler(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != 200 {
		t.Fatalf("health: got %d", rr.Code)
	}
	rr = httptest.NewRecorder()
	s.ReadyHandler(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != 200 {
		t.Fatalf("ready: got %d", rr.Code)
	}
}

func TestTripDocumentPutGet(t *testing.T) {
	s := newTestServer(t)
	seedTrip(t, s, "t1")

	rr := httptest.NewRecorder()
	s.TripsHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/trips/t1", nil))
	if rr.Code != 200 {
		t.Fatalf("get trip: %d", rr.Code)
	}
	var plan model.TripPlan
	if err := json.Unmarshal(rr.Body.Bytes(), &plan); err != nil {
		t.Fatalf("decode plan: %v", err)
	}
	if plan.Name != "Porto In Three Days" || len(plan.Days) != 1 {
		t.Fatalf("plan round trip: %+v", plan)
	}

	rr = httptest.NewRecorder()
	s.TripsHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/trips/ghost", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("missing trip: %d", rr.Code)
	}

	// A document without tripPlan is rejected.
	rr = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/v1/trips/t2", bytes.NewReader([]byte(`{"tripParams":{}}`)))
	s.TripsHandler(rr, req)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("empty document: %d", rr.Code)
	}
}

func TestTripDirtyLifecycle(t *testing.T) {
	s := newTestServer(t)
	seedTrip(t, s, "t1")

	rr := httptest.NewRecorder()
	s.TripsHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/trips/t1/dirty", nil))
	if rr.Code != 200 {
		t.Fatalf("dirty: %d", rr.Code)
	}
	var d struct {
		Dirty bool `json:"dirty"`
	}
	_ = json.Unmarshal(rr.Body.Bytes(), &d)
	if d.Dirty {
		t.Fatal("fresh trip reported dirty")
	}

	// Any committed edit makes the trip dirty.
	body := []byte(`{"from":2,"to":0,"list":"cards"}`)
	rr = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/trips/t1/days/1/reorder", bytes.NewReader(body))
	s.TripsHandler(rr, req)
	if rr.Code != 200 {
		t.Fatalf("reorder: %d %s", rr.Code, rr.Body.String())
	}
	rr = httptest.NewRecorder()
	s.TripsHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/trips/t1/dirty", nil))
	_ = json.Unmarshal(rr.Body.Bytes(), &d)
	if !d.Dirty {
		t.Fatal("edited trip not dirty")
	}
}

func TestReorderEndpoint(t *testing.T) {
	s := newTestServer(t)
	seedTrip(t, s, "t1")

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/trips/t1/days/1/reorder", bytes.NewReader([]byte(`{"from":2,"to":0}`)))
	s.TripsHandler(rr, req)
	if rr.Code != 200 {
		t.Fatalf("reorder: %d %s", rr.Code, rr.Body.String())
	}
	var res struct {
		Applied bool      `json:"applied"`
		Day     model.Day `json:"day"`
	}
	_ = json.Unmarshal(rr.Body.Bytes(), &res)
	if !res.Applied || res.Day.Activities[0].ID != "a3" {
		t.Fatalf("reorder result: %+v", res)
	}
	if res.Day.Activities[0].TimeRange != "08:00 - 09:30" {
		t.Fatalf("relaid first range: %q", res.Day.Activities[0].TimeRange)
	}

	// Stale indices apply nothing but are not an error.
	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/v1/trips/t1/days/1/reorder", bytes.NewReader([]byte(`{"from":0,"to":0}`)))
	s.TripsHandler(rr, req)
	if rr.Code != 200 {
		t.Fatalf("stale reorder: %d", rr.Code)
	}
	_ = json.Unmarshal(rr.Body.Bytes(), &res)
	if res.Applied {
		t.Fatal("stale reorder applied")
	}

	// Out-of-range indices fail validation.
	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/v1/trips/t1/days/1/reorder", bytes.NewReader([]byte(`{"from":0,"to":9}`)))
	s.TripsHandler(rr, req)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("invalid reorder: %d", rr.Code)
	}
}

func TestInsertAndDeleteActivity(t *testing.T) {
	s := newTestServer(t)
	seedTrip(t, s, "t1")

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/trips/t1/days/1/activities", bytes.NewReader([]byte(`{"aboveIndex":1,"place":"Ribeira"}`)))
	s.TripsHandler(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("insert: %d %s", rr.Code, rr.Body.String())
	}
	var ins struct {
		Activity model.Activity `json:"activity"`
		Day      model.Day      `json:"day"`
	}
	_ = json.Unmarshal(rr.Body.Bytes(), &ins)
	if ins.Activity.ID == "" || !ins.Activity.IsNew || len(ins.Day.Activities) != 4 {
		t.Fatalf("insert result: %+v", ins)
	}

	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodDelete, "/v1/trips/t1/days/1/activities/"+ins.Activity.ID, nil)
	s.TripsHandler(rr, req)
	if rr.Code != 200 {
		t.Fatalf("delete: %d %s", rr.Code, rr.Body.String())
	}
	var del struct {
		Applied bool      `json:"applied"`
		Day     model.Day `json:"day"`
	}
	_ = json.Unmarshal(rr.Body.Bytes(), &del)
	if !del.Applied || len(del.Day.Activities) != 3 {
		t.Fatalf("delete result: %+v", del)
	}

	// Deleting an unknown id reports applied=false with a 200.
	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodDelete, "/v1/trips/t1/days/1/activities/ghost", nil)
	s.TripsHandler(rr, req)
	if rr.Code != 200 {
		t.Fatalf("stale delete: %d", rr.Code)
	}
	_ = json.Unmarshal(rr.Body.Bytes(), &del)
	if del.Applied {
		t.Fatal("stale delete applied")
	}
}

func TestTimeEditEndpoint(t *testing.T) {
	s := newTestServer(t)
	seedTrip(t, s, "t1")

	body := []byte(`{"activityId":"a1","text":"08:00 - 10:00","policy":"push_compact"}`)
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/trips/t1/days/1/time-edit", bytes.NewReader(body))
	s.TripsHandler(rr, req)
	if rr.Code != 200 {
		t.Fatalf("time edit: %d %s", rr.Code, rr.Body.String())
	}
	var res struct {
		Applied bool      `json:"applied"`
		Day     model.Day `json:"day"`
	}
	_ = json.Unmarshal(rr.Body.Bytes(), &res)
	if !res.Applied || res.Day.Activities[1].TimeRange != "10:15 - 11:00" {
		t.Fatalf("time edit result: %+v", res)
	}

	// keep_following that collides with the next activity maps to 409.
	body = []byte(`{"activityId":"a1","text":"08:00 - 10:30","policy":"keep_following"}`)
	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/v1/trips/t1/days/1/time-edit", bytes.NewReader(body))
	s.TripsHandler(rr, req)
	if rr.Code != http.StatusConflict {
		t.Fatalf("conflict edit: %d %s", rr.Code, rr.Body.String())
	}

	// Invalid range text fails validation with 422.
	body = []byte(`{"activityId":"a1","text":"whenever"}`)
	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/v1/trips/t1/days/1/time-edit", bytes.NewReader(body))
	s.TripsHandler(rr, req)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("invalid edit: %d", rr.Code)
	}

	// Stale activity ids are a quiet no-op.
	body = []byte(`{"activityId":"ghost","text":"08:00 - 09:00"}`)
	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/v1/trips/t1/days/1/time-edit", bytes.NewReader(body))
	s.TripsHandler(rr, req)
	if rr.Code != 200 {
		t.Fatalf("stale edit: %d", rr.Code)
	}
	_ = json.Unmarshal(rr.Body.Bytes(), &res)
	if res.Applied {
		t.Fatal("stale edit applied")
	}
}

func TestTimelineSessionFlow(t *testing.T) {
	s := newTestServer(t)
	seedTrip(t, s, "t1")

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/trips/t1/days/1/timeline", nil)
	s.TripsHandler(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("open timeline: %d %s", rr.Code, rr.Body.String())
	}
	var open struct {
		SessionID string    `json:"sessionId"`
		Draft     model.Day `json:"draft"`
	}
	_ = json.Unmarshal(rr.Body.Bytes(), &open)
	if open.SessionID == "" || len(open.Draft.Activities) != 3 {
		t.Fatalf("open result: %+v", open)
	}

	// The day is exclusive while the session is open.
	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/v1/trips/t1/days/1/timeline", nil)
	s.TripsHandler(rr, req)
	if rr.Code != http.StatusConflict {
		t.Fatalf("second open: %d", rr.Code)
	}

	// Drag the first activity down an hour.
	gest := []byte(`{"activityId":"a1","mode":"move","deltaPx":60}`)
	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/v1/timeline/"+open.SessionID+"/gesture", bytes.NewReader(gest))
	s.TimelineHandler(rr, req)
	if rr.Code != 200 {
		t.Fatalf("gesture: %d %s", rr.Code, rr.Body.String())
	}
	var g struct {
		Applied bool      `json:"applied"`
		Draft   model.Day `json:"draft"`
	}
	_ = json.Unmarshal(rr.Body.Bytes(), &g)
	if !g.Applied || g.Draft.Activities[0].TimeRange != "09:00 - 10:00" {
		t.Fatalf("gesture result: %+v", g)
	}

	// Gestures only touch the draft until save.
	rr = httptest.NewRecorder()
	s.TripsHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/trips/t1", nil))
	var plan model.TripPlan
	_ = json.Unmarshal(rr.Body.Bytes(), &plan)
	if plan.Days[0].Activities[0].TimeRange != "08:00 - 09:00" {
		t.Fatalf("draft leaked before save: %q", plan.Days[0].Activities[0].TimeRange)
	}

	// Lock an activity and run auto-adjust.
	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/v1/timeline/"+open.SessionID+"/lock", bytes.NewReader([]byte(`{"activityId":"a3","locked":true}`)))
	s.TimelineHandler(rr, req)
	if rr.Code != 200 {
		t.Fatalf("lock: %d", rr.Code)
	}
	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/v1/timeline/"+open.SessionID+"/auto-adjust", nil)
	s.TimelineHandler(rr, req)
	if rr.Code != 200 {
		t.Fatalf("auto-adjust: %d %s", rr.Code, rr.Body.String())
	}

	// Save commits the normalized draft and frees the day.
	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/v1/timeline/"+open.SessionID+"/save", nil)
	s.TimelineHandler(rr, req)
	if rr.Code != 200 {
		t.Fatalf("save: %d %s", rr.Code, rr.Body.String())
	}
	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/v1/trips/t1/days/1/timeline", nil)
	s.TripsHandler(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("reopen after save: %d", rr.Code)
	}

	// Unknown sessions are 404s.
	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/v1/timeline/nope/gesture", bytes.NewReader(gest))
	s.TimelineHandler(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("unknown session: %d", rr.Code)
	}
}

func TestTripMapProjection(t *testing.T) {
	s := newTestServer(t)
	seedTrip(t, s, "t1")

	rr := httptest.NewRecorder()
	s.TripsHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/trips/t1/map?day=1", nil))
	if rr.Code != 200 {
		t.Fatalf("map: %d %s", rr.Code, rr.Body.String())
	}
	var res struct {
		Points []model.MapPoint `json:"points"`
	}
	_ = json.Unmarshal(rr.Body.Bytes(), &res)
	// a3 has no coordinates and is skipped.
	if len(res.Points) != 2 {
		t.Fatalf("points: %+v", res.Points)
	}
	if res.Points[0].Seq != 0 || res.Points[0].Time != "08:00" || res.Points[0].Name == "" {
		t.Fatalf("first point: %+v", res.Points[0])
	}
}

func TestSaveEnqueuesDelivery(t *testing.T) {
	s := newTestServer(t)
	seedTrip(t, s, "t1")

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/trips/t1/save", nil)
	s.TripsHandler(rr, req)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("save: %d %s", rr.Code, rr.Body.String())
	}
	var res struct {
		DeliveryID string `json:"deliveryId"`
		Status     string `json:"status"`
	}
	_ = json.Unmarshal(rr.Body.Bytes(), &res)
	if res.DeliveryID == "" || res.Status != "pending" {
		t.Fatalf("save result: %+v", res)
	}

	rr = httptest.NewRecorder()
	s.TripsHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/trips/t1/saves", nil))
	if rr.Code != 200 {
		t.Fatalf("saves list: %d", rr.Code)
	}
	var list struct {
		Items []map[string]any `json:"items"`
	}
	_ = json.Unmarshal(rr.Body.Bytes(), &list)
	if len(list.Items) != 1 {
		t.Fatalf("saves items: %+v", list.Items)
	}
}

func TestSaveRequiresBackend(t *testing.T) {
	cfg := config.Default()
	s, err := NewServer(cfg)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	seedTrip(t, s, "t1")
	rr := httptest.NewRecorder()
	s.TripsHandler(rr, httptest.NewRequest(http.MethodPost, "/v1/trips/t1/save", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("save without backend: %d", rr.Code)
	}
}

// sseRecorder is a minimal ResponseWriter that implements http.Flusher and
// captures writes for SSE tests.
type sseRecorder struct {
	mu   sync.Mutex
	hdr  http.Header
	buf  bytes.Buffer
	code int
}

func (r *sseRecorder) Header() http.Header {
	if r.hdr == nil {
		r.hdr = http.Header{}
	}
	return r.hdr
}
func (r *sseRecorder) WriteHeader(c int) { r.code = c }
func (r *sseRecorder) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buf.Write(p)
}
func (r *sseRecorder) Flush() {}
func (r *sseRecorder) bytes() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]byte(nil), r.buf.Bytes()...)
}

func TestTripEventsSSE(t *testing.T) {
	s := newTestServer(t)
	seedTrip(t, s, "t1")

	sseReq := httptest.NewRequest(http.MethodGet, "/v1/trips/t1/events/stream", nil)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	sseReq = sseReq.WithContext(ctx)

	rec := &sseRecorder{}
	done := make(chan struct{})
	go func() {
		s.TripsHandler(rec, sseReq)
		close(done)
	}()

	// Give the handler time to subscribe and send the heartbeat.
	time.Sleep(50 * time.Millisecond)
	s.Broker.Publish("t1", SSEEvent{Type: "plan.updated", Data: map[string]any{"tripId": "t1", "dayNumber": 1}})

	deadline := time.Now().Add(500 * time.Millisecond)
	for time.Now().Before(deadline) {
		if bytes.Contains(rec.bytes(), []byte("event: plan.updated")) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if !bytes.Contains(rec.bytes(), []byte("event: plan.updated")) {
		t.Fatalf("SSE did not contain expected event. Body: %s", rec.bytes())
	}
	cancel()
	select {
	case <-done:
	case <-time.After(200 * time.Millisecond):
		t.Fatal("handler did not exit after cancel")
	}
}
