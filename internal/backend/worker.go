package backend

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"tripweaver/internal/metrics"
	"tripweaver/internal/model"
	"tripweaver/internal/store"
)

// Worker drains the save queue: each due delivery is PUT to the backend, and
// on success the canonical response becomes the trip's saved baseline.
type Worker struct {
	Store       store.Store
	HTTP        *http.Client
	Stop        chan struct{}
	MaxAttempts int
	// OnSaved fires after a successful save lands in the store.
	OnSaved func(tripID string, canonical *model.TripPlan)
}

func NewWorker(s store.Store) *Worker {
	max := 10
	if v := os.Getenv("SAVE_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			max = n
		}
	}
	return &Worker{Store: s, HTTP: &http.Client{Timeout: 10 * time.Second}, Stop: make(chan struct{}), MaxAttempts: max}
}

func (w *Worker) Start() {
	go func() {
		ticker := time.NewTicker(1 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-w.Stop:
				return
			case <-ticker.C:
				w.processOnce()
			}
		}
	}()
}

func (w *Worker) processOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	items, err := w.Store.FetchDueSaves(ctx, 50)
	if err != nil || len(items) == 0 {
		return
	}
	for _, it := range items {
		w.deliver(ctx, it)
	}
}

func (w *Worker) deliver(ctx context.Context, it store.SaveDelivery) {
	req, _ := http.NewRequestWithContext(ctx, http.MethodPut, it.URL, bytes.NewReader(it.Payload))
	req.Header.Set("Content-Type", "application/json")
	if it.Secret != "" {
		req.Header.Set("X-Signature", SignHMAC(it.Secret, it.Payload))
	}
	start := time.Now()
	resp, err := w.HTTP.Do(req)
	latency := int(time.Since(start).Milliseconds())
	code := 0
	var body []byte
	if err == nil && resp != nil {
		code = resp.StatusCode
		if resp.Body != nil {
			body, _ = io.ReadAll(io.LimitReader(resp.Body, 4<<20))
			_ = resp.Body.Close()
		}
	}
	if code >= 200 && code < 300 {
		canonical, derr := w.canonicalFrom(it.Payload, body)
		if derr == nil {
			_ = w.Store.MarkSaved(ctx, it.TripID, canonical)
			_ = w.Store.MarkSaveDelivered(ctx, it.ID, code, latency)
			metrics.SaveDeliveries.WithLabelValues(store.SaveStatusDelivered).Inc()
			metrics.SaveLatency.WithLabelValues(store.SaveStatusDelivered).Observe(float64(latency))
			if w.OnSaved != nil {
				w.OnSaved(it.TripID, canonical)
			}
			return
		}
		err = derr
	}
	lastErr := ""
	if err != nil {
		lastErr = err.Error()
	}
	if it.Attempts+1 >= w.MaxAttempts {
		_ = w.Store.MarkSaveFailed(ctx, it.ID, nil, lastErr, code, latency)
		metrics.SaveDeliveries.WithLabelValues(store.SaveStatusFailed).Inc()
		metrics.SaveLatency.WithLabelValues(store.SaveStatusFailed).Observe(float64(latency))
		return
	}
	next := time.Now().Add(nextBackoff(it.Attempts))
	_ = w.Store.MarkSaveFailed(ctx, it.ID, &next, lastErr, code, latency)
	metrics.SaveDeliveries.WithLabelValues(store.SaveStatusPending).Inc()
}

// canonicalFrom picks the plan to adopt as saved baseline: the backend's
// response when it sent one back, otherwise the pushed payload itself.
func (w *Worker) canonicalFrom(payload, respBody []byte) (*model.TripPlan, error) {
	if len(bytes.TrimSpace(respBody)) > 0 {
		if plan, err := DecodePlan(respBody); err == nil {
			return plan, nil
		}
	}
	return DecodePlan(payload)
}

func nextBackoff(attempts int) time.Duration {
	if attempts < 0 {
		attempts = 0
	}
	if attempts > 10 {
		attempts = 10
	}
	base := time.Second * time.Duration(1<<attempts)
	if base > time.Hour {
		base = time.Hour
	}
	return base
}
