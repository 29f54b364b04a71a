package store

import (
	"bytes"
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"tripweaver/internal/model"
)

// Memory is the in-process Store used for dev and tests. Plans and their
// saved snapshots are deep-copied on every boundary crossing so callers can
// never mutate stored state in place.
type Memory struct {
	mu        sync.RWMutex
	plans     map[string]*model.TripPlan
	snapshots map[string][]byte
	params    map[string]*model.TripParams
	saves     map[string]*SaveDelivery
}

func NewMemory() *Memory {
	return &Memory{
		plans:     map[string]*model.TripPlan{},
		snapshots: map[string][]byte{},
		params:    map[string]*model.TripParams{},
		saves:     map[string]*SaveDelivery{},
	}
}

func (m *Memory) GetPlan(ctx context.Context, tripID string) (*model.TripPlan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.plans[tripID]
	if !ok {
		return nil, ErrNotFound
	}
	return p.Clone(), nil
}

func (m *Memory) PutPlan(ctx context.Context, tripID string, plan *model.TripPlan) error {
	cp := plan.Clone()
	cp.HydrateIDs()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.plans[tripID] = cp
	if _, ok := m.snapshots[tripID]; !ok {
		// First sight of the trip: the incoming plan is the saved baseline.
		m.snapshots[tripID] = mustMarshalPlan(cp)
	}
	return nil
}

func (m *Memory) CommitDay(ctx context.Context, tripID string, day *model.Day) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.plans[tripID]
	if !ok {
		return ErrNotFound
	}
	for i := range p.Days {
		if p.Days[i].DayNumber == day.DayNumber {
			p.Days[i] = *day.Clone()
			return nil
		}
	}
	return ErrNotFound
}

func (m *Memory) Dirty(ctx context.Context, tripID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.plans[tripID]
	if !ok {
		return false, ErrNotFound
	}
	snap, ok := m.snapshots[tripID]
	if !ok {
		return true, nil
	}
	return !bytes.Equal(mustMarshalPlan(p), snap), nil
}

func (m *Memory) MarkSaved(ctx context.Context, tripID string, canonical *model.TripPlan) error {
	cp := canonical.Clone()
	cp.HydrateIDs()
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.plans[tripID]; !ok {
		return ErrNotFound
	}
	m.plans[tripID] = cp
	m.snapshots[tripID] = mustMarshalPlan(cp)
	return nil
}

func (m *Memory) GetParams(ctx context.Context, tripID string) (*model.TripParams, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.params[tripID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *Memory) PutParams(ctx context.Context, tripID string, params *model.TripParams) error {
	cp := *params
	m.mu.Lock()
	defer m.mu.Unlock()
	m.params[tripID] = &cp
	return nil
}

func (m *Memory) EnqueueSave(ctx context.Context, tripID, url, secret string, payload []byte) (string, error) {
	d := &SaveDelivery{
		ID:            model.NewID(),
		TripID:        tripID,
		URL:           url,
		Secret:        secret,
		Payload:       append([]byte(nil), payload...),
		Status:        SaveStatusPending,
		NextAttemptAt: time.Now(),
		CreatedAt:     time.Now(),
	}
	m.mu.Lock()
	m.saves[d.ID] = d
	m.mu.Unlock()
	return d.ID, nil
}

func (m *Memory) FetchDueSaves(ctx context.Context, limit int) ([]SaveDelivery, error) {
	now := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	var due []SaveDelivery
	for _, d := range m.saves {
		if d.Status == SaveStatusPending && !d.NextAttemptAt.After(now) {
			due = append(due, *d)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].CreatedAt.Before(due[j].CreatedAt) })
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (m *Memory) MarkSaveDelivered(ctx context.Context, id string, responseCode, latencyMs int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.saves[id]
	if !ok {
		return ErrNotFound
	}
	now := time.Now()
	d.Status = SaveStatusDelivered
	d.Attempts++
	d.ResponseCode = responseCode
	d.LatencyMs = latencyMs
	d.LastError = ""
	d.DeliveredAt = &now
	return nil
}

func (m *Memory) MarkSaveFailed(ctx context.Context, id string, nextAttemptAt *time.Time, lastError string, responseCode, latencyMs int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.saves[id]
	if !ok {
		return ErrNotFound
	}
	d.Attempts++
	d.LastError = lastError
	d.ResponseCode = responseCode
	d.LatencyMs = latencyMs
	if nextAttemptAt != nil {
		d.Status = SaveStatusPending
		d.NextAttemptAt = *nextAttemptAt
	} else {
		d.Status = SaveStatusFailed
	}
	return nil
}

func (m *Memory) ListSaves(ctx context.Context, tripID, status string, limit int) ([]SaveDelivery, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []SaveDelivery
	for _, d := range m.saves {
		if tripID != "" && d.TripID != tripID {
			continue
		}
		if status != "" && d.Status != status {
			continue
		}
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func mustMarshalPlan(p *model.TripPlan) []byte {
	b, err := json.Marshal(p)
	if err != nil {
		panic(err)
	}
	return b
}
