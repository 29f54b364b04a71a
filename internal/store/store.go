package store

import (
	"context"
	"errors"
	"time"

	"tripweaver/internal/model"
)

// Store is the plan persistence interface used by the API server. It owns
// both the live plan and the last-saved snapshot; the dirty flag is derived
// by structural comparison of the two.
type Store interface {
	// Plans
	GetPlan(ctx context.Context, tripID string) (*model.TripPlan, error)
	PutPlan(ctx context.Context, tripID string, plan *model.TripPlan) error
	CommitDay(ctx context.Context, tripID string, day *model.Day) error
	Dirty(ctx context.Context, tripID string) (bool, error)
	// MarkSaved swaps the snapshot baseline for the canonical copy returned
	// by the backend; the live plan is replaced by it as well.
	MarkSaved(ctx context.Context, tripID string, canonical *model.TripPlan) error

	// Trip params, an opaque companion blob carried alongside the plan.
	GetParams(ctx context.Context, tripID string) (*model.TripParams, error)
	PutParams(ctx context.Context, tripID string, params *model.TripParams) error

	// Outbound save-sync queue
	EnqueueSave(ctx context.Context, tripID, url, secret string, payload []byte) (string, error)
	FetchDueSaves(ctx context.Context, limit int) ([]SaveDelivery, error)
	MarkSaveDelivered(ctx context.Context, id string, responseCode, latencyMs int) error
	MarkSaveFailed(ctx context.Context, id string, nextAttemptAt *time.Time, lastError string, responseCode, latencyMs int) error
	ListSaves(ctx context.Context, tripID, status string, limit int) ([]SaveDelivery, error)
}

var ErrNotFound = errors.New("not found")
