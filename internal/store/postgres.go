package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"tripweaver/internal/model"
)

type Postgres struct {
	db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

// Migrate applies the schema. Safe to call on every boot.
func (p *Postgres) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS trip_plans (
			trip_id    text PRIMARY KEY,
			plan       jsonb NOT NULL,
			saved_plan jsonb,
			params     jsonb,
			updated_at timestamptz NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS save_deliveries (
			id              uuid PRIMARY KEY,
			trip_id         text NOT NULL,
			url             text NOT NULL,
			secret          text,
			payload         jsonb NOT NULL,
			status          text NOT NULL DEFAULT 'pending',
			attempts        int NOT NULL DEFAULT 0,
			next_attempt_at timestamptz NOT NULL DEFAULT now(),
			last_error      text,
			response_code   int,
			latency_ms      int,
			created_at      timestamptz NOT NULL DEFAULT now(),
			delivered_at    timestamptz
		)`,
		`CREATE INDEX IF NOT EXISTS save_deliveries_due ON save_deliveries (status, next_attempt_at)`,
	}
	for _, s := range stmts {
		if _, err := p.db.ExecContext(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

func (p *Postgres) GetPlan(ctx context.Context, tripID string) (*model.TripPlan, error) {
	var js []byte
	err := p.db.QueryRowContext(ctx, `SELECT plan FROM trip_plans WHERE trip_id=$1`, tripID).Scan(&js)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var plan model.TripPlan
	if err := json.Unmarshal(js, &plan); err != nil {
		return nil, err
	}
	return &plan, nil
}

func (p *Postgres) PutPlan(ctx context.Context, tripID string, plan *model.TripPlan) error {
	cp := plan.Clone()
	cp.HydrateIDs()
	js, err := json.Marshal(cp)
	if err != nil {
		return err
	}
	// saved_plan is seeded on first insert only; updates leave the baseline alone.
	_, err = p.db.ExecContext(ctx, `INSERT INTO trip_plans (trip_id, plan, saved_plan) VALUES ($1,$2,$2)
		ON CONFLICT (trip_id) DO UPDATE SET plan=$2, updated_at=now()`, tripID, js)
	return err
}

func (p *Postgres) CommitDay(ctx context.Context, tripID string, day *model.Day) error {
	plan, err := p.GetPlan(ctx, tripID)
	if err != nil {
		return err
	}
	found := false
	for i := range plan.Days {
		if plan.Days[i].DayNumber == day.DayNumber {
			plan.Days[i] = *day.Clone()
			found = true
			break
		}
	}
	if !found {
		return ErrNotFound
	}
	js, err := json.Marshal(plan)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx, `UPDATE trip_plans SET plan=$2, updated_at=now() WHERE trip_id=$1`, tripID, js)
	return err
}

func (p *Postgres) Dirty(ctx context.Context, tripID string) (bool, error) {
	var dirty sql.NullBool
	err := p.db.QueryRowContext(ctx, `SELECT plan IS DISTINCT FROM saved_plan FROM trip_plans WHERE trip_id=$1`, tripID).Scan(&dirty)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, ErrNotFound
		}
		return false, err
	}
	return dirty.Bool, nil
}

func (p *Postgres) MarkSaved(ctx context.Context, tripID string, canonical *model.TripPlan) error {
	cp := canonical.Clone()
	cp.HydrateIDs()
	js, err := json.Marshal(cp)
	if err != nil {
		return err
	}
	res, err := p.db.ExecContext(ctx, `UPDATE trip_plans SET plan=$2, saved_plan=$2, updated_at=now() WHERE trip_id=$1`, tripID, js)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) GetParams(ctx context.Context, tripID string) (*model.TripParams, error) {
	var js []byte
	err := p.db.QueryRowContext(ctx, `SELECT params FROM trip_plans WHERE trip_id=$1`, tripID).Scan(&js)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if len(js) == 0 {
		return nil, ErrNotFound
	}
	var params model.TripParams
	if err := json.Unmarshal(js, &params); err != nil {
		return nil, err
	}
	return &params, nil
}

func (p *Postgres) PutParams(ctx context.Context, tripID string, params *model.TripParams) error {
	js, err := json.Marshal(params)
	if err != nil {
		return err
	}
	res, err := p.db.ExecContext(ctx, `UPDATE trip_plans SET params=$2, updated_at=now() WHERE trip_id=$1`, tripID, js)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) EnqueueSave(ctx context.Context, tripID, url, secret string, payload []byte) (string, error) {
	id := uuid.New().String()
	_, err := p.db.ExecContext(ctx, `INSERT INTO save_deliveries (id, trip_id, url, secret, payload) VALUES ($1,$2,$3,$4,$5)`,
		id, tripID, url, nullIfEmpty(secret), payload)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (p *Postgres) FetchDueSaves(ctx context.Context, limit int) ([]SaveDelivery, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id::text, trip_id, url, COALESCE(secret,''), payload, status, attempts
		FROM save_deliveries WHERE status='pending' AND next_attempt_at <= now() ORDER BY next_attempt_at ASC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []SaveDelivery{}
	for rows.Next() {
		var d SaveDelivery
		if err := rows.Scan(&d.ID, &d.TripID, &d.URL, &d.Secret, &d.Payload, &d.Status, &d.Attempts); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (p *Postgres) MarkSaveDelivered(ctx context.Context, id string, responseCode, latencyMs int) error {
	_, err := p.db.ExecContext(ctx, `UPDATE save_deliveries SET status='delivered', attempts=attempts+1, last_error=NULL,
		response_code=$2, latency_ms=$3, delivered_at=now() WHERE id=$1`, id, responseCode, latencyMs)
	return err
}

func (p *Postgres) MarkSaveFailed(ctx context.Context, id string, nextAttemptAt *time.Time, lastError string, responseCode, latencyMs int) error {
	if nextAttemptAt != nil {
		_, err := p.db.ExecContext(ctx, `UPDATE save_deliveries SET status='pending', attempts=attempts+1, last_error=$2,
			next_attempt_at=$3, response_code=$4, latency_ms=$5 WHERE id=$1`, id, nullIfEmpty(lastError), *nextAttemptAt, responseCode, latencyMs)
		return err
	}
	_, err := p.db.ExecContext(ctx, `UPDATE save_deliveries SET status='failed', attempts=attempts+1, last_error=$2,
		response_code=$3, latency_ms=$4 WHERE id=$1`, id, nullIfEmpty(lastError), responseCode, latencyMs)
	return err
}

func (p *Postgres) ListSaves(ctx context.Context, tripID, status string, limit int) ([]SaveDelivery, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	q := `SELECT id::text, trip_id, url, status, attempts, next_attempt_at, COALESCE(last_error,''), COALESCE(response_code,0), COALESCE(latency_ms,0), created_at FROM save_deliveries WHERE 1=1`
	args := []any{}
	idx := 1
	if tripID != "" {
		q += ` AND trip_id=$1`
		args = append(args, tripID)
		idx = 2
	}
	if status != "" {
		q += ` AND status=$` + fmt.Sprint(idx)
		args = append(args, status)
		idx++
	}
	q += ` ORDER BY created_at DESC LIMIT $` + fmt.Sprint(idx)
	args = append(args, limit)
	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []SaveDelivery{}
	for rows.Next() {
		var d SaveDelivery
		if err := rows.Scan(&d.ID, &d.TripID, &d.URL, &d.Status, &d.Attempts, &d.NextAttemptAt, &d.LastError, &d.ResponseCode, &d.LatencyMs, &d.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
