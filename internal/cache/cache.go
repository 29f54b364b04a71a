package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"tripweaver/internal/model"
)

// Cache is the working-copy layer in front of the store. A cache miss is
// never an error path for callers; they fall through to the store.
type Cache interface {
	GetPlan(ctx context.Context, tripID string) (*model.TripPlan, bool)
	SetPlan(ctx context.Context, tripID string, plan *model.TripPlan)
	GetParams(ctx context.Context, tripID string) (*model.TripParams, bool)
	SetParams(ctx context.Context, tripID string, params *model.TripParams)
	Invalidate(ctx context.Context, tripID string)
}

const defaultTTL = 24 * time.Hour

func planKey(tripID string) string   { return "tripPlan:" + tripID }
func paramsKey(tripID string) string { return "tripParams:" + tripID }

// Redis caches serialized plans in Redis. Errors are swallowed: the cache is
// advisory and the store stays authoritative.
type Redis struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedis(url string) (*Redis, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return &Redis{rdb: redis.NewClient(opt), ttl: defaultTTL}, nil
}

func (c *Redis) GetPlan(ctx context.Context, tripID string) (*model.TripPlan, bool) {
	b, err := c.rdb.Get(ctx, planKey(tripID)).Bytes()
	if err != nil {
		return nil, false
	}
	var plan model.TripPlan
	if err := json.Unmarshal(b, &plan); err != nil {
		return nil, false
	}
	return &plan, true
}

func (c *Redis) SetPlan(ctx context.Context, tripID string, plan *model.TripPlan) {
	b, err := json.Marshal(plan)
	if err != nil {
		return
	}
	_ = c.rdb.Set(ctx, planKey(tripID), b, c.ttl).Err()
}

func (c *Redis) GetParams(ctx context.Context, tripID string) (*model.TripParams, bool) {
	b, err := c.rdb.Get(ctx, paramsKey(tripID)).Bytes()
	if err != nil {
		return nil, false
	}
	var params model.TripParams
	if err := json.Unmarshal(b, &params); err != nil {
		return nil, false
	}
	return &params, true
}

func (c *Redis) SetParams(ctx context.Context, tripID string, params *model.TripParams) {
	b, err := json.Marshal(params)
	if err != nil {
		return
	}
	_ = c.rdb.Set(ctx, paramsKey(tripID), b, c.ttl).Err()
}

func (c *Redis) Invalidate(ctx context.Context, tripID string) {
	_ = c.rdb.Del(ctx, planKey(tripID), paramsKey(tripID)).Err()
}

func (c *Redis) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return errors.New("redis: " + err.Error())
	}
	return nil
}

// Noop is the cache used when REDIS_URL is unset.
type Noop struct{}

func (Noop) GetPlan(ctx context.Context, tripID string) (*model.TripPlan, bool)     { return nil, false }
func (Noop) SetPlan(ctx context.Context, tripID string, plan *model.TripPlan)       {}
func (Noop) GetParams(ctx context.Context, tripID string) (*model.TripParams, bool) { return nil, false }
func (Noop) SetParams(ctx context.Context, tripID string, params *model.TripParams) {}
func (Noop) Invalidate(ctx context.Context, tripID string)                          {}
