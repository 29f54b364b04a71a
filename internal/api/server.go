package api

import (
	"context"
	"os"
	"strings"

	"tripweaver/internal/auth"
	"tripweaver/internal/backend"
	"tripweaver/internal/cache"
	"tripweaver/internal/config"
	"tripweaver/internal/editor"
	"tripweaver/internal/metrics"
	"tripweaver/internal/model"
	"tripweaver/internal/store"
)

type Server struct {
	Cfg      config.Config
	Store    store.Store
	Cache    cache.Cache
	Auth     *auth.Verifier
	Broker   EventBroker
	Sessions *editor.Sessions
	Backend  *backend.Client
	Places   *backend.PlaceCache
}

// NewServer creates a Server. If DATABASE_URL is unset, uses in-memory store.
func NewServer(cfg config.Config) (*Server, error) {
	var s store.Store
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		s = store.NewMemory()
	} else {
		sp, err := store.NewPostgres(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		// Run migrations (dev helper)
		if os.Getenv("DB_MIGRATE") != "false" {
			if err := sp.Migrate(context.Background()); err != nil {
				return nil, err
			}
		}
		s = sp
	}
	// Broker selection
	var broker EventBroker
	if cfg.RedisURL != "" {
		if rb, err := NewRedisBroker(cfg.RedisURL); err == nil {
			broker = rb
		} else {
			broker = NewBroker()
		}
	} else {
		broker = NewBroker()
	}
	// Working-copy cache
	var c cache.Cache = cache.Noop{}
	if cfg.RedisURL != "" {
		if rc, err := cache.NewRedis(cfg.RedisURL); err == nil {
			c = rc
		}
	}
	return &Server{
		Cfg:      cfg,
		Store:    s,
		Cache:    c,
		Auth:     auth.NewVerifierFromEnv(),
		Broker:   broker,
		Sessions: editor.NewSessions(cfg.Timeline.Window, cfg.Timeline.PxPerMinute),
		Backend:  backend.NewClient(cfg.Backend.BaseURL, cfg.Backend.Secret),
		Places:   backend.NewPlaceCache(),
	}, nil
}

// NewSaveWorker creates the background worker that drains the save queue and
// announces saved plans on the event broker.
func (s *Server) NewSaveWorker() *backend.Worker {
	w := backend.NewWorker(s.Store)
	w.OnSaved = func(tripID string, canonical *model.TripPlan) {
		s.Cache.SetPlan(context.Background(), tripID, canonical)
		s.Broker.Publish(tripID, SSEEvent{Type: "plan.saved", Data: map[string]any{"tripId": tripID}})
	}
	return w
}

// loadPlan reads through the cache to the store.
func (s *Server) loadPlan(ctx context.Context, tripID string) (*model.TripPlan, error) {
	if p, ok := s.Cache.GetPlan(ctx, tripID); ok {
		return p, nil
	}
	p, err := s.Store.GetPlan(ctx, tripID)
	if err != nil {
		return nil, err
	}
	s.Cache.SetPlan(ctx, tripID, p)
	return p, nil
}

// commitDay persists a mutated day, refreshes the cache, and announces the
// change on the trip's event stream.
func (s *Server) commitDay(ctx context.Context, tripID string, day *model.Day, kind string) error {
	if err := s.Store.CommitDay(ctx, tripID, day); err != nil {
		metrics.EditOps.WithLabelValues(kind, "error").Inc()
		return err
	}
	s.Cache.Invalidate(ctx, tripID)
	metrics.EditOps.WithLabelValues(kind, "ok").Inc()
	s.Broker.Publish(tripID, SSEEvent{Type: "plan.updated", Data: map[string]any{
		"tripId":    tripID,
		"dayNumber": day.DayNumber,
		"kind":      kind,
	}})
	return nil
}
