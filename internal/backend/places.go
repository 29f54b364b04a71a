package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
	"unicode"

	"tripweaver/internal/model"
)

// PlaceCache memoizes resolved places per query/destination pair.
type PlaceCache struct {
	mu  sync.Mutex
	m   map[string]placeEntry
	ttl time.Duration
}

type placeEntry struct {
	details model.PlaceDetails
	at      time.Time
}

func NewPlaceCache() *PlaceCache {
	return &PlaceCache{m: map[string]placeEntry{}, ttl: 15 * time.Minute}
}

func (c *PlaceCache) key(query, destination string) string { return query + "|" + destination }

func (c *PlaceCache) Get(query, destination string) (model.PlaceDetails, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.m[c.key(query, destination)]
	if !ok || time.Since(e.at) > c.ttl {
		return model.PlaceDetails{}, false
	}
	return e.details, true
}

func (c *PlaceCache) Put(query, destination string, d model.PlaceDetails) {
	if query == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[c.key(query, destination)] = placeEntry{details: d, at: time.Now()}
}

// ResolvePlace looks a place up through the backend, caching hits. When the
// backend is unreachable or has no base URL configured, a minimal details
// record built from the request is returned so editing can proceed offline.
func (c *Client) ResolvePlace(ctx context.Context, cache *PlaceCache, req model.ResolvePlaceRequest) (model.PlaceDetails, error) {
	if cache != nil {
		if d, ok := cache.Get(req.Query, req.Destination); ok {
			return d, nil
		}
	}
	if c == nil || c.BaseURL == "" {
		return fallbackPlace(req), nil
	}
	if req.LodgingType == "" {
		req.LodgingType = lodgingHint(req.Query)
	}
	body, err := json.Marshal(req)
	if err != nil {
		return model.PlaceDetails{}, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/places/resolve", bytes.NewReader(body))
	if err != nil {
		return model.PlaceDetails{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.Secret != "" {
		httpReq.Header.Set("X-Signature", SignHMAC(c.Secret, body))
	}
	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		return fallbackPlace(req), nil
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return model.PlaceDetails{}, fmt.Errorf("place resolve: status %d", resp.StatusCode)
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return model.PlaceDetails{}, err
	}
	var d model.PlaceDetails
	if err := json.Unmarshal(raw, &d); err != nil {
		return model.PlaceDetails{}, err
	}
	if cache != nil {
		cache.Put(req.Query, req.Destination, d)
	}
	return d, nil
}

var lodgingWords = []string{
	"hotel", "hostel", "motel", "resort", "aparthotel", "guesthouse",
	"guest house", "b&b", "bed and breakfast", "pousada", "ryokan", "inn", "lodge",
}

// lodgingHint classifies hotel-like queries so the resolver can bias toward
// accommodation results. Empty means no hint. Single words match whole tokens
// only ("inn" must not fire on "dinner").
func lodgingHint(query string) string {
	q := strings.ToLower(query)
	tokens := strings.FieldsFunc(q, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r) && r != '&'
	})
	for _, w := range lodgingWords {
		if strings.ContainsAny(w, " &") {
			if strings.Contains(q, w) {
				return w
			}
			continue
		}
		for _, tok := range tokens {
			if tok == w {
				return w
			}
		}
	}
	return ""
}

func fallbackPlace(req model.ResolvePlaceRequest) model.PlaceDetails {
	d := model.PlaceDetails{Name: req.Query}
	if req.DayCenter != nil {
		c := *req.DayCenter
		d.Coordinates = &c
	}
	return d
}
