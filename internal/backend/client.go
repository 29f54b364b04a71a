package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"tripweaver/internal/model"
)

// Client talks to the trip backend that owns the canonical plan documents.
type Client struct {
	BaseURL string
	Secret  string
	HTTP    *http.Client
}

func NewClient(baseURL, secret string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Secret:  secret,
		HTTP:    &http.Client{Timeout: 10 * time.Second},
	}
}

// savedPlanEnvelope is the wire shape of plan pushes and their responses.
type savedPlanEnvelope struct {
	TripPlan *model.TripPlan `json:"trip_plan"`
}

// SaveURL is the push target for a trip's plan.
func (c *Client) SaveURL(tripID string) string {
	return fmt.Sprintf("%s/trip/%s/plan", c.BaseURL, tripID)
}

// EncodePlan wraps a plan in the push envelope.
func EncodePlan(plan *model.TripPlan) ([]byte, error) {
	return json.Marshal(savedPlanEnvelope{TripPlan: plan})
}

// DecodePlan unwraps a backend response body. The backend may answer with the
// envelope or with a bare plan object; both are accepted.
func DecodePlan(body []byte) (*model.TripPlan, error) {
	var env savedPlanEnvelope
	if err := json.Unmarshal(body, &env); err == nil && env.TripPlan != nil {
		return env.TripPlan, nil
	}
	var plan model.TripPlan
	if err := json.Unmarshal(body, &plan); err != nil {
		return nil, err
	}
	if len(plan.Days) == 0 && plan.Name == "" {
		return nil, fmt.Errorf("backend response carried no plan")
	}
	return &plan, nil
}

// PushPlan PUTs the plan to the backend and returns the canonical copy it
// answered with.
func (c *Client) PushPlan(ctx context.Context, tripID string, plan *model.TripPlan) (*model.TripPlan, error) {
	payload, err := EncodePlan(plan)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.SaveURL(tripID), bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Secret != "" {
		req.Header.Set("X-Signature", SignHMAC(c.Secret, payload))
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("backend save: status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		// Backend acked without a body: caller keeps its own copy as canonical.
		return plan.Clone(), nil
	}
	canonical, err := DecodePlan(body)
	if err != nil {
		return nil, err
	}
	return canonical, nil
}
