// Package main runs a demo WebSocket client for plan events.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/gorilla/websocket"
)

type wsMessage struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	base := fmt.Sprintf("http://localhost:%s", port)
	tripID := os.Getenv("TRIP_ID")
	if tripID == "" {
		tripID = "demo-trip"
	}

	// Seed a small plan
	plan := []byte(`{"tripPlan":{"name":"Demo","days":[{"dayNumber":1,"activities":[
		{"timeRange":"09:00 - 10:00","place":"Museum"},
		{"timeRange":"10:15 - 12:00","place":"Old town walk"}
	]}]}}`)
	req, _ := http.NewRequest(http.MethodPut, base+"/v1/trips/"+tripID, bytes.NewReader(plan))
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatal(err)
	}
	_ = resp.Body.Close()
	log.Printf("Trip ID: %s", tripID)

	// Connect WS
	u := url.URL{Scheme: "ws", Host: "localhost:" + port, Path: "/v1/ws"}
	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer func() { _ = c.Close() }()

	// connection_init
	if err := c.WriteJSON(wsMessage{Type: "connection_init"}); err != nil {
		log.Fatal(err)
	}
	// subscribe to plan events for the trip
	pl, _ := json.Marshal(map[string]any{"tripId": tripID})
	if err := c.WriteJSON(wsMessage{Type: "subscribe", ID: "1", Payload: pl}); err != nil {
		log.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var m wsMessage
			if err := c.ReadJSON(&m); err != nil {
				log.Printf("read: %v", err)
				return
			}
			log.Printf("WS <- %s: %s", m.Type, string(m.Payload))
		}
	}()

	// Trigger a plan event via a reorder
	time.Sleep(500 * time.Millisecond)
	reorder := []byte(`{"from":0,"to":1,"list":"cards"}`)
	rreq, _ := http.NewRequest(http.MethodPost, fmt.Sprintf("%s/v1/trips/%s/days/1/reorder", base, tripID), bytes.NewReader(reorder))
	rreq.Header.Set("Content-Type", "application/json")
	_, _ = http.DefaultClient.Do(rreq)

	// Wait briefly to receive a few messages
	select {
	case <-time.After(2 * time.Second):
	case <-done:
	}
}
