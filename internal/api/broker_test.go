package api

import (
	"testing"
	"time"
)

func TestBrokerPublishSubscribe(t *testing.T) {
	b := NewBroker()
	tripID := "t1"
	ch := b.Subscribe(tripID)

	evt := SSEEvent{Type: "plan.updated", Data: map[string]any{"dayNumber": 1}}
	b.Publish(tripID, evt)

	select {
	case got := <-ch:
		if got.Type != evt.Type {
			t.Fatalf("got type %s, want %s", got.Type, evt.Type)
		}
		if got.Data["dayNumber"].(int) != 1 {
			t.Fatalf("bad payload: %+v", got.Data)
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timeout waiting for event")
	}

	b.Unsubscribe(tripID, ch)
	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("channel should be closed after unsubscribe")
		}
	case <-time.After(50 * time.Millisecond):
		// acceptable if already drained and closed
	}
}

func TestBrokerIsolatesTrips(t *testing.T) {
	b := NewBroker()
	ch1 := b.Subscribe("t1")
	ch2 := b.Subscribe("t2")
	defer b.Unsubscribe("t1", ch1)
	defer b.Unsubscribe("t2", ch2)

	b.Publish("t1", SSEEvent{Type: "plan.saved"})
	select {
	case <-ch2:
		t.Fatal("event leaked across trips")
	case <-time.After(50 * time.Millisecond):
	}
	select {
	case got := <-ch1:
		if got.Type != "plan.saved" {
			t.Fatalf("got %s", got.Type)
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timeout waiting for event")
	}
}
