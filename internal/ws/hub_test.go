package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"go-batch-ledger/internal/model"
)

func TestHub_PublishBroadcastsJSON(t *testing.T) {
	hub := NewHub()
	event := model.NewLedgerEvent(model.EventBatchSplit, "tester", "tester split batch B-1", map[string]string{"batch": "B-1"})

	hub.Publish(event)

	select {
	case msg := <-hub.Broadcast:
		var got model.LedgerEvent
		if err := json.Unmarshal(msg, &got); err != nil {
			t.Fatalf("Broadcast is not JSON: %v", err)
		}
		if got.ID != event.ID || got.Type != model.EventBatchSplit || got.Actor != "tester" {
			t.Errorf("Expected event %s/%s, got %s/%s", event.ID, event.Type, got.ID, got.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("Expected a broadcast message")
	}
}

func TestHub_RunStopsOnCancel(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()

	// Broadcasting with no clients must not block the loop
	hub.Broadcast <- []byte(`{}`)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Expected Run to return after cancel")
	}
	if hub.ClientCount() != 0 {
		t.Errorf("Expected no clients, got %d", hub.ClientCount())
	}
}

func TestHub_PublishKeepsOrder(t *testing.T) {
	hub := NewHub()
	const count = 200

	for i := 0; i < count; i++ {
		hub.Publish(model.NewLedgerEvent(model.EventAllocationCreated, "tester", fmt.Sprintf("event %d", i), i))
	}

	for i := 0; i < count; i++ {
		select {
		case msg := <-hub.Broadcast:
			var got model.LedgerEvent
			if err := json.Unmarshal(msg, &got); err != nil {
				t.Fatalf("Broadcast is not JSON: %v", err)
			}
			if want := fmt.Sprintf("event %d", i); got.Message != want {
				t.Fatalf("Expected %q at position %d, got %q", want, i, got.Message)
			}
		case <-time.After(time.Second):
			t.Fatalf("Expected broadcast %d", i)
		}
	}
}

func TestHub_PublishAfterStopDoesNotBlock(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()
	cancel()
	<-stopped

	done := make(chan struct{})
	go func() {
		for i := 0; i < 2*BroadcastBuffer; i++ {
			hub.Publish(model.NewLedgerEvent(model.EventAllocationReleased, "tester", "late event", nil))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Expected Publish to return after the hub stopped")
	}
	if len(hub.Broadcast) != 0 {
		t.Errorf("Expected nothing queued after stop, got %d", len(hub.Broadcast))
	}
}

func TestHub_PublishDropsWhenBufferFull(t *testing.T) {
	hub := NewHub()
	for i := 0; i < BroadcastBuffer+10; i++ {
		hub.Publish(model.NewLedgerEvent(model.EventBatchCreated, "tester", "burst", i))
	}
	if len(hub.Broadcast) != BroadcastBuffer {
		t.Errorf("Expected %d queued events, got %d", BroadcastBuffer, len(hub.Broadcast))
	}
}
