package eventbus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/manfullwel/ska/internal/event"
)

func TestBus_PublishDispatchesToAllSubscribers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := New(8, nil)

	var mu sync.Mutex
	got := map[string]int{}
	record := func(name string) Handler {
		return HandlerFunc(func(_ context.Context, evt event.DomainEvent) error {
			mu.Lock()
			got[name]++
			mu.Unlock()
			return nil
		})
	}
	bus.Subscribe("first", record("first"))
	bus.Subscribe("second", record("second"))
	bus.Start(ctx)

	bus.Publish(ctx, event.NewRunCompleted(event.RunCompletedPayload{RunID: "r1", Entities: 3}))
	bus.Publish(ctx, event.NewForecastAlert(event.ForecastAlertPayload{Entity: "alice", Signal: "significant_decline"}))

	deadline := time.After(2 * time.Second)
	for {
		mu.Lock()
		done := got["first"] == 2 && got["second"] == 2
		mu.Unlock()
		if done {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("events not dispatched: %v", got)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestBus_StopDrainsQueuedEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	bus := New(8, nil)

	var mu sync.Mutex
	handled := 0
	bus.Subscribe("counter", HandlerFunc(func(_ context.Context, _ event.DomainEvent) error {
		mu.Lock()
		handled++
		mu.Unlock()
		return nil
	}))

	for i := 0; i < 5; i++ {
		bus.Publish(ctx, event.NewRunCompleted(event.RunCompletedPayload{RunID: "r"}))
	}

	bus.Start(ctx)
	cancel()

	done := make(chan struct{})
	go func() {
		bus.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return after context cancel")
	}

	mu.Lock()
	defer mu.Unlock()
	if handled != 5 {
		t.Errorf("handled = %d, want 5 (queued events must drain on shutdown)", handled)
	}

	// Publishing after Stop must not panic; the event just queues.
	bus.Publish(ctx, event.NewRunCompleted(event.RunCompletedPayload{RunID: "late"}))
}

func TestBus_FullBufferDropsInsteadOfBlocking(t *testing.T) {
	bus := New(1, nil)
	ctx := context.Background()

	// No consumer running; second publish must not block.
	done := make(chan struct{})
	go func() {
		bus.Publish(ctx, event.NewRunCompleted(event.RunCompletedPayload{RunID: "a"}))
		bus.Publish(ctx, event.NewRunCompleted(event.RunCompletedPayload{RunID: "b"}))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on full buffer")
	}
}
