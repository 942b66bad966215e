package telemetry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
)

// mockEventEmitter implements EventEmitter for tests.
type mockEventEmitter struct {
	mu      sync.Mutex
	events  []*Event
	emitErr error
	delay   time.Duration
	done    chan struct{}
}

func (m *mockEventEmitter) Emit(ctx context.Context, event *Event) error {
	if m.delay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.delay):
		}
	}
	m.mu.Lock()
	m.events = append(m.events, event)
	m.mu.Unlock()
	if m.done != nil {
		m.done <- struct{}{}
	}
	return m.emitErr
}

func (m *mockEventEmitter) getEvents() []*Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.events
}

func TestEmitAsync_NilEmitter(t *testing.T) {
	// Should not panic
	EmitAsync(nil, &Event{EventType: "test"})
}

func TestEmitAsync_NilEvent(t *testing.T) {
	emitter := &mockEventEmitter{}
	EmitAsync(emitter, nil)

	time.Sleep(10 * time.Millisecond)
	if events := emitter.getEvents(); len(events) != 0 {
		t.Errorf("expected 0 events, got %d", len(events))
	}
}

func TestEmitAsync_SuccessfulEmit(t *testing.T) {
	emitter := &mockEventEmitter{done: make(chan struct{}, 1)}
	event := &Event{SiteID: "site-1", EventType: EventTicketAllocated, Source: "test"}
	EmitAsync(emitter, event)

	select {
	case <-emitter.done:
	case <-time.After(time.Second):
		t.Fatal("emit did not run")
	}
	events := emitter.getEvents()
	if len(events) != 1 || events[0] != event {
		t.Errorf("events = %v", events)
	}
}

func TestEmitAsync_ErrorIsSwallowed(t *testing.T) {
	emitter := &mockEventEmitter{emitErr: errors.New("kafka down"), done: make(chan struct{}, 1)}
	EmitAsync(emitter, &Event{EventType: "test"})
	select {
	case <-emitter.done:
	case <-time.After(time.Second):
		t.Fatal("emit did not run")
	}
}

func TestFanout(t *testing.T) {
	a := &mockEventEmitter{}
	b := &mockEventEmitter{emitErr: errors.New("b failed")}
	f := Fanout(a, nil, b)

	err := f.Emit(context.Background(), &Event{EventType: "test"})
	if err == nil || err.Error() != "b failed" {
		t.Errorf("Emit err = %v, want b failed", err)
	}
	if len(a.getEvents()) != 1 || len(b.getEvents()) != 1 {
		t.Errorf("fanout delivered %d/%d events", len(a.getEvents()), len(b.getEvents()))
	}
	if err := Fanout().Emit(context.Background(), &Event{}); err != nil {
		t.Errorf("empty fanout Emit = %v", err)
	}
}

func TestNewEvent_JSONShape(t *testing.T) {
	e := NewEvent(EventTicketDenied, "allocator", "site-1", map[string]string{"kind": "OUTSIDE_GEOFENCE"})
	raw, err := json.Marshal(e)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if fields["siteId"] != "site-1" || fields["eventType"] != EventTicketDenied || fields["source"] != "allocator" {
		t.Errorf("fields = %v", fields)
	}
	meta, _ := fields["metadata"].(map[string]any)
	if meta["kind"] != "OUTSIDE_GEOFENCE" {
		t.Errorf("metadata = %v", fields["metadata"])
	}
	if _, ok := fields["createdAt"].(string); !ok {
		t.Errorf("createdAt should be an RFC 3339 string, got %v", fields["createdAt"])
	}
}
