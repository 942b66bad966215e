package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/goccy/go-json"
)

// Event types emitted by the ticket engine and the gRPC interceptor.
const (
	EventTicketAllocated = "ticket_allocated"
	EventTicketReissued  = "ticket_reissued"
	EventTicketDenied    = "ticket_denied"
	EventTicketVerified  = "ticket_verified"
	EventTicketUsed      = "ticket_used"
	EventGRPCRequest     = "grpc_request"
)

// Event is one telemetry record. It is serialized as JSON onto Kafka and read back by the worker.
type Event struct {
	SiteID    string          `json:"siteId,omitempty"`
	TicketID  string          `json:"ticketId,omitempty"`
	ActorID   string          `json:"actorId,omitempty"`
	EventType string          `json:"eventType"`
	Source    string          `json:"source"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

// NewEvent builds an event with metadata marshaled from meta. A nil meta leaves Metadata empty.
func NewEvent(eventType, source, siteID string, meta any) *Event {
	e := &Event{EventType: eventType, Source: source, SiteID: siteID, CreatedAt: time.Now().UTC()}
	if meta != nil {
		if raw, err := json.Marshal(meta); err == nil {
			e.Metadata = raw
		}
	}
	return e
}

// EventEmitter emits telemetry events (e.g. to OTel Logs). Best-effort; callers log and ignore errors.
type EventEmitter interface {
	Emit(ctx context.Context, event *Event) error
}

// Fanout returns an emitter that sends each event to every non-nil emitter.
func Fanout(emitters ...EventEmitter) EventEmitter {
	var out fanout
	for _, e := range emitters {
		if e != nil {
			out = append(out, e)
		}
	}
	return out
}

type fanout []EventEmitter

func (f fanout) Emit(ctx context.Context, event *Event) error {
	var errs []error
	for _, e := range f {
		if err := e.Emit(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
