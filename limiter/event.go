package limiter

import (
	"context"
	"time"
)

// EventType kind of limiter event
type EventType string

const (
	// EventAllowed request admitted
	EventAllowed EventType = "allowed"

	// EventThrottled request denied
	EventThrottled EventType = "throttled"

	// EventStoreError store failed during a check
	EventStoreError EventType = "store_error"
)

// Event emitted after each check
type Event interface {
	Type() EventType
	Identity() string
	Route() string
	Context() context.Context
	Timestamp() time.Time
}

// BaseEvent basic event
type BaseEvent struct {
	eventType EventType
	identity  string
	route     string
	ctx       context.Context
	timestamp time.Time
}

// NewBaseEvent creates a base event
func NewBaseEvent(ctx context.Context, eventType EventType, identity, route string, at time.Time) BaseEvent {
	return BaseEvent{
		eventType: eventType,
		identity:  identity,
		route:     route,
		ctx:       ctx,
		timestamp: at,
	}
}

func (e *BaseEvent) Type() EventType          { return e.eventType }
func (e *BaseEvent) Identity() string         { return e.identity }
func (e *BaseEvent) Route() string            { return e.route }
func (e *BaseEvent) Context() context.Context { return e.ctx }
func (e *BaseEvent) Timestamp() time.Time     { return e.timestamp }

// DecisionEvent carries the decision for allowed and throttled checks
type DecisionEvent struct {
	BaseEvent
	Decision Decision
}

// StoreErrorEvent carries the store failure
type StoreErrorEvent struct {
	BaseEvent
	Err error
}

// EventListener event listener interface
type EventListener interface {
	OnEvent(event Event)
}

// EventListenerFunc event listener function type
type EventListenerFunc func(event Event)

// OnEvent implements EventListener interface
func (f EventListenerFunc) OnEvent(event Event) {
	f(event)
}
