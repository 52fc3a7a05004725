package shared

import (
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Table session events. They are informational: nothing in the table core
// depends on them being delivered.
const (
	EventSessionOpened  EventType = "session.opened"
	EventSessionClosed  EventType = "session.closed"
	EventSessionExpired EventType = "session.expired"

	EventLoadCompleted EventType = "load.completed"
	EventLoadFailed    EventType = "load.failed"

	EventBulkActionRun EventType = "bulk.action_run"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the session that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type        EventType `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
	AggregateId string    `json:"aggregate_id"`
}

// EventType implements Event.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event stamped with the current time.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now().UTC(),
		AggregateId: aggregateID,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Session Lifecycle
// ═══════════════════════════════════════════════════════════════════════════

// SessionLifecycleEvent is emitted when a session opens, closes or expires.
type SessionLifecycleEvent struct {
	BaseEvent
	View string `json:"view"`
}

// Payload implements Event.
func (e SessionLifecycleEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"session_id": e.AggregateId,
		"view":       e.View,
	}
}

// NewSessionLifecycleEvent creates a lifecycle event of the given type.
func NewSessionLifecycleEvent(eventType EventType, sessionID, view string) SessionLifecycleEvent {
	return SessionLifecycleEvent{
		BaseEvent: NewBaseEvent(eventType, sessionID),
		View:      view,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Loading
// ═══════════════════════════════════════════════════════════════════════════

// LoadCompletedEvent is emitted when a fetch settles a session's gate.
type LoadCompletedEvent struct {
	BaseEvent
	View       string        `json:"view"`
	Generation uint64        `json:"generation"`
	Rows       int           `json:"rows"`
	Latency    time.Duration `json:"latency"`
}

// Payload implements Event.
func (e LoadCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"session_id": e.AggregateId,
		"view":       e.View,
		"generation": e.Generation,
		"rows":       e.Rows,
		"latency_ms": e.Latency.Milliseconds(),
	}
}

// NewLoadCompletedEvent creates a new LoadCompletedEvent.
func NewLoadCompletedEvent(sessionID, view string, generation uint64, rows int, latency time.Duration) LoadCompletedEvent {
	return LoadCompletedEvent{
		BaseEvent:  NewBaseEvent(EventLoadCompleted, sessionID),
		View:       view,
		Generation: generation,
		Rows:       rows,
		Latency:    latency,
	}
}

// LoadFailedEvent is emitted when a fetch settles with an error.
type LoadFailedEvent struct {
	BaseEvent
	View       string `json:"view"`
	Generation uint64 `json:"generation"`
	Reason     string `json:"reason"`
}

// Payload implements Event.
func (e LoadFailedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"session_id": e.AggregateId,
		"view":       e.View,
		"generation": e.Generation,
		"reason":     e.Reason,
	}
}

// NewLoadFailedEvent creates a new LoadFailedEvent.
func NewLoadFailedEvent(sessionID, view string, generation uint64, reason string) LoadFailedEvent {
	return LoadFailedEvent{
		BaseEvent:  NewBaseEvent(EventLoadFailed, sessionID),
		View:       view,
		Generation: generation,
		Reason:     reason,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Bulk Actions
// ═══════════════════════════════════════════════════════════════════════════

// BulkActionRunEvent is emitted after a bulk action ran over a selection.
type BulkActionRunEvent struct {
	BaseEvent
	View     string   `json:"view"`
	Action   string   `json:"action"`
	RowIDs   []string `json:"row_ids"`
	Affected int      `json:"affected"`
}

// Payload implements Event.
func (e BulkActionRunEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"session_id": e.AggregateId,
		"view":       e.View,
		"action":     e.Action,
		"row_ids":    e.RowIDs,
		"affected":   e.Affected,
	}
}

// NewBulkActionRunEvent creates a new BulkActionRunEvent.
func NewBulkActionRunEvent(sessionID, view, action string, rowIDs []string) BulkActionRunEvent {
	return BulkActionRunEvent{
		BaseEvent: NewBaseEvent(EventBulkActionRun, sessionID),
		View:      view,
		Action:    action,
		RowIDs:    rowIDs,
		Affected:  len(rowIDs),
	}
}

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}
