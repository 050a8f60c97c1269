// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"context"
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types. Each event represents something significant that
// happened in the circulation workflow.
const (
	// Loan events
	EventLoanCheckedOut EventType = "loan.checked_out"
	EventLoanReturned   EventType = "loan.returned"
	EventLoanRenewed    EventType = "loan.renewed"
	EventLoanOverdue    EventType = "loan.overdue"

	// Book events
	EventBookCataloged     EventType = "book.cataloged"
	EventBookStatusChanged EventType = "book.status_changed"

	// Member events
	EventMemberRegistered EventType = "member.registered"

	// System events
	EventSweepCompleted EventType = "system.sweep_completed"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
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

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// Payload implements Event interface. A base event carries no event data
// beyond its common fields; concrete events override this.
func (e BaseEvent) Payload() map[string]interface{} {
	return map[string]interface{}{}
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now(),
		AggregateId: aggregateID,
	}
}

// EventHandler processes a published event.
type EventHandler func(ctx context.Context, event Event) error

// EventPublisher publishes domain events to interested subscribers.
// Publishing is best-effort: a failed handler must never fail the
// command that produced the event.
type EventPublisher interface {
	Publish(event Event) error
}

// EventBus is a publisher that also supports subscriptions.
type EventBus interface {
	EventPublisher
	Subscribe(eventType EventType, handler EventHandler) error
	Close() error
}

// NopPublisher is an EventPublisher that drops all events.
// Used when no bus is configured (e.g. in tests).
type NopPublisher struct{}

// Publish implements EventPublisher.
func (NopPublisher) Publish(Event) error { return nil }
