// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"fmt"
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types. Each event represents something significant that
// happened in the attendance/carencia domain.
const (
	// Carencia events
	EventPeriodRecomputed EventType = "carencia.period_recomputed"
	EventCarenciaPending  EventType = "carencia.pending"
	EventFollowUpStarted  EventType = "carencia.follow_up_started"
	EventCarenciaResolved EventType = "carencia.resolved"

	// Period configuration events
	EventThresholdChanged EventType = "carencia.threshold_changed"

	// Aggregation events
	EventAggregationWarning EventType = "attendance.aggregation_warning"
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
	Version     int       `json:"version"`
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

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// PeriodRecomputedEvent is emitted after the carencia record set of a period
// has been replaced with a fresh snapshot.
type PeriodRecomputedEvent struct {
	BaseEvent
	PeriodID       string `json:"period_id"`
	TurmaID        int64  `json:"turma_id"`
	Month          int    `json:"month"`
	Year           int    `json:"year"`
	TotalRecords   int    `json:"total_records"`
	DeficientCount int    `json:"deficient_count"`
	PreservedCount int    `json:"preserved_count"`
}

// Payload implements Event interface.
func (e PeriodRecomputedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"period_id":       e.PeriodID,
		"turma_id":        e.TurmaID,
		"month":           e.Month,
		"year":            e.Year,
		"total_records":   e.TotalRecords,
		"deficient_count": e.DeficientCount,
		"preserved_count": e.PreservedCount,
	}
}

// NewPeriodRecomputedEvent creates a new PeriodRecomputedEvent.
func NewPeriodRecomputedEvent(periodID string, turmaID int64, month, year, total, deficient, preserved int) PeriodRecomputedEvent {
	return PeriodRecomputedEvent{
		BaseEvent:      NewBaseEvent(EventPeriodRecomputed, periodID),
		PeriodID:       periodID,
		TurmaID:        turmaID,
		Month:          month,
		Year:           year,
		TotalRecords:   total,
		DeficientCount: deficient,
		PreservedCount: preserved,
	}
}

// CarenciaPendingEvent is emitted when automatic classification leaves a
// student below the period threshold.
type CarenciaPendingEvent struct {
	BaseEvent
	RecordID   string  `json:"record_id"`
	PeriodID   string  `json:"period_id"`
	StudentID  int64   `json:"student_id"`
	Percentage float64 `json:"percentage"`
	Threshold  float64 `json:"threshold"`
}

// Payload implements Event interface.
func (e CarenciaPendingEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"record_id":  e.RecordID,
		"period_id":  e.PeriodID,
		"student_id": e.StudentID,
		"percentage": e.Percentage,
		"threshold":  e.Threshold,
	}
}

// NewCarenciaPendingEvent creates a new CarenciaPendingEvent.
func NewCarenciaPendingEvent(recordID, periodID string, studentID int64, percentage, threshold float64) CarenciaPendingEvent {
	return CarenciaPendingEvent{
		BaseEvent:  NewBaseEvent(EventCarenciaPending, recordID),
		RecordID:   recordID,
		PeriodID:   periodID,
		StudentID:  studentID,
		Percentage: percentage,
		Threshold:  threshold,
	}
}

// FollowUpStartedEvent is emitted when a pending record moves to follow-up.
type FollowUpStartedEvent struct {
	BaseEvent
	RecordID  string `json:"record_id"`
	StudentID int64  `json:"student_id"`
	Notes     string `json:"notes"`
}

// Payload implements Event interface.
func (e FollowUpStartedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"record_id":  e.RecordID,
		"student_id": e.StudentID,
		"notes":      e.Notes,
	}
}

// NewFollowUpStartedEvent creates a new FollowUpStartedEvent.
func NewFollowUpStartedEvent(recordID string, studentID int64, notes string) FollowUpStartedEvent {
	return FollowUpStartedEvent{
		BaseEvent: NewBaseEvent(EventFollowUpStarted, recordID),
		RecordID:  recordID,
		StudentID: studentID,
		Notes:     notes,
	}
}

// CarenciaResolvedEvent is emitted when a record is manually resolved.
type CarenciaResolvedEvent struct {
	BaseEvent
	RecordID  string `json:"record_id"`
	StudentID int64  `json:"student_id"`
	Notes     string `json:"notes"`
}

// Payload implements Event interface.
func (e CarenciaResolvedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"record_id":  e.RecordID,
		"student_id": e.StudentID,
		"notes":      e.Notes,
	}
}

// NewCarenciaResolvedEvent creates a new CarenciaResolvedEvent.
func NewCarenciaResolvedEvent(recordID string, studentID int64, notes string) CarenciaResolvedEvent {
	return CarenciaResolvedEvent{
		BaseEvent: NewBaseEvent(EventCarenciaResolved, recordID),
		RecordID:  recordID,
		StudentID: studentID,
		Notes:     notes,
	}
}

// ThresholdChangedEvent is emitted when a period's minimum percentage changes.
type ThresholdChangedEvent struct {
	BaseEvent
	PeriodID     string  `json:"period_id"`
	OldThreshold float64 `json:"old_threshold"`
	NewThreshold float64 `json:"new_threshold"`
}

// Payload implements Event interface.
func (e ThresholdChangedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"period_id":     e.PeriodID,
		"old_threshold": e.OldThreshold,
		"new_threshold": e.NewThreshold,
	}
}

// NewThresholdChangedEvent creates a new ThresholdChangedEvent.
func NewThresholdChangedEvent(periodID string, oldThreshold, newThreshold float64) ThresholdChangedEvent {
	return ThresholdChangedEvent{
		BaseEvent:    NewBaseEvent(EventThresholdChanged, periodID),
		PeriodID:     periodID,
		OldThreshold: oldThreshold,
		NewThreshold: newThreshold,
	}
}

// AggregationWarningEvent is emitted when aggregation skips malformed events.
type AggregationWarningEvent struct {
	BaseEvent
	TurmaID  int64  `json:"turma_id"`
	Skipped  int    `json:"skipped"`
	Reason   string `json:"reason"`
	Operator string `json:"operator"`
}

// Payload implements Event interface.
func (e AggregationWarningEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"turma_id": e.TurmaID,
		"skipped":  e.Skipped,
		"reason":   e.Reason,
		"operator": e.Operator,
	}
}

// NewAggregationWarningEvent creates a new AggregationWarningEvent.
func NewAggregationWarningEvent(turmaID int64, skipped int, reason, operator string) AggregationWarningEvent {
	return AggregationWarningEvent{
		BaseEvent: NewBaseEvent(EventAggregationWarning, fmt.Sprintf("turma:%d", turmaID)),
		TurmaID:   turmaID,
		Skipped:   skipped,
		Reason:    reason,
		Operator:  operator,
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
