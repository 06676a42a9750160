package enums

import (
	"fmt"
	"slices"
)

// OutboxAggregateType names the row an outbox event describes.
type OutboxAggregateType string

const (
	AggregateHistoryEntry  OutboxAggregateType = "history_entry"
	AggregateTable         OutboxAggregateType = "table"
	AggregateInventoryItem OutboxAggregateType = "inventory_item"
)

var validAggregateTypes = []OutboxAggregateType{AggregateHistoryEntry, AggregateTable, AggregateInventoryItem}

func (a OutboxAggregateType) IsValid() bool {
	return slices.Contains(validAggregateTypes, a)
}

func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	if a := OutboxAggregateType(value); a.IsValid() {
		return a, nil
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType is the event_type column and the Pub/Sub event_type
// attribute. Subscribers filter on it, so values are never renamed.
type OutboxEventType string

const (
	EventTableSettled               OutboxEventType = "table_settled"
	EventTableDue                   OutboxEventType = "table_due"
	EventDueSettled                 OutboxEventType = "due_settled"
	EventTableInconsistencyDetected OutboxEventType = "table_inconsistency_detected"
	EventInventoryNegativeStock     OutboxEventType = "inventory_negative_stock"
)

var validOutboxEventTypes = []OutboxEventType{
	EventTableSettled,
	EventTableDue,
	EventDueSettled,
	EventTableInconsistencyDetected,
	EventInventoryNegativeStock,
}

func (e OutboxEventType) IsValid() bool {
	return slices.Contains(validOutboxEventTypes, e)
}

func ParseOutboxEventType(value string) (OutboxEventType, error) {
	if e := OutboxEventType(value); e.IsValid() {
		return e, nil
	}
	return "", fmt.Errorf("invalid event type %q", value)
}

// OutboxDLQErrorReason records why the publisher gave up on a row.
type OutboxDLQErrorReason string

const (
	OutboxDLQReasonMaxAttempts  OutboxDLQErrorReason = "max_attempts"
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
)

func (r OutboxDLQErrorReason) IsValid() bool {
	return r == OutboxDLQReasonMaxAttempts || r == OutboxDLQReasonNonRetryable
}
