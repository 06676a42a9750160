package registry

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/tableside-backend/pkg/config"
	"github.com/angelmondragon/tableside-backend/pkg/db/models"
	"github.com/angelmondragon/tableside-backend/pkg/enums"
	"github.com/angelmondragon/tableside-backend/pkg/outbox"
	"github.com/angelmondragon/tableside-backend/pkg/outbox/payloads"
)

// EventDescriptor routes one event type: which aggregate it must describe,
// which topic it goes to and which struct its data decodes into.
type EventDescriptor struct {
	EventType      enums.OutboxEventType
	AggregateType  enums.OutboxAggregateType
	Topic          string
	PayloadFactory func() any
}

// ResolvedEvent is an outbox row that passed validation.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

// NonRetryableError marks a row the publisher must park instead of retry.
type NonRetryableError struct {
	Err error
}

func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error {
	return e.Err
}

// EventRegistry knows every event type the publisher may send.
type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

type route struct {
	eventType enums.OutboxEventType
	aggregate enums.OutboxAggregateType
	inventory bool
	payload   func() any
}

// Settlement lifecycle events go to the settlements topic; stock and
// consistency alerts go to the inventory topic.
var routes = []route{
	{enums.EventTableSettled, enums.AggregateHistoryEntry, false, func() any { return &payloads.TableSettledEvent{} }},
	{enums.EventTableDue, enums.AggregateHistoryEntry, false, func() any { return &payloads.TableSettledEvent{} }},
	{enums.EventDueSettled, enums.AggregateHistoryEntry, false, func() any { return &payloads.DueSettledEvent{} }},
	{enums.EventTableInconsistencyDetected, enums.AggregateHistoryEntry, true, func() any { return &payloads.TableInconsistencyEvent{} }},
	{enums.EventInventoryNegativeStock, enums.AggregateInventoryItem, true, func() any { return &payloads.NegativeStockEvent{} }},
}

func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	if cfg.SettlementsTopic == "" {
		return nil, errors.New("settlements topic is required")
	}
	if cfg.InventoryTopic == "" {
		return nil, errors.New("inventory topic is required")
	}
	reg := &EventRegistry{entries: make(map[enums.OutboxEventType]EventDescriptor, len(routes))}
	for _, r := range routes {
		topic := cfg.SettlementsTopic
		if r.inventory {
			topic = cfg.InventoryTopic
		}
		reg.entries[r.eventType] = EventDescriptor{
			EventType:      r.eventType,
			AggregateType:  r.aggregate,
			Topic:          topic,
			PayloadFactory: r.payload,
		}
	}
	return reg, nil
}

// Topics lists the distinct topics the registry routes to.
func (r *EventRegistry) Topics() []string {
	seen := map[string]bool{}
	var topics []string
	for _, route := range routes {
		topic := r.entries[route.eventType].Topic
		if !seen[topic] {
			seen[topic] = true
			topics = append(topics, topic)
		}
	}
	return topics
}

// Resolve checks the row against its descriptor and decodes the payload.
// Every failure is non-retryable: a malformed row never gets better.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, err := r.describe(event)
	if err != nil {
		return nil, NewNonRetryableError(err)
	}
	envelope, err := outbox.DecodeEnvelope(event.Payload)
	if err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("%s: %w", event.EventType, err))
	}
	payload := desc.PayloadFactory()
	if err := json.Unmarshal(envelope.Data, payload); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode %s payload: %w", event.EventType, err))
	}
	return &ResolvedEvent{Descriptor: desc, Envelope: envelope, Payload: payload}, nil
}

func (r *EventRegistry) describe(event models.OutboxEvent) (EventDescriptor, error) {
	desc, ok := r.entries[event.EventType]
	switch {
	case !ok:
		return desc, fmt.Errorf("unsupported event type %s", event.EventType)
	case desc.AggregateType != event.AggregateType:
		return desc, fmt.Errorf("aggregate mismatch: expected %s got %s", desc.AggregateType, event.AggregateType)
	case event.AggregateID == uuid.Nil:
		return desc, errors.New("missing aggregate_id")
	}
	return desc, nil
}
