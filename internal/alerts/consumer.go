package alerts

import (
	"context"
	"encoding/json"
	"errors"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/angelmondragon/tableside-backend/pkg/enums"
	"github.com/angelmondragon/tableside-backend/pkg/logger"
	"github.com/angelmondragon/tableside-backend/pkg/outbox"
	"github.com/angelmondragon/tableside-backend/pkg/outbox/payloads"
)

const consumerName = "inventory-alerts"

type receiver interface {
	Receive(ctx context.Context, f func(context.Context, *pubsub.Message)) error
}

type claimer interface {
	Claim(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Release(ctx context.Context, consumer string, eventID uuid.UUID) error
}

type alertCounter interface {
	IncAlert(eventType, branch string)
}

// ConsumerParams wires the alerts consumer.
type ConsumerParams struct {
	Subscription receiver
	Guard        claimer
	Metrics      alertCounter
	Logger       *logger.Logger
}

// Consumer turns negative stock and table inconsistency events into
// operator alerts: one warning log line and one counter bump per event.
type Consumer struct {
	subscription receiver
	guard        claimer
	metrics      alertCounter
	logg         *logger.Logger
}

func NewConsumer(params ConsumerParams) (*Consumer, error) {
	if params.Subscription == nil {
		return nil, errors.New("inventory subscription required")
	}
	if params.Guard == nil {
		return nil, errors.New("idempotency guard required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	return &Consumer{
		subscription: params.Subscription,
		guard:        params.Guard,
		metrics:      params.Metrics,
		logg:         params.Logger,
	}, nil
}

// Run blocks receiving messages until ctx is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if c.process(ctx, msg).nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	alerted bool
	nack    bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	eventType := enums.OutboxEventType(msg.Attributes["event_type"])
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id":  msg.ID,
		"event_type":  string(eventType),
		"branch_code": msg.Attributes["branch_code"],
	})

	if eventType != enums.EventInventoryNegativeStock && eventType != enums.EventTableInconsistencyDetected {
		c.logg.Debug(logCtx, "skipping event without alert")
		return processResult{}
	}

	envelope, err := outbox.DecodeEnvelope(msg.Data)
	if err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{}
	}
	eventID, _ := envelope.ID()
	logCtx = c.logg.WithField(logCtx, "event_id", eventID.String())

	claimed, err := c.guard.Claim(ctx, consumerName, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if !claimed {
		c.logg.Info(logCtx, "event already processed")
		return processResult{}
	}

	branch, err := c.raise(logCtx, eventType, envelope.Data)
	if err != nil {
		c.logg.Error(logCtx, "failed to parse payload", err)
		if releaseErr := c.guard.Release(ctx, consumerName, eventID); releaseErr != nil {
			c.logg.Error(logCtx, "failed to release idempotency claim", releaseErr)
		}
		return processResult{nack: true}
	}
	if c.metrics != nil {
		c.metrics.IncAlert(string(eventType), branch)
	}
	return processResult{alerted: true}
}

func (c *Consumer) raise(ctx context.Context, eventType enums.OutboxEventType, data json.RawMessage) (string, error) {
	switch eventType {
	case enums.EventInventoryNegativeStock:
		var payload payloads.NegativeStockEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return "", err
		}
		c.logg.Warn(c.logg.WithFields(ctx, map[string]any{
			"branch_code":       payload.BranchCode,
			"inventory_item_id": payload.InventoryItemID.String(),
			"ingredient_name":   payload.IngredientName,
			"quantity":          payload.Quantity.String(),
			"unit":              string(payload.Unit),
		}), "inventory item below zero")
		return payload.BranchCode, nil
	default:
		var payload payloads.TableInconsistencyEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return "", err
		}
		c.logg.Warn(c.logg.WithFields(ctx, map[string]any{
			"branch_code":      payload.BranchCode,
			"table_id":         payload.TableID.String(),
			"table_number":     payload.TableNumber,
			"history_entry_id": payload.HistoryEntryID.String(),
		}), "table orders repeat a settled bill")
		return payload.BranchCode, nil
	}
}
