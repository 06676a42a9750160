package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/angelmondragon/tableside-backend/pkg/db/models"
	"github.com/angelmondragon/tableside-backend/pkg/enums"
	"github.com/angelmondragon/tableside-backend/pkg/metrics"
	"github.com/angelmondragon/tableside-backend/pkg/outbox"
	"github.com/angelmondragon/tableside-backend/pkg/outbox/registry"
)

// delivery is the outcome of resolving and publishing one outbox row.
type delivery struct {
	event    models.OutboxEvent
	resolved *registry.ResolvedEvent
	err      error
}

func (d delivery) topic() string {
	if d.resolved == nil {
		return ""
	}
	return d.resolved.Descriptor.Topic
}

func (d delivery) envelope() outbox.PayloadEnvelope {
	if d.resolved == nil {
		return outbox.PayloadEnvelope{}
	}
	return d.resolved.Envelope
}

// terminalReason is empty when the row succeeded or may be retried.
func (d delivery) terminalReason(maxAttempts int) enums.OutboxDLQErrorReason {
	if d.err == nil {
		return ""
	}
	var nonRetry registry.NonRetryableError
	if d.resolved == nil || errors.As(d.err, &nonRetry) {
		return enums.OutboxDLQReasonNonRetryable
	}
	if d.event.AttemptCount+1 >= maxAttempts {
		return enums.OutboxDLQReasonMaxAttempts
	}
	return ""
}

func (s *Service) processBatch(ctx context.Context) (bool, error) {
	processed := false
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		events, err := s.repo.FetchUnpublishedForPublish(tx, s.batchSize, s.maxAttempts)
		if err != nil || len(events) == 0 {
			return err
		}
		processed = true
		start := time.Now()
		defer func() { s.metrics.ObserveBatch(time.Since(start)) }()
		for _, d := range s.deliver(ctx, events) {
			if err := s.record(ctx, tx, d); err != nil {
				return err
			}
		}
		return nil
	})
	return processed, err
}

// deliver publishes up to s.parallel rows at once. The result slice keeps
// the claim order so rows are marked in a stable sequence.
func (s *Service) deliver(ctx context.Context, events []models.OutboxEvent) []delivery {
	out := make([]delivery, len(events))
	var g errgroup.Group
	g.SetLimit(s.parallel)
	for i, event := range events {
		g.Go(func() error {
			d := delivery{event: event}
			d.resolved, d.err = s.registry.Resolve(event)
			if d.err == nil {
				d.err = s.publish(ctx, event, d.resolved)
			}
			out[i] = d
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (s *Service) publish(ctx context.Context, event models.OutboxEvent, resolved *registry.ResolvedEvent) error {
	topic := resolved.Descriptor.Topic
	pub := s.publisherFactory(topic)
	if pub == nil {
		return registry.NewNonRetryableError(fmt.Errorf("publisher not configured for topic %s", topic))
	}

	publishCtx, cancel := context.WithTimeout(ctx, defaultPublishTimeout)
	defer cancel()
	result := pub.Publish(publishCtx, &gcppubsub.Message{
		Data:       event.Payload,
		Attributes: messageAttributes(event, resolved.Envelope),
	})
	if result == nil {
		return registry.NewNonRetryableError(fmt.Errorf("publisher returned nil for topic %s", topic))
	}
	_, err := result.Get(publishCtx)
	return err
}

func (s *Service) record(ctx context.Context, tx *gorm.DB, d delivery) error {
	fields := s.eventFields(d.event, d.envelope(), d.topic())

	if d.err == nil {
		if err := s.repo.MarkPublishedTx(tx, d.event.ID); err != nil {
			return fmt.Errorf("mark published %s: %w", d.event.ID, err)
		}
		s.metrics.ObserveDelivery(string(d.event.EventType), metrics.OutboxPublished)
		s.logg.Info(s.logg.WithFields(ctx, fields), "outbox event published")
		return nil
	}

	fields["attempt_count"] = d.event.AttemptCount + 1
	fields["error"] = d.err.Error()

	reason := d.terminalReason(s.maxAttempts)
	if reason == "" {
		s.logg.Warn(s.logg.WithFields(ctx, fields), "outbox publish failed")
		if err := s.repo.MarkFailedTx(tx, d.event.ID, d.err); err != nil {
			return fmt.Errorf("mark failure %s: %w", d.event.ID, err)
		}
		s.metrics.ObserveDelivery(string(d.event.EventType), metrics.OutboxRetry)
		return nil
	}

	cause := d.err
	if reason == enums.OutboxDLQReasonMaxAttempts {
		cause = fmt.Errorf("max publish attempts reached: %w", d.err)
	}
	fields["error_reason"] = string(reason)
	s.logg.Warn(s.logg.WithFields(ctx, fields), "outbox event parked in dlq")
	if err := s.dlq.Park(tx, d.event, reason, cause); err != nil {
		return fmt.Errorf("park %s: %w", d.event.ID, err)
	}
	if err := s.repo.MarkTerminalTx(tx, d.event.ID, cause, s.maxAttempts); err != nil {
		return fmt.Errorf("mark terminal %s: %w", d.event.ID, err)
	}
	s.metrics.ObserveDelivery(string(d.event.EventType), metrics.OutboxParked)
	return nil
}

// messageAttributes lets subscribers filter by type or branch without
// decoding the payload.
func messageAttributes(event models.OutboxEvent, envelope outbox.PayloadEnvelope) map[string]string {
	attrs := map[string]string{
		"event_id":       event.ID.String(),
		"event_type":     string(event.EventType),
		"aggregate_type": string(event.AggregateType),
		"aggregate_id":   event.AggregateID.String(),
		"created_at":     event.CreatedAt.UTC().Format(time.RFC3339Nano),
		"version":        strconv.Itoa(envelope.Version),
	}
	if actor := envelope.Actor; actor != nil {
		if actor.BranchCode != "" {
			attrs["branch_code"] = actor.BranchCode
		}
		if actor.System != "" {
			attrs["producer"] = actor.System
		}
	}
	return attrs
}

func (s *Service) eventFields(event models.OutboxEvent, envelope outbox.PayloadEnvelope, topic string) map[string]any {
	fields := map[string]any{
		"outbox_id":      event.ID.String(),
		"event_type":     string(event.EventType),
		"aggregate_type": string(event.AggregateType),
		"aggregate_id":   event.AggregateID.String(),
		"attempt_count":  event.AttemptCount,
	}
	if !envelope.OccurredAt.IsZero() {
		fields["occurred_at"] = envelope.OccurredAt.Format(time.RFC3339Nano)
	}
	if envelope.Actor != nil && envelope.Actor.BranchCode != "" {
		fields["branch_code"] = envelope.Actor.BranchCode
	}
	if topic != "" {
		fields["topic"] = topic
	}
	if event.LastError != nil {
		fields["last_error"] = *event.LastError
	}
	return fields
}
