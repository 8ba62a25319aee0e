package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"intake-service/internal/models"
	"intake-service/internal/util"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventPublisher handles publishing intake domain events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// NewBaseEvent stamps an event with a fresh id and timestamp.
func NewBaseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now().UTC(),
	}
}

// PublishEmailReceived publishes EmailReceived event
func (ep *EventPublisher) PublishEmailReceived(ctx context.Context, event *models.EmailReceivedEvent) error {
	key := fmt.Sprintf("email-%d", event.EmailID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishEmailParsed publishes EmailParsed event
func (ep *EventPublisher) PublishEmailParsed(ctx context.Context, event *models.EmailParsedEvent) error {
	key := fmt.Sprintf("email-%d", event.EmailID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishEmailParseFailed publishes EmailParseFailed event
func (ep *EventPublisher) PublishEmailParseFailed(ctx context.Context, event *models.EmailParseFailedEvent) error {
	key := fmt.Sprintf("email-%d", event.EmailID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishOrderAssembled publishes OrderAssembled event
func (ep *EventPublisher) PublishOrderAssembled(ctx context.Context, event *models.OrderAssembledEvent) error {
	key := fmt.Sprintf("order-%d", event.OrderID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishItemsConfirmed publishes ItemsConfirmed event
func (ep *EventPublisher) PublishItemsConfirmed(ctx context.Context, event *models.ItemsConfirmedEvent) error {
	key := fmt.Sprintf("order-%d", event.OrderID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishItemStatusChanged publishes ItemStatusChanged event
func (ep *EventPublisher) PublishItemStatusChanged(ctx context.Context, event *models.ItemStatusChangedEvent) error {
	key := fmt.Sprintf("order-%d", event.OrderID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// EventHandler handles incoming events
type EventHandler struct {
	onEmailReceived func(context.Context, *models.EmailReceivedEvent) error
	logger          *zap.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{logger: util.GetLogger()}
}

// OnEmailReceived registers a handler for EmailReceived events
func (eh *EventHandler) OnEmailReceived(handler func(context.Context, *models.EmailReceivedEvent) error) {
	eh.onEmailReceived = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	eh.logger.Debug("Handling event",
		zap.String("type", baseEvent.EventType),
		zap.String("id", baseEvent.EventID))

	switch baseEvent.EventType {
	case models.EventTypeEmailReceived:
		if eh.onEmailReceived != nil {
			var event models.EmailReceivedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal EmailReceived event: %w", err)
			}
			return eh.onEmailReceived(ctx, &event)
		}

	default:
		eh.logger.Debug("Unhandled event type", zap.String("type", baseEvent.EventType))
	}

	return nil
}
