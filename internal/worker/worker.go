package worker

import (
	"context"

	"intake-service/internal/broker"
	"intake-service/internal/models"
	"intake-service/internal/service"
	"intake-service/internal/store"
	"intake-service/internal/util"

	"go.uber.org/zap"
)

// IntakeWorker consumes EMAIL_RECEIVED events and runs the intake
// pipeline for each stored email.
type IntakeWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	store        *store.Store
	pipeline     *service.PipelineService
	logger       *zap.Logger
}

// NewIntakeWorker creates a new intake worker
func NewIntakeWorker(
	consumer *broker.Consumer,
	store *store.Store,
	pipeline *service.PipelineService,
) *IntakeWorker {
	w := &IntakeWorker{
		consumer: consumer,
		store:    store,
		pipeline: pipeline,
		logger:   util.GetLogger(),
	}

	eventHandler := broker.NewEventHandler()
	eventHandler.OnEmailReceived(w.handleEmailReceived)
	w.eventHandler = eventHandler

	return w
}

// Start starts the worker
func (w *IntakeWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting intake worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *IntakeWorker) Stop() error {
	w.logger.Info("Stopping intake worker")
	return w.consumer.Close()
}

// handleEmailReceived runs the pipeline once per event. Kafka redelivers
// on rebalance, so events are checked against the processed_events table
// before doing any work.
func (w *IntakeWorker) handleEmailReceived(ctx context.Context, event *models.EmailReceivedEvent) error {
	processed, err := w.store.IsEventProcessed(ctx, event.EventID)
	if err != nil {
		return err
	}
	if processed {
		w.logger.Debug("Skipping already processed event",
			zap.String("event_id", event.EventID),
			zap.Int64("email_id", event.EmailID))
		return nil
	}

	if err := w.pipeline.ProcessInbound(ctx, event.EmailID); err != nil {
		w.logger.Error("Pipeline run failed",
			zap.Int64("email_id", event.EmailID),
			zap.Error(err))
		return err
	}

	return w.store.MarkEventProcessed(ctx, event.EventID, event.EventType)
}
