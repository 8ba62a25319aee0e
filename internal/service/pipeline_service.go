package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"intake-service/config"
	"intake-service/internal/broker"
	"intake-service/internal/catalog"
	"intake-service/internal/models"
	"intake-service/internal/parser"
	"intake-service/internal/util"
	"intake-service/internal/vendor"

	"go.uber.org/zap"
)

// intakeStore is the slice of the store the pipeline touches directly; the
// assembler and enricher carry their own.
type intakeStore interface {
	CreateInboundEmail(ctx context.Context, email *models.InboundEmail) error
	GetEmailByID(ctx context.Context, id int64) (*models.InboundEmail, error)
	GetEmailByContentHash(ctx context.Context, hash string) (*models.InboundEmail, error)
	SetEmailParseResult(ctx context.Context, emailID int64, vendor, status, parseError string) error
}

// emailDeduper is the Redis seen-hash check.
type emailDeduper interface {
	IsNewEmail(ctx context.Context, contentHash string) (bool, error)
}

// intakePublisher emits the pipeline's events.
type intakePublisher interface {
	PublishEmailReceived(ctx context.Context, event *models.EmailReceivedEvent) error
	PublishEmailParsed(ctx context.Context, event *models.EmailParsedEvent) error
	PublishEmailParseFailed(ctx context.Context, event *models.EmailParseFailedEvent) error
	PublishOrderAssembled(ctx context.Context, event *models.OrderAssembledEvent) error
}

// WebhookEmail is the payload accepted from the email provider webhook.
type WebhookEmail struct {
	Sender    string `json:"sender" binding:"required"`
	Subject   string `json:"subject"`
	HTMLBody  string `json:"html_body"`
	PlainBody string `json:"plain_body"`
	AccountID string `json:"account_id"`
}

// PipelineService owns email intake end to end: webhook ingestion with
// content-hash dedup, then the async detect/parse/enrich/assemble pipeline
// the worker drives off EMAIL_RECEIVED events.
type PipelineService struct {
	store     intakeStore
	redis     emailDeduper
	vendors   *vendor.Registry
	detector  *vendor.Detector
	parsers   *parser.Registry
	enricher  *catalog.Enricher
	assembler *Assembler
	publisher intakePublisher
	deadline  time.Duration
	logger    *zap.Logger
}

// NewPipelineService creates the intake pipeline service.
func NewPipelineService(
	store intakeStore,
	redis emailDeduper,
	vendors *vendor.Registry,
	detector *vendor.Detector,
	parsers *parser.Registry,
	enricher *catalog.Enricher,
	assembler *Assembler,
	publisher intakePublisher,
	cfg config.PipelineConfig,
) *PipelineService {
	return &PipelineService{
		store:     store,
		redis:     redis,
		vendors:   vendors,
		detector:  detector,
		parsers:   parsers,
		enricher:  enricher,
		assembler: assembler,
		publisher: publisher,
		deadline:  time.Duration(cfg.EmailDeadlineSeconds) * time.Second,
		logger:    util.GetLogger(),
	}
}

// ReceiveEmail persists an inbound email and schedules it for processing.
// The second return value is true when the email is a content-hash
// duplicate; the previously stored row is returned in that case.
func (s *PipelineService) ReceiveEmail(ctx context.Context, in WebhookEmail) (*models.InboundEmail, bool, error) {
	ctx, span := util.StartSpan(ctx, "PipelineService.ReceiveEmail")
	defer span.End()

	hash := contentHash(in)

	fresh, err := s.redis.IsNewEmail(ctx, hash)
	if err != nil {
		// Redis down degrades to the slower DB uniqueness check.
		s.logger.Warn("Email dedup check via Redis failed, falling back to store", zap.Error(err))
		fresh = true
	}
	if !fresh {
		existing, err := s.store.GetEmailByContentHash(ctx, hash)
		if err != nil {
			return nil, false, err
		}
		if existing != nil {
			return s.handleDuplicate(ctx, existing)
		}
		// Hash seen in Redis but no row: a previous insert failed mid-way.
		// Fall through and insert.
	}

	// Best-effort pre-detection so the review UI can group unprocessed
	// emails by vendor before the pipeline runs.
	vendorKey, _ := s.detector.Detect(in.Sender, in.Subject, in.HTMLBody+in.PlainBody)

	email := &models.InboundEmail{
		Vendor:      vendorKey,
		Sender:      in.Sender,
		Subject:     in.Subject,
		HTMLBody:    in.HTMLBody,
		PlainBody:   in.PlainBody,
		ContentHash: hash,
		AccountID:   in.AccountID,
		ParseStatus: models.ParseStatusPending,
	}
	if err := s.store.CreateInboundEmail(ctx, email); err != nil {
		if existing, lookupErr := s.store.GetEmailByContentHash(ctx, hash); lookupErr == nil && existing != nil {
			return s.handleDuplicate(ctx, existing)
		}
		return nil, false, fmt.Errorf("failed to persist inbound email: %w", err)
	}
	util.EmailsReceivedTotal.Inc()

	event := &models.EmailReceivedEvent{
		BaseEvent: broker.NewBaseEvent(models.EventTypeEmailReceived),
		EmailID:   email.ID,
		Sender:    email.Sender,
		AccountID: email.AccountID,
	}
	if err := s.publisher.PublishEmailReceived(ctx, event); err != nil {
		return nil, false, fmt.Errorf("failed to schedule email %d: %w", email.ID, err)
	}

	s.logger.Info("Inbound email accepted",
		zap.Int64("email_id", email.ID),
		zap.String("sender", email.Sender),
		zap.String("vendor_guess", vendorKey))
	return email, false, nil
}

// handleDuplicate records a redelivery of an email already on file. A row
// still in pending never got its EMAIL_RECEIVED event through (the publish
// after insert failed), so a re-forward schedules it again instead of being
// swallowed by the dedup check.
func (s *PipelineService) handleDuplicate(ctx context.Context, email *models.InboundEmail) (*models.InboundEmail, bool, error) {
	util.EmailsDuplicateTotal.Inc()

	if email.ParseStatus != models.ParseStatusPending {
		return email, true, nil
	}

	event := &models.EmailReceivedEvent{
		BaseEvent: broker.NewBaseEvent(models.EventTypeEmailReceived),
		EmailID:   email.ID,
		Sender:    email.Sender,
		AccountID: email.AccountID,
	}
	if err := s.publisher.PublishEmailReceived(ctx, event); err != nil {
		return nil, false, fmt.Errorf("failed to reschedule email %d: %w", email.ID, err)
	}
	s.logger.Info("Rescheduled unprocessed duplicate email", zap.Int64("email_id", email.ID))
	return email, true, nil
}

// ProcessInbound runs the full pipeline for one stored email. Detection
// misses and parse failures are terminal outcomes recorded on the email
// row, not errors; an error return means the attempt should be retried.
func (s *PipelineService) ProcessInbound(ctx context.Context, emailID int64) error {
	ctx, span := util.StartSpan(ctx, "PipelineService.ProcessInbound")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, s.deadline)
	defer cancel()

	email, err := s.store.GetEmailByID(ctx, emailID)
	if err != nil {
		return err
	}

	start := time.Now()

	vendorKey, ok := s.detector.Detect(email.Sender, email.Subject, email.HTMLBody+email.PlainBody)
	if !ok {
		util.EmailsUnknownVendorTotal.Inc()
		util.PipelineDuration.WithLabelValues("unknown").Observe(time.Since(start).Seconds())
		s.logger.Info("No vendor matched, email held for review", zap.Int64("email_id", emailID))
		return s.finishFailed(ctx, emailID, "", models.ParseStatusUnknownVendor, "no vendor matched sender, subject, or content")
	}

	v, ok := s.vendors.Get(vendorKey)
	if !ok {
		return fmt.Errorf("detector returned unregistered vendor %q", vendorKey)
	}

	p, err := s.parsers.Get(v.Parser)
	if err != nil {
		return err
	}

	result, err := p.Parse(parser.Content{HTML: email.HTMLBody, Text: email.PlainBody})
	if err != nil {
		util.ParseResultsTotal.WithLabelValues(v.Key, "failed").Inc()
		util.PipelineDuration.WithLabelValues(v.Key).Observe(time.Since(start).Seconds())
		s.logger.Warn("Parse failed, email held for review",
			zap.Int64("email_id", emailID),
			zap.String("vendor", v.Key),
			zap.Error(err))
		return s.finishFailed(ctx, emailID, v.Key, models.ParseStatusFailed, err.Error())
	}

	enriched := s.enricher.Enrich(ctx, v, result.Items)

	order, items, merged, err := s.assembler.Assemble(ctx, v, emailID, result.Header, enriched)
	if err != nil {
		return err
	}

	status := models.ParseStatusParsed
	parseResult := "parsed"
	if result.Partial {
		status = models.ParseStatusPartial
		parseResult = "partial"
	}
	util.ParseResultsTotal.WithLabelValues(v.Key, parseResult).Inc()

	if err := s.store.SetEmailParseResult(ctx, emailID, v.Key, status, ""); err != nil {
		return err
	}

	s.publishAssembled(ctx, email, v, order, len(items), merged, result.Partial)
	util.PipelineDuration.WithLabelValues(v.Key).Observe(time.Since(start).Seconds())

	s.logger.Info("Email processed",
		zap.Int64("email_id", emailID),
		zap.String("vendor", v.Key),
		zap.Int64("order_id", order.ID),
		zap.Int("items", len(items)),
		zap.String("status", status))
	return nil
}

func (s *PipelineService) finishFailed(ctx context.Context, emailID int64, vendorKey, status, reason string) error {
	if err := s.store.SetEmailParseResult(ctx, emailID, vendorKey, status, reason); err != nil {
		return err
	}

	event := &models.EmailParseFailedEvent{
		BaseEvent: broker.NewBaseEvent(models.EventTypeEmailParseFailed),
		EmailID:   emailID,
		Vendor:    vendorKey,
		Reason:    reason,
	}
	if err := s.publisher.PublishEmailParseFailed(ctx, event); err != nil {
		s.logger.Warn("Failed to publish parse failure event", zap.Int64("email_id", emailID), zap.Error(err))
	}
	return nil
}

func (s *PipelineService) publishAssembled(ctx context.Context, email *models.InboundEmail, v vendor.Vendor, order *models.Order, itemCount int, merged, partial bool) {
	assembled := &models.OrderAssembledEvent{
		BaseEvent:   broker.NewBaseEvent(models.EventTypeOrderAssembled),
		OrderID:     order.ID,
		EmailID:     email.ID,
		Vendor:      v.Key,
		OrderNumber: order.OrderNumber,
		ItemCount:   itemCount,
		Merged:      merged,
	}
	if err := s.publisher.PublishOrderAssembled(ctx, assembled); err != nil {
		s.logger.Warn("Failed to publish order assembled event", zap.Int64("order_id", order.ID), zap.Error(err))
	}

	parsed := &models.EmailParsedEvent{
		BaseEvent: broker.NewBaseEvent(models.EventTypeEmailParsed),
		EmailID:   email.ID,
		Vendor:    v.Key,
		ItemCount: itemCount,
		Partial:   partial,
	}
	if err := s.publisher.PublishEmailParsed(ctx, parsed); err != nil {
		s.logger.Warn("Failed to publish email parsed event", zap.Int64("email_id", email.ID), zap.Error(err))
	}
}

// contentHash fingerprints an email for duplicate delivery detection.
// Provider metadata like message ids is deliberately excluded: the same
// confirmation redelivered under a new id is still a duplicate.
func contentHash(in WebhookEmail) string {
	h := sha256.New()
	h.Write([]byte(in.Sender))
	h.Write([]byte{0})
	h.Write([]byte(in.Subject))
	h.Write([]byte{0})
	h.Write([]byte(in.HTMLBody))
	h.Write([]byte{0})
	h.Write([]byte(in.PlainBody))
	return hex.EncodeToString(h.Sum(nil))
}
