package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gitlab.com/nestestates/api/agent-lifecycle-service/internal/apperrors"
	"gitlab.com/nestestates/api/agent-lifecycle-service/internal/config"
	"gitlab.com/nestestates/api/agent-lifecycle-service/internal/model"
	"gitlab.com/nestestates/api/agent-lifecycle-service/internal/observer"
	"gitlab.com/nestestates/api/agent-lifecycle-service/internal/tenant"
	"gitlab.com/nestestates/api/agent-lifecycle-service/pkg/utils"

	"github.com/nats-io/nats.go"
	"gitlab.com/nestestates/api/agent-lifecycle-service/internal/jetstream"
	"gitlab.com/nestestates/api/agent-lifecycle-service/pkg/logger"
	"go.uber.org/zap"
)

// AckNakAction represents the decision made after processing a message
type AckNakAction int

const (
	ActionAck      AckNakAction = iota // Message processed successfully, ACK it
	ActionNak                          // Non-retryable error or DLQ failure, NAK immediately
	ActionNakDelay                     // Retryable error, NAK with calculated delay
	ActionDLQ                          // Max retries reached or fatal error, publish to DLQ then ACK
)

// baseConsumer holds shared components and logic for NATS consumers
type baseConsumer struct {
	client       jetstream.ClientInterface
	router       *Router
	companyID    string
	consumerType string
	ctx          context.Context
	cancel       context.CancelFunc
	maxDeliver   int           // Configured MaxDeliver for this consumer
	dlqSubject   string        // Base DLQ subject from main config
	nakBaseDelay time.Duration // Base NAK delay for retries
	nakMaxDelay  time.Duration // Max NAK delay for retries
}

// newBaseConsumer creates the shared part of a consumer
func newBaseConsumer(client jetstream.ClientInterface, router *Router, companyID, consumerType string, maxDeliver int, dlqSubject string, nakBaseDelay, nakMaxDelay time.Duration) *baseConsumer {
	ctx, cancel := context.WithCancel(context.Background())
	loggerWithTenant := logger.Log.With(zap.String("company_id", companyID))
	ctx = logger.WithLogger(ctx, loggerWithTenant)
	ctx = tenant.WithCompanyID(ctx, companyID)

	return &baseConsumer{
		client:       client,
		router:       router,
		companyID:    companyID,
		consumerType: consumerType,
		ctx:          ctx,
		cancel:       cancel,
		maxDeliver:   maxDeliver,
		dlqSubject:   dlqSubject,
		nakBaseDelay: nakBaseDelay,
		nakMaxDelay:  nakMaxDelay,
	}
}

// modifySubjects derives the stream and consumer subject lists from the base
// subjects. The stream captures every tenant with a trailing wildcard, the
// consumer filters down to this tenant's token.
func modifySubjects(subjects []string, companyID string) (streamSubjects, consumerSubjects []string) {
	for _, subject := range subjects {
		sb := fmt.Sprintf("%s.*", subject)
		csb := fmt.Sprintf("%s.%s", subject, companyID)
		streamSubjects = append(streamSubjects, sb)
		consumerSubjects = append(consumerSubjects, csb)
	}
	return streamSubjects, consumerSubjects
}

// determineAckNakAction decides the fate of a message based on processing result and metadata.
// It returns the action to take (ACK, NAK, NAK_DELAY, DLQ) and the delay duration if applicable.
func determineAckNakAction(
	processingErr error,
	metadata *nats.MsgMetadata,
	maxDeliver int,
	nakBaseDelay time.Duration,
	nakMaxDelay time.Duration,
) (action AckNakAction, delay time.Duration) {

	if processingErr == nil {
		return ActionAck, 0
	}

	isRetryable := apperrors.IsRetryable(processingErr)
	numDelivered := metadata.NumDelivered

	// Max retries or a fatal error sends the message to the DLQ.
	if numDelivered >= uint64(maxDeliver) || !isRetryable {
		return ActionDLQ, 0
	}

	// Retryable with attempts remaining: NAK with exponential delay.
	attempt := numDelivered // Current attempt number (starts at 1)
	delay = nakBaseDelay
	if attempt > 1 {
		delay = nakBaseDelay * (1 << (attempt - 1)) // base * 2^(attempt-1)
	}
	if delay > nakMaxDelay {
		delay = nakMaxDelay
	}
	return ActionNakDelay, delay
}

// handleMessage is the core message processing logic shared by consumers.
func (bc *baseConsumer) handleMessage(msg *nats.Msg) {
	var err error
	startTime := utils.Now()
	processingErr := err

	defer func() {
		// Observe duration regardless of outcome
		finalEventType, _ := model.MapToBaseEventType(msg.Subject) // Re-map in case of panic before mapping
		observer.ObserveEventProcessingDuration(string(finalEventType), bc.companyID, bc.consumerType, time.Since(startTime))

		if r := recover(); r != nil {
			logFromCtx := logger.FromContext(bc.ctx)
			var msgID string
			if msg.Header != nil {
				msgID = msg.Header.Get("Nats-Msg-Id")
			}
			metadata, metadataErr := msg.Metadata()
			if metadataErr == nil {
				msgID = fmt.Sprintf("msg-%d", metadata.Sequence.Stream)
			}
			logFromCtx.Error("[panic] Recovered from panic in message handler",
				zap.Any("panic", r),
				zap.String("nats_message_id", msgID),
				zap.String("subject", msg.Subject),
				zap.Duration("duration", time.Since(startTime)),
				zap.String("consumerType", bc.consumerType),
				zap.Stack("stack"),
			)
			observer.IncEventsFailed(string(finalEventType), bc.companyID, bc.consumerType)
			observer.IncEventProcessingAction(string(finalEventType), bc.companyID, bc.consumerType, "panic_nak", "panic")
			if nakErr := msg.Nak(); nakErr != nil {
				logFromCtx.Error("Failed to NAK message after panic", zap.Error(nakErr))
			}
		}
	}()

	msgCtx := bc.ctx
	logFromCtx := logger.FromContext(msgCtx)

	var msgID string
	if msg.Header != nil {
		msgID = msg.Header.Get("Nats-Msg-Id")
	}

	eventType, found := model.MapToBaseEventType(msg.Subject)
	if !found {
		logFromCtx.Warn("Unknown event type", zap.String("subject", msg.Subject))
		if nakErr := msg.Nak(); nakErr != nil {
			logFromCtx.Error("Failed to NAK message for unknown event type", zap.Error(nakErr))
		}
		observer.IncEventProcessingAction(string(eventType), bc.companyID, bc.consumerType, "nak_unknown_type", "unknown_event_type")
		return
	}

	metadata, err := msg.Metadata()
	if err != nil {
		logFromCtx.Error("Failed to read message metadata", zap.Error(err), zap.Duration("duration", time.Since(startTime)))
		if nakErr := msg.Nak(); nakErr != nil {
			logFromCtx.Error("Failed to NAK message", zap.Error(nakErr))
		}
		observer.IncEventProcessingAction(string(eventType), bc.companyID, bc.consumerType, "nak_metadata_error", "metadata")
		return
	}
	messageStreamSeq := metadata.Sequence.Stream
	messageConsumerSeq := metadata.Sequence.Consumer
	if msgID == "" {
		msgID = fmt.Sprintf("msg-%d", messageStreamSeq)
	}

	internalMetadata := &model.MessageMetadata{
		StreamSequence:   messageStreamSeq,
		ConsumerSequence: messageConsumerSeq,
		NumDelivered:     metadata.NumDelivered,
		NumPending:       metadata.NumPending,
		Timestamp:        metadata.Timestamp,
		Stream:           metadata.Stream,
		Consumer:         metadata.Consumer,
		Domain:           metadata.Domain,
		MessageID:        msgID,
		MessageSubject:   msg.Subject,
		CompanyID:        bc.companyID,
	}

	observer.IncEventsReceived(string(eventType), bc.companyID, bc.consumerType)

	msgCtx = logger.WithLogger(msgCtx, logFromCtx.With(
		zap.String("nats_message_id", msgID),
		zap.Uint64("stream_sequence", messageStreamSeq),
		zap.Uint64("consumer_sequence", messageConsumerSeq),
		zap.String("subject", msg.Subject),
		zap.String("stream", internalMetadata.Stream),
		zap.String("consumer", internalMetadata.Consumer),
		zap.String("consumerType", bc.consumerType),
	))

	// Route the message
	routingStartTime := utils.Now()
	processingErr = bc.router.Route(msgCtx, internalMetadata, msg.Data)
	observer.ObserveEventRoutingDuration(string(eventType), bc.companyID, bc.consumerType, time.Since(routingStartTime))

	enhancedLog := logger.FromContext(msgCtx)

	action, nakDelay := determineAckNakAction(processingErr, metadata, bc.maxDeliver, bc.nakBaseDelay, bc.nakMaxDelay)

	errorType := "none"
	if processingErr != nil {
		errorType = SanitizeErrorType(processingErr)
	}

	switch action {
	case ActionAck:
		enhancedLog.Info("Successfully processed message", zap.Duration("duration", time.Since(startTime)))
		observer.IncEventsProcessed(string(eventType), bc.companyID, bc.consumerType)
		observer.IncEventProcessingAction(string(eventType), bc.companyID, bc.consumerType, "ack_success", errorType)
		if ackErr := msg.Ack(); ackErr != nil {
			enhancedLog.Error("Failed to ACK message after successful processing", zap.Error(ackErr))
		}

	case ActionNak:
		// Primarily hit when DLQ publishing fails below.
		enhancedLog.Error("NAKing message immediately (non-retryable or DLQ failure)", zap.Error(processingErr), zap.Duration("duration", time.Since(startTime)))
		observer.IncEventsFailed(string(eventType), bc.companyID, bc.consumerType)
		observer.IncEventProcessingAction(string(eventType), bc.companyID, bc.consumerType, "nak_terminal", errorType)
		if nakErr := msg.Nak(); nakErr != nil {
			enhancedLog.Error("Failed to NAK message", zap.Error(nakErr))
		}

	case ActionNakDelay:
		enhancedLog.Info("NAKing message with delay for redelivery (retryable error)",
			zap.Error(processingErr),
			zap.Uint64("num_delivered", metadata.NumDelivered),
			zap.Int("max_deliver", bc.maxDeliver),
			zap.Duration("nak_delay", nakDelay),
			zap.Duration("duration", time.Since(startTime)),
		)
		observer.IncEventsFailed(string(eventType), bc.companyID, bc.consumerType)
		observer.IncEventProcessingAction(string(eventType), bc.companyID, bc.consumerType, "nak_retry", errorType)
		if nakErr := msg.NakWithDelay(nakDelay); nakErr != nil {
			enhancedLog.Error("Failed to NAK message with delay", zap.Error(nakErr))
		}

	case ActionDLQ:
		isRetryable := apperrors.IsRetryable(processingErr)
		logReason := "max delivery attempts reached"
		if !isRetryable {
			logReason = "fatal error encountered"
		}
		enhancedLog.Warn(fmt.Sprintf("Sending message to DLQ: %s", logReason),
			zap.Error(processingErr),
			zap.Uint64("num_delivered", metadata.NumDelivered),
			zap.Int("max_deliver", bc.maxDeliver),
			zap.Bool("is_retryable", isRetryable),
			zap.Duration("duration", time.Since(startTime)),
		)
		observer.IncEventsFailed(string(eventType), bc.companyID, bc.consumerType)

		var errorTypeString string
		if isRetryable {
			errorTypeString = "retryable"
		} else if apperrors.IsFatal(processingErr) {
			errorTypeString = "fatal"
		} else {
			enhancedLog.Warn("Error reaching DLQ is not explicitly Fatal or Retryable, classifying as fatal", zap.Error(processingErr))
			errorTypeString = "fatal"
		}

		dlqPayload := model.DLQPayload{
			SourceSubject:   msg.Subject,
			Company:         bc.companyID,
			OriginalPayload: json.RawMessage(msg.Data),
			Error:           processingErr.Error(),
			ErrorType:       errorTypeString,
			RetryCount:      metadata.NumDelivered,
			MaxRetry:        bc.maxDeliver,
			Timestamp:       time.Now().UTC(),
		}

		dlqData, marshalErr := json.Marshal(dlqPayload)
		if marshalErr != nil {
			enhancedLog.Error("Failed to marshal DLQ payload, NAKing original message without delay",
				zap.Error(marshalErr),
				zap.String("dlq_subject", bc.dlqSubject+"."+bc.companyID),
			)
			observer.IncEventsFailed(string(eventType), bc.companyID, bc.consumerType)
			observer.IncEventProcessingAction(string(eventType), bc.companyID, bc.consumerType, "nak_dlq_marshal_fail", "dlq_marshal_fail")
			if nakErr := msg.Nak(); nakErr != nil {
				enhancedLog.Error("Failed to NAK message after DLQ marshal error", zap.Error(nakErr))
			}
			return
		}

		dlqHeaders := make(map[string]string)
		if msgID != "" {
			dlqHeaders["Original-Nats-Msg-Id"] = msgID
		}

		dlqFullSubject := fmt.Sprintf("%s.%s", bc.dlqSubject, bc.companyID)
		publishErr := bc.client.Publish(dlqFullSubject, dlqData, dlqHeaders)
		if publishErr != nil {
			enhancedLog.Error("Failed to publish message to DLQ, NAKing original message without delay",
				zap.Error(publishErr),
				zap.String("dlq_subject", dlqFullSubject),
			)
			observer.IncDlqPublishError(bc.companyID)
			observer.IncEventsFailed(string(eventType), bc.companyID, bc.consumerType)
			observer.IncEventProcessingAction(string(eventType), bc.companyID, bc.consumerType, "nak_dlq_publish_fail", "dlq_publish_fail")
			if nakErr := msg.Nak(); nakErr != nil {
				enhancedLog.Error("Failed to NAK message after DLQ publish error", zap.Error(nakErr))
			}
		} else {
			enhancedLog.Info("Message published to DLQ", zap.String("dlq_subject", dlqFullSubject))
			observer.IncDlqMessagePublished(bc.companyID)
			// ACK the original message only if the DLQ publish succeeded.
			observer.IncEventProcessingAction(string(eventType), bc.companyID, bc.consumerType, "dlq_published_ack_success", errorType)
			if ackErr := msg.Ack(); ackErr != nil {
				enhancedLog.Error("Failed to ACK message after successful DLQ publish", zap.Error(ackErr))
			}
		}
	}
}

// CommandConsumer consumes the lifecycle command and event subjects for one
// tenant: profile updates, agent detections, activation commands and rebuild
// requests.
type CommandConsumer struct {
	base          *baseConsumer
	cfg           config.ConsumerNatsConfig
	sub           *nats.Subscription
	filterSubject string
	dlqSubject    string
}

// NewCommandConsumer creates the consumer for the lifecycle command stream.
func NewCommandConsumer(client jetstream.ClientInterface, router *Router, cfg config.ConsumerNatsConfig, companyID string, dlqSubject string) *CommandConsumer {
	base := newBaseConsumer(client, router, companyID, "commands", cfg.MaxDeliver, dlqSubject, cfg.NakBaseDelay, cfg.NakMaxDelay)
	return &CommandConsumer{
		base:       base,
		cfg:        cfg,
		dlqSubject: dlqSubject,
	}
}

// Setup configures the NATS stream and the durable consumer.
func (c *CommandConsumer) Setup() error {
	log := logger.FromContext(c.base.ctx)
	log.Info("Setting up CommandConsumer...", zap.String("stream", c.cfg.Stream), zap.String("consumer", c.cfg.Consumer))

	maxAgeRetention := time.Duration(c.cfg.MaxAge*24) * time.Hour
	streamSubjects, consumerSubjects := modifySubjects(c.cfg.SubjectList, c.base.companyID)

	streamCfg := &nats.StreamConfig{
		Name:      c.cfg.Stream,
		Subjects:  streamSubjects,
		Storage:   nats.FileStorage,
		Retention: nats.LimitsPolicy,
		MaxAge:    maxAgeRetention,
	}

	log.Info("CommandConsumer Stream Config Setup", zap.Any("streamConfig", streamCfg))

	if err := c.base.client.SetupStream(c.base.ctx, streamCfg); err != nil {
		log.Error("Failed to setup command stream", zap.Error(err), zap.String("stream", c.cfg.Stream))
		return fmt.Errorf("failed to setup command stream '%s': %w", c.cfg.Stream, err)
	}

	consumerCfg := &nats.ConsumerConfig{
		Durable:        c.cfg.Consumer,
		DeliverGroup:   c.cfg.QueueGroup,
		FilterSubjects: consumerSubjects,
		AckPolicy:      nats.AckExplicitPolicy,
		DeliverSubject: nats.NewInbox(),
		MaxDeliver:     c.cfg.MaxDeliver,
		AckWait:        30 * time.Second,
		MaxAckPending:  1000,
		ReplayPolicy:   nats.ReplayInstantPolicy,
		// Commands must not be skipped, deliver everything retained.
		DeliverPolicy: nats.DeliverAllPolicy,
	}
	c.filterSubject = "v1.>"

	log.Info("CommandConsumer Consumer Config Setup", zap.Any("consumerConfig", consumerCfg))
	if err := c.base.client.SetupConsumer(c.base.ctx, c.cfg.Stream, consumerCfg); err != nil {
		log.Error("Failed to setup command consumer", zap.Error(err), zap.String("stream", c.cfg.Stream), zap.String("consumer", c.cfg.Consumer))
		return fmt.Errorf("failed to setup command consumer '%s' for stream '%s': %w", c.cfg.Consumer, c.cfg.Stream, err)
	}

	log.Info("CommandConsumer setup complete")
	return nil
}

// Start subscribes to the NATS stream
func (c *CommandConsumer) Start() error {
	log := logger.FromContext(c.base.ctx)

	log.Info("Starting CommandConsumer subscription...", zap.String("stream", c.cfg.Stream), zap.String("consumer", c.cfg.Consumer))

	sub, err := c.base.client.SubscribePush(c.filterSubject, c.cfg.Consumer, c.cfg.QueueGroup, c.cfg.Stream, c.base.handleMessage)
	if err != nil {
		log.Error("Failed to subscribe command consumer", zap.Error(err),
			zap.String("stream", c.cfg.Stream),
			zap.String("consumer", c.cfg.Consumer),
			zap.String("group", c.cfg.QueueGroup),
		)
		return fmt.Errorf("failed to subscribe command consumer '%s': %w", c.cfg.Consumer, err)
	}
	c.sub = sub
	log.Info("CommandConsumer subscribed successfully")
	return nil
}

// Stop unsubscribes and cleans up resources
func (c *CommandConsumer) Stop() {
	log := logger.FromContext(c.base.ctx)

	log.Info("Stopping CommandConsumer...", zap.String("stream", c.cfg.Stream), zap.String("consumer", c.cfg.Consumer))
	if c.sub != nil {
		if err := c.sub.Drain(); err != nil {
			log.Error("Error draining command subscription", zap.Error(err))
		}
		log.Info("Command subscription drained")
	}
	if c.base.cancel != nil {
		c.base.cancel()
	}
	log.Info("CommandConsumer stopped")
}

// SanitizeErrorType maps an error to a general category string for metrics.
func SanitizeErrorType(err error) string {
	if err == nil {
		return "none"
	}

	switch {
	case apperrors.IsDatabaseError(err):
		return "database"
	case apperrors.IsBadRequestError(err):
		return "validation"
	case apperrors.IsNotFoundError(err):
		return "not_found"
	case apperrors.IsUnauthorizedError(err):
		return "unauthorized"
	case apperrors.IsConflictError(err):
		return "conflict"
	case apperrors.IsTimeoutError(err):
		return "timeout"
	case apperrors.IsNATSError(err):
		return "nats"
	case strings.Contains(err.Error(), "panic"):
		return "panic"
	}

	errStr := err.Error()
	switch {
	case strings.Contains(errStr, "unmarshal"), strings.Contains(errStr, "json"):
		return "unmarshal"
	default:
		return "unknown"
	}
}
