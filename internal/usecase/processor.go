package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"gitlab.com/nestestates/api/agent-lifecycle-service/internal/config"
	"gitlab.com/nestestates/api/agent-lifecycle-service/internal/ingestion"
	"gitlab.com/nestestates/api/agent-lifecycle-service/internal/ingestion/handler"
	"gitlab.com/nestestates/api/agent-lifecycle-service/internal/jetstream"
	"gitlab.com/nestestates/api/agent-lifecycle-service/internal/model"
	"gitlab.com/nestestates/api/agent-lifecycle-service/pkg/logger"
	"go.uber.org/zap"
)

// Processor orchestrates event processing
type Processor struct {
	service          *LifecycleService
	jsClient         jetstream.ClientInterface
	commandConsumer  *ingestion.CommandConsumer
	eventRouter      ingestion.RouterInterface
	lifecycleHandler handler.LifecycleHandlerInterface
	dlqStream        string
	dlqSubject       string
	dlqMaxAge        time.Duration
}

// NewProcessor creates a new processor with all components wired up
// Accepts the main config object to access NATS settings
func NewProcessor(service *LifecycleService, jsClient jetstream.ClientInterface, cfg *config.Config, companyID string) *Processor {
	// Create the event router
	router := ingestion.NewRouter()

	// Create the handler (used by the router)
	lifecycleHandler := handler.NewLifecycleHandler(service)

	// Create the command consumer using dedicated config from the main cfg object
	// Append companyID to consumer names for uniqueness
	commandCfg := cfg.NATS.Commands
	commandCfg.Consumer = commandCfg.Consumer + companyID
	commandCfg.QueueGroup = commandCfg.QueueGroup + companyID
	// Pass DLQ subject from main config
	commandConsumer := ingestion.NewCommandConsumer(jsClient, router, commandCfg, companyID, cfg.NATS.DLQSubject)

	return &Processor{
		service:          service,
		jsClient:         jsClient,
		commandConsumer:  commandConsumer,
		eventRouter:      router,
		lifecycleHandler: lifecycleHandler,
		dlqStream:        cfg.NATS.DLQStream,
		dlqSubject:       cfg.NATS.DLQSubject,
		dlqMaxAge:        time.Duration(cfg.NATS.DLQMaxAgeDays) * 24 * time.Hour,
	}
}

// GetRouter returns the processor's event router.
func (p *Processor) GetRouter() ingestion.RouterInterface {
	return p.eventRouter
}

// Setup sets up the processor by registering handlers and setting up the
// command consumer and the DLQ stream it publishes to.
func (p *Processor) Setup() error {
	// Register detection and profile event handlers
	p.eventRouter.Register(model.V1ProfilesUpdated, p.lifecycleHandler.HandleEvent)
	p.eventRouter.Register(model.V1AgentsDetected, p.lifecycleHandler.HandleEvent)

	// Register lifecycle command handlers
	p.eventRouter.Register(model.V1AgentsActivate, p.lifecycleHandler.HandleEvent)
	p.eventRouter.Register(model.V1AgentsDeactivate, p.lifecycleHandler.HandleEvent)
	p.eventRouter.Register(model.V1AgentsSuspend, p.lifecycleHandler.HandleEvent)
	p.eventRouter.Register(model.V1AgentsReactivate, p.lifecycleHandler.HandleEvent)
	p.eventRouter.Register(model.V1AgentsRebuild, p.lifecycleHandler.HandleEvent)

	// Default handler for unknown event types, we can use this for logging
	p.eventRouter.RegisterDefault(func(ctx context.Context, eventType model.EventType, metadata *model.MessageMetadata, rawEvent []byte) error {
		logger.FromContext(ctx).Warn("Unhandled event type",
			zap.String("type", string(eventType)),
			zap.String("version", eventType.GetVersion()),
			zap.String("base_type", string(eventType.GetBaseType())),
		)
		return nil
	})

	// The consumer publishes poison messages to the DLQ stream, so it must
	// exist before consumption starts
	if err := p.setupDLQStream(); err != nil {
		return err
	}

	if err := p.commandConsumer.Setup(); err != nil {
		return fmt.Errorf("failed to setup command consumer: %w", err)
	}

	logger.Log.Info("Processor setup complete")
	return nil
}

// setupDLQStream ensures the dead letter stream exists.
func (p *Processor) setupDLQStream() error {
	dlqStreamCfg := &nats.StreamConfig{
		Name:      p.dlqStream,
		Subjects:  []string{p.dlqSubject + ".>"},
		Storage:   nats.FileStorage,
		Retention: nats.LimitsPolicy, // Retain messages until limits (like MaxAge) are hit
		MaxAge:    p.dlqMaxAge,
	}

	if err := p.jsClient.SetupStream(context.Background(), dlqStreamCfg); err != nil {
		return fmt.Errorf("failed to setup DLQ stream '%s': %w", p.dlqStream, err)
	}
	logger.Log.Info("DLQ stream setup complete", zap.String("stream", p.dlqStream))
	return nil
}

// Start starts the processor by starting the command consumer
func (p *Processor) Start() error {
	logger.Log.Info("Starting event processor...")

	// Add panic recovery for the entire processor start sequence
	defer func() {
		if r := recover(); r != nil {
			logger.Log.Error("[panic] Recovered from panic in processor",
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
		}
	}()

	if err := p.commandConsumer.Start(); err != nil {
		return fmt.Errorf("failed to start command consumer: %w", err)
	}

	logger.Log.Info("Command consumer started successfully")
	return nil
}

// Stop stops the processor by stopping the command consumer
func (p *Processor) Stop() {
	logger.Log.Info("Stopping event processor...")
	p.commandConsumer.Stop()
	logger.Log.Info("Command consumer stopped")
}
