package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"gitlab.com/nestestates/api/agent-lifecycle-service/internal/config"
	"gitlab.com/nestestates/api/agent-lifecycle-service/internal/jetstream"
	"gitlab.com/nestestates/api/agent-lifecycle-service/internal/model"
	"gitlab.com/nestestates/api/agent-lifecycle-service/internal/observer"
	"gitlab.com/nestestates/api/agent-lifecycle-service/pkg/logger"
)

// Outbound notification subjects. The company ID is appended as the last
// token so downstream consumers can filter per tenant.
const (
	SubjectAgentReady     = "v1.notifications.agent_ready"
	SubjectAgentActivated = "v1.notifications.agent_activated"
)

// Notifier publishes admin-facing notifications. Publishing is best effort:
// a failed notification is logged and dropped, it never fails the lifecycle
// operation that produced it.
type Notifier interface {
	AgentReadyForReview(ctx context.Context, notification model.AgentReadyNotification)
	AgentActivated(ctx context.Context, notification model.AgentActivatedNotification)
	Stop()
}

// notificationTask holds the necessary data for one publish.
type notificationTask struct {
	Ctx       context.Context // Context derived for the task, NOT the original request context
	Subject   string
	CompanyID string
	Payload   []byte
}

// NatsNotifier publishes notifications to JetStream through a bounded worker
// pool so slow or unavailable NATS never blocks event processing.
type NatsNotifier struct {
	pool       *ants.PoolWithFunc
	js         jetstream.ClientInterface
	cfg        config.NotificationWorkerPoolConfig
	baseLogger *zap.Logger
}

// Ensure NatsNotifier implements Notifier
var _ Notifier = (*NatsNotifier)(nil)

// NewNatsNotifier creates and initializes a new notification worker pool.
func NewNatsNotifier(
	cfg config.NotificationWorkerPoolConfig,
	js jetstream.ClientInterface,
	baseLogger *zap.Logger,
) (*NatsNotifier, error) {
	notifier := &NatsNotifier{
		js:         js,
		cfg:        cfg,
		baseLogger: baseLogger.Named("notifier"),
	}

	pool, err := ants.NewPoolWithFunc(cfg.PoolSize, func(i interface{}) {
		task, ok := i.(notificationTask)
		if !ok {
			notifier.baseLogger.Error("Invalid task data type received", zap.Any("data", i))
			return
		}
		notifier.publishTask(task)
	},
		ants.WithExpiryDuration(cfg.ExpiryTime),
		ants.WithNonblocking(false), // Block when the queue is full, bounded by MaxBlockingTasks
		ants.WithMaxBlockingTasks(cfg.QueueSize),
		ants.WithPanicHandler(func(err interface{}) {
			notifier.baseLogger.Error("Panic recovered in notification worker", zap.Any("panic_error", err), zap.Stack("stack"))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create notification worker pool: %w", err)
	}
	notifier.pool = pool
	notifier.baseLogger.Info("Notification worker pool initialized",
		zap.Int("pool_size", cfg.PoolSize),
		zap.Int("queue_size", cfg.QueueSize),
		zap.Duration("expiry_time", cfg.ExpiryTime),
	)
	return notifier, nil
}

// AgentReadyForReview notifies admins that an agent finished their profile and
// is waiting for approval.
func (n *NatsNotifier) AgentReadyForReview(ctx context.Context, notification model.AgentReadyNotification) {
	n.submit(ctx, SubjectAgentReady, notification.CompanyID, notification)
}

// AgentActivated announces a successful activation.
func (n *NatsNotifier) AgentActivated(ctx context.Context, notification model.AgentActivatedNotification) {
	n.submit(ctx, SubjectAgentActivated, notification.CompanyID, notification)
}

// submit serializes the payload and hands it to the pool. All failures are
// logged and swallowed.
func (n *NatsNotifier) submit(ctx context.Context, baseSubject, companyID string, payload interface{}) {
	log := logger.FromContextOr(ctx, n.baseLogger).With(
		zap.String("subject", baseSubject),
		zap.String("company_id", companyID),
	)

	data, err := json.Marshal(payload)
	if err != nil {
		log.Error("Failed to marshal notification payload", zap.Error(err))
		observer.IncNotificationTasksProcessed(companyID, "marshal_error")
		return
	}

	observer.IncNotificationTasksSubmitted(companyID)
	observer.SetNotificationQueueLength(n.pool.Waiting()) // Approximate queue length

	task := notificationTask{
		// Detach from the request context so an acked event does not cancel
		// its pending notification.
		Ctx:       logger.WithLogger(context.Background(), log),
		Subject:   fmt.Sprintf("%s.%s", baseSubject, companyID),
		CompanyID: companyID,
		Payload:   data,
	}

	if err := n.pool.Invoke(task); err != nil {
		log.Warn("Failed to submit notification task to pool", zap.Error(err))
		observer.IncNotificationTasksProcessed(companyID, "submit_error")
	}
}

// publishTask contains the actual logic executed by a worker goroutine.
func (n *NatsNotifier) publishTask(task notificationTask) {
	log := logger.FromContextOr(task.Ctx, n.baseLogger)

	start := time.Now()
	status := "success"

	headers := map[string]string{
		"Company-ID": task.CompanyID,
	}
	if err := n.js.Publish(task.Subject, task.Payload, headers); err != nil {
		log.Warn("Failed to publish notification, dropping it",
			zap.String("publish_subject", task.Subject),
			zap.Error(err),
		)
		status = "publish_error"
	}

	duration := time.Since(start)
	observer.ObserveNotificationPublishDuration(task.CompanyID, duration)
	observer.IncNotificationTasksProcessed(task.CompanyID, status)

	log.Debug("Finished notification task", zap.Duration("duration", duration), zap.String("final_status", status))
}

// Stop gracefully shuts down the worker pool.
func (n *NatsNotifier) Stop() {
	if n.pool != nil {
		n.baseLogger.Info("Releasing notification worker pool")
		start := time.Now()
		n.pool.Release()
		n.baseLogger.Info("Notification worker pool released", zap.Duration("duration", time.Since(start)))
	}
}
