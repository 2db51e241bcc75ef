package observer

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricsEnabled = true // Flag to control metric collection

	// Labels for standard event metrics
	eventProcessingLabels = []string{"event_type", "company_id", "consumer_type"}
	// Labels for tracking specific processing actions
	eventActionLabels = []string{"event_type", "company_id", "consumer_type", "action", "error_type"}

	// Standard Event Counters
	EventsReceivedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_lifecycle_service_events_received_total",
			Help: "Total number of events received from NATS, labeled by consumer type.",
		},
		eventProcessingLabels,
	)
	EventsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_lifecycle_service_events_processed_total",
			Help: "Total number of events successfully processed and acknowledged, labeled by consumer type.",
		},
		eventProcessingLabels,
	)
	EventsFailedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_lifecycle_service_events_failed_total",
			Help: "Total number of events that failed processing (resulting in Nack or error), labeled by consumer type.",
		},
		eventProcessingLabels,
	)

	// Histogram for Processing Duration
	EventProcessingDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agent_lifecycle_service_event_processing_duration_seconds",
			Help:    "Histogram of event processing durations.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~20s
		},
		eventProcessingLabels,
	)

	// Histogram for Routing Duration
	EventRoutingDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agent_lifecycle_service_event_routing_duration_seconds",
			Help:    "Histogram of event routing specific durations (time spent in router.Route).",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~10s
		},
		eventProcessingLabels,
	)

	// Counter for Specific Actions
	EventProcessingActionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_lifecycle_service_event_processing_actions_total",
			Help: "Total count of specific actions taken after event processing, labeled by error type.",
		},
		eventActionLabels,
	)

	// Global metrics instance
	Metrics *metricsStore
)

// Metrics for agent lifecycle transitions
var (
	transitionLabels       = []string{"company_id", "from_status", "to_status"}
	transitionDeniedLabels = []string{"company_id", "from_status", "to_status", "reason"}

	statusTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_lifecycle_service_status_transitions_total",
			Help: "Total number of successful agent status transitions.",
		},
		transitionLabels,
	)
	statusTransitionsDeniedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_lifecycle_service_status_transitions_denied_total",
			Help: "Total number of denied agent status transitions, labeled by denial reason.",
		},
		transitionDeniedLabels,
	)
	profileCompletionPct = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agent_lifecycle_service_profile_completion_pct",
			Help:    "Distribution of profile completion percentages observed on profile updates.",
			Buckets: []float64{0, 17, 33, 50, 67, 83, 100},
		},
		[]string{"company_id"},
	)
)

// Metrics for the build queue
var (
	buildEnqueueLabels = []string{"company_id", "trigger_reason", "priority"}
	buildDedupeLabels  = []string{"company_id", "trigger_reason"}

	buildsEnqueuedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_lifecycle_service_builds_enqueued_total",
			Help: "Total number of build queue entries created.",
		},
		buildEnqueueLabels,
	)
	buildsDuplicateSuppressedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_lifecycle_service_builds_duplicate_suppressed_total",
			Help: "Total number of enqueue requests collapsed into an existing pending entry.",
		},
		buildDedupeLabels,
	)
	buildsCancelledTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_lifecycle_service_builds_cancelled_total",
			Help: "Total number of pending build entries cancelled.",
		},
		[]string{"company_id"},
	)
	buildQueuePendingDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "agent_lifecycle_service_build_queue_pending_depth",
			Help: "Number of pending build entries, as of the last queue stats read.",
		},
		[]string{"company_id"},
	)
)

// Metrics for the detection cache
var (
	detectionCacheLabels = []string{"company_id", "result"}

	detectionCacheChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_lifecycle_service_detection_cache_checks_total",
			Help: "Total number of detection cache lookups, labeled by outcome.",
		},
		detectionCacheLabels,
	)
)

// Metrics for DLQ publishing
var (
	dlqTenantLabels = []string{"company_id"}

	dlqMessagesPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_lifecycle_service_dlq_messages_published_total",
			Help: "Total number of poison messages published to the DLQ stream.",
		},
		dlqTenantLabels,
	)
	dlqPublishErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_lifecycle_service_dlq_publish_errors_total",
			Help: "Total number of errors encountered while publishing to the DLQ stream.",
		},
		dlqTenantLabels,
	)
)

// Labels for database operations
var (
	dbOperationLabels = []string{"operation", "entity", "company_id", "status"}

	// Histogram for Database Operation Duration
	DatabaseOperationDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agent_lifecycle_service_db_operation_duration_seconds",
			Help:    "Histogram of database operation durations.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms to ~16s
		},
		dbOperationLabels,
	)
)

// --- Notification Worker Pool Metrics ---
var (
	notificationLabels       = []string{"company_id"}
	notificationStatusLabels = []string{"company_id", "status"}

	notificationTasksSubmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_lifecycle_service_notification_tasks_submitted_total",
			Help: "Total number of notification tasks submitted to the worker pool.",
		},
		notificationLabels,
	)
	notificationTasksProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_lifecycle_service_notification_tasks_processed_total",
			Help: "Total number of notification tasks processed by the worker pool, labeled by final status.",
		},
		notificationStatusLabels, // company_id, status
	)
	notificationPublishDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agent_lifecycle_service_notification_publish_duration_seconds",
			Help:    "Histogram of publish durations for notification tasks.",
			Buckets: prometheus.DefBuckets,
		},
		notificationLabels,
	)
	notificationQueueLength = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "agent_lifecycle_service_notification_queue_length",
		Help: "Approximate number of tasks waiting in the notification worker pool queue.",
	})
)

// --- Load Generator Metrics (used by cmd/tester only) ---
var (
	loadgenLabels = []string{"subject", "company_id"}

	loadgenMessagesAttemptedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loadgen_messages_attempted_total",
			Help: "Total number of messages the load generator attempted to generate.",
		},
		loadgenLabels,
	)
	loadgenMessagesPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loadgen_messages_published_total",
			Help: "Total number of messages successfully published by the load generator.",
		},
		loadgenLabels,
	)
	loadgenPublishErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loadgen_publish_errors_total",
			Help: "Total number of publish errors encountered by the load generator.",
		},
		loadgenLabels,
	)
)

// metricsStore holds references to all Prometheus metrics.
type metricsStore struct{}

// InitMetrics initializes and registers the Prometheus metrics if enabled.
// Call this function during application startup.
func InitMetrics(enabled bool) {
	if !enabled {
		return
	}

	metricsEnabled = true

	// Metrics are already auto-registered via promauto, so no explicit
	// registration is needed here.
	Metrics = &metricsStore{}
}

// IncEventsReceived increments the events received counter.
func IncEventsReceived(eventType, tenant, consumerType string) {
	if !metricsEnabled {
		return
	}
	EventsReceivedTotal.WithLabelValues(eventType, sanitizeTenant(tenant), consumerType).Inc()
}

// IncEventsProcessed increments the events processed counter.
func IncEventsProcessed(eventType, tenant, consumerType string) {
	if !metricsEnabled {
		return
	}
	EventsProcessedTotal.WithLabelValues(eventType, sanitizeTenant(tenant), consumerType).Inc()
}

// IncEventsFailed increments the events failed counter.
func IncEventsFailed(eventType, tenant, consumerType string) {
	if !metricsEnabled {
		return
	}
	EventsFailedTotal.WithLabelValues(eventType, sanitizeTenant(tenant), consumerType).Inc()
}

// sanitizeTenant ensures the tenant label is valid or returns a default value.
func sanitizeTenant(tenant string) string {
	if tenant == "" {
		return "unknown"
	}
	return tenant
}

// --- Lifecycle Metric Helpers ---

// IncStatusTransition increments the counter for a successful status transition.
func IncStatusTransition(companyID, from, to string) {
	if !metricsEnabled {
		return
	}
	statusTransitionsTotal.WithLabelValues(sanitizeTenant(companyID), from, to).Inc()
}

// IncStatusTransitionDenied increments the counter for a denied status transition.
func IncStatusTransitionDenied(companyID, from, to, reason string) {
	if !metricsEnabled {
		return
	}
	statusTransitionsDeniedTotal.WithLabelValues(sanitizeTenant(companyID), from, to, reason).Inc()
}

// ObserveProfileCompletionPct records the completion percentage computed for a
// profile update.
func ObserveProfileCompletionPct(companyID string, pct int) {
	if !metricsEnabled {
		return
	}
	profileCompletionPct.WithLabelValues(sanitizeTenant(companyID)).Observe(float64(pct))
}

// --- Build Queue Metric Helpers ---

// IncBuildEnqueued increments the counter for created build entries.
func IncBuildEnqueued(companyID, triggerReason, priority string) {
	if !metricsEnabled {
		return
	}
	buildsEnqueuedTotal.WithLabelValues(sanitizeTenant(companyID), triggerReason, priority).Inc()
}

// IncBuildDuplicateSuppressed increments the counter for suppressed duplicate enqueues.
func IncBuildDuplicateSuppressed(companyID, triggerReason string) {
	if !metricsEnabled {
		return
	}
	buildsDuplicateSuppressedTotal.WithLabelValues(sanitizeTenant(companyID), triggerReason).Inc()
}

// AddBuildsCancelled adds to the counter for cancelled pending builds.
func AddBuildsCancelled(companyID string, count int64) {
	if !metricsEnabled {
		return
	}
	buildsCancelledTotal.WithLabelValues(sanitizeTenant(companyID)).Add(float64(count))
}

// SetBuildQueuePendingDepth sets the pending queue depth gauge.
func SetBuildQueuePendingDepth(companyID string, depth int64) {
	if !metricsEnabled {
		return
	}
	buildQueuePendingDepth.WithLabelValues(sanitizeTenant(companyID)).Set(float64(depth))
}

// IncDetectionCacheCheck increments the detection cache lookup counter.
// result is one of "hit", "miss" or "false_positive".
func IncDetectionCacheCheck(companyID, result string) {
	if !metricsEnabled {
		return
	}
	detectionCacheChecksTotal.WithLabelValues(sanitizeTenant(companyID), result).Inc()
}

// --- DLQ Metric Helpers ---

// IncDlqMessagePublished increments the counter for messages routed to the DLQ stream.
func IncDlqMessagePublished(companyID string) {
	if Metrics != nil {
		dlqMessagesPublishedTotal.WithLabelValues(sanitizeTenant(companyID)).Inc()
	}
}

// IncDlqPublishError increments the counter for DLQ publish failures.
func IncDlqPublishError(companyID string) {
	if Metrics != nil {
		dlqPublishErrorsTotal.WithLabelValues(sanitizeTenant(companyID)).Inc()
	}
}

// --- Event/DB Metric Helpers ---

// ObserveEventProcessingDuration records the processing time for a specific event.
func ObserveEventProcessingDuration(eventType, tenant, consumerType string, duration time.Duration) {
	if !metricsEnabled {
		return
	}
	EventProcessingDurationSeconds.WithLabelValues(eventType, sanitizeTenant(tenant), consumerType).Observe(duration.Seconds())
}

// ObserveEventRoutingDuration records the routing time for a specific event.
func ObserveEventRoutingDuration(eventType, tenant, consumerType string, duration time.Duration) {
	if !metricsEnabled {
		return
	}
	EventRoutingDurationSeconds.WithLabelValues(eventType, sanitizeTenant(tenant), consumerType).Observe(duration.Seconds())
}

// ObserveDbOperationDuration records the duration for a database operation.
func ObserveDbOperationDuration(operation, entity, companyID string, duration time.Duration, err error) {
	if !metricsEnabled {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	DatabaseOperationDurationSeconds.WithLabelValues(operation, entity, sanitizeTenant(companyID), status).Observe(duration.Seconds())
}

// IncEventProcessingAction increments the counter for a specific processing outcome.
func IncEventProcessingAction(eventType, tenant, consumerType, action, errorType string) {
	if !metricsEnabled {
		return
	}
	sanitizedErrorType := SanitizeErrorType(errorType)
	EventProcessingActionsTotal.WithLabelValues(eventType, sanitizeTenant(tenant), consumerType, action, sanitizedErrorType).Inc()
}

// SanitizeErrorType maps specific errors or provides a default category.
// Keep this simple to avoid high cardinality.
func SanitizeErrorType(errStr string) string {
	// If no error (e.g., for success actions), return "none"
	if errStr == "" || errStr == "none" {
		return "none"
	}

	// Simple categorization based on common patterns or known error types
	switch {
	case strings.Contains(errStr, "database"), strings.Contains(errStr, "SQL"), strings.Contains(errStr, "duplicate key"), strings.Contains(errStr, "constraint"), strings.Contains(errStr, "connection"):
		return "database"
	case strings.Contains(errStr, "validation failed"), strings.Contains(errStr, "bad request"), strings.Contains(errStr, "invalid"), strings.Contains(errStr, "missing field"):
		return "validation"
	case strings.Contains(errStr, "not found"), strings.Contains(errStr, "no rows"):
		return "not_found"
	case strings.Contains(errStr, "conflict"), strings.Contains(errStr, "already in"):
		return "conflict"
	case strings.Contains(errStr, "nats"), strings.Contains(errStr, "jetstream"):
		return "nats"
	case strings.Contains(errStr, "timeout"), strings.Contains(errStr, "deadline exceeded"):
		return "timeout"
	case strings.Contains(errStr, "unmarshal"), strings.Contains(errStr, "json"):
		return "unmarshal"
	case strings.Contains(errStr, "panic"):
		return "panic"
	default:
		return "unknown"
	}
}

// --- Notification Metric Helpers ---

// IncNotificationTasksSubmitted increments the counter for submitted notification tasks.
func IncNotificationTasksSubmitted(companyID string) {
	if Metrics != nil {
		notificationTasksSubmittedTotal.WithLabelValues(sanitizeTenant(companyID)).Inc()
	}
}

// IncNotificationTasksProcessed increments the counter for processed notification tasks by status.
func IncNotificationTasksProcessed(companyID, status string) {
	if Metrics != nil {
		notificationTasksProcessedTotal.WithLabelValues(sanitizeTenant(companyID), status).Inc()
	}
}

// ObserveNotificationPublishDuration records the publish time for a notification task.
func ObserveNotificationPublishDuration(companyID string, duration time.Duration) {
	if Metrics != nil {
		notificationPublishDurationSeconds.WithLabelValues(sanitizeTenant(companyID)).Observe(duration.Seconds())
	}
}

// SetNotificationQueueLength sets the current notification queue length.
func SetNotificationQueueLength(length int) {
	if Metrics != nil {
		notificationQueueLength.Set(float64(length))
	}
}

// IncLoadgenMessagesAttempted counts a load generator message attempt.
func IncLoadgenMessagesAttempted(subject, companyID string) {
	if Metrics != nil {
		loadgenMessagesAttemptedTotal.WithLabelValues(subject, sanitizeTenant(companyID)).Inc()
	}
}

// IncLoadgenMessagesPublished counts a successful load generator publish.
func IncLoadgenMessagesPublished(subject, companyID string) {
	if Metrics != nil {
		loadgenMessagesPublishedTotal.WithLabelValues(subject, sanitizeTenant(companyID)).Inc()
	}
}

// IncLoadgenPublishErrors counts a failed load generator publish.
func IncLoadgenPublishErrors(subject, companyID string) {
	if Metrics != nil {
		loadgenPublishErrorsTotal.WithLabelValues(subject, sanitizeTenant(companyID)).Inc()
	}
}
