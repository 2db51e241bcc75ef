package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	apperrors "gitlab.com/nestestates/api/agent-lifecycle-service/internal/apperrors"
	"gitlab.com/nestestates/api/agent-lifecycle-service/internal/model"
	"gitlab.com/nestestates/api/agent-lifecycle-service/pkg/logger"
	"gitlab.com/nestestates/api/agent-lifecycle-service/pkg/utils"
)

// StatusHistoryEntry is one row of the operator-facing lifecycle timeline.
type StatusHistoryEntry struct {
	Action      string    `json:"action"`
	ActionLabel string    `json:"action_label"`
	From        string    `json:"from,omitempty"`
	To          string    `json:"to,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	ActorID     *string   `json:"actor_id,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// actionLabels maps audit actions to display labels.
var actionLabels = map[string]string{
	model.AuditActionStatusChange: "Status changed",
	model.AuditActionActivation:   "Activated",
	model.AuditActionDeactivation: "Deactivated",
	model.AuditActionSuspension:   "Suspended",
	model.AuditActionReactivation: "Reactivated",
	model.AuditActionDetection:    "Detected",
}

// StatusHistory returns the agent's lifecycle timeline, newest first. The
// ordering comes from the audit log: created_at descending with insertion id
// as tiebreak. A limit of 0 returns everything.
func (s *LifecycleService) StatusHistory(ctx context.Context, agentID string, limit int) ([]StatusHistoryEntry, error) {
	log := logger.FromContext(ctx)

	if agentID == "" {
		return nil, fmt.Errorf("%w: agent_id is required", apperrors.ErrBadRequest)
	}

	entries, err := s.auditRepo.FindByRecord(ctx, agentID, limit)
	if err != nil {
		return nil, err
	}

	history := make([]StatusHistoryEntry, 0, len(entries))
	for _, entry := range entries {
		item := StatusHistoryEntry{
			Action:      entry.Action,
			ActionLabel: actionLabels[entry.Action],
			ActorID:     entry.UserID,
			OccurredAt:  entry.CreatedAt,
		}
		if item.ActionLabel == "" {
			item.ActionLabel = entry.Action
		}

		if len(entry.Changes) > 0 {
			var change model.StatusChange
			if err := json.Unmarshal(entry.Changes, &change); err != nil {
				// A malformed changes payload should not hide the rest of
				// the timeline.
				log.Warn("Skipping unreadable audit changes payload",
					zap.String("agent_id", agentID),
					zap.Int64("audit_id", entry.ID),
					zap.Error(err),
				)
			} else {
				item.From = change.From
				item.To = change.To
				item.Reason = change.Reason
			}
		}

		history = append(history, item)
	}

	return history, nil
}

// writeAudit appends the audit entry for a lifecycle mutation. It is the last
// write of every mutation path; a nil userID marks a system-driven action.
func (s *LifecycleService) writeAudit(ctx context.Context, recordID, action string, userID *string, change model.StatusChange) error {
	entry := model.AuditLog{
		Table:     "agents",
		RecordID:  recordID,
		Action:    action,
		UserID:    userID,
		Changes:   datatypes.JSON(utils.MustMarshalJSON(change)),
		CreatedAt: utils.Now(),
	}

	if err := s.auditRepo.Save(ctx, entry); err != nil {
		logger.FromContext(ctx).Error("Failed to write audit entry",
			zap.String("record_id", recordID),
			zap.String("action", action),
			zap.Error(err),
		)
		return err
	}
	return nil
}
