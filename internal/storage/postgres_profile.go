package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	apperrors "gitlab.com/nestestates/api/agent-lifecycle-service/internal/apperrors"
	"gitlab.com/nestestates/api/agent-lifecycle-service/internal/model"
	"gitlab.com/nestestates/api/agent-lifecycle-service/internal/observer"
	"gitlab.com/nestestates/api/agent-lifecycle-service/internal/tenant"
	"gitlab.com/nestestates/api/agent-lifecycle-service/pkg/logger"
	"gitlab.com/nestestates/api/agent-lifecycle-service/pkg/utils"
)

// --- Profile Repository Methods (read-only, table owned by identity) ---

// FindProfileByUserID fetches the identity profile linked to a user.
func (r *PostgresRepo) FindProfileByUserID(ctx context.Context, userID string) (*model.Profile, error) {
	if _, err := tenant.FromContext(ctx); err != nil {
		return nil, fmt.Errorf("%w: failed to get tenant ID from context: %w", apperrors.ErrUnauthorized, err)
	}
	loggerCtx := logger.FromContext(ctx)

	var profile model.Profile
	operation := func() error {
		result := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&profile)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	findErr := retryableOperation(ctx, readPolicy, "FindProfileByUserID", operation)
	observer.ObserveDbOperationDuration("find", "profile", "", time.Since(startTime), findErr)

	if findErr != nil {
		if errors.Is(findErr, apperrors.ErrNotFound) {
			return nil, apperrors.ErrNotFound
		}
		loggerCtx.Error("Failed to find profile by user ID after retries",
			zap.String("user_id", userID),
			zap.Error(findErr))
		return nil, findErr
	}
	return &profile, nil
}
