package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/roommend/roommend/internal/shared"
)

// LastLoginWriter stores the last login timestamp. It returns
// shared.ErrNotFound when the user is gone or already has a newer value.
type LastLoginWriter interface {
	TouchLastLogin(ctx context.Context, userID string, at time.Time) error
}

// JobRecorder counts processed jobs.
type JobRecorder interface {
	RecordJob(task string, err error)
}

// LastLoginJob handles TaskRecordLastLogin.
type LastLoginJob struct {
	repo     LastLoginWriter
	logger   *slog.Logger
	recorder JobRecorder
}

// NewLastLoginJob builds the handler. recorder may be nil.
func NewLastLoginJob(repo LastLoginWriter, logger *slog.Logger, recorder JobRecorder) *LastLoginJob {
	return &LastLoginJob{repo: repo, logger: logger, recorder: recorder}
}

// Handle implements asynq.HandlerFunc.
func (j *LastLoginJob) Handle(ctx context.Context, task *asynq.Task) error {
	err := j.handle(ctx, task)
	if j.recorder != nil {
		j.recorder.RecordJob(TaskRecordLastLogin, err)
	}
	return err
}

func (j *LastLoginJob) handle(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseRecordLoginPayload(task)
	if err != nil {
		return err
	}
	err = j.repo.TouchLastLogin(ctx, payload.UserID, payload.At)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, shared.ErrNotFound):
		j.logger.DebugContext(ctx, "last login not updated", slog.String("user_id", payload.UserID))
		return nil
	default:
		return fmt.Errorf("touch last login: %w", err)
	}
}
